package lens

import (
	"context"
	"fmt"
	"log"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	"github.com/becomeliminal/conductor/memory"
)

// RecallIndex is an in-memory vector index over a project's embedded items,
// used for query-similarity ranking. chromem-go is a pure Go, embedded
// vector database; each project gets its own collection for namespace
// isolation.
type RecallIndex struct {
	db          *chromem.DB
	collections map[string]*chromem.Collection
	mu          sync.RWMutex
}

// NewRecallIndex creates an empty index.
func NewRecallIndex() *RecallIndex {
	return &RecallIndex{
		db:          chromem.NewDB(),
		collections: make(map[string]*chromem.Collection),
	}
}

func collectionName(projectID string) string {
	return fmt.Sprintf("project_%s", projectID)
}

// Rebuild replaces a project's collection with the given items. Items
// without an embedding are not indexed.
func (ix *RecallIndex) Rebuild(ctx context.Context, projectID string, items []*memory.LearningItem) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	name := collectionName(projectID)
	if _, exists := ix.collections[projectID]; exists {
		if err := ix.db.DeleteCollection(name); err != nil {
			return fmt.Errorf("delete collection: %w", err)
		}
		delete(ix.collections, projectID)
	}

	// No custom embedding func or distance func: embeddings are provided
	// and the default cosine distance applies.
	col, err := ix.db.CreateCollection(name, nil, nil)
	if err != nil {
		return fmt.Errorf("create collection: %w", err)
	}

	indexed := 0
	for _, item := range items {
		if item.Embedding == nil {
			continue
		}
		doc := chromem.Document{
			ID:        item.ID,
			Content:   item.Content,
			Embedding: item.Embedding,
			Metadata:  map[string]string{"type": string(item.Type)},
		}
		if err := col.AddDocument(ctx, doc); err != nil {
			return fmt.Errorf("add document %s: %w", item.ID, err)
		}
		indexed++
	}

	ix.collections[projectID] = col
	log.Printf("[LENS] Rebuilt index for project %s: %d of %d items embedded",
		projectID, indexed, len(items))
	return nil
}

// QuerySimilar returns similarity scores by item ID for the nearest items
// to the given embedding. An empty or missing collection returns no scores.
func (ix *RecallIndex) QuerySimilar(ctx context.Context, projectID string, embedding []float32, limit int) (map[string]float64, error) {
	ix.mu.RLock()
	col, exists := ix.collections[projectID]
	ix.mu.RUnlock()
	if !exists {
		return nil, nil
	}

	// chromem-go requires nResults <= collection size.
	n := col.Count()
	if n == 0 {
		return nil, nil
	}
	if limit > n {
		limit = n
	}

	results, err := col.QueryEmbedding(ctx, embedding, limit, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}

	scores := make(map[string]float64, len(results))
	for _, r := range results {
		scores[r.ID] = float64(r.Similarity)
	}
	return scores, nil
}
