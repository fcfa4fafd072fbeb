// Package compact collapses semantically duplicate learning items.
//
// Items accumulate from repeated independent extraction, so the same fact
// tends to appear several times with slightly different wording. The engine
// clusters same-type items by embedding similarity and merges each cluster
// down to a single prototype, preserving aggregate usage statistics.
package compact

import (
	"context"
	"fmt"
	"log"
	"sort"

	"github.com/becomeliminal/conductor/memory"
)

// DefaultThreshold is the cosine similarity above which two same-type items
// are considered duplicates.
const DefaultThreshold = 0.85

// Store is the persistence surface the engine needs.
type Store interface {
	// ListItems returns all items for a project in stable creation order.
	ListItems(ctx context.Context, projectID string) ([]*memory.LearningItem, error)

	// MergeCluster atomically persists the updated prototype and deletes the
	// absorbed items.
	MergeCluster(ctx context.Context, prototype *memory.LearningItem, absorbedIDs []string) error
}

// Config tunes the engine. The zero value selects defaults.
type Config struct {
	// Threshold overrides DefaultThreshold when positive.
	Threshold float64
}

// Result summarizes one compaction run.
type Result struct {
	ClustersFound     int // clusters of size > 1
	ItemsMerged       int // absorbed items, prototypes excluded
	PrototypesCreated int // clusters successfully merged
	Failed            int // clusters whose merge transaction failed
}

// Engine deduplicates a project's learning items.
type Engine struct {
	store     Store
	threshold float64
}

// New creates a compaction engine.
func New(store Store, cfg Config) (*Engine, error) {
	if store == nil {
		return nil, &memory.ConfigError{Field: "store", Reason: "must not be nil"}
	}
	threshold := cfg.Threshold
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if threshold > 1.0 {
		return nil, &memory.ConfigError{Field: "threshold", Reason: fmt.Sprintf("%.2f exceeds 1.0", threshold)}
	}
	return &Engine{store: store, threshold: threshold}, nil
}

// Compact clusters and merges duplicate items for one project.
//
// Items are partitioned by type and clustered greedily in creation order.
// Items without an embedding are never merged or deleted, so an embedding
// pipeline failure cannot destroy memory. Each cluster merge is its own
// transaction; a failed merge is counted and skipped without aborting the
// run. Cancellation between clusters leaves already-committed merges intact.
func (e *Engine) Compact(ctx context.Context, projectID string) (*Result, error) {
	items, err := e.store.ListItems(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("listing items for %s: %w", projectID, err)
	}

	byType := make(map[memory.ItemType][]*memory.LearningItem)
	for _, item := range items {
		byType[item.Type] = append(byType[item.Type], item)
	}

	result := &Result{}
	for _, group := range byType {
		clusters := clusterByEmbedding(group, e.threshold)
		for _, cluster := range clusters {
			if len(cluster) < 2 {
				continue
			}
			result.ClustersFound++

			if err := ctx.Err(); err != nil {
				return result, err
			}
			if err := e.mergeCluster(ctx, cluster); err != nil {
				log.Printf("[COMPACT] Project %s: merge of %d items failed: %v",
					projectID, len(cluster), err)
				result.Failed++
				continue
			}
			result.PrototypesCreated++
			result.ItemsMerged += len(cluster) - 1
		}
	}

	log.Printf("[COMPACT] Project %s: %d clusters, %d items merged, %d failed",
		projectID, result.ClustersFound, result.ItemsMerged, result.Failed)
	return result, nil
}

// clusterByEmbedding runs greedy single-link clustering over items of one
// type. Each unvisited item with an embedding seeds a cluster and absorbs
// every remaining unvisited item within the similarity threshold of the
// seed. Items without an embedding are left out entirely.
func clusterByEmbedding(items []*memory.LearningItem, threshold float64) [][]*memory.LearningItem {
	var clusters [][]*memory.LearningItem
	visited := make([]bool, len(items))

	for i, seed := range items {
		if visited[i] || seed.Embedding == nil {
			continue
		}
		visited[i] = true
		cluster := []*memory.LearningItem{seed}

		for j := i + 1; j < len(items); j++ {
			if visited[j] || items[j].Embedding == nil {
				continue
			}
			if memory.CosineSimilarity(seed.Embedding, items[j].Embedding) >= threshold {
				visited[j] = true
				cluster = append(cluster, items[j])
			}
		}
		clusters = append(clusters, cluster)
	}
	return clusters
}

// mergeCluster picks the prototype, folds the cluster's usage statistics
// into it, and commits the merge as one transaction.
func (e *Engine) mergeCluster(ctx context.Context, cluster []*memory.LearningItem) error {
	sorted := make([]*memory.LearningItem, len(cluster))
	copy(sorted, cluster)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].UsageCount != sorted[j].UsageCount {
			return sorted[i].UsageCount > sorted[j].UsageCount
		}
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})

	prototype := sorted[0]
	absorbed := make([]string, 0, len(sorted)-1)

	totalUsage := 0
	lastUsed := prototype.LastUsedAt
	for _, member := range sorted {
		totalUsage += member.UsageCount
		if member.LastUsedAt != nil && (lastUsed == nil || member.LastUsedAt.After(*lastUsed)) {
			lastUsed = member.LastUsedAt
		}
	}
	for _, member := range sorted[1:] {
		absorbed = append(absorbed, member.ID)
	}

	merged := *prototype
	merged.UsageCount = totalUsage
	merged.LastUsedAt = lastUsed

	return e.store.MergeCluster(ctx, &merged, absorbed)
}
