// Package links infers directed graph edges from co-occurrence statistics.
//
// Two items judged relevant in the same interaction accumulate a
// co-occurrence count with a positive-feedback sub-count. Once a pair clears
// a significance threshold the engine materializes a "supports" link whose
// strength is derived from the positive-feedback rate.
package links

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/becomeliminal/conductor/memory"
)

// DefaultMinCount is the co-occurrence count a pair must exceed before it is
// considered significant enough to produce a link.
const DefaultMinCount = 3

const (
	strengthFloor = 0.1
	strengthSpan  = 0.8
)

// Store is the persistence surface the engine needs.
type Store interface {
	ListCoOccurrences(ctx context.Context, projectID string, minCount int) ([]*memory.CoOccurrencePair, error)
	GetItem(ctx context.Context, projectID, itemID string) (*memory.LearningItem, error)
	GetLinkBetween(ctx context.Context, projectID, itemA, itemB string) (*memory.Link, error)
	CreateLink(ctx context.Context, link *memory.Link) error
	UpdateLinkStrength(ctx context.Context, projectID, linkID string, strength float64) error
}

// Config tunes the engine. The zero value selects defaults.
type Config struct {
	// MinCount overrides DefaultMinCount when positive.
	MinCount int
}

// Result summarizes one backfill run.
type Result struct {
	LinksCreated int
	LinksUpdated int
	Skipped      int // pairs referencing a deleted item or whose write failed
}

// Engine turns co-occurrence observations into links.
type Engine struct {
	store    Store
	minCount int
}

// New creates a link inference engine.
func New(store Store, cfg Config) (*Engine, error) {
	if store == nil {
		return nil, &memory.ConfigError{Field: "store", Reason: "must not be nil"}
	}
	minCount := cfg.MinCount
	if minCount <= 0 {
		minCount = DefaultMinCount
	}
	return &Engine{store: store, minCount: minCount}, nil
}

// Strength derives a link strength from co-occurrence evidence. A pair with
// no positive feedback still gets a floor of 0.1, and a perfectly positive
// pair caps at 0.9 rather than absolute certainty.
func Strength(count, positiveCount int) float64 {
	if count <= 0 {
		return strengthFloor
	}
	rate := float64(positiveCount) / float64(count)
	if rate > 1.0 {
		rate = 1.0
	}
	return strengthFloor + rate*strengthSpan
}

// Backfill creates or strengthens links for every significant co-occurrence
// pair of a project.
//
// Inference is additive-confidence only: an existing link's strength is
// raised when the new evidence is strictly stronger and never lowered, so a
// manually established link cannot be downgraded. Pairs referencing a
// since-deleted item are logged and skipped without failing the batch.
func (e *Engine) Backfill(ctx context.Context, projectID string) (*Result, error) {
	pairs, err := e.store.ListCoOccurrences(ctx, projectID, e.minCount)
	if err != nil {
		return nil, fmt.Errorf("listing co-occurrences for %s: %w", projectID, err)
	}

	result := &Result{}
	for _, pair := range pairs {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if err := e.processPair(ctx, projectID, pair, result); err != nil {
			log.Printf("[LINKS] Project %s: pair %s/%s skipped: %v",
				projectID, pair.ItemA, pair.ItemB, err)
			result.Skipped++
		}
	}

	log.Printf("[LINKS] Project %s: %d created, %d updated, %d skipped",
		projectID, result.LinksCreated, result.LinksUpdated, result.Skipped)
	return result, nil
}

func (e *Engine) processPair(ctx context.Context, projectID string, pair *memory.CoOccurrencePair, result *Result) error {
	// Both endpoints must still exist; compaction may have absorbed one.
	for _, id := range []string{pair.ItemA, pair.ItemB} {
		if _, err := e.store.GetItem(ctx, projectID, id); err != nil {
			return fmt.Errorf("resolving item %s: %w", id, err)
		}
	}

	strength := Strength(pair.Count, pair.PositiveCount)

	existing, err := e.store.GetLinkBetween(ctx, projectID, pair.ItemA, pair.ItemB)
	switch {
	case errors.Is(err, memory.ErrNotFound):
		link := memory.NewLink(projectID, pair.ItemA, pair.ItemB, memory.LinkSupports, strength,
			fmt.Sprintf("co-occurred %d times, %d positive", pair.Count, pair.PositiveCount))
		if err := e.store.CreateLink(ctx, link); err != nil {
			return fmt.Errorf("creating link: %w", err)
		}
		result.LinksCreated++
	case err != nil:
		return fmt.Errorf("looking up link: %w", err)
	case strength > existing.Strength:
		if err := e.store.UpdateLinkStrength(ctx, projectID, existing.ID, strength); err != nil {
			return fmt.Errorf("updating link %s: %w", existing.ID, err)
		}
		result.LinksUpdated++
	}
	return nil
}
