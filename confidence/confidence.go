// Package confidence computes the 0-100 trust score for a project's memory.
//
// The score summarizes how verified, recurring, and fresh the project's
// learning items are, blended with logged interaction outcomes. It is
// recomputed on demand and is always derivable from current state, never
// incrementally maintained.
package confidence

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/becomeliminal/conductor/memory"
)

// Fixed weight distribution. Verification dominates, recurrence next, decay
// and interaction outcomes smaller.
const (
	weightInteraction = 0.1
	weightVerified    = 0.4
	weightRecurring   = 0.2
	weightDecay       = 0.3
)

// NeutralScore is returned for a project with no items yet.
const NeutralScore = 50.0

const dailyDecay = 0.99

// Store is the persistence surface the scorer needs.
type Store interface {
	ListItems(ctx context.Context, projectID string) ([]*memory.LearningItem, error)
	PutConfidence(ctx context.Context, projectID string, conf *memory.ProjectConfidence) error
}

// Scorer recalculates project confidence.
type Scorer struct {
	store Store
	log   memory.InteractionLog
	now   func() time.Time
}

// New creates a scorer. The interaction log may be nil, in which case the
// optimistic default applies to every project.
func New(store Store, interactions memory.InteractionLog) (*Scorer, error) {
	if store == nil {
		return nil, &memory.ConfigError{Field: "store", Reason: "must not be nil"}
	}
	return &Scorer{store: store, log: interactions, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Recalculate computes the current score and persists it. Calling it twice
// with no intervening writes yields the same score.
func (s *Scorer) Recalculate(ctx context.Context, projectID string) (float64, error) {
	items, err := s.store.ListItems(ctx, projectID)
	if err != nil {
		return 0, fmt.Errorf("listing items for %s: %w", projectID, err)
	}

	positive, total := 0, 0
	if s.log != nil {
		positive, total, err = s.log.InteractionCounts(ctx, projectID)
		if err != nil {
			return 0, fmt.Errorf("reading interaction log for %s: %w", projectID, err)
		}
	}

	score := Score(items, positive, total, s.now())

	conf := &memory.ProjectConfidence{Score: score, ComputedAt: s.now()}
	if err := s.store.PutConfidence(ctx, projectID, conf); err != nil {
		return 0, fmt.Errorf("persisting confidence for %s: %w", projectID, err)
	}

	log.Printf("[CONFIDENCE] Project %s: score=%.1f (%d items, %d/%d interactions)",
		projectID, score, len(items), positive, total)
	return score, nil
}

// Score is the pure scoring function.
//
// score = 100 * (interaction*0.1 + verifiedRate*0.4 + recurringRate*0.2 + decay*0.3)
//
// The interaction score defaults to 1.0 when the project has no logged
// interactions. That optimistic default for new projects is deliberate
// policy, not an oversight. An empty item set yields NeutralScore.
func Score(items []*memory.LearningItem, positiveInteractions, totalInteractions int, now time.Time) float64 {
	if len(items) == 0 {
		return NeutralScore
	}

	interaction := 1.0
	if totalInteractions > 0 {
		interaction = float64(positiveInteractions) / float64(totalInteractions)
	}

	verified, recurring := 0, 0
	decaySum := 0.0
	for _, item := range items {
		if item.Verified() {
			verified++
		}
		if item.UsageCount > 1 {
			recurring++
		}
		decaySum += math.Pow(dailyDecay, item.AgeDays(now))
	}

	n := float64(len(items))
	verifiedRate := float64(verified) / n
	recurringRate := float64(recurring) / n
	decayFactor := decaySum / n

	score := 100 * (interaction*weightInteraction +
		verifiedRate*weightVerified +
		recurringRate*weightRecurring +
		decayFactor*weightDecay)

	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
