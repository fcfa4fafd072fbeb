// Package lens ranks and selects learning items for prompt injection.
//
// The Conductor Lens is the read-side consumer of the curation engine: given
// a project's domain signal, a tunable lens multiplier, and an optional set
// of focus domains, it orders candidate items and formats the winners into
// an injection block whose size scales with the lens. It never mutates
// persistent state and may run concurrently with anything.
package lens

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/becomeliminal/conductor/memory"
)

// Lens multiplier bounds. Values outside are clamped, not rejected.
const (
	MinLens = 0.25
	MaxLens = 2.0
)

const (
	focusBoost     = 1.15 // +15% for items matching a focus domain
	itemDailyDecay = 0.99
)

// Defaults for the injection budget at lens 1.0.
const (
	DefaultBaseItems = 10
	DefaultBaseChars = 2000
)

// Store is the read surface the lens needs.
type Store interface {
	ListItems(ctx context.Context, projectID string) ([]*memory.LearningItem, error)
	GetDomainSignal(ctx context.Context, projectID string) (*memory.DomainSignal, error)
}

// Config tunes the lens. The zero value selects defaults.
type Config struct {
	BaseItems int // item budget at lens 1.0
	BaseChars int // character budget at lens 1.0
}

// Options control one ranking request.
type Options struct {
	// Lens scales the injection budget; clamped to [MinLens, MaxLens].
	// Zero means 1.0.
	Lens float64

	// FocusDomains boost matching items by 15%.
	FocusDomains []string

	// Query, when non-empty and an embedder is configured, adds embedding
	// similarity to the ranking.
	Query string
}

// Lens ranks learning items for injection.
type Lens struct {
	store     Store
	embedder  memory.Embedder // may be nil
	index     *RecallIndex
	baseItems int
	baseChars int
	now       func() time.Time
}

// New creates a lens. The embedder is optional; without one, ranking uses
// domain, usage, and recency signals only.
func New(store Store, embedder memory.Embedder, cfg Config) (*Lens, error) {
	if store == nil {
		return nil, &memory.ConfigError{Field: "store", Reason: "must not be nil"}
	}
	baseItems := cfg.BaseItems
	if baseItems <= 0 {
		baseItems = DefaultBaseItems
	}
	baseChars := cfg.BaseChars
	if baseChars <= 0 {
		baseChars = DefaultBaseChars
	}
	return &Lens{
		store:     store,
		embedder:  embedder,
		index:     NewRecallIndex(),
		baseItems: baseItems,
		baseChars: baseChars,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// ClampLens bounds a lens multiplier to the supported range. Zero selects
// the neutral 1.0.
func ClampLens(lens float64) float64 {
	if lens == 0 {
		return 1.0
	}
	if lens < MinLens {
		return MinLens
	}
	if lens > MaxLens {
		return MaxLens
	}
	return lens
}

// Rank returns the items selected for injection, best first.
//
// Muted items are never surfaced. Pinned items are always included, ahead
// of the budget and without recency decay. The remaining items compete for
// a budget of baseItems scaled by the clamped lens.
func (l *Lens) Rank(ctx context.Context, projectID string, opts Options) ([]*memory.LearningItem, error) {
	items, err := l.store.ListItems(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("listing items for %s: %w", projectID, err)
	}
	if len(items) == 0 {
		return nil, nil
	}

	sig, err := l.store.GetDomainSignal(ctx, projectID)
	if errors.Is(err, memory.ErrNotFound) {
		sig = memory.GeneralSignal()
	} else if err != nil {
		return nil, fmt.Errorf("reading domain signal for %s: %w", projectID, err)
	}

	similarity := l.querySimilarity(ctx, projectID, items, opts.Query)

	lens := ClampLens(opts.Lens)
	budget := int(math.Round(float64(l.baseItems) * lens))
	if budget < 1 {
		budget = 1
	}

	now := l.now()
	focus := make(map[string]bool, len(opts.FocusDomains))
	for _, d := range opts.FocusDomains {
		focus[strings.ToLower(d)] = true
	}

	var pinned, regular []*memory.LearningItem
	scores := make(map[string]float64, len(items))
	for _, item := range items {
		if item.Muted() {
			continue
		}
		scores[item.ID] = l.score(item, sig, similarity, focus, now)
		if item.Pinned() {
			pinned = append(pinned, item)
		} else {
			regular = append(regular, item)
		}
	}

	byScore := func(list []*memory.LearningItem) {
		sort.SliceStable(list, func(i, j int) bool {
			return scores[list[i].ID] > scores[list[j].ID]
		})
	}
	byScore(pinned)
	byScore(regular)

	if len(regular) > budget {
		regular = regular[:budget]
	}

	ranked := append(pinned, regular...)
	log.Printf("[LENS] Project %s: ranked %d items (%d pinned, lens %.2f, budget %d)",
		projectID, len(ranked), len(pinned), lens, budget)
	return ranked, nil
}

// score combines domain affinity, usage, query similarity, and recency
// decay. Pinned items skip decay entirely.
func (l *Lens) score(item *memory.LearningItem, sig *memory.DomainSignal, similarity map[string]float64, focus map[string]bool, now time.Time) float64 {
	affinity := 0.0
	focused := false
	for _, domain := range item.Domains {
		d := strings.ToLower(domain)
		for _, ds := range sig.Domains {
			if ds.Domain == d && ds.Confidence > affinity {
				affinity = ds.Confidence
			}
		}
		if d == sig.Primary && affinity < 0.5 {
			affinity = 0.5
		}
		if focus[d] {
			focused = true
		}
	}

	usage := float64(item.UsageCount) / 10.0
	if usage > 1.0 {
		usage = 1.0
	}

	score := 1.0 + affinity + usage + similarity[item.ID]

	if !item.Pinned() {
		age := item.AgeDays(now)
		if item.LastUsedAt != nil {
			age = now.Sub(*item.LastUsedAt).Hours() / 24
		}
		if age < 0 {
			age = 0
		}
		score *= math.Pow(itemDailyDecay, age)
	}

	if focused {
		score *= focusBoost
	}
	return score
}

// querySimilarity rebuilds the project's recall index and scores items
// against the embedded query. Any failure degrades to no similarity signal
// rather than failing the read path.
func (l *Lens) querySimilarity(ctx context.Context, projectID string, items []*memory.LearningItem, query string) map[string]float64 {
	if l.embedder == nil || strings.TrimSpace(query) == "" {
		return nil
	}

	vec, err := l.embedder.Embed(ctx, query)
	if err != nil {
		log.Printf("[LENS] Project %s: query embedding failed: %v", projectID, err)
		return nil
	}

	if err := l.index.Rebuild(ctx, projectID, items); err != nil {
		log.Printf("[LENS] Project %s: index rebuild failed: %v", projectID, err)
		return nil
	}

	scores, err := l.index.QuerySimilar(ctx, projectID, vec, len(items))
	if err != nil {
		log.Printf("[LENS] Project %s: similarity query failed: %v", projectID, err)
		return nil
	}
	return scores
}

// FormatInjection renders ranked items into the block injected ahead of a
// conversation. The character budget scales with the lens multiplier and is
// split across items, with a floor so single items stay readable.
func FormatInjection(items []*memory.LearningItem, lens float64, baseChars int) string {
	if len(items) == 0 {
		return ""
	}
	if baseChars <= 0 {
		baseChars = DefaultBaseChars
	}

	budget := int(float64(baseChars) * ClampLens(lens))
	perItem := budget / len(items)
	if perItem < 100 {
		perItem = 100
	}

	var parts []string
	parts = append(parts, "=== PROJECT MEMORY ===\n")
	for i, item := range items {
		content := item.Content
		if len(content) > perItem {
			content = content[:perItem-3] + "..."
		}
		marker := ""
		if item.Pinned() {
			marker = " [pinned]"
		}
		parts = append(parts, fmt.Sprintf("%d. (%s)%s %s\n", i+1, item.Type, marker, content))
	}
	return strings.Join(parts, "\n")
}
