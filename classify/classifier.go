// Package classify infers what a project is "about" from its recent
// conversation history.
//
// Each message is scored against a fixed taxonomy of domain keyword sets;
// per-domain confidences are aggregated across the sampled window with a
// linear recency weight and normalized so the top domain is always 1.0.
// The result is cached as a DomainSignal on the project record with a
// configurable TTL, fronted by an in-process ristretto cache.
package classify

import (
	"context"
	"errors"
	"log"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/dgraph-io/ristretto"

	"github.com/becomeliminal/conductor/memory"
)

// Config tunes the classifier.
type Config struct {
	// SampleSize is how many recent messages GetOrCompute analyzes when the
	// cached signal is stale or missing. Default: 50.
	SampleSize int

	// Taxonomy overrides the built-in domain keyword table. Leave nil for
	// DefaultTaxonomy.
	Taxonomy map[string][]string
}

// noiseFloor drops domains whose normalized confidence falls below it.
const noiseFloor = 0.10

// oldestWeight is the recency weight of the oldest message in the sampled
// window; the newest message always weighs 1.0.
const oldestWeight = 0.3

// SignalStore is the slice of the persistence contract the classifier
// uses: reading and overwriting the project's cached DomainSignal.
type SignalStore interface {
	GetDomainSignal(ctx context.Context, projectID string) (*memory.DomainSignal, error)
	PutDomainSignal(ctx context.Context, projectID string, sig *memory.DomainSignal) error
}

// Classifier scores text against the domain taxonomy and maintains the
// per-project DomainSignal cache.
type Classifier struct {
	store    SignalStore
	source   memory.MessageSource
	taxonomy map[string][]string
	sample   int
	cache    *ristretto.Cache
}

// New creates a classifier. The taxonomy must be non-empty; an empty table
// is a fatal misconfiguration, not a degraded mode.
func New(store SignalStore, source memory.MessageSource, cfg Config) (*Classifier, error) {
	taxonomy := cfg.Taxonomy
	if taxonomy == nil {
		taxonomy = DefaultTaxonomy()
	}
	if len(taxonomy) == 0 {
		return nil, &memory.ConfigError{Field: "taxonomy", Reason: "no domain keyword table loaded"}
	}
	for domain, keywords := range taxonomy {
		if len(keywords) == 0 {
			return nil, &memory.ConfigError{Field: "taxonomy", Reason: "domain " + domain + " has no keywords"}
		}
	}

	sample := cfg.SampleSize
	if sample <= 0 {
		sample = 50
	}

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 10_000,
		MaxCost:     1_000,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}

	return &Classifier{
		store:    store,
		source:   source,
		taxonomy: taxonomy,
		sample:   sample,
		cache:    cache,
	}, nil
}

// Classify scores one text against every domain. Greeting/filler messages
// return an empty map. The result is deterministic for identical input.
func (c *Classifier) Classify(text string) map[string]float64 {
	tokens := tokenize(text)
	if isGreeting(tokens) {
		return map[string]float64{}
	}

	counts := make(map[string]int, len(tokens))
	for _, tok := range tokens {
		counts[tok]++
	}
	lower := strings.ToLower(text)

	scores := make(map[string]float64)
	for domain, keywords := range c.taxonomy {
		hits := 0
		for _, kw := range keywords {
			if strings.Contains(kw, " ") {
				hits += strings.Count(lower, kw)
			} else {
				hits += counts[kw]
			}
		}
		if hits == 0 {
			continue
		}

		// One third of the keyword list saturates confidence.
		score := float64(hits) / float64(len(keywords)) * 3
		if score > 1.0 {
			score = 1.0
		}
		scores[domain] = score
	}
	return scores
}

// AnalyzeProject classifies a project's recent messages and persists the
// resulting signal, overwriting any cached one.
func (c *Classifier) AnalyzeProject(ctx context.Context, projectID string, sampleSize int) (*memory.DomainSignal, error) {
	if sampleSize <= 0 {
		sampleSize = c.sample
	}

	msgs, err := c.source.GetRecentMessages(ctx, projectID, sampleSize)
	if err != nil {
		return nil, &memory.TransientError{Op: "fetch messages", Err: err}
	}

	accum := make(map[string]float64)
	evidence := make(map[string]int)

	n := len(msgs)
	for i, msg := range msgs {
		// Linear recency weight: newest 1.0 down to 0.3 for the oldest in
		// the sampled window.
		weight := 1.0
		if n > 1 {
			weight = 1.0 - (1.0-oldestWeight)*float64(i)/float64(n-1)
		}

		for domain, conf := range c.Classify(msg.Content) {
			accum[domain] += conf * weight
			evidence[domain]++
		}
	}

	sig := buildSignal(accum, evidence, n)

	if err := c.store.PutDomainSignal(ctx, projectID, sig); err != nil {
		return nil, err
	}
	c.cache.Set(projectID, sig, 1)

	log.Printf("[CLASSIFY] Project %s: primary=%s domains=%d (analyzed %d messages)",
		projectID, sig.Primary, len(sig.Domains), n)
	return sig, nil
}

// GetOrCompute returns the cached signal when younger than maxAge and
// recomputes otherwise.
func (c *Classifier) GetOrCompute(ctx context.Context, projectID string, maxAge time.Duration) (*memory.DomainSignal, error) {
	now := time.Now()

	if v, ok := c.cache.Get(projectID); ok {
		if sig, ok := v.(*memory.DomainSignal); ok && !sig.Stale(now, maxAge) {
			return sig, nil
		}
	}

	sig, err := c.store.GetDomainSignal(ctx, projectID)
	if err == nil && !sig.Stale(now, maxAge) {
		c.cache.Set(projectID, sig, 1)
		return sig, nil
	}
	if err != nil && !errors.Is(err, memory.ErrNotFound) {
		return nil, err
	}

	return c.AnalyzeProject(ctx, projectID, c.sample)
}

// buildSignal normalizes accumulated confidences by the maximum total,
// drops sub-floor noise, and ranks the remainder.
func buildSignal(accum map[string]float64, evidence map[string]int, analyzed int) *memory.DomainSignal {
	var max float64
	for _, total := range accum {
		if total > max {
			max = total
		}
	}

	var ranked []memory.DomainScore
	if max > 0 {
		for domain, total := range accum {
			norm := total / max
			if norm < noiseFloor {
				continue
			}
			ranked = append(ranked, memory.DomainScore{
				Domain:     domain,
				Confidence: norm,
				Evidence:   evidence[domain],
			})
		}
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Confidence != ranked[j].Confidence {
			return ranked[i].Confidence > ranked[j].Confidence
		}
		return ranked[i].Domain < ranked[j].Domain
	})

	primary := memory.GeneralDomain
	if len(ranked) > 0 {
		primary = ranked[0].Domain
	}

	return &memory.DomainSignal{
		Primary:               primary,
		Domains:               ranked,
		ConversationsAnalyzed: analyzed,
		ComputedAt:            time.Now().UTC(),
	}
}

// tokenize lowercases and splits text into alphanumeric tokens.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r) && r != '/'
	})
}

// isGreeting reports whether every token falls in the closed greeting set.
// Empty input counts as a greeting (nothing to classify).
func isGreeting(tokens []string) bool {
	if len(tokens) == 0 {
		return true
	}
	for _, tok := range tokens {
		if _, ok := greetingTokens[tok]; !ok {
			return false
		}
	}
	return true
}
