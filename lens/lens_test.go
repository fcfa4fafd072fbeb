package lens

import (
	"context"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/becomeliminal/conductor/memory"
	"github.com/becomeliminal/conductor/memory/embedder/hash"
)

type fakeStore struct {
	items []*memory.LearningItem
	sig   *memory.DomainSignal
}

func (f *fakeStore) ListItems(ctx context.Context, projectID string) ([]*memory.LearningItem, error) {
	return f.items, nil
}

func (f *fakeStore) GetDomainSignal(ctx context.Context, projectID string) (*memory.DomainSignal, error) {
	if f.sig == nil {
		return nil, memory.ErrNotFound
	}
	return f.sig, nil
}

func testItem(id string, domains ...string) *memory.LearningItem {
	return &memory.LearningItem{
		ID:        id,
		ProjectID: "proj1",
		Type:      memory.TypePattern,
		Content:   "content " + id,
		Domains:   domains,
		CreatedAt: time.Now().UTC(),
	}
}

func newTestLens(t *testing.T, store Store, embedder memory.Embedder, cfg Config) *Lens {
	t.Helper()
	l, err := New(store, embedder, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return l
}

func rankIDs(t *testing.T, l *Lens, opts Options) []string {
	t.Helper()
	ranked, err := l.Rank(context.Background(), "proj1", opts)
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	ids := make([]string, len(ranked))
	for i, item := range ranked {
		ids[i] = item.ID
	}
	return ids
}

func TestClampLens(t *testing.T) {
	cases := []struct{ in, want float64 }{
		{0, 1.0},
		{0.1, 0.25},
		{0.25, 0.25},
		{1.0, 1.0},
		{2.0, 2.0},
		{5.0, 2.0},
	}
	for _, tc := range cases {
		if got := ClampLens(tc.in); got != tc.want {
			t.Errorf("ClampLens(%f) = %f, want %f", tc.in, got, tc.want)
		}
	}
}

func TestRankExcludesMuted(t *testing.T) {
	muted := testItem("muted")
	muted.Mute(time.Now().UTC())
	store := &fakeStore{items: []*memory.LearningItem{testItem("a"), muted}}

	l := newTestLens(t, store, nil, Config{})
	ids := rankIDs(t, l, Options{})

	for _, id := range ids {
		if id == "muted" {
			t.Fatal("muted item must never be surfaced")
		}
	}
	if len(ids) != 1 {
		t.Errorf("expected 1 item, got %d", len(ids))
	}
}

func TestRankPinnedAlwaysIncluded(t *testing.T) {
	pinned := testItem("pinned")
	pinned.Pin(time.Now().UTC())
	// Pinned item has the lowest raw appeal; high-usage items would
	// normally crowd it out of a budget of one.
	a := testItem("a")
	a.UsageCount = 50
	b := testItem("b")
	b.UsageCount = 40
	store := &fakeStore{items: []*memory.LearningItem{a, b, pinned}}

	l := newTestLens(t, store, nil, Config{BaseItems: 1})
	ids := rankIDs(t, l, Options{})

	if len(ids) != 2 {
		t.Fatalf("expected pinned plus one budgeted item, got %v", ids)
	}
	if ids[0] != "pinned" {
		t.Errorf("pinned item must lead the ranking, got %v", ids)
	}
}

func TestRankPinnedSkipsDecay(t *testing.T) {
	old := time.Now().UTC().Add(-200 * 24 * time.Hour)
	pinned := testItem("pinned")
	pinned.Pin(time.Now().UTC())
	pinned.CreatedAt = old
	stale := testItem("stale")
	stale.CreatedAt = old
	store := &fakeStore{items: []*memory.LearningItem{stale, pinned}}

	l := newTestLens(t, store, nil, Config{})
	sig := memory.GeneralSignal()
	now := time.Now().UTC()

	pinnedScore := l.score(pinned, sig, nil, nil, now)
	staleScore := l.score(stale, sig, nil, nil, now)

	if pinnedScore <= staleScore {
		t.Errorf("pinned must not decay: pinned=%f stale=%f", pinnedScore, staleScore)
	}
	if math.Abs(pinnedScore-1.0) > 1e-9 {
		t.Errorf("expected undecayed base score 1.0, got %f", pinnedScore)
	}
}

func TestRankFocusDomainBoost(t *testing.T) {
	a := testItem("a", "coding")
	b := testItem("b", "legal")
	store := &fakeStore{items: []*memory.LearningItem{a, b}}

	l := newTestLens(t, store, nil, Config{})

	ids := rankIDs(t, l, Options{FocusDomains: []string{"legal"}})
	if ids[0] != "b" {
		t.Errorf("focused domain must rank first, got %v", ids)
	}

	ids = rankIDs(t, l, Options{FocusDomains: []string{"coding"}})
	if ids[0] != "a" {
		t.Errorf("focused domain must rank first, got %v", ids)
	}
}

func TestRankFocusBoostIsFifteenPercent(t *testing.T) {
	l := newTestLens(t, &fakeStore{}, nil, Config{})
	sig := memory.GeneralSignal()
	now := time.Now().UTC()

	item := testItem("a", "coding")
	item.CreatedAt = now
	plain := l.score(item, sig, nil, nil, now)
	boosted := l.score(item, sig, nil, map[string]bool{"coding": true}, now)

	if math.Abs(boosted/plain-1.15) > 1e-9 {
		t.Errorf("expected 15%% boost, got ratio %f", boosted/plain)
	}
}

func TestRankBudgetScalesWithLens(t *testing.T) {
	var items []*memory.LearningItem
	for _, id := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		items = append(items, testItem(id))
	}
	store := &fakeStore{items: items}
	l := newTestLens(t, store, nil, Config{BaseItems: 4})

	if got := len(rankIDs(t, l, Options{Lens: 1.0})); got != 4 {
		t.Errorf("lens 1.0: expected 4 items, got %d", got)
	}
	if got := len(rankIDs(t, l, Options{Lens: 2.0})); got != 8 {
		t.Errorf("lens 2.0: expected 8 items, got %d", got)
	}
	if got := len(rankIDs(t, l, Options{Lens: 0.25})); got != 1 {
		t.Errorf("lens 0.25: expected 1 item, got %d", got)
	}
}

func TestRankDomainSignalAffinity(t *testing.T) {
	sig := &memory.DomainSignal{
		Primary: "coding",
		Domains: []memory.DomainScore{
			{Domain: "coding", Confidence: 1.0},
			{Domain: "devops", Confidence: 0.4},
		},
		ComputedAt: time.Now().UTC(),
	}
	a := testItem("a", "devops")
	b := testItem("b", "coding")
	c := testItem("c", "legal")
	store := &fakeStore{items: []*memory.LearningItem{a, b, c}, sig: sig}

	l := newTestLens(t, store, nil, Config{})
	ids := rankIDs(t, l, Options{})

	if ids[0] != "b" || ids[1] != "a" || ids[2] != "c" {
		t.Errorf("expected signal-aligned order b,a,c, got %v", ids)
	}
}

func TestRankQuerySimilarity(t *testing.T) {
	embedder := hash.New(64)
	a := testItem("a")
	a.Content = "always run migrations inside a transaction"
	b := testItem("b")
	b.Content = "prefer table-driven tests for parsers"

	ctx := context.Background()
	for _, item := range []*memory.LearningItem{a, b} {
		vec, err := embedder.Embed(ctx, item.Content)
		if err != nil {
			t.Fatalf("Embed: %v", err)
		}
		item.Embedding = vec
	}

	store := &fakeStore{items: []*memory.LearningItem{b, a}}
	l := newTestLens(t, store, embedder, Config{})

	ids := rankIDs(t, l, Options{Query: "always run migrations inside a transaction"})
	if ids[0] != "a" {
		t.Errorf("query-identical item must rank first, got %v", ids)
	}
}

func TestFormatInjection(t *testing.T) {
	pinned := testItem("a")
	pinned.Pin(time.Now().UTC())
	pinned.Content = "short fact"
	items := []*memory.LearningItem{pinned, testItem("b")}

	out := FormatInjection(items, 1.0, 0)
	if out == "" {
		t.Fatal("expected non-empty block")
	}
	if want := "=== PROJECT MEMORY ==="; !strings.Contains(out, want) {
		t.Errorf("missing header in %q", out)
	}
	if !strings.Contains(out, "[pinned]") {
		t.Errorf("missing pinned marker in %q", out)
	}

	if got := FormatInjection(nil, 1.0, 0); got != "" {
		t.Errorf("empty input must render empty, got %q", got)
	}
}

func TestFormatInjectionTruncates(t *testing.T) {
	long := testItem("a")
	for len(long.Content) < 5000 {
		long.Content += " more context about the same fact"
	}
	out := FormatInjection([]*memory.LearningItem{long}, 0.25, 400)

	// Budget 400*0.25 = 100 chars for one item.
	if len(out) > 200 {
		t.Errorf("expected tight truncation, got %d chars", len(out))
	}
	if !strings.Contains(out, "...") {
		t.Errorf("expected ellipsis in truncated output")
	}
}
