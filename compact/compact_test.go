package compact

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/becomeliminal/conductor/memory"
)

// fakeStore keeps items in creation order and applies merges in memory.
type fakeStore struct {
	items     []*memory.LearningItem
	mergeErr  error
	mergeCall int
}

func (f *fakeStore) ListItems(ctx context.Context, projectID string) ([]*memory.LearningItem, error) {
	out := make([]*memory.LearningItem, len(f.items))
	copy(out, f.items)
	return out, nil
}

func (f *fakeStore) MergeCluster(ctx context.Context, prototype *memory.LearningItem, absorbedIDs []string) error {
	f.mergeCall++
	if f.mergeErr != nil {
		return f.mergeErr
	}
	gone := make(map[string]bool, len(absorbedIDs))
	for _, id := range absorbedIDs {
		gone[id] = true
	}
	var kept []*memory.LearningItem
	for _, item := range f.items {
		if gone[item.ID] {
			continue
		}
		if item.ID == prototype.ID {
			clone := *prototype
			kept = append(kept, &clone)
			continue
		}
		kept = append(kept, item)
	}
	f.items = kept
	return nil
}

func (f *fakeStore) find(id string) *memory.LearningItem {
	for _, item := range f.items {
		if item.ID == id {
			return item
		}
	}
	return nil
}

func testItem(id string, typ memory.ItemType, embedding []float32, created time.Time) *memory.LearningItem {
	return &memory.LearningItem{
		ID:        id,
		ProjectID: "proj1",
		Type:      typ,
		Content:   "content " + id,
		Embedding: embedding,
		CreatedAt: created,
	}
}

func newTestEngine(t *testing.T, store Store) *Engine {
	t.Helper()
	e, err := New(store, Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func TestCompactMergesDuplicates(t *testing.T) {
	base := time.Now().UTC()
	vec := []float32{1, 0, 0}
	store := &fakeStore{items: []*memory.LearningItem{
		testItem("a", memory.TypePattern, vec, base),
		testItem("b", memory.TypePattern, vec, base.Add(time.Minute)),
	}}
	store.items[0].UsageCount = 2
	store.items[1].UsageCount = 5

	e := newTestEngine(t, store)
	res, err := e.Compact(context.Background(), "proj1")
	if err != nil {
		t.Fatalf("Compact: %v", err)
	}

	if res.ClustersFound != 1 || res.ItemsMerged != 1 || res.PrototypesCreated != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if len(store.items) != 1 {
		t.Fatalf("expected 1 survivor, got %d", len(store.items))
	}
	survivor := store.items[0]
	if survivor.ID != "b" {
		t.Errorf("most-used item should win, got %s", survivor.ID)
	}
	if survivor.UsageCount != 7 {
		t.Errorf("usage counts must sum, got %d", survivor.UsageCount)
	}
}

func TestCompactIdempotent(t *testing.T) {
	base := time.Now().UTC()
	vec := []float32{0, 1, 0}
	store := &fakeStore{items: []*memory.LearningItem{
		testItem("a", memory.TypeDecision, vec, base),
		testItem("b", memory.TypeDecision, vec, base.Add(time.Second)),
		testItem("c", memory.TypeDecision, []float32{1, 0, 0}, base.Add(2*time.Second)),
	}}

	e := newTestEngine(t, store)
	first, err := e.Compact(context.Background(), "proj1")
	if err != nil {
		t.Fatalf("first Compact: %v", err)
	}
	if first.ItemsMerged != 1 {
		t.Fatalf("expected 1 merge on first run, got %d", first.ItemsMerged)
	}

	second, err := e.Compact(context.Background(), "proj1")
	if err != nil {
		t.Fatalf("second Compact: %v", err)
	}
	if second.ItemsMerged != 0 || second.ClustersFound != 0 {
		t.Errorf("second run must be a no-op, got %+v", second)
	}
}

func TestCompactCrossTypeSafety(t *testing.T) {
	base := time.Now().UTC()
	vec := []float32{1, 0, 0}
	store := &fakeStore{items: []*memory.LearningItem{
		testItem("a", memory.TypePattern, vec, base),
		testItem("b", memory.TypeInvariant, vec, base.Add(time.Second)),
	}}

	e := newTestEngine(t, store)
	res, err := e.Compact(context.Background(), "proj1")
	if err != nil {
		t.Fatalf("Compact: %v", err)
	}

	if res.ItemsMerged != 0 {
		t.Errorf("different types must never merge, got %d merged", res.ItemsMerged)
	}
	if len(store.items) != 2 {
		t.Errorf("expected both items to survive, got %d", len(store.items))
	}
}

func TestCompactSkipsItemsWithoutEmbedding(t *testing.T) {
	base := time.Now().UTC()
	vec := []float32{1, 0, 0}
	store := &fakeStore{items: []*memory.LearningItem{
		testItem("a", memory.TypePattern, vec, base),
		testItem("b", memory.TypePattern, nil, base.Add(time.Second)),
		testItem("c", memory.TypePattern, vec, base.Add(2*time.Second)),
	}}

	e := newTestEngine(t, store)
	res, err := e.Compact(context.Background(), "proj1")
	if err != nil {
		t.Fatalf("Compact: %v", err)
	}

	if res.ItemsMerged != 1 {
		t.Fatalf("expected a+c merge only, got %+v", res)
	}
	if store.find("b") == nil {
		t.Error("item without embedding must never be deleted")
	}
}

func TestCompactPrototypeTieBreaksOnRecency(t *testing.T) {
	base := time.Now().UTC()
	vec := []float32{0, 0, 1}
	store := &fakeStore{items: []*memory.LearningItem{
		testItem("old", memory.TypePattern, vec, base),
		testItem("new", memory.TypePattern, vec, base.Add(time.Hour)),
	}}

	e := newTestEngine(t, store)
	if _, err := e.Compact(context.Background(), "proj1"); err != nil {
		t.Fatalf("Compact: %v", err)
	}

	if len(store.items) != 1 || store.items[0].ID != "new" {
		t.Errorf("equal usage should prefer the most recent item, got %v", store.items)
	}
}

func TestCompactAggregatesLastUsed(t *testing.T) {
	base := time.Now().UTC()
	vec := []float32{1, 0, 0}
	older := base.Add(-time.Hour)
	newer := base.Add(-time.Minute)

	a := testItem("a", memory.TypePattern, vec, base)
	a.UsageCount = 9
	a.LastUsedAt = &older
	b := testItem("b", memory.TypePattern, vec, base.Add(time.Second))
	b.LastUsedAt = &newer
	store := &fakeStore{items: []*memory.LearningItem{a, b}}

	e := newTestEngine(t, store)
	if _, err := e.Compact(context.Background(), "proj1"); err != nil {
		t.Fatalf("Compact: %v", err)
	}

	survivor := store.find("a")
	if survivor == nil {
		t.Fatal("expected item a to survive as prototype")
	}
	if survivor.LastUsedAt == nil || !survivor.LastUsedAt.Equal(newer) {
		t.Errorf("lastUsedAt must be the cluster maximum, got %v", survivor.LastUsedAt)
	}
}

func TestCompactCountsFailedMerges(t *testing.T) {
	base := time.Now().UTC()
	vec := []float32{1, 0, 0}
	store := &fakeStore{
		items: []*memory.LearningItem{
			testItem("a", memory.TypePattern, vec, base),
			testItem("b", memory.TypePattern, vec, base.Add(time.Second)),
		},
		mergeErr: errors.New("disk full"),
	}

	e := newTestEngine(t, store)
	res, err := e.Compact(context.Background(), "proj1")
	if err != nil {
		t.Fatalf("Compact must not abort on a failed merge: %v", err)
	}

	if res.Failed != 1 || res.PrototypesCreated != 0 || res.ItemsMerged != 0 {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestCompactRespectsCancellation(t *testing.T) {
	base := time.Now().UTC()
	vec := []float32{1, 0, 0}
	store := &fakeStore{items: []*memory.LearningItem{
		testItem("a", memory.TypePattern, vec, base),
		testItem("b", memory.TypePattern, vec, base.Add(time.Second)),
	}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := newTestEngine(t, store)
	res, err := e.Compact(ctx, "proj1")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if res == nil || res.PrototypesCreated != 0 {
		t.Errorf("no merge should commit after cancellation, got %+v", res)
	}
	if store.mergeCall != 0 {
		t.Errorf("store must not be asked to merge after cancellation, got %d calls", store.mergeCall)
	}
}
