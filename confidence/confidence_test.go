package confidence

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/becomeliminal/conductor/memory"
)

type fakeStore struct {
	items []*memory.LearningItem
	puts  int
	last  *memory.ProjectConfidence
}

func (f *fakeStore) ListItems(ctx context.Context, projectID string) ([]*memory.LearningItem, error) {
	return f.items, nil
}

func (f *fakeStore) PutConfidence(ctx context.Context, projectID string, conf *memory.ProjectConfidence) error {
	f.puts++
	f.last = conf
	return nil
}

type fakeLog struct {
	positive, total int
}

func (f *fakeLog) InteractionCounts(ctx context.Context, projectID string) (int, int, error) {
	return f.positive, f.total, nil
}

func freshItem(id string, now time.Time) *memory.LearningItem {
	return &memory.LearningItem{ID: id, ProjectID: "proj1", Type: memory.TypePattern, CreatedAt: now}
}

func TestScoreReferenceScenario(t *testing.T) {
	// 4 fresh items, 2 verified, 2 recurring, no interaction log:
	// 100 * (1.0*0.1 + 0.5*0.4 + 0.5*0.2 + 1.0*0.3) = 70.0
	now := time.Now().UTC()
	items := []*memory.LearningItem{
		freshItem("a", now), freshItem("b", now), freshItem("c", now), freshItem("d", now),
	}
	items[0].VerifiedAt = &now
	items[1].VerifiedAt = &now
	items[2].UsageCount = 3
	items[3].UsageCount = 2

	got := Score(items, 0, 0, now)
	if math.Abs(got-70.0) > 0.01 {
		t.Fatalf("expected 70.0, got %f", got)
	}
}

func TestScoreEmptyProjectNeutral(t *testing.T) {
	if got := Score(nil, 0, 0, time.Now()); got != NeutralScore {
		t.Errorf("expected neutral %f, got %f", NeutralScore, got)
	}
}

func TestScoreInteractionRate(t *testing.T) {
	now := time.Now().UTC()
	items := []*memory.LearningItem{freshItem("a", now)}

	// 3 of 4 positive: 100 * (0.75*0.1 + 0 + 0 + 1.0*0.3) = 37.5
	got := Score(items, 3, 4, now)
	if math.Abs(got-37.5) > 0.01 {
		t.Errorf("expected 37.5, got %f", got)
	}
}

func TestScoreDecayLowersOldMemory(t *testing.T) {
	now := time.Now().UTC()
	fresh := Score([]*memory.LearningItem{freshItem("a", now)}, 0, 0, now)

	old := freshItem("b", now.Add(-365*24*time.Hour))
	aged := Score([]*memory.LearningItem{old}, 0, 0, now)

	if aged >= fresh {
		t.Errorf("year-old memory must score below fresh memory: %f >= %f", aged, fresh)
	}
	// 0.99^365 is near zero, so only the interaction weight survives.
	if aged > 11.0 {
		t.Errorf("expected near-total decay, got %f", aged)
	}
}

func TestScoreRepeatable(t *testing.T) {
	now := time.Now().UTC()
	items := []*memory.LearningItem{freshItem("a", now), freshItem("b", now)}
	items[0].VerifiedAt = &now

	a := Score(items, 2, 5, now)
	b := Score(items, 2, 5, now)
	if a != b {
		t.Errorf("score must be repeatable: %f vs %f", a, b)
	}
}

func TestRecalculatePersists(t *testing.T) {
	now := time.Now().UTC()
	store := &fakeStore{items: []*memory.LearningItem{freshItem("a", now)}}
	s, err := New(store, &fakeLog{positive: 1, total: 1})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	score, err := s.Recalculate(context.Background(), "proj1")
	if err != nil {
		t.Fatalf("Recalculate: %v", err)
	}
	if store.puts != 1 {
		t.Fatalf("expected score persisted once, got %d", store.puts)
	}
	if store.last.Score != score {
		t.Errorf("persisted %f, returned %f", store.last.Score, score)
	}
}

func TestRecalculateNilLogUsesOptimisticDefault(t *testing.T) {
	now := time.Now().UTC()
	store := &fakeStore{items: []*memory.LearningItem{freshItem("a", now)}}
	s, err := New(store, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	score, err := s.Recalculate(context.Background(), "proj1")
	if err != nil {
		t.Fatalf("Recalculate: %v", err)
	}
	// 100 * (1.0*0.1 + 1.0*0.3) = 40 for a single fresh unverified item.
	if math.Abs(score-40.0) > 0.01 {
		t.Errorf("expected 40.0, got %f", score)
	}
}
