// Package maintain sequences the write-heavy memory maintenance jobs.
//
// Compaction deletes items; link backfill reads co-occurrence rows that
// reference items. Running them concurrently for the same project would
// race, so the runner holds a per-project advisory lock around the whole
// sequence. Read paths (lens ranking, confidence lookup) never take the
// lock and may run concurrently with anything.
package maintain

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/becomeliminal/conductor/compact"
	"github.com/becomeliminal/conductor/links"
	"github.com/becomeliminal/conductor/memory"
	"github.com/becomeliminal/conductor/metrics"
)

// Compactor deduplicates a project's items.
type Compactor interface {
	Compact(ctx context.Context, projectID string) (*compact.Result, error)
}

// Backfiller materializes links from co-occurrence evidence.
type Backfiller interface {
	Backfill(ctx context.Context, projectID string) (*links.Result, error)
}

// Scorer recomputes project confidence.
type Scorer interface {
	Recalculate(ctx context.Context, projectID string) (float64, error)
}

// ProjectLocks hands out one mutex per project ID.
type ProjectLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewProjectLocks creates an empty lock table.
func NewProjectLocks() *ProjectLocks {
	return &ProjectLocks{locks: make(map[string]*sync.Mutex)}
}

// Get returns the mutex for a project, creating it on first use.
func (p *ProjectLocks) Get(projectID string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	lock, ok := p.locks[projectID]
	if !ok {
		lock = &sync.Mutex{}
		p.locks[projectID] = lock
	}
	return lock
}

// Report summarizes one maintenance run.
type Report struct {
	Compaction *compact.Result
	Links      *links.Result
	Confidence float64
	Duration   time.Duration
}

// Runner executes compact, backfill, and confidence recalculation in order
// under the project lock.
type Runner struct {
	compactor Compactor
	linker    Backfiller
	scorer    Scorer
	locks     *ProjectLocks
	metrics   *metrics.Metrics
}

// NewRunner creates a maintenance runner. Metrics may be nil.
func NewRunner(compactor Compactor, linker Backfiller, scorer Scorer, m *metrics.Metrics) (*Runner, error) {
	if compactor == nil || linker == nil || scorer == nil {
		return nil, &memory.ConfigError{Field: "runner", Reason: "compactor, linker, and scorer are all required"}
	}
	return &Runner{
		compactor: compactor,
		linker:    linker,
		scorer:    scorer,
		locks:     NewProjectLocks(),
		metrics:   m,
	}, nil
}

// ErrMaintenanceRunning is returned when a run is skipped because another
// run for the same project is already in flight.
var ErrMaintenanceRunning = fmt.Errorf("maintenance already running for project")

// RunOnce performs one full maintenance pass for a project. If another pass
// holds the project lock, the run is skipped with ErrMaintenanceRunning
// rather than queued behind it.
func (r *Runner) RunOnce(ctx context.Context, projectID string) (*Report, error) {
	lock := r.locks.Get(projectID)
	if !lock.TryLock() {
		return nil, fmt.Errorf("%w: %s", ErrMaintenanceRunning, projectID)
	}
	defer lock.Unlock()

	start := time.Now()
	report := &Report{}

	compacted, err := r.compactor.Compact(ctx, projectID)
	if err != nil {
		r.countRun(projectID, "error")
		return nil, fmt.Errorf("compaction for %s: %w", projectID, err)
	}
	report.Compaction = compacted

	linked, err := r.linker.Backfill(ctx, projectID)
	if err != nil {
		r.countRun(projectID, "error")
		return nil, fmt.Errorf("link backfill for %s: %w", projectID, err)
	}
	report.Links = linked

	score, err := r.scorer.Recalculate(ctx, projectID)
	if err != nil {
		r.countRun(projectID, "error")
		return nil, fmt.Errorf("confidence for %s: %w", projectID, err)
	}
	report.Confidence = score
	report.Duration = time.Since(start)

	r.observe(projectID, report)
	log.Printf("[MAINTAIN] Project %s: merged=%d links=%d/%d confidence=%.1f (%s)",
		projectID, compacted.ItemsMerged, linked.LinksCreated, linked.LinksUpdated,
		score, report.Duration.Round(time.Millisecond))
	return report, nil
}

// RunEvery repeats RunOnce on a fixed interval until the context is
// cancelled. A skipped or failed run is logged and does not stop the loop.
func (r *Runner) RunEvery(ctx context.Context, projectID string, interval time.Duration) error {
	if interval <= 0 {
		return &memory.ConfigError{Field: "interval", Reason: "must be positive"}
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := r.RunOnce(ctx, projectID); err != nil {
			log.Printf("[MAINTAIN] Project %s: run failed: %v", projectID, err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (r *Runner) countRun(projectID, outcome string) {
	if r.metrics == nil {
		return
	}
	r.metrics.MaintenanceRuns.WithLabelValues(projectID, outcome).Inc()
}

func (r *Runner) observe(projectID string, report *Report) {
	if r.metrics == nil {
		return
	}
	r.metrics.MaintenanceRuns.WithLabelValues(projectID, "ok").Inc()
	r.metrics.MaintenanceDuration.WithLabelValues(projectID).Observe(report.Duration.Seconds())
	r.metrics.ItemsMerged.WithLabelValues(projectID).Add(float64(report.Compaction.ItemsMerged))
	r.metrics.ClustersFound.WithLabelValues(projectID).Add(float64(report.Compaction.ClustersFound))
	r.metrics.MergeFailures.WithLabelValues(projectID).Add(float64(report.Compaction.Failed))
	r.metrics.LinksCreated.WithLabelValues(projectID).Add(float64(report.Links.LinksCreated))
	r.metrics.LinksUpdated.WithLabelValues(projectID).Add(float64(report.Links.LinksUpdated))
	r.metrics.LinkSkips.WithLabelValues(projectID).Add(float64(report.Links.Skipped))
	r.metrics.ConfidenceScore.WithLabelValues(projectID).Set(report.Confidence)
}
