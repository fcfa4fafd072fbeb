// Package metrics registers Prometheus instrumentation for the curation
// engine's batch jobs and embedding provider.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the engine.
type Metrics struct {
	// Compaction metrics
	ItemsMerged     *prometheus.CounterVec
	ClustersFound   *prometheus.CounterVec
	MergeFailures   *prometheus.CounterVec
	CompactDuration *prometheus.HistogramVec

	// Link inference metrics
	LinksCreated     *prometheus.CounterVec
	LinksUpdated     *prometheus.CounterVec
	LinkSkips        *prometheus.CounterVec
	BackfillDuration *prometheus.HistogramVec

	// Embedding provider metrics
	EmbedRequests prometheus.Counter
	EmbedFailures prometheus.Counter

	// Maintenance metrics
	MaintenanceRuns     *prometheus.CounterVec
	MaintenanceDuration *prometheus.HistogramVec

	// Confidence metrics
	ConfidenceScore *prometheus.GaugeVec
}

var (
	metricsOnce   sync.Once
	sharedMetrics *Metrics
)

// NewMetrics creates and registers all engine metrics. Repeated calls return
// the same shared instance.
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		sharedMetrics = &Metrics{
			ItemsMerged: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "conductor_compact_items_merged_total",
					Help: "Learning items absorbed by compaction merges",
				},
				[]string{"project_id"},
			),
			ClustersFound: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "conductor_compact_clusters_total",
					Help: "Duplicate clusters found by compaction",
				},
				[]string{"project_id"},
			),
			MergeFailures: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "conductor_compact_merge_failures_total",
					Help: "Cluster merges that failed and were skipped",
				},
				[]string{"project_id"},
			),
			CompactDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "conductor_compact_duration_seconds",
					Help:    "Duration of compaction runs in seconds",
					Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
				},
				[]string{"project_id"},
			),
			LinksCreated: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "conductor_links_created_total",
					Help: "Links created from co-occurrence evidence",
				},
				[]string{"project_id"},
			),
			LinksUpdated: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "conductor_links_updated_total",
					Help: "Links strengthened by new evidence",
				},
				[]string{"project_id"},
			),
			LinkSkips: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "conductor_links_skipped_total",
					Help: "Co-occurrence pairs skipped during backfill",
				},
				[]string{"project_id"},
			),
			BackfillDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "conductor_backfill_duration_seconds",
					Help:    "Duration of link backfill runs in seconds",
					Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
				},
				[]string{"project_id"},
			),
			EmbedRequests: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "conductor_embed_requests_total",
					Help: "Embedding requests served",
				},
			),
			EmbedFailures: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "conductor_embed_failures_total",
					Help: "Embedding requests that failed",
				},
			),
			MaintenanceRuns: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "conductor_maintenance_runs_total",
					Help: "Maintenance runs by outcome",
				},
				[]string{"project_id", "outcome"},
			),
			MaintenanceDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "conductor_maintenance_duration_seconds",
					Help:    "Duration of full maintenance runs in seconds",
					Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
				},
				[]string{"project_id"},
			),
			ConfidenceScore: promauto.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "conductor_project_confidence",
					Help: "Last computed project confidence score (0-100)",
				},
				[]string{"project_id"},
			),
		}
	})
	return sharedMetrics
}
