package metrics

import (
	"context"

	"github.com/becomeliminal/conductor/memory"
)

// InstrumentedEmbedder counts embedding requests and failures around any
// memory.Embedder.
type InstrumentedEmbedder struct {
	inner   memory.Embedder
	metrics *Metrics
}

var _ memory.Embedder = (*InstrumentedEmbedder)(nil)

// InstrumentEmbedder wraps an embedder with request/failure counters.
func InstrumentEmbedder(inner memory.Embedder, m *Metrics) *InstrumentedEmbedder {
	return &InstrumentedEmbedder{inner: inner, metrics: m}
}

func (e *InstrumentedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.metrics.EmbedRequests.Inc()
	vec, err := e.inner.Embed(ctx, text)
	if err != nil {
		e.metrics.EmbedFailures.Inc()
	}
	return vec, err
}

func (e *InstrumentedEmbedder) Dimensions() int {
	return e.inner.Dimensions()
}
