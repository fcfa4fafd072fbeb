package memory

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"
)

// ProviderState is the embedding provider lifecycle state.
type ProviderState int

const (
	StateUnloaded ProviderState = iota
	StateLoading
	StateReady
	StateFailed
)

func (s ProviderState) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// OpenFunc acquires the underlying embedding backend. It is invoked lazily
// on the first Embed call and may be expensive (model load).
type OpenFunc func(ctx context.Context) (Embedder, error)

// ProviderConfig tunes the provider's load behavior.
type ProviderConfig struct {
	// Dimensions is the embedding vector size. Required; used for the
	// zero-vector fast path before the backend is loaded.
	Dimensions int

	// MaxAttempts bounds load retries before the provider enters Failed.
	MaxAttempts int

	// BaseDelay seeds the exponential backoff between load attempts:
	// BaseDelay * 2^attempt, capped at MaxDelay, with +-JitterFraction
	// jitter applied.
	BaseDelay      time.Duration
	MaxDelay       time.Duration
	JitterFraction float64
}

// DefaultProviderConfig returns the standard load policy: three attempts,
// 500ms base delay capped at 8s, +-30% jitter.
func DefaultProviderConfig(dimensions int) ProviderConfig {
	return ProviderConfig{
		Dimensions:     dimensions,
		MaxAttempts:    3,
		BaseDelay:      500 * time.Millisecond,
		MaxDelay:       8 * time.Second,
		JitterFraction: 0.3,
	}
}

// Provider wraps an embedding backend with lazy, single-flight acquisition.
//
// The provider is the one piece of shared mutable state in the engine: a
// single long-lived instance is constructed at startup and injected into
// every consumer. Concurrent first-callers block on one load instead of
// triggering duplicates; once Ready, Embed calls run concurrently without
// further locking. After the retry budget is exhausted the provider stays
// Failed and surfaces the load error to every caller until Reset.
type Provider struct {
	open OpenFunc
	cfg  ProviderConfig

	mu      sync.Mutex
	state   ProviderState
	backend Embedder
	loadErr error
	loading chan struct{} // closed when the in-flight load finishes
}

// NewProvider creates a provider around the backend factory. The backend
// is not loaded until the first non-empty Embed call.
func NewProvider(open OpenFunc, cfg ProviderConfig) (*Provider, error) {
	if open == nil {
		return nil, &ConfigError{Field: "open", Reason: "backend factory is required"}
	}
	if cfg.Dimensions <= 0 {
		return nil, &ConfigError{Field: "dimensions", Reason: "must be positive"}
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 500 * time.Millisecond
	}
	if cfg.MaxDelay < cfg.BaseDelay {
		cfg.MaxDelay = 8 * time.Second
	}
	if cfg.JitterFraction < 0 || cfg.JitterFraction >= 1 {
		cfg.JitterFraction = 0.3
	}
	return &Provider{
		open:  open,
		cfg:   cfg,
		state: StateUnloaded,
	}, nil
}

// Dimensions returns the configured embedding size.
func (p *Provider) Dimensions() int { return p.cfg.Dimensions }

// State returns the current lifecycle state.
func (p *Provider) State() ProviderState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Embed converts text to a unit-length embedding vector. The input is
// normalized (trim, collapse whitespace) first; empty or whitespace-only
// input returns the zero vector without touching the backend.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	text = NormalizeText(text)
	if text == "" {
		return make([]float32, p.cfg.Dimensions), nil
	}

	backend, err := p.ensureReady(ctx)
	if err != nil {
		return nil, err
	}

	vec, err := backend.Embed(ctx, text)
	if err != nil {
		return nil, &TransientError{Op: "embed", Err: err}
	}
	return Normalize(vec), nil
}

// Reset moves a Failed provider back to Unloaded so the next Embed call
// attempts a fresh load. It is a no-op in any other state.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == StateFailed {
		p.state = StateUnloaded
		p.loadErr = nil
	}
}

// ensureReady returns the loaded backend, starting or awaiting a load as
// needed. Exactly one goroutine runs the load; everyone else waits on it.
func (p *Provider) ensureReady(ctx context.Context) (Embedder, error) {
	p.mu.Lock()
	switch p.state {
	case StateReady:
		backend := p.backend
		p.mu.Unlock()
		return backend, nil

	case StateFailed:
		err := p.loadErr
		p.mu.Unlock()
		return nil, err

	case StateUnloaded:
		p.state = StateLoading
		p.loading = make(chan struct{})
		go p.load(p.loading)
	}

	done := p.loading
	p.mu.Unlock()

	select {
	case <-done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == StateReady {
		return p.backend, nil
	}
	return nil, p.loadErr
}

// load runs the bounded retry loop and publishes the outcome. It does not
// hold the mutex while the backend factory runs.
func (p *Provider) load(done chan struct{}) {
	var backend Embedder
	var err error

	for attempt := 0; attempt < p.cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := p.backoffDelay(attempt - 1)
			log.Printf("[PROVIDER] Load attempt %d failed, retrying in %s: %v", attempt, delay, err)
			time.Sleep(delay)
		}

		backend, err = p.open(context.Background())
		if err == nil {
			break
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err != nil {
		p.state = StateFailed
		p.loadErr = &TransientError{Op: "load embedder", Err: fmt.Errorf("after %d attempts: %w", p.cfg.MaxAttempts, err)}
		log.Printf("[PROVIDER] Load failed permanently after %d attempts: %v", p.cfg.MaxAttempts, err)
	} else {
		p.backend = backend
		p.state = StateReady
		log.Printf("[PROVIDER] Backend ready (%d dimensions)", backend.Dimensions())
	}
	close(done)
}

// backoffDelay computes BaseDelay * 2^attempt capped at MaxDelay with
// +-JitterFraction jitter.
func (p *Provider) backoffDelay(attempt int) time.Duration {
	delay := p.cfg.BaseDelay
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= p.cfg.MaxDelay {
			delay = p.cfg.MaxDelay
			break
		}
	}

	jitter := float64(delay) * p.cfg.JitterFraction
	offset := (rand.Float64()*2 - 1) * jitter
	delay = time.Duration(float64(delay) + offset)
	if delay < 0 {
		delay = 0
	}
	return delay
}
