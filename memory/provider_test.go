package memory

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// countingEmbedder is a deterministic backend that records call counts.
type countingEmbedder struct {
	dims   int
	embeds int32
}

func (e *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	atomic.AddInt32(&e.embeds, 1)
	vec := make([]float32, e.dims)
	for i := range vec {
		vec[i] = float32(len(text)%7 + i + 1)
	}
	return vec, nil
}

func (e *countingEmbedder) Dimensions() int { return e.dims }

func fastConfig(dims int) ProviderConfig {
	return ProviderConfig{
		Dimensions:     dims,
		MaxAttempts:    3,
		BaseDelay:      time.Millisecond,
		MaxDelay:       4 * time.Millisecond,
		JitterFraction: 0.3,
	}
}

func TestProviderEmptyInputZeroVector(t *testing.T) {
	loads := int32(0)
	p, err := NewProvider(func(ctx context.Context) (Embedder, error) {
		atomic.AddInt32(&loads, 1)
		return &countingEmbedder{dims: 8}, nil
	}, fastConfig(8))
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}

	for _, input := range []string{"", "   ", "\n\t "} {
		vec, err := p.Embed(context.Background(), input)
		if err != nil {
			t.Fatalf("Embed(%q): %v", input, err)
		}
		if len(vec) != 8 {
			t.Fatalf("expected dimension 8, got %d", len(vec))
		}
		for i, v := range vec {
			if v != 0 {
				t.Fatalf("expected zero vector, got %f at index %d", v, i)
			}
		}
	}

	// The zero-vector fast path must not trigger a backend load.
	if atomic.LoadInt32(&loads) != 0 {
		t.Errorf("expected no loads for empty input, got %d", loads)
	}
	if p.State() != StateUnloaded {
		t.Errorf("expected unloaded state, got %s", p.State())
	}
}

func TestProviderUnitLengthOutput(t *testing.T) {
	p, err := NewProvider(func(ctx context.Context) (Embedder, error) {
		return &countingEmbedder{dims: 16}, nil
	}, fastConfig(16))
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}

	vec, err := p.Embed(context.Background(), "sqlite handles concurrent readers fine")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v * v)
	}
	if math.Abs(math.Sqrt(norm)-1.0) > 1e-5 {
		t.Errorf("expected unit-length output, got norm %f", math.Sqrt(norm))
	}
	if p.State() != StateReady {
		t.Errorf("expected ready state, got %s", p.State())
	}
}

func TestProviderSingleFlightLoad(t *testing.T) {
	loads := int32(0)
	p, err := NewProvider(func(ctx context.Context) (Embedder, error) {
		atomic.AddInt32(&loads, 1)
		time.Sleep(10 * time.Millisecond) // widen the race window
		return &countingEmbedder{dims: 4}, nil
	}, fastConfig(4))
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}

	var wg sync.WaitGroup
	errs := make([]error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, errs[n] = p.Embed(context.Background(), "concurrent caller")
		}(i)
	}
	wg.Wait()

	for i, e := range errs {
		if e != nil {
			t.Fatalf("caller %d: %v", i, e)
		}
	}
	if got := atomic.LoadInt32(&loads); got != 1 {
		t.Errorf("expected exactly one load, got %d", got)
	}
}

func TestProviderRetriesThenFails(t *testing.T) {
	loads := int32(0)
	loadErr := errors.New("model file missing")
	p, err := NewProvider(func(ctx context.Context) (Embedder, error) {
		atomic.AddInt32(&loads, 1)
		return nil, loadErr
	}, fastConfig(4))
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}

	_, err = p.Embed(context.Background(), "anything")
	if err == nil {
		t.Fatal("expected load failure to surface")
	}
	if !IsTransient(err) {
		t.Errorf("expected transient error, got %T: %v", err, err)
	}
	if !errors.Is(err, loadErr) {
		t.Errorf("expected wrapped cause, got %v", err)
	}
	if got := atomic.LoadInt32(&loads); got != 3 {
		t.Errorf("expected 3 attempts, got %d", got)
	}
	if p.State() != StateFailed {
		t.Errorf("expected failed state, got %s", p.State())
	}

	// No silent retry: subsequent calls get the same error without new loads.
	_, err2 := p.Embed(context.Background(), "again")
	if err2 == nil {
		t.Fatal("expected failed provider to keep surfacing the error")
	}
	if got := atomic.LoadInt32(&loads); got != 3 {
		t.Errorf("failed state must not retry, got %d attempts", got)
	}
}

func TestProviderResetRetriggersLoad(t *testing.T) {
	loads := int32(0)
	p, err := NewProvider(func(ctx context.Context) (Embedder, error) {
		if atomic.AddInt32(&loads, 1) <= 3 {
			return nil, errors.New("backend down")
		}
		return &countingEmbedder{dims: 4}, nil
	}, fastConfig(4))
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}

	if _, err := p.Embed(context.Background(), "first"); err == nil {
		t.Fatal("expected initial load to fail")
	}

	p.Reset()
	if p.State() != StateUnloaded {
		t.Fatalf("expected unloaded after reset, got %s", p.State())
	}

	if _, err := p.Embed(context.Background(), "second"); err != nil {
		t.Fatalf("expected load to succeed after reset: %v", err)
	}
	if p.State() != StateReady {
		t.Errorf("expected ready state, got %s", p.State())
	}
}

func TestProviderDeterministicForSameInput(t *testing.T) {
	p, err := NewProvider(func(ctx context.Context) (Embedder, error) {
		return &countingEmbedder{dims: 8}, nil
	}, fastConfig(8))
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}

	// Differently-spaced renditions of the same normalized input must embed
	// identically.
	a, err := p.Embed(context.Background(), "use   contexts\n on blocking calls")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	b, err := p.Embed(context.Background(), " use contexts on blocking calls ")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}

	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("expected identical embeddings, diverged at index %d", i)
		}
	}
}
