package main

import (
	"context"
	"fmt"

	"github.com/becomeliminal/conductor/classify"
	"github.com/becomeliminal/conductor/compact"
	"github.com/becomeliminal/conductor/confidence"
	"github.com/becomeliminal/conductor/config"
	"github.com/becomeliminal/conductor/lens"
	"github.com/becomeliminal/conductor/links"
	"github.com/becomeliminal/conductor/maintain"
	"github.com/becomeliminal/conductor/memory"
	"github.com/becomeliminal/conductor/memory/embedder/hash"
	"github.com/becomeliminal/conductor/memory/store/sqlite"
	"github.com/becomeliminal/conductor/metrics"
)

// app wires the engine together for one CLI invocation.
type app struct {
	cfg      *config.Config
	store    *sqlite.Store
	embedder memory.Embedder // instrumented provider
	metrics  *metrics.Metrics
}

func newApp(ctx context.Context, configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	store, err := sqlite.New(ctx, cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	open, err := newOpenFunc(cfg.Embedder)
	if err != nil {
		store.Close()
		return nil, err
	}
	provider, err := memory.NewProvider(open, memory.DefaultProviderConfig(cfg.Embedder.Dimensions))
	if err != nil {
		store.Close()
		return nil, err
	}

	m := metrics.NewMetrics()
	return &app{
		cfg:      cfg,
		store:    store,
		embedder: metrics.InstrumentEmbedder(provider, m),
		metrics:  m,
	}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

// newOpenFunc returns the lazy backend constructor for the configured
// embedder kind. The onnx kind is only available in builds with the onnx
// tag; see embedder_onnx.go.
func newOpenFunc(cfg config.EmbedderConfig) (memory.OpenFunc, error) {
	switch cfg.Kind {
	case "", "hash":
		return func(ctx context.Context) (memory.Embedder, error) {
			return hash.New(cfg.Dimensions), nil
		}, nil
	case "onnx":
		return newONNXOpen(cfg)
	default:
		return nil, &memory.ConfigError{Field: "embedder.kind", Reason: fmt.Sprintf("unknown kind %q", cfg.Kind)}
	}
}

func (a *app) manager() (*memory.Manager, error) {
	return memory.NewManager(a.store, a.embedder, a.store)
}

func (a *app) compactor() (*compact.Engine, error) {
	return compact.New(a.store, compact.Config{Threshold: a.cfg.Compaction.Threshold})
}

func (a *app) linker() (*links.Engine, error) {
	return links.New(a.store, links.Config{MinCount: a.cfg.Links.MinCount})
}

func (a *app) scorer() (*confidence.Scorer, error) {
	return confidence.New(a.store, a.store)
}

func (a *app) classifier() (*classify.Classifier, error) {
	return classify.New(a.store, a.store, classify.Config{SampleSize: a.cfg.Classify.SampleSize})
}

func (a *app) lens() (*lens.Lens, error) {
	return lens.New(a.store, a.embedder, lens.Config{
		BaseItems: a.cfg.Lens.BaseItems,
		BaseChars: a.cfg.Lens.BaseChars,
	})
}

func (a *app) runner() (*maintain.Runner, error) {
	compactor, err := a.compactor()
	if err != nil {
		return nil, err
	}
	linker, err := a.linker()
	if err != nil {
		return nil, err
	}
	scorer, err := a.scorer()
	if err != nil {
		return nil, err
	}
	return maintain.NewRunner(compactor, linker, scorer, a.metrics)
}
