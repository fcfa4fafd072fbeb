//go:build onnx

package main

import (
	"context"

	"github.com/becomeliminal/conductor/config"
	"github.com/becomeliminal/conductor/memory"
	"github.com/becomeliminal/conductor/memory/embedder/onnx"
)

func newONNXOpen(cfg config.EmbedderConfig) (memory.OpenFunc, error) {
	return func(ctx context.Context) (memory.Embedder, error) {
		return onnx.New(onnx.Config{
			ModelPath:     cfg.ModelPath,
			TokenizerPath: cfg.TokenizerPath,
			LibraryPath:   cfg.LibraryPath,
			Dimensions:    cfg.Dimensions,
		})
	}, nil
}
