//go:build !onnx

package main

import (
	"github.com/becomeliminal/conductor/config"
	"github.com/becomeliminal/conductor/memory"
)

func newONNXOpen(cfg config.EmbedderConfig) (memory.OpenFunc, error) {
	return nil, &memory.ConfigError{
		Field:  "embedder.kind",
		Reason: "onnx embedder requires a build with the onnx tag",
	}
}
