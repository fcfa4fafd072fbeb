// Package hash provides a deterministic, dependency-free embedding backend.
//
// Vectors are derived from an FNV hash of the input text, so identical text
// always embeds identically and the engine's clustering, ranking, and
// caching paths are exercisable offline. The vectors carry no semantic
// signal; production deployments use the ONNX backend.
package hash

import (
	"context"
	"hash/fnv"
	"math"
)

// Embedder generates deterministic hash-based embeddings.
type Embedder struct {
	dimensions int
}

// New creates a hash embedder with the given vector size.
func New(dimensions int) *Embedder {
	if dimensions <= 0 {
		dimensions = 384 // match all-MiniLM-L6-v2
	}
	return &Embedder{dimensions: dimensions}
}

// Embed creates a unit-length embedding seeded from the text hash.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	h := fnv.New64a()
	h.Write([]byte(text))
	seed := h.Sum64()

	vec := make([]float32, e.dimensions)
	for i := 0; i < e.dimensions; i++ {
		// LCG over the hash seed; maps to [-1, 1].
		seed = seed*6364136223846793005 + 1442695040888963407
		vec[i] = float32(int64(seed)) / float32(math.MaxInt64)
	}

	return normalize(vec), nil
}

// Dimensions returns the embedding size.
func (e *Embedder) Dimensions() int {
	return e.dimensions
}

func normalize(vec []float32) []float32 {
	var norm float32
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		return vec
	}

	norm = float32(math.Sqrt(float64(norm)))
	for i, v := range vec {
		vec[i] = v / norm
	}
	return vec
}
