package memory

import (
	"math"
	"strings"
)

// Normalize converts a vector to unit length. The zero vector is returned
// unchanged.
func Normalize(vec []float32) []float32 {
	var norm float32
	for _, v := range vec {
		norm += v * v
	}

	if norm == 0 {
		return vec
	}

	norm = float32(math.Sqrt(float64(norm)))
	normalized := make([]float32, len(vec))
	for i, v := range vec {
		normalized[i] = v / norm
	}

	return normalized
}

// CosineSimilarity computes cosine similarity between two vectors.
// Mismatched lengths and zero vectors yield 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0.0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i] * b[i])
		normA += float64(a[i] * a[i])
		normB += float64(b[i] * b[i])
	}

	if normA == 0 || normB == 0 {
		return 0.0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// NormalizeText trims and collapses internal whitespace so embeddings stay
// stable across callers.
func NormalizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
