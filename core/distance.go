package core

import (
	"fmt"
	"math"
)

// CosineSimilarity calculates cosine similarity between two vectors.
// Returns similarity score (higher = more similar).
func CosineSimilarity(a, b []float32) (float32, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vector dimensions must match: %d != %d", len(a), len(b))
	}

	var dotProduct, normA, normB float32
	for i := range a {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0, nil
	}

	return dotProduct / (float32(math.Sqrt(float64(normA))) * float32(math.Sqrt(float64(normB)))), nil
}

// CosineDistance calculates cosine distance (1 - cosine similarity).
// Returns distance score (lower = more similar).
func CosineDistance(a, b []float32) (float32, error) {
	similarity, err := CosineSimilarity(a, b)
	if err != nil {
		return 0, err
	}
	return 1 - similarity, nil
}

// Normalize returns a copy of v scaled to unit L2 norm. A zero vector is
// returned unchanged.
func Normalize(v []float32) []float32 {
	var sum float32
	for _, x := range v {
		sum += x * x
	}
	out := make([]float32, len(v))
	if sum == 0 {
		copy(out, v)
		return out
	}
	norm := float32(math.Sqrt(float64(sum)))
	for i, x := range v {
		out[i] = x / norm
	}
	return out
}

// WeightedSum returns wa*a + wb*b. Both vectors must share a dimension.
func WeightedSum(a, b []float32, wa, wb float32) ([]float32, error) {
	if len(a) != len(b) {
		return nil, fmt.Errorf("vector dimensions must match: %d != %d", len(a), len(b))
	}
	out := make([]float32, len(a))
	for i := range a {
		out[i] = wa*a[i] + wb*b[i]
	}
	return out, nil
}

// ClampScore bounds a similarity score to [0, 1].
func ClampScore(s float32) float32 {
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}
