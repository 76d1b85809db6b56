package core

import (
	"math"
	"testing"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []float32
		expected float32
	}{
		{
			name:     "identical vectors",
			a:        []float32{1, 0, 0},
			b:        []float32{1, 0, 0},
			expected: 1.0,
		},
		{
			name:     "orthogonal vectors",
			a:        []float32{1, 0, 0},
			b:        []float32{0, 1, 0},
			expected: 0.0,
		},
		{
			name:     "opposite vectors",
			a:        []float32{1, 0, 0},
			b:        []float32{-1, 0, 0},
			expected: -1.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sim, err := CosineSimilarity(tt.a, tt.b)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if math.Abs(float64(sim-tt.expected)) > 1e-6 {
				t.Errorf("expected %f, got %f", tt.expected, sim)
			}
		})
	}
}

func TestCosineSimilarityDimensionMismatch(t *testing.T) {
	_, err := CosineSimilarity([]float32{1, 0}, []float32{1, 0, 0})
	if err == nil {
		t.Fatal("expected error for mismatched dimensions")
	}
}

func TestNormalize(t *testing.T) {
	v := Normalize([]float32{3, 4})

	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if math.Abs(math.Sqrt(norm)-1.0) > 1e-6 {
		t.Errorf("expected unit norm, got %f", math.Sqrt(norm))
	}
}

func TestNormalizeZeroVector(t *testing.T) {
	v := Normalize([]float32{0, 0, 0})
	for i, x := range v {
		if x != 0 {
			t.Errorf("component %d: expected 0, got %f", i, x)
		}
	}
}

func TestWeightedSum(t *testing.T) {
	sum, err := WeightedSum([]float32{1, 0}, []float32{0, 1}, 0.6, 0.4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(float64(sum[0])-0.6) > 1e-6 || math.Abs(float64(sum[1])-0.4) > 1e-6 {
		t.Errorf("expected [0.6 0.4], got %v", sum)
	}
}

func TestWeightedSumDimensionMismatch(t *testing.T) {
	_, err := WeightedSum([]float32{1, 0}, []float32{0, 1, 0}, 0.5, 0.5)
	if err == nil {
		t.Fatal("expected error for mismatched dimensions")
	}
}

func TestClampScore(t *testing.T) {
	if got := ClampScore(1.5); got != 1.0 {
		t.Errorf("expected 1.0, got %f", got)
	}
	if got := ClampScore(-0.5); got != 0.0 {
		t.Errorf("expected 0.0, got %f", got)
	}
	if got := ClampScore(0.7); got != 0.7 {
		t.Errorf("expected 0.7, got %f", got)
	}
}
