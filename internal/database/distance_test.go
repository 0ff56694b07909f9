package database

import (
	"math"
	"testing"
)

func TestEuclideanDistance(t *testing.T) {
	tests := []struct {
		name     string
		a        []float32
		b        []float32
		expected float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 0},
		{"unit axis", []float32{0, 0}, []float32{1, 0}, 1},
		{"3-4-5", []float32{0, 0}, []float32{3, 4}, 5},
		{"negative values", []float32{-1, -1}, []float32{2, 3}, 5},
		{"length mismatch", []float32{1, 2}, []float32{1}, math.Inf(1)},
		{"empty", []float32{}, []float32{}, math.Inf(1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EuclideanDistance(tt.a, tt.b)
			if math.IsInf(tt.expected, 1) {
				if !math.IsInf(got, 1) {
					t.Errorf("EuclideanDistance(%v, %v) = %v, want +Inf", tt.a, tt.b, got)
				}
				return
			}
			if math.Abs(got-tt.expected) > 1e-9 {
				t.Errorf("EuclideanDistance(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.expected)
			}
		})
	}
}

func TestEuclideanDistance_IdenticalIsExactlyZero(t *testing.T) {
	v := make([]float32, FaceEmbeddingDim)
	for i := range v {
		v[i] = float32(i)*0.37 - 11.3
	}
	w := append([]float32(nil), v...)
	if got := EuclideanDistance(v, w); got != 0 {
		t.Errorf("EuclideanDistance of identical embeddings = %v, want exactly 0", got)
	}
}
