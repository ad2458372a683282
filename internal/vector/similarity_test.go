package vector

import (
	"math"
	"testing"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 0, 0}, []float32{1, 0, 0}, 1},
		{"scaled", []float32{3, 0}, []float32{1, 0}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 0},
		{"length mismatch", []float32{1, 0}, []float32{1, 0, 0}, 0},
		{"empty", nil, nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineSimilarity(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("CosineSimilarity=%v, want %v", got, tt.want)
			}
		})
	}
}

func TestCosineDistance(t *testing.T) {
	if d := CosineDistance([]float32{1, 0}, []float32{1, 0}); math.Abs(d) > 1e-9 {
		t.Errorf("distance between identical vectors = %v, want 0", d)
	}
	if d := CosineDistance([]float32{1, 0}, []float32{0, 1}); math.Abs(d-1) > 1e-9 {
		t.Errorf("distance between orthogonal vectors = %v, want 1", d)
	}
	if d := CosineDistance([]float32{1, 0}, []float32{-1, 0}); math.Abs(d-2) > 1e-9 {
		t.Errorf("distance between opposite vectors = %v, want 2", d)
	}
}
