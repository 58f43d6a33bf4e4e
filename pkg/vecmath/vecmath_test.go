package vecmath

import (
	"math"
	"testing"
)

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b []float64
		want float64
	}{
		{"identical", []float64{1, 0}, []float64{1, 0}, 1},
		{"orthogonal", []float64{1, 0}, []float64{0, 1}, 0},
		{"opposite", []float64{1, 0}, []float64{-1, 0}, -1},
		{"zero vector", []float64{0, 0}, []float64{1, 0}, 0},
		{"dim mismatch", []float64{1, 0}, []float64{1}, 0},
		{"empty", nil, nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Cosine(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Cosine() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestL2Normalize(t *testing.T) {
	v := L2Normalize([]float64{3, 4})
	if math.Abs(Norm(v)-1) > 1e-9 {
		t.Errorf("norm after normalize = %v, want 1", Norm(v))
	}
	if math.Abs(v[0]-0.6) > 1e-9 || math.Abs(v[1]-0.8) > 1e-9 {
		t.Errorf("normalized = %v, want [0.6 0.8]", v)
	}

	// 零向量原样返回
	z := L2Normalize([]float64{0, 0})
	if z[0] != 0 || z[1] != 0 {
		t.Errorf("zero vector changed: %v", z)
	}
}

func TestWeightedMean(t *testing.T) {
	got := WeightedMean([][]float64{{1, 0}, {0, 1}}, []float64{3, 1})
	if math.Abs(got[0]-0.75) > 1e-9 || math.Abs(got[1]-0.25) > 1e-9 {
		t.Errorf("WeightedMean() = %v, want [0.75 0.25]", got)
	}

	if WeightedMean([][]float64{{1, 0}, {0, 1, 2}}, []float64{1, 1}) != nil {
		t.Error("dim mismatch should return nil")
	}
	if WeightedMean(nil, nil) != nil {
		t.Error("empty input should return nil")
	}
	if WeightedMean([][]float64{{1}}, []float64{0}) != nil {
		t.Error("zero total weight should return nil")
	}
}
