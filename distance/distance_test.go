package distance

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestDot(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []float32
		expected float32
	}{
		{"Simple", []float32{1, 2, 3}, []float32{4, 5, 6}, 32},
		{"Zero", []float32{0, 0, 0}, []float32{0, 0, 0}, 0},
		{"Mixed", []float32{1, -1, 2}, []float32{1, 1, -2}, -4},
		{"Empty", []float32{}, []float32{}, 0},
		{"Single", []float32{2}, []float32{3}, 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, Dot(tt.a, tt.b), 1e-5)
		})
	}
}

func TestCosine(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []float32
		expected float32
	}{
		{"Identical", []float32{1, 0, 0, 0}, []float32{1, 0, 0, 0}, 0},
		{"Orthogonal", []float32{1, 0, 0, 0}, []float32{0, 1, 0, 0}, 1},
		{"Opposite clamps to one", []float32{1, 0}, []float32{-1, 0}, 1},
		{"Overshoot clamps to zero", []float32{1.0001, 0}, []float32{1.0001, 0}, 0},
		{"Half", []float32{1, 0}, []float32{0.5, float32(math.Sqrt(0.75))}, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, Cosine(tt.a, tt.b), 1e-6)
		})
	}
}

func TestFromDotNaN(t *testing.T) {
	assert.Equal(t, float32(1), FromDot(float32(math.NaN())))
	assert.Equal(t, float32(1), Cosine([]float32{float32(math.NaN()), 0}, []float32{0, 1}))
}

func TestCosineBatch(t *testing.T) {
	q := []float32{1, 0}
	targets := []float32{1, 0, 0, 1, -1, 0}
	out := make([]float32, 3)
	CosineBatch(q, targets, 2, out)
	assert.Equal(t, []float32{0, 1, 1}, out)
}

func TestCosineProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		dim := rapid.IntRange(1, 32).Draw(t, "dim")
		x := unitVector(t, dim, "x")
		y := unitVector(t, dim, "y")
		if x == nil || y == nil {
			t.Skip("zero vector")
		}

		dxy := Cosine(x, y)
		if dxy < 0 || dxy > 1 {
			t.Fatalf("distance %v outside [0, 1]", dxy)
		}
		if dxy != Cosine(y, x) {
			t.Fatalf("distance not symmetric: %v vs %v", dxy, Cosine(y, x))
		}
		if dxx := Cosine(x, x); dxx > 1e-5 {
			t.Fatalf("distance(x, x) = %v", dxx)
		}
	})
}

func unitVector(t *rapid.T, dim int, label string) []float32 {
	v := rapid.SliceOfN(rapid.Float32Range(-1, 1), dim, dim).Draw(t, label)
	if !NormalizeL2InPlace(v) {
		return nil
	}
	return v
}

func TestNormalizeL2(t *testing.T) {
	t.Run("InPlace", func(t *testing.T) {
		v := []float32{3, 4}
		ok := NormalizeL2InPlace(v)
		assert.True(t, ok)
		assert.InDelta(t, float32(0.6), v[0], 1e-5)
		assert.InDelta(t, float32(0.8), v[1], 1e-5)

		assert.False(t, NormalizeL2InPlace([]float32{0, 0}))
		assert.False(t, NormalizeL2InPlace([]float32{}))

		nan := []float32{float32(math.NaN()), 1}
		assert.False(t, NormalizeL2InPlace(nan))
		assert.Equal(t, float32(1), nan[1])
		assert.False(t, NormalizeL2InPlace([]float32{float32(math.Inf(1)), 0}))
	})

	t.Run("Copy", func(t *testing.T) {
		v := []float32{1, 0}
		dst, ok := NormalizeL2Copy(v)
		assert.True(t, ok)
		assert.Equal(t, float32(1), dst[0])
		assert.NotSame(t, &v[0], &dst[0])

		dst, ok = NormalizeL2Copy([]float32{0, 0})
		assert.False(t, ok)
		assert.Nil(t, dst)
	})
}
