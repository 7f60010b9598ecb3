package simd

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDot(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []float32
		expected float32
	}{
		{"Positive values (size 3)", []float32{1, 2, 3}, []float32{4, 5, 6}, 32.0},
		{"Negative values (size 3)", []float32{-1, -2, -3}, []float32{-4, -5, -6}, 32.0},
		{"More than 4 (size 6)", []float32{1, 2, 3, 1, 2, 3}, []float32{4, 5, 6, 4, 5, 6}, 64.0},
		{"Mixed values (size 3)", []float32{1, -2, 3}, []float32{-4, 5, -6}, -32.0},
		{"Zero values (size 3)", []float32{0, 0, 0}, []float32{0, 0, 0}, 0.0},
		{"Positive values (size 9)", []float32{1, 2, 3, 4, 5, 6, 7, 8, 9}, []float32{1, 2, 3, 4, 5, 6, 7, 8, 9}, 285.0},
		{"Positive values (size 16)", []float32{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}, []float32{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}, 1496.0},
		{"Empty", nil, nil, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, Dot(tc.a, tc.b))
		})
	}
}

func TestDotBatch(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	dims := []int{1, 3, 7, 16, 33}
	batchSizes := []int{1, 5, 17}

	for _, dim := range dims {
		for _, n := range batchSizes {
			query := randomFloats(rng, dim)
			targets := randomFloats(rng, dim*n)

			out := make([]float32, n)
			DotBatch(query, targets, dim, out)

			for i := 0; i < n; i++ {
				want := dotGeneric(query, targets[i*dim:(i+1)*dim])
				assert.InDelta(t, want, out[i], 1e-5, "dim=%d n=%d i=%d", dim, n, i)
			}
		}
	}
}

func TestDotBatchShortInputs(t *testing.T) {
	out := []float32{-1, -1, -1}
	DotBatch([]float32{1, 1}, []float32{1, 2, 3, 4}, 2, out)
	assert.Equal(t, []float32{3, 7, -1}, out)

	// A query shorter than dim leaves out untouched.
	out = []float32{-1}
	DotBatch([]float32{1}, []float32{1, 2}, 2, out)
	assert.Equal(t, []float32{-1}, out)
}

func TestScaleInPlace(t *testing.T) {
	a := []float32{1, -2, 4}
	ScaleInPlace(a, 0.5)
	assert.Equal(t, []float32{0.5, -1, 2}, a)
}

func BenchmarkDot(b *testing.B) {
	rng := rand.New(rand.NewSource(1))
	va := randomFloats(rng, 4096)
	vb := randomFloats(rng, 4096)

	b.ResetTimer()
	for b.Loop() {
		_ = Dot(va, vb)
	}
}

func randomFloats(rng *rand.Rand, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = rng.Float32()*2 - 1
	}
	return out
}
