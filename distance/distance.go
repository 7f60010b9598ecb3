package distance

import (
	"math"
	"slices"

	"github.com/wmlabtx/imgmzx/internal/simd"
)

// Dot calculates the dot product of two vectors.
// Assumes vectors are the same length (caller's responsibility).
func Dot(a, b []float32) float32 {
	return simd.Dot(a, b)
}

// Cosine returns clamp(1 - dot(a, b), 0, 1) for unit-length a and b.
func Cosine(a, b []float32) float32 {
	return FromDot(simd.Dot(a, b))
}

// FromDot converts a dot product of unit vectors into a distance.
// NaN maps to the maximum distance.
func FromDot(dot float32) float32 {
	d := 1 - dot
	switch {
	case d != d || d > 1:
		return 1
	case d < 0:
		return 0
	}
	return d
}

// CosineBatch computes Cosine(query, v) for every vector in the flattened
// targets block and stores the results in out.
func CosineBatch(query, targets []float32, dim int, out []float32) {
	simd.DotBatch(query, targets, dim, out)
	for i := range out[:min(len(out), len(targets)/max(dim, 1))] {
		out[i] = FromDot(out[i])
	}
}

// NormalizeL2InPlace L2-normalizes v in place.
// Returns false, leaving v untouched, if its L2 norm is zero or not finite.
func NormalizeL2InPlace(v []float32) bool {
	if len(v) == 0 {
		return false
	}
	norm2 := float64(simd.Dot(v, v))
	if norm2 == 0 || math.IsNaN(norm2) || math.IsInf(norm2, 0) {
		return false
	}
	inv := float32(1 / math.Sqrt(norm2))
	simd.ScaleInPlace(v, inv)
	return true
}

// NormalizeL2Copy returns a normalized copy of src.
// Returns false if src has zero L2 norm.
func NormalizeL2Copy(src []float32) ([]float32, bool) {
	dst := slices.Clone(src)
	if !NormalizeL2InPlace(dst) {
		return nil, false
	}
	return dst, true
}
