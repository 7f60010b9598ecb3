package testutil

import (
	"cmp"
	"math"
	"math/rand"
	"slices"
	"strings"
	"sync"

	"github.com/wmlabtx/imgmzx/distance"
	"github.com/wmlabtx/imgmzx/internal/simd"
	"github.com/wmlabtx/imgmzx/model"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Bytes returns n pseudo-random bytes, a stand-in for photo contents.
func (r *RNG) Bytes(n int) []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	b := make([]byte, n)
	_, _ = r.rand.Read(b)
	return b
}

// Hash returns the content hash of fresh random bytes.
func (r *RNG) Hash() model.ContentHash {
	return model.Sum(r.Bytes(32))
}

// Hashes returns n distinct random content hashes.
func (r *RNG) Hashes(n int) []model.ContentHash {
	out := make([]model.ContentHash, n)
	for i := range out {
		out[i] = r.Hash()
	}
	return out
}

// FillUniform fills dst with random values in range [0, 1).
func (r *RNG) FillUniform(dst []float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range dst {
		dst[i] = r.rand.Float32()
	}
}

// UnitVector generates a single L2-normalized random vector.
// Gaussian components give a uniform distribution on the sphere.
func (r *RNG) UnitVector(dim int) []float32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.unitLocked(make([]float32, dim))
}

// UnitVectors generates num L2-normalized vectors sharing one backing array.
func (r *RNG) UnitVectors(num, dim int) [][]float32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	data := make([]float32, num*dim)
	vectors := make([][]float32, num)
	for i := range num {
		vectors[i] = r.unitLocked(data[i*dim : (i+1)*dim : (i+1)*dim])
	}
	return vectors
}

// NearDuplicate returns a unit vector close to base: base plus Gaussian
// noise of the given spread, renormalized. It models a re-encoded or
// slightly cropped copy of the same photo.
func (r *RNG) NearDuplicate(base []float32, spread float32) []float32 {
	r.mu.Lock()
	vec := make([]float32, len(base))
	for i := range vec {
		vec[i] = base[i] + float32(r.rand.NormFloat64())*spread
	}
	r.mu.Unlock()

	if !distance.NormalizeL2InPlace(vec) {
		return slices.Clone(base)
	}
	return vec
}

func (r *RNG) unitLocked(vec []float32) []float32 {
	var norm float64
	for j := range vec {
		v := r.rand.NormFloat64()
		vec[j] = float32(v)
		norm += v * v
	}
	if norm == 0 {
		norm = 1
	}
	simd.ScaleInPlace(vec, float32(1/math.Sqrt(norm)))
	return vec
}

// RepeatHash returns a 64 character hash made of c, e.g. "aaa…a".
func RepeatHash(c byte) model.ContentHash {
	return model.ContentHash(strings.Repeat(string(c), model.HashLength))
}

// BasisVector returns the unit vector e_i of dimension dim.
func BasisVector(dim, i int) []float32 {
	v := make([]float32, dim)
	v[i] = 1
	return v
}

// ExactBeam ranks every (hash, vector) pair by cosine distance to query,
// ascending, keeping input order on ties. It is the reference the
// similarity index is checked against.
func ExactBeam(query []float32, hashes []model.ContentHash, vectors [][]float32) []model.Neighbor {
	out := make([]model.Neighbor, len(hashes))
	for i, h := range hashes {
		out[i] = model.Neighbor{Hash: h, Distance: distance.Cosine(query, vectors[i])}
	}
	slices.SortStableFunc(out, func(a, b model.Neighbor) int {
		return cmp.Compare(a.Distance, b.Distance)
	})
	return out
}
