package similarity

import (
	"cmp"
	"errors"
	"fmt"
	"runtime"
	"slices"

	"github.com/RoaringBitmap/roaring/v2"
	"golang.org/x/sync/errgroup"

	"github.com/wmlabtx/imgmzx/distance"
	"github.com/wmlabtx/imgmzx/model"
	"github.com/wmlabtx/imgmzx/vectorstore"
)

// DefaultMinChunk is the smallest slot range handed to one worker.
const DefaultMinChunk = 2048

// ErrWrongDimension is returned when the query length differs from the arena dimension.
var ErrWrongDimension = errors.New("similarity: wrong query dimension")

// Index answers nearest-neighbor queries over an arena.
type Index struct {
	arena    *vectorstore.Arena
	workers  int
	minChunk int
}

// Option configures an Index.
type Option func(*Index)

// WithWorkers bounds the number of goroutines used by one scan.
func WithWorkers(n int) Option {
	return func(ix *Index) {
		if n > 0 {
			ix.workers = n
		}
	}
}

// WithMinChunk sets the smallest number of slots scored by one worker.
func WithMinChunk(n int) Option {
	return func(ix *Index) {
		if n > 0 {
			ix.minChunk = n
		}
	}
}

// New creates an index over arena.
func New(arena *vectorstore.Arena, opts ...Option) *Index {
	ix := &Index{
		arena:    arena,
		workers:  runtime.GOMAXPROCS(0),
		minChunk: DefaultMinChunk,
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// Arena returns the arena the index scans.
func (ix *Index) Arena() *vectorstore.Arena {
	return ix.arena
}

// Beam returns every stored vector ranked by ascending distance to query.
// Equal distances keep arena slot order.
func (ix *Index) Beam(query []float32) ([]model.Neighbor, error) {
	if err := ix.checkQuery(query); err != nil {
		return nil, err
	}

	var beam []model.Neighbor
	ix.arena.ViewAll(func(b vectorstore.Block) {
		dists := ix.score(query, b)
		beam = make([]model.Neighbor, len(dists))
		for slot, d := range dists {
			beam[slot] = model.Neighbor{Hash: b.Hashes[slot], Distance: d}
		}
	})

	slices.SortStableFunc(beam, func(x, y model.Neighbor) int {
		return cmp.Compare(x.Distance, y.Distance)
	})
	return beam, nil
}

// PickNext returns the closest stored neighbor of query that is neither
// self nor in exclude. The second result is false when no candidate is left
// or the query has the wrong dimension.
func (ix *Index) PickNext(query []float32, self model.ContentHash, exclude []model.ContentHash) (model.Neighbor, bool) {
	skip := roaring.New()
	if slot, ok := ix.arena.Slot(self); ok {
		skip.Add(uint32(slot)) //nolint:gosec
	}
	for _, h := range exclude {
		if slot, ok := ix.arena.Slot(h); ok {
			skip.Add(uint32(slot)) //nolint:gosec
		}
	}
	return ix.PickNextFunc(query, skip, nil)
}

// PickNextFunc returns the first entry of Beam(query) whose slot is not in
// exclude and for which accept (if non-nil) returns true. It scans for the
// minimum directly instead of sorting the whole beam. accept runs under the
// arena read lock and must not call mutating arena methods.
func (ix *Index) PickNextFunc(query []float32, exclude *roaring.Bitmap, accept func(model.ContentHash) bool) (model.Neighbor, bool) {
	if ix.checkQuery(query) != nil {
		return model.Neighbor{}, false
	}

	var (
		best  model.Neighbor
		found bool
	)
	ix.arena.ViewAll(func(b vectorstore.Block) {
		dists := ix.score(query, b)
		for slot, d := range dists {
			// Strict less keeps the lowest slot among equal distances.
			if found && d >= best.Distance {
				continue
			}
			if exclude != nil && exclude.Contains(uint32(slot)) { //nolint:gosec
				continue
			}
			h := b.Hashes[slot]
			if accept != nil && !accept(h) {
				continue
			}
			best = model.Neighbor{Hash: h, Distance: d}
			found = true
		}
	})
	return best, found
}

func (ix *Index) checkQuery(query []float32) error {
	if dim := ix.arena.Dimension(); len(query) != dim {
		return fmt.Errorf("%w: got %d, want %d", ErrWrongDimension, len(query), dim)
	}
	return nil
}

// score computes the distance from query to every vector in b. Each worker
// owns a disjoint range of the result.
func (ix *Index) score(query []float32, b vectorstore.Block) []float32 {
	n := b.Len()
	dists := make([]float32, n)
	if n == 0 {
		return dists
	}

	chunk := max(ix.minChunk, (n+ix.workers-1)/ix.workers)
	if chunk >= n {
		distance.CosineBatch(query, b.Data, b.Dim, dists)
		return dists
	}

	var g errgroup.Group
	g.SetLimit(ix.workers)
	for lo := 0; lo < n; lo += chunk {
		hi := min(lo+chunk, n)
		g.Go(func() error {
			distance.CosineBatch(query, b.Data[lo*b.Dim:hi*b.Dim], b.Dim, dists[lo:hi])
			return nil
		})
	}
	_ = g.Wait()
	return dists
}
