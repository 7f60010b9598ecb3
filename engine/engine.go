package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/wmlabtx/imgmzx/embed"
	"github.com/wmlabtx/imgmzx/internal/resource"
	"github.com/wmlabtx/imgmzx/metadata"
	"github.com/wmlabtx/imgmzx/model"
	"github.com/wmlabtx/imgmzx/similarity"
	"github.com/wmlabtx/imgmzx/vectorstore"
)

// DefaultThreshold is the smallest distance change written back to metadata.
const DefaultThreshold float32 = 0.0001

var (
	// ErrLost is returned by Refresh when no copy of the object verifies.
	// The record has been deleted by the time it is returned.
	ErrLost = errors.New("engine: object lost")

	// ErrDimensionMismatch is returned by New when the embedder and the
	// arena disagree on the vector length.
	ErrDimensionMismatch = errors.New("engine: embedder and arena dimensions differ")
)

// Blobs is the subset of the blob store the engine needs.
// *blobstore.Store satisfies it.
type Blobs interface {
	Read(ctx context.Context, hash model.ContentHash) ([]byte, bool)
	Write(ctx context.Context, hash model.ContentHash, plaintext []byte) error
}

// Config tunes the engine.
type Config struct {
	// Threshold is the minimum |old-new| distance change that triggers a
	// metadata write when the neighbor itself is unchanged.
	// Defaults to DefaultThreshold.
	Threshold float32
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithResourceController bounds batch workers and embedding calls.
func WithResourceController(rc *resource.Controller) Option {
	return func(e *Engine) {
		e.rc = rc
	}
}

// WithIndexOptions configures the similarity index built over the arena.
func WithIndexOptions(opts ...similarity.Option) Option {
	return func(e *Engine) {
		e.indexOpts = append(e.indexOpts, opts...)
	}
}

// Engine is the orchestrator. It is safe for concurrent use.
type Engine struct {
	cfg      Config
	blobs    Blobs
	arena    *vectorstore.Arena
	index    *similarity.Index
	meta     metadata.Store
	embedder embed.Embedder
	rc       *resource.Controller
	log      *slog.Logger

	indexOpts []similarity.Option

	mu         sync.RWMutex
	tombstones *roaring.Bitmap // arena slots of lost or forgotten objects
}

// New creates an engine.
func New(cfg Config, blobs Blobs, arena *vectorstore.Arena, meta metadata.Store, embedder embed.Embedder, opts ...Option) (*Engine, error) {
	if blobs == nil || arena == nil || meta == nil || embedder == nil {
		return nil, errors.New("engine: blobs, arena, metadata and embedder are required")
	}
	if embedder.Dimension() != arena.Dimension() {
		return nil, fmt.Errorf("%w: embedder %d, arena %d", ErrDimensionMismatch, embedder.Dimension(), arena.Dimension())
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultThreshold
	}

	e := &Engine{
		cfg:        cfg,
		blobs:      blobs,
		arena:      arena,
		meta:       meta,
		embedder:   embedder,
		log:        slog.New(slog.DiscardHandler),
		tombstones: roaring.New(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.rc == nil {
		e.rc = resource.NewController(resource.Config{MaxWorkers: int64(runtime.GOMAXPROCS(0))})
	}
	e.index = similarity.New(arena, e.indexOpts...)
	return e, nil
}

// Arena returns the vector arena.
func (e *Engine) Arena() *vectorstore.Arena {
	return e.arena
}

// Index returns the similarity index over the arena.
func (e *Engine) Index() *similarity.Index {
	return e.index
}

// Load adds every metadata vector of the right dimension to the arena and
// returns how many were added. Vectors already in the arena are kept. Arena
// slots without a metadata record, such as those restored from a snapshot
// after their object was deleted or lost, are tombstoned.
func (e *Engine) Load(ctx context.Context) (int, error) {
	dim := e.arena.Dimension()
	added, skipped := 0, 0
	known := make(map[model.ContentHash]struct{})
	for rec, err := range e.meta.Scan(ctx) {
		if err != nil {
			return added, fmt.Errorf("engine: load: %w", err)
		}
		known[rec.Hash] = struct{}{}
		if !rec.HasVector(dim) {
			skipped++
			continue
		}
		err := e.arena.Insert(rec.Hash, rec.Vector)
		switch {
		case err == nil:
			added++
		case errors.Is(err, vectorstore.ErrDuplicate):
		default:
			return added, fmt.Errorf("engine: load %s: %w", rec.Hash.Short(), err)
		}
	}
	orphans := e.tombstoneOrphans(known)
	e.log.Info("arena loaded", slog.Int("added", added), slog.Int("without_vector", skipped),
		slog.Int("orphaned", orphans), slog.Int("total", e.arena.Len()))
	return added, nil
}

// tombstoneOrphans tombstones every arena slot whose hash is not in known.
func (e *Engine) tombstoneOrphans(known map[model.ContentHash]struct{}) int {
	var orphans []uint32
	e.arena.Range(func(slot int, hash model.ContentHash, _ []float32) bool {
		if _, ok := known[hash]; !ok {
			orphans = append(orphans, uint32(slot)) //nolint:gosec
		}
		return true
	})
	if len(orphans) > 0 {
		e.mu.Lock()
		e.tombstones.AddMany(orphans)
		e.mu.Unlock()
	}
	return len(orphans)
}

// Ingest stores plaintext and creates its metadata record when none exists.
// Embedding is deferred to the next Refresh. A forgotten hash becomes a
// neighbor candidate again.
func (e *Engine) Ingest(ctx context.Context, plaintext []byte) (model.ContentHash, error) {
	hash := model.Sum(plaintext)
	if err := e.blobs.Write(ctx, hash, plaintext); err != nil {
		return hash, err
	}
	if slot, ok := e.arena.Slot(hash); ok {
		e.mu.Lock()
		e.tombstones.Remove(uint32(slot)) //nolint:gosec
		e.mu.Unlock()
	}
	_, err := e.meta.Get(ctx, hash)
	if errors.Is(err, metadata.ErrNotFound) {
		err = e.meta.Put(ctx, metadata.Record{Hash: hash, Distance: 1})
	}
	if err != nil {
		return hash, fmt.Errorf("engine: ingest %s: %w", hash.Short(), err)
	}
	return hash, nil
}

// Forget tombstones hash so it is never proposed as a neighbor again. It
// reports whether hash had an arena slot.
func (e *Engine) Forget(hash model.ContentHash) bool {
	slot, ok := e.arena.Slot(hash)
	if !ok {
		return false
	}
	e.mu.Lock()
	e.tombstones.Add(uint32(slot)) //nolint:gosec
	e.mu.Unlock()
	return true
}

// Forgotten reports whether hash is tombstoned.
func (e *Engine) Forgotten(hash model.ContentHash) bool {
	slot, ok := e.arena.Slot(hash)
	if !ok {
		return false
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.tombstones.Contains(uint32(slot)) //nolint:gosec
}

// exclusions returns the tombstones plus the slots of self and history.
func (e *Engine) exclusions(self model.ContentHash, history []model.ContentHash) *roaring.Bitmap {
	e.mu.RLock()
	skip := e.tombstones.Clone()
	e.mu.RUnlock()

	if slot, ok := e.arena.Slot(self); ok {
		skip.Add(uint32(slot)) //nolint:gosec
	}
	for _, h := range history {
		if slot, ok := e.arena.Slot(h); ok {
			skip.Add(uint32(slot)) //nolint:gosec
		}
	}
	return skip
}
