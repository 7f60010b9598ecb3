package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/wmlabtx/imgmzx/metadata"
	"github.com/wmlabtx/imgmzx/model"
	"github.com/wmlabtx/imgmzx/vectorstore"
)

// Outcome describes one Refresh.
type Outcome struct {
	Hash model.ContentHash
	// Next is the nearest unseen neighbor, empty when none is left.
	Next model.ContentHash
	// Distance is the distance to Next, 1 when Next is empty.
	Distance float32
	// Embedded is set when the vector was computed during this refresh.
	Embedded bool
	// Updated is set when the new neighbor was written to metadata.
	Updated bool
}

// Refresh recomputes the nearest unseen neighbor of hash.
//
// A missing, wrongly sized or non-finite vector is recomputed from the stored blob. When
// the blob cannot be read the record is deleted, the object tombstoned and
// ErrLost returned.
func (e *Engine) Refresh(ctx context.Context, hash model.ContentHash) (Outcome, error) {
	out := Outcome{Hash: hash}

	rec, err := e.meta.Get(ctx, hash)
	if err != nil {
		return out, fmt.Errorf("engine: refresh %s: %w", hash.Short(), err)
	}

	vec, embedded, err := e.vector(ctx, rec)
	if err != nil {
		return out, err
	}
	out.Embedded = embedded

	exclude := e.exclusions(hash, rec.History)
	out.Distance = 1
	if n, ok := e.index.PickNextFunc(vec, exclude, nil); ok {
		out.Next, out.Distance = n.Hash, n.Distance
	}

	if !e.changed(rec, out) {
		return out, nil
	}
	if err := e.meta.SetNext(ctx, hash, out.Next, out.Distance); err != nil {
		return out, fmt.Errorf("engine: refresh %s: %w", hash.Short(), err)
	}
	out.Updated = true
	e.log.Debug("next updated", slog.String("hash", hash.Short()),
		slog.String("next", out.Next.Short()), slog.Float64("distance", float64(out.Distance)))
	return out, nil
}

// changed reports whether out differs enough from rec to be written.
func (e *Engine) changed(rec metadata.Record, out Outcome) bool {
	if rec.Next != out.Next {
		return true
	}
	return math.Abs(float64(rec.Distance)-float64(out.Distance)) >= float64(e.cfg.Threshold)
}

// vector returns the vector of rec, embedding it when the record has none
// of the arena's dimension, and makes sure the arena holds it.
func (e *Engine) vector(ctx context.Context, rec metadata.Record) ([]float32, bool, error) {
	if rec.HasVector(e.arena.Dimension()) {
		err := e.arena.Insert(rec.Hash, rec.Vector)
		if err != nil && !errors.Is(err, vectorstore.ErrDuplicate) {
			return nil, false, fmt.Errorf("engine: refresh %s: %w", rec.Hash.Short(), err)
		}
		return rec.Vector, false, nil
	}

	plain, ok := e.blobs.Read(ctx, rec.Hash)
	if !ok {
		if err := e.lose(ctx, rec.Hash); err != nil {
			return nil, false, err
		}
		return nil, false, fmt.Errorf("%w: %s", ErrLost, rec.Hash.Short())
	}

	if err := e.rc.WaitEmbed(ctx); err != nil {
		return nil, false, err
	}
	vec, err := e.embedder.Embed(ctx, plain)
	if err != nil {
		return nil, false, fmt.Errorf("engine: embed %s: %w", rec.Hash.Short(), err)
	}
	if len(vec) != e.arena.Dimension() {
		return nil, false, fmt.Errorf("engine: embed %s: %w: got %d, want %d",
			rec.Hash.Short(), vectorstore.ErrWrongDimension, len(vec), e.arena.Dimension())
	}
	if !vectorstore.Finite(vec) {
		return nil, false, fmt.Errorf("engine: embed %s: %w", rec.Hash.Short(), vectorstore.ErrNonFinite)
	}

	if err := e.meta.SetVector(ctx, rec.Hash, vec); err != nil {
		return nil, false, fmt.Errorf("engine: refresh %s: %w", rec.Hash.Short(), err)
	}
	if err := e.arena.Put(rec.Hash, vec); err != nil {
		return nil, false, fmt.Errorf("engine: refresh %s: %w", rec.Hash.Short(), err)
	}
	return vec, true, nil
}

// lose deletes the record of an unreadable object and tombstones it.
func (e *Engine) lose(ctx context.Context, hash model.ContentHash) error {
	e.log.Warn("object lost", slog.String("hash", hash.Short()))
	e.Forget(hash)
	if err := e.meta.Delete(ctx, hash); err != nil {
		return fmt.Errorf("engine: delete lost %s: %w", hash.Short(), err)
	}
	return nil
}
