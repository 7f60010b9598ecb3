// Package embed defines the boundary to the external embedding service that
// turns image bytes into feature vectors.
package embed

import (
	"context"
	"errors"
	"fmt"

	"github.com/wmlabtx/imgmzx/distance"
)

// ErrDimension is returned when an embedder produces a vector of the wrong length.
var ErrDimension = errors.New("embed: unexpected vector dimension")

// ErrZeroVector is returned when a vector cannot be normalized.
var ErrZeroVector = errors.New("embed: zero or non-finite vector")

// Embedder computes a feature vector for decoded image bytes.
type Embedder interface {
	Embed(ctx context.Context, data []byte) ([]float32, error)
	// Dimension is the length of every vector Embed returns.
	Dimension() int
}

type funcEmbedder struct {
	dim int
	fn  func(ctx context.Context, data []byte) ([]float32, error)
}

// Func adapts fn to an Embedder producing vectors of length dim.
func Func(dim int, fn func(ctx context.Context, data []byte) ([]float32, error)) Embedder {
	return funcEmbedder{dim: dim, fn: fn}
}

func (f funcEmbedder) Embed(ctx context.Context, data []byte) ([]float32, error) {
	return f.fn(ctx, data)
}

func (f funcEmbedder) Dimension() int { return f.dim }

type normalized struct {
	Embedder
}

// Normalized wraps e so every vector is checked against e.Dimension() and
// scaled to unit L2 length. Similarity search assumes unit vectors.
func Normalized(e Embedder) Embedder {
	if _, ok := e.(normalized); ok {
		return e
	}
	return normalized{Embedder: e}
}

func (n normalized) Embed(ctx context.Context, data []byte) ([]float32, error) {
	vec, err := n.Embedder.Embed(ctx, data)
	if err != nil {
		return nil, err
	}
	if len(vec) != n.Dimension() {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimension, len(vec), n.Dimension())
	}
	unit, ok := distance.NormalizeL2Copy(vec)
	if !ok {
		return nil, ErrZeroVector
	}
	return unit, nil
}
