package embed

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFunc(t *testing.T) {
	e := Func(2, func(_ context.Context, data []byte) ([]float32, error) {
		return []float32{float32(len(data)), 0}, nil
	})
	assert.Equal(t, 2, e.Dimension())

	vec, err := e.Embed(context.Background(), []byte("abc"))
	require.NoError(t, err)
	assert.Equal(t, []float32{3, 0}, vec)
}

func TestNormalized(t *testing.T) {
	e := Normalized(Func(2, func(context.Context, []byte) ([]float32, error) {
		return []float32{3, 4}, nil
	}))
	again, ok := Normalized(e).(normalized)
	require.True(t, ok)
	assert.IsType(t, funcEmbedder{}, again.Embedder)

	vec, err := e.Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.InDelta(t, 0.6, vec[0], 1e-6)
	assert.InDelta(t, 0.8, vec[1], 1e-6)
}

func TestNormalizedChecksDimension(t *testing.T) {
	e := Normalized(Func(3, func(context.Context, []byte) ([]float32, error) {
		return []float32{1, 0}, nil
	}))
	_, err := e.Embed(context.Background(), nil)
	assert.ErrorIs(t, err, ErrDimension)
}

func TestNormalizedPropagatesError(t *testing.T) {
	boom := errors.New("service down")
	e := Normalized(Func(3, func(context.Context, []byte) ([]float32, error) {
		return nil, boom
	}))
	_, err := e.Embed(context.Background(), nil)
	assert.ErrorIs(t, err, boom)
}

func TestNormalizedRejectsZero(t *testing.T) {
	e := Normalized(Func(2, func(context.Context, []byte) ([]float32, error) {
		return []float32{0, 0}, nil
	}))
	_, err := e.Embed(context.Background(), nil)
	assert.ErrorIs(t, err, ErrZeroVector)
}
