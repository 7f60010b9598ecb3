// Package storetest holds the behavior tests every metadata.Store must pass.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wmlabtx/imgmzx/metadata"
	"github.com/wmlabtx/imgmzx/model"
	"github.com/wmlabtx/imgmzx/testutil"
)

// Run exercises a fresh store returned by open for each subtest.
func Run(t *testing.T, open func(t *testing.T) metadata.Store) {
	t.Helper()

	t.Run("GetMissing", func(t *testing.T) {
		s := open(t)
		_, err := s.Get(context.Background(), testutil.RepeatHash('a'))
		assert.ErrorIs(t, err, metadata.ErrNotFound)
	})

	t.Run("PutGet", func(t *testing.T) {
		ctx := context.Background()
		s := open(t)
		rec := sample('a')
		require.NoError(t, s.Put(ctx, rec))

		got, err := s.Get(ctx, rec.Hash)
		require.NoError(t, err)
		assertRecord(t, rec, got)

		rec.Score = 9
		rec.Vector = nil
		require.NoError(t, s.Put(ctx, rec))
		got, err = s.Get(ctx, rec.Hash)
		require.NoError(t, err)
		assert.Equal(t, 9, got.Score)
		assert.Empty(t, got.Vector)
	})

	t.Run("PutRejectsInvalidHash", func(t *testing.T) {
		s := open(t)
		err := s.Put(context.Background(), metadata.Record{Hash: "nope"})
		assert.ErrorIs(t, err, model.ErrInvalidHash)
	})

	t.Run("GetReturnsCopy", func(t *testing.T) {
		ctx := context.Background()
		s := open(t)
		rec := sample('b')
		require.NoError(t, s.Put(ctx, rec))

		got, err := s.Get(ctx, rec.Hash)
		require.NoError(t, err)
		got.Vector[0] = 42
		got.History[0] = testutil.RepeatHash('f')

		again, err := s.Get(ctx, rec.Hash)
		require.NoError(t, err)
		assertRecord(t, rec, again)
	})

	t.Run("SetNext", func(t *testing.T) {
		ctx := context.Background()
		s := open(t)
		rec := sample('c')
		require.NoError(t, s.Put(ctx, rec))

		next := testutil.RepeatHash('d')
		require.NoError(t, s.SetNext(ctx, rec.Hash, next, 0.25))
		got, err := s.Get(ctx, rec.Hash)
		require.NoError(t, err)
		assert.Equal(t, next, got.Next)
		assert.InDelta(t, 0.25, got.Distance, 1e-9)
		assert.Equal(t, rec.Vector, got.Vector)
		assert.Equal(t, rec.History, got.History)

		err = s.SetNext(ctx, testutil.RepeatHash('e'), next, 0.1)
		assert.ErrorIs(t, err, metadata.ErrNotFound)
	})

	t.Run("SetVector", func(t *testing.T) {
		ctx := context.Background()
		s := open(t)
		rec := sample('c')
		require.NoError(t, s.Put(ctx, rec))

		vec := []float32{0, 0, 1}
		require.NoError(t, s.SetVector(ctx, rec.Hash, vec))
		vec[0] = 7

		got, err := s.Get(ctx, rec.Hash)
		require.NoError(t, err)
		assert.Equal(t, []float32{0, 0, 1}, got.Vector)
		assert.Equal(t, rec.Next, got.Next)

		err = s.SetVector(ctx, testutil.RepeatHash('e'), vec)
		assert.ErrorIs(t, err, metadata.ErrNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		ctx := context.Background()
		s := open(t)
		rec := sample('a')
		require.NoError(t, s.Put(ctx, rec))

		require.NoError(t, s.Delete(ctx, rec.Hash))
		_, err := s.Get(ctx, rec.Hash)
		assert.ErrorIs(t, err, metadata.ErrNotFound)
		assert.NoError(t, s.Delete(ctx, rec.Hash))
	})

	t.Run("Scan", func(t *testing.T) {
		ctx := context.Background()
		s := open(t)
		for _, c := range []byte{'c', 'a', 'b'} {
			require.NoError(t, s.Put(ctx, sample(c)))
		}

		var hashes []model.ContentHash
		for rec, err := range s.Scan(ctx) {
			require.NoError(t, err)
			assert.Len(t, rec.Vector, 3)
			hashes = append(hashes, rec.Hash)
		}
		assert.Equal(t, []model.ContentHash{
			testutil.RepeatHash('a'), testutil.RepeatHash('b'), testutil.RepeatHash('c'),
		}, hashes)

		n := 0
		for range s.Scan(ctx) {
			n++
			break
		}
		assert.Equal(t, 1, n)
	})
}

func sample(c byte) metadata.Record {
	return metadata.Record{
		Hash:      testutil.RepeatHash(c),
		Next:      testutil.RepeatHash('9'),
		Distance:  0.5,
		History:   []model.ContentHash{testutil.RepeatHash('1'), testutil.RepeatHash('2')},
		Vector:    []float32{0.6, 0.8, 0},
		Score:     3,
		LastView:  time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		LastCheck: time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC),
	}
}

func assertRecord(t *testing.T, want, got metadata.Record) {
	t.Helper()
	assert.Equal(t, want.Hash, got.Hash)
	assert.Equal(t, want.Next, got.Next)
	assert.InDelta(t, want.Distance, got.Distance, 1e-9)
	assert.Equal(t, want.History, got.History)
	assert.Equal(t, want.Vector, got.Vector)
	assert.Equal(t, want.Score, got.Score)
	assert.True(t, want.LastView.Equal(got.LastView))
	assert.True(t, want.LastCheck.Equal(got.LastCheck))
}
