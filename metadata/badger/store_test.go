package badger

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wmlabtx/imgmzx/metadata"
	"github.com/wmlabtx/imgmzx/metadata/storetest"
	"github.com/wmlabtx/imgmzx/testutil"
	"github.com/wmlabtx/imgmzx/vectorstore"
)

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) metadata.Store {
		s, err := Open(Options{InMemory: true})
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestOpenRequiresDir(t *testing.T) {
	_, err := Open(Options{})
	assert.Error(t, err)
}

func TestPersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := Open(Options{Dir: dir})
	require.NoError(t, err)
	rec := metadata.Record{
		Hash:   testutil.RepeatHash('a'),
		Vector: []float32{0.25, -1, 3},
	}
	require.NoError(t, s.Put(ctx, rec))
	require.NoError(t, s.SetNext(ctx, rec.Hash, testutil.RepeatHash('b'), 0.125))
	require.NoError(t, s.Close())

	s, err = Open(Options{Dir: dir})
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Get(ctx, rec.Hash)
	require.NoError(t, err)
	assert.Equal(t, rec.Vector, got.Vector)
	assert.Equal(t, testutil.RepeatHash('b'), got.Next)
}

func TestVectorStoredRaw(t *testing.T) {
	ctx := context.Background()
	s, err := Open(Options{InMemory: true})
	require.NoError(t, err)
	defer s.Close()

	h := testutil.RepeatHash('c')
	vec := []float32{1, 2, 3, 4}
	require.NoError(t, s.Put(ctx, metadata.Record{Hash: h, Vector: vec}))

	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(vectorKey(h))
		if err != nil {
			return err
		}
		raw, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		assert.Equal(t, vectorstore.EncodeVector(vec), raw)
		return nil
	})
	require.NoError(t, err)
}

func TestSlogLogger(t *testing.T) {
	var buf bytes.Buffer
	l := slogLogger{log: slog.New(slog.NewTextHandler(&buf, nil))}

	l.Infof("hidden %d", 1)
	l.Debugf("hidden %d", 2)
	assert.Empty(t, buf.String())

	l.Warningf("disk %s\n", "slow")
	assert.Contains(t, buf.String(), "disk slow")
	assert.Contains(t, buf.String(), "component=badger")

	slogLogger{}.Errorf("dropped")
}
