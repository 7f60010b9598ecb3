package engine

import (
	"context"
	"errors"
	"math"
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wmlabtx/imgmzx/embed"
	"github.com/wmlabtx/imgmzx/internal/resource"
	"github.com/wmlabtx/imgmzx/metadata"
	"github.com/wmlabtx/imgmzx/model"
	"github.com/wmlabtx/imgmzx/vectorstore"
)

const dim = 3

type memBlobs struct {
	mu    sync.Mutex
	blobs map[model.ContentHash][]byte
}

func newMemBlobs() *memBlobs {
	return &memBlobs{blobs: make(map[model.ContentHash][]byte)}
}

func (m *memBlobs) Read(_ context.Context, h model.ContentHash) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.blobs[h]
	return slices.Clone(b), ok
}

func (m *memBlobs) Write(_ context.Context, h model.ContentHash, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[h] = slices.Clone(data)
	return nil
}

func (m *memBlobs) remove(h model.ContentHash) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, h)
}

// lookupEmbedder maps plaintext to a fixed vector.
type lookupEmbedder struct {
	mu      sync.Mutex
	vectors map[string][]float32
	calls   int
	fail    string
}

func (l *lookupEmbedder) Embed(_ context.Context, data []byte) ([]float32, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	if string(data) == l.fail {
		return nil, errors.New("embedding service unavailable")
	}
	vec, ok := l.vectors[string(data)]
	if !ok {
		return nil, errors.New("unknown image")
	}
	return slices.Clone(vec), nil
}

func (*lookupEmbedder) Dimension() int { return dim }

type fixture struct {
	eng      *Engine
	blobs    *memBlobs
	meta     *metadata.Memory
	embedder *lookupEmbedder
	hashes   map[string]model.ContentHash
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	arena, err := vectorstore.New(dim, vectorstore.WithGrowthStep(2))
	require.NoError(t, err)

	f := &fixture{
		blobs:    newMemBlobs(),
		meta:     metadata.NewMemory(),
		embedder: &lookupEmbedder{vectors: make(map[string][]float32)},
		hashes:   make(map[string]model.ContentHash),
	}
	rc := resource.NewController(resource.Config{MaxWorkers: 2, EmbedPerSecond: 1e6, EmbedBurst: 100})
	opts = append([]Option{WithResourceController(rc)}, opts...)
	f.eng, err = New(Config{}, f.blobs, arena, f.meta, f.embedder, opts...)
	require.NoError(t, err)
	return f
}

// ingest stores an image named name whose embedding is vec.
func (f *fixture) ingest(t *testing.T, name string, vec []float32) model.ContentHash {
	t.Helper()
	f.embedder.vectors[name] = vec
	h, err := f.eng.Ingest(context.Background(), []byte(name))
	require.NoError(t, err)
	f.hashes[name] = h
	return h
}

func (f *fixture) record(t *testing.T, h model.ContentHash) metadata.Record {
	t.Helper()
	rec, err := f.meta.Get(context.Background(), h)
	require.NoError(t, err)
	return rec
}

func TestNewValidates(t *testing.T) {
	arena, err := vectorstore.New(4)
	require.NoError(t, err)
	e := embed.Func(3, nil)

	_, err = New(Config{}, newMemBlobs(), arena, metadata.NewMemory(), e)
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	_, err = New(Config{}, nil, arena, metadata.NewMemory(), e)
	assert.Error(t, err)

	eng, err := New(Config{}, newMemBlobs(), arena, metadata.NewMemory(), embed.Func(4, nil))
	require.NoError(t, err)
	assert.Equal(t, DefaultThreshold, eng.cfg.Threshold)
	assert.Same(t, arena, eng.Arena())
	assert.Same(t, arena, eng.Index().Arena())
}

func TestIngest(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	h := f.ingest(t, "cat.jpg", []float32{1, 0, 0})

	assert.Equal(t, model.Sum([]byte("cat.jpg")), h)
	data, ok := f.blobs.Read(ctx, h)
	require.True(t, ok)
	assert.Equal(t, "cat.jpg", string(data))

	rec := f.record(t, h)
	assert.Empty(t, rec.Next)
	assert.InDelta(t, 1, rec.Distance, 0)
	assert.Empty(t, rec.Vector)

	require.NoError(t, f.meta.SetNext(ctx, h, model.Sum([]byte("x")), 0.5))
	again, err := f.eng.Ingest(ctx, []byte("cat.jpg"))
	require.NoError(t, err)
	assert.Equal(t, h, again)
	assert.Equal(t, model.Sum([]byte("x")), f.record(t, h).Next)
	assert.Equal(t, 1, f.meta.Len())
}

func TestRefreshEmbedsAndPicksNext(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.ingest(t, "a", []float32{1, 0, 0})
	b := f.ingest(t, "b", []float32{0.8, 0.6, 0})
	c := f.ingest(t, "c", []float32{0, 0, 1})

	// Alone in the arena: no candidate, which matches the fresh record.
	out, err := f.eng.Refresh(ctx, a)
	require.NoError(t, err)
	assert.True(t, out.Embedded)
	assert.False(t, out.Updated)
	assert.Empty(t, out.Next)
	assert.InDelta(t, 1, out.Distance, 0)
	assert.Equal(t, []float32{1, 0, 0}, f.record(t, a).Vector)
	assert.True(t, f.eng.Arena().Contains(a))

	_, err = f.eng.Refresh(ctx, b)
	require.NoError(t, err)
	_, err = f.eng.Refresh(ctx, c)
	require.NoError(t, err)

	out, err = f.eng.Refresh(ctx, a)
	require.NoError(t, err)
	assert.False(t, out.Embedded)
	assert.True(t, out.Updated)
	assert.Equal(t, b, out.Next)
	assert.InDelta(t, 0.2, out.Distance, 1e-6)

	rec := f.record(t, a)
	assert.Equal(t, b, rec.Next)
	assert.InDelta(t, 0.2, rec.Distance, 1e-6)
	assert.Equal(t, 3, f.embedder.calls)

	// Unchanged neighbor and distance: no write.
	out, err = f.eng.Refresh(ctx, a)
	require.NoError(t, err)
	assert.False(t, out.Updated)
}

func TestRefreshSkipsHistory(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.ingest(t, "a", []float32{1, 0, 0})
	b := f.ingest(t, "b", []float32{0.8, 0.6, 0})
	c := f.ingest(t, "c", []float32{0, 0.6, 0.8})
	_, err := f.eng.RefreshAll(ctx, []model.ContentHash{a, b, c})
	require.NoError(t, err)

	rec := f.record(t, a)
	rec.History = []model.ContentHash{b}
	require.NoError(t, f.meta.Put(ctx, rec))

	out, err := f.eng.Refresh(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, c, out.Next)
	assert.InDelta(t, 1, out.Distance, 1e-6)

	rec.History = []model.ContentHash{b, c}
	require.NoError(t, f.meta.Put(ctx, rec))
	out, err = f.eng.Refresh(ctx, a)
	require.NoError(t, err)
	assert.Empty(t, out.Next)
	assert.InDelta(t, 1, out.Distance, 0)
	assert.True(t, out.Updated)
}

func TestRefreshThreshold(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.ingest(t, "a", []float32{1, 0, 0})
	b := f.ingest(t, "b", []float32{0.8, 0.6, 0})
	_, err := f.eng.RefreshAll(ctx, []model.ContentHash{a, b})
	require.NoError(t, err)
	out, err := f.eng.Refresh(ctx, a)
	require.NoError(t, err)
	exact := out.Distance

	tests := []struct {
		name   string
		stored float32
		want   bool
	}{
		{"jitter", exact + 0.00005, false},
		{"exact", exact, false},
		{"moved", exact + 0.0002, true},
		{"moved down", exact - 0.0002, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, f.meta.SetNext(ctx, a, b, tt.stored))
			out, err := f.eng.Refresh(ctx, a)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out.Updated)
		})
	}

	// A different neighbor is always written, whatever the distance.
	require.NoError(t, f.meta.SetNext(ctx, a, model.Sum([]byte("other")), exact))
	out, err = f.eng.Refresh(ctx, a)
	require.NoError(t, err)
	assert.True(t, out.Updated)
	assert.Equal(t, b, f.record(t, a).Next)
}

func TestRefreshCustomThreshold(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.eng.cfg.Threshold = 0.5
	a := f.ingest(t, "a", []float32{1, 0, 0})
	b := f.ingest(t, "b", []float32{0.8, 0.6, 0})
	_, err := f.eng.RefreshAll(ctx, []model.ContentHash{a, b})
	require.NoError(t, err)

	require.NoError(t, f.meta.SetNext(ctx, a, b, 0.4))
	out, err := f.eng.Refresh(ctx, a)
	require.NoError(t, err)
	assert.False(t, out.Updated)
}

func TestRefreshLost(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.ingest(t, "a", []float32{1, 0, 0})
	b := f.ingest(t, "b", []float32{0.8, 0.6, 0})
	_, err := f.eng.RefreshAll(ctx, []model.ContentHash{a, b})
	require.NoError(t, err)
	_, err = f.eng.Refresh(ctx, a)
	require.NoError(t, err)
	require.Equal(t, b, f.record(t, a).Next)

	// b's vector goes stale and its blob disappears.
	require.NoError(t, f.meta.SetVector(ctx, b, []float32{1, 0}))
	f.blobs.remove(b)

	_, err = f.eng.Refresh(ctx, b)
	assert.ErrorIs(t, err, ErrLost)
	_, err = f.meta.Get(ctx, b)
	assert.ErrorIs(t, err, metadata.ErrNotFound)
	assert.True(t, f.eng.Forgotten(b))

	out, err := f.eng.Refresh(ctx, a)
	require.NoError(t, err)
	assert.Empty(t, out.Next)
	assert.True(t, out.Updated)
}

func TestRefreshErrors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.eng.Refresh(ctx, model.Sum([]byte("unknown")))
	assert.ErrorIs(t, err, metadata.ErrNotFound)

	h := f.ingest(t, "broken", []float32{1, 0, 0})
	f.embedder.fail = "broken"
	_, err = f.eng.Refresh(ctx, h)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrLost)
	assert.Empty(t, f.record(t, h).Vector)

	f.embedder.fail = ""
	f.embedder.vectors["broken"] = []float32{1, 0}
	_, err = f.eng.Refresh(ctx, h)
	assert.ErrorIs(t, err, vectorstore.ErrWrongDimension)
}

func TestRefreshAll(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	var hashes []model.ContentHash
	for i, vec := range [][]float32{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}, {0.6, 0.8, 0}} {
		hashes = append(hashes, f.ingest(t, string(rune('a'+i)), vec))
	}
	lost := f.ingest(t, "gone", []float32{1, 1, 0})
	f.blobs.remove(lost)
	hashes = append(hashes, lost)

	stats, err := f.eng.RefreshAll(ctx, hashes)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Processed)
	assert.Equal(t, 4, stats.Embedded)
	assert.Equal(t, 1, stats.Lost)
	assert.Equal(t, 4, f.eng.Arena().Len())
	assert.Equal(t, 4, f.meta.Len())

	stats, err = f.eng.RefreshAll(ctx, hashes[:4])
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Embedded)
	for _, h := range hashes[:4] {
		assert.NotEmpty(t, f.record(t, h).Next)
	}
}

func TestRefreshAllStopsOnError(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.ingest(t, "a", []float32{1, 0, 0})
	b := f.ingest(t, "b", []float32{0, 1, 0})
	f.embedder.fail = "b"

	_, err := f.eng.RefreshAll(ctx, []model.ContentHash{a, b})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "embedding service unavailable")
}

func TestRefreshAllCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f := newFixture(t)
	a := f.ingest(t, "a", []float32{1, 0, 0})

	_, err := f.eng.RefreshAll(ctx, []model.ContentHash{a})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoad(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	good := model.Sum([]byte("good"))
	require.NoError(t, f.meta.Put(ctx, metadata.Record{Hash: good, Vector: []float32{0, 1, 0}}))
	require.NoError(t, f.meta.Put(ctx, metadata.Record{Hash: model.Sum([]byte("short")), Vector: []float32{1}}))
	require.NoError(t, f.meta.Put(ctx, metadata.Record{Hash: model.Sum([]byte("none"))}))

	n, err := f.eng.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	vec, ok := f.eng.Arena().Get(good)
	require.True(t, ok)
	assert.Equal(t, []float32{0, 1, 0}, vec)

	n, err = f.eng.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestLoadTombstonesOrphans(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	kept := f.ingest(t, "kept", []float32{1, 0, 0})
	near := f.ingest(t, "near", []float32{0.8, 0.6, 0})
	far := f.ingest(t, "far", []float32{0, 0, 1})
	_, err := f.eng.RefreshAll(ctx, []model.ContentHash{kept, near, far})
	require.NoError(t, err)

	// A restart restores near into the arena after its record was removed.
	require.NoError(t, f.meta.Delete(ctx, near))
	eng, err := New(Config{}, f.blobs, f.eng.Arena(), f.meta, f.embedder)
	require.NoError(t, err)
	_, err = eng.Load(ctx)
	require.NoError(t, err)

	assert.True(t, eng.Forgotten(near))
	assert.False(t, eng.Forgotten(kept))
	assert.False(t, eng.Forgotten(far))

	out, err := eng.Refresh(ctx, kept)
	require.NoError(t, err)
	assert.Equal(t, far, out.Next)
}

func TestRefreshRejectsNonFiniteEmbedding(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	h := f.ingest(t, "broken", []float32{float32(math.NaN()), 0, 0})

	_, err := f.eng.Refresh(ctx, h)
	require.ErrorIs(t, err, vectorstore.ErrNonFinite)
	assert.Empty(t, f.record(t, h).Vector)
	assert.False(t, f.eng.Arena().Contains(h))
}

func TestForget(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.ingest(t, "a", []float32{1, 0, 0})
	b := f.ingest(t, "b", []float32{0.8, 0.6, 0})
	c := f.ingest(t, "c", []float32{0, 0, 1})
	_, err := f.eng.RefreshAll(ctx, []model.ContentHash{a, b, c})
	require.NoError(t, err)

	assert.False(t, f.eng.Forget(model.Sum([]byte("absent"))))
	assert.True(t, f.eng.Forget(b))
	assert.True(t, f.eng.Forgotten(b))
	assert.False(t, f.eng.Forgotten(a))

	out, err := f.eng.Refresh(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, c, out.Next)

	// Ingesting the same content again revives it.
	f.ingest(t, "b", []float32{0.8, 0.6, 0})
	assert.False(t, f.eng.Forgotten(b))
	out, err = f.eng.Refresh(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, b, out.Next)
}
