package imgmzx

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/wmlabtx/imgmzx/blobstore"
	"github.com/wmlabtx/imgmzx/blobstore/minio"
	"github.com/wmlabtx/imgmzx/blobstore/s3"
	"github.com/wmlabtx/imgmzx/codec"
	"github.com/wmlabtx/imgmzx/embed"
	"github.com/wmlabtx/imgmzx/engine"
	"github.com/wmlabtx/imgmzx/internal/fs"
	"github.com/wmlabtx/imgmzx/internal/resource"
	"github.com/wmlabtx/imgmzx/metadata"
	"github.com/wmlabtx/imgmzx/metadata/badger"
	"github.com/wmlabtx/imgmzx/model"
	"github.com/wmlabtx/imgmzx/similarity"
	"github.com/wmlabtx/imgmzx/vectorstore"
)

// DB is a photo store: encrypted blobs on two volumes, a metadata record per
// object and an in-memory arena of feature vectors. It is safe for
// concurrent use.
type DB struct {
	cfg     Config
	blobs   *blobstore.Store
	arena   *vectorstore.Arena
	meta    metadata.Store
	engine  *engine.Engine
	rc      *resource.Controller
	logger  *Logger
	metrics MetricsCollector
	fs      fs.FileSystem
	now     func() time.Time

	closeOnce sync.Once
	closeErr  error
	closed    bool
	mu        sync.RWMutex
}

// Open validates cfg and assembles a DB. When cfg.SnapshotPath names an
// existing file the arena is restored from it; vectors held in metadata are
// then added on top.
func Open(ctx context.Context, cfg Config, optFns ...Option) (*DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts := options{
		logger:           NoopLogger(),
		metricsCollector: NoopMetricsCollector{},
		fs:               fs.Default,
		now:              time.Now,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	c := codec.New(codec.WithIterations(cfg.KDFIterations), codec.WithSalt([]byte(cfg.Salt)))

	mirror := opts.mirror
	if mirror == nil {
		m, err := newMirror(ctx, cfg.Mirror)
		if err != nil {
			return nil, err
		}
		mirror = m
	}

	blobOpts := []blobstore.Option{
		blobstore.WithFS(opts.fs),
		blobstore.WithLogger(opts.logger.WithComponent("blobstore").Logger),
		blobstore.WithClock(opts.now),
	}
	if mirror != nil {
		blobOpts = append(blobOpts, blobstore.WithMirror(mirror))
	}
	blobs, err := blobstore.New(blobstore.Config{
		Root:         cfg.Root,
		Backup:       cfg.Backup,
		Archive:      cfg.Archive,
		Trash:        cfg.Trash,
		Ext:          cfg.Ext,
		MinFreeBytes: cfg.MinFreeBytes,
	}, c, blobOpts...)
	if err != nil {
		return nil, translateError(err)
	}

	rc := resource.NewController(resource.Config{
		MemoryLimitBytes: cfg.MemoryLimitBytes,
		MaxWorkers:       int64(cfg.Workers),
		EmbedPerSecond:   cfg.EmbedRate,
	})

	db := &DB{
		cfg:     cfg,
		blobs:   blobs,
		rc:      rc,
		logger:  opts.logger,
		metrics: opts.metricsCollector,
		fs:      opts.fs,
		now:     opts.now,
	}

	db.arena, err = db.openArena(ctx)
	if err != nil {
		return nil, err
	}

	db.meta = opts.meta
	if db.meta == nil {
		db.meta, err = openMetadata(cfg, opts.logger)
		if err != nil {
			_ = db.arena.Close()
			return nil, err
		}
	}

	embedder := opts.embedder
	if embedder == nil {
		embedder = embed.Func(cfg.VectorDimension, func(context.Context, []byte) ([]float32, error) {
			return nil, ErrNoEmbedder
		})
	}
	if embedder.Dimension() != cfg.VectorDimension {
		_ = db.closeParts()
		return nil, &ErrDimensionMismatch{Expected: cfg.VectorDimension, Actual: embedder.Dimension()}
	}
	embedder = embed.Normalized(embedder)

	db.engine, err = engine.New(engine.Config{}, blobs, db.arena, db.meta, embedder,
		engine.WithLogger(opts.logger.WithComponent("engine").Logger),
		engine.WithResourceController(rc),
		engine.WithIndexOptions(similarity.WithWorkers(cfg.Workers)),
	)
	if err != nil {
		_ = db.closeParts()
		return nil, err
	}

	if _, err := db.engine.Load(ctx); err != nil {
		_ = db.closeParts()
		return nil, translateError(err)
	}
	return db, nil
}

func newMirror(ctx context.Context, mc MirrorConfig) (blobstore.Mirror, error) {
	switch mc.Kind {
	case MirrorMinIO:
		client, err := miniogo.New(mc.Endpoint, &miniogo.Options{
			Creds:  credentials.NewStaticV4(mc.AccessKey, mc.SecretKey, ""),
			Secure: mc.UseSSL,
			Region: mc.Region,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: minio: %w", ErrInvalidConfig, err)
		}
		return minio.NewMirror(client, mc.Bucket, mc.Prefix), nil
	case MirrorS3:
		m, err := s3.Load(ctx, mc.Bucket, mc.Prefix, mc.Region)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
		return m, nil
	default:
		return nil, nil
	}
}

func openMetadata(cfg Config, logger *Logger) (metadata.Store, error) {
	if cfg.MetadataDir == "" {
		return metadata.NewMemory(), nil
	}
	s, err := badger.Open(badger.Options{
		Dir:    cfg.MetadataDir,
		Logger: logger.WithComponent("badger").Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("opening metadata: %w", err)
	}
	return s, nil
}

func (db *DB) arenaOptions() []vectorstore.Option {
	return []vectorstore.Option{
		vectorstore.WithGrowthStep(db.cfg.GrowthStep),
		vectorstore.WithMemoryAcquirer(db.rc),
	}
}

func (db *DB) openArena(ctx context.Context) (*vectorstore.Arena, error) {
	path := db.cfg.SnapshotPath
	if path == "" || !fs.Exists(db.fs, path) {
		return vectorstore.New(db.cfg.VectorDimension, db.arenaOptions()...)
	}

	f, err := db.fs.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("opening snapshot: %w", err)
	}
	defer func() { _ = f.Close() }()

	arena, err := vectorstore.ReadSnapshot(bufio.NewReader(f), db.arenaOptions()...)
	db.logger.LogSnapshot(ctx, "load", path, arenaLen(arena), err)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}
	if arena.Dimension() != db.cfg.VectorDimension {
		_ = arena.Close()
		return nil, &ErrDimensionMismatch{
			Expected: db.cfg.VectorDimension,
			Actual:   arena.Dimension(),
			cause:    vectorstore.ErrWrongDimension,
		}
	}
	return arena, nil
}

func arenaLen(a *vectorstore.Arena) int {
	if a == nil {
		return 0
	}
	return a.Len()
}

// saveSnapshot writes the arena next to SnapshotPath and renames it into
// place, so a crash leaves the previous snapshot intact.
func (db *DB) saveSnapshot(ctx context.Context) (err error) {
	path := db.cfg.SnapshotPath
	compression, err := parseCompression(db.cfg.SnapshotCompression)
	if err != nil {
		return err
	}
	if err := db.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	tmp := path + ".tmp"
	defer func() {
		db.logger.LogSnapshot(ctx, "save", path, db.arena.Len(), err)
		if err != nil {
			_ = db.fs.Remove(tmp)
		}
	}()

	f, err := db.fs.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if err := writeSnapshot(f, db.arena, compression); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return db.fs.Rename(tmp, path)
}

func writeSnapshot(f fs.File, arena *vectorstore.Arena, c vectorstore.Compression) error {
	w := bufio.NewWriter(f)
	if _, err := arena.WriteSnapshot(w, c); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return f.Sync()
}

// Put stores plaintext and returns its content hash. Storing the same
// content twice rewrites both copies and keeps the existing record.
func (db *DB) Put(ctx context.Context, plaintext []byte) (model.ContentHash, error) {
	if err := db.checkOpen(); err != nil {
		return "", err
	}
	defer db.mu.RUnlock()

	start := time.Now()
	hash, err := db.engine.Ingest(ctx, plaintext)
	db.metrics.RecordWrite(len(plaintext), time.Since(start), err)
	db.logger.LogWrite(ctx, hash, len(plaintext), err)
	if err != nil {
		return hash, translateError(err)
	}
	return hash, nil
}

// Get returns the verified plaintext stored under hash, repairing damaged
// copies on the way. It returns ErrNotFound when no copy verifies.
func (db *DB) Get(ctx context.Context, hash model.ContentHash) ([]byte, error) {
	if err := hash.Validate(); err != nil {
		return nil, err
	}
	if err := db.checkOpen(); err != nil {
		return nil, err
	}
	defer db.mu.RUnlock()

	start := time.Now()
	plain, src := db.blobs.Fetch(ctx, hash)
	found := src != blobstore.SourceNone
	db.metrics.RecordRead(time.Since(start), found && src != blobstore.SourcePrimary, found)
	db.logger.LogRead(ctx, hash, src.String(), found)
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, hash)
	}
	return plain, nil
}

// Delete archives the object, removes its record and stops proposing it as
// a neighbor. Deleting an unknown hash is not an error.
func (db *DB) Delete(ctx context.Context, hash model.ContentHash) error {
	if err := hash.Validate(); err != nil {
		return err
	}
	if err := db.checkOpen(); err != nil {
		return err
	}
	defer db.mu.RUnlock()

	start := time.Now()
	err := db.blobs.Delete(ctx, hash, db.now())
	if err == nil {
		err = db.meta.Delete(ctx, hash)
		if errors.Is(err, metadata.ErrNotFound) {
			err = nil
		}
	}
	if err == nil {
		db.engine.Forget(hash)
	}
	db.metrics.RecordDelete(time.Since(start), err)
	db.logger.LogDelete(ctx, hash, err)
	return translateError(err)
}

// Verify reports the state of both local copies without repairing them.
func (db *DB) Verify(hash model.ContentHash) (blobstore.Report, error) {
	if err := db.checkOpen(); err != nil {
		return blobstore.Report{Hash: hash}, err
	}
	defer db.mu.RUnlock()
	return db.blobs.Check(hash)
}

// Record returns the metadata record of hash.
func (db *DB) Record(ctx context.Context, hash model.ContentHash) (metadata.Record, error) {
	if err := db.checkOpen(); err != nil {
		return metadata.Record{}, err
	}
	defer db.mu.RUnlock()

	rec, err := db.meta.Get(ctx, hash)
	return rec, translateError(err)
}

// Refresh recomputes the nearest unseen neighbor of hash.
// It returns ErrLost when no copy of the object verifies.
func (db *DB) Refresh(ctx context.Context, hash model.ContentHash) (engine.Outcome, error) {
	if err := db.checkOpen(); err != nil {
		return engine.Outcome{Hash: hash}, err
	}
	defer db.mu.RUnlock()

	start := time.Now()
	out, err := db.engine.Refresh(ctx, hash)
	db.metrics.RecordRefresh(time.Since(start), out.Updated, err)
	db.logger.LogRefresh(ctx, out, err)
	return out, translateError(err)
}

// RefreshAll refreshes hashes concurrently, or every record when hashes is
// empty. Lost objects are counted in the stats and do not stop the batch.
func (db *DB) RefreshAll(ctx context.Context, hashes []model.ContentHash) (engine.BatchStats, error) {
	if err := db.checkOpen(); err != nil {
		return engine.BatchStats{}, err
	}
	defer db.mu.RUnlock()

	if len(hashes) == 0 {
		all, err := db.hashes(ctx)
		if err != nil {
			return engine.BatchStats{}, translateError(err)
		}
		hashes = all
	}

	stats, err := db.engine.RefreshAll(ctx, hashes)
	db.logger.LogBatchRefresh(ctx, len(hashes), stats, err)
	return stats, translateError(err)
}

func (db *DB) hashes(ctx context.Context) ([]model.ContentHash, error) {
	var out []model.ContentHash
	for rec, err := range db.meta.Scan(ctx) {
		if err != nil {
			return nil, err
		}
		out = append(out, rec.Hash)
	}
	return out, nil
}

// Len returns the number of vectors in the arena.
func (db *DB) Len() int {
	return db.arena.Len()
}

// Config returns the configuration the DB was opened with.
func (db *DB) Config() Config {
	return db.cfg
}

// Blobs returns the underlying blob store.
func (db *DB) Blobs() *blobstore.Store {
	return db.blobs
}

// Engine returns the underlying orchestrator.
func (db *DB) Engine() *engine.Engine {
	return db.engine
}

// Close waits for in-flight operations, saves the arena snapshot when
// SnapshotPath is set and closes the metadata store. It is idempotent.
func (db *DB) Close() error {
	if db == nil {
		return nil
	}
	db.closeOnce.Do(func() {
		db.mu.Lock()
		db.closed = true
		db.mu.Unlock()

		var errs []error
		if db.cfg.SnapshotPath != "" {
			if err := db.saveSnapshot(context.Background()); err != nil {
				errs = append(errs, fmt.Errorf("saving snapshot: %w", err))
			}
		}
		errs = append(errs, db.closeParts())
		db.closeErr = errors.Join(errs...)
	})
	return db.closeErr
}

func (db *DB) closeParts() error {
	var errs []error
	if db.meta != nil {
		errs = append(errs, db.meta.Close())
	}
	if db.arena != nil {
		errs = append(errs, db.arena.Close())
	}
	return errors.Join(errs...)
}

// checkOpen takes the read lock and keeps it on success.
func (db *DB) checkOpen() error {
	db.mu.RLock()
	if db.closed {
		db.mu.RUnlock()
		return ErrClosed
	}
	return nil
}

var _ io.Closer = (*DB)(nil)
