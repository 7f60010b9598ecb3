package blobstore

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/wmlabtx/imgmzx/codec"
	"github.com/wmlabtx/imgmzx/internal/fs"
	"github.com/wmlabtx/imgmzx/model"
)

// DefaultExt is the file extension of stored objects.
const DefaultExt = "mzx"

const stagedSuffix = ".original"

// Config locates the store on disk.
type Config struct {
	// Root holds the primary copies.
	Root string
	// Backup holds the replica copies, sharded like Root.
	Backup string
	// Archive receives deleted objects, grouped by day.
	Archive string
	// Trash receives superseded and redundant copies.
	// Defaults to <Archive>/trash.
	Trash string
	// Ext is the file extension without the dot. Defaults to DefaultExt.
	Ext string
	// MinFreeBytes is kept free on each volume after a write.
	MinFreeBytes uint64
}

// Option configures a Store.
type Option func(*Store)

// WithFS sets the file system (tests inject fs.FaultyFS).
func WithFS(fsys fs.FileSystem) Option {
	return func(s *Store) {
		if fsys != nil {
			s.fs = fsys
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMirror adds an offsite copy consulted when both local copies fail.
func WithMirror(m Mirror) Option {
	return func(s *Store) {
		s.mirror = m
	}
}

// WithClock sets the time source used for trash directories.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Store is a redundant, content-addressed store of encrypted objects.
type Store struct {
	cfg    Config
	codec  *codec.Codec
	fs     fs.FileSystem
	log    *slog.Logger
	mirror Mirror
	now    func() time.Time

	mu sync.Mutex
}

// New creates a store. Directories are created lazily.
func New(cfg Config, c *codec.Codec, opts ...Option) (*Store, error) {
	if cfg.Root == "" || cfg.Backup == "" || cfg.Archive == "" {
		return nil, fmt.Errorf("%w: root, backup and archive are required", ErrInvalidConfig)
	}
	if filepath.Clean(cfg.Root) == filepath.Clean(cfg.Backup) {
		return nil, fmt.Errorf("%w: root and backup must differ", ErrInvalidConfig)
	}
	if cfg.Trash == "" {
		cfg.Trash = filepath.Join(cfg.Archive, "trash")
	}
	if cfg.Ext == "" {
		cfg.Ext = DefaultExt
	}
	if c == nil {
		c = codec.New()
	}

	s := &Store{
		cfg:   cfg,
		codec: c,
		fs:    fs.Default,
		log:   slog.New(slog.DiscardHandler),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Config returns the effective configuration.
func (s *Store) Config() Config {
	return s.cfg
}

// Path returns the primary path of hash.
func (s *Store) Path(hash model.ContentHash) string {
	return shardPath(s.cfg.Root, hash, s.cfg.Ext)
}

// BackupPath returns the backup path of hash.
func (s *Store) BackupPath(hash model.ContentHash) string {
	return shardPath(s.cfg.Backup, hash, s.cfg.Ext)
}

// ArchivePath returns where Delete at t moves hash.
func (s *Store) ArchivePath(hash model.ContentHash, t time.Time) string {
	return filepath.Join(s.cfg.Archive, t.Format(time.DateOnly),
		t.Format("150405")+"."+fileName(hash, s.cfg.Ext))
}

// Exists reports whether a primary or backup file exists for hash.
// It does not verify the contents.
func (s *Store) Exists(hash model.ContentHash) bool {
	if hash.Validate() != nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fs.Exists(s.fs, s.Path(hash)) || fs.Exists(s.fs, s.BackupPath(hash))
}

// MirrorKey is the object key of hash in a Mirror: the shard path relative
// to a root, always with forward slashes.
func MirrorKey(hash model.ContentHash, ext string) string {
	h0, h1 := hash.Shard()
	return h0 + "/" + h1 + "/" + fileName(hash, ext)
}

func shardPath(root string, hash model.ContentHash, ext string) string {
	h0, h1 := hash.Shard()
	return filepath.Join(root, h0, h1, fileName(hash, ext))
}

func fileName(hash model.ContentHash, ext string) string {
	return string(hash) + "." + ext
}
