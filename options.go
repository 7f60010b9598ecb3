package imgmzx

import (
	"log/slog"
	"time"

	"github.com/wmlabtx/imgmzx/blobstore"
	"github.com/wmlabtx/imgmzx/embed"
	"github.com/wmlabtx/imgmzx/internal/fs"
	"github.com/wmlabtx/imgmzx/metadata"
)

type options struct {
	logger           *Logger
	metricsCollector MetricsCollector
	embedder         embed.Embedder
	meta             metadata.Store
	mirror           blobstore.Mirror
	fs               fs.FileSystem
	now              func() time.Time
}

// Option configures Open.
type Option func(*options)

// WithLogger sets the logger. Defaults to NoopLogger.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithLogLevel installs a text logger at the given level.
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithMetricsCollector sets the metrics collector.
//
// Example:
//
//	metrics := &imgmzx.BasicMetricsCollector{}
//	db, _ := imgmzx.Open(ctx, cfg, imgmzx.WithMetricsCollector(metrics))
//	stats := metrics.GetStats()
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc != nil {
			o.metricsCollector = mc
		}
	}
}

// WithEmbedder sets the embedding service used by Refresh.
// Its dimension must equal Config.VectorDimension.
func WithEmbedder(e embed.Embedder) Option {
	return func(o *options) {
		o.embedder = e
	}
}

// WithMetadataStore replaces the store chosen from Config.MetadataDir.
// The DB closes it on Close.
func WithMetadataStore(s metadata.Store) Option {
	return func(o *options) {
		o.meta = s
	}
}

// WithMirror replaces the mirror built from Config.Mirror.
func WithMirror(m blobstore.Mirror) Option {
	return func(o *options) {
		o.mirror = m
	}
}

// WithFileSystem sets the file system used for blobs and snapshots.
func WithFileSystem(fsys fs.FileSystem) Option {
	return func(o *options) {
		if fsys != nil {
			o.fs = fsys
		}
	}
}

// WithClock sets the time source used for archive and trash paths.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}
