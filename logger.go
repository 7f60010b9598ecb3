package imgmzx

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/wmlabtx/imgmzx/engine"
	"github.com/wmlabtx/imgmzx/model"
)

// Logger wraps slog.Logger with imgmzx-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return NewLogger(slog.DiscardHandler)
}

// WithHash adds a hash field to the logger.
func (l *Logger) WithHash(h model.ContentHash) *Logger {
	return &Logger{
		Logger: l.Logger.With("hash", h.Short()),
	}
}

// WithComponent adds a component field to the logger.
func (l *Logger) WithComponent(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("component", name),
	}
}

// LogWrite logs a blob write.
func (l *Logger) LogWrite(ctx context.Context, h model.ContentHash, size int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "write failed",
			"hash", h.Short(),
			"bytes", size,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "write completed",
			"hash", h.Short(),
			"bytes", size,
		)
	}
}

// LogRead logs a blob read. source names the copy that verified.
func (l *Logger) LogRead(ctx context.Context, h model.ContentHash, source string, found bool) {
	switch {
	case !found:
		l.WarnContext(ctx, "read found no valid copy",
			"hash", h.Short(),
		)
	case source != "primary":
		l.InfoContext(ctx, "read healed",
			"hash", h.Short(),
			"source", source,
		)
	default:
		l.DebugContext(ctx, "read completed",
			"hash", h.Short(),
		)
	}
}

// LogDelete logs a delete.
func (l *Logger) LogDelete(ctx context.Context, h model.ContentHash, err error) {
	if err != nil {
		l.ErrorContext(ctx, "delete failed",
			"hash", h.Short(),
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "delete completed",
			"hash", h.Short(),
		)
	}
}

// LogRefresh logs one neighbor refresh.
func (l *Logger) LogRefresh(ctx context.Context, out engine.Outcome, err error) {
	if err != nil {
		l.ErrorContext(ctx, "refresh failed",
			"hash", out.Hash.Short(),
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "refresh completed",
			"hash", out.Hash.Short(),
			"next", out.Next.Short(),
			"distance", out.Distance,
			"updated", out.Updated,
		)
	}
}

// LogBatchRefresh logs a batch refresh.
func (l *Logger) LogBatchRefresh(ctx context.Context, count int, stats engine.BatchStats, err error) {
	if err != nil || stats.Lost > 0 {
		l.WarnContext(ctx, "batch refresh completed with failures",
			"total", count,
			"processed", stats.Processed,
			"lost", stats.Lost,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "batch refresh completed",
			"count", count,
			"updated", stats.Updated,
			"duration", stats.Duration.Round(time.Millisecond),
		)
	}
}

// LogSnapshot logs an arena snapshot save or load.
func (l *Logger) LogSnapshot(ctx context.Context, op, filename string, vectors int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "snapshot "+op+" failed",
			"filename", filename,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "snapshot "+op,
			"filename", filename,
			"vectors", vectors,
		)
	}
}
