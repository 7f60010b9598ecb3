package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wmlabtx/imgmzx/model"
)

// BatchStats summarizes a RefreshAll run.
type BatchStats struct {
	// Processed counts successful refreshes.
	Processed int
	Updated   int
	Embedded  int
	// Lost counts objects whose records were deleted.
	Lost     int
	Duration time.Duration
}

// RefreshAll refreshes hashes on the resource controller's workers. Lost
// objects are counted and skipped; any other error stops the batch and is
// returned with the stats gathered so far.
func (e *Engine) RefreshAll(ctx context.Context, hashes []model.ContentHash) (BatchStats, error) {
	start := time.Now()
	var processed, updated, embedded, lost atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	for _, h := range hashes {
		if err := e.rc.AcquireWorker(gctx); err != nil {
			break
		}
		g.Go(func() error {
			defer e.rc.ReleaseWorker()

			out, err := e.Refresh(gctx, h)
			switch {
			case errors.Is(err, ErrLost):
				lost.Add(1)
				return nil
			case err != nil:
				return err
			}
			processed.Add(1)
			if out.Updated {
				updated.Add(1)
			}
			if out.Embedded {
				embedded.Add(1)
			}
			return nil
		})
	}
	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}

	stats := BatchStats{
		Processed: int(processed.Load()),
		Updated:   int(updated.Load()),
		Embedded:  int(embedded.Load()),
		Lost:      int(lost.Load()),
		Duration:  time.Since(start),
	}
	e.log.Info("refresh batch done",
		slog.Int("processed", stats.Processed), slog.Int("updated", stats.Updated),
		slog.Int("embedded", stats.Embedded), slog.Int("lost", stats.Lost),
		slog.Duration("duration", stats.Duration), slog.Any("error", err))
	return stats, err
}
