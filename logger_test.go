package imgmzx

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/wmlabtx/imgmzx/engine"
	"github.com/wmlabtx/imgmzx/model"
)

func bufferLogger(level slog.Level) (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return NewLogger(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: level})), &buf
}

func TestLoggerHelpers(t *testing.T) {
	ctx := context.Background()
	h := model.Sum([]byte("photo"))
	l, buf := bufferLogger(slog.LevelDebug)

	l.LogWrite(ctx, h, 10, nil)
	assert.Contains(t, buf.String(), "write completed")
	assert.Contains(t, buf.String(), "hash="+h.Short())

	buf.Reset()
	l.LogWrite(ctx, h, 10, errors.New("disk full"))
	assert.Contains(t, buf.String(), "level=ERROR")
	assert.Contains(t, buf.String(), "disk full")

	buf.Reset()
	l.LogRead(ctx, h, "backup", true)
	assert.Contains(t, buf.String(), "read healed")
	assert.Contains(t, buf.String(), "source=backup")

	buf.Reset()
	l.LogRead(ctx, h, "none", false)
	assert.Contains(t, buf.String(), "level=WARN")

	buf.Reset()
	l.LogRefresh(ctx, engine.Outcome{Hash: h, Distance: 1}, nil)
	assert.Contains(t, buf.String(), "refresh completed")

	buf.Reset()
	l.LogBatchRefresh(ctx, 4, engine.BatchStats{Processed: 4, Lost: 1, Duration: time.Second}, nil)
	assert.Contains(t, buf.String(), "with failures")

	buf.Reset()
	l.WithComponent("engine").WithHash(h).Info("x")
	assert.Contains(t, buf.String(), "component=engine")
}

func TestLoggerLevel(t *testing.T) {
	l, buf := bufferLogger(slog.LevelInfo)
	l.LogDelete(context.Background(), model.Sum(nil), nil)
	assert.Empty(t, buf.String())

	NoopLogger().LogDelete(context.Background(), model.Sum(nil), errors.New("ignored"))
}

func TestBasicMetricsCollector(t *testing.T) {
	var mc BasicMetricsCollector
	mc.RecordWrite(100, 2*time.Millisecond, nil)
	mc.RecordWrite(50, 4*time.Millisecond, errors.New("x"))
	mc.RecordRead(time.Millisecond, false, true)
	mc.RecordRead(time.Millisecond, true, true)
	mc.RecordRead(time.Millisecond, false, false)
	mc.RecordDelete(time.Millisecond, nil)
	mc.RecordRefresh(time.Millisecond, true, nil)
	mc.RecordRefresh(time.Millisecond, false, errors.New("x"))

	s := mc.GetStats()
	assert.Equal(t, int64(2), s.WriteCount)
	assert.Equal(t, int64(1), s.WriteErrors)
	assert.Equal(t, int64(100), s.WriteBytes)
	assert.Equal(t, (3 * time.Millisecond).Nanoseconds(), s.WriteAvgNanos)
	assert.Equal(t, int64(3), s.ReadCount)
	assert.Equal(t, int64(1), s.ReadHeals)
	assert.Equal(t, int64(1), s.ReadMisses)
	assert.Equal(t, int64(1), s.DeleteCount)
	assert.Equal(t, int64(2), s.RefreshCount)
	assert.Equal(t, int64(1), s.RefreshUpdates)
	assert.Equal(t, int64(1), s.RefreshErrors)

	var noop MetricsCollector = NoopMetricsCollector{}
	noop.RecordWrite(1, 0, nil)
}
