package imgmzx

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
type MetricsCollector interface {
	// RecordWrite is called after each blob write.
	RecordWrite(bytes int, duration time.Duration, err error)

	// RecordRead is called after each blob read. healed is set when a copy
	// other than the primary satisfied the read.
	RecordRead(duration time.Duration, healed, found bool)

	// RecordDelete is called after each delete.
	RecordDelete(duration time.Duration, err error)

	// RecordRefresh is called after each neighbor refresh. updated is set
	// when the new neighbor was written to metadata.
	RecordRefresh(duration time.Duration, updated bool, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordWrite(int, time.Duration, error)    {}
func (NoopMetricsCollector) RecordRead(time.Duration, bool, bool)     {}
func (NoopMetricsCollector) RecordDelete(time.Duration, error)        {}
func (NoopMetricsCollector) RecordRefresh(time.Duration, bool, error) {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	WriteCount      atomic.Int64
	WriteErrors     atomic.Int64
	WriteBytes      atomic.Int64
	WriteTotalNanos atomic.Int64
	ReadCount       atomic.Int64
	ReadMisses      atomic.Int64
	ReadHeals       atomic.Int64
	ReadTotalNanos  atomic.Int64
	DeleteCount     atomic.Int64
	DeleteErrors    atomic.Int64
	RefreshCount    atomic.Int64
	RefreshUpdates  atomic.Int64
	RefreshErrors   atomic.Int64
}

// RecordWrite implements MetricsCollector.
func (b *BasicMetricsCollector) RecordWrite(bytes int, duration time.Duration, err error) {
	b.WriteCount.Add(1)
	b.WriteTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.WriteErrors.Add(1)
		return
	}
	b.WriteBytes.Add(int64(bytes))
}

// RecordRead implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRead(duration time.Duration, healed, found bool) {
	b.ReadCount.Add(1)
	b.ReadTotalNanos.Add(duration.Nanoseconds())
	if !found {
		b.ReadMisses.Add(1)
	}
	if healed {
		b.ReadHeals.Add(1)
	}
}

// RecordDelete implements MetricsCollector.
func (b *BasicMetricsCollector) RecordDelete(_ time.Duration, err error) {
	b.DeleteCount.Add(1)
	if err != nil {
		b.DeleteErrors.Add(1)
	}
}

// RecordRefresh implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRefresh(_ time.Duration, updated bool, err error) {
	b.RefreshCount.Add(1)
	if err != nil {
		b.RefreshErrors.Add(1)
	}
	if updated {
		b.RefreshUpdates.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		WriteCount:     b.WriteCount.Load(),
		WriteErrors:    b.WriteErrors.Load(),
		WriteBytes:     b.WriteBytes.Load(),
		WriteAvgNanos:  avg(b.WriteTotalNanos.Load(), b.WriteCount.Load()),
		ReadCount:      b.ReadCount.Load(),
		ReadMisses:     b.ReadMisses.Load(),
		ReadHeals:      b.ReadHeals.Load(),
		ReadAvgNanos:   avg(b.ReadTotalNanos.Load(), b.ReadCount.Load()),
		DeleteCount:    b.DeleteCount.Load(),
		DeleteErrors:   b.DeleteErrors.Load(),
		RefreshCount:   b.RefreshCount.Load(),
		RefreshUpdates: b.RefreshUpdates.Load(),
		RefreshErrors:  b.RefreshErrors.Load(),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	WriteCount     int64
	WriteErrors    int64
	WriteBytes     int64
	WriteAvgNanos  int64
	ReadCount      int64
	ReadMisses     int64
	ReadHeals      int64
	ReadAvgNanos   int64
	DeleteCount    int64
	DeleteErrors   int64
	RefreshCount   int64
	RefreshUpdates int64
	RefreshErrors  int64
}
