package loader

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting read metrics.
// Implement it to forward loader activity to a monitoring system.
type MetricsCollector interface {
	// RecordRead is called after every FieldLoader read. rows is the number
	// of rows returned and cached reports whether the in-memory copy served it.
	RecordRead(field string, rows int, cached bool, duration time.Duration, err error)

	// RecordMaterialize is called after a field is loaded into memory.
	RecordMaterialize(field string, bytes int, duration time.Duration, err error)
}

// NoopMetricsCollector discards every measurement.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordRead(string, int, bool, time.Duration, error)  {}
func (NoopMetricsCollector) RecordMaterialize(string, int, time.Duration, error) {}

// BasicMetricsCollector keeps in-memory counters.
type BasicMetricsCollector struct {
	Reads             atomic.Int64
	CachedReads       atomic.Int64
	ReadErrors        atomic.Int64
	RowsRead          atomic.Int64
	ReadNanos         atomic.Int64
	Materializations  atomic.Int64
	MaterializedBytes atomic.Int64
}

func (c *BasicMetricsCollector) RecordRead(_ string, rows int, cached bool, duration time.Duration, err error) {
	c.Reads.Add(1)
	c.ReadNanos.Add(int64(duration))
	if err != nil {
		c.ReadErrors.Add(1)
		return
	}
	if cached {
		c.CachedReads.Add(1)
	}
	c.RowsRead.Add(int64(rows))
}

func (c *BasicMetricsCollector) RecordMaterialize(_ string, bytes int, _ time.Duration, err error) {
	if err != nil {
		return
	}
	c.Materializations.Add(1)
	c.MaterializedBytes.Add(int64(bytes))
}

// Stats is a point-in-time copy of a BasicMetricsCollector.
type Stats struct {
	Reads             int64
	CachedReads       int64
	ReadErrors        int64
	RowsRead          int64
	AvgReadLatency    time.Duration
	Materializations  int64
	MaterializedBytes int64
}

// GetStats returns a snapshot of the counters.
func (c *BasicMetricsCollector) GetStats() Stats {
	s := Stats{
		Reads:             c.Reads.Load(),
		CachedReads:       c.CachedReads.Load(),
		ReadErrors:        c.ReadErrors.Load(),
		RowsRead:          c.RowsRead.Load(),
		Materializations:  c.Materializations.Load(),
		MaterializedBytes: c.MaterializedBytes.Load(),
	}
	if s.Reads > 0 {
		s.AvgReadLatency = time.Duration(c.ReadNanos.Load() / s.Reads)
	}
	return s
}
