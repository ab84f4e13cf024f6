package vecraft

import (
	"sync/atomic"
	"time"
)

// MetricsCollector is notified after every DB call. telemetry.Collector
// exports these to Prometheus.
type MetricsCollector interface {
	RecordUpsert(duration time.Duration, err error)
	// RecordBatchUpsert reports how many of count records were not applied.
	RecordBatchUpsert(count, failed int, duration time.Duration)
	RecordQuery(k int, duration time.Duration, err error)
	RecordDelete(duration time.Duration, err error)
	// RecordCollectionOp reports a "create" or "drop".
	RecordCollectionOp(op string, err error)
}

// NoopMetricsCollector ignores everything.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordUpsert(time.Duration, error)         {}
func (NoopMetricsCollector) RecordBatchUpsert(int, int, time.Duration) {}
func (NoopMetricsCollector) RecordQuery(int, time.Duration, error)     {}
func (NoopMetricsCollector) RecordDelete(time.Duration, error)         {}
func (NoopMetricsCollector) RecordCollectionOp(string, error)          {}

// callCounter tracks calls, failures and cumulative latency of one call
// kind.
type callCounter struct {
	calls, errors, nanos atomic.Int64
}

func (c *callCounter) observe(d time.Duration, err error) {
	c.calls.Add(1)
	c.nanos.Add(int64(d))
	if err != nil {
		c.errors.Add(1)
	}
}

func (c *callCounter) meanNanos() int64 {
	n := c.calls.Load()
	if n == 0 {
		return 0
	}
	return c.nanos.Load() / n
}

// BasicMetricsCollector keeps counters in memory. The zero value is
// ready to use.
type BasicMetricsCollector struct {
	upserts, queries, deletes, collections callCounter

	batches, batchItems, batchFailed atomic.Int64
}

func (b *BasicMetricsCollector) RecordUpsert(d time.Duration, err error) {
	b.upserts.observe(d, err)
}

func (b *BasicMetricsCollector) RecordQuery(_ int, d time.Duration, err error) {
	b.queries.observe(d, err)
}

func (b *BasicMetricsCollector) RecordDelete(d time.Duration, err error) {
	b.deletes.observe(d, err)
}

func (b *BasicMetricsCollector) RecordCollectionOp(_ string, err error) {
	b.collections.observe(0, err)
}

func (b *BasicMetricsCollector) RecordBatchUpsert(count, failed int, _ time.Duration) {
	b.batches.Add(1)
	b.batchItems.Add(int64(count))
	b.batchFailed.Add(int64(failed))
}

// BasicMetricsStats is a point-in-time copy of a BasicMetricsCollector.
type BasicMetricsStats struct {
	UpsertCount, UpsertErrors, UpsertAvgNanos             int64
	BatchUpsertCount, BatchUpsertItems, BatchUpsertFailed int64
	QueryCount, QueryErrors, QueryAvgNanos                int64
	DeleteCount, DeleteErrors                             int64
	CollectionOps, CollectionErrors                       int64
}

func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		UpsertCount:       b.upserts.calls.Load(),
		UpsertErrors:      b.upserts.errors.Load(),
		UpsertAvgNanos:    b.upserts.meanNanos(),
		BatchUpsertCount:  b.batches.Load(),
		BatchUpsertItems:  b.batchItems.Load(),
		BatchUpsertFailed: b.batchFailed.Load(),
		QueryCount:        b.queries.calls.Load(),
		QueryErrors:       b.queries.errors.Load(),
		QueryAvgNanos:     b.queries.meanNanos(),
		DeleteCount:       b.deletes.calls.Load(),
		DeleteErrors:      b.deletes.errors.Load(),
		CollectionOps:     b.collections.calls.Load(),
		CollectionErrors:  b.collections.errors.Load(),
	}
}
