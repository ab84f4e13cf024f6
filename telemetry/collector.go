package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hupe1980/vecraft"
	"github.com/hupe1980/vecraft/engine"
	"github.com/hupe1980/vecraft/model"
)

const namespace = "vecraft"

// Request status labels used by RecordRequest callers.
const (
	StatusOK    = "OK"
	StatusError = "error"
)

var (
	_ vecraft.MetricsCollector = (*Collector)(nil)
	_ engine.MetricsObserver   = (*Collector)(nil)
)

// Collector holds the Prometheus metrics of one database.
type Collector struct {
	registry *prometheus.Registry

	requests       *prometheus.CounterVec
	opLatency      *prometheus.HistogramVec
	batchRecords   *prometheus.CounterVec
	collectionOps  *prometheus.CounterVec
	queryResults   prometheus.Histogram
	appendLatency  prometheus.Histogram
	appendFailures prometheus.Counter
	applied        *prometheus.CounterVec
	degraded       prometheus.Gauge
	collections    prometheus.Gauge
	records        prometheus.Gauge
}

// NewCollector creates a collector with its own registry.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total transport requests handled",
		}, []string{"method", "status"}),
		opLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_latency_seconds",
			Help:      "Latency of database operations",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op", "status"}),
		batchRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_upsert_records_total",
			Help:      "Records submitted in batch upserts",
		}, []string{"status"}),
		collectionOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "collection_operations_total",
			Help:      "Collection create and drop operations",
		}, []string{"op", "status"}),
		queryResults: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_results",
			Help:      "Number of results returned per query",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 6),
		}),
		appendLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "wal_append_latency_seconds",
			Help:      "Latency of durability log appends including fsync",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 14),
		}),
		appendFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wal_append_failures_total",
			Help:      "Durability log appends that failed",
		}),
		applied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mutations_applied_total",
			Help:      "Mutations applied to the registry",
		}, []string{"op"}),
		degraded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "degraded",
			Help:      "1 while the write path is degraded",
		}),
		collections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "collections_total",
			Help:      "Number of collections currently registered",
		}),
		records: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "records_total",
			Help:      "Number of records stored across all collections",
		}),
	}

	c.registry.MustRegister(
		c.requests,
		c.opLatency,
		c.batchRecords,
		c.collectionOps,
		c.queryResults,
		c.appendLatency,
		c.appendFailures,
		c.applied,
		c.degraded,
		c.collections,
		c.records,
	)
	return c
}

// Registry returns the registry the collector's metrics live in.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// RecordRequest counts one transport request.
func (c *Collector) RecordRequest(method, status string) {
	c.requests.WithLabelValues(method, status).Inc()
}

// SetInventory sets the collection and record gauges.
func (c *Collector) SetInventory(collections, records int) {
	c.collections.Set(float64(collections))
	c.records.Set(float64(records))
}

// Refresh updates the inventory and degraded gauges from a stats snapshot.
func (c *Collector) Refresh(stats vecraft.Stats) {
	c.SetInventory(len(stats.Collections), stats.TotalRecords)
	c.setDegraded(stats.Degraded)
}

// RecordUpsert implements vecraft.MetricsCollector.
func (c *Collector) RecordUpsert(d time.Duration, err error) {
	c.observe("upsert", d, err)
}

// RecordBatchUpsert implements vecraft.MetricsCollector.
func (c *Collector) RecordBatchUpsert(count, failed int, d time.Duration) {
	st := StatusOK
	if failed > 0 {
		st = StatusError
	}
	c.opLatency.WithLabelValues("batch_upsert", st).Observe(d.Seconds())
	c.batchRecords.WithLabelValues(StatusOK).Add(float64(count - failed))
	c.batchRecords.WithLabelValues(StatusError).Add(float64(failed))
}

// RecordQuery implements vecraft.MetricsCollector.
func (c *Collector) RecordQuery(_ int, d time.Duration, err error) {
	c.observe("query", d, err)
}

// RecordDelete implements vecraft.MetricsCollector.
func (c *Collector) RecordDelete(d time.Duration, err error) {
	c.observe("delete", d, err)
}

// RecordCollectionOp implements vecraft.MetricsCollector.
func (c *Collector) RecordCollectionOp(op string, err error) {
	c.collectionOps.WithLabelValues(op, status(err)).Inc()
}

// OnAppend implements engine.MetricsObserver.
func (c *Collector) OnAppend(d time.Duration, err error) {
	if err != nil {
		c.appendFailures.Inc()
		return
	}
	c.appendLatency.Observe(d.Seconds())
}

// OnApply implements engine.MetricsObserver.
func (c *Collector) OnApply(kind model.OpKind, _ string) {
	c.applied.WithLabelValues(string(kind)).Inc()
}

// OnQuery implements engine.MetricsObserver.
func (c *Collector) OnQuery(_ string, _ time.Duration, results int, err error) {
	if err == nil {
		c.queryResults.Observe(float64(results))
	}
}

// OnDegraded implements engine.MetricsObserver.
func (c *Collector) OnDegraded(degraded bool) {
	c.setDegraded(degraded)
}

func (c *Collector) setDegraded(degraded bool) {
	if degraded {
		c.degraded.Set(1)
		return
	}
	c.degraded.Set(0)
}

func (c *Collector) observe(op string, d time.Duration, err error) {
	c.opLatency.WithLabelValues(op, status(err)).Observe(d.Seconds())
}

func status(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusOK
}
