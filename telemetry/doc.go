// Package telemetry exports database metrics to Prometheus.
//
// A Collector is both a vecraft.MetricsCollector (per-call latency) and an
// engine.MetricsObserver (log appends, applies, degraded transitions), and
// additionally tracks transport request counts and inventory gauges.
// Serve exposes the collector's registry on /metrics.
package telemetry
