// Package distance provides the distance metrics used for exact nearest-neighbor scans.
//
// Kernels are backed by github.com/viterin/vek/vek32, which dispatches to
// AVX2 code on amd64 when available and falls back to pure Go elsewhere.
//
// # Supported Metrics
//
//   - MetricCosine: 1 - cosine similarity
//   - MetricEuclidean: Euclidean (L2) distance
//   - MetricDot: negated dot product
//
// Every metric is expressed as a distance: smaller values are closer. The
// matching similarity is available through Metric.Score.
//
// # Usage
//
//	m, err := distance.ParseMetric("cosine")
//	d := m.Distance(a, b)
package distance
