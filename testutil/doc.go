// Package testutil provides helpers for tests and benchmarks.
//
// It generates deterministic random vectors and metadata and computes the
// exact ground-truth ranking a correct index must reproduce.
//
//	rng := testutil.NewRNG(seed)
//	vecs := rng.UniformVectors(1000, 64)
//	want := testutil.BruteForceSearch(docs, query, k, distance.MetricCosine, nil)
package testutil
