package testutil

import (
	"cmp"
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
	"sync"

	"github.com/hupe1980/vecraft/distance"
	"github.com/hupe1980/vecraft/metadata"
	"github.com/hupe1980/vecraft/model"
)

// RNG is a seeded, goroutine-safe source of test data. Equal seeds yield
// equal sequences.
type RNG struct {
	mu   sync.Mutex
	seed uint64
	r    *rand.Rand
}

func NewRNG(seed int64) *RNG {
	g := &RNG{seed: uint64(seed)}
	g.Reset()
	return g
}

// Reset rewinds the generator to its seed.
func (g *RNG) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.r = rand.New(rand.NewPCG(g.seed, g.seed^0x9e3779b97f4a7c15))
}

func (g *RNG) Intn(n int) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.r.IntN(n)
}

// UniformVectors returns num vectors with components in [-1, 1).
func (g *RNG) UniformVectors(num, dim int) [][]float32 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.fill(num, dim, func() float64 { return g.r.Float64()*2 - 1 })
}

// UnitVectors returns num gaussian vectors scaled to unit length.
func (g *RNG) UnitVectors(num, dim int) [][]float32 {
	g.mu.Lock()
	defer g.mu.Unlock()

	vecs := g.fill(num, dim, g.r.NormFloat64)
	for _, v := range vecs {
		var sum float64
		for _, x := range v {
			sum += float64(x) * float64(x)
		}
		if sum == 0 {
			continue
		}
		scale := float32(1 / math.Sqrt(sum))
		for j := range v {
			v[j] *= scale
		}
	}
	return vecs
}

// fill carves num vectors out of one backing slice. Callers hold mu.
func (g *RNG) fill(num, dim int, next func() float64) [][]float32 {
	backing := make([]float32, num*dim)
	out := make([][]float32, num)
	for i := range out {
		v := backing[i*dim : (i+1)*dim : (i+1)*dim]
		for j := range v {
			v[j] = float32(next())
		}
		out[i] = v
	}
	return out
}

// Categories are the values Metadata draws "category" from.
var Categories = []string{"news", "blog", "paper", "wiki"}

// Metadata returns a document with "category" (string), "year" (int in
// 2000..2024), "score" (float in [0,1)) and "published" (bool).
func (g *RNG) Metadata() metadata.Document {
	g.mu.Lock()
	defer g.mu.Unlock()
	return metadata.Document{
		"category":  metadata.String(Categories[g.r.IntN(len(Categories))]),
		"year":      metadata.Int(2000 + g.r.Int64N(25)),
		"score":     metadata.Float(g.r.Float64()),
		"published": metadata.Bool(g.r.IntN(2) == 1),
	}
}

// Records returns num records with ids r0000, r0001, ... plus random
// vectors and metadata.
func (g *RNG) Records(num, dim int) []model.Record {
	vecs := g.UniformVectors(num, dim)
	recs := make([]model.Record, num)
	for i, v := range vecs {
		recs[i] = model.Record{ID: fmt.Sprintf("r%04d", i), Vector: v, Metadata: g.Metadata()}
	}
	return recs
}

// SearchResult is one ground-truth hit.
type SearchResult struct {
	ID       string
	Distance float32
}

// BruteForceSearch is the reference ranking: keep records matching fs,
// order by distance then id, cut at k.
func BruteForceSearch(records []model.Record, query []float32, k int, m distance.Metric, fs *metadata.FilterSet) []SearchResult {
	var hits []SearchResult
	for _, r := range records {
		if fs.Matches(r.Metadata) {
			hits = append(hits, SearchResult{r.ID, m.Distance(query, r.Vector)})
		}
	}
	slices.SortFunc(hits, func(a, b SearchResult) int {
		return cmp.Or(cmp.Compare(a.Distance, b.Distance), cmp.Compare(a.ID, b.ID))
	})
	return hits[:min(k, len(hits))]
}
