package flat

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/hupe1980/vecraft/distance"
	"github.com/hupe1980/vecraft/index"
	"github.com/hupe1980/vecraft/metadata"
	"github.com/hupe1980/vecraft/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resultIDs(rs []index.Result) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.ID
	}
	return out
}

func truthIDs(rs []testutil.SearchResult) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.ID
	}
	return out
}

func mustNew(t *testing.T, dim int, m distance.Metric, optFns ...func(o *Options)) *Index {
	t.Helper()
	f, err := New(dim, m, optFns...)
	require.NoError(t, err)
	return f
}

func TestNew(t *testing.T) {
	_, err := New(0, distance.MetricCosine)
	assert.Error(t, err)

	_, err = New(3, distance.Metric(7))
	assert.ErrorIs(t, err, index.ErrInvalidMetric)

	f := mustNew(t, 3, distance.MetricDot)
	assert.Equal(t, 3, f.Dimension())
	assert.Equal(t, distance.MetricDot, f.Metric())
	assert.Equal(t, 0, f.Len())
}

func TestUpsertDelete(t *testing.T) {
	f := mustNew(t, 3, distance.MetricCosine)

	inserted, err := f.Upsert("a", []float32{1, 0, 0}, metadata.Document{"k": metadata.String("x")})
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = f.Upsert("a", []float32{0, 1, 0}, nil)
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, 1, f.Len())

	rec, ok := f.Get("a")
	require.True(t, ok)
	assert.Equal(t, []float32{0, 1, 0}, rec.Vector)
	assert.Nil(t, rec.Metadata)

	assert.True(t, f.Delete("a"))
	assert.False(t, f.Delete("a"))
	assert.False(t, f.Delete("missing"))
	assert.Equal(t, 0, f.Len())

	_, ok = f.Get("a")
	assert.False(t, ok)

	// freed slot is reused
	_, err = f.Upsert("b", []float32{0, 0, 1}, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, f.Stats().FreeSlots)
}

func TestUpsertValidation(t *testing.T) {
	f := mustNew(t, 3, distance.MetricEuclidean)
	_, err := f.Upsert("a", []float32{1, 2, 3}, nil)
	require.NoError(t, err)

	_, err = f.Upsert("b", []float32{1, 2}, nil)
	var dimErr *index.ErrDimensionMismatch
	require.ErrorAs(t, err, &dimErr)
	assert.Equal(t, 3, dimErr.Expected)
	assert.Equal(t, 2, dimErr.Actual)

	_, err = f.Upsert("a", []float32{1, float32(math.NaN()), 3}, nil)
	assert.ErrorIs(t, err, index.ErrInvalidVector)

	_, err = f.Upsert("", []float32{1, 2, 3}, nil)
	assert.Error(t, err)

	// state unchanged
	assert.Equal(t, 1, f.Len())
	rec, _ := f.Get("a")
	assert.Equal(t, []float32{1, 2, 3}, rec.Vector)
}

func TestLargeMagnitudeVectors(t *testing.T) {
	ctx := context.Background()
	huge := []float32{3e19, 3e19, 0}
	large := []float32{7e17, 7e17, 0}

	for _, m := range []distance.Metric{distance.MetricEuclidean, distance.MetricCosine, distance.MetricDot} {
		t.Run(m.String(), func(t *testing.T) {
			f := mustNew(t, 3, m)

			_, err := f.Upsert("huge", huge, nil)
			assert.ErrorIs(t, err, index.ErrInvalidVector)
			assert.Equal(t, 0, f.Len())

			_, err = f.Upsert("a", large, nil)
			require.NoError(t, err)
			_, err = f.Upsert("b", []float32{0, 1, 0}, nil)
			require.NoError(t, err)

			_, err = f.Search(ctx, index.SearchOptions{Vector: huge, K: 1})
			assert.ErrorIs(t, err, index.ErrInvalidVector)

			res, err := f.Search(ctx, index.SearchOptions{Vector: large, K: 2})
			require.NoError(t, err)
			require.Len(t, res, 2)
			assert.Equal(t, "a", res[0].ID)
			for _, r := range res {
				assert.False(t, math.IsNaN(float64(r.Distance)) || math.IsInf(float64(r.Distance), 0), "distance %v", r.Distance)
				assert.False(t, math.IsNaN(float64(r.Score)) || math.IsInf(float64(r.Score), 0), "score %v", r.Score)
			}
		})
	}
}

func TestUpsertCopiesInput(t *testing.T) {
	f := mustNew(t, 2, distance.MetricEuclidean)
	vec := []float32{1, 2}
	meta := metadata.Document{"tag": metadata.String("a")}
	_, err := f.Upsert("a", vec, meta)
	require.NoError(t, err)

	vec[0] = 100
	meta["tag"] = metadata.String("b")

	rec, _ := f.Get("a")
	assert.Equal(t, []float32{1, 2}, rec.Vector)
	assert.Equal(t, "a", rec.Metadata["tag"].StringValue())

	rec.Vector[1] = 42
	again, _ := f.Get("a")
	assert.Equal(t, float32(2), again.Vector[1])
}

func TestSearchDocsScenario(t *testing.T) {
	f := mustNew(t, 3, distance.MetricCosine)
	_, err := f.Upsert("a", []float32{1, 0, 0}, nil)
	require.NoError(t, err)
	_, err = f.Upsert("b", []float32{0, 1, 0}, nil)
	require.NoError(t, err)

	ctx := context.Background()
	res, err := f.Search(ctx, index.SearchOptions{Vector: []float32{1, 0, 0}, K: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, resultIDs(res))
	assert.InDelta(t, 0, res[0].Distance, 1e-6)
	assert.InDelta(t, 1, res[0].Score, 1e-6)

	res, err = f.Search(ctx, index.SearchOptions{Vector: []float32{0.9, 0.1, 0}, K: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, resultIDs(res))
}

func TestSearchValidation(t *testing.T) {
	f := mustNew(t, 3, distance.MetricCosine)
	_, _ = f.Upsert("a", []float32{1, 0, 0}, nil)
	ctx := context.Background()

	_, err := f.Search(ctx, index.SearchOptions{Vector: []float32{1, 0, 0}, K: 0})
	assert.ErrorIs(t, err, index.ErrInvalidK)

	_, err = f.Search(ctx, index.SearchOptions{Vector: []float32{1, 0}, K: 1})
	assert.IsType(t, &index.ErrDimensionMismatch{}, err)

	_, err = f.Search(ctx, index.SearchOptions{Vector: []float32{float32(math.Inf(1)), 0, 0}, K: 1})
	assert.ErrorIs(t, err, index.ErrInvalidVector)

	bad := metadata.NewFilterSet(metadata.Gt("year", metadata.String("x")))
	_, err = f.Search(ctx, index.SearchOptions{Vector: []float32{1, 0, 0}, K: 1, Filter: bad})
	assert.ErrorIs(t, err, metadata.ErrInvalidFilter)

	m := distance.Metric(9)
	_, err = f.Search(ctx, index.SearchOptions{Vector: []float32{1, 0, 0}, K: 1, Metric: &m})
	assert.ErrorIs(t, err, index.ErrInvalidMetric)
}

func TestSearchEmptyAndShortResults(t *testing.T) {
	f := mustNew(t, 2, distance.MetricEuclidean)
	ctx := context.Background()

	res, err := f.Search(ctx, index.SearchOptions{Vector: []float32{0, 0}, K: 5})
	require.NoError(t, err)
	assert.Empty(t, res)

	_, _ = f.Upsert("x", []float32{1, 1}, nil)
	_, _ = f.Upsert("y", []float32{2, 2}, nil)
	res, err = f.Search(ctx, index.SearchOptions{Vector: []float32{0, 0}, K: 5})
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, resultIDs(res))
}

func TestSearchTieBreakByID(t *testing.T) {
	f := mustNew(t, 2, distance.MetricEuclidean)
	for _, id := range []string{"d", "b", "c", "a"} {
		_, err := f.Upsert(id, []float32{1, 1}, nil)
		require.NoError(t, err)
	}

	res, err := f.Search(context.Background(), index.SearchOptions{Vector: []float32{0, 0}, K: 3})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, resultIDs(res))
}

func TestSearchMetricOverrideAndPayloads(t *testing.T) {
	f := mustNew(t, 2, distance.MetricEuclidean)
	_, _ = f.Upsert("near", []float32{1, 0}, metadata.Document{"n": metadata.Int(1)})
	_, _ = f.Upsert("long", []float32{10, 0}, metadata.Document{"n": metadata.Int(2)})

	ctx := context.Background()
	res, err := f.Search(ctx, index.SearchOptions{Vector: []float32{1, 0}, K: 1})
	require.NoError(t, err)
	assert.Equal(t, "near", res[0].ID)
	assert.Nil(t, res[0].Metadata)
	assert.Nil(t, res[0].Vector)

	dot := distance.MetricDot
	res, err = f.Search(ctx, index.SearchOptions{Vector: []float32{1, 0}, K: 1, Metric: &dot, WithMetadata: true, WithVector: true})
	require.NoError(t, err)
	assert.Equal(t, "long", res[0].ID)
	assert.InDelta(t, 10, res[0].Score, 1e-6)
	assert.Equal(t, int64(2), res[0].Metadata["n"].I64)
	assert.Equal(t, []float32{10, 0}, res[0].Vector)
}

func TestSearchFilters(t *testing.T) {
	rng := testutil.NewRNG(42)
	recs := rng.Records(400, 8)
	f := mustNew(t, 8, distance.MetricCosine)
	for _, r := range recs {
		_, err := f.Upsert(r.ID, r.Vector, r.Metadata)
		require.NoError(t, err)
	}

	filters := map[string]*metadata.FilterSet{
		"eq string": metadata.NewFilterSet(metadata.Eq("category", metadata.String("news"))),
		"eq bool":   metadata.NewFilterSet(metadata.Eq("published", metadata.Bool(true))),
		"in":        metadata.NewFilterSet(metadata.In("category", metadata.String("blog"), metadata.String("wiki"))),
		"range":     metadata.NewFilterSet(metadata.Gte("year", metadata.Int(2010)), metadata.Lt("year", metadata.Int(2015))),
		"mixed": metadata.NewFilterSet(
			metadata.Eq("category", metadata.String("paper")),
			metadata.Eq("published", metadata.Bool(false)),
			metadata.Gt("score", metadata.Float(0.5)),
		),
		"eq int":   metadata.NewFilterSet(metadata.Eq("year", metadata.Int(2004))),
		"no match": metadata.NewFilterSet(metadata.Eq("category", metadata.String("none"))),
		"missing":  metadata.NewFilterSet(metadata.Ne("absent", metadata.Int(1))),
	}

	q := rng.UniformVectors(1, 8)[0]
	for name, fs := range filters {
		t.Run(name, func(t *testing.T) {
			all := testutil.BruteForceSearch(recs, q, len(recs), distance.MetricCosine, fs)

			res, err := f.Search(context.Background(), index.SearchOptions{Vector: q, K: len(recs), Filter: fs, WithMetadata: true})
			require.NoError(t, err)
			assert.Equal(t, truthIDs(all), resultIDs(res))
			for _, r := range res {
				assert.True(t, fs.Matches(r.Metadata))
			}
		})
	}
}

func TestSearchFilterAfterUpdate(t *testing.T) {
	f := mustNew(t, 2, distance.MetricEuclidean)
	_, _ = f.Upsert("a", []float32{1, 0}, metadata.Document{"c": metadata.String("x")})
	_, _ = f.Upsert("a", []float32{1, 0}, metadata.Document{"c": metadata.String("y")})

	ctx := context.Background()
	byX := metadata.NewFilterSet(metadata.Eq("c", metadata.String("x")))
	res, err := f.Search(ctx, index.SearchOptions{Vector: []float32{0, 0}, K: 10, Filter: byX})
	require.NoError(t, err)
	assert.Empty(t, res)

	byY := metadata.NewFilterSet(metadata.Eq("c", metadata.String("y")))
	res, err = f.Search(ctx, index.SearchOptions{Vector: []float32{0, 0}, K: 10, Filter: byY})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, resultIDs(res))

	f.Delete("a")
	res, err = f.Search(ctx, index.SearchOptions{Vector: []float32{0, 0}, K: 10, Filter: byY})
	require.NoError(t, err)
	assert.Empty(t, res)
	assert.Equal(t, 0, f.Stats().IndexedKeys)
}

func TestSearchParallelMatchesSerial(t *testing.T) {
	rng := testutil.NewRNG(3)
	recs := rng.Records(1000, 16)

	serial := mustNew(t, 16, distance.MetricEuclidean, func(o *Options) { o.ParallelThreshold = math.MaxInt })
	parallel := mustNew(t, 16, distance.MetricEuclidean, func(o *Options) {
		o.ParallelThreshold = 10
		o.Partitions = 4
	})
	for _, r := range recs {
		_, _ = serial.Upsert(r.ID, r.Vector, r.Metadata)
		_, _ = parallel.Upsert(r.ID, r.Vector, r.Metadata)
	}

	ctx := context.Background()
	for _, q := range rng.UniformVectors(5, 16) {
		a, err := serial.Search(ctx, index.SearchOptions{Vector: q, K: 20})
		require.NoError(t, err)
		b, err := parallel.Search(ctx, index.SearchOptions{Vector: q, K: 20})
		require.NoError(t, err)
		assert.Equal(t, resultIDs(a), resultIDs(b))

		want := testutil.BruteForceSearch(recs, q, 20, distance.MetricEuclidean, nil)
		assert.Equal(t, truthIDs(want), resultIDs(b))
	}
}

func TestSearchContext(t *testing.T) {
	f := mustNew(t, 2, distance.MetricEuclidean, func(o *Options) {
		o.ParallelThreshold = 2
		o.Partitions = 2
		o.CheckInterval = 1
	})
	for _, r := range testutil.NewRNG(1).Records(50, 2) {
		_, _ = f.Upsert(r.ID, r.Vector, nil)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()
	_, err := f.Search(ctx, index.SearchOptions{Vector: []float32{0, 0}, K: 3})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	ctx, cancel = context.WithCancel(context.Background())
	cancel()
	_, err = f.Search(ctx, index.SearchOptions{Vector: []float32{0, 0}, K: 3})
	assert.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, 50, f.Len())
}

func TestRecordsSnapshot(t *testing.T) {
	f := mustNew(t, 1, distance.MetricEuclidean)
	for _, id := range []string{"c", "a", "b"} {
		_, _ = f.Upsert(id, []float32{1}, nil)
	}
	f.Delete("b")

	recs := f.Records()
	require.Len(t, recs, 2)
	assert.Equal(t, "a", recs[0].ID)
	assert.Equal(t, "c", recs[1].ID)
}

func TestConcurrentSearchAndUpsert(t *testing.T) {
	// Every stored vector has equal components; a torn write would break that.
	f := mustNew(t, 8, distance.MetricEuclidean)
	var wg sync.WaitGroup
	ctx := context.Background()

	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := range 500 {
			v := float32(i % 17)
			vec := []float32{v, v, v, v, v, v, v, v}
			_, err := f.Upsert("r", vec, nil)
			assert.NoError(t, err)
			_, _ = f.Upsert("s", vec, nil)
		}
	}()
	go func() {
		defer wg.Done()
		for range 500 {
			res, err := f.Search(ctx, index.SearchOptions{Vector: make([]float32, 8), K: 2, WithVector: true})
			assert.NoError(t, err)
			for _, r := range res {
				for _, x := range r.Vector {
					assert.Equal(t, r.Vector[0], x)
				}
			}
		}
	}()
	wg.Wait()
	assert.Equal(t, 2, f.Len())
}
