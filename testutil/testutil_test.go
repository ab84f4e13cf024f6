package testutil

import (
	"testing"

	"github.com/hupe1980/vecraft/distance"
	"github.com/hupe1980/vecraft/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUniformVectors(t *testing.T) {
	rng := NewRNG(4711)

	v := rng.UniformVectors(8, 32)

	assert.Equal(t, 8, len(v))
	assert.Equal(t, 32, len(v[0]))
	assert.LessOrEqual(t, v[0][0], float32(1.0))
	assert.GreaterOrEqual(t, v[1][0], float32(-1.0))
}

func TestUnitVectors(t *testing.T) {
	rng := NewRNG(4711)

	for _, vec := range rng.UnitVectors(8, 32) {
		assert.InDelta(t, 1.0, distance.Norm(vec), 1e-5)
	}
}

func TestReset(t *testing.T) {
	rng := NewRNG(4711)
	v1 := rng.UniformVectors(1, 10)

	rng.Reset()
	v2 := rng.UniformVectors(1, 10)

	assert.Equal(t, v1, v2)
}

func TestRecords(t *testing.T) {
	recs := NewRNG(1).Records(12, 4)
	require.Len(t, recs, 12)
	assert.Equal(t, "r0000", recs[0].ID)
	assert.Equal(t, "r0011", recs[11].ID)
	assert.Contains(t, recs[3].Metadata, "category")
}

func TestBruteForceSearch(t *testing.T) {
	recs := NewRNG(7).Records(50, 8)
	q := recs[10].Vector

	got := BruteForceSearch(recs, q, 5, distance.MetricEuclidean, nil)
	require.Len(t, got, 5)
	assert.Equal(t, recs[10].ID, got[0].ID)
	for i := 1; i < len(got); i++ {
		assert.LessOrEqual(t, got[i-1].Distance, got[i].Distance)
	}

	fs := metadata.NewFilterSet(metadata.Eq("category", metadata.String("none")))
	assert.Empty(t, BruteForceSearch(recs, q, 5, distance.MetricEuclidean, fs))
}
