package index

import (
	"errors"
	"fmt"

	"github.com/hupe1980/vecraft/distance"
	"github.com/hupe1980/vecraft/metadata"
)

var (
	// ErrInvalidK is returned when k is not positive.
	ErrInvalidK = errors.New("k must be greater than 0")

	// ErrInvalidVector is returned when a vector carries NaN or Inf
	// components or its norm exceeds distance.MaxNorm.
	ErrInvalidVector = errors.New("invalid vector")

	// ErrInvalidMetric is returned for an unsupported distance metric.
	ErrInvalidMetric = errors.New("unsupported distance metric")
)

// ErrDimensionMismatch is a named error type for dimension mismatch
type ErrDimensionMismatch struct {
	Expected int // Expected dimensions
	Actual   int // Actual dimensions
}

// Error returns the error message for dimension mismatch
func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// CheckVector validates a vector against the expected dimension.
func CheckVector(v []float32, dimension int) error {
	if len(v) != dimension {
		return &ErrDimensionMismatch{Expected: dimension, Actual: len(v)}
	}
	if !distance.Finite(v) {
		return fmt.Errorf("%w: non-finite component", ErrInvalidVector)
	}
	if n := distance.Magnitude(v); n > distance.MaxNorm {
		return fmt.Errorf("%w: norm %g exceeds %g", ErrInvalidVector, n, distance.MaxNorm)
	}
	return nil
}

// SearchOptions describes a single k-nearest-neighbor query.
type SearchOptions struct {
	// Vector is the query embedding.
	Vector []float32

	// K is the maximum number of results.
	K int

	// Filter restricts candidates. Nil matches all records.
	Filter *metadata.FilterSet

	// Metric overrides the collection metric for this query when set.
	Metric *distance.Metric

	// WithMetadata includes record metadata in results.
	WithMetadata bool

	// WithVector includes a copy of the stored embedding in results.
	WithVector bool
}

// Result is a single ranked search hit.
type Result struct {
	// ID is the record id.
	ID string

	// Distance is the metric distance to the query. Smaller is closer.
	Distance float32

	// Score is the similarity form of Distance (see distance.Metric.Score).
	Score float32

	Metadata metadata.Document
	Vector   []float32
}
