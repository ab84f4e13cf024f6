package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hupe1980/vecraft/catalog"
	"github.com/hupe1980/vecraft/distance"
	"github.com/hupe1980/vecraft/index"
	"github.com/hupe1980/vecraft/metadata"
	"github.com/hupe1980/vecraft/resource"
)

// resultScratchBytes approximates the heap memory one result slot costs a
// running scan.
const resultScratchBytes = 64

// Query is a k-nearest-neighbor request against one collection.
type Query struct {
	Vector []float32
	K      int

	// Filter restricts candidates. Nil matches all records.
	Filter *metadata.FilterSet

	// Metric overrides the collection metric when set.
	Metric *distance.Metric

	WithMetadata bool
	WithVector   bool

	// Timeout bounds the scan. Zero uses the engine default.
	Timeout time.Duration
}

// Executor serves queries from the registry. It never writes.
type Executor struct {
	registry *catalog.Registry
	rc       *resource.Controller
	timeout  time.Duration
	counters *counters
	metrics  MetricsObserver
	logger   *slog.Logger
}

// Execute resolves the collection and runs an exact scan.
func (x *Executor) Execute(ctx context.Context, collection string, q Query) ([]index.Result, error) {
	start := time.Now()
	results, err := x.execute(ctx, collection, q)

	x.counters.queries.Add(1)
	if err != nil {
		x.counters.queryErrors.Add(1)
		if errors.Is(err, context.DeadlineExceeded) {
			x.logger.Debug("query deadline exceeded", "collection", collection, "k", q.K, "elapsed", time.Since(start))
		}
	}
	x.metrics.OnQuery(collection, time.Since(start), len(results), err)
	return results, err
}

func (x *Executor) execute(ctx context.Context, collection string, q Query) ([]index.Result, error) {
	c, err := x.registry.Get(collection)
	if err != nil {
		return nil, err
	}
	if q.K <= 0 {
		return nil, index.ErrInvalidK
	}

	release, err := x.rc.Acquire(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %w", ErrOverloaded, err)
	}
	defer release()

	scratch := int64(q.K) * resultScratchBytes
	if err := x.rc.AcquireMemory(scratch); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOverloaded, err)
	}
	defer x.rc.ReleaseMemory(scratch)

	timeout := q.Timeout
	if timeout <= 0 {
		timeout = x.timeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	return c.Index.Search(ctx, index.SearchOptions{
		Vector:       q.Vector,
		K:            q.K,
		Filter:       q.Filter,
		Metric:       q.Metric,
		WithMetadata: q.WithMetadata,
		WithVector:   q.WithVector,
	})
}
