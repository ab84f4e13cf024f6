package vecraft

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/hupe1980/vecraft/catalog"
	"github.com/hupe1980/vecraft/distance"
	"github.com/hupe1980/vecraft/engine"
	"github.com/hupe1980/vecraft/index"
	"github.com/hupe1980/vecraft/metadata"
	"github.com/hupe1980/vecraft/model"
	"github.com/hupe1980/vecraft/wal"
)

type (
	// Record is a vector with its id and optional metadata.
	Record = model.Record

	// MutationResult describes an acknowledged mutation.
	MutationResult = engine.Result

	// SearchResult is one ranked query hit.
	SearchResult = index.Result

	// CollectionInfo describes a collection.
	CollectionInfo = catalog.Info

	// Stats is a point-in-time snapshot of database counters.
	Stats = engine.Stats

	// Health is the write-path health.
	Health = engine.Health
)

// DB is a vector database handle. It is safe for concurrent use.
type DB struct {
	engine  *engine.Engine
	logger  *Logger
	metrics MetricsCollector
	closed  atomic.Bool
}

// Open creates a database. With WithWAL the durability log is opened (or
// created) and replayed; a corrupt log fails Open with ErrCorruptEntry.
func Open(ctx context.Context, optFns ...Option) (*DB, error) {
	o := applyOptions(optFns)

	var durability engine.Durability
	if o.walPath != "" {
		walOpts := append([]func(*wal.Options){func(wo *wal.Options) {
			wo.Logger = o.logger.Logger
		}}, o.walOptions...)

		l, err := wal.Open(o.walPath, walOpts...)
		if err != nil {
			o.logger.LogRecovery(ctx, o.walPath, 0, err)
			return nil, translateError(err)
		}
		durability = engine.NewWALDurability(l)
	}

	e, err := engine.Open(ctx, durability, o.engineOptions()...)
	if err != nil {
		if durability != nil {
			_ = durability.Close()
		}
		o.logger.LogRecovery(ctx, o.walPath, 0, err)
		return nil, translateError(err)
	}
	if durability != nil {
		o.logger.LogRecovery(ctx, o.walPath, e.Recovery().Entries, nil)
	}

	return &DB{
		engine:  e,
		logger:  o.logger,
		metrics: o.metricsCollector,
	}, nil
}

// CreateCollection creates an empty collection.
func (db *DB) CreateCollection(ctx context.Context, name string, dimension int, metric distance.Metric) (MutationResult, error) {
	res, err := db.submit(ctx, model.CreateCollection{Name: name, Dimension: dimension, Metric: metric})
	db.metrics.RecordCollectionOp("create", err)
	db.logger.LogMutation(ctx, string(model.OpCreateCollection), name, res, err)
	return res, err
}

// DropCollection removes a collection and all its records.
func (db *DB) DropCollection(ctx context.Context, name string) (MutationResult, error) {
	res, err := db.submit(ctx, model.DropCollection{Name: name})
	db.metrics.RecordCollectionOp("drop", err)
	db.logger.LogMutation(ctx, string(model.OpDropCollection), name, res, err)
	return res, err
}

// Upsert inserts or replaces a record. An empty record id is replaced by
// a generated one, reported in MutationResult.ID.
func (db *DB) Upsert(ctx context.Context, collection string, rec Record) (MutationResult, error) {
	start := time.Now()
	res, err := db.submit(ctx, model.Upsert{CollectionName: collection, Record: rec})
	db.metrics.RecordUpsert(time.Since(start), err)
	db.logger.LogMutation(ctx, string(model.OpUpsert), collection, res, err)
	return res, err
}

// UpsertBatch upserts records in order, each as its own mutation. It is
// not atomic: on the first failure it stops and returns the results of
// the records already applied together with the error.
func (db *DB) UpsertBatch(ctx context.Context, collection string, recs []Record) ([]MutationResult, error) {
	start := time.Now()
	results := make([]MutationResult, 0, len(recs))

	var batchErr error
	for i, rec := range recs {
		res, err := db.submit(ctx, model.Upsert{CollectionName: collection, Record: rec})
		if err != nil {
			batchErr = fmt.Errorf("record %d: %w", i, err)
			break
		}
		results = append(results, res)
	}

	db.metrics.RecordBatchUpsert(len(recs), len(recs)-len(results), time.Since(start))
	db.logger.LogBatchUpsert(ctx, collection, len(recs), len(results))
	return results, batchErr
}

// Delete removes a record. Deleting a missing id succeeds with
// MutationResult.Deleted false.
func (db *DB) Delete(ctx context.Context, collection, id string) (MutationResult, error) {
	start := time.Now()
	res, err := db.submit(ctx, model.Delete{CollectionName: collection, ID: id})
	db.metrics.RecordDelete(time.Since(start), err)
	db.logger.LogMutation(ctx, string(model.OpDelete), collection, res, err)
	return res, err
}

// Apply submits an arbitrary mutation.
func (db *DB) Apply(ctx context.Context, op model.Operation) (MutationResult, error) {
	return db.submit(ctx, op)
}

func (db *DB) submit(ctx context.Context, op model.Operation) (MutationResult, error) {
	if db.closed.Load() {
		return MutationResult{}, ErrClosed
	}
	res, err := db.engine.Submit(ctx, op)
	return res, translateError(err)
}

// QueryOption configures a single query.
type QueryOption func(*engine.Query)

// WithFilter restricts results to records whose metadata matches every
// filter in fs.
func WithFilter(fs *metadata.FilterSet) QueryOption {
	return func(q *engine.Query) {
		q.Filter = fs
	}
}

// WithMetric ranks by m instead of the collection metric.
func WithMetric(m distance.Metric) QueryOption {
	return func(q *engine.Query) {
		q.Metric = &m
	}
}

// WithMetadata includes record metadata in results.
func WithMetadata() QueryOption {
	return func(q *engine.Query) {
		q.WithMetadata = true
	}
}

// WithVector includes stored vectors in results.
func WithVector() QueryOption {
	return func(q *engine.Query) {
		q.WithVector = true
	}
}

// WithTimeout bounds this query's scan.
func WithTimeout(d time.Duration) QueryOption {
	return func(q *engine.Query) {
		q.Timeout = d
	}
}

// Query returns up to k records of collection closest to vec, ordered by
// ascending distance with ties broken by id.
func (db *DB) Query(ctx context.Context, collection string, vec []float32, k int, optFns ...QueryOption) ([]SearchResult, error) {
	if db.closed.Load() {
		return nil, ErrClosed
	}

	q := engine.Query{Vector: vec, K: k}
	for _, fn := range optFns {
		if fn != nil {
			fn(&q)
		}
	}

	start := time.Now()
	results, err := db.engine.Query(ctx, collection, q)
	err = translateError(err)
	db.metrics.RecordQuery(k, time.Since(start), err)
	db.logger.LogQuery(ctx, collection, k, len(results), err)
	return results, err
}

// Collections lists every collection ordered by name.
func (db *DB) Collections() []CollectionInfo {
	return db.engine.Collections()
}

// Collection describes the named collection.
func (db *DB) Collection(name string) (CollectionInfo, error) {
	info, err := db.engine.Collection(name)
	return info, translateError(err)
}

// Stats returns a snapshot of the database counters.
func (db *DB) Stats() Stats {
	return db.engine.Stats()
}

// Health reports whether the write path is degraded.
func (db *DB) Health() Health {
	return db.engine.Health()
}

// Durable reports whether acknowledged mutations are fsync'd. It is false
// without WithWAL and with an async log.
func (db *DB) Durable() bool {
	return db.engine.Durable()
}

// Logged reports whether mutations are written to the durability log.
func (db *DB) Logged() bool {
	return db.engine.Logged()
}

// Close waits for in-flight mutations and closes the durability log.
// Further calls return ErrClosed.
func (db *DB) Close() error {
	if !db.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	return db.engine.Close()
}
