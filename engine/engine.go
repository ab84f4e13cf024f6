package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hupe1980/vecraft/catalog"
	"github.com/hupe1980/vecraft/index"
	"github.com/hupe1980/vecraft/index/flat"
	"github.com/hupe1980/vecraft/model"
	"github.com/hupe1980/vecraft/resource"
)

// Engine owns the registry, the durability log and the paths between them.
type Engine struct {
	registry   *catalog.Registry
	durability Durability
	coord      *Coordinator
	exec       *Executor
	health     *healthState
	counters   *counters
	recovery   RecoveryStats

	logger             *slog.Logger
	metrics            MetricsObserver
	resourceController *resource.Controller
	degradedAfter      int
	queryTimeout       time.Duration
	failureLogInterval time.Duration
	indexOptions       []func(o *flat.Options)

	closeOnce sync.Once
	closeErr  error
}

// Open builds an engine on d and replays d into an empty registry. If
// replay fails no engine is returned and d is left open for the caller.
//
// If d is nil, NoopDurability is used.
func Open(ctx context.Context, d Durability, opts ...Option) (*Engine, error) {
	if d == nil {
		d = NoopDurability{}
	}

	e := &Engine{
		durability:         d,
		counters:           &counters{},
		logger:             slog.Default(),
		metrics:            NoopMetricsObserver{},
		degradedAfter:      DefaultDegradedAfter,
		failureLogInterval: DefaultFailureLogInterval,
	}

	for _, opt := range opts {
		opt(e)
	}

	e.registry = catalog.New(e.indexOptions...)
	e.health = newHealthState(e.degradedAfter, e.failureLogInterval, e.logger, e.metrics)
	e.coord = &Coordinator{
		registry:   e.registry,
		durability: d,
		health:     e.health,
		counters:   e.counters,
		metrics:    e.metrics,
		logger:     e.logger,
	}
	e.exec = &Executor{
		registry: e.registry,
		rc:       e.resourceController,
		timeout:  e.queryTimeout,
		counters: e.counters,
		metrics:  e.metrics,
		logger:   e.logger,
	}

	stats, err := e.coord.recover(ctx)
	if err != nil {
		e.logger.Error("recovery failed", "entries_replayed", stats.Entries, "error", err)
		return nil, err
	}
	e.recovery = stats

	e.logger.Info("engine ready",
		"durability", d.Enabled(),
		"synced", durable(d),
		"entries_replayed", stats.Entries,
		"last_seq", stats.LastSeq,
		"collections", e.registry.Len(),
		"records", e.registry.TotalRecords(),
		"elapsed", stats.Duration)

	return e, nil
}

// Submit applies a mutation. See Coordinator.Submit.
func (e *Engine) Submit(ctx context.Context, op model.Operation) (Result, error) {
	return e.coord.Submit(ctx, op)
}

// Query runs q against the named collection. See Executor.Execute.
func (e *Engine) Query(ctx context.Context, collection string, q Query) ([]index.Result, error) {
	return e.exec.Execute(ctx, collection, q)
}

// Collections returns every collection ordered by name.
func (e *Engine) Collections() []catalog.Info {
	return e.registry.List()
}

// Collection returns the named collection's description.
func (e *Engine) Collection(name string) (catalog.Info, error) {
	c, err := e.registry.Get(name)
	if err != nil {
		return catalog.Info{}, err
	}
	return c.Info(), nil
}

// Health returns the write-path health.
func (e *Engine) Health() Health {
	return e.health.snapshot()
}

// Recovery returns what Open replayed.
func (e *Engine) Recovery() RecoveryStats {
	return e.recovery
}

// Durable reports whether acknowledged mutations are on stable storage.
func (e *Engine) Durable() bool {
	return durable(e.durability)
}

// Logged reports whether mutations are written to a log at all.
func (e *Engine) Logged() bool {
	return e.durability.Enabled()
}

// Close stops accepting mutations, waits for those in flight and closes
// the durability log.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		e.coord.close()
		e.closeErr = e.durability.Close()
	})
	return e.closeErr
}
