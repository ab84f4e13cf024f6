package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/vecraft/catalog"
	"github.com/hupe1980/vecraft/index"
	"github.com/hupe1980/vecraft/model"
	"github.com/hupe1980/vecraft/wal"
)

// Result describes an acknowledged mutation.
type Result struct {
	// Seq is the sequence number assigned to the mutation.
	Seq uint64

	// Durable reports whether the mutation was on stable storage when it
	// was acknowledged. It is false without a log and with an async log,
	// where a crash can lose the mutation.
	Durable bool

	// ID is the record id for upserts and deletes. It is generated for
	// upserts submitted without one.
	ID string

	// Inserted reports whether an upsert created a new record.
	Inserted bool

	// Deleted reports whether a delete removed a record.
	Deleted bool
}

// Coordinator serializes mutations into the durability log and applies
// them to the registry.
type Coordinator struct {
	mu     sync.Mutex // sequencer
	seq    uint64     // last sequence number handed to the log
	closed bool

	inflight sync.WaitGroup

	registry   *catalog.Registry
	durability Durability
	health     *healthState
	counters   *counters
	metrics    MetricsObserver
	logger     *slog.Logger
}

// Submit runs op through validate, sequence, append, apply.
//
// ctx is honoured until the append; once the entry is in the log the
// mutation is applied even if ctx is done.
func (c *Coordinator) Submit(ctx context.Context, op model.Operation) (Result, error) {
	if op == nil {
		return Result{}, fmt.Errorf("%w: nil operation", model.ErrInvalidOperation)
	}
	if up, ok := op.(model.Upsert); ok && up.Record.ID == "" {
		up.Record.ID = uuid.NewString()
		op = up
	}
	if err := op.Validate(); err != nil {
		return Result{}, err
	}

	c.mu.Lock()
	locked := true
	unlock := func() {
		if locked {
			locked = false
			c.mu.Unlock()
		}
	}
	defer unlock()

	if c.closed {
		return Result{}, ErrClosed
	}
	c.inflight.Add(1)
	defer c.inflight.Done()

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if err := c.health.check(); err != nil {
		return Result{}, err
	}

	target, err := c.validateLocked(op)
	if err != nil {
		return Result{}, err
	}

	seq := c.seq + 1
	start := time.Now()
	pos, err := c.durability.AppendAsync(wal.Entry{Seq: seq, Timestamp: start, Op: op})
	if err != nil {
		c.metrics.OnAppend(time.Since(start), err)
		c.counters.ioFailures.Add(1)
		return Result{}, c.health.failure(err)
	}
	c.seq = seq

	res := Result{Seq: seq, Durable: durable(c.durability)}

	switch op.(type) {
	case model.CreateCollection:
		// Applied under the sequencer so later mutations see the collection.
		if err := c.waitDurable(pos, start); err != nil {
			return Result{}, err
		}
		return c.applyLogged(op, res)

	case model.DropCollection:
		// Pending record mutations on the collection apply first.
		ticket := target.ReserveApply()
		target.AwaitApply(ticket)
		defer target.FinishApply()

		if err := c.waitDurable(pos, start); err != nil {
			return Result{}, err
		}
		return c.applyLogged(op, res)

	default:
		ticket := target.ReserveApply()
		unlock()

		// Wait before taking the turn so that concurrent writers share
		// a sync. A failed wait still passes the turn on.
		werr := c.waitDurable(pos, start)
		target.AwaitApply(ticket)
		defer target.FinishApply()
		if werr != nil {
			return Result{}, werr
		}
		return c.applyLogged(op, res)
	}
}

// validateLocked checks op against the registry. It returns the addressed
// collection for everything except CreateCollection.
func (c *Coordinator) validateLocked(op model.Operation) (*catalog.Collection, error) {
	switch op := op.(type) {
	case model.CreateCollection:
		if c.registry.Contains(op.Name) {
			return nil, fmt.Errorf("%w: %q", catalog.ErrCollectionExists, op.Name)
		}
		return nil, nil

	case model.Upsert:
		col, err := c.registry.Get(op.CollectionName)
		if err != nil {
			return nil, err
		}
		if err := index.CheckVector(op.Record.Vector, col.Dimension); err != nil {
			return nil, err
		}
		return col, nil

	default:
		return c.registry.Get(op.Collection())
	}
}

func (c *Coordinator) waitDurable(pos int64, start time.Time) error {
	err := c.durability.WaitFor(pos)
	elapsed := time.Since(start)
	c.metrics.OnAppend(elapsed, err)
	if err != nil {
		c.counters.ioFailures.Add(1)
		return c.health.failure(err)
	}

	c.counters.appends.Add(1)
	c.counters.appendNanos.Add(elapsed.Nanoseconds())
	c.counters.lastAppendNanos.Store(elapsed.Nanoseconds())
	c.health.success()
	return nil
}

// applyLogged applies an entry that is already in the log. Validation
// makes failure impossible for well-formed entries; if it happens anyway
// the in-memory state no longer matches the log and the engine stops
// accepting mutations.
func (c *Coordinator) applyLogged(op model.Operation, res Result) (Result, error) {
	ar, err := apply(c.registry, op, applyLive)
	if err != nil {
		c.logger.Error("apply of logged mutation failed, restart to recover",
			"seq", res.Seq, "op", op.Kind(), "collection", op.Collection(), "error", err)
		return Result{}, c.health.failure(fmt.Errorf("%w: seq %d: %w", ErrApplyFailed, res.Seq, err))
	}

	c.counters.mutations.Add(1)
	c.metrics.OnApply(op.Kind(), op.Collection())

	switch op := op.(type) {
	case model.Upsert:
		res.ID = op.Record.ID
		res.Inserted = ar.Inserted
	case model.Delete:
		res.ID = op.ID
		res.Deleted = ar.Deleted
	}
	return res, nil
}

// LastSeq returns the last assigned sequence number.
func (c *Coordinator) LastSeq() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

// close stops accepting mutations and waits for those in flight.
func (c *Coordinator) close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.inflight.Wait()
}
