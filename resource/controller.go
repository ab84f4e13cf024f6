package resource

import (
	"context"
	"errors"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// ErrMemoryLimitExceeded is returned when a reservation would exceed the
// memory limit.
var ErrMemoryLimitExceeded = errors.New("resource: memory limit exceeded")

// Config holds resource limits. Zero values mean unlimited.
type Config struct {
	// MaxConcurrentQueries is the number of queries that may scan at once.
	MaxConcurrentQueries int64

	// QueriesPerSecond is the sustained admission rate.
	QueriesPerSecond float64

	// Burst is the token bucket size. If 0, defaults to
	// max(1, QueriesPerSecond).
	Burst int

	// MemoryLimitBytes is the hard limit for scratch memory held by
	// running queries.
	MemoryLimitBytes int64
}

// Stats is a point-in-time view of the controller.
type Stats struct {
	InFlight    int64
	Admitted    uint64
	Rejected    uint64
	MemoryUsage int64
}

// Controller admits queries.
type Controller struct {
	cfg Config

	querySem *semaphore.Weighted // nil if unlimited
	limiter  *rate.Limiter       // nil if unlimited
	memSem   *semaphore.Weighted // nil if unlimited

	inFlight atomic.Int64
	admitted atomic.Uint64
	rejected atomic.Uint64
	memUsed  atomic.Int64
}

// NewController creates a new resource controller.
func NewController(cfg Config) *Controller {
	c := &Controller{cfg: cfg}

	if cfg.MaxConcurrentQueries > 0 {
		c.querySem = semaphore.NewWeighted(cfg.MaxConcurrentQueries)
	}

	if cfg.QueriesPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = max(1, int(cfg.QueriesPerSecond))
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.QueriesPerSecond), burst)
	}

	if cfg.MemoryLimitBytes > 0 {
		c.memSem = semaphore.NewWeighted(cfg.MemoryLimitBytes)
	}

	return c
}

// Config returns the limits the controller was created with.
func (c *Controller) Config() Config {
	if c == nil {
		return Config{}
	}
	return c.cfg
}

// Acquire waits for a rate token and a query slot. The returned function
// releases the slot and must be called exactly once.
func (c *Controller) Acquire(ctx context.Context) (func(), error) {
	if c == nil {
		return func() {}, nil
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			c.rejected.Add(1)
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			// Wait fails early when the deadline cannot be met.
			return nil, context.DeadlineExceeded
		}
	}

	if c.querySem != nil {
		if err := c.querySem.Acquire(ctx, 1); err != nil {
			c.rejected.Add(1)
			return nil, err
		}
	}

	c.admitted.Add(1)
	c.inFlight.Add(1)

	var once atomic.Bool
	return func() {
		if !once.CompareAndSwap(false, true) {
			return
		}
		c.inFlight.Add(-1)
		if c.querySem != nil {
			c.querySem.Release(1)
		}
	}, nil
}

// AcquireMemory reserves scratch memory.
// Returns ErrMemoryLimitExceeded if the limit would be exceeded.
func (c *Controller) AcquireMemory(bytes int64) error {
	if c == nil || bytes <= 0 {
		return nil
	}

	if c.memSem != nil {
		if !c.memSem.TryAcquire(bytes) {
			return ErrMemoryLimitExceeded
		}
	}

	c.memUsed.Add(bytes)
	return nil
}

// ReleaseMemory releases reserved memory.
func (c *Controller) ReleaseMemory(bytes int64) {
	if c == nil || bytes <= 0 {
		return
	}

	if c.memSem != nil {
		c.memSem.Release(bytes)
	}
	c.memUsed.Add(-bytes)
}

// MemoryUsage returns the current memory usage in bytes.
func (c *Controller) MemoryUsage() int64 {
	if c == nil {
		return 0
	}
	return c.memUsed.Load()
}

// InFlight returns the number of admitted queries not yet released.
func (c *Controller) InFlight() int64 {
	if c == nil {
		return 0
	}
	return c.inFlight.Load()
}

// Stats returns current counters.
func (c *Controller) Stats() Stats {
	if c == nil {
		return Stats{}
	}
	return Stats{
		InFlight:    c.inFlight.Load(),
		Admitted:    c.admitted.Load(),
		Rejected:    c.rejected.Load(),
		MemoryUsage: c.memUsed.Load(),
	}
}
