package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/hupe1980/vecraft/wal"
)

// Health describes the write-path availability.
type Health struct {
	// Degraded is set after DegradedAfter consecutive append failures or a
	// permanent log failure.
	Degraded bool

	// Permanent is set when the log can no longer accept appends. Only a
	// restart clears it.
	Permanent bool

	ConsecutiveFailures int
	LastError           error
	DegradedSince       time.Time
}

// healthState tracks append failures.
type healthState struct {
	mu            sync.Mutex
	degradedAfter int
	consecutive   int
	degraded      bool
	permanent     error
	lastErr       error
	since         time.Time

	logEvery rate.Sometimes
	logger   *slog.Logger
	metrics  MetricsObserver
}

func newHealthState(degradedAfter int, logInterval time.Duration, logger *slog.Logger, metrics MetricsObserver) *healthState {
	return &healthState{
		degradedAfter: degradedAfter,
		logEvery:      rate.Sometimes{Interval: logInterval},
		logger:        logger,
		metrics:       metrics,
	}
}

// check fails fast once the log is permanently broken.
func (h *healthState) check() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.permanent != nil {
		return fmt.Errorf("%w: %w: %w", ErrDegraded, ErrIOFailure, h.permanent)
	}
	return nil
}

// failure records a failed append and returns the error for the caller.
func (h *healthState) failure(err error) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.consecutive++
	h.lastErr = err
	if errors.Is(err, wal.ErrLogFailed) || errors.Is(err, ErrApplyFailed) {
		h.permanent = err
	}

	if !h.degraded && (h.permanent != nil || h.consecutive >= h.degradedAfter) {
		h.degraded = true
		h.since = time.Now()
		h.logger.Error("engine degraded", "consecutive_failures", h.consecutive, "error", err)
		h.metrics.OnDegraded(true)
	} else {
		h.logEvery.Do(func() {
			h.logger.Warn("durability log append failed", "consecutive_failures", h.consecutive, "error", err)
		})
	}

	if errors.Is(err, ErrApplyFailed) {
		return err
	}
	if h.degraded {
		return fmt.Errorf("%w: %w: %w", ErrDegraded, ErrIOFailure, err)
	}
	return fmt.Errorf("%w: %w", ErrIOFailure, err)
}

func (h *healthState) success() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.consecutive = 0
	if h.degraded && h.permanent == nil {
		h.degraded = false
		h.since = time.Time{}
		h.logger.Info("engine recovered from degraded state")
		h.metrics.OnDegraded(false)
	}
}

func (h *healthState) snapshot() Health {
	h.mu.Lock()
	defer h.mu.Unlock()
	return Health{
		Degraded:            h.degraded,
		Permanent:           h.permanent != nil,
		ConsecutiveFailures: h.consecutive,
		LastError:           h.lastErr,
		DegradedSince:       h.since,
	}
}
