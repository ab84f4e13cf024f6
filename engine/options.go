package engine

import (
	"log/slog"
	"time"

	"github.com/hupe1980/vecraft/index/flat"
	"github.com/hupe1980/vecraft/resource"
)

const (
	// DefaultDegradedAfter is the number of consecutive append failures
	// after which the engine reports itself degraded.
	DefaultDegradedAfter = 3

	// DefaultFailureLogInterval throttles repeated append failure logs.
	DefaultFailureLogInterval = 5 * time.Second
)

// Option defines a configuration option for the Engine.
type Option func(*Engine)

// WithLogger sets the logger for the engine.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithResourceController sets the query admission controller.
func WithResourceController(rc *resource.Controller) Option {
	return func(e *Engine) {
		e.resourceController = rc
	}
}

// WithMetricsObserver sets the metrics observer for the engine.
func WithMetricsObserver(observer MetricsObserver) Option {
	return func(e *Engine) {
		if observer != nil {
			e.metrics = observer
		}
	}
}

// WithDegradedAfter sets how many consecutive append failures mark the
// engine degraded.
func WithDegradedAfter(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.degradedAfter = n
		}
	}
}

// WithQueryTimeout bounds every query scan. Zero disables the bound.
func WithQueryTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.queryTimeout = d
	}
}

// WithIndexOptions sets options for every collection index.
func WithIndexOptions(optFns ...func(o *flat.Options)) Option {
	return func(e *Engine) {
		e.indexOptions = append(e.indexOptions, optFns...)
	}
}

// WithFailureLogInterval sets the minimum interval between repeated
// append failure logs.
func WithFailureLogInterval(d time.Duration) Option {
	return func(e *Engine) {
		e.failureLogInterval = d
	}
}
