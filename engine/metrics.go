package engine

import (
	"time"

	"github.com/hupe1980/vecraft/model"
)

// MetricsObserver defines the interface for observing engine events.
type MetricsObserver interface {
	// OnAppend is called after each durability log append, including the
	// wait for durability.
	OnAppend(duration time.Duration, err error)

	// OnApply is called after a mutation was applied to the registry.
	OnApply(kind model.OpKind, collection string)

	// OnQuery is called after each query.
	OnQuery(collection string, duration time.Duration, results int, err error)

	// OnDegraded is called when the degraded state changes.
	OnDegraded(degraded bool)
}

// NoopMetricsObserver is a no-op implementation of MetricsObserver.
type NoopMetricsObserver struct{}

func (NoopMetricsObserver) OnAppend(time.Duration, error)             {}
func (NoopMetricsObserver) OnApply(model.OpKind, string)              {}
func (NoopMetricsObserver) OnQuery(string, time.Duration, int, error) {}
func (NoopMetricsObserver) OnDegraded(bool)                           {}
