package engine

import (
	"sync/atomic"
	"time"

	"github.com/hupe1980/vecraft/catalog"
)

type counters struct {
	queries         atomic.Uint64
	queryErrors     atomic.Uint64
	mutations       atomic.Uint64
	appends         atomic.Uint64
	ioFailures      atomic.Uint64
	appendNanos     atomic.Int64
	lastAppendNanos atomic.Int64
}

// Stats is a point-in-time view of the engine for metrics exporters.
type Stats struct {
	Collections  []catalog.Info
	TotalRecords int

	QueriesServed   uint64
	QueryErrors     uint64
	InFlightQueries int64

	MutationsApplied uint64
	LogAppends       uint64
	LogAppendTotal   time.Duration
	LogAppendAvg     time.Duration
	LogAppendLast    time.Duration
	IOFailures       uint64

	DurabilityEnabled bool
	DurabilitySynced  bool
	Degraded          bool
	LastSeq           uint64
}

// Stats returns current engine statistics.
func (e *Engine) Stats() Stats {
	infos := e.registry.List()
	total := 0
	for _, info := range infos {
		total += info.Records
	}

	appends := e.counters.appends.Load()
	appendTotal := time.Duration(e.counters.appendNanos.Load())
	var avg time.Duration
	if appends > 0 {
		avg = appendTotal / time.Duration(appends)
	}

	return Stats{
		Collections:       infos,
		TotalRecords:      total,
		QueriesServed:     e.counters.queries.Load(),
		QueryErrors:       e.counters.queryErrors.Load(),
		InFlightQueries:   e.resourceController.InFlight(),
		MutationsApplied:  e.counters.mutations.Load(),
		LogAppends:        appends,
		LogAppendTotal:    appendTotal,
		LogAppendAvg:      avg,
		LogAppendLast:     time.Duration(e.counters.lastAppendNanos.Load()),
		IOFailures:        e.counters.ioFailures.Load(),
		DurabilityEnabled: e.durability.Enabled(),
		DurabilitySynced:  durable(e.durability),
		Degraded:          e.health.snapshot().Degraded,
		LastSeq:           e.coord.LastSeq(),
	}
}
