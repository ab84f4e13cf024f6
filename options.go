package vecraft

import (
	"log/slog"
	"time"

	"github.com/hupe1980/vecraft/engine"
	"github.com/hupe1980/vecraft/resource"
	"github.com/hupe1980/vecraft/wal"
)

type options struct {
	walPath          string
	walOptions       []func(*wal.Options)
	metricsCollector MetricsCollector
	logger           *Logger
	queryTimeout     time.Duration
	resourceConfig   *resource.Config
	degradedAfter    int
	observer         engine.MetricsObserver
}

// Option configures Open.
type Option func(*options)

// WithWAL enables the durability log at path. Every mutation is fsync'd
// before it is acknowledged and the log is replayed on Open. With
// wal.DurabilityAsync mutations are logged but not fsync'd and results
// report Durable=false.
//
// Example:
//
//	db, _ := vecraft.Open(ctx, vecraft.WithWAL("./data/wal.log", func(o *wal.Options) {
//	    o.Durability = wal.DurabilityAsync
//	}))
//
// Without WithWAL the database is in-memory only.
func WithWAL(path string, optFns ...func(*wal.Options)) Option {
	return func(o *options) {
		o.walPath = path
		o.walOptions = optFns
	}
}

// WithMetricsCollector reports every call to mc. Nil disables reporting.
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		o.metricsCollector = mc
	}
}

// WithLogger sets the logger. Nil silences logging.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithLogLevel is WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithQueryTimeout bounds every query scan. A per-query WithTimeout
// takes precedence.
func WithQueryTimeout(d time.Duration) Option {
	return func(o *options) {
		o.queryTimeout = d
	}
}

// WithResourceLimits enables query admission control.
func WithResourceLimits(cfg resource.Config) Option {
	return func(o *options) {
		o.resourceConfig = &cfg
	}
}

// WithDegradedAfter sets how many consecutive log append failures put the
// database into the degraded state.
func WithDegradedAfter(n int) Option {
	return func(o *options) {
		o.degradedAfter = n
	}
}

// WithEngineObserver attaches an observer for engine-level events such as
// log appends and degraded transitions. See telemetry.Collector.
func WithEngineObserver(observer engine.MetricsObserver) Option {
	return func(o *options) {
		o.observer = observer
	}
}

func applyOptions(optFns []Option) options {
	var o options
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.metricsCollector == nil {
		o.metricsCollector = NoopMetricsCollector{}
	}
	if o.logger == nil {
		o.logger = NoopLogger()
	}
	return o
}

func (o options) engineOptions() []engine.Option {
	opts := []engine.Option{
		engine.WithLogger(o.logger.Logger),
		engine.WithQueryTimeout(o.queryTimeout),
		engine.WithDegradedAfter(o.degradedAfter),
		engine.WithMetricsObserver(o.observer),
	}
	if o.resourceConfig != nil {
		opts = append(opts, engine.WithResourceController(resource.NewController(*o.resourceConfig)))
	}
	return opts
}
