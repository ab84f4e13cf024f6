package vecraft

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// Logger is the structured logger a DB reports through. Attribute names
// are shared by every helper so that log lines can be joined on them.
type Logger struct {
	*slog.Logger
}

// NewLogger wraps handler. A nil handler logs text at info level to
// stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, nil)
	}
	return &Logger{slog.New(handler)}
}

// NewJSONLogger logs JSON lines at level and above to stderr.
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NewTextLogger logs logfmt-style text at level and above to stderr.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NoopLogger discards everything.
func NoopLogger() *Logger {
	return NewLogger(slog.NewTextHandler(io.Discard, nil))
}

// WithCollection scopes l to one collection.
func (l *Logger) WithCollection(name string) *Logger {
	return &Logger{l.With("collection", name)}
}

// LogMutation reports an acknowledged mutation at debug and a rejected
// one at warn.
func (l *Logger) LogMutation(ctx context.Context, kind, collection string, res MutationResult, err error) {
	scoped := l.With("op", kind, "collection", collection)
	if err != nil {
		scoped.WarnContext(ctx, "mutation rejected", "error", err)
		return
	}
	scoped.DebugContext(ctx, "mutation applied", "seq", res.Seq, "durable", res.Durable)
}

// LogBatchUpsert warns when a batch stopped before its last record.
func (l *Logger) LogBatchUpsert(ctx context.Context, collection string, submitted, applied int) {
	level, msg := slog.LevelDebug, "batch upsert completed"
	if applied < submitted {
		level, msg = slog.LevelWarn, "batch upsert stopped early"
	}
	l.Log(ctx, level, msg, "collection", collection, "submitted", submitted, "applied", applied)
}

func (l *Logger) LogQuery(ctx context.Context, collection string, k, hits int, err error) {
	if err != nil {
		l.DebugContext(ctx, "query failed", "collection", collection, "k", k, "error", err)
		return
	}
	l.DebugContext(ctx, "query served", "collection", collection, "k", k, "hits", hits)
}

// LogRecovery reports the outcome of replaying the log at path on Open.
func (l *Logger) LogRecovery(ctx context.Context, path string, entries int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "log replay failed", "path", path, "entries", entries, "error", err)
		return
	}
	l.InfoContext(ctx, "log replayed", "path", path, "entries", entries)
}
