package engine

import (
	"iter"

	"github.com/hupe1980/vecraft/wal"
)

// Durability abstracts the log the coordinator appends to.
//
// AppendAsync hands an entry to the log and returns a position; WaitFor
// blocks until that position is durable. The split lets the coordinator
// release its sequencer while waiting so concurrent appends share a sync.
type Durability interface {
	// Enabled reports whether appends are persisted.
	Enabled() bool

	// Synced reports whether WaitFor implies the entry reached stable
	// storage.
	Synced() bool

	// LastSeq returns the sequence number of the last appended entry.
	LastSeq() uint64

	AppendAsync(e wal.Entry) (int64, error)
	WaitFor(pos int64) error

	// Replay yields every persisted entry in append order.
	Replay() iter.Seq2[wal.Entry, error]

	// Err returns a permanent failure, if any.
	Err() error

	// Close releases any resources held by the durability layer.
	Close() error
}

func durable(d Durability) bool {
	return d.Enabled() && d.Synced()
}

// WALDurability adapts a *wal.Log.
type WALDurability struct {
	*wal.Log
}

// NewWALDurability wraps l.
func NewWALDurability(l *wal.Log) *WALDurability {
	return &WALDurability{Log: l}
}

// Enabled implements Durability.
func (*WALDurability) Enabled() bool { return true }

// NoopDurability implements Durability with no persistence.
//
// Mutations take the same path as with a log, but nothing survives a
// restart and results report Durable=false.
type NoopDurability struct{}

func (NoopDurability) Enabled() bool                        { return false }
func (NoopDurability) Synced() bool                         { return false }
func (NoopDurability) LastSeq() uint64                      { return 0 }
func (NoopDurability) AppendAsync(wal.Entry) (int64, error) { return 0, nil }
func (NoopDurability) WaitFor(int64) error                  { return nil }
func (NoopDurability) Err() error                           { return nil }
func (NoopDurability) Close() error                         { return nil }

func (NoopDurability) Replay() iter.Seq2[wal.Entry, error] {
	return func(func(wal.Entry, error) bool) {}
}

var (
	_ Durability = (*WALDurability)(nil)
	_ Durability = NoopDurability{}
)
