package wal

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/hupe1980/vecraft/internal/fs"
	"github.com/hupe1980/vecraft/model"
)

// Durability controls when Append returns.
type Durability int

const (
	// DurabilitySync waits until the entry is on stable storage.
	DurabilitySync Durability = iota
	// DurabilityAsync returns once the entry is handed to the OS.
	DurabilityAsync
)

func (d Durability) String() string {
	switch d {
	case DurabilitySync:
		return "sync"
	case DurabilityAsync:
		return "async"
	default:
		return fmt.Sprintf("unknown(%d)", int(d))
	}
}

var (
	// ErrClosed is returned by operations on a closed log.
	ErrClosed = errors.New("wal: closed")

	// ErrLogFailed is returned once a sync or rollback failed. The log
	// rejects all further appends.
	ErrLogFailed = errors.New("wal: log failed")

	// ErrCorruptEntry matches every *CorruptEntryError.
	ErrCorruptEntry = errors.New("wal: corrupt entry")
)

// Entry is one logged operation.
type Entry struct {
	Seq       uint64
	Timestamp time.Time
	Op        model.Operation
}

// CorruptEntryError reports an entry that failed validation.
type CorruptEntryError struct {
	// Line is the 1-based line number.
	Line int
	// Offset is the byte offset of the line start.
	Offset int64
	// Seq is the sequence number if it could be read.
	Seq    uint64
	Reason string
	Err    error
}

func (e *CorruptEntryError) Error() string {
	msg := fmt.Sprintf("wal: corrupt entry at line %d (offset %d)", e.Line, e.Offset)
	if e.Seq > 0 {
		msg += fmt.Sprintf(", seq %d", e.Seq)
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CorruptEntryError) Is(target error) bool { return target == ErrCorruptEntry }

func (e *CorruptEntryError) Unwrap() error { return e.Err }

// SequenceError is returned by Append when an entry does not continue the
// log's sequence.
type SequenceError struct {
	Expected uint64
	Got      uint64
}

func (e *SequenceError) Error() string {
	return fmt.Sprintf("wal: out of order append: expected seq %d, got %d", e.Expected, e.Got)
}

// Options contains configuration for the log.
type Options struct {
	// Durability controls fsync behavior. Default is DurabilitySync.
	Durability Durability

	// FileSystem is the filesystem the log lives on. Default is fs.Default.
	FileSystem fs.FileSystem

	// Logger receives recovery warnings. Default is slog.Default().
	Logger *slog.Logger

	// DirPerm and FilePerm are used when creating the log.
	DirPerm  os.FileMode
	FilePerm os.FileMode
}

// DefaultOptions returns default log options.
func DefaultOptions() Options {
	return Options{
		Durability: DurabilitySync,
		FileSystem: fs.Default,
		DirPerm:    0o755,
		FilePerm:   0o644,
	}
}
