package wal

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/hupe1980/vecraft/internal/fs"
)

// Log is an open durability log.
type Log struct {
	mu   sync.Mutex
	fs   fs.FileSystem
	file fs.File
	path string
	opts Options

	offset  int64  // end of the last fully written line
	lastSeq uint64 // seq of the last fully written line

	// Group commit state
	syncedOffset int64      // Offset known to be fsync'd
	syncedSeq    uint64     // Seq covered by syncedOffset
	syncCond     *sync.Cond // Signals the syncer that there is data to sync
	doneCond     *sync.Cond // Signals waiters that a sync completed
	closed       bool
	stopped      bool  // syncer exited
	lastErr      error // Terminal error; wraps ErrLogFailed
	wg           sync.WaitGroup
}

// Open opens or creates the log at path.
//
// Existing content is validated. An unterminated final line is truncated
// with a warning. Any other invalid line fails Open with a
// *CorruptEntryError.
func Open(path string, optFns ...func(o *Options)) (*Log, error) {
	opts := DefaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.FileSystem == nil {
		opts.FileSystem = fs.Default
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := opts.FileSystem.MkdirAll(dir, opts.DirPerm); err != nil {
			return nil, fmt.Errorf("wal: create directory: %w", err)
		}
	}

	f, err := opts.FileSystem.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_RDWR, opts.FilePerm)
	if err != nil {
		return nil, fmt.Errorf("wal: open: %w", err)
	}

	end, lastSeq, torn, err := scanFile(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	if torn > 0 {
		opts.Logger.Warn("wal: truncating unterminated final line",
			"path", path, "offset", end, "bytes", torn)
		if err := f.Truncate(end); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("wal: truncate torn tail: %w", err)
		}
		if err := f.Datasync(); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("wal: sync after truncate: %w", err)
		}
	}

	l := &Log{
		fs:           opts.FileSystem,
		file:         f,
		path:         path,
		opts:         opts,
		offset:       end,
		lastSeq:      lastSeq,
		syncedOffset: end,
		syncedSeq:    lastSeq,
	}
	l.syncCond = sync.NewCond(&l.mu)
	l.doneCond = sync.NewCond(&l.mu)

	if opts.Durability == DurabilitySync {
		l.wg.Add(1)
		go l.runSyncer()
	}

	return l, nil
}

// scanFile validates every complete line and returns the end offset of
// the last one, its sequence number and the size of an unterminated tail.
func scanFile(f fs.File) (end int64, lastSeq uint64, torn int64, err error) {
	info, err := f.Stat()
	if err != nil {
		return 0, 0, 0, fmt.Errorf("wal: stat: %w", err)
	}

	var serr error
	for e, err := range scan(io.NewSectionReader(f, 0, info.Size())) {
		if err != nil {
			var ce *CorruptEntryError
			if errors.As(err, &ce) && ce.Reason == reasonUnterminated {
				return ce.Offset, lastSeq, info.Size() - ce.Offset, nil
			}
			serr = err
			break
		}
		lastSeq = e.Seq
	}
	if serr != nil {
		return 0, 0, 0, serr
	}
	return info.Size(), lastSeq, 0, nil
}

// Path returns the log file path.
func (l *Log) Path() string { return l.path }

// Synced reports whether WaitFor returns only once entries are on stable
// storage. It is false with DurabilityAsync.
func (l *Log) Synced() bool { return l.opts.Durability == DurabilitySync }

// LastSeq returns the sequence number of the last written entry, or 0 for
// an empty log.
func (l *Log) LastSeq() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastSeq
}

// Size returns the size of the log in bytes.
func (l *Log) Size() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.offset
}

// Err returns the terminal error if the log has failed.
func (l *Log) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastErr
}

func (l *Log) runSyncer() {
	defer l.wg.Done()
	l.mu.Lock()
	defer l.mu.Unlock()
	defer func() {
		l.stopped = true
		l.doneCond.Broadcast()
	}()

	for {
		// Wait until there is data to sync or we are closed
		for l.offset <= l.syncedOffset && !l.closed && l.lastErr == nil {
			l.syncCond.Wait()
		}

		if l.lastErr != nil || (l.closed && l.offset <= l.syncedOffset) {
			return
		}

		target, targetSeq := l.offset, l.lastSeq

		l.mu.Unlock()
		err := l.file.Datasync()
		l.mu.Lock()

		if err != nil {
			l.failLocked(fmt.Errorf("sync: %w", err))
			return
		}

		if target > l.syncedOffset {
			l.syncedOffset = target
			l.syncedSeq = targetSeq
		}
		l.doneCond.Broadcast()
	}
}

// failLocked puts the log into the failed state and drops every byte past
// the last acknowledged line, so a restart cannot replay an append whose
// caller was told it failed.
func (l *Log) failLocked(cause error) {
	l.lastErr = fmt.Errorf("%w: %w", ErrLogFailed, cause)
	l.syncCond.Signal()
	l.doneCond.Broadcast()

	keep, keepSeq := l.offset, l.lastSeq
	if l.opts.Durability == DurabilitySync {
		keep, keepSeq = l.syncedOffset, l.syncedSeq
	}
	if err := l.file.Truncate(keep); err != nil {
		l.opts.Logger.Error("wal: cannot drop unacknowledged tail", "path", l.path, "offset", keep, "error", err)
		return
	}
	l.offset, l.lastSeq = keep, keepSeq
}

// Append writes e and, with DurabilitySync, waits until it is on stable
// storage. e.Seq must be LastSeq()+1.
func (l *Log) Append(e Entry) error {
	offset, err := l.AppendAsync(e)
	if err != nil {
		return err
	}
	return l.WaitFor(offset)
}

// AppendAsync writes e without waiting for sync and returns the offset the
// caller passes to WaitFor.
func (l *Log) AppendAsync(e Entry) (int64, error) {
	line, err := encodeEntry(e)
	if err != nil {
		return 0, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return 0, ErrClosed
	}
	if l.lastErr != nil {
		return 0, l.lastErr
	}
	if e.Seq != l.lastSeq+1 {
		return 0, &SequenceError{Expected: l.lastSeq + 1, Got: e.Seq}
	}

	// One write per line keeps a crash from interleaving partial lines.
	n, err := l.file.Write(line)
	if err != nil || n != len(line) {
		if err == nil {
			err = io.ErrShortWrite
		}
		if n > 0 {
			if terr := l.file.Truncate(l.offset); terr != nil {
				l.failLocked(fmt.Errorf("rollback after failed write: %w", terr))
				return 0, l.lastErr
			}
		}
		return 0, fmt.Errorf("wal: write: %w", err)
	}

	l.offset += int64(n)
	l.lastSeq = e.Seq

	if l.opts.Durability == DurabilitySync {
		l.syncCond.Signal()
	}
	return l.offset, nil
}

// WaitFor waits until the log is synced up to offset. It returns
// immediately with DurabilityAsync.
func (l *Log) WaitFor(offset int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.opts.Durability == DurabilityAsync {
		return l.lastErr
	}

	for l.syncedOffset < offset && !l.stopped && l.lastErr == nil {
		l.doneCond.Wait()
	}
	if l.syncedOffset >= offset {
		return nil
	}
	if l.lastErr != nil {
		return l.lastErr
	}
	return ErrClosed
}

// Sync forces everything written so far to stable storage.
func (l *Log) Sync() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrClosed
	}
	if l.lastErr != nil {
		l.mu.Unlock()
		return l.lastErr
	}
	target := l.offset

	if l.opts.Durability == DurabilityAsync {
		defer l.mu.Unlock()
		if err := l.file.Datasync(); err != nil {
			l.failLocked(fmt.Errorf("sync: %w", err))
			return l.lastErr
		}
		l.syncedOffset, l.syncedSeq = target, l.lastSeq
		return nil
	}

	l.syncCond.Signal()
	l.mu.Unlock()
	return l.WaitFor(target)
}

// Close drains pending syncs and closes the file. Closing a closed log is
// a no-op.
func (l *Log) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.syncCond.Signal() // Wake up syncer to exit
	l.doneCond.Broadcast()
	l.mu.Unlock()

	l.wg.Wait()

	var syncErr error
	l.mu.Lock()
	if l.lastErr == nil && l.offset > l.syncedOffset {
		syncErr = l.file.Datasync()
	}
	l.mu.Unlock()

	return errors.Join(syncErr, l.file.Close())
}

// readLines yields each newline-terminated line with its offset. A final
// unterminated line is yielded with terminated=false.
func readLines(r io.Reader, yield func(line []byte, offset int64, terminated bool) bool) error {
	br := bufio.NewReaderSize(r, 64*1024)
	var offset int64
	for {
		line, err := br.ReadBytes('\n')
		if len(line) > 0 {
			terminated := line[len(line)-1] == '\n'
			body := bytes.TrimSuffix(line, []byte{'\n'})
			if !yield(body, offset, terminated) {
				return nil
			}
			offset += int64(len(line))
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
