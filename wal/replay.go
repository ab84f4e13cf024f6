package wal

import (
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
)

const reasonUnterminated = "unterminated final line"

// Replay returns every entry in append order. Each call re-reads the log
// from the start with its own file handle and sees the entries written
// before the call.
//
// Replay stops at the first invalid entry and yields a *CorruptEntryError
// for it; structure, op tag, payload, checksum and gap-free sequence
// numbers starting at 1 are all checked.
func (l *Log) Replay() iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		size := l.Size()
		f, err := l.fs.OpenFile(l.path, os.O_RDONLY, 0)
		if err != nil {
			yield(Entry{}, fmt.Errorf("wal: open for replay: %w", err))
			return
		}
		defer f.Close()

		for e, err := range scan(io.NewSectionReader(f, 0, size)) {
			if !yield(e, err) {
				return
			}
		}
	}
}

// Scan reads the log at path without modifying it. Unlike Open it reports
// an unterminated final line as a *CorruptEntryError.
func Scan(path string, optFns ...func(o *Options)) iter.Seq2[Entry, error] {
	opts := DefaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	return func(yield func(Entry, error) bool) {
		f, err := opts.FileSystem.OpenFile(path, os.O_RDONLY, 0)
		if err != nil {
			yield(Entry{}, fmt.Errorf("wal: open: %w", err))
			return
		}
		defer f.Close()

		for e, err := range scan(f) {
			if !yield(e, err) {
				return
			}
		}
	}
}

// IsTorn reports whether err is a *CorruptEntryError for an unterminated
// final line, the trace of an append that never completed.
func IsTorn(err error) bool {
	var ce *CorruptEntryError
	return errors.As(err, &ce) && ce.Reason == reasonUnterminated
}

func scan(r io.Reader) iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		expected := uint64(1)
		lineNo := 0
		stopped := false

		corrupt := func(ce *CorruptEntryError) bool {
			stopped = true
			yield(Entry{}, ce)
			return false
		}

		err := readLines(r, func(line []byte, offset int64, terminated bool) bool {
			lineNo++
			if !terminated {
				return corrupt(&CorruptEntryError{Line: lineNo, Offset: offset, Reason: reasonUnterminated})
			}

			e, err := decodeEntry(line)
			if err != nil {
				ce := &CorruptEntryError{Line: lineNo, Offset: offset, Reason: err.Error()}
				var de *decodeError
				if errors.As(err, &de) {
					ce.Seq, ce.Reason, ce.Err = de.seq, de.reason, de.err
				}
				return corrupt(ce)
			}

			if e.Seq != expected {
				return corrupt(&CorruptEntryError{
					Line:   lineNo,
					Offset: offset,
					Seq:    e.Seq,
					Reason: fmt.Sprintf("sequence gap: expected %d", expected),
				})
			}
			expected++

			if !yield(e, nil) {
				stopped = true
				return false
			}
			return true
		})
		if err != nil && !stopped {
			yield(Entry{}, fmt.Errorf("wal: read: %w", err))
		}
	}
}
