package fs

import (
	"errors"
	"os"
	"strings"
	"sync"
)

// ErrInjected is returned by faults that do not set Err.
var ErrInjected = errors.New("fs: injected fault")

// Fault describes how operations on matching files fail.
type Fault struct {
	FailOnWrite bool
	// FailAfterBytes rejects a write that would push the bytes written
	// through one handle past this limit. Zero means no limit.
	FailAfterBytes int64
	// PartialWrite lets the part of a rejected write that still fits under
	// FailAfterBytes reach the file, leaving a torn tail.
	PartialWrite   bool
	FailOnSync     bool
	FailOnTruncate bool
	FailOnClose    bool
	Err            error
}

func (f Fault) cause() error {
	if f.Err != nil {
		return f.Err
	}
	return ErrInjected
}

// FaultyFS wraps a FileSystem and injects failures for files whose name
// contains a rule's pattern. Rules are consulted on every call, so a test
// can break and heal storage under an open handle.
type FaultyFS struct {
	FS FileSystem

	mu      sync.Mutex
	rules   map[string]Fault
	written int64
	limit   int64
}

// NewFaultyFS wraps inner, or Default when inner is nil.
func NewFaultyFS(inner FileSystem) *FaultyFS {
	if inner == nil {
		inner = Default
	}
	return &FaultyFS{FS: inner, rules: map[string]Fault{}, limit: -1}
}

// AddRule installs fault for names containing pattern, replacing any
// previous rule with the same pattern.
func (f *FaultyFS) AddRule(pattern string, fault Fault) {
	f.mu.Lock()
	f.rules[pattern] = fault
	f.mu.Unlock()
}

// ClearRules heals the file system: all rules and the global limit go.
func (f *FaultyFS) ClearRules() {
	f.mu.Lock()
	clear(f.rules)
	f.limit = -1
	f.mu.Unlock()
}

// SetLimit caps the bytes written across all files. Negative disables.
func (f *FaultyFS) SetLimit(limit int64) {
	f.mu.Lock()
	f.limit = limit
	f.mu.Unlock()
}

// Written reports the bytes that reached the wrapped file system.
func (f *FaultyFS) Written() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.written
}

func (f *FaultyFS) lookup(name string) Fault {
	f.mu.Lock()
	defer f.mu.Unlock()
	for pattern, fault := range f.rules {
		if strings.Contains(name, pattern) {
			return fault
		}
	}
	return Fault{}
}

// reserve admits up to n bytes against the global limit.
func (f *FaultyFS) reserve(n int64) (int64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.limit >= 0 && f.written+n > f.limit {
		return 0, false
	}
	f.written += n
	return n, true
}

func (f *FaultyFS) OpenFile(name string, flag int, perm os.FileMode) (File, error) {
	inner, err := f.FS.OpenFile(name, flag, perm)
	if err != nil {
		return nil, err
	}
	return &faultyFile{File: inner, owner: f, name: name}, nil
}

func (f *FaultyFS) Truncate(name string, size int64) error {
	if fault := f.lookup(name); fault.FailOnTruncate {
		return fault.cause()
	}
	return f.FS.Truncate(name, size)
}

func (f *FaultyFS) Stat(name string) (os.FileInfo, error)        { return f.FS.Stat(name) }
func (f *FaultyFS) MkdirAll(path string, perm os.FileMode) error { return f.FS.MkdirAll(path, perm) }
func (f *FaultyFS) Remove(name string) error                     { return f.FS.Remove(name) }

type faultyFile struct {
	File
	owner   *FaultyFS
	name    string
	written int64
}

func (h *faultyFile) Write(p []byte) (int, error) {
	fault := h.owner.lookup(h.name)

	keep, injected := int64(len(p)), error(nil)
	if fault.FailOnWrite {
		keep, injected = 0, fault.cause()
	} else if lim := fault.FailAfterBytes; lim > 0 && h.written+keep > lim {
		keep, injected = 0, fault.cause()
		if fault.PartialWrite {
			keep = max(lim-h.written, 0)
		}
	}

	if granted, ok := h.owner.reserve(keep); !ok {
		keep, injected = 0, ErrInjected
	} else {
		keep = granted
	}

	n := 0
	if keep > 0 {
		var err error
		n, err = h.File.Write(p[:keep])
		h.written += int64(n)
		if err != nil {
			return n, err
		}
	}
	return n, injected
}

func (h *faultyFile) Sync() error {
	if fault := h.owner.lookup(h.name); fault.FailOnSync {
		return fault.cause()
	}
	return h.File.Sync()
}

func (h *faultyFile) Datasync() error {
	if fault := h.owner.lookup(h.name); fault.FailOnSync {
		return fault.cause()
	}
	return h.File.Datasync()
}

func (h *faultyFile) Truncate(size int64) error {
	if fault := h.owner.lookup(h.name); fault.FailOnTruncate {
		return fault.cause()
	}
	return h.File.Truncate(size)
}

func (h *faultyFile) Close() error {
	err := h.File.Close()
	if fault := h.owner.lookup(h.name); fault.FailOnClose {
		return fault.cause()
	}
	return err
}
