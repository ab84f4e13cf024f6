package fs

import (
	"io"
	"os"
)

// File is the handle the log writes through.
type File interface {
	io.ReadWriteCloser
	io.ReaderAt
	io.Seeker
	Stat() (os.FileInfo, error)
	Truncate(size int64) error
	Sync() error
	// Datasync persists file contents, skipping metadata such as mtime
	// where the platform allows it.
	Datasync() error
}

// FileSystem opens and manipulates files by path.
type FileSystem interface {
	OpenFile(name string, flag int, perm os.FileMode) (File, error)
	Stat(name string) (os.FileInfo, error)
	Truncate(name string, size int64) error
	MkdirAll(path string, perm os.FileMode) error
	Remove(name string) error
}

// Default is the operating system's file system.
var Default FileSystem = LocalFS{}

// LocalFS delegates to package os.
type LocalFS struct{}

func (LocalFS) OpenFile(name string, flag int, perm os.FileMode) (File, error) {
	f, err := os.OpenFile(name, flag, perm)
	if err != nil {
		return nil, err
	}
	return osFile{f}, nil
}

func (LocalFS) Stat(name string) (os.FileInfo, error)        { return os.Stat(name) }
func (LocalFS) Truncate(name string, size int64) error       { return os.Truncate(name, size) }
func (LocalFS) MkdirAll(path string, perm os.FileMode) error { return os.MkdirAll(path, perm) }
func (LocalFS) Remove(name string) error                     { return os.Remove(name) }

type osFile struct{ *os.File }

func (f osFile) Datasync() error { return datasync(f.File) }
