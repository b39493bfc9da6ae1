// Package testhelper provides stand-ins for backend.Storage used in unit tests.
package testhelper

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"

	"github.com/essencefs/go-esfs/backend"
)

type reader func(b []byte, offset int64) (int, error)

// FileImpl implements backend.Storage by delegating reads to a closure,
// so tests can stub out arbitrary byte sources without a real file.
type FileImpl struct {
	Reader reader
}

func (f *FileImpl) Stat() (fs.FileInfo, error) {
	return nil, nil
}

func (f *FileImpl) Read(b []byte) (int, error) {
	return f.Reader(b, 0)
}

func (f *FileImpl) Close() error {
	return nil
}

// ReadAt read at a particular offset
func (f *FileImpl) ReadAt(b []byte, offset int64) (int, error) {
	return f.Reader(b, offset)
}

// Seek seek a particular offset - does not actually work
//
//nolint:unused,revive // to implement the interface
func (f *FileImpl) Seek(offset int64, whence int) (int64, error) {
	return 0, fmt.Errorf("FileImpl does not implement Seek()")
}

// Sys reports that there is no underlying *os.File.
func (f *FileImpl) Sys() (*os.File, error) {
	return nil, backend.ErrNotSuitable
}

// bytesStorage is a backend.Storage over an in-memory byte slice, for esfs
// fixtures that need real Seek/ReadAt semantics rather than stubbed closures. Its
// Stat reports backend.ErrNotSuitable.
type bytesStorage struct {
	*bytes.Reader
}

// FromBytes wraps b as a backend.Storage.
func FromBytes(b []byte) backend.Storage {
	return bytesStorage{bytes.NewReader(b)}
}

func (bytesStorage) Close() error { return nil }

func (bytesStorage) Stat() (fs.FileInfo, error) {
	return nil, backend.ErrNotSuitable
}

func (bytesStorage) Sys() (*os.File, error) {
	return nil, backend.ErrNotSuitable
}
