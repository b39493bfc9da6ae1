// Package filesystem provides interfaces required for read-only filesystem implementations.
// The interesting implementation lives in the esfs subpackage, github.com/essencefs/go-esfs/filesystem/esfs.
package filesystem

import (
	"errors"
	"os"
)

var (
	ErrNotSupported       = errors.New("method not supported by this filesystem")
	ErrReadonlyFilesystem = errors.New("read-only filesystem")
)

// FileSystem is a reference to a single mounted, read-only filesystem.
type FileSystem interface {
	// Type return the type of filesystem
	Type() Type
	// ReadDir read the contents of a directory
	ReadDir(pathname string) ([]os.FileInfo, error)
	// OpenFile open a handle to read a file. flag must be os.O_RDONLY; any other
	// flag returns ErrReadonlyFilesystem.
	OpenFile(pathname string, flag int) (File, error)
	// Label get the label for the filesystem, or "" if none. Be careful to trim it, as it may contain
	// leading or following whitespace. The label is passed as-is and not cleaned up at all.
	Label() string
	// UUID returns the volume identifier as a lowercase hex string, or "" if the format carries none.
	UUID() string
}

// Type represents the type of filesystem mounted on a disk.
type Type int

const (
	// TypeEsfs is the Essence filesystem.
	TypeEsfs Type = iota
)
