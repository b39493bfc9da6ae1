package esfs

import (
	"errors"
	"fmt"
)

// BadFSError reports a structural violation of the on-disk format, or a version the
// driver cannot read. There is no recovery: the volume is not mountable, or the
// operation that hit it is aborted.
type BadFSError struct {
	Reason string
}

func (e *BadFSError) Error() string {
	return e.Reason
}

func badFS(reason string) error {
	return &BadFSError{Reason: reason}
}

func badFSf(format string, args ...interface{}) error {
	return &BadFSError{Reason: fmt.Sprintf(format, args...)}
}

// BadFileTypeError reports a semantic mismatch: listing a file, opening a directory,
// reading a node whose type doesn't support the requested operation.
type BadFileTypeError struct {
	Reason string
}

func (e *BadFileTypeError) Error() string {
	return e.Reason
}

func badFileType(reason string) error {
	return &BadFileTypeError{Reason: reason}
}

// IsBadFS reports whether err is (or wraps) a BadFSError.
func IsBadFS(err error) bool {
	var e *BadFSError
	return errors.As(err, &e)
}

// IsBadFileType reports whether err is (or wraps) a BadFileTypeError.
func IsBadFileType(err error) bool {
	var e *BadFileTypeError
	return errors.As(err, &e)
}
