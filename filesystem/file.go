package filesystem

import (
	"io"
	"io/fs"
)

// File is a reference to a single open file on a read-only filesystem.
type File interface {
	fs.File
	io.Seeker
}
