package esfs

import (
	"fmt"
	"io"
	"io/fs"
	"time"
)

// File is an open handle onto a regular file's data. It implements filesystem.File
// (fs.File + io.Seeker). Reads never go past fileSize; Seek accepts a position beyond
// it, and a Read from there returns io.EOF.
type File struct {
	n      *node
	name   string
	pos    int64
	closed bool
}

func newFile(n *node, pathname string) *File {
	return &File{n: n, name: pathname}
}

// Stat implements fs.File.
func (f *File) Stat() (fs.FileInfo, error) {
	return newFileInfo(baseName(f.name), f.n), nil
}

// Read implements io.Reader, advancing the handle's offset. It never issues a device
// read for more bytes than remain before fileSize; reading at or past fileSize returns
// io.EOF with n=0, matching the Go io.Reader contract. The volume's ReadHook, if set,
// is scoped to exactly this call: it fires on the L1 physical reads this Read issues
// and none other.
func (f *File) Read(p []byte) (int, error) {
	if f.closed {
		return 0, fs.ErrClosed
	}
	n, err := readNodeData(f.n.vol.dev, f.n.vol.sb.blockSize, f.n.entry, f.pos, p, f.n.vol.opts.ReadHook)
	f.pos += int64(n)
	return n, err
}

// Seek implements io.Seeker.
func (f *File) Seek(offset int64, whence int) (int64, error) {
	if f.closed {
		return 0, fs.ErrClosed
	}
	var newPos int64
	switch whence {
	case io.SeekStart:
		newPos = offset
	case io.SeekCurrent:
		newPos = f.pos + offset
	case io.SeekEnd:
		newPos = int64(f.n.entry.fileSize) + offset
	default:
		return 0, fmt.Errorf("esfs: invalid whence %d", whence)
	}
	if newPos < 0 {
		return 0, fmt.Errorf("esfs: negative seek position %d", newPos)
	}
	f.pos = newPos
	return f.pos, nil
}

// Close implements fs.File.
func (f *File) Close() error {
	f.closed = true
	return nil
}

func baseName(pathname string) string {
	for i := len(pathname) - 1; i >= 0; i-- {
		if pathname[i] == '/' {
			return pathname[i+1:]
		}
	}
	return pathname
}

// fileInfo implements os.FileInfo / fs.FileInfo over a node's DirectoryEntry.
type fileInfo struct {
	name string
	n    *node
}

func newFileInfo(name string, n *node) fileInfo {
	return fileInfo{name: name, n: n}
}

func (fi fileInfo) Name() string { return fi.name }
func (fi fileInfo) Size() int64  { return int64(fi.n.entry.fileSize) }

func (fi fileInfo) Mode() fs.FileMode {
	if fi.n.isDirectory() {
		return fs.ModeDir | 0o555
	}
	return 0o444
}

// ModTime converts the on-disk microseconds-since-epoch modificationTime field.
func (fi fileInfo) ModTime() time.Time {
	return time.UnixMicro(int64(fi.n.entry.modificationTime))
}

func (fi fileInfo) IsDir() bool { return fi.n.isDirectory() }

func (fi fileInfo) Sys() interface{} { return fi.n.entry }

// CreationTime converts the on-disk microseconds-since-epoch creationTime field.
// Go's os.FileInfo has no birth-time accessor, so callers that need it (extract's
// timestamp verification) go through this instead of Sys().
func (fi fileInfo) CreationTime() time.Time {
	return time.UnixMicro(int64(fi.n.entry.creationTime))
}

// ContentType returns the node's contentType field formatted as 32 lowercase hex
// digits, the same shape as Volume.UUID(). It has no spec-defined meaning beyond
// "opaque" (spec.md's DATA MODEL table); callers that care about it treat it as an
// arbitrary content-classification tag.
func (fi fileInfo) ContentType() string {
	return uuidString(fi.n.entry.contentType)
}
