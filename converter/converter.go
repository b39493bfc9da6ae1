// Package converter adapts a filesystem.FileSystem to the standard io/fs.FS
// interface, so an ESFS volume can be handed to fs.FS consumers that open files by
// path, such as http.FileServer. It implements only Open: neither fs.ReadDirFS nor
// fs.ReadDirFile is provided, so fs.WalkDir and fs.ReadDir do not work through it.
package converter

import (
	"io/fs"
	"os"
	"path"

	"github.com/essencefs/go-esfs/filesystem"
)

type fsCompatible struct {
	filesystem.FileSystem
}

type fsFileWrapper struct {
	filesystem.File
	stat *os.FileInfo
}

func (f *fsFileWrapper) Stat() (fs.FileInfo, error) {
	if f.stat == nil {
		return nil, fs.ErrInvalid
	}
	return *f.stat, nil
}

func (f *fsCompatible) Open(name string) (fs.File, error) {
	file, err := f.OpenFile(name, os.O_RDONLY)
	if err != nil {
		return nil, err
	}
	dirname := path.Dir(name)
	var stat *os.FileInfo
	if info, err := f.ReadDir(dirname); err == nil {
		for i := range info {
			if info[i].Name() == path.Base(name) {
				stat = &info[i]
			}
		}
	}
	return &fsFileWrapper{File: file, stat: stat}, nil
}

// FS wraps a filesystem.FileSystem as a read-only io/fs.FS.
func FS(f filesystem.FileSystem) fs.FS {
	return &fsCompatible{f}
}
