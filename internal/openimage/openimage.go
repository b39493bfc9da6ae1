// Package openimage opens a backend.Storage from a path, either as a plain
// file/block device or as a qcow2 image.
package openimage

import (
	"fmt"

	"github.com/essencefs/go-esfs/backend"
	"github.com/essencefs/go-esfs/backend/file"
	"github.com/essencefs/go-esfs/device/qcow2"
)

// Open opens filename as a backend.Storage. If asQcow2 is set, filename is parsed as
// a qcow2 image and Open returns its guest address space; otherwise filename is
// opened as-is (a raw disk image or a block device special file).
func Open(filename string, asQcow2 bool) (backend.Storage, error) {
	if asQcow2 {
		img, err := qcow2.OpenPath(filename)
		if err != nil {
			return nil, fmt.Errorf("open qcow2 image %q: %w", filename, err)
		}
		return img, nil
	}
	storage, err := file.OpenFromPath(filename)
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", filename, err)
	}
	return storage, nil
}
