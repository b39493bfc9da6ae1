package device

import (
	"fmt"
	"os"

	"github.com/essencefs/go-esfs/backend"
	"github.com/essencefs/go-esfs/backend/file"
)

// OpenPath opens pathName (a block device special file or a plain disk image) and wraps
// it as a Device. It does not query the logical sector size: the Device always uses
// the fixed 512-byte SectorSize (see LogicalSectorSize for the real device's value).
func OpenPath(pathName string, opts ...Option) (*Device, error) {
	storage, err := file.OpenFromPath(pathName)
	if err != nil {
		return nil, err
	}
	return New(storage, opts...), nil
}

// LogicalSectorSize reports the device's logical sector size via platform ioctl, for
// callers that want to sanity-check a volume's assumption of 512-byte sectors against
// the real underlying device. It returns backend.ErrNotSuitable for anything that is
// not a real block device (plain files, in-memory fixtures).
func LogicalSectorSize(storage backend.Storage) (int64, error) {
	f, err := storage.Sys()
	if err != nil {
		return 0, err
	}
	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("device: stat %s: %w", f.Name(), err)
	}
	if info.Mode()&os.ModeDevice == 0 {
		return 0, backend.ErrNotSuitable
	}
	size, err := getLogicalSectorSize(f)
	if err != nil {
		return 0, err
	}
	return size, nil
}
