//go:build linux

package device

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Ioctl request codes for logical block size; not exposed by golang.org/x/sys/unix.
const blkSSZGet = 0x1268

func getLogicalSectorSize(f *os.File) (int64, error) {
	size, err := unix.IoctlGetInt(int(f.Fd()), blkSSZGet)
	if err != nil {
		return 0, fmt.Errorf("device: BLKSSZGET on %s: %w", f.Name(), err)
	}
	return int64(size), nil
}
