//go:build darwin

package device

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Ioctl request codes for logical block size; not exposed by golang.org/x/sys/unix.
const dkiocGetBlockSize = 0x40046418

func getLogicalSectorSize(f *os.File) (int64, error) {
	size, err := unix.IoctlGetInt(int(f.Fd()), dkiocGetBlockSize)
	if err != nil {
		return 0, fmt.Errorf("device: DKIOCGETBLOCKSIZE on %s: %w", f.Name(), err)
	}
	return int64(size), nil
}
