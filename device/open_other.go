//go:build !linux && !darwin

package device

import (
	"errors"
	"os"
)

func getLogicalSectorSize(f *os.File) (int64, error) {
	return 0, errors.New("device: logical sector size discovery not supported on this platform")
}
