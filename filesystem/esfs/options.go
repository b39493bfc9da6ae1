package esfs

import (
	"github.com/sirupsen/logrus"

	"github.com/essencefs/go-esfs/device"
)

// MountOptions configures Mount. The zero value is a standard read-only mount with no
// checksum verification and the package default logger.
type MountOptions struct {
	// VerifyChecksums turns on a CRC-32 check of the superblock at Mount. Directory
	// entry checksums are not checked. It never fails a mount or a read: a mismatch
	// is only recorded in ChecksumMismatches, never enforced.
	VerifyChecksums bool

	// Logger overrides the package default logger for this volume.
	Logger logrus.FieldLogger

	// ReadHook, if set, fires once per physical block-device read issued by a File's
	// read_file extent decode (L1 extents only; a DIRECT file never touches the
	// device). It is installed only for the duration of each File.Read call, never
	// for superblock load, directory-entry loads during path resolution or ReadDir,
	// or any other File.Read call.
	ReadHook device.ReadHook
}

func (o MountOptions) logger() logrus.FieldLogger {
	if o.Logger != nil {
		return o.Logger
	}
	return defaultLogger
}
