// Package device implements the block-I/O abstraction the esfs driver is built against:
// a sector-addressed reader with an installable read hook, modeled on the bootloader's
// own read(device, sector, offset_in_sector, len, out_buf) call shape. The esfs package
// never touches a backend.Storage directly; it reads through Device.ReadAt, which
// funnels into Device.Read.
package device

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/essencefs/go-esfs/backend"
)

// SectorSize is the device's fixed sector size. ESFS's own block size is a superblock
// field and may be any multiple of this; the two are never assumed equal.
const SectorSize = 512

// ReadHook is called with every sector-level read the Device performs, before the bytes
// are copied into the caller's buffer. It exists for the same reason the bootloader
// exposes (read_hook, read_hook_data): tracing, fault injection, and instrumented
// corruption testing of the driver above it. A ReadHook may be nil.
type ReadHook func(sector uint64, offsetInSector uint32, length int)

// Device is a sector-granular read handle onto a backend.Storage. It does not interpret
// ESFS's own on-disk layout; it only turns (sector, offset, length) requests into byte
// ranges on the backing store.
type Device struct {
	storage backend.Storage
	size    int64 // total size in bytes, -1 if unknown
	hook    ReadHook
	log     logrus.FieldLogger
}

// Option configures a Device.
type Option func(*Device)

// WithReadHook installs a hook invoked on every Read.
func WithReadHook(h ReadHook) Option {
	return func(d *Device) { d.hook = h }
}

// WithLogger overrides the package default logger for this Device.
func WithLogger(l logrus.FieldLogger) Option {
	return func(d *Device) { d.log = l }
}

// New wraps storage as a Device. Size is read via Stat when available; if the backend
// cannot report a size (common for bare block devices opened through backend/file),
// reads past the true end simply surface whatever error the backend returns.
func New(storage backend.Storage, opts ...Option) *Device {
	d := &Device{storage: storage, size: -1, log: logrus.StandardLogger()}
	if info, err := storage.Stat(); err == nil {
		d.size = info.Size()
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Size returns the device size in bytes, or -1 if unknown.
func (d *Device) Size() int64 {
	return d.size
}

// Read fills out with length bytes starting offsetInSector bytes into sector. len(out)
// must equal length. It is the sole read primitive the esfs driver uses; every
// superblock, directory-entry, attribute, and extent fetch funnels through here.
func (d *Device) Read(sector uint64, offsetInSector uint32, length int, out []byte) error {
	if len(out) != length {
		return fmt.Errorf("device: out buffer length %d does not match requested length %d", len(out), length)
	}
	if offsetInSector >= SectorSize {
		return fmt.Errorf("device: offset %d exceeds sector size %d", offsetInSector, SectorSize)
	}
	if d.hook != nil {
		d.hook(sector, offsetInSector, length)
	}

	pos := int64(sector)*SectorSize + int64(offsetInSector)
	if pos < 0 {
		return fmt.Errorf("device: sector %d overflows byte offset", sector)
	}

	n, err := d.storage.ReadAt(out, pos)
	if err != nil && !(err == io.EOF && n == length) {
		d.log.WithFields(logrus.Fields{
			"sector": sector,
			"offset": offsetInSector,
			"length": length,
		}).Debug("device read failed")
		return fmt.Errorf("device: read at sector %d offset %d: %w", sector, offsetInSector, err)
	}
	if n != length {
		return fmt.Errorf("device: short read at sector %d offset %d: got %d of %d bytes", sector, offsetInSector, n, length)
	}
	return nil
}

// ReadAt is a byte-addressed convenience wrapper over Read, for callers (like the
// superblock loader) that already work in flat volume-relative byte offsets rather
// than sector/offset pairs.
func (d *Device) ReadAt(offset int64, length int) ([]byte, error) {
	if offset < 0 || length < 0 {
		return nil, fmt.Errorf("device: invalid read range offset=%d length=%d", offset, length)
	}
	sector := uint64(offset) / SectorSize
	offInSector := uint32(uint64(offset) % SectorSize)

	out := make([]byte, length)
	// a single request may span multiple sectors; Read only requires offsetInSector
	// to be within one sector, so walk sector boundaries ourselves.
	filled := 0
	for filled < length {
		remaining := length - filled
		avail := SectorSize - int(offInSector)
		chunk := remaining
		if chunk > avail {
			chunk = avail
		}
		if err := d.Read(sector, offInSector, chunk, out[filled:filled+chunk]); err != nil {
			return nil, err
		}
		filled += chunk
		sector++
		offInSector = 0
	}
	return out, nil
}
