// Package esfs implements a read-only driver for the Essence filesystem (ESFS): given
// a block device it mounts the volume, resolves pathnames, enumerates directories, and
// reads file data. It tolerates adversarial on-disk data — every field that influences
// a pointer, length, or loop bound is checked before use.
package esfs

import (
	"fmt"
	"os"

	"github.com/essencefs/go-esfs/backend"
	"github.com/essencefs/go-esfs/device"
	esfsfilesystem "github.com/essencefs/go-esfs/filesystem"
	"github.com/essencefs/go-esfs/filesystem/esfs/crc"
	"github.com/essencefs/go-esfs/internal/pathwalk"
)

// Volume is a mounted ESFS instance: the block-device handle, the validated superblock,
// and a cached root node. It implements filesystem.FileSystem.
type Volume struct {
	dev  *device.Device
	sb   *superblock
	root *node
	opts MountOptions

	checksumMismatches []string
}

var _ esfsfilesystem.FileSystem = (*Volume)(nil)

// Mount reads the superblock and root directory entry from storage and returns a
// mounted Volume. Any structural failure is reported as a *BadFSError, including the
// case where the device is simply too short to hold a superblock ("out of range" is
// folded into the same "not an esfs filesystem" signal, so probing the wrong partition
// behaves uniformly).
func Mount(storage backend.Storage, opts ...MountOptions) (*Volume, error) {
	var o MountOptions
	if len(opts) > 0 {
		o = opts[0]
	}

	// o.ReadHook is deliberately not installed here: it must fire only for the
	// single read_file call that requested it, not for this mount's own superblock
	// and root-directory reads or any later directory/path-resolution read. File.Read
	// passes it through to readNodeData/readL1 directly, scoped to that one call.
	dev := device.New(storage, device.WithLogger(o.logger()))

	sbBytes, err := dev.ReadAt(superblockOffset, superblockSize)
	if err != nil {
		return nil, badFS("not an esfs filesystem")
	}
	sb, err := parseSuperblock(sbBytes)
	if err != nil {
		if IsBadFS(err) {
			return nil, err
		}
		return nil, badFS("not an esfs filesystem")
	}

	vol := &Volume{dev: dev, sb: sb, opts: o}

	root, err := loadNode(vol, sb.root.block, sb.root.offsetInBlock)
	if err != nil {
		if IsBadFS(err) {
			return nil, err
		}
		return nil, badFS("incorrect directory signature")
	}
	vol.root = root

	if o.VerifyChecksums {
		vol.checkSuperblockChecksum(sbBytes)
	}

	o.logger().WithFields(map[string]interface{}{
		"blockSize":  sb.blockSize,
		"blockCount": sb.blockCount,
		"uuid":       vol.UUID(),
	}).Debug("esfs: mounted volume")

	return vol, nil
}

func (v *Volume) checkSuperblockChecksum(sbBytes []byte) {
	stored, err := readU32(sbBytes, 52)
	if err != nil {
		return
	}
	// The on-disk checksum covers the superblock with the checksum field itself
	// zeroed; the format never documents verification, so this is best-effort and
	// purely informational (see MountOptions.VerifyChecksums).
	scratch := make([]byte, len(sbBytes))
	copy(scratch, sbBytes)
	scratch[52], scratch[53], scratch[54], scratch[55] = 0, 0, 0, 0
	if got := crc.Checksum(scratch); got != stored {
		v.checksumMismatches = append(v.checksumMismatches, "superblock")
	}
}

// ChecksumMismatches lists any on-disk checksum the volume found not to match while
// VerifyChecksums was enabled. It is purely diagnostic: mismatches never fail a mount
// or a read.
func (v *Volume) ChecksumMismatches() []string {
	return v.checksumMismatches
}

// Type implements filesystem.FileSystem.
func (v *Volume) Type() esfsfilesystem.Type {
	return esfsfilesystem.TypeEsfs
}

// Label implements filesystem.FileSystem: the volumeName field, truncated at its fixed
// 32-byte length. It is returned exactly as stored, including any trailing padding.
func (v *Volume) Label() string {
	return string(v.sb.volumeName[:])
}

// UUID implements filesystem.FileSystem: lowercase hex of the 16 raw identifier bytes.
func (v *Volume) UUID() string {
	return uuidString(v.sb.identifier)
}

func adaptIterate(dir interface{}) (*node, error) {
	n, ok := dir.(*node)
	if !ok {
		return nil, fmt.Errorf("esfs: internal error: pathwalk node has unexpected type %T", dir)
	}
	return n, nil
}

func iterateAdapter(dir interface{}, visit func(name string, isDir bool, child interface{}) (bool, error)) error {
	n, err := adaptIterate(dir)
	if err != nil {
		return err
	}
	return iterateDir(n, func(name string, kind entryKind, child *node) (bool, error) {
		return visit(name, kind == entryDirectory, child)
	})
}

func (v *Volume) resolve(pathname string) (*node, bool, error) {
	got, isDir, err := pathwalk.Resolve(pathname, v.root, iterateAdapter)
	if err != nil {
		if err == pathwalk.ErrNotFound {
			return nil, false, os.ErrNotExist
		}
		return nil, false, err
	}
	n, err := adaptIterate(got)
	if err != nil {
		return nil, false, err
	}
	return n, isDir, nil
}

// ReadDir implements filesystem.FileSystem.
func (v *Volume) ReadDir(pathname string) ([]os.FileInfo, error) {
	dir, isDir, err := v.resolve(pathname)
	if err != nil {
		return nil, err
	}
	if !isDir {
		return nil, badFileType("not a directory")
	}

	var infos []os.FileInfo
	err = iterateDir(dir, func(name string, kind entryKind, child *node) (bool, error) {
		infos = append(infos, newFileInfo(name, child))
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	return infos, nil
}

// OpenFile implements filesystem.FileSystem. flag must be os.O_RDONLY.
func (v *Volume) OpenFile(pathname string, flag int) (esfsfilesystem.File, error) {
	if flag != os.O_RDONLY {
		return nil, esfsfilesystem.ErrReadonlyFilesystem
	}
	n, isDir, err := v.resolve(pathname)
	if err != nil {
		return nil, err
	}
	if isDir {
		return nil, badFileType("not a file")
	}
	return newFile(n, pathname), nil
}

