package esfs

import (
	"fmt"

	"github.com/essencefs/go-esfs/device"
)

const (
	superblockSignature = "!EssenceFS2-----"
	superblockSize      = 8192
	superblockOffset    = 16 * device.SectorSize // sector 16

	maxRequiredReadVersion = 10

	// blockSizeCeilingMask mirrors the source's raw bitmask test
	// (blockSize & ~0x0FFF_FE00 == 0): it accepts block sizes that are a multiple of
	// 512 up to 0x0FFF_FE00 (just under 256 MiB). Preserved as-specified; see DESIGN.md for discussion
	// of the "clean range" reading the mask was probably meant to express.
	blockSizeCeilingMask = ^uint64(0x0FFF_FE00)
)

// directoryEntryRef is the on-disk {block, offset_into_block, unused} triple used by the
// superblock to point at the kernel and root directory entries.
type directoryEntryRef struct {
	block         uint64
	offsetInBlock uint32
}

// superblock holds the validated fields of the 8192-byte ESFS superblock that the
// driver actually consumes. Group-layout fields the read path never uses
// (blocksPerGroup, gdtFirstBlock, ...) are intentionally not retained.
type superblock struct {
	volumeName           [32]byte
	requiredReadVersion  uint16
	requiredWriteVersion uint16
	blockSize            uint64
	blockCount           uint64
	blocksUsed           uint64
	identifier           [16]byte
	root                 directoryEntryRef
}

// parseSuperblock validates and decodes the 8192-byte superblock buffer. It does not
// touch the device; Mount is responsible for the two on-disk reads (superblock,
// then root directory entry).
func parseSuperblock(b []byte) (*superblock, error) {
	if len(b) != superblockSize {
		return nil, badFSf("esfs: superblock buffer is %d bytes, want %d", len(b), superblockSize)
	}

	sig, err := readBytes(b, 0, 16)
	if err != nil {
		return nil, err
	}
	if string(sig) != superblockSignature {
		return nil, badFS("not an esfs filesystem")
	}

	var sb superblock
	copy(sb.volumeName[:], b[16:48])

	if sb.requiredReadVersion, err = readU16(b, 48); err != nil {
		return nil, err
	}
	if sb.requiredReadVersion > maxRequiredReadVersion {
		return nil, badFS("not an esfs filesystem")
	}
	if sb.requiredWriteVersion, err = readU16(b, 50); err != nil {
		return nil, err
	}
	// checksum at offset 52 (u32) and mounted flag: both unverified, non-goals.

	if sb.blockSize, err = readU64(b, 64); err != nil {
		return nil, err
	}
	if !validBlockSize(sb.blockSize) {
		return nil, badFS("not an esfs filesystem")
	}
	if sb.blockCount, err = readU64(b, 72); err != nil {
		return nil, err
	}
	if sb.blockCount == 0 {
		return nil, badFS("not an esfs filesystem")
	}
	if sb.blocksUsed, err = readU64(b, 80); err != nil {
		return nil, err
	}

	ident, err := readBytes(b, 176, 16)
	if err != nil {
		return nil, err
	}
	copy(sb.identifier[:], ident)

	// kernel DirEntryRef at 208, root DirEntryRef at 224; each is {block u64, offset u32, unused u32}.
	rootRef, err := parseDirEntryRef(b, 224)
	if err != nil {
		return nil, err
	}
	sb.root = rootRef

	return &sb, nil
}

func parseDirEntryRef(b []byte, off int) (directoryEntryRef, error) {
	block, err := readU64(b, off)
	if err != nil {
		return directoryEntryRef{}, err
	}
	offsetInBlock, err := readU32(b, off+8)
	if err != nil {
		return directoryEntryRef{}, err
	}
	return directoryEntryRef{block: block, offsetInBlock: offsetInBlock}, nil
}

// validBlockSize requires a multiple of the device sector size, nonzero, and within the
// ceiling bitmask the format reserves. See blockSizeCeilingMask.
func validBlockSize(blockSize uint64) bool {
	if blockSize == 0 {
		return false
	}
	if blockSize%device.SectorSize != 0 {
		return false
	}
	return blockSize&blockSizeCeilingMask == 0
}

// byteOffset converts a block number to a volume-relative byte offset, checking for
// uint64 overflow before the multiplication leaves the range a valid disk offset could
// occupy.
func (sb *superblock) byteOffset(block uint64) (int64, error) {
	off := block * sb.blockSize
	if sb.blockSize != 0 && off/sb.blockSize != block {
		return 0, badFSf("esfs: block number %d overflows byte offset at block size %d", block, sb.blockSize)
	}
	if off > uint64(1)<<62 {
		return 0, fmt.Errorf("esfs: block offset %d implausibly large", off)
	}
	return int64(off), nil
}
