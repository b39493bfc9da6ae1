package esfs

import "encoding/binary"

// Test fixtures build raw ESFS byte images by hand, mirroring the on-disk layout
// described in the driver's data model, so tests exercise the real decode path rather
// than a shortcut constructor.

func align8(n int) int {
	if n%8 == 0 {
		return n
	}
	return n + (8 - n%8)
}

func putU16(b []byte, off int, v uint16) { binary.LittleEndian.PutUint16(b[off:], v) }
func putU32(b []byte, off int, v uint32) { binary.LittleEndian.PutUint32(b[off:], v) }
func putU64(b []byte, off int, v uint64) { binary.LittleEndian.PutUint64(b[off:], v) }

type testSuperblockSpec struct {
	volumeName          string
	requiredReadVersion uint16
	blockSize           uint64
	blockCount          uint64
	identifier          [16]byte
	rootBlock           uint64
	rootOffset          uint32
	badSignature        bool
}

func buildSuperblock(spec testSuperblockSpec) []byte {
	b := make([]byte, superblockSize)
	sig := superblockSignature
	if spec.badSignature {
		sig = "X" + sig[1:]
	}
	copy(b[0:16], sig)
	copy(b[16:48], spec.volumeName)
	putU16(b, 48, spec.requiredReadVersion)
	putU64(b, 64, spec.blockSize)
	putU64(b, 72, spec.blockCount)
	copy(b[176:192], spec.identifier[:])
	putU64(b, 224, spec.rootBlock)
	putU32(b, 232, spec.rootOffset)
	return b
}

type testAttr struct {
	bytes []byte
}

// filenameAttr builds a FILENAME attribute TLV: {type=2,size}{length,_pad,name bytes}.
// The whole record (header included) is padded to 8-byte alignment, since the next
// attribute's offset is this one's own offset plus its size field.
func filenameAttrBytes(name string) []byte {
	size := align8(4 + 4 + len(name))
	out := make([]byte, size)
	putU16(out, 0, attrTypeFilename)
	putU16(out, 2, uint16(size))
	putU16(out, 4, uint16(len(name)))
	copy(out[8:8+len(name)], name)
	return out
}

// directAttrBytes builds a DATA attribute TLV using DIRECT embedding. dataOffset is
// fixed at 28, immediately after the fixed DATA header fields.
func directAttrBytes(data []byte) []byte {
	const dataOffset = 28
	size := align8(4 + dataOffset + len(data))
	out := make([]byte, size)
	putU16(out, 0, attrTypeData)
	putU16(out, 2, uint16(size))
	base := 4
	out[base] = indirectionDirect
	out[base+1] = dataOffset
	putU16(out, base+2, uint16(len(data)))
	copy(out[base+dataOffset:base+dataOffset+len(data)], data)
	return out
}

type testExtent struct {
	delta       int64
	countBlocks uint64
}

// l1AttrBytes builds a DATA attribute TLV using L1 extents, each encoded with the
// maximal 8-byte start/count width for simplicity (header byte 0x3F).
func l1AttrBytes(extents []testExtent) []byte {
	const dataOffset = 28
	streamLen := len(extents) * 17 // 1 header + 8 start + 8 count
	size := align8(4 + dataOffset + streamLen)
	out := make([]byte, size)
	putU16(out, 0, attrTypeData)
	putU16(out, 2, uint16(size))
	base := 4
	out[base] = indirectionL1
	out[base+1] = dataOffset
	putU16(out, base+2, uint16(len(extents)))

	pos := base + dataOffset
	for _, e := range extents {
		out[pos] = 0x3F
		binary.BigEndian.PutUint64(out[pos+1:pos+9], uint64(e.delta))
		binary.BigEndian.PutUint64(out[pos+9:pos+17], e.countBlocks)
		pos += 17
	}
	return out
}

type testDirEntrySpec struct {
	isDir        bool
	fileSize     uint64
	attrs        [][]byte
	badSignature bool
}

// buildDirEntry lays out a 1024-byte DirectoryEntry with attributeOffset=96 and the
// given attributes packed sequentially (each already 8-byte aligned).
func buildDirEntry(spec testDirEntrySpec) []byte {
	b := make([]byte, directoryEntrySize)
	sig := directoryEntrySignature
	if spec.badSignature {
		sig = "X" + sig[1:]
	}
	copy(b[0:8], sig)
	putU16(b, 28, 96) // attributeOffset
	if spec.isDir {
		b[30] = byte(nodeTypeDirectory)
	} else {
		b[30] = byte(nodeTypeFile)
	}
	putU64(b, 56, spec.fileSize)

	off := 96
	for _, a := range spec.attrs {
		copy(b[off:off+len(a)], a)
		off += len(a)
	}
	return b
}
