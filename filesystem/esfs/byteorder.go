package esfs

import "encoding/binary"

// Every on-disk integer in ESFS is little-endian. These helpers bounds-check before
// decoding: a short buffer is a BadFS, never a panic or a silently truncated value.

func readU8(b []byte, off int) (uint8, error) {
	if off < 0 || off+1 > len(b) {
		return 0, badFSf("esfs: u8 read at offset %d exceeds buffer of length %d", off, len(b))
	}
	return b[off], nil
}

func readU16(b []byte, off int) (uint16, error) {
	if off < 0 || off+2 > len(b) {
		return 0, badFSf("esfs: u16 read at offset %d exceeds buffer of length %d", off, len(b))
	}
	return binary.LittleEndian.Uint16(b[off : off+2]), nil
}

func readU32(b []byte, off int) (uint32, error) {
	if off < 0 || off+4 > len(b) {
		return 0, badFSf("esfs: u32 read at offset %d exceeds buffer of length %d", off, len(b))
	}
	return binary.LittleEndian.Uint32(b[off : off+4]), nil
}

func readU64(b []byte, off int) (uint64, error) {
	if off < 0 || off+8 > len(b) {
		return 0, badFSf("esfs: u64 read at offset %d exceeds buffer of length %d", off, len(b))
	}
	return binary.LittleEndian.Uint64(b[off : off+8]), nil
}

// readUintBE decodes an n-byte (1..8) unsigned big-endian integer.
func readUintBE(b []byte, off, n int) (uint64, error) {
	if n < 1 || n > 8 {
		return 0, badFSf("esfs: invalid big-endian width %d", n)
	}
	raw, err := readBytes(b, off, n)
	if err != nil {
		return 0, err
	}
	var v uint64
	for _, c := range raw {
		v = v<<8 | uint64(c)
	}
	return v, nil
}

// readIntBE decodes an n-byte (1..8) signed, two's-complement, big-endian integer,
// sign-extending from bit 8*n-1 into a full int64.
func readIntBE(b []byte, off, n int) (int64, error) {
	v, err := readUintBE(b, off, n)
	if err != nil {
		return 0, err
	}
	signBit := uint64(1) << (8*n - 1)
	if v&signBit != 0 {
		v |= ^uint64(0) << (8 * n)
	}
	return int64(v), nil
}

// readBytes returns a bounds-checked slice, a copy so the caller never aliases the
// decode buffer past its intended lifetime.
func readBytes(b []byte, off, length int) ([]byte, error) {
	if off < 0 || length < 0 || off+length > len(b) {
		return nil, badFSf("esfs: %d-byte read at offset %d exceeds buffer of length %d", length, off, len(b))
	}
	out := make([]byte, length)
	copy(out, b[off:off+length])
	return out, nil
}
