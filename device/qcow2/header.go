package qcow2

import (
	"encoding/binary"
	"fmt"
)

const (
	headerMagic    uint32 = 0x514649fb
	header2Size           = 72
	header3MinSize        = 104
)

// encryptionMethod mirrors the on-disk field; go-esfs only supports reading
// unencrypted images (see the package documentation in qcow2.go).
type encryptionMethod uint32

const (
	encryptNone encryptionMethod = 0
	encryptAES  encryptionMethod = 1
	encryptLUKS encryptionMethod = 2
)

// header is the decoded form of a qcow2 header, trimmed to the fields a read-only
// cluster-translation path needs. Feature bits that gate write-path concerns
// (dirty, lazyRefcounts, autoclear bits) are not tracked.
type header struct {
	version        uint32
	clusterBits    uint32
	clusterSize    uint32
	fileSize       uint64
	encryptMethod  encryptionMethod
	l1Size         uint32
	l1Offset       uint64
	extendedL2     bool
	backingFileLen uint32
	headerSize     uint32
}

// parseHeader decodes a qcow2 header from b, which must hold at least the 72-byte
// version 2 header. Version 3 fields (header_length, incompatible features) are only
// checked when b is long enough to hold them; Open calls it once on the first 72
// bytes and again on the whole header cluster.
func parseHeader(b []byte) (*header, error) {
	if len(b) < header2Size {
		return nil, fmt.Errorf("qcow2: header is %d bytes, want at least %d", len(b), header2Size)
	}
	magic := binary.BigEndian.Uint32(b[0:4])
	if magic != headerMagic {
		return nil, fmt.Errorf("qcow2: bad magic %#08x", magic)
	}
	version := binary.BigEndian.Uint32(b[4:8])
	if version != 2 && version != 3 {
		return nil, fmt.Errorf("qcow2: unsupported version %d", version)
	}

	clusterBits := binary.BigEndian.Uint32(b[20:24])
	if clusterBits < 9 || clusterBits > 31 {
		return nil, fmt.Errorf("qcow2: implausible cluster_bits %d", clusterBits)
	}

	h := &header{
		version:        version,
		clusterBits:    clusterBits,
		clusterSize:    1 << clusterBits,
		fileSize:       binary.BigEndian.Uint64(b[24:32]),
		encryptMethod:  encryptionMethod(binary.BigEndian.Uint32(b[32:36])),
		l1Size:         binary.BigEndian.Uint32(b[36:40]),
		l1Offset:       binary.BigEndian.Uint64(b[40:48]),
		backingFileLen: binary.BigEndian.Uint32(b[16:20]),
		headerSize:     header2Size,
	}

	if h.encryptMethod != encryptNone {
		return nil, fmt.Errorf("qcow2: encrypted images are not supported")
	}
	if h.backingFileLen != 0 || binary.BigEndian.Uint64(b[8:16]) != 0 {
		return nil, fmt.Errorf("qcow2: images with a backing file are not supported")
	}

	if version == 2 || len(b) < header3MinSize {
		return h, nil
	}

	h.headerSize = binary.BigEndian.Uint32(b[100:104])
	if h.headerSize < header3MinSize {
		return nil, fmt.Errorf("qcow2: implausible v3 header_length %d", h.headerSize)
	}
	if len(b) < int(h.headerSize) {
		return h, nil
	}

	// Feature flag positions as laid out by the teacher's header encoder/decoder
	// (disk/formats/qcow2/header.go): dirty=0x80000000, corrupt=0x40000000,
	// externalData=0x20000000, nonStandardCompression=0x10000000, extendedL2=0x8000000.
	incompatibleFeatures := binary.BigEndian.Uint64(b[72:80])
	const extendedL2Bit = 0x8000000
	h.extendedL2 = incompatibleFeatures&extendedL2Bit != 0
	if h.extendedL2 {
		return nil, fmt.Errorf("qcow2: extended L2 entries (subcluster allocation) are not supported")
	}
	// Dirty only matters to a writer (it just means an unclean shutdown, not
	// corruption of already-written clusters); corrupt is worth rejecting outright.
	const corruptBit = 0x40000000
	if incompatibleFeatures&corruptBit != 0 {
		return nil, fmt.Errorf("qcow2: image is marked corrupt")
	}

	return h, nil
}
