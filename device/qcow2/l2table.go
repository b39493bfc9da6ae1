package qcow2

import (
	"encoding/binary"
	"fmt"
)

const l2TableEntrySize = 8

// l2Table is the leaf level of cluster translation: each entry maps one guest
// cluster to either a host cluster offset (standard) or a compressed run
// (compressed). Extended (subcluster) entries are rejected at header parse time,
// so every table here uses the 8-byte standard entry layout.
type l2Table struct {
	entries []l2TableEntry
}

type l2TableEntry struct {
	compressed bool
	allocated  bool
	zeros      bool
	// offset is the host cluster offset for a standard entry.
	offset uint64
	// compressedOffset/compressedSectors describe a compressed entry's host range;
	// see decodeCompressedDescriptor.
	compressedOffset  uint64
	compressedSectors uint64
}

func parseL2Table(b []byte, clusterBits uint32) (*l2Table, error) {
	if len(b)%l2TableEntrySize != 0 {
		return nil, fmt.Errorf("qcow2: L2 table is %d bytes, not a multiple of %d", len(b), l2TableEntrySize)
	}
	table := &l2Table{}
	for i := 0; i < len(b); i += l2TableEntrySize {
		entry, err := parseL2TableEntry(b[i:i+l2TableEntrySize], clusterBits)
		if err != nil {
			return nil, err
		}
		table.entries = append(table.entries, entry)
	}
	return table, nil
}

func parseL2TableEntry(b []byte, clusterBits uint32) (l2TableEntry, error) {
	raw := binary.BigEndian.Uint64(b)
	compressed := raw&(1<<62) != 0
	zeros := raw&(1<<0) != 0

	if compressed {
		offset, sectors := decodeCompressedDescriptor(raw, clusterBits)
		return l2TableEntry{compressed: true, allocated: true, compressedOffset: offset, compressedSectors: sectors}, nil
	}

	const offsetMask = 0x00fffffffffffe00
	offset := raw & offsetMask
	return l2TableEntry{offset: offset, allocated: offset != 0, zeros: zeros}, nil
}

// decodeCompressedDescriptor splits a compressed L2 entry's descriptor into the host
// byte offset where the compressed run starts and the number of additional 512-byte
// sectors (beyond the first) the compressed data occupies, per the qcow2 spec's
// "x = 62 - (cluster_bits - 8)" split of the low 62 bits.
func decodeCompressedDescriptor(raw uint64, clusterBits uint32) (offset uint64, sectors uint64) {
	x := 62 - (clusterBits - 8)
	descriptor := raw & ((uint64(1) << 62) - 1)
	offset = descriptor & ((uint64(1) << x) - 1)
	sectors = descriptor >> x
	return offset, sectors
}
