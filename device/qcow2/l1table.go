package qcow2

import (
	"encoding/binary"
	"fmt"
)

// l1Table is the top level of the two-level cluster translation table. Each entry
// points at an L2 table's cluster offset.
type l1Table struct {
	entries []l1TableEntry
}

type l1TableEntry struct {
	offset    uint64
	allocated bool
}

// parseL1Table decodes an L1 table from b, which must be a whole number of 8-byte
// entries (as read, it always is: l1Size is an entry count, and Open reads l1Size*8
// bytes).
func parseL1Table(b []byte) (*l1Table, error) {
	if len(b)%8 != 0 {
		return nil, fmt.Errorf("qcow2: L1 table is %d bytes, not a multiple of 8", len(b))
	}
	table := &l1Table{}
	for i := 0; i < len(b); i += 8 {
		entry, err := parseL1TableEntry(b[i : i+8])
		if err != nil {
			return nil, err
		}
		table.entries = append(table.entries, entry)
	}
	return table, nil
}

func parseL1TableEntry(b []byte) (l1TableEntry, error) {
	raw := binary.BigEndian.Uint64(b)
	// Bits 9-55 hold the L2 table's host cluster offset, already cluster-aligned.
	// Bit 63 is the "refcount == 1" flag and bits 56-62 are reserved; both are
	// irrelevant to a reader, which only cares where the L2 table lives.
	const offsetMask = 0x00fffffffffffe00
	offset := raw & offsetMask
	return l1TableEntry{offset: offset, allocated: offset != 0}, nil
}
