package esfs

const (
	attrTypeData     uint16 = 1
	attrTypeFilename uint16 = 2

	attrHeaderSize = 4 // type u16 + size u16
)

// attribute is a located TLV record: off points at its type field inside the owning
// directoryEntry's raw buffer, and size is the full record length including the header.
type attribute struct {
	typ  uint16
	size uint16
	off  int
}

// payloadOffset is where this attribute's payload begins within the owning entry's raw buffer.
func (a attribute) payloadOffset() int {
	return a.off + attrHeaderSize
}

// payloadSize is the attribute's payload length, excluding the 4-byte type+size header.
func (a attribute) payloadSize() int {
	return int(a.size) - attrHeaderSize
}

// findAttribute walks de's attribute list starting at attributeOffset looking for one
// of the given type with at least minSize total bytes. Any structural violation ends
// the search (not fatal): callers treat a missing attribute and a malformed list
// identically, as "not found".
func findAttribute(de *directoryEntry, typ uint16, minSize uint16) (attribute, bool) {
	off := int(de.attributeOffset)
	for {
		if off%attributeAlignment != 0 || off+attrHeaderSize > directoryEntrySize {
			return attribute{}, false
		}
		t, err := readU16(de.raw[:], off)
		if err != nil {
			return attribute{}, false
		}
		size, err := readU16(de.raw[:], off+2)
		if err != nil {
			return attribute{}, false
		}
		if size < attrHeaderSize || off+int(size) > directoryEntrySize {
			return attribute{}, false
		}
		if t == typ && size >= minSize {
			return attribute{typ: t, size: size, off: off}, true
		}
		off += int(size)
	}
}

// filenameAttribute decodes the FILENAME payload {length u16, _pad u16, bytes[length]}
// located at attr within de. length must fit inside the attribute's own payload.
func filenameAttribute(de *directoryEntry, attr attribute) (string, bool) {
	if attr.payloadSize() < 4 {
		return "", false
	}
	length, err := readU16(de.raw[:], attr.payloadOffset())
	if err != nil {
		return "", false
	}
	if int(length) > attr.payloadSize()-4 {
		return "", false
	}
	name, err := readBytes(de.raw[:], attr.payloadOffset()+4, int(length))
	if err != nil {
		return "", false
	}
	return string(name), true
}
