package esfs

import (
	"io"
	"math"

	"github.com/essencefs/go-esfs/device"
)

const (
	dataAttrMinSize   = 32
	dataAttrFixedSize = 28 // indirection(1) + dataOffset(1) + count(2) + _pad(24)
	indirectionDirect = 1
	indirectionL1     = 2
)

// dataAttrFields is the decoded fixed header of a DATA attribute's payload. The actual
// data or extent stream begins dataOffset bytes into the attribute's TLV payload (i.e.
// at attr.payloadOffset()+dataOffset), per the "payload + dataOffset + pos" addressing
// the extent decoder uses.
type dataAttrFields struct {
	indirection uint8
	dataOffset  uint8
	count       uint16
}

func parseDataAttrFields(de *directoryEntry, attr attribute) (dataAttrFields, error) {
	base := attr.payloadOffset()
	indirection, err := readU8(de.raw[:], base)
	if err != nil {
		return dataAttrFields{}, err
	}
	dataOffset, err := readU8(de.raw[:], base+1)
	if err != nil {
		return dataAttrFields{}, err
	}
	count, err := readU16(de.raw[:], base+2)
	if err != nil {
		return dataAttrFields{}, err
	}
	// "size" here is the attribute's payload length (TLV size minus the 4-byte
	// type+size header): dataOffset is addressed relative to payloadOffset(), so
	// comparing it against the payload length is what keeps dataOffset+remaining
	// bytes inside the TLV record's own bounds.
	if int(dataOffset) > attr.payloadSize() {
		return dataAttrFields{}, badFS("data offset is too large")
	}
	return dataAttrFields{indirection: indirection, dataOffset: dataOffset, count: count}, nil
}

// readNodeData implements read_file: it locates the DATA attribute on de and serves
// up to len(out) bytes starting at logical position pos, dispatching to the DIRECT or
// L1 decoder. hook, if non-nil, fires once per physical block-device read issued on the
// L1 path and never on the DIRECT path.
func readNodeData(dev *device.Device, blockSize uint64, de *directoryEntry, pos int64, out []byte, hook device.ReadHook) (int, error) {
	attr, ok := findAttribute(de, attrTypeData, dataAttrMinSize)
	if !ok {
		return 0, badFS("extents are missing")
	}

	if pos >= int64(de.fileSize) {
		return 0, io.EOF
	}
	maxLen := int64(de.fileSize) - pos
	if int64(len(out)) > maxLen {
		out = out[:maxLen]
	}
	if len(out) == 0 {
		return 0, nil
	}

	fields, err := parseDataAttrFields(de, attr)
	if err != nil {
		return 0, err
	}

	switch fields.indirection {
	case indirectionDirect:
		return readDirect(de, attr, fields, pos, out)
	case indirectionL1:
		return readL1(dev, blockSize, de, attr, fields, pos, out, hook)
	default:
		return 0, badFS("unknown redirection")
	}
}

// readDirect serves embedded bytes with no device I/O. embeddedCap deliberately uses
// max(count, payloadSize-dataOffset), not min: see DESIGN.md for why this preserves
// observable source behavior rather than the more defensive reading.
func readDirect(de *directoryEntry, attr attribute, fields dataAttrFields, pos int64, out []byte) (int, error) {
	remaining := int64(attr.payloadSize()) - int64(fields.dataOffset)
	embeddedCap := remaining
	if int64(fields.count) > embeddedCap {
		embeddedCap = int64(fields.count)
	}
	if pos > embeddedCap {
		return 0, io.EOF
	}
	toRead := int64(len(out))
	if toRead > embeddedCap-pos {
		toRead = embeddedCap - pos
	}
	if toRead <= 0 {
		return 0, nil
	}

	dataStart := attr.payloadOffset() + int(fields.dataOffset)
	srcStart := dataStart + int(pos)
	srcEnd := srcStart + int(toRead)
	// embeddedCap may exceed the attribute's true byte range (the max-not-min
	// quirk above); never index past the fixed 1024-byte entry buffer.
	if srcStart < 0 || srcStart > len(de.raw) {
		return 0, nil
	}
	if srcEnd > len(de.raw) {
		srcEnd = len(de.raw)
	}
	n := copy(out, de.raw[srcStart:srcEnd])
	return n, nil
}

// readL1 walks the variable-width extent stream, issuing one device read per extent
// record that overlaps [pos, pos+len(out)).
func readL1(dev *device.Device, blockSize uint64, de *directoryEntry, attr attribute, fields dataAttrFields, pos int64, out []byte, hook device.ReadHook) (int, error) {
	streamBase := attr.payloadOffset() + int(fields.dataOffset)
	streamLen := attr.payloadSize() - int(fields.dataOffset)
	if streamLen < 0 {
		streamLen = 0
	}

	var (
		curStart int64 // physical block cursor, wraps modulo 2^64 semantics via int64 arithmetic
		curPos   int64 // logical byte cursor
		consumed int
		filled   int
		target   = int64(len(out))
	)

	for i := uint16(0); i < fields.count && int64(filled) < target; i++ {
		if consumed+1 > streamLen {
			break // truncation, not error: the stream ran out before `count` records
		}
		h, err := readU8(de.raw[:], streamBase+consumed)
		if err != nil {
			break
		}
		startBytes := int(h&7) + 1
		countBytes := int((h>>3)&7) + 1

		if consumed+1+startBytes+countBytes > streamLen {
			break
		}

		delta, err := readIntBE(de.raw[:], streamBase+consumed+1, startBytes)
		if err != nil {
			break
		}
		countBlocks, err := readUintBE(de.raw[:], streamBase+consumed+1+startBytes, countBytes)
		if err != nil {
			break
		}
		consumed += 1 + startBytes + countBytes

		curStart += delta // wraps modulo 2^64 via plain int64/uint64 overflow semantics
		if blockSize != 0 && countBlocks > uint64(math.MaxInt64)/blockSize {
			break // count*blockSize would overflow a plausible byte range; truncate the stream
		}
		extentBytes := int64(countBlocks) * int64(blockSize)

		extentEnd := curPos + extentBytes
		if extentEnd <= pos {
			curPos = extentEnd
			continue
		}

		addOff := pos - curPos
		if addOff < 0 {
			addOff = 0
		}
		remaining := target - int64(filled)
		toRead := extentBytes - addOff
		if toRead > remaining {
			toRead = remaining
		}
		if toRead > 0 {
			physOff := curStart*int64(blockSize) + addOff
			if physOff < 0 {
				break
			}
			buf := out[filled : int64(filled)+toRead]
			if hook != nil {
				hook(uint64(physOff)/device.SectorSize, uint32(uint64(physOff)%device.SectorSize), len(buf))
			}
			if err := deviceReadAt(dev, physOff, buf); err != nil {
				if filled > 0 {
					return filled, nil
				}
				return 0, err
			}
			filled += int(toRead)
		}
		curPos = extentEnd
		pos += toRead
	}

	return filled, nil
}

// deviceReadAt reads len(out) bytes from dev starting at the given volume-relative
// byte offset, using dev's own sector/offset addressing.
func deviceReadAt(dev *device.Device, offset int64, out []byte) error {
	got, err := dev.ReadAt(offset, len(out))
	if err != nil {
		return err
	}
	copy(out, got)
	return nil
}
