package esfs

import "io"

const maxDirectorySize = 1 << 31 // directory data must be < 2^31 bytes

// entryKind classifies a child produced by iterateDir.
type entryKind int

const (
	entryUnknown entryKind = iota
	entryFile
	entryDirectory
)

// visitFunc is called once per valid, classified directory slot. Returning true stops
// the walk early (iterateDir returns nil in that case, same as reaching the end).
type visitFunc func(name string, kind entryKind, child *node) (stop bool, err error)

// iterateDir walks dir's data stream in fixed 1024-byte strides, producing
// (name, kind, node) triples for every slot that parses as a valid DirectoryEntry with
// a usable FILENAME attribute. Slots that fail signature validation, or whose FILENAME
// attribute is missing or malformed, are silently skipped: a directory is a stream of
// fixed slots, some of which may be free or corrupt, and that is not itself an error.
func iterateDir(dir *node, visit visitFunc) error {
	if !dir.isDirectory() {
		return badFileType("not a directory")
	}
	fileSize := dir.entry.fileSize
	if fileSize >= maxDirectorySize {
		return badFS("directory too large")
	}

	buf := make([]byte, directoryEntrySize)
	var pos int64
	for pos < int64(fileSize) {
		n, err := readNodeData(dir.vol.dev, dir.vol.sb.blockSize, dir.entry, pos, buf, nil)
		if err != nil && err != io.EOF {
			return err
		}
		if n < directoryEntrySize {
			// a short or EOF read mid-stride means there's no more usable data;
			// stop the walk rather than parsing a partial entry.
			break
		}

		pos += directoryEntrySize

		entry, err := parseDirectoryEntry(buf)
		if err != nil {
			continue // bad signature: skip this slot, preserve the stride
		}

		attr, ok := findAttribute(entry, attrTypeFilename, 8)
		if !ok {
			continue
		}
		name, ok := filenameAttribute(entry, attr)
		if !ok {
			continue
		}

		var kind entryKind
		switch {
		case entry.isFile():
			kind = entryFile
		case entry.isDirectory():
			kind = entryDirectory
		default:
			continue // unrecognized node type: skipped, not reported
		}

		child := &node{vol: dir.vol, entry: entry}
		// the child's own (block, offset) identity isn't recoverable from its
		// embedded copy alone; record where this slot physically lives so that
		// identity-based callers (diagnostics.Walk) can still detect cycles.
		slotBlock, slotOff, err := dir.slotLocation(pos - directoryEntrySize)
		if err == nil {
			child.block = slotBlock
			child.off = slotOff
		}

		stop, err := visit(name, kind, child)
		if err != nil {
			return err
		}
		if stop {
			return nil
		}
	}
	return nil
}

// slotLocation resolves the physical (block, offset) of the directory-data byte at the
// given logical position, for identity purposes only. It re-locates the slot through
// the same DATA attribute iterateDir already read, so it stays correct for both DIRECT
// and L1 directories without threading physical addresses through readNodeData.
func (n *node) slotLocation(logicalPos int64) (uint64, uint32, error) {
	attr, ok := findAttribute(n.entry, attrTypeData, dataAttrMinSize)
	if !ok {
		return 0, 0, badFS("extents are missing")
	}
	fields, err := parseDataAttrFields(n.entry, attr)
	if err != nil {
		return 0, 0, err
	}
	if fields.indirection == indirectionDirect {
		// embedded data has no independent physical location; key it off the
		// parent's own slot instead so cycle detection still has a stable identity.
		return n.block, n.off + uint32(logicalPos), nil
	}
	if fields.indirection != indirectionL1 {
		return 0, 0, badFS("unknown redirection")
	}

	streamBase := attr.payloadOffset() + int(fields.dataOffset)
	streamLen := attr.payloadSize() - int(fields.dataOffset)
	if streamLen < 0 {
		streamLen = 0
	}

	var curStart, curPos int64
	var consumed int
	for i := uint16(0); i < fields.count; i++ {
		if consumed+1 > streamLen {
			break
		}
		h, err := readU8(n.entry.raw[:], streamBase+consumed)
		if err != nil {
			break
		}
		startBytes := int(h&7) + 1
		countBytes := int((h>>3)&7) + 1
		if consumed+1+startBytes+countBytes > streamLen {
			break
		}
		delta, err := readIntBE(n.entry.raw[:], streamBase+consumed+1, startBytes)
		if err != nil {
			break
		}
		countBlocks, err := readUintBE(n.entry.raw[:], streamBase+consumed+1+startBytes, countBytes)
		if err != nil {
			break
		}
		consumed += 1 + startBytes + countBytes
		curStart += delta
		extentBytes := int64(countBlocks) * int64(n.vol.sb.blockSize)
		extentEnd := curPos + extentBytes
		if extentEnd > logicalPos {
			addOff := logicalPos - curPos
			physOff := curStart*int64(n.vol.sb.blockSize) + addOff
			return uint64(physOff) / n.vol.sb.blockSize, uint32(uint64(physOff) % n.vol.sb.blockSize), nil
		}
		curPos = extentEnd
	}
	return 0, 0, badFS("extents are missing")
}
