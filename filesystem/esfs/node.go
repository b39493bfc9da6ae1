package esfs

// node is the in-memory handle described by the data model: a copy of a 1024-byte
// DirectoryEntry plus a non-owning back-reference to its volume. Cheap to copy; its
// lifetime is bounded by the enclosing open/list/path-walk call.
type node struct {
	vol   *Volume
	entry *directoryEntry
	block uint64
	off   uint32
}

func (n *node) isDirectory() bool {
	return n.entry.isDirectory()
}

func (n *node) isFile() bool {
	return n.entry.isFile()
}

// identity is used by callers (diagnostics.Walk) that need a stable key for a node
// without assuming anything about pathnames — two nodes are the same on-disk record
// iff they share (block, offset).
type identity struct {
	block uint64
	off   uint32
}

func (n *node) identity() identity {
	return identity{block: n.block, off: n.off}
}

// loadNode reads and parses the 1024-byte directory entry at the given volume-relative
// block/offset and wraps it as a node.
func loadNode(vol *Volume, block uint64, off uint32) (*node, error) {
	byteOff, err := vol.sb.byteOffset(block)
	if err != nil {
		return nil, err
	}
	raw, err := vol.dev.ReadAt(byteOff+int64(off), directoryEntrySize)
	if err != nil {
		return nil, err
	}
	entry, err := parseDirectoryEntry(raw)
	if err != nil {
		return nil, err
	}
	return &node{vol: vol, entry: entry, block: block, off: off}, nil
}
