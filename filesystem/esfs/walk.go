package esfs

import "os"

// WalkEntry is one node visited by Walk.
type WalkEntry struct {
	Path string
	Info os.FileInfo
}

// VisitFunc is called once per WalkEntry. Returning stop=true ends the walk early.
type VisitFunc func(entry WalkEntry) (stop bool, err error)

// Walk performs a full-tree traversal of the volume starting at root, supplementing
// the spec's own non-recursive path-walk: nothing in the on-disk format rules out a
// directory entry whose DATA attribute points back at an ancestor, so Walk tracks
// every directory's (block, offset) identity and refuses to descend into one twice.
// A detected cycle ends that branch of the walk without an error — the rest of the
// tree is still visited — and is reported via the returned bool.
func (v *Volume) Walk(root string, visit VisitFunc) (cycleDetected bool, err error) {
	start, isDir, err := v.resolve(root)
	if err != nil {
		return false, err
	}
	seen := map[identity]bool{}
	cycleDetected, err = v.walk(root, start, isDir, seen, visit)
	return cycleDetected, err
}

func (v *Volume) walk(path string, n *node, isDir bool, seen map[identity]bool, visit VisitFunc) (bool, error) {
	stop, err := visit(WalkEntry{Path: path, Info: newFileInfo(baseName(path), n)})
	if err != nil || stop {
		return false, err
	}
	if !isDir {
		return false, nil
	}

	id := n.identity()
	if seen[id] {
		return true, nil
	}
	seen[id] = true

	var cycleDetected bool
	walkErr := iterateDir(n, func(name string, kind entryKind, child *node) (bool, error) {
		childPath := path
		if childPath == "" || childPath == "/" {
			childPath = "/" + name
		} else {
			childPath = path + "/" + name
		}
		cyc, err := v.walk(childPath, child, kind == entryDirectory, seen, visit)
		if cyc {
			cycleDetected = true
		}
		return false, err
	})
	return cycleDetected, walkErr
}
