package testutil

import (
	"os"
	"strings"
	"testing"
)

// DirReader is satisfied by esfs.Volume's own ReadDir, rather than io/fs.ReadDirFS:
// converter.FS only implements Open (enough for http.FileServer), so a tree-validity
// check against a mounted volume has to walk the volume directly.
type DirReader interface {
	ReadDir(path string) ([]os.FileInfo, error)
}

// TestFSTree walks every directory fs exposes, reachable from both "." and "/", and
// fails if it finds a naming violation (a "." or ".." entry, a slash inside a base
// name) or a cycle. It does not assert anything about file contents.
func TestFSTree(t *testing.T, fs DirReader) {
	t.Helper()
	var seen map[string]struct{}
	var walk func(path string)
	walk = func(path string) {
		if _, ok := seen[path]; ok {
			t.Fatalf("cycle detected: revisiting path %q", path)
		}

		entries, err := fs.ReadDir(path)
		if err != nil {
			return // not a directory
		}
		seen[path] = struct{}{}

		for _, e := range entries {
			name := e.Name()

			if name == "." || name == ".." {
				t.Fatalf("illegal entry %q in %q", name, path)
			}

			if strings.Contains(name, "/") {
				t.Fatalf("entry name %q in %q is not a base name", name, path)
			}

			var child string
			if path == "." {
				child = name
			} else {
				child = path + "/" + name
			}

			if e.IsDir() {
				walk(child)
			}
		}
	}

	t.Run("dot", func(t *testing.T) {
		seen = map[string]struct{}{}
		walk(".")
	})
	t.Run("slash", func(t *testing.T) {
		seen = map[string]struct{}{}
		walk("/")
		// seen always contains "/" itself once ReadDir("/") succeeds; requiring more
		// than that confirms the walk actually descended into at least one entry,
		// rather than passing vacuously on an empty root.
		if len(seen) < 2 {
			t.Fatalf("no non-root entries seen during walk, got %d path(s)", len(seen))
		}
	})
}
