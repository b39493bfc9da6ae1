// Package pathwalk implements the pathname resolver the esfs facade consumes: it walks
// a slash-separated path one component at a time, driving a caller-supplied directory
// iterator rather than knowing anything about ESFS's on-disk layout itself.
package pathwalk

import (
	"errors"
	"strings"
)

// ErrNotFound is returned when a path component has no matching directory entry.
var ErrNotFound = errors.New("pathwalk: no such file or directory")

// Iterator lists the children of dir, calling visit once per valid entry. visit
// returning true stops the iteration early. This is exactly esfs's iterateDir
// signature, adapted to interface{} so this package carries no esfs dependency.
type Iterator func(dir interface{}, visit func(name string, isDir bool, child interface{}) (stop bool, err error)) error

// Resolve walks path starting at root, using iterate to list each directory's
// children. Name comparison is case-sensitive, byte-exact UTF-8. It returns the node
// located at path and whether that node is itself a directory.
func Resolve(path string, root interface{}, iterate Iterator) (node interface{}, isDir bool, err error) {
	node, isDir = root, true
	for _, part := range splitPath(path) {
		if part == "" {
			continue
		}
		if !isDir {
			return nil, false, ErrNotFound
		}

		var (
			found      interface{}
			foundIsDir bool
			hit        bool
		)
		walkErr := iterate(node, func(name string, dirFlag bool, child interface{}) (bool, error) {
			if name == part {
				found, foundIsDir, hit = child, dirFlag, true
				return true, nil
			}
			return false, nil
		})
		if walkErr != nil {
			return nil, false, walkErr
		}
		if !hit {
			return nil, false, ErrNotFound
		}
		node, isDir = found, foundIsDir
	}
	return node, isDir, nil
}

func splitPath(path string) []string {
	return strings.Split(strings.Trim(path, "/"), "/")
}
