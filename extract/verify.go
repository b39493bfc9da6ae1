package extract

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"time"

	times "gopkg.in/djherbis/times.v1"

	"github.com/essencefs/go-esfs/filesystem/esfs"
)

// CompareTree confirms destFS (typically os.DirFS(destDir) after Extract) has exactly
// the same structure and contents as vol starting at root. Unlike the teacher's
// sync.CompareFS, which compares two fs.FS trees, one side here is always the volume
// itself: esfs's converter.FS adapter implements only Open, not the ReadDirFS/
// ReadDirFile interfaces fs.WalkDir needs for directory listing (http.FileServer,
// the adapter's one real consumer, never needs them either), so walking the volume
// side goes through Volume.ReadDir directly instead.
func CompareTree(vol *esfs.Volume, root string, destFS fs.FS) error {
	seen := make(map[string]struct{})
	if err := compareWalk(vol, root, destFS, seen); err != nil {
		return err
	}

	destRoot := path.Clean(root)
	if destRoot == "/" {
		destRoot = "."
	} else {
		destRoot = path.Clean("./" + destRoot)
	}
	return fs.WalkDir(destFS, destRoot, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if _, ok := seen[p]; !ok {
			return fmt.Errorf("extra path %q on host", p)
		}
		return nil
	})
}

func compareWalk(vol *esfs.Volume, dir string, destFS fs.FS, seen map[string]struct{}) error {
	entries, err := vol.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read dir %s: %w", dir, err)
	}

	destDir := path.Clean(dir)
	if destDir == "/" {
		destDir = "."
	} else {
		destDir = path.Clean("./" + destDir)
	}
	seen[destDir] = struct{}{}

	for _, entry := range entries {
		p := path.Join(dir, entry.Name())
		destPath := path.Join(destDir, entry.Name())
		seen[destPath] = struct{}{}

		td, err := fs.Stat(destFS, destPath)
		if err != nil {
			return fmt.Errorf("path %q missing on host: %w", p, err)
		}
		if entry.IsDir() != td.IsDir() {
			return fmt.Errorf("type mismatch at %q", p)
		}
		if entry.IsDir() {
			if err := compareWalk(vol, p, destFS, seen); err != nil {
				return err
			}
			continue
		}

		if entry.Size() != td.Size() {
			return fmt.Errorf("size mismatch at %q", p)
		}
		if err := compareFileContents(vol, p, destFS, destPath); err != nil {
			return err
		}
	}
	return nil
}

func compareFileContents(vol *esfs.Volume, srcPath string, destFS fs.FS, destPath string) error {
	af, err := vol.OpenFile(srcPath, os.O_RDONLY)
	if err != nil {
		return err
	}
	defer func() { _ = af.Close() }()

	bf, err := destFS.Open(destPath)
	if err != nil {
		return err
	}
	defer func() { _ = bf.Close() }()

	const bufSize = 32 * 1024
	bufA := make([]byte, bufSize)
	bufB := make([]byte, bufSize)

	for {
		na, ea := af.Read(bufA)
		nb, eb := bf.Read(bufB)

		if na != nb || !bytes.Equal(bufA[:na], bufB[:nb]) {
			return fmt.Errorf("content mismatch at %q", srcPath)
		}
		if ea == io.EOF && eb == io.EOF {
			return nil
		}
		if ea != nil && ea != io.EOF {
			return ea
		}
		if eb != nil && eb != io.EOF {
			return eb
		}
	}
}

// creationTimer is implemented by the os.FileInfo esfs hands back.
type creationTimer interface {
	CreationTime() time.Time
}

// VerifyTimestamps walks vol starting at root and confirms that destDir, a directory
// an earlier Extract wrote to, preserved each regular file's creationTime as the host
// filesystem's birth time, within the given tolerance. Birth time isn't part of Go's
// os.FileInfo, so this shells out to gopkg.in/djherbis/times.v1, which knows how to
// read it per platform; on a platform/filesystem that doesn't expose birth time, that
// file is skipped rather than treated as a mismatch.
func VerifyTimestamps(vol *esfs.Volume, root, destDir string, tolerance time.Duration) error {
	return verifyTimestampsDir(vol, root, destDir, tolerance)
}

func verifyTimestampsDir(vol *esfs.Volume, dir, destDir string, tolerance time.Duration) error {
	entries, err := vol.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read dir %s: %w", dir, err)
	}

	for _, entry := range entries {
		p := path.Join(dir, entry.Name())
		if entry.IsDir() {
			if err := verifyTimestampsDir(vol, p, destDir, tolerance); err != nil {
				return err
			}
			continue
		}

		ct, ok := entry.(creationTimer)
		if !ok {
			continue
		}

		destPath := filepath.Join(destDir, filepath.FromSlash(p))
		ts, err := times.Stat(destPath)
		if err != nil {
			return fmt.Errorf("stat %q on host: %w", destPath, err)
		}
		if !ts.HasBirthTime() {
			continue
		}

		want := ct.CreationTime()
		got := ts.BirthTime()
		delta := want.Sub(got)
		if delta < 0 {
			delta = -delta
		}
		if delta > tolerance {
			return fmt.Errorf("creation time mismatch at %q: want %v, got %v", p, want, got)
		}
	}
	return nil
}
