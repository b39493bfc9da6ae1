// Package extract copies an ESFS volume's tree out to the host filesystem. The
// teacher's sync package copies host-to-image for writable formats, driven by an
// fs.FS source and a filesystem.FileSystem destination; ESFS is read-only, so this
// runs the same shape in reverse, with the Volume as the source instead.
package extract

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/pkg/xattr"

	"github.com/essencefs/go-esfs/filesystem/esfs"
)

const maxCopyAllSize = 64 * 1024 * 1024

// contentTyper is implemented by the os.FileInfo esfs.Volume.ReadDir hands back; it
// exposes the node's opaque contentType field, which has no POSIX equivalent.
type contentTyper interface {
	ContentType() string
}

// contentTypeXattr is the extended attribute name extracted files carry the node's
// contentType field under. Best effort: filesystems and platforms without xattr
// support simply don't get it, which is fine since ESFS itself treats the field as
// opaque.
const contentTypeXattr = "user.esfs.content_type"

// Extract copies vol's tree, starting at root ("/" for the whole volume), into destDir
// on the host filesystem. Directories are created as needed; regular files are copied
// byte for byte. ESFS carries no symlinks or special files, so those cases the teacher
// handled for FAT32/ISO9660 don't apply here.
func Extract(vol *esfs.Volume, root, destDir string) error {
	start := path.Clean(root)
	if start == "" {
		start = "/"
	}
	return copyDir(vol, destDir, start)
}

func copyDir(vol *esfs.Volume, destDir, dir string) error {
	entries, err := vol.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read dir %s: %w", dir, err)
	}

	for _, entry := range entries {
		name := entry.Name()
		p := path.Join(dir, name)
		destPath := filepath.Join(destDir, filepath.FromSlash(strings.TrimPrefix(p, "/")))

		if entry.IsDir() {
			if err := os.MkdirAll(destPath, 0o755); err != nil {
				return fmt.Errorf("create dir %s: %w", destPath, err)
			}
			if err := copyDir(vol, destDir, p); err != nil {
				return fmt.Errorf("copy dir %s: %w", p, err)
			}
			continue
		}

		if err := copyOneFile(vol, p, destPath, entry); err != nil {
			return fmt.Errorf("copy file %s: %w", p, err)
		}
	}
	return nil
}

func copyOneFile(vol *esfs.Volume, srcPath, destPath string, info os.FileInfo) error {
	in, err := vol.OpenFile(srcPath, os.O_RDONLY)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(destPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	if ct, ok := info.(contentTyper); ok {
		_ = xattr.Set(destPath, contentTypeXattr, []byte(ct.ContentType()))
	}

	if info.Size() <= maxCopyAllSize {
		data, err := io.ReadAll(in)
		if err != nil {
			return err
		}
		n, err := out.Write(data)
		if err != nil {
			return err
		}
		if n != len(data) {
			return io.ErrShortWrite
		}
		return nil
	}

	buf := make([]byte, 32*1024)
	for {
		n, rerr := in.Read(buf)
		if n > 0 {
			if _, werr := out.Write(buf[:n]); werr != nil {
				return werr
			}
		}
		if rerr == io.EOF {
			return nil
		}
		if rerr != nil {
			return rerr
		}
	}
}

