package extract

import (
	"archive/tar"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"github.com/pierrec/lz4"
	"github.com/ulikunitz/xz"

	"github.com/essencefs/go-esfs/filesystem/esfs"
)

// Codec selects the compression wrapped around the tar stream Archive produces.
type Codec int

const (
	// CodecLZ4 favors speed: fast to produce, fast for a bootloader-adjacent tool
	// to decompress again on constrained hardware.
	CodecLZ4 Codec = iota
	// CodecXZ favors ratio, at a noticeably higher CPU cost, for offline archival
	// transport of a recovered tree.
	CodecXZ
)

// Archive walks vol starting at root and writes a compressed tar stream to w. It is
// the natural complement to Extract: where Extract copies bytes out to host files,
// Archive packs them into a single portable stream, using the same two codec
// libraries the teacher's squashfs reader consumes for decompressing block data, just
// run in reverse.
func Archive(w io.Writer, vol *esfs.Volume, root string, codec Codec) error {
	var zw io.WriteCloser
	switch codec {
	case CodecLZ4:
		zw = lz4.NewWriter(w)
	case CodecXZ:
		xzw, err := xz.NewWriter(w)
		if err != nil {
			return fmt.Errorf("extract: create xz writer: %w", err)
		}
		zw = xzw
	default:
		return fmt.Errorf("extract: unknown codec %d", codec)
	}

	tw := tar.NewWriter(zw)

	start := path.Clean(root)
	if start == "" {
		start = "/"
	}
	if err := archiveDir(tw, vol, start); err != nil {
		return err
	}

	if err := tw.Close(); err != nil {
		return fmt.Errorf("extract: close tar writer: %w", err)
	}
	return zw.Close()
}

func archiveDir(tw *tar.Writer, vol *esfs.Volume, dir string) error {
	entries, err := vol.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("extract: read dir %q: %w", dir, err)
	}

	for _, entry := range entries {
		p := path.Join(dir, entry.Name())
		name := strings.TrimPrefix(p, "/")

		hdr, err := tarHeader(name, entry)
		if err != nil {
			return err
		}
		if entry.IsDir() {
			hdr.Name += "/"
			if err := tw.WriteHeader(hdr); err != nil {
				return fmt.Errorf("extract: write tar header for %q: %w", p, err)
			}
			if err := archiveDir(tw, vol, p); err != nil {
				return err
			}
			continue
		}

		if err := tw.WriteHeader(hdr); err != nil {
			return fmt.Errorf("extract: write tar header for %q: %w", p, err)
		}

		f, err := vol.OpenFile(p, os.O_RDONLY)
		if err != nil {
			return fmt.Errorf("extract: open %q: %w", p, err)
		}
		_, err = io.Copy(tw, f)
		closeErr := f.Close()
		if err != nil {
			return fmt.Errorf("extract: write tar body for %q: %w", p, err)
		}
		if closeErr != nil {
			return fmt.Errorf("extract: close %q: %w", p, closeErr)
		}
	}
	return nil
}

func tarHeader(name string, info os.FileInfo) (*tar.Header, error) {
	hdr, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return nil, fmt.Errorf("extract: build tar header for %q: %w", name, err)
	}
	hdr.Name = name
	if ct, ok := info.(creationTimer); ok {
		if hdr.PAXRecords == nil {
			hdr.PAXRecords = map[string]string{}
		}
		hdr.PAXRecords["ESFS.creationTime"] = ct.CreationTime().UTC().Format(time.RFC3339Nano)
	}
	return hdr, nil
}

