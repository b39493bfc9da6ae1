package extract

import (
	"archive/tar"
	"bytes"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/pierrec/lz4"

	"github.com/essencefs/go-esfs/filesystem/esfs"
	"github.com/essencefs/go-esfs/testhelper"
)

// The fixture below hand-builds a tiny raw ESFS image: a root directory whose data
// stream is a two-block L1 extent, each block holding one file's DirectoryEntry with
// its content embedded via a DIRECT attribute. This mirrors the driver's own
// byte-by-byte fixture style rather than relying on a prebuilt testdata image.

const (
	sbOffset          = 16 * 512
	sbSize            = 8192
	dirEntrySize      = 1024
	nodeTypeFile      = 1
	nodeTypeDirectory = 2
	attrTypeData      = 1
	attrTypeFilename  = 2
	indirectionDirect = 1
	indirectionL1     = 2
	blockSize         = 1024
	rootBlock         = 17
)

func align8(n int) int {
	if n%8 == 0 {
		return n
	}
	return n + (8 - n%8)
}

func putU16(b []byte, off int, v uint16) { binary.LittleEndian.PutUint16(b[off:], v) }
func putU32(b []byte, off int, v uint32) { binary.LittleEndian.PutUint32(b[off:], v) }
func putU64(b []byte, off int, v uint64) { binary.LittleEndian.PutUint64(b[off:], v) }

// Every attribute's total TLV length (4-byte header + payload) must itself be a
// multiple of 8, since the next attribute's offset is derived by simple addition and
// findAttribute rejects any misaligned offset. align8 below rounds the *whole record*.

func filenameAttr(name string) []byte {
	size := align8(4 + 4 + len(name)) // TLV header + {length,pad} + name bytes
	out := make([]byte, size)
	putU16(out, 0, attrTypeFilename)
	putU16(out, 2, uint16(size))
	putU16(out, 4, uint16(len(name)))
	copy(out[8:8+len(name)], name)
	return out
}

func directAttr(data []byte) []byte {
	const dataOffset = 28
	size := align8(4 + dataOffset + len(data))
	out := make([]byte, size)
	putU16(out, 0, attrTypeData)
	putU16(out, 2, uint16(size))
	out[4] = indirectionDirect
	out[5] = dataOffset
	putU16(out, 6, uint16(len(data)))
	copy(out[4+dataOffset:4+dataOffset+len(data)], data)
	return out
}

func l1Attr(deltaBlocks int64, countBlocks uint64) []byte {
	const dataOffset = 28
	const streamLen = 17
	size := align8(4 + dataOffset + streamLen)
	out := make([]byte, size)
	putU16(out, 0, attrTypeData)
	putU16(out, 2, uint16(size))
	out[4] = indirectionL1
	out[5] = dataOffset
	putU16(out, 6, 1)
	pos := 4 + dataOffset
	out[pos] = 0x3F
	binary.BigEndian.PutUint64(out[pos+1:pos+9], uint64(deltaBlocks))
	binary.BigEndian.PutUint64(out[pos+9:pos+17], countBlocks)
	return out
}

func buildDirEntry(isDir bool, fileSize uint64, attrs ...[]byte) []byte {
	b := make([]byte, dirEntrySize)
	copy(b[0:8], "DirEntry")
	putU16(b, 28, 96)
	if isDir {
		b[30] = nodeTypeDirectory
	} else {
		b[30] = nodeTypeFile
	}
	putU64(b, 56, fileSize)
	off := 96
	for _, a := range attrs {
		copy(b[off:off+len(a)], a)
		off += len(a)
	}
	return b
}

// buildImage lays out a root directory (block 17) spanning two child blocks (18, 19),
// each holding one file entry with the given name and content.
func buildImage(files map[string][]byte) []byte {
	names := []string{"a.txt", "b.txt"}
	firstBlock := int64(18)
	total := (int(firstBlock) + len(names)) * blockSize
	img := make([]byte, total)

	sb := make([]byte, sbSize)
	copy(sb[0:16], "!EssenceFS2-----")
	putU64(sb, 64, blockSize)
	putU64(sb, 72, uint64(total/blockSize))
	putU64(sb, 224, rootBlock)
	putU32(sb, 232, 0)
	copy(img[sbOffset:sbOffset+sbSize], sb)

	for i, name := range names {
		entry := buildDirEntry(false, uint64(len(files[name])), filenameAttr(name), directAttr(files[name]))
		block := firstBlock + int64(i)
		copy(img[block*blockSize:], entry)
	}

	// the extent cursor starts at block 0, so the first delta is the absolute block.
	rootEntry := buildDirEntry(true, dirEntrySize*uint64(len(names)), l1Attr(firstBlock, uint64(len(names))))
	copy(img[rootBlock*blockSize:], rootEntry)

	return img
}

func mustMount(t *testing.T, files map[string][]byte) *esfs.Volume {
	t.Helper()
	vol, err := esfs.Mount(testhelper.FromBytes(buildImage(files)))
	if err != nil {
		t.Fatalf("mount: %s", err)
	}
	return vol
}

func TestExtract(t *testing.T) {
	files := map[string][]byte{
		"a.txt": []byte("alpha\n"),
		"b.txt": []byte("beta\n"),
	}
	vol := mustMount(t, files)
	dest := t.TempDir()

	if err := Extract(vol, "/", dest); err != nil {
		t.Fatalf("Extract: %s", err)
	}

	for name, want := range files {
		got, err := os.ReadFile(filepath.Join(dest, name))
		if err != nil {
			t.Fatalf("read extracted %s: %s", name, err)
		}
		if !bytes.Equal(got, want) {
			t.Fatalf("%s content mismatch: got %q, want %q", name, got, want)
		}
	}
}

func TestCompareTreeAfterExtract(t *testing.T) {
	files := map[string][]byte{
		"a.txt": []byte("alpha\n"),
		"b.txt": []byte("beta\n"),
	}
	vol := mustMount(t, files)
	dest := t.TempDir()

	if err := Extract(vol, "/", dest); err != nil {
		t.Fatalf("Extract: %s", err)
	}
	if err := CompareTree(vol, "/", os.DirFS(dest)); err != nil {
		t.Fatalf("CompareTree: %s", err)
	}
}

func TestCompareTreeDetectsContentMismatch(t *testing.T) {
	files := map[string][]byte{
		"a.txt": []byte("alpha\n"),
		"b.txt": []byte("beta\n"),
	}
	vol := mustMount(t, files)
	dest := t.TempDir()

	if err := Extract(vol, "/", dest); err != nil {
		t.Fatalf("Extract: %s", err)
	}
	if err := os.WriteFile(filepath.Join(dest, "a.txt"), []byte("tampered"), 0o644); err != nil {
		t.Fatalf("tamper: %s", err)
	}
	if err := CompareTree(vol, "/", os.DirFS(dest)); err == nil {
		t.Fatal("expected CompareTree to detect the tampered file")
	}
}

func TestCompareTreeDetectsExtraHostFile(t *testing.T) {
	vol := mustMount(t, map[string][]byte{
		"a.txt": []byte("alpha\n"),
		"b.txt": []byte("beta\n"),
	})
	dest := t.TempDir()
	if err := Extract(vol, "/", dest); err != nil {
		t.Fatalf("Extract: %s", err)
	}
	if err := os.WriteFile(filepath.Join(dest, "extra.txt"), []byte("surprise"), 0o644); err != nil {
		t.Fatalf("write extra: %s", err)
	}
	if err := CompareTree(vol, "/", os.DirFS(dest)); err == nil {
		t.Fatal("expected CompareTree to detect the extra host file")
	}
}

func TestArchiveLZ4(t *testing.T) {
	files := map[string][]byte{
		"a.txt": []byte("alpha\n"),
		"b.txt": []byte("beta\n"),
	}
	vol := mustMount(t, files)

	var buf bytes.Buffer
	if err := Archive(&buf, vol, "/", CodecLZ4); err != nil {
		t.Fatalf("Archive: %s", err)
	}

	tr := tar.NewReader(lz4.NewReader(&buf))
	got := make(map[string][]byte)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("tar read: %s", err)
		}
		data, err := io.ReadAll(tr)
		if err != nil {
			t.Fatalf("tar body read: %s", err)
		}
		got[hdr.Name] = data
	}

	for name, want := range files {
		data, ok := got[name]
		if !ok {
			t.Fatalf("archive missing entry %q", name)
		}
		if !bytes.Equal(data, want) {
			t.Fatalf("%s content mismatch: got %q, want %q", name, data, want)
		}
	}
}
