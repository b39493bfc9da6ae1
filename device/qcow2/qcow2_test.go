package qcow2

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/essencefs/go-esfs/testhelper"
)

// buildV2Header lays out a 72-byte qcow2 version-2 header with the given fields; bytes
// the driver never reads (refcount table, snapshot table) are left zero.
func buildV2Header(clusterBits uint32, fileSize uint64, l1Size uint32, l1Offset uint64) []byte {
	b := make([]byte, header2Size)
	binary.BigEndian.PutUint32(b[0:4], headerMagic)
	binary.BigEndian.PutUint32(b[4:8], 2)
	binary.BigEndian.PutUint32(b[20:24], clusterBits)
	binary.BigEndian.PutUint64(b[24:32], fileSize)
	binary.BigEndian.PutUint32(b[36:40], l1Size)
	binary.BigEndian.PutUint64(b[40:48], l1Offset)
	return b
}

func TestParseHeaderValid(t *testing.T) {
	b := buildV2Header(9, 1024, 1, 512)
	h, err := parseHeader(b)
	if err != nil {
		t.Fatalf("parseHeader: %s", err)
	}
	if h.clusterSize != 512 {
		t.Fatalf("clusterSize: got %d, want 512", h.clusterSize)
	}
	if h.fileSize != 1024 {
		t.Fatalf("fileSize: got %d, want 1024", h.fileSize)
	}
	if h.l1Offset != 512 {
		t.Fatalf("l1Offset: got %d, want 512", h.l1Offset)
	}
}

func TestParseHeaderRejectsBadMagic(t *testing.T) {
	b := buildV2Header(9, 1024, 1, 512)
	b[0] = 0
	if _, err := parseHeader(b); err == nil {
		t.Fatal("expected error for bad magic, got nil")
	}
}

func TestParseHeaderRejectsEncrypted(t *testing.T) {
	b := buildV2Header(9, 1024, 1, 512)
	binary.BigEndian.PutUint32(b[32:36], uint32(encryptAES))
	if _, err := parseHeader(b); err == nil {
		t.Fatal("expected error for encrypted image, got nil")
	}
}

func TestParseHeaderRejectsBackingFile(t *testing.T) {
	b := buildV2Header(9, 1024, 1, 512)
	binary.BigEndian.PutUint32(b[16:20], 10) // backingFileLen
	if _, err := parseHeader(b); err == nil {
		t.Fatal("expected error for backing file, got nil")
	}
}

func TestParseHeaderRejectsExtendedL2(t *testing.T) {
	b := make([]byte, header3MinSize)
	copy(b, buildV2Header(9, 1024, 1, 512))
	binary.BigEndian.PutUint32(b[4:8], 3)
	binary.BigEndian.PutUint32(b[100:104], header3MinSize)
	binary.BigEndian.PutUint64(b[72:80], 0x8000000) // extendedL2Bit
	if _, err := parseHeader(b); err == nil {
		t.Fatal("expected error for extended L2, got nil")
	}
}

func TestParseHeaderRejectsCorrupt(t *testing.T) {
	b := make([]byte, header3MinSize)
	copy(b, buildV2Header(9, 1024, 1, 512))
	binary.BigEndian.PutUint32(b[4:8], 3)
	binary.BigEndian.PutUint32(b[100:104], header3MinSize)
	binary.BigEndian.PutUint64(b[72:80], 0x40000000) // corruptBit
	if _, err := parseHeader(b); err == nil {
		t.Fatal("expected error for corrupt image, got nil")
	}
}

func TestParseL1TableEntryMasksOffset(t *testing.T) {
	b := make([]byte, 8)
	// set the refcount flag (bit 63) alongside a 1024 offset, to confirm only bits
	// 9-55 survive.
	raw := uint64(1)<<63 | uint64(1024)
	binary.BigEndian.PutUint64(b, raw)
	entry, err := parseL1TableEntry(b)
	if err != nil {
		t.Fatalf("parseL1TableEntry: %s", err)
	}
	if entry.offset != 1024 {
		t.Fatalf("offset: got %d, want 1024", entry.offset)
	}
	if !entry.allocated {
		t.Fatal("expected allocated entry")
	}
}

func TestParseL1TableEntryUnallocated(t *testing.T) {
	b := make([]byte, 8)
	entry, err := parseL1TableEntry(b)
	if err != nil {
		t.Fatalf("parseL1TableEntry: %s", err)
	}
	if entry.allocated {
		t.Fatal("expected an all-zero entry to be unallocated")
	}
}

func TestParseL2TableEntryStandard(t *testing.T) {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, 1536)
	entry, err := parseL2TableEntry(b, 9)
	if err != nil {
		t.Fatalf("parseL2TableEntry: %s", err)
	}
	if entry.compressed {
		t.Fatal("did not expect a compressed entry")
	}
	if entry.offset != 1536 {
		t.Fatalf("offset: got %d, want 1536", entry.offset)
	}
	if !entry.allocated {
		t.Fatal("expected allocated entry")
	}
}

func TestParseL2TableEntryCompressed(t *testing.T) {
	// at clusterBits 16 the sector count field is bits 54-61, wide enough for 3.
	const clusterBits = 16
	x := 62 - (clusterBits - 8)
	wantOffset := uint64(1 << 20)
	wantSectors := uint64(3)
	descriptor := wantOffset | (wantSectors << x)
	raw := uint64(1)<<62 | descriptor
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, raw)

	entry, err := parseL2TableEntry(b, clusterBits)
	if err != nil {
		t.Fatalf("parseL2TableEntry: %s", err)
	}
	if !entry.compressed {
		t.Fatal("expected a compressed entry")
	}
	if entry.compressedOffset != wantOffset {
		t.Fatalf("compressedOffset: got %d, want %d", entry.compressedOffset, wantOffset)
	}
	if entry.compressedSectors != wantSectors {
		t.Fatalf("compressedSectors: got %d, want %d", entry.compressedSectors, wantSectors)
	}
}

// buildImage lays out a minimal qcow2 file by hand: header cluster, L1 table cluster,
// L2 table cluster, and one data cluster, all clusterSize=512 bytes. Guest cluster 0
// maps to the data cluster; guest cluster 1 is left unallocated (reads as zero).
func buildImage(data [512]byte) []byte {
	const clusterSize = 512
	const headerCluster = 0
	const l1Cluster = 1
	const l2Cluster = 2
	const dataCluster = 3

	img := make([]byte, clusterSize*4)

	h := buildV2Header(9, clusterSize*2, 1, l1Cluster*clusterSize)
	copy(img[headerCluster*clusterSize:], h)

	l1 := make([]byte, 8)
	binary.BigEndian.PutUint64(l1, uint64(l2Cluster*clusterSize))
	copy(img[l1Cluster*clusterSize:], l1)

	l2 := make([]byte, clusterSize)
	binary.BigEndian.PutUint64(l2[0:8], uint64(dataCluster*clusterSize))
	copy(img[l2Cluster*clusterSize:], l2)

	copy(img[dataCluster*clusterSize:], data[:])

	return img
}

func TestImageReadAt(t *testing.T) {
	var data [512]byte
	for i := range data {
		data[i] = byte(i)
	}
	raw := buildImage(data)

	img, err := Open(testhelper.FromBytes(raw))
	if err != nil {
		t.Fatalf("Open: %s", err)
	}
	if img.Size() != 1024 {
		t.Fatalf("Size: got %d, want 1024", img.Size())
	}

	buf := make([]byte, 612)
	n, err := img.ReadAt(buf, 0)
	if err != nil {
		t.Fatalf("ReadAt: %s", err)
	}
	if n != 612 {
		t.Fatalf("ReadAt returned %d bytes, want 612", n)
	}
	if !bytes.Equal(buf[:512], data[:]) {
		t.Fatal("first cluster content mismatch")
	}
	zero := make([]byte, 100)
	if !bytes.Equal(buf[512:], zero) {
		t.Fatal("unallocated cluster should read as zero")
	}
}

func TestImageReadAtPastEnd(t *testing.T) {
	var data [512]byte
	raw := buildImage(data)
	img, err := Open(testhelper.FromBytes(raw))
	if err != nil {
		t.Fatalf("Open: %s", err)
	}
	buf := make([]byte, 10)
	if _, err := img.ReadAt(buf, img.Size()); err == nil {
		t.Fatal("expected an error reading past the guest size")
	}
}

func TestImageSeek(t *testing.T) {
	var data [512]byte
	for i := range data {
		data[i] = byte(i)
	}
	raw := buildImage(data)
	img, err := Open(testhelper.FromBytes(raw))
	if err != nil {
		t.Fatalf("Open: %s", err)
	}
	pos, err := img.Seek(100, 0)
	if err != nil {
		t.Fatalf("Seek: %s", err)
	}
	if pos != 100 {
		t.Fatalf("Seek returned %d, want 100", pos)
	}
	buf := make([]byte, 4)
	if _, err := img.Read(buf); err != nil {
		t.Fatalf("Read: %s", err)
	}
	if !bytes.Equal(buf, []byte{100, 101, 102, 103}) {
		t.Fatalf("Read after Seek mismatch: got %v", buf)
	}
}
