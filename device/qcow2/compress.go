package qcow2

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"io"
)

// decompressZlib inflates a compressed cluster run. qcow2's default (and, absent the
// "incompatible feature" non-standard-compression bit, only) codec is zlib/deflate;
// go-esfs reads with compress/zlib exactly as the teacher's CompressorZlib does,
// since nothing here needs to write clusters back out.
func decompressZlib(in []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(in))
	if err != nil {
		return nil, fmt.Errorf("qcow2: open zlib stream: %w", err)
	}
	defer func() { _ = zr.Close() }()
	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("qcow2: inflate cluster: %w", err)
	}
	return out, nil
}
