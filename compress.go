package secredit

import (
	"bytes"
	"errors"
	"io"

	"github.com/klauspost/compress/gzip"
)

const (
	// MaxDecompressedSize is the default ceiling for inflated payloads (10 MiB).
	// A crafted link can hold a tiny gzip stream that expands without bound; reads
	// stop as soon as the ceiling would be passed.
	MaxDecompressedSize = 10 * 1024 * 1024

	decompressChunkSize = 32 * 1024
)

// Compress gzips data. The output is a standard gzip member, readable by any
// browser DecompressionStream("gzip").
func Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decompress inflates a gzip stream, refusing to hold more than limit bytes.
// A limit <= 0 selects MaxDecompressedSize.
//
// Returns ErrDecompressionLimit when the stream is larger than limit and ErrDecode
// when it is not valid gzip.
func Decompress(data []byte, limit int) ([]byte, error) {
	if limit <= 0 {
		limit = MaxDecompressedSize
	}

	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, ErrDecode
	}
	defer zr.Close()

	out := make([]byte, 0, min(len(data)*4, limit))
	chunk := make([]byte, decompressChunkSize)
	for {
		n, err := zr.Read(chunk)
		if n > 0 {
			if len(out)+n > limit {
				return nil, ErrDecompressionLimit
			}
			out = growCapped(out, n, limit)
			out = append(out, chunk[:n]...)
		}
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, ErrDecode
		}
	}
}

// growCapped makes room for n more bytes without letting capacity pass limit.
func growCapped(buf []byte, n, limit int) []byte {
	need := len(buf) + n
	if need <= cap(buf) {
		return buf
	}
	newCap := min(max(2*cap(buf), need), limit)
	grown := make([]byte, len(buf), newCap)
	copy(grown, buf)
	return grown
}
