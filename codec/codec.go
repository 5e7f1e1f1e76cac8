// Package codec provides the compression primitive shared by the
// archiver and the snapshotter. Payloads must round-trip exactly
// through Compress then Decompress.
package codec

import (
	"bytes"
	"compress/gzip"
	"io"

	"github.com/cairnstack/cairn/errors"
)

// ErrDecompression indicates a stored payload could not be read back.
// Callers treat this as a per-record failure, not a fatal one.
var ErrDecompression = errors.New("decompression failed")

// Codec compresses and decompresses byte payloads with gzip.
type Codec struct {
	level int
}

// New creates a codec at the given gzip level. Levels outside the
// valid range fall back to gzip.BestCompression.
func New(level int) *Codec {
	if level < gzip.HuffmanOnly || level > gzip.BestCompression {
		level = gzip.BestCompression
	}
	return &Codec{level: level}
}

// Default returns a codec at best compression, the right tradeoff for
// write-once archive and snapshot payloads.
func Default() *Codec {
	return New(gzip.BestCompression)
}

// Compress gzips data. Empty input compresses to a valid empty stream.
func (c *Codec) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, c.level)
	if err != nil {
		return nil, errors.Wrap(err, "create gzip writer")
	}
	if _, err := w.Write(data); err != nil {
		return nil, errors.Wrap(err, "compress payload")
	}
	if err := w.Close(); err != nil {
		return nil, errors.Wrap(err, "finish gzip stream")
	}
	return buf.Bytes(), nil
}

// Decompress reverses Compress. Corrupt input returns an error
// wrapping ErrDecompression.
func (c *Codec) Decompress(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrapf(ErrDecompression, "open gzip stream: %v", err)
	}
	defer r.Close()

	out, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrapf(ErrDecompression, "read gzip stream: %v", err)
	}
	return out, nil
}

// Ratio returns compressedSize / originalSize. An empty original
// reports 1.0 so callers never divide by zero.
func Ratio(compressedSize, originalSize int) float64 {
	if originalSize <= 0 {
		return 1.0
	}
	return float64(compressedSize) / float64(originalSize)
}
