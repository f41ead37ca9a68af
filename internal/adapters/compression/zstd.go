// Package compression provides data compression functionality using the zstd algorithm.
// It is used to archive consumed segments and to stream them back when the
// marker is rewound into an archive.
package compression

import (
	"fmt"
	"io"
	"sync"

	"github.com/iamNilotpal/dataqueue/internal/core/domain"
	"github.com/klauspost/compress/zstd"
)

// Compression level constants define the trade-off between compression ratio and speed.
// Higher levels provide better compression at the cost of increased CPU usage and time.
const (
	FastestLevel uint8 = 1 // Optimized for speed with minimal compression
	DefaultLevel uint8 = 3 // Balanced between speed and compression ratio
	BestLevel    uint8 = 4 // Maximum compression ratio, higher CPU usage
)

// ArchiveExtension is appended to a segment's file name once archived.
const ArchiveExtension = ".zst"

// ZstdCompression implements CompressionPort using the zstd compression algorithm.
// A single encoder is reused across archives; archiving is serialized by mu.
type ZstdCompression struct {
	level   uint8         // Current compression level (1-4)
	mu      sync.Mutex    // Serializes use of the shared encoder
	encoder *zstd.Encoder // Encoder reset onto each archive's destination
}

// NewZstdCompression creates a new zstd compression instance with the specified options.
//
// Returns an error if:
// - The compression level is invalid
// - The encoder initialization fails
func NewZstdCompression(opts *domain.CompressionOptions) (*ZstdCompression, error) {
	if err := Validate(opts); err != nil {
		return nil, err
	}

	encOpts := []zstd.EOption{zstd.WithEncoderLevel(zstd.EncoderLevel(opts.Level))}
	if opts.EncoderConcurrency > 0 {
		encOpts = append(encOpts, zstd.WithEncoderConcurrency(int(opts.EncoderConcurrency)))
	}

	encoder, err := zstd.NewWriter(nil, encOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create encoder: %w", err)
	}

	return &ZstdCompression{encoder: encoder, level: opts.Level}, nil
}

// Compress streams src into dst as a single zstd frame.
func (z *ZstdCompression) Compress(dst io.Writer, src io.Reader) (int64, error) {
	z.mu.Lock()
	defer z.mu.Unlock()

	z.encoder.Reset(dst)

	n, err := io.Copy(z.encoder, src)
	if err != nil {
		// Leave the encoder in a clean state for the next archive.
		z.encoder.Reset(io.Discard)
		return n, fmt.Errorf("compression failed: %w", err)
	}

	if err := z.encoder.Close(); err != nil {
		return n, fmt.Errorf("error finishing zstd frame : %w", err)
	}

	return n, nil
}

// NewReader returns a reader over the decompressed contents of r.
// Each reader owns its decoder so concurrent reads do not contend.
func (z *ZstdCompression) NewReader(r io.Reader) (io.ReadCloser, error) {
	decoder, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}
	return decoder.IOReadCloser(), nil
}

// Extension returns the archive file suffix.
func (z *ZstdCompression) Extension() string {
	return ArchiveExtension
}

// Level returns the current compression level.
func (z *ZstdCompression) Level() uint8 {
	return z.level
}

// Close releases the encoder. The instance must not be used afterwards.
func (z *ZstdCompression) Close() error {
	z.mu.Lock()
	defer z.mu.Unlock()

	z.encoder.Reset(io.Discard)
	if err := z.encoder.Close(); err != nil {
		return fmt.Errorf("error closing encoder : %w", err)
	}
	return nil
}
