package ports

import "io"

// Defines the interface for compressing consumed segments into archives.
// This allows us to swap compression algorithms without changing core logic.
type CompressionPort interface {
	// Compress copies src into dst in compressed form.
	// Returns the number of uncompressed bytes read from src.
	Compress(dst io.Writer, src io.Reader) (int64, error)

	// NewReader wraps r so that reads yield the decompressed stream.
	// The returned reader must be closed by the caller.
	NewReader(r io.Reader) (io.ReadCloser, error)

	// Extension returns the file suffix used for archives, including the dot.
	Extension() string

	// Close cleans up compression resources.
	Close() error

	// Level returns current compression level.
	Level() uint8
}
