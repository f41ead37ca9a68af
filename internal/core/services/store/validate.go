package store

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/iamNilotpal/dataqueue/internal/adapters/compression"
	"github.com/iamNilotpal/dataqueue/internal/core/domain"
	"github.com/iamNilotpal/dataqueue/pkg/errors"
)

// Validate checks StoreOptions after defaults have been applied.
func Validate(opts *domain.StoreOptions) error {
	if strings.TrimSpace(opts.Path) == "" {
		return errors.NewValidationError("path", opts.Path, fmt.Errorf("path is required"))
	}

	if base := filepath.Base(opts.Path); base == "." || base == string(filepath.Separator) {
		return errors.NewValidationError("path", opts.Path, fmt.Errorf("path must name a queue, got directory %q", base))
	}

	if opts.MaxSegmentSize < 0 {
		return errors.NewValidationError(
			"maxSegmentSize", opts.MaxSegmentSize, fmt.Errorf("max segment size must not be negative"),
		)
	}

	if opts.BufferSize < MinBufferSize || opts.BufferSize > MaxBufferSize {
		return errors.NewValidationError(
			"bufferSize", opts.BufferSize,
			fmt.Errorf("buffer size must be between %d and %d bytes, got %d", MinBufferSize, MaxBufferSize, opts.BufferSize),
		)
	}

	if opts.ArchiveConsumedSegments && !opts.DeleteConsumedSegments {
		if err := compression.Validate(opts.CompressionOptions); err != nil {
			return errors.NewValidationError("compressionOptions", opts.CompressionOptions, err)
		}
	}

	return nil
}
