package compression

import (
	"fmt"
	"math"
	"runtime"

	"github.com/iamNilotpal/dataqueue/internal/core/domain"
)

// Returns CompressionOptions struct initialized with
// recommended default values that provide a good balance between compression ratio
// and performance for archived segments.
func DefaultOptions() *domain.CompressionOptions {
	return &domain.CompressionOptions{
		Level:              DefaultLevel,
		EncoderConcurrency: defaultConcurrency(),
	}
}

// NumCPU capped to what EncoderConcurrency can hold.
func defaultConcurrency() uint8 {
	return uint8(min(runtime.NumCPU(), math.MaxUint8))
}

// Checks if the compression options are valid and returns an error if any option
// is outside acceptable bounds.
func Validate(input *domain.CompressionOptions) error {
	if input.Level < FastestLevel || input.Level > BestLevel {
		return fmt.Errorf("compression level must be between %d and %d, got %d", FastestLevel, BestLevel, input.Level)
	}

	if limit := defaultConcurrency(); input.EncoderConcurrency > limit {
		return fmt.Errorf("encoder concurrency must be between 0 and %d, got %d", limit, input.EncoderConcurrency)
	}

	return nil
}
