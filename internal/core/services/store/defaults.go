package store

import (
	"strings"

	"github.com/iamNilotpal/dataqueue/internal/adapters/charset"
	"github.com/iamNilotpal/dataqueue/internal/adapters/compression"
	"github.com/iamNilotpal/dataqueue/internal/core/domain"
)

const (
	DefaultBufferSize = 64 * 1024 // 64KB

	MinBufferSize = 4096     // 4KB
	MaxBufferSize = 16777216 // 16MB
)

// DefaultOptions returns StoreOptions for path with recommended defaults.
func DefaultOptions(path string) *domain.StoreOptions {
	return &domain.StoreOptions{
		Path:       path,
		Encoding:   charset.DefaultEncoding,
		BufferSize: DefaultBufferSize,
	}
}

func prepareDefaults(opts *domain.StoreOptions) *domain.StoreOptions {
	if strings.TrimSpace(opts.Encoding) == "" {
		opts.Encoding = charset.DefaultEncoding
	}

	if opts.BufferSize == 0 {
		opts.BufferSize = DefaultBufferSize
	}

	if opts.CompressionOptions == nil {
		opts.CompressionOptions = compression.DefaultOptions()
	} else if opts.CompressionOptions.Level == 0 {
		opts.CompressionOptions.Level = compression.DefaultLevel
	}

	return opts
}
