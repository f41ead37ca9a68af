// Package config loads the YAML configuration of the dataqueue command.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/iamNilotpal/dataqueue/internal/adapters/codec"
	"github.com/iamNilotpal/dataqueue/internal/core/domain"
	"github.com/iamNilotpal/dataqueue/pkg/logger"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Queue       QueueConfig `yaml:"queue"`
	MetricsAddr string      `yaml:"metrics_addr"` // Address of the /metrics endpoint, empty disables it
	LogLevel    string      `yaml:"log_level"`    // debug, info, warn or error
}

// Holds queue-specific configuration
type QueueConfig struct {
	Path                    string        `yaml:"path"`                      // Queue name, segments live next to it
	Encoding                string        `yaml:"encoding"`                  // Text encoding of the log lines
	Format                  string        `yaml:"format"`                    // Record codec, json or protojson
	MaxCount                int           `yaml:"max_count"`                 // Maximum batch size
	MaxSegmentSize          int64         `yaml:"max_segment_size"`          // Rotation threshold in bytes
	DeleteConsumedSegments  bool          `yaml:"delete_consumed_segments"`  // Remove fully consumed segments
	ArchiveConsumedSegments bool          `yaml:"archive_consumed_segments"` // Compress fully consumed segments
	DisableFsync            bool          `yaml:"disable_fsync"`             // Skip fsync after each append
	BufferSize              int           `yaml:"buffer_size"`               // Size of write buffers
	IdleTimeout             time.Duration `yaml:"idle_timeout"`              // Idle time before the worker stops
	PollInterval            time.Duration `yaml:"poll_interval"`             // Sleep between polls of an empty queue
	AdvancePolicy           string        `yaml:"advance_policy"`            // always or on-success
	CompressionLevel        uint8         `yaml:"compression_level"`         // Archive compression level (1-4)
}

// Returns a Config struct with reasonable default values.
func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		Queue: QueueConfig{
			Path:             "./data/queue",
			Encoding:         "utf-8",
			Format:           codec.FormatJSON,
			MaxCount:         100,
			MaxSegmentSize:   1024 * 1024 * 64, // 64MB
			BufferSize:       64 * 1024,        // 64KB
			IdleTimeout:      5 * time.Second,
			PollInterval:     time.Second,
			AdvancePolicy:    domain.AdvanceAlways.String(),
			CompressionLevel: 3,
		},
	}
}

// Loads configuration from a YAML file. Keys missing from the file keep
// their default values.
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// QueueOptions converts the file configuration into queue options. Logger
// and Registerer are left for the caller.
func (c *Config) QueueOptions() (*domain.QueueOptions, error) {
	if err := validateConfig(c); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	policy, _ := domain.ParseAdvancePolicy(c.Queue.AdvancePolicy)
	return &domain.QueueOptions{
		Format: c.Queue.Format,
		Store: &domain.StoreOptions{
			Path:                    c.Queue.Path,
			Encoding:                c.Queue.Encoding,
			MaxSegmentSize:          c.Queue.MaxSegmentSize,
			DeleteConsumedSegments:  c.Queue.DeleteConsumedSegments,
			ArchiveConsumedSegments: c.Queue.ArchiveConsumedSegments,
			DisableFsync:            c.Queue.DisableFsync,
			BufferSize:              c.Queue.BufferSize,
			CompressionOptions:      &domain.CompressionOptions{Level: c.Queue.CompressionLevel},
		},
		Scheduler: &domain.SchedulerOptions{
			MaxCount:      c.Queue.MaxCount,
			IdleTimeout:   c.Queue.IdleTimeout,
			PollInterval:  c.Queue.PollInterval,
			AdvancePolicy: policy,
		},
	}, nil
}

func validateConfig(config *Config) error {
	if _, err := logger.ParseLevel(config.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}

	if err := validateQueueConfig(&config.Queue); err != nil {
		return fmt.Errorf("invalid queue configuration: %w", err)
	}

	return nil
}

func validateQueueConfig(config *QueueConfig) error {
	if strings.TrimSpace(config.Path) == "" {
		return fmt.Errorf("path is required")
	}

	switch config.Format {
	case "", codec.FormatJSON:
	case codec.FormatProtoJSON:
		return fmt.Errorf("format %q needs a compiled message type and cannot be used from configuration", config.Format)
	default:
		return fmt.Errorf("unsupported format %q", config.Format)
	}

	if config.MaxCount <= 0 {
		return fmt.Errorf("max_count must be greater than 0")
	}

	if config.MaxSegmentSize < 0 {
		return fmt.Errorf("max_segment_size must not be negative")
	}

	if config.BufferSize < 0 {
		return fmt.Errorf("buffer_size must not be negative")
	}

	if config.IdleTimeout <= 0 {
		return fmt.Errorf("idle_timeout must be greater than 0")
	}

	if config.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be greater than 0")
	}

	if _, ok := domain.ParseAdvancePolicy(config.AdvancePolicy); !ok {
		return fmt.Errorf("advance_policy must be always or on-success, got %q", config.AdvancePolicy)
	}

	if config.ArchiveConsumedSegments && (config.CompressionLevel < 1 || config.CompressionLevel > 4) {
		return fmt.Errorf("compression_level must be between 1 and 4")
	}

	return nil
}
