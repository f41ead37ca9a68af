// Package domain defines the core types and configurations for the queue.
package domain

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// QueueOptions configures a queue: its on-disk store, its worker and the
// ambient logger and metrics registry.
type QueueOptions struct {
	// Format selects the record codec: "json" or "protojson".
	// Ignored when a codec is passed explicitly.
	//
	// Default: "json"
	Format string

	// Store configures the on-disk segments and marker.
	Store *StoreOptions

	// Scheduler configures the background worker.
	Scheduler *SchedulerOptions

	// Logger receives all operational logs. Defaults to a production
	// JSON logger named "dataqueue".
	Logger *zap.SugaredLogger

	// Registerer receives the queue metrics. Defaults to a private registry
	// so several queues can live in one process.
	Registerer prometheus.Registerer
}

// StoreOptions defines the on-disk layout and durability of a queue store.
type StoreOptions struct {
	// Path names the queue. Segments are written next to it as
	// "<base>-<offset>.log" and the marker as "<base>.marker".
	Path string

	// Encoding is the text encoding of the log lines, by WHATWG/IANA name
	// ("utf-8", "gbk", "iso-8859-1", ...). Only ASCII-compatible encodings
	// are accepted since lines are newline-delimited.
	//
	// Default: "utf-8"
	Encoding string

	// MaxSegmentSize is the rotation threshold in bytes. Zero keeps a
	// single unbounded segment.
	MaxSegmentSize int64

	// DeleteConsumedSegments removes sealed segments once every record
	// they hold is below the marker.
	DeleteConsumedSegments bool

	// ArchiveConsumedSegments compresses fully consumed sealed segments
	// instead of keeping them as plain text. Ignored when
	// DeleteConsumedSegments is set.
	ArchiveConsumedSegments bool

	// DisableFsync skips the fsync after every append. Appends are still
	// flushed to the operating system before returning.
	//
	// Default: false (fsync on every append)
	DisableFsync bool

	// BufferSize is the size of the segment write buffer.
	//
	// Default: 64KB
	BufferSize int

	// CompressionOptions configures archive compression.
	CompressionOptions *CompressionOptions
}

// SchedulerOptions controls the worker that drains the store.
type SchedulerOptions struct {
	// MaxCount caps the number of records handed to the listener at once.
	// Must be greater than zero.
	MaxCount int

	// IdleTimeout is how long the worker keeps polling an empty queue
	// before it stops itself.
	//
	// Default: 5s
	IdleTimeout time.Duration

	// PollInterval is the sleep between polls of an empty queue and after
	// a failed read.
	//
	// Default: 1s
	PollInterval time.Duration

	// AdvancePolicy decides whether a failed delivery still moves the marker.
	//
	// Default: AdvanceAlways
	AdvancePolicy AdvancePolicy
}

// CompressionOptions configures zstd compression of archived segments.
type CompressionOptions struct {
	// Level defines the zstd encoder level, 1 (fastest) to 4 (best).
	//
	// Default: 3
	Level uint8

	// EncoderConcurrency specifies the number of concurrent compression operations.
	// Default is number of CPU cores if set to 0.
	EncoderConcurrency uint8
}
