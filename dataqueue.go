// Package dataqueue is a local, disk-backed, single-consumer queue.
//
// Producers call Offer, which appends the record to an on-disk log before
// returning. A background worker drains unread records in batches of at
// most MaxCount and hands them to a Listener, then persists a marker that
// counts the records consumed so far. After a restart delivery resumes at
// the marker.
//
// The worker is started lazily and stops itself after IdleTimeout without
// unread records; the next Offer starts it again. There is never more than
// one worker per queue and the listener is never called concurrently.
//
// With the default AdvanceAlways policy a batch the listener fails on is
// still marked consumed and will not be delivered again. AdvanceOnSuccess
// retries such a batch after PollInterval instead.
package dataqueue

import (
	"github.com/iamNilotpal/dataqueue/internal/adapters/codec"
	"github.com/iamNilotpal/dataqueue/internal/core/domain"
	"github.com/iamNilotpal/dataqueue/internal/core/ports"
	"github.com/iamNilotpal/dataqueue/internal/core/services/queue"
	"github.com/iamNilotpal/dataqueue/internal/core/services/scheduler"
	"github.com/iamNilotpal/dataqueue/internal/core/services/store"
)

type (
	Options            = domain.QueueOptions
	StoreOptions       = domain.StoreOptions
	SchedulerOptions   = domain.SchedulerOptions
	CompressionOptions = domain.CompressionOptions
	SegmentInfo        = domain.SegmentInfo
	WorkerState        = domain.WorkerState
	AdvancePolicy      = domain.AdvancePolicy
)

const (
	StateStopped = domain.StateStopped
	StateRunning = domain.StateRunning
	StateClosed  = domain.StateClosed

	AdvanceAlways    = domain.AdvanceAlways
	AdvanceOnSuccess = domain.AdvanceOnSuccess

	FormatJSON      = codec.FormatJSON
	FormatProtoJSON = codec.FormatProtoJSON

	DefaultIdleTimeout  = scheduler.DefaultIdleTimeout
	DefaultPollInterval = scheduler.DefaultPollInterval
)

// Listener receives drained batches. It is called from the worker goroutine
// only. A returned error is logged and counted; see AdvancePolicy for what
// happens to the batch.
type Listener[T any] interface {
	Deliver(batch []T) error
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc[T any] func(batch []T) error

func (f ListenerFunc[T]) Deliver(batch []T) error {
	return f(batch)
}

// Codec converts records to single lines of text and back. Encode must not
// produce newline bytes.
type Codec[T any] interface {
	Encode(record T) ([]byte, error)
	Decode(line []byte) (T, error)
	Name() string
}

// Queue is a disk-backed queue of T.
type Queue[T any] struct {
	*queue.Queue[T]
}

// New opens or creates the queue at opts.Store.Path and starts its worker.
// Records are encoded with the codec named by opts.Format.
func New[T any](listener Listener[T], opts *Options) (*Queue[T], error) {
	q, err := queue.New[T](listener, opts)
	if err != nil {
		return nil, err
	}
	return &Queue[T]{Queue: q}, nil
}

// NewWithCodec is New with a caller supplied codec.
func NewWithCodec[T any](listener Listener[T], c Codec[T], opts *Options) (*Queue[T], error) {
	q, err := queue.NewWithCodec[T](listener, ports.Codec[T](c), opts)
	if err != nil {
		return nil, err
	}
	return &Queue[T]{Queue: q}, nil
}

// DefaultStoreOptions returns store options for path with the defaults filled in.
func DefaultStoreOptions(path string) *StoreOptions {
	return store.DefaultOptions(path)
}

// DefaultSchedulerOptions returns the stock worker options: batches of 100,
// 5s idle shutdown, 1s poll interval, AdvanceAlways.
func DefaultSchedulerOptions() *SchedulerOptions {
	return scheduler.DefaultOptions()
}
