package queue

import (
	"context"
	"path/filepath"

	"github.com/iamNilotpal/dataqueue/internal/adapters/codec"
	"github.com/iamNilotpal/dataqueue/internal/core/domain"
	"github.com/iamNilotpal/dataqueue/internal/core/ports"
	"github.com/iamNilotpal/dataqueue/internal/core/services/scheduler"
	"github.com/iamNilotpal/dataqueue/internal/core/services/store"
	"github.com/iamNilotpal/dataqueue/internal/metrics"
	"github.com/iamNilotpal/dataqueue/pkg/errors"
	"github.com/iamNilotpal/dataqueue/pkg/system"
	"go.uber.org/zap"
)

// Queue is a disk-backed single-consumer queue: producers Offer records,
// a background worker drains them to the listener in batches.
type Queue[T any] struct {
	options   *domain.QueueOptions
	store     *store.Store[T]
	scheduler *scheduler.Scheduler[T]
	log       *zap.SugaredLogger
}

// New opens the store described by opts with the codec named by
// opts.Format and starts the worker.
func New[T any](listener ports.Listener[T], opts *domain.QueueOptions) (*Queue[T], error) {
	if opts == nil {
		return nil, errors.NewValidationError("options", nil, errMissingOptions)
	}

	c, err := codec.New[T](opts.Format)
	if err != nil {
		return nil, errors.NewValidationError("format", opts.Format, err)
	}
	return NewWithCodec(listener, c, opts)
}

// NewWithCodec is New with an explicit record codec.
func NewWithCodec[T any](listener ports.Listener[T], c ports.Codec[T], opts *domain.QueueOptions) (*Queue[T], error) {
	if opts == nil {
		return nil, errors.NewValidationError("options", nil, errMissingOptions)
	}
	if err := Validate(opts); err != nil {
		return nil, err
	}
	opts = prepareDefaults(opts)

	name := filepath.Base(opts.Store.Path)
	log := opts.Logger.With("queue", name)
	m := metrics.New(opts.Registerer, name)

	st, err := store.Open(opts.Store, c, opts.Logger, m)
	if err != nil {
		return nil, err
	}

	sched, err := scheduler.New[T](st, listener, opts.Scheduler, log, m)
	if err != nil {
		if closeErr := st.Close(); closeErr != nil {
			log.Warnw("failed to close store after scheduler error", "error", closeErr)
		}
		return nil, err
	}

	return &Queue[T]{options: opts, store: st, scheduler: sched, log: log}, nil
}

// Offer durably appends record and ensures a worker is draining the queue.
func (q *Queue[T]) Offer(record T) error {
	return q.scheduler.Offer(record)
}

// Marker returns the number of records consumed so far.
func (q *Queue[T]) Marker() uint64 {
	return q.store.Marker()
}

// SetMarker overrides the marker. It is unsafe: the caller must make sure
// exactly value records were handled. Meant for manual recovery only.
func (q *Queue[T]) SetMarker(value uint64) error {
	return q.store.SetMarker(value)
}

// WritePointer returns the number of records appended over the queue's lifetime.
func (q *Queue[T]) WritePointer() uint64 {
	return q.store.WritePointer()
}

// Segments describes the retained segment files.
func (q *Queue[T]) Segments() []domain.SegmentInfo {
	return q.store.Segments()
}

// State returns the worker state.
func (q *Queue[T]) State() domain.WorkerState {
	return q.scheduler.State()
}

// Close stops the worker and closes the store. If ctx expires first the
// store is left open and ctx's error is returned.
func (q *Queue[T]) Close(ctx context.Context) error {
	err := system.RunWithContext(ctx, func(opCtx context.Context) error {
		if err := q.scheduler.Close(opCtx); err != nil {
			return err
		}
		return q.store.Close()
	})

	if err != nil {
		q.log.Warnw("queue close failed", "error", err)
		return err
	}

	q.log.Infow("queue closed", "marker", q.store.Marker())
	return nil
}
