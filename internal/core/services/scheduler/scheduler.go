// Package scheduler owns the single worker that drains a queue store into a
// listener. The worker starts on demand, busy-drains while records are
// unread, and stops itself after an idle period; the next Offer restarts it.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/iamNilotpal/dataqueue/internal/core/domain"
	"github.com/iamNilotpal/dataqueue/internal/core/ports"
	"github.com/iamNilotpal/dataqueue/internal/metrics"
	"github.com/iamNilotpal/dataqueue/pkg/errors"
	"go.uber.org/zap"
)

// Scheduler runs at most one worker per queue.
type Scheduler[T any] struct {
	store    ports.QueueStore[T]
	listener ports.Listener[T]
	opts     *domain.SchedulerOptions
	log      *zap.SugaredLogger
	metrics  *metrics.Metrics

	// mu is held by Offer while it checks for a running worker and by the
	// worker while it decides to stop. Holding it for both closes the window
	// where a record lands between the worker's last empty check and its exit.
	mu    sync.Mutex
	state domain.WorkerState
	done  chan struct{} // Closed when the current or last worker returns.

	quit chan struct{} // Closed by Close.
}

// New creates a scheduler and immediately starts its first worker.
func New[T any](
	store ports.QueueStore[T],
	listener ports.Listener[T],
	opts *domain.SchedulerOptions,
	log *zap.SugaredLogger,
	m *metrics.Metrics,
) (*Scheduler[T], error) {
	if store == nil {
		return nil, errors.NewValidationError("store", nil, fmt.Errorf("store is required"))
	}
	if listener == nil {
		return nil, errors.NewValidationError("listener", nil, fmt.Errorf("listener is required"))
	}

	if opts == nil {
		opts = DefaultOptions()
	}
	opts = prepareDefaults(opts)
	if err := Validate(opts); err != nil {
		return nil, err
	}

	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if m == nil {
		m = metrics.New(nil, "default")
	}

	s := &Scheduler[T]{
		store:    store,
		listener: listener,
		opts:     opts,
		log:      log,
		metrics:  m,
		state:    domain.StateStopped,
		quit:     make(chan struct{}),
	}

	s.mu.Lock()
	s.ensureRunningLocked()
	s.mu.Unlock()

	return s, nil
}

// Offer appends record to the store and makes sure a worker will see it.
// Append errors are returned as is; the record is durable before any worker
// can observe it.
func (s *Scheduler[T]) Offer(record T) error {
	if s.State() == domain.StateClosed {
		return errors.ErrQueueClosed
	}

	if err := s.store.Append(record); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureRunningLocked()
	return nil
}

// State returns the worker state.
func (s *Scheduler[T]) State() domain.WorkerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Close stops the worker, if any, and waits for it to return or for ctx to
// expire. No worker is started afterwards. Close does not close the store.
func (s *Scheduler[T]) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.state == domain.StateClosed {
		s.mu.Unlock()
		return errors.ErrQueueClosed
	}

	s.state = domain.StateClosed
	s.metrics.WorkerRunning.Set(0)
	close(s.quit)
	done := s.done
	s.mu.Unlock()

	if done == nil {
		return nil
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for worker to stop : %w", ctx.Err())
	}
}

// Launches a worker if none is running. Callers hold mu.
func (s *Scheduler[T]) ensureRunningLocked() {
	if s.state != domain.StateStopped {
		return
	}

	s.state = domain.StateRunning
	s.done = make(chan struct{})

	s.metrics.WorkerStarts.Inc()
	s.metrics.WorkerRunning.Set(1)

	go s.run(s.log.With("run", uuid.NewString()), s.done)
}

// The worker loop. It returns only through an idle stop or Close.
func (s *Scheduler[T]) run(log *zap.SugaredLogger, done chan struct{}) {
	defer close(done)
	defer s.metrics.WorkerStops.Inc()

	log.Debugw("worker started", "maxCount", s.opts.MaxCount)
	lastActive := time.Now()

	for {
		delivered, err := s.drain(log)
		if delivered > 0 {
			lastActive = time.Now()
		}

		if err != nil {
			// drain already logged listener failures.
			if !errors.IsCategory(err, errors.ErrorListener) {
				log.Warnw("drain interrupted, retrying after poll interval", "error", err)
			}
		} else if !s.store.HasUnreadData() && time.Since(lastActive) > s.opts.IdleTimeout {
			if s.tryStop(log, lastActive) {
				return
			}
			continue
		}

		if !s.sleep() {
			log.Debugw("worker stopped by close")
			return
		}
	}
}

// Delivers batches until the store reports nothing unread. It returns the
// number of records handed to the listener and the error that stopped it
// early, if any.
func (s *Scheduler[T]) drain(log *zap.SugaredLogger) (int, error) {
	total := 0

	for s.store.HasUnreadData() {
		if s.closing() {
			return total, nil
		}

		batch, err := s.store.ReadBatch(s.opts.MaxCount)
		if err != nil {
			return total, err
		}
		if len(batch) == 0 {
			// Unread data but nothing readable: the marker sits below the
			// oldest retained record. Advancing moves it past the gap.
			return total, s.store.AdvanceMarker()
		}
		total += len(batch)

		if err := s.deliver(batch); err != nil {
			s.metrics.ListenerFailures.Inc()
			log.Errorw("listener failed", "records", len(batch), "policy", s.opts.AdvancePolicy, "error", err)

			if s.opts.AdvancePolicy == domain.AdvanceOnSuccess {
				return total, err
			}
		}

		if err := s.store.AdvanceMarker(); err != nil {
			return total, err
		}
	}

	return total, nil
}

// Hands one batch to the listener, turning a panic into an error.
func (s *Scheduler[T]) deliver(batch []T) (err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = errors.NewQueueError(errors.ErrorListener, "deliver", fmt.Errorf("listener panicked: %v", r))
		}
		s.metrics.DeliveryDuration.Observe(time.Since(start).Seconds())
	}()

	s.metrics.DeliveredBatches.Inc()
	s.metrics.DeliveredRecords.Add(float64(len(batch)))

	if err := s.listener.Deliver(batch); err != nil {
		return errors.NewQueueError(errors.ErrorListener, "deliver", err)
	}
	return nil
}

// Moves the worker to Stopped if the store is still empty. It re-checks
// under mu so an Offer that appended after the worker's last look either
// sees Running and leaves, or runs after this and starts a new worker.
// Nothing may be logged once mu is released: a successor may already own
// the scheduler.
func (s *Scheduler[T]) tryStop(log *zap.SugaredLogger, lastActive time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != domain.StateRunning {
		return true
	}
	if s.store.HasUnreadData() {
		return false
	}

	s.state = domain.StateStopped
	s.metrics.WorkerRunning.Set(0)
	log.Debugw("worker stopped", "idleFor", time.Since(lastActive))
	return true
}

// Waits one poll interval. Returns false if the scheduler was closed meanwhile.
func (s *Scheduler[T]) sleep() bool {
	timer := time.NewTimer(s.opts.PollInterval)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-s.quit:
		return false
	}
}

func (s *Scheduler[T]) closing() bool {
	select {
	case <-s.quit:
		return true
	default:
		return false
	}
}
