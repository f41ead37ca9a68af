package scheduler

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/iamNilotpal/dataqueue/internal/core/domain"
	"github.com/iamNilotpal/dataqueue/internal/metrics"
	"github.com/iamNilotpal/dataqueue/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/sync/errgroup"
)

const (
	waitFor = 5 * time.Second
	tick    = 5 * time.Millisecond
)

// fakeStore is an in-memory QueueStore. While hidden it reports no unread
// data, which lets a test queue up records before the worker sees any.
// Records below retained are gone, as after segment cleanup; reads from a
// marker under it resume at retained.
type fakeStore struct {
	mu       sync.Mutex
	records  []int
	marker   int
	pending  int
	retained int
	hidden   bool
	readErr  error
}

func newFakeStore(records ...int) *fakeStore {
	return &fakeStore{records: records, pending: -1}
}

func (f *fakeStore) Append(record int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, record)
	return nil
}

func (f *fakeStore) HasUnreadData() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.hidden && f.marker < len(f.records)
}

func (f *fakeStore) ReadBatch(maxCount int) ([]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.readErr != nil {
		return nil, f.readErr
	}
	if f.hidden {
		return []int{}, nil
	}

	start := max(f.marker, f.retained)
	end := min(start+maxCount, len(f.records))
	batch := append([]int(nil), f.records[start:end]...)
	f.pending = end
	return batch, nil
}

func (f *fakeStore) AdvanceMarker() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pending >= 0 {
		f.marker, f.pending = f.pending, -1
	}
	return nil
}

func (f *fakeStore) SetMarker(value uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.marker, f.pending = int(value), -1
	return nil
}

func (f *fakeStore) Marker() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return uint64(f.marker)
}

func (f *fakeStore) Close() error { return nil }

func (f *fakeStore) setHidden(hidden bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hidden = hidden
}

func (f *fakeStore) setReadErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readErr = err
}

func (f *fakeStore) len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

// recordingListener keeps every batch it is handed and tracks how many
// calls overlap. hook, when set, decides the result of each call.
type recordingListener struct {
	mu      sync.Mutex
	batches [][]int
	hook    func(call int, batch []int) error

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func (l *recordingListener) Deliver(batch []int) error {
	n := l.inFlight.Add(1)
	defer l.inFlight.Add(-1)
	for {
		current := l.maxInFlight.Load()
		if n <= current || l.maxInFlight.CompareAndSwap(current, n) {
			break
		}
	}

	l.mu.Lock()
	call := len(l.batches)
	l.batches = append(l.batches, append([]int(nil), batch...))
	hook := l.hook
	l.mu.Unlock()

	if hook != nil {
		return hook(call, batch)
	}
	return nil
}

func (l *recordingListener) snapshot() [][]int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([][]int(nil), l.batches...)
}

func (l *recordingListener) delivered() []int {
	var out []int
	for _, batch := range l.snapshot() {
		out = append(out, batch...)
	}
	return out
}

func seq(from, to int) []int {
	out := make([]int, 0, to-from)
	for i := from; i < to; i++ {
		out = append(out, i)
	}
	return out
}

func newTestScheduler(
	t *testing.T, st *fakeStore, l *recordingListener, opts *domain.SchedulerOptions,
) (*Scheduler[int], *metrics.Metrics) {
	t.Helper()

	m := metrics.New(nil, "test")
	s, err := New[int](st, l, opts, zaptest.NewLogger(t).Sugar(), m)
	require.NoError(t, err)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), waitFor)
		defer cancel()
		if err := s.Close(ctx); err != nil && !stderrors.Is(err, errors.ErrQueueClosed) {
			t.Errorf("close scheduler: %v", err)
		}
	})
	return s, m
}

func fastOptions(maxCount int, idle time.Duration) *domain.SchedulerOptions {
	return &domain.SchedulerOptions{MaxCount: maxCount, IdleTimeout: idle, PollInterval: 10 * time.Millisecond}
}

func TestScheduler_DeliversInBatchesOfMaxCount(t *testing.T) {
	st := newFakeStore()
	st.setHidden(true)
	l := &recordingListener{}
	s, m := newTestScheduler(t, st, l, fastOptions(5, waitFor))

	for i := 0; i < 10; i++ {
		require.NoError(t, s.Offer(i))
	}
	st.setHidden(false)

	require.Eventually(t, func() bool { return st.Marker() == 10 }, waitFor, tick)
	assert.Equal(t, [][]int{seq(0, 5), seq(5, 10)}, l.snapshot())
	assert.Equal(t, float64(2), testutil.ToFloat64(m.DeliveredBatches))
	assert.Equal(t, float64(10), testutil.ToFloat64(m.DeliveredRecords))
}

func TestScheduler_DrainsExistingRecordsOnStart(t *testing.T) {
	st := newFakeStore(seq(0, 7)...)
	l := &recordingListener{}
	s, _ := newTestScheduler(t, st, l, fastOptions(3, waitFor))

	assert.Equal(t, domain.StateRunning, s.State())
	require.Eventually(t, func() bool { return st.Marker() == 7 }, waitFor, tick)
	assert.Equal(t, [][]int{{0, 1, 2}, {3, 4, 5}, {6}}, l.snapshot())
}

func TestScheduler_IdleShutdownAndRestart(t *testing.T) {
	st := newFakeStore()
	l := &recordingListener{}
	s, m := newTestScheduler(t, st, l, fastOptions(10, 100*time.Millisecond))

	require.Eventually(t, func() bool { return s.State() == domain.StateStopped }, waitFor, tick)
	assert.Equal(t, float64(0), testutil.ToFloat64(m.WorkerRunning))
	require.Eventually(t, func() bool { return testutil.ToFloat64(m.WorkerStops) == 1 }, waitFor, tick)

	require.NoError(t, s.Offer(42))
	assert.Equal(t, domain.StateRunning, s.State(), "offer must restart a stopped worker")

	require.Eventually(t, func() bool { return len(l.delivered()) == 1 }, waitFor, tick)
	assert.Equal(t, []int{42}, l.delivered())
	assert.Equal(t, float64(2), testutil.ToFloat64(m.WorkerStarts))

	require.Eventually(t, func() bool { return s.State() == domain.StateStopped }, waitFor, tick)
}

func TestScheduler_ConcurrentOffersSingleWorker(t *testing.T) {
	const producers, perProducer = 8, 50

	st := newFakeStore()
	l := &recordingListener{}
	opts := &domain.SchedulerOptions{MaxCount: 7, IdleTimeout: 2 * time.Millisecond, PollInterval: time.Millisecond}
	s, _ := newTestScheduler(t, st, l, opts)

	var g errgroup.Group
	for p := 0; p < producers; p++ {
		p := p
		g.Go(func() error {
			for i := 0; i < perProducer; i++ {
				if err := s.Offer(p*perProducer + i); err != nil {
					return fmt.Errorf("producer %d: %w", p, err)
				}
				if i%10 == 0 {
					// Let the worker go idle now and then.
					time.Sleep(3 * time.Millisecond)
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	require.Eventually(t, func() bool { return len(l.delivered()) == producers*perProducer }, waitFor, tick)
	assert.Equal(t, int32(1), l.maxInFlight.Load(), "listener must never run concurrently")

	// Every record exactly once, each producer's records in its own order.
	seen := make(map[int]bool)
	last := make(map[int]int)
	for _, v := range l.delivered() {
		require.False(t, seen[v], "record %d delivered twice", v)
		seen[v] = true

		producer := v / perProducer
		if prev, ok := last[producer]; ok {
			assert.Less(t, prev, v, "producer %d reordered", producer)
		}
		last[producer] = v
	}
	assert.Len(t, seen, producers*perProducer)
}

func TestScheduler_ListenerErrorAdvanceAlways(t *testing.T) {
	st := newFakeStore(seq(0, 6)...)
	l := &recordingListener{hook: func(call int, batch []int) error {
		if call == 0 {
			return fmt.Errorf("downstream unavailable")
		}
		return nil
	}}
	_, m := newTestScheduler(t, st, l, fastOptions(3, waitFor))

	require.Eventually(t, func() bool { return st.Marker() == 6 }, waitFor, tick)
	assert.Equal(t, [][]int{{0, 1, 2}, {3, 4, 5}}, l.snapshot(), "failed batch must not be redelivered")
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ListenerFailures))
}

func TestScheduler_ListenerErrorAdvanceOnSuccess(t *testing.T) {
	st := newFakeStore(seq(0, 6)...)
	l := &recordingListener{hook: func(call int, batch []int) error {
		if call == 0 {
			return fmt.Errorf("downstream unavailable")
		}
		return nil
	}}
	opts := fastOptions(3, waitFor)
	opts.AdvancePolicy = domain.AdvanceOnSuccess
	_, m := newTestScheduler(t, st, l, opts)

	require.Eventually(t, func() bool { return st.Marker() == 6 }, waitFor, tick)
	assert.Equal(t, [][]int{{0, 1, 2}, {0, 1, 2}, {3, 4, 5}}, l.snapshot(), "failed batch must be redelivered")
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ListenerFailures))
}

func TestScheduler_SkipsMarkerPastDroppedRecords(t *testing.T) {
	st := newFakeStore(seq(0, 10)...)
	st.marker, st.retained = 3, 10
	l := &recordingListener{}
	s, _ := newTestScheduler(t, st, l, fastOptions(4, 50*time.Millisecond))

	require.Eventually(t, func() bool { return st.Marker() == 10 }, waitFor, tick)
	require.Eventually(t, func() bool { return s.State() == domain.StateStopped }, waitFor, tick)
	assert.Empty(t, l.snapshot(), "dropped records must not be delivered")

	require.NoError(t, s.Offer(10))
	require.Eventually(t, func() bool { return st.Marker() == 11 }, waitFor, tick)
	assert.Equal(t, []int{10}, l.delivered())
}

func TestScheduler_ListenerFailureLoggedOnce(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	st := newFakeStore(seq(0, 3)...)
	l := &recordingListener{hook: func(call int, batch []int) error {
		if call == 0 {
			return fmt.Errorf("downstream unavailable")
		}
		return nil
	}}
	opts := fastOptions(3, waitFor)
	opts.AdvancePolicy = domain.AdvanceOnSuccess

	s, err := New[int](st, l, opts, zap.New(core).Sugar(), metrics.New(nil, "test"))
	require.NoError(t, err)

	require.Eventually(t, func() bool { return st.Marker() == 3 }, waitFor, tick)

	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	require.NoError(t, s.Close(ctx))

	assert.Equal(t, 1, logs.FilterMessage("listener failed").Len())
	assert.Zero(t, logs.FilterLevelExact(zapcore.WarnLevel).Len())
}

func TestScheduler_ListenerPanicIsRecovered(t *testing.T) {
	st := newFakeStore(1)
	l := &recordingListener{hook: func(call int, batch []int) error {
		if call == 0 {
			panic("listener bug")
		}
		return nil
	}}
	s, m := newTestScheduler(t, st, l, fastOptions(10, waitFor))

	require.Eventually(t, func() bool { return st.Marker() == 1 }, waitFor, tick)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ListenerFailures))

	require.NoError(t, s.Offer(2))
	require.Eventually(t, func() bool { return st.Marker() == 2 }, waitFor, tick)
	assert.Equal(t, []int{1, 2}, l.delivered())
	assert.Equal(t, domain.StateRunning, s.State())
}

func TestScheduler_ReadErrorIsRetried(t *testing.T) {
	st := newFakeStore(1, 2)
	st.setReadErr(fmt.Errorf("disk hiccup"))
	l := &recordingListener{}
	newTestScheduler(t, st, l, fastOptions(10, waitFor))

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, l.delivered())

	st.setReadErr(nil)
	require.Eventually(t, func() bool { return st.Marker() == 2 }, waitFor, tick)
	assert.Equal(t, []int{1, 2}, l.delivered())
}

func TestScheduler_Close(t *testing.T) {
	st := newFakeStore()
	l := &recordingListener{}
	s, _ := newTestScheduler(t, st, l, fastOptions(10, waitFor))

	require.NoError(t, s.Close(context.Background()))
	assert.Equal(t, domain.StateClosed, s.State())

	assert.ErrorIs(t, s.Offer(1), errors.ErrQueueClosed)
	assert.Equal(t, 0, st.len())
	assert.ErrorIs(t, s.Close(context.Background()), errors.ErrQueueClosed)
}

func TestScheduler_CloseAfterIdleStop(t *testing.T) {
	st := newFakeStore()
	s, _ := newTestScheduler(t, st, &recordingListener{}, fastOptions(10, 20*time.Millisecond))

	require.Eventually(t, func() bool { return s.State() == domain.StateStopped }, waitFor, tick)
	require.NoError(t, s.Close(context.Background()))
	assert.Equal(t, domain.StateClosed, s.State())
}

func TestScheduler_CloseTimesOutOnBlockedListener(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})

	st := newFakeStore(1)
	l := &recordingListener{hook: func(call int, batch []int) error {
		close(entered)
		<-release
		return nil
	}}
	s, _ := newTestScheduler(t, st, l, fastOptions(10, waitFor))
	<-entered

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := s.Close(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, domain.StateClosed, s.State())

	close(release)
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	<-done

	assert.Equal(t, uint64(1), st.Marker(), "an in-flight batch still commits")
}

func TestScheduler_NewValidation(t *testing.T) {
	st := newFakeStore()
	log := zaptest.NewLogger(t).Sugar()

	_, err := New[int](nil, &recordingListener{}, nil, log, nil)
	assert.True(t, errors.IsValidationError(err))

	_, err = New[int](st, nil, nil, log, nil)
	assert.True(t, errors.IsValidationError(err))

	_, err = New[int](st, &recordingListener{}, &domain.SchedulerOptions{MaxCount: -1}, log, nil)
	require.Error(t, err)
	assert.Equal(t, "maxCount", errors.AsValidationError(err).Field)

	_, err = New[int](st, &recordingListener{}, &domain.SchedulerOptions{AdvancePolicy: 7}, log, nil)
	require.Error(t, err)
	assert.Equal(t, "advancePolicy", errors.AsValidationError(err).Field)
}

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()
	assert.Equal(t, 100, opts.MaxCount)
	assert.Equal(t, 5*time.Second, opts.IdleTimeout)
	assert.Equal(t, time.Second, opts.PollInterval)
	assert.Equal(t, domain.AdvanceAlways, opts.AdvancePolicy)

	filled := prepareDefaults(&domain.SchedulerOptions{})
	assert.Equal(t, DefaultOptions(), filled)
}
