package dataqueue_test

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/iamNilotpal/dataqueue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// lineCodec stores plain strings, one per line.
type lineCodec struct{}

func (lineCodec) Encode(record string) ([]byte, error) {
	if bytes.ContainsAny([]byte(record), "\r\n") {
		return nil, fmt.Errorf("record %q spans lines", record)
	}
	return []byte(record), nil
}

func (lineCodec) Decode(line []byte) (string, error) { return string(line), nil }

func (lineCodec) Name() string { return "line" }

func newOptions(t *testing.T) *dataqueue.Options {
	sched := dataqueue.DefaultSchedulerOptions()
	sched.MaxCount = 2
	sched.PollInterval = 10 * time.Millisecond

	return &dataqueue.Options{
		Store:     dataqueue.DefaultStoreOptions(filepath.Join(t.TempDir(), "lines")),
		Scheduler: sched,
		Logger:    zaptest.NewLogger(t).Sugar(),
	}
}

func TestNewWithCodec(t *testing.T) {
	var (
		mu  sync.Mutex
		got []string
	)
	listener := dataqueue.ListenerFunc[string](func(batch []string) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, batch...)
		return nil
	})

	q, err := dataqueue.NewWithCodec[string](listener, lineCodec{}, newOptions(t))
	require.NoError(t, err)
	defer q.Close(context.Background())

	for _, s := range []string{"alpha", "beta", "gamma"} {
		require.NoError(t, q.Offer(s))
	}
	assert.Error(t, q.Offer("two\nlines"))

	require.Eventually(t, func() bool { return q.Marker() == 3 }, 5*time.Second, 5*time.Millisecond)

	mu.Lock()
	assert.Equal(t, []string{"alpha", "beta", "gamma"}, got)
	mu.Unlock()

	segments := q.Segments()
	require.Len(t, segments, 1)
	assert.Equal(t, uint64(3), segments[0].Records)
}

func TestNew_JSONRecords(t *testing.T) {
	type payment struct {
		ID     string `json:"id"`
		Amount int    `json:"amount"`
	}

	delivered := make(chan []payment, 10)
	listener := dataqueue.ListenerFunc[payment](func(batch []payment) error {
		delivered <- batch
		return nil
	})

	opts := newOptions(t)
	opts.Format = dataqueue.FormatJSON
	q, err := dataqueue.New[payment](listener, opts)
	require.NoError(t, err)

	require.NoError(t, q.Offer(payment{ID: "p-1", Amount: 120}))

	select {
	case batch := <-delivered:
		assert.Equal(t, []payment{{ID: "p-1", Amount: 120}}, batch)
	case <-time.After(5 * time.Second):
		t.Fatal("record was not delivered")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, q.Close(ctx))
	assert.Equal(t, dataqueue.StateClosed, q.State())
}
