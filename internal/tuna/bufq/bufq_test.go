package bufq

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tphakala/tuna/internal/tuna/buffer"
	"github.com/tphakala/tuna/internal/tuna/tstamp"
)

type call struct {
	kind  string
	count int
}

type recordingConsumer struct {
	mu    sync.Mutex
	calls []call
}

func (r *recordingConsumer) record(kind string, count int) {
	r.mu.Lock()
	r.calls = append(r.calls, call{kind, count})
	r.mu.Unlock()
}

func (r *recordingConsumer) Start(sampleRate int, ts tstamp.Timestamp) error {
	r.record("start", 0)
	return nil
}
func (r *recordingConsumer) Write(buf *buffer.Buffer, count int) error {
	r.record("write", count)
	return nil
}
func (r *recordingConsumer) Resync(ts tstamp.Timestamp) error {
	r.record("resync", 0)
	return nil
}
func (r *recordingConsumer) Exit() error { return nil }

func (r *recordingConsumer) snapshot() []call {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]call, len(r.calls))
	copy(out, r.calls)
	return out
}

func TestQueueDeliversInOrderAndBalancesRefcounts(t *testing.T) {
	defer goleak.VerifyNone(t)

	downstream := &recordingConsumer{}
	q := NewQueue(downstream, nil)

	require.NoError(t, q.Start(48000, tstamp.Timestamp{}))

	pool := buffer.NewPool()
	bufs := make([]*buffer.Buffer, 10)
	for i := range bufs {
		b, n, err := pool.Acquire(4)
		require.NoError(t, err)
		bufs[i] = b
		require.NoError(t, q.Write(b, n))
		b.Release()
	}

	require.NoError(t, q.Resync(tstamp.Timestamp{Sec: 1}))

	bufs2 := make([]*buffer.Buffer, 10)
	for i := range bufs2 {
		b, n, err := pool.Acquire(4)
		require.NoError(t, err)
		bufs2[i] = b
		require.NoError(t, q.Write(b, n))
		b.Release()
	}

	require.Eventually(t, func() bool {
		return len(downstream.snapshot()) == 22
	}, 2*time.Second, time.Millisecond, "expected all 22 events delivered")

	require.NoError(t, q.Exit())

	calls := downstream.snapshot()
	assert.Equal(t, "start", calls[0].kind)
	for i := 1; i <= 10; i++ {
		assert.Equal(t, "write", calls[i].kind)
	}
	assert.Equal(t, "resync", calls[11].kind)
	for i := 12; i <= 21; i++ {
		assert.Equal(t, "write", calls[i].kind)
	}

	for _, b := range bufs {
		assert.Equal(t, 0, b.RefCount(), "queue must release its reference after delivery")
	}
	for _, b := range bufs2 {
		assert.Equal(t, 0, b.RefCount())
	}
}

func TestExitIsIdempotentWithNoPendingEvents(t *testing.T) {
	defer goleak.VerifyNone(t)

	downstream := &recordingConsumer{}
	q := NewQueue(downstream, nil)
	require.NoError(t, q.Exit())
	require.NoError(t, q.Exit())
}

func TestAsConsumerForwardsToQueue(t *testing.T) {
	defer goleak.VerifyNone(t)

	downstream := &recordingConsumer{}
	q := NewQueue(downstream, nil)
	c := q.AsConsumer()

	require.NoError(t, c.Start(48000, tstamp.Timestamp{}))
	require.NoError(t, c.Resync(tstamp.Timestamp{}))

	require.Eventually(t, func() bool {
		return len(downstream.snapshot()) == 2
	}, 2*time.Second, time.Millisecond)

	require.NoError(t, c.Exit())
}
