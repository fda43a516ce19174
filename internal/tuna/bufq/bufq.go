// Package bufq implements a single-producer/single-consumer cross-
// thread event queue: producer-side operations are non-blocking
// appends to a FIFO, and a dedicated worker goroutine drains it in
// order into a downstream Consumer.
//
// Uses a condition variable over a mutex with manual free-list
// recycling of queue nodes, rather than a buffered channel, because a
// channel can't express two things this queue needs: observing a
// signalled wakeup with no event as a countable anomaly, and
// capturing the worker's terminal error for Exit to return. sync.Cond
// exposes both.
package bufq

import (
	"sync"

	"github.com/tphakala/tuna/internal/terrors"
	"github.com/tphakala/tuna/internal/tlog"
	"github.com/tphakala/tuna/internal/tuna/buffer"
	"github.com/tphakala/tuna/internal/tuna/pipeline"
	"github.com/tphakala/tuna/internal/tuna/tstamp"
)

type eventKind int

const (
	evWrite eventKind = iota
	evStart
	evResync
)

type event struct {
	kind  eventKind
	buf   *buffer.Buffer
	count int
	rate  int
	ts    tstamp.Timestamp
}

// maxSpuriousWakeups is the fatal threshold of consecutive
// signalled-but-empty wakeups before the worker gives up.
const maxSpuriousWakeups = 5

// Queue is a cross-thread event queue satisfying pipeline.Consumer on
// its producer-facing side, forwarding in order to a downstream
// pipeline.Consumer from its own worker goroutine.
type Queue struct {
	mu   sync.Mutex
	cond *sync.Cond

	list  []*event // FIFO, dequeued from the front
	free  []*event // recycled event nodes
	exit  bool
	done  chan struct{}

	downstream pipeline.Consumer
	logger     tlog.Logger

	spurious   int
	workerErr  error
}

// NewQueue starts the worker goroutine immediately, forwarding events
// to downstream.
func NewQueue(downstream pipeline.Consumer, logger tlog.Logger) *Queue {
	if logger == nil {
		logger = tlog.Discard
	}
	q := &Queue{
		downstream: downstream,
		logger:     logger,
		done:       make(chan struct{}),
	}
	q.cond = sync.NewCond(&q.mu)
	go q.workerLoop()
	return q
}

func (q *Queue) allocLocked() *event {
	if n := len(q.free); n > 0 {
		e := q.free[n-1]
		q.free = q.free[:n-1]
		*e = event{}
		return e
	}
	return &event{}
}

func (q *Queue) enqueue(e *event) {
	q.mu.Lock()
	q.list = append(q.list, e)
	q.cond.Signal()
	q.mu.Unlock()
}

// Start enqueues a Start event.
func (q *Queue) Start(sampleRate int, ts tstamp.Timestamp) error {
	q.mu.Lock()
	e := q.allocLocked()
	e.kind = evStart
	e.rate = sampleRate
	e.ts = ts
	q.list = append(q.list, e)
	q.cond.Signal()
	q.mu.Unlock()
	return nil
}

// Write enqueues a Write event, adding a reference to buf. The queue
// releases that reference once the worker's downstream call returns:
// enqueue acquires, dequeue releases after downstream delivery.
func (q *Queue) Write(buf *buffer.Buffer, count int) error {
	buf.Acquire()
	q.mu.Lock()
	e := q.allocLocked()
	e.kind = evWrite
	e.buf = buf
	e.count = count
	q.list = append(q.list, e)
	q.cond.Signal()
	q.mu.Unlock()
	return nil
}

// Resync enqueues a Resync event.
func (q *Queue) Resync(ts tstamp.Timestamp) error {
	q.mu.Lock()
	e := q.allocLocked()
	e.kind = evResync
	e.ts = ts
	q.list = append(q.list, e)
	q.cond.Signal()
	q.mu.Unlock()
	return nil
}

// Exit sets the exit flag, blocks until the worker has drained any
// pending events and joined, then cascades Exit to the downstream
// consumer the worker was delivering to. A worker-side error takes
// precedence over a downstream Exit error, since the latter is often
// just a consequence of the former (e.g. a sink left half-written).
func (q *Queue) Exit() error {
	q.mu.Lock()
	q.exit = true
	q.cond.Signal()
	q.mu.Unlock()

	<-q.done

	downstreamErr := q.downstream.Exit()
	if q.workerErr != nil {
		return q.workerErr
	}
	return downstreamErr
}

func (q *Queue) workerLoop() {
	for {
		q.mu.Lock()
		for len(q.list) == 0 && !q.exit {
			q.cond.Wait()
			if len(q.list) == 0 && !q.exit {
				q.spurious++
				spuriousWakeupsTotal.Inc()
				if q.spurious > maxSpuriousWakeups {
					q.workerErr = terrors.New(nil).
						Category(terrors.CategoryWorker).
						Context("consecutive_spurious_wakeups", q.spurious).
						Build()
					q.mu.Unlock()
					close(q.done)
					return
				}
				continue
			}
			q.spurious = 0
		}

		if len(q.list) == 0 && q.exit {
			q.mu.Unlock()
			break
		}

		e := q.list[0]
		q.list = q.list[1:]
		q.mu.Unlock()

		err := q.deliver(e)

		q.mu.Lock()
		q.free = append(q.free, e)
		q.mu.Unlock()

		if err != nil {
			q.mu.Lock()
			q.workerErr = err
			q.mu.Unlock()
			q.logger.Errorf("bufq: downstream call failed, worker terminating: %v", err)
			break
		}
	}
	close(q.done)
}

func (q *Queue) deliver(e *event) error {
	switch e.kind {
	case evWrite:
		err := q.downstream.Write(e.buf, e.count)
		e.buf.Release()
		e.buf = nil
		return err
	case evStart:
		return q.downstream.Start(e.rate, e.ts)
	case evResync:
		return q.downstream.Resync(e.ts)
	default:
		return nil
	}
}

var _ pipeline.Consumer = (*queueConsumer)(nil)

// queueConsumer wraps Queue as a pipeline.Consumer. Queue's own
// Start/Write/Resync/Exit methods already have the Consumer signatures,
// so the embedded methods are forwarded unchanged, Exit included (it
// returns the worker's captured error, as Queue.Exit does).
type queueConsumer struct{ *Queue }

// AsConsumer adapts q to the pipeline.Consumer interface, so it can be
// wired as the downstream target of a Producer or of another stage.
func (q *Queue) AsConsumer() pipeline.Consumer { return queueConsumer{q} }
