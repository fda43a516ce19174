// Package pipeline defines the four capability contracts TUNA's core
// both consumes and exposes: Producer, Consumer, Sink, and
// SpectrumEngine. These are plain Go interfaces, and stages are
// concrete types implementing them — no inheritance, no cyclic
// references; the pipeline is a DAG rooted at the Producer.
package pipeline

import (
	"github.com/tphakala/tuna/internal/tuna/buffer"
	"github.com/tphakala/tuna/internal/tuna/tstamp"
)

// Producer drives capture or file reads and feeds a Consumer chain.
type Producer interface {
	// Run blocks until Stop is observed or the source reaches EOF /
	// a fatal I/O error, then returns the recorded stop condition
	// (nil on clean termination).
	Run() error

	// Stop is asynchronous and idempotent: it sets a flag that Run
	// observes at its next loop boundary.
	Stop(cause error)
}

// Consumer is the capability set every pipeline stage implements:
// bufq's worker, the time-slice stage, and the pulse stage all satisfy
// it, and each must propagate Start/Resync to its own downstream(s).
//
// Invariants: Start is delivered exactly once before the first Write;
// Resync may occur zero or more times between Start and Exit; no
// operation is called after Exit.
type Consumer interface {
	// Start must precede any Write.
	Start(sampleRate int, ts tstamp.Timestamp) error

	// Write is zero-copy: the receiver must Acquire the buffer if it
	// retains a reference beyond the call.
	Write(buf *buffer.Buffer, count int) error

	// Resync is a discontinuity barrier: downstream may discard
	// pending state.
	Resync(ts tstamp.Timestamp) error

	// Exit releases all owned resources. No operation follows it.
	Exit() error
}

// TimeSliceResult is a single window's peak, moment, and TOL-band
// output.
type TimeSliceResult struct {
	PeakPositive, PeakNegative               int32
	PeakPositiveOffset, PeakNegativeOffset    int
	Sum1, Sum2, Sum3, Sum4                    float64
	Tols                                      []float64
}

// PulseResult is a single detected pulse's peak, offset, and TOL-band
// output. AttackOnly marks a timeout-terminated pulse emitted with its
// TOLs implicitly zero, which is not itself an error condition.
type PulseResult struct {
	PeakPositive, PeakNegative            int32
	PeakPositiveOffset, PeakNegativeOffset int
	Offset5, Offset95                     int
	Tols                                  []float64
	AttackOnly                            bool
}

// Sink is a line-oriented record emitter: CSV and DAT drivers both
// implement it. Sinks are external collaborators, but the interface
// itself is core.
type Sink interface {
	WriteStart(ts tstamp.Timestamp, sampleRate int) error
	WriteResync(ts tstamp.Timestamp) error
	WriteTimeSlice(ts tstamp.Timestamp, r TimeSliceResult) error
	WritePulse(ts tstamp.Timestamp, r PulseResult) error
	Close() error
}

// Fanout is a Consumer that propagates Start/Write/Resync/Exit to every
// downstream in order — the branch point where the queue's single
// downstream must in fact reach both the time-slice and pulse stages
// (and, optionally, a raw-signal recorder). Fanout never Acquires or
// Releases buf itself:
// it forwards the caller's borrowed reference to each downstream in
// turn, and per the Consumer contract each one Acquires its own
// reference only if it retains the buffer past its own Write call —
// the same rule that would apply with a single downstream.
type Fanout struct {
	downstreams []Consumer
}

var _ Consumer = (*Fanout)(nil)

// NewFanout builds a Consumer that forwards every call to each of ds,
// in order.
func NewFanout(ds ...Consumer) *Fanout {
	return &Fanout{downstreams: ds}
}

func (f *Fanout) Start(sampleRate int, ts tstamp.Timestamp) error {
	for _, d := range f.downstreams {
		if err := d.Start(sampleRate, ts); err != nil {
			return err
		}
	}
	return nil
}

func (f *Fanout) Write(buf *buffer.Buffer, count int) error {
	for _, d := range f.downstreams {
		if err := d.Write(buf, count); err != nil {
			return err
		}
	}
	return nil
}

func (f *Fanout) Resync(ts tstamp.Timestamp) error {
	for _, d := range f.downstreams {
		if err := d.Resync(ts); err != nil {
			return err
		}
	}
	return nil
}

func (f *Fanout) Exit() error {
	var first error
	for _, d := range f.downstreams {
		if err := d.Exit(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// SpectrumEngine is the contract the time-slice and pulse stages share
// for the FFT, satisfied by *spectrum.Engine; TOL sums come from a
// separate *spectrum.TolBank. The time-slice and pulse stages hold a
// concrete *spectrum.Engine rather than this interface.
type SpectrumEngine interface {
	SetLength(n int) error
	Open() ([]float64, error)
	Transform() error
	Abort()
	Len() int
}
