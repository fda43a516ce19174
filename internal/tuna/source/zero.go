// Package source implements the Producer contract's external
// collaborators: a zero-sample generator, a sound-file reader, and a
// live ALSA-class capture source.
package source

import (
	"github.com/tphakala/tuna/internal/terrors"
	"github.com/tphakala/tuna/internal/tuna/buffer"
	"github.com/tphakala/tuna/internal/tuna/pipeline"
	"github.com/tphakala/tuna/internal/tuna/tstamp"
)

const zeroChunkSamples = 4096

// Zero is a Producer that feeds an endless stream of silent samples at
// a fixed rate, for pipeline smoke-testing (input kind "zero").
type Zero struct {
	sampleRate int
	downstream pipeline.Consumer
	pool       *buffer.Pool

	stopCh chan struct{}
	cause  error
}

var _ pipeline.Producer = (*Zero)(nil)

// NewZero builds a zero-sample producer at sampleRate Hz, driving
// downstream.
func NewZero(sampleRate int, downstream pipeline.Consumer) *Zero {
	return &Zero{
		sampleRate: sampleRate,
		downstream: downstream,
		pool:       buffer.NewPool(),
		stopCh:     make(chan struct{}),
	}
}

func (z *Zero) Run() error {
	if err := z.downstream.Start(z.sampleRate, tstamp.Timestamp{}); err != nil {
		return err
	}

	for {
		select {
		case <-z.stopCh:
			if err := z.downstream.Exit(); err != nil {
				return err
			}
			return z.cause
		default:
		}

		buf, n, err := z.pool.Acquire(zeroChunkSamples)
		if err != nil {
			return terrors.New(err).Category(terrors.CategoryResource).
				Context("source", "zero").Build()
		}
		// buf.Data() is already zeroed by make(); nothing to fill.
		if err := z.downstream.Write(buf, n); err != nil {
			buf.Release()
			return err
		}
		buf.Release()
	}
}

func (z *Zero) Stop(cause error) {
	z.cause = cause
	select {
	case <-z.stopCh:
	default:
		close(z.stopCh)
	}
}
