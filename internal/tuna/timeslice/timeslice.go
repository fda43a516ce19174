// Package timeslice implements 50%-overlapped windowed FFT plus
// time-domain moment/peak analysis.
package timeslice

import (
	"math"

	"github.com/tphakala/tuna/internal/terrors"
	"github.com/tphakala/tuna/internal/tlog"
	"github.com/tphakala/tuna/internal/tuna/buffer"
	"github.com/tphakala/tuna/internal/tuna/bufferhold"
	"github.com/tphakala/tuna/internal/tuna/pipeline"
	"github.com/tphakala/tuna/internal/tuna/spectrum"
	"github.com/tphakala/tuna/internal/tuna/tstamp"
)

// Stage is a pipeline.Consumer that accumulates samples into
// half-second slices and emits TimeSliceResult records to a Sink.
type Stage struct {
	sink       pipeline.Sink
	wisdomPath string
	overlap    float64
	phiL       int
	logger     tlog.Logger

	sampleRate int
	p          int // slice period = sampleRate/2

	window     []float64 // length 2P half-sine * sqrt(2)
	winSamples []int32   // length 2P raw window contents
	filled     int        // valid prefix length of winSamples

	hold *bufferhold.Hold

	engine *spectrum.Engine
	tol    *spectrum.TolBank

	startTs    tstamp.Timestamp
	sliceIndex int64
	started    bool
}

// New builds a time-slice stage writing its results to sink. The TOL
// bank uses the given overlap and phiL against an analysis length equal
// to the FFT length (2P = sample_rate); NewDefault below supplies the
// literal constants overlap=0.4 and phi_L=3.
func New(sink pipeline.Sink, wisdomPath string, overlap float64, phiL int, logger tlog.Logger) *Stage {
	if logger == nil {
		logger = tlog.Discard
	}
	return &Stage{sink: sink, wisdomPath: wisdomPath, overlap: overlap, phiL: phiL, logger: logger}
}

// NewDefault builds a time-slice stage using the original source's
// literal TOL parameters (overlap=0.4, phi_L=3).
func NewDefault(sink pipeline.Sink, wisdomPath string, logger tlog.Logger) *Stage {
	return New(sink, wisdomPath, 0.4, 3, logger)
}

var _ pipeline.Consumer = (*Stage)(nil)

func (s *Stage) Start(sampleRate int, ts tstamp.Timestamp) error {
	if s.started {
		return terrors.New(nil).Category(terrors.CategoryProtocol).
			Context("operation", "start_after_start").Build()
	}
	s.sampleRate = sampleRate
	s.p = sampleRate / 2
	windowLen := 2 * s.p

	s.window = make([]float64, windowLen)
	scale := math.Sqrt2
	for i := 0; i < windowLen; i++ {
		s.window[i] = scale * math.Sin(math.Pi*float64(i)/float64(windowLen))
	}

	s.winSamples = make([]int32, windowLen)
	s.filled = s.p // the first window's leading half (P of 2P samples) is primed silent, matching a (nonexistent) all-zero predecessor slice
	s.hold = bufferhold.New()

	s.engine = spectrum.NewEngine(s.wisdomPath, s.logger)
	if err := s.engine.SetLength(windowLen); err != nil {
		return err
	}
	s.tol = spectrum.NewTolBank(sampleRate, windowLen, s.overlap, s.phiL)

	s.startTs = ts
	s.sliceIndex = 0
	s.started = true

	return s.sink.WriteStart(ts, sampleRate)
}

func (s *Stage) Write(buf *buffer.Buffer, count int) error {
	if !s.started {
		return terrors.New(nil).Category(terrors.CategoryProtocol).
			Context("operation", "write_before_start").Build()
	}
	buf.Acquire()
	s.hold.Add(buf, count)
	return s.drain()
}

func (s *Stage) drain() error {
	windowLen := 2 * s.p
	for s.filled < windowLen {
		hb := s.hold.Oldest()
		if hb == nil {
			break
		}
		need := windowLen - s.filled
		avail := hb.Remaining()
		n := need
		if avail < n {
			n = avail
		}
		if n <= 0 {
			break
		}
		copy(s.winSamples[s.filled:s.filled+n], hb.Data()[:n])
		s.filled += n
		s.hold.Advance(hb, n)

		if s.filled == windowLen {
			if err := s.emitSlice(); err != nil {
				return err
			}
			copy(s.winSamples[0:s.p], s.winSamples[s.p:windowLen])
			s.filled = s.p
		}
	}

	// Trim anything the pulse-replay logic no longer needs: a slice
	// stage only ever needs the retained tail, which hold.Advance
	// already bounds via release.
	return nil
}

func (s *Stage) emitSlice() error {
	windowLen := 2 * s.p

	peakPos, peakNeg := int32(math.MinInt32), int32(math.MaxInt32)
	var peakPosOffset, peakNegOffset int
	var sum1, sum2, sum3, sum4 float64

	half := s.p / 2
	for j := 0; j < s.p; j++ {
		idx := half + j
		x := s.winSamples[idx]
		xf := float64(x)
		x2 := xf * xf
		sum1 += x2
		x4 := x2 * x2
		sum2 += x4
		x6 := x4 * x2
		sum3 += x6
		x8 := x4 * x4
		sum4 += x8
		if x > peakPos {
			peakPos = x
			peakPosOffset = j
		}
		if x < peakNeg {
			peakNeg = x
			peakNegOffset = j
		}
	}

	fftBuf, err := s.engine.Open()
	if err != nil {
		return err
	}
	for idx := 0; idx < windowLen; idx++ {
		fftBuf[idx] = float64(s.winSamples[idx]) * s.window[idx]
	}
	if err := s.engine.Transform(); err != nil {
		return err
	}

	tols := make([]float64, s.tol.NumBands())
	s.tol.Calculate(fftBuf, tols)

	result := pipeline.TimeSliceResult{
		PeakPositive:       peakPos,
		PeakNegative:       peakNeg,
		PeakPositiveOffset: peakPosOffset,
		PeakNegativeOffset: peakNegOffset,
		Sum1:               sum1,
		Sum2:               sum2,
		Sum3:               sum3,
		Sum4:               sum4,
		Tols:               tols,
	}

	sliceTs := s.startTs.Add(s.sliceIndex*int64(s.p), s.sampleRate)
	s.sliceIndex++

	return s.sink.WriteTimeSlice(sliceTs, result)
}

func (s *Stage) Resync(ts tstamp.Timestamp) error {
	s.hold.ReleaseAll()
	for i := range s.winSamples {
		s.winSamples[i] = 0
	}
	s.filled = s.p
	return s.sink.WriteResync(ts)
}

func (s *Stage) Exit() error {
	if s.hold != nil {
		s.hold.ReleaseAll()
	}
	return s.sink.Close()
}
