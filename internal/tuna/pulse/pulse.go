// Package pulse implements a transient-pulse detector: an adaptive
// envelope-threshold onset detector with back-dated pulse starts, a
// delay-line offset detector, and an end-of-pulse FFT plus TOL
// analysis.
package pulse

import (
	"math"

	"github.com/tphakala/tuna/internal/terrors"
	"github.com/tphakala/tuna/internal/tlog"
	"github.com/tphakala/tuna/internal/tuna/buffer"
	"github.com/tphakala/tuna/internal/tuna/bufferhold"
	"github.com/tphakala/tuna/internal/tuna/minima"
	"github.com/tphakala/tuna/internal/tuna/pipeline"
	"github.com/tphakala/tuna/internal/tuna/spectrum"
	"github.com/tphakala/tuna/internal/tuna/tstamp"
)

// Config holds the stage's externally supplied, start-of-life-fixed
// parameters.
type Config struct {
	Tw, Tc, Td                   float64 // seconds
	PulseMaxDuration, PulseMinDecay float64 // seconds
	ThresholdRatio, DecayThresholdRatio int
	SampleLimit float64
}

type pulseState int

const (
	nonpulse pulseState = iota
	inpulse
)

// heldEntry pairs a retained raw buffer with the absolute stream
// position of its first (original) sample, so replay and trimming can
// reason in one global sample index space instead of per-buffer
// offsets.
type heldEntry struct {
	hb    *bufferhold.HeldBuffer
	start int64
}

// Stage is a pipeline.Consumer implementing the onset/offset pulse
// detector.
type Stage struct {
	sink       pipeline.Sink
	cfg        Config
	wisdomPath string
	logger     tlog.Logger

	sampleRate int
	decay      float64
	twW, tdW   int
	pulseMinDecayW, pulseMaxDurationW int
	fftLength  int
	scale      float64
	thresholdLimit, decayThresholdLimit int32

	engine *spectrum.Engine
	tol    *spectrum.TolBank

	minimaFilter *minima.SlidingMin
	cur          float64

	hold      *bufferhold.Hold
	heldMeta  []heldEntry
	streamPos int64

	state pulseState

	fftData                     []float64
	index                       int
	peakPos, peakNeg            int32
	peakPosOffset, peakNegOffset int
	pulseStartPos               int64

	currentMin, delayedMin, decayThreshold float64
	delay                                   []float64
	delayPos, delayFilled                   int

	startTs tstamp.Timestamp
	started bool
}

// New builds a pulse stage writing results to sink.
func New(sink pipeline.Sink, cfg Config, wisdomPath string, logger tlog.Logger) *Stage {
	if logger == nil {
		logger = tlog.Discard
	}
	return &Stage{sink: sink, cfg: cfg, wisdomPath: wisdomPath, logger: logger}
}

var _ pipeline.Consumer = (*Stage)(nil)

func (s *Stage) Start(sampleRate int, ts tstamp.Timestamp) error {
	if s.started {
		return terrors.New(nil).Category(terrors.CategoryProtocol).
			Context("operation", "start_after_start").Build()
	}
	s.sampleRate = sampleRate
	rate := float64(sampleRate)

	s.decay = math.Exp(-1 / (s.cfg.Tc * rate))
	s.twW = int(s.cfg.Tw * rate)
	s.tdW = int(s.cfg.Td * rate)
	s.pulseMinDecayW = int(s.cfg.PulseMinDecay * rate)
	s.pulseMaxDurationW = int(s.cfg.PulseMaxDuration * rate)
	s.fftLength = s.pulseMaxDurationW
	s.scale = 1.0 / s.cfg.SampleLimit
	s.thresholdLimit = buffer.SampleMax / int32(s.cfg.ThresholdRatio)
	s.decayThresholdLimit = buffer.SampleMax / int32(s.cfg.DecayThresholdRatio)

	if s.twW <= 0 || s.tdW <= 0 || s.fftLength <= 0 {
		return terrors.New(nil).Category(terrors.CategoryValidation).
			Context("tw_w", s.twW).Context("td_w", s.tdW).Context("fft_length", s.fftLength).Build()
	}

	s.engine = spectrum.NewEngine(s.wisdomPath, s.logger)
	if err := s.engine.SetLength(s.fftLength); err != nil {
		return err
	}
	s.tol = spectrum.NewTolBank(sampleRate, s.fftLength, 0.4, 3)

	s.minimaFilter = minima.New(s.twW)
	s.hold = bufferhold.New()
	s.heldMeta = nil
	s.streamPos = 0
	s.delay = make([]float64, s.tdW)

	s.state = nonpulse
	s.startTs = ts
	s.started = true

	return s.sink.WriteStart(ts, sampleRate)
}

func (s *Stage) Write(buf *buffer.Buffer, count int) error {
	if !s.started {
		return terrors.New(nil).Category(terrors.CategoryProtocol).
			Context("operation", "write_before_start").Build()
	}

	buf.Acquire()
	hb := s.hold.Add(buf, count)
	s.heldMeta = append(s.heldMeta, heldEntry{hb: hb, start: s.streamPos})

	data := buf.Data()[:count]
	for i := 0; i < count; i++ {
		if err := s.processSample(data[i]); err != nil {
			return err
		}
	}

	s.trimHoldTo(s.streamPos - int64(s.twW))
	return nil
}

func (s *Stage) processSample(x buffer.Sample) error {
	xf := float64(x)
	s.cur = math.Max(s.decay*s.cur, xf*xf)
	env := clampSample(s.cur * s.scale)

	m := s.minimaFilter.Next(env)
	threshold := clampedRatio(m, s.thresholdLimit, int32(s.cfg.ThresholdRatio))

	pos := s.streamPos
	s.streamPos++

	switch s.state {
	case nonpulse:
		if env > threshold {
			return s.enterPulse(pos, env)
		}
		return nil
	default:
		return s.liveInPulseSample(x, env)
	}
}

// enterPulse transitions NONPULSE -> PULSE, back-dating the true
// pulse start to the sliding minimum's age and replaying any retained
// history between that point and the triggering sample.
func (s *Stage) enterPulse(triggerPos int64, triggerEnv int32) error {
	age := int64(s.minimaFilter.CurrentAge())
	startPos := triggerPos - age
	if startPos < s.streamPos-int64(s.twW) {
		startPos = s.streamPos - int64(s.twW)
	}

	s.pulseStartPos = startPos
	s.index = 0
	s.fftData = make([]float64, s.fftLength)
	s.peakPos, s.peakNeg = buffer.SampleMin, buffer.SampleMax
	s.peakPosOffset, s.peakNegOffset = 0, 0
	s.currentMin = float64(triggerEnv)
	s.delayedMin = float64(triggerEnv)
	s.decayThreshold = clampedRatioF(s.currentMin, s.decayThresholdLimit, s.cfg.DecayThresholdRatio)
	for i := range s.delay {
		s.delay[i] = 0
	}
	s.delayPos, s.delayFilled = 0, 0

	s.state = inpulse

	s.replayRaw(startPos, triggerPos)
	return nil
}

// replayRaw feeds every retained raw sample in [from, to] (inclusive)
// through the FFT/peak accumulator only — not the delay-line offset
// logic, which is restricted to live in-pulse samples.
func (s *Stage) replayRaw(from, to int64) {
	for _, entry := range s.heldMeta {
		absStart := entry.start + int64(entry.hb.Cursor())
		absEnd := absStart + int64(entry.hb.Remaining())
		if absEnd <= from || absStart > to {
			continue
		}
		lo := from
		if absStart > lo {
			lo = absStart
		}
		hi := to
		if absEnd-1 < hi {
			hi = absEnd - 1
		}
		data := entry.hb.Data()
		for p := lo; p <= hi; p++ {
			s.accumulateRaw(data[p-absStart])
		}
	}
}

func (s *Stage) accumulateRaw(x buffer.Sample) (newPeakPos bool) {
	if s.index < len(s.fftData) {
		s.fftData[s.index] = float64(x)
	}
	if x > s.peakPos {
		s.peakPos = x
		s.peakPosOffset = s.index
		newPeakPos = true
	}
	if x < s.peakNeg {
		s.peakNeg = x
		s.peakNegOffset = s.index
	}
	s.index++
	return newPeakPos
}

func (s *Stage) liveInPulseSample(x buffer.Sample, env int32) error {
	newPeak := s.accumulateRaw(x)

	if newPeak {
		s.currentMin = float64(env)
		s.delayedMin = float64(env)
		s.decayThreshold = clampedRatioF(s.currentMin, s.decayThresholdLimit, s.cfg.DecayThresholdRatio)
	}

	old := s.delay[s.delayPos]
	wasFull := s.delayFilled >= len(s.delay)
	s.delay[s.delayPos] = float64(env)
	s.delayPos = (s.delayPos + 1) % len(s.delay)
	if !wasFull {
		s.delayFilled++
	}

	if s.index > s.pulseMaxDurationW {
		return s.finalizeTimeout()
	}
	if s.index-s.peakPosOffset < s.pulseMinDecayW {
		// Too soon after the peak to trust the decay reading yet;
		// still rotate the delay line above, but leave delayedMin,
		// currentMin, and decayThreshold untouched until enough
		// samples have elapsed.
		return nil
	}

	if wasFull && old < s.delayedMin {
		s.delayedMin = old
	}
	if float64(env) < s.currentMin {
		s.currentMin = float64(env)
		s.decayThreshold = clampedRatioF(s.currentMin, s.decayThresholdLimit, s.cfg.DecayThresholdRatio)
	}

	if s.delayedMin < s.decayThreshold {
		return s.finalizeNormal()
	}
	return nil
}

func quantileOffsets(data []float64) (off5, off95 int) {
	var total float64
	for _, v := range data {
		total += v * v
	}
	if total <= 0 {
		return 0, len(data) - 1
	}
	target := total * 0.05

	var cum float64
	for i, v := range data {
		cum += v * v
		if cum >= target {
			off5 = i
			break
		}
	}
	cum = 0
	for i := len(data) - 1; i >= 0; i-- {
		cum += data[i] * data[i]
		if cum >= target {
			off95 = i
			break
		}
	}
	return off5, off95
}

func (s *Stage) finalizeNormal() error {
	off5, off95 := quantileOffsets(s.fftData)

	fftBuf, err := s.engine.Open()
	if err != nil {
		return err
	}
	copy(fftBuf, s.fftData)
	if err := s.engine.Transform(); err != nil {
		return err
	}

	tols := make([]float64, s.tol.NumBands())
	s.tol.Calculate(fftBuf, tols)

	result := pipeline.PulseResult{
		PeakPositive:       s.peakPos,
		PeakNegative:       s.peakNeg,
		PeakPositiveOffset: s.peakPosOffset,
		PeakNegativeOffset: s.peakNegOffset,
		Offset5:            off5,
		Offset95:           off95,
		Tols:               tols,
	}
	ts := s.startTs.Add(s.pulseStartPos, s.sampleRate)
	s.state = nonpulse
	return s.sink.WritePulse(ts, result)
}

func (s *Stage) finalizeTimeout() error {
	result := pipeline.PulseResult{
		PeakPositive:       s.peakPos,
		PeakNegative:       s.peakNeg,
		PeakPositiveOffset: s.peakPosOffset,
		PeakNegativeOffset: s.peakNegOffset,
		AttackOnly:         true,
	}
	ts := s.startTs.Add(s.pulseStartPos, s.sampleRate)
	s.state = nonpulse
	return s.sink.WritePulse(ts, result)
}

// trimHoldTo releases or advances held buffers so nothing before the
// absolute sample index target remains retained. Used both for the
// post-write bound to Tw_w samples and for back-dating's
// discard_leading_data.
func (s *Stage) trimHoldTo(target int64) {
	i := 0
	for i < len(s.heldMeta) {
		entry := s.heldMeta[i]
		absStart := entry.start + int64(entry.hb.Cursor())
		remaining := int64(entry.hb.Remaining())
		if remaining == 0 || absStart+remaining <= target {
			s.hold.Advance(entry.hb, entry.hb.Remaining())
			i++
			continue
		}
		if absStart < target {
			s.hold.Advance(entry.hb, int(target-absStart))
		}
		break
	}
	s.heldMeta = s.heldMeta[i:]
}

func (s *Stage) Resync(ts tstamp.Timestamp) error {
	s.hold.ReleaseAll()
	s.heldMeta = nil
	s.minimaFilter.Reset()
	s.cur = 0
	s.state = nonpulse
	return s.sink.WriteResync(ts)
}

func (s *Stage) Exit() error {
	if s.hold != nil {
		s.hold.ReleaseAll()
	}
	return s.sink.Close()
}

func clampSample(v float64) int32 {
	if v >= float64(buffer.SampleMax) {
		return buffer.SampleMax
	}
	if v <= float64(buffer.SampleMin) {
		return buffer.SampleMin
	}
	return int32(v)
}

// clampedRatio is an overflow guard: if min is at or below limit,
// scale it by ratio; otherwise saturate at SampleMax.
func clampedRatio(min, limit int32, ratio int32) int32 {
	if min <= limit {
		return min * ratio
	}
	return buffer.SampleMax
}

func clampedRatioF(min float64, limit int32, ratio int) float64 {
	if min <= float64(limit) {
		return min * float64(ratio)
	}
	return float64(buffer.SampleMax)
}
