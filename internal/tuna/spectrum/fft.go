// Package spectrum wraps a real-to-complex FFT and the third-octave
// level (TOL) filter bank shared by the time-slice and pulse stages.
// The FFT backend is gonum's dsp/fourier package (the pack's only
// dedicated DSP dependency, seen in
// _examples/iamprashant-voice-ai/go.mod) rather than a hand-rolled
// transform or a cgo wrapper around FFTW — gonum's FFT handles
// arbitrary lengths, which matters because the pulse stage's
// fft length is not guaranteed to be a power of two.
package spectrum

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"sync"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/tphakala/tuna/internal/terrors"
	"github.com/tphakala/tuna/internal/tlog"
)

// Engine is a resizable real-to-complex transform with a re-entrancy
// guard: Open grants exclusive access to the time-domain scratch
// buffer, Transform executes the plan in place and releases the
// guard.
type Engine struct {
	mu         sync.Mutex
	length     int
	timeBuf    []float64
	coeffBuf   []complex128
	plans      map[int]*fourier.FFT
	open       bool
	wisdomPath string
	logger     tlog.Logger
}

// NewEngine constructs a Spectrum engine. wisdomPath, if non-empty, is
// the best-effort FFT planning-wisdom file; logger may be tlog.Discard.
func NewEngine(wisdomPath string, logger tlog.Logger) *Engine {
	if logger == nil {
		logger = tlog.Discard
	}
	e := &Engine{
		plans:      make(map[int]*fourier.FFT),
		wisdomPath: wisdomPath,
		logger:     logger,
	}
	e.LoadWisdom()
	return e
}

// SetLength prepares a plan for transforms of length n. Only
// reallocates the scratch buffer on growth; a plan for n is cached so
// later calls with the same n are free.
func (e *Engine) SetLength(n int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.open {
		return terrors.New(nil).
			Category(terrors.CategoryProtocol).
			Context("operation", "set_length_while_open").
			Build()
	}
	if n <= 0 {
		return terrors.Newf("invalid fft length %d", n).
			Category(terrors.CategoryValidation).
			Build()
	}

	if cap(e.timeBuf) < n {
		e.timeBuf = make([]float64, n)
	} else {
		e.timeBuf = e.timeBuf[:n]
		clear(e.timeBuf)
	}
	e.length = n

	if _, ok := e.plans[n]; !ok {
		e.plans[n] = fourier.NewFFT(n)
		e.logger.Debugf("spectrum: planned new fft length %d", n)
	}
	return nil
}

// Len returns the currently configured transform length.
func (e *Engine) Len() int { return e.length }

// Open grants exclusive mutable access to the length-N time-domain
// buffer. Must be matched by exactly one Transform or Abort call
// before Open may be called again.
func (e *Engine) Open() ([]float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.open {
		return nil, terrors.New(nil).
			Category(terrors.CategoryProtocol).
			Context("operation", "open_while_open").
			Build()
	}
	e.open = true
	return e.timeBuf, nil
}

// Abort releases the Open guard without running a transform, for
// callers that populated the buffer but decided not to analyse it.
func (e *Engine) Abort() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.open = false
}

// Transform executes the plan and overwrites the first N/2 floats of
// the buffer with the per-bin magnitude-squared |X[k]|^2 / N. The
// remaining floats are left undefined (callers must not read past
// N/2). Releases the Open guard.
func (e *Engine) Transform() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.open {
		return terrors.New(nil).
			Category(terrors.CategoryProtocol).
			Context("operation", "transform_without_open").
			Build()
	}
	plan, ok := e.plans[e.length]
	if !ok {
		e.open = false
		return terrors.Newf("no plan for length %d", e.length).
			Category(terrors.CategoryState).
			Build()
	}

	e.coeffBuf = plan.Coefficients(e.coeffBuf, e.timeBuf)

	n := e.length
	scale := 1.0 / float64(n)
	for k := 0; k < n/2; k++ {
		c := e.coeffBuf[k]
		mag2 := real(c)*real(c) + imag(c)*imag(c)
		e.timeBuf[k] = mag2 * scale
	}

	e.open = false
	return nil
}

// SaveWisdom persists the set of FFT lengths this engine has planned,
// best-effort, so a future process can pre-warm those plans. gonum has
// no native wisdom format to serialize (unlike FFTW's plan cache);
// this is a deliberate reinterpretation of "planning wisdom" as a list
// of lengths to re-plan eagerly on startup, documented in DESIGN.md.
func (e *Engine) SaveWisdom() {
	if e.wisdomPath == "" {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	f, err := os.Create(e.wisdomPath)
	if err != nil {
		e.logger.Warnf("spectrum: could not save wisdom file %s: %v", e.wisdomPath, err)
		return
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for n := range e.plans {
		fmt.Fprintln(w, n)
	}
	w.Flush()
}

// LoadWisdom best-effort reads previously used FFT lengths and
// pre-plans them. Missing or corrupt files are silently ignored.
func (e *Engine) LoadWisdom() {
	if e.wisdomPath == "" {
		return
	}
	f, err := os.Open(e.wisdomPath)
	if err != nil {
		return
	}
	defer f.Close()

	e.mu.Lock()
	defer e.mu.Unlock()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		n, err := strconv.Atoi(sc.Text())
		if err != nil || n <= 0 {
			continue
		}
		if _, ok := e.plans[n]; !ok {
			e.plans[n] = fourier.NewFFT(n)
		}
	}
}
