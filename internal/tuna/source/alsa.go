package source

import (
	"runtime"
	"sync"

	"github.com/gen2brain/malgo"
	"github.com/smallnest/ringbuffer"

	"github.com/tphakala/tuna/internal/terrors"
	"github.com/tphakala/tuna/internal/tlog"
	"github.com/tphakala/tuna/internal/tuna/buffer"
	"github.com/tphakala/tuna/internal/tuna/pipeline"
	"github.com/tphakala/tuna/internal/tuna/tstamp"
)

// alsaRingCapacity bounds the raw-byte staging buffer between malgo's
// capture callback and Run's conversion loop: four seconds of 16-bit
// mono audio at the highest sample rate TUNA is likely to see.
const alsaRingCapacity = 4 * 192000 * 2

// Alsa is a Producer driving live capture through malgo (input kind
// "alsa:DEVICE"), grounded on birdnet-go's
// internal/audiocore/sources/malgo package for backend selection by
// runtime.GOOS and the malgo.InitContext/InitDevice/DeviceCallbacks.Data
// lifecycle. The callback-to-Run staging uses
// github.com/smallnest/ringbuffer, the same library birdnet-go
// benchmarks its own capture buffer against in
// internal/myaudio/analysis_buffer_bench_test.go, here used directly
// rather than as a comparison baseline.
type Alsa struct {
	device     string
	sampleRate int
	downstream pipeline.Consumer
	pool       *buffer.Pool
	logger     tlog.Logger

	rb      *ringbuffer.RingBuffer
	notify  chan struct{}
	pending []byte
	errCh   chan error

	mu     sync.Mutex
	cause  error
	stopCh chan struct{}
}

var _ pipeline.Producer = (*Alsa)(nil)

// NewAlsa builds a live-capture producer. Run always captures from the
// backend's default capture device; device is only recorded in error
// context and does not select a device.
func NewAlsa(device string, sampleRate int, downstream pipeline.Consumer, logger tlog.Logger) *Alsa {
	if logger == nil {
		logger = tlog.Discard
	}
	return &Alsa{
		device:     device,
		sampleRate: sampleRate,
		downstream: downstream,
		pool:       buffer.NewPool(),
		logger:     logger,
		rb:         ringbuffer.New(alsaRingCapacity),
		notify:     make(chan struct{}, 1),
		errCh:      make(chan error, 1),
		stopCh:     make(chan struct{}),
	}
}

func backendForPlatform() (malgo.Backend, error) {
	switch runtime.GOOS {
	case "linux":
		return malgo.BackendAlsa, nil
	case "windows":
		return malgo.BackendWasapi, nil
	case "darwin":
		return malgo.BackendCoreaudio, nil
	default:
		return malgo.BackendNull, terrors.New(nil).Category(terrors.CategoryAudio).
			Context("os", runtime.GOOS).Context("error", "unsupported platform").Build()
	}
}

func (a *Alsa) Run() error {
	backend, err := backendForPlatform()
	if err != nil {
		return err
	}

	ctx, err := malgo.InitContext([]malgo.Backend{backend}, malgo.ContextConfig{}, nil)
	if err != nil {
		return terrors.New(err).Category(terrors.CategoryAudio).
			Context("operation", "init_context").Build()
	}
	defer ctx.Uninit()

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Channels = 1
	deviceConfig.SampleRate = uint32(a.sampleRate)
	deviceConfig.Alsa.NoMMap = 1

	callbacks := malgo.DeviceCallbacks{
		Data: a.onData,
	}
	device, err := malgo.InitDevice(ctx.Context, deviceConfig, callbacks)
	if err != nil {
		return terrors.New(err).Category(terrors.CategoryAudio).
			Context("device", a.device).Context("operation", "init_device").Build()
	}
	defer device.Uninit()

	if err := device.Start(); err != nil {
		return terrors.New(err).Category(terrors.CategoryAudio).
			Context("device", a.device).Context("operation", "start_device").Build()
	}
	defer device.Stop()

	if err := a.downstream.Start(a.sampleRate, tstamp.Timestamp{}); err != nil {
		return err
	}

	for {
		select {
		case <-a.stopCh:
			if err := a.downstream.Exit(); err != nil {
				return err
			}
			a.mu.Lock()
			cause := a.cause
			a.mu.Unlock()
			return cause
		case err := <-a.errCh:
			a.downstream.Exit()
			return err
		case <-a.notify:
			if err := a.drainRing(); err != nil {
				a.downstream.Exit()
				return err
			}
		}
	}
}

// drainRing reads every byte currently staged in the ring buffer,
// converts complete 16-bit mono frames to the pipeline's int32 Sample
// range, and writes them downstream. A trailing odd byte (a capture
// callback boundary that split a frame) is held in pending until the
// next drain completes it.
func (a *Alsa) drainRing() error {
	var chunk [4096]byte
	for {
		n, _ := a.rb.Read(chunk[:])
		if n == 0 {
			return nil
		}

		data := append(a.pending, chunk[:n]...)
		usable := len(data) - len(data)%2
		samples := make([]int32, usable/2)
		for i := 0; i < usable; i += 2 {
			s16 := int16(uint16(data[i]) | uint16(data[i+1])<<8)
			samples[i/2] = int32(s16) << 16
		}
		a.pending = append(a.pending[:0], data[usable:]...)

		if len(samples) == 0 {
			continue
		}

		buf, _, err := a.pool.Acquire(len(samples))
		if err != nil {
			return err
		}
		copy(buf.Data(), samples)
		if werr := a.downstream.Write(buf, len(samples)); werr != nil {
			buf.Release()
			return werr
		}
		buf.Release()
	}
}

// onData is malgo's capture callback: it stages raw bytes into the
// ring buffer and wakes Run's drain loop, never blocking the audio
// callback on pipeline back-pressure.
func (a *Alsa) onData(_, input []byte, frameCount uint32) {
	if _, err := a.rb.Write(input); err != nil {
		a.logger.Warnf("alsa: dropped %d frames, ring buffer full: %v", frameCount, err)
	}
	select {
	case a.notify <- struct{}{}:
	default:
	}
}

func (a *Alsa) Stop(cause error) {
	a.mu.Lock()
	a.cause = cause
	a.mu.Unlock()
	select {
	case <-a.stopCh:
	default:
		close(a.stopCh)
	}
}
