package source

import (
	"io"
	"os"
	"strings"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/tphakala/flac"

	"github.com/tphakala/tuna/internal/terrors"
	"github.com/tphakala/tuna/internal/tlog"
	"github.com/tphakala/tuna/internal/tuna/buffer"
	"github.com/tphakala/tuna/internal/tuna/pipeline"
	"github.com/tphakala/tuna/internal/tuna/tstamp"
)

const sndfileChunkSamples = 4096

// pcmSource abstracts the two decoders this package supports; both are
// read to completion, one mono int32 chunk at a time.
type pcmSource interface {
	sampleRate() int
	// nextChunk fills dst (reusing its backing array if non-nil) and
	// returns the samples actually read; io.EOF once exhausted.
	nextChunk(dst []int32) ([]int32, error)
	close() error
}

// Sndfile is a Producer reading mono PCM from a WAV or FLAC file
// (input kind "sndfile"), grounded on birdnet-go's birdnet.go
// readAudioData chunked-PCMBuffer loop for WAV, and on
// github.com/tphakala/flac (the pack's FLAC dependency) for FLAC.
type Sndfile struct {
	path       string
	downstream pipeline.Consumer
	pool       *buffer.Pool
	logger     tlog.Logger

	stopCh chan struct{}
	cause  error
}

var _ pipeline.Producer = (*Sndfile)(nil)

func NewSndfile(path string, downstream pipeline.Consumer, logger tlog.Logger) *Sndfile {
	if logger == nil {
		logger = tlog.Discard
	}
	return &Sndfile{path: path, downstream: downstream, pool: buffer.NewPool(), logger: logger, stopCh: make(chan struct{})}
}

func (s *Sndfile) openSource() (pcmSource, io.Closer, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, nil, terrors.New(err).Category(terrors.CategoryFileIO).
			Context("path", s.path).Build()
	}

	if strings.HasSuffix(strings.ToLower(s.path), ".flac") {
		stream, err := flac.New(f)
		if err != nil {
			f.Close()
			return nil, nil, terrors.New(err).Category(terrors.CategoryFileIO).
				Context("path", s.path).Context("codec", "flac").Build()
		}
		return &flacSource{stream: stream}, f, nil
	}

	dec := wav.NewDecoder(f)
	dec.ReadInfo()
	if !dec.IsValidFile() {
		f.Close()
		return nil, nil, terrors.New(nil).Category(terrors.CategoryFileIO).
			Context("path", s.path).Context("error", "not a valid wav file").Build()
	}
	return &wavSource{dec: dec}, f, nil
}

func (s *Sndfile) Run() error {
	src, closer, err := s.openSource()
	if err != nil {
		return err
	}
	defer closer.Close()

	if err := s.downstream.Start(src.sampleRate(), tstamp.Timestamp{}); err != nil {
		return err
	}

	var scratch []int32
	for {
		select {
		case <-s.stopCh:
			if err := s.downstream.Exit(); err != nil {
				return err
			}
			return s.cause
		default:
		}

		chunk, err := src.nextChunk(scratch)
		if err == io.EOF {
			if err := s.downstream.Exit(); err != nil {
				return err
			}
			return nil
		}
		if err != nil {
			s.downstream.Exit()
			return terrors.New(err).Category(terrors.CategoryFileIO).
				Context("path", s.path).Build()
		}
		scratch = chunk
		if len(chunk) == 0 {
			continue
		}

		buf, _, err := s.pool.Acquire(len(chunk))
		if err != nil {
			return err
		}
		copy(buf.Data(), chunk)
		if werr := s.downstream.Write(buf, len(chunk)); werr != nil {
			buf.Release()
			return werr
		}
		buf.Release()
	}
}

func (s *Sndfile) Stop(cause error) {
	s.cause = cause
	select {
	case <-s.stopCh:
	default:
		close(s.stopCh)
	}
}

type wavSource struct {
	dec *wav.Decoder
}

func (w *wavSource) sampleRate() int { return int(w.dec.SampleRate) }

func (w *wavSource) nextChunk(dst []int32) ([]int32, error) {
	buf := &goaudio.IntBuffer{
		Data:   make([]int, sndfileChunkSamples),
		Format: &goaudio.Format{SampleRate: int(w.dec.SampleRate), NumChannels: 1},
	}
	n, err := w.dec.PCMBuffer(buf)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, io.EOF
	}
	if cap(dst) < n {
		dst = make([]int32, n)
	}
	dst = dst[:n]
	shift := bitDepthShift(w.dec.BitDepth)
	for i := 0; i < n; i++ {
		dst[i] = int32(buf.Data[i]) << shift
	}
	return dst, nil
}

func (w *wavSource) close() error { return nil }

// bitDepthShift left-shifts samples narrower than 32 bits up to full
// scale, so every sndfile source yields samples in the same int32
// range the pipeline's Sample type expects.
func bitDepthShift(bitDepth int) uint {
	switch bitDepth {
	case 8:
		return 24
	case 16:
		return 16
	case 24:
		return 8
	default:
		return 0
	}
}

type flacSource struct {
	stream *flac.Stream
}

func (f *flacSource) sampleRate() int { return int(f.stream.Info.SampleRate) }

func (f *flacSource) nextChunk(dst []int32) ([]int32, error) {
	fr, err := f.stream.ParseNext()
	if err != nil {
		return nil, err
	}
	n := len(fr.Subframes[0].Samples)
	if cap(dst) < n {
		dst = make([]int32, n)
	}
	dst = dst[:n]
	shift := 32 - uint(f.stream.Info.BitsPerSample)
	for i := 0; i < n; i++ {
		dst[i] = fr.Subframes[0].Samples[i] << shift
	}
	return dst, nil
}

func (f *flacSource) close() error { return nil }
