// Package recorder implements a rotating sound-file output: raw
// signal samples are written to sequentially numbered WAV files, each
// capped at a configured sample count, using go-audio/wav (the same
// encoder family birdnet-go uses for decode in birdnet.go, here run
// in reverse for encode).
package recorder

import (
	"fmt"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/tphakala/tuna/internal/terrors"
	"github.com/tphakala/tuna/internal/tuna/buffer"
	"github.com/tphakala/tuna/internal/tuna/pipeline"
	"github.com/tphakala/tuna/internal/tuna/tstamp"
)

// Recorder is a pipeline.Consumer writing raw signal to rotating WAV
// files named prefix000.wav, prefix001.wav, ...
type Recorder struct {
	prefix        string
	maxSamples    int
	sampleRate    int
	bitDepth      int
	fileIndex     int
	samplesInFile int

	f   *os.File
	enc *wav.Encoder

	started bool
}

var _ pipeline.Consumer = (*Recorder)(nil)

// New builds a rotating-file recorder. maxSamples bounds each file's
// sample count before rolling to the next.
func New(prefix string, maxSamples int) *Recorder {
	return &Recorder{prefix: prefix, maxSamples: maxSamples, bitDepth: 32}
}

func (r *Recorder) Start(sampleRate int, ts tstamp.Timestamp) error {
	if r.started {
		return terrors.New(nil).Category(terrors.CategoryProtocol).
			Context("operation", "start_after_start").Build()
	}
	r.sampleRate = sampleRate
	r.started = true
	return r.rollFile()
}

func (r *Recorder) rollFile() error {
	if r.enc != nil {
		if err := r.enc.Close(); err != nil {
			return r.ioErr(err)
		}
		if err := r.f.Close(); err != nil {
			return r.ioErr(err)
		}
	}

	path := fmt.Sprintf("%s%03d.wav", r.prefix, r.fileIndex)
	r.fileIndex++
	r.samplesInFile = 0

	f, err := os.Create(path)
	if err != nil {
		return terrors.New(err).Category(terrors.CategoryFileIO).
			Context("path", path).Build()
	}
	r.f = f
	r.enc = wav.NewEncoder(f, r.sampleRate, r.bitDepth, 1, 1)
	return nil
}

func (r *Recorder) Write(buf *buffer.Buffer, count int) error {
	if !r.started {
		return terrors.New(nil).Category(terrors.CategoryProtocol).
			Context("operation", "write_before_start").Build()
	}

	data := buf.Data()[:count]
	pos := 0
	for pos < len(data) {
		room := r.maxSamples - r.samplesInFile
		if room <= 0 {
			if err := r.rollFile(); err != nil {
				return err
			}
			room = r.maxSamples
		}
		n := len(data) - pos
		if n > room {
			n = room
		}
		chunk := make([]int, n)
		for i := 0; i < n; i++ {
			chunk[i] = int(data[pos+i])
		}
		ib := &goaudio.IntBuffer{
			Data:   chunk,
			Format: &goaudio.Format{SampleRate: r.sampleRate, NumChannels: 1},
		}
		if err := r.enc.Write(ib); err != nil {
			return r.ioErr(err)
		}
		r.samplesInFile += n
		pos += n
	}
	return nil
}

func (r *Recorder) Resync(ts tstamp.Timestamp) error {
	return r.rollFile()
}

func (r *Recorder) Exit() error {
	if r.enc != nil {
		if err := r.enc.Close(); err != nil {
			return r.ioErr(err)
		}
	}
	if r.f != nil {
		return r.f.Close()
	}
	return nil
}

func (r *Recorder) ioErr(err error) error {
	return terrors.New(err).Category(terrors.CategoryFileIO).
		Context("sink", "recorder").Build()
}
