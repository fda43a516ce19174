// Package wire is TUNA's pipeline-glue component: it turns the CLI's
// --input/--output strings and a loaded tconf.Settings into a running
// Producer -> Queue -> {TimeSlice, Pulse, Recorder} -> Sink(s) graph,
// the same wiring role birdnet-go's cmd/realtime.Command plays for
// BirdNET's analysis pipeline.
package wire

import (
	"strconv"
	"strings"

	"github.com/tphakala/tuna/internal/tconf"
	"github.com/tphakala/tuna/internal/terrors"
	"github.com/tphakala/tuna/internal/tlog"
	"github.com/tphakala/tuna/internal/tuna/bufq"
	"github.com/tphakala/tuna/internal/tuna/pipeline"
	"github.com/tphakala/tuna/internal/tuna/pulse"
	"github.com/tphakala/tuna/internal/tuna/recorder"
	"github.com/tphakala/tuna/internal/tuna/sink"
	"github.com/tphakala/tuna/internal/tuna/source"
	"github.com/tphakala/tuna/internal/tuna/timeslice"
)

// defaultRecorderMaxSamples caps a rotating sndfile output at ten
// minutes of audio when the CLI spec doesn't name an explicit count.
const defaultRecorderMaxSamples = 10 * 60

// Pipeline is a fully wired graph ready to Run. Exit tears down the
// queue's worker and cascades Exit through every downstream, in
// reverse of how the graph was built.
type Pipeline struct {
	producer pipeline.Producer
	queue    *bufq.Queue
}

// Run blocks until the producer stops or its source reaches EOF,
// returning the recorded stop condition.
func (p *Pipeline) Run() error { return p.producer.Run() }

// Stop requests the producer halt at its next loop boundary.
func (p *Pipeline) Stop(cause error) { p.producer.Stop(cause) }

// Exit drains and joins the queue's worker, returning any error it
// captured from a downstream failure.
func (p *Pipeline) Exit() error { return p.queue.Exit() }

// Build wires a complete pipeline from settings. outputSpecs are the
// CLI's --output values (one per flag occurrence); each may itself
// carry a comma-separated sub-argument (e.g. "sndfile:prefix,480000").
func Build(settings *tconf.Settings, inputSpec string, outputSpecs []string) (*Pipeline, error) {
	logger := tlog.ForComponent("wire")

	downstreams, err := buildOutputs(settings, outputSpecs, logger)
	if err != nil {
		return nil, err
	}

	queue := bufq.NewQueue(pipeline.NewFanout(downstreams...), logger)

	producer, err := buildProducer(settings, inputSpec, queue.AsConsumer(), logger)
	if err != nil {
		_ = queue.Exit()
		return nil, err
	}

	return &Pipeline{producer: producer, queue: queue}, nil
}

func splitKindSpec(s string) (kind, rest string) {
	kind, rest, found := strings.Cut(s, ":")
	if !found {
		return s, ""
	}
	return kind, rest
}

func buildProducer(settings *tconf.Settings, spec string, downstream pipeline.Consumer, logger tlog.Logger) (pipeline.Producer, error) {
	kind, rest := splitKindSpec(spec)
	switch kind {
	case "zero":
		return source.NewZero(settings.SampleRate, downstream), nil
	case "sndfile":
		return source.NewSndfile(rest, downstream, logger), nil
	case "alsa":
		return source.NewAlsa(rest, settings.SampleRate, downstream, logger), nil
	case "ads1672":
		// Recognized as a CLI input kind, but no concrete driver ships
		// in this binary — source drivers are external collaborators.
		// Recognized so the failure is a clear configuration error,
		// not a silent no-op.
		return nil, terrors.Newf("input driver %q not built in this binary", kind).
			Category(terrors.CategoryValidation).Context("input", spec).Build()
	default:
		return nil, terrors.Newf("unknown input kind %q", kind).
			Category(terrors.CategoryValidation).Context("input", spec).Build()
	}
}

func buildOutputs(settings *tconf.Settings, specs []string, logger tlog.Logger) ([]pipeline.Consumer, error) {
	var downstreams []pipeline.Consumer
	for _, spec := range specs {
		d, err := buildOutput(settings, spec, logger)
		if err != nil {
			return nil, err
		}
		if d != nil {
			downstreams = append(downstreams, d)
		}
	}
	return downstreams, nil
}

func buildOutput(settings *tconf.Settings, spec string, logger tlog.Logger) (pipeline.Consumer, error) {
	kind, rest := splitKindSpec(spec)
	switch kind {
	case "null", "":
		return nil, nil
	case "time_slice":
		s, err := openRecordSink(rest)
		if err != nil {
			return nil, err
		}
		return timeslice.New(s, settings.WisdomPath, settings.TimeSlice.Overlap, settings.TimeSlice.PhiL, logger), nil
	case "pulse":
		s, err := openRecordSink(rest)
		if err != nil {
			return nil, err
		}
		cfg := pulse.Config{
			Tw:                  settings.Pulse.Tw,
			Tc:                  settings.Pulse.Tc,
			Td:                  settings.Pulse.Td,
			PulseMaxDuration:    settings.Pulse.PulseMaxDuration,
			PulseMinDecay:       settings.Pulse.PulseMinDecay,
			ThresholdRatio:      settings.Pulse.ThresholdRatio,
			DecayThresholdRatio: settings.Pulse.DecayThresholdRatio,
			SampleLimit:         settings.Pulse.SampleLimit,
		}
		return pulse.New(s, cfg, settings.WisdomPath, logger), nil
	case "sndfile":
		prefix, maxSamplesStr, _ := strings.Cut(rest, ",")
		maxSamples := defaultRecorderMaxSamples * settings.SampleRate
		if maxSamplesStr != "" {
			n, err := strconv.Atoi(maxSamplesStr)
			if err != nil {
				return nil, terrors.New(err).Category(terrors.CategoryValidation).
					Context("output", spec).Build()
			}
			maxSamples = n
		}
		return recorder.New(prefix, maxSamples), nil
	default:
		return nil, terrors.Newf("unknown output kind %q", kind).
			Category(terrors.CategoryValidation).Context("output", spec).Build()
	}
}

// openRecordSink picks CSV or DAT framing by file extension: the CLI
// surface names only the CSV case explicitly, but a ".dat" path is an
// unambiguous, discoverable way to opt into the binary format without
// a second flag.
func openRecordSink(path string) (pipeline.Sink, error) {
	if strings.HasSuffix(strings.ToLower(path), ".dat") {
		return sink.NewDAT(path)
	}
	return sink.NewCSV(path)
}
