package wire

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/tuna/internal/tconf"
)

func testSettings() *tconf.Settings {
	s := &tconf.Settings{SampleRate: 8000}
	s.Pulse.Tw = 0.1
	s.Pulse.Tc = 0.01
	s.Pulse.Td = 0.05
	s.Pulse.PulseMaxDuration = 1
	s.Pulse.PulseMinDecay = 0.05
	s.Pulse.ThresholdRatio = 4
	s.Pulse.DecayThresholdRatio = 2
	s.Pulse.SampleLimit = 1
	s.TimeSlice.Overlap = 0.4
	s.TimeSlice.PhiL = 3
	return s
}

func TestBuildWithZeroInputAndNullOutputRunsAndStops(t *testing.T) {
	pipe, err := Build(testSettings(), "zero", []string{"null"})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- pipe.Run() }()

	time.Sleep(10 * time.Millisecond)
	pipe.Stop(nil)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("pipeline did not stop")
	}
	assert.NoError(t, pipe.Exit())
}

func TestBuildRejectsUnknownInputKind(t *testing.T) {
	_, err := Build(testSettings(), "not-a-real-source", []string{"null"})
	assert.Error(t, err)
}

func TestBuildRejectsAds1672AsNotBuiltIn(t *testing.T) {
	_, err := Build(testSettings(), "ads1672", []string{"null"})
	assert.Error(t, err)
}

func TestBuildRejectsUnknownOutputKind(t *testing.T) {
	_, err := Build(testSettings(), "zero", []string{"not-a-real-sink"})
	assert.Error(t, err)
}

func TestBuildWithCSVTimeSliceOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "slices.csv")
	pipe, err := Build(testSettings(), "zero", []string{"time_slice:" + path})
	require.NoError(t, err)
	require.NoError(t, pipe.Exit())
}

func TestBuildWithDATExtensionPicksDATSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "slices.dat")
	pipe, err := Build(testSettings(), "zero", []string{"pulse:" + path})
	require.NoError(t, err)
	require.NoError(t, pipe.Exit())
}

func TestBuildRejectsNonNumericMaxSamples(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out")
	_, err := Build(testSettings(), "zero", []string{"sndfile:" + path + ",notanumber"})
	assert.Error(t, err)
}

func TestBuildWithMultipleOutputsFansOut(t *testing.T) {
	csvPath := filepath.Join(t.TempDir(), "a.csv")
	datPath := filepath.Join(t.TempDir(), "b.dat")
	pipe, err := Build(testSettings(), "zero", []string{"time_slice:" + csvPath, "pulse:" + datPath})
	require.NoError(t, err)
	require.NoError(t, pipe.Exit())
}
