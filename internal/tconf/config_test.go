package tconf

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdirToTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	cwd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(cwd) })
	return dir
}

func TestLoadAppliesDefaultsWithNoConfigFile(t *testing.T) {
	chdirToTemp(t)

	settings, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 48000, settings.SampleRate)
	assert.Equal(t, "zero:", settings.Input)
	assert.Equal(t, "null:", settings.Output)
	assert.Equal(t, 0.1, settings.Pulse.Tw)
	assert.Equal(t, 4, settings.Pulse.ThresholdRatio)
	assert.Equal(t, 0.4, settings.TimeSlice.Overlap)
	assert.Equal(t, 3, settings.TimeSlice.PhiL)
	assert.Equal(t, "daily", settings.Log.Rotation)
}

func TestLoadOverlaysConfigFileOverDefaults(t *testing.T) {
	dir := chdirToTemp(t)

	yaml := []byte("sample_rate: 96000\ninput: \"sndfile:test.wav\"\npulse:\n  tw: 0.25\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tuna.yaml"), yaml, 0o644))

	settings, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 96000, settings.SampleRate)
	assert.Equal(t, "sndfile:test.wav", settings.Input)
	assert.Equal(t, 0.25, settings.Pulse.Tw)
	// Fields absent from the overlay must still carry their defaults.
	assert.Equal(t, 0.01, settings.Pulse.Tc)
}
