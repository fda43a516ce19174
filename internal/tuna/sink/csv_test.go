package sink

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/tuna/internal/tuna/pipeline"
	"github.com/tphakala/tuna/internal/tuna/tstamp"
)

func TestCSVWritesStartResyncAndRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	c, err := NewCSV(path)
	require.NoError(t, err)

	require.NoError(t, c.WriteStart(tstamp.Timestamp{Sec: 1, Nsec: 2}, 48000))
	require.NoError(t, c.WriteTimeSlice(tstamp.Timestamp{Sec: 1, Nsec: 3}, pipeline.TimeSliceResult{
		PeakPositive: 100, PeakNegative: -50, Sum1: 1.5, Tols: []float64{0.1, 0.2},
	}))
	require.NoError(t, c.WriteResync(tstamp.Timestamp{Sec: 2}))
	require.NoError(t, c.WritePulse(tstamp.Timestamp{Sec: 3}, pipeline.PulseResult{
		PeakPositive: 200, AttackOnly: true,
	}))
	require.NoError(t, c.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, 4)

	assert.True(t, strings.HasPrefix(lines[0], "START, 1.000000002, 48000"))
	assert.Contains(t, lines[1], "TIME_SLICE")
	assert.Contains(t, lines[1], "100")
	assert.True(t, strings.HasPrefix(lines[2], "RESYNC, 2.000000000"))
	assert.Contains(t, lines[3], "PULSE_ATTACK_ONLY")
}

func TestCSVOpenFailsOnUnwritableDirectory(t *testing.T) {
	_, err := NewCSV(filepath.Join(t.TempDir(), "no-such-dir", "out.csv"))
	assert.Error(t, err)
}
