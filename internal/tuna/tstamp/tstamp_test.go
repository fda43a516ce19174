package tstamp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAddWithinSameSecond(t *testing.T) {
	ts := Timestamp{Sec: 10, Nsec: 0}
	got := ts.Add(24000, 48000)
	assert.Equal(t, Timestamp{Sec: 10, Nsec: 500_000_000}, got)
}

func TestAddCarriesIntoNextSecond(t *testing.T) {
	ts := Timestamp{Sec: 0, Nsec: 900_000_000}
	got := ts.Add(52800, 48000)
	assert.Equal(t, Timestamp{Sec: 2, Nsec: 0}, got, "1.1s of ticks plus 0.9s carries to 2s")
}

func TestAddExactlyOneSecond(t *testing.T) {
	ts := Timestamp{Sec: 5, Nsec: 0}
	got := ts.Add(48000, 48000)
	assert.Equal(t, Timestamp{Sec: 6, Nsec: 0}, got)
}

func TestAddZeroTicks(t *testing.T) {
	ts := Timestamp{Sec: 3, Nsec: 123}
	assert.Equal(t, ts, ts.Add(0, 48000))
}

func TestAddWithZeroSampleRateIsNoop(t *testing.T) {
	ts := Timestamp{Sec: 3, Nsec: 123}
	assert.Equal(t, ts, ts.Add(1000, 0))
}

func TestAddNeverProducesNsecOverflow(t *testing.T) {
	ts := Timestamp{}
	for ticks := int64(1); ticks <= 480000; ticks += 37 {
		got := ts.Add(ticks, 48000)
		assert.GreaterOrEqual(t, got.Nsec, int64(0))
		assert.Less(t, got.Nsec, int64(nsPerSec))
	}
}
