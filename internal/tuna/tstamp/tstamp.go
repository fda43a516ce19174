// Package tstamp implements TUNA's (seconds, nanoseconds) timestamp
// pair, with tick-based advancement at a given sample rate.
package tstamp

// Timestamp is a normalised (seconds, nanoseconds) pair: 0 <= Nsec < 1e9.
type Timestamp struct {
	Sec  int64
	Nsec int64
}

const nsPerSec = 1_000_000_000

// Add returns the timestamp advanced by ticks samples at sampleRate Hz.
func (t Timestamp) Add(ticks int64, sampleRate int) Timestamp {
	if sampleRate <= 0 {
		return t
	}
	rate := int64(sampleRate)
	deltaSec := ticks / rate
	remTicks := ticks % rate
	deltaNsec := remTicks * nsPerSec / rate

	sec := t.Sec + deltaSec
	nsec := t.Nsec + deltaNsec
	if nsec >= nsPerSec {
		nsec -= nsPerSec
		sec++
	}
	return Timestamp{Sec: sec, Nsec: nsec}
}
