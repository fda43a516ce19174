package spectrum

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCrossfadeCoeffsSumToOne(t *testing.T) {
	tb := NewTolBank(48000, 4096, 0.2, 3)
	for i, b := range tb.Bands {
		for j := 0; j < b.TWidth; j++ {
			sum := b.Coeffs[2*j] + b.Coeffs[2*j+1]
			assert.InDelta(t, 1.0, sum, 1e-9, "band %d transition %d must conserve energy", i, j)
		}
	}
}

func TestCalculateConservesTotalEnergy(t *testing.T) {
	const analysisLength = 4096
	tb := NewTolBank(48000, analysisLength, 0.2, 3)
	nyquist := analysisLength / 2

	rng := rand.New(rand.NewSource(7))
	data := make([]float64, nyquist)
	var total float64
	for i := range data {
		data[i] = rng.Float64() * 100
		total += data[i]
	}

	results := make([]float64, tb.NumBands())
	tb.Calculate(data, results)

	var got float64
	for _, r := range results {
		got += r
	}
	assert.InDelta(t, total, got, 1e-6, "every bin's energy must land in exactly one band's worth of weight")
}

func TestCalculateZerosResultsBeforeAccumulating(t *testing.T) {
	tb := NewTolBank(48000, 4096, 0.2, 3)
	results := make([]float64, tb.NumBands())
	for i := range results {
		results[i] = 999
	}
	data := make([]float64, 4096/2)
	tb.Calculate(data, results)
	for i, r := range results {
		assert.Zero(t, r, "band %d must be reset before accumulation", i)
	}
}

func TestNumBandsStaysBelowNyquist(t *testing.T) {
	tb := NewTolBank(8000, 1024, 0.2, 3)
	for _, b := range tb.Bands {
		assert.Less(t, b.EdgeHigh, 4000.0)
	}
}

func TestBinMapCoversEveryBinExactlyOnce(t *testing.T) {
	tb := NewTolBank(48000, 4096, 0.2, 3)
	for k, bi := range tb.bins {
		assert.GreaterOrEqual(t, bi.band, 0, "bin %d must be assigned to a band", k)
	}
}
