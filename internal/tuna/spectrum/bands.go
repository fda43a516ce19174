package spectrum

import "math"

// thirdOctaveRatio is 2^(1/6), the standard ratio between a third-
// octave band's centre and each of its edges.
var thirdOctaveRatio = math.Pow(2, 1.0/6.0)

// standardBandCentres is the full 43-band ISO third-octave series,
// stored as compile-time constants, from 10 Hz through 160 kHz — wide
// enough to cover the hydrophone sample rates TUNA targets.
var standardBandCentres = [43]float64{
	10, 12.5, 16, 20, 25, 31.5, 40, 50, 63, 80,
	100, 125, 160, 200, 250, 315, 400, 500, 630, 800,
	1000, 1250, 1600, 2000, 2500, 3150, 4000, 5000, 6300, 8000,
	10000, 12500, 16000, 20000, 25000, 31500, 40000, 50000, 63000, 80000,
	100000, 125000, 160000,
}

// BandCentre returns the centre frequency of standard band i.
func BandCentre(i int) float64 { return standardBandCentres[i] }

// BandEdges returns the lower and upper edge frequency of standard
// band i.
func BandEdges(i int) (lo, hi float64) {
	c := standardBandCentres[i]
	return c / thirdOctaveRatio, c * thirdOctaveRatio
}

// NumStandardBands is the length of the compile-time ISO series.
const NumStandardBands = 43
