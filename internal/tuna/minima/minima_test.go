package minima

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func bruteForceMin(xs []int32, w, k int) int32 {
	lo := k - w + 1
	if lo < 0 {
		lo = 0
	}
	min := xs[lo]
	for i := lo + 1; i <= k; i++ {
		if xs[i] < min {
			min = xs[i]
		}
	}
	return min
}

func TestSlidingMinMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	const w = 8
	const n = 500

	xs := make([]int32, n)
	for i := range xs {
		xs[i] = int32(rng.Intn(1000) - 500)
	}

	s := New(w)
	for k, x := range xs {
		got := s.Next(x)
		want := bruteForceMin(xs, w, k)
		assert.Equal(t, want, got, "tick %d", k)
	}
}

func TestSlidingMinConstantStream(t *testing.T) {
	s := New(4)
	for range 10 {
		assert.Equal(t, int32(7), s.Next(7))
	}
}

func TestSlidingMinMonotoneIncreasing(t *testing.T) {
	s := New(3)
	assert.Equal(t, int32(1), s.Next(1))
	assert.Equal(t, int32(1), s.Next(2))
	assert.Equal(t, int32(1), s.Next(3))
	assert.Equal(t, int32(2), s.Next(4), "oldest value 1 has expired from the window")
}

func TestSlidingMinMonotoneDecreasing(t *testing.T) {
	s := New(3)
	assert.Equal(t, int32(5), s.Next(5))
	assert.Equal(t, int32(4), s.Next(4))
	assert.Equal(t, int32(3), s.Next(3))
	assert.Equal(t, int32(2), s.Next(2))
}

func TestSlidingMinResetClearsState(t *testing.T) {
	s := New(4)
	s.Next(1)
	s.Next(2)
	s.Reset()
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, int32(0), s.Current())
	assert.Equal(t, int32(9), s.Next(9))
}

func TestSlidingMinLenCapsAtWindow(t *testing.T) {
	s := New(3)
	for i := range 10 {
		s.Next(int32(i))
		if i+1 < 3 {
			assert.Equal(t, i+1, s.Len())
		} else {
			assert.Equal(t, 3, s.Len())
		}
	}
}
