// Package minima implements an O(1)-amortised sliding-window minimum
// filter via an ascending-minima ring deque, fed the pulse stage's
// envelope to derive its adaptive onset threshold.
package minima

// SlidingMin tracks the minimum of the last W inserted values.
//
// Invariants: every entry's expiry is > the current tick; the
// sequence of values from left to right is strictly non-decreasing;
// the returned minimum is the minimum of the last W inserts once at
// least W values have been pushed.
type SlidingMin struct {
	w        int
	values   []int32
	expiries []int64
	head     int // ring index of the current leftmost (minimum) entry
	count    int
	tick     int64
}

// New creates a sliding-minimum filter over a window of length w.
func New(w int) *SlidingMin {
	if w <= 0 {
		panic("minima: window length must be positive")
	}
	return &SlidingMin{
		w:        w,
		values:   make([]int32, w),
		expiries: make([]int64, w),
	}
}

// Next advances the tick by one, inserts x, and returns the minimum of
// the trailing window (of the values seen so far if fewer than w have
// been pushed).
func (s *SlidingMin) Next(x int32) int32 {
	s.tick++

	// Evict entries that expired exactly at this tick.
	for s.count > 0 && s.expiries[s.head] == s.tick {
		s.head = (s.head + 1) % s.w
		s.count--
	}

	// Pop from the right while the tail value is greater than the new
	// value (equal values are kept), maintaining the ascending-minima
	// invariant.
	for s.count > 0 {
		tailIdx := (s.head + s.count - 1) % s.w
		if s.values[tailIdx] > x {
			s.count--
			continue
		}
		break
	}

	pushIdx := (s.head + s.count) % s.w
	s.values[pushIdx] = x
	s.expiries[pushIdx] = s.tick + int64(s.w)
	s.count++

	return s.values[s.head]
}

// Current returns the current minimum without advancing the tick.
func (s *SlidingMin) Current() int32 {
	if s.count == 0 {
		return 0
	}
	return s.values[s.head]
}

// CurrentAge returns how many ticks ago the current minimum's entry was
// inserted, computed as w - (expiry - tick).
//
// This is deliberately signed (int, not uint): the pulse stage
// subtracts it from the triggering sample's int64 stream position to
// back-date a pulse start.
func (s *SlidingMin) CurrentAge() int {
	if s.count == 0 {
		return 0
	}
	return s.w - int(s.expiries[s.head]-s.tick)
}

// Reset clears all state, as if newly constructed.
func (s *SlidingMin) Reset() {
	s.head = 0
	s.count = 0
	s.tick = 0
}

// Len reports how many entries the deque currently holds (at most the
// window length); values popped by a smaller newcomer are not counted.
func (s *SlidingMin) Len() int { return s.count }
