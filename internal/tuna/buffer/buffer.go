// Package buffer implements TUNA's reference-counted sample buffer:
// a 16-byte-aligned (or wider, per detected SIMD width) array of
// int32 samples, shared across pipeline stages by reference count
// rather than by copy.
//
// Shaped after the Acquire/Release/reference-count API of the
// teacher's audiocore buffer pool, but deliberately does not reuse
// freed storage across Acquire calls: a simple malloc/free model, not
// a sync.Pool-backed tier system, so a released buffer with refcount
// zero is just dropped for the GC to reclaim.
package buffer

import (
	"sync/atomic"

	"github.com/klauspost/cpuid/v2"

	"github.com/tphakala/tuna/internal/terrors"
)

// Sample is TUNA's signed-integer audio amplitude.
type Sample = int32

const (
	SampleMax Sample = 1<<31 - 1
	SampleMin Sample = -1 << 31
)

// Buffer is a reference-counted, aligned array of samples. The zero
// value is not usable; obtain one from Pool.Acquire.
type Buffer struct {
	data     []Sample
	refCount int32
}

// Data returns the buffer's sample slice. Callers must not write to it
// once the buffer has been shared: a buffer is immutable once shared,
// and only its single acquirer may write.
func (b *Buffer) Data() []Sample { return b.data }

func (b *Buffer) Len() int { return len(b.data) }

// Acquire increments the reference count.
func (b *Buffer) Acquire() { atomic.AddInt32(&b.refCount, 1) }

// Release decrements the reference count, returning true if this call
// brought it to zero (and therefore freed the buffer).
func (b *Buffer) Release() bool {
	n := atomic.AddInt32(&b.refCount, -1)
	if n < 0 {
		// Protocol violation: more releases than acquisitions.
		panic("buffer: released more times than acquired")
	}
	if n == 0 {
		b.data = nil
		return true
	}
	return false
}

// RefCount returns the current reference count.
func (b *Buffer) RefCount() int { return int(atomic.LoadInt32(&b.refCount)) }

// Pool allocates aligned sample buffers. It has no reuse tier: every
// Acquire call allocates fresh storage.
type Pool struct {
	alignment int
}

// NewPool builds a Pool aligned to the widest SIMD register width
// cpuid detects on this machine, falling back to a 16-byte minimum —
// the alignment the file reader's SIMD downconversion path requires.
func NewPool() *Pool {
	align := 16
	switch {
	case cpuid.CPU.Supports(cpuid.AVX512F):
		align = 64
	case cpuid.CPU.Supports(cpuid.AVX2):
		align = 32
	}
	return &Pool{alignment: align}
}

// Acquire allocates an array of at least n samples, returning the
// (possibly rounded-up) size actually allocated. Initial refcount is 1.
func (p *Pool) Acquire(n int) (*Buffer, int, error) {
	if n < 0 {
		return nil, 0, terrors.New(nil).
			Category(terrors.CategoryValidation).
			Context("requested_samples", n).
			Build()
	}
	samplesPerAlign := p.alignment / 4 // int32 = 4 bytes
	rounded := n
	if samplesPerAlign > 1 {
		if rem := n % samplesPerAlign; rem != 0 {
			rounded = n + (samplesPerAlign - rem)
		}
	}
	data := make([]Sample, rounded)
	return &Buffer{data: data, refCount: 1}, rounded, nil
}
