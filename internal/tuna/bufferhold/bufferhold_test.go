package bufferhold

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/tuna/internal/tuna/buffer"
)

func newTestBuffer(t *testing.T, n int) *buffer.Buffer {
	t.Helper()
	p := buffer.NewPool()
	b, _, err := p.Acquire(n)
	require.NoError(t, err)
	return b
}

func TestAddAndOrdering(t *testing.T) {
	h := New()
	b1 := newTestBuffer(t, 10)
	b2 := newTestBuffer(t, 10)
	b3 := newTestBuffer(t, 10)

	h.Add(b1, 10)
	h.Add(b2, 10)
	h.Add(b3, 10)

	assert.Equal(t, 3, h.Len())
	assert.Same(t, b1, h.Oldest().Buf)
	assert.Same(t, b3, h.Newest().Buf)

	second := h.Next(h.Oldest())
	require.NotNil(t, second)
	assert.Same(t, b2, second.Buf)

	assert.Nil(t, h.Prev(h.Oldest()))
	assert.Nil(t, h.Next(h.Newest()))
}

func TestAdvancePartial(t *testing.T) {
	h := New()
	b := newTestBuffer(t, 10)
	hb := h.Add(b, 10)

	consumed, remaining := h.Advance(hb, 4)
	assert.False(t, consumed)
	assert.Equal(t, 6, remaining)
	assert.Equal(t, 4, hb.Cursor())
	assert.Equal(t, 6, hb.Remaining())
	assert.Equal(t, 1, h.Len(), "partial advance must not release the entry")
}

func TestAdvanceConsumesAndReleases(t *testing.T) {
	h := New()
	b := newTestBuffer(t, 10)
	hb := h.Add(b, 10)

	consumed, remaining := h.Advance(hb, 10)
	assert.True(t, consumed)
	assert.Equal(t, 0, remaining)
	assert.Equal(t, 0, h.Len())
	assert.Equal(t, 0, b.RefCount(), "consuming the hold must release its reference")
}

func TestAdvanceOverrunConsumes(t *testing.T) {
	h := New()
	b := newTestBuffer(t, 10)
	hb := h.Add(b, 10)

	consumed, _ := h.Advance(hb, 50)
	assert.True(t, consumed)
	assert.Equal(t, 0, h.Len())
}

func TestReleaseAllDropsEveryReference(t *testing.T) {
	h := New()
	bufs := make([]*buffer.Buffer, 5)
	for i := range bufs {
		bufs[i] = newTestBuffer(t, 4)
		h.Add(bufs[i], 4)
	}

	h.ReleaseAll()
	assert.Equal(t, 0, h.Len())
	for _, b := range bufs {
		assert.Equal(t, 0, b.RefCount())
	}
}

func TestDataReflectsCursor(t *testing.T) {
	h := New()
	p := buffer.NewPool()
	b, _, err := p.Acquire(4)
	require.NoError(t, err)
	copy(b.Data(), []buffer.Sample{10, 20, 30, 40})

	hb := h.Add(b, 4)
	assert.Equal(t, []buffer.Sample{10, 20, 30, 40}, hb.Data())

	h.Advance(hb, 2)
	assert.Equal(t, []buffer.Sample{30, 40}, hb.Data())
}
