// Package bufferhold implements an ordered list of retained buffers
// with per-entry read cursors, used by the time-slice and pulse
// stages to replay recent history.
//
// Uses container/list for the node chain rather than a slab allocator:
// a GC-friendly doubly linked list is the idiomatic Go equivalent, and
// Go's allocator already amortises per-node overhead well for small
// fixed-size nodes.
package bufferhold

import (
	"container/list"

	"github.com/tphakala/tuna/internal/tuna/buffer"
)

// HeldBuffer is a retained buffer plus its read cursor.
// Invariant: cursor + remaining <= len(buf.Data()).
type HeldBuffer struct {
	Buf       *buffer.Buffer
	cursor    int
	remaining int
}

func (h *HeldBuffer) Cursor() int    { return h.cursor }
func (h *HeldBuffer) Remaining() int { return h.remaining }

// Data returns the still-unconsumed portion of the held buffer.
func (h *HeldBuffer) Data() []buffer.Sample {
	return h.Buf.Data()[h.cursor : h.cursor+h.remaining]
}

// Hold is an ordered (oldest-first) sequence of HeldBuffers.
type Hold struct {
	l *list.List
}

func New() *Hold { return &Hold{l: list.New()} }

// Add appends count samples of buf, taking ownership of one reference
// (the caller must Acquire beforehand if it also needs the buffer).
func (h *Hold) Add(buf *buffer.Buffer, count int) *HeldBuffer {
	hb := &HeldBuffer{Buf: buf, cursor: 0, remaining: count}
	h.l.PushBack(hb)
	return hb
}

// Release drops one HeldBuffer's owned reference and removes it from
// the list. The element pointer is identified by its *HeldBuffer value.
func (h *Hold) Release(hb *HeldBuffer) {
	for e := h.l.Front(); e != nil; e = e.Next() {
		if e.Value.(*HeldBuffer) == hb {
			h.l.Remove(e)
			hb.Buf.Release()
			return
		}
	}
}

// ReleaseAll drops every held buffer's reference and empties the list.
func (h *Hold) ReleaseAll() {
	for e := h.l.Front(); e != nil; {
		next := e.Next()
		e.Value.(*HeldBuffer).Buf.Release()
		e = next
	}
	h.l.Init()
}

// Oldest returns the first (earliest-added) held buffer, or nil if empty.
func (h *Hold) Oldest() *HeldBuffer {
	if e := h.l.Front(); e != nil {
		return e.Value.(*HeldBuffer)
	}
	return nil
}

// Newest returns the last (most-recently-added) held buffer, or nil.
func (h *Hold) Newest() *HeldBuffer {
	if e := h.l.Back(); e != nil {
		return e.Value.(*HeldBuffer)
	}
	return nil
}

// Next returns the held buffer after hb in oldest->newest order, or nil
// at the end.
func (h *Hold) Next(hb *HeldBuffer) *HeldBuffer {
	for e := h.l.Front(); e != nil; e = e.Next() {
		if e.Value.(*HeldBuffer) == hb {
			if n := e.Next(); n != nil {
				return n.Value.(*HeldBuffer)
			}
			return nil
		}
	}
	return nil
}

// Prev returns the held buffer before hb in oldest->newest order, or
// nil at the start.
func (h *Hold) Prev(hb *HeldBuffer) *HeldBuffer {
	for e := h.l.Back(); e != nil; e = e.Prev() {
		if e.Value.(*HeldBuffer) == hb {
			if p := e.Prev(); p != nil {
				return p.Value.(*HeldBuffer)
			}
			return nil
		}
	}
	return nil
}

func (h *Hold) Len() int { return h.l.Len() }

// Advance moves hb's cursor forward by k samples. If k >= remaining,
// the HeldBuffer is released (its reference dropped) and Advance
// returns (true, 0), the "consumed" sentinel. Otherwise it returns
// (false, newRemaining).
func (h *Hold) Advance(hb *HeldBuffer, k int) (consumed bool, remaining int) {
	if k >= hb.remaining {
		h.Release(hb)
		return true, 0
	}
	hb.cursor += k
	hb.remaining -= k
	return false, hb.remaining
}
