package sink

import (
	"bufio"
	"encoding/binary"
	"math"
	"os"

	"github.com/tphakala/tuna/internal/terrors"
	"github.com/tphakala/tuna/internal/tuna/pipeline"
	"github.com/tphakala/tuna/internal/tuna/tstamp"
)

// DAT record type tags.
const (
	datNull      uint32 = 0
	datStart     uint32 = 0x01000001
	datResync    uint32 = 0x01000002
	datMiscData  uint32 = 0x02000000
	datSignal    uint32 = 0x02000001
	datTimeSlice uint32 = 0x02000002
	datPulse     uint32 = 0x02000003

	datMagic  uint32 = 0x0BADBEEF
	datEndian uint32 = 0x11223344
)

// DAT is a pipeline.Sink writing a framed binary format: a 4-byte
// big-endian magic, a 4-byte native-endian byte-order indicator, and
// then tagged records. Non-NULL record bodies are written in the
// host's native byte order (unswapped); a reader uses the endian
// indicator to detect when it must byte-swap.
//
// TIME_SLICE and PULSE record bodies have no prior format to follow
// beyond their type tag; the field layouts below are this
// implementation's concrete choice, recorded in DESIGN.md.
type DAT struct {
	f *os.File
	w *bufio.Writer
}

var _ pipeline.Sink = (*DAT)(nil)

// NewDAT opens path for writing and emits the magic/endian header.
func NewDAT(path string) (*DAT, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, terrors.New(err).Category(terrors.CategoryFileIO).
			Context("path", path).Build()
	}
	d := &DAT{f: f, w: bufio.NewWriter(f)}

	var hdr [8]byte
	binary.BigEndian.PutUint32(hdr[0:4], datMagic)
	binary.NativeEndian.PutUint32(hdr[4:8], datEndian)
	if _, err := d.w.Write(hdr[:]); err != nil {
		f.Close()
		return nil, d.ioErr(err)
	}
	return d, nil
}

func (d *DAT) writeRecord(recordType uint32, body []byte) error {
	var hdr [8]byte
	binary.BigEndian.PutUint32(hdr[0:4], recordType)
	binary.NativeEndian.PutUint32(hdr[4:8], uint32(len(body)))
	if _, err := d.w.Write(hdr[:]); err != nil {
		return d.ioErr(err)
	}
	if len(body) > 0 {
		if _, err := d.w.Write(body); err != nil {
			return d.ioErr(err)
		}
	}
	return nil
}

func appendTimestamp(buf []byte, ts tstamp.Timestamp) []byte {
	var tmp [16]byte
	binary.NativeEndian.PutUint64(tmp[0:8], uint64(ts.Sec))
	binary.NativeEndian.PutUint64(tmp[8:16], uint64(ts.Nsec))
	return append(buf, tmp[:]...)
}

func appendInt32(buf []byte, v int32) []byte {
	var tmp [4]byte
	binary.NativeEndian.PutUint32(tmp[:], uint32(v))
	return append(buf, tmp[:]...)
}

func appendFloat64(buf []byte, v float64) []byte {
	var tmp [8]byte
	binary.NativeEndian.PutUint64(tmp[:], math.Float64bits(v))
	return append(buf, tmp[:]...)
}

func (d *DAT) WriteStart(ts tstamp.Timestamp, sampleRate int) error {
	body := appendTimestamp(nil, ts)
	body = appendInt32(body, int32(sampleRate))
	return d.writeRecord(datStart, body)
}

func (d *DAT) WriteResync(ts tstamp.Timestamp) error {
	body := appendTimestamp(nil, ts)
	return d.writeRecord(datResync, body)
}

func (d *DAT) WriteTimeSlice(ts tstamp.Timestamp, r pipeline.TimeSliceResult) error {
	body := appendTimestamp(nil, ts)
	body = appendInt32(body, r.PeakPositive)
	body = appendInt32(body, int32(r.PeakPositiveOffset))
	body = appendInt32(body, r.PeakNegative)
	body = appendInt32(body, int32(r.PeakNegativeOffset))
	body = appendFloat64(body, r.Sum1)
	body = appendFloat64(body, r.Sum2)
	body = appendFloat64(body, r.Sum3)
	body = appendFloat64(body, r.Sum4)
	body = appendInt32(body, int32(len(r.Tols)))
	for _, t := range r.Tols {
		body = appendFloat64(body, t)
	}
	return d.writeRecord(datTimeSlice, body)
}

func (d *DAT) WritePulse(ts tstamp.Timestamp, r pipeline.PulseResult) error {
	body := appendTimestamp(nil, ts)
	body = appendInt32(body, r.PeakPositive)
	body = appendInt32(body, int32(r.PeakPositiveOffset))
	body = appendInt32(body, r.PeakNegative)
	body = appendInt32(body, int32(r.PeakNegativeOffset))
	body = appendInt32(body, int32(r.Offset5))
	body = appendInt32(body, int32(r.Offset95))
	attackOnly := int32(0)
	if r.AttackOnly {
		attackOnly = 1
	}
	body = appendInt32(body, attackOnly)
	body = appendInt32(body, int32(len(r.Tols)))
	for _, t := range r.Tols {
		body = appendFloat64(body, t)
	}
	return d.writeRecord(datPulse, body)
}

// WriteNull writes count single-byte NULL padding records: type 0
// denotes a single-byte NULL padding entry.
func (d *DAT) WriteNull(count int) error {
	for i := 0; i < count; i++ {
		if err := d.w.WriteByte(0); err != nil {
			return d.ioErr(err)
		}
	}
	return nil
}

func (d *DAT) Close() error {
	if err := d.w.Flush(); err != nil {
		return d.ioErr(err)
	}
	return d.f.Close()
}

func (d *DAT) ioErr(err error) error {
	return terrors.New(err).Category(terrors.CategoryFileIO).
		Context("sink", "dat").Build()
}
