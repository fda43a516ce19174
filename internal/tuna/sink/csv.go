// Package sink implements the externally supplied record writers:
// CSV, DAT, and a discard ("null") sink.
//
// The CSV writer checks every write's return value and propagates I/O
// failures, uses token/separator framing, and emits explicit
// START/RESYNC marker lines rather than folding them into per-sample
// rows.
package sink

import (
	"bufio"
	"fmt"
	"os"

	"github.com/tphakala/tuna/internal/terrors"
	"github.com/tphakala/tuna/internal/tuna/pipeline"
	"github.com/tphakala/tuna/internal/tuna/tstamp"
)

const csvSeparator = ", "

// CSV is a pipeline.Sink writing one line per record: fields are
// separated by csvSeparator, with no separator after a record's last
// field, and each record ends with a newline terminator. START and
// RESYNC are single-line markers carrying a timestamp.
type CSV struct {
	f *os.File
	w *bufio.Writer
}

var _ pipeline.Sink = (*CSV)(nil)

// NewCSV opens path for writing, truncating any existing file.
func NewCSV(path string) (*CSV, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, terrors.New(err).Category(terrors.CategoryFileIO).
			Context("path", path).Build()
	}
	return &CSV{f: f, w: bufio.NewWriter(f)}, nil
}

func (c *CSV) writeTimestamp(ts tstamp.Timestamp) error {
	_, err := fmt.Fprintf(c.w, "%d.%09d", ts.Sec, ts.Nsec)
	return err
}

func (c *CSV) WriteStart(ts tstamp.Timestamp, sampleRate int) error {
	if _, err := fmt.Fprintf(c.w, "START%s", csvSeparator); err != nil {
		return c.ioErr(err)
	}
	if err := c.writeTimestamp(ts); err != nil {
		return c.ioErr(err)
	}
	if _, err := fmt.Fprintf(c.w, "%s%d\n", csvSeparator, sampleRate); err != nil {
		return c.ioErr(err)
	}
	return nil
}

func (c *CSV) WriteResync(ts tstamp.Timestamp) error {
	if _, err := fmt.Fprintf(c.w, "RESYNC%s", csvSeparator); err != nil {
		return c.ioErr(err)
	}
	if err := c.writeTimestamp(ts); err != nil {
		return c.ioErr(err)
	}
	if _, err := c.w.WriteString("\n"); err != nil {
		return c.ioErr(err)
	}
	return nil
}

func (c *CSV) WriteTimeSlice(ts tstamp.Timestamp, r pipeline.TimeSliceResult) error {
	if err := c.writeTimestamp(ts); err != nil {
		return c.ioErr(err)
	}
	_, err := fmt.Fprintf(c.w, "%sTIME_SLICE%s%d%s%d%s%d%s%d%s%g%s%g%s%g%s%g",
		csvSeparator,
		csvSeparator, r.PeakPositive,
		csvSeparator, r.PeakPositiveOffset,
		csvSeparator, r.PeakNegative,
		csvSeparator, r.PeakNegativeOffset,
		csvSeparator, r.Sum1,
		csvSeparator, r.Sum2,
		csvSeparator, r.Sum3,
		csvSeparator, r.Sum4,
	)
	if err != nil {
		return c.ioErr(err)
	}
	for _, t := range r.Tols {
		if _, err := fmt.Fprintf(c.w, "%s%g", csvSeparator, t); err != nil {
			return c.ioErr(err)
		}
	}
	if _, err := c.w.WriteString("\n"); err != nil {
		return c.ioErr(err)
	}
	return nil
}

func (c *CSV) WritePulse(ts tstamp.Timestamp, r pipeline.PulseResult) error {
	if err := c.writeTimestamp(ts); err != nil {
		return c.ioErr(err)
	}
	kind := "PULSE"
	if r.AttackOnly {
		kind = "PULSE_ATTACK_ONLY"
	}
	_, err := fmt.Fprintf(c.w, "%s%s%s%d%s%d%s%d%s%d%s%d%s%d",
		csvSeparator, kind,
		csvSeparator, r.PeakPositive,
		csvSeparator, r.PeakPositiveOffset,
		csvSeparator, r.PeakNegative,
		csvSeparator, r.PeakNegativeOffset,
		csvSeparator, r.Offset5,
		csvSeparator, r.Offset95,
	)
	if err != nil {
		return c.ioErr(err)
	}
	for _, t := range r.Tols {
		if _, err := fmt.Fprintf(c.w, "%s%g", csvSeparator, t); err != nil {
			return c.ioErr(err)
		}
	}
	if _, err := c.w.WriteString("\n"); err != nil {
		return c.ioErr(err)
	}
	return nil
}

func (c *CSV) Close() error {
	if err := c.w.Flush(); err != nil {
		return c.ioErr(err)
	}
	return c.f.Close()
}

func (c *CSV) ioErr(err error) error {
	return terrors.New(err).Category(terrors.CategoryFileIO).
		Context("sink", "csv").Build()
}
