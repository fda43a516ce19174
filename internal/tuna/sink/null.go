package sink

import (
	"github.com/tphakala/tuna/internal/tuna/pipeline"
	"github.com/tphakala/tuna/internal/tuna/tstamp"
)

// Null discards every record. wire.Build does not use it: an
// --output null adds no downstream stage at all.
type Null struct{}

var _ pipeline.Sink = Null{}

func (Null) WriteStart(tstamp.Timestamp, int) error                  { return nil }
func (Null) WriteResync(tstamp.Timestamp) error                      { return nil }
func (Null) WriteTimeSlice(tstamp.Timestamp, pipeline.TimeSliceResult) error { return nil }
func (Null) WritePulse(tstamp.Timestamp, pipeline.PulseResult) error  { return nil }
func (Null) Close() error                                             { return nil }
