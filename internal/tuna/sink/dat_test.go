package sink

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/tuna/internal/tuna/pipeline"
	"github.com/tphakala/tuna/internal/tuna/tstamp"
)

func TestDATHeaderAndRecordFraming(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.dat")
	d, err := NewDAT(path)
	require.NoError(t, err)

	require.NoError(t, d.WriteStart(tstamp.Timestamp{Sec: 1}, 48000))
	require.NoError(t, d.WriteResync(tstamp.Timestamp{Sec: 2}))
	require.NoError(t, d.WriteTimeSlice(tstamp.Timestamp{}, pipeline.TimeSliceResult{
		Tols: []float64{1, 2, 3},
	}))
	require.NoError(t, d.WriteNull(3))
	require.NoError(t, d.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	require.GreaterOrEqual(t, len(data), 8)
	assert.Equal(t, datMagic, binary.BigEndian.Uint32(data[0:4]))
	assert.Equal(t, datEndian, binary.NativeEndian.Uint32(data[4:8]))

	off := 8
	recType := binary.BigEndian.Uint32(data[off : off+4])
	bodyLen := binary.NativeEndian.Uint32(data[off+4 : off+8])
	assert.Equal(t, datStart, recType)
	assert.Equal(t, uint32(16+4), bodyLen)
	off += 8 + int(bodyLen)

	recType = binary.BigEndian.Uint32(data[off : off+4])
	bodyLen = binary.NativeEndian.Uint32(data[off+4 : off+8])
	assert.Equal(t, datResync, recType)
	assert.Equal(t, uint32(16), bodyLen)
	off += 8 + int(bodyLen)

	recType = binary.BigEndian.Uint32(data[off : off+4])
	bodyLen = binary.NativeEndian.Uint32(data[off+4 : off+8])
	assert.Equal(t, datTimeSlice, recType)
	// timestamp(16) + 4 int32 fields(16) + 4 float64 sums(32) + tol count(4) + 3 tols(24)
	assert.Equal(t, uint32(16+16+32+4+24), bodyLen)
	off += 8 + int(bodyLen)

	// 3 NULL padding bytes follow as raw bytes, not framed records.
	assert.Equal(t, []byte{0, 0, 0}, data[off:off+3])
	assert.Equal(t, off+3, len(data))
}

func TestDATOpenFailsOnUnwritableDirectory(t *testing.T) {
	_, err := NewDAT(filepath.Join(t.TempDir(), "no-such-dir", "out.dat"))
	assert.Error(t, err)
}
