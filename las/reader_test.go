package las

import (
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tingold/orb-tinsource/errs"
)

func TestOpen_HeaderRoundTrip(t *testing.T) {
	require := require.New(t)

	f := newTestFile(1, 28)
	f.h.GlobalEncoding = 0x0001
	f.h.ProjectID = [16]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}
	f.h.LegacyPointsByReturn = [5]uint32{2, 1, 0, 0, 0}
	f.records = [][]byte{
		legacyRecord(28, 0, 0, 0, 1, 0x09, 2, 0, 1.5),
		legacyRecord(28, 100, 200, 300, 2, 0x0a, 2, 0, 2.5),
		legacyRecord(28, -100, -200, -300, 3, 0x01, 1, 0, 3.5),
	}

	r, err := NewReader("mem.las", bytes.NewReader(f.bytes()), 0)
	require.NoError(err)
	defer func() { _ = r.Close() }()

	h := r.Header()
	require.Equal(Signature, h.Signature)
	require.Equal(uint16(7), h.FileSourceID)
	require.Equal(uint16(1), h.GlobalEncoding)
	require.Equal(f.h.ProjectID, h.ProjectID)
	require.Equal("1.2", h.Version())
	require.Equal("SYNTHETIC", h.SystemIdentifier)
	require.Equal("tinsource tests", h.GeneratingSoftware)
	require.Equal(uint16(32), h.CreationDay)
	require.Equal(uint16(2021), h.CreationYear)
	require.Equal(time.Date(2021, time.February, 1, 0, 0, 0, 0, time.UTC), h.CreationDate)
	require.Equal(uint16(legacyHeaderSize), h.HeaderSize)
	require.Equal(uint32(legacyHeaderSize), h.OffsetToPointData)
	require.Equal(uint32(0), h.NumberOfVLRs)
	require.Equal(uint8(1), h.PointFormat)
	require.False(h.Compressed)
	require.Equal(uint16(28), h.PointRecordLength)
	require.Equal(uint32(3), h.LegacyPointCount)
	require.Equal(f.h.LegacyPointsByReturn, h.LegacyPointsByReturn)

	require.Equal(0.01, h.XScale)
	require.Equal(0.01, h.YScale)
	require.Equal(0.001, h.ZScale)
	require.Equal(500000.0, h.XOffset)
	require.Equal(4000000.0, h.YOffset)
	require.Equal(-10.0, h.ZOffset)
	require.Equal(500100.5, h.MaxX)
	require.Equal(499900.25, h.MinX)
	require.Equal(4000200.75, h.MaxY)
	require.Equal(3999800.125, h.MinY)
	require.Equal(120.5, h.MaxZ)
	require.Equal(-3.25, h.MinZ)

	// A 1.2 header carries no extended block: the 64-bit counts mirror the
	// legacy ones and returns 6-15 are zero.
	require.Equal(uint64(3), h.PointCount)
	require.Equal([15]uint64{2, 1}, h.PointsByReturn)
	require.Equal(uint32(0), h.NumberOfExtendedVLRs)

	require.Equal(CRSGeoTIFF, h.CRSMode)
	require.Equal(GPSSatelliteTime, h.GPSTimeType)
	require.Equal(int64(3), r.PointCount())

	b := h.Bound()
	require.Equal(499900.25, b.Min[0])
	require.Equal(3999800.125, b.Min[1])
	require.Equal(500100.5, b.Max[0])
	require.Equal(4000200.75, b.Max[1])
}

func TestOpen_ExtendedHeader(t *testing.T) {
	require := require.New(t)

	f := newTestFile(6, 30)
	f.h.VersionMinor = 4
	f.h.HeaderSize = extendedHeaderSize
	f.h.GlobalEncoding = 0x0010
	f.h.WaveformDataOffset = 0
	f.h.PointCount = 2
	f.h.PointsByReturn = [15]uint64{1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1}
	f.records = [][]byte{
		extendedRecord(1, 2, 3, 4, 0x11, 0, 2, 0, 10),
		extendedRecord(5, 6, 7, 8, 0x11, 0, 2, 0, 11),
	}
	f.vlrs = []testVLR{{userID: "LASF_Projection", id: OGCWKTRecordID, desc: "wkt", payload: []byte("GEOGCS[\"WGS 84\"]\x00")}}
	f.evlrs = []testVLR{{userID: "extra", id: 4242, desc: "evlr", payload: []byte("abcdef")}}

	path := f.write(t)
	r, err := Open(path)
	require.NoError(err)
	defer func() { _ = r.Close() }()

	h := r.Header()
	require.Equal("1.4", h.Version())
	require.Equal(uint32(0), h.LegacyPointCount)
	require.Equal(uint64(2), h.PointCount)
	require.Equal(uint64(1), h.PointsByReturn[14])
	require.Equal(uint32(1), h.NumberOfExtendedVLRs)
	require.Equal(CRSWKT, h.CRSMode)
	require.Equal(GPSWeekTime, h.GPSTimeType)
	require.Equal(int64(2), r.PointCount())

	require.Len(r.VLRs(), 2)
	ev, ok := r.FindVLR(4242)
	require.True(ok)
	require.True(ev.Extended)
	require.Equal(uint64(6), ev.Length)
	require.Equal("extra", ev.UserID)

	wkt, ok, err := r.WKT()
	require.NoError(err)
	require.True(ok)
	require.Equal(`GEOGCS["WGS 84"]`, wkt)

	// WKT mode never consults the GeoTIFF directory.
	_, ok = r.GeoReference()
	require.False(ok)
	require.Equal(ModelUnknown, r.ModelType())

	var p PointRecord
	require.NoError(r.ReadPoint(1, &p))
	require.Equal(11.0, p.GPSTime)
}

func TestOpen_BadSignature(t *testing.T) {
	data := newTestFile(0, 20).bytes()
	copy(data, "LASX")

	r, err := NewReader("bad.las", bytes.NewReader(data), int64(len(data)))
	require.Nil(t, r)
	require.ErrorIs(t, err, errs.ErrNotLAS)
	require.True(t, errs.IsFormatError(err))
	assert.Contains(t, err.Error(), "bad.las")
}

func TestOpen_TooShort(t *testing.T) {
	_, err := NewReader("short.las", bytes.NewReader([]byte("LA")), 2)
	require.ErrorIs(t, err, errs.ErrNotLAS)

	_, err = NewReader("trunc.las", bytes.NewReader([]byte("LASF\x00\x00")), 6)
	require.ErrorIs(t, err, errs.ErrInvalidData)
}

func TestOpen_MissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nope.las"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestReadPoint_Legacy(t *testing.T) {
	require := require.New(t)

	f := newTestFile(1, 28)
	f.records = [][]byte{
		// return 2 of 3, scan direction, edge of flight line
		legacyRecord(28, 12345, -67890, 4242, 300, 2|3<<3|0x40|0x80, 6|0x20|0x80, -12, 123456.5),
		legacyRecord(28, 0, 0, 0, 0, 1|1<<3, 2|0x40, 5, 0),
	}

	r, err := NewReader("mem.las", bytes.NewReader(f.bytes()), 0)
	require.NoError(err)
	defer func() { _ = r.Close() }()

	h := r.Header()
	var p PointRecord
	require.NoError(r.ReadPoint(0, &p))
	require.Equal(float64(12345)*h.XScale+h.XOffset, p.X)
	require.Equal(float64(-67890)*h.YScale+h.YOffset, p.Y)
	require.Equal(float64(4242)*h.ZScale+h.ZOffset, p.Z)
	require.Equal(uint16(300), p.Intensity)
	require.Equal(uint8(2), p.ReturnNumber)
	require.Equal(uint8(3), p.NumberOfReturns)
	require.True(p.ScanDirection)
	require.True(p.EdgeOfFlight)
	require.Equal(uint8(6), p.Classification)
	require.True(p.Synthetic)
	require.False(p.KeyPoint)
	require.True(p.Withheld)
	require.Equal(-12.0, p.ScanAngle)
	require.Equal(uint8(9), p.UserData)
	require.Equal(uint16(77), p.PointSourceID)
	require.True(p.HasGPSTime)
	require.Equal(123456.5, p.GPSTime)

	// The same record is overwritten in place.
	require.NoError(r.ReadPoint(1, &p))
	require.Equal(h.XOffset, p.X)
	require.Equal(uint8(1), p.ReturnNumber)
	require.Equal(uint8(1), p.NumberOfReturns)
	require.False(p.ScanDirection)
	require.False(p.EdgeOfFlight)
	require.Equal(uint8(2), p.Classification)
	require.False(p.Synthetic)
	require.True(p.KeyPoint)
	require.False(p.Withheld)
	require.Equal(0.0, p.GPSTime)

	// random access backwards
	require.NoError(r.ReadPoint(0, &p))
	require.Equal(uint8(6), p.Classification)
}

func TestReadPoint_NoGPSTime(t *testing.T) {
	for _, format := range []byte{0, 2} {
		f := newTestFile(format, 26)
		f.records = [][]byte{legacyRecord(26, 1, 2, 3, 4, 1|1<<3, 2, 0, 0)}

		r, err := NewReader("mem.las", bytes.NewReader(f.bytes()), 0)
		require.NoError(t, err)

		p := PointRecord{GPSTime: 99, HasGPSTime: true}
		require.NoError(t, r.ReadPoint(0, &p))
		assert.False(t, p.HasGPSTime, "format %d", format)
		assert.Equal(t, 0.0, p.GPSTime)
		_ = r.Close()
	}
}

func TestReadPoint_Format6(t *testing.T) {
	require := require.New(t)

	f := newTestFile(6, 30)
	f.h.VersionMinor = 4
	f.h.HeaderSize = extendedHeaderSize
	f.h.PointCount = 1
	// return 5 of 7; synthetic, withheld, overlap, channel 2, scan direction
	f.records = [][]byte{
		extendedRecord(-1, 2, -3, 65535, 5|7<<4, 0x01|0x04|0x08|0x20|0x40, 200, -1500, 987.25),
	}

	r, err := NewReader("mem.las", bytes.NewReader(f.bytes()), 0)
	require.NoError(err)
	defer func() { _ = r.Close() }()

	var p PointRecord
	require.NoError(r.ReadPoint(0, &p))
	h := r.Header()
	require.Equal(-1*h.XScale+h.XOffset, p.X)
	require.Equal(2*h.YScale+h.YOffset, p.Y)
	require.Equal(-3*h.ZScale+h.ZOffset, p.Z)
	require.Equal(uint16(65535), p.Intensity)
	require.Equal(uint8(5), p.ReturnNumber)
	require.Equal(uint8(7), p.NumberOfReturns)
	require.True(p.Synthetic)
	require.False(p.KeyPoint)
	require.True(p.Withheld)
	require.True(p.Overlap)
	require.Equal(uint8(2), p.ScannerChannel)
	require.True(p.ScanDirection)
	require.False(p.EdgeOfFlight)
	require.Equal(uint8(200), p.Classification)
	require.Equal(uint8(3), p.UserData)
	require.InDelta(-9.0, p.ScanAngle, 1e-9)
	require.Equal(uint16(12), p.PointSourceID)
	require.True(p.HasGPSTime)
	require.Equal(987.25, p.GPSTime)
}

func TestReadPoint_EveryIndex(t *testing.T) {
	require := require.New(t)

	const n = 50
	f := newTestFile(3, 34)
	for i := 0; i < n; i++ {
		f.records = append(f.records, legacyRecord(34, int32(i*1000), int32(-i*7), int32(i), uint16(i), 1|1<<3, 2, 0, float64(i)))
	}

	r, err := NewReader("mem.las", bytes.NewReader(f.bytes()), 0)
	require.NoError(err)
	defer func() { _ = r.Close() }()

	h := r.Header()
	var p PointRecord
	for i := int64(0); i < r.PointCount(); i++ {
		require.NoError(r.ReadPoint(i, &p))
		require.Equal(float64(i*1000)*h.XScale+h.XOffset, p.X)
		require.Equal(float64(-i*7)*h.YScale+h.YOffset, p.Y)
		require.Equal(float64(i)*h.ZScale+h.ZOffset, p.Z)
		require.Equal(float64(i), p.GPSTime)
	}

	err = r.ReadPoint(n, &p)
	require.ErrorIs(err, errs.ErrIndexOutOfRange)
	var fe *errs.FormatError
	require.ErrorAs(err, &fe)
	require.Equal(int64(n), fe.Record)

	require.ErrorIs(r.ReadPoint(-1, &p), errs.ErrIndexOutOfRange)
}

func TestReadPoint_Compressed(t *testing.T) {
	require := require.New(t)

	f := newTestFile(0x80|1, 28)
	f.records = [][]byte{legacyRecord(28, 1, 2, 3, 4, 0x09, 2, 0, 1)}

	r, err := NewReader("mem.laz", bytes.NewReader(f.bytes()), 0)
	require.NoError(err)
	defer func() { _ = r.Close() }()

	require.True(r.IsCompressed())
	require.True(r.Header().Compressed)
	require.Equal(uint8(1), r.Header().PointFormat)

	p := PointRecord{X: 42}
	for _, i := range []int64{0, 1, -1, 1000} {
		err := r.ReadPoint(i, &p)
		require.ErrorIs(err, errs.ErrCompressed, "index %d", i)
		require.True(errs.IsFormatError(err))
	}
	require.Equal(42.0, p.X, "record must not be touched")
}

func TestReadPoint_Closed(t *testing.T) {
	f := newTestFile(0, 20)
	f.records = [][]byte{legacyRecord(20, 1, 2, 3, 4, 0x09, 2, 0, 0)}

	r, err := Open(f.write(t))
	require.NoError(t, err)
	require.NoError(t, r.Close())

	var p PointRecord
	err = r.ReadPoint(0, &p)
	require.ErrorIs(t, err, errs.ErrClosed)
	require.True(t, errs.IsStateError(err))
}

func TestReadPoint_UnsupportedFormat(t *testing.T) {
	f := newTestFile(11, 30)
	f.records = [][]byte{make([]byte, 30)}

	r, err := NewReader("mem.las", bytes.NewReader(f.bytes()), 0)
	require.NoError(t, err)

	var p PointRecord
	require.ErrorIs(t, r.ReadPoint(0, &p), errs.ErrUnsupportedPointFormat)
}

func TestReadPoint_RecordTooShort(t *testing.T) {
	f := newTestFile(1, 20)
	f.records = [][]byte{make([]byte, 20)}

	r, err := NewReader("mem.las", bytes.NewReader(f.bytes()), 0)
	require.NoError(t, err)

	var p PointRecord
	require.ErrorIs(t, r.ReadPoint(0, &p), errs.ErrInvalidData)
}

func TestCreationDate(t *testing.T) {
	assert.True(t, creationDate(0, 0).IsZero())
	assert.Equal(t, time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC), creationDate(1, 2020))
	assert.Equal(t, time.Date(2020, time.December, 31, 0, 0, 0, 0, time.UTC), creationDate(366, 2020))
	assert.Equal(t, time.Date(2019, time.January, 1, 0, 0, 0, 0, time.UTC), creationDate(0, 2019))
}

func TestLayoutFor(t *testing.T) {
	tests := map[uint8]pointLayout{
		0: layoutLegacy, 1: layoutLegacyGPS, 2: layoutLegacy, 3: layoutLegacyGPS,
		4: layoutLegacyGPS, 5: layoutLegacyGPS, 6: layoutExtended, 10: layoutExtended,
		11: layoutUnsupported,
	}
	for format, want := range tests {
		assert.Equal(t, want, layoutFor(format), "format %d", format)
	}
}

func BenchmarkReadPoint(b *testing.B) {
	f := newTestFile(1, 28)
	for i := 0; i < 1000; i++ {
		f.records = append(f.records, legacyRecord(28, int32(i), int32(i), int32(i), 1, 0x09, 2, 0, 0))
	}
	data := f.bytes()

	r, err := NewReader("bench.las", bytes.NewReader(data), int64(len(data)))
	if err != nil {
		b.Fatal(err)
	}

	var p PointRecord
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := r.ReadPoint(int64(i%1000), &p); err != nil {
			b.Fatal(err)
		}
	}
}

// float bits helper shared with geotiff tests
func doublesPayload(vs ...float64) []byte {
	b := make([]byte, 8*len(vs))
	for i, v := range vs {
		binary.LittleEndian.PutUint64(b[i*8:], math.Float64bits(v))
	}
	return b
}

func TestReadPoint_LegacyScanDirectionBit(t *testing.T) {
	f := newTestFile(0, 20)
	f.records = [][]byte{
		legacyRecord(20, 0, 0, 0, 0, 0x20, 2, 0, 0),
		legacyRecord(20, 0, 0, 0, 0, 0x40, 2, 0, 0),
	}
	r, err := NewReader("mem.las", bytes.NewReader(f.bytes()), 0)
	require.NoError(t, err)
	defer func() { _ = r.Close() }()

	var p PointRecord
	require.NoError(t, r.ReadPoint(0, &p))
	assert.Equal(t, uint8(4), p.NumberOfReturns, "bit 5 belongs to the number of returns")
	assert.False(t, p.ScanDirection)

	require.NoError(t, r.ReadPoint(1, &p))
	assert.Equal(t, uint8(0), p.NumberOfReturns)
	assert.True(t, p.ScanDirection)
}

func extendedWKTFile() *testFile {
	f := newTestFile(6, 30)
	f.h.VersionMinor = 4
	f.h.HeaderSize = extendedHeaderSize
	f.h.GlobalEncoding = 0x0010
	f.h.PointCount = 1
	f.records = [][]byte{extendedRecord(1, 2, 3, 4, 0x11, 0, 2, 0, 10)}
	f.evlrs = []testVLR{{userID: "LASF_Projection", id: OGCWKTRecordID, desc: "wkt", payload: []byte("GEOGCS[\"WGS 84\"]\x00")}}
	return f
}

func TestOpen_OversizedRecordLength(t *testing.T) {
	t.Run("extended record", func(t *testing.T) {
		data := extendedWKTFile().bytes()
		lengthAt := len(data) - len("GEOGCS[\"WGS 84\"]\x00") - evlrHeaderSize + 20
		binary.LittleEndian.PutUint64(data[lengthAt:], 1<<62)

		_, err := NewReader("big.las", bytes.NewReader(data), int64(len(data)))
		require.Error(t, err)
		assert.ErrorIs(t, err, errs.ErrInvalidData)
		assert.True(t, errs.IsFormatError(err))

		// Without a known size the payload is rejected when read.
		r, err := NewReader("big.las", bytes.NewReader(data), 0)
		require.NoError(t, err)
		defer func() { _ = r.Close() }()
		_, _, err = r.WKT()
		assert.ErrorIs(t, err, errs.ErrInvalidData)
	})

	t.Run("legacy record", func(t *testing.T) {
		f := newTestFile(0, 20)
		f.vlrs = []testVLR{{userID: "extra", id: 1, payload: []byte("abc")}}
		f.records = [][]byte{legacyRecord(20, 1, 2, 3, 4, 0x09, 2, 0, 0)}
		data := f.bytes()
		binary.LittleEndian.PutUint16(data[legacyHeaderSize+20:], math.MaxUint16)

		_, err := NewReader("big.las", bytes.NewReader(data), int64(len(data)))
		require.Error(t, err)
		assert.ErrorIs(t, err, errs.ErrInvalidData)
	})
}
