package las

import (
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// testVLR is a record to embed in a synthetic file.
type testVLR struct {
	userID  string
	id      uint16
	desc    string
	payload []byte
}

// testFile describes a synthetic LAS file. Fields left zero take the values
// set by newTestFile.
type testFile struct {
	h       FileHeader
	format  byte // raw format byte, including compression bits
	vlrs    []testVLR
	evlrs   []testVLR
	records [][]byte
}

func newTestFile(format byte, recordLength uint16) *testFile {
	return &testFile{
		format: format,
		h: FileHeader{
			FileSourceID:       7,
			VersionMajor:       1,
			VersionMinor:       2,
			SystemIdentifier:   "SYNTHETIC",
			GeneratingSoftware: "tinsource tests",
			CreationDay:        32,
			CreationYear:       2021,
			HeaderSize:         legacyHeaderSize,
			PointRecordLength:  recordLength,
			XScale:             0.01,
			YScale:             0.01,
			ZScale:             0.001,
			XOffset:            500000,
			YOffset:            4000000,
			ZOffset:            -10,
			MaxX:               500100.5,
			MinX:               499900.25,
			MaxY:               4000200.75,
			MinY:               3999800.125,
			MaxZ:               120.5,
			MinZ:               -3.25,
		},
	}
}

func putString(buf *bytes.Buffer, s string, n int) {
	b := make([]byte, n)
	copy(b, s)
	buf.Write(b)
}

func writeVLRHeader(buf *bytes.Buffer, v testVLR, extended bool) {
	le := binary.LittleEndian
	_ = binary.Write(buf, le, uint16(0))
	putString(buf, v.userID, 16)
	_ = binary.Write(buf, le, v.id)
	if extended {
		_ = binary.Write(buf, le, uint64(len(v.payload)))
	} else {
		_ = binary.Write(buf, le, uint16(len(v.payload)))
	}
	putString(buf, v.desc, 32)
}

func (f *testFile) bytes() []byte {
	le := binary.LittleEndian
	h := &f.h

	vlrBytes := 0
	for _, v := range f.vlrs {
		vlrBytes += vlrHeaderSize + len(v.payload)
	}
	h.NumberOfVLRs = uint32(len(f.vlrs))
	h.OffsetToPointData = uint32(int(h.HeaderSize) + vlrBytes)
	if h.LegacyPointCount == 0 && h.PointCount == 0 {
		h.LegacyPointCount = uint32(len(f.records))
	}

	var buf bytes.Buffer
	buf.WriteString(Signature)
	_ = binary.Write(&buf, le, h.FileSourceID)
	_ = binary.Write(&buf, le, h.GlobalEncoding)
	buf.Write(h.ProjectID[:])
	buf.WriteByte(h.VersionMajor)
	buf.WriteByte(h.VersionMinor)
	putString(&buf, h.SystemIdentifier, 32)
	putString(&buf, h.GeneratingSoftware, 32)
	_ = binary.Write(&buf, le, h.CreationDay)
	_ = binary.Write(&buf, le, h.CreationYear)
	_ = binary.Write(&buf, le, h.HeaderSize)
	_ = binary.Write(&buf, le, h.OffsetToPointData)
	_ = binary.Write(&buf, le, h.NumberOfVLRs)
	buf.WriteByte(f.format)
	_ = binary.Write(&buf, le, h.PointRecordLength)
	_ = binary.Write(&buf, le, h.LegacyPointCount)
	_ = binary.Write(&buf, le, h.LegacyPointsByReturn)
	for _, v := range []float64{
		h.XScale, h.YScale, h.ZScale,
		h.XOffset, h.YOffset, h.ZOffset,
		h.MaxX, h.MinX, h.MaxY, h.MinY, h.MaxZ, h.MinZ,
	} {
		_ = binary.Write(&buf, le, v)
	}

	if h.HeaderSize >= extendedHeaderSize {
		evlrOffset := int64(0)
		if len(f.evlrs) > 0 {
			evlrOffset = int64(h.OffsetToPointData) + int64(len(f.records))*int64(h.PointRecordLength)
		}
		_ = binary.Write(&buf, le, h.WaveformDataOffset)
		_ = binary.Write(&buf, le, evlrOffset)
		_ = binary.Write(&buf, le, uint32(len(f.evlrs)))
		_ = binary.Write(&buf, le, h.PointCount)
		_ = binary.Write(&buf, le, h.PointsByReturn)
	}
	for buf.Len() < int(h.HeaderSize) {
		buf.WriteByte(0)
	}

	for _, v := range f.vlrs {
		writeVLRHeader(&buf, v, false)
		buf.Write(v.payload)
	}
	for _, rec := range f.records {
		buf.Write(rec)
	}
	for _, v := range f.evlrs {
		writeVLRHeader(&buf, v, true)
		buf.Write(v.payload)
	}

	return buf.Bytes()
}

func (f *testFile) write(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.las")
	require.NoError(t, os.WriteFile(path, f.bytes(), 0o600))
	return path
}

// legacyRecord encodes a format 0-5 record of the given length.
func legacyRecord(length int, x, y, z int32, intensity uint16, returns, class byte, scanAngle int8, gps float64) []byte {
	le := binary.LittleEndian
	b := make([]byte, length)
	le.PutUint32(b[0:], uint32(x))
	le.PutUint32(b[4:], uint32(y))
	le.PutUint32(b[8:], uint32(z))
	le.PutUint16(b[12:], intensity)
	b[14] = returns
	b[15] = class
	b[16] = byte(scanAngle)
	b[17] = 9
	le.PutUint16(b[18:], 77)
	if length >= 28 {
		le.PutUint64(b[20:], math.Float64bits(gps))
	}
	return b
}

// extendedRecord encodes a format 6 record.
func extendedRecord(x, y, z int32, intensity uint16, returns, flags, class byte, scanAngle int16, gps float64) []byte {
	le := binary.LittleEndian
	b := make([]byte, 30)
	le.PutUint32(b[0:], uint32(x))
	le.PutUint32(b[4:], uint32(y))
	le.PutUint32(b[8:], uint32(z))
	le.PutUint16(b[12:], intensity)
	b[14] = returns
	b[15] = flags
	b[16] = class
	b[17] = 3
	le.PutUint16(b[18:], uint16(scanAngle))
	le.PutUint16(b[20:], 12)
	le.PutUint64(b[22:], math.Float64bits(gps))
	return b
}

// geoKeyPayload encodes a GeoTIFF key directory with the given entries.
func geoKeyPayload(keys ...GeoKeyEntry) []byte {
	le := binary.LittleEndian
	var buf bytes.Buffer
	for _, v := range []uint16{1, 1, 0, uint16(len(keys))} {
		_ = binary.Write(&buf, le, v)
	}
	for _, k := range keys {
		_ = binary.Write(&buf, le, k)
	}
	return buf.Bytes()
}
