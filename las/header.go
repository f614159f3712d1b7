package las

import (
	"fmt"
	"time"

	"github.com/paulmach/orb"

	"github.com/tingold/orb-tinsource/errs"
	"github.com/tingold/orb-tinsource/internal/bytereader"
)

// Signature is the magic value at the start of every LAS file.
const Signature = "LASF"

const (
	// legacyHeaderSize is the stream position after the min/max block.
	legacyHeaderSize = 227
	// extendedHeaderSize is the LAS 1.4 header size, which adds the waveform
	// and EVLR offsets, the EVLR count and the 64-bit point counts.
	extendedHeaderSize = 375

	compressedFlag  = 0x80
	pointFormatMask = 0x3f

	gpsTimeTypeBit = 0x0001
	wktBit         = 0x0010
)

// CRSMode identifies how the coordinate reference system is stored.
type CRSMode uint8

const (
	CRSGeoTIFF CRSMode = iota
	CRSWKT
)

func (m CRSMode) String() string {
	if m == CRSWKT {
		return "WKT"
	}
	return "GeoTIFF"
}

// GPSTimeType identifies the meaning of point GPS time values.
type GPSTimeType uint8

const (
	// GPSWeekTime is seconds into the GPS week.
	GPSWeekTime GPSTimeType = iota
	// GPSSatelliteTime is adjusted standard GPS time (satellite time minus 1e9).
	GPSSatelliteTime
)

func (g GPSTimeType) String() string {
	if g == GPSSatelliteTime {
		return "satellite"
	}
	return "week"
}

// FileHeader is the public header block of a LAS file.
type FileHeader struct {
	Signature          string
	FileSourceID       uint16
	GlobalEncoding     uint16
	ProjectID          [16]byte
	VersionMajor       uint8
	VersionMinor       uint8
	SystemIdentifier   string
	GeneratingSoftware string
	CreationDay        uint16
	CreationYear       uint16
	// CreationDate is midnight UTC of the creation day, or the zero time when
	// the file does not record one.
	CreationDate time.Time

	HeaderSize        uint16
	OffsetToPointData uint32
	NumberOfVLRs      uint32
	// PointFormat is the point data record format with the compression bits
	// removed.
	PointFormat       uint8
	Compressed        bool
	PointRecordLength uint16

	LegacyPointCount     uint32
	LegacyPointsByReturn [5]uint32

	XScale, YScale, ZScale    float64
	XOffset, YOffset, ZOffset float64
	MaxX, MinX                float64
	MaxY, MinY                float64
	MaxZ, MinZ                float64

	WaveformDataOffset   int64
	ExtendedVLROffset    int64
	NumberOfExtendedVLRs uint32
	PointCount           uint64
	PointsByReturn       [15]uint64

	CRSMode     CRSMode
	GPSTimeType GPSTimeType
}

// Version returns the version as "major.minor".
func (h *FileHeader) Version() string {
	return fmt.Sprintf("%d.%d", h.VersionMajor, h.VersionMinor)
}

// Bound returns the horizontal extent declared by the header.
func (h *FileHeader) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{h.MinX, h.MinY},
		Max: orb.Point{h.MaxX, h.MaxY},
	}
}

// creationDate converts a day-of-year and year into a UTC calendar date.
func creationDate(day, year uint16) time.Time {
	if year == 0 {
		return time.Time{}
	}
	t := time.Date(int(year), time.January, 1, 0, 0, 0, 0, time.UTC)
	if day > 1 {
		t = t.AddDate(0, 0, int(day)-1)
	}
	return t
}

// decodeHeader reads the public header block starting at offset zero.
func decodeHeader(br *bytereader.Reader) (*FileHeader, error) {
	var (
		h   FileHeader
		err error
	)

	if err = br.Seek(0); err != nil {
		return nil, err
	}

	var sig [4]byte
	if err = br.ReadFull(sig[:]); err != nil {
		return nil, errs.Format(br.Name(), errs.ErrNotLAS, "file too short for a signature")
	}
	if string(sig[:]) != Signature {
		return nil, errs.Format(br.Name(), errs.ErrNotLAS, fmt.Sprintf("signature %q", sig[:]))
	}
	h.Signature = Signature

	r := fieldReader{br: br}
	h.FileSourceID = r.u16()
	h.GlobalEncoding = r.u16()
	r.bytes(h.ProjectID[:])
	h.VersionMajor = r.u8()
	h.VersionMinor = r.u8()
	h.SystemIdentifier = r.ascii(32)
	h.GeneratingSoftware = r.ascii(32)
	h.CreationDay = r.u16()
	h.CreationYear = r.u16()
	h.HeaderSize = r.u16()
	h.OffsetToPointData = r.u32()
	h.NumberOfVLRs = r.u32()

	format := r.u8()
	h.Compressed = format&compressedFlag != 0
	h.PointFormat = format & pointFormatMask

	h.PointRecordLength = r.u16()
	h.LegacyPointCount = r.u32()
	for i := range h.LegacyPointsByReturn {
		h.LegacyPointsByReturn[i] = r.u32()
	}

	h.XScale = r.f64()
	h.YScale = r.f64()
	h.ZScale = r.f64()
	h.XOffset = r.f64()
	h.YOffset = r.f64()
	h.ZOffset = r.f64()
	h.MaxX = r.f64()
	h.MinX = r.f64()
	h.MaxY = r.f64()
	h.MinY = r.f64()
	h.MaxZ = r.f64()
	h.MinZ = r.f64()
	if r.err != nil {
		return nil, errs.Format(br.Name(), errs.ErrInvalidData, "truncated header: "+r.err.Error())
	}

	if int64(h.HeaderSize) < br.Position()+(extendedHeaderSize-legacyHeaderSize) {
		h.PointCount = uint64(h.LegacyPointCount)
		for i, n := range h.LegacyPointsByReturn {
			h.PointsByReturn[i] = uint64(n)
		}
	} else {
		h.WaveformDataOffset = r.i64()
		h.ExtendedVLROffset = r.i64()
		h.NumberOfExtendedVLRs = r.u32()
		h.PointCount = r.u64()
		for i := range h.PointsByReturn {
			h.PointsByReturn[i] = r.u64()
		}
		if r.err != nil {
			return nil, errs.Format(br.Name(), errs.ErrInvalidData, "truncated extended header: "+r.err.Error())
		}
	}

	if h.GlobalEncoding&wktBit != 0 {
		h.CRSMode = CRSWKT
	}
	if h.GlobalEncoding&gpsTimeTypeBit != 0 {
		h.GPSTimeType = GPSSatelliteTime
	}
	h.CreationDate = creationDate(h.CreationDay, h.CreationYear)

	return &h, nil
}

// fieldReader collects the first error of a run of sequential reads so the
// header layout reads top to bottom.
type fieldReader struct {
	br  *bytereader.Reader
	err error
}

func (r *fieldReader) u8() uint8 {
	if r.err != nil {
		return 0
	}
	var v uint8
	v, r.err = r.br.ReadU8()
	return v
}

func (r *fieldReader) u16() uint16 {
	if r.err != nil {
		return 0
	}
	var v uint16
	v, r.err = r.br.ReadU16()
	return v
}

func (r *fieldReader) u32() uint32 {
	if r.err != nil {
		return 0
	}
	var v uint32
	v, r.err = r.br.ReadU32()
	return v
}

func (r *fieldReader) u64() uint64 {
	if r.err != nil {
		return 0
	}
	var v uint64
	v, r.err = r.br.ReadU64()
	return v
}

func (r *fieldReader) i64() int64 {
	if r.err != nil {
		return 0
	}
	var v int64
	v, r.err = r.br.ReadI64()
	return v
}

func (r *fieldReader) f64() float64 {
	if r.err != nil {
		return 0
	}
	var v float64
	v, r.err = r.br.ReadF64()
	return v
}

func (r *fieldReader) ascii(n int) string {
	if r.err != nil {
		return ""
	}
	var v string
	v, r.err = r.br.ReadASCII(n)
	return v
}

func (r *fieldReader) bytes(p []byte) {
	if r.err != nil {
		return
	}
	r.err = r.br.ReadFull(p)
}
