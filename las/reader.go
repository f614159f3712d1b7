// Package las reads uncompressed LAS lidar point clouds.
//
// Open parses the public header, the variable length records and, when
// present, the GeoTIFF key directory. Points are then decoded one at a time
// into a caller-owned PointRecord:
//
//	r, err := las.Open("tile.las")
//	if err != nil {
//		return err
//	}
//	defer r.Close()
//
//	var p las.PointRecord
//	for i := int64(0); i < r.PointCount(); i++ {
//		if err := r.ReadPoint(i, &p); err != nil {
//			return err
//		}
//		// use p.X, p.Y, p.Z
//	}
//
// Compressed (LAZ) files are recognized from the header and every point read
// on them fails with errs.ErrCompressed.
//
// A Reader is not safe for concurrent use. Open one Reader per goroutine.
package las

import (
	"fmt"
	"io"
	"strings"

	"github.com/tingold/orb-tinsource/errs"
	"github.com/tingold/orb-tinsource/internal/bytereader"
)

// Reader decodes one LAS file.
type Reader struct {
	br     *bytereader.Reader
	header *FileHeader
	vlrs   []VariableLengthRecord
	geo    *GeoReferenceData
	layout pointLayout
}

// Open opens and parses the LAS file at path.
func Open(path string) (*Reader, error) {
	br, err := bytereader.Open(path)
	if err != nil {
		return nil, err
	}
	return newReader(br)
}

// NewReader parses a LAS file from src. name is used in error messages.
func NewReader(name string, src io.ReadSeeker, size int64) (*Reader, error) {
	return newReader(bytereader.New(name, src, size))
}

func newReader(br *bytereader.Reader) (*Reader, error) {
	r := &Reader{br: br}
	if err := r.init(); err != nil {
		_ = br.Close()
		return nil, err
	}
	return r, nil
}

func (r *Reader) init() error {
	h, err := decodeHeader(r.br)
	if err != nil {
		return err
	}
	r.header = h
	r.layout = layoutFor(h.PointFormat)

	if err := r.br.Seek(int64(h.HeaderSize)); err != nil {
		return err
	}
	r.vlrs, err = decodeVLRs(r.br, h.NumberOfVLRs)
	if err != nil {
		return err
	}

	evlrs, err := decodeEVLRs(r.br, h.ExtendedVLROffset, h.NumberOfExtendedVLRs)
	if err != nil {
		return err
	}
	r.vlrs = append(r.vlrs, evlrs...)

	if h.CRSMode == CRSGeoTIFF {
		r.geo, err = decodeGeoReference(r.br, r.vlrs)
		if err != nil {
			return errs.Format(r.br.Name(), errs.ErrInvalidData, "GeoTIFF key directory: "+err.Error())
		}
	}

	return nil
}

// Path returns the name the reader was opened with.
func (r *Reader) Path() string { return r.br.Name() }

// Header returns the parsed file header.
func (r *Reader) Header() *FileHeader { return r.header }

// VLRs returns the variable length records in file order, followed by any
// extended records.
func (r *Reader) VLRs() []VariableLengthRecord { return r.vlrs }

// FindVLR returns the first record with recordID.
func (r *Reader) FindVLR(recordID uint16) (VariableLengthRecord, bool) {
	return findVLR(r.vlrs, recordID)
}

// PointCount returns the number of point records.
func (r *Reader) PointCount() int64 { return int64(r.header.PointCount) }

// IsCompressed reports whether the header marks the point data as compressed.
func (r *Reader) IsCompressed() bool { return r.header.Compressed }

// GeoReference returns the GeoTIFF directory. ok is false when the file uses
// WKT or carries no key directory.
func (r *Reader) GeoReference() (g *GeoReferenceData, ok bool) {
	return r.geo, r.geo != nil
}

// ModelType returns the GeoTIFF model type, or ModelUnknown when no
// reference metadata is available.
func (r *Reader) ModelType() ModelType {
	if r.geo == nil {
		return ModelUnknown
	}
	return r.geo.ModelType()
}

// UsesGeographicModel reports whether coordinates are longitude/latitude.
func (r *Reader) UsesGeographicModel() bool {
	return r.ModelType() == ModelGeographic
}

// LinearUnits returns the coordinate unit, or UnitsUnknown.
func (r *Reader) LinearUnits() LinearUnits {
	if r.geo == nil {
		return UnitsUnknown
	}
	return r.geo.LinearUnits()
}

// WKT returns the raw OGC well-known text of a WKT-mode file. The text is
// not interpreted.
func (r *Reader) WKT() (string, bool, error) {
	if r.header.CRSMode != CRSWKT {
		return "", false, nil
	}
	v, ok := r.FindVLR(OGCWKTRecordID)
	if !ok {
		return "", false, nil
	}
	b, err := readPayload(r.br, v)
	if err != nil {
		return "", false, err
	}
	return strings.TrimRight(string(b), "\x00"), true, nil
}

// ReadPoint decodes the record at index into p.
func (r *Reader) ReadPoint(index int64, p *PointRecord) error {
	if r.br.IsClosed() {
		return errs.Closed(r.br.Name(), "read point")
	}
	h := r.header
	if h.Compressed {
		return errs.Record(r.br.Name(), index, errs.ErrCompressed, "")
	}
	if index < 0 || index >= r.PointCount() {
		return errs.Record(r.br.Name(), index, errs.ErrIndexOutOfRange,
			fmt.Sprintf("file holds %d points", r.PointCount()))
	}
	if r.layout == layoutUnsupported {
		return errs.Record(r.br.Name(), index, errs.ErrUnsupportedPointFormat,
			fmt.Sprintf("format %d", h.PointFormat))
	}
	if int(h.PointRecordLength) < r.layout.minRecordLength() {
		return errs.Record(r.br.Name(), index, errs.ErrInvalidData,
			fmt.Sprintf("record length %d too short for format %d", h.PointRecordLength, h.PointFormat))
	}

	offset := int64(h.OffsetToPointData) + index*int64(h.PointRecordLength)
	if err := r.br.Seek(offset); err != nil {
		return err
	}

	fr := fieldReader{br: r.br}
	x := int32(fr.u32())
	y := int32(fr.u32())
	z := int32(fr.u32())
	p.Intensity = fr.u16()
	if fr.err != nil {
		return errs.Record(r.br.Name(), index, errs.ErrInvalidData, fr.err.Error())
	}
	p.X = float64(x)*h.XScale + h.XOffset
	p.Y = float64(y)*h.YScale + h.YOffset
	p.Z = float64(z)*h.ZScale + h.ZOffset

	if err := r.decodePoint(p); err != nil {
		return errs.Record(r.br.Name(), index, errs.ErrInvalidData, err.Error())
	}

	return nil
}

// Close releases the file. Later reads fail with errs.ErrClosed.
func (r *Reader) Close() error {
	return r.br.Close()
}
