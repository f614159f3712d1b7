package shapefile

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"

	"github.com/tingold/orb-tinsource/errs"
	"github.com/tingold/orb-tinsource/internal/bytereader"
)

// recordHeaderSize is the big-endian record number and content length.
const recordHeaderSize = 8

// ShapeRecord is a caller-owned geometry record that the Reader overwrites
// on each read. Its slices only ever grow, so reading many records into the
// same ShapeRecord settles into zero allocations. The contents are valid
// until the next read into it.
type ShapeRecord struct {
	ShapeType    ShapeType
	RecordNumber int
	NPoints      int
	NParts       int
	// PartStart holds NParts+1 offsets into the point sequence; the last is
	// NPoints, so part i spans PartStart[i]:PartStart[i+1].
	PartStart []int
	// XYZ holds NPoints coordinate triples. Z is zero for types without Z.
	XYZ        []float64
	Bound      orb.Bound
	ZMin, ZMax float64
}

// Point returns the i-th point.
func (r *ShapeRecord) Point(i int) (x, y, z float64) {
	return r.XYZ[3*i], r.XYZ[3*i+1], r.XYZ[3*i+2]
}

// PartPoints returns the number of points in part i.
func (r *ShapeRecord) PartPoints(i int) int {
	return r.PartStart[i+1] - r.PartStart[i]
}

// grow sizes the slices for n points and parts, reusing capacity.
func (r *ShapeRecord) grow(nPoints, nParts int) {
	if cap(r.XYZ) < 3*nPoints {
		r.XYZ = make([]float64, 3*nPoints)
	}
	r.XYZ = r.XYZ[:3*nPoints]

	if cap(r.PartStart) < nParts+1 {
		r.PartStart = make([]int, nParts+1)
	}
	r.PartStart = r.PartStart[:nParts+1]

	r.NPoints = nPoints
	r.NParts = nParts
	r.PartStart[nParts] = nPoints
}

func (r *ShapeRecord) reset(t ShapeType, number int) {
	r.ShapeType = t
	r.RecordNumber = number
	r.grow(0, 0)
	r.Bound = orb.Bound{}
	r.ZMin, r.ZMax = 0, 0
}

// decodeRecord reads one record, header included, from the current position.
func decodeRecord(br *bytereader.Reader, rec *ShapeRecord) error {
	number, err := br.ReadI32BE()
	if err != nil {
		return err
	}
	words, err := br.ReadI32BE()
	if err != nil {
		return err
	}
	if words < 2 {
		return fmt.Errorf("record %d: content length %d words", number, words)
	}
	start := br.Position()
	end := start + 2*int64(words)

	r := valueReader{br: br}
	t := ShapeType(r.i32())
	rec.reset(t, int(number))

	switch {
	case t == NullShape:

	case t.IsPoint():
		rec.grow(1, 1)
		rec.PartStart[0] = 0
		x, y := r.f64(), r.f64()
		z := 0.0
		if t == PointZ {
			z = r.f64()
		}
		rec.XYZ[0], rec.XYZ[1], rec.XYZ[2] = x, y, z
		rec.Bound = orb.Bound{Min: orb.Point{x, y}, Max: orb.Point{x, y}}
		rec.ZMin, rec.ZMax = z, z

	case t.IsMultiPoint():
		rec.Bound = r.bound()
		n := r.count()
		if r.err != nil {
			return r.err
		}
		if 2*int64(n)*8 > end-br.Position() {
			return fmt.Errorf("record %d: %d points exceed content length", number, n)
		}
		rec.grow(n, 1)
		rec.PartStart[0] = 0
		r.points(rec)
		if t == MultiPointZ {
			r.zs(rec)
		}

	case t.IsPolyLine() || t.IsPolygon():
		rec.Bound = r.bound()
		nParts := r.count()
		n := r.count()
		if r.err != nil {
			return r.err
		}
		if int64(nParts)*4+2*int64(n)*8 > end-br.Position() {
			return fmt.Errorf("record %d: %d parts and %d points exceed content length", number, nParts, n)
		}
		rec.grow(n, nParts)
		for i := 0; i < nParts; i++ {
			rec.PartStart[i] = int(r.i32())
		}
		for i := 0; i < nParts && r.err == nil; i++ {
			if rec.PartStart[i] < 0 || rec.PartStart[i] > rec.PartStart[i+1] {
				return fmt.Errorf("record %d: part %d starts at %d", number, i, rec.PartStart[i])
			}
		}
		r.points(rec)
		if t.HasZ() {
			r.zs(rec)
		}

	default:
		return errs.Record(br.Name(), int64(number)-1, errs.ErrUnsupportedShapeType, t.String())
	}

	if r.err != nil {
		return r.err
	}

	// M values and any padding are skipped.
	return br.Seek(end)
}

// valueReader keeps the first error of a run of little-endian reads.
type valueReader struct {
	br  *bytereader.Reader
	err error
}

func (r *valueReader) i32() int32 {
	if r.err != nil {
		return 0
	}
	var v int32
	v, r.err = r.br.ReadI32()
	return v
}

func (r *valueReader) f64() float64 {
	if r.err != nil {
		return 0
	}
	var v float64
	v, r.err = r.br.ReadF64()
	return v
}

func (r *valueReader) count() int {
	v := r.i32()
	if v < 0 && r.err == nil {
		r.err = fmt.Errorf("negative count %d", v)
	}
	if v < 0 {
		return 0
	}
	return int(v)
}

func (r *valueReader) bound() orb.Bound {
	minX, minY, maxX, maxY := r.f64(), r.f64(), r.f64(), r.f64()
	return orb.Bound{Min: orb.Point{minX, minY}, Max: orb.Point{maxX, maxY}}
}

func (r *valueReader) points(rec *ShapeRecord) {
	for i := 0; i < rec.NPoints; i++ {
		rec.XYZ[3*i] = r.f64()
		rec.XYZ[3*i+1] = r.f64()
		rec.XYZ[3*i+2] = 0
	}
}

func (r *valueReader) zs(rec *ShapeRecord) {
	rec.ZMin, rec.ZMax = r.f64(), r.f64()
	for i := 0; i < rec.NPoints; i++ {
		rec.XYZ[3*i+2] = r.f64()
	}
	if r.err != nil || !math.IsNaN(rec.ZMin) {
		return
	}
	// Some writers leave the Z range unset.
	rec.ZMin, rec.ZMax = math.Inf(1), math.Inf(-1)
	for i := 0; i < rec.NPoints; i++ {
		z := rec.XYZ[3*i+2]
		rec.ZMin = math.Min(rec.ZMin, z)
		rec.ZMax = math.Max(rec.ZMax, z)
	}
}
