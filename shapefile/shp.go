package shapefile

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/paulmach/orb"

	"github.com/tingold/orb-tinsource/errs"
	"github.com/tingold/orb-tinsource/internal/bytereader"
)

const (
	fileCode       = 9994
	fileVersion    = 1000
	mainHeaderSize = 100
)

// Header is the 100-byte main file header shared by .shp and .shx files.
type Header struct {
	FileCode int32
	// FileLength is the total file length in bytes.
	FileLength int64
	Version    int32
	ShapeType  ShapeType
	Bound      orb.Bound
	ZMin, ZMax float64
	MMin, MMax float64
}

func decodeHeader(br *bytereader.Reader) (Header, error) {
	var h Header
	code, err := br.ReadI32BE()
	if err != nil {
		return h, errs.Format(br.Name(), errs.ErrInvalidData, "truncated main header")
	}
	if code != fileCode {
		return h, errs.Format(br.Name(), errs.ErrInvalidData, fmt.Sprintf("file code %d", code))
	}
	h.FileCode = code

	if err := br.Skip(20); err != nil {
		return h, errs.Format(br.Name(), errs.ErrInvalidData, "truncated main header")
	}
	words, err := br.ReadI32BE()
	if err != nil {
		return h, errs.Format(br.Name(), errs.ErrInvalidData, "truncated main header")
	}
	h.FileLength = 2 * int64(words)

	r := valueReader{br: br}
	h.Version = r.i32()
	h.ShapeType = ShapeType(r.i32())
	h.Bound = r.bound()
	h.ZMin, h.ZMax = r.f64(), r.f64()
	h.MMin, h.MMax = r.f64(), r.f64()
	if r.err != nil {
		return h, errs.Format(br.Name(), errs.ErrInvalidData, "truncated main header")
	}
	if h.Version != fileVersion {
		return h, errs.Format(br.Name(), errs.ErrInvalidData, fmt.Sprintf("version %d", h.Version))
	}
	return h, nil
}

// Reader decodes the geometry records of a .shp file. Records are read
// sequentially with Next, or by index with ReadRecord when a .shx index is
// available. A Reader is not safe for concurrent use.
type Reader struct {
	br     *bytereader.Reader
	header Header
	index  *Index
	end    int64
}

// Open opens a .shp file. A sibling .shx file is used for random access
// when present.
func Open(path string) (*Reader, error) {
	br, err := bytereader.Open(path)
	if err != nil {
		return nil, err
	}
	r, err := newReader(br)
	if err != nil {
		return nil, err
	}

	idx, err := OpenIndex(siblingPath(path, ".shx"))
	switch {
	case err == nil:
		r.index = idx
	case errors.Is(err, os.ErrNotExist):
	default:
		_ = r.Close()
		return nil, err
	}

	return r, nil
}

// NewReader returns a Reader over src. size may be zero when unknown.
func NewReader(name string, src io.ReadSeeker, size int64) (*Reader, error) {
	return newReader(bytereader.New(name, src, size))
}

func newReader(br *bytereader.Reader) (*Reader, error) {
	h, err := decodeHeader(br)
	if err != nil {
		_ = br.Close()
		return nil, err
	}
	r := &Reader{br: br, header: h, end: h.FileLength}
	if size := br.Size(); size > 0 && (r.end == 0 || r.end > size) {
		r.end = size
	}
	return r, nil
}

// WithIndex attaches a record index for ReadRecord.
func (r *Reader) WithIndex(idx *Index) *Reader {
	r.index = idx
	return r
}

// Path returns the name the reader was opened with.
func (r *Reader) Path() string { return r.br.Name() }

// Header returns the main file header.
func (r *Reader) Header() Header { return r.header }

// ShapeType returns the shape type declared in the main header.
func (r *Reader) ShapeType() ShapeType { return r.header.ShapeType }

// RecordCount returns the number of records from the index, or -1 when no
// index is attached.
func (r *Reader) RecordCount() int {
	if r.index == nil {
		return -1
	}
	return r.index.Len()
}

// Rewind positions the reader before the first record.
func (r *Reader) Rewind() error {
	if r.br.IsClosed() {
		return errs.Closed(r.Path(), "rewind")
	}
	return r.br.Seek(mainHeaderSize)
}

// Next decodes the record at the current position into rec. It returns
// io.EOF after the last record.
func (r *Reader) Next(rec *ShapeRecord) error {
	if r.br.IsClosed() {
		return errs.Closed(r.Path(), "read record")
	}
	if r.br.Position() < mainHeaderSize {
		if err := r.br.Seek(mainHeaderSize); err != nil {
			return err
		}
	}
	if r.end > 0 && r.br.Position()+recordHeaderSize > r.end {
		return io.EOF
	}

	start := r.br.Position()
	err := decodeRecord(r.br, rec)
	if err != nil && r.end == 0 && r.br.Position() == start && errors.Is(err, io.ErrUnexpectedEOF) {
		return io.EOF
	}
	return r.wrap(err, int64(rec.RecordNumber)-1)
}

// ReadRecord decodes the zero-based record i using the attached index.
func (r *Reader) ReadRecord(i int, rec *ShapeRecord) error {
	if r.br.IsClosed() {
		return errs.Closed(r.Path(), "read record")
	}
	if r.index == nil {
		return errs.Format(r.Path(), errs.ErrUnsupportedInput, "no .shx index for random access")
	}
	offset, ok := r.index.Offset(i)
	if !ok {
		return errs.Record(r.Path(), int64(i), errs.ErrIndexOutOfRange, fmt.Sprintf("%d records", r.index.Len()))
	}
	if err := r.br.Seek(offset); err != nil {
		return err
	}
	return r.wrap(decodeRecord(r.br, rec), int64(i))
}

// wrap attaches the file and zero-based record index to a decode failure.
func (r *Reader) wrap(err error, index int64) error {
	if err == nil {
		return nil
	}
	var fe *errs.FormatError
	var se *errs.StateError
	if errors.As(err, &fe) || errors.As(err, &se) {
		return err
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return errs.Record(r.Path(), index, errs.ErrInvalidData, "truncated record")
	}
	return errs.Record(r.Path(), index, errs.ErrInvalidData, err.Error())
}

// Close releases the .shp handle.
func (r *Reader) Close() error {
	return r.br.Close()
}

// siblingPath swaps the extension of path, matching the case of the
// existing extension.
func siblingPath(path, ext string) string {
	base := strings.TrimSuffix(path, filepath.Ext(path))
	if e := filepath.Ext(path); e != "" && e == strings.ToUpper(e) {
		ext = strings.ToUpper(ext)
	}
	return base + ext
}
