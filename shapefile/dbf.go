package shapefile

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"time"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"

	"github.com/tingold/orb-tinsource/errs"
	"github.com/tingold/orb-tinsource/internal/bytereader"
)

const (
	dbfFieldSize        = 32
	dbfHeaderTerminator = 0x0D
	dbfDeleted          = '*'
)

// DBFHeader is the fixed 32-byte header of a DBF table.
type DBFHeader struct {
	Version          byte
	LastUpdate       time.Time
	RecordCount      uint32
	HeaderLength     uint16
	RecordLength     uint16
	LanguageDriverID byte
}

// languageDrivers maps DBF language driver ids to code pages.
var languageDrivers = map[byte]*charmap.Charmap{
	0x01: charmap.CodePage437,
	0x02: charmap.CodePage850,
	0x03: charmap.Windows1252,
	0x08: charmap.CodePage865,
	0x09: charmap.CodePage437,
	0x0A: charmap.CodePage850,
	0x0B: charmap.CodePage437,
	0x0D: charmap.CodePage437,
	0x0E: charmap.CodePage850,
	0x0F: charmap.CodePage437,
	0x10: charmap.CodePage850,
	0x11: charmap.CodePage437,
	0x12: charmap.CodePage850,
	0x14: charmap.CodePage850,
	0x15: charmap.CodePage437,
	0x16: charmap.CodePage850,
	0x17: charmap.CodePage865,
	0x18: charmap.CodePage437,
	0x19: charmap.CodePage437,
	0x1A: charmap.CodePage850,
	0x1B: charmap.CodePage437,
	0x1D: charmap.CodePage850,
	0x1F: charmap.CodePage852,
	0x22: charmap.CodePage852,
	0x23: charmap.CodePage852,
	0x24: charmap.CodePage860,
	0x25: charmap.CodePage850,
	0x26: charmap.CodePage866,
	0x37: charmap.CodePage850,
	0x40: charmap.CodePage852,
	0x57: charmap.Windows1252,
	0x58: charmap.Windows1252,
	0x59: charmap.Windows1252,
	0x64: charmap.CodePage852,
	0x65: charmap.CodePage866,
	0x66: charmap.CodePage865,
	0x6A: charmap.CodePage437,
	0x6C: charmap.CodePage863,
	0x86: charmap.CodePage437,
	0x87: charmap.CodePage852,
	0xC8: charmap.Windows1250,
	0xC9: charmap.Windows1251,
	0xCA: charmap.Windows1254,
	0xCB: charmap.Windows1253,
	0xCC: charmap.Windows1257,
}

// codePages maps the contents of a .cpg file to a code page. A nil entry
// means the text is already UTF-8.
var codePages = map[string]*charmap.Charmap{
	"UTF-8":        nil,
	"UTF8":         nil,
	"437":          charmap.CodePage437,
	"850":          charmap.CodePage850,
	"852":          charmap.CodePage852,
	"866":          charmap.CodePage866,
	"1250":         charmap.Windows1250,
	"1251":         charmap.Windows1251,
	"1252":         charmap.Windows1252,
	"1253":         charmap.Windows1253,
	"1254":         charmap.Windows1254,
	"1257":         charmap.Windows1257,
	"CP1250":       charmap.Windows1250,
	"CP1251":       charmap.Windows1251,
	"CP1252":       charmap.Windows1252,
	"WINDOWS-1252": charmap.Windows1252,
	"ISO-8859-1":   charmap.ISO8859_1,
	"ISO88591":     charmap.ISO8859_1,
	"88591":        charmap.ISO8859_1,
	"ISO-8859-2":   charmap.ISO8859_2,
	"88592":        charmap.ISO8859_2,
	"ISO-8859-15":  charmap.ISO8859_15,
	"KOI8-R":       charmap.KOI8R,
}

// CodePage returns the encoding named by the contents of a .cpg file.
// A nil encoding with ok set means UTF-8.
func CodePage(name string) (enc encoding.Encoding, ok bool) {
	cm, ok := codePages[strings.ToUpper(strings.TrimSpace(name))]
	if !ok || cm == nil {
		return nil, ok
	}
	return cm, true
}

// DBFReader reads the attribute table paired with a shapefile. Each call to
// ReadRecord loads one row into an internal buffer that the accessors
// decode; values are valid until the next ReadRecord.
type DBFReader struct {
	br      *bytereader.Reader
	header  DBFHeader
	fields  []Field
	byName  map[string]int
	record  []byte
	current int64
	decoder *encoding.Decoder
}

// OpenDBF opens a .dbf file. Text is decoded with the code page named by a
// sibling .cpg file when one exists, otherwise from the language driver id.
func OpenDBF(path string) (*DBFReader, error) {
	br, err := bytereader.Open(path)
	if err != nil {
		return nil, err
	}
	r, err := newDBFReader(br)
	if err != nil {
		return nil, err
	}

	cpg, err := os.ReadFile(siblingPath(path, ".cpg"))
	switch {
	case err == nil:
		if enc, ok := CodePage(string(cpg)); ok {
			r.SetEncoding(enc)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		_ = r.Close()
		return nil, err
	}

	return r, nil
}

// NewDBFReader returns a DBFReader over src. size may be zero when unknown.
func NewDBFReader(name string, src io.ReadSeeker, size int64) (*DBFReader, error) {
	return newDBFReader(bytereader.New(name, src, size))
}

func newDBFReader(br *bytereader.Reader) (*DBFReader, error) {
	r := &DBFReader{br: br, current: -1, byName: make(map[string]int)}
	if err := r.init(); err != nil {
		_ = br.Close()
		return nil, err
	}
	if cm, ok := languageDrivers[r.header.LanguageDriverID]; ok {
		r.SetEncoding(cm)
	}
	return r, nil
}

func (r *DBFReader) init() error {
	bad := func() error {
		return errs.Format(r.br.Name(), errs.ErrInvalidData, "truncated table header")
	}
	h := &r.header
	var err error
	if h.Version, err = r.br.ReadU8(); err != nil {
		return bad()
	}
	var date [3]byte
	if err := r.br.ReadFull(date[:]); err != nil {
		return bad()
	}
	h.LastUpdate = time.Date(1900+int(date[0]), time.Month(date[1]), int(date[2]), 0, 0, 0, 0, time.UTC)
	if h.RecordCount, err = r.br.ReadU32(); err != nil {
		return bad()
	}
	if h.HeaderLength, err = r.br.ReadU16(); err != nil {
		return bad()
	}
	if h.RecordLength, err = r.br.ReadU16(); err != nil {
		return bad()
	}
	if err := r.br.Skip(17); err != nil {
		return bad()
	}
	if h.LanguageDriverID, err = r.br.ReadU8(); err != nil {
		return bad()
	}
	if err := r.br.Skip(2); err != nil {
		return bad()
	}

	if r.header.RecordLength == 0 {
		return errs.Format(r.br.Name(), errs.ErrInvalidData, "zero record length")
	}

	offset := 1
	for {
		if r.header.HeaderLength > 0 && r.br.Position() >= int64(r.header.HeaderLength) {
			break
		}
		first, err := r.br.ReadU8()
		if err != nil {
			return errs.Format(r.br.Name(), errs.ErrInvalidData, "truncated field descriptors")
		}
		if first == dbfHeaderTerminator {
			break
		}

		var d [dbfFieldSize]byte
		d[0] = first
		if err := r.br.ReadFull(d[1:]); err != nil {
			return errs.Format(r.br.Name(), errs.ErrInvalidData, "truncated field descriptors")
		}
		f := Field{
			Name:     bytereader.TrimASCII(d[0:11]),
			Type:     d[11],
			Length:   int(d[16]),
			Decimals: int(d[17]),
			Offset:   offset,
		}
		f.Kind = fieldKind(f.Type, d[17])
		offset += f.Length

		r.byName[strings.ToUpper(f.Name)] = len(r.fields)
		r.fields = append(r.fields, f)
	}

	if offset > int(r.header.RecordLength) {
		return errs.Format(r.br.Name(), errs.ErrInvalidData,
			fmt.Sprintf("fields span %d bytes of a %d byte record", offset, r.header.RecordLength))
	}
	r.record = make([]byte, r.header.RecordLength)

	return nil
}

// SetEncoding selects the code page of character fields. A nil encoding
// passes bytes through unchanged.
func (r *DBFReader) SetEncoding(enc encoding.Encoding) {
	if enc == nil {
		r.decoder = nil
		return
	}
	r.decoder = enc.NewDecoder()
}

// Path returns the name the reader was opened with.
func (r *DBFReader) Path() string { return r.br.Name() }

// Header returns the table header.
func (r *DBFReader) Header() DBFHeader { return r.header }

// Fields returns the field descriptors in record order.
func (r *DBFReader) Fields() []Field { return r.fields }

// FieldIndex returns the position of the named field, ignoring case.
func (r *DBFReader) FieldIndex(name string) (int, bool) {
	i, ok := r.byName[strings.ToUpper(name)]
	return i, ok
}

// RecordCount returns the number of rows declared in the header.
func (r *DBFReader) RecordCount() int64 { return int64(r.header.RecordCount) }

// ReadRecord loads the zero-based row i.
func (r *DBFReader) ReadRecord(i int64) error {
	if r.br.IsClosed() {
		return errs.Closed(r.Path(), "read row")
	}
	if i < 0 || i >= r.RecordCount() {
		return errs.Record(r.Path(), i, errs.ErrIndexOutOfRange, fmt.Sprintf("%d rows", r.RecordCount()))
	}
	offset := int64(r.header.HeaderLength) + i*int64(r.header.RecordLength)
	if err := r.br.Seek(offset); err != nil {
		return err
	}
	if err := r.br.ReadFull(r.record); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return errs.Record(r.Path(), i, errs.ErrInvalidData, "truncated row")
		}
		return err
	}
	r.current = i
	return nil
}

// Current returns the index of the loaded row, or -1 before the first read.
func (r *DBFReader) Current() int64 { return r.current }

// Deleted reports whether the current row is marked deleted.
func (r *DBFReader) Deleted() bool { return r.record[0] == dbfDeleted }

// String returns field i of the current row decoded to UTF-8.
func (r *DBFReader) String(i int) string {
	b := r.fields[i].Bytes(r.record)
	if r.decoder == nil {
		return string(b)
	}
	s, err := r.decoder.Bytes(b)
	if err != nil {
		return string(b)
	}
	return string(s)
}

// Float returns field i of the current row as a float; NaN when blank or
// malformed.
func (r *DBFReader) Float(i int) float64 { return r.fields[i].Float(r.record) }

// Int returns field i of the current row as an integer; zero when blank or
// malformed.
func (r *DBFReader) Int(i int) int64 { return r.fields[i].Int(r.record) }

// Bool returns field i of the current row as a logical value.
func (r *DBFReader) Bool(i int) bool { return r.fields[i].Bool(r.record) }

// Value returns field i of the current row typed by its kind: string,
// int64, float64 or bool. Blank numeric and logical values are nil.
func (r *DBFReader) Value(i int) any {
	f := &r.fields[i]
	if f.isNull(r.record) {
		return nil
	}
	switch f.Kind {
	case IntegerField:
		return f.Int(r.record)
	case FloatField:
		v := f.Float(r.record)
		if math.IsNaN(v) {
			return nil
		}
		return v
	case LogicalField:
		return f.Bool(r.record)
	default:
		return r.String(i)
	}
}

// Values returns the current row as a map keyed by field name.
func (r *DBFReader) Values() map[string]any {
	m := make(map[string]any, len(r.fields))
	for i := range r.fields {
		m[r.fields[i].Name] = r.Value(i)
	}
	return m
}

// Close releases the file handle.
func (r *DBFReader) Close() error {
	return r.br.Close()
}
