package shapefile

import (
	"bytes"
	"math"
	"strconv"
)

// FieldKind selects how a DBF field's text is decoded. It is fixed when the
// field descriptor is read.
type FieldKind uint8

const (
	// CharacterField covers C fields and any type without a numeric decoding
	// (dates, memo references).
	CharacterField FieldKind = iota
	// IntegerField is an N field with no decimals.
	IntegerField
	// FloatField is an F field, or an N field with decimals.
	FloatField
	// LogicalField is an L field.
	LogicalField
)

func (k FieldKind) String() string {
	switch k {
	case IntegerField:
		return "integer"
	case FloatField:
		return "float"
	case LogicalField:
		return "logical"
	default:
		return "character"
	}
}

func fieldKind(typ byte, decimals uint8) FieldKind {
	switch typ {
	case 'N', 'n':
		if decimals == 0 {
			return IntegerField
		}
		return FloatField
	case 'F', 'f':
		return FloatField
	case 'L', 'l':
		return LogicalField
	default:
		return CharacterField
	}
}

// Field is one column of a DBF table.
type Field struct {
	Name     string
	Type     byte
	Length   int
	Decimals int
	// Offset is the position of the field within a record, after the
	// deletion flag.
	Offset int
	Kind   FieldKind
}

func (f *Field) raw(rec []byte) []byte {
	return rec[f.Offset : f.Offset+f.Length]
}

// Bytes returns the meaningful bytes of the field: trailing whitespace is
// removed, and leading whitespace as well for numeric fields.
func (f *Field) Bytes(rec []byte) []byte {
	b := bytes.TrimRight(f.raw(rec), " \x00")
	if f.Kind != CharacterField {
		b = bytes.TrimLeft(b, " ")
	}
	return b
}

// Text returns the field as an undecoded string.
func (f *Field) Text(rec []byte) string {
	return string(f.Bytes(rec))
}

// Float returns the numeric value of the field, or NaN when the field is
// blank, malformed or not numeric.
func (f *Field) Float(rec []byte) float64 {
	switch f.Kind {
	case FloatField, IntegerField:
		return scanFloat(f.raw(rec))
	default:
		return math.NaN()
	}
}

// Int returns the integral value of the field. Floating fields are
// truncated and clamped to the int64 range. Blank or malformed values are
// zero.
func (f *Field) Int(rec []byte) int64 {
	switch f.Kind {
	case IntegerField:
		b := f.Bytes(rec)
		v, err := strconv.ParseInt(string(b), 10, 64)
		if err != nil {
			return clampInt(scanFloat(b))
		}
		return v
	case FloatField:
		return clampInt(scanFloat(f.raw(rec)))
	default:
		return 0
	}
}

// Bool reports whether a logical field holds a true marker (T, t, Y, y).
// It is false for every other field kind.
func (f *Field) Bool(rec []byte) bool {
	if f.Kind != LogicalField {
		return false
	}
	b := f.Bytes(rec)
	if len(b) == 0 {
		return false
	}
	switch b[0] {
	case 'T', 't', 'Y', 'y':
		return true
	}
	return false
}

// isNull reports whether the field holds no value.
func (f *Field) isNull(rec []byte) bool {
	b := f.Bytes(rec)
	switch f.Kind {
	case CharacterField:
		return false
	case LogicalField:
		return len(b) == 0 || b[0] == '?'
	case FloatField:
		return math.IsNaN(scanFloat(f.raw(rec)))
	default:
		return len(b) == 0
	}
}
