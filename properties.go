package tinsource

import (
	"bytes"
	"encoding/binary"
	"math"
	"sort"
	"strconv"

	"github.com/flatgeobuf/flatgeobuf/src/go/flattypes"
	"github.com/flatgeobuf/flatgeobuf/src/go/writer"
	flatbuffers "github.com/google/flatbuffers/go"
	json "github.com/goccy/go-json"
	"github.com/paulmach/orb/geojson"
)

// column is one property column of a file being written.
type column struct {
	name string
	typ  flattypes.ColumnType
}

// inferColumns derives the column schema from the properties of features.
// Columns are ordered by name. A column whose values disagree on type gets
// the most general type that holds them all.
func inferColumns(features []*geojson.Feature) []column {
	types := make(map[string]flattypes.ColumnType)
	seen := make(map[string]bool)
	for _, f := range features {
		if f == nil {
			continue
		}
		for name, value := range f.Properties {
			if !seen[name] {
				seen[name] = true
			}
			t, ok := columnType(value)
			if !ok {
				continue
			}
			if prev, exists := types[name]; exists {
				t = promoteColumnType(prev, t)
			}
			types[name] = t
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)

	cols := make([]column, 0, len(names))
	for _, name := range names {
		t, ok := types[name]
		if !ok {
			t = flattypes.ColumnTypeString
		}
		cols = append(cols, column{name: name, typ: t})
	}
	return cols
}

// columnType returns the column type for a Go value. It reports false for
// nil, which carries no type information.
func columnType(value any) (flattypes.ColumnType, bool) {
	switch v := value.(type) {
	case nil:
		return 0, false
	case bool:
		return flattypes.ColumnTypeBool, true
	case int:
		if v >= math.MinInt32 && v <= math.MaxInt32 {
			return flattypes.ColumnTypeInt, true
		}
		return flattypes.ColumnTypeLong, true
	case int8, int16, int32:
		return flattypes.ColumnTypeInt, true
	case int64:
		return flattypes.ColumnTypeLong, true
	case uint8, uint16, uint32:
		return flattypes.ColumnTypeUInt, true
	case uint, uint64:
		return flattypes.ColumnTypeULong, true
	case float32:
		return flattypes.ColumnTypeFloat, true
	case float64:
		return flattypes.ColumnTypeDouble, true
	case string:
		return flattypes.ColumnTypeString, true
	case json.Number:
		if _, err := v.Int64(); err == nil {
			return flattypes.ColumnTypeLong, true
		}
		return flattypes.ColumnTypeDouble, true
	default:
		return flattypes.ColumnTypeJson, true
	}
}

var numericRank = map[flattypes.ColumnType]int{
	flattypes.ColumnTypeBool:   0,
	flattypes.ColumnTypeByte:   1,
	flattypes.ColumnTypeUByte:  2,
	flattypes.ColumnTypeShort:  3,
	flattypes.ColumnTypeUShort: 4,
	flattypes.ColumnTypeInt:    5,
	flattypes.ColumnTypeUInt:   6,
	flattypes.ColumnTypeLong:   7,
	flattypes.ColumnTypeULong:  8,
	flattypes.ColumnTypeFloat:  9,
	flattypes.ColumnTypeDouble: 10,
}

// promoteColumnType returns the more general of two column types.
func promoteColumnType(a, b flattypes.ColumnType) flattypes.ColumnType {
	if a == b {
		return a
	}
	if a == flattypes.ColumnTypeJson || b == flattypes.ColumnTypeJson {
		return flattypes.ColumnTypeJson
	}
	if a == flattypes.ColumnTypeString || b == flattypes.ColumnTypeString {
		return flattypes.ColumnTypeString
	}
	ra, okA := numericRank[a]
	rb, okB := numericRank[b]
	if !okA || !okB {
		return flattypes.ColumnTypeJson
	}
	if ra > rb {
		return a
	}
	return b
}

func buildColumns(cols []column, builder *flatbuffers.Builder) []*writer.Column {
	out := make([]*writer.Column, 0, len(cols))
	for _, c := range cols {
		wc := writer.NewColumn(builder)
		wc.SetName(c.name)
		wc.SetTitle(c.name)
		wc.SetType(c.typ)
		wc.SetNullable(true)
		out = append(out, wc)
	}
	return out
}

// encodeProperties encodes props as a sequence of little-endian column
// index and value pairs, in column order. Nil values and values that do not
// fit their column are left out.
func encodeProperties(buf *bytes.Buffer, props geojson.Properties, cols []column) []byte {
	buf.Reset()
	var val bytes.Buffer
	for i, c := range cols {
		v, ok := props[c.name]
		if !ok || v == nil {
			continue
		}
		val.Reset()
		if !writeValue(&val, c.typ, v) {
			continue
		}
		var idx [2]byte
		binary.LittleEndian.PutUint16(idx[:], uint16(i))
		buf.Write(idx[:])
		buf.Write(val.Bytes())
	}
	return buf.Bytes()
}

func writeValue(buf *bytes.Buffer, typ flattypes.ColumnType, value any) bool {
	var b [8]byte
	le := binary.LittleEndian

	switch typ {
	case flattypes.ColumnTypeBool:
		v, ok := value.(bool)
		if !ok {
			return false
		}
		if v {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
	case flattypes.ColumnTypeByte, flattypes.ColumnTypeUByte:
		v, ok := toInt64(value)
		if !ok {
			return false
		}
		buf.WriteByte(byte(v))
	case flattypes.ColumnTypeShort, flattypes.ColumnTypeUShort:
		v, ok := toInt64(value)
		if !ok {
			return false
		}
		le.PutUint16(b[:], uint16(v))
		buf.Write(b[:2])
	case flattypes.ColumnTypeInt, flattypes.ColumnTypeUInt:
		v, ok := toInt64(value)
		if !ok {
			return false
		}
		le.PutUint32(b[:], uint32(v))
		buf.Write(b[:4])
	case flattypes.ColumnTypeLong:
		v, ok := toInt64(value)
		if !ok {
			return false
		}
		le.PutUint64(b[:], uint64(v))
		buf.Write(b[:])
	case flattypes.ColumnTypeULong:
		v, ok := toUint64(value)
		if !ok {
			return false
		}
		le.PutUint64(b[:], v)
		buf.Write(b[:])
	case flattypes.ColumnTypeFloat:
		v, ok := toFloat64(value)
		if !ok {
			return false
		}
		le.PutUint32(b[:], math.Float32bits(float32(v)))
		buf.Write(b[:4])
	case flattypes.ColumnTypeDouble:
		v, ok := toFloat64(value)
		if !ok {
			return false
		}
		le.PutUint64(b[:], math.Float64bits(v))
		buf.Write(b[:])
	case flattypes.ColumnTypeJson:
		data, err := json.Marshal(value)
		if err != nil {
			return false
		}
		writeSized(buf, data)
	case flattypes.ColumnTypeBinary:
		data, ok := value.([]byte)
		if !ok {
			return false
		}
		writeSized(buf, data)
	default:
		writeSized(buf, []byte(toString(value)))
	}
	return true
}

// writeSized writes a uint32 byte length followed by data.
func writeSized(buf *bytes.Buffer, data []byte) {
	var n [4]byte
	binary.LittleEndian.PutUint32(n[:], uint32(len(data)))
	buf.Write(n[:])
	buf.Write(data)
}

// decodeProperties decodes the property block of a feature. Decoding stops
// at the first malformed entry.
func decodeProperties(data []byte, header *flattypes.Header) geojson.Properties {
	props := make(geojson.Properties)
	for off := 0; off+2 <= len(data); {
		idx := int(binary.LittleEndian.Uint16(data[off:]))
		off += 2

		var col flattypes.Column
		if idx >= header.ColumnsLength() || !header.Columns(&col, idx) {
			break
		}
		v, n := readValue(data[off:], col.Type())
		if n == 0 {
			break
		}
		off += n
		props[string(col.Name())] = v
	}
	return props
}

// readValue decodes one value and returns the number of bytes consumed,
// zero when data is too short.
func readValue(data []byte, typ flattypes.ColumnType) (any, int) {
	le := binary.LittleEndian
	fixed := func(n int) bool { return len(data) >= n }

	switch typ {
	case flattypes.ColumnTypeBool:
		if !fixed(1) {
			return nil, 0
		}
		return data[0] != 0, 1
	case flattypes.ColumnTypeByte:
		if !fixed(1) {
			return nil, 0
		}
		return int8(data[0]), 1
	case flattypes.ColumnTypeUByte:
		if !fixed(1) {
			return nil, 0
		}
		return data[0], 1
	case flattypes.ColumnTypeShort:
		if !fixed(2) {
			return nil, 0
		}
		return int16(le.Uint16(data)), 2
	case flattypes.ColumnTypeUShort:
		if !fixed(2) {
			return nil, 0
		}
		return le.Uint16(data), 2
	case flattypes.ColumnTypeInt:
		if !fixed(4) {
			return nil, 0
		}
		return int32(le.Uint32(data)), 4
	case flattypes.ColumnTypeUInt:
		if !fixed(4) {
			return nil, 0
		}
		return le.Uint32(data), 4
	case flattypes.ColumnTypeLong:
		if !fixed(8) {
			return nil, 0
		}
		return int64(le.Uint64(data)), 8
	case flattypes.ColumnTypeULong:
		if !fixed(8) {
			return nil, 0
		}
		return le.Uint64(data), 8
	case flattypes.ColumnTypeFloat:
		if !fixed(4) {
			return nil, 0
		}
		return math.Float32frombits(le.Uint32(data)), 4
	case flattypes.ColumnTypeDouble:
		if !fixed(8) {
			return nil, 0
		}
		return math.Float64frombits(le.Uint64(data)), 8
	}

	if !fixed(4) {
		return nil, 0
	}
	n := int(le.Uint32(data))
	if len(data) < 4+n {
		return nil, 0
	}
	raw := data[4 : 4+n]

	switch typ {
	case flattypes.ColumnTypeJson:
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return string(raw), 4 + n
		}
		return v, 4 + n
	case flattypes.ColumnTypeBinary:
		return append([]byte(nil), raw...), 4 + n
	default:
		return string(raw), 4 + n
	}
}

func toInt64(v any) (int64, bool) {
	switch val := v.(type) {
	case bool:
		if val {
			return 1, true
		}
		return 0, true
	case int:
		return int64(val), true
	case int8:
		return int64(val), true
	case int16:
		return int64(val), true
	case int32:
		return int64(val), true
	case int64:
		return val, true
	case uint:
		return int64(val), true
	case uint8:
		return int64(val), true
	case uint16:
		return int64(val), true
	case uint32:
		return int64(val), true
	case uint64:
		return int64(val), true
	case float32:
		return int64(val), true
	case float64:
		return int64(val), true
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i, true
		}
		if f, err := val.Float64(); err == nil {
			return int64(f), true
		}
	}
	return 0, false
}

func toUint64(v any) (uint64, bool) {
	switch val := v.(type) {
	case uint:
		return uint64(val), true
	case uint64:
		return val, true
	}
	i, ok := toInt64(v)
	if !ok || i < 0 {
		return 0, false
	}
	return uint64(i), true
}

func toFloat64(v any) (float64, bool) {
	switch val := v.(type) {
	case float32:
		return float64(val), true
	case float64:
		return val, true
	case uint64:
		return float64(val), true
	case json.Number:
		f, err := val.Float64()
		return f, err == nil
	}
	i, ok := toInt64(v)
	return float64(i), ok
}

func toString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case []byte:
		return string(val)
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
