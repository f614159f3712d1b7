package shapefile

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// testShape is one record of a synthetic shapefile. Parts hold XYZ triples.
type testShape struct {
	typ   ShapeType
	parts [][][3]float64
	// withM appends an M block that readers must skip.
	withM bool
}

func (s testShape) content() []byte {
	le := binary.LittleEndian
	var buf bytes.Buffer
	put := func(v any) { _ = binary.Write(&buf, le, v) }

	put(int32(s.typ))
	var pts [][3]float64
	for _, p := range s.parts {
		pts = append(pts, p...)
	}

	switch {
	case s.typ == NullShape:
		return buf.Bytes()
	case s.typ.IsPoint():
		p := pts[0]
		put(p[0])
		put(p[1])
		if s.typ == PointZ {
			put(p[2])
		}
		if s.typ.HasM() {
			put(float64(0))
		}
		return buf.Bytes()
	}

	minX, minY, maxX, maxY := pts[0][0], pts[0][1], pts[0][0], pts[0][1]
	minZ, maxZ := pts[0][2], pts[0][2]
	for _, p := range pts {
		minX, maxX = min(minX, p[0]), max(maxX, p[0])
		minY, maxY = min(minY, p[1]), max(maxY, p[1])
		minZ, maxZ = min(minZ, p[2]), max(maxZ, p[2])
	}
	put([]float64{minX, minY, maxX, maxY})

	if !s.typ.IsMultiPoint() {
		put(int32(len(s.parts)))
	}
	put(int32(len(pts)))
	if !s.typ.IsMultiPoint() {
		start := int32(0)
		for _, p := range s.parts {
			put(start)
			start += int32(len(p))
		}
	}
	for _, p := range pts {
		put(p[0])
		put(p[1])
	}
	if s.typ.HasZ() {
		put([]float64{minZ, maxZ})
		for _, p := range pts {
			put(p[2])
		}
	}
	if s.withM {
		put([]float64{0, 0})
		for range pts {
			put(float64(-1))
		}
	}
	return buf.Bytes()
}

func writeMainHeader(buf *bytes.Buffer, typ ShapeType, fileLength int) {
	be, le := binary.BigEndian, binary.LittleEndian
	_ = binary.Write(buf, be, int32(fileCode))
	buf.Write(make([]byte, 20))
	_ = binary.Write(buf, be, int32(fileLength/2))
	_ = binary.Write(buf, le, int32(fileVersion))
	_ = binary.Write(buf, le, int32(typ))
	_ = binary.Write(buf, le, []float64{-10, -20, 10, 20, -1, 1, 0, 0})
}

// buildShapefile encodes the .shp and .shx contents for the given records.
func buildShapefile(typ ShapeType, shapes ...testShape) (shp, shx []byte) {
	var body, index bytes.Buffer
	offset := mainHeaderSize
	for i, s := range shapes {
		c := s.content()
		_ = binary.Write(&index, binary.BigEndian, []int32{int32(offset / 2), int32(len(c) / 2)})
		_ = binary.Write(&body, binary.BigEndian, []int32{int32(i + 1), int32(len(c) / 2)})
		body.Write(c)
		offset += recordHeaderSize + len(c)
	}

	var a, b bytes.Buffer
	writeMainHeader(&a, typ, mainHeaderSize+body.Len())
	a.Write(body.Bytes())
	writeMainHeader(&b, typ, mainHeaderSize+index.Len())
	b.Write(index.Bytes())
	return a.Bytes(), b.Bytes()
}

// writeShapefile writes name.shp and name.shx under dir and returns the
// .shp path.
func writeShapefile(t *testing.T, dir, name string, typ ShapeType, shapes ...testShape) string {
	t.Helper()
	shp, shx := buildShapefile(typ, shapes...)
	path := filepath.Join(dir, name+".shp")
	require.NoError(t, os.WriteFile(path, shp, 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name+".shx"), shx, 0o600))
	return path
}

type testField struct {
	name     string
	typ      byte
	length   int
	decimals int
}

// buildDBF encodes a table. Each row is the raw text of its fields, padded
// or cut to the field length; a leading "*" in deleted marks the row.
func buildDBF(ldid byte, fields []testField, rows [][]string, deleted ...int) []byte {
	le := binary.LittleEndian
	recLen := 1
	for _, f := range fields {
		recLen += f.length
	}
	headerLen := 32 + 32*len(fields) + 1

	var buf bytes.Buffer
	buf.Write([]byte{0x03, 124, 3, 15})
	_ = binary.Write(&buf, le, uint32(len(rows)))
	_ = binary.Write(&buf, le, uint16(headerLen))
	_ = binary.Write(&buf, le, uint16(recLen))
	buf.Write(make([]byte, 17))
	buf.WriteByte(ldid)
	buf.Write(make([]byte, 2))

	for _, f := range fields {
		d := make([]byte, 32)
		copy(d, f.name)
		d[11] = f.typ
		d[16] = byte(f.length)
		d[17] = byte(f.decimals)
		buf.Write(d)
	}
	buf.WriteByte(dbfHeaderTerminator)

	del := make(map[int]bool)
	for _, i := range deleted {
		del[i] = true
	}
	for i, row := range rows {
		if del[i] {
			buf.WriteByte(dbfDeleted)
		} else {
			buf.WriteByte(' ')
		}
		for j, f := range fields {
			cell := bytes.Repeat([]byte{' '}, f.length)
			copy(cell, row[j])
			buf.Write(cell)
		}
	}
	buf.WriteByte(0x1A)
	return buf.Bytes()
}
