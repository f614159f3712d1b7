package tinsource

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tingold/orb-tinsource/las"
	"github.com/tingold/orb-tinsource/shapefile"
)

// testPoint is one record of a synthetic format 0 LAS file.
type testPoint struct {
	x, y, z  float64
	class    byte
	withheld bool
}

// writeLAS writes a LAS 1.2 point format 0 file with a 0.01 scale and no
// offset. A positive epsg adds a GeoTIFF key directory naming it.
func writeLAS(t *testing.T, epsg int, points ...testPoint) string {
	t.Helper()
	le := binary.LittleEndian
	put := func(buf *bytes.Buffer, v any) { _ = binary.Write(buf, le, v) }

	var vlr bytes.Buffer
	if epsg > 0 {
		var payload bytes.Buffer
		put(&payload, []uint16{1, 1, 0, 2})
		put(&payload, []uint16{las.GTModelTypeGeoKey, 0, 1, 1})
		put(&payload, []uint16{las.ProjectedCSTypeGeoKey, 0, 1, uint16(epsg)})

		put(&vlr, uint16(0))
		id := make([]byte, 16)
		copy(id, "LASF_Projection")
		vlr.Write(id)
		put(&vlr, uint16(las.GeoKeyDirectoryTag))
		put(&vlr, uint16(payload.Len()))
		vlr.Write(make([]byte, 32))
		vlr.Write(payload.Bytes())
	}

	const headerSize = 227
	var buf bytes.Buffer
	buf.WriteString(las.Signature)
	buf.Write(make([]byte, 20)) // source id, encoding, project id
	buf.Write([]byte{1, 2})
	buf.Write(make([]byte, 64)) // system, software
	put(&buf, []uint16{1, 2020, headerSize})
	put(&buf, uint32(headerSize+vlr.Len()))
	if epsg > 0 {
		put(&buf, uint32(1))
	} else {
		put(&buf, uint32(0))
	}
	buf.WriteByte(0)
	put(&buf, uint16(20))
	put(&buf, uint32(len(points)))
	buf.Write(make([]byte, 20))
	put(&buf, []float64{0.01, 0.01, 0.01, 0, 0, 0, 1000, -1000, 1000, -1000, 1000, -1000})
	buf.Write(vlr.Bytes())

	for _, p := range points {
		put(&buf, []int32{int32(p.x * 100), int32(p.y * 100), int32(p.z * 100)})
		put(&buf, uint16(0))
		buf.WriteByte(0x09)
		c := p.class & 0x1f
		if p.withheld {
			c |= 0x80
		}
		buf.WriteByte(c)
		buf.Write(make([]byte, 4))
	}

	path := filepath.Join(t.TempDir(), "points.las")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
	return path
}

// shapeParts is one shapefile record given as parts of XYZ triples.
type shapeParts [][][3]float64

// writeShapefile writes a .shp holding one record per entry of records and
// returns its path.
func writeShapefile(t *testing.T, dir, name string, typ shapefile.ShapeType, records ...shapeParts) string {
	t.Helper()
	be, le := binary.BigEndian, binary.LittleEndian

	var body bytes.Buffer
	for i, parts := range records {
		var c bytes.Buffer
		put := func(v any) { _ = binary.Write(&c, le, v) }

		var pts [][3]float64
		for _, p := range parts {
			pts = append(pts, p...)
		}
		put(int32(typ))
		if typ.IsPoint() {
			put([]float64{pts[0][0], pts[0][1], pts[0][2]})
		} else {
			put([]float64{-100, -100, 100, 100})
			put([]int32{int32(len(parts)), int32(len(pts))})
			start := int32(0)
			for _, p := range parts {
				put(start)
				start += int32(len(p))
			}
			for _, p := range pts {
				put([]float64{p[0], p[1]})
			}
			put([]float64{-100, 100})
			for _, p := range pts {
				put(p[2])
			}
		}
		_ = binary.Write(&body, be, []int32{int32(i + 1), int32(c.Len() / 2)})
		body.Write(c.Bytes())
	}

	var buf bytes.Buffer
	_ = binary.Write(&buf, be, int32(9994))
	buf.Write(make([]byte, 20))
	_ = binary.Write(&buf, be, int32((100+body.Len())/2))
	_ = binary.Write(&buf, le, []int32{1000, int32(typ)})
	_ = binary.Write(&buf, le, []float64{-100, -100, 100, 100, -100, 100, 0, 0})
	buf.Write(body.Bytes())

	path := filepath.Join(dir, name+".shp")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
	return path
}

// writeDBF writes a dBASE table. Rows hold the raw text of each cell.
func writeDBF(t *testing.T, path string, fields []dbfField, rows ...[]string) {
	t.Helper()
	le := binary.LittleEndian
	recLen := 1
	for _, f := range fields {
		recLen += f.length
	}

	var buf bytes.Buffer
	buf.Write([]byte{0x03, 120, 6, 1})
	_ = binary.Write(&buf, le, uint32(len(rows)))
	_ = binary.Write(&buf, le, uint16(32+32*len(fields)+1))
	_ = binary.Write(&buf, le, uint16(recLen))
	buf.Write(make([]byte, 20))
	for _, f := range fields {
		d := make([]byte, 32)
		copy(d, f.name)
		d[11] = f.typ
		d[16] = byte(f.length)
		d[17] = byte(f.decimals)
		buf.Write(d)
	}
	buf.WriteByte(0x0D)
	for _, row := range rows {
		buf.WriteByte(' ')
		for i, f := range fields {
			cell := bytes.Repeat([]byte{' '}, f.length)
			copy(cell, row[i])
			buf.Write(cell)
		}
	}
	buf.WriteByte(0x1A)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
}

type dbfField struct {
	name     string
	typ      byte
	length   int
	decimals int
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}
