package tinsource

import (
	"github.com/flatgeobuf/flatgeobuf/src/go/flattypes"
	"github.com/flatgeobuf/flatgeobuf/src/go/writer"
	flatbuffers "github.com/google/flatbuffers/go"
	"github.com/paulmach/orb"
)

// geometryType returns the FlatGeobuf type of an orb geometry.
func geometryType(geom orb.Geometry) flattypes.GeometryType {
	switch geom.(type) {
	case orb.Point:
		return flattypes.GeometryTypePoint
	case orb.MultiPoint:
		return flattypes.GeometryTypeMultiPoint
	case orb.LineString:
		return flattypes.GeometryTypeLineString
	case orb.MultiLineString:
		return flattypes.GeometryTypeMultiLineString
	case orb.Ring, orb.Polygon:
		return flattypes.GeometryTypePolygon
	case orb.MultiPolygon:
		return flattypes.GeometryTypeMultiPolygon
	default:
		return flattypes.GeometryTypeUnknown
	}
}

// commonGeometryType returns the shared type of geoms, or Unknown when they
// differ.
func commonGeometryType(geoms []orb.Geometry) flattypes.GeometryType {
	if len(geoms) == 0 {
		return flattypes.GeometryTypeUnknown
	}
	t := geometryType(geoms[0])
	for _, g := range geoms[1:] {
		if geometryType(g) != t {
			return flattypes.GeometryTypeUnknown
		}
	}
	return t
}

// geometryToFGB encodes geom, or returns nil for unsupported types.
func geometryToFGB(geom orb.Geometry, builder *flatbuffers.Builder) *writer.Geometry {
	g := writer.NewGeometry(builder)
	g.SetType(geometryType(geom))

	switch v := geom.(type) {
	case orb.Point:
		g.SetXY([]float64{v[0], v[1]})
	case orb.MultiPoint:
		g.SetXY(appendXY(nil, v...))
	case orb.LineString:
		g.SetXY(appendXY(nil, v...))
	case orb.Ring:
		g.SetXY(appendXY(nil, v...))
		g.SetEnds([]uint32{uint32(len(v))})
	case orb.MultiLineString:
		xy, ends := partsToXYEnds(len(v), func(i int) []orb.Point { return v[i] })
		g.SetXY(xy)
		g.SetEnds(ends)
	case orb.Polygon:
		xy, ends := partsToXYEnds(len(v), func(i int) []orb.Point { return v[i] })
		g.SetXY(xy)
		g.SetEnds(ends)
	case orb.MultiPolygon:
		parts := make([]writer.Geometry, 0, len(v))
		for _, poly := range v {
			parts = append(parts, *geometryToFGB(poly, builder))
		}
		g.SetParts(parts)
	default:
		return nil
	}

	return g
}

func appendXY(xy []float64, pts ...orb.Point) []float64 {
	for _, p := range pts {
		xy = append(xy, p[0], p[1])
	}
	return xy
}

// partsToXYEnds flattens n point sequences into one coordinate array and
// the cumulative end index of each sequence.
func partsToXYEnds(n int, part func(int) []orb.Point) ([]float64, []uint32) {
	var xy []float64
	ends := make([]uint32, 0, n)
	for i := 0; i < n; i++ {
		xy = appendXY(xy, part(i)...)
		ends = append(ends, uint32(len(xy)/2))
	}
	return xy, ends
}

// geometryFromFGB decodes a FlatGeobuf geometry, or returns nil for
// unsupported types.
func geometryFromFGB(g *flattypes.Geometry) orb.Geometry {
	switch g.Type() {
	case flattypes.GeometryTypePoint:
		if g.XyLength() < 2 {
			return orb.Point{}
		}
		return orb.Point{g.Xy(0), g.Xy(1)}
	case flattypes.GeometryTypeMultiPoint:
		return orb.MultiPoint(pointsFromFGB(g, 0, g.XyLength()/2))
	case flattypes.GeometryTypeLineString:
		return orb.LineString(pointsFromFGB(g, 0, g.XyLength()/2))
	case flattypes.GeometryTypeMultiLineString:
		var mls orb.MultiLineString
		forEachPart(g, func(start, end int) {
			mls = append(mls, orb.LineString(pointsFromFGB(g, start, end)))
		})
		return mls
	case flattypes.GeometryTypePolygon:
		var poly orb.Polygon
		forEachPart(g, func(start, end int) {
			poly = append(poly, orb.Ring(pointsFromFGB(g, start, end)))
		})
		return poly
	case flattypes.GeometryTypeMultiPolygon:
		var mp orb.MultiPolygon
		for i := 0; i < g.PartsLength(); i++ {
			var part flattypes.Geometry
			if g.Parts(&part, i) {
				if poly, ok := geometryFromFGB(&part).(orb.Polygon); ok {
					mp = append(mp, poly)
				}
			}
		}
		return mp
	default:
		return nil
	}
}

// forEachPart calls fn with the point range of every part delimited by the
// ends array. Without ends the whole coordinate array is one part.
func forEachPart(g *flattypes.Geometry, fn func(start, end int)) {
	n := g.XyLength() / 2
	if g.EndsLength() == 0 {
		if n > 0 {
			fn(0, n)
		}
		return
	}
	start := 0
	for i := 0; i < g.EndsLength(); i++ {
		end := int(g.Ends(i))
		if end > n {
			end = n
		}
		if end > start {
			fn(start, end)
		}
		start = end
	}
}

func pointsFromFGB(g *flattypes.Geometry, start, end int) []orb.Point {
	pts := make([]orb.Point, 0, end-start)
	for i := start; i < end; i++ {
		pts = append(pts, orb.Point{g.Xy(2 * i), g.Xy(2*i + 1)})
	}
	return pts
}

// verticesFromFGB returns the vertices of every part of a line or polygon
// geometry, and whether the parts are polygon rings. Z values are taken
// from the geometry when it carries them.
func verticesFromFGB(g *flattypes.Geometry) (parts [][]Vertex, polygon bool) {
	hasZ := g.ZLength() == g.XyLength()/2
	collect := func(start, end int) {
		vs := make([]Vertex, 0, end-start)
		for i := start; i < end; i++ {
			v := Vertex{X: g.Xy(2 * i), Y: g.Xy(2*i + 1)}
			if hasZ {
				v.Z = g.Z(i)
			}
			vs = append(vs, v)
		}
		parts = append(parts, vs)
	}

	switch g.Type() {
	case flattypes.GeometryTypeLineString:
		if n := g.XyLength() / 2; n > 0 {
			collect(0, n)
		}
	case flattypes.GeometryTypeMultiLineString:
		forEachPart(g, collect)
	case flattypes.GeometryTypePolygon:
		forEachPart(g, collect)
		polygon = true
	case flattypes.GeometryTypeMultiPolygon:
		for i := 0; i < g.PartsLength(); i++ {
			var part flattypes.Geometry
			if g.Parts(&part, i) {
				sub, _ := verticesFromFGB(&part)
				parts = append(parts, sub...)
			}
		}
		polygon = true
	}
	return parts, polygon
}
