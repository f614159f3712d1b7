package tinsource

import (
	"bytes"
	"io"

	"github.com/flatgeobuf/flatgeobuf/src/go/writer"
	flatbuffers "github.com/google/flatbuffers/go"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/tingold/orb-tinsource/errs"
)

// WriteConstraints writes constraints as FlatGeobuf features. Polygon
// constraints become closed polygons and linear ones line strings, with tag,
// kind, area and any attributes as properties. Vertex elevations are kept
// in a "z" property holding one value per constraint vertex.
func WriteConstraints(w io.Writer, constraints []*Constraint, opts *Options) error {
	fc := FeatureCollection(constraints)
	for i, c := range constraints {
		zs := make([]float64, len(c.Vertices))
		for j, v := range c.Vertices {
			zs[j] = v.Z
		}
		fc.Features[i].Properties[zProperty] = zs
	}
	return WriteFeatures(w, fc, opts)
}

// WriteVertices writes vertices as FlatGeobuf points with "id" and "z"
// properties.
func WriteVertices(w io.Writer, vertices []Vertex, opts *Options) error {
	return WriteFeatures(w, VertexFeatures(vertices), opts)
}

// WriteFeatures writes a FeatureCollection to FlatGeobuf. Features without a
// geometry, or with a geometry FlatGeobuf cannot hold, are skipped.
func WriteFeatures(w io.Writer, fc *geojson.FeatureCollection, opts *Options) error {
	if opts == nil {
		opts = DefaultOptions()
	}
	if fc == nil || len(fc.Features) == 0 {
		return errs.ErrNoFeatures
	}

	geoms := make([]orb.Geometry, 0, len(fc.Features))
	for _, f := range fc.Features {
		if f != nil && f.Geometry != nil {
			geoms = append(geoms, f.Geometry)
		}
	}
	if len(geoms) == 0 {
		return errs.ErrNoFeatures
	}

	builder := flatbuffers.NewBuilder(4096)
	header := writer.NewHeader(builder)
	header.SetGeometryType(commonGeometryType(geoms))
	if opts.Name != "" {
		header.SetName(opts.Name)
	}
	if opts.Description != "" {
		header.SetDescription(opts.Description)
	}

	cols := inferColumns(fc.Features)
	if len(cols) > 0 {
		header.SetColumns(buildColumns(cols, builder))
	}
	if opts.CRS != nil {
		header.SetCrs(buildCrs(opts.CRS, builder))
	}

	gen := &featureGenerator{features: fc.Features, columns: cols}
	_, err := writer.NewWriter(header, opts.IncludeIndex, gen, nil).Write(w)
	return err
}

func buildCrs(c *CRS, builder *flatbuffers.Builder) *writer.Crs {
	crs := writer.NewCrs(builder)
	if c.Code > 0 {
		crs.SetOrg("EPSG")
		crs.SetCode(int32(c.Code))
	}
	if c.Name != "" {
		crs.SetName(c.Name)
	}
	switch {
	case c.Description != "":
		crs.SetDescription(c.Description)
	case c.WKT != "":
		crs.SetDescription(c.WKT)
	}
	return crs
}

// featureGenerator feeds features to the FlatGeobuf writer one at a time.
type featureGenerator struct {
	features []*geojson.Feature
	columns  []column
	index    int
	props    bytes.Buffer
}

func (g *featureGenerator) Generate() *writer.Feature {
	for g.index < len(g.features) {
		f := g.features[g.index]
		g.index++
		if f == nil || f.Geometry == nil {
			continue
		}

		builder := flatbuffers.NewBuilder(1024)
		geom := geometryToFGB(f.Geometry, builder)
		if geom == nil {
			continue
		}

		feature := writer.NewFeature(builder)
		feature.SetGeometry(geom)
		if len(f.Properties) > 0 && len(g.columns) > 0 {
			if data := encodeProperties(&g.props, f.Properties, g.columns); len(data) > 0 {
				feature.SetProperties(append([]byte(nil), data...))
			}
		}
		return feature
	}
	return nil
}
