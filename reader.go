package tinsource

import (
	"fmt"

	flatgeobuf "github.com/flatgeobuf/flatgeobuf/src/go"
	"github.com/flatgeobuf/flatgeobuf/src/go/flattypes"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/tingold/orb-tinsource/errs"
)

// zProperty holds the per-vertex elevations of a written constraint.
const zProperty = "z"

// Reader provides read access to a FlatGeobuf file.
type Reader struct {
	name string
	fgb  *flatgeobuf.FlatGeoBuf
}

// NewReader opens the FlatGeobuf file at path. The file is memory-mapped.
func NewReader(path string) (*Reader, error) {
	fgb, err := flatgeobuf.New(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &Reader{name: path, fgb: fgb}, nil
}

// NewReaderFromData reads FlatGeobuf content held in memory.
func NewReaderFromData(data []byte) (*Reader, error) {
	fgb, err := flatgeobuf.NewWithData(data)
	if err != nil {
		return nil, err
	}
	return &Reader{fgb: fgb}, nil
}

// Header returns the metadata of the file.
func (r *Reader) Header() (*Header, error) {
	h, err := r.header("header")
	if err != nil {
		return nil, err
	}

	header := &Header{
		Name:          string(h.Name()),
		Description:   string(h.Description()),
		GeometryType:  flattypes.EnumNamesGeometryType[h.GeometryType()],
		FeaturesCount: h.FeaturesCount(),
		HasIndex:      h.IndexNodeSize() > 0,
	}
	if h.EnvelopeLength() >= 4 {
		header.Envelope = [4]float64{h.Envelope(0), h.Envelope(1), h.Envelope(2), h.Envelope(3)}
	}

	var crs flattypes.Crs
	if h.Crs(&crs) != nil {
		header.CRS = &CRS{
			Code:        int(crs.Code()),
			Name:        string(crs.Name()),
			Description: string(crs.Description()),
		}
	}

	for i := 0; i < h.ColumnsLength(); i++ {
		var col flattypes.Column
		if h.Columns(&col, i) {
			header.Columns = append(header.Columns, ColumnInfo{
				Name:     string(col.Name()),
				Type:     flattypes.EnumNamesColumnType[col.Type()],
				Nullable: col.Nullable(),
			})
		}
	}

	return header, nil
}

// ReadAll reads every feature. Features are reached through the spatial
// index, so a non-empty file without one fails with errs.ErrNoIndex.
func (r *Reader) ReadAll() (*geojson.FeatureCollection, error) {
	h, features, err := r.features()
	if err != nil {
		return nil, err
	}

	fc := geojson.NewFeatureCollection()
	for _, f := range features {
		if feature := convertFeature(f, h); feature != nil {
			fc.Append(feature)
		}
	}
	return fc, nil
}

// Search returns the features whose bounding boxes intersect bound.
func (r *Reader) Search(bound orb.Bound) (*geojson.FeatureCollection, error) {
	h, err := r.header("search")
	if err != nil {
		return nil, err
	}
	if h.IndexNodeSize() == 0 {
		return nil, errs.ErrNoIndex
	}

	features, err := r.fgb.Search(bound.Min[0], bound.Min[1], bound.Max[0], bound.Max[1])
	if err != nil {
		return nil, err
	}

	fc := geojson.NewFeatureCollection()
	for _, f := range features {
		if feature := convertFeature(f, h); feature != nil {
			fc.Append(feature)
		}
	}
	return fc, nil
}

// ReadConstraints converts line and polygon features to constraints, one
// per line string or ring. The tag comes from tagProperty when the feature
// carries it and is the 1-based feature ordinal otherwise. Point features
// are skipped.
func (r *Reader) ReadConstraints(tagProperty string) ([]*Constraint, error) {
	h, features, err := r.features()
	if err != nil {
		return nil, err
	}

	var constraints []*Constraint
	for i, f := range features {
		var g flattypes.Geometry
		geom := f.Geometry(&g)
		if geom == nil {
			continue
		}
		parts, polygon := verticesFromFGB(geom)
		if len(parts) == 0 {
			continue
		}

		props := featureProperties(f, h)
		tag := i + 1
		if v, ok := props[tagProperty]; ok {
			if t, ok := toInt64(v); ok {
				tag = int(t)
			}
		}
		zs := floats(props[zProperty])
		attrs := make(map[string]any, len(props))
		for k, v := range props {
			switch k {
			case tagProperty, zProperty, "kind", "area":
				continue
			}
			attrs[k] = v
		}

		kind := LinearConstraint
		if polygon {
			kind = PolygonConstraint
		}
		for _, vs := range parts {
			c := NewConstraint(kind, vs, tag)
			if len(parts) == 1 && geom.ZLength() == 0 && len(zs) == len(c.Vertices) {
				for j := range c.Vertices {
					c.Vertices[j].Z = zs[j]
				}
			}
			if len(attrs) > 0 {
				c.Attributes = attrs
			}
			constraints = append(constraints, c)
		}
	}

	return constraints, nil
}

// Close releases the reader. The underlying mapping is reclaimed by the
// garbage collector.
func (r *Reader) Close() error {
	r.fgb = nil
	return nil
}

func (r *Reader) header(op string) (*flattypes.Header, error) {
	if r.fgb == nil {
		return nil, errs.Closed(r.name, op)
	}
	h := r.fgb.Header()
	if h == nil {
		return nil, errs.Format(r.name, errs.ErrInvalidData, "missing header")
	}
	return h, nil
}

// features returns every raw feature by searching the full envelope.
func (r *Reader) features() (*flattypes.Header, []*flattypes.Feature, error) {
	h, err := r.header("read")
	if err != nil {
		return nil, nil, err
	}
	if h.FeaturesCount() == 0 {
		return h, nil, nil
	}
	if h.IndexNodeSize() == 0 || h.EnvelopeLength() < 4 {
		return nil, nil, errs.ErrNoIndex
	}

	features, err := r.fgb.Search(h.Envelope(0), h.Envelope(1), h.Envelope(2), h.Envelope(3))
	if err != nil {
		return nil, nil, err
	}
	return h, features, nil
}

// convertFeature converts a FlatGeobuf feature to a GeoJSON feature, or
// returns nil when its geometry cannot be represented.
func convertFeature(f *flattypes.Feature, h *flattypes.Header) *geojson.Feature {
	if f == nil {
		return nil
	}
	var g flattypes.Geometry
	geom := f.Geometry(&g)
	if geom == nil {
		return nil
	}
	og := geometryFromFGB(geom)
	if og == nil {
		return nil
	}

	feature := geojson.NewFeature(og)
	for k, v := range featureProperties(f, h) {
		feature.Properties[k] = v
	}
	return feature
}

func featureProperties(f *flattypes.Feature, h *flattypes.Header) geojson.Properties {
	n := f.PropertiesLength()
	if n == 0 || h.ColumnsLength() == 0 {
		return geojson.Properties{}
	}
	data := make([]byte, n)
	for i := 0; i < n; i++ {
		data[i] = f.Properties(i)
	}
	return decodeProperties(data, h)
}

// floats converts a decoded JSON array to float64 values, or returns nil.
func floats(v any) []float64 {
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]float64, 0, len(arr))
	for _, e := range arr {
		f, ok := toFloat64(e)
		if !ok {
			return nil
		}
		out = append(out, f)
	}
	return out
}
