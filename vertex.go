package tinsource

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/tingold/orb-tinsource/las"
)

// Vertex is a triangulation input point. ID is the LAS point index for
// vertices read from a point cloud and the position within its constraint
// for constraint vertices.
type Vertex struct {
	X, Y, Z float64
	ID      int
}

// Point returns the planar position of v.
func (v Vertex) Point() orb.Point { return orb.Point{v.X, v.Y} }

// VertexOptions selects and transforms the points returned by ReadVertices.
type VertexOptions struct {
	// Classes keeps only points with one of these classification codes.
	// An empty set keeps every class.
	Classes []uint8
	// SkipWithheld drops points flagged as withheld.
	SkipWithheld bool
	// Rescale is applied to every kept point when set.
	Rescale *Rescale
	// Limit stops after this many kept points when positive.
	Limit int
}

// ReadVertices decodes the points of r into vertices in file order. The
// vertex id is the zero-based point index.
func ReadVertices(r *las.Reader, opts VertexOptions) ([]Vertex, error) {
	var keep [256]bool
	for _, c := range opts.Classes {
		keep[c] = true
	}

	n := r.PointCount()
	capHint := n
	if opts.Limit > 0 && int64(opts.Limit) < capHint {
		capHint = int64(opts.Limit)
	}
	vertices := make([]Vertex, 0, capHint)

	var p las.PointRecord
	for i := int64(0); i < n; i++ {
		if err := r.ReadPoint(i, &p); err != nil {
			return nil, err
		}
		if len(opts.Classes) > 0 && !keep[p.Classification] {
			continue
		}
		if opts.SkipWithheld && p.Withheld {
			continue
		}
		x, y, z := opts.Rescale.Apply(p.X, p.Y, p.Z)
		vertices = append(vertices, Vertex{X: x, Y: y, Z: z, ID: int(i)})
		if opts.Limit > 0 && len(vertices) >= opts.Limit {
			break
		}
	}

	return vertices, nil
}

// VertexFeatures converts vertices to GeoJSON point features with id and z
// properties.
func VertexFeatures(vertices []Vertex) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	fc.Features = make([]*geojson.Feature, 0, len(vertices))
	for _, v := range vertices {
		f := geojson.NewFeature(v.Point())
		f.Properties["id"] = v.ID
		f.Properties["z"] = v.Z
		fc.Append(f)
	}
	return fc
}
