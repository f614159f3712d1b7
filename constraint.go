package tinsource

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

// closureTolerance is the squared distance under which two vertices are
// treated as the same point when classifying text constraints.
const closureTolerance = 1e-32

// ConstraintKind tells the triangulation whether a constraint encloses a
// region or only forces its edges into the mesh.
type ConstraintKind uint8

const (
	LinearConstraint ConstraintKind = iota
	PolygonConstraint
)

func (k ConstraintKind) String() string {
	if k == PolygonConstraint {
		return "polygon"
	}
	return "linear"
}

// Constraint is an ordered vertex sequence with an application tag. Polygon
// constraints hold an open ring; the closing vertex is implied.
type Constraint struct {
	Kind     ConstraintKind
	Vertices []Vertex
	// Tag identifies the source of the constraint: the shapefile record
	// number, or the 1-based ordinal of a text block.
	Tag        int
	Attributes map[string]any
}

// NewConstraint builds a constraint, dropping the repeated closing vertex
// of a polygon ring. Vertex ids are renumbered in sequence.
func NewConstraint(kind ConstraintKind, vertices []Vertex, tag int) *Constraint {
	if kind == PolygonConstraint && len(vertices) > 1 && samePoint(vertices[0], vertices[len(vertices)-1]) {
		vertices = vertices[:len(vertices)-1]
	}
	for i := range vertices {
		vertices[i].ID = i
	}
	return &Constraint{Kind: kind, Vertices: vertices, Tag: tag}
}

// IsPolygon reports whether c encloses a region.
func (c *Constraint) IsPolygon() bool { return c.Kind == PolygonConstraint }

// Ring returns the closed ring of a polygon constraint, or nil.
func (c *Constraint) Ring() orb.Ring {
	if !c.IsPolygon() || len(c.Vertices) == 0 {
		return nil
	}
	ring := make(orb.Ring, 0, len(c.Vertices)+1)
	for _, v := range c.Vertices {
		ring = append(ring, v.Point())
	}
	return append(ring, ring[0])
}

// LineString returns the vertices as a line string.
func (c *Constraint) LineString() orb.LineString {
	ls := make(orb.LineString, 0, len(c.Vertices))
	for _, v := range c.Vertices {
		ls = append(ls, v.Point())
	}
	return ls
}

// Geometry returns an orb.Polygon for polygon constraints and an
// orb.LineString otherwise.
func (c *Constraint) Geometry() orb.Geometry {
	if ring := c.Ring(); ring != nil {
		return orb.Polygon{ring}
	}
	return c.LineString()
}

// Bound returns the planar extent of the vertices.
func (c *Constraint) Bound() orb.Bound {
	return c.LineString().Bound()
}

// SignedArea returns the planar area of a polygon constraint: positive for
// a counter-clockwise ring (an outer boundary), negative for a clockwise
// ring (a hole). Linear constraints have zero area.
func (c *Constraint) SignedArea() float64 {
	ring := c.Ring()
	if len(ring) < 4 {
		return 0
	}
	area := planar.Area(ring)
	if area == 0 {
		return 0
	}
	return float64(ring.Orientation()) * area
}

// Feature returns c as a GeoJSON feature. The properties carry the tag,
// the kind, the signed area of polygons and any attributes.
func (c *Constraint) Feature() *geojson.Feature {
	f := geojson.NewFeature(c.Geometry())
	for k, v := range c.Attributes {
		f.Properties[k] = v
	}
	f.Properties["tag"] = c.Tag
	f.Properties["kind"] = c.Kind.String()
	if c.IsPolygon() {
		f.Properties["area"] = c.SignedArea()
	}
	return f
}

// FeatureCollection converts constraints to GeoJSON features in order.
func FeatureCollection(constraints []*Constraint) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, c := range constraints {
		fc.Append(c.Feature())
	}
	return fc
}

func samePoint(a, b Vertex) bool {
	dx, dy := a.X-b.X, a.Y-b.Y
	return dx*dx+dy*dy < closureTolerance
}
