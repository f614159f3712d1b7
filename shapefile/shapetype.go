package shapefile

import "fmt"

// ShapeType is the geometry type code of a shapefile or one of its records.
type ShapeType int32

const (
	NullShape   ShapeType = 0
	Point       ShapeType = 1
	PolyLine    ShapeType = 3
	Polygon     ShapeType = 5
	MultiPoint  ShapeType = 8
	PointZ      ShapeType = 11
	PolyLineZ   ShapeType = 13
	PolygonZ    ShapeType = 15
	MultiPointZ ShapeType = 18
	PointM      ShapeType = 21
	PolyLineM   ShapeType = 23
	PolygonM    ShapeType = 25
	MultiPointM ShapeType = 28
	MultiPatch  ShapeType = 31
)

var shapeTypeNames = map[ShapeType]string{
	NullShape:   "Null",
	Point:       "Point",
	PolyLine:    "PolyLine",
	Polygon:     "Polygon",
	MultiPoint:  "MultiPoint",
	PointZ:      "PointZ",
	PolyLineZ:   "PolyLineZ",
	PolygonZ:    "PolygonZ",
	MultiPointZ: "MultiPointZ",
	PointM:      "PointM",
	PolyLineM:   "PolyLineM",
	PolygonM:    "PolygonM",
	MultiPointM: "MultiPointM",
	MultiPatch:  "MultiPatch",
}

func (t ShapeType) String() string {
	if s, ok := shapeTypeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("ShapeType(%d)", int32(t))
}

// Valid reports whether t is defined by the shapefile format.
func (t ShapeType) Valid() bool {
	_, ok := shapeTypeNames[t]
	return ok
}

// HasZ reports whether records of type t carry Z values.
func (t ShapeType) HasZ() bool {
	return t >= PointZ && t <= MultiPointZ || t == MultiPatch
}

// HasM reports whether records of type t may carry measures.
func (t ShapeType) HasM() bool {
	return t >= PointZ
}

func (t ShapeType) IsPoint() bool {
	return t == Point || t == PointZ || t == PointM
}

func (t ShapeType) IsMultiPoint() bool {
	return t == MultiPoint || t == MultiPointZ || t == MultiPointM
}

func (t ShapeType) IsPolyLine() bool {
	return t == PolyLine || t == PolyLineZ || t == PolyLineM
}

func (t ShapeType) IsPolygon() bool {
	return t == Polygon || t == PolygonZ || t == PolygonM
}
