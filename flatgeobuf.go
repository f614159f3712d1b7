package tinsource

import (
	"github.com/tingold/orb-tinsource/las"
)

// CRS is the coordinate reference system stamped into a FlatGeobuf header.
type CRS struct {
	Code        int    `json:"code,omitempty"` // EPSG code
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	WKT         string `json:"wkt,omitempty"`
}

// CRSFromLAS returns the CRS declared by a LAS file: the EPSG code from its
// GeoTIFF keys, or the raw WKT when the file uses WKT mode. It returns nil
// when the file declares neither.
func CRSFromLAS(r *las.Reader) (*CRS, error) {
	if g, ok := r.GeoReference(); ok {
		if code, ok := g.EPSG(); ok {
			crs := &CRS{Code: code}
			for _, key := range []uint16{las.PCSCitationGeoKey, las.GTCitationGeoKey} {
				if name, ok := g.StringValue(key); ok {
					crs.Name = name
					break
				}
			}
			return crs, nil
		}
	}

	wkt, ok, err := r.WKT()
	if err != nil {
		return nil, err
	}
	if ok {
		return &CRS{WKT: wkt}, nil
	}
	return nil, nil
}

// Options configures FlatGeobuf writing.
type Options struct {
	Name         string
	Description  string
	IncludeIndex bool
	CRS          *CRS
}

// DefaultOptions writes a spatial index, which ReadAll and the constraint
// loader need to iterate features.
func DefaultOptions() *Options {
	return &Options{IncludeIndex: true}
}

// ColumnInfo describes a property column of a FlatGeobuf file.
type ColumnInfo struct {
	Name     string
	Type     string // "Bool", "Long", "Double", "String", ...
	Nullable bool
}

// Header is the metadata of a FlatGeobuf file.
type Header struct {
	Name          string
	Description   string
	GeometryType  string
	FeaturesCount uint64
	Envelope      [4]float64 // minX, minY, maxX, maxY
	CRS           *CRS
	HasIndex      bool
	Columns       []ColumnInfo
}
