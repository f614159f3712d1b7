package las

import (
	"math"
	"strings"

	"github.com/arloliu/mebo/endian"

	"github.com/tingold/orb-tinsource/internal/bytereader"
)

// GeoTIFF key codes consulted by the reader.
const (
	GTModelTypeGeoKey      = 1024
	GTCitationGeoKey       = 1026
	GeographicTypeGeoKey   = 2048
	ProjectedCSTypeGeoKey  = 3072
	PCSCitationGeoKey      = 3073
	ProjLinearUnitsGeoKey  = 3076
	VerticalUnitsGeoKey    = 4099
	geoKeyDirectoryPreface = 6
	userDefinedCode        = 32767
)

// GeoKeyEntry is one entry of a GeoTIFF key directory. When Location is zero
// ValueOffset holds the value itself; otherwise it indexes the parameter
// block identified by Location.
type GeoKeyEntry struct {
	KeyID       uint16
	Location    uint16
	Count       uint16
	ValueOffset uint16
}

// ModelType is the GeoTIFF raster model type.
type ModelType int8

const (
	ModelUnknown ModelType = iota
	ModelProjected
	ModelGeographic
	ModelGeocentric
)

func (m ModelType) String() string {
	switch m {
	case ModelProjected:
		return "projected"
	case ModelGeographic:
		return "geographic"
	case ModelGeocentric:
		return "geocentric"
	default:
		return "unknown"
	}
}

// LinearUnits names the unit of horizontal and vertical coordinates.
type LinearUnits uint8

const (
	UnitsUnknown LinearUnits = iota
	UnitsMeters
	UnitsFeet
	UnitsFathoms
)

func (u LinearUnits) String() string {
	switch u {
	case UnitsMeters:
		return "meters"
	case UnitsFeet:
		return "feet"
	case UnitsFathoms:
		return "fathoms"
	default:
		return "unknown"
	}
}

// linearUnitsFromCode maps an EPSG unit-of-measure code.
func linearUnitsFromCode(code int) LinearUnits {
	switch {
	case code == 9001:
		return UnitsMeters
	case code >= 9002 && code <= 9006:
		return UnitsFeet
	case code == 9014:
		return UnitsFathoms
	default:
		return UnitsUnknown
	}
}

// GeoReferenceData is the GeoTIFF key directory carried in LAS VLRs.
type GeoReferenceData struct {
	Keys    []GeoKeyEntry
	Doubles []float64
	ASCII   string
}

// Key returns the first entry with the given key id.
func (g *GeoReferenceData) Key(id uint16) (GeoKeyEntry, bool) {
	for _, k := range g.Keys {
		if k.KeyID == id {
			return k, true
		}
	}
	return GeoKeyEntry{}, false
}

// IntValue returns a key stored inline in the directory.
func (g *GeoReferenceData) IntValue(id uint16) (int, bool) {
	k, ok := g.Key(id)
	if !ok || k.Location != 0 {
		return 0, false
	}
	return int(k.ValueOffset), true
}

// DoubleValue returns the first value of a key stored in the double block.
func (g *GeoReferenceData) DoubleValue(id uint16) (float64, bool) {
	k, ok := g.Key(id)
	if !ok || k.Location != GeoDoubleParamsTag || int(k.ValueOffset) >= len(g.Doubles) {
		return 0, false
	}
	return g.Doubles[k.ValueOffset], true
}

// StringValue returns a key stored in the ASCII block, without the '|'
// terminator GeoTIFF appends to each string.
func (g *GeoReferenceData) StringValue(id uint16) (string, bool) {
	k, ok := g.Key(id)
	if !ok || k.Location != GeoAsciiParamsTag {
		return "", false
	}
	start, end := int(k.ValueOffset), int(k.ValueOffset)+int(k.Count)
	if start > len(g.ASCII) {
		return "", false
	}
	if end > len(g.ASCII) {
		end = len(g.ASCII)
	}
	return strings.TrimRight(g.ASCII[start:end], "|\x00"), true
}

// ModelType reports the raster model type, or ModelUnknown when the key is
// absent or carries an unrecognized value.
func (g *GeoReferenceData) ModelType() ModelType {
	v, ok := g.IntValue(GTModelTypeGeoKey)
	if !ok {
		return ModelUnknown
	}
	switch v {
	case 1:
		return ModelProjected
	case 2:
		return ModelGeographic
	case 3:
		return ModelGeocentric
	default:
		return ModelUnknown
	}
}

// LinearUnits reports the coordinate unit. Vertical units win when present
// and the horizontal units are assumed to match them.
func (g *GeoReferenceData) LinearUnits() LinearUnits {
	if v, ok := g.IntValue(VerticalUnitsGeoKey); ok {
		return linearUnitsFromCode(v)
	}
	if v, ok := g.IntValue(ProjLinearUnitsGeoKey); ok {
		return linearUnitsFromCode(v)
	}
	return UnitsUnknown
}

// EPSG returns the projected or geographic coordinate system code when one
// is given and not user-defined.
func (g *GeoReferenceData) EPSG() (int, bool) {
	for _, id := range []uint16{ProjectedCSTypeGeoKey, GeographicTypeGeoKey} {
		if v, ok := g.IntValue(id); ok && v != 0 && v != userDefinedCode {
			return v, true
		}
	}
	return 0, false
}

// decodeGeoReference assembles the GeoTIFF directory from vlrs. It returns
// nil when the key directory record is missing.
func decodeGeoReference(br *bytereader.Reader, vlrs []VariableLengthRecord) (*GeoReferenceData, error) {
	dir, ok := findVLR(vlrs, GeoKeyDirectoryTag)
	if !ok {
		return nil, nil
	}

	if err := br.Seek(dir.Offset + geoKeyDirectoryPreface); err != nil {
		return nil, err
	}
	r := fieldReader{br: br}
	n := r.u16()
	g := &GeoReferenceData{Keys: make([]GeoKeyEntry, 0, n)}
	for i := uint16(0); i < n && r.err == nil; i++ {
		g.Keys = append(g.Keys, GeoKeyEntry{
			KeyID:       r.u16(),
			Location:    r.u16(),
			Count:       r.u16(),
			ValueOffset: r.u16(),
		})
	}
	if r.err != nil {
		return nil, r.err
	}

	if v, ok := findVLR(vlrs, GeoDoubleParamsTag); ok {
		b, err := readPayload(br, v)
		if err != nil {
			return nil, err
		}
		le := endian.GetLittleEndianEngine()
		g.Doubles = make([]float64, len(b)/8)
		for i := range g.Doubles {
			g.Doubles[i] = math.Float64frombits(le.Uint64(b[8*i:]))
		}
	}

	if v, ok := findVLR(vlrs, GeoAsciiParamsTag); ok {
		b, err := readPayload(br, v)
		if err != nil {
			return nil, err
		}
		g.ASCII = strings.TrimRight(string(b), "\x00")
	}

	return g, nil
}
