package tinsource

import (
	"math"

	"github.com/paulmach/orb"
)

// Rescale maps source coordinates into the triangulation's working space as
// (raw - offset) * scale on each axis.
type Rescale struct {
	OffsetX, OffsetY, OffsetZ float64
	ScaleX, ScaleY, ScaleZ    float64
}

// Identity returns a Rescale that leaves coordinates unchanged.
func Identity() *Rescale {
	return &Rescale{ScaleX: 1, ScaleY: 1, ScaleZ: 1}
}

// GeographicRescale returns a Rescale that turns longitude/latitude degrees
// within b into approximate metres about the centre of b. Z is unchanged.
func GeographicRescale(b orb.Bound) *Rescale {
	c := b.Center()
	metresPerDegree := orb.EarthRadius * math.Pi / 180
	return &Rescale{
		OffsetX: c[0],
		OffsetY: c[1],
		ScaleX:  metresPerDegree * math.Cos(c[1]*math.Pi/180),
		ScaleY:  metresPerDegree,
		ScaleZ:  1,
	}
}

// Apply transforms one coordinate triple. A nil Rescale is the identity.
func (r *Rescale) Apply(x, y, z float64) (float64, float64, float64) {
	if r == nil {
		return x, y, z
	}
	return (x - r.OffsetX) * r.ScaleX, (y - r.OffsetY) * r.ScaleY, (z - r.OffsetZ) * r.ScaleZ
}

// Invert maps a working-space coordinate back to source coordinates.
func (r *Rescale) Invert(x, y, z float64) (float64, float64, float64) {
	if r == nil {
		return x, y, z
	}
	return x/r.ScaleX + r.OffsetX, y/r.ScaleY + r.OffsetY, z/r.ScaleZ + r.OffsetZ
}
