package crs

import (
	"log"

	"github.com/paulmach/orb"
)

// Normalizer detects the source CRS of a geometry batch and brings every
// geometry to 2D WGS84.
//
// orb geometries hold exactly two ordinates, so any elevation component is
// already gone by the time a reader hands geometry over; Reproject only has
// to move coordinates.
type Normalizer struct {
	projector Projector
}

func NewNormalizer(projector Projector) *Normalizer {
	if projector == nil {
		projector = UTMProjector{}
	}
	return &Normalizer{projector: projector}
}

func (n *Normalizer) DetectCRS(samples []orb.Point) CRS {
	return DetectCRS(samples)
}

// Reproject returns g in WGS84. A geometry that cannot be transformed is
// returned untouched so the rest of the batch can proceed.
func (n *Normalizer) Reproject(g orb.Geometry, source CRS) orb.Geometry {
	if g == nil {
		return nil
	}
	if source == WGS84 {
		return orb.Clone(g)
	}

	out, err := n.projector.ToWGS84(g, source)
	if err != nil {
		log.Printf("Warning: reprojection from %s failed, keeping source coordinates: %v", source, err)
		return orb.Clone(g)
	}
	return out
}

// Normalize detects the CRS from a sample of geoms and reprojects all of
// them. Nil entries stay nil.
func (n *Normalizer) Normalize(geoms []orb.Geometry) (CRS, []orb.Geometry) {
	source := n.DetectCRS(Sample(geoms))
	out := make([]orb.Geometry, len(geoms))
	for i, g := range geoms {
		out[i] = n.Reproject(g, source)
	}
	return source, out
}

// NormalizeFrom is Normalize with a CRS that the source file declared.
func (n *Normalizer) NormalizeFrom(source CRS, geoms []orb.Geometry) []orb.Geometry {
	out := make([]orb.Geometry, len(geoms))
	for i, g := range geoms {
		out[i] = n.Reproject(g, source)
	}
	return out
}
