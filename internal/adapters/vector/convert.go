package vector

import (
	"fmt"

	"github.com/ctessum/geom"
	"github.com/paulmach/orb"

	"github.com/jobrunner/tessera/internal/domain"
)

// fromGeom converts a decoded shapefile geometry into domain polygons.
// Shapefiles store all rings of a shape in one flat list; by convention
// outer rings wind clockwise and holes counter-clockwise, with each hole
// listed after its outer ring. Rings are regrouped here using that
// ordering.
func fromGeom(g geom.Geom) ([]domain.Polygon, error) {
	switch t := g.(type) {
	case geom.Polygon:
		return regroupRings(t), nil
	case geom.MultiPolygon:
		var out []domain.Polygon
		for _, p := range t {
			out = append(out, regroupRings(p)...)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: geometry type %T is not polygonal", domain.ErrUnsupported, g)
	}
}

func regroupRings(p geom.Polygon) []domain.Polygon {
	var out []domain.Polygon
	for _, path := range p {
		ring := make(domain.Ring, len(path))
		for i, pt := range path {
			ring[i] = domain.Point{X: pt.X, Y: pt.Y}
		}
		// A counter-clockwise ring is a hole in the preceding polygon.
		// The first ring always starts a polygon even if its winding is
		// off; not every writer honors the convention.
		if len(out) > 0 && signedArea(ring) > 0 {
			out[len(out)-1].Holes = append(out[len(out)-1].Holes, ring)
			continue
		}
		out = append(out, domain.Polygon{Outer: ring})
	}
	return out
}

// signedArea is positive for counter-clockwise rings.
func signedArea(r domain.Ring) float64 {
	var sum float64
	for i := 0; i < len(r)-1; i++ {
		sum += r[i].X*r[i+1].Y - r[i+1].X*r[i].Y
	}
	return sum / 2
}

// fromOrb converts an orb geometry into domain polygons. Orb keeps ring
// structure explicit: ring 0 is the outer ring, the rest are holes.
func fromOrb(g orb.Geometry) ([]domain.Polygon, error) {
	switch t := g.(type) {
	case orb.Polygon:
		return []domain.Polygon{orbPolygon(t)}, nil
	case orb.MultiPolygon:
		out := make([]domain.Polygon, 0, len(t))
		for _, p := range t {
			out = append(out, orbPolygon(p))
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: geometry type %T is not polygonal", domain.ErrUnsupported, g)
	}
}

func orbPolygon(p orb.Polygon) domain.Polygon {
	var poly domain.Polygon
	for i, r := range p {
		ring := make(domain.Ring, len(r))
		for j, pt := range r {
			ring[j] = domain.Point{X: pt[0], Y: pt[1]}
		}
		if i == 0 {
			poly.Outer = ring
		} else {
			poly.Holes = append(poly.Holes, ring)
		}
	}
	return poly
}
