// Package domain contains the core entities of the spatial join pipeline.
package domain

import (
	"math"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/proj"
)

// Point is a 2D coordinate in the grid's reference system.
type Point struct {
	X float64
	Y float64
}

// IsFinite returns true if both coordinates are finite numbers.
func (p Point) IsFinite() bool {
	return !math.IsNaN(p.X) && !math.IsInf(p.X, 0) &&
		!math.IsNaN(p.Y) && !math.IsInf(p.Y, 0)
}

// Ring is a closed loop of coordinates. The final point must repeat the
// first; a ring with fewer than three distinct points is malformed.
type Ring []Point

// Validate checks that the ring is closed, long enough and finite.
func (r Ring) Validate() error {
	if len(r) < 4 {
		return ErrRingTooShort
	}
	for _, p := range r {
		if !p.IsFinite() {
			return ErrRingNotFinite
		}
	}
	if r[0] != r[len(r)-1] {
		return ErrRingNotClosed
	}
	return nil
}

// Contains reports whether p lies inside the ring using the even-odd
// ray casting rule. Points exactly on an edge may resolve to either side;
// callers needing a deterministic outcome for shared boundaries rely on
// the region load-order tie-break instead.
func (r Ring) Contains(p Point) bool {
	n := len(r)
	if n < 3 {
		return false
	}
	inside := false
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		xi, yi := r[i].X, r[i].Y
		xj, yj := r[j].X, r[j].Y
		if ((yi > p.Y) != (yj > p.Y)) &&
			p.X < (xj-xi)*(p.Y-yi)/(yj-yi+1e-12)+xi {
			inside = !inside
		}
	}
	return inside
}

// Polygon is one outer ring plus zero or more hole rings.
type Polygon struct {
	Outer Ring
	Holes []Ring
}

// Contains reports whether p is inside the outer ring and outside every hole.
func (pg Polygon) Contains(p Point) bool {
	if !pg.Outer.Contains(p) {
		return false
	}
	for _, h := range pg.Holes {
		if h.Contains(p) {
			return false
		}
	}
	return true
}

// Validate checks every ring of the polygon.
func (pg Polygon) Validate() error {
	if err := pg.Outer.Validate(); err != nil {
		return err
	}
	for _, h := range pg.Holes {
		if err := h.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Region is an immutable polygon record owned by the region store for the
// lifetime of a run. Seq is the zero-based load order and provides the
// documented tie-break: when a point is contained by more than one region,
// the region loaded first wins.
type Region struct {
	ID       string
	Seq      int
	Polygons []Polygon

	bounds *geom.Bounds
}

// NewRegion validates all rings and precomputes the bounding box.
func NewRegion(id string, seq int, polygons []Polygon) (*Region, error) {
	if len(polygons) == 0 {
		return nil, ErrRegionEmpty
	}
	for _, pg := range polygons {
		if err := pg.Validate(); err != nil {
			return nil, err
		}
	}

	b := &geom.Bounds{
		Min: geom.Point{X: math.Inf(1), Y: math.Inf(1)},
		Max: geom.Point{X: math.Inf(-1), Y: math.Inf(-1)},
	}
	for _, pg := range polygons {
		for _, p := range pg.Outer {
			b.Min.X = math.Min(b.Min.X, p.X)
			b.Min.Y = math.Min(b.Min.Y, p.Y)
			b.Max.X = math.Max(b.Max.X, p.X)
			b.Max.Y = math.Max(b.Max.Y, p.Y)
		}
	}

	return &Region{ID: id, Seq: seq, Polygons: polygons, bounds: b}, nil
}

// Contains reports whether p is inside any of the region's polygons,
// respecting holes. The bounding box is checked first.
func (r *Region) Contains(p Point) bool {
	if p.X < r.bounds.Min.X || p.X > r.bounds.Max.X ||
		p.Y < r.bounds.Min.Y || p.Y > r.bounds.Max.Y {
		return false
	}
	for _, pg := range r.Polygons {
		if pg.Contains(p) {
			return true
		}
	}
	return false
}

// Bounds implements geom.Spatial so regions can be inserted into an R-tree.
func (r *Region) Bounds() *geom.Bounds {
	return r.bounds
}

// The methods below complete the geom.Geom interface, which rtree.Insert
// requires. The R-tree only ever calls Bounds; nothing in the pipeline
// calls these.

// Len returns the total number of points across all rings.
func (r *Region) Len() int {
	n := 0
	for _, pg := range r.Polygons {
		n += len(pg.Outer)
		for _, h := range pg.Holes {
			n += len(h)
		}
	}
	return n
}

// Points returns an iterator over every point in the region's rings.
func (r *Region) Points() func() geom.Point {
	pts := make([]geom.Point, 0, r.Len())
	for _, pg := range r.Polygons {
		for _, p := range pg.Outer {
			pts = append(pts, geom.Point{X: p.X, Y: p.Y})
		}
		for _, h := range pg.Holes {
			for _, p := range h {
				pts = append(pts, geom.Point{X: p.X, Y: p.Y})
			}
		}
	}
	i := 0
	return func() geom.Point {
		p := pts[i]
		i++
		return p
	}
}

// Similar reports whether g is the same region instance.
func (r *Region) Similar(g geom.Geom, _ float64) bool {
	o, ok := g.(*Region)
	return ok && o == r
}

// Transform is unsupported: regions are immutable once loaded.
func (r *Region) Transform(proj.Transformer) (geom.Geom, error) {
	return nil, ErrUnsupported
}
