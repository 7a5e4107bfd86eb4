package application

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/index/rtree"

	"github.com/jobrunner/tessera/internal/domain"
	"github.com/jobrunner/tessera/internal/ports/output"
)

// RegionStore holds all region polygons in memory behind an R-tree over
// their bounding boxes. It is built once before workers start and is
// read-only afterwards, so it is shared across workers without locking.
type RegionStore struct {
	regions []*domain.Region // in load order
	tree    *rtree.Rtree
}

// LoadStats summarizes a region load.
type LoadStats struct {
	Loaded  int // Regions loaded
	Skipped int // Malformed records skipped
}

// LoadRegions drains a vector source into a new RegionStore. Malformed
// records are skipped and counted; a read failure on the source itself is
// fatal.
func LoadRegions(src output.VectorSource, logger *slog.Logger) (*RegionStore, LoadStats, error) {
	store := &RegionStore{tree: rtree.NewTree(25, 50)}
	stats := LoadStats{}

	for {
		rec, err := src.Next()
		if err == io.EOF {
			break
		}
		var parseErr *domain.ParseError
		if errors.As(err, &parseErr) {
			logger.Warn("skipping malformed region record", "error", parseErr)
			stats.Skipped++
			continue
		}
		if err != nil {
			return nil, stats, fmt.Errorf("reading vector source: %w", err)
		}

		region, err := domain.NewRegion(rec.ID, len(store.regions), rec.Polygons)
		if err != nil {
			logger.Warn("skipping malformed region", "id", rec.ID, "error", err)
			stats.Skipped++
			continue
		}

		store.regions = append(store.regions, region)
		store.tree.Insert(region)
	}

	stats.Loaded = len(store.regions)
	return store, stats, nil
}

// Len returns the number of loaded regions.
func (s *RegionStore) Len() int {
	return len(s.regions)
}

// FindContaining returns the id of the region containing p. When the point
// is contained by more than one region (overlapping inputs or a shared
// boundary), the region loaded first wins; this tie-break is deterministic
// across runs because candidates are resolved by load sequence, not by
// R-tree traversal order.
func (s *RegionStore) FindContaining(p domain.Point) (string, bool) {
	if !p.IsFinite() {
		return domain.Unassigned, false
	}

	probe := &geom.Bounds{
		Min: geom.Point{X: p.X, Y: p.Y},
		Max: geom.Point{X: p.X, Y: p.Y},
	}

	best := -1
	for _, candidate := range s.tree.SearchIntersect(probe) {
		region := candidate.(*domain.Region)
		if best >= 0 && region.Seq >= best {
			continue
		}
		if region.Contains(p) {
			best = region.Seq
		}
	}

	if best < 0 {
		return domain.Unassigned, false
	}
	return s.regions[best].ID, true
}
