package domain

import "sort"

// Unassigned is the region id recorded for a cell whose center lies outside
// every region. It is a valid outcome, not an error.
const Unassigned = ""

// Cell identifies one grid element by its (row, column) coordinates.
type Cell struct {
	Row int
	Col int
}

// IndexRow is the persisted join result for one cell.
type IndexRow struct {
	Row      int
	Col      int
	RegionID string
}

// Assigned reports whether the cell was matched to a region.
func (r IndexRow) Assigned() bool {
	return r.RegionID != Unassigned
}

// RegionCells groups the assigned cells of a persisted index by region.
// Grouping is insertion-order independent: RegionIDs always returns ids in
// lexical order so downstream output is deterministic regardless of how
// batches were interleaved when the index was written.
type RegionCells struct {
	cells map[string][]Cell
	ids   []string
	n     int
}

// NewRegionCells creates an empty grouping.
func NewRegionCells() *RegionCells {
	return &RegionCells{cells: make(map[string][]Cell)}
}

// Add records one index row. Unassigned rows are ignored.
func (rc *RegionCells) Add(row IndexRow) {
	if !row.Assigned() {
		return
	}
	if _, ok := rc.cells[row.RegionID]; !ok {
		rc.ids = append(rc.ids, row.RegionID)
	}
	rc.cells[row.RegionID] = append(rc.cells[row.RegionID], Cell{Row: row.Row, Col: row.Col})
	rc.n++
}

// RegionIDs returns all region ids in lexical order.
func (rc *RegionCells) RegionIDs() []string {
	ids := make([]string, len(rc.ids))
	copy(ids, rc.ids)
	sort.Strings(ids)
	return ids
}

// Cells returns the cells recorded for a region, in insertion order.
func (rc *RegionCells) Cells(id string) []Cell {
	return rc.cells[id]
}

// Regions returns the number of distinct regions.
func (rc *RegionCells) Regions() int {
	return len(rc.ids)
}

// CellCount returns the total number of assigned cells.
func (rc *RegionCells) CellCount() int {
	return rc.n
}
