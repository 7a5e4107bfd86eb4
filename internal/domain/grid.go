package domain

import "math"

// Grid describes the raster's coordinate system: its dimensions and the
// affine transform mapping cell indices to coordinates. A negative Y cell
// size expresses a north-down grid (row 0 at the top).
type Grid struct {
	Rows      int
	Cols      int
	TimeSteps int
	OriginX   float64
	OriginY   float64
	CellSizeX float64
	CellSizeY float64
}

// CellCenter returns the representative point of a cell: its center.
func (g Grid) CellCenter(row, col int) Point {
	return Point{
		X: g.OriginX + (float64(col)+0.5)*g.CellSizeX,
		Y: g.OriginY + (float64(row)+0.5)*g.CellSizeY,
	}
}

// InBounds reports whether (row, col) addresses a cell of the grid.
func (g Grid) InBounds(row, col int) bool {
	return row >= 0 && row < g.Rows && col >= 0 && col < g.Cols
}

// Cells returns the total number of cells.
func (g Grid) Cells() int {
	return g.Rows * g.Cols
}

// Validate checks the grid metadata for consistency. Inconsistent metadata
// is fatal and must abort a run before any worker starts.
func (g Grid) Validate() error {
	if g.Rows <= 0 {
		return &GridError{Field: "rows", Value: g.Rows, Message: "must be positive"}
	}
	if g.Cols <= 0 {
		return &GridError{Field: "cols", Value: g.Cols, Message: "must be positive"}
	}
	if g.TimeSteps < 0 {
		return &GridError{Field: "time_steps", Value: g.TimeSteps, Message: "must not be negative"}
	}
	for _, f := range []struct {
		name  string
		value float64
	}{
		{"origin_x", g.OriginX},
		{"origin_y", g.OriginY},
		{"cell_size_x", g.CellSizeX},
		{"cell_size_y", g.CellSizeY},
	} {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return &GridError{Field: f.name, Value: f.value, Message: "must be finite"}
		}
	}
	if g.CellSizeX == 0 {
		return &GridError{Field: "cell_size_x", Value: g.CellSizeX, Message: "must not be zero"}
	}
	if g.CellSizeY == 0 {
		return &GridError{Field: "cell_size_y", Value: g.CellSizeY, Message: "must not be zero"}
	}
	return nil
}
