// Package output defines the secondary/driven ports of the application.
package output

import (
	"github.com/ctessum/sparse"

	"github.com/jobrunner/tessera/internal/domain"
)

// VectorRecord is one polygon record yielded by a vector source.
type VectorRecord struct {
	ID       string           // Stable region identifier
	Polygons []domain.Polygon // Polygon parts, each with outer ring and holes
}

// VectorSource defines the secondary port for reading polygon datasets.
// Next returns io.EOF after the last record. Records with geometry the
// source cannot represent as polygons are reported as *domain.ParseError
// so callers can skip and count them.
type VectorSource interface {
	// Next returns the next polygon record.
	Next() (*VectorRecord, error)

	// Close releases the underlying source.
	Close() error
}

// RasterMeta describes a raster's grid, time axis and fill value.
type RasterMeta struct {
	Path      string  // Source file, for error reporting
	Variable  string  // Variable being read
	Rows      int     // Latitude / Y dimension length
	Cols      int     // Longitude / X dimension length
	TimeSteps int     // Time dimension length
	OriginX   float64 // Lower-left corner of cell (0, 0), x
	OriginY   float64 // Corner of cell (0, 0), y (upper-left when CellSizeY < 0)
	CellSizeX float64
	CellSizeY float64 // Negative for north-down grids
	FillValue float64 // Sentinel for missing samples
	HasFill   bool    // True when the source declares a fill value
}

// Grid returns the grid model described by the metadata.
func (m RasterMeta) Grid() domain.Grid {
	return domain.Grid{
		Rows:      m.Rows,
		Cols:      m.Cols,
		TimeSteps: m.TimeSteps,
		OriginX:   m.OriginX,
		OriginY:   m.OriginY,
		CellSizeX: m.CellSizeX,
		CellSizeY: m.CellSizeY,
	}
}

// RasterSource defines the secondary port for random-access raster reads.
// Implementations must be safe for concurrent readers.
type RasterSource interface {
	// Meta returns the raster's dimension metadata.
	Meta() RasterMeta

	// Read returns the value at one (time, row, col) coordinate.
	Read(timeIndex, row, col int) (float64, error)

	// ReadSlice returns the full row×col matrix for one time index.
	ReadSlice(timeIndex int) (*sparse.DenseArray, error)

	// Close releases the underlying source.
	Close() error
}
