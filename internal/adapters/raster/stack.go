package raster

import (
	"fmt"
	"math"
	"sort"

	"github.com/ctessum/sparse"

	"github.com/jobrunner/tessera/internal/domain"
	"github.com/jobrunner/tessera/internal/ports/output"
)

// Stack presents a sequence of time-partitioned NetCDF files as one
// continuous raster. Files are ordered by path name; their time axes are
// concatenated and their spatial grids must agree exactly.
type Stack struct {
	files   []output.RasterSource
	offsets []int // cumulative time steps before each file
	meta    output.RasterMeta
}

// OpenStack opens every path and validates that the files share one grid.
// A single path yields a thin wrapper with no stacking overhead.
func OpenStack(paths []string, opts Options) (output.RasterSource, error) {
	if len(paths) == 0 {
		return nil, &domain.SourceError{
			Operation: "open",
			Err:       fmt.Errorf("%w: no raster files given", domain.ErrInvalidInput),
		}
	}

	sorted := make([]string, len(paths))
	copy(sorted, paths)
	sort.Strings(sorted)

	if len(sorted) == 1 {
		return OpenFile(sorted[0], opts)
	}

	s := &Stack{}
	for _, path := range sorted {
		f, err := OpenFile(path, opts)
		if err != nil {
			_ = s.Close()
			return nil, err
		}
		if err := s.push(f); err != nil {
			_ = f.Close()
			_ = s.Close()
			return nil, err
		}
	}
	return s, nil
}

// push appends a file to the stack after checking its grid against the
// first file's.
func (s *Stack) push(f output.RasterSource) error {
	meta := f.Meta()
	if len(s.files) == 0 {
		s.files = append(s.files, f)
		s.offsets = append(s.offsets, 0)
		s.meta = meta
		return nil
	}

	if err := s.checkGrid(meta); err != nil {
		return err
	}

	s.offsets = append(s.offsets, s.meta.TimeSteps)
	s.files = append(s.files, f)
	s.meta.TimeSteps += meta.TimeSteps
	return nil
}

func (s *Stack) checkGrid(meta output.RasterMeta) error {
	if meta.Rows != s.meta.Rows || meta.Cols != s.meta.Cols {
		return &domain.DimensionError{
			Path:  meta.Path,
			Field: "shape",
			Want:  fmt.Sprintf("%d×%d", s.meta.Rows, s.meta.Cols),
			Got:   fmt.Sprintf("%d×%d", meta.Rows, meta.Cols),
		}
	}
	if !closeEnough(meta.OriginX, s.meta.OriginX) || !closeEnough(meta.OriginY, s.meta.OriginY) {
		return &domain.DimensionError{
			Path:  meta.Path,
			Field: "origin",
			Want:  fmt.Sprintf("(%g, %g)", s.meta.OriginX, s.meta.OriginY),
			Got:   fmt.Sprintf("(%g, %g)", meta.OriginX, meta.OriginY),
		}
	}
	if !closeEnough(meta.CellSizeX, s.meta.CellSizeX) || !closeEnough(meta.CellSizeY, s.meta.CellSizeY) {
		return &domain.DimensionError{
			Path:  meta.Path,
			Field: "cell size",
			Want:  fmt.Sprintf("(%g, %g)", s.meta.CellSizeX, s.meta.CellSizeY),
			Got:   fmt.Sprintf("(%g, %g)", meta.CellSizeX, meta.CellSizeY),
		}
	}
	// Fill handling compares every value against one sentinel, so the
	// files must agree on it.
	if meta.HasFill != s.meta.HasFill || (meta.HasFill && meta.FillValue != s.meta.FillValue) {
		return &domain.DimensionError{
			Path:  meta.Path,
			Field: "fill value",
			Want:  describeFill(s.meta),
			Got:   describeFill(meta),
		}
	}
	return nil
}

func describeFill(m output.RasterMeta) string {
	if !m.HasFill {
		return "none"
	}
	return fmt.Sprintf("%g", m.FillValue)
}

// closeEnough tolerates float drift from coordinate arrays written by
// different tools for the same grid.
func closeEnough(a, b float64) bool {
	return math.Abs(a-b) <= 1e-9*math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
}

// locate maps a stack-wide time index to a file and its local index.
func (s *Stack) locate(t int) (output.RasterSource, int, error) {
	if t < 0 || t >= s.meta.TimeSteps {
		return nil, 0, &domain.TimeRangeError{Index: t, Steps: s.meta.TimeSteps}
	}
	i := sort.Search(len(s.offsets), func(i int) bool { return s.offsets[i] > t }) - 1
	return s.files[i], t - s.offsets[i], nil
}

// Meta returns the combined grid metadata.
func (s *Stack) Meta() output.RasterMeta {
	return s.meta
}

// Read returns the value of one cell at one stack-wide time step.
func (s *Stack) Read(t, row, col int) (float64, error) {
	f, local, err := s.locate(t)
	if err != nil {
		return 0, err
	}
	return f.Read(local, row, col)
}

// ReadSlice returns the full spatial grid at one stack-wide time step.
func (s *Stack) ReadSlice(t int) (*sparse.DenseArray, error) {
	f, local, err := s.locate(t)
	if err != nil {
		return nil, err
	}
	return f.ReadSlice(local)
}

// Close closes every file in the stack, returning the first error.
func (s *Stack) Close() error {
	var first error
	for _, f := range s.files {
		if err := f.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
