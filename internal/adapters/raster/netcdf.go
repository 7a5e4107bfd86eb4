// Package raster reads gridded time-series data from NetCDF files and
// presents multiple time-partitioned files as one continuous source.
package raster

import (
	"fmt"
	"math"
	"os"

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"

	"github.com/jobrunner/tessera/internal/domain"
	"github.com/jobrunner/tessera/internal/ports/output"
)

// Options selects the variable and coordinate layout of a NetCDF file.
type Options struct {
	// Variable is the data variable to extract. Its dimensions must be
	// (time, y, x) in that order.
	Variable string

	// XVar and YVar name the 1-D coordinate variables carrying cell
	// center positions. They default to "lon" and "lat".
	XVar string
	YVar string

	// LonOffset is added to every x coordinate. Rasters on a [0, 360)
	// longitude domain use -360 to line up with vector data on
	// [-180, 180).
	LonOffset float64
}

// File reads one NetCDF file. Slice reads create an independent reader
// over the underlying file handle, so concurrent reads are safe.
type File struct {
	f    *os.File
	cf   *cdf.File
	meta output.RasterMeta
}

// OpenFile opens a NetCDF file and derives the grid geometry from its
// coordinate variables.
func OpenFile(path string, opts Options) (*File, error) {
	if opts.XVar == "" {
		opts.XVar = "lon"
	}
	if opts.YVar == "" {
		opts.YVar = "lat"
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, &domain.SourceError{Operation: "open", Path: path, Err: err}
	}
	cf, err := cdf.Open(f)
	if err != nil {
		_ = f.Close()
		return nil, &domain.SourceError{Operation: "open", Path: path, Err: err}
	}

	meta, err := readMeta(cf, path, opts)
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	return &File{f: f, cf: cf, meta: meta}, nil
}

func readMeta(cf *cdf.File, path string, opts Options) (output.RasterMeta, error) {
	var meta output.RasterMeta
	meta.Path = path
	meta.Variable = opts.Variable

	if !hasVariable(cf, opts.Variable) {
		return meta, fmt.Errorf("%q in %s: %w", opts.Variable, path, domain.ErrVariableNotFound)
	}

	dims := cf.Header.Lengths(opts.Variable)
	if len(dims) != 3 {
		return meta, &domain.DimensionError{
			Path:  path,
			Field: "rank",
			Want:  "3 (time, y, x)",
			Got:   fmt.Sprintf("%d", len(dims)),
		}
	}
	meta.TimeSteps = dims[0]
	meta.Rows = dims[1]
	meta.Cols = dims[2]

	ys, err := readCoords(cf, opts.YVar, meta.Rows, path)
	if err != nil {
		return meta, err
	}
	xs, err := readCoords(cf, opts.XVar, meta.Cols, path)
	if err != nil {
		return meta, err
	}

	// Coordinate variables hold cell centers; the grid origin is half a
	// cell before the first center.
	meta.CellSizeX = step(xs)
	meta.CellSizeY = step(ys)
	meta.OriginX = xs[0] - meta.CellSizeX/2 + opts.LonOffset
	meta.OriginY = ys[0] - meta.CellSizeY/2

	meta.FillValue, meta.HasFill = fillValue(cf, opts.Variable)

	return meta, nil
}

func hasVariable(cf *cdf.File, name string) bool {
	for _, v := range cf.Header.Variables() {
		if v == name {
			return true
		}
	}
	return false
}

// readCoords reads a 1-D coordinate variable as float64.
func readCoords(cf *cdf.File, name string, want int, path string) ([]float64, error) {
	if !hasVariable(cf, name) {
		return nil, fmt.Errorf("coordinate %q in %s: %w", name, path, domain.ErrVariableNotFound)
	}
	lengths := cf.Header.Lengths(name)
	if len(lengths) != 1 {
		return nil, &domain.DimensionError{
			Path:  path,
			Field: name,
			Want:  "1-D coordinate variable",
			Got:   fmt.Sprintf("rank %d", len(lengths)),
		}
	}
	if err := coordLenError(lengths[0], want, name, path); err != nil {
		return nil, err
	}

	r := cf.Reader(name, nil, nil)
	buf := r.Zero(want)
	if _, err := r.Read(buf); err != nil {
		return nil, &domain.SourceError{Operation: "read coordinates", Path: path, Err: err}
	}
	return toFloat64(buf), nil
}

// coordLenError reports an unusable coordinate axis length. An axis
// shorter than 2 values carries no spacing to derive a cell size from.
func coordLenError(got, want int, name, path string) error {
	if want < 2 {
		return &domain.DimensionError{
			Path:  path,
			Field: name,
			Want:  "at least 2 values to derive a cell size",
			Got:   fmt.Sprintf("%d values", got),
		}
	}
	if got != want {
		return &domain.DimensionError{
			Path:  path,
			Field: name,
			Want:  fmt.Sprintf("%d values", want),
			Got:   fmt.Sprintf("%d values", got),
		}
	}
	return nil
}

// step returns the spacing between consecutive coordinate values.
func step(coords []float64) float64 {
	return coords[1] - coords[0]
}

// fillValue looks up the variable's fill marker, trying the CF-standard
// attribute first.
func fillValue(cf *cdf.File, v string) (float64, bool) {
	for _, attr := range []string{"_FillValue", "missing_value"} {
		vals := toFloat64(cf.Header.GetAttribute(v, attr))
		if len(vals) > 0 && !math.IsNaN(vals[0]) {
			return vals[0], true
		}
	}
	return 0, false
}

// toFloat64 widens any numeric slice a NetCDF variable can decode to.
func toFloat64(v interface{}) []float64 {
	switch t := v.(type) {
	case []float64:
		return t
	case []float32:
		out := make([]float64, len(t))
		for i, x := range t {
			out[i] = float64(x)
		}
		return out
	case []int32:
		out := make([]float64, len(t))
		for i, x := range t {
			out[i] = float64(x)
		}
		return out
	case []int16:
		out := make([]float64, len(t))
		for i, x := range t {
			out[i] = float64(x)
		}
		return out
	case []int8:
		out := make([]float64, len(t))
		for i, x := range t {
			out[i] = float64(x)
		}
		return out
	default:
		return nil
	}
}

// Meta returns the file's grid metadata.
func (f *File) Meta() output.RasterMeta {
	return f.meta
}

// Read returns the value of one cell at one time step.
func (f *File) Read(t, row, col int) (float64, error) {
	if t < 0 || t >= f.meta.TimeSteps {
		return 0, &domain.TimeRangeError{Index: t, Steps: f.meta.TimeSteps}
	}
	r := f.cf.Reader(f.meta.Variable, []int{t, row, col}, []int{t + 1, row + 1, col + 1})
	buf := r.Zero(1)
	if _, err := r.Read(buf); err != nil {
		return 0, &domain.SourceError{Operation: "read", Path: f.meta.Path, Err: err}
	}
	vals := toFloat64(buf)
	if len(vals) != 1 {
		return 0, &domain.SourceError{
			Operation: "read",
			Path:      f.meta.Path,
			Err:       fmt.Errorf("%w: unsupported variable type", domain.ErrUnsupported),
		}
	}
	return vals[0], nil
}

// ReadSlice returns the full spatial grid at one time step.
func (f *File) ReadSlice(t int) (*sparse.DenseArray, error) {
	if t < 0 || t >= f.meta.TimeSteps {
		return nil, &domain.TimeRangeError{Index: t, Steps: f.meta.TimeSteps}
	}
	r := f.cf.Reader(f.meta.Variable,
		[]int{t, 0, 0},
		[]int{t + 1, f.meta.Rows, f.meta.Cols})
	buf := r.Zero(f.meta.Rows * f.meta.Cols)
	if _, err := r.Read(buf); err != nil {
		return nil, &domain.SourceError{Operation: "read slice", Path: f.meta.Path, Err: err}
	}
	vals := toFloat64(buf)
	if len(vals) != f.meta.Rows*f.meta.Cols {
		return nil, &domain.SourceError{
			Operation: "read slice",
			Path:      f.meta.Path,
			Err:       fmt.Errorf("%w: unsupported variable type", domain.ErrUnsupported),
		}
	}

	arr := sparse.ZerosDense(f.meta.Rows, f.meta.Cols)
	copy(arr.Elements, vals)
	return arr, nil
}

// Close releases the file handle.
func (f *File) Close() error {
	return f.f.Close()
}
