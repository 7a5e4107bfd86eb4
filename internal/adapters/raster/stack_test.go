package raster

import (
	"errors"
	"strings"
	"testing"

	"github.com/ctessum/sparse"

	"github.com/jobrunner/tessera/internal/domain"
	"github.com/jobrunner/tessera/internal/ports/output"
)

// fakeSource stands in for a NetCDF file; values encode their position so
// stack routing mistakes are visible in the data.
type fakeSource struct {
	meta   output.RasterMeta
	base   float64
	closed bool
}

func (f *fakeSource) Meta() output.RasterMeta { return f.meta }

func (f *fakeSource) Read(t, row, col int) (float64, error) {
	if t < 0 || t >= f.meta.TimeSteps {
		return 0, &domain.TimeRangeError{Index: t, Steps: f.meta.TimeSteps}
	}
	return f.base + float64(t*100+row*10+col), nil
}

func (f *fakeSource) ReadSlice(t int) (*sparse.DenseArray, error) {
	arr := sparse.ZerosDense(f.meta.Rows, f.meta.Cols)
	for row := 0; row < f.meta.Rows; row++ {
		for col := 0; col < f.meta.Cols; col++ {
			v, err := f.Read(t, row, col)
			if err != nil {
				return nil, err
			}
			arr.Set(v, row, col)
		}
	}
	return arr, nil
}

func (f *fakeSource) Close() error {
	f.closed = true
	return nil
}

func fakeMeta(path string, steps int) output.RasterMeta {
	return output.RasterMeta{
		Path:      path,
		Variable:  "precip",
		Rows:      2,
		Cols:      3,
		TimeSteps: steps,
		OriginX:   -120,
		OriginY:   30,
		CellSizeX: 0.5,
		CellSizeY: 0.5,
	}
}

func buildStack(t *testing.T, files ...*fakeSource) *Stack {
	t.Helper()
	s := &Stack{}
	for _, f := range files {
		if err := s.push(f); err != nil {
			t.Fatalf("push(%s): %v", f.meta.Path, err)
		}
	}
	return s
}

func TestStackConcatenatesTime(t *testing.T) {
	s := buildStack(t,
		&fakeSource{meta: fakeMeta("jan.nc", 3), base: 1000},
		&fakeSource{meta: fakeMeta("feb.nc", 2), base: 2000},
		&fakeSource{meta: fakeMeta("mar.nc", 4), base: 3000},
	)

	if got := s.Meta().TimeSteps; got != 9 {
		t.Fatalf("TimeSteps = %d, want 9", got)
	}

	tests := []struct {
		t    int
		want float64
	}{
		{0, 1000}, // jan.nc local t=0
		{2, 1200}, // jan.nc local t=2
		{3, 2000}, // feb.nc local t=0
		{4, 2100}, // feb.nc local t=1
		{5, 3000}, // mar.nc local t=0
		{8, 3300}, // mar.nc local t=3
	}
	for _, tt := range tests {
		got, err := s.Read(tt.t, 0, 0)
		if err != nil {
			t.Fatalf("Read(%d, 0, 0) error = %v", tt.t, err)
		}
		if got != tt.want {
			t.Errorf("Read(%d, 0, 0) = %g, want %g", tt.t, got, tt.want)
		}
	}
}

func TestStackReadSliceRouting(t *testing.T) {
	s := buildStack(t,
		&fakeSource{meta: fakeMeta("a.nc", 2), base: 1000},
		&fakeSource{meta: fakeMeta("b.nc", 2), base: 2000},
	)

	arr, err := s.ReadSlice(3)
	if err != nil {
		t.Fatalf("ReadSlice(3) error = %v", err)
	}
	// Second file, local t=1, cell (1, 2).
	if got := arr.Get(1, 2); got != 2112 {
		t.Errorf("slice value at (1, 2) = %g, want 2112", got)
	}
}

func TestStackTimeOutOfRange(t *testing.T) {
	s := buildStack(t, &fakeSource{meta: fakeMeta("a.nc", 2)})

	for _, bad := range []int{-1, 2, 100} {
		if _, err := s.Read(bad, 0, 0); !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("Read(%d) error = %v, want time range error", bad, err)
		}
	}
}

func TestStackRejectsMismatchedGrids(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*output.RasterMeta)
		wantField string
	}{
		{"different shape", func(m *output.RasterMeta) { m.Cols = 99 }, "shape"},
		{"different origin", func(m *output.RasterMeta) { m.OriginX += 10 }, "origin"},
		{"different cell size", func(m *output.RasterMeta) { m.CellSizeY *= 2 }, "cell size"},
		{"fill value appears", func(m *output.RasterMeta) { m.HasFill = true; m.FillValue = -9999 }, "fill value"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := buildStack(t, &fakeSource{meta: fakeMeta("good.nc", 2)})

			bad := fakeMeta("bad.nc", 2)
			tt.mutate(&bad)
			err := s.push(&fakeSource{meta: bad})

			var dimErr *domain.DimensionError
			if !errors.As(err, &dimErr) {
				t.Fatalf("push() error = %v, want *domain.DimensionError", err)
			}
			if dimErr.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", dimErr.Field, tt.wantField)
			}
			if !strings.Contains(err.Error(), "bad.nc") {
				t.Errorf("error %q does not name the offending file", err)
			}
		})
	}
}

func TestStackRejectsMismatchedFill(t *testing.T) {
	first := fakeMeta("first.nc", 2)
	first.HasFill = true
	first.FillValue = -9999
	s := buildStack(t, &fakeSource{meta: first})

	same := fakeMeta("same.nc", 2)
	same.HasFill = true
	same.FillValue = -9999
	if err := s.push(&fakeSource{meta: same}); err != nil {
		t.Fatalf("push() with matching fill value: %v", err)
	}

	other := fakeMeta("other.nc", 2)
	other.HasFill = true
	other.FillValue = 1e20
	err := s.push(&fakeSource{meta: other})

	var dimErr *domain.DimensionError
	if !errors.As(err, &dimErr) {
		t.Fatalf("push() error = %v, want *domain.DimensionError", err)
	}
	if dimErr.Field != "fill value" {
		t.Errorf("Field = %q, want %q", dimErr.Field, "fill value")
	}
	if !strings.Contains(err.Error(), "other.nc") {
		t.Errorf("error %q does not name the offending file", err)
	}
}

func TestStackCloseClosesAll(t *testing.T) {
	a := &fakeSource{meta: fakeMeta("a.nc", 1)}
	b := &fakeSource{meta: fakeMeta("b.nc", 1)}
	s := buildStack(t, a, b)

	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !a.closed || !b.closed {
		t.Error("Close() did not close every file")
	}
}

func TestCloseEnough(t *testing.T) {
	if !closeEnough(-120, -120+1e-12) {
		t.Error("tiny drift should be tolerated")
	}
	if closeEnough(-120, -119.5) {
		t.Error("half a degree is not drift")
	}
}
