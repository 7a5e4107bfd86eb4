package application

import (
	"errors"
	"io"
	"sync"

	"github.com/ctessum/sparse"

	"github.com/jobrunner/tessera/internal/domain"
	"github.com/jobrunner/tessera/internal/ports/output"
)

// mockVectorSource implements output.VectorSource for testing. A nil
// record in the slice yields a *domain.ParseError at that position.
type mockVectorSource struct {
	records []*output.VectorRecord
	pos     int
	closed  bool
}

func (m *mockVectorSource) Next() (*output.VectorRecord, error) {
	if m.pos >= len(m.records) {
		return nil, io.EOF
	}
	rec := m.records[m.pos]
	m.pos++
	if rec == nil {
		return nil, &domain.ParseError{
			Source: "mock",
			Record: m.pos - 1,
			Err:    errors.New("unreadable record"),
		}
	}
	return rec, nil
}

func (m *mockVectorSource) Close() error {
	m.closed = true
	return nil
}

// squareRecord builds a single-polygon record spanning [x0,x1]×[y0,y1].
func squareRecord(id string, x0, y0, x1, y1 float64) *output.VectorRecord {
	return &output.VectorRecord{
		ID: id,
		Polygons: []domain.Polygon{{
			Outer: domain.Ring{
				{X: x0, Y: y0},
				{X: x1, Y: y0},
				{X: x1, Y: y1},
				{X: x0, Y: y1},
				{X: x0, Y: y0},
			},
		}},
	}
}

// mockRaster implements output.RasterSource over an in-memory value
// function.
type mockRaster struct {
	meta    output.RasterMeta
	valueFn func(t, row, col int) float64
	readErr error
}

func (m *mockRaster) Meta() output.RasterMeta {
	return m.meta
}

func (m *mockRaster) Read(t, row, col int) (float64, error) {
	if m.readErr != nil {
		return 0, m.readErr
	}
	if t < 0 || t >= m.meta.TimeSteps {
		return 0, &domain.TimeRangeError{Index: t, Steps: m.meta.TimeSteps}
	}
	return m.valueFn(t, row, col), nil
}

func (m *mockRaster) ReadSlice(t int) (*sparse.DenseArray, error) {
	if m.readErr != nil {
		return nil, m.readErr
	}
	if t < 0 || t >= m.meta.TimeSteps {
		return nil, &domain.TimeRangeError{Index: t, Steps: m.meta.TimeSteps}
	}
	arr := sparse.ZerosDense(m.meta.Rows, m.meta.Cols)
	for row := 0; row < m.meta.Rows; row++ {
		for col := 0; col < m.meta.Cols; col++ {
			arr.Set(m.valueFn(t, row, col), row, col)
		}
	}
	return arr, nil
}

func (m *mockRaster) Close() error {
	return nil
}

// mockIndexSink implements output.IndexSink, collecting all rows.
type mockIndexSink struct {
	mu       sync.Mutex
	rows     []domain.IndexRow
	batches  int
	writeErr error
	closed   bool
}

func (m *mockIndexSink) WriteBatch(rows []domain.IndexRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	m.rows = append(m.rows, rows...)
	m.batches++
	return nil
}

func (m *mockIndexSink) Close() error {
	m.closed = true
	return nil
}

// mockDumpSink implements output.DumpSink, collecting all records.
type mockDumpSink struct {
	mu       sync.Mutex
	records  []domain.TimeSeriesRecord
	batches  int
	writeErr error
}

func (m *mockDumpSink) WriteBatch(records []domain.TimeSeriesRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	m.records = append(m.records, records...)
	m.batches++
	return nil
}

func (m *mockDumpSink) Close() error {
	return nil
}
