package application

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"

	"github.com/jobrunner/tessera/internal/domain"
	"github.com/jobrunner/tessera/internal/ports/output"
)

// testGrid is a 4×4 grid over [0,4]×[0,4] with unit cells, so the center
// of cell (row, col) is (col+0.5, row+0.5).
func testGrid() domain.Grid {
	return domain.Grid{
		Rows:      4,
		Cols:      4,
		OriginX:   0,
		OriginY:   0,
		CellSizeX: 1,
		CellSizeY: 1,
	}
}

// testStore covers the grid with two regions: "west" spans columns 0-1,
// "east" spans column 2, leaving column 3 unassigned.
func testStore(t *testing.T) *RegionStore {
	t.Helper()
	src := &mockVectorSource{records: []*output.VectorRecord{
		squareRecord("west", 0, 0, 2, 4),
		squareRecord("east", 2, 0, 3, 4),
	}}
	store, _, err := LoadRegions(src, testLogger())
	if err != nil {
		t.Fatalf("LoadRegions() error = %v", err)
	}
	return store
}

func rowKeys(rows []domain.IndexRow) []string {
	keys := make([]string, len(rows))
	for i, r := range rows {
		keys[i] = fmt.Sprintf("%d/%d=%s", r.Row, r.Col, r.RegionID)
	}
	sort.Strings(keys)
	return keys
}

func TestIndexerCoversEveryCell(t *testing.T) {
	sink := &mockIndexSink{}
	ix, err := NewIndexer(testStore(t), testGrid(), sink, &output.NoOpMetrics{}, testLogger(),
		IndexerConfig{BatchSize: 2, ThreadCount: 2})
	if err != nil {
		t.Fatalf("NewIndexer() error = %v", err)
	}

	summary, err := ix.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(sink.rows) != 16 {
		t.Fatalf("wrote %d rows, want 16", len(sink.rows))
	}
	if summary.Cells != 16 {
		t.Errorf("Cells = %d, want 16", summary.Cells)
	}
	// 4 rows × 2 cols west + 4 rows × 1 col east.
	if summary.Assigned != 12 {
		t.Errorf("Assigned = %d, want 12", summary.Assigned)
	}
	if summary.Unassigned != 4 {
		t.Errorf("Unassigned = %d, want 4", summary.Unassigned)
	}

	seen := make(map[domain.Cell]string)
	for _, r := range sink.rows {
		c := domain.Cell{Row: r.Row, Col: r.Col}
		if prev, dup := seen[c]; dup {
			t.Fatalf("cell %v written twice (%q and %q)", c, prev, r.RegionID)
		}
		seen[c] = r.RegionID
	}

	for _, tc := range []struct {
		cell domain.Cell
		want string
	}{
		{domain.Cell{Row: 0, Col: 0}, "west"},
		{domain.Cell{Row: 3, Col: 1}, "west"},
		{domain.Cell{Row: 2, Col: 2}, "east"},
		{domain.Cell{Row: 1, Col: 3}, domain.Unassigned},
	} {
		if got := seen[tc.cell]; got != tc.want {
			t.Errorf("cell %v assigned to %q, want %q", tc.cell, got, tc.want)
		}
	}
}

func TestIndexerBatchSizeInvariance(t *testing.T) {
	store := testStore(t)
	grid := testGrid()

	var baseline []string
	configs := []IndexerConfig{
		{BatchSize: 1, ThreadCount: 1},
		{BatchSize: 2, ThreadCount: 3},
		{BatchSize: 3, ThreadCount: 2},
		{BatchSize: 100, ThreadCount: 8},
	}

	for _, cfg := range configs {
		t.Run(fmt.Sprintf("batch%d_threads%d", cfg.BatchSize, cfg.ThreadCount), func(t *testing.T) {
			sink := &mockIndexSink{}
			ix, err := NewIndexer(store, grid, sink, &output.NoOpMetrics{}, testLogger(), cfg)
			if err != nil {
				t.Fatalf("NewIndexer() error = %v", err)
			}
			if _, err := ix.Run(context.Background()); err != nil {
				t.Fatalf("Run() error = %v", err)
			}

			keys := rowKeys(sink.rows)
			if baseline == nil {
				baseline = keys
				return
			}
			if len(keys) != len(baseline) {
				t.Fatalf("wrote %d rows, want %d", len(keys), len(baseline))
			}
			for i := range keys {
				if keys[i] != baseline[i] {
					t.Fatalf("row set diverges at %d: %s != %s", i, keys[i], baseline[i])
				}
			}
		})
	}
}

func TestNewIndexerValidation(t *testing.T) {
	store := testStore(t)
	sink := &mockIndexSink{}

	tests := []struct {
		name    string
		grid    domain.Grid
		cfg     IndexerConfig
		wantErr error
	}{
		{
			name:    "zero batch size",
			grid:    testGrid(),
			cfg:     IndexerConfig{BatchSize: 0, ThreadCount: 1},
			wantErr: domain.ErrBatchSize,
		},
		{
			name:    "negative thread count",
			grid:    testGrid(),
			cfg:     IndexerConfig{BatchSize: 1, ThreadCount: -1},
			wantErr: domain.ErrThreadCount,
		},
		{
			name:    "invalid grid",
			grid:    domain.Grid{Rows: 0, Cols: 4, CellSizeX: 1, CellSizeY: 1},
			cfg:     IndexerConfig{BatchSize: 1, ThreadCount: 1},
			wantErr: domain.ErrInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewIndexer(store, tt.grid, sink, &output.NoOpMetrics{}, testLogger(), tt.cfg)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("NewIndexer() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestIndexerSinkErrorAborts(t *testing.T) {
	wantErr := errors.New("disk full")
	sink := &mockIndexSink{writeErr: wantErr}

	ix, err := NewIndexer(testStore(t), testGrid(), sink, &output.NoOpMetrics{}, testLogger(),
		IndexerConfig{BatchSize: 1, ThreadCount: 2})
	if err != nil {
		t.Fatalf("NewIndexer() error = %v", err)
	}

	if _, err := ix.Run(context.Background()); !errors.Is(err, wantErr) {
		t.Errorf("Run() error = %v, want %v", err, wantErr)
	}
}

func TestIndexerCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sink := &mockIndexSink{}
	ix, err := NewIndexer(testStore(t), testGrid(), sink, &output.NoOpMetrics{}, testLogger(),
		IndexerConfig{BatchSize: 1, ThreadCount: 1})
	if err != nil {
		t.Fatalf("NewIndexer() error = %v", err)
	}

	if _, err := ix.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
}
