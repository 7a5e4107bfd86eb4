// Package sink persists index rows and time-series records as CSV and
// reads persisted indexes back.
package sink

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"sync"

	"github.com/jobrunner/tessera/internal/domain"
)

// indexHeader is the first line of a persisted index.
var indexHeader = []string{"row", "col", "region_id"}

// dumpHeader is the first line of a dump output.
var dumpHeader = []string{"region_id", "row", "col", "time_index", "value"}

// IndexWriter streams index rows to one CSV writer. WriteBatch may be
// called from multiple goroutines; each batch is written contiguously.
type IndexWriter struct {
	mu  sync.Mutex
	w   *csv.Writer
	c   io.Closer
	buf *bufio.Writer
}

// NewIndexWriter writes the header and returns a ready writer. If w also
// implements io.Closer it is closed by Close.
func NewIndexWriter(w io.Writer) (*IndexWriter, error) {
	buf := bufio.NewWriter(w)
	cw := csv.NewWriter(buf)
	if err := cw.Write(indexHeader); err != nil {
		return nil, err
	}
	iw := &IndexWriter{w: cw, buf: buf}
	if c, ok := w.(io.Closer); ok {
		iw.c = c
	}
	return iw, nil
}

// WriteBatch appends one batch of rows. Unassigned cells are written with
// an empty region id.
func (w *IndexWriter) WriteBatch(rows []domain.IndexRow) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, r := range rows {
		record := []string{
			strconv.Itoa(r.Row),
			strconv.Itoa(r.Col),
			r.RegionID,
		}
		if err := w.w.Write(record); err != nil {
			return err
		}
	}
	w.w.Flush()
	return w.w.Error()
}

// Close flushes buffered output and closes the underlying writer if it is
// closable.
func (w *IndexWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.w.Flush()
	if err := w.w.Error(); err != nil {
		return err
	}
	if err := w.buf.Flush(); err != nil {
		return err
	}
	if w.c != nil {
		return w.c.Close()
	}
	return nil
}

// DumpWriter streams time-series records to one CSV writer. WriteBatch
// may be called from multiple goroutines; each batch is written
// contiguously.
type DumpWriter struct {
	mu  sync.Mutex
	w   *csv.Writer
	c   io.Closer
	buf *bufio.Writer
}

// NewDumpWriter writes the header and returns a ready writer. If w also
// implements io.Closer it is closed by Close.
func NewDumpWriter(w io.Writer) (*DumpWriter, error) {
	buf := bufio.NewWriter(w)
	cw := csv.NewWriter(buf)
	if err := cw.Write(dumpHeader); err != nil {
		return nil, err
	}
	dw := &DumpWriter{w: cw, buf: buf}
	if c, ok := w.(io.Closer); ok {
		dw.c = c
	}
	return dw, nil
}

// WriteBatch appends one batch of records.
func (w *DumpWriter) WriteBatch(records []domain.TimeSeriesRecord) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, r := range records {
		record := []string{
			r.RegionID,
			strconv.Itoa(r.Row),
			strconv.Itoa(r.Col),
			strconv.Itoa(r.TimeIndex),
			strconv.FormatFloat(r.Value, 'g', -1, 64),
		}
		if err := w.w.Write(record); err != nil {
			return err
		}
	}
	w.w.Flush()
	return w.w.Error()
}

// Close flushes buffered output and closes the underlying writer if it is
// closable.
func (w *DumpWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.w.Flush()
	if err := w.w.Error(); err != nil {
		return err
	}
	if err := w.buf.Flush(); err != nil {
		return err
	}
	if w.c != nil {
		return w.c.Close()
	}
	return nil
}

// ReadIndex parses a persisted index back into its per-region grouping.
// Malformed lines are skipped and counted rather than aborting the read;
// unassigned rows are dropped by the grouping itself.
func ReadIndex(r io.Reader) (*domain.RegionCells, int, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	cells := domain.NewRegionCells()
	skipped := 0
	line := 0

	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("reading index: %w", err)
		}
		line++

		// Tolerate a header line wherever it appears so concatenated
		// index files also load.
		if len(record) > 0 && record[0] == indexHeader[0] {
			continue
		}

		if len(record) != 3 {
			skipped++
			continue
		}
		row, err := strconv.Atoi(record[0])
		if err != nil {
			skipped++
			continue
		}
		col, err := strconv.Atoi(record[1])
		if err != nil {
			skipped++
			continue
		}
		if row < 0 || col < 0 {
			skipped++
			continue
		}

		cells.Add(domain.IndexRow{Row: row, Col: col, RegionID: record[2]})
	}

	return cells, skipped, nil
}
