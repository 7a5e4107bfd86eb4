package application

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/ctessum/sparse"
	"golang.org/x/sync/errgroup"

	"github.com/jobrunner/tessera/internal/domain"
	"github.com/jobrunner/tessera/internal/ports/output"
)

// ExtractorConfig holds the tuning parameters of the dump phase. Batching
// is over the time dimension: reading a full slice once and scattering it
// to all regions is far cheaper than re-reading the source per cell.
type ExtractorConfig struct {
	BatchSize   int // time steps per batch
	ThreadCount int // fixed worker pool size
	Prefetch    int // slice buffers read ahead of the scatter loop
	TimeStart   int // first time index, inclusive
	TimeEnd     int // last time index, exclusive; 0 means the full range
}

// DumpSummary reports the outcome of a dump run. A non-zero skipped-row
// count is still a successful run; it is reported, never silently dropped.
type DumpSummary struct {
	Records     int64         `yaml:"records"`
	SkippedRows int64         `yaml:"skipped_rows"`
	FillValues  int64         `yaml:"fill_values"`
	Batches     int64         `yaml:"batches"`
	Regions     int           `yaml:"regions"`
	TimeSteps   int           `yaml:"time_steps"`
	Duration    time.Duration `yaml:"duration"`
}

// Extractor pulls per-region time series out of a raster using a
// previously built cell-to-region index.
type Extractor struct {
	raster    output.RasterSource
	sink      output.DumpSink
	metrics   output.MetricsCollector
	logger    *slog.Logger
	cfg       ExtractorConfig
	regionIDs []string
	cells     map[string][]domain.Cell
	skipped   int64
}

// NewExtractor validates the raster metadata and the requested time range,
// and checks every index row against the raster bounds once up front.
// Rows referencing cells outside the raster (an index built against a
// different grid) are dropped here and counted; they are skipped exactly
// once regardless of how many time steps the run covers.
func NewExtractor(
	cells *domain.RegionCells,
	raster output.RasterSource,
	sink output.DumpSink,
	metrics output.MetricsCollector,
	logger *slog.Logger,
	cfg ExtractorConfig,
) (*Extractor, error) {
	meta := raster.Meta()
	grid := meta.Grid()
	if err := grid.Validate(); err != nil {
		return nil, err
	}

	if cfg.TimeEnd == 0 {
		cfg.TimeEnd = meta.TimeSteps
	}
	if cfg.TimeStart < 0 || cfg.TimeStart >= meta.TimeSteps {
		return nil, &domain.TimeRangeError{Index: cfg.TimeStart, Steps: meta.TimeSteps}
	}
	if cfg.TimeEnd > meta.TimeSteps {
		return nil, &domain.TimeRangeError{Index: cfg.TimeEnd, Steps: meta.TimeSteps}
	}
	if cfg.TimeEnd <= cfg.TimeStart {
		return nil, &domain.ConfigError{Field: "time_range", Message: "end must be after start"}
	}
	if cfg.BatchSize <= 0 {
		return nil, domain.ErrBatchSize
	}
	if cfg.ThreadCount <= 0 {
		return nil, domain.ErrThreadCount
	}
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = 1
	}

	e := &Extractor{
		raster:  raster,
		sink:    sink,
		metrics: metrics,
		logger:  logger,
		cfg:     cfg,
		cells:   make(map[string][]domain.Cell),
	}

	for _, id := range cells.RegionIDs() {
		var valid []domain.Cell
		for _, c := range cells.Cells(id) {
			if !grid.InBounds(c.Row, c.Col) {
				e.skipped++
				logger.Warn("skipping index row outside raster bounds",
					"region", id, "row", c.Row, "col", c.Col)
				continue
			}
			valid = append(valid, c)
		}
		if len(valid) > 0 {
			e.regionIDs = append(e.regionIDs, id)
			e.cells[id] = valid
		}
	}
	metrics.AddSkippedRows(int(e.skipped))

	return e, nil
}

// Run partitions the time range into batches and processes them on a
// fixed worker pool. Each batch reads every time slice in its range once
// and scatters the slice's values to all regions whose cells fall in it.
func (e *Extractor) Run(ctx context.Context) (*DumpSummary, error) {
	start := time.Now()
	meta := e.raster.Meta()

	spans, err := Partition(e.cfg.TimeEnd-e.cfg.TimeStart, e.cfg.BatchSize)
	if err != nil {
		return nil, err
	}
	for i := range spans {
		spans[i].Start += e.cfg.TimeStart
		spans[i].End += e.cfg.TimeStart
	}

	e.logger.Info("extracting time series",
		"variable", meta.Variable,
		"regions", len(e.regionIDs),
		"time_start", e.cfg.TimeStart,
		"time_end", e.cfg.TimeEnd,
		"batches", len(spans),
		"threads", e.cfg.ThreadCount,
	)

	work := make(chan Span, len(spans))
	for _, s := range spans {
		work <- s
	}
	close(work)

	var records, fills, batches atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < e.cfg.ThreadCount; i++ {
		g.Go(func() error {
			for span := range work {
				select {
				case <-gctx.Done():
					return gctx.Err()
				default:
				}

				r, f, err := e.runBatch(gctx, span)
				if err != nil {
					return err
				}
				records.Add(int64(r))
				fills.Add(int64(f))
				batches.Add(1)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	summary := &DumpSummary{
		Records:     records.Load(),
		SkippedRows: e.skipped,
		FillValues:  fills.Load(),
		Batches:     batches.Load(),
		Regions:     len(e.regionIDs),
		TimeSteps:   e.cfg.TimeEnd - e.cfg.TimeStart,
		Duration:    time.Since(start),
	}

	e.logger.Info("dump complete",
		"records", summary.Records,
		"skipped_rows", summary.SkippedRows,
		"fill_values", summary.FillValues,
		"duration", summary.Duration,
	)

	return summary, nil
}

// timeSlice carries one decoded raster slice from the reader stage to the
// scatter stage.
type timeSlice struct {
	index int
	data  *sparse.DenseArray
}

// runBatch overlaps raster I/O with scatter work: a reader goroutine
// fills a bounded queue of upcoming slices while the current slice's
// values are scattered to region records. Queue depth caps the number of
// slices held in memory at once.
func (e *Extractor) runBatch(ctx context.Context, span Span) (records, fills int, err error) {
	batchStart := time.Now()
	meta := e.raster.Meta()

	slices := make(chan timeSlice, e.cfg.Prefetch)

	g, bctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(slices)
		for t := span.Start; t < span.End; t++ {
			data, err := e.raster.ReadSlice(t)
			if err != nil {
				return fmt.Errorf("reading time slice %d: %w", t, err)
			}
			select {
			case slices <- timeSlice{index: t, data: data}:
			case <-bctx.Done():
				return bctx.Err()
			}
		}
		return nil
	})

	buf := make([]domain.TimeSeriesRecord, 0, span.Len()*e.cellCount())
	g.Go(func() error {
		for s := range slices {
			for _, id := range e.regionIDs {
				for _, c := range e.cells[id] {
					v := s.data.Get(c.Row, c.Col)
					if meta.HasFill && v == meta.FillValue {
						fills++
					}
					buf = append(buf, domain.TimeSeriesRecord{
						RegionID:  id,
						Row:       c.Row,
						Col:       c.Col,
						TimeIndex: s.index,
						Value:     v,
					})
				}
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return 0, 0, err
	}

	if err := e.sink.WriteBatch(buf); err != nil {
		return 0, 0, fmt.Errorf("writing dump batch [%d, %d): %w", span.Start, span.End, err)
	}

	e.metrics.AddRecords(len(buf))
	e.metrics.AddFillValues(fills)
	e.metrics.IncBatches(output.PhaseDump)
	e.metrics.ObserveBatchDuration(output.PhaseDump, time.Since(batchStart))

	e.logger.Debug("dump batch flushed",
		"time_start", span.Start,
		"time_end", span.End,
		"records", len(buf),
	)

	return len(buf), fills, nil
}

// cellCount returns the number of in-bounds cells across all regions.
func (e *Extractor) cellCount() int {
	n := 0
	for _, cs := range e.cells {
		n += len(cs)
	}
	return n
}
