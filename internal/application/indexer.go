package application

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jobrunner/tessera/internal/domain"
	"github.com/jobrunner/tessera/internal/ports/output"
)

// IndexerConfig holds the tuning parameters of the index phase. Batch size
// trades peak memory (rows buffered before a flush) against serialization
// overhead at the sink; thread count trades CPU parallelism against
// per-worker buffer memory.
type IndexerConfig struct {
	BatchSize   int // grid rows per batch
	ThreadCount int // fixed worker pool size
}

// IndexSummary reports the outcome of an index run.
type IndexSummary struct {
	Cells          int64         `yaml:"cells"`
	Assigned       int64         `yaml:"assigned"`
	Unassigned     int64         `yaml:"unassigned"`
	Batches        int64         `yaml:"batches"`
	RegionsLoaded  int           `yaml:"regions_loaded"`
	RegionsSkipped int           `yaml:"regions_skipped"`
	Duration       time.Duration `yaml:"duration"`
}

// Indexer assigns every grid cell to the region containing its center and
// streams the resulting rows to an index sink.
type Indexer struct {
	store   *RegionStore
	grid    domain.Grid
	sink    output.IndexSink
	metrics output.MetricsCollector
	logger  *slog.Logger
	cfg     IndexerConfig
}

// NewIndexer validates the grid and configuration up front; both are fatal
// before any worker starts.
func NewIndexer(
	store *RegionStore,
	grid domain.Grid,
	sink output.IndexSink,
	metrics output.MetricsCollector,
	logger *slog.Logger,
	cfg IndexerConfig,
) (*Indexer, error) {
	if err := grid.Validate(); err != nil {
		return nil, err
	}
	if cfg.BatchSize <= 0 {
		return nil, domain.ErrBatchSize
	}
	if cfg.ThreadCount <= 0 {
		return nil, domain.ErrThreadCount
	}

	return &Indexer{
		store:   store,
		grid:    grid,
		sink:    sink,
		metrics: metrics,
		logger:  logger,
		cfg:     cfg,
	}, nil
}

// Run partitions the grid's rows into batches and processes them on a
// fixed worker pool. Every cell of the grid appears in exactly one batch,
// so the output contains exactly rows×cols rows; ordering between batches
// is not defined. A sink failure cancels scheduling of further batches
// while in-flight batches finish their flush.
func (ix *Indexer) Run(ctx context.Context) (*IndexSummary, error) {
	start := time.Now()

	spans, err := Partition(ix.grid.Rows, ix.cfg.BatchSize)
	if err != nil {
		return nil, err
	}

	ix.logger.Info("indexing grid",
		"rows", ix.grid.Rows,
		"cols", ix.grid.Cols,
		"regions", ix.store.Len(),
		"batches", len(spans),
		"threads", ix.cfg.ThreadCount,
	)

	work := make(chan Span, len(spans))
	for _, s := range spans {
		work <- s
	}
	close(work)

	var assigned, unassigned, batches atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < ix.cfg.ThreadCount; i++ {
		g.Go(func() error {
			for span := range work {
				// A cancelled sibling stops further scheduling; the
				// current batch has not started so nothing is half-written.
				select {
				case <-gctx.Done():
					return gctx.Err()
				default:
				}

				a, u, err := ix.runBatch(span)
				if err != nil {
					return err
				}
				assigned.Add(int64(a))
				unassigned.Add(int64(u))
				batches.Add(1)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	summary := &IndexSummary{
		Cells:      assigned.Load() + unassigned.Load(),
		Assigned:   assigned.Load(),
		Unassigned: unassigned.Load(),
		Batches:    batches.Load(),
		Duration:   time.Since(start),
	}

	ix.logger.Info("index complete",
		"cells", summary.Cells,
		"assigned", summary.Assigned,
		"unassigned", summary.Unassigned,
		"duration", summary.Duration,
	)

	return summary, nil
}

// runBatch resolves one span of grid rows into a worker-local buffer and
// hands the completed buffer to the sink. The sink call is the only
// serialization point, so contention is proportional to the number of
// batches, not the number of cells.
func (ix *Indexer) runBatch(span Span) (assigned, unassigned int, err error) {
	batchStart := time.Now()

	buf := make([]domain.IndexRow, 0, span.Len()*ix.grid.Cols)
	for row := span.Start; row < span.End; row++ {
		for col := 0; col < ix.grid.Cols; col++ {
			center := ix.grid.CellCenter(row, col)

			// A non-finite transform result marks the single cell
			// unassigned; it never aborts the batch.
			id := domain.Unassigned
			if center.IsFinite() {
				id, _ = ix.store.FindContaining(center)
			}

			if id == domain.Unassigned {
				unassigned++
			} else {
				assigned++
			}
			buf = append(buf, domain.IndexRow{Row: row, Col: col, RegionID: id})
		}
	}

	if err := ix.sink.WriteBatch(buf); err != nil {
		return 0, 0, fmt.Errorf("writing index batch [%d, %d): %w", span.Start, span.End, err)
	}

	ix.metrics.AddCells(true, assigned)
	ix.metrics.AddCells(false, unassigned)
	ix.metrics.IncBatches(output.PhaseIndex)
	ix.metrics.ObserveBatchDuration(output.PhaseIndex, time.Since(batchStart))

	ix.logger.Debug("index batch flushed",
		"row_start", span.Start,
		"row_end", span.End,
		"cells", len(buf),
	)

	return assigned, unassigned, nil
}
