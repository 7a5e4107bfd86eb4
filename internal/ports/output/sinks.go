package output

import "github.com/jobrunner/tessera/internal/domain"

// IndexSink defines the secondary port for persisting index rows. Workers
// call WriteBatch with a completed batch's buffer; implementations must
// serialize concurrent calls so that rows of one batch stay contiguous.
// No ordering is guaranteed between batches.
type IndexSink interface {
	// WriteBatch appends one batch of index rows.
	WriteBatch(rows []domain.IndexRow) error

	// Close flushes and releases the sink.
	Close() error
}

// DumpSink defines the secondary port for persisting extracted time-series
// records. Same serialization contract as IndexSink.
type DumpSink interface {
	// WriteBatch appends one batch of records.
	WriteBatch(records []domain.TimeSeriesRecord) error

	// Close flushes and releases the sink.
	Close() error
}
