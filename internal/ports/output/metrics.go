package output

import "time"

// MetricsCollector defines the secondary port for metrics collection.
type MetricsCollector interface {
	// AddCells adds to the indexed-cell counter for one assignment outcome.
	AddCells(assigned bool, n int)

	// AddRecords adds to the extracted-record counter.
	AddRecords(n int)

	// AddSkippedRows adds to the skipped-row counter.
	AddSkippedRows(n int)

	// AddFillValues adds to the fill-valued-sample counter.
	AddFillValues(n int)

	// IncBatches increments the completed-batch counter for a phase.
	IncBatches(phase string)

	// ObserveBatchDuration records how long one batch took.
	ObserveBatchDuration(phase string, duration time.Duration)

	// IncStorageOperations increments storage operation counter.
	IncStorageOperations(operation string, success bool)

	// ObserveStorageDuration records storage operation duration.
	ObserveStorageDuration(operation string, duration time.Duration)
}

// Metric phase labels.
const (
	PhaseIndex = "index"
	PhaseDump  = "dump"
)

// NoOpMetrics is a no-op implementation of MetricsCollector.
type NoOpMetrics struct{}

// AddCells implements MetricsCollector.
func (n *NoOpMetrics) AddCells(_ bool, _ int) {}

// AddRecords implements MetricsCollector.
func (n *NoOpMetrics) AddRecords(_ int) {}

// AddSkippedRows implements MetricsCollector.
func (n *NoOpMetrics) AddSkippedRows(_ int) {}

// AddFillValues implements MetricsCollector.
func (n *NoOpMetrics) AddFillValues(_ int) {}

// IncBatches implements MetricsCollector.
func (n *NoOpMetrics) IncBatches(_ string) {}

// ObserveBatchDuration implements MetricsCollector.
func (n *NoOpMetrics) ObserveBatchDuration(_ string, _ time.Duration) {}

// IncStorageOperations implements MetricsCollector.
func (n *NoOpMetrics) IncStorageOperations(_ string, _ bool) {}

// ObserveStorageDuration implements MetricsCollector.
func (n *NoOpMetrics) ObserveStorageDuration(_ string, _ time.Duration) {}
