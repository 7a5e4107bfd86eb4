// Package metrics provides Prometheus metrics collection.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector implements the MetricsCollector port using Prometheus.
type Collector struct {
	cells             *prometheus.CounterVec
	records           prometheus.Counter
	skippedRows       prometheus.Counter
	fillValues        prometheus.Counter
	batches           *prometheus.CounterVec
	batchDuration     *prometheus.HistogramVec
	storageOperations *prometheus.CounterVec
	storageDuration   *prometheus.HistogramVec
}

// NewCollector creates a new Prometheus metrics collector.
func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = "tessera"
	}

	return &Collector{
		cells: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cells_total",
				Help:      "Total number of indexed grid cells",
			},
			[]string{"status"},
		),

		records: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "records_total",
				Help:      "Total number of extracted time-series records",
			},
		),

		skippedRows: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "skipped_rows_total",
				Help:      "Total number of index rows skipped as out of raster bounds",
			},
		),

		fillValues: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fill_values_total",
				Help:      "Total number of extracted samples carrying the fill value",
			},
		),

		batches: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "batches_total",
				Help:      "Total number of completed batches",
			},
			[]string{"phase"},
		),

		batchDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "batch_duration_seconds",
				Help:      "Batch duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"phase"},
		),

		storageOperations: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "storage_operations_total",
				Help:      "Total number of storage operations",
			},
			[]string{"operation", "status"},
		),

		storageDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "storage_duration_seconds",
				Help:      "Storage operation duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// AddCells adds to the indexed-cell counter for one assignment outcome.
func (c *Collector) AddCells(assigned bool, n int) {
	status := "assigned"
	if !assigned {
		status = "unassigned"
	}
	c.cells.WithLabelValues(status).Add(float64(n))
}

// AddRecords adds to the extracted-record counter.
func (c *Collector) AddRecords(n int) {
	c.records.Add(float64(n))
}

// AddSkippedRows adds to the skipped-row counter.
func (c *Collector) AddSkippedRows(n int) {
	c.skippedRows.Add(float64(n))
}

// AddFillValues adds to the fill-valued-sample counter.
func (c *Collector) AddFillValues(n int) {
	c.fillValues.Add(float64(n))
}

// IncBatches increments the completed-batch counter for a phase.
func (c *Collector) IncBatches(phase string) {
	c.batches.WithLabelValues(phase).Inc()
}

// ObserveBatchDuration records how long one batch took.
func (c *Collector) ObserveBatchDuration(phase string, duration time.Duration) {
	c.batchDuration.WithLabelValues(phase).Observe(duration.Seconds())
}

// IncStorageOperations increments storage operation counter.
func (c *Collector) IncStorageOperations(operation string, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	c.storageOperations.WithLabelValues(operation, status).Inc()
}

// ObserveStorageDuration records storage operation duration.
func (c *Collector) ObserveStorageDuration(operation string, duration time.Duration) {
	c.storageDuration.WithLabelValues(operation).Observe(duration.Seconds())
}
