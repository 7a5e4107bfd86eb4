package domain

import (
	"errors"
	"fmt"
)

// Base error types (sentinel errors).
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrUnsupported  = errors.New("unsupported operation")
	ErrInternal     = errors.New("internal error")
	ErrUnavailable  = errors.New("service unavailable")
)

// Specific errors.
var (
	ErrRingTooShort       = fmt.Errorf("ring has fewer than three distinct points: %w", ErrInvalidInput)
	ErrRingNotClosed      = fmt.Errorf("ring is not closed: %w", ErrInvalidInput)
	ErrRingNotFinite      = fmt.Errorf("ring contains non-finite coordinates: %w", ErrInvalidInput)
	ErrRegionEmpty        = fmt.Errorf("region has no polygons: %w", ErrInvalidInput)
	ErrBatchSize          = fmt.Errorf("batch size must be positive: %w", ErrInvalidInput)
	ErrThreadCount        = fmt.Errorf("thread count must be positive: %w", ErrInvalidInput)
	ErrVariableNotFound   = fmt.Errorf("raster variable: %w", ErrNotFound)
	ErrIDFieldMissing     = fmt.Errorf("id attribute missing or empty: %w", ErrInvalidInput)
	ErrLayerNotFound      = fmt.Errorf("vector layer: %w", ErrNotFound)
	ErrStorageUnavailable = fmt.Errorf("storage: %w", ErrUnavailable)
)

// GridError reports inconsistent raster grid metadata.
type GridError struct {
	Field   string      // Metadata field that failed validation
	Value   interface{} // The invalid value
	Message string      // Human-readable message
}

// Error implements the error interface.
func (e *GridError) Error() string {
	return fmt.Sprintf("grid metadata error for %s: %s (value: %v)",
		e.Field, e.Message, e.Value)
}

// Unwrap returns the underlying error type.
func (e *GridError) Unwrap() error {
	return ErrInvalidInput
}

// ParseError reports a malformed record in a vector or index source.
// Parse errors are row-level: the offending record is skipped and counted,
// never aborting the run.
type ParseError struct {
	Source string // Source path or identifier
	Record int    // Zero-based record number
	Err    error  // Underlying error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error in %s, record %d: %v", e.Source, e.Record, e.Err)
}

// Unwrap returns the underlying error.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// SourceError reports a failed operation against an input source. Source
// errors are fatal: the run aborts before or at the point of failure.
type SourceError struct {
	Operation string // Operation that failed (open, read, etc.)
	Path      string // Source path
	Err       error  // Underlying error
}

// Error implements the error interface.
func (e *SourceError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("source error during %s for %s: %v", e.Operation, e.Path, e.Err)
	}
	return fmt.Sprintf("source error during %s: %v", e.Operation, e.Err)
}

// Unwrap returns the underlying error.
func (e *SourceError) Unwrap() error {
	return e.Err
}

// DimensionError reports a raster whose dimensions disagree with the rest
// of a multi-file time range. It identifies the offending file.
type DimensionError struct {
	Path  string // File that disagrees
	Field string // Dimension that mismatches
	Want  string // Expected value
	Got   string // Observed value
}

// Error implements the error interface.
func (e *DimensionError) Error() string {
	return fmt.Sprintf("dimension mismatch in %s: %s is %s, want %s",
		e.Path, e.Field, e.Got, e.Want)
}

// Unwrap returns the underlying error type.
func (e *DimensionError) Unwrap() error {
	return ErrInvalidInput
}

// TimeRangeError reports a requested time index outside the raster's range.
type TimeRangeError struct {
	Index int // Requested time index
	Steps int // Available time steps
}

// Error implements the error interface.
func (e *TimeRangeError) Error() string {
	return fmt.Sprintf("time index %d out of range [0, %d)", e.Index, e.Steps)
}

// Unwrap returns the underlying error type.
func (e *TimeRangeError) Unwrap() error {
	return ErrInvalidInput
}

// ConfigError represents a configuration error.
type ConfigError struct {
	Field   string // Configuration field
	Message string // Error message
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error for %s: %s", e.Field, e.Message)
}

// Unwrap returns the underlying error type.
func (e *ConfigError) Unwrap() error {
	return ErrInvalidInput
}
