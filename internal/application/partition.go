// Package application contains the application services: region loading,
// spatial indexing and time-series extraction.
package application

import "github.com/jobrunner/tessera/internal/domain"

// Span is a half-open range [Start, End) of grid rows or time steps.
type Span struct {
	Start int
	End   int
}

// Len returns the number of units in the span.
func (s Span) Len() int {
	return s.End - s.Start
}

// Partition divides [0, total) into contiguous spans of batchSize units,
// the last possibly shorter. A batch size of zero or less is an input
// error; a batch size of total or more yields a single span.
func Partition(total, batchSize int) ([]Span, error) {
	if batchSize <= 0 {
		return nil, domain.ErrBatchSize
	}
	if total <= 0 {
		return nil, nil
	}

	spans := make([]Span, 0, (total+batchSize-1)/batchSize)
	for start := 0; start < total; start += batchSize {
		end := start + batchSize
		if end > total {
			end = total
		}
		spans = append(spans, Span{Start: start, End: end})
	}
	return spans, nil
}
