package domain

import (
	"errors"
	"strings"
	"testing"
)

func TestSpecificErrorsWrapSentinels(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
	}{
		{"ring too short", ErrRingTooShort, ErrInvalidInput},
		{"ring not closed", ErrRingNotClosed, ErrInvalidInput},
		{"batch size", ErrBatchSize, ErrInvalidInput},
		{"variable not found", ErrVariableNotFound, ErrNotFound},
		{"storage unavailable", ErrStorageUnavailable, ErrUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.sentinel) {
				t.Errorf("errors.Is(%v, %v) = false, want true", tt.err, tt.sentinel)
			}
		})
	}
}

func TestParseErrorUnwrap(t *testing.T) {
	inner := ErrRingNotClosed
	err := &ParseError{Source: "regions.shp", Record: 7, Err: inner}

	if !errors.Is(err, ErrInvalidInput) {
		t.Error("expected ParseError to unwrap to ErrInvalidInput")
	}
	if !strings.Contains(err.Error(), "regions.shp") {
		t.Errorf("Error() = %q, want source name included", err.Error())
	}
	if !strings.Contains(err.Error(), "7") {
		t.Errorf("Error() = %q, want record number included", err.Error())
	}
}

func TestDimensionErrorNamesFile(t *testing.T) {
	err := &DimensionError{Path: "tmax_2021.nc", Field: "cols", Want: "1386", Got: "700"}

	if !strings.Contains(err.Error(), "tmax_2021.nc") {
		t.Errorf("Error() = %q, want offending file named", err.Error())
	}
	if !errors.Is(err, ErrInvalidInput) {
		t.Error("expected DimensionError to unwrap to ErrInvalidInput")
	}
}

func TestTimeRangeError(t *testing.T) {
	err := &TimeRangeError{Index: 365, Steps: 365}

	if !strings.Contains(err.Error(), "365") {
		t.Errorf("Error() = %q, want index included", err.Error())
	}
	if !errors.Is(err, ErrInvalidInput) {
		t.Error("expected TimeRangeError to unwrap to ErrInvalidInput")
	}
}

func TestSourceError(t *testing.T) {
	inner := errors.New("no such file")
	err := &SourceError{Operation: "open", Path: "grid.nc", Err: inner}

	if !errors.Is(err, inner) {
		t.Error("expected SourceError to unwrap to inner error")
	}
	if !strings.Contains(err.Error(), "open") || !strings.Contains(err.Error(), "grid.nc") {
		t.Errorf("Error() = %q, want operation and path included", err.Error())
	}
}
