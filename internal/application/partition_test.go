package application

import (
	"errors"
	"reflect"
	"testing"

	"github.com/jobrunner/tessera/internal/domain"
)

func TestPartition(t *testing.T) {
	tests := []struct {
		name      string
		total     int
		batchSize int
		want      []Span
	}{
		{
			name:  "even split",
			total: 6, batchSize: 2,
			want: []Span{{0, 2}, {2, 4}, {4, 6}},
		},
		{
			name:  "remainder in last span",
			total: 7, batchSize: 3,
			want: []Span{{0, 3}, {3, 6}, {6, 7}},
		},
		{
			name:  "batch size larger than total",
			total: 4, batchSize: 100,
			want: []Span{{0, 4}},
		},
		{
			name:  "batch size equal to total",
			total: 4, batchSize: 4,
			want: []Span{{0, 4}},
		},
		{
			name:  "single unit batches",
			total: 3, batchSize: 1,
			want: []Span{{0, 1}, {1, 2}, {2, 3}},
		},
		{
			name:  "zero total",
			total: 0, batchSize: 5,
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Partition(tt.total, tt.batchSize)
			if err != nil {
				t.Fatalf("Partition() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Partition(%d, %d) = %v, want %v", tt.total, tt.batchSize, got, tt.want)
			}
		})
	}
}

func TestPartitionCoversAllUnits(t *testing.T) {
	for _, batchSize := range []int{1, 2, 3, 7, 64, 1000} {
		spans, err := Partition(1000, batchSize)
		if err != nil {
			t.Fatalf("Partition(1000, %d) error = %v", batchSize, err)
		}

		covered := 0
		prev := 0
		for _, s := range spans {
			if s.Start != prev {
				t.Errorf("batchSize %d: span starts at %d, want %d", batchSize, s.Start, prev)
			}
			if s.Len() <= 0 || s.Len() > batchSize {
				t.Errorf("batchSize %d: span length %d out of range", batchSize, s.Len())
			}
			covered += s.Len()
			prev = s.End
		}
		if covered != 1000 {
			t.Errorf("batchSize %d: covered %d units, want 1000", batchSize, covered)
		}
	}
}

func TestPartitionZeroBatchSize(t *testing.T) {
	_, err := Partition(10, 0)
	if !errors.Is(err, domain.ErrBatchSize) {
		t.Errorf("Partition(10, 0) error = %v, want ErrBatchSize", err)
	}

	_, err = Partition(10, -3)
	if !errors.Is(err, domain.ErrBatchSize) {
		t.Errorf("Partition(10, -3) error = %v, want ErrBatchSize", err)
	}
}
