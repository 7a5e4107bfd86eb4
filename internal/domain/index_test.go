package domain

import (
	"reflect"
	"testing"
)

func TestIndexRowAssigned(t *testing.T) {
	if (IndexRow{Row: 1, Col: 2, RegionID: "a"}).Assigned() != true {
		t.Error("expected row with region id to be assigned")
	}
	if (IndexRow{Row: 1, Col: 2, RegionID: Unassigned}).Assigned() != false {
		t.Error("expected row without region id to be unassigned")
	}
}

func TestRegionCellsGrouping(t *testing.T) {
	rc := NewRegionCells()
	rows := []IndexRow{
		{Row: 0, Col: 0, RegionID: "b"},
		{Row: 0, Col: 1, RegionID: "a"},
		{Row: 1, Col: 0, RegionID: Unassigned},
		{Row: 1, Col: 1, RegionID: "b"},
	}
	for _, r := range rows {
		rc.Add(r)
	}

	if rc.Regions() != 2 {
		t.Errorf("Regions() = %d, want 2", rc.Regions())
	}
	if rc.CellCount() != 3 {
		t.Errorf("CellCount() = %d, want 3", rc.CellCount())
	}

	// Ids come back sorted regardless of insertion order.
	if got := rc.RegionIDs(); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("RegionIDs() = %v, want [a b]", got)
	}

	if got := rc.Cells("b"); !reflect.DeepEqual(got, []Cell{{Row: 0, Col: 0}, {Row: 1, Col: 1}}) {
		t.Errorf("Cells(b) = %v", got)
	}
	if got := rc.Cells("missing"); got != nil {
		t.Errorf("Cells(missing) = %v, want nil", got)
	}
}
