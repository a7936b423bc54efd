package segment

import (
	"errors"
	"math"
	"reflect"
	"testing"
)

const tolerance = 1e-9

func TestPlan_CountMode(t *testing.T) {
	entries, err := Plan(600, Partition{Count: 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []Entry{
		{Index: 0, Start: 0, Duration: 120},
		{Index: 1, Start: 120, Duration: 120},
		{Index: 2, Start: 240, Duration: 120},
		{Index: 3, Start: 360, Duration: 120},
		{Index: 4, Start: 480, Duration: 120},
	}
	if !reflect.DeepEqual(entries, want) {
		t.Errorf("plan mismatch:\n got %+v\nwant %+v", entries, want)
	}
}

func TestPlan_IntervalMode(t *testing.T) {
	entries, err := Plan(125, Partition{Interval: 50})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []Entry{
		{Index: 0, Start: 0, Duration: 50},
		{Index: 1, Start: 50, Duration: 50},
		{Index: 2, Start: 100, Duration: 25},
	}
	if !reflect.DeepEqual(entries, want) {
		t.Errorf("plan mismatch:\n got %+v\nwant %+v", entries, want)
	}
}

func TestPlan_Coverage(t *testing.T) {
	cases := []struct {
		name      string
		total     float64
		partition Partition
		wantCount int
	}{
		{"count 2", 100, Partition{Count: 2}, 2},
		{"count 7 uneven", 100, Partition{Count: 7}, 7},
		{"count large", 3600.5, Partition{Count: 12}, 12},
		{"interval exact", 100, Partition{Interval: 25}, 4},
		{"interval overshoot", 100, Partition{Interval: 30}, 4},
		{"interval longer than total", 10, Partition{Interval: 60}, 1},
		{"interval fractional", 125.37, Partition{Interval: 50}, 3},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			entries, err := Plan(tc.total, tc.partition)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(entries) != tc.wantCount {
				t.Fatalf("expected %d entries, got %d", tc.wantCount, len(entries))
			}

			if entries[0].Start != 0 {
				t.Errorf("first entry starts at %g, want 0", entries[0].Start)
			}
			for i := 0; i < len(entries)-1; i++ {
				gap := entries[i+1].Start - (entries[i].Start + entries[i].Duration)
				if math.Abs(gap) > tolerance {
					t.Errorf("gap of %g between entries %d and %d", gap, i, i+1)
				}
			}
			last := entries[len(entries)-1]
			if math.Abs(last.Start+last.Duration-tc.total) > tolerance {
				t.Errorf("plan ends at %g, want %g", last.Start+last.Duration, tc.total)
			}
			for i, e := range entries {
				if e.Index != i {
					t.Errorf("entry %d carries index %d", i, e.Index)
				}
				if e.Duration <= 0 {
					t.Errorf("entry %d has non-positive duration %g", i, e.Duration)
				}
			}
		})
	}
}

func TestPlan_IntervalCeilCount(t *testing.T) {
	// 500 s at 60 s intervals: ceil(500/60) = 9
	entries, err := Plan(500, Partition{Interval: 60})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 9 {
		t.Fatalf("expected 9 entries, got %d", len(entries))
	}
	for i := 0; i < 8; i++ {
		if entries[i].Duration != 60 {
			t.Errorf("entry %d has duration %g, want 60", i, entries[i].Duration)
		}
	}
	if math.Abs(entries[8].Duration-20) > tolerance {
		t.Errorf("last duration = %g, want 20", entries[8].Duration)
	}
}

func TestPlan_Deterministic(t *testing.T) {
	first, err := Plan(733.211, Partition{Interval: 47.3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := Plan(733.211, Partition{Interval: 47.3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("identical inputs produced different plans")
	}
}

func TestPlan_InvalidPartition(t *testing.T) {
	cases := []struct {
		name string
		p    Partition
	}{
		{"neither", Partition{}},
		{"both", Partition{Count: 3, Interval: 10}},
		{"count one", Partition{Count: 1}},
		{"count negative", Partition{Count: -2}},
		{"interval negative", Partition{Interval: -5}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Plan(100, tc.p); !errors.Is(err, ErrInvalidPartition) {
				t.Errorf("expected ErrInvalidPartition, got %v", err)
			}
		})
	}
}

func TestPlan_DurationUnknown(t *testing.T) {
	for _, total := range []float64{0, -1} {
		if _, err := Plan(total, Partition{Count: 2}); !errors.Is(err, ErrDurationUnknown) {
			t.Errorf("total=%g: expected ErrDurationUnknown, got %v", total, err)
		}
	}
}

func TestPlan_PartitionCheckedBeforeDuration(t *testing.T) {
	// An invalid partition wins over an unknown duration.
	if _, err := Plan(0, Partition{}); !errors.Is(err, ErrInvalidPartition) {
		t.Errorf("expected ErrInvalidPartition, got %v", err)
	}
}
