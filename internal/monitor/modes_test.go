package monitor

import (
	"reflect"
	"testing"
)

func TestBuildModes_DedupAndSort(t *testing.T) {
	entries := []ModeEntry{
		{ID: "a", Size: Size{1280, 720}, RefreshHz: 60.0},
		{ID: "b", Size: Size{1920, 1080}, RefreshHz: 59.94},
		{ID: "c", Size: Size{1920, 1080}, RefreshHz: 60.0},
		{ID: "d", Size: Size{1920, 1080}, RefreshHz: 143.856},
		{ID: "e", Size: Size{2560, 1440}, RefreshHz: 165.0},
		{ID: "f", Size: Size{1920, 1200}, RefreshHz: 60.0},
	}

	modes := BuildModes(entries)

	wantSizes := []Size{{2560, 1440}, {1920, 1200}, {1920, 1080}, {1280, 720}}
	if got := Sizes(modes); !reflect.DeepEqual(got, wantSizes) {
		t.Fatalf("sizes = %v, want %v", got, wantSizes)
	}

	fhd := modes[2]
	wantRates := []RefreshRate{{Rate: 144, ModeID: "d"}, {Rate: 60, ModeID: "b"}}
	if !reflect.DeepEqual(fhd.RefreshRates, wantRates) {
		t.Fatalf("1920x1080 rates = %+v, want %+v", fhd.RefreshRates, wantRates)
	}
	if fhd.ID != "b" {
		t.Fatalf("bucket id = %q, want first mode id %q", fhd.ID, "b")
	}
}

func TestBuildModes_KeepsSupportedScales(t *testing.T) {
	modes := BuildModes([]ModeEntry{
		{ID: "x", Size: Size{3840, 2160}, RefreshHz: 60, SupportedScales: []float64{1, 1.5, 2}},
	})
	if len(modes) != 1 || !reflect.DeepEqual(modes[0].SupportedScales, []float64{1, 1.5, 2}) {
		t.Fatalf("unexpected modes: %+v", modes)
	}
}

func TestBuildModes_Empty(t *testing.T) {
	if modes := BuildModes(nil); modes != nil {
		t.Fatalf("expected nil, got %+v", modes)
	}
}
