package main

import (
	"testing"

	"github.com/skyflux-astro/mwacal/flagfusion"
)

func TestGpuboxNumberFromFilename(t *testing.T) {
	cases := []struct {
		path   string
		want   int
		wantOK bool
	}{
		{"1061316296_01.mwaf", 1, true},
		{"/data/obs/1061316296_24.mwaf", 24, true},
		{"1061316296.metafits", 0, false},
		{"notes.txt", 0, false},
	}
	for _, c := range cases {
		got, ok := gpuboxNumberFromFilename(c.path)
		if ok != c.wantOK || (ok && got != c.want) {
			t.Errorf("gpuboxNumberFromFilename(%q) = (%d, %v), want (%d, %v)", c.path, got, ok, c.want, c.wantOK)
		}
	}
}

func TestShiftTimestepsDropsOutOfRangeAndLeavesLeadingUnflagged(t *testing.T) {
	// 3 timesteps, 1 baseline, 1 channel: timestep 0 unflagged, 1 and 2 flagged.
	c := &flagfusion.CoarseChannelFlags{
		NumTimesteps: 3,
		NumBaselines: 1,
		NumFineChans: 1,
		Flags:        []bool{false, true, true},
	}
	shifted := shiftTimesteps(c, 1)
	if shifted.At(0, 0, 0) {
		t.Errorf("timestep 0 should be unflagged after a forward shift with nothing to fill it from")
	}
	if shifted.At(1, 0, 0) {
		t.Errorf("timestep 1 should carry original timestep 0's unflagged value")
	}
	if !shifted.At(2, 0, 0) {
		t.Errorf("timestep 2 should carry original timestep 1's flagged value")
	}
}

func TestShiftTimestepsZeroDeltaReturnsSameValue(t *testing.T) {
	c := &flagfusion.CoarseChannelFlags{NumTimesteps: 1, NumBaselines: 1, NumFineChans: 1, Flags: []bool{true}}
	shifted := shiftTimesteps(c, 0)
	if shifted != c {
		t.Errorf("zero shift should return the same pointer unchanged")
	}
}
