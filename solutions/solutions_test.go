package solutions

import (
	"testing"

	"github.com/skyflux-astro/mwacal"
	"github.com/skyflux-astro/mwacal/calibrate"
)

func TestBuildCompleteCubeFlaggedPositionsAreNaN(t *testing.T) {
	// 2 dense tiles out of 3 total, 1 dense chanblock out of 2 total: tile 1
	// and chanblock 1 are flagged and must stay NaN everywhere.
	identity := mwacal.IdentityJones()
	timeblocks := []TimeblockSolution{{
		Chanblocks: []calibrate.ChanblockResult{{
			Converged: true,
			DiJones:   []mwacal.Jones[float64]{identity, identity},
		}},
	}}

	cube := BuildCompleteCube(timeblocks, 3, 2, []int{0, 2}, []int{0})

	if cube.NumTimeblocks != 1 || cube.TotalTiles != 3 || cube.TotalChanblocks != 2 {
		t.Fatalf("unexpected cube shape: %+v", cube)
	}
	if !cube.At(0, 1, 0).IsNaN() {
		t.Errorf("flagged tile 1 should be NaN at chanblock 0")
	}
	if !cube.At(0, 0, 1).IsNaN() {
		t.Errorf("flagged chanblock 1 should be NaN for every tile")
	}
	// Unflagged tile 0 -> full tile 0, unflagged tile 1 -> full tile 2.
	got := cube.At(0, 0, 0)
	if got.IsNaN() {
		t.Fatalf("expected a solved value at (timeblock=0, tile=0, chanblock=0), got NaN")
	}
	// Solver output is in the model->data sense; the cube stores the
	// inverse (data->model). Inverting an identity gain leaves it identity.
	if got.MaxAbsDiffSq(identity) > 1e-20 {
		t.Errorf("expected the inverse of an identity gain to still be identity, got %+v", got)
	}
}

func TestBuildCompleteCubeSingularGainBecomesNaN(t *testing.T) {
	singular := mwacal.Jones[float64]{J00: 1, J01: 2, J10: 2, J11: 4} // det = 0
	timeblocks := []TimeblockSolution{{
		Chanblocks: []calibrate.ChanblockResult{{DiJones: []mwacal.Jones[float64]{singular}}},
	}}

	cube := BuildCompleteCube(timeblocks, 1, 1, []int{0}, []int{0})
	if !cube.At(0, 0, 0).IsNaN() {
		t.Errorf("a singular gain should invert to NaN rather than propagate a bad result")
	}
}
