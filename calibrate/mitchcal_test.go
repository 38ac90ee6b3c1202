package calibrate

import (
	"testing"

	"github.com/skyflux-astro/mwacal"
)

// identitySamplesFromModel builds the full set of cross-correlation samples
// for numAntennas antennas where every baseline's data exactly equals
// model, so the solver should converge to identity gains.
func identitySamplesFromModel(model mwacal.Jones[float32], numAntennas int) []Sample {
	var samples []Sample
	for i := 0; i < numAntennas; i++ {
		for j := i + 1; j < numAntennas; j++ {
			samples = append(samples, Sample{AntI: i, AntJ: j, Data: model, Model: model})
		}
	}
	return samples
}

func identitySeed(numAntennas int) []mwacal.Jones[float64] {
	out := make([]mwacal.Jones[float64], numAntennas)
	for i := range out {
		out[i] = mwacal.IdentityJones()
	}
	return out
}

func TestSolveChanblockIdentityGainConverges(t *testing.T) {
	const numAntennas = 6
	model := mwacal.Jones[float32]{
		J00: complex(1.0, 0.1),
		J01: complex(0.2, -0.05),
		J10: complex(0.15, 0.02),
		J11: complex(0.9, -0.1),
	}
	samples := identitySamplesFromModel(model, numAntennas)

	result := SolveChanblock(samples, numAntennas, identitySeed(numAntennas), DefaultTuning, 0, 0)

	if !result.Converged {
		t.Fatalf("expected convergence on data == model with an identity seed, got %+v", result)
	}
	if result.NumFailed != 0 {
		t.Errorf("expected no antenna failures, got %d", result.NumFailed)
	}
	if result.NumIterations != 1 {
		t.Errorf("expected a same-as-seed solution to converge in 1 iteration, got %d", result.NumIterations)
	}
	id := mwacal.IdentityJones()
	for a, g := range result.DiJones {
		if g.MaxAbsDiffSq(id) > 1e-20 {
			t.Errorf("antenna %d: expected identity gain, got %+v", a, g)
		}
	}
}

func TestSolveChanblockTooFewAntennasNeverConverges(t *testing.T) {
	const numAntennas = 4 // below minSurvivingAntennas (5)
	model := mwacal.Jones[float32]{
		J00: complex(1.0, 0.1),
		J01: complex(0.2, -0.05),
		J10: complex(0.15, 0.02),
		J11: complex(0.9, -0.1),
	}
	samples := identitySamplesFromModel(model, numAntennas)

	result := SolveChanblock(samples, numAntennas, identitySeed(numAntennas), DefaultTuning, 0, 0)

	if result.Converged {
		t.Fatalf("expected no convergence with only %d antennas (floor is > 4 survivors)", numAntennas)
	}
	for a, g := range result.DiJones {
		if !g.IsNaN() {
			t.Errorf("antenna %d: expected NaN gain on non-convergence, got %+v", a, g)
		}
	}
}

func TestSolveChanblockNoSamplesFailsEveryAntenna(t *testing.T) {
	const numAntennas = 8
	result := SolveChanblock(nil, numAntennas, identitySeed(numAntennas), DefaultTuning, 0, 0)

	if result.Converged {
		t.Fatalf("expected no convergence with zero samples")
	}
	if result.NumFailed != numAntennas {
		t.Errorf("expected every antenna to fail with zero samples, got NumFailed=%d", result.NumFailed)
	}
}

func TestFillInterpolatedMidpointBetweenBrackets(t *testing.T) {
	const numAntennas = 2
	gl := mwacal.Jones[float64]{J00: 2, J11: 2}
	gr := mwacal.Jones[float64]{J00: 4, J11: 4}
	results := []ChanblockResult{
		{Converged: true, DiJones: []mwacal.Jones[float64]{gl, gl}},
		{},
		{Converged: true, DiJones: []mwacal.Jones[float64]{gr, gr}},
	}

	var toRetry []int
	fillInterpolated(results, 0, 2, numAntennas, &toRetry)

	if len(toRetry) != 1 || toRetry[0] != 1 {
		t.Fatalf("expected exactly chanblock 1 queued for retry, got %v", toRetry)
	}
	want := mwacal.Jones[float64]{J00: 3, J11: 3} // (G0 + G2) / 2
	for a := 0; a < numAntennas; a++ {
		if results[1].DiJones[a].MaxAbsDiffSq(want) > 1e-24 {
			t.Errorf("antenna %d: interpolated seed should be the bracket midpoint, got %+v", a, results[1].DiJones[a])
		}
	}
}

func TestSolveTimeblockParallelRecoversFailedChanblock(t *testing.T) {
	const numAntennas = 6
	good := mwacal.Jones[float32]{
		J00: complex(1.0, 0.1),
		J01: complex(0.2, -0.05),
		J10: complex(0.15, 0.02),
		J11: complex(0.9, -0.1),
	}
	goodSamples := identitySamplesFromModel(good, numAntennas)

	// Three chanblocks: converged neighbours either side of one with no
	// samples at all, which cannot converge on its own.
	chanblockSamples := [][]Sample{goodSamples, nil, goodSamples}
	initial := [][]mwacal.Jones[float64]{identitySeed(numAntennas), identitySeed(numAntennas), identitySeed(numAntennas)}

	results := SolveTimeblockParallel(chanblockSamples, numAntennas, initial, DefaultTuning, 2)

	if !results[0].Converged || !results[2].Converged {
		t.Fatalf("expected the bracketing chanblocks to converge: %+v", results)
	}
	if len(results[1].DiJones) != numAntennas {
		t.Fatalf("expected the recovered chanblock to carry a full antenna count, got %d", len(results[1].DiJones))
	}
}
