// Package calibrate implements the MitchCal antenna-based gain solver
// (Mitchell et al. 2008 eqn. 11) and its failed-chanblock recovery pass.
package calibrate

import (
	"math"
	"sync/atomic"

	"github.com/alitto/pond"
	"github.com/skyflux-astro/mwacal"
)

// Tuning holds the solver's stopping criteria.
type Tuning struct {
	MaxIterations int
	StopThreshold float64
	MinThreshold  float64
}

// DefaultTuning matches hyperdrive's conventional defaults.
var DefaultTuning = Tuning{MaxIterations: 50, StopThreshold: 1e-8, MinThreshold: 1e-4}

// Sample is one (data, model) visibility pair for a baseline within a
// chanblock.
type Sample struct {
	AntI, AntJ int
	Data       mwacal.Jones[float32]
	Model      mwacal.Jones[float32]
}

// ChanblockResult is the outcome of solving one chanblock.
type ChanblockResult struct {
	ChanblockIndex      int
	DenseChanblockIndex int
	NumIterations       int
	Converged           bool
	MaxPrecision        float64
	NumFailed           int
	DiJones             []mwacal.Jones[float64]
}

// minSurvivingAntennas is the solver's survivability floor: a chanblock
// with fewer unfailed antennas than this can't usefully continue.
const minSurvivingAntennas = 5

// SolveChanblock runs the MitchCal inner loop for one chanblock. samples
// carries every (t, b) sample already folded by weight (zero-weight
// samples excluded by the caller's weight-fold pass). initial is the
// starting di_jones vector (identity on the first timeblock, inherited
// from the coalesced solve otherwise).
func SolveChanblock(samples []Sample, numAntennas int, initial []mwacal.Jones[float64], tuning Tuning, chanblockIndex, denseChanblockIndex int) ChanblockResult {
	diJones := make([]mwacal.Jones[float64], numAntennas)
	copy(diJones, initial)
	oldJones := make([]mwacal.Jones[float64], numAntennas)
	copy(oldJones, diJones)

	failed := make([]bool, numAntennas)
	precisions := make([][4]float64, numAntennas)

	var iter int
	for iter = 0; iter < tuning.MaxIterations; iter++ {
		top := make([]mwacal.Jones[float64], numAntennas)
		bot := make([]mwacal.Jones[float64], numAntennas)

		for _, s := range samples {
			if failed[s.AntI] || failed[s.AntJ] {
				continue
			}
			d := s.Data.ToFloat64()
			m := s.Model.ToFloat64()
			gi := diJones[s.AntI]
			gj := diJones[s.AntJ]

			zi := gj.Mul(m.H())
			top[s.AntI] = top[s.AntI].Add(d.Mul(zi))
			bot[s.AntI] = bot[s.AntI].Add(zi.H().Mul(zi))

			zj := gi.Mul(m)
			top[s.AntJ] = top[s.AntJ].Add(d.H().Mul(zj))
			bot[s.AntJ] = bot[s.AntJ].Add(zj.H().Mul(zj))
		}

		newJones := make([]mwacal.Jones[float64], numAntennas)
		for a := 0; a < numAntennas; a++ {
			if failed[a] {
				continue
			}
			n := top[a].DivElementwise(bot[a])
			if n.IsNaN() {
				failed[a] = true
				diJones[a] = mwacal.ZeroJones()
				newJones[a] = mwacal.ZeroJones()
				continue
			}
			newJones[a] = n
		}

		if iter == 0 {
			allEqual := true
			allZero := true
			for a := 0; a < numAntennas; a++ {
				if top[a].MaxAbsDiffSq(bot[a]) > tuning.StopThreshold {
					allEqual = false
				}
				if !jonesAllElementsZero(top[a]) || !jonesAllElementsZero(bot[a]) {
					allZero = false
				}
			}
			if allEqual {
				if allZero {
					for a := range failed {
						failed[a] = true
					}
				}
				break
			}
		}

		if countUnfailed(failed) < minSurvivingAntennas {
			break
		}

		if iter%2 == 1 {
			belowStop := true
			for a := 0; a < numAntennas; a++ {
				if failed[a] {
					continue
				}
				diffs := newJones[a].AbsDiffSq4(oldJones[a])
				precisions[a] = diffs
				diJones[a] = diJones[a].Add(newJones[a]).Scale(0.5)
				for _, p := range diffs {
					if p >= tuning.StopThreshold {
						belowStop = false
					}
				}
			}
			if belowStop {
				break
			}
		} else {
			for a := 0; a < numAntennas; a++ {
				if !failed[a] {
					diJones[a] = newJones[a]
				}
			}
		}

		copy(oldJones, diJones)
	}

	numFailed := 0
	for a := range failed {
		if failed[a] {
			diJones[a] = mwacal.NaNJonesT[float64]()
			numFailed++
		}
	}

	maxPrecision := 0.0
	for a := 0; a < numAntennas; a++ {
		if failed[a] {
			continue
		}
		for _, p := range precisions[a] {
			if p > maxPrecision {
				maxPrecision = p
			}
		}
	}

	unfailedCount := numAntennas - numFailed
	converged := unfailedCount > 4 && maxPrecision <= tuning.MinThreshold
	if !converged {
		for a := range diJones {
			diJones[a] = mwacal.NaNJonesT[float64]()
		}
	}

	// iter stops at tuning.MaxIterations itself when the loop ran to
	// exhaustion without a break (the for-loop's final increment still
	// fires), so iter+1 would over-count that case by one.
	numIterations := iter + 1
	if iter >= tuning.MaxIterations {
		numIterations = tuning.MaxIterations
	}

	return ChanblockResult{
		ChanblockIndex:      chanblockIndex,
		DenseChanblockIndex: denseChanblockIndex,
		NumIterations:       numIterations,
		Converged:           converged,
		MaxPrecision:        maxPrecision,
		NumFailed:           numFailed,
		DiJones:             diJones,
	}
}

// jonesAllElementsZero reports whether every element of j is exactly zero.
// A determinant test would miss a rank-deficient but non-zero matrix, which
// can legitimately arise from a partially-flagged accumulation.
func jonesAllElementsZero(j mwacal.Jones[float64]) bool {
	return j.J00 == 0 && j.J01 == 0 && j.J10 == 0 && j.J11 == 0
}

func countUnfailed(failed []bool) int {
	n := 0
	for _, f := range failed {
		if !f {
			n++
		}
	}
	return n
}

// SolveTimeblockParallel solves every chanblock of one timeblock in
// parallel over a bounded worker pool, then applies the failed-chanblock
// recovery pass below.
func SolveTimeblockParallel(chanblockSamples [][]Sample, numAntennas int, initial [][]mwacal.Jones[float64], tuning Tuning, workers int) []ChanblockResult {
	numChanblocks := len(chanblockSamples)
	results := make([]ChanblockResult, numChanblocks)

	pool := pond.New(workers, 0, pond.MinWorkers(workers))
	for i := 0; i < numChanblocks; i++ {
		i := i
		pool.Submit(func() {
			results[i] = SolveChanblock(chanblockSamples[i], numAntennas, initial[i], tuning, i, i)
		})
	}
	pool.StopAndWait()

	recoverFailedChanblocks(results, chanblockSamples, numAntennas, tuning, workers)
	return results
}

// recoverFailedChanblocks interpolates initial guesses for failed
// chanblocks from their nearest converged neighbours and re-solves,
// repeating while progress is made.
func recoverFailedChanblocks(results []ChanblockResult, chanblockSamples [][]Sample, numAntennas int, tuning Tuning, workers int) {
	n := len(results)
	for {
		anyFailed := false
		anyConverged := false
		for _, r := range results {
			if !r.Converged {
				anyFailed = true
			} else {
				anyConverged = true
			}
		}
		if !anyFailed || !anyConverged {
			return
		}

		toRetry := make([]int, 0)
		l := -1
		for i := 0; i <= n; i++ {
			converged := i < n && results[i].Converged
			if converged {
				if l >= 0 && i-l > 1 {
					fillInterpolated(results, l, i, numAntennas, &toRetry)
				} else if l < 0 {
					// leading run of failed chanblocks before any converged
					// bracket: broadcast from this converged index leftward.
					for j := 0; j < i; j++ {
						results[j].DiJones = append([]mwacal.Jones[float64]{}, results[i].DiJones...)
						toRetry = append(toRetry, j)
					}
				}
				l = i
			}
		}
		if l >= 0 && l < n-1 {
			for j := l + 1; j < n; j++ {
				results[j].DiJones = append([]mwacal.Jones[float64]{}, results[l].DiJones...)
				toRetry = append(toRetry, j)
			}
		}

		if len(toRetry) == 0 {
			return
		}

		pool := pond.New(workers, 0, pond.MinWorkers(workers))
		var progressed atomic.Bool
		for _, idx := range toRetry {
			idx := idx
			pool.Submit(func() {
				r := SolveChanblock(chanblockSamples[idx], numAntennas, results[idx].DiJones, tuning, idx, idx)
				// Only re-solves from an interpolated seed clamp a blown-up
				// precision to NaN; the primary solve reports its precision
				// untouched. Unclear whether the asymmetry is intentional,
				// but it is kept.
				if math.Abs(r.MaxPrecision) > 1e100 {
					r.MaxPrecision = math.NaN()
				}
				if r.Converged {
					progressed.Store(true)
				}
				results[idx] = r
			})
		}
		pool.StopAndWait()

		if !progressed.Load() {
			return
		}
	}
}

// fillInterpolated linearly interpolates di_jones for failed chanblocks
// strictly between converged brackets l and r.
func fillInterpolated(results []ChanblockResult, l, r, numAntennas int, toRetry *[]int) {
	for i := l + 1; i < r; i++ {
		interp := make([]mwacal.Jones[float64], numAntennas)
		for a := 0; a < numAntennas; a++ {
			gl := results[l].DiJones[a]
			gr := results[r].DiJones[a]
			wl := float64(r - i)
			wr := float64(i - l)
			interp[a] = gl.Scale(wl).Add(gr.Scale(wr)).Scale(1 / float64(r-l))
		}
		results[i].DiJones = interp
		*toRetry = append(*toRetry, i)
	}
}
