package predict

import (
	"fmt"
	"math"

	"github.com/skyflux-astro/mwacal"
	"github.com/skyflux-astro/mwacal/beam"
)

const speedOfLightMetresPerSecond = 299792458.0

// TimestepInputs is everything ExecuteTimestep needs for one timestamp.
// UVWMetres is the cross-correlation baseline UVW in metres at the field
// phase centre; AntennaXYZ and NumTiles are needed to re-phase
// baselines to each shapelet component's own position.
type TimestepInputs struct {
	LMSTRadians     float64
	LatitudeRadians float64
	FreqsHz         []float64
	UVWMetres       []mwacal.UVW
	AntennaXYZ      []mwacal.AntennaXYZ
	NumTiles        int
}

// ExecuteTimestep runs the RIME kernel for one timestamp, accumulating
// into visFB (shape F x B, row-major: index = freqIdx*numBaselines+b),
// which the caller must have zeroed. Bins are processed in a fixed order
// to keep summation order reproducible.
func ExecuteTimestep(sm *SourceModel, beamProvider beam.BatchProvider, in TimestepInputs, visFB []mwacal.Jones[float32]) error {
	numBaselines := mwacal.NumBaselines(in.NumTiles)
	acc := make([]mwacal.Jones[float64], len(in.FreqsHz)*numBaselines)

	type job struct {
		name string
		run  func() error
	}
	jobs := []job{
		{"point-power", func() error { return runSimple(&sm.PointPowerLaw.baseBin, powerLawFlux(sm.PointPowerLaw.powerLawData), beamProvider, in, acc, numBaselines, nil) }},
		{"point-curved", func() error { return runSimple(&sm.PointCurvedPowerLaw.baseBin, curvedPowerLawFlux(sm.PointCurvedPowerLaw.curvedPowerLawData), beamProvider, in, acc, numBaselines, nil) }},
		{"point-list", func() error { return runSimple(&sm.PointList.baseBin, listFlux(sm.PointList.listData), beamProvider, in, acc, numBaselines, nil) }},
		{"gaussian-power", func() error { return runSimple(&sm.GaussianPowerLaw.baseBin, powerLawFlux(sm.GaussianPowerLaw.powerLawData), beamProvider, in, acc, numBaselines, sm.GaussianPowerLaw.Gaussian) }},
		{"gaussian-curved", func() error { return runSimple(&sm.GaussianCurvedPowerLaw.baseBin, curvedPowerLawFlux(sm.GaussianCurvedPowerLaw.curvedPowerLawData), beamProvider, in, acc, numBaselines, sm.GaussianCurvedPowerLaw.Gaussian) }},
		{"gaussian-list", func() error { return runSimple(&sm.GaussianList.baseBin, listFlux(sm.GaussianList.listData), beamProvider, in, acc, numBaselines, sm.GaussianList.Gaussian) }},
		{"shapelet-power", func() error {
			return runShapelet(&sm.ShapeletPowerLaw.baseBin, powerLawFlux(sm.ShapeletPowerLaw.powerLawData), beamProvider, in, acc, numBaselines, sm.ShapeletPowerLaw.Gaussian, sm.ShapeletPowerLaw.shapeletExtra, sm.Basis)
		}},
		{"shapelet-curved", func() error {
			return runShapelet(&sm.ShapeletCurvedPowerLaw.baseBin, curvedPowerLawFlux(sm.ShapeletCurvedPowerLaw.curvedPowerLawData), beamProvider, in, acc, numBaselines, sm.ShapeletCurvedPowerLaw.Gaussian, sm.ShapeletCurvedPowerLaw.shapeletExtra, sm.Basis)
		}},
		{"shapelet-list", func() error {
			return runShapelet(&sm.ShapeletList.baseBin, listFlux(sm.ShapeletList.listData), beamProvider, in, acc, numBaselines, sm.ShapeletList.Gaussian, sm.ShapeletList.shapeletExtra, sm.Basis)
		}},
	}

	for _, j := range jobs {
		if err := j.run(); err != nil {
			return fmt.Errorf("predict: bin %s: %w", j.name, err)
		}
	}

	for i := range acc {
		visFB[i] = visFB[i].ToFloat64().Add(acc[i]).ToFloat32()
	}
	return nil
}

// fluxFunc returns component k's instrumental flux density Jones at chanIdx
// (frequency freqsHz[chanIdx]).
type fluxFunc func(k, chanIdx int, freqHz float64) mwacal.Jones[float64]

func powerLawFlux(d powerLawData) fluxFunc {
	return func(k, _ int, freqHz float64) mwacal.Jones[float64] {
		factor := math.Pow(freqHz/FixedReferenceHz, d.SpectralIndex[k])
		return d.RefJones[k].Scale(factor)
	}
}

func curvedPowerLawFlux(d curvedPowerLawData) fluxFunc {
	return func(k, _ int, freqHz float64) mwacal.Jones[float64] {
		lnRatio := math.Log(freqHz / FixedReferenceHz)
		factor := math.Pow(freqHz/FixedReferenceHz, d.SpectralIndex[k]) * math.Exp(d.Curvature[k]*lnRatio*lnRatio)
		return d.RefJones[k].Scale(factor)
	}
}

func listFlux(d listData) fluxFunc {
	return func(k, chanIdx int, _ float64) mwacal.Jones[float64] {
		return d.FluxTable[k*d.NumChans+chanIdx]
	}
}

// runSimple runs the point/Gaussian kernel path: one (az, el) per component,
// one batched beam query, phase + optional Gaussian envelope + flux.
func runSimple(b *baseBin, flux fluxFunc, beamProvider beam.BatchProvider, in TimestepInputs, acc []mwacal.Jones[float64], numBaselines int, gaussians []mwacal.GaussianParams) error {
	n := b.len()
	if n == 0 {
		return nil
	}

	queries := buildQueries(b.RaDec, in)
	responses, err := beamProvider.CalcJonesBatched(queries, in.LatitudeRadians)
	if err != nil {
		return fmt.Errorf("%w: %v", mwacal.ErrBeamQueryFailed, err)
	}

	numFreqs := len(in.FreqsHz)
	for fi, freqHz := range in.FreqsHz {
		lambda := speedOfLightMetresPerSecond / freqHz
		for bIdx, uvwM := range in.UVWMetres {
			u := uvwM.U / lambda
			v := uvwM.V / lambda
			w := uvwM.W / lambda

			ai, aj := mwacal.BaselineAntennas(in.NumTiles, bIdx)

			var sum mwacal.Jones[float64]
			for k := 0; k < n; k++ {
				phi := u*b.L[k] + v*b.M[k] + w*b.N[k]
				sinPhi, cosPhi := math.Sincos(phi)
				phase := complex(cosPhi, sinPhi)

				envelope := 1.0
				if gaussians != nil {
					envelope = gaussianEnvelope(gaussians[k], u, v)
				}

				fk := flux(k, fi, freqHz)
				j1 := responses[beamIndex(ai, fi, k, in.NumTiles, numFreqs, n)]
				j2 := responses[beamIndex(aj, fi, k, in.NumTiles, numFreqs, n)]

				contribution := j1.Mul(fk).Mul(j2.H()).ScaleComplex(phase).Scale(envelope)
				sum = sum.Add(contribution)
			}

			acc[fi*numBaselines+bIdx] = acc[fi*numBaselines+bIdx].Add(sum)
		}
	}
	return nil
}

// runShapelet is runSimple's shapelet variant: the Gaussian-style envelope
// is replaced by the shapelet coefficient sum, evaluated against a UV
// rephased to each component's own position.
func runShapelet(b *baseBin, flux fluxFunc, beamProvider beam.BatchProvider, in TimestepInputs, acc []mwacal.Jones[float64], numBaselines int, gaussians []mwacal.GaussianParams, extra shapeletExtra, basis *ShapeletBasisTable) error {
	n := b.len()
	if n == 0 {
		return nil
	}

	queries := buildQueries(b.RaDec, in)
	responses, err := beamProvider.CalcJonesBatched(queries, in.LatitudeRadians)
	if err != nil {
		return fmt.Errorf("%w: %v", mwacal.ErrBeamQueryFailed, err)
	}

	// own-frame UVW (metres) per component, independent of frequency.
	ownUVW := make([][]mwacal.UVW, n)
	coeffOffset := make([]int, n)
	offset := 0
	for k := 0; k < n; k++ {
		coeffOffset[k] = offset
		offset += extra.CoeffLengths[k]

		ha := mwacal.HourAngle(b.RaDec[k].RaRadians, in.LMSTRadians)
		ownUVW[k] = mwacal.CalcUVW(in.AntennaXYZ, ha, b.RaDec[k].DecRadians)
	}

	numFreqs := len(in.FreqsHz)
	for fi, freqHz := range in.FreqsHz {
		lambda := speedOfLightMetresPerSecond / freqHz
		for bIdx, uvwM := range in.UVWMetres {
			u := uvwM.U / lambda
			v := uvwM.V / lambda
			w := uvwM.W / lambda

			ai, aj := mwacal.BaselineAntennas(in.NumTiles, bIdx)

			var sum mwacal.Jones[float64]
			for k := 0; k < n; k++ {
				phi := u*b.L[k] + v*b.M[k] + w*b.N[k]
				sinPhi, cosPhi := math.Sincos(phi)
				phase := complex(cosPhi, sinPhi)

				us := ownUVW[k][bIdx].U / lambda
				vs := ownUVW[k][bIdx].V / lambda
				envelope := shapeletEnvelope(basis, gaussians[k], us, vs, extra, coeffOffset[k], extra.CoeffLengths[k])

				fk := flux(k, fi, freqHz)
				j1 := responses[beamIndex(ai, fi, k, in.NumTiles, numFreqs, n)]
				j2 := responses[beamIndex(aj, fi, k, in.NumTiles, numFreqs, n)]

				contribution := j1.Mul(fk).Mul(j2.H()).ScaleComplex(phase * envelope)
				sum = sum.Add(contribution)
			}

			acc[fi*numBaselines+bIdx] = acc[fi*numBaselines+bIdx].Add(sum)
		}
	}
	return nil
}

// shapeletEnvelope evaluates the complex shapelet envelope sum for
// component k's coefficients — the window
// extra.Coeff{N1,N2,Val}[offset:offset+length] — given dimensionless
// own-frame (us, vs).
func shapeletEnvelope(basis *ShapeletBasisTable, g mwacal.GaussianParams, us, vs float64, extra shapeletExtra, offset, length int) complex128 {
	s, c := math.Sin(g.PaRadians), math.Cos(g.PaRadians)
	x := us*s + vs*c
	y := us*c - vs*s

	cx := g.MajAxisRadians * math.Sqrt(math.Pi*math.Pi/(2*math.Ln2)) / SBFDX
	cy := -g.MinAxisRadians * math.Sqrt(math.Pi*math.Pi/(2*math.Ln2)) / SBFDX

	xPos := x*cx + SBFC
	yPos := y*cy + SBFC

	var sum complex128
	for i := offset; i < offset+length; i++ {
		n1, n2, fhat := extra.CoeffN1[i], extra.CoeffN2[i], extra.CoeffVal[i]
		phase := [4]complex128{1, complex(0, 1), -1, complex(0, -1)}[(n1+n2)%4]
		sum += phase * complex(fhat*basis.Lookup(n1, xPos)*basis.Lookup(n2, yPos), 0)
	}
	return sum
}

// buildQueries constructs the batched beam query for positions (the
// components of one morphology x spectrum bin), one query
// per (tile, component) at every frequency, in the fixed order the beam
// provider's BatchQuery.ComponentIndex records.
func buildQueries(positions []mwacal.RaDec, in TimestepInputs) []beam.BatchQuery {
	queries := make([]beam.BatchQuery, 0, in.NumTiles*len(in.FreqsHz)*len(positions))
	azels := make([]beam.AzEl, len(positions))
	for k, rd := range positions {
		ha := mwacal.HourAngle(rd.RaRadians, in.LMSTRadians)
		az, el := mwacal.HADecToAzEl(ha, rd.DecRadians, in.LatitudeRadians)
		azels[k] = beam.AzEl{AzimuthRadians: az, ZenithAngleRadians: math.Pi/2 - el}
	}

	for tile := 0; tile < in.NumTiles; tile++ {
		for fi, freqHz := range in.FreqsHz {
			for k, azel := range azels {
				queries = append(queries, beam.BatchQuery{
					AzEl:           azel,
					FreqHz:         freqHz,
					TileIndex:      tile,
					ComponentIndex: tile*len(in.FreqsHz)*len(positions) + fi*len(positions) + k,
				})
			}
		}
	}
	return queries
}

// beamIndex recovers the flat response index matching buildQueries' layout.
func beamIndex(tile, freqIdx, compIdx, _, numFreqs, numComps int) int {
	return tile*numFreqs*numComps + freqIdx*numComps + compIdx
}
