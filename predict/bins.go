// Package predict implements the sky-model visibility predictor: the
// nine-bin structure-of-arrays setup and the per-timestep RIME kernel.
package predict

import (
	"fmt"
	"math"

	"github.com/skyflux-astro/mwacal"
)

// baseBin carries the fields every morphology shares: direction cosines
// already scaled by prepare_for_rime, and the original sky position kept
// for per-timestep Az/El conversion. Gaussian is populated for Gaussian and
// Shapelet bins only.
type baseBin struct {
	L, M, N  []float64
	RaDec    []mwacal.RaDec
	Gaussian []mwacal.GaussianParams
}

func (b *baseBin) len() int { return len(b.L) }

type powerLawData struct {
	RefJones      []mwacal.Jones[float64]
	SpectralIndex []float64
}

type curvedPowerLawData struct {
	RefJones      []mwacal.Jones[float64]
	SpectralIndex []float64
	Curvature     []float64
}

// listData holds a precomputed F x K instrumental flux table, flattened
// component-major: FluxTable[comp*NumChans+chan].
type listData struct {
	FluxTable []mwacal.Jones[float64]
	NumChans  int
}

// shapeletExtra holds the flattened shapelet coefficient arrays:
// CoeffN1/CoeffN2/CoeffVal concatenate every component's coefficients in
// order, CoeffLengths gives each component's count.
type shapeletExtra struct {
	CoeffN1      []int
	CoeffN2      []int
	CoeffVal     []float64
	CoeffLengths []int
}

type PointPowerLawBin struct {
	baseBin
	powerLawData
}
type PointCurvedPowerLawBin struct {
	baseBin
	curvedPowerLawData
}
type PointListBin struct {
	baseBin
	listData
}
type GaussianPowerLawBin struct {
	baseBin
	powerLawData
}
type GaussianCurvedPowerLawBin struct {
	baseBin
	curvedPowerLawData
}
type GaussianListBin struct {
	baseBin
	listData
}
type ShapeletPowerLawBin struct {
	baseBin
	powerLawData
	shapeletExtra
}
type ShapeletCurvedPowerLawBin struct {
	baseBin
	curvedPowerLawData
	shapeletExtra
}
type ShapeletListBin struct {
	baseBin
	listData
	shapeletExtra
}

// SourceModel is the predictor's setup-time output: the source list
// partitioned into the nine morphology x spectrum bins, plus the shared
// shapelet basis table.
type SourceModel struct {
	PointPowerLaw          PointPowerLawBin
	PointCurvedPowerLaw    PointCurvedPowerLawBin
	PointList              PointListBin
	GaussianPowerLaw       GaussianPowerLawBin
	GaussianCurvedPowerLaw GaussianCurvedPowerLawBin
	GaussianList           GaussianListBin
	ShapeletPowerLaw       ShapeletPowerLawBin
	ShapeletCurvedPowerLaw ShapeletCurvedPowerLawBin
	ShapeletList           ShapeletListBin

	Basis *ShapeletBasisTable
}

// FixedReferenceHz is the fixed reference frequency power-law and
// curved-power-law bins are normalised to; 150 MHz is the conventional MWA
// calibration reference.
const FixedReferenceHz = 150e6

// NewSourceModel partitions sources (already ordered dimmest-first, the
// predictor's required iteration order) into the nine bins, relative to
// phaseCentre and the unflagged fine-channel frequencies
// unflaggedChanFreqsHz (used to populate List bins' flux table).
func NewSourceModel(sources []mwacal.Source, phaseCentre mwacal.RaDec, unflaggedChanFreqsHz []float64) (*SourceModel, error) {
	sm := &SourceModel{Basis: NewShapeletBasisTable()}

	for _, src := range sources {
		for ci, comp := range src.Components {
			l, m, n := mwacal.ToLMN(comp.RaDec, phaseCentre)
			lp, mp, np := mwacal.PrepareForRIME(l, m, n)

			switch comp.Morphology.Kind {
			case mwacal.MorphologyPoint:
				if err := addSpectral(sm, comp, lp, mp, np, nil, unflaggedChanFreqsHz); err != nil {
					return nil, fmt.Errorf("predict: source %q component %d: %w", src.Name, ci, err)
				}
			case mwacal.MorphologyGaussian:
				if err := addSpectral(sm, comp, lp, mp, np, &comp.Morphology.Gaussian, unflaggedChanFreqsHz); err != nil {
					return nil, fmt.Errorf("predict: source %q component %d: %w", src.Name, ci, err)
				}
			case mwacal.MorphologyShapelet:
				if len(comp.Morphology.Coeffs) == 0 {
					return nil, fmt.Errorf("predict: source %q component %d: %w: shapelet has no coefficients", src.Name, ci, mwacal.ErrInvalidCalibrationInput)
				}
				if err := addShapelet(sm, comp, lp, mp, np, unflaggedChanFreqsHz); err != nil {
					return nil, fmt.Errorf("predict: source %q component %d: %w", src.Name, ci, err)
				}
			default:
				return nil, fmt.Errorf("predict: source %q component %d has unrecognised morphology", src.Name, ci)
			}
		}
	}

	return sm, nil
}

// addSpectral appends a point or Gaussian component into the power-law,
// curved-power-law, or list bin matching its spectrum.
func addSpectral(sm *SourceModel, comp mwacal.Component, l, m, n float64, gaussian *mwacal.GaussianParams, chanFreqsHz []float64) error {
	switch comp.Spectrum.Kind {
	case mwacal.SpectrumPowerLaw:
		refJones := comp.Spectrum.EstimateAtFreq(FixedReferenceHz).Jones()
		if gaussian == nil {
			appendPowerLaw(&sm.PointPowerLaw, l, m, n, comp.RaDec, refJones, comp.Spectrum.SpectralIndex)
		} else {
			appendGaussianPowerLaw(&sm.GaussianPowerLaw, l, m, n, comp.RaDec, *gaussian, refJones, comp.Spectrum.SpectralIndex)
		}
	case mwacal.SpectrumCurvedPowerLaw:
		fixedFD := comp.Spectrum.EstimateAtFreq(FixedReferenceHz)
		alphaPrime := mwacal.RederiveCurvedReference(comp.Spectrum.Reference.I, fixedFD.I, comp.Spectrum.Curvature, comp.Spectrum.Reference.FreqHz, FixedReferenceHz)
		if gaussian == nil {
			appendCurvedPowerLaw(&sm.PointCurvedPowerLaw, l, m, n, comp.RaDec, fixedFD.Jones(), alphaPrime, comp.Spectrum.Curvature)
		} else {
			appendGaussianCurvedPowerLaw(&sm.GaussianCurvedPowerLaw, l, m, n, comp.RaDec, *gaussian, fixedFD.Jones(), alphaPrime, comp.Spectrum.Curvature)
		}
	case mwacal.SpectrumList:
		table := buildFluxTable(comp.Spectrum, chanFreqsHz)
		if gaussian == nil {
			appendList(&sm.PointList, l, m, n, comp.RaDec, table, len(chanFreqsHz))
		} else {
			appendGaussianList(&sm.GaussianList, l, m, n, comp.RaDec, *gaussian, table, len(chanFreqsHz))
		}
	default:
		return fmt.Errorf("%w: unrecognised spectrum kind", mwacal.ErrInvalidCalibrationInput)
	}
	return nil
}

func addShapelet(sm *SourceModel, comp mwacal.Component, l, m, n float64, chanFreqsHz []float64) error {
	n1 := make([]int, len(comp.Morphology.Coeffs))
	n2 := make([]int, len(comp.Morphology.Coeffs))
	val := make([]float64, len(comp.Morphology.Coeffs))
	for i, c := range comp.Morphology.Coeffs {
		n1[i], n2[i], val[i] = c.N1, c.N2, c.Value
	}

	switch comp.Spectrum.Kind {
	case mwacal.SpectrumPowerLaw:
		refJones := comp.Spectrum.EstimateAtFreq(FixedReferenceHz).Jones()
		b := &sm.ShapeletPowerLaw
		b.L = append(b.L, l)
		b.M = append(b.M, m)
		b.N = append(b.N, n)
		b.RaDec = append(b.RaDec, comp.RaDec)
		b.Gaussian = append(b.Gaussian, comp.Morphology.Gaussian)
		b.RefJones = append(b.RefJones, refJones)
		b.SpectralIndex = append(b.SpectralIndex, comp.Spectrum.SpectralIndex)
		b.CoeffN1 = append(b.CoeffN1, n1...)
		b.CoeffN2 = append(b.CoeffN2, n2...)
		b.CoeffVal = append(b.CoeffVal, val...)
		b.CoeffLengths = append(b.CoeffLengths, len(n1))
	case mwacal.SpectrumCurvedPowerLaw:
		fixedFD := comp.Spectrum.EstimateAtFreq(FixedReferenceHz)
		alphaPrime := mwacal.RederiveCurvedReference(comp.Spectrum.Reference.I, fixedFD.I, comp.Spectrum.Curvature, comp.Spectrum.Reference.FreqHz, FixedReferenceHz)
		b := &sm.ShapeletCurvedPowerLaw
		b.L = append(b.L, l)
		b.M = append(b.M, m)
		b.N = append(b.N, n)
		b.RaDec = append(b.RaDec, comp.RaDec)
		b.Gaussian = append(b.Gaussian, comp.Morphology.Gaussian)
		b.RefJones = append(b.RefJones, fixedFD.Jones())
		b.SpectralIndex = append(b.SpectralIndex, alphaPrime)
		b.Curvature = append(b.Curvature, comp.Spectrum.Curvature)
		b.CoeffN1 = append(b.CoeffN1, n1...)
		b.CoeffN2 = append(b.CoeffN2, n2...)
		b.CoeffVal = append(b.CoeffVal, val...)
		b.CoeffLengths = append(b.CoeffLengths, len(n1))
	case mwacal.SpectrumList:
		table := buildFluxTable(comp.Spectrum, chanFreqsHz)
		b := &sm.ShapeletList
		b.L = append(b.L, l)
		b.M = append(b.M, m)
		b.N = append(b.N, n)
		b.RaDec = append(b.RaDec, comp.RaDec)
		b.Gaussian = append(b.Gaussian, comp.Morphology.Gaussian)
		b.FluxTable = append(b.FluxTable, table...)
		b.NumChans = len(chanFreqsHz)
		b.CoeffN1 = append(b.CoeffN1, n1...)
		b.CoeffN2 = append(b.CoeffN2, n2...)
		b.CoeffVal = append(b.CoeffVal, val...)
		b.CoeffLengths = append(b.CoeffLengths, len(n1))
	default:
		return fmt.Errorf("%w: unrecognised spectrum kind", mwacal.ErrInvalidCalibrationInput)
	}
	return nil
}

func buildFluxTable(spec mwacal.Spectrum, chanFreqsHz []float64) []mwacal.Jones[float64] {
	table := make([]mwacal.Jones[float64], len(chanFreqsHz))
	for i, f := range chanFreqsHz {
		table[i] = spec.EstimateAtFreq(f).Jones()
	}
	return table
}

func appendPowerLaw(b *PointPowerLawBin, l, m, n float64, rd mwacal.RaDec, refJones mwacal.Jones[float64], alpha float64) {
	b.L = append(b.L, l)
	b.M = append(b.M, m)
	b.N = append(b.N, n)
	b.RaDec = append(b.RaDec, rd)
	b.RefJones = append(b.RefJones, refJones)
	b.SpectralIndex = append(b.SpectralIndex, alpha)
}

func appendGaussianPowerLaw(b *GaussianPowerLawBin, l, m, n float64, rd mwacal.RaDec, g mwacal.GaussianParams, refJones mwacal.Jones[float64], alpha float64) {
	b.L = append(b.L, l)
	b.M = append(b.M, m)
	b.N = append(b.N, n)
	b.RaDec = append(b.RaDec, rd)
	b.Gaussian = append(b.Gaussian, g)
	b.RefJones = append(b.RefJones, refJones)
	b.SpectralIndex = append(b.SpectralIndex, alpha)
}

func appendCurvedPowerLaw(b *PointCurvedPowerLawBin, l, m, n float64, rd mwacal.RaDec, refJones mwacal.Jones[float64], alpha, curvature float64) {
	b.L = append(b.L, l)
	b.M = append(b.M, m)
	b.N = append(b.N, n)
	b.RaDec = append(b.RaDec, rd)
	b.RefJones = append(b.RefJones, refJones)
	b.SpectralIndex = append(b.SpectralIndex, alpha)
	b.Curvature = append(b.Curvature, curvature)
}

func appendGaussianCurvedPowerLaw(b *GaussianCurvedPowerLawBin, l, m, n float64, rd mwacal.RaDec, g mwacal.GaussianParams, refJones mwacal.Jones[float64], alpha, curvature float64) {
	b.L = append(b.L, l)
	b.M = append(b.M, m)
	b.N = append(b.N, n)
	b.RaDec = append(b.RaDec, rd)
	b.Gaussian = append(b.Gaussian, g)
	b.RefJones = append(b.RefJones, refJones)
	b.SpectralIndex = append(b.SpectralIndex, alpha)
	b.Curvature = append(b.Curvature, curvature)
}

func appendList(b *PointListBin, l, m, n float64, rd mwacal.RaDec, table []mwacal.Jones[float64], numChans int) {
	b.L = append(b.L, l)
	b.M = append(b.M, m)
	b.N = append(b.N, n)
	b.RaDec = append(b.RaDec, rd)
	b.FluxTable = append(b.FluxTable, table...)
	b.NumChans = numChans
}

func appendGaussianList(b *GaussianListBin, l, m, n float64, rd mwacal.RaDec, g mwacal.GaussianParams, table []mwacal.Jones[float64], numChans int) {
	b.L = append(b.L, l)
	b.M = append(b.M, m)
	b.N = append(b.N, n)
	b.RaDec = append(b.RaDec, rd)
	b.Gaussian = append(b.Gaussian, g)
	b.FluxTable = append(b.FluxTable, table...)
	b.NumChans = numChans
}

// gaussianEnvelope evaluates E_k for a Gaussian/shapelet-envelope component
// at dimensionless (u, v).
func gaussianEnvelope(g mwacal.GaussianParams, u, v float64) float64 {
	s, c := math.Sin(g.PaRadians), math.Cos(g.PaRadians)
	kx := u*s + v*c
	ky := u*c - v*s
	const piSqOver4ln2 = math.Pi * math.Pi / (4 * math.Ln2)
	return math.Exp(-piSqOver4ln2 * (g.MajAxisRadians*g.MajAxisRadians*kx*kx + g.MinAxisRadians*g.MinAxisRadians*ky*ky))
}
