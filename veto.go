package mwacal

import (
	"fmt"
	"math"
	"sort"
)

// VetoParams controls source-list vetoing.
type VetoParams struct {
	NumSources              int
	SourceDistCutoffRadians float64
	VetoThresholdJy         float64
	ObservingFreqsHz        []float64
}

// vetoCandidate is a source paired with its minimum-over-frequency apparent
// brightness, used only during the ranking pass.
type vetoCandidate struct {
	source     Source
	apparentJy float64
}

// TileZeroBeamSampler is the narrow slice of beam.Provider vetoing needs:
// the Jones response of tile 0 at a given pointing and frequency (vetoing
// samples tile 0 only). Defined locally so this file has no import
// cycle on the beam package; beam.TileZeroSampler adapts a concrete
// beam.Provider to this interface.
type TileZeroBeamSampler interface {
	SampleTileZero(azel AzEl, freqHz float64) (Jones[float64], error)
}

// AzEl is duplicated from the beam package's type to avoid the import
// cycle; both are the same (azimuth, zenith angle) pair.
type AzEl struct {
	AzimuthRadians     float64
	ZenithAngleRadians float64
}

type unityBeamSampler struct{}

func (unityBeamSampler) SampleTileZero(AzEl, float64) (Jones[float64], error) {
	return IdentityJones(), nil
}

// UnityBeamSampler returns a TileZeroBeamSampler with no attenuation, for
// callers vetoing without a beam model.
func UnityBeamSampler() TileZeroBeamSampler { return unityBeamSampler{} }

// VetoSourceList applies the vetoing rules to sl relative to
// phaseCentre and latitudeRadians at the given LST, returning the
// surviving sources ordered by descending minimum apparent brightness.
//
// A source is vetoed if any component is below the horizon, any component
// is beyond SourceDistCutoffRadians from phaseCentre, or its minimum
// apparent brightness over ObservingFreqsHz is below VetoThresholdJy.
func VetoSourceList(sl *SourceList, phaseCentre RaDec, latitudeRadians, lstRadians float64, sampler TileZeroBeamSampler, params VetoParams) ([]Source, error) {
	if len(params.ObservingFreqsHz) == 0 {
		return nil, fmt.Errorf("%w: veto requires at least one observing frequency", ErrInvalidCalibrationInput)
	}

	candidates := make([]vetoCandidate, 0, sl.Len())
	for _, src := range sl.Sources() {
		belowHorizon, err := anyComponentBelowHorizon(src, latitudeRadians, lstRadians)
		if err != nil {
			return nil, err
		}
		if belowHorizon {
			continue
		}

		if params.SourceDistCutoffRadians > 0 && anyComponentBeyondCutoff(src, phaseCentre, params.SourceDistCutoffRadians) {
			continue
		}

		minApparent, err := minApparentBrightness(src, params.ObservingFreqsHz, sampler, latitudeRadians, lstRadians)
		if err != nil {
			return nil, err
		}
		if minApparent < params.VetoThresholdJy {
			continue
		}

		candidates = append(candidates, vetoCandidate{source: src, apparentJy: minApparent})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].apparentJy > candidates[j].apparentJy
	})

	if params.NumSources > 0 && len(candidates) < params.NumSources {
		return nil, &TooFewSourcesError{Requested: params.NumSources, Available: len(candidates)}
	}
	if params.NumSources > 0 && len(candidates) > params.NumSources {
		candidates = candidates[:params.NumSources]
	}

	out := make([]Source, len(candidates))
	for i, c := range candidates {
		out[i] = c.source
	}
	return out, nil
}

func anyComponentBelowHorizon(src Source, latitudeRadians, lstRadians float64) (bool, error) {
	for _, c := range src.Components {
		ha := HourAngle(c.RaDec.RaRadians, lstRadians)
		_, el := HADecToAzEl(ha, c.RaDec.DecRadians, latitudeRadians)
		if el <= 0 {
			return true, nil
		}
	}
	return false, nil
}

func anyComponentBeyondCutoff(src Source, phaseCentre RaDec, cutoffRadians float64) bool {
	for _, c := range src.Components {
		if AngularSeparationRadians(c.RaDec, phaseCentre) > cutoffRadians {
			return true
		}
	}
	return false
}

// minApparentBrightness computes, for each observing frequency, the
// beam-attenuated apparent brightness of src (summed over components) and
// returns the minimum over frequencies.
func minApparentBrightness(src Source, freqsHz []float64, sampler TileZeroBeamSampler, latitudeRadians, lstRadians float64) (float64, error) {
	minBrightness := math.Inf(1)
	for _, freqHz := range freqsHz {
		var total float64
		for _, c := range src.Components {
			fd := c.Spectrum.EstimateAtFreq(freqHz)
			f := StokesToJones(fd.I, 0, 0, fd.V)

			ha := HourAngle(c.RaDec.RaRadians, lstRadians)
			az, el := HADecToAzEl(ha, c.RaDec.DecRadians, latitudeRadians)
			azel := AzEl{AzimuthRadians: az, ZenithAngleRadians: math.Pi/2 - el}

			j, err := sampler.SampleTileZero(azel, freqHz)
			if err != nil {
				return 0, fmt.Errorf("%w: beam query for veto failed: %v", ErrBeamQueryFailed, err)
			}

			m := j.Mul(f).Mul(j.H())
			total += real(m.J00) + real(m.J11)
		}
		if math.IsNaN(total) {
			return 0, fmt.Errorf("%w: apparent brightness is NaN for source %q", ErrNumericalFailure, src.Name)
		}
		if total < minBrightness {
			minBrightness = total
		}
	}
	return minBrightness, nil
}
