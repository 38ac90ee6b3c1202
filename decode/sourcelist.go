// Package decode parses the text source-list format, expressed on disk the
// way hyperdrive's own source lists are: one YAML document per file,
// sources keyed by name, components an ordered list. Each source is
// decoded independently.
package decode

import (
	"fmt"
	"io"
	"math"

	"github.com/skyflux-astro/mwacal"
	"gopkg.in/yaml.v3"
)

// yamlComponent mirrors one source-list component on disk.
type yamlComponent struct {
	RA   float64 `yaml:"ra"`
	Dec  float64 `yaml:"dec"`
	Comp struct {
		Point    *struct{}       `yaml:"point,omitempty"`
		Gaussian *yamlGaussian   `yaml:"gaussian,omitempty"`
		Shapelet *yamlShapelet   `yaml:"shapelet,omitempty"`
	} `yaml:"comp_type"`
	Flux struct {
		PowerLaw      *yamlPowerLaw      `yaml:"power_law,omitempty"`
		CurvedPowerLaw *yamlCurvedPowerLaw `yaml:"curved_power_law,omitempty"`
		List          []yamlFluxEntry    `yaml:"list,omitempty"`
	} `yaml:"flux_type"`
}

type yamlGaussian struct {
	MajArcsec float64 `yaml:"maj"`
	MinArcsec float64 `yaml:"min"`
	PaDeg     float64 `yaml:"pa"`
}

type yamlShapelet struct {
	MajArcsec float64 `yaml:"maj"`
	MinArcsec float64 `yaml:"min"`
	PaDeg     float64 `yaml:"pa"`
	Coeffs    []yamlShapeletCoeff `yaml:"coeffs"`
}

type yamlShapeletCoeff struct {
	N1    int     `yaml:"n1"`
	N2    int     `yaml:"n2"`
	Value float64 `yaml:"value"`
}

type yamlFluxEntry struct {
	FreqHz float64 `yaml:"freq"`
	I      float64 `yaml:"i"`
	Q      float64 `yaml:"q"`
	U      float64 `yaml:"u"`
	V      float64 `yaml:"v"`
}

type yamlPowerLaw struct {
	SI  float64       `yaml:"si"`
	Ref yamlFluxEntry `yaml:"fd"`
}

type yamlCurvedPowerLaw struct {
	SI  float64       `yaml:"si"`
	Q   float64       `yaml:"q"`
	Ref yamlFluxEntry `yaml:"fd"`
}

const arcsecToRadians = math.Pi / (180.0 * 3600.0)
const degToRadians = math.Pi / 180.0

// DecodeSourceList parses a YAML source-list document from r into a
// mwacal.SourceList, applying the source-list invariants via
// SourceList.Insert as each source is decoded.
func DecodeSourceList(r io.Reader) (*mwacal.SourceList, error) {
	raw := make(map[string][]yamlComponent)
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: source list yaml parse failed: %v", mwacal.ErrInputMalformed, err)
	}

	sl := mwacal.NewSourceList()
	for name, comps := range raw {
		src, err := decodeSource(name, comps)
		if err != nil {
			return nil, err
		}
		if err := sl.Insert(src); err != nil {
			return nil, err
		}
	}
	return sl, nil
}

func decodeSource(name string, comps []yamlComponent) (mwacal.Source, error) {
	if len(comps) == 0 {
		return mwacal.Source{}, fmt.Errorf("%w: source %q has no components", mwacal.ErrInputMalformed, name)
	}

	out := mwacal.Source{Name: name, Components: make([]mwacal.Component, len(comps))}
	for i, yc := range comps {
		morph, err := decodeMorphology(name, i, yc)
		if err != nil {
			return mwacal.Source{}, err
		}
		spec, err := decodeSpectrum(name, i, yc)
		if err != nil {
			return mwacal.Source{}, err
		}
		out.Components[i] = mwacal.Component{
			RaDec: mwacal.RaDec{
				RaRadians:  yc.RA * degToRadians,
				DecRadians: yc.Dec * degToRadians,
			},
			Morphology: morph,
			Spectrum:   spec,
		}
	}
	return out, nil
}

func decodeMorphology(name string, idx int, yc yamlComponent) (mwacal.Morphology, error) {
	switch {
	case yc.Comp.Point != nil:
		return mwacal.Morphology{Kind: mwacal.MorphologyPoint}, nil
	case yc.Comp.Gaussian != nil:
		g := yc.Comp.Gaussian
		return mwacal.Morphology{
			Kind: mwacal.MorphologyGaussian,
			Gaussian: mwacal.GaussianParams{
				MajAxisRadians: g.MajArcsec * arcsecToRadians,
				MinAxisRadians: g.MinArcsec * arcsecToRadians,
				PaRadians:      g.PaDeg * degToRadians,
			},
		}, nil
	case yc.Comp.Shapelet != nil:
		s := yc.Comp.Shapelet
		if len(s.Coeffs) == 0 {
			return mwacal.Morphology{}, fmt.Errorf("%w: source %q component %d is a shapelet with no coefficients", mwacal.ErrInputMalformed, name, idx)
		}
		coeffs := make([]mwacal.ShapeletCoeff, len(s.Coeffs))
		for k, c := range s.Coeffs {
			coeffs[k] = mwacal.ShapeletCoeff{N1: c.N1, N2: c.N2, Value: c.Value}
		}
		return mwacal.Morphology{
			Kind: mwacal.MorphologyShapelet,
			Gaussian: mwacal.GaussianParams{
				MajAxisRadians: s.MajArcsec * arcsecToRadians,
				MinAxisRadians: s.MinArcsec * arcsecToRadians,
				PaRadians:      s.PaDeg * degToRadians,
			},
			Coeffs: coeffs,
		}, nil
	default:
		return mwacal.Morphology{}, fmt.Errorf("%w: source %q component %d has no recognised comp_type", mwacal.ErrInputMalformed, name, idx)
	}
}

func decodeSpectrum(name string, idx int, yc yamlComponent) (mwacal.Spectrum, error) {
	switch {
	case yc.Flux.PowerLaw != nil:
		pl := yc.Flux.PowerLaw
		return mwacal.Spectrum{
			Kind:         mwacal.SpectrumPowerLaw,
			SpectralIndex: pl.SI,
			Reference:    toFluxDensity(pl.Ref),
		}, nil
	case yc.Flux.CurvedPowerLaw != nil:
		cpl := yc.Flux.CurvedPowerLaw
		return mwacal.Spectrum{
			Kind:          mwacal.SpectrumCurvedPowerLaw,
			SpectralIndex: cpl.SI,
			Curvature:     cpl.Q,
			Reference:     toFluxDensity(cpl.Ref),
		}, nil
	case len(yc.Flux.List) > 0:
		entries := make([]mwacal.FluxDensity, len(yc.Flux.List))
		for i, e := range yc.Flux.List {
			entries[i] = toFluxDensity(e)
		}
		return mwacal.Spectrum{Kind: mwacal.SpectrumList, Entries: entries}, nil
	default:
		return mwacal.Spectrum{}, fmt.Errorf("%w: source %q component %d has no recognised flux_type", mwacal.ErrInputMalformed, name, idx)
	}
}

func toFluxDensity(e yamlFluxEntry) mwacal.FluxDensity {
	return mwacal.FluxDensity{FreqHz: e.FreqHz, I: e.I, Q: e.Q, U: e.U, V: e.V}
}
