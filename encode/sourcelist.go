package encode

import (
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/skyflux-astro/mwacal"
	"gopkg.in/yaml.v3"
)

const radiansToDeg = 180.0 / math.Pi
const radiansToArcsec = 180.0 * 3600.0 / math.Pi

type yamlFluxEntry struct {
	FreqHz float64 `yaml:"freq"`
	I      float64 `yaml:"i"`
	Q      float64 `yaml:"q,omitempty"`
	U      float64 `yaml:"u,omitempty"`
	V      float64 `yaml:"v,omitempty"`
}

type yamlComponentOut struct {
	RA   float64 `yaml:"ra"`
	Dec  float64 `yaml:"dec"`
	Comp struct {
		Point    *struct{}     `yaml:"point,omitempty"`
		Gaussian *yamlGaussian `yaml:"gaussian,omitempty"`
		Shapelet *yamlShapelet `yaml:"shapelet,omitempty"`
	} `yaml:"comp_type"`
	Flux struct {
		PowerLaw       *yamlPowerLaw       `yaml:"power_law,omitempty"`
		CurvedPowerLaw *yamlCurvedPowerLaw `yaml:"curved_power_law,omitempty"`
		List           []yamlFluxEntry     `yaml:"list,omitempty"`
	} `yaml:"flux_type"`
}

type yamlGaussian struct {
	MajArcsec float64 `yaml:"maj"`
	MinArcsec float64 `yaml:"min"`
	PaDeg     float64 `yaml:"pa"`
}

type yamlShapelet struct {
	MajArcsec float64             `yaml:"maj"`
	MinArcsec float64             `yaml:"min"`
	PaDeg     float64             `yaml:"pa"`
	Coeffs    []yamlShapeletCoeff `yaml:"coeffs"`
}

type yamlShapeletCoeff struct {
	N1    int     `yaml:"n1"`
	N2    int     `yaml:"n2"`
	Value float64 `yaml:"value"`
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

// WriteSourceList serialises sl as a YAML source-list document, the format
// decode.DecodeSourceList reads back.
func WriteSourceList(w io.Writer, sl *mwacal.SourceList) error {
	names := sl.Names()
	sort.Strings(names)

	doc := make(map[string][]yamlComponentOut, len(names))
	for _, name := range names {
		src, _ := sl.Get(name)
		comps := make([]yamlComponentOut, len(src.Components))
		for i, c := range src.Components {
			out, err := encodeComponent(c)
			if err != nil {
				return fmt.Errorf("encode: source %q component %d: %w", name, i, err)
			}
			comps[i] = out
		}
		doc[name] = comps
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(doc)
}

func encodeComponent(c mwacal.Component) (yamlComponentOut, error) {
	var out yamlComponentOut
	out.RA = c.RaDec.RaRadians * radiansToDeg
	out.Dec = c.RaDec.DecRadians * radiansToDeg

	switch c.Morphology.Kind {
	case mwacal.MorphologyPoint:
		out.Comp.Point = &struct{}{}
	case mwacal.MorphologyGaussian:
		out.Comp.Gaussian = &yamlGaussian{
			MajArcsec: c.Morphology.Gaussian.MajAxisRadians * radiansToArcsec,
			MinArcsec: c.Morphology.Gaussian.MinAxisRadians * radiansToArcsec,
			PaDeg:     c.Morphology.Gaussian.PaRadians * radiansToDeg,
		}
	case mwacal.MorphologyShapelet:
		coeffs := make([]yamlShapeletCoeff, len(c.Morphology.Coeffs))
		for i, cc := range c.Morphology.Coeffs {
			coeffs[i] = yamlShapeletCoeff{N1: cc.N1, N2: cc.N2, Value: cc.Value}
		}
		out.Comp.Shapelet = &yamlShapelet{
			MajArcsec: c.Morphology.Gaussian.MajAxisRadians * radiansToArcsec,
			MinArcsec: c.Morphology.Gaussian.MinAxisRadians * radiansToArcsec,
			PaDeg:     c.Morphology.Gaussian.PaRadians * radiansToDeg,
			Coeffs:    coeffs,
		}
	default:
		return out, fmt.Errorf("unrecognised morphology kind %d", c.Morphology.Kind)
	}

	switch c.Spectrum.Kind {
	case mwacal.SpectrumPowerLaw:
		out.Flux.PowerLaw = &yamlPowerLaw{SI: c.Spectrum.SpectralIndex, Ref: toYamlFD(c.Spectrum.Reference)}
	case mwacal.SpectrumCurvedPowerLaw:
		out.Flux.CurvedPowerLaw = &yamlCurvedPowerLaw{SI: c.Spectrum.SpectralIndex, Q: c.Spectrum.Curvature, Ref: toYamlFD(c.Spectrum.Reference)}
	case mwacal.SpectrumList:
		entries := make([]yamlFluxEntry, len(c.Spectrum.Entries))
		for i, e := range c.Spectrum.Entries {
			entries[i] = toYamlFD(e)
		}
		out.Flux.List = entries
	default:
		return out, fmt.Errorf("unrecognised spectrum kind %d", c.Spectrum.Kind)
	}

	return out, nil
}

func toYamlFD(fd mwacal.FluxDensity) yamlFluxEntry {
	return yamlFluxEntry{FreqHz: fd.FreqHz, I: fd.I, Q: fd.Q, U: fd.U, V: fd.V}
}
