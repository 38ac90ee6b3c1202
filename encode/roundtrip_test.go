package encode_test

import (
	"bytes"
	"math"
	"testing"

	"github.com/skyflux-astro/mwacal"
	"github.com/skyflux-astro/mwacal/decode"
	"github.com/skyflux-astro/mwacal/encode"
)

func TestSourceListEncodeDecodeRoundTrip(t *testing.T) {
	sl := mwacal.NewSourceList()
	if err := sl.Insert(mwacal.Source{
		Name: "point-power-law",
		Components: []mwacal.Component{{
			RaDec:      mwacal.RaDec{RaRadians: 1.1, DecRadians: -0.4},
			Morphology: mwacal.Morphology{Kind: mwacal.MorphologyPoint},
			Spectrum: mwacal.Spectrum{
				Kind:          mwacal.SpectrumPowerLaw,
				SpectralIndex: -0.8,
				Reference:     mwacal.FluxDensity{FreqHz: 150e6, I: 12, Q: 1, U: 0.2, V: -0.1},
			},
		}},
	}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := sl.Insert(mwacal.Source{
		Name: "gaussian-shapelet-list",
		Components: []mwacal.Component{{
			RaDec:      mwacal.RaDec{RaRadians: 2.0, DecRadians: 0.3},
			Morphology: mwacal.Morphology{Kind: mwacal.MorphologyShapelet, Gaussian: mwacal.GaussianParams{MajAxisRadians: 0.001, MinAxisRadians: 0.0005, PaRadians: 0.2},
				Coeffs: []mwacal.ShapeletCoeff{{N1: 0, N2: 0, Value: 1.0}, {N1: 1, N2: 2, Value: 0.5}}},
			Spectrum: mwacal.Spectrum{Kind: mwacal.SpectrumList, Entries: []mwacal.FluxDensity{
				{FreqHz: 100e6, I: 5}, {FreqHz: 200e6, I: 3},
			}},
		}},
	}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	var buf bytes.Buffer
	if err := encode.WriteSourceList(&buf, sl); err != nil {
		t.Fatalf("WriteSourceList: %v", err)
	}

	decoded, err := decode.DecodeSourceList(&buf)
	if err != nil {
		t.Fatalf("DecodeSourceList: %v", err)
	}

	for _, name := range []string{"point-power-law", "gaussian-shapelet-list"} {
		want, ok := sl.Get(name)
		if !ok {
			t.Fatalf("original source list missing %q", name)
		}
		got, ok := decoded.Get(name)
		if !ok {
			t.Fatalf("decoded source list missing %q", name)
		}
		if len(got.Components) != len(want.Components) {
			t.Fatalf("%s: component count mismatch: got %d, want %d", name, len(got.Components), len(want.Components))
		}
		wc, gc := want.Components[0], got.Components[0]
		if math.Abs(gc.RaDec.RaRadians-wc.RaDec.RaRadians) > 1e-9 || math.Abs(gc.RaDec.DecRadians-wc.RaDec.DecRadians) > 1e-9 {
			t.Errorf("%s: position round trip mismatch: got %+v, want %+v", name, gc.RaDec, wc.RaDec)
		}
		if gc.Morphology.Kind != wc.Morphology.Kind {
			t.Errorf("%s: morphology kind mismatch: got %v, want %v", name, gc.Morphology.Kind, wc.Morphology.Kind)
		}
		if gc.Spectrum.Kind != wc.Spectrum.Kind {
			t.Errorf("%s: spectrum kind mismatch: got %v, want %v", name, gc.Spectrum.Kind, wc.Spectrum.Kind)
		}
	}
}
