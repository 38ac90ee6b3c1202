package mwacal

import (
	"math"
	"testing"
)

func TestPowerLawScaling(t *testing.T) {
	s := Spectrum{
		Kind:          SpectrumPowerLaw,
		Reference:     FluxDensity{FreqHz: 150e6, I: 10, Q: 1, U: 0.5, V: 0.1},
		SpectralIndex: -0.8,
	}
	got := s.EstimateAtFreq(300e6)
	want := 10 * math.Pow(2, -0.8)
	if math.Abs(got.I-want) > 1e-12 {
		t.Errorf("power law scaling: got %.15f, want %.15f", got.I, want)
	}
	// Q/U/V scale by the same factor as I.
	factor := got.I / s.Reference.I
	if math.Abs(got.Q-s.Reference.Q*factor) > 1e-12 {
		t.Errorf("Q did not scale with the same factor as I")
	}
}

func TestListSpectrumExactLookup(t *testing.T) {
	s := Spectrum{
		Kind: SpectrumList,
		Entries: []FluxDensity{
			{FreqHz: 100e6, I: 5, Q: 0, U: 0, V: 0},
			{FreqHz: 150e6, I: 4, Q: 0, U: 0, V: 0},
			{FreqHz: 200e6, I: 3, Q: 0, U: 0, V: 0},
		},
	}
	got := s.EstimateAtFreq(150e6)
	if got.I != 4 {
		t.Errorf("exact tabulated frequency should return the tabulated value, got %v", got.I)
	}
}

func TestListSpectrumSinglePointUsesDefaultSpectralIndex(t *testing.T) {
	s := Spectrum{Kind: SpectrumList, Entries: []FluxDensity{{FreqHz: 150e6, I: 7}}}
	got := s.EstimateAtFreq(300e6)
	want := 7 * math.Pow(2, defaultSpectralIndex)
	if math.Abs(got.I-want) > 1e-12 {
		t.Errorf("single-entry list should extrapolate with the default spectral index: got %v, want %v", got.I, want)
	}
}

func TestConvertListToPowerLawTwoPoints(t *testing.T) {
	s := Spectrum{
		Kind: SpectrumList,
		Entries: []FluxDensity{
			{FreqHz: 100e6, I: 10},
			{FreqHz: 200e6, I: 5},
		},
	}
	pl, ok := ConvertListToPowerLaw(s)
	if !ok {
		t.Fatalf("two-point list should always promote")
	}
	if pl.Kind != SpectrumPowerLaw {
		t.Errorf("expected PowerLaw, got %v", pl.Kind)
	}
	wantAlpha := math.Log(5.0/10.0) / math.Log(2.0)
	if math.Abs(pl.SpectralIndex-wantAlpha) > 1e-12 {
		t.Errorf("spectral index: got %.15f, want %.15f", pl.SpectralIndex, wantAlpha)
	}
}

func TestConvertListToPowerLawGoodFitPromotes(t *testing.T) {
	// Entries generated exactly from a power law: a clean fit should promote.
	const refI, alpha = 10.0, -0.7
	entries := make([]FluxDensity, 0, 5)
	for _, f := range []float64{80e6, 120e6, 150e6, 200e6, 250e6} {
		entries = append(entries, FluxDensity{FreqHz: f, I: refI * math.Pow(f/80e6, alpha)})
	}
	s := Spectrum{Kind: SpectrumList, Entries: entries}
	pl, ok := ConvertListToPowerLaw(s)
	if !ok {
		t.Fatalf("a list generated exactly from a power law should promote")
	}
	if math.Abs(pl.SpectralIndex-alpha) > 1e-6 {
		t.Errorf("fitted spectral index: got %.9f, want %.9f", pl.SpectralIndex, alpha)
	}
}

func TestConvertListToPowerLawPolarisedGoodFitPromotes(t *testing.T) {
	// Q/U/V hold fixed fractions of I at every entry, so they follow the
	// same power law and the promotion must reproduce them.
	const refI, alpha = 10.0, -0.7
	entries := make([]FluxDensity, 0, 5)
	for _, f := range []float64{80e6, 120e6, 150e6, 200e6, 250e6} {
		i := refI * math.Pow(f/80e6, alpha)
		entries = append(entries, FluxDensity{FreqHz: f, I: i, Q: 0.1 * i, U: 0.05 * i, V: -0.02 * i})
	}
	s := Spectrum{Kind: SpectrumList, Entries: entries}
	pl, ok := ConvertListToPowerLaw(s)
	if !ok {
		t.Fatalf("uniformly polarised power-law entries should promote")
	}
	got := pl.EstimateAtFreq(150e6)
	want := entries[2]
	if math.Abs(got.Q-want.Q) > 1e-6 || math.Abs(got.U-want.U) > 1e-6 || math.Abs(got.V-want.V) > 1e-6 {
		t.Errorf("promoted power law should reproduce Q/U/V at tabulated points: got %+v, want %+v", got, want)
	}
}

func TestConvertListToPowerLawNonPowerLawStokesQRejected(t *testing.T) {
	// Stokes I follows a clean power law but Q doesn't: promotion would
	// silently mis-scale the polarised flux, so it must be refused.
	const refI, alpha = 10.0, -0.7
	qs := []float64{1.0, -2.0, 3.0, 0.5, 2.0}
	entries := make([]FluxDensity, 0, 5)
	for k, f := range []float64{80e6, 120e6, 150e6, 200e6, 250e6} {
		i := refI * math.Pow(f/80e6, alpha)
		entries = append(entries, FluxDensity{FreqHz: f, I: i, Q: qs[k]})
	}
	s := Spectrum{Kind: SpectrumList, Entries: entries}
	if _, ok := ConvertListToPowerLaw(s); ok {
		t.Errorf("entries whose Q doesn't follow the fitted power law should not promote")
	}
}

func TestConvertListToPowerLawPoorFitRejected(t *testing.T) {
	s := Spectrum{
		Kind: SpectrumList,
		Entries: []FluxDensity{
			{FreqHz: 80e6, I: 10},
			{FreqHz: 120e6, I: 50}, // wildly non-power-law jump
			{FreqHz: 150e6, I: 2},
			{FreqHz: 200e6, I: 30},
		},
	}
	_, ok := ConvertListToPowerLaw(s)
	if ok {
		t.Errorf("a poorly-fitting list should not be promoted")
	}
}

func TestRederiveCurvedReference(t *testing.T) {
	const fixedRefHz, nativeRefHz = 150e6, 200e6
	const q = -0.05
	const fixedI = 1.0
	wantAlpha := -0.9
	lnRatio := math.Log(nativeRefHz / fixedRefHz)
	nativeI := fixedI * math.Pow(nativeRefHz/fixedRefHz, wantAlpha) * math.Exp(q*lnRatio*lnRatio)

	gotAlpha := RederiveCurvedReference(nativeI, fixedI, q, nativeRefHz, fixedRefHz)
	if math.Abs(gotAlpha-wantAlpha) > 1e-9 {
		t.Errorf("rederived spectral index: got %.9f, want %.9f", gotAlpha, wantAlpha)
	}
}
