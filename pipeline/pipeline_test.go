package pipeline

import (
	"errors"
	"testing"

	"github.com/skyflux-astro/mwacal"
	"github.com/skyflux-astro/mwacal/beam"
	"github.com/skyflux-astro/mwacal/predict"
)

// fakeSource is a minimal in-memory ObservedVisibilitySource: every
// sample's data is a fixed Jones and weight, regardless of timestep.
type fakeSource struct {
	data   mwacal.Jones[float32]
	weight float32
	failAt int // timestep index to fail on, -1 for never
}

func (s *fakeSource) ReadCrosses(visFB []mwacal.Jones[float32], weightsFB []float32, timestepIdx int, _ []bool, _ []int) error {
	if timestepIdx == s.failAt {
		return mwacal.ErrInputMalformed
	}
	for i := range visFB {
		visFB[i] = s.data
		weightsFB[i] = s.weight
	}
	return nil
}

func (s *fakeSource) ReadAutos([]mwacal.Jones[float32], []float32, int, []int) error {
	return mwacal.ErrInputMalformed
}

func (s *fakeSource) ReadCrossesAndAutos(visFB []mwacal.Jones[float32], weightsFB []float32, _ []mwacal.Jones[float32], _ []float32, timestepIdx int, tileBaselineFlags []bool, flaggedFineChans []int) error {
	return s.ReadCrosses(visFB, weightsFB, timestepIdx, tileBaselineFlags, flaggedFineChans)
}

func (s *fakeSource) GetObsContext() *mwacal.ObsContext { return &mwacal.ObsContext{} }

type drainButCountingWriter struct {
	timesteps  []int
	timestamps []float64
}

func (w *drainButCountingWriter) WriteTimestep(_ []mwacal.Jones[float32], _ []float32, _ []mwacal.Jones[float32], timestepIdx int, timestampGPS float64) error {
	w.timesteps = append(w.timesteps, timestepIdx)
	w.timestamps = append(w.timestamps, timestampGPS)
	return nil
}
func (w *drainButCountingWriter) Close() error { return nil }

func TestRunEmptySourceModelProducesZeroVisibility(t *testing.T) {
	layout := Layout{NumTimesteps: 2, NumFreqs: 1, NumBaselines: 1}
	src := &fakeSource{data: mwacal.Jones[float32]{J00: 1, J11: 1}, weight: 1, failAt: -1}
	sm := &predict.SourceModel{Basis: predict.NewShapeletBasisTable()}

	visData := make([]mwacal.Jones[float32], layout.NumTimesteps*layout.timestepLen())
	visModel := make([]mwacal.Jones[float32], layout.NumTimesteps*layout.timestepLen())
	weights := make([]float32, layout.NumTimesteps*layout.timestepLen())
	writer := &drainButCountingWriter{}

	timestamps := []float64{1090008640, 1090008642}
	err := Run(layout, src, []bool{false}, nil, sm, beam.NoBeam{UnityGains: true},
		func(int) predict.TimestepInputs {
			return predict.TimestepInputs{FreqsHz: []float64{150e6}, UVWMetres: []mwacal.UVW{{}}, NumTiles: 2}
		},
		timestamps, visData, visModel, weights, writer)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(writer.timesteps) != layout.NumTimesteps {
		t.Fatalf("expected every timestep to reach the writer, got %v", writer.timesteps)
	}
	for i, ts := range writer.timestamps {
		if ts != timestamps[writer.timesteps[i]] {
			t.Errorf("timestep %d: writer saw timestamp %v, want %v", writer.timesteps[i], ts, timestamps[writer.timesteps[i]])
		}
	}
	for _, v := range visModel {
		if v.J00 != 0 || v.J11 != 0 {
			t.Errorf("expected zero model visibility from an empty source model, got %+v", v)
		}
	}
	for _, v := range visData {
		if v.J00 != 1 || v.J11 != 1 {
			t.Errorf("expected the fake source's data to be carried through unchanged, got %+v", v)
		}
	}
}

func TestRunReaderFailurePropagatesAndCancels(t *testing.T) {
	layout := Layout{NumTimesteps: 3, NumFreqs: 1, NumBaselines: 1}
	src := &fakeSource{data: mwacal.Jones[float32]{}, weight: 1, failAt: 1}
	sm := &predict.SourceModel{Basis: predict.NewShapeletBasisTable()}

	visData := make([]mwacal.Jones[float32], layout.NumTimesteps*layout.timestepLen())
	visModel := make([]mwacal.Jones[float32], layout.NumTimesteps*layout.timestepLen())
	weights := make([]float32, layout.NumTimesteps*layout.timestepLen())

	err := Run(layout, src, []bool{false}, nil, sm, beam.NoBeam{UnityGains: true},
		func(int) predict.TimestepInputs {
			return predict.TimestepInputs{FreqsHz: []float64{150e6}, UVWMetres: []mwacal.UVW{{}}, NumTiles: 2}
		},
		[]float64{0, 1, 2}, visData, visModel, weights, DrainWriter{})
	if err == nil {
		t.Fatalf("expected an error from the failing reader")
	}
	if !errors.Is(err, mwacal.ErrInputMalformed) {
		t.Errorf("expected the error chain to carry ErrInputMalformed, got %v", err)
	}
}

func TestFoldWeightsZeroesNonPositiveEffectiveWeight(t *testing.T) {
	layout := Layout{NumTimesteps: 1, NumFreqs: 1, NumBaselines: 2}
	visData := []mwacal.Jones[float32]{{J00: 2}, {J00: 3}}
	visModel := []mwacal.Jones[float32]{{J00: 4}, {J00: 5}}
	weights := []float32{1, 1}
	baselineWeights := []float32{1, 0} // baseline 1 fully down-weighted

	if err := FoldWeights(visData, visModel, weights, baselineWeights, layout); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if visData[0].J00 != 2 || visModel[0].J00 != 4 || weights[0] != 1 {
		t.Errorf("baseline 0 should be scaled by its unit effective weight unchanged, got data=%+v model=%+v w=%v", visData[0], visModel[0], weights[0])
	}
	if visData[1].J00 != 0 || visModel[1].J00 != 0 || weights[1] != 0 {
		t.Errorf("baseline 1 should be zeroed by its zero baseline weight, got data=%+v model=%+v w=%v", visData[1], visModel[1], weights[1])
	}
}

func TestCheckVisibilityBudget(t *testing.T) {
	layout := Layout{NumTimesteps: 10, NumFreqs: 100, NumBaselines: 1000}

	if err := layout.CheckVisibilityBudget(0); err != nil {
		t.Errorf("a zero limit should disable the check, got %v", err)
	}
	if err := layout.CheckVisibilityBudget(1 << 40); err != nil {
		t.Errorf("a 1 TiB limit should comfortably fit this layout, got %v", err)
	}

	err := layout.CheckVisibilityBudget(1024)
	var insufficient *mwacal.InsufficientMemoryError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected an *InsufficientMemoryError for a 1 KiB limit, got %v", err)
	}
	if insufficient.RequestedBytes == 0 || insufficient.TotalBytes <= insufficient.RequestedBytes {
		t.Errorf("expected the total working set to exceed the single-cube request: %+v", insufficient)
	}
}

func TestFoldWeightsBaselineCountMismatch(t *testing.T) {
	layout := Layout{NumTimesteps: 1, NumFreqs: 1, NumBaselines: 2}
	err := FoldWeights(make([]mwacal.Jones[float32], 2), make([]mwacal.Jones[float32], 2), make([]float32, 2), []float32{1}, layout)
	if !errors.Is(err, mwacal.ErrInvalidCalibrationInput) {
		t.Fatalf("expected ErrInvalidCalibrationInput, got %v", err)
	}
}
