package flagfusion

import (
	"errors"
	"testing"

	"github.com/skyflux-astro/mwacal"
)

func TestDecodeBitPackedMSBFirst(t *testing.T) {
	// 1 timestep, 1 baseline, 8 channels: byte 0b10000001 flags channel 0
	// and channel 7 only.
	got, err := DecodeBitPacked([]byte{0b10000001}, 5, 1, 1, 8)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.GpuboxNumber != 5 {
		t.Errorf("expected gpubox number carried through, got %d", got.GpuboxNumber)
	}
	for ch := 0; ch < 8; ch++ {
		want := ch == 0 || ch == 7
		if got.At(0, 0, ch) != want {
			t.Errorf("channel %d: got flagged=%v, want %v", ch, got.At(0, 0, ch), want)
		}
	}
}

func TestDecodeBitPackedTooShort(t *testing.T) {
	_, err := DecodeBitPacked([]byte{0x00}, 1, 1, 1, 16) // needs 2 bytes, has 1
	if !errors.Is(err, mwacal.ErrInputMalformed) {
		t.Fatalf("expected ErrInputMalformed, got %v", err)
	}
}

func TestShiftStartTimeForProducerLegacyOffset(t *testing.T) {
	if got := ShiftStartTimeForProducer("cotter", 4); got != 5 {
		t.Errorf("expected cotter's off-by-one shift, got %d", got)
	}
	if got := ShiftStartTimeForProducer("birli", 4); got != 4 {
		t.Errorf("expected no shift for a non-legacy producer, got %d", got)
	}
}

func TestUnionAcrossSourcesFlagsIfAny(t *testing.T) {
	a := &CoarseChannelFlags{NumTimesteps: 1, NumBaselines: 1, NumFineChans: 2, Flags: []bool{false, false}}
	b := &CoarseChannelFlags{NumTimesteps: 1, NumBaselines: 1, NumFineChans: 2, Flags: []bool{false, true}}
	if UnionAcrossSources([]*CoarseChannelFlags{a, b}, 0, 0, 0) {
		t.Errorf("channel 0 is unflagged in both sources")
	}
	if !UnionAcrossSources([]*CoarseChannelFlags{a, b}, 0, 0, 1) {
		t.Errorf("channel 1 is flagged in source b, union should report true")
	}
}

func TestUnionAcrossSourcesOutOfRangeIgnored(t *testing.T) {
	a := &CoarseChannelFlags{NumTimesteps: 1, NumBaselines: 1, NumFineChans: 1, Flags: []bool{true}}
	if UnionAcrossSources([]*CoarseChannelFlags{a}, 0, 0, 5) {
		t.Errorf("a query past a source's bounds should be ignored, not treated as flagged")
	}
}

func TestApplyToWeightsSetsSignBit(t *testing.T) {
	const numTimesteps, numFreqs, numBaselines = 1, 2, 2
	weights := []float32{1, 1, 1, 1} // (f=0,b=0) (f=0,b=1) (f=1,b=0) (f=1,b=1)
	chanToCoarse := []int{0, 0}
	chanToOffset := []int{0, 1}
	flags := &CoarseChannelFlags{NumTimesteps: 1, NumBaselines: 2, NumFineChans: 2, Flags: []bool{
		false, false, // baseline 0: channels 0 and 1 clear
		true, false, // baseline 1: channel 0 flagged, channel 1 clear
	}}
	sources := map[int][]*CoarseChannelFlags{0: {flags}}

	err := ApplyToWeights(weights, numTimesteps, numFreqs, numBaselines, chanToCoarse, chanToOffset, sources)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if weights[0] != 1 {
		t.Errorf("expected baseline 0 channel 0 unflagged, got %v", weights[0])
	}
	if weights[1] != -1 {
		t.Errorf("expected baseline 1 channel 0 flagged (negative weight), got %v", weights[1])
	}
}

func TestApplyToWeightsLengthMismatch(t *testing.T) {
	err := ApplyToWeights(make([]float32, 4), 1, 2, 2, []int{0}, []int{0}, nil)
	if !errors.Is(err, mwacal.ErrInvalidCalibrationInput) {
		t.Fatalf("expected ErrInvalidCalibrationInput for mismatched chanToCoarse length, got %v", err)
	}
}

func TestDifference(t *testing.T) {
	onlyHave, onlyWant := Difference([]int{1, 2, 3}, []int{2, 3, 4})
	if len(onlyHave) != 1 || onlyHave[0] != 1 {
		t.Errorf("expected onlyHave=[1], got %v", onlyHave)
	}
	if len(onlyWant) != 1 || onlyWant[0] != 4 {
		t.Errorf("expected onlyWant=[4], got %v", onlyWant)
	}
}
