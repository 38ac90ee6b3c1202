package mwacal

import "testing"

func TestBuildChanblocksPartialTrailingGroup(t *testing.T) {
	freqs := []float64{100, 101, 102, 103, 104}
	unflagged := []int{0, 1, 2, 3, 4}
	blocks := BuildChanblocks(unflagged, freqs, 2)
	if len(blocks) != 3 {
		t.Fatalf("expected 3 chanblocks (2+2+1), got %d", len(blocks))
	}
	if len(blocks[2].FineChanIndices) != 1 {
		t.Errorf("expected a narrower trailing chanblock, got %d channels", len(blocks[2].FineChanIndices))
	}
	if blocks[0].CentreFreqHz != 100.5 {
		t.Errorf("expected centre freq 100.5, got %v", blocks[0].CentreFreqHz)
	}
	for i, b := range blocks {
		if b.UnflaggedIndex != i {
			t.Errorf("chanblock %d: expected UnflaggedIndex %d, got %d", i, i, b.UnflaggedIndex)
		}
	}
}

func TestBuildChanblocksSkipsFlaggedChannels(t *testing.T) {
	freqs := []float64{100, 101, 102, 103}
	unflagged := []int{0, 2, 3} // channel 1 flagged out
	blocks := BuildChanblocks(unflagged, freqs, 1)
	if len(blocks) != 3 {
		t.Fatalf("expected 3 chanblocks, got %d", len(blocks))
	}
	if blocks[0].ChanblockIndex != 0 || blocks[1].ChanblockIndex != 2 || blocks[2].ChanblockIndex != 3 {
		t.Errorf("expected flagged-channel indices to be skipped entirely, got %+v", blocks)
	}
}

func TestBuildTimeblocksPartition(t *testing.T) {
	timestamps := []float64{0, 1, 2, 3, 4, 5, 6}
	blocks := BuildTimeblocks(timestamps, 3)
	if len(blocks) != 3 {
		t.Fatalf("expected 3 timeblocks (3+3+1), got %d", len(blocks))
	}
	if blocks[0].FirstTimestepIdx != 0 || blocks[0].LastTimestepIdx != 2 {
		t.Errorf("unexpected first timeblock range: %+v", blocks[0])
	}
	if blocks[2].FirstTimestepIdx != 6 || blocks[2].LastTimestepIdx != 6 {
		t.Errorf("unexpected trailing timeblock range: %+v", blocks[2])
	}
	if blocks[0].Coalesced {
		t.Errorf("BuildTimeblocks should never mark a block as coalesced")
	}
}

func TestCoalescedTimeblockSpansEverything(t *testing.T) {
	timestamps := []float64{10, 20, 30}
	tb := CoalescedTimeblock(timestamps)
	if !tb.Coalesced {
		t.Errorf("expected the coalesced flag to be set")
	}
	if tb.FirstTimestepIdx != 0 || tb.LastTimestepIdx != 2 {
		t.Errorf("expected the coalesced timeblock to span the full range, got %+v", tb)
	}
	if tb.FirstTimestampGPS() != 10 || tb.LastTimestampGPS() != 30 {
		t.Errorf("unexpected first/last timestamps: %v, %v", tb.FirstTimestampGPS(), tb.LastTimestampGPS())
	}
	if tb.AverageTimestampGPS() != 20 {
		t.Errorf("expected average timestamp 20, got %v", tb.AverageTimestampGPS())
	}
}
