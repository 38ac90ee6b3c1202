// Package flagfusion unpacks companion mwaf-style flag files and folds
// them into the pipeline's weight convention: bit-packed
// per-(gpubox, time, baseline, channel-group) flags, unioned across
// polarisations, encoded as the sign bit of the carried weight.
package flagfusion

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/samber/lo"

	"github.com/skyflux-astro/mwacal"
)

// CoarseChannelFlags is one companion flag file's decoded content: one
// flag bit per (time, baseline, fine-channel) sample within a single
// gpubox/coarse channel, already unpacked from its on-disk bit-packing.
type CoarseChannelFlags struct {
	GpuboxNumber  int
	NumTimesteps  int
	NumBaselines  int
	NumFineChans  int // channels within this coarse channel (32 on legacy MWA)
	Flags         []bool // row-major (time, baseline, channel)
}

func (c *CoarseChannelFlags) index(t, b, ch int) int {
	return (t*c.NumBaselines+b)*c.NumFineChans + ch
}

// At reports whether (timestep, baseline, channel) is flagged.
func (c *CoarseChannelFlags) At(t, b, ch int) bool {
	return c.Flags[c.index(t, b, ch)]
}

// DecodeBitPacked unpacks an mwaf-style bit-packed flag payload: bits are
// stored MSB-first, eight samples per byte, one bit per (time, baseline,
// channel) sample within this gpubox's channel group. raw must hold at least
// ceil(numTimesteps*numBaselines*numFineChans/8) bytes; any bytes beyond
// that are ignored.
func DecodeBitPacked(raw []byte, gpuboxNumber, numTimesteps, numBaselines, numFineChans int) (*CoarseChannelFlags, error) {
	numSamples := numTimesteps * numBaselines * numFineChans
	needed := (numSamples + 7) / 8
	if len(raw) < needed {
		return nil, fmt.Errorf("%w: bit-packed flag payload has %d bytes, need %d for %d samples", mwacal.ErrInputMalformed, len(raw), needed, numSamples)
	}

	reader := bytes.NewReader(raw)
	byteBuf := make([]byte, needed)
	if err := binary.Read(reader, binary.BigEndian, &byteBuf); err != nil {
		return nil, fmt.Errorf("%w: reading bit-packed flags: %v", mwacal.ErrInputMalformed, err)
	}

	flags := make([]bool, numSamples)
	for i := 0; i < numSamples; i++ {
		byteIdx := i / 8
		bitIdx := 7 - (i % 8) // MSB-first
		flags[i] = (byteBuf[byteIdx]>>uint(bitIdx))&1 == 1
	}

	return &CoarseChannelFlags{
		GpuboxNumber: gpuboxNumber,
		NumTimesteps: numTimesteps,
		NumBaselines: numBaselines,
		NumFineChans: numFineChans,
		Flags:        flags,
	}, nil
}

// legacyOffByOneProducer marks the known older companion-file producer
// whose start-time is off by one integration.
const legacyOffByOneProducer = "cotter"

// ShiftStartTimeForProducer applies the per-producer start-time correction:
// the known older companion-file producer's flags are shifted by one
// integration rather than trusted as-is. Any other producer identifier is
// returned unchanged.
func ShiftStartTimeForProducer(producer string, startTimestepIdx int) int {
	if producer == legacyOffByOneProducer {
		return startTimestepIdx + 1
	}
	return startTimestepIdx
}

// UnionAcrossSources reports whether (t, b, ch) is flagged in any source,
// and if so in any polarisation carried by that source — a source
// contributes a flag to the sample already at the per-polarisation union,
// since its Flags array doesn't carry a separate polarisation axis (every
// polarisation of a given sample shares one mwaf flag bit). Multiple
// companion sources are unioned here: flagged in any one of them flags the
// fused result.
func UnionAcrossSources(sources []*CoarseChannelFlags, t, b, ch int) bool {
	for _, src := range sources {
		if src == nil {
			continue
		}
		if t >= src.NumTimesteps || b >= src.NumBaselines || ch >= src.NumFineChans {
			continue
		}
		if src.At(t, b, ch) {
			return true
		}
	}
	return false
}

// ApplyToWeights folds sources' fused flags into weightsTFB in place,
// following the sign-bit convention: a flagged sample's weight becomes the
// negative of its absolute value, leaving magnitude intact for any
// downstream code that still wants it, while every consumer in this module
// treats a negative weight as zero.
//
// numTimesteps, numFreqs and numBaselines give the shape of weightsTFB, and
// the mapping from fine channel to (coarseChannelIdx,
// channelWithinCoarse) via chanToCoarse/chanToOffset, since gpubox flag
// files are keyed by coarse channel rather than absolute fine-channel
// index.
func ApplyToWeights(weightsTFB []float32, numTimesteps, numFreqs, numBaselines int, chanToCoarse, chanToOffset []int, sourcesByCoarse map[int][]*CoarseChannelFlags) error {
	if len(chanToCoarse) != numFreqs || len(chanToOffset) != numFreqs {
		return fmt.Errorf("%w: chanToCoarse/chanToOffset length must equal numFreqs", mwacal.ErrInvalidCalibrationInput)
	}

	for t := 0; t < numTimesteps; t++ {
		for f := 0; f < numFreqs; f++ {
			coarse := chanToCoarse[f]
			offset := chanToOffset[f]
			sources := sourcesByCoarse[coarse]

			base := (t*numFreqs + f) * numBaselines
			for b := 0; b < numBaselines; b++ {
				idx := base + b
				if UnionAcrossSources(sources, t, b, offset) {
					weightsTFB[idx] = -abs32(weightsTFB[idx])
				}
			}
		}
	}
	return nil
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

// Difference reports flag indices present in "have" but absent from
// "want", and vice versa.
func Difference(have, want []int) (onlyHave, onlyWant []int) {
	return lo.Difference(have, want)
}
