package main

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/skyflux-astro/mwacal"
	"github.com/skyflux-astro/mwacal/flagfusion"
	"github.com/skyflux-astro/mwacal/pipeline"
	"github.com/skyflux-astro/mwacal/search"
)

// gpuboxNumberPattern matches the conventional MWA mwaf naming
// "<obsid>_<gpuboxNN>.mwaf", e.g. "1061316296_01.mwaf".
var gpuboxNumberPattern = regexp.MustCompile(`_(\d+)\.mwaf$`)

func gpuboxNumberFromFilename(path string) (int, bool) {
	m := gpuboxNumberPattern.FindStringSubmatch(filepath.Base(path))
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// shiftTimesteps returns a copy of c with its timestep axis shifted forward
// by delta integrations, dropping samples that shift out of range and
// leaving the vacated leading timesteps unflagged (the per-producer
// start-time correction, applied here rather than at decode time since the
// correction is a function of which tool produced the file, not the bit
// layout itself).
func shiftTimesteps(c *flagfusion.CoarseChannelFlags, delta int) *flagfusion.CoarseChannelFlags {
	if delta == 0 {
		return c
	}
	shifted := &flagfusion.CoarseChannelFlags{
		GpuboxNumber: c.GpuboxNumber,
		NumTimesteps: c.NumTimesteps,
		NumBaselines: c.NumBaselines,
		NumFineChans: c.NumFineChans,
		Flags:        make([]bool, len(c.Flags)),
	}
	stride := c.NumBaselines * c.NumFineChans
	for t := 0; t < c.NumTimesteps; t++ {
		src := t - delta
		if src < 0 || src >= c.NumTimesteps {
			continue
		}
		copy(shifted.Flags[t*stride:(t+1)*stride], c.Flags[src*stride:(src+1)*stride])
	}
	return shifted
}

// applyCompanionFlags implements companion-mwaf-file flag fusion: any
// `.mwaf` files found under flagsDir are decoded and
// unioned into weightsTFB's sign bit before the weight fold, so a sample
// flagged by any companion source is zeroed downstream exactly like a
// sample the driver's own reader already flagged. A directory containing
// no matching files is not an error — most datasets calibrate without
// companion flag files at all.
func applyCompanionFlags(cCtx *cli.Context, obsCtx *mwacal.ObsContext, plan *calibrationPlan, weightsTFB []float32, layout pipeline.Layout) error {
	flagsDir := cCtx.String("flags-dir")
	if flagsDir == "" {
		return nil
	}

	paths, err := search.FindMWAFlagFiles(flagsDir, "")
	if err != nil {
		return fmt.Errorf("%w: searching %q for mwaf files: %v", mwacal.ErrInputMalformed, flagsDir, err)
	}
	if len(paths) == 0 {
		return nil
	}

	numFineChansPerCoarse := cCtx.Int("fine-chans-per-coarse")
	if numFineChansPerCoarse <= 0 {
		numFineChansPerCoarse = 32
	}

	sourcesByCoarse := make(map[int][]*flagfusion.CoarseChannelFlags, len(paths))
	for _, p := range paths {
		gpubox, ok := gpuboxNumberFromFilename(p)
		if !ok {
			continue
		}
		raw, err := os.ReadFile(p)
		if err != nil {
			return fmt.Errorf("%w: reading mwaf file %q: %v", mwacal.ErrInputMalformed, p, err)
		}
		decoded, err := flagfusion.DecodeBitPacked(raw, gpubox, layout.NumTimesteps, layout.NumBaselines, numFineChansPerCoarse)
		if err != nil {
			return fmt.Errorf("decoding mwaf file %q: %w", p, err)
		}

		shift := flagfusion.ShiftStartTimeForProducer(cCtx.String("flags-producer"), 0)
		decoded = shiftTimesteps(decoded, shift)

		coarse := gpubox - 1 // gpubox numbers are conventionally 1-indexed
		sourcesByCoarse[coarse] = append(sourcesByCoarse[coarse], decoded)
	}

	chanToCoarse := make([]int, len(plan.unflaggedChans))
	chanToOffset := make([]int, len(plan.unflaggedChans))
	for i, absIdx := range plan.unflaggedChans {
		chanToCoarse[i] = absIdx / numFineChansPerCoarse
		chanToOffset[i] = absIdx % numFineChansPerCoarse
	}

	return flagfusion.ApplyToWeights(weightsTFB, layout.NumTimesteps, layout.NumFreqs, layout.NumBaselines, chanToCoarse, chanToOffset, sourcesByCoarse)
}
