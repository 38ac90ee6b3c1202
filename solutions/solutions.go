// Package solutions assembles and persists the calibration solution cube:
// expanding the dense solver output into the full (timeblock, tile,
// chanblock) shape and writing it, with its metadata, as a TileDB dense
// array.
package solutions

import (
	"github.com/skyflux-astro/mwacal"
	"github.com/skyflux-astro/mwacal/calibrate"
)

// TimeblockSolution is one timeblock's solved chanblocks, in dense-local
// chanblock order (the order calibrate.SolveTimeblockParallel returns).
type TimeblockSolution struct {
	Chanblocks []calibrate.ChanblockResult
}

// Metadata is the full attribute set required to be attached to a
// persisted solutions cube.
type Metadata struct {
	FlaggedTileIndices       []int
	FlaggedChanblockIndices  []int
	ChanblockCentreFreqsHz   []float64
	TimeblockFirstTimestamps []float64
	TimeblockLastTimestamps  []float64
	TimeblockAvgTimestamps   []float64
	MaxIterations            int
	StopThreshold            float64
	MinThreshold             float64
	BaselineWeights          []float64 // NaN at flagged baselines
	UVWCutoffMinMetres       float64
	UVWCutoffMaxMetres       float64
	FrequencyCentroidHz      float64
	ModellerIdentity         string
}

// CompleteCube is the "complete" solution cube: shape (numTimeblocks,
// totalTiles, totalChanblocks), NaN at every flagged or unavailable
// position, each entry inverted from the solver's model->data sense to the
// persisted data->model sense.
type CompleteCube struct {
	NumTimeblocks   int
	TotalTiles      int
	TotalChanblocks int
	Jones           []mwacal.Jones[float64] // row-major (timeblock, tile, chanblock)
}

func (c *CompleteCube) index(tb, tile, cb int) int {
	return (tb*c.TotalTiles+tile)*c.TotalChanblocks + cb
}

// At returns the Jones at (timeblock, tile, chanblock).
func (c *CompleteCube) At(tb, tile, cb int) mwacal.Jones[float64] {
	return c.Jones[c.index(tb, tile, cb)]
}

// BuildCompleteCube expands the per-timeblock dense solver output into the
// full (numTimeblocks, totalTiles, totalChanblocks) cube.
// unflaggedTileIndices and unflaggedChanblockIndices map each dense-local
// index to its position in the full numbering; positions not reached by
// either mapping, and any Jones whose matrix inverse doesn't exist, are
// left/set to NaN.
func BuildCompleteCube(
	timeblocks []TimeblockSolution,
	totalTiles, totalChanblocks int,
	unflaggedTileIndices, unflaggedChanblockIndices []int,
) *CompleteCube {
	numTimeblocks := len(timeblocks)
	nanJones := mwacal.NaNJonesT[float64]()

	cube := &CompleteCube{
		NumTimeblocks:   numTimeblocks,
		TotalTiles:      totalTiles,
		TotalChanblocks: totalChanblocks,
		Jones:           make([]mwacal.Jones[float64], numTimeblocks*totalTiles*totalChanblocks),
	}
	for i := range cube.Jones {
		cube.Jones[i] = nanJones
	}

	for tb, block := range timeblocks {
		for denseCb, result := range block.Chanblocks {
			if denseCb >= len(unflaggedChanblockIndices) {
				continue
			}
			fullCb := unflaggedChanblockIndices[denseCb]

			for denseTile, j := range result.DiJones {
				if denseTile >= len(unflaggedTileIndices) {
					continue
				}
				fullTile := unflaggedTileIndices[denseTile]

				inv, ok := j.Inverse()
				if !ok {
					inv = nanJones
				}
				cube.Jones[cube.index(tb, fullTile, fullCb)] = inv
			}
		}
	}
	return cube
}
