package mwacal

// ObsContext carries the per-observation metadata: array geometry, antenna
// bookkeeping, phase/pointing centres, timestamps and frequency layout. It
// has no file-format dependency — constructing one is the job of a
// concrete ObservedVisibilitySource implementation.
type ObsContext struct {
	ObsID *int64 // optional observation identifier

	ArrayLongitudeRadians float64
	ArrayLatitudeRadians  float64
	ArrayHeightMetres     float64

	NumTiles    int
	TileNames   []string
	TileXYZ     []AntennaXYZ
	FlaggedTiles     []int // indices into TileXYZ/TileNames
	UnavailableTiles []int // tiles with no data present at all

	PhaseCentre   RaDec
	PointingCentre *RaDec // optional

	// Timestamps, ordered ascending, as GPS seconds — the centre of each
	// integration.
	TimestampsGPS []float64
	DUT1Seconds   float64

	ChannelFreqsHz   []float64
	ChannelWidthHz   float64
	FlaggedFineChans []int // indices into ChannelFreqsHz

	HasAutoCorrelations bool
}

// UnflaggedTileIndices returns, in ascending order, the tile indices that
// are neither flagged nor unavailable.
func (o *ObsContext) UnflaggedTileIndices() []int {
	excluded := make(map[int]bool, len(o.FlaggedTiles)+len(o.UnavailableTiles))
	for _, t := range o.FlaggedTiles {
		excluded[t] = true
	}
	for _, t := range o.UnavailableTiles {
		excluded[t] = true
	}
	out := make([]int, 0, o.NumTiles)
	for t := 0; t < o.NumTiles; t++ {
		if !excluded[t] {
			out = append(out, t)
		}
	}
	return out
}

// UnflaggedFineChanIndices returns, in ascending order, the fine-channel
// indices that are not in FlaggedFineChans.
func (o *ObsContext) UnflaggedFineChanIndices() []int {
	flagged := make(map[int]bool, len(o.FlaggedFineChans))
	for _, c := range o.FlaggedFineChans {
		flagged[c] = true
	}
	out := make([]int, 0, len(o.ChannelFreqsHz))
	for c := range o.ChannelFreqsHz {
		if !flagged[c] {
			out = append(out, c)
		}
	}
	return out
}

// ObservedVisibilitySource is the read-only interface required of a
// concrete data source (MeasurementSet, UVFITS, raw MWA correlator files).
// Their internal layouts are out of scope; only this contract is
// specified.
type ObservedVisibilitySource interface {
	// ReadCrosses writes cross-correlation visibilities and weights for the
	// unflagged baselines at timestepIdx into the caller-owned visFB/
	// weightsFB slices (shape freq x baseline, row-major), honouring
	// tileBaselineFlags and flaggedFineChans.
	ReadCrosses(visFB []Jones[float32], weightsFB []float32, timestepIdx int, tileBaselineFlags []bool, flaggedFineChans []int) error

	// ReadAutos is the auto-correlation equivalent of ReadCrosses. Sources
	// that carry no auto-correlations may return ErrInputMalformed.
	ReadAutos(visF []Jones[float32], weightsF []float32, timestepIdx int, flaggedFineChans []int) error

	// ReadCrossesAndAutos reads both in one call, when the underlying
	// format allows it more cheaply than two separate reads.
	ReadCrossesAndAutos(visFB []Jones[float32], weightsFB []float32, autosF []Jones[float32], autoWeightsF []float32, timestepIdx int, tileBaselineFlags []bool, flaggedFineChans []int) error

	// GetObsContext returns the observation context for this source.
	GetObsContext() *ObsContext
}

// ModelVisibilityWriter is the optional streaming output: one timestep per
// write call, in the same container format as the input data's format.
type ModelVisibilityWriter interface {
	WriteTimestep(visFB []Jones[float32], weightsFB []float32, autosF []Jones[float32], timestepIdx int, timestampGPS float64) error
	Close() error
}
