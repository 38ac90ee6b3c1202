package main

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/skyflux-astro/mwacal"
)

// jsonObsContext mirrors mwacal.ObsContext for the JSON dataset format this
// CLI reads and writes. Concrete MeasurementSet/UVFITS/raw-correlator
// readers live behind the ObservedVisibilitySource interface elsewhere;
// this JSON layout is the one concrete implementation the CLI ships with.
type jsonObsContext struct {
	ObsID                 *int64    `json:"obs_id,omitempty"`
	ArrayLongitudeDeg     float64   `json:"array_longitude_deg"`
	ArrayLatitudeDeg      float64   `json:"array_latitude_deg"`
	ArrayHeightMetres     float64   `json:"array_height_m"`
	TileNames             []string  `json:"tile_names"`
	TileXYZ               [][3]float64 `json:"tile_xyz_m"`
	FlaggedTiles          []int     `json:"flagged_tiles"`
	UnavailableTiles      []int     `json:"unavailable_tiles"`
	PhaseCentreRaDeg      float64   `json:"phase_centre_ra_deg"`
	PhaseCentreDecDeg     float64   `json:"phase_centre_dec_deg"`
	TimestampsGPS         []float64 `json:"timestamps_gps"`
	DUT1Seconds           float64   `json:"dut1_seconds"`
	ChannelFreqsHz        []float64 `json:"channel_freqs_hz"`
	ChannelWidthHz        float64   `json:"channel_width_hz"`
	FlaggedFineChans      []int     `json:"flagged_fine_chans"`
	HasAutoCorrelations   bool      `json:"has_auto_correlations"`
}

func (j jsonObsContext) toObsContext() *mwacal.ObsContext {
	xyz := make([]mwacal.AntennaXYZ, len(j.TileXYZ))
	for i, p := range j.TileXYZ {
		xyz[i] = mwacal.AntennaXYZ{X: p[0], Y: p[1], Z: p[2]}
	}
	const degToRad = math.Pi / 180.0
	return &mwacal.ObsContext{
		ObsID:                 j.ObsID,
		ArrayLongitudeRadians: j.ArrayLongitudeDeg * degToRad,
		ArrayLatitudeRadians:  j.ArrayLatitudeDeg * degToRad,
		ArrayHeightMetres:     j.ArrayHeightMetres,
		NumTiles:              len(j.TileNames),
		TileNames:             j.TileNames,
		TileXYZ:               xyz,
		FlaggedTiles:          j.FlaggedTiles,
		UnavailableTiles:      j.UnavailableTiles,
		PhaseCentre:           mwacal.RaDec{RaRadians: j.PhaseCentreRaDeg * degToRad, DecRadians: j.PhaseCentreDecDeg * degToRad},
		TimestampsGPS:         j.TimestampsGPS,
		DUT1Seconds:           j.DUT1Seconds,
		ChannelFreqsHz:        j.ChannelFreqsHz,
		ChannelWidthHz:        j.ChannelWidthHz,
		FlaggedFineChans:      j.FlaggedFineChans,
		HasAutoCorrelations:   j.HasAutoCorrelations,
	}
}

// jsonDataset is the full on-disk shape: observation metadata plus,
// optionally, pre-recorded cross-correlation visibilities for calibration
// (absent for a pure simulate run, which only needs the obs context).
type jsonDataset struct {
	ObsContext jsonObsContext `json:"obs_context"`
	// VisDataTFB holds interleaved (re,im) float32 pairs per Jones element,
	// row-major (timestep, freq, baseline, pol), pol order J00,J01,J10,J11.
	// Length must be numTimesteps*numUnflaggedFreqs*numBaselines*8.
	VisDataTFB   []float32 `json:"vis_data_tfb,omitempty"`
	WeightsTFB   []float32 `json:"weights_tfb,omitempty"`
}

func loadDataset(path string) (*jsonDataset, *mwacal.ObsContext, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: opening dataset %q: %v", mwacal.ErrInputMalformed, path, err)
	}
	defer f.Close()

	var ds jsonDataset
	if err := json.NewDecoder(f).Decode(&ds); err != nil {
		return nil, nil, fmt.Errorf("%w: parsing dataset %q: %v", mwacal.ErrInputMalformed, path, err)
	}
	return &ds, ds.ObsContext.toObsContext(), nil
}

// jsonSource adapts a loaded jsonDataset into an mwacal.ObservedVisibilitySource.
type jsonSource struct {
	ctx          *mwacal.ObsContext
	visDataTFB   []mwacal.Jones[float32]
	weightsTFB   []float32
	numFreqs     int
	numBaselines int
}

func newJSONSource(ds *jsonDataset, ctx *mwacal.ObsContext, numFreqs, numBaselines int) (*jsonSource, error) {
	n := len(ctx.TimestampsGPS) * numFreqs * numBaselines
	vis := make([]mwacal.Jones[float32], n)
	weights := make([]float32, n)
	for i := range weights {
		weights[i] = 1
	}

	if len(ds.VisDataTFB) > 0 {
		if len(ds.VisDataTFB) != n*8 {
			return nil, fmt.Errorf("%w: vis_data_tfb has %d floats, expected %d", mwacal.ErrInputMalformed, len(ds.VisDataTFB), n*8)
		}
		for i := 0; i < n; i++ {
			vis[i] = jonesFromInterleaved(ds.VisDataTFB[i*8 : i*8+8])
		}
	}
	if len(ds.WeightsTFB) > 0 {
		if len(ds.WeightsTFB) != n {
			return nil, fmt.Errorf("%w: weights_tfb has %d entries, expected %d", mwacal.ErrInputMalformed, len(ds.WeightsTFB), n)
		}
		copy(weights, ds.WeightsTFB)
	}

	return &jsonSource{ctx: ctx, visDataTFB: vis, weightsTFB: weights, numFreqs: numFreqs, numBaselines: numBaselines}, nil
}

func jonesFromInterleaved(b []float32) mwacal.Jones[float32] {
	return mwacal.Jones[float32]{
		J00: complex(float64(b[0]), float64(b[1])),
		J01: complex(float64(b[2]), float64(b[3])),
		J10: complex(float64(b[4]), float64(b[5])),
		J11: complex(float64(b[6]), float64(b[7])),
	}
}

func (s *jsonSource) ReadCrosses(visFB []mwacal.Jones[float32], weightsFB []float32, timestepIdx int, tileBaselineFlags []bool, flaggedFineChans []int) error {
	stride := s.numFreqs * s.numBaselines
	start := timestepIdx * stride
	if start+stride > len(s.visDataTFB) {
		return fmt.Errorf("%w: timestep %d out of range", mwacal.ErrInvalidCalibrationInput, timestepIdx)
	}
	copy(visFB, s.visDataTFB[start:start+stride])
	copy(weightsFB, s.weightsTFB[start:start+stride])
	return nil
}

func (s *jsonSource) ReadAutos([]mwacal.Jones[float32], []float32, int, []int) error {
	return fmt.Errorf("%w: json test dataset carries no auto-correlations", mwacal.ErrInputMalformed)
}

func (s *jsonSource) ReadCrossesAndAutos(visFB []mwacal.Jones[float32], weightsFB []float32, autosF []mwacal.Jones[float32], autoWeightsF []float32, timestepIdx int, tileBaselineFlags []bool, flaggedFineChans []int) error {
	return s.ReadCrosses(visFB, weightsFB, timestepIdx, tileBaselineFlags, flaggedFineChans)
}

func (s *jsonSource) GetObsContext() *mwacal.ObsContext { return s.ctx }

// jsonModelWriter collects modelled visibilities, one timestep per
// WriteTimestep call, in the same interleaved layout jsonDataset.VisDataTFB
// uses; the JSON file itself is written only by Close.
type jsonModelWriter struct {
	path         string
	numFreqs     int
	numBaselines int
	out          []float32
}

func newJSONModelWriter(path string, numTimesteps, numFreqs, numBaselines int) *jsonModelWriter {
	return &jsonModelWriter{
		path:         path,
		numFreqs:     numFreqs,
		numBaselines: numBaselines,
		out:          make([]float32, numTimesteps*numFreqs*numBaselines*8),
	}
}

func (w *jsonModelWriter) WriteTimestep(visFB []mwacal.Jones[float32], weightsFB []float32, autosF []mwacal.Jones[float32], timestepIdx int, timestampGPS float64) error {
	stride := w.numFreqs * w.numBaselines
	base := timestepIdx * stride * 8
	for i, j := range visFB {
		o := base + i*8
		w.out[o+0] = float32(real(j.J00))
		w.out[o+1] = float32(imag(j.J00))
		w.out[o+2] = float32(real(j.J01))
		w.out[o+3] = float32(imag(j.J01))
		w.out[o+4] = float32(real(j.J10))
		w.out[o+5] = float32(imag(j.J10))
		w.out[o+6] = float32(real(j.J11))
		w.out[o+7] = float32(imag(j.J11))
	}
	return nil
}

func (w *jsonModelWriter) Close() error {
	f, err := os.Create(w.path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	return enc.Encode(struct {
		VisModelTFB []float32 `json:"vis_model_tfb"`
	}{VisModelTFB: w.out})
}
