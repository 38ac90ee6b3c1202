package main

import (
	"fmt"
	"log"
	"os"
	"runtime"

	tiledb "github.com/TileDB-Inc/TileDB-Go"
	"github.com/urfave/cli/v2"

	"github.com/skyflux-astro/mwacal"
	"github.com/skyflux-astro/mwacal/beam"
	"github.com/skyflux-astro/mwacal/calibrate"
	"github.com/skyflux-astro/mwacal/decode"
	"github.com/skyflux-astro/mwacal/encode"
	"github.com/skyflux-astro/mwacal/pipeline"
	"github.com/skyflux-astro/mwacal/predict"
	"github.com/skyflux-astro/mwacal/solutions"
)

// calibrationPlan is everything derived from a dataset and source list
// before the reader/modeller/writer pipeline runs over the observation's
// timesteps.
type calibrationPlan struct {
	obsCtx           *mwacal.ObsContext
	unflaggedTiles   []int
	unflaggedChans   []int
	chanblocks       []mwacal.Chanblock
	timeblocks       []mwacal.Timeblock
	sourceModel      *predict.SourceModel
	beamProvider     beam.BatchProvider
	tileXYZ          []mwacal.AntennaXYZ
	unflaggedFreqsHz []float64
}

// buildPlan decodes the source list, vets it against the observation, and
// prepares the chanblock/timeblock layout used by both calibrate and
// simulate.
func buildPlan(cCtx *cli.Context, obsCtx *mwacal.ObsContext) (*calibrationPlan, error) {
	unflaggedTiles := obsCtx.UnflaggedTileIndices()
	unflaggedChans := obsCtx.UnflaggedFineChanIndices()

	tileXYZ := make([]mwacal.AntennaXYZ, len(unflaggedTiles))
	for i, t := range unflaggedTiles {
		tileXYZ[i] = obsCtx.TileXYZ[t]
	}

	unflaggedFreqsHz := make([]float64, len(unflaggedChans))
	for i, c := range unflaggedChans {
		unflaggedFreqsHz[i] = obsCtx.ChannelFreqsHz[c]
	}

	log.Println("Reading source list:", cCtx.String("source-list"))
	f, err := os.Open(cCtx.String("source-list"))
	if err != nil {
		return nil, fmt.Errorf("%w: opening source list: %v", mwacal.ErrInputMalformed, err)
	}
	defer f.Close()

	sourceList, err := decode.DecodeSourceList(f)
	if err != nil {
		return nil, fmt.Errorf("decoding source list: %w", err)
	}

	log.Println("Vetoing sources:", sourceList.Len(), "candidates")
	lmst := mwacal.LST(mwacal.EpochFromGPSSeconds(obsCtx.TimestampsGPS[0]).JulianDate, obsCtx.ArrayLongitudeRadians)
	vetted, err := mwacal.VetoSourceList(
		sourceList,
		obsCtx.PhaseCentre,
		obsCtx.ArrayLatitudeRadians,
		lmst,
		beam.TileZeroSampler{Provider: beam.NoBeam{UnityGains: true}},
		mwacal.VetoParams{
			NumSources:              cCtx.Int("num-sources"),
			SourceDistCutoffRadians: cCtx.Float64("source-dist-cutoff-radians"),
			VetoThresholdJy:         cCtx.Float64("veto-threshold"),
			ObservingFreqsHz:        unflaggedFreqsHz,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("vetoing source list: %w", err)
	}
	log.Println("Sources retained after vetoing:", len(vetted))

	if out := cCtx.String("source-list-out"); out != "" {
		log.Println("Writing vetoed source list:", out)
		f, err := os.Create(out)
		if err != nil {
			return nil, fmt.Errorf("%w: creating source-list-out %q: %v", mwacal.ErrInputMalformed, out, err)
		}
		err = encode.WriteSourceList(f, mwacal.Reordered(vetted))
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("writing vetoed source list: %w", err)
		}
	}

	log.Println("Building sky-model source bins")
	sourceModel, err := predict.NewSourceModel(vetted, obsCtx.PhaseCentre, unflaggedFreqsHz)
	if err != nil {
		return nil, fmt.Errorf("building source model: %w", err)
	}

	// MWA_BEAM_FILE carries the default FEE beam-model path. The beam is a
	// pluggable capability and no electromagnetic model is compiled into
	// this build, so a configured path is reported and the identity beam is
	// used.
	if beamFile := os.Getenv("MWA_BEAM_FILE"); beamFile != "" {
		log.Println("MWA_BEAM_FILE is set but no FEE beam model is compiled in; using the identity beam:", beamFile)
	}
	var beamProvider beam.BatchProvider = beam.NoBeam{UnityGains: cCtx.Bool("unity-dipole-gains")}

	chanblocks := mwacal.BuildChanblocks(unflaggedChans, obsCtx.ChannelFreqsHz, cCtx.Int("freq-average"))
	timeblocks := mwacal.BuildTimeblocks(obsCtx.TimestampsGPS, cCtx.Int("time-average"))
	log.Println("Chanblocks:", len(chanblocks), "Timeblocks:", len(timeblocks))

	return &calibrationPlan{
		obsCtx:           obsCtx,
		unflaggedTiles:   unflaggedTiles,
		unflaggedChans:   unflaggedChans,
		chanblocks:       chanblocks,
		timeblocks:       timeblocks,
		sourceModel:      sourceModel,
		beamProvider:     beamProvider,
		tileXYZ:          tileXYZ,
		unflaggedFreqsHz: unflaggedFreqsHz,
	}, nil
}

// timestepInputsFunc closes over a plan and returns the predict.TimestepInputs
// builder pipeline.Run needs for each observed timestep: LMST and UVW are
// derived from the timestamp, optionally precessed to J2000.
func (p *calibrationPlan) timestepInputsFunc(noPrecession bool) func(int) predict.TimestepInputs {
	return func(timestepIdx int) predict.TimestepInputs {
		gps := p.obsCtx.TimestampsGPS[timestepIdx]
		epoch := mwacal.EpochFromGPSSeconds(gps)

		var lmst, lat float64
		if noPrecession {
			pr := mwacal.NoPrecession(p.obsCtx.ArrayLongitudeRadians, p.obsCtx.ArrayLatitudeRadians, epoch, p.obsCtx.DUT1Seconds)
			lmst, lat = pr.LMSTEpoch, pr.LatitudeJ2000
		} else {
			pr := mwacal.PrecessToJ2000(p.obsCtx.ArrayLongitudeRadians, p.obsCtx.ArrayLatitudeRadians, p.obsCtx.PhaseCentre, epoch, p.obsCtx.DUT1Seconds)
			lmst, lat = pr.LMSTJ2000, pr.LatitudeJ2000
		}

		ha := mwacal.HourAngle(p.obsCtx.PhaseCentre.RaRadians, lmst)
		uvw := mwacal.CalcUVWParallel(p.tileXYZ, ha, p.obsCtx.PhaseCentre.DecRadians, runtime.NumCPU())

		return predict.TimestepInputs{
			LMSTRadians:     lmst,
			LatitudeRadians: lat,
			FreqsHz:         p.unflaggedFreqsHz,
			UVWMetres:       uvw,
			AntennaXYZ:      p.tileXYZ,
			NumTiles:        len(p.tileXYZ),
		}
	}
}

// runSimulate predicts model visibilities for the whole observation and
// streams them to a JSON model-visibility sidecar; no calibration solve is
// performed.
func runSimulate(cCtx *cli.Context) error {
	log.Println("Loading dataset:", cCtx.String("data"))
	ds, obsCtx, err := loadDataset(cCtx.String("data"))
	if err != nil {
		return err
	}

	plan, err := buildPlan(cCtx, obsCtx)
	if err != nil {
		return err
	}

	numTimesteps := len(obsCtx.TimestampsGPS)
	numBaselines := mwacal.NumBaselines(len(plan.unflaggedTiles))
	layout := pipeline.Layout{NumTimesteps: numTimesteps, NumFreqs: len(plan.unflaggedFreqsHz), NumBaselines: numBaselines}

	source, err := newJSONSource(ds, obsCtx, layout.NumFreqs, numBaselines)
	if err != nil {
		return err
	}

	if err := layout.CheckVisibilityBudget(memoryLimitBytes(cCtx)); err != nil {
		return err
	}

	visData := make([]mwacal.Jones[float32], numTimesteps*layout.NumFreqs*numBaselines)
	visModel := make([]mwacal.Jones[float32], len(visData))
	weights := make([]float32, len(visData))
	tileBaselineFlags := make([]bool, numBaselines)

	writer := newJSONModelWriter(cCtx.String("output-model-file"), numTimesteps, layout.NumFreqs, numBaselines)

	log.Println("Predicting model visibilities for", numTimesteps, "timesteps")
	err = pipeline.Run(
		layout,
		source,
		tileBaselineFlags,
		plan.unflaggedChans,
		plan.sourceModel,
		plan.beamProvider,
		plan.timestepInputsFunc(cCtx.Bool("no-precession")),
		obsCtx.TimestampsGPS,
		visData,
		visModel,
		weights,
		writer,
	)
	if err != nil {
		return err
	}

	log.Println("Writing model visibilities:", cCtx.String("output-model-file"))
	return writer.Close()
}

// runCalibrate drives the full predict-and-solve pipeline: one pipeline run
// reads the data and predicts model visibilities for every timestep, both
// are folded by weight, a coalesced solve over all timesteps seeds each
// timeblock's initial gains, the per-timeblock solve runs in parallel
// across chanblocks, and the resulting solutions cube is persisted as a
// TileDB dense array.
func runCalibrate(cCtx *cli.Context) error {
	log.Println("Loading dataset:", cCtx.String("data"))
	ds, obsCtx, err := loadDataset(cCtx.String("data"))
	if err != nil {
		return err
	}

	plan, err := buildPlan(cCtx, obsCtx)
	if err != nil {
		return err
	}

	numTimesteps := len(obsCtx.TimestampsGPS)
	numTiles := len(plan.unflaggedTiles)
	numBaselines := mwacal.NumBaselines(numTiles)
	numFreqs := len(plan.unflaggedFreqsHz)
	layout := pipeline.Layout{NumTimesteps: numTimesteps, NumFreqs: numFreqs, NumBaselines: numBaselines}

	source, err := newJSONSource(ds, obsCtx, numFreqs, numBaselines)
	if err != nil {
		return err
	}

	if err := layout.CheckVisibilityBudget(memoryLimitBytes(cCtx)); err != nil {
		return err
	}

	firstLMST := mwacal.LST(mwacal.EpochFromGPSSeconds(obsCtx.TimestampsGPS[0]).JulianDate, obsCtx.ArrayLongitudeRadians)
	uvwFlags := mwacal.UVWCutoffBaselineFlags(
		mwacal.CalcUVW(plan.tileXYZ, mwacal.HourAngle(obsCtx.PhaseCentre.RaRadians, firstLMST), obsCtx.PhaseCentre.DecRadians),
		cCtx.Float64("uvw-min-metres"),
		cCtx.Float64("uvw-max-metres"),
	)

	visData := make([]mwacal.Jones[float32], numTimesteps*numFreqs*numBaselines)
	visModel := make([]mwacal.Jones[float32], len(visData))
	weights := make([]float32, len(visData))

	log.Println("Predicting model visibilities and reading observed data for", numTimesteps, "timesteps")
	if err := pipeline.Run(
		layout,
		source,
		uvwFlags,
		plan.unflaggedChans,
		plan.sourceModel,
		plan.beamProvider,
		plan.timestepInputsFunc(cCtx.Bool("no-precession")),
		obsCtx.TimestampsGPS,
		visData,
		visModel,
		weights,
		pipeline.DrainWriter{},
	); err != nil {
		return err
	}

	if err := applyCompanionFlags(cCtx, obsCtx, plan, weights, layout); err != nil {
		return err
	}

	baselineWeights := make([]float32, numBaselines)
	for b := range baselineWeights {
		baselineWeights[b] = 1
		if uvwFlags[b] {
			baselineWeights[b] = 0
		}
	}
	if err := pipeline.FoldWeights(visData, visModel, weights, baselineWeights, layout); err != nil {
		return err
	}

	tuning := calibrate.Tuning{
		MaxIterations: cCtx.Int("max-iterations"),
		StopThreshold: cCtx.Float64("stop-threshold"),
		MinThreshold:  cCtx.Float64("min-threshold"),
	}
	if tuning.MaxIterations == 0 {
		tuning.MaxIterations = calibrate.DefaultTuning.MaxIterations
	}
	if tuning.StopThreshold == 0 {
		tuning.StopThreshold = calibrate.DefaultTuning.StopThreshold
	}
	if tuning.MinThreshold == 0 {
		tuning.MinThreshold = calibrate.DefaultTuning.MinThreshold
	}
	workers := runtime.NumCPU()

	log.Println("Seeding solutions with a coalesced (all-timesteps) solve")
	coalescedSamples := samplesForTimesteps(visData, visModel, weights, layout, 0, numTimesteps, plan.chanblocks, numTiles)
	identity := identitySeed(numTiles, len(plan.chanblocks))
	coalescedResults := calibrate.SolveTimeblockParallel(coalescedSamples, numTiles, identity, tuning, workers)

	seed := make([][]mwacal.Jones[float64], len(plan.chanblocks))
	for i, r := range coalescedResults {
		seed[i] = r.DiJones
	}

	log.Println("Solving", len(plan.timeblocks), "timeblocks across", len(plan.chanblocks), "chanblocks")
	timeblockSolutions := make([]solutions.TimeblockSolution, len(plan.timeblocks))
	for tbIdx, tb := range plan.timeblocks {
		samples := samplesForTimesteps(visData, visModel, weights, layout, tb.FirstTimestepIdx, tb.LastTimestepIdx+1, plan.chanblocks, numTiles)
		results := calibrate.SolveTimeblockParallel(samples, numTiles, seed, tuning, workers)
		timeblockSolutions[tbIdx] = solutions.TimeblockSolution{Chanblocks: results}
		log.Println("Solved timeblock", tbIdx+1, "of", len(plan.timeblocks))
	}

	cube := solutions.BuildCompleteCube(timeblockSolutions, obsCtx.NumTiles, len(obsCtx.ChannelFreqsHz), plan.unflaggedTiles, chanblockIndices(plan.chanblocks))

	md := solutions.Metadata{
		FlaggedTileIndices:      obsCtx.FlaggedTiles,
		FlaggedChanblockIndices: flaggedChanblockIndices(obsCtx, plan.chanblocks),
		ChanblockCentreFreqsHz:  chanblockFreqs(plan.chanblocks),
		MaxIterations:           tuning.MaxIterations,
		StopThreshold:           tuning.StopThreshold,
		MinThreshold:            tuning.MinThreshold,
		UVWCutoffMinMetres:      cCtx.Float64("uvw-min-metres"),
		UVWCutoffMaxMetres:      cCtx.Float64("uvw-max-metres"),
		ModellerIdentity:        "mwacal",
	}
	for _, tb := range plan.timeblocks {
		md.TimeblockFirstTimestamps = append(md.TimeblockFirstTimestamps, tb.FirstTimestampGPS())
		md.TimeblockLastTimestamps = append(md.TimeblockLastTimestamps, tb.LastTimestampGPS())
		md.TimeblockAvgTimestamps = append(md.TimeblockAvgTimestamps, tb.AverageTimestampGPS())
	}

	log.Println("Persisting solutions:", cCtx.String("output-solutions"))
	config, err := tiledb.NewConfig()
	if err != nil {
		return err
	}
	defer config.Free()

	ctx, err := tiledb.NewContext(config)
	if err != nil {
		return err
	}
	defer ctx.Free()

	if err := solutions.Persist(ctx, cCtx.String("output-solutions"), cube, md); err != nil {
		return fmt.Errorf("persisting solutions: %w", err)
	}

	if out := cCtx.String("summary-out"); out != "" {
		log.Println("Writing calibration summary:", out)
		if _, err := encode.WriteJSONIndent(out, "", runSummary(plan, coalescedResults, md)); err != nil {
			return fmt.Errorf("writing calibration summary: %w", err)
		}
	}

	log.Println("Finished calibrate")
	return nil
}

// runSummary assembles the per-run JSON summary an operator inspects
// alongside the TileDB solutions cube: per-chanblock convergence from the
// coalesced seed solve plus the tuning constants and metadata persisted in
// the cube itself.
func runSummary(plan *calibrationPlan, coalesced []calibrate.ChanblockResult, md solutions.Metadata) any {
	type chanblockSummary struct {
		ChanblockIndex int     `json:"chanblock_index"`
		Converged      bool    `json:"converged"`
		NumIterations  int     `json:"num_iterations"`
		NumFailed      int     `json:"num_failed"`
		MaxPrecision   float64 `json:"max_precision"`
	}
	chanblocks := make([]chanblockSummary, len(coalesced))
	for i, r := range coalesced {
		chanblocks[i] = chanblockSummary{
			ChanblockIndex: r.ChanblockIndex,
			Converged:      r.Converged,
			NumIterations:  r.NumIterations,
			NumFailed:      r.NumFailed,
			MaxPrecision:   r.MaxPrecision,
		}
	}
	return struct {
		NumTimeblocks      int                `json:"num_timeblocks"`
		NumChanblocks      int                `json:"num_chanblocks"`
		MaxIterations      int                `json:"max_iterations"`
		StopThreshold      float64            `json:"stop_threshold"`
		MinThreshold       float64            `json:"min_threshold"`
		CoalescedChanblock []chanblockSummary `json:"coalesced_seed_chanblocks"`
	}{
		NumTimeblocks:      len(plan.timeblocks),
		NumChanblocks:      len(plan.chanblocks),
		MaxIterations:      md.MaxIterations,
		StopThreshold:      md.StopThreshold,
		MinThreshold:       md.MinThreshold,
		CoalescedChanblock: chanblocks,
	}
}

// samplesForTimesteps builds one calibrate.Sample per (timestep, baseline)
// pair across timesteps [firstTimestep, lastTimestepExclusive), for each
// chanblock. Fine channels within a chanblock are folded together for a
// given timestep (a uniform scaling the solver's ratio is invariant to),
// but timesteps themselves stay distinct samples: the solver accumulates
// one top/bot term per sample, and collapsing the timestep axis first
// would feed it (sum D)*(sum G M^H) instead of sum(D * G M^H).
func samplesForTimesteps(visData, visModel []mwacal.Jones[float32], weights []float32, layout pipeline.Layout, firstTimestep, lastTimestepExclusive int, chanblocks []mwacal.Chanblock, numTiles int) [][]calibrate.Sample {
	out := make([][]calibrate.Sample, len(chanblocks))
	for cbIdx := range chanblocks {
		var samples []calibrate.Sample
		byBaseline := make([]calibrate.Sample, layout.NumBaselines)
		seen := make([]bool, layout.NumBaselines)
		for t := firstTimestep; t < lastTimestepExclusive; t++ {
			for b := range seen {
				seen[b] = false
			}
			for _, fineIdx := range chanblocks[cbIdx].FineChanIndices {
				fi := denseFreqIndex(fineIdx, chanblocks)
				if fi < 0 || fi >= layout.NumFreqs {
					continue
				}
				base := (t*layout.NumFreqs + fi) * layout.NumBaselines
				for b := 0; b < layout.NumBaselines; b++ {
					idx := base + b
					if weights[idx] <= 0 {
						continue
					}
					if !seen[b] {
						ai, aj := mwacal.BaselineAntennas(numTiles, b)
						byBaseline[b] = calibrate.Sample{AntI: ai, AntJ: aj}
						seen[b] = true
					}
					byBaseline[b].Data = byBaseline[b].Data.Add(visData[idx].ToFloat64()).ToFloat32()
					byBaseline[b].Model = byBaseline[b].Model.Add(visModel[idx].ToFloat64()).ToFloat32()
				}
			}
			// Emit in ascending-baseline order so the solver's accumulation
			// order is the same on every run.
			for b := 0; b < layout.NumBaselines; b++ {
				if seen[b] {
					samples = append(samples, byBaseline[b])
				}
			}
		}
		out[cbIdx] = samples
	}
	return out
}

// denseFreqIndex maps an absolute fine-channel index back to its position
// in the dense unflagged-frequency axis pipeline.Layout uses; chanblocks
// already carry unflagged indices in ascending order so a linear scan is
// adequate at this scale.
func denseFreqIndex(fineIdx int, chanblocks []mwacal.Chanblock) int {
	dense := 0
	for _, cb := range chanblocks {
		for _, idx := range cb.FineChanIndices {
			if idx == fineIdx {
				return dense
			}
			dense++
		}
	}
	return -1
}

// memoryLimitBytes converts --max-memory-gib to a byte limit; zero means
// no limit.
func memoryLimitBytes(cCtx *cli.Context) uint64 {
	gib := cCtx.Float64("max-memory-gib")
	if gib <= 0 {
		return 0
	}
	return uint64(gib * float64(uint64(1)<<30))
}

func identitySeed(numTiles, numChanblocks int) [][]mwacal.Jones[float64] {
	out := make([][]mwacal.Jones[float64], numChanblocks)
	for i := range out {
		row := make([]mwacal.Jones[float64], numTiles)
		for t := range row {
			row[t] = mwacal.IdentityJones()
		}
		out[i] = row
	}
	return out
}

func chanblockIndices(chanblocks []mwacal.Chanblock) []int {
	out := make([]int, len(chanblocks))
	for i, cb := range chanblocks {
		out[i] = cb.ChanblockIndex
	}
	return out
}

func chanblockFreqs(chanblocks []mwacal.Chanblock) []float64 {
	out := make([]float64, len(chanblocks))
	for i, cb := range chanblocks {
		out[i] = cb.CentreFreqHz
	}
	return out
}

func flaggedChanblockIndices(obsCtx *mwacal.ObsContext, chanblocks []mwacal.Chanblock) []int {
	kept := make(map[int]bool, len(chanblocks))
	for _, cb := range chanblocks {
		kept[cb.ChanblockIndex] = true
	}
	var out []int
	for c := range obsCtx.ChannelFreqsHz {
		if !kept[c] {
			out = append(out, c)
		}
	}
	return out
}

func commonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "data", Required: true, Usage: "URI or pathname to a JSON visibility dataset."},
		&cli.StringFlag{Name: "source-list", Required: true, Usage: "URI or pathname to a hyperdrive-style YAML source list."},
		&cli.IntFlag{Name: "num-sources", Value: 500, Usage: "Number of sources to retain after vetoing."},
		&cli.Float64Flag{Name: "source-dist-cutoff-radians", Value: 2.0, Usage: "Maximum angular distance from the phase centre for a candidate source."},
		&cli.Float64Flag{Name: "veto-threshold", Value: 0.0, Usage: "Minimum apparent Stokes I brightness, in Jy, for a candidate source."},
		&cli.IntFlag{Name: "freq-average", Value: 1, Usage: "Number of fine channels to average into one chanblock."},
		&cli.IntFlag{Name: "time-average", Value: 1, Usage: "Number of timesteps to average into one timeblock."},
		&cli.BoolFlag{Name: "unity-dipole-gains", Usage: "Use unity dipole gains instead of a beam model."},
		&cli.Float64Flag{Name: "max-memory-gib", Usage: "Refuse to run if the visibility cubes would exceed this many GiB (0 = unlimited)."},
		&cli.BoolFlag{Name: "no-precession", Usage: "Disable precession to J2000 for LST and array latitude."},
		&cli.StringFlag{Name: "source-list-out", Usage: "Optional path to write the post-veto source list actually used, as YAML."},
	}
}

func main() {
	app := &cli.App{
		Name:  "mwacal",
		Usage: "MWA sky-model visibility prediction and antenna-based gain calibration",
		Commands: []*cli.Command{
			{
				Name:  "simulate",
				Usage: "Predict model visibilities for an observation and write them to a JSON sidecar.",
				Flags: append(commonFlags(), &cli.StringFlag{
					Name:     "output-model-file",
					Required: true,
					Usage:    "URI or pathname for the predicted model-visibility JSON output.",
				}),
				Action: runSimulate,
			},
			{
				Name:  "calibrate",
				Usage: "Predict model visibilities, solve for antenna gains, and persist a solutions cube.",
				Flags: append(commonFlags(),
					&cli.Float64Flag{Name: "uvw-min-metres", Usage: "Baselines shorter than this are excluded from the solve."},
					&cli.Float64Flag{Name: "uvw-max-metres", Usage: "Baselines longer than this are excluded from the solve."},
					&cli.IntFlag{Name: "max-iterations", Usage: "Maximum MitchCal/Stefcal iterations per chanblock (default 50)."},
					&cli.Float64Flag{Name: "stop-threshold", Usage: "Convergence precision threshold (default 1e-8)."},
					&cli.Float64Flag{Name: "min-threshold", Usage: "Minimum acceptable precision at max iterations (default 1e-4)."},
					&cli.StringFlag{Name: "output-solutions", Required: true, Usage: "URI or pathname for the persisted TileDB solutions cube."},
					&cli.StringFlag{Name: "flags-dir", Usage: "Optional directory to recursively search for companion .mwaf flag files."},
					&cli.StringFlag{Name: "flags-producer", Usage: "Companion-flag-file producer tag; \"cotter\" gets the known one-integration start-time correction."},
					&cli.IntFlag{Name: "fine-chans-per-coarse", Value: 32, Usage: "Fine channels per coarse channel/gpubox, for companion flag decoding."},
					&cli.StringFlag{Name: "summary-out", Usage: "Optional path to write a JSON calibration run summary."},
				),
				Action: runCalibrate,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
