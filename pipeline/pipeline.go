// Package pipeline drives the three-task "read, model, write" phase of
// calibration: a reader, a modeller, and an optional writer, cooperating
// over bounded channels with a shared cancellation flag.
package pipeline

import (
	"fmt"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/skyflux-astro/mwacal"
	"github.com/skyflux-astro/mwacal/beam"
	"github.com/skyflux-astro/mwacal/predict"
)

// Layout describes the fixed-size slices the driver owns for the whole
// run: vis_data_tfb, vis_model_tfb, and weights_tfb, each shaped
// (numTimesteps, numUnflaggedFreqs, numUnflaggedBaselines).
type Layout struct {
	NumTimesteps int
	NumFreqs     int
	NumBaselines int
}

func (l Layout) timestepLen() int { return l.NumFreqs * l.NumBaselines }

// visCubeBytes is the storage cost of one (timestep, freq, baseline) Jones
// sample; weightBytes the cost of its weight.
const (
	visCubeBytes = uint64(unsafe.Sizeof(mwacal.Jones[float32]{}))
	weightBytes  = uint64(unsafe.Sizeof(float32(0)))
)

// CheckVisibilityBudget verifies the working set of the run's three
// driver-owned cubes (observed, model, weights) fits within limitBytes
// before anything is allocated, reporting the single largest refused
// allocation and the total working set on failure. A zero limit disables
// the check.
func (l Layout) CheckVisibilityBudget(limitBytes uint64) error {
	if limitBytes == 0 {
		return nil
	}
	samples := uint64(l.NumTimesteps) * uint64(l.timestepLen())
	cube := samples * visCubeBytes
	total := 2*cube + samples*weightBytes
	if total > limitBytes {
		return &mwacal.InsufficientMemoryError{RequestedBytes: cube, TotalBytes: total}
	}
	return nil
}

// readSignal tells the modeller one timestep's observed data is ready.
type readSignal struct {
	timestepIdx int
}

// timestepMessage is what the modeller forwards to the writer: a read-only
// view of one timestep's model visibilities plus its weight factor and
// optional auto-correlation payload.
type timestepMessage struct {
	timestepIdx  int
	timestampGPS float64
	modelFB      []mwacal.Jones[float32]
	weightsFB    []float32
	autosF       []mwacal.Jones[float32]
}

// Writer is the optional output sink; callers with no configured output
// pass a DrainWriter.
type Writer interface {
	WriteTimestep(visFB []mwacal.Jones[float32], weightsFB []float32, autosF []mwacal.Jones[float32], timestepIdx int, timestampGPS float64) error
	Close() error
}

// DrainWriter discards every timestep; used when no model-visibility
// output is configured.
type DrainWriter struct{}

func (DrainWriter) WriteTimestep([]mwacal.Jones[float32], []float32, []mwacal.Jones[float32], int, float64) error {
	return nil
}
func (DrainWriter) Close() error { return nil }

// Run executes the reader/modeller/writer pipeline for every timestep.
// visDataTFB, visModelTFB and weightsTFB must already be sized
// layout.NumTimesteps*layout.timestepLen(); Run fills visDataTFB via
// source and visModelTFB via sourceModel/beamProvider, then forwards each
// timestep to writer, stamped with its GPS timestamp from timestampsGPS
// (which must carry layout.NumTimesteps entries).
//
// If reading or modelling fails for any timestep, Run posts the error,
// flips the shared cancellation flag, and returns once every task has
// observed it and exited.
func Run(
	layout Layout,
	source mwacal.ObservedVisibilitySource,
	tileBaselineFlags []bool,
	flaggedFineChans []int,
	sourceModel *predict.SourceModel,
	beamProvider beam.BatchProvider,
	timestepInputs func(timestepIdx int) predict.TimestepInputs,
	timestampsGPS []float64,
	visDataTFB []mwacal.Jones[float32],
	visModelTFB []mwacal.Jones[float32],
	weightsTFB []float32,
	writer Writer,
) error {
	if len(timestampsGPS) != layout.NumTimesteps {
		return fmt.Errorf("%w: %d timestamps for %d timesteps", mwacal.ErrInvalidCalibrationInput, len(timestampsGPS), layout.NumTimesteps)
	}
	var cancelled atomic.Bool

	readDone := make(chan readSignal, 1)
	modelDone := make(chan timestepMessage, 1)
	errs := make(chan error, 3)

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		readerTask(layout, source, tileBaselineFlags, flaggedFineChans, visDataTFB, weightsTFB, &cancelled, readDone, errs)
	}()
	go func() {
		defer wg.Done()
		modellerTask(layout, sourceModel, beamProvider, timestepInputs, timestampsGPS, visModelTFB, weightsTFB, &cancelled, readDone, modelDone, errs)
	}()
	go func() {
		defer wg.Done()
		writerTask(layout, writer, &cancelled, modelDone, errs)
	}()

	wg.Wait()
	close(errs)

	for err := range errs {
		cancelled.Store(true)
		return fmt.Errorf("pipeline: %w", err)
	}
	return nil
}

func readerTask(layout Layout, source mwacal.ObservedVisibilitySource, tileBaselineFlags []bool, flaggedFineChans []int, visDataTFB []mwacal.Jones[float32], weightsTFB []float32, cancelled *atomic.Bool, done chan<- readSignal, errs chan<- error) {
	defer close(done)
	stride := layout.timestepLen()
	for t := 0; t < layout.NumTimesteps; t++ {
		if cancelled.Load() {
			return
		}
		if err := source.ReadCrosses(visDataTFB[t*stride:(t+1)*stride], weightsTFB[t*stride:(t+1)*stride], t, tileBaselineFlags, flaggedFineChans); err != nil {
			errs <- fmt.Errorf("%w: reading timestep %d: %v", mwacal.ErrInputMalformed, t, err)
			cancelled.Store(true)
			return
		}
		done <- readSignal{timestepIdx: t}
	}
}

func modellerTask(layout Layout, sourceModel *predict.SourceModel, beamProvider beam.BatchProvider, timestepInputs func(int) predict.TimestepInputs, timestampsGPS []float64, visModelTFB []mwacal.Jones[float32], weightsTFB []float32, cancelled *atomic.Bool, readDone <-chan readSignal, out chan<- timestepMessage, errs chan<- error) {
	defer close(out)
	// On an early return, keep receiving until the reader observes the
	// cancellation flag and closes readDone, so it never blocks on a send.
	defer func() {
		for range readDone {
		}
	}()
	stride := layout.timestepLen()
	for r := range readDone {
		if cancelled.Load() {
			return
		}
		t := r.timestepIdx
		slice := visModelTFB[t*stride : (t+1)*stride]
		for i := range slice {
			slice[i] = mwacal.Jones[float32]{}
		}

		if err := predict.ExecuteTimestep(sourceModel, beamProvider, timestepInputs(t), slice); err != nil {
			errs <- fmt.Errorf("modelling timestep %d: %w", t, err)
			cancelled.Store(true)
			return
		}

		out <- timestepMessage{
			timestepIdx:  t,
			timestampGPS: timestampsGPS[t],
			modelFB:      slice,
			weightsFB:    weightsTFB[t*stride : (t+1)*stride],
		}
	}
}

func writerTask(layout Layout, w Writer, cancelled *atomic.Bool, in <-chan timestepMessage, errs chan<- error) {
	for msg := range in {
		if cancelled.Load() {
			return
		}
		if err := w.WriteTimestep(msg.modelFB, msg.weightsFB, msg.autosF, msg.timestepIdx, msg.timestampGPS); err != nil {
			errs <- fmt.Errorf("writing timestep %d: %w", msg.timestepIdx, err)
			cancelled.Store(true)
			return
		}
	}
}

// FoldWeights applies the post-accumulation weight fold: multiplies
// observed and model visibilities by weight*baselineWeight, and zeroes
// both wherever the effective weight is <= 0.
func FoldWeights(visDataTFB, visModelTFB []mwacal.Jones[float32], weightsTFB []float32, baselineWeights []float32, layout Layout) error {
	if len(baselineWeights) != layout.NumBaselines {
		return fmt.Errorf("%w: baseline weight count %d does not match layout's %d baselines", mwacal.ErrInvalidCalibrationInput, len(baselineWeights), layout.NumBaselines)
	}

	for t := 0; t < layout.NumTimesteps; t++ {
		for f := 0; f < layout.NumFreqs; f++ {
			base := (t*layout.NumFreqs + f) * layout.NumBaselines
			for b := 0; b < layout.NumBaselines; b++ {
				idx := base + b
				effective := weightsTFB[idx] * baselineWeights[b]
				if effective <= 0 {
					visDataTFB[idx] = mwacal.Jones[float32]{}
					visModelTFB[idx] = mwacal.Jones[float32]{}
					weightsTFB[idx] = 0
					continue
				}
				visDataTFB[idx] = visDataTFB[idx].ToFloat64().Scale(float64(effective)).ToFloat32()
				visModelTFB[idx] = visModelTFB[idx].ToFloat64().Scale(float64(effective)).ToFloat32()
				weightsTFB[idx] = effective
			}
		}
	}
	return nil
}
