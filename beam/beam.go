// Package beam defines the capability interface the predictor and source
// vetoing consume for primary-beam response queries. The electromagnetic
// modelling itself (the FEE beam) lives outside this module; this package
// only fixes the small operation set the core requires and makes no
// assumption about beam internals.
package beam

import "github.com/skyflux-astro/mwacal"

// AzEl is an (azimuth, zenith angle) pointing, both radians.
type AzEl struct {
	AzimuthRadians     float64
	ZenithAngleRadians float64
}

// Provider returns, for a set of (azimuth, zenith-angle, frequency,
// antenna) queries, a 2x2 complex Jones matrix describing the instrument
// response. A "no-beam" implementation returning identity is mandatory;
// NoBeam below is it.
type Provider interface {
	// CalcJones returns the Jones matrix for a single antenna, on the CPU
	// path.
	CalcJones(azel AzEl, freqHz float64, tileIndex int) (mwacal.Jones[float64], error)

	// DipoleDelays and UnityDipoleGains report the construction-time beam
	// configuration; the core treats them as opaque inputs, never
	// interpreting them itself.
	DipoleDelays() [16]int
	UnityDipoleGains() bool
}

// BatchQuery is one (az, za, freq, component) query in a batched request;
// ComponentIndex lets the caller recover which component each returned
// Jones belongs to without needing parallel slices threaded through the
// beam provider.
type BatchQuery struct {
	AzEl           AzEl
	FreqHz         float64
	TileIndex      int
	ComponentIndex int
}

// BatchProvider is the accelerated-path batched query capability: one call
// computes every (tile, freq, component) Jones a predictor bin needs for a
// timestep, rather than one CPU call per component.
type BatchProvider interface {
	Provider

	// CalcJonesBatched returns one Jones matrix per query, in the same
	// order as queries.
	CalcJonesBatched(queries []BatchQuery, latitude float64) ([]mwacal.Jones[float64], error)

	// NumUniqueTiles and NumUniqueFreqs report the batch's dimensionality
	// so accelerator paths can size device buffers without re-deriving it
	// from the query list.
	NumUniqueTiles() int
	NumUniqueFreqs() int
}

// NoBeam is the trivial "no beam" implementation: every query returns the
// identity matrix.
type NoBeam struct {
	Delays      [16]int
	UnityGains  bool
}

var _ BatchProvider = NoBeam{}

// CalcJones always returns identity.
func (NoBeam) CalcJones(AzEl, float64, int) (mwacal.Jones[float64], error) {
	return mwacal.IdentityJones(), nil
}

// CalcJonesBatched returns identity for every query.
func (NoBeam) CalcJonesBatched(queries []BatchQuery, _ float64) ([]mwacal.Jones[float64], error) {
	out := make([]mwacal.Jones[float64], len(queries))
	id := mwacal.IdentityJones()
	for i := range out {
		out[i] = id
	}
	return out, nil
}

// NumUniqueTiles reports 1: identity doesn't vary per tile.
func (NoBeam) NumUniqueTiles() int { return 1 }

// NumUniqueFreqs reports 1: identity doesn't vary per frequency.
func (NoBeam) NumUniqueFreqs() int { return 1 }

// DipoleDelays returns the configured delays, unused by NoBeam itself but
// carried so callers that introspect beam configuration don't need a type
// switch.
func (n NoBeam) DipoleDelays() [16]int { return n.Delays }

// UnityDipoleGains reports the configured flag.
func (n NoBeam) UnityDipoleGains() bool { return n.UnityGains }

// TileZeroSampler adapts a Provider to mwacal.TileZeroBeamSampler, the
// narrow interface source vetoing consumes: a Jones query against tile 0
// only.
type TileZeroSampler struct {
	Provider Provider
}

var _ mwacal.TileZeroBeamSampler = TileZeroSampler{}

// SampleTileZero queries the wrapped Provider at tile index 0.
func (s TileZeroSampler) SampleTileZero(azel mwacal.AzEl, freqHz float64) (mwacal.Jones[float64], error) {
	return s.Provider.CalcJones(AzEl{AzimuthRadians: azel.AzimuthRadians, ZenithAngleRadians: azel.ZenithAngleRadians}, freqHz, 0)
}
