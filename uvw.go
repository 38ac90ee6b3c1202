package mwacal

import "math"

// UVW is a baseline vector in metres, aligned with the phase-centre frame:
// (u, v) perpendicular to the line of sight, w along it.
type UVW struct {
	U, V, W float64
}

// AntennaXYZ is a geodetic XYZ antenna position in metres.
type AntennaXYZ struct {
	X, Y, Z float64
}

// BaselineIndex returns the canonical cross-correlation lower-triangular
// index for (i, j), i<j, across N antennas: index b enumerates (i, j) in
// lexicographic (i, j) order.
func BaselineIndex(nAntennas, i, j int) int {
	// count of pairs with first index < i, then offset within row i.
	return i*nAntennas - i*(i+1)/2 + (j - i - 1)
}

// NumBaselines returns N(N-1)/2 for N antennas.
func NumBaselines(nAntennas int) int {
	return nAntennas * (nAntennas - 1) / 2
}

// BaselineAntennas returns the (i, j) pair for baseline index b, the
// inverse of BaselineIndex.
func BaselineAntennas(nAntennas, b int) (i, j int) {
	for i = 0; i < nAntennas; i++ {
		rowLen := nAntennas - i - 1
		if b < rowLen {
			return i, i + 1 + b
		}
		b -= rowLen
	}
	panic("mwacal: baseline index out of range")
}

// CalcUVW computes the cross-correlation UVW triples, in metres, for N
// antennas given their geodetic XYZ positions and a phase-centre hour
// angle/declination. The rotation follows the standard
// convention: rotate the baseline (Xj - Xi) into the (u, v, w) frame
// defined by the hour angle and declination.
func CalcUVW(positions []AntennaXYZ, ha, dec float64) []UVW {
	n := len(positions)
	out := make([]UVW, NumBaselines(n))

	sinHa, cosHa := math.Sin(ha), math.Cos(ha)
	sinDec, cosDec := math.Sin(dec), math.Cos(dec)

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			dx := positions[j].X - positions[i].X
			dy := positions[j].Y - positions[i].Y
			dz := positions[j].Z - positions[i].Z

			u := sinHa*dx + cosHa*dy
			v := -sinDec*cosHa*dx + sinDec*sinHa*dy + cosDec*dz
			w := cosDec*cosHa*dx - cosDec*sinHa*dy + sinDec*dz

			out[BaselineIndex(n, i, j)] = UVW{U: u, V: v, W: w}
		}
	}
	return out
}

// CalcUVWParallel is the parallel variant of CalcUVW. Both produce
// identical output; this splits the antenna-i loop across a
// bounded worker pool when there are enough antennas to make it worthwhile.
func CalcUVWParallel(positions []AntennaXYZ, ha, dec float64, workers int) []UVW {
	n := len(positions)
	if workers < 2 || n < 64 {
		return CalcUVW(positions, ha, dec)
	}

	out := make([]UVW, NumBaselines(n))
	sinHa, cosHa := math.Sin(ha), math.Cos(ha)
	sinDec, cosDec := math.Sin(dec), math.Cos(dec)

	rowsPerWorker := (n + workers - 1) / workers
	done := make(chan struct{}, workers)
	started := 0
	for start := 0; start < n; start += rowsPerWorker {
		end := start + rowsPerWorker
		if end > n {
			end = n
		}
		started++
		go func(lo, hi int) {
			for i := lo; i < hi; i++ {
				for j := i + 1; j < n; j++ {
					dx := positions[j].X - positions[i].X
					dy := positions[j].Y - positions[i].Y
					dz := positions[j].Z - positions[i].Z

					u := sinHa*dx + cosHa*dy
					v := -sinDec*cosHa*dx + sinDec*sinHa*dy + cosDec*dz
					w := cosDec*cosHa*dx - cosDec*sinHa*dy + sinDec*dz

					out[BaselineIndex(n, i, j)] = UVW{U: u, V: v, W: w}
				}
			}
			done <- struct{}{}
		}(start, end)
	}
	for k := 0; k < started; k++ {
		<-done
	}
	return out
}

// LengthMetres returns sqrt(u^2+v^2+w^2) in metres, used by the UVW-cutoff
// baseline filter.
func (w UVW) LengthMetres() float64 {
	return math.Sqrt(w.U*w.U + w.V*w.V + w.W*w.W)
}

// LengthWavelengths returns the baseline length in wavelengths at freqHz.
func (w UVW) LengthWavelengths(freqHz float64) float64 {
	const speedOfLightMetresPerSecond = 299792458.0
	return w.LengthMetres() / (speedOfLightMetresPerSecond / freqHz)
}

// UVWCutoffBaselineFlags returns, for each baseline in uvwMetres, whether it
// falls outside [minMetres, maxMetres] per the --uvw-min/--uvw-max
// baseline filter. A zero bound is treated as "no bound" on that side.
func UVWCutoffBaselineFlags(uvwMetres []UVW, minMetres, maxMetres float64) []bool {
	out := make([]bool, len(uvwMetres))
	for i, uvw := range uvwMetres {
		length := uvw.LengthMetres()
		out[i] = (minMetres > 0 && length < minMetres) || (maxMetres > 0 && length > maxMetres)
	}
	return out
}
