package predict

import "math"

// Shapelet basis-function lookup table dimensions: SBFL samples per basis
// order, SBFN orders, step SBFDX, centre offset SBFC. These match the
// conventional RTS/hyperdrive shapelet table geometry.
const (
	SBFN  = 101
	SBFL  = 10001
	SBFC  = float64(SBFL-1) / 2
	SBFDX = 0.01
)

// ShapeletBasisTable holds SBFN*SBFL samples of the 1-D Hermite-Gaussian
// basis functions used by the shapelet envelope. Both the CPU and any
// accelerator path consume identical table contents, so the table is
// generated once analytically rather than hardcoded.
type ShapeletBasisTable struct {
	Values []float64 // length SBFN*SBFL, row n at [n*SBFL : (n+1)*SBFL]
}

// NewShapeletBasisTable generates the basis-function table by evaluating
// the physicists' Hermite polynomials against a Gaussian envelope at
// SBFL points spanning [-SBFC*SBFDX, +SBFC*SBFDX], normalised the
// conventional shapelet way: phi_n(x) = H_n(x) * exp(-x^2/2) /
// sqrt(2^n * n! * sqrt(pi)).
func NewShapeletBasisTable() *ShapeletBasisTable {
	t := &ShapeletBasisTable{Values: make([]float64, SBFN*SBFL)}
	for i := 0; i < SBFL; i++ {
		x := (float64(i) - SBFC) * SBFDX
		hermite := hermitePhysicists(SBFN, x)
		gauss := math.Exp(-x * x / 2)
		for n := 0; n < SBFN; n++ {
			norm := 1.0 / math.Sqrt(math.Pow(2, float64(n))*factorial(n)*math.Sqrt(math.Pi))
			t.Values[n*SBFL+i] = hermite[n] * gauss * norm
		}
	}
	return t
}

// hermitePhysicists returns H_0(x) .. H_{n-1}(x) via the standard
// three-term recurrence H_{k+1} = 2x*H_k - 2k*H_{k-1}.
func hermitePhysicists(n int, x float64) []float64 {
	h := make([]float64, n)
	if n == 0 {
		return h
	}
	h[0] = 1
	if n == 1 {
		return h
	}
	h[1] = 2 * x
	for k := 1; k < n-1; k++ {
		h[k+1] = 2*x*h[k] - 2*float64(k)*h[k-1]
	}
	return h
}

func factorial(n int) float64 {
	f := 1.0
	for i := 2; i <= n; i++ {
		f *= float64(i)
	}
	return f
}

// Lookup performs linear interpolation L(n, p) between table entries
// SBF[n*SBFL + floor(p)] and SBF[n*SBFL + floor(p) + 1] at fractional
// position p - floor(p). p out of [0, SBFL-1) is a programmer error: the
// caller must guarantee component sizes and the SBF table match.
func (t *ShapeletBasisTable) Lookup(n int, p float64) float64 {
	lo := int(math.Floor(p))
	if lo < 0 || lo+1 >= SBFL {
		panic("predict: shapelet basis lookup position out of range")
	}
	frac := p - float64(lo)
	row := n * SBFL
	a := t.Values[row+lo]
	b := t.Values[row+lo+1]
	return a + (b-a)*frac
}
