package mwacal

import "math"

// Jones is a 2x2 complex matrix representing the polarised response of one
// antenna, or the polarised visibility of one baseline, on the instrumental
// (X, Y) basis. Elements are stored row-major: J00 J01 / J10 J11.
//
// Two precisions are used across the codebase: Jones[float64] for all
// accumulation, Jones[float32] for storage and wire format.
type Jones[T float32 | float64] struct {
	J00, J01, J10, J11 complex128
}

// IdentityJones returns the 2x2 identity matrix.
func IdentityJones() Jones[float64] {
	return Jones[float64]{J00: 1, J01: 0, J10: 0, J11: 1}
}

// ZeroJones returns the 2x2 zero matrix.
func ZeroJones() Jones[float64] {
	return Jones[float64]{}
}

// NaNJones returns a Jones matrix with every element NaN.
func NaNJones() Jones[float64] {
	n := complex(math.NaN(), math.NaN())
	return Jones[float64]{J00: n, J01: n, J10: n, J11: n}
}

// IsNaN reports whether any element of j is NaN.
func (j Jones[T]) IsNaN() bool {
	return cplxIsNaN(j.J00) || cplxIsNaN(j.J01) || cplxIsNaN(j.J10) || cplxIsNaN(j.J11)
}

func cplxIsNaN(c complex128) bool {
	return math.IsNaN(real(c)) || math.IsNaN(imag(c))
}

// Add returns j + o.
func (j Jones[T]) Add(o Jones[T]) Jones[T] {
	return Jones[T]{J00: j.J00 + o.J00, J01: j.J01 + o.J01, J10: j.J10 + o.J10, J11: j.J11 + o.J11}
}

// Scale returns j scaled uniformly by a real factor.
func (j Jones[T]) Scale(s float64) Jones[T] {
	c := complex(s, 0)
	return Jones[T]{J00: j.J00 * c, J01: j.J01 * c, J10: j.J10 * c, J11: j.J11 * c}
}

// ScaleComplex returns j scaled uniformly by a complex factor (used for the
// per-component phase rotation in the predictor's visibility kernel).
func (j Jones[T]) ScaleComplex(c complex128) Jones[T] {
	return Jones[T]{J00: j.J00 * c, J01: j.J01 * c, J10: j.J10 * c, J11: j.J11 * c}
}

// Mul returns the matrix product j * o.
func (j Jones[T]) Mul(o Jones[T]) Jones[T] {
	return Jones[T]{
		J00: j.J00*o.J00 + j.J01*o.J10,
		J01: j.J00*o.J01 + j.J01*o.J11,
		J10: j.J10*o.J00 + j.J11*o.J10,
		J11: j.J10*o.J01 + j.J11*o.J11,
	}
}

// H returns the Hermitian (conjugate) transpose, commonly written J^H.
func (j Jones[T]) H() Jones[T] {
	return Jones[T]{
		J00: complexConj(j.J00),
		J01: complexConj(j.J10),
		J10: complexConj(j.J01),
		J11: complexConj(j.J11),
	}
}

func complexConj(c complex128) complex128 {
	return complex(real(c), -imag(c))
}

// Det returns the matrix determinant.
func (j Jones[T]) Det() complex128 {
	return j.J00*j.J11 - j.J01*j.J10
}

// Inverse returns the matrix inverse. If the determinant is exactly zero or
// NaN, ok is false and the returned matrix is NaN-filled.
func (j Jones[T]) Inverse() (Jones[T], bool) {
	det := j.Det()
	if det == 0 || cplxIsNaN(det) {
		n := complex(math.NaN(), math.NaN())
		return Jones[T]{J00: n, J01: n, J10: n, J11: n}, false
	}
	inv := 1 / det
	return Jones[T]{
		J00: j.J11 * inv,
		J01: -j.J01 * inv,
		J10: -j.J10 * inv,
		J11: j.J00 * inv,
	}, true
}

// Div returns the element that "divides" j by o in the MitchCal sense:
// matrix division via right-multiplication by the inverse, i.e. j * o^-1.
// The solver instead uses scalar-per-element division (top/bot), exposed
// via DivElementwise.
func (j Jones[T]) Div(o Jones[T]) Jones[T] {
	inv, ok := o.Inverse()
	if !ok {
		return NaNJonesT[T]()
	}
	return j.Mul(inv)
}

// DivElementwise divides j by o element by element. This is what the
// MitchCal inner loop actually uses for `new_a = top[a] / bot[a]` — both
// top and bot are per-antenna accumulators, not necessarily invertible
// matrices, and the solver's division is defined per matrix element.
func (j Jones[T]) DivElementwise(o Jones[T]) Jones[T] {
	return Jones[T]{
		J00: divComplex(j.J00, o.J00),
		J01: divComplex(j.J01, o.J01),
		J10: divComplex(j.J10, o.J10),
		J11: divComplex(j.J11, o.J11),
	}
}

func divComplex(a, b complex128) complex128 {
	if b == 0 {
		return complex(math.NaN(), math.NaN())
	}
	return a / b
}

// NaNJonesT returns a NaN-filled Jones matrix at the requested precision.
func NaNJonesT[T float32 | float64]() Jones[T] {
	n := complex(math.NaN(), math.NaN())
	return Jones[T]{J00: n, J01: n, J10: n, J11: n}
}

// ToFloat32 returns a Jones[float32] holding the same (narrowed) values.
func (j Jones[T]) ToFloat32() Jones[float32] {
	return Jones[float32]{
		J00: complex128(complex64(j.J00)),
		J01: complex128(complex64(j.J01)),
		J10: complex128(complex64(j.J10)),
		J11: complex128(complex64(j.J11)),
	}
}

// ToFloat64 returns a Jones[float64] holding the same values.
func (j Jones[T]) ToFloat64() Jones[float64] {
	return Jones[float64]{J00: j.J00, J01: j.J01, J10: j.J10, J11: j.J11}
}

// MaxAbsDiffSq returns the maximum squared magnitude of the elementwise
// difference between j and o. The solver uses it for its first-iteration
// top/bot equality check; its per-polarisation precision uses AbsDiffSq4.
func (j Jones[T]) MaxAbsDiffSq(o Jones[T]) float64 {
	d0 := cmplxAbsSq(j.J00 - o.J00)
	d1 := cmplxAbsSq(j.J01 - o.J01)
	d2 := cmplxAbsSq(j.J10 - o.J10)
	d3 := cmplxAbsSq(j.J11 - o.J11)
	return math.Max(math.Max(d0, d1), math.Max(d2, d3))
}

func cmplxAbsSq(c complex128) float64 {
	return real(c)*real(c) + imag(c)*imag(c)
}

// AbsDiffSq4 returns the four per-element squared magnitudes of the
// elementwise difference j - o, in J00,J01,J10,J11 order. The solver
// accumulates these per polarisation independently.
func (j Jones[T]) AbsDiffSq4(o Jones[T]) [4]float64 {
	return [4]float64{
		cmplxAbsSq(j.J00 - o.J00),
		cmplxAbsSq(j.J01 - o.J01),
		cmplxAbsSq(j.J10 - o.J10),
		cmplxAbsSq(j.J11 - o.J11),
	}
}

// StokesToJones converts a Stokes flux density {I, Q, U, V} to an
// instrumental 2x2 Jones matrix:
// [[I+Q, U+iV], [U-iV, I-Q]].
func StokesToJones(i, q, u, v float64) Jones[float64] {
	return Jones[float64]{
		J00: complex(i+q, 0),
		J01: complex(u, v),
		J10: complex(u, -v),
		J11: complex(i-q, 0),
	}
}
