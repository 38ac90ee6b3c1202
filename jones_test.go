package mwacal

import (
	"math"
	"testing"
)

func TestJonesInverseIdentity(t *testing.T) {
	j := Jones[float64]{
		J00: complex(1.2, 0.3),
		J01: complex(-0.1, 0.05),
		J10: complex(0.2, -0.04),
		J11: complex(0.9, -0.1),
	}
	inv, ok := j.Inverse()
	if !ok {
		t.Fatalf("expected invertible matrix")
	}
	product := j.Mul(inv)
	id := IdentityJones()
	if product.MaxAbsDiffSq(id) > 1e-20 {
		t.Errorf("j * j^-1 != identity, got %+v", product)
	}
}

func TestJonesInverseSingular(t *testing.T) {
	j := Jones[float64]{J00: 1, J01: 2, J10: 2, J11: 4} // det = 0
	inv, ok := j.Inverse()
	if ok {
		t.Fatalf("expected singular matrix to report ok=false")
	}
	if !inv.IsNaN() {
		t.Errorf("expected NaN-filled result for a singular matrix")
	}
}

func TestJonesHermitian(t *testing.T) {
	j := Jones[float64]{
		J00: complex(1, 2),
		J01: complex(3, -1),
		J10: complex(-2, 5),
		J11: complex(0, -3),
	}
	h := j.H()
	if h.J00 != complex(1, -2) || h.J11 != complex(0, 3) {
		t.Errorf("diagonal conjugation wrong: %+v", h)
	}
	if h.J01 != complex(-2, -5) || h.J10 != complex(3, 1) {
		t.Errorf("off-diagonal transpose+conjugation wrong: %+v", h)
	}
}

func TestStokesToJonesRoundTrip(t *testing.T) {
	j := StokesToJones(2.0, 0.5, 0.3, -0.1)
	if real(j.J00) != 2.5 || real(j.J11) != 1.5 {
		t.Errorf("I+Q/I-Q diagonal wrong: %+v", j)
	}
	if j.J01 != complex(0.3, -0.1) || j.J10 != complex(0.3, 0.1) {
		t.Errorf("U+-iV off-diagonal wrong: %+v", j)
	}
}

func TestNaNJonesIsNaN(t *testing.T) {
	if !NaNJones().IsNaN() {
		t.Errorf("NaNJones() should report IsNaN() true")
	}
	if IdentityJones().IsNaN() {
		t.Errorf("IdentityJones() should not report IsNaN()")
	}
}

func TestDivElementwiseZeroDenominator(t *testing.T) {
	a := Jones[float64]{J00: 1, J01: 1, J10: 1, J11: 1}
	b := Jones[float64]{J00: 0, J01: 1, J10: 1, J11: 1}
	got := a.DivElementwise(b)
	if !math.IsNaN(real(got.J00)) {
		t.Errorf("dividing by zero element should yield NaN, got %+v", got.J00)
	}
}
