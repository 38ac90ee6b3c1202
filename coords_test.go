package mwacal

import (
	"math"
	"testing"
)

func TestHourAngleWrapsPositive(t *testing.T) {
	ha := HourAngle(5.5, 0.1)
	if ha < 0 || ha > 2*math.Pi {
		t.Fatalf("hour angle out of [0, 2pi): %v", ha)
	}
	want := math.Mod(0.1-5.5+4*math.Pi, 2*math.Pi)
	if math.Abs(ha-want) > 1e-12 {
		t.Errorf("got %v, want %v", ha, want)
	}
}

func TestToLMNAtPhaseCentreIsZenith(t *testing.T) {
	pc := RaDec{RaRadians: 1.2, DecRadians: -0.4}
	l, m, n := ToLMN(pc, pc)
	if math.Abs(l) > 1e-12 || math.Abs(m) > 1e-12 || math.Abs(n-1) > 1e-12 {
		t.Errorf("expected (0, 0, 1) at phase centre, got (%v, %v, %v)", l, m, n)
	}
}

func TestPrepareForRIMEAtPhaseCentreIsZero(t *testing.T) {
	lRad, mRad, nRad := PrepareForRIME(0, 0, 1)
	if lRad != 0 || mRad != 0 || nRad != 0 {
		t.Errorf("expected (0, 0, 0) after the n-1 shift, got (%v, %v, %v)", lRad, mRad, nRad)
	}
}

func TestHADecToAzElZenith(t *testing.T) {
	// At ha=0, dec==latitude, the source is at zenith: el=pi/2, az undefined
	// but must not panic or produce NaN from the cos(el)==0 division.
	az, el := HADecToAzEl(0, 0.5, 0.5)
	if math.Abs(el-math.Pi/2) > 1e-9 {
		t.Errorf("expected zenith elevation, got %v", el)
	}
	if math.IsNaN(az) {
		t.Errorf("azimuth at zenith should not be NaN")
	}
}

func TestAngularSeparationRadiansSamePointIsZero(t *testing.T) {
	a := RaDec{RaRadians: 1.0, DecRadians: 0.3}
	if sep := AngularSeparationRadians(a, a); sep > 1e-12 {
		t.Errorf("expected zero separation for identical points, got %v", sep)
	}
}

func TestAngularSeparationRadiansAntipodal(t *testing.T) {
	a := RaDec{RaRadians: 0, DecRadians: math.Pi / 2}
	b := RaDec{RaRadians: 0, DecRadians: -math.Pi / 2}
	sep := AngularSeparationRadians(a, b)
	if math.Abs(sep-math.Pi) > 1e-9 {
		t.Errorf("expected pole-to-pole separation of pi, got %v", sep)
	}
}

func TestEpochGPSSecondsRoundTrip(t *testing.T) {
	const gps = 1234567890.0
	e := EpochFromGPSSeconds(gps)
	if math.Abs(e.GPSSeconds()-gps) > 1e-6 {
		t.Errorf("GPS seconds round trip: got %v, want %v", e.GPSSeconds(), gps)
	}
}

func TestNoPrecessionIsIdentity(t *testing.T) {
	e := EpochFromGPSSeconds(1234567890.0)
	r := NoPrecession(0.5, -0.4, e, 0)
	if r.Rotation != identity3x3() {
		t.Errorf("expected identity rotation, got %+v", r.Rotation)
	}
	if r.LatitudeJ2000 != -0.4 {
		t.Errorf("expected latitude passed through unchanged, got %v", r.LatitudeJ2000)
	}
	if r.LMSTEpoch != r.LMSTJ2000 {
		t.Errorf("expected LMSTEpoch == LMSTJ2000 with no precession")
	}
}

func TestPrecessToJ2000AtJ2000EpochIsNearIdentity(t *testing.T) {
	e := Epoch{JulianDate: j2000JD}
	r := PrecessToJ2000(0.5, -0.4, RaDec{}, e, 0)
	// t=0 at the J2000 epoch itself: zeta, z, theta are all zero, so the
	// rotation collapses to identity and latitude is unchanged.
	id := identity3x3()
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if math.Abs(r.Rotation[i][j]-id[i][j]) > 1e-12 {
				t.Errorf("rotation[%d][%d]: got %v, want %v", i, j, r.Rotation[i][j], id[i][j])
			}
		}
	}
	if math.Abs(r.LatitudeJ2000-(-0.4)) > 1e-9 {
		t.Errorf("expected latitude unchanged at the J2000 epoch, got %v", r.LatitudeJ2000)
	}
}
