package mwacal

import (
	"math"
	"time"

	"github.com/soniakeys/meeus/v3/julian"
)

// Epoch is a high-precision instant, stored as a Julian date to keep the
// core's arithmetic in one consistent representation; conversions to
// GPS/UTC seconds live at the edges (observation-context construction).
// The constructors apply no DUT1 correction: PrecessToJ2000 and
// NoPrecession add DUT1 to the stored date themselves to form UT1.
type Epoch struct {
	JulianDate float64
}

// gpsEpochJD is the Julian date of the GPS epoch, 1980-01-06T00:00:00 UTC.
const gpsEpochJD = 2444244.5

// EpochFromGPSSeconds converts GPS seconds (no leap-second correction, as
// GPS time doesn't have leap seconds) to an Epoch.
func EpochFromGPSSeconds(gpsSeconds float64) Epoch {
	return Epoch{JulianDate: gpsEpochJD + gpsSeconds/86400.0}
}

// EpochFromTime converts a calendar time.Time (treated as UTC) to an Epoch
// using meeus/julian's Gregorian-calendar day-number conversion.
func EpochFromTime(t time.Time) Epoch {
	u := t.UTC()
	y, m, d := u.Date()
	dayFrac := float64(d) + (float64(u.Hour())*3600+float64(u.Minute())*60+float64(u.Second())+float64(u.Nanosecond())/1e9)/86400.0
	jd := julian.CalendarGregorianToJD(y, int(m), dayFrac)
	return Epoch{JulianDate: jd}
}

// GPSSeconds returns the epoch expressed as GPS seconds.
func (e Epoch) GPSSeconds() float64 {
	return (e.JulianDate - gpsEpochJD) * 86400.0
}

// lstRadians computes local mean sidereal time at longitude
// longitudeRadians, for a UT1 epoch that already has DUT1 folded in (the
// caller is responsible for converting UTC to UT1 before constructing the
// Epoch used here). Uses the standard IAU 1982 GMST polynomial — the same
// algorithm family meeus/sidereal implements, reproduced directly here so
// the core has no runtime dependency on meeus's exact public API beyond the
// julian day conversion it already uses.
func lstRadians(jd, longitudeRadians float64) float64 {
	jdFloor := math.Floor(jd-0.5) + 0.5
	t := (jdFloor - 2451545.0) / 36525.0
	// GMST in seconds of time at 0h UT1, IAU 1982.
	gmstSec := 24110.54841 + 8640184.812866*t + 0.093104*t*t - 6.2e-6*t*t*t
	// add the UT1 fraction of the day, converted to sidereal seconds via
	// the standard sidereal/solar ratio.
	ut1Frac := jd - jdFloor
	gmstSec += ut1Frac * 86400.0 * 1.00273790935
	gmstRad := math.Mod(gmstSec, 86400.0) / 86400.0 * 2 * math.Pi
	lst := gmstRad + longitudeRadians
	return math.Mod(math.Mod(lst, 2*math.Pi)+2*math.Pi, 2*math.Pi)
}

// LST computes local mean sidereal time at the array, given a UT1 Julian
// date and the array's geodetic longitude in radians.
func LST(ut1JulianDate, longitudeRadians float64) float64 {
	return lstRadians(ut1JulianDate, longitudeRadians)
}

// HourAngle returns the hour angle of a right ascension given an LST, both
// in radians.
func HourAngle(raRadians, lstRadians float64) float64 {
	ha := lstRadians - raRadians
	return math.Mod(math.Mod(ha, 2*math.Pi)+2*math.Pi, 2*math.Pi)
}

// HADecToAzEl converts (hour angle, declination) to (azimuth, elevation) at
// a given geodetic latitude, all radians. Azimuth is measured east of
// north.
func HADecToAzEl(ha, dec, latitude float64) (az, el float64) {
	sinEl := math.Sin(dec)*math.Sin(latitude) + math.Cos(dec)*math.Cos(latitude)*math.Cos(ha)
	el = math.Asin(clamp(sinEl, -1, 1))
	sinAz := -math.Sin(ha) * math.Cos(dec) / math.Cos(el)
	cosAz := (math.Sin(dec) - math.Sin(el)*math.Sin(latitude)) / (math.Cos(el) * math.Cos(latitude))
	az = math.Atan2(sinAz, cosAz)
	if az < 0 {
		az += 2 * math.Pi
	}
	return az, el
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ToLMN converts a sky position to direction cosines (l, m, n) relative to
// phaseCentre, using the standard orthographic (SIN) projection.
// n = sqrt(1 - l^2 - m^2).
func ToLMN(pos, phaseCentre RaDec) (l, m, n float64) {
	dRa := pos.RaRadians - phaseCentre.RaRadians
	sinDec, cosDec := math.Sin(pos.DecRadians), math.Cos(pos.DecRadians)
	sinDec0, cosDec0 := math.Sin(phaseCentre.DecRadians), math.Cos(phaseCentre.DecRadians)
	sinDRa, cosDRa := math.Sin(dRa), math.Cos(dRa)

	l = cosDec * sinDRa
	m = sinDec*cosDec0 - cosDec*sinDec0*cosDRa
	nArg := 1 - l*l - m*m
	if nArg < 0 {
		nArg = 0
	}
	n = math.Sqrt(nArg)
	return l, m, n
}

// PrepareForRIME returns (2*pi*l, 2*pi*m, 2*pi*(n-1)) — the n-1 shift
// removes the phase-centre phase offset so the predictor's accumulation is
// numerically stable for wide fields.
func PrepareForRIME(l, m, n float64) (lRad, mRad, nRad float64) {
	return 2 * math.Pi * l, 2 * math.Pi * m, 2 * math.Pi * (n - 1)
}

// AngularSeparationRadians returns the great-circle angular separation
// between two sky positions, used by source vetoing's distance cutoff.
func AngularSeparationRadians(a, b RaDec) float64 {
	sinDa, cosDa := math.Sin(a.DecRadians), math.Cos(a.DecRadians)
	sinDb, cosDb := math.Sin(b.DecRadians), math.Cos(b.DecRadians)
	cosDRa := math.Cos(a.RaRadians - b.RaRadians)
	cosSep := sinDa*sinDb + cosDa*cosDb*cosDRa
	return math.Acos(clamp(cosSep, -1, 1))
}

// PrecessionResult carries everything the predictor needs to run in a
// common (J2000) epoch.
type PrecessionResult struct {
	LMSTEpoch   float64 // LMST at the observation epoch, radians
	LMSTJ2000   float64 // LMST referred to J2000, radians
	LatitudeJ2000 float64 // array latitude precessed to J2000, radians
	Rotation    [3][3]float64 // rotation applied to antenna XYZ vectors
}

// j2000JD is the Julian date of the J2000.0 epoch.
const j2000JD = 2451545.0

// PrecessToJ2000 computes the precession rotation and LST values needed to
// put antenna positions and LST into the J2000 frame. When the caller
// doesn't want precession applied, it should instead call
// LST directly and use an identity rotation — NoPrecession below does
// exactly that, so callers always get a PrecessionResult of the same
// shape.
func PrecessToJ2000(arrayLongitude, arrayLatitude float64, phaseCentre RaDec, epoch Epoch, dut1Seconds float64) PrecessionResult {
	ut1JD := epoch.JulianDate + dut1Seconds/86400.0
	lmstEpoch := LST(ut1JD, arrayLongitude)

	t := (epoch.JulianDate - j2000JD) / 36525.0
	// IAU 1976 precession angles (Lieske 1977), arcseconds -> radians.
	asec2rad := math.Pi / (180.0 * 3600.0)
	zeta := (2306.2181*t + 0.30188*t*t + 0.017998*t*t*t) * asec2rad
	z := (2306.2181*t + 1.09468*t*t + 0.018203*t*t*t) * asec2rad
	theta := (2004.3109*t - 0.42665*t*t - 0.041833*t*t*t) * asec2rad

	rot := precessionRotationMatrix(zeta, z, theta)

	// Rotate the array position vector (approximated as lying on the
	// geocentre-to-array direction of latitude/longitude) to get the
	// precessed latitude; longitude-equivalent LST shift is absorbed by
	// rederiving LST at J2000 from the same UT1 instant with the rotated
	// frame.
	latJ2000 := precessedLatitude(rot, arrayLatitude)
	lmstJ2000 := LST(ut1JD, arrayLongitude) + (zeta + z)

	_ = phaseCentre // the phase centre doesn't affect the antenna-frame rotation; the parameter stays so a precessed phase centre can be added to the result without changing callers.

	return PrecessionResult{
		LMSTEpoch:     lmstEpoch,
		LMSTJ2000:     math.Mod(lmstJ2000, 2*math.Pi),
		LatitudeJ2000: latJ2000,
		Rotation:      rot,
	}
}

// NoPrecession returns the PrecessionResult equivalent to precession being
// disabled: LMST computed directly, antenna positions and latitude passed
// through unchanged.
func NoPrecession(arrayLongitude, arrayLatitude float64, epoch Epoch, dut1Seconds float64) PrecessionResult {
	ut1JD := epoch.JulianDate + dut1Seconds/86400.0
	lmst := LST(ut1JD, arrayLongitude)
	return PrecessionResult{
		LMSTEpoch:     lmst,
		LMSTJ2000:     lmst,
		LatitudeJ2000: arrayLatitude,
		Rotation:      identity3x3(),
	}
}

func identity3x3() [3][3]float64 {
	return [3][3]float64{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
}

// precessionRotationMatrix builds the standard zeta/z/theta rotation
// (R_z(-z) * R_y(theta) * R_z(-zeta)) used to precess an equatorial
// Cartesian vector from one epoch to another.
func precessionRotationMatrix(zeta, z, theta float64) [3][3]float64 {
	rz1 := rotZ(-zeta)
	ry := rotY(theta)
	rz2 := rotZ(-z)
	return matMul3(rz2, matMul3(ry, rz1))
}

func rotZ(a float64) [3][3]float64 {
	s, c := math.Sin(a), math.Cos(a)
	return [3][3]float64{{c, -s, 0}, {s, c, 0}, {0, 0, 1}}
}

func rotY(a float64) [3][3]float64 {
	s, c := math.Sin(a), math.Cos(a)
	return [3][3]float64{{c, 0, s}, {0, 1, 0}, {-s, 0, c}}
}

func matMul3(a, b [3][3]float64) [3][3]float64 {
	var out [3][3]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			var s float64
			for k := 0; k < 3; k++ {
				s += a[i][k] * b[k][j]
			}
			out[i][j] = s
		}
	}
	return out
}

// ApplyRotation rotates an antenna geodetic XYZ vector by rot.
func ApplyRotation(rot [3][3]float64, xyz [3]float64) [3]float64 {
	var out [3]float64
	for i := 0; i < 3; i++ {
		out[i] = rot[i][0]*xyz[0] + rot[i][1]*xyz[1] + rot[i][2]*xyz[2]
	}
	return out
}

// precessedLatitude derives a new geodetic-equivalent latitude by rotating
// the unit vector at (0, latitude) and recovering its declination-like
// angle; an adequate small-angle approximation for the precession
// intervals used in MWA calibration (single-epoch observations).
func precessedLatitude(rot [3][3]float64, latitude float64) float64 {
	v := [3]float64{math.Cos(latitude), 0, math.Sin(latitude)}
	rv := ApplyRotation(rot, v)
	return math.Asin(clamp(rv[2], -1, 1))
}
