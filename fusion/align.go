package fusion

import (
	"math"

	"github.com/KaranBalakumar/Imu-GNSS/gnssprep"
	"github.com/KaranBalakumar/Imu-GNSS/navstate"
)

// aligner implements spec sec. 4.5's initial alignment: accumulate the
// first N IMU samples while the vehicle is static, then derive bg, gravity
// magnitude/direction, and R0 (aligning mean(a) with +z_body).
type aligner struct {
	n        int
	samples  []navstate.IMUSample
	done     bool
	gnssSeen bool
	gnssYaw  float64
}

func newAligner(n int) aligner {
	if n < 1 {
		n = 1
	}
	return aligner{n: n, samples: make([]navstate.IMUSample, 0, n)}
}

// noteGNSS records the most recent valid heading seen during alignment, so
// that if one arrives the alignment yaw can use it in preference to the
// accelerometer-only estimate (spec sec. 4.5: "alignment yaw uses GNSS
// heading when valid").
func (a *aligner) noteGNSS(r gnssprep.Reading) {
	if r.HeadingValid {
		a.gnssSeen = true
		a.gnssYaw = r.HeadingDeg * math.Pi / 180
	}
}

// accept buffers one IMU sample and reports whether the alignment window
// just completed.
func (a *aligner) accept(s navstate.IMUSample) bool {
	a.samples = append(a.samples, s)
	if len(a.samples) >= a.n {
		a.done = true
		return true
	}
	return false
}

// finish computes the initial nominal state, bg, ba and gravity from the
// buffered static window.
func (a *aligner) finish() (initState navstate.State, bg, ba, gravityNav [3]float64) {
	var sumW, sumA [3]float64
	for _, s := range a.samples {
		sumW = navstate.Add(sumW, s.W)
		sumA = navstate.Add(sumA, s.A)
	}
	n := float64(len(a.samples))
	bg = navstate.Scale(1/n, sumW)
	meanA := navstate.Scale(1/n, sumA)

	gMag := navstate.Norm(meanA)
	gravityNav = [3]float64{0, 0, -gMag}

	var r0 navstate.Rotation
	if a.gnssSeen {
		r0 = navstate.FromYaw(a.gnssYaw)
	} else {
		r0 = rotationAligningToZ(meanA)
	}

	return navstate.State{R: r0}, bg, [3]float64{}, gravityNav
}

// rotationAligningToZ returns the rotation that maps the body-frame vector
// a onto (0,0,|a|) in the nav frame, i.e. the smallest rotation taking the
// measured specific-force direction to straight up — the static-alignment
// attitude prior (spec sec. 4.5).
func rotationAligningToZ(a [3]float64) navstate.Rotation {
	norm := navstate.Norm(a)
	if norm < 1e-9 {
		return navstate.Identity()
	}
	aHat := navstate.Scale(1/norm, a)
	zHat := [3]float64{0, 0, 1}

	axis := navstate.Cross(aHat, zHat)
	sinAngle := navstate.Norm(axis)
	cosAngle := navstate.Dot(aHat, zHat)

	if sinAngle < 1e-9 {
		if cosAngle > 0 {
			return navstate.Identity()
		}
		// Anti-parallel: rotate 180 degrees about any axis orthogonal to zHat.
		return navstate.Exp([3]float64{math.Pi, 0, 0})
	}

	angle := math.Atan2(sinAngle, cosAngle)
	axisUnit := navstate.Scale(1/sinAngle, axis)
	return navstate.Exp(navstate.Scale(angle, axisUnit))
}
