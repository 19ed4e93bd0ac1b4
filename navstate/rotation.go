// Package navstate implements the manifold-valued nominal navigation state:
// an element of SO(3) x R^15 (position, velocity, gyro bias, accel bias,
// gravity), plus the composition rule used to inject an error-state vector
// back into it.
package navstate

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"
)

// Rotation is an element of SO(3), stored as a unit quaternion so that no
// amount of repeated composition can drift it off the manifold the way an
// orthonormalize-by-convention DCM can.
type Rotation struct {
	q quat.Number
}

// Identity returns the identity rotation.
func Identity() Rotation {
	return Rotation{q: quat.Number{Real: 1}}
}

// NewRotationFromQuat wraps a quaternion, normalizing it to unit norm (a
// zero quaternion becomes the identity).
func NewRotationFromQuat(q quat.Number) Rotation {
	return Rotation{q: normalizeQuat(q)}
}

// Exp is the SO(3) exponential map: it turns a rotation-vector (axis times
// angle, rad) tangent element into a Rotation.
func Exp(v [3]float64) Rotation {
	angle := Norm(v)
	if floats.EqualWithinAbs(angle, 0, 1e-12) {
		return Rotation{q: quat.Number{Real: 1}}
	}
	half := angle / 2
	s := math.Sin(half) / angle
	return Rotation{q: normalizeQuat(quat.Number{
		Real: math.Cos(half),
		Imag: v[0] * s,
		Jmag: v[1] * s,
		Kmag: v[2] * s,
	})}
}

// Log is the SO(3) logarithm map: the inverse of Exp.
func (r Rotation) Log() [3]float64 {
	q := r.q
	imagNorm := math.Sqrt(q.Imag*q.Imag + q.Jmag*q.Jmag + q.Kmag*q.Kmag)
	if floats.EqualWithinAbs(imagNorm, 0, 1e-12) {
		return [3]float64{0, 0, 0}
	}
	angle := 2 * math.Atan2(imagNorm, q.Real)
	// Keep the rotation vector in (-pi, pi].
	if angle > math.Pi {
		angle -= 2 * math.Pi
	}
	scale := angle / imagNorm
	return [3]float64{q.Imag * scale, q.Jmag * scale, q.Kmag * scale}
}

// Mul composes rotations: (r.Mul(other)) applies other first, then r, i.e.
// it is the quaternion/matrix product r*other in that order.
func (r Rotation) Mul(other Rotation) Rotation {
	return Rotation{q: normalizeQuat(quat.Mul(r.q, other.q))}
}

// Inverse returns the inverse rotation (conjugate, since the quaternion is
// unit-norm).
func (r Rotation) Inverse() Rotation {
	return Rotation{q: quat.Number{Real: r.q.Real, Imag: -r.q.Imag, Jmag: -r.q.Jmag, Kmag: -r.q.Kmag}}
}

// RotateVector applies the rotation to a body-frame vector, returning it in
// the frame r rotates into.
func (r Rotation) RotateVector(v [3]float64) [3]float64 {
	vq := quat.Number{Imag: v[0], Jmag: v[1], Kmag: v[2]}
	rq := quat.Mul(quat.Mul(r.q, vq), quat.Conj(r.q))
	return [3]float64{rq.Imag, rq.Jmag, rq.Kmag}
}

// Components returns the quaternion (x, y, z, w) components of r, in the
// conventional qx,qy,qz,qw output order (spec sec. 6).
func (r Rotation) Components() (x, y, z, w float64) {
	return r.q.Imag, r.q.Jmag, r.q.Kmag, r.q.Real
}

// Matrix returns the 3x3 direction-cosine matrix equivalent of r.
func (r Rotation) Matrix() *mat.Dense {
	q := r.q
	w, x, y, z := q.Real, q.Imag, q.Jmag, q.Kmag
	return mat.NewDense(3, 3, []float64{
		1 - 2*(y*y+z*z), 2 * (x*y - z*w), 2 * (x*z + y*w),
		2 * (x*y + z*w), 1 - 2*(x*x+z*z), 2 * (y*z - x*w),
		2 * (x*z - y*w), 2 * (y*z + x*w), 1 - 2*(x*x+y*y),
	})
}

// Yaw extracts the yaw (rotation about +z) of r, assuming zero roll/pitch
// as the GNSS-derived attitude prior does (spec sec. 4.2).
func (r Rotation) Yaw() float64 {
	q := r.q
	siny := 2 * (q.Real*q.Kmag + q.Imag*q.Jmag)
	cosy := 1 - 2*(q.Jmag*q.Jmag+q.Kmag*q.Kmag)
	return math.Atan2(siny, cosy)
}

// FromYaw builds a rotation with roll = pitch = 0 and the given yaw,
// exactly the attitude prior the GNSS preparer assembles from heading.
func FromYaw(yaw float64) Rotation {
	half := yaw / 2
	return Rotation{q: quat.Number{Real: math.Cos(half), Kmag: math.Sin(half)}}
}

func normalizeQuat(q quat.Number) quat.Number {
	n := math.Sqrt(q.Real*q.Real + q.Imag*q.Imag + q.Jmag*q.Jmag + q.Kmag*q.Kmag)
	if n == 0 {
		return quat.Number{Real: 1}
	}
	return quat.Number{Real: q.Real / n, Imag: q.Imag / n, Jmag: q.Jmag / n, Kmag: q.Kmag / n}
}

// Skew builds the 3x3 skew-symmetric "hat" matrix [v]_x such that
// [v]_x * w == Cross(v, w).
func Skew(v [3]float64) *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		0, -v[2], v[1],
		v[2], 0, -v[0],
		-v[1], v[0], 0,
	})
}
