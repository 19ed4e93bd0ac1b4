package navstate

import "gonum.org/v1/gonum/mat"

// ErrStateDim is the fixed dimension of the tangent error state:
// [dp(3) dv(3) dtheta(3) dbg(3) dba(3) dg(3)] (spec sec. 3).
const ErrStateDim = 18

// Error-state block offsets, in the fixed order spec sec. 3 mandates.
const (
	OffP  = 0
	OffV  = 3
	OffTh = 6
	OffBg = 9
	OffBa = 12
	OffG  = 15
)

// State is the manifold-valued nominal navigation state: R in SO(3), plus
// position, velocity, gyro bias, accel bias and gravity in R^15. It is
// owned exclusively by the eskf engine; every other component sees only
// NavState snapshots.
type State struct {
	T  float64
	R  Rotation
	P  [3]float64
	V  [3]float64
	Bg [3]float64
	Ba [3]float64
	G  [3]float64
}

// SE3 returns the rigid-body pose (R, p) part of the state.
func (s State) SE3() (Rotation, [3]float64) {
	return s.R, s.P
}

// ComposeRight injects an 18-length error-state vector into the nominal
// state using the right-perturbation convention mandated by spec sec. 9:
// R <- R * Exp(dtheta), with linear addition for every other block. It does
// not mutate s; it returns the composed state.
func (s State) ComposeRight(dx *mat.VecDense) State {
	if dx.Len() != ErrStateDim {
		panic("navstate: ComposeRight requires an 18-length error state")
	}
	dtheta := [3]float64{dx.AtVec(OffTh), dx.AtVec(OffTh + 1), dx.AtVec(OffTh + 2)}
	out := s
	out.P = Add(s.P, [3]float64{dx.AtVec(OffP), dx.AtVec(OffP + 1), dx.AtVec(OffP + 2)})
	out.V = Add(s.V, [3]float64{dx.AtVec(OffV), dx.AtVec(OffV + 1), dx.AtVec(OffV + 2)})
	out.R = s.R.Mul(Exp(dtheta))
	out.Bg = Add(s.Bg, [3]float64{dx.AtVec(OffBg), dx.AtVec(OffBg + 1), dx.AtVec(OffBg + 2)})
	out.Ba = Add(s.Ba, [3]float64{dx.AtVec(OffBa), dx.AtVec(OffBa + 1), dx.AtVec(OffBa + 2)})
	out.G = Add(s.G, [3]float64{dx.AtVec(OffG), dx.AtVec(OffG + 1), dx.AtVec(OffG + 2)})
	return out
}

// NavState is the immutable, value-typed snapshot handed to readers
// (sec. 4.4.7): it holds no reference into engine-owned storage.
type NavState struct {
	T  float64
	R  Rotation
	P  [3]float64
	V  [3]float64
	Bg [3]float64
	Ba [3]float64
	G  [3]float64
}

// Snapshot copies s into a NavState.
func (s State) Snapshot() NavState {
	return NavState{T: s.T, R: s.R, P: s.P, V: s.V, Bg: s.Bg, Ba: s.Ba, G: s.G}
}

// IMUSample is a single inertial measurement (sec. 3): timestamp t
// (monotonic seconds), angular rate w (rad/s, body frame), specific force a
// (m/s^2, body frame).
type IMUSample struct {
	T float64
	W [3]float64
	A [3]float64
}

// OdomSample is a single wheel-encoder reading (sec. 3): timestamp t, left
// and right wheel pulse counts over the interval ending at t.
type OdomSample struct {
	T          float64
	PulsesLeft float64
	PulsesRight float64
}
