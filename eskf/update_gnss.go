package eskf

import (
	"gonum.org/v1/gonum/mat"

	"github.com/KaranBalakumar/Imu-GNSS/navstate"
)

// GNSSObservation is an already-prepared GNSS pose (from gnssprep), plus the
// flag that says whether its rotation part is usable (sec. 4.2, 4.4.3).
type GNSSObservation struct {
	R           navstate.Rotation
	P           [3]float64
	HeadingOK   bool
	SigmaPos    float64
	SigmaHeading float64
}

// UpdateGNSS applies the SE(3)-like GNSS observation (sec. 4.4.3), iterating
// under IESKF (sec. 4.4.6). An observation whose residual is exactly zero
// leaves both the nominal state and the covariance unchanged (sec. 8
// property #3).
func (e *Engine) UpdateGNSS(obs GNSSObservation) {
	if r, _, _ := e.gnssResidual(obs); mat.Norm(r, 2) == 0 {
		return
	}
	e.iterate(func() (*mat.VecDense, mat.Matrix, mat.Symmetric) {
		return e.gnssResidual(obs)
	})
}

func (e *Engine) gnssResidual(obs GNSSObservation) (*mat.VecDense, mat.Matrix, mat.Symmetric) {
	rp := navstate.Sub(obs.P, e.s.P)

	if !obs.HeadingOK {
		h := mat.NewDense(3, dim, nil)
		setBlock3(h, 0, navstate.OffP, identity3())
		v := mat.NewSymDense(3, nil)
		setDiag(v, obs.SigmaPos*obs.SigmaPos)
		r := mat.NewVecDense(3, rp[:])
		return r, h, v
	}

	rTheta := e.s.R.Inverse().Mul(obs.R).Log()

	h := mat.NewDense(6, dim, nil)
	setBlock3(h, 0, navstate.OffP, identity3())
	setBlock3(h, 3, navstate.OffTh, identity3())

	v := mat.NewSymDense(6, nil)
	setDiagRange(v, 0, 3, obs.SigmaPos*obs.SigmaPos)
	setDiagRange(v, 3, 6, obs.SigmaHeading*obs.SigmaHeading)

	r := mat.NewVecDense(6, nil)
	for i := 0; i < 3; i++ {
		r.SetVec(i, rp[i])
		r.SetVec(i+3, rTheta[i])
	}
	return r, h, v
}

func setBlock3(dst *mat.Dense, rowOff, colOff int, block *mat.Dense) {
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			dst.Set(rowOff+i, colOff+j, block.At(i, j))
		}
	}
}

func setDiag(sym *mat.SymDense, v float64) {
	n, _ := sym.Dims()
	for i := 0; i < n; i++ {
		sym.SetSym(i, i, v)
	}
}

func setDiagRange(sym *mat.SymDense, from, to int, v float64) {
	for i := from; i < to; i++ {
		sym.SetSym(i, i, v)
	}
}
