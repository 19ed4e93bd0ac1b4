package eskf

import (
	"gonum.org/v1/gonum/mat"

	"github.com/KaranBalakumar/Imu-GNSS/navstate"
)

// UpdateOdom applies the wheel-odometry velocity observation (sec. 4.4.4):
// expected nav-frame velocity from a body-frame longitudinal speed s, minus
// the current nominal velocity.
func (e *Engine) UpdateOdom(speed, sigmaV float64) {
	e.iterate(func() (*mat.VecDense, mat.Matrix, mat.Symmetric) {
		return e.odomResidual(speed, sigmaV)
	})
}

func (e *Engine) odomResidual(speed, sigmaV float64) (*mat.VecDense, mat.Matrix, mat.Symmetric) {
	sBody := [3]float64{speed, 0, 0}
	rMat := e.s.R.Matrix()
	expected := matVec3(rMat, sBody)
	residual := navstate.Sub(expected, e.s.V)

	// Observed-minus-predicted, same sign convention as the GNSS and ZUPT
	// observations: H = +I on dv, +R*[s]_x on dtheta.
	h := mat.NewDense(3, dim, nil)
	setBlock3(h, 0, navstate.OffV, identity3())

	var rSkewS mat.Dense
	rSkewS.Mul(rMat, navstate.Skew(sBody))
	setBlock3(h, 0, navstate.OffTh, &rSkewS)

	v := mat.NewSymDense(3, nil)
	setDiag(v, sigmaV*sigmaV)

	r := mat.NewVecDense(3, residual[:])
	return r, h, v
}
