package eskf

import (
	"gonum.org/v1/gonum/mat"

	"github.com/KaranBalakumar/Imu-GNSS/navstate"
)

// UpdateZUPT applies a zero-velocity update (sec. 4.4.5): fired by the
// fusion driver when the vehicle has been classified static.
func (e *Engine) UpdateZUPT(sigmaZ float64) {
	e.iterate(func() (*mat.VecDense, mat.Matrix, mat.Symmetric) {
		return e.zuptResidual(sigmaZ)
	})
}

func (e *Engine) zuptResidual(sigmaZ float64) (*mat.VecDense, mat.Matrix, mat.Symmetric) {
	residual := navstate.Scale(-1, e.s.V)

	h := mat.NewDense(3, dim, nil)
	setBlock3(h, 0, navstate.OffV, identity3())

	v := mat.NewSymDense(3, nil)
	setDiag(v, sigmaZ*sigmaZ)

	r := mat.NewVecDense(3, residual[:])
	return r, h, v
}
