package eskf

import (
	"github.com/go-kit/kit/log/level"
	"gonum.org/v1/gonum/mat"
)

// residualFunc re-linearizes an observation at the engine's current nominal
// state, returning the residual r, the Jacobian H, and the measurement
// noise V.
type residualFunc func() (r *mat.VecDense, h mat.Matrix, v mat.Symmetric)

// iterate implements sec. 4.4.6: the mean is re-linearized and recomputed
// against a FIXED prior P- until ||dx|| < eps or iekf_max_iter is reached;
// the covariance update (Joseph form + theta re-anchor) is then applied
// exactly once, at the converged linearization point, using that same
// prior and the final iteration's (H, V). Updating P itself on every
// iteration would shrink it once per iteration instead of once per
// measurement. Convergence failure is not fatal; the last dx is kept.
func (e *Engine) iterate(f residualFunc) {
	maxIter := e.cfg.IEKFMaxIter
	if maxIter < 1 {
		maxIter = 1
	}

	prior := e.clonePrior()
	priorR := e.s.R

	var h mat.Matrix
	var v mat.Symmetric
	converged := false
	for i := 0; i < maxIter; i++ {
		var r *mat.VecDense
		r, h, v = f()
		norm := e.injectMean(prior, r, h, v)
		if norm < e.cfg.IEKFEps {
			converged = true
			break
		}
	}
	if !converged {
		level.Debug(e.logger).Log("msg", "iekf did not converge within max iterations", "max_iter", maxIter)
	}

	dtheta := priorR.Inverse().Mul(e.s.R).Log()
	e.finishUpdate(prior, h, v, dtheta)
}
