// Package eskf implements the error-state (iterated) Kalman filter engine:
// predict and three observation models operating on an 18-length tangent
// error state over navstate.State, following the state/transition-matrix
// ownership style of OrbitEstimate in estimate.go (the engine owns its
// state and covariance; callers only see method calls and snapshots), with
// the matrix plumbing rebuilt against the modern gonum.org/v1/gonum/mat
// API instead of the teacher's mat64.
package eskf

import (
	"math"

	kitlog "github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"gonum.org/v1/gonum/mat"

	"github.com/KaranBalakumar/Imu-GNSS/navcfg"
	"github.com/KaranBalakumar/Imu-GNSS/navstate"
)

const dim = navstate.ErrStateDim

// Engine owns the nominal state, its covariance, and the noise parameters
// derived from configuration. It is not safe for concurrent use: per spec
// sec. 5, exactly one logical thread drives predict/update.
type Engine struct {
	s   navstate.State
	p   *mat.SymDense
	cfg navcfg.FilterConfig

	hasLastT bool
	lastT    float64

	logger kitlog.Logger

	// divergent latches once a NaN has survived a re-symmetrization pass;
	// set only by checkDivergence.
	divergent bool
}

// NewEngine constructs an Engine from configuration. It is not usable until
// Init is called.
func NewEngine(cfg navcfg.FilterConfig, logger kitlog.Logger) *Engine {
	if logger == nil {
		logger = kitlog.NewNopLogger()
	}
	return &Engine{cfg: cfg, logger: kitlog.With(logger, "subsys", "eskf")}
}

// Init resets the nominal state and covariance (sec. 4.4.1). P is diagonal,
// built from the configured initial sigmas for each of the six blocks.
func (e *Engine) Init(initial navstate.State, initialBg, initialBa, gravityNav [3]float64) {
	e.s = initial
	e.s.Bg = initialBg
	e.s.Ba = initialBa
	e.s.G = gravityNav
	e.hasLastT = false
	e.divergent = false

	diag := make([]float64, dim)
	fillBlock(diag, navstate.OffP, e.cfg.Initial.Position)
	fillBlock(diag, navstate.OffV, e.cfg.Initial.Velocity)
	fillBlock(diag, navstate.OffTh, e.cfg.Initial.Attitude)
	fillBlock(diag, navstate.OffBg, e.cfg.Initial.GyroBias)
	fillBlock(diag, navstate.OffBa, e.cfg.Initial.AccelBias)
	fillBlock(diag, navstate.OffG, e.cfg.Initial.Gravity)
	for i, v := range diag {
		diag[i] = v * v
	}
	e.p = mat.NewSymDense(dim, nil)
	for i, v := range diag {
		e.p.SetSym(i, i, v)
	}
}

func fillBlock(diag []float64, off int, sigma float64) {
	diag[off], diag[off+1], diag[off+2] = sigma, sigma, sigma
}

// Snapshot returns an immutable copy of the nominal state (sec. 4.4.7).
func (e *Engine) Snapshot() navstate.NavState {
	return e.s.Snapshot()
}

// CovarianceTrace returns trace(P), used by the driver's divergence check
// (sec. 6, exit code 3).
func (e *Engine) CovarianceTrace() float64 {
	tr := 0.0
	for i := 0; i < dim; i++ {
		tr += e.p.At(i, i)
	}
	return tr
}

// Diverged reports whether the engine has latched a fatal numerical
// divergence (sec. 7).
func (e *Engine) Diverged() bool {
	return e.divergent
}

// clonePrior copies e.p into a fresh SymDense, giving the IESKF loop in
// iterate.go a fixed P- to re-linearize against across iterations (sec.
// 4.4.6): only the mean is iterated, the covariance update happens once,
// at the converged linearization point, against this unchanged prior.
func (e *Engine) clonePrior() *mat.SymDense {
	out := mat.NewSymDense(dim, nil)
	for i := 0; i < dim; i++ {
		for j := i; j < dim; j++ {
			out.SetSym(i, j, e.p.At(i, j))
		}
	}
	return out
}

// injectMean computes the Kalman gain against the fixed prior (not e.p,
// which is untouched until finishUpdate), forms dx = K*r, and injects it
// into the nominal state. It returns ||dx|| for the IESKF convergence
// check in iterate.go.
func (e *Engine) injectMean(prior *mat.SymDense, r *mat.VecDense, h mat.Matrix, v mat.Symmetric) float64 {
	k := e.gain(prior, h, v)

	dx := mat.NewVecDense(dim, nil)
	dx.MulVec(k, r)

	e.s = e.s.ComposeRight(dx)

	return dxNorm(dx)
}

// finishUpdate applies the covariance side of sec. 4.4.3 exactly once, at
// the IESKF loop's converged linearization point: Joseph-form update
// against the fixed prior using the final iteration's (H, V), followed by
// the theta re-anchor for the *total* rotation correction accumulated
// across every iteration (dtheta).
func (e *Engine) finishUpdate(prior *mat.SymDense, h mat.Matrix, v mat.Symmetric, dtheta [3]float64) {
	rows, _ := h.Dims()
	k := e.gain(prior, h, v)

	ikh := mat.NewDense(dim, dim, nil)
	ikh.Mul(k, h)
	for i := 0; i < dim; i++ {
		for j := 0; j < dim; j++ {
			val := -ikh.At(i, j)
			if i == j {
				val++
			}
			ikh.Set(i, j, val)
		}
	}

	var pNew mat.Dense
	pNew.Mul(ikh, prior)
	var pNew2 mat.Dense
	pNew2.Mul(&pNew, ikh.T())

	kv := mat.NewDense(dim, rows, nil)
	kv.Mul(k, v)
	var kvk mat.Dense
	kvk.Mul(kv, k.T())

	pNew2.Add(&pNew2, &kvk)
	e.setCovarianceFrom(&pNew2)

	e.resetTheta(dtheta)

	e.resymmetrize()
}

// dxNorm returns the Euclidean norm of the full 18-length error vector.
func dxNorm(dx *mat.VecDense) float64 {
	sum := 0.0
	for i := 0; i < dim; i++ {
		sum += dx.AtVec(i) * dx.AtVec(i)
	}
	return math.Sqrt(sum)
}

// gain computes K = P Hᵀ (H P Hᵀ + V)⁻¹ against the given prior covariance.
func (e *Engine) gain(prior *mat.SymDense, h mat.Matrix, v mat.Symmetric) *mat.Dense {
	rows, _ := h.Dims()
	var ph mat.Dense
	ph.Mul(prior, h.T())

	var hph mat.Dense
	hph.Mul(h, &ph)
	hph.Add(&hph, v)

	var inv mat.Dense
	if err := inv.Inverse(&hph); err != nil {
		level.Warn(e.logger).Log("msg", "singular innovation covariance, adding jitter before retry", "err", err)
		hph.Add(&hph, jitter(rows, 1e-9))
		if err := inv.Inverse(&hph); err != nil {
			level.Error(e.logger).Log("msg", "innovation covariance inversion failed", "err", err)
			return mat.NewDense(dim, rows, nil)
		}
	}

	k := mat.NewDense(dim, rows, nil)
	k.Mul(&ph, &inv)
	return k
}

func jitter(n int, eps float64) *mat.Dense {
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		m.Set(i, i, eps)
	}
	return m
}

// resetTheta implements sec. 4.4.3's covariance re-anchor: after injecting
// dtheta, the theta row and column of P are multiplied by
// J = I - 0.5*[dtheta]_x to account for the tangent-space re-linearization.
func (e *Engine) resetTheta(dtheta [3]float64) {
	skew := navstate.Skew(dtheta)
	j := mat.NewDense(3, 3, nil)
	j.Scale(-0.5, skew)
	j.Add(j, identity3())

	full := mat.NewDense(dim, dim, nil)
	for i := 0; i < dim; i++ {
		for k := 0; k < dim; k++ {
			full.Set(i, k, e.p.At(i, k))
		}
	}

	// P[theta, :] <- J * P[theta, :]
	thetaRowsView := full.Slice(navstate.OffTh, navstate.OffTh+3, 0, dim).(*mat.Dense)
	var newRows mat.Dense
	newRows.Mul(j, thetaRowsView)
	thetaRowsView.Copy(&newRows)

	// P[:, theta] <- P[:, theta] * Jᵀ
	thetaColsView := full.Slice(0, dim, navstate.OffTh, navstate.OffTh+3).(*mat.Dense)
	var newCols mat.Dense
	newCols.Mul(thetaColsView, j.T())
	thetaColsView.Copy(&newCols)

	e.setCovarianceFrom(full)
}

func identity3() *mat.Dense {
	m := mat.NewDense(3, 3, nil)
	m.Set(0, 0, 1)
	m.Set(1, 1, 1)
	m.Set(2, 2, 1)
	return m
}

// setCovarianceFrom copies a (possibly asymmetric due to floating-point
// error) Dense into e.p, symmetrizing on the way in.
func (e *Engine) setCovarianceFrom(d mat.Matrix) {
	r, c := d.Dims()
	if r != dim || c != dim {
		panic("eskf: covariance update produced wrong dimensions")
	}
	sym := mat.NewSymDense(dim, nil)
	for i := 0; i < dim; i++ {
		for j := i; j < dim; j++ {
			v := 0.5 * (d.At(i, j) + d.At(j, i))
			sym.SetSym(i, j, v)
		}
	}
	e.p = sym
}

// resymmetrize implements sec. 7's numerical-failure recovery: re-symmetrize
// P and clamp negative eigenvalues to zero. If a NaN is still present after
// that, the engine latches divergence.
func (e *Engine) resymmetrize() {
	var eig mat.EigenSym
	ok := eig.Factorize(e.p, true)
	if !ok {
		level.Error(e.logger).Log("msg", "covariance eigendecomposition failed")
		e.checkDivergence()
		return
	}
	values := eig.Values(nil)
	clamped := false
	for i, v := range values {
		if v < 0 {
			values[i] = 0
			clamped = true
		}
	}
	if clamped {
		var vecs mat.Dense
		eig.VectorsTo(&vecs)
		diag := mat.NewDiagDense(dim, values)
		var tmp mat.Dense
		tmp.Mul(&vecs, diag)
		var rebuilt mat.Dense
		rebuilt.Mul(&tmp, vecs.T())
		e.setCovarianceFrom(&rebuilt)
		level.Warn(e.logger).Log("msg", "clamped negative covariance eigenvalues")
	}
	e.checkDivergence()
}

func (e *Engine) checkDivergence() {
	for i := 0; i < dim; i++ {
		if math.IsNaN(e.p.At(i, i)) || math.IsInf(e.p.At(i, i), 0) {
			if e.divergent {
				level.Error(e.logger).Log("msg", "NaN persisted after re-symmetrization, entering fatal divergence")
			}
			e.divergent = true
			return
		}
	}
}
