package eskf

import (
	"github.com/go-kit/kit/log/level"
	"gonum.org/v1/gonum/mat"

	"github.com/KaranBalakumar/Imu-GNSS/navstate"
)

// Predict advances the nominal state and covariance by one IMU sample
// (sec. 4.4.2). It never returns an error for a skipped/backwards sample:
// that case is logged and last_t is still advanced, matching the spec's
// "skip and log but still advance last_t" rule.
func (e *Engine) Predict(sample navstate.IMUSample) {
	if !e.hasLastT {
		e.lastT = sample.T
		e.hasLastT = true
		return
	}

	dt := sample.T - e.lastT
	if dt <= 0 || dt > e.cfg.MaxIMUDt.Seconds() {
		level.Warn(e.logger).Log("msg", "skipping IMU predict, out-of-range dt", "dt", dt)
		e.lastT = sample.T
		return
	}

	wHat := navstate.Sub(sample.W, e.s.Bg)
	aHat := navstate.Sub(sample.A, e.s.Ba)

	rMat := e.s.R.Matrix()
	rAccel := matVec3(rMat, aHat)
	rAccelPlusG := navstate.Add(rAccel, e.s.G)

	newP := navstate.Add(e.s.P, navstate.Add(
		navstate.Scale(dt, e.s.V),
		navstate.Scale(0.5*dt*dt, rAccelPlusG),
	))
	newV := navstate.Add(e.s.V, navstate.Scale(dt, rAccelPlusG))
	newR := e.s.R.Mul(navstate.Exp(navstate.Scale(dt, wHat)))

	f := e.buildF(rMat, aHat, wHat, dt)
	q := e.buildQ(rMat, dt)

	var fp mat.Dense
	fp.Mul(f, e.p)
	var fpf mat.Dense
	fpf.Mul(&fp, f.T())
	fpf.Add(&fpf, q)
	e.setCovarianceFrom(&fpf)

	e.s.T = sample.T
	e.s.P = newP
	e.s.V = newV
	e.s.R = newR
	e.lastT = sample.T

	e.resymmetrize()
}

// buildF assembles the 18x18 state-transition matrix (sec. 4.4.2 step 5).
func (e *Engine) buildF(rMat *mat.Dense, aHat, wHat [3]float64, dt float64) *mat.Dense {
	f := mat.NewDense(dim, dim, nil)
	for i := 0; i < dim; i++ {
		f.Set(i, i, 1)
	}

	// F_pv = I*dt
	setBlock(f, navstate.OffP, navstate.OffV, scaled3(identity3(), dt))

	// F_vtheta = -R*[aHat]_x*dt
	rSkewA := mat.NewDense(3, 3, nil)
	rSkewA.Mul(rMat, navstate.Skew(aHat))
	setBlock(f, navstate.OffV, navstate.OffTh, scaled3(rSkewA, -dt))

	// F_vba = -R*dt
	setBlock(f, navstate.OffV, navstate.OffBa, scaled3(rMat, -dt))

	// F_vg = I*dt
	setBlock(f, navstate.OffV, navstate.OffG, scaled3(identity3(), dt))

	// F_thetatheta = Exp(-wHat*dt) (replaces the identity block)
	expNeg := navstate.Exp(navstate.Scale(-dt, wHat)).Matrix()
	setBlock(f, navstate.OffTh, navstate.OffTh, expNeg)

	// F_thetabg = -I*dt
	setBlock(f, navstate.OffTh, navstate.OffBg, scaled3(identity3(), -dt))

	return f
}

// buildQ assembles the 18x18 process-noise matrix (sec. 4.4.2 step 6).
func (e *Engine) buildQ(rMat *mat.Dense, dt float64) *mat.Dense {
	q := mat.NewDense(dim, dim, nil)

	sigmaA2 := e.cfg.Noise.Accel * e.cfg.Noise.Accel
	sigmaG2 := e.cfg.Noise.Gyro * e.cfg.Noise.Gyro
	sigmaBg2 := e.cfg.Noise.GyroBias * e.cfg.Noise.GyroBias
	sigmaBa2 := e.cfg.Noise.AccelBias * e.cfg.Noise.AccelBias

	// velocity block: R * Sigma_a * Rᵀ * dt^2
	sigmaA := mat.NewDense(3, 3, nil)
	sigmaA.Set(0, 0, sigmaA2)
	sigmaA.Set(1, 1, sigmaA2)
	sigmaA.Set(2, 2, sigmaA2)
	var rSigma mat.Dense
	rSigma.Mul(rMat, sigmaA)
	var rSigmaRt mat.Dense
	rSigmaRt.Mul(&rSigma, rMat.T())
	setBlock(q, navstate.OffV, navstate.OffV, scaled3(&rSigmaRt, dt*dt))

	// rotation block: Sigma_g * dt^2
	setBlock(q, navstate.OffTh, navstate.OffTh, scaled3(identityScaled3(sigmaG2), dt*dt))

	// bias-gyro block: Sigma_bg * dt
	setBlock(q, navstate.OffBg, navstate.OffBg, scaled3(identityScaled3(sigmaBg2), dt))

	// bias-acc block: Sigma_ba * dt
	setBlock(q, navstate.OffBa, navstate.OffBa, scaled3(identityScaled3(sigmaBa2), dt))

	return q
}

func identityScaled3(v float64) *mat.Dense {
	m := mat.NewDense(3, 3, nil)
	m.Set(0, 0, v)
	m.Set(1, 1, v)
	m.Set(2, 2, v)
	return m
}

func scaled3(m *mat.Dense, s float64) *mat.Dense {
	out := mat.NewDense(3, 3, nil)
	out.Scale(s, m)
	return out
}

func setBlock(dst *mat.Dense, rowOff, colOff int, block *mat.Dense) {
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			dst.Set(rowOff+i, colOff+j, block.At(i, j))
		}
	}
}

func matVec3(m *mat.Dense, v [3]float64) [3]float64 {
	var out mat.VecDense
	out.MulVec(m, mat.NewVecDense(3, v[:]))
	return [3]float64{out.AtVec(0), out.AtVec(1), out.AtVec(2)}
}
