package eskf

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/KaranBalakumar/Imu-GNSS/navcfg"
	"github.com/KaranBalakumar/Imu-GNSS/navstate"
)

func testConfig() navcfg.FilterConfig {
	cfg := navcfg.Default()
	cfg.Noise = navcfg.NoiseConfig{
		Gyro: 1e-4, Accel: 1e-3, GyroBias: 1e-6, AccelBias: 1e-5,
		GNSSPosition: 0.5, GNSSHeading: 0.05, OdomVelocity: 0.1, ZUPT: 0.05,
	}
	cfg.Initial = navcfg.InitialSigmaConfig{
		Position: 1, Velocity: 0.5, Attitude: 0.1, GyroBias: 1e-3, AccelBias: 1e-2, Gravity: 0.1,
	}
	return cfg
}

func freshEngine() *Engine {
	e := NewEngine(testConfig(), nil)
	e.Init(navstate.State{}, [3]float64{}, [3]float64{}, [3]float64{0, 0, -9.81})
	return e
}

// TestZeroResidualGNSSNoChange checks spec property #3: a GNSS observation
// exactly matching the current state produces no meaningful change to P,
// within numerical noise.
func TestZeroResidualGNSSNoChange(t *testing.T) {
	e := freshEngine()
	pBefore := cloneSym(e.p)

	obs := GNSSObservation{
		R: e.s.R, P: e.s.P, HeadingOK: true,
		SigmaPos: 0.5, SigmaHeading: 0.05,
	}
	e.UpdateGNSS(obs)

	if !statePEqual(e.s.P, [3]float64{}) {
		t.Fatalf("expected unchanged position, got %v", e.s.P)
	}
	diff := frobeniusDiff(pBefore, e.p)
	norm := frobeniusNorm(pBefore)
	if diff > 1e-6*math.Max(norm, 1) {
		t.Fatalf("covariance changed on zero residual: diff=%v norm=%v", diff, norm)
	}
}

// TestCovarianceStaysSymmetricPSD checks spec property #4 across predict and
// all three update types.
func TestCovarianceStaysSymmetricPSD(t *testing.T) {
	e := freshEngine()
	t0 := 0.0
	for i := 0; i < 50; i++ {
		t0 += 0.01
		e.Predict(navstate.IMUSample{T: t0, W: [3]float64{0.001, -0.002, 0.0005}, A: [3]float64{0.01, 0, 9.81}})
	}
	e.UpdateGNSS(GNSSObservation{R: e.s.R, P: navstate.Add(e.s.P, [3]float64{0.2, -0.1, 0}), HeadingOK: true, SigmaPos: 0.5, SigmaHeading: 0.05})
	e.UpdateOdom(1.0, 0.1)
	e.UpdateZUPT(0.05)

	assertSymmetricPSD(t, e.p)
}

func assertSymmetricPSD(t *testing.T, p *mat.SymDense) {
	t.Helper()
	n, _ := p.Dims()
	var asymSq, normSq float64
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			d := p.At(i, j) - p.At(j, i)
			asymSq += d * d
			normSq += p.At(i, j) * p.At(i, j)
		}
	}
	if math.Sqrt(asymSq) > 1e-9*math.Sqrt(normSq) {
		t.Fatalf("covariance not symmetric: asym=%v norm=%v", math.Sqrt(asymSq), math.Sqrt(normSq))
	}

	var eig mat.EigenSym
	if !eig.Factorize(p, false) {
		t.Fatal("eigendecomposition failed")
	}
	values := eig.Values(nil)
	minV, maxV := values[0], values[0]
	for _, v := range values {
		if v < minV {
			minV = v
		}
		if v > maxV {
			maxV = v
		}
	}
	if minV < -1e-9*maxV {
		t.Fatalf("covariance not PSD: min eigenvalue %v, max %v", minV, maxV)
	}
}

// TestIdempotentInjection checks spec property #5: injecting dx then -dx
// into a fresh copy of the same state returns to the original within 1e-9.
func TestIdempotentInjection(t *testing.T) {
	s := navstate.State{R: navstate.Identity(), P: [3]float64{1, 2, 3}, V: [3]float64{0.1, 0.2, 0.3}}
	dx := mat.NewVecDense(navstate.ErrStateDim, nil)
	dx.SetVec(navstate.OffP, 0.01)
	dx.SetVec(navstate.OffTh, 0.001)
	dx.SetVec(navstate.OffTh+1, -0.002)

	negDx := mat.NewVecDense(navstate.ErrStateDim, nil)
	for i := 0; i < navstate.ErrStateDim; i++ {
		negDx.SetVec(i, -dx.AtVec(i))
	}

	forward := s.ComposeRight(dx)
	back := forward.ComposeRight(negDx)

	if navstate.Norm(navstate.Sub(back.P, s.P)) > 1e-9 {
		t.Fatalf("position did not round-trip: got %v want %v", back.P, s.P)
	}
	rDiff := s.R.Inverse().Mul(back.R).Log()
	if navstate.Norm(rDiff) > 1e-9 {
		t.Fatalf("rotation did not round-trip: log-diff %v", rDiff)
	}
}

// TestPureIMUDriftMonotonicity checks spec property #2 in its bias-free,
// perfectly static form: after 500 predicts with zero rate and specific
// force exactly cancelling gravity, velocity and orientation must still be
// zero (within 1e-6), i.e. propagation adds no spurious motion.
func TestPureIMUDriftMonotonicity(t *testing.T) {
	e := freshEngine()
	t0 := 0.0
	dt := 0.01
	for i := 0; i < 500; i++ {
		t0 += dt
		e.Predict(navstate.IMUSample{T: t0, W: [3]float64{}, A: [3]float64{0, 0, 9.81}})
	}
	if navstate.Norm(e.s.V) > 1e-6 {
		t.Fatalf("velocity drifted under zero-motion predicts: %v", e.s.V)
	}
	rv := e.s.R.Log()
	if navstate.Norm(rv) > 1e-6 {
		t.Fatalf("rotation drifted under zero-rate predicts: %v", rv)
	}
}

func cloneSym(p *mat.SymDense) *mat.SymDense {
	n, _ := p.Dims()
	out := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			out.SetSym(i, j, p.At(i, j))
		}
	}
	return out
}

func frobeniusNorm(p *mat.SymDense) float64 {
	n, _ := p.Dims()
	sum := 0.0
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			sum += p.At(i, j) * p.At(i, j)
		}
	}
	return math.Sqrt(sum)
}

func frobeniusDiff(a, b *mat.SymDense) float64 {
	n, _ := a.Dims()
	sum := 0.0
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			d := a.At(i, j) - b.At(i, j)
			sum += d * d
		}
	}
	return math.Sqrt(sum)
}

func statePEqual(p, want [3]float64) bool {
	return navstate.Norm(navstate.Sub(p, want)) < 1e-9
}

// TestOdomUpdateCorrectsVelocityBias replays spec sec. 8's S4 scenario in
// miniature: a constant true body speed with a biased initial velocity
// estimate, dead-reckoned with and without periodic wheel-odom updates. It
// doubles as a regression check on the odom Jacobian's sign (sec. 4.4.4):
// with the wrong sign, the correction would push velocity further from the
// true speed and the with-odom run would accumulate more position error
// than the without-odom run, not less.
func TestOdomUpdateCorrectsVelocityBias(t *testing.T) {
	const trueSpeed = 5.0
	const biasedSpeed = 5.2
	const dt = 0.01
	const steps = 200

	withoutOdom := freshEngine()
	withoutOdom.s.V = [3]float64{biasedSpeed, 0, 0}

	withOdom := freshEngine()
	withOdom.s.V = [3]float64{biasedSpeed, 0, 0}

	truePos := 0.0
	t0 := 0.0
	for i := 0; i < steps; i++ {
		t0 += dt
		truePos += trueSpeed * dt

		withoutOdom.Predict(navstate.IMUSample{T: t0, A: [3]float64{0, 0, 9.81}})
		withOdom.Predict(navstate.IMUSample{T: t0, A: [3]float64{0, 0, 9.81}})
		if i%10 == 0 {
			withOdom.UpdateOdom(trueSpeed, 0.05)
		}
	}

	errWithout := math.Abs(withoutOdom.s.P[0] - truePos)
	errWith := math.Abs(withOdom.s.P[0] - truePos)

	if errWith >= errWithout {
		t.Fatalf("with-odom position error (%v) not smaller than without-odom error (%v)", errWith, errWithout)
	}
	if math.Abs(withOdom.s.V[0]-trueSpeed) > 0.05 {
		t.Fatalf("with-odom velocity did not converge to true speed: got %v, want ~%v", withOdom.s.V[0], trueSpeed)
	}
}
