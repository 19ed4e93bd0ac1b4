package fusion

import (
	"math"
	"testing"

	"github.com/KaranBalakumar/Imu-GNSS/gnssprep"
	"github.com/KaranBalakumar/Imu-GNSS/navcfg"
	"github.com/KaranBalakumar/Imu-GNSS/navstate"
	"github.com/KaranBalakumar/Imu-GNSS/sink"
)

func testFilterConfig() navcfg.FilterConfig {
	cfg := navcfg.Default()
	cfg.Static.AlignmentCount = 200
	cfg.Static.Window = 5
	cfg.Static.GyroThresh = 0.01
	cfg.Static.AccelThresh = 0.1
	cfg.Noise = navcfg.NoiseConfig{
		Gyro: 1e-4, Accel: 1e-3, GyroBias: 1e-6, AccelBias: 1e-5,
		GNSSPosition: 0.5, GNSSHeading: 0.05, OdomVelocity: 0.1, ZUPT: 0.05,
	}
	cfg.Initial = navcfg.InitialSigmaConfig{
		Position: 1, Velocity: 0.5, Attitude: 0.1, GyroBias: 1e-3, AccelBias: 1e-2, Gravity: 0.1,
	}
	cfg.Origin = navcfg.OriginConfig{LatchOnFirstFix: true}
	return cfg
}

// TestS1StaticAlignment mirrors spec sec. 8's S1 scenario: 200 static IMU
// samples at 0.01s spacing should align v=0, R=I, bg=0, gravity=(0,0,-9.81).
func TestS1StaticAlignment(t *testing.T) {
	cfg := testFilterConfig()
	boxSink := sink.NewBoxSink()
	d := New(cfg, nil, boxSink)

	t0 := 0.0
	for i := 0; i < 200; i++ {
		d.Dispatch(Event{Kind: EventIMU, IMU: navstate.IMUSample{T: t0, A: [3]float64{0, 0, 9.81}}})
		t0 += 0.01
	}

	snap, ok := boxSink.NavState.Load()
	if !ok {
		t.Fatal("expected a nav-state snapshot to be published post-alignment")
	}
	if navstate.Norm(snap.V) > 1e-6 {
		t.Fatalf("expected v=0 after alignment, got %v", snap.V)
	}
	if navstate.Norm(snap.Bg) > 1e-4 {
		t.Fatalf("expected bg near 0, got %v", snap.Bg)
	}
	if math.Abs(snap.G[2]+9.81) > 1e-3 {
		t.Fatalf("expected gravity near (0,0,-9.81), got %v", snap.G)
	}
}

// TestS5OutOfOrderGNSSDropped mirrors spec sec. 8's S5 scenario: a GNSS
// reading timestamped before last_t - tau_back must not change state.
func TestS5OutOfOrderGNSSDropped(t *testing.T) {
	cfg := testFilterConfig()
	cfg.Static.AlignmentCount = 5
	d := New(cfg, nil, nil)

	t0 := 0.0
	for i := 0; i < 5; i++ {
		d.Dispatch(Event{Kind: EventIMU, IMU: navstate.IMUSample{T: t0, A: [3]float64{0, 0, 9.81}}})
		t0 += 0.01
	}
	for i := 0; i < 10; i++ {
		d.Dispatch(Event{Kind: EventIMU, IMU: navstate.IMUSample{T: t0, A: [3]float64{0, 0, 9.81}}})
		t0 += 0.1
	}

	before := d.engine.Snapshot()

	d.Dispatch(Event{Kind: EventGNSS, GNSS: gnssprep.Reading{
		T: d.lastT - 0.1, LatDeg: 45.5, LonDeg: -122.6, Status: gnssprep.StatusFix,
	}})

	after := d.engine.Snapshot()
	if navstate.Norm(navstate.Sub(before.P, after.P)) > 1e-12 {
		t.Fatalf("state changed on out-of-order GNSS: before=%v after=%v", before.P, after.P)
	}
}
