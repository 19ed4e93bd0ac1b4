// Package navcfg holds the typed configuration consumed by the filter core
// (spec sec. 6). Apart from the CLI, which uses viper to read the scenario
// file, viper is only touched here; every other package takes a plain
// FilterConfig value, exactly as cmd/od/main.go in the teacher builds
// plain smd types from viper reads without smd itself importing viper.
package navcfg

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// NoiseConfig holds the continuous-time/discrete noise sigmas (spec sec. 6).
type NoiseConfig struct {
	Gyro         float64 // sigma_gyro, rad/s/sqrt(Hz)
	Accel        float64 // sigma_acc, m/s^2/sqrt(Hz)
	GyroBias     float64 // sigma_bg
	AccelBias    float64 // sigma_ba
	GNSSPosition float64 // sigma_gnss_pos, m
	GNSSHeading  float64 // sigma_gnss_heading, rad
	OdomVelocity float64 // sigma_odom_v, m/s
	ZUPT         float64 // sigma_zupt, m/s
}

// InitialSigmaConfig holds the initial-covariance sigma for each of the six
// error-state blocks (spec sec. 4.4.1).
type InitialSigmaConfig struct {
	Position float64
	Velocity float64
	Attitude float64
	GyroBias float64
	AccelBias float64
	Gravity  float64
}

// AntennaConfig holds the GNSS antenna lever arm and mounting offset
// (spec sec. 4.2).
type AntennaConfig struct {
	OffsetX  float64 // a_x, m, vehicle frame
	OffsetY  float64 // a_y, m, vehicle frame
	AngleDeg float64 // theta_ant, deg
}

// OriginConfig is the operator-chosen map origin (spec sec. 4.2). When
// LatchOnFirstFix is true, X/Y/Z are ignored and the origin is taken from
// the first valid GNSS reading instead.
type OriginConfig struct {
	LatchOnFirstFix bool
	X, Y, Z         float64
}

// OdomConfig holds wheel-odometry conversion parameters (spec sec. 3, and
// the sec. 9 open question about pulse semantics: PulseRateHz makes the
// pulses-per-sample-vs-per-second ambiguity an explicit, caller-set value
// rather than a hard-coded assumption).
type OdomConfig struct {
	Enabled        bool
	WheelRadius    float64 // m
	PulsesPerRev   float64
	PulseRateHz    float64 // sample rate of the pulse counters, Hz
	MaxBodySpeed   float64 // m/s, odom updates above this are ignored (sec. 4.5)
}

// StaticDetectConfig holds the zero-velocity / static-alignment detection
// thresholds (spec sec. 4.5).
type StaticDetectConfig struct {
	Enabled         bool
	Window          int     // static_window, default 5
	GyroThresh      float64 // static_gyro_thresh, rad/s
	AccelThresh     float64 // static_acc_thresh, m/s^2
	AlignmentCount  int     // # IMU samples for initial alignment, default 200
}

// FilterConfig is the complete, typed configuration of the ESKF core.
type FilterConfig struct {
	WithOdom bool
	WithZUPT bool

	Antenna AntennaConfig
	Origin  OriginConfig
	Odom    OdomConfig
	Static  StaticDetectConfig

	Noise   NoiseConfig
	Initial InitialSigmaConfig

	MaxIMUDt     time.Duration // max_imu_dt, default 0.1s
	IEKFMaxIter  int           // iekf_max_iter, default 3
	IEKFEps      float64       // iekf_eps
	MaxGNSSBackdate time.Duration // tau_back, default 50ms

	DivergenceTraceLimit float64 // sec. 6 exit-code-3 threshold
}

// Default returns the spec's stated default configuration (sec. 4.4.6,
// 4.5, 6): 0.1s max IMU dt, 3 IESKF iterations, a 5-sample static window,
// a 200-sample alignment window, and a 50ms GNSS back-dating tolerance.
func Default() FilterConfig {
	return FilterConfig{
		MaxIMUDt:        100 * time.Millisecond,
		IEKFMaxIter:     3,
		IEKFEps:         1e-6,
		MaxGNSSBackdate: 50 * time.Millisecond,
		Static: StaticDetectConfig{
			Window:         5,
			AlignmentCount: 200,
			GyroThresh:     0.01,
			AccelThresh:    0.1,
		},
		DivergenceTraceLimit: 1e6,
	}
}

// FromViper builds a FilterConfig from a viper instance already loaded with
// a scenario file, following cmd/od/main.go's dotted-key read style.
func FromViper(v *viper.Viper) (FilterConfig, error) {
	cfg := Default()

	cfg.WithOdom = v.GetBool("with_odom")
	cfg.WithZUPT = v.GetBool("with_zupt")

	cfg.Antenna = AntennaConfig{
		OffsetX:  v.GetFloat64("antenna_pos_x"),
		OffsetY:  v.GetFloat64("antenna_pos_y"),
		AngleDeg: v.GetFloat64("antenna_angle_deg"),
	}

	if v.GetString("map_origin") == "latch-on-first-fix" || !v.IsSet("map_origin_x") {
		cfg.Origin = OriginConfig{LatchOnFirstFix: true}
	} else {
		cfg.Origin = OriginConfig{
			X: v.GetFloat64("map_origin_x"),
			Y: v.GetFloat64("map_origin_y"),
			Z: v.GetFloat64("map_origin_z"),
		}
	}

	cfg.Odom = OdomConfig{
		Enabled:      cfg.WithOdom,
		WheelRadius:  v.GetFloat64("wheel_radius"),
		PulsesPerRev: v.GetFloat64("pulses_per_rev"),
		PulseRateHz:  v.GetFloat64("odom_pulse_rate_hz"),
		MaxBodySpeed: orDefault(v.GetFloat64("odom_max_speed"), 50),
	}

	cfg.Noise = NoiseConfig{
		Gyro:         v.GetFloat64("sigma_gyro"),
		Accel:        v.GetFloat64("sigma_acc"),
		GyroBias:     v.GetFloat64("sigma_bg"),
		AccelBias:    v.GetFloat64("sigma_ba"),
		GNSSPosition: v.GetFloat64("sigma_gnss_pos"),
		GNSSHeading:  v.GetFloat64("sigma_gnss_heading"),
		OdomVelocity: v.GetFloat64("sigma_odom_v"),
		ZUPT:         v.GetFloat64("sigma_zupt"),
	}

	cfg.Initial = InitialSigmaConfig{
		Position:  v.GetFloat64("initial_sigma_position"),
		Velocity:  v.GetFloat64("initial_sigma_velocity"),
		Attitude:  v.GetFloat64("initial_sigma_attitude"),
		GyroBias:  v.GetFloat64("initial_sigma_bg"),
		AccelBias: v.GetFloat64("initial_sigma_ba"),
		Gravity:   v.GetFloat64("initial_sigma_gravity"),
	}

	if dt := v.GetFloat64("max_imu_dt"); dt > 0 {
		cfg.MaxIMUDt = time.Duration(dt * float64(time.Second))
	}
	if n := v.GetInt("iekf_max_iter"); n > 0 {
		cfg.IEKFMaxIter = n
	}
	if eps := v.GetFloat64("iekf_eps"); eps > 0 {
		cfg.IEKFEps = eps
	}
	if w := v.GetInt("static_window"); w > 0 {
		cfg.Static.Window = w
	}
	if th := v.GetFloat64("static_gyro_thresh"); th > 0 {
		cfg.Static.GyroThresh = th
	}
	if th := v.GetFloat64("static_acc_thresh"); th > 0 {
		cfg.Static.AccelThresh = th
	}
	cfg.Static.Enabled = cfg.WithZUPT

	if err := validate(cfg); err != nil {
		return FilterConfig{}, err
	}
	return cfg, nil
}

func orDefault(v, def float64) float64 {
	if v == 0 {
		return def
	}
	return v
}

// validate reports configuration errors before the driver starts, per spec
// sec. 7 ("Configuration errors: reported before the driver starts; no
// partial run.").
func validate(cfg FilterConfig) error {
	if cfg.Odom.Enabled {
		if cfg.Odom.WheelRadius <= 0 {
			return fmt.Errorf("navcfg: wheel_radius must be > 0 when with_odom is set")
		}
		if cfg.Odom.PulsesPerRev <= 0 {
			return fmt.Errorf("navcfg: pulses_per_rev must be > 0 when with_odom is set")
		}
		if cfg.Odom.PulseRateHz <= 0 {
			return fmt.Errorf("navcfg: odom_pulse_rate_hz must be > 0 when with_odom is set")
		}
	}
	if cfg.IEKFMaxIter < 1 {
		return fmt.Errorf("navcfg: iekf_max_iter must be >= 1")
	}
	return nil
}
