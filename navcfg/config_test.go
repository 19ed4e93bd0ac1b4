package navcfg

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseViper() *viper.Viper {
	v := viper.New()
	v.Set("sigma_gyro", 1e-4)
	v.Set("sigma_acc", 1e-3)
	v.Set("sigma_bg", 1e-6)
	v.Set("sigma_ba", 1e-5)
	v.Set("sigma_gnss_pos", 0.5)
	v.Set("sigma_gnss_heading", 0.05)
	v.Set("sigma_odom_v", 0.1)
	v.Set("sigma_zupt", 0.05)
	v.Set("initial_sigma_position", 1.0)
	v.Set("initial_sigma_velocity", 0.5)
	v.Set("initial_sigma_attitude", 0.1)
	v.Set("initial_sigma_bg", 1e-3)
	v.Set("initial_sigma_ba", 1e-2)
	v.Set("initial_sigma_gravity", 0.1)
	return v
}

// TestFromViperDefaults checks the sec. 6 defaults (0.1s max IMU dt, 3 IESKF
// iterations, a 5-sample static window) survive an otherwise-empty scenario.
func TestFromViperDefaults(t *testing.T) {
	assert := assert.New(t)
	cfg, err := FromViper(baseViper())
	require.NoError(t, err)

	assert.Equal(100*time.Millisecond, cfg.MaxIMUDt)
	assert.Equal(3, cfg.IEKFMaxIter)
	assert.Equal(5, cfg.Static.Window)
	assert.Equal(200, cfg.Static.AlignmentCount)
	assert.True(cfg.Origin.LatchOnFirstFix, "map origin should latch when unset")
}

// TestFromViperExplicitOrigin checks that setting map_origin_x opts out of
// latch-on-first-fix (sec. 6).
func TestFromViperExplicitOrigin(t *testing.T) {
	assert := assert.New(t)
	v := baseViper()
	v.Set("map_origin_x", 100.0)
	v.Set("map_origin_y", 200.0)
	v.Set("map_origin_z", 5.0)

	cfg, err := FromViper(v)
	require.NoError(t, err)

	assert.False(cfg.Origin.LatchOnFirstFix)
	assert.Equal(100.0, cfg.Origin.X)
	assert.Equal(200.0, cfg.Origin.Y)
	assert.Equal(5.0, cfg.Origin.Z)
}

// TestFromViperRejectsIncompleteOdomConfig checks sec. 7's "configuration
// errors reported before the driver starts" rule: enabling with_odom
// without wheel geometry must fail fast rather than silently running with
// zero-valued conversion parameters.
func TestFromViperRejectsIncompleteOdomConfig(t *testing.T) {
	assert := assert.New(t)
	v := baseViper()
	v.Set("with_odom", true)

	_, err := FromViper(v)
	assert.Error(err, "missing wheel_radius/pulses_per_rev/odom_pulse_rate_hz must be rejected")
}

func TestFromViperAcceptsCompleteOdomConfig(t *testing.T) {
	assert := assert.New(t)
	v := baseViper()
	v.Set("with_odom", true)
	v.Set("wheel_radius", 0.3)
	v.Set("pulses_per_rev", 48.0)
	v.Set("odom_pulse_rate_hz", 100.0)

	cfg, err := FromViper(v)
	require.NoError(t, err)
	assert.True(cfg.Odom.Enabled)
	assert.Equal(0.3, cfg.Odom.WheelRadius)
	assert.Equal(50.0, cfg.Odom.MaxBodySpeed, "unset odom_max_speed falls back to the 50 m/s default")
}
