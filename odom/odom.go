// Package odom converts wheel-encoder pulse counts into a body-frame
// longitudinal speed (spec sec. 3). No corpus file performs this
// conversion directly (see DESIGN.md); it is written as a small pure
// function plus config struct, in the same shape as the teacher's
// unit-conversion helpers in math.go.
package odom

import (
	"fmt"
	"math"

	"github.com/KaranBalakumar/Imu-GNSS/navcfg"
	"github.com/KaranBalakumar/Imu-GNSS/navstate"
)

// Converter turns successive OdomSamples into a body speed, given a fixed
// wheel circumference/pulses-per-rev/pulse-rate configuration (spec
// sec. 9, resolved open question #2).
type Converter struct {
	cfg  navcfg.OdomConfig
	last navstate.OdomSample
	have bool
}

// New constructs a Converter from configuration.
func New(cfg navcfg.OdomConfig) *Converter {
	return &Converter{cfg: cfg}
}

// Convert computes the body-frame longitudinal speed directly from sec. 3's
// formula: v_body = 0.5*(pulses_L+pulses_R)*circumference/pulses_per_rev/
// dt_pulse, applied to the sample's own pulse counts as-is — they are
// per-interval counts, not a cumulative counter, so no differencing
// against the previous sample is needed or correct (sec. 9's resolved
// ambiguity). dt_pulse is the configured pulse-counter interval
// (1/PulseRateHz), a fixed property of the encoder, not the inter-sample
// arrival delta. The sample timestamp is used only to reject a malformed
// stream per sec. 9's "reject the stream if dt between odom samples is
// zero" guard; it never enters the speed computation.
func (c *Converter) Convert(sample navstate.OdomSample) (float64, error) {
	if c.cfg.PulseRateHz <= 0 {
		return 0, fmt.Errorf("odom: PulseRateHz must be configured explicitly and > 0")
	}

	if c.have {
		dt := sample.T - c.last.T
		if dt <= 0 {
			c.last = sample
			return 0, fmt.Errorf("odom: non-positive dt (%v) between odom samples, rejecting per sec. 9's zero-interval guard", dt)
		}
	}
	c.last = sample
	c.have = true

	circumference := 2 * math.Pi * c.cfg.WheelRadius
	avgPulses := 0.5 * (sample.PulsesLeft + sample.PulsesRight)
	speed := avgPulses * c.cfg.PulseRateHz * circumference / c.cfg.PulsesPerRev

	if math.Abs(speed) > c.cfg.MaxBodySpeed {
		return 0, fmt.Errorf("odom: implausible speed %.3f m/s exceeds cap %.3f m/s, ignoring sample", speed, c.cfg.MaxBodySpeed)
	}
	return speed, nil
}
