package fusion

import (
	"github.com/KaranBalakumar/Imu-GNSS/navcfg"
	"github.com/KaranBalakumar/Imu-GNSS/navstate"
)

// staticDetector implements spec sec. 4.5's static-window classifier: when
// the last K IMU samples have ||w|| < w_stat and ||a - mean_a|| < a_stat,
// the next cycle includes a ZUPT.
type staticDetector struct {
	cfg    navcfg.StaticDetectConfig
	window []navstate.IMUSample
}

func newStaticDetector(cfg navcfg.StaticDetectConfig) staticDetector {
	k := cfg.Window
	if k < 1 {
		k = 1
	}
	return staticDetector{cfg: cfg, window: make([]navstate.IMUSample, 0, k)}
}

func (d *staticDetector) observe(s navstate.IMUSample) {
	d.window = append(d.window, s)
	if len(d.window) > d.cfg.Window {
		d.window = d.window[len(d.window)-d.cfg.Window:]
	}
}

func (d *staticDetector) isStatic() bool {
	if len(d.window) < d.cfg.Window {
		return false
	}
	var sumA [3]float64
	for _, s := range d.window {
		if navstate.Norm(s.W) >= d.cfg.GyroThresh {
			return false
		}
		sumA = navstate.Add(sumA, s.A)
	}
	meanA := navstate.Scale(1/float64(len(d.window)), sumA)
	for _, s := range d.window {
		if navstate.Norm(navstate.Sub(s.A, meanA)) >= d.cfg.AccelThresh {
			return false
		}
	}
	return true
}
