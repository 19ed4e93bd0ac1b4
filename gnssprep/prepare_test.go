package gnssprep

import (
	"math"
	"testing"

	"github.com/KaranBalakumar/Imu-GNSS/navcfg"
)

func TestLatchesOriginOnFirstFix(t *testing.T) {
	p := New(navcfg.AntennaConfig{}, navcfg.OriginConfig{LatchOnFirstFix: true})

	first := Reading{T: 0, LatDeg: 45.5, LonDeg: -122.6, Alt: 10, HeadingValid: false, Status: StatusFix}
	out, err := p.Prepare(first)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out.UTMValid {
		t.Fatal("expected utm_valid on first fix")
	}
	if math.Abs(out.P[0]) > 1e-9 || math.Abs(out.P[1]) > 1e-9 {
		t.Fatalf("expected origin-relative position to be zero at the latching fix, got %v", out.P)
	}
}

func TestNoFixRejected(t *testing.T) {
	p := New(navcfg.AntennaConfig{}, navcfg.OriginConfig{LatchOnFirstFix: true})
	_, err := p.Prepare(Reading{T: 0, LatDeg: 45, LonDeg: -122, Status: StatusNoFix})
	if err == nil {
		t.Fatal("expected error for no-fix reading")
	}
}

func TestHeadingInvalidSkipsRotation(t *testing.T) {
	p := New(navcfg.AntennaConfig{}, navcfg.OriginConfig{LatchOnFirstFix: true})
	out, err := p.Prepare(Reading{T: 0, LatDeg: 45.5, LonDeg: -122.6, HeadingValid: false, Status: StatusFix})
	if err != nil {
		t.Fatal(err)
	}
	if out.HeadingOK {
		t.Fatal("expected HeadingOK=false when heading_valid=0")
	}
}

func TestLeverArmBackProjection(t *testing.T) {
	p := New(navcfg.AntennaConfig{OffsetX: 1, OffsetY: 0, AngleDeg: 0}, navcfg.OriginConfig{LatchOnFirstFix: true})
	out, err := p.Prepare(Reading{T: 0, LatDeg: 45.5, LonDeg: -122.6, HeadingValid: true, HeadingDeg: 90, Status: StatusFix})
	if err != nil {
		t.Fatal(err)
	}
	if !out.HeadingOK {
		t.Fatal("expected HeadingOK=true")
	}
	// At the latching fix, the antenna position (post-origin-subtraction) is
	// zero; the vehicle origin is offset backwards along the lever arm, so
	// p_vehicle should be non-zero despite the raw fix being at the origin.
	if math.Abs(out.P[0]) < 1e-6 && math.Abs(out.P[1]) < 1e-6 {
		t.Fatalf("expected lever arm to shift the vehicle position, got %v", out.P)
	}
}
