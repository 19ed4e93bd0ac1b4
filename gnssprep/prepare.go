// Package gnssprep turns a raw GNSS reading plus the vehicle's antenna
// geometry into a vehicle-origin pose ready for eskf.UpdateGNSS, the way
// station.go turns raw range/range-rate plus station geometry into a
// Measurement with its own derived fields (spec sec. 4.2).
package gnssprep

import (
	"fmt"
	"math"

	"github.com/KaranBalakumar/Imu-GNSS/geodetic"
	"github.com/KaranBalakumar/Imu-GNSS/navcfg"
	"github.com/KaranBalakumar/Imu-GNSS/navstate"
)

// Status mirrors the fix-quality byte a GNSS receiver reports. Unlike the
// teacher's hard-coded fixed-RTK station noise, it is carried on each
// Reading, and fusion.StatusPolicy decides whether the parsed value is kept
// or replaced (spec sec. 9, resolved open question #1).
type Status int

const (
	StatusUnknown Status = iota
	StatusNoFix
	StatusFix
	StatusDGNSS
	StatusRTKFloat
	StatusRTKFixed
)

// Reading is a raw GNSS fix as read off the sensor stream (spec sec. 6).
type Reading struct {
	T            float64
	LatDeg       float64
	LonDeg       float64
	Alt          float64
	HeadingDeg   float64
	HeadingValid bool
	Status       Status
}

// PreparedGNSS is the vehicle-origin pose derived from a Reading, along
// with the validity flag consumers must check before using it (spec
// sec. 4.2).
type PreparedGNSS struct {
	T         float64
	UTMValid  bool
	P         [3]float64
	R         navstate.Rotation
	HeadingOK bool
}

// Preparer converts Readings into PreparedGNSS values, latching the map
// origin and UTM zone on the first valid fix (spec sec. 3, 4.2).
type Preparer struct {
	antenna navcfg.AntennaConfig
	origin  navcfg.OriginConfig

	latched   bool
	zone      int
	north     bool
	originXYZ [3]float64
}

// New constructs a Preparer. If origin.LatchOnFirstFix is false, the
// configured origin is used immediately; only the UTM zone and hemisphere
// are latched on the first valid fix.
func New(antenna navcfg.AntennaConfig, origin navcfg.OriginConfig) *Preparer {
	p := &Preparer{antenna: antenna, origin: origin}
	if !origin.LatchOnFirstFix {
		p.originXYZ = [3]float64{origin.X, origin.Y, origin.Z}
	}
	return p
}

// Prepare implements spec sec. 4.2's contract. It fails when the projector
// fails, the reading's status is no-fix, or the fix lies outside the
// latched UTM zone/hemisphere; in every such case the returned
// PreparedGNSS has UTMValid == false and must not be used.
func (p *Preparer) Prepare(r Reading) (PreparedGNSS, error) {
	if r.Status == StatusNoFix {
		return PreparedGNSS{T: r.T}, fmt.Errorf("gnssprep: no-fix reading at t=%v", r.T)
	}

	utm, err := geodetic.LatLonToUTM(r.LatDeg, r.LonDeg, r.Alt)
	if err != nil {
		return PreparedGNSS{T: r.T}, fmt.Errorf("gnssprep: projection failed: %w", err)
	}

	if !p.latched {
		p.zone = utm.Zone
		p.north = utm.North
		if p.origin.LatchOnFirstFix {
			p.originXYZ = [3]float64{utm.Easting, utm.Northing, utm.Altitude}
		}
		p.latched = true
	} else if utm.Zone != p.zone || utm.North != p.north {
		return PreparedGNSS{T: r.T}, fmt.Errorf("gnssprep: fix in zone %d (north=%v) crosses latched zone %d (north=%v)", utm.Zone, utm.North, p.zone, p.north)
	}

	antennaPos := [3]float64{
		utm.Easting - p.originXYZ[0],
		utm.Northing - p.originXYZ[1],
		utm.Altitude - p.originXYZ[2],
	}

	prepared := PreparedGNSS{T: r.T, UTMValid: true}

	if !r.HeadingValid {
		prepared.P = antennaPos
		prepared.HeadingOK = false
		return prepared, nil
	}

	yaw := (r.HeadingDeg - p.antenna.AngleDeg) * math.Pi / 180
	rot := navstate.FromYaw(yaw)
	leverArm := rot.RotateVector([3]float64{p.antenna.OffsetX, p.antenna.OffsetY, 0})
	prepared.P = navstate.Sub(antennaPos, leverArm)
	prepared.R = rot
	prepared.HeadingOK = true
	return prepared, nil
}
