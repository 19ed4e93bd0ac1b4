// Package geodetic implements the stateless WGS-84 latitude/longitude <->
// UTM projection (spec sec. 4.1). It has no dependency on the rest of the
// filter: it is pure coordinate math.
package geodetic

import (
	"fmt"
	"math"
)

// WGS-84 ellipsoid constants.
const (
	semiMajorAxis  = 6378137.0       // a, meters
	flattening     = 1 / 298.257223563 // f
	k0             = 0.9996          // UTM central-meridian scale factor
	falseEasting   = 500000.0        // meters
	falseNorthingS = 10000000.0      // meters, southern-hemisphere offset
	maxAbsLatDeg   = 84.0            // spec sec. 4.1 validity bound
)

var (
	eccSq  = flattening * (2 - flattening)
	eccSq2 = eccSq * eccSq
	eccSq3 = eccSq * eccSq * eccSq
)

// UTMCoord is a zone-based Cartesian coordinate (spec sec. 3).
type UTMCoord struct {
	Zone     int
	Easting  float64
	Northing float64
	Altitude float64
	North    bool // true = northern hemisphere
}

// ZoneCentralMeridian returns the central meridian, in degrees, of the
// given UTM zone.
func ZoneCentralMeridian(zone int) float64 {
	return float64(zone)*6 - 183
}

func zoneForLon(lonDeg float64) int {
	return int(math.Floor((lonDeg+180)/6)) + 1
}

// LatLonToUTM converts a WGS-84 geodetic position to a UTM coordinate. It
// fails when |lat| >= 84 deg or lon is non-finite, per spec sec. 4.1.
func LatLonToUTM(latDeg, lonDeg, altitude float64) (UTMCoord, error) {
	if math.Abs(latDeg) >= maxAbsLatDeg {
		return UTMCoord{}, fmt.Errorf("geodetic: |lat|=%.4f >= %.1f deg, outside UTM validity", math.Abs(latDeg), maxAbsLatDeg)
	}
	if !isFinite(latDeg) || !isFinite(lonDeg) {
		return UTMCoord{}, fmt.Errorf("geodetic: non-finite lat/lon (%v, %v)", latDeg, lonDeg)
	}

	zone := zoneForLon(lonDeg)
	lon0 := ZoneCentralMeridian(zone) * deg2rad
	lat := latDeg * deg2rad
	lon := lonDeg * deg2rad

	sinLat, cosLat := math.Sincos(lat)
	tanLat := sinLat / cosLat

	ePrimeSq := eccSq / (1 - eccSq)
	n := semiMajorAxis / math.Sqrt(1-eccSq*sinLat*sinLat)
	t := tanLat * tanLat
	c := ePrimeSq * cosLat * cosLat
	a := cosLat * angleDiff(lon, lon0)

	m := meridianArc(lat)

	easting := k0*n*(a+(1-t+c)*math.Pow(a, 3)/6+
		(5-18*t+t*t+72*c-58*ePrimeSq)*math.Pow(a, 5)/120) + falseEasting

	northing := k0 * (m + n*tanLat*(a*a/2+
		(5-t+9*c+4*c*c)*math.Pow(a, 4)/24+
		(61-58*t+t*t+600*c-330*ePrimeSq)*math.Pow(a, 6)/720))

	north := latDeg >= 0
	if !north {
		northing += falseNorthingS
	}

	return UTMCoord{Zone: zone, Easting: easting, Northing: northing, Altitude: altitude, North: north}, nil
}

// UTMToLatLon is the inverse of LatLonToUTM.
func UTMToLatLon(u UTMCoord) (latDeg, lonDeg float64, err error) {
	if u.Zone < 1 || u.Zone > 60 {
		return 0, 0, fmt.Errorf("geodetic: invalid UTM zone %d", u.Zone)
	}
	x := u.Easting - falseEasting
	y := u.Northing
	if !u.North {
		y -= falseNorthingS
	}

	m := y / k0
	mu := m / (semiMajorAxis * (1 - eccSq/4 - 3*eccSq2/64 - 5*eccSq3/256))

	e1 := (1 - math.Sqrt(1-eccSq)) / (1 + math.Sqrt(1-eccSq))
	phi1 := mu + (3*e1/2-27*math.Pow(e1, 3)/32)*math.Sin(2*mu) +
		(21*e1*e1/16-55*math.Pow(e1, 4)/32)*math.Sin(4*mu) +
		(151*math.Pow(e1, 3)/96)*math.Sin(6*mu)

	sinPhi1, cosPhi1 := math.Sincos(phi1)
	tanPhi1 := sinPhi1 / cosPhi1
	ePrimeSq := eccSq / (1 - eccSq)
	c1 := ePrimeSq * cosPhi1 * cosPhi1
	t1 := tanPhi1 * tanPhi1
	n1 := semiMajorAxis / math.Sqrt(1-eccSq*sinPhi1*sinPhi1)
	r1 := semiMajorAxis * (1 - eccSq) / math.Pow(1-eccSq*sinPhi1*sinPhi1, 1.5)
	d := x / (n1 * k0)

	lat := phi1 - (n1*tanPhi1/r1)*(d*d/2-
		(5+3*t1+10*c1-4*c1*c1-9*ePrimeSq)*math.Pow(d, 4)/24+
		(61+90*t1+298*c1+45*t1*t1-252*ePrimeSq-3*c1*c1)*math.Pow(d, 6)/720)

	lon0 := ZoneCentralMeridian(u.Zone) * deg2rad
	lon := lon0 + (d-
		(1+2*t1+c1)*math.Pow(d, 3)/6+
		(5-2*c1+28*t1-3*c1*c1+8*ePrimeSq+24*t1*t1)*math.Pow(d, 5)/120)/cosPhi1

	return lat * rad2deg, lon * rad2deg, nil
}

const (
	deg2rad = math.Pi / 180
	rad2deg = 180 / math.Pi
)

// meridianArc returns the true meridional arc length from the equator to
// the given latitude (radians), for the WGS-84 ellipsoid.
func meridianArc(lat float64) float64 {
	a := semiMajorAxis
	m := a * ((1-eccSq/4-3*eccSq2/64-5*eccSq3/256)*lat -
		(3*eccSq/8+3*eccSq2/32+45*eccSq3/1024)*math.Sin(2*lat) +
		(15*eccSq2/256+45*eccSq3/1024)*math.Sin(4*lat) -
		(35*eccSq3/3072)*math.Sin(6*lat))
	return m
}

func angleDiff(a, b float64) float64 {
	d := a - b
	for d > math.Pi {
		d -= 2 * math.Pi
	}
	for d < -math.Pi {
		d += 2 * math.Pi
	}
	return d
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
