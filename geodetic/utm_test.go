package geodetic

import (
	"math"
	"testing"
)

// TestRoundTrip exercises spec sec. 8 property #1: for |lat| < 80 deg,
// UTMToLatLon(LatLonToUTM(lat,lon)) must return within 1e-7 deg.
func TestRoundTrip(t *testing.T) {
	cases := []struct{ lat, lon float64 }{
		{0, 0},
		{45.5, -122.6},
		{51.5074, -0.1278},
		{-33.87, 151.21},
		{35.68, 139.77},
		{-79.9, 10.0},
		{79.9, -170.0},
	}
	for _, c := range cases {
		u, err := LatLonToUTM(c.lat, c.lon, 0)
		if err != nil {
			t.Fatalf("LatLonToUTM(%v,%v) failed: %v", c.lat, c.lon, err)
		}
		lat, lon, err := UTMToLatLon(u)
		if err != nil {
			t.Fatalf("UTMToLatLon failed: %v", err)
		}
		if math.Abs(lat-c.lat) > 1e-7 {
			t.Fatalf("lat round trip: got %v want %v (diff %v)", lat, c.lat, lat-c.lat)
		}
		if math.Abs(lon-c.lon) > 1e-7 {
			t.Fatalf("lon round trip: got %v want %v (diff %v)", lon, c.lon, lon-c.lon)
		}
	}
}

func TestRejectsOutOfRangeLatitude(t *testing.T) {
	if _, err := LatLonToUTM(84.5, 10, 0); err == nil {
		t.Fatal("expected error for |lat| >= 84")
	}
	if _, err := LatLonToUTM(-85, 10, 0); err == nil {
		t.Fatal("expected error for |lat| >= 84")
	}
}

func TestRejectsNonFiniteLongitude(t *testing.T) {
	if _, err := LatLonToUTM(10, math.NaN(), 0); err == nil {
		t.Fatal("expected error for non-finite lon")
	}
	if _, err := LatLonToUTM(10, math.Inf(1), 0); err == nil {
		t.Fatal("expected error for non-finite lon")
	}
}

func TestZoneAssignment(t *testing.T) {
	u, err := LatLonToUTM(51.5074, -0.1278, 0)
	if err != nil {
		t.Fatal(err)
	}
	if u.Zone != 30 {
		t.Fatalf("expected zone 30 for London, got %d", u.Zone)
	}
	if !u.North {
		t.Fatal("expected northern hemisphere for London")
	}
}
