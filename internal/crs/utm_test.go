package crs

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/planar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZoneFor(t *testing.T) {
	tests := []struct {
		lon, lat float64
		want     int
	}{
		{-122.42, 37.77, 32610},
		{-118.24, 34.05, 32611},
		{0, 0, 32631},
		{2.35, 48.85, 32631},
		{151.21, -33.87, 32756},
		{-180, 10, 32601},
		{180, 10, 32660},
		{-70.65, -33.45, 32719},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ZoneFor(tt.lon, tt.lat).EPSG(), "lon=%v lat=%v", tt.lon, tt.lat)
	}
}

func TestZoneFromEPSG(t *testing.T) {
	z, ok := ZoneFromEPSG(32610)
	require.True(t, ok)
	assert.Equal(t, Zone{Number: 10}, z)

	z, ok = ZoneFromEPSG(32756)
	require.True(t, ok)
	assert.Equal(t, Zone{Number: 56, South: true}, z)

	for _, bad := range []int{4326, 3857, 32600, 32661, 32700, 32761} {
		_, ok := ZoneFromEPSG(bad)
		assert.False(t, ok, "EPSG:%d", bad)
	}
}

func TestAutoUTMEPSG(t *testing.T) {
	b := orb.Bound{Min: orb.Point{-121.6, 39.5}, Max: orb.Point{-121.4, 39.7}}
	assert.Equal(t, 32610, AutoUTMEPSG(b))

	south := orb.Bound{Min: orb.Point{18.3, -34.0}, Max: orb.Point{18.5, -33.8}}
	assert.Equal(t, 32734, AutoUTMEPSG(south))
}

func TestForward_KnownValues(t *testing.T) {
	// Central meridian on the equator maps to the false origin.
	p := Forward(orb.Point{3, 0}, Zone{Number: 31})
	assert.InDelta(t, 500000.0, p[0], 1e-3)
	assert.InDelta(t, 0.0, p[1], 1e-3)

	// 0°N 0°E sits 3° west of the zone 31 central meridian.
	p = Forward(orb.Point{0, 0}, Zone{Number: 31})
	assert.InDelta(t, 166021.44, p[0], 0.5)
	assert.InDelta(t, 0.0, p[1], 1e-3)

	// Southern hemisphere adds the false northing.
	p = Forward(orb.Point{3, 0}, Zone{Number: 31, South: true})
	assert.InDelta(t, 10000000.0, p[1], 1e-3)
}

func TestForwardInverse_RoundTrip(t *testing.T) {
	pts := []orb.Point{
		{-121.5, 39.6},
		{-119.1, 35.2},
		{151.2, -33.9},
		{18.4, -33.9},
		{9.0, 60.0},
	}
	for _, p := range pts {
		z := ZoneFor(p[0], p[1])
		back := Inverse(Forward(p, z), z)
		assert.InDelta(t, p[0], back[0], 1e-5, "lon %v", p)
		assert.InDelta(t, p[1], back[1], 1e-5, "lat %v", p)
	}
}

func TestForward_PreservesShortDistances(t *testing.T) {
	a := orb.Point{-121.50, 39.60}
	b := orb.Point{-121.49, 39.605}
	z := ZoneFor(a[0], a[1])

	want := geo.Distance(a, b)
	got := planar.Distance(Forward(a, z), Forward(b, z))
	// UTM scale error stays under 0.1% within a zone; geo.Distance is spherical.
	assert.InDelta(t, want, got, want*0.005)
	assert.False(t, math.IsNaN(got))
}
