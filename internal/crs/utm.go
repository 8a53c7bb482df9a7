// Package crs reprojects layers between WGS84 geographic coordinates and
// WGS84 / UTM zones (EPSG:326xx north, EPSG:327xx south).
package crs

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/wroge/wgs84"
)

// WGS84 is the EPSG code of geographic longitude/latitude on WGS84.
const WGS84 = 4326

// Zone identifies one UTM zone and hemisphere.
type Zone struct {
	Number int
	South  bool
}

// EPSG returns the EPSG code of the zone.
func (z Zone) EPSG() int {
	if z.South {
		return 32700 + z.Number
	}
	return 32600 + z.Number
}

func (z Zone) system() wgs84.CoordinateReferenceSystem {
	return wgs84.UTM(float64(z.Number), !z.South)
}

// ZoneFromEPSG reports the UTM zone for an EPSG code in 32601-32660 or
// 32701-32760.
func ZoneFromEPSG(epsg int) (Zone, bool) {
	switch {
	case epsg > 32600 && epsg <= 32660:
		return Zone{Number: epsg - 32600}, true
	case epsg > 32700 && epsg <= 32760:
		return Zone{Number: epsg - 32700, South: true}, true
	}
	return Zone{}, false
}

// ZoneFor returns the zone containing lon/lat. Longitudes outside
// [-180, 180) are clamped to zones 1 and 60.
func ZoneFor(lon, lat float64) Zone {
	n := int(math.Floor((lon+180)/6)) + 1
	n = max(1, min(60, n))
	return Zone{Number: n, South: lat < 0}
}

// AutoUTMEPSG picks the UTM zone for the centre of a lon/lat bound.
func AutoUTMEPSG(b orb.Bound) int {
	c := b.Center()
	return ZoneFor(c[0], c[1]).EPSG()
}

// Forward projects a lon/lat point (degrees) into zone z, in meters.
func Forward(p orb.Point, z Zone) orb.Point {
	return apply(wgs84.LonLat().To(z.system()), p)
}

// Inverse converts a point in zone z back to lon/lat degrees.
func Inverse(p orb.Point, z Zone) orb.Point {
	return apply(wgs84.Transform(z.system(), wgs84.LonLat()), p)
}

func apply(fn wgs84.Func, p orb.Point) orb.Point {
	x, y, _ := fn(p[0], p[1], 0)
	return orb.Point{x, y}
}
