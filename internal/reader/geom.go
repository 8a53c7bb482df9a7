package reader

import (
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkbhex"
	"github.com/twpayne/go-geom/encoding/wkt"
)

// ParseGeometryText decodes a WKT string or a hex (E)WKB string. The SRID is
// returned when the encoding carries one, otherwise 0.
func ParseGeometryText(s string) (orb.Geometry, int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, 0, nil
	}

	var (
		g   geom.T
		err error
	)
	if isHex(s) {
		g, err = ewkbhex.Decode(s)
	} else {
		g, err = wkt.Unmarshal(s)
	}
	if err != nil {
		return nil, 0, eris.Wrapf(err, "reader: parse geometry %q", abbreviate(s))
	}

	o, err := fromGeom(g)
	if err != nil {
		return nil, 0, err
	}
	return o, g.SRID(), nil
}

// fromGeom converts a go-geom geometry to orb. Empty geometries become nil.
func fromGeom(g geom.T) (orb.Geometry, error) {
	switch g := g.(type) {
	case nil:
		return nil, nil
	case *geom.Point:
		c := g.Coords()
		if len(c) < 2 {
			return nil, nil
		}
		return orb.Point{c[0], c[1]}, nil
	case *geom.MultiPoint:
		mp := orb.MultiPoint(points(g.Coords()))
		if len(mp) == 0 {
			return nil, nil
		}
		return mp, nil
	case *geom.LineString:
		ls := orb.LineString(points(g.Coords()))
		if len(ls) == 0 {
			return nil, nil
		}
		return ls, nil
	case *geom.MultiLineString:
		var mls orb.MultiLineString
		for _, part := range g.Coords() {
			if ls := points(part); len(ls) > 0 {
				mls = append(mls, orb.LineString(ls))
			}
		}
		if len(mls) == 0 {
			return nil, nil
		}
		return mls, nil
	case *geom.Polygon:
		poly := polygon(g.Coords())
		if len(poly) == 0 {
			return nil, nil
		}
		return poly, nil
	case *geom.MultiPolygon:
		var mp orb.MultiPolygon
		for _, rings := range g.Coords() {
			if poly := polygon(rings); len(poly) > 0 {
				mp = append(mp, poly)
			}
		}
		if len(mp) == 0 {
			return nil, nil
		}
		return mp, nil
	}
	return nil, eris.Errorf("reader: unsupported geometry type %T", g)
}

func points(coords []geom.Coord) []orb.Point {
	out := make([]orb.Point, 0, len(coords))
	for _, c := range coords {
		if len(c) >= 2 {
			out = append(out, orb.Point{c[0], c[1]})
		}
	}
	return out
}

func polygon(rings [][]geom.Coord) orb.Polygon {
	var poly orb.Polygon
	for _, r := range rings {
		if ring := orb.Ring(points(r)); len(ring) > 0 {
			poly = append(poly, ring)
		}
	}
	return poly
}

// shapeToGeom converts a shapefile record to go-geom. Unsupported or empty
// shapes return nil.
func shapeToGeom(shape shp.Shape) geom.T {
	switch s := shape.(type) {
	case *shp.Point:
		return geom.NewPointFlat(geom.XY, []float64{s.X, s.Y})
	case *shp.PointZ:
		return geom.NewPointFlat(geom.XY, []float64{s.X, s.Y})
	case *shp.PointM:
		return geom.NewPointFlat(geom.XY, []float64{s.X, s.Y})
	case *shp.MultiPoint:
		if len(s.Points) == 0 {
			return nil
		}
		return geom.NewMultiPointFlat(geom.XY, flatCoords(s.Points))
	case *shp.PolyLine:
		return partsToMultiLineString(s.Parts, s.Points)
	case *shp.PolyLineZ:
		return partsToMultiLineString(s.Parts, s.Points)
	case *shp.PolyLineM:
		return partsToMultiLineString(s.Parts, s.Points)
	case *shp.Polygon:
		return partsToMultiPolygon(s.Parts, s.Points)
	case *shp.PolygonZ:
		return partsToMultiPolygon(s.Parts, s.Points)
	case *shp.PolygonM:
		return partsToMultiPolygon(s.Parts, s.Points)
	}
	return nil
}

// splitParts slices a shapefile point array at the part offsets.
func splitParts(parts []int32, pts []shp.Point) [][]shp.Point {
	out := make([][]shp.Point, 0, len(parts))
	for i, start := range parts {
		end := int32(len(pts))
		if i+1 < len(parts) {
			end = parts[i+1]
		}
		end = min(end, int32(len(pts)))
		if start < 0 || start >= end {
			continue
		}
		out = append(out, pts[start:end])
	}
	return out
}

func partsToMultiLineString(parts []int32, pts []shp.Point) geom.T {
	mls := geom.NewMultiLineString(geom.XY)
	for _, part := range splitParts(parts, pts) {
		if err := mls.Push(geom.NewLineStringFlat(geom.XY, flatCoords(part))); err != nil {
			continue
		}
	}
	if mls.NumLineStrings() == 0 {
		return nil
	}
	return mls
}

// partsToMultiPolygon groups rings into polygons. Shapefile outer rings are
// clockwise; counter-clockwise rings are holes of the preceding outer ring.
func partsToMultiPolygon(parts []int32, pts []shp.Point) geom.T {
	mp := geom.NewMultiPolygon(geom.XY)
	var cur *geom.Polygon
	flush := func() {
		if cur != nil && cur.NumLinearRings() > 0 {
			_ = mp.Push(cur)
		}
	}
	for _, part := range splitParts(parts, pts) {
		ring := geom.NewLinearRingFlat(geom.XY, flatCoords(part))
		hole := signedArea(part) > 0
		if !hole || cur == nil {
			flush()
			cur = geom.NewPolygon(geom.XY)
		}
		if err := cur.Push(ring); err != nil {
			continue
		}
	}
	flush()
	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}

// signedArea is positive for counter-clockwise rings.
func signedArea(ring []shp.Point) float64 {
	var a float64
	for i := range ring {
		j := (i + 1) % len(ring)
		a += ring[i].X*ring[j].Y - ring[j].X*ring[i].Y
	}
	return a / 2
}

func flatCoords(pts []shp.Point) []float64 {
	flat := make([]float64, 0, len(pts)*2)
	for _, p := range pts {
		flat = append(flat, p.X, p.Y)
	}
	return flat
}

func isHex(s string) bool {
	if len(s)%2 != 0 || len(s) < 10 {
		return false
	}
	for _, r := range s {
		if !('0' <= r && r <= '9' || 'a' <= r && r <= 'f' || 'A' <= r && r <= 'F') {
			return false
		}
	}
	return true
}

func abbreviate(s string) string {
	if len(s) <= 40 {
		return s
	}
	return s[:40] + "..."
}
