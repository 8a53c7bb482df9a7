package filter

import (
	"math"
	"slices"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/segment-assigner/internal/model"
	"github.com/sells-group/segment-assigner/internal/spatial"
)

// Clipper keeps the parts of lines that fall inside a set of polygons
// (for example high fire risk areas). Overlapping polygons act as their
// union.
type Clipper struct {
	polys []orb.Polygon
	index *spatial.Index
}

// NewClipper collects every Polygon and MultiPolygon in layer.
func NewClipper(layer *model.Layer) (*Clipper, error) {
	var polys []orb.Polygon
	for _, f := range layer.Features {
		switch g := f.Geometry.(type) {
		case orb.Polygon:
			if len(g) > 0 {
				polys = append(polys, g)
			}
		case orb.MultiPolygon:
			for _, p := range g {
				if len(p) > 0 {
					polys = append(polys, p)
				}
			}
		}
	}
	if len(polys) == 0 {
		return nil, eris.New("filter: constraint layer has no polygons")
	}

	bounds := make([]orb.Bound, len(polys))
	for i, p := range polys {
		bounds[i] = p.Bound()
	}
	return &Clipper{polys: polys, index: spatial.NewIndex(bounds)}, nil
}

// Clip returns the parts of mls inside the polygons, or nil when nothing is
// inside.
func (c *Clipper) Clip(mls orb.MultiLineString) orb.MultiLineString {
	cand := c.index.Query(mls.Bound())
	if len(cand) == 0 {
		return nil
	}

	var out orb.MultiLineString
	for _, ls := range mls {
		out = append(out, c.clipLine(ls, cand)...)
	}
	return out
}

func (c *Clipper) clipLine(ls orb.LineString, cand []int) orb.MultiLineString {
	var (
		out orb.MultiLineString
		cur orb.LineString
	)
	flush := func() {
		if len(cur) >= 2 && planar.Length(cur) > 0 {
			out = append(out, cur)
		}
		cur = nil
	}

	for i := 0; i+1 < len(ls); i++ {
		a, b := ls[i], ls[i+1]
		ts := c.crossings(a, b, cand)
		for k := 0; k+1 < len(ts); k++ {
			p0, p1 := lerp(a, b, ts[k]), lerp(a, b, ts[k+1])
			if !c.inside(lerp(a, b, (ts[k]+ts[k+1])/2), cand) {
				flush()
				continue
			}
			if len(cur) == 0 || cur[len(cur)-1] != p0 {
				flush()
				cur = append(cur, p0)
			}
			cur = append(cur, p1)
		}
	}
	flush()
	return out
}

// crossings returns the sorted parameters in [0, 1] where segment a-b
// crosses a polygon edge, including both ends.
func (c *Clipper) crossings(a, b orb.Point, cand []int) []float64 {
	ts := []float64{0, 1}
	seg := orb.Bound{Min: a, Max: a}.Extend(b)
	for _, i := range cand {
		if !c.polys[i].Bound().Intersects(seg) {
			continue
		}
		for _, ring := range c.polys[i] {
			for j := 0; j+1 < len(ring); j++ {
				if t, ok := intersect(a, b, ring[j], ring[j+1]); ok {
					ts = append(ts, t)
				}
			}
		}
	}
	slices.Sort(ts)
	return slices.Compact(ts)
}

func (c *Clipper) inside(p orb.Point, cand []int) bool {
	for _, i := range cand {
		if planar.PolygonContains(c.polys[i], p) {
			return true
		}
	}
	return false
}

// intersect returns the parameter t along a-b where it crosses c-d.
// Parallel segments report no crossing.
func intersect(a, b, c, d orb.Point) (float64, bool) {
	rx, ry := b[0]-a[0], b[1]-a[1]
	sx, sy := d[0]-c[0], d[1]-c[1]
	den := rx*sy - ry*sx
	if den == 0 {
		return 0, false
	}
	qx, qy := c[0]-a[0], c[1]-a[1]
	t := (qx*sy - qy*sx) / den
	u := (qx*ry - qy*rx) / den
	if t < 0 || t > 1 || u < 0 || u > 1 || math.IsNaN(t) {
		return 0, false
	}
	return t, true
}

func lerp(a, b orb.Point, t float64) orb.Point {
	return orb.Point{a[0] + (b[0]-a[0])*t, a[1] + (b[1]-a[1])*t}
}

// RestrictToPolygons clips every line feature to the polygons and drops
// features with nothing inside. Both layers must share one EPSG.
func RestrictToPolygons(lines, polygons *model.Layer) (*model.Layer, error) {
	if lines.EPSG != polygons.EPSG {
		return nil, eris.Errorf("filter: line EPSG:%d differs from polygon EPSG:%d", lines.EPSG, polygons.EPSG)
	}
	clip, err := NewClipper(polygons)
	if err != nil {
		return nil, err
	}

	out := &model.Layer{EPSG: lines.EPSG, Columns: lines.Columns}
	for _, f := range lines.Features {
		mls, ok := AsMultiLineString(f.Geometry)
		if !ok {
			continue
		}
		if kept := clip.Clip(mls); len(kept) > 0 {
			out.Features = append(out.Features, model.Feature{Geometry: kept, Props: f.Props})
		}
	}

	zap.L().Debug("filter: lines restricted to polygons",
		zap.Int("polygons", len(clip.polys)),
		zap.Int("before", lines.Len()),
		zap.Int("after", out.Len()),
	)
	return out, nil
}

// AsMultiLineString accepts LineString and MultiLineString geometries.
func AsMultiLineString(g orb.Geometry) (orb.MultiLineString, bool) {
	switch g := g.(type) {
	case orb.LineString:
		return orb.MultiLineString{g}, len(g) > 0
	case orb.MultiLineString:
		return g, len(g) > 0
	}
	return nil, false
}
