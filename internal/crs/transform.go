package crs

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
	"github.com/rotisserie/eris"
	"github.com/wroge/wgs84"

	"github.com/sells-group/segment-assigner/internal/model"
)

// Supported reports whether epsg is WGS84 geographic or a WGS84 UTM zone.
func Supported(epsg int) bool {
	if epsg == WGS84 {
		return true
	}
	_, ok := ZoneFromEPSG(epsg)
	return ok
}

// NewProjection returns an orb.Projection converting coordinates from one
// supported EPSG code to another.
func NewProjection(from, to int) (orb.Projection, error) {
	if !Supported(from) {
		return nil, eris.Errorf("crs: unsupported source EPSG:%d", from)
	}
	if !Supported(to) {
		return nil, eris.Errorf("crs: unsupported target EPSG:%d", to)
	}
	if from == to {
		return func(p orb.Point) orb.Point { return p }, nil
	}

	fn := wgs84.Transform(system(from), system(to))
	return func(p orb.Point) orb.Point { return apply(fn, p) }, nil
}

// system maps a supported EPSG code to its wgs84 reference system.
func system(epsg int) wgs84.CoordinateReferenceSystem {
	if z, ok := ZoneFromEPSG(epsg); ok {
		return z.system()
	}
	return wgs84.LonLat()
}

// Reproject returns a copy of layer with every geometry converted to the
// target EPSG. The input layer is not modified.
func Reproject(layer *model.Layer, target int) (*model.Layer, error) {
	proj, err := NewProjection(layer.EPSG, target)
	if err != nil {
		return nil, err
	}

	out := &model.Layer{
		EPSG:     target,
		Columns:  layer.Columns,
		Features: make([]model.Feature, len(layer.Features)),
	}
	for i, f := range layer.Features {
		out.Features[i] = model.Feature{Props: f.Props}
		if f.Geometry != nil {
			out.Features[i].Geometry = project.Geometry(orb.Clone(f.Geometry), proj)
		}
	}
	return out, nil
}

// ErrNoGeometry is returned when no layer carries geometry to pick a zone from.
var ErrNoGeometry = eris.New("crs: cannot pick a UTM zone for layers without geometry")

// ResolveTarget picks the projected EPSG for a set of layers. An explicit
// target must be a UTM zone; zero keeps the zone of the first layer already
// projected, or else selects the zone of the first lon/lat layer that has
// geometry.
func ResolveTarget(target int, layers ...*model.Layer) (int, error) {
	if target != 0 {
		if _, ok := ZoneFromEPSG(target); !ok {
			return 0, eris.Errorf("crs: target EPSG:%d is not a WGS84 UTM zone", target)
		}
		return target, nil
	}
	for _, layer := range layers {
		if layer == nil {
			continue
		}
		if _, ok := ZoneFromEPSG(layer.EPSG); ok {
			return layer.EPSG, nil
		}
		if layer.EPSG != WGS84 {
			return 0, eris.Errorf("crs: unsupported source EPSG:%d", layer.EPSG)
		}
	}
	for _, layer := range layers {
		if layer == nil {
			continue
		}
		if b, ok := Bound(layer); ok {
			return AutoUTMEPSG(b), nil
		}
	}
	return 0, ErrNoGeometry
}

// Bound returns the union of all non-empty feature bounds.
func Bound(layer *model.Layer) (orb.Bound, bool) {
	var (
		b     orb.Bound
		found bool
	)
	for _, f := range layer.Features {
		if f.Geometry == nil {
			continue
		}
		fb := f.Geometry.Bound()
		if fb.IsEmpty() {
			continue
		}
		if !found {
			b, found = fb, true
			continue
		}
		b = b.Union(fb)
	}
	return b, found
}
