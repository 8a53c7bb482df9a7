package pipeline

import (
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/rotisserie/eris"

	"github.com/sells-group/segment-assigner/internal/filter"
	"github.com/sells-group/segment-assigner/internal/model"
)

// requireColumn fails with the available column list when name is missing.
func requireColumn(layer *model.Layer, role, name string) error {
	if layer.HasColumn(name) {
		return nil
	}
	return eris.Errorf("pipeline: %s id column %q not found; available columns: [%s]",
		role, name, strings.Join(layer.Columns, ", "))
}

// buildPoints converts a projected point layer into point features. Point
// geometries are used as-is and MultiPoints contribute their first point;
// anything else is skipped and counted. A non-empty elevCol is read as the
// elevation in feet.
func buildPoints(layer *model.Layer, idCol, elevCol string) ([]model.PointFeature, int) {
	out := make([]model.PointFeature, 0, len(layer.Features))
	skipped := 0
	for _, f := range layer.Features {
		var pt orb.Point
		switch g := f.Geometry.(type) {
		case orb.Point:
			pt = g
		case orb.MultiPoint:
			if len(g) == 0 {
				skipped++
				continue
			}
			pt = g[0]
		default:
			skipped++
			continue
		}
		pf := model.PointFeature{ID: model.ID(f.Props[idCol]), Geom: pt}
		if elevCol != "" {
			pf.ElevFt = parseElevation(f.Props[elevCol])
		}
		out = append(out, pf)
	}
	return out, skipped
}

// buildLines converts a projected line layer into line features, dropping
// features without line geometry. Non-empty minCol and maxCol are read as
// the elevation band in feet.
func buildLines(layer *model.Layer, idCol, minCol, maxCol string) ([]model.LineFeature, int) {
	out := make([]model.LineFeature, 0, len(layer.Features))
	skipped := 0
	for _, f := range layer.Features {
		mls, ok := filter.AsMultiLineString(f.Geometry)
		if !ok {
			skipped++
			continue
		}
		lf := model.LineFeature{ID: model.ID(f.Props[idCol]), Geom: mls}
		if lf.Empty() {
			skipped++
			continue
		}
		if minCol != "" && maxCol != "" {
			lf.MinElevFt = parseElevation(f.Props[minCol])
			lf.MaxElevFt = parseElevation(f.Props[maxCol])
		}
		out = append(out, lf)
	}
	return out, skipped
}

// parseElevation reads an attribute elevation in feet. Blank and
// non-numeric values are missing.
func parseElevation(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// swapReversedBands fixes lines whose minimum elevation exceeds the maximum
// and returns how many were swapped.
func swapReversedBands(lines []model.LineFeature) int {
	n := 0
	for i := range lines {
		lo, hi := lines[i].MinElevFt, lines[i].MaxElevFt
		if lo != nil && hi != nil && *lo > *hi {
			lines[i].MinElevFt, lines[i].MaxElevFt = hi, lo
			n++
		}
	}
	return n
}
