package pipeline

import (
	"github.com/paulmach/orb"
	"go.uber.org/zap"

	"github.com/sells-group/segment-assigner/internal/dem"
	"github.com/sells-group/segment-assigner/internal/model"
)

// defaultLineSampleStepM is used when Elevation.LineSampleStepM is unset.
const defaultLineSampleStepM = 100

// resolveElevation fills elevations that did not come from attribute
// columns. With a DEM configured, points get the cell under them and lines
// get the min/max along their length; without one the values stay nil and a
// warning is recorded. epsg is the projected system of pts and lns.
func resolveElevation(pts []model.PointFeature, lns []model.LineFeature, epsg int, el Elevation,
	needPoints, needLines bool, warn func(string, ...zap.Field)) error {
	if !needPoints && !needLines {
		return nil
	}
	if el.DEMPath == "" {
		if needPoints {
			warn("no station elevation column or DEM; station elevations are unknown",
				zap.String("column", el.PointColumn))
		}
		if needLines {
			warn("no segment elevation columns or DEM; segment elevations are unknown",
				zap.String("min_column", el.LineMinColumn), zap.String("max_column", el.LineMaxColumn))
		}
		return nil
	}

	grid, err := dem.Open(el.DEMPath, dem.Options{EPSG: el.DEMEPSG, NoData: el.DEMNoData})
	if err != nil {
		return err
	}

	if needPoints {
		geoms := make([]orb.Point, len(pts))
		for i := range pts {
			geoms[i] = pts[i].Geom
		}
		vals, err := grid.SamplePoints(geoms, epsg)
		if err != nil {
			return err
		}
		for i := range pts {
			pts[i].ElevFt = vals[i]
		}
	}

	if needLines {
		step := el.LineSampleStepM
		if step <= 0 {
			step = defaultLineSampleStepM
		}
		geoms := make([]orb.MultiLineString, len(lns))
		for i := range lns {
			geoms[i] = lns[i].Geom
		}
		mins, maxs, err := grid.SampleLineRange(geoms, epsg, step)
		if err != nil {
			return err
		}
		for i := range lns {
			lns[i].MinElevFt, lns[i].MaxElevFt = mins[i], maxs[i]
		}
	}
	return nil
}
