// Package assign matches point features to nearby line features under a
// planar distance threshold and an elevation-band rule, then ranks the
// matches and keeps the best N per group.
package assign

import (
	"math"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/segment-assigner/internal/model"
	"github.com/sells-group/segment-assigner/internal/units"
)

// GroupBy selects the column best matches are bucketed by.
type GroupBy string

const (
	GroupByLine  GroupBy = "line"
	GroupByPoint GroupBy = "point"
)

// ParseGroupBy accepts "line"/"point" and the "segment"/"station" aliases.
func ParseGroupBy(s string) (GroupBy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "line", "segment":
		return GroupByLine, nil
	case "point", "station":
		return GroupByPoint, nil
	default:
		return "", eris.Errorf("assign: invalid group_by %q (want line or point)", s)
	}
}

// Params is the validated configuration for one assignment run. Build it
// once before calling the generator and do not mutate it during a run.
type Params struct {
	Distance       float64
	DistanceUnit   string
	ElevTolFt      float64
	PointIDColumn  string
	LineIDColumn   string
	FilterExpr     string
	CheckElevation bool
	TopN           int
	GroupBy        GroupBy
	Workers        int
}

// DefaultParams returns the stock parameters: half a mile, 500 ft tolerance,
// best single point per line.
func DefaultParams() Params {
	return Params{
		Distance:       0.5,
		DistanceUnit:   units.Miles,
		ElevTolFt:      500,
		PointIDColumn:  "station_id",
		LineIDColumn:   "segment_id",
		CheckElevation: true,
		TopN:           1,
		GroupBy:        GroupByLine,
		Workers:        1,
	}
}

// Validate checks every field and names the first offending one.
func (p Params) Validate() error {
	if !(p.Distance > 0) || math.IsInf(p.Distance, 0) {
		return eris.Errorf("assign: distance must be positive and finite, got %v", p.Distance)
	}
	if !units.IsValid(units.Normalize(p.DistanceUnit)) {
		return eris.Errorf("assign: invalid distance unit %q (valid: %s)", p.DistanceUnit, units.GetValidUnitsString())
	}
	if p.ElevTolFt < 0 || math.IsNaN(p.ElevTolFt) || math.IsInf(p.ElevTolFt, 0) {
		return eris.Errorf("assign: elevation tolerance must be non-negative and finite, got %v", p.ElevTolFt)
	}
	if strings.TrimSpace(p.PointIDColumn) == "" {
		return eris.New("assign: point id column is required")
	}
	if strings.TrimSpace(p.LineIDColumn) == "" {
		return eris.New("assign: line id column is required")
	}
	if p.TopN < 1 {
		return eris.Errorf("assign: top_n must be at least 1, got %d", p.TopN)
	}
	if p.GroupBy != GroupByLine && p.GroupBy != GroupByPoint {
		return eris.Errorf("assign: invalid group_by %q (want line or point)", p.GroupBy)
	}
	if p.Workers < 0 {
		return eris.Errorf("assign: workers must be non-negative, got %d", p.Workers)
	}
	return nil
}

// RadiusMeters converts the configured distance into the planar unit of the
// projected coordinate system.
func (p Params) RadiusMeters() float64 {
	return units.ToMeters(p.Distance, p.DistanceUnit)
}

// Snapshot returns the persisted form of the parameters.
func (p Params) Snapshot() model.RunParams {
	return model.RunParams{
		Distance:       p.Distance,
		DistanceUnit:   units.Normalize(p.DistanceUnit),
		RadiusM:        p.RadiusMeters(),
		ElevTolFt:      p.ElevTolFt,
		PointIDColumn:  p.PointIDColumn,
		LineIDColumn:   p.LineIDColumn,
		FilterExpr:     p.FilterExpr,
		CheckElevation: p.CheckElevation,
		TopN:           p.TopN,
		GroupBy:        string(p.GroupBy),
	}
}
