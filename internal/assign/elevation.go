package assign

import (
	"math"

	"github.com/sells-group/segment-assigner/internal/model"
)

// CheckElevation resolves the elevation rule for one point/line pair.
// Missing data never blocks a match: the pair passes with ElevCheckUnknown.
func CheckElevation(enabled bool, pointFt, minFt, maxFt *float64, tolFt float64) (bool, model.ElevCheck) {
	if !enabled {
		return true, model.ElevCheckDisabled
	}
	if missing(pointFt) || missing(minFt) || missing(maxFt) {
		return true, model.ElevCheckUnknown
	}
	z := *pointFt
	if z >= *minFt-tolFt && z <= *maxFt+tolFt {
		return true, model.ElevCheckPass
	}
	return false, model.ElevCheckFail
}

// ElevDelta returns min(|z-min|, |z-max|), or nil when any value is missing.
func ElevDelta(pointFt, minFt, maxFt *float64) *float64 {
	if missing(pointFt) || missing(minFt) || missing(maxFt) {
		return nil
	}
	z := *pointFt
	d := math.Min(math.Abs(z-*minFt), math.Abs(z-*maxFt))
	return &d
}

func missing(v *float64) bool {
	return v == nil || math.IsNaN(*v)
}
