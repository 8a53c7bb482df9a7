package model

// ElevCheck records how the elevation rule was resolved for a candidate.
type ElevCheck string

const (
	ElevCheckPass     ElevCheck = "pass"     // elevation within the tolerant band
	ElevCheckFail     ElevCheck = "fail"     // elevation outside the tolerant band
	ElevCheckUnknown  ElevCheck = "unknown"  // an elevation value was missing; treated as pass
	ElevCheckDisabled ElevCheck = "disabled" // elevation filtering turned off
)

// Candidate relates one point to one line within the distance radius.
type Candidate struct {
	PointID       ID        `json:"point_id"`
	LineID        ID        `json:"line_id"`
	DistanceM     float64   `json:"distance_m"`
	DistanceFt    float64   `json:"distance_ft"`
	PointElevFt   *float64  `json:"station_elev_ft"`
	LineMinElevFt *float64  `json:"seg_min_elev_ft"`
	LineMaxElevFt *float64  `json:"seg_max_elev_ft"`
	ElevPass      bool      `json:"elev_pass"`
	ElevCheck     ElevCheck `json:"elev_check"`
}

// BestMatch is a candidate retained in the top-N of its group.
// ElevDeltaFt is nil when the elevation values are not comparable.
type BestMatch struct {
	Candidate
	ElevDeltaFt *float64 `json:"elev_delta_abs_ft"`
}
