package model

import "time"

// RunStatus represents the current state of an assignment run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// RunParams is the snapshot of assignment parameters stored with a run.
type RunParams struct {
	Distance       float64 `json:"distance" yaml:"distance"`
	DistanceUnit   string  `json:"distance_unit" yaml:"distance_unit"`
	RadiusM        float64 `json:"radius_m" yaml:"radius_m"`
	ElevTolFt      float64 `json:"elev_tol_ft" yaml:"elev_tol_ft"`
	PointIDColumn  string  `json:"point_id_column" yaml:"point_id_column"`
	LineIDColumn   string  `json:"line_id_column" yaml:"line_id_column"`
	FilterExpr     string  `json:"filter,omitempty" yaml:"filter,omitempty"`
	CheckElevation bool    `json:"check_elevation" yaml:"check_elevation"`
	TopN           int     `json:"top_n" yaml:"top_n"`
	GroupBy        string  `json:"group_by" yaml:"group_by"`
}

// Run represents one persisted assignment run.
type Run struct {
	ID             string    `json:"id"`
	Status         RunStatus `json:"status"`
	Params         RunParams `json:"params"`
	PointsSource   string    `json:"points_source,omitempty"`
	LinesSource    string    `json:"lines_source,omitempty"`
	EPSG           int       `json:"epsg"`
	PointCount     int       `json:"point_count"`
	LineCount      int       `json:"line_count"`
	CandidateCount int       `json:"candidate_count"`
	BestCount      int       `json:"best_count"`
	Error          string    `json:"error,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}
