// Package store persists assignment runs with their candidate and
// best-match rows.
package store

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/segment-assigner/internal/model"
)

// ErrNotFound is returned (wrapped) when a run id does not exist.
var ErrNotFound = eris.New("run not found")

// defaultListLimit caps ListRuns when the caller passes a non-positive limit.
const defaultListLimit = 100

// Store defines run persistence.
type Store interface {
	// SaveRun writes the run and its rows in one transaction. An empty
	// run.ID is filled with a new UUID and a zero CreatedAt with now.
	SaveRun(ctx context.Context, run *model.Run, cands []model.Candidate, best []model.BestMatch) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, limit int) ([]model.Run, error)
	// BestMatches returns a run's best matches in their original order.
	BestMatches(ctx context.Context, runID string) ([]model.BestMatch, error)

	Migrate(ctx context.Context) error
	Close() error
}

// Supported driver names.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverNone     = "none"
)

// Open connects the configured driver and runs migrations. DriverNone (or
// an empty driver) returns a nil Store.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	var (
		s   Store
		err error
	)
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", DriverNone:
		return nil, nil
	case DriverSQLite:
		s, err = NewSQLite(dsn)
	case DriverPostgres, "postgresql", "pg":
		s, err = NewPostgres(ctx, dsn, nil)
	default:
		return nil, eris.Errorf("store: unknown driver %q (want sqlite, postgres, or none)", driver)
	}
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		s.Close() //nolint:errcheck
		return nil, err
	}
	return s, nil
}

// prepareRun fills the generated fields of a run before it is written.
func prepareRun(run *model.Run, cands []model.Candidate, best []model.BestMatch) {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	if run.Status == "" {
		run.Status = model.RunStatusComplete
	}
	run.CandidateCount = len(cands)
	run.BestCount = len(best)
}

func listLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	return limit
}

// candidateColumns are shared by both row tables; the best table adds
// elev_delta_abs_ft.
var candidateColumns = []string{
	"run_id", "seq", "point_id", "line_id", "distance_m", "distance_ft",
	"station_elev_ft", "seg_min_elev_ft", "seg_max_elev_ft", "elev_pass", "elev_check",
}

func bestColumns() []string {
	return append(append([]string{}, candidateColumns...), "elev_delta_abs_ft")
}

func candidateValues(runID string, seq int, c *model.Candidate) []any {
	return []any{
		runID, seq, string(c.PointID), string(c.LineID), c.DistanceM, c.DistanceFt,
		c.PointElevFt, c.LineMinElevFt, c.LineMaxElevFt, c.ElevPass, string(c.ElevCheck),
	}
}

func bestValues(runID string, seq int, b *model.BestMatch) []any {
	return append(candidateValues(runID, seq, &b.Candidate), b.ElevDeltaFt)
}

// scannable is satisfied by *sql.Row, *sql.Rows, pgx.Row and pgx.Rows.
type scannable interface {
	Scan(dest ...any) error
}

func scanBest(row scannable) (model.BestMatch, error) {
	var (
		b               model.BestMatch
		point, line, ec string
	)
	err := row.Scan(&point, &line, &b.DistanceM, &b.DistanceFt,
		&b.PointElevFt, &b.LineMinElevFt, &b.LineMaxElevFt, &b.ElevPass, &ec, &b.ElevDeltaFt)
	if err != nil {
		return b, err
	}
	b.PointID = model.ID(point)
	b.LineID = model.ID(line)
	b.ElevCheck = model.ElevCheck(ec)
	return b, nil
}

func scanRun(row scannable) (*model.Run, error) {
	var (
		r      model.Run
		status string
		params []byte
	)
	err := row.Scan(&r.ID, &status, &params, &r.PointsSource, &r.LinesSource, &r.EPSG,
		&r.PointCount, &r.LineCount, &r.CandidateCount, &r.BestCount, &r.Error, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	r.Status = model.RunStatus(status)
	if len(params) > 0 {
		if err := json.Unmarshal(params, &r.Params); err != nil {
			return nil, eris.Wrap(err, "store: unmarshal params")
		}
	}
	return &r, nil
}

const bestSelect = `SELECT point_id, line_id, distance_m, distance_ft, station_elev_ft, seg_min_elev_ft, seg_max_elev_ft, elev_pass, elev_check, elev_delta_abs_ft FROM assignment_best`

const runSelect = `SELECT id, status, params, points_source, lines_source, epsg, point_count, line_count, candidate_count, best_count, error, created_at FROM assignment_runs`

func joinColumns(cols []string) string {
	return strings.Join(cols, ", ")
}
