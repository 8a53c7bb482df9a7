package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/segment-assigner/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS assignment_runs (
	id              TEXT PRIMARY KEY,
	status          TEXT NOT NULL DEFAULT 'complete',
	params          TEXT NOT NULL,
	points_source   TEXT NOT NULL DEFAULT '',
	lines_source    TEXT NOT NULL DEFAULT '',
	epsg            INTEGER NOT NULL DEFAULT 0,
	point_count     INTEGER NOT NULL DEFAULT 0,
	line_count      INTEGER NOT NULL DEFAULT 0,
	candidate_count INTEGER NOT NULL DEFAULT 0,
	best_count      INTEGER NOT NULL DEFAULT 0,
	error           TEXT NOT NULL DEFAULT '',
	created_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS assignment_candidates (
	run_id          TEXT NOT NULL REFERENCES assignment_runs(id) ON DELETE CASCADE,
	seq             INTEGER NOT NULL,
	point_id        TEXT NOT NULL,
	line_id         TEXT NOT NULL,
	distance_m      REAL NOT NULL,
	distance_ft     REAL NOT NULL,
	station_elev_ft REAL,
	seg_min_elev_ft REAL,
	seg_max_elev_ft REAL,
	elev_pass       INTEGER NOT NULL,
	elev_check      TEXT NOT NULL,
	PRIMARY KEY (run_id, seq)
);

CREATE TABLE IF NOT EXISTS assignment_best (
	run_id            TEXT NOT NULL REFERENCES assignment_runs(id) ON DELETE CASCADE,
	seq               INTEGER NOT NULL,
	point_id          TEXT NOT NULL,
	line_id           TEXT NOT NULL,
	distance_m        REAL NOT NULL,
	distance_ft       REAL NOT NULL,
	station_elev_ft   REAL,
	seg_min_elev_ft   REAL,
	seg_max_elev_ft   REAL,
	elev_pass         INTEGER NOT NULL,
	elev_check        TEXT NOT NULL,
	elev_delta_abs_ft REAL,
	PRIMARY KEY (run_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_assignment_runs_created_at ON assignment_runs(created_at);
CREATE INDEX IF NOT EXISTS idx_assignment_best_line ON assignment_best(run_id, line_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveRun(ctx context.Context, run *model.Run, cands []model.Candidate, best []model.BestMatch) error {
	prepareRun(run, cands, best)

	params, err := json.Marshal(run.Params)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal params")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx,
		`INSERT INTO assignment_runs (id, status, params, points_source, lines_source, epsg, point_count, line_count, candidate_count, best_count, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, string(run.Status), string(params), run.PointsSource, run.LinesSource, run.EPSG,
		run.PointCount, run.LineCount, run.CandidateCount, run.BestCount, run.Error, run.CreatedAt,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: insert run %s", run.ID)
	}

	rows := make([][]any, len(cands))
	for i := range cands {
		rows[i] = candidateValues(run.ID, i, &cands[i])
	}
	if err := insertRows(ctx, tx, "assignment_candidates", candidateColumns, rows); err != nil {
		return err
	}

	rows = make([][]any, len(best))
	for i := range best {
		rows[i] = bestValues(run.ID, i, &best[i])
	}
	if err := insertRows(ctx, tx, "assignment_best", bestColumns(), rows); err != nil {
		return err
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit run")
}

// insertRows is the SQLite stand-in for COPY: one prepared statement
// executed per row inside the caller's transaction.
func insertRows(ctx context.Context, tx *sql.Tx, table string, columns []string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}
	marks := make([]byte, 0, 2*len(columns))
	for i := range columns {
		if i > 0 {
			marks = append(marks, ',')
		}
		marks = append(marks, '?')
	}
	stmt, err := tx.PrepareContext(ctx, "INSERT INTO "+table+" ("+joinColumns(columns)+") VALUES ("+string(marks)+")")
	if err != nil {
		return eris.Wrapf(err, "sqlite: prepare insert %s", table)
	}
	defer stmt.Close() //nolint:errcheck

	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, r...); err != nil {
			return eris.Wrapf(err, "sqlite: insert %s", table)
		}
	}
	return nil
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx, runSelect+` WHERE id = ?`, runID)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: get run %s", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get run %s", runID)
	}
	return r, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]model.Run, error) {
	rows, err := s.db.QueryContext(ctx, runSelect+` ORDER BY created_at DESC, id LIMIT ?`, listLimit(limit))
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	runs := []model.Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) BestMatches(ctx context.Context, runID string) ([]model.BestMatch, error) {
	if _, err := s.GetRun(ctx, runID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, bestSelect+` WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: best matches %s", runID)
	}
	defer rows.Close() //nolint:errcheck

	out := []model.BestMatch{}
	for rows.Next() {
		b, err := scanBest(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan best match")
		}
		out = append(out, b)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: best matches iterate")
}
