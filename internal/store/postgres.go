package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/segment-assigner/internal/db"
	"github.com/sells-group/segment-assigner/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(4)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS assignment_runs (
	id              TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	status          TEXT NOT NULL DEFAULT 'complete',
	params          JSONB NOT NULL,
	points_source   TEXT NOT NULL DEFAULT '',
	lines_source    TEXT NOT NULL DEFAULT '',
	epsg            INTEGER NOT NULL DEFAULT 0,
	point_count     INTEGER NOT NULL DEFAULT 0,
	line_count      INTEGER NOT NULL DEFAULT 0,
	candidate_count INTEGER NOT NULL DEFAULT 0,
	best_count      INTEGER NOT NULL DEFAULT 0,
	error           TEXT NOT NULL DEFAULT '',
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS assignment_candidates (
	run_id          TEXT NOT NULL REFERENCES assignment_runs(id) ON DELETE CASCADE,
	seq             INTEGER NOT NULL,
	point_id        TEXT NOT NULL,
	line_id         TEXT NOT NULL,
	distance_m      DOUBLE PRECISION NOT NULL,
	distance_ft     DOUBLE PRECISION NOT NULL,
	station_elev_ft DOUBLE PRECISION,
	seg_min_elev_ft DOUBLE PRECISION,
	seg_max_elev_ft DOUBLE PRECISION,
	elev_pass       BOOLEAN NOT NULL,
	elev_check      TEXT NOT NULL,
	PRIMARY KEY (run_id, seq)
);

CREATE TABLE IF NOT EXISTS assignment_best (
	run_id            TEXT NOT NULL REFERENCES assignment_runs(id) ON DELETE CASCADE,
	seq               INTEGER NOT NULL,
	point_id          TEXT NOT NULL,
	line_id           TEXT NOT NULL,
	distance_m        DOUBLE PRECISION NOT NULL,
	distance_ft       DOUBLE PRECISION NOT NULL,
	station_elev_ft   DOUBLE PRECISION,
	seg_min_elev_ft   DOUBLE PRECISION,
	seg_max_elev_ft   DOUBLE PRECISION,
	elev_pass         BOOLEAN NOT NULL,
	elev_check        TEXT NOT NULL,
	elev_delta_abs_ft DOUBLE PRECISION,
	PRIMARY KEY (run_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_assignment_runs_created_at ON assignment_runs(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_assignment_best_line ON assignment_best(run_id, line_id);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) SaveRun(ctx context.Context, run *model.Run, cands []model.Candidate, best []model.BestMatch) error {
	prepareRun(run, cands, best)

	params, err := json.Marshal(run.Params)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal params")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx,
		`INSERT INTO assignment_runs (id, status, params, points_source, lines_source, epsg, point_count, line_count, candidate_count, best_count, error, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		run.ID, string(run.Status), params, run.PointsSource, run.LinesSource, run.EPSG,
		run.PointCount, run.LineCount, run.CandidateCount, run.BestCount, run.Error, run.CreatedAt,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: insert run %s", run.ID)
	}

	rows := make([][]any, len(cands))
	for i := range cands {
		rows[i] = candidateValues(run.ID, i, &cands[i])
	}
	if _, err := db.CopyFrom(ctx, tx, "assignment_candidates", candidateColumns, rows); err != nil {
		return err
	}

	rows = make([][]any, len(best))
	for i := range best {
		rows[i] = bestValues(run.ID, i, &best[i])
	}
	if _, err := db.CopyFrom(ctx, tx, "assignment_best", bestColumns(), rows); err != nil {
		return err
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit run")
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	r, err := scanRun(s.pool.QueryRow(ctx, runSelect+` WHERE id = $1`, runID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: get run %s", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	return r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]model.Run, error) {
	rows, err := s.pool.Query(ctx, runSelect+` ORDER BY created_at DESC, id LIMIT $1`, listLimit(limit))
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	runs := []model.Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) BestMatches(ctx context.Context, runID string) ([]model.BestMatch, error) {
	if _, err := s.GetRun(ctx, runID); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, bestSelect+` WHERE run_id = $1 ORDER BY seq`, runID)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: best matches %s", runID)
	}
	defer rows.Close()

	out := []model.BestMatch{}
	for rows.Next() {
		b, err := scanBest(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan best match")
		}
		out = append(out, b)
	}
	return out, eris.Wrap(rows.Err(), "postgres: best matches iterate")
}
