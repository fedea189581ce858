package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/SquizAI/recipies01/internal/db"
	"github.com/SquizAI/recipies01/internal/model"
)

// PostgresStore implements Store using a pgx pool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// preparedStatements are prepared on each new connection.
var preparedStatements = map[string]string{
	"get_recipe": `SELECT recipe FROM recipes WHERE cache_key = $1`,
	"put_recipe": `INSERT INTO recipes (cache_key, source_url, title, recipe, created_at) VALUES ($1, $2, $3, $4, $5) ON CONFLICT (cache_key) DO NOTHING`,
	"insert_run": `INSERT INTO runs (id, source_url, cache_key, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
}

// NewPostgres connects to Postgres and returns a store over the pool.
func NewPostgres(ctx context.Context, connString string, maxConns, minConns int32) (*PostgresStore, error) {
	pool, err := db.Connect(ctx, connString, db.PoolConfig{
		MaxConns: maxConns,
		MinConns: minConns,
		Prepare:  preparedStatements,
	})
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS recipes (
	cache_key  TEXT PRIMARY KEY,
	source_url TEXT NOT NULL,
	title      TEXT NOT NULL,
	recipe     JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS runs (
	id            TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	source_url    TEXT NOT NULL,
	cache_key     TEXT NOT NULL DEFAULT '',
	status        TEXT NOT NULL DEFAULT 'running',
	error_code    TEXT NOT NULL DEFAULT '',
	error_message TEXT NOT NULL DEFAULT '',
	strategy      TEXT NOT NULL DEFAULT '',
	cached        BOOLEAN NOT NULL DEFAULT false,
	duration_ms   BIGINT NOT NULL DEFAULT 0,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_source_url ON runs(source_url);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at DESC);
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

func (s *PostgresStore) GetRecipe(ctx context.Context, key string) (*model.Recipe, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, `SELECT recipe FROM recipes WHERE cache_key = $1`, key).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get recipe %s", key)
	}
	return decodeRecipe(data)
}

func (s *PostgresStore) PutRecipe(ctx context.Context, key string, r *model.Recipe) (bool, error) {
	data, err := encodeRecipe(r)
	if err != nil {
		return false, err
	}
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO recipes (cache_key, source_url, title, recipe, created_at) VALUES ($1, $2, $3, $4, $5) ON CONFLICT (cache_key) DO NOTHING`,
		key, r.SourceURL, r.Title, data, time.Now().UTC(),
	)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: put recipe %s", key)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, sourceURL, cacheKey string) (*model.Run, error) {
	now := time.Now().UTC()
	run := &model.Run{
		ID:        uuid.New().String(),
		SourceURL: sourceURL,
		CacheKey:  cacheKey,
		Status:    model.RunStatusRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, source_url, cache_key, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		run.ID, run.SourceURL, run.CacheKey, string(run.Status), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}
	return run, nil
}

func (s *PostgresStore) FinishRun(ctx context.Context, runID string, out model.RunOutcome) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, error_code = $2, error_message = $3, strategy = $4, cached = $5, duration_ms = $6, updated_at = $7 WHERE id = $8`,
		string(out.Status), out.ErrorCode, out.ErrorMessage, out.Strategy, out.Cached,
		out.Duration.Milliseconds(), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: finish run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: run %s", runID)
	}
	return nil
}

const postgresRunColumns = `id, source_url, cache_key, status, error_code, error_message, strategy, cached, duration_ms, created_at, updated_at`

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+postgresRunColumns+` FROM runs WHERE id = $1`, runID)
	run, err := scanPostgresRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: run %s", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	return run, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	var where []string
	var args []any
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.SourceURL != "" {
		args = append(args, filter.SourceURL)
		where = append(where, fmt.Sprintf("source_url = $%d", len(args)))
	}

	q := `SELECT ` + postgresRunColumns + ` FROM runs`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, filter.limit())
	q += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		run, err := scanPostgresRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, *run)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: iterate runs")
}

func scanPostgresRun(row pgx.Row) (*model.Run, error) {
	var (
		run    model.Run
		status string
	)
	err := row.Scan(&run.ID, &run.SourceURL, &run.CacheKey, &status, &run.ErrorCode, &run.ErrorMessage,
		&run.Strategy, &run.Cached, &run.DurationMs, &run.CreatedAt, &run.UpdatedAt)
	if err != nil {
		return nil, err
	}
	run.Status = model.RunStatus(status)
	return &run, nil
}
