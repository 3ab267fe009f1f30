package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/ShaunandDavid/lead-generator-firecrawl/internal/db"
	"github.com/ShaunandDavid/lead-generator-firecrawl/internal/model"
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

var runColumns = []string{"id", "status", "created_at", "data", "updated_at"}

const domainStateColumns = `key, last_success, failure_message, failure_at, pages_fetched, visited, updated_at`

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(5)
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
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	status     TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	data       JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS domain_state (
	key             TEXT PRIMARY KEY,
	last_success    TIMESTAMPTZ,
	failure_message TEXT,
	failure_at      TIMESTAMPTZ,
	pages_fetched   INTEGER NOT NULL DEFAULT 0,
	visited         JSONB NOT NULL DEFAULT '[]'::jsonb,
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
`

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

func (s *PostgresStore) LoadRuns(ctx context.Context) ([]model.Run, error) {
	rows, err := s.pool.Query(ctx, `SELECT data FROM runs ORDER BY created_at, id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: load runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		var r model.Run
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal run")
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: iterate runs")
}

func (s *PostgresStore) SaveRuns(ctx context.Context, runs []model.Run) error {
	now := time.Now().UTC()
	rows := make([][]any, 0, len(runs))
	for _, r := range runs {
		data, err := json.Marshal(r)
		if err != nil {
			return eris.Wrapf(err, "postgres: marshal run %s", r.ID)
		}
		rows = append(rows, []any{r.ID, string(r.Status), r.CreatedAt.UTC(), data, now})
	}

	_, err := db.WriteSnapshot(ctx, s.pool, db.SnapshotConfig{
		Table:   "runs",
		Columns: runColumns,
		Keys:    []string{"id"},
		Prune:   true,
	}, rows)
	return eris.Wrap(err, "postgres: save runs")
}

func (s *PostgresStore) GetDomainState(ctx context.Context, key string) (*model.DomainState, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+domainStateColumns+` FROM domain_state WHERE key = $1`, key)
	st, err := scanPgDomainState(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get domain state %s", key)
	}
	return st, nil
}

func (s *PostgresStore) RecordSuccess(ctx context.Context, key string, pagesFetched int) error {
	now := time.Now().UTC()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO domain_state (key, last_success, pages_fetched, updated_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (key) DO UPDATE SET last_success = EXCLUDED.last_success,
		   pages_fetched = EXCLUDED.pages_fetched, updated_at = EXCLUDED.updated_at`,
		key, now, pagesFetched, now,
	)
	return eris.Wrapf(err, "postgres: record success %s", key)
}

func (s *PostgresStore) RecordFailure(ctx context.Context, key, message string) error {
	now := time.Now().UTC()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO domain_state (key, failure_message, failure_at, updated_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (key) DO UPDATE SET failure_message = EXCLUDED.failure_message,
		   failure_at = EXCLUDED.failure_at, updated_at = EXCLUDED.updated_at`,
		key, message, now, now,
	)
	return eris.Wrapf(err, "postgres: record failure %s", key)
}

func (s *PostgresStore) AppendVisited(ctx context.Context, key string, urls []string) error {
	if len(urls) == 0 {
		return nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin append visited")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var raw []byte
	err = tx.QueryRow(ctx, `SELECT visited FROM domain_state WHERE key = $1 FOR UPDATE`, key).Scan(&raw)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return eris.Wrapf(err, "postgres: read visited %s", key)
	}
	existing, err := decodeVisited(raw)
	if err != nil {
		return err
	}
	merged, err := encodeVisited(mergeVisited(existing, urls))
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO domain_state (key, visited, updated_at) VALUES ($1, $2, $3)
		 ON CONFLICT (key) DO UPDATE SET visited = EXCLUDED.visited, updated_at = EXCLUDED.updated_at`,
		key, merged, time.Now().UTC(),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: write visited %s", key)
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit append visited")
}

func (s *PostgresStore) ClearDomain(ctx context.Context, key string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM domain_state WHERE key = $1`, key)
	return eris.Wrapf(err, "postgres: clear domain %s", key)
}

func (s *PostgresStore) ListDomainStates(ctx context.Context) ([]model.DomainState, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+domainStateColumns+` FROM domain_state ORDER BY key`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list domain states")
	}
	defer rows.Close()

	var out []model.DomainState
	for rows.Next() {
		st, err := scanPgDomainState(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan domain state")
		}
		out = append(out, *st)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate domain states")
}

func scanPgDomainState(row pgx.Row) (*model.DomainState, error) {
	var (
		st      model.DomainState
		failMsg *string
		failAt  *time.Time
		visited []byte
	)
	if err := row.Scan(&st.Key, &st.LastSuccess, &failMsg, &failAt, &st.PagesFetched, &visited, &st.UpdatedAt); err != nil {
		return nil, err
	}
	if failMsg != nil {
		rec := model.FailureRecord{Message: *failMsg}
		if failAt != nil {
			rec.At = *failAt
		}
		st.LastFailure = &rec
	}
	v, err := decodeVisited(visited)
	if err != nil {
		return nil, err
	}
	st.Visited = v
	return &st, nil
}
