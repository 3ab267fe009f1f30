package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/ShaunandDavid/lead-generator-firecrawl/internal/model"
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
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	status     TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	data       TEXT NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS domain_state (
	key             TEXT PRIMARY KEY,
	last_success    DATETIME,
	failure_message TEXT,
	failure_at      DATETIME,
	pages_fetched   INTEGER NOT NULL DEFAULT 0,
	visited         TEXT NOT NULL DEFAULT '[]',
	updated_at      DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) LoadRuns(ctx context.Context) ([]model.Run, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT data FROM runs ORDER BY created_at, id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: load runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		var r model.Run
		if err := json.Unmarshal([]byte(data), &r); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal run")
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: iterate runs")
}

func (s *SQLiteStore) SaveRuns(ctx context.Context, runs []model.Run) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin save runs")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM runs`); err != nil {
		return eris.Wrap(err, "sqlite: clear runs")
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO runs (id, status, created_at, data, updated_at) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare insert run")
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, r := range runs {
		data, err := json.Marshal(r)
		if err != nil {
			return eris.Wrapf(err, "sqlite: marshal run %s", r.ID)
		}
		if _, err := stmt.ExecContext(ctx, r.ID, string(r.Status), r.CreatedAt.UTC(), string(data), now); err != nil {
			return eris.Wrapf(err, "sqlite: insert run %s", r.ID)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit save runs")
}

func (s *SQLiteStore) GetDomainState(ctx context.Context, key string) (*model.DomainState, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT key, last_success, failure_message, failure_at, pages_fetched, visited, updated_at
		 FROM domain_state WHERE key = ?`, key)
	st, err := scanDomainState(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get domain state %s", key)
	}
	return st, nil
}

func (s *SQLiteStore) RecordSuccess(ctx context.Context, key string, pagesFetched int) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO domain_state (key, last_success, pages_fetched, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET last_success = excluded.last_success,
		   pages_fetched = excluded.pages_fetched, updated_at = excluded.updated_at`,
		key, now, pagesFetched, now,
	)
	return eris.Wrapf(err, "sqlite: record success %s", key)
}

func (s *SQLiteStore) RecordFailure(ctx context.Context, key, message string) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO domain_state (key, failure_message, failure_at, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET failure_message = excluded.failure_message,
		   failure_at = excluded.failure_at, updated_at = excluded.updated_at`,
		key, message, now, now,
	)
	return eris.Wrapf(err, "sqlite: record failure %s", key)
}

func (s *SQLiteStore) AppendVisited(ctx context.Context, key string, urls []string) error {
	if len(urls) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin append visited")
	}
	defer tx.Rollback() //nolint:errcheck

	var raw string
	err = tx.QueryRowContext(ctx, `SELECT visited FROM domain_state WHERE key = ?`, key).Scan(&raw)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return eris.Wrapf(err, "sqlite: read visited %s", key)
	}
	existing, err := decodeVisited([]byte(raw))
	if err != nil {
		return err
	}
	merged, err := encodeVisited(mergeVisited(existing, urls))
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO domain_state (key, visited, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET visited = excluded.visited, updated_at = excluded.updated_at`,
		key, string(merged), time.Now().UTC(),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: write visited %s", key)
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit append visited")
}

func (s *SQLiteStore) ClearDomain(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM domain_state WHERE key = ?`, key)
	return eris.Wrapf(err, "sqlite: clear domain %s", key)
}

func (s *SQLiteStore) ListDomainStates(ctx context.Context) ([]model.DomainState, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, last_success, failure_message, failure_at, pages_fetched, visited, updated_at
		 FROM domain_state ORDER BY key`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list domain states")
	}
	defer rows.Close()

	var out []model.DomainState
	for rows.Next() {
		st, err := scanDomainState(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan domain state")
		}
		out = append(out, *st)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate domain states")
}

type scannable interface {
	Scan(dest ...any) error
}

func scanDomainState(row scannable) (*model.DomainState, error) {
	var (
		st          model.DomainState
		lastSuccess sql.NullTime
		failMsg     sql.NullString
		failAt      sql.NullTime
		visited     string
	)
	if err := row.Scan(&st.Key, &lastSuccess, &failMsg, &failAt, &st.PagesFetched, &visited, &st.UpdatedAt); err != nil {
		return nil, err
	}
	if lastSuccess.Valid {
		t := lastSuccess.Time
		st.LastSuccess = &t
	}
	if failMsg.Valid {
		st.LastFailure = &model.FailureRecord{Message: failMsg.String, At: failAt.Time}
	}
	v, err := decodeVisited([]byte(visited))
	if err != nil {
		return nil, err
	}
	st.Visited = v
	return &st, nil
}
