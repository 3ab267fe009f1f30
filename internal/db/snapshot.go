package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// SnapshotConfig describes a table written as a whole snapshot.
type SnapshotConfig struct {
	Table   string   // target table, optionally schema-qualified
	Columns []string // all columns being written
	Keys    []string // primary key columns
	// Prune deletes target rows whose key is absent from the snapshot.
	Prune bool
}

// WriteSnapshot replaces the contents of a table with rows in one
// transaction:
//  1. COPY rows into a temp table shaped like the target
//  2. INSERT ... ON CONFLICT (keys) DO UPDATE from the temp table
//  3. optionally DELETE target rows missing from the temp table
//
// An empty snapshot with Prune set truncates the table.
func WriteSnapshot(ctx context.Context, pool Pool, cfg SnapshotConfig, rows [][]any) (int64, error) {
	if len(cfg.Columns) == 0 {
		return 0, eris.New("db: snapshot: no columns specified")
	}
	if len(cfg.Keys) == 0 {
		return 0, eris.New("db: snapshot: no keys specified")
	}
	if len(rows) == 0 {
		if !cfg.Prune {
			return 0, nil
		}
		if _, err := pool.Exec(ctx, "DELETE FROM "+sanitizeTable(cfg.Table)); err != nil {
			return 0, eris.Wrapf(err, "db: snapshot: clear %s", cfg.Table)
		}
		return 0, nil
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "db: snapshot: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	tempTable := TempTableName(cfg.Table)
	createSQL := fmt.Sprintf(
		"CREATE TEMP TABLE %s (LIKE %s INCLUDING DEFAULTS) ON COMMIT DROP",
		pgx.Identifier{tempTable}.Sanitize(),
		sanitizeTable(cfg.Table),
	)
	if _, err := tx.Exec(ctx, createSQL); err != nil {
		return 0, eris.Wrapf(err, "db: snapshot: create temp table for %s", cfg.Table)
	}

	if _, err := tx.CopyFrom(ctx, pgx.Identifier{tempTable}, cfg.Columns, pgx.CopyFromRows(rows)); err != nil {
		return 0, eris.Wrapf(err, "db: snapshot: COPY into temp table for %s", cfg.Table)
	}

	keySet := make(map[string]bool, len(cfg.Keys))
	for _, k := range cfg.Keys {
		keySet[k] = true
	}
	var setClauses []string
	for _, col := range cfg.Columns {
		if keySet[col] {
			continue
		}
		id := pgx.Identifier{col}.Sanitize()
		setClauses = append(setClauses, fmt.Sprintf("%s = EXCLUDED.%s", id, id))
	}

	colList := quoteAndJoin(cfg.Columns)
	action := "DO NOTHING"
	if len(setClauses) > 0 {
		action = "DO UPDATE SET " + strings.Join(setClauses, ", ")
	}
	upsertSQL := fmt.Sprintf(
		"INSERT INTO %s (%s) SELECT %s FROM %s ON CONFLICT (%s) %s",
		sanitizeTable(cfg.Table),
		colList,
		colList,
		pgx.Identifier{tempTable}.Sanitize(),
		quoteAndJoin(cfg.Keys),
		action,
	)
	tag, err := tx.Exec(ctx, upsertSQL)
	if err != nil {
		return 0, eris.Wrapf(err, "db: snapshot: upsert %s", cfg.Table)
	}

	if cfg.Prune {
		keyList := quoteAndJoin(cfg.Keys)
		pruneSQL := fmt.Sprintf(
			"DELETE FROM %s WHERE (%s) NOT IN (SELECT %s FROM %s)",
			sanitizeTable(cfg.Table),
			keyList,
			keyList,
			pgx.Identifier{tempTable}.Sanitize(),
		)
		if _, err := tx.Exec(ctx, pruneSQL); err != nil {
			return 0, eris.Wrapf(err, "db: snapshot: prune %s", cfg.Table)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "db: snapshot: commit tx")
	}
	return tag.RowsAffected(), nil
}

// TempTableName returns the temp table used when snapshotting table.
func TempTableName(table string) string {
	return "_tmp_snapshot_" + strings.ReplaceAll(table, ".", "_")
}

// sanitizeTable handles schema-qualified table names like "leadgen.runs".
func sanitizeTable(table string) string {
	parts := strings.SplitN(table, ".", 2)
	if len(parts) == 2 {
		return pgx.Identifier{parts[0], parts[1]}.Sanitize()
	}
	return pgx.Identifier{table}.Sanitize()
}

func quoteAndJoin(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}
