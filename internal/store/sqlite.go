package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/rescape/region-store/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	sqlStore
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
	return &SQLiteStore{
		sqlStore: sqlStore{d: dialectSQLite, q: sqlQuerier{db: db}, name: "sqlite"},
		db:       db,
	}, nil
}

const sqliteEntityColumns = `
	id         TEXT PRIMARY KEY,
	key        TEXT NOT NULL DEFAULT '',
	name       TEXT NOT NULL DEFAULT '',
	geojson    TEXT,
	data       TEXT,
	deleted    DATETIME,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))`

var sqliteMigration = fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS regions (%[1]s
);

CREATE TABLE IF NOT EXISTS projects (%[1]s,
	user_id    TEXT,
	region_ids TEXT
);

CREATE TABLE IF NOT EXISTS locations (%[1]s
);

CREATE TABLE IF NOT EXISTS search_locations (%[1]s,
	identification TEXT
);

CREATE TABLE IF NOT EXISTS user_states (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL UNIQUE,
	data       TEXT NOT NULL DEFAULT '{}',
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_regions_key ON regions(key);
CREATE UNIQUE INDEX IF NOT EXISTS idx_projects_key ON projects(key);
CREATE UNIQUE INDEX IF NOT EXISTS idx_locations_key ON locations(key);
CREATE INDEX IF NOT EXISTS idx_projects_user_id ON projects(user_id);
`, sqliteEntityColumns)

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveRegions upserts regions by key in one transaction.
func (s *SQLiteStore) SaveRegions(ctx context.Context, regions []model.Region) (int64, error) {
	if len(regions) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(regionWriteColumns)), ", ")
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		`INSERT INTO regions (%s) VALUES (%s)
ON CONFLICT (key) DO UPDATE SET name = excluded.name, geojson = excluded.geojson, data = excluded.data, updated_at = excluded.updated_at`,
		strings.Join(regionWriteColumns, ", "), placeholders,
	))
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare region upsert")
	}
	defer stmt.Close()

	now := time.Now().UTC()
	var total int64
	for _, r := range regions {
		res, err := stmt.ExecContext(ctx, regionRow(r, now)...)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: upsert region %s", r.Key)
		}
		n, _ := res.RowsAffected()
		total += n
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit regions")
	}
	return total, nil
}

type sqlQuerier struct {
	db *sql.DB
}

func (q sqlQuerier) queryRow(ctx context.Context, query string, args ...any) rowScanner {
	return q.db.QueryRowContext(ctx, query, args...)
}

func (q sqlQuerier) query(ctx context.Context, query string, args []any, each func(rowScanner) error) error {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		if err := each(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (q sqlQuerier) exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := q.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
