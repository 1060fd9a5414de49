package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/rescape/region-store/internal/db"
	"github.com/rescape/region-store/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	sqlStore
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

	maxConns := int32(10)
	minConns := int32(2)
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
	return newPostgresStore(pool, pool.Close), nil
}

func newPostgresStore(pool db.Pool, closeFn func()) *PostgresStore {
	return &PostgresStore{
		sqlStore: sqlStore{d: dialectPostgres, q: pgQuerier{pool: pool}, name: "postgres"},
		pool:     pool,
		closeFn:  closeFn,
	}
}

// Pool returns the underlying database pool.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS regions (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	key        TEXT NOT NULL UNIQUE,
	name       TEXT NOT NULL DEFAULT '',
	geojson    JSONB,
	data       JSONB,
	deleted    TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS projects (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	key        TEXT NOT NULL UNIQUE,
	name       TEXT NOT NULL DEFAULT '',
	geojson    JSONB,
	data       JSONB,
	deleted    TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	user_id    TEXT,
	region_ids JSONB
);

CREATE TABLE IF NOT EXISTS locations (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	key        TEXT NOT NULL UNIQUE,
	name       TEXT NOT NULL DEFAULT '',
	geojson    JSONB,
	data       JSONB,
	deleted    TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS search_locations (
	id             TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	key            TEXT NOT NULL DEFAULT '',
	name           TEXT NOT NULL DEFAULT '',
	geojson        JSONB,
	data           JSONB,
	deleted        TIMESTAMPTZ,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	identification JSONB
);

CREATE TABLE IF NOT EXISTS user_states (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	user_id    TEXT NOT NULL UNIQUE,
	data       JSONB NOT NULL DEFAULT '{}',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_projects_user_id ON projects(user_id);
CREATE INDEX IF NOT EXISTS idx_regions_deleted ON regions(deleted);
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

// SaveRegions bulk upserts regions by key through COPY.
func (s *PostgresStore) SaveRegions(ctx context.Context, regions []model.Region) (int64, error) {
	now := time.Now().UTC()
	rows := make([][]any, len(regions))
	for i, r := range regions {
		rows[i] = regionRow(r, now)
	}
	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "regions",
		Columns:      regionWriteColumns,
		ConflictKeys: []string{"key"},
		UpdateCols:   []string{"name", "geojson", "data", "updated_at"},
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: save regions")
	}
	return n, nil
}

type pgQuerier struct {
	pool db.Pool
}

func (q pgQuerier) queryRow(ctx context.Context, query string, args ...any) rowScanner {
	return q.pool.QueryRow(ctx, query, args...)
}

func (q pgQuerier) query(ctx context.Context, query string, args []any, each func(rowScanner) error) error {
	rows, err := q.pool.Query(ctx, query, args...)
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

func (q pgQuerier) exec(ctx context.Context, query string, args ...any) (int64, error) {
	tag, err := q.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
