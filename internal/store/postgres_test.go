package store

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rescape/region-store/internal/model"
	"github.com/rescape/region-store/internal/paginate"
	"github.com/rescape/region-store/internal/scope"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return newPostgresStore(mock, nil), mock
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS regions`).WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Page_Empty(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM regions WHERE key LIKE \$1 AND deleted IS NULL`).
		WithArgs("%bel%").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(0)))

	env, err := s.Regions().Page(context.Background(), paginate.Query{
		Page: 1, PageSize: 10, Filter: map[string]any{"key_contains": "bel"},
	})
	require.NoError(t, err)
	assert.Empty(t, env.Objects)
	assert.Equal(t, 0, env.Pages)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Page_QueryError(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM projects WHERE user_id = \$1 AND deleted IS NULL`).
		WithArgs("3").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(12)))
	mock.ExpectQuery(`SELECT id, key, name, geojson, data, deleted, created_at, updated_at, user_id, region_ids FROM projects WHERE user_id = \$1 AND deleted IS NULL ORDER BY name DESC, id ASC LIMIT 5 OFFSET 5`).
		WithArgs("3").
		WillReturnError(errors.New("connection reset"))

	_, err := s.Projects().Page(context.Background(), paginate.Query{
		Page: 2, PageSize: 5, OrderBy: "-name", Filter: map[string]any{"user": map[string]any{"id": "3"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres: list projects")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FetchAggregate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, user_id, data FROM user_states WHERE user_id = \$1`).
		WithArgs("3").
		WillReturnRows(pgxmock.NewRows([]string{"id", "user_id", "data"}).
			AddRow("us-1", "3", []byte(`{"userRegions": [{"region": {"id": 10}}], "theme": "dark"}`)))

	got, err := s.FetchAggregate(context.Background(), scope.Identity{UserID: "3"})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, model.ID("us-1"), got.ID)
	assert.Equal(t, model.ID("3"), got.User.ID)
	require.Len(t, got.Data.UserRegions, 1)
	assert.Contains(t, got.Data.Extra, "theme")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FetchAggregate_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, user_id, data FROM user_states`).
		WithArgs("9").
		WillReturnError(pgx.ErrNoRows)

	got, err := s.FetchAggregate(context.Background(), scope.Identity{UserID: "9"})
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_PersistAggregate_Insert(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`(?s)INSERT INTO user_states .* ON CONFLICT \(user_id\) DO UPDATE .* RETURNING id`).
		WithArgs(pgxmock.AnyArg(), "3", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("us-1"))

	saved, err := s.PersistAggregate(context.Background(), &model.UserState{User: model.Ref{ID: "3"}})
	require.NoError(t, err)
	assert.Equal(t, model.ID("us-1"), saved.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_PersistAggregate_Update(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE user_states SET data = \$1, updated_at = \$2 WHERE id = \$3 AND user_id = \$4`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), "us-1", "3").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	saved, err := s.PersistAggregate(context.Background(), &model.UserState{ID: "us-1", User: model.Ref{ID: "3"}})
	require.NoError(t, err)
	assert.Equal(t, model.ID("us-1"), saved.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_PersistAggregate_UpdateMissing(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE user_states`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), "us-404", "3").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	_, err := s.PersistAggregate(context.Background(), &model.UserState{ID: "us-404", User: model.Ref{ID: "3"}})
	assert.ErrorContains(t, err, "not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_PersistAggregate_NoUser(t *testing.T) {
	s, _ := newMockPostgresStore(t)

	_, err := s.PersistAggregate(context.Background(), &model.UserState{})
	assert.ErrorContains(t, err, "has no user")
}

func TestPostgresStore_SaveRegions(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("CREATE TEMP TABLE").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_regions"}, regionWriteColumns).WillReturnResult(2)
	mock.ExpectExec("DELETE FROM").WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec(`INSERT INTO "regions" .* DO UPDATE SET "name" = EXCLUDED."name", "geojson" = EXCLUDED."geojson", "data" = EXCLUDED."data", "updated_at" = EXCLUDED."updated_at"`).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	n, err := s.SaveRegions(context.Background(), []model.Region{
		{Entity: model.Entity{Key: "belgium", Name: "Belgium"}},
		{Entity: model.Entity{ID: "7", Key: "oakland", Name: "Oakland"}},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
