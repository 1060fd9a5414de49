package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/rescape/region-store/internal/model"
	"github.com/rescape/region-store/internal/paginate"
	"github.com/rescape/region-store/internal/scope"
)

// querier hides the difference between a pgx pool and database/sql.
type querier interface {
	queryRow(ctx context.Context, query string, args ...any) rowScanner
	query(ctx context.Context, query string, args []any, each func(rowScanner) error) error
	exec(ctx context.Context, query string, args ...any) (int64, error)
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows)
}

// sqlStore implements the listings and the user-state aggregate for both
// dialects.
type sqlStore struct {
	d    dialect
	q    querier
	name string
}

func (s *sqlStore) Regions() paginate.Source[model.Region] {
	return &listing[model.Region]{s: s, t: regionsTable}
}

func (s *sqlStore) Projects() paginate.Source[model.Project] {
	return &listing[model.Project]{s: s, t: projectsTable}
}

func (s *sqlStore) Locations() paginate.Source[model.Location] {
	return &listing[model.Location]{s: s, t: locationsTable}
}

func (s *sqlStore) SearchLocations() paginate.Source[model.SearchLocation] {
	return &listing[model.SearchLocation]{s: s, t: searchLocationsTable}
}

// listing pages through one table.
type listing[T any] struct {
	s *sqlStore
	t table[T]
}

// Page implements paginate.Source. Pages past the end are empty.
func (l *listing[T]) Page(ctx context.Context, q paginate.Query) (paginate.Envelope[T], error) {
	if q.PageSize < 1 {
		return paginate.Envelope[T]{}, paginate.ErrInvalidPageSize
	}
	if q.Page < 1 {
		q.Page = 1
	}

	b := &builder{d: l.s.d}
	where, err := b.where(l.t.tableSpec, q.Filter)
	if err != nil {
		return paginate.Envelope[T]{}, err
	}
	order, err := orderBy(l.s.d, l.t.tableSpec, q.OrderBy)
	if err != nil {
		return paginate.Envelope[T]{}, err
	}

	var total int64
	countSQL := "SELECT COUNT(*) FROM " + l.t.name + where
	if err := l.s.q.queryRow(ctx, countSQL, b.args...).Scan(&total); err != nil {
		return paginate.Envelope[T]{}, eris.Wrapf(err, "%s: count %s", l.s.name, l.t.name)
	}

	env := paginate.Envelope[T]{
		Objects:  []T{},
		Page:     q.Page,
		PageSize: q.PageSize,
		Pages:    paginate.Pages(int(total), q.PageSize),
	}
	env.HasPrev = env.Page > 1
	env.HasNext = env.Page < env.Pages
	if env.Page > env.Pages {
		return env, nil
	}

	selectSQL := fmt.Sprintf("SELECT %s FROM %s%s%s LIMIT %d OFFSET %d",
		strings.Join(l.t.columns, ", "), l.t.name, where, order,
		q.PageSize, (q.Page-1)*q.PageSize,
	)
	err = l.s.q.query(ctx, selectSQL, b.args, func(row rowScanner) error {
		obj, err := l.t.scan(row)
		if err != nil {
			return err
		}
		env.Objects = append(env.Objects, obj)
		return nil
	})
	if err != nil {
		return paginate.Envelope[T]{}, eris.Wrapf(err, "%s: list %s", l.s.name, l.t.name)
	}

	zap.L().Debug("store: page listed",
		zap.String("table", l.t.name),
		zap.Int("page", env.Page),
		zap.Int("pages", env.Pages),
		zap.Int("objects", len(env.Objects)),
	)
	return env, nil
}

// FetchAggregate implements scope.AggregateClient.
func (s *sqlStore) FetchAggregate(ctx context.Context, id scope.Identity) (*model.UserState, error) {
	if !id.Resolved() {
		return nil, model.ErrNotReady
	}

	b := &builder{d: s.d}
	query := "SELECT id, user_id, data FROM user_states WHERE user_id = " + b.bind(id.UserID.String())

	var (
		stateID, userID string
		data            []byte
	)
	err := s.q.queryRow(ctx, query, b.args...).Scan(&stateID, &userID, &data)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "%s: get user state for %s", s.name, id.UserID)
	}

	state := &model.UserState{ID: model.ID(stateID), User: model.Ref{ID: model.ID(userID)}}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &state.Data); err != nil {
			return nil, eris.Wrapf(err, "%s: decode user state %s", s.name, stateID)
		}
	}
	return state, nil
}

// PersistAggregate implements scope.AggregateClient. A state without an id
// is inserted, or replaces the user's existing row.
func (s *sqlStore) PersistAggregate(ctx context.Context, state *model.UserState) (*model.UserState, error) {
	if state == nil {
		return nil, eris.Errorf("%s: nil user state", s.name)
	}
	if state.User.ID.Empty() {
		return nil, eris.Errorf("%s: user state has no user", s.name)
	}

	data, err := json.Marshal(state.Data)
	if err != nil {
		return nil, eris.Wrapf(err, "%s: encode user state", s.name)
	}
	now := time.Now().UTC()
	saved := state.Clone()

	b := &builder{d: s.d}
	if state.ID.Empty() {
		newID := uuid.New().String()
		query := fmt.Sprintf(
			`INSERT INTO user_states (id, user_id, data, created_at, updated_at) VALUES (%s, %s, %s, %s, %s)
ON CONFLICT (user_id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at
RETURNING id`,
			b.bind(newID), b.bind(state.User.ID.String()), b.bind(string(data)), b.bind(now), b.bind(now),
		)
		var id string
		if err := s.q.queryRow(ctx, query, b.args...).Scan(&id); err != nil {
			return nil, eris.Wrapf(err, "%s: insert user state for %s", s.name, state.User.ID)
		}
		saved.ID = model.ID(id)
		return saved, nil
	}

	query := fmt.Sprintf(
		"UPDATE user_states SET data = %s, updated_at = %s WHERE id = %s AND user_id = %s",
		b.bind(string(data)), b.bind(now), b.bind(state.ID.String()), b.bind(state.User.ID.String()),
	)
	n, err := s.q.exec(ctx, query, b.args...)
	if err != nil {
		return nil, eris.Wrapf(err, "%s: update user state %s", s.name, state.ID)
	}
	if n == 0 {
		return nil, eris.Errorf("%s: user state %s not found for user %s", s.name, state.ID, state.User.ID)
	}
	return saved, nil
}

// regionRow flattens a region for insertion. Ids are generated for new
// regions; the key decides whether a row is new.
func regionRow(r model.Region, now time.Time) []any {
	id := r.ID.String()
	if r.ID.Empty() {
		id = uuid.New().String()
	}
	return []any{id, r.Key, r.Name, nullJSON(r.Geojson), nullJSON(r.Data), now, now}
}

var regionWriteColumns = []string{"id", "key", "name", "geojson", "data", "created_at", "updated_at"}

func nullJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
