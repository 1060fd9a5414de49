package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rescape/region-store/internal/model"
	"github.com/rescape/region-store/internal/paginate"
	"github.com/rescape/region-store/internal/scope"
	"github.com/rescape/region-store/pkg/graphql"
)

// stubClient answers each operation with a canned data payload.
type stubClient struct {
	mu       sync.Mutex
	data     map[string]string
	err      error
	requests []graphql.Request
}

func (s *stubClient) Do(_ context.Context, req graphql.Request, out any) error {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	body, ok := s.data[req.OperationName]
	if !ok {
		return errors.New("unexpected operation " + req.OperationName)
	}
	return json.Unmarshal([]byte(body), out)
}

func (s *stubClient) last() graphql.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[len(s.requests)-1]
}

func TestListing_Page(t *testing.T) {
	stub := &stubClient{data: map[string]string{
		"regionsPaginated": `{"regionsPaginated": {
			"page": 2, "pages": 3, "pageSize": 2, "hasNext": true, "hasPrev": true,
			"objects": [{"id": 3, "key": "belgium", "name": "Belgium"}, {"id": "4", "key": "oakland"}]
		}}`,
	}}

	env, err := NewRegions(stub).Page(context.Background(), paginate.Query{
		Filter:   map[string]any{"key_contains": "b"},
		Page:     2,
		PageSize: 2,
		OrderBy:  "key",
	})
	require.NoError(t, err)

	assert.Equal(t, 2, env.Page)
	assert.Equal(t, 3, env.Pages)
	require.Len(t, env.Objects, 2)
	assert.Equal(t, model.ID("3"), env.Objects[0].ID)
	assert.Equal(t, "Belgium", env.Objects[0].Name)

	q := stub.last().Query
	assert.Contains(t, q, "query regionsPaginated")
	assert.Contains(t, q, `objects: {key_contains: "b"}`)
	assert.Contains(t, q, `orderBy: "key"`)
	assert.Contains(t, q, "page: 2")
	assert.Contains(t, q, "pageSize: 2")
	assert.Contains(t, q, "objects { id key name")
}

func TestListing_NoFilterOmitsObjectsArg(t *testing.T) {
	stub := &stubClient{data: map[string]string{
		"locationsPaginated": `{"locationsPaginated": {"page": 1, "pages": 1, "pageSize": 10, "objects": []}}`,
	}}

	_, err := NewLocations(stub).Page(context.Background(), paginate.Query{Page: 1, PageSize: 10, OrderBy: "id"})
	require.NoError(t, err)
	assert.NotContains(t, stub.last().Query, "objects: ")
}

func TestListing_RequiredFilterNotReady(t *testing.T) {
	stub := &stubClient{}
	l := NewUserProjects(stub)

	_, err := l.Page(context.Background(), paginate.Query{Page: 1, PageSize: 10, Filter: map[string]any{"user": nil}})
	assert.ErrorIs(t, err, paginate.ErrNotReady)
	assert.Empty(t, stub.requests)
}

func TestListing_MissingResponseKey(t *testing.T) {
	stub := &stubClient{data: map[string]string{"projectsPaginated": `{}`}}

	_, err := NewProjects(stub).Page(context.Background(), paginate.Query{Page: 1, PageSize: 10})
	assert.ErrorContains(t, err, "projectsPaginated missing")
}

func TestListing_ClientError(t *testing.T) {
	stub := &stubClient{err: graphql.Errors{{Message: "boom"}}}

	_, err := NewSearchLocations(stub).Page(context.Background(), paginate.Query{Page: 1, PageSize: 10})
	require.Error(t, err)
	var gqlErrs graphql.Errors
	assert.True(t, errors.As(err, &gqlErrs))
}

func TestListing_WithAccumulator(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]bool{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req graphql.Request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		mu.Lock()
		seen[req.Query] = true
		mu.Unlock()

		page := 1
		switch {
		case strings.Contains(req.Query, "page: 2,"):
			page = 2
		case strings.Contains(req.Query, "page: 3,"):
			page = 3
		}
		objects := map[int]string{
			1: `[{"id": 1}, {"id": 2}]`,
			2: `[{"id": 3}, {"id": 4}]`,
			3: `[{"id": 5}]`,
		}[page]
		w.Write([]byte(`{"data": {"regionsPaginated": {"page": ` + strconv.Itoa(page) +
			`, "pages": 3, "pageSize": 2, "objects": ` + objects + `}}}`))
	}))
	defer srv.Close()

	client := graphql.NewClient(srv.URL)
	acc := paginate.NewAccumulator(paginate.NewPageFetcher[model.Region]("regions", NewRegions(client)), paginate.Config{PageSize: 2})

	res, err := acc.Run(context.Background(), nil, 0, "")
	require.NoError(t, err)
	require.False(t, res.NotReady)

	var ids []model.ID
	for _, r := range res.Objects {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []model.ID{"1", "2", "3", "4", "5"}, ids)
	assert.Len(t, seen, 3)
}

func TestCurrentUser(t *testing.T) {
	stub := &stubClient{data: map[string]string{
		"currentUser": `{"currentUser": {"id": 3, "username": "ana", "email": "ana@example.com"}}`,
	}}
	us := NewUserStates(stub)

	u, err := us.CurrentUser(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.ID("3"), u.ID)
	assert.Equal(t, "ana", u.Username)

	id, err := us.ResolveIdentity(context.Background())
	require.NoError(t, err)
	assert.Equal(t, scope.Identity{UserID: "3"}, id)
}

func TestCurrentUser_Anonymous(t *testing.T) {
	stub := &stubClient{data: map[string]string{"currentUser": `{"currentUser": null}`}}
	us := NewUserStates(stub)

	_, err := us.CurrentUser(context.Background())
	assert.ErrorIs(t, err, model.ErrNotReady)

	id, err := us.ResolveIdentity(context.Background())
	require.NoError(t, err)
	assert.False(t, id.Resolved())
}

func TestFetchAggregate(t *testing.T) {
	stub := &stubClient{data: map[string]string{
		"userStates": `{"userStates": [{
			"id": 7, "user": {"id": 3},
			"data": {"userRegions": [{"region": {"id": 10}, "activity": {"isActive": true}}]}
		}]}`,
	}}

	got, err := NewUserStates(stub).FetchAggregate(context.Background(), scope.Identity{UserID: "3"})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, model.ID("7"), got.ID)
	require.Len(t, got.Data.UserRegions, 1)
	id, _ := got.Data.UserRegions[0].EntityID()
	assert.Equal(t, model.ID("10"), id)
	assert.Contains(t, stub.last().Query, `userStates(user: {id: "3"})`)
}

func TestFetchAggregate_None(t *testing.T) {
	stub := &stubClient{data: map[string]string{"userStates": `{"userStates": []}`}}

	got, err := NewUserStates(stub).FetchAggregate(context.Background(), scope.Identity{UserID: "3"})
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFetchAggregate_Unresolved(t *testing.T) {
	stub := &stubClient{}

	_, err := NewUserStates(stub).FetchAggregate(context.Background(), scope.Identity{})
	assert.ErrorIs(t, err, model.ErrNotReady)
	assert.Empty(t, stub.requests)
}

func TestPersistAggregate_CreateAndUpdate(t *testing.T) {
	stub := &stubClient{data: map[string]string{
		"createUserState": `{"createUserState": {"userState": {"id": 8, "user": {"id": 3}, "data": {}}}}`,
		"updateUserState": `{"updateUserState": {"userState": {"id": 7, "user": {"id": 3}, "data": {}}}}`,
	}}
	us := NewUserStates(stub)

	state := &model.UserState{User: model.Ref{ID: "3"}}
	state.Data.UserRegions = []model.Association{model.NewAssociation("10", map[string]any{"activity": map[string]any{"isActive": true}})}

	saved, err := us.PersistAggregate(context.Background(), state)
	require.NoError(t, err)
	assert.Equal(t, model.ID("8"), saved.ID)
	q := stub.last().Query
	assert.Contains(t, q, "mutation createUserState")
	assert.Contains(t, q, `region: {id: "10"}`)
	assert.NotContains(t, q, `, id: "`)

	state.ID = "7"
	saved, err = us.PersistAggregate(context.Background(), state)
	require.NoError(t, err)
	assert.Equal(t, model.ID("7"), saved.ID)
	assert.Contains(t, stub.last().Query, "mutation updateUserState")
	assert.Contains(t, stub.last().Query, `, id: "7"`)
}

func TestPersistAggregate_EmptyResult(t *testing.T) {
	stub := &stubClient{data: map[string]string{"updateUserState": `{"updateUserState": {"userState": null}}`}}

	_, err := NewUserStates(stub).PersistAggregate(context.Background(), &model.UserState{ID: "7"})
	assert.ErrorContains(t, err, "returned no user state")
}

func TestUserStates_WithSyncer(t *testing.T) {
	stub := &stubClient{data: map[string]string{
		"userStates":      `{"userStates": [{"id": 7, "user": {"id": 3}, "data": {"userRegions": [{"region": {"id": 10}, "activity": {"isActive": false}}]}}]}`,
		"updateUserState": `{"updateUserState": {"userState": {"id": 7, "user": {"id": 3}, "data": {"userRegions": [{"region": {"id": 10}, "activity": {"isActive": true}}]}}}}`,
	}}
	syncer := scope.NewSyncer(NewUserStates(stub))

	sub := model.NewAssociation("10", map[string]any{"activity": map[string]any{"isActive": true}})
	out, err := syncer.Upsert(context.Background(), scope.UpsertRequest{
		Identity:  scope.Identity{UserID: "3"},
		Scope:     model.ScopeRegions,
		Submitted: &sub,
	})
	require.NoError(t, err)
	assert.Equal(t, scope.PhaseDone, out.Phase)
	assert.Contains(t, stub.last().Query, "isActive: true")
}
