package remote

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/rescape/region-store/internal/model"
	"github.com/rescape/region-store/internal/scope"
	"github.com/rescape/region-store/pkg/graphql"
)

// UserStates reads and writes user-state aggregates over GraphQL.
type UserStates struct {
	client graphql.Client
}

var _ scope.AggregateClient = (*UserStates)(nil)

// NewUserStates returns a UserStates client.
func NewUserStates(client graphql.Client) *UserStates {
	return &UserStates{client: client}
}

// CurrentUser returns the authenticated user, or model.ErrNotReady when
// the API does not know who is calling yet.
func (u *UserStates) CurrentUser(ctx context.Context) (*model.User, error) {
	req, err := graphql.Query("currentUser", graphql.F("currentUser", UserFields...))
	if err != nil {
		return nil, eris.Wrap(err, "remote: build currentUser query")
	}

	var out struct {
		CurrentUser *model.User `json:"currentUser"`
	}
	if err := u.client.Do(ctx, req, &out); err != nil {
		return nil, eris.Wrap(err, "remote: query currentUser")
	}
	if out.CurrentUser == nil || out.CurrentUser.ID.Empty() {
		return nil, model.ErrNotReady
	}
	return out.CurrentUser, nil
}

// ResolveIdentity returns the identity of the current user. An
// unauthenticated caller yields an unresolved identity and no error.
func (u *UserStates) ResolveIdentity(ctx context.Context) (scope.Identity, error) {
	user, err := u.CurrentUser(ctx)
	if eris.Is(err, model.ErrNotReady) {
		return scope.Identity{}, nil
	}
	if err != nil {
		return scope.Identity{}, err
	}
	return scope.Identity{UserID: user.ID}, nil
}

// FetchAggregate implements scope.AggregateClient.
func (u *UserStates) FetchAggregate(ctx context.Context, id scope.Identity) (*model.UserState, error) {
	if !id.Resolved() {
		return nil, model.ErrNotReady
	}

	root := graphql.F("userStates", UserStateFields...).
		WithArgs(map[string]any{"user": map[string]any{"id": id.UserID}})
	req, err := graphql.Query("userStates", root)
	if err != nil {
		return nil, eris.Wrap(err, "remote: build userStates query")
	}

	var out struct {
		UserStates []model.UserState `json:"userStates"`
	}
	if err := u.client.Do(ctx, req, &out); err != nil {
		return nil, eris.Wrap(err, "remote: query userStates")
	}
	if len(out.UserStates) == 0 {
		return nil, nil
	}
	return &out.UserStates[0], nil
}

// PersistAggregate implements scope.AggregateClient. A state without an id
// is created, otherwise it replaces the stored one.
func (u *UserStates) PersistAggregate(ctx context.Context, s *model.UserState) (*model.UserState, error) {
	if s == nil {
		return nil, eris.New("remote: nil user state")
	}

	op := "updateUserState"
	if s.ID.Empty() {
		op = "createUserState"
	}

	input, err := toInput(s)
	if err != nil {
		return nil, err
	}

	root := graphql.F(op, graphql.F("userState", UserStateFields...)).
		WithArgs(map[string]any{"userStateData": input})
	req, err := graphql.Mutation(op, root)
	if err != nil {
		return nil, eris.Wrapf(err, "remote: build %s mutation", op)
	}

	var out map[string]struct {
		UserState *model.UserState `json:"userState"`
	}
	if err := u.client.Do(ctx, req, &out); err != nil {
		return nil, eris.Wrapf(err, "remote: %s", op)
	}
	saved := out[op].UserState
	if saved == nil {
		return nil, eris.Errorf("remote: %s returned no user state", op)
	}
	return saved, nil
}

// toInput converts s to a plain JSON object so the literal renderer sees
// the same shape the API returns.
func toInput(s *model.UserState) (map[string]any, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, eris.Wrap(err, "remote: encode user state")
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, eris.Wrap(err, "remote: encode user state")
	}
	return m, nil
}
