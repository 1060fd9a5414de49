package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"

	"github.com/rescape/region-store/internal/boundary"
	"github.com/rescape/region-store/internal/model"
	"github.com/rescape/region-store/internal/scope"
)

// IdentityFunc resolves the user a request acts for. An unresolved
// identity with a nil error means the user is not known yet.
type IdentityFunc func(r *http.Request) (scope.Identity, error)

// HeaderIdentity reads the user id from a request header.
func HeaderIdentity(header string) IdentityFunc {
	return func(r *http.Request) (scope.Identity, error) {
		return scope.Identity{UserID: model.ID(r.Header.Get(header))}, nil
	}
}

// ContextIdentity adapts a resolver that needs only the request context,
// such as remote.UserStates.ResolveIdentity.
func ContextIdentity(fn func(ctx context.Context) (scope.Identity, error)) IdentityFunc {
	return func(r *http.Request) (scope.Identity, error) {
		return fn(r.Context())
	}
}

// upsertBody is the PUT /user-state/{scope} payload. Association carries
// the entity reference under the scope's entity key, e.g.
// {"region": {"id": 10}, "activity": {"isActive": true}}.
type upsertBody struct {
	Association map[string]any   `json:"association"`
	Local       *model.UserState `json:"local,omitempty"`
}

type userStateHandler struct {
	syncer   *scope.Syncer
	identity IdentityFunc
	regions  func(ctx context.Context, id model.ID) (*model.Region, error)
}

func (h *userStateHandler) show(w http.ResponseWriter, r *http.Request) {
	id, err := h.identity(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	out, err := h.syncer.Upsert(r.Context(), scope.UpsertRequest{Identity: id})
	if err != nil {
		respondError(w, r, err)
		return
	}
	if out.Skipped {
		respondLoading(w)
		return
	}
	respondOK(w, out.UserState)
}

func (h *userStateHandler) upsert(w http.ResponseWriter, r *http.Request) {
	sc, ok := model.ScopeByName(chi.URLParam(r, "scope"))
	if !ok {
		respondError(w, r, badRequest{msg: "unknown scope " + chi.URLParam(r, "scope")})
		return
	}

	var body upsertBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, r, badRequest{msg: "invalid request body"})
		return
	}
	if body.Association == nil {
		respondError(w, r, badRequest{msg: "association is required"})
		return
	}
	sub := model.DecodeAssociation(sc.EntityKey, body.Association)

	id, err := h.identity(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if !id.Resolved() {
		respondLoading(w)
		return
	}

	if sc.Name == model.ScopeRegions.Name && r.URL.Query().Get("seedViewport") == "true" && h.regions != nil {
		seeded, err := h.seedViewport(r.Context(), sub)
		if err != nil {
			respondError(w, r, err)
			return
		}
		sub = seeded
	}

	out, err := h.syncer.Upsert(r.Context(), scope.UpsertRequest{
		Identity:  id,
		Scope:     sc,
		Local:     body.Local,
		Submitted: &sub,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	if out.Skipped {
		respondLoading(w)
		return
	}
	respondOK(w, out.UserState)
}

func (h *userStateHandler) seedViewport(ctx context.Context, a model.Association) (model.Association, error) {
	regionID, ok := a.EntityID()
	if !ok {
		// Left for the merge to reject.
		return a, nil
	}
	region, err := h.regions(ctx, regionID)
	if err != nil {
		return a, eris.Wrapf(err, "api: load region %s", regionID)
	}
	if region == nil {
		return a, nil
	}
	seeded, _, err := boundary.SeedViewport(a, *region)
	if err != nil {
		return a, err
	}
	return seeded, nil
}
