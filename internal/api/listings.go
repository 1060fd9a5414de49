package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/rescape/region-store/internal/model"
	"github.com/rescape/region-store/internal/paginate"
)

// Listings are the accumulators behind the list endpoints. Nil entries are
// not routed. UserProjects is not ready until its filter names a user.
type Listings struct {
	Regions         *paginate.Accumulator[model.Region]
	Projects        *paginate.Accumulator[model.Project]
	UserProjects    *paginate.Accumulator[model.Project]
	Locations       *paginate.Accumulator[model.Location]
	SearchLocations *paginate.Accumulator[model.SearchLocation]
}

// listParams reads ?filter={json}&pageSize=n&orderBy=field.
func listParams(r *http.Request) (map[string]any, int, string, error) {
	q := r.URL.Query()

	var filter map[string]any
	if raw := q.Get("filter"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &filter); err != nil {
			return nil, 0, "", badRequest{msg: "filter must be a JSON object"}
		}
	}

	pageSize := 0
	if raw := q.Get("pageSize"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return nil, 0, "", badRequest{msg: "pageSize must be a positive integer"}
		}
		pageSize = n
	}

	return filter, pageSize, q.Get("orderBy"), nil
}

// listHandler accumulates every page of a listing into one response.
func listHandler[T any](acc *paginate.Accumulator[T]) http.HandlerFunc {
	return ownedListHandler(acc, nil)
}

// ownedListHandler is listHandler for listings filtered by owner. A filter
// without a user is scoped to the caller when identity resolves one.
func ownedListHandler[T any](acc *paginate.Accumulator[T], identity IdentityFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter, pageSize, orderBy, err := listParams(r)
		if err != nil {
			respondError(w, r, err)
			return
		}
		if _, ok := filter["user"]; !ok && identity != nil {
			id, err := identity(r)
			if err != nil {
				respondError(w, r, err)
				return
			}
			if id.Resolved() {
				if filter == nil {
					filter = map[string]any{}
				}
				filter["user"] = map[string]any{"id": id.UserID.String()}
			}
		}

		res, err := acc.Run(r.Context(), filter, pageSize, orderBy)
		if err != nil {
			respondError(w, r, err)
			return
		}
		if res.NotReady {
			respondLoading(w)
			return
		}
		respondOK(w, res.Envelope)
	}
}
