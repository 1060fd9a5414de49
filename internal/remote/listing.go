// Package remote implements listings and user-state access on top of the
// region GraphQL API.
package remote

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/rescape/region-store/internal/model"
	"github.com/rescape/region-store/internal/paginate"
	"github.com/rescape/region-store/pkg/graphql"
)

// Listing queries one paginated GraphQL type, e.g. regionsPaginated.
type Listing[T any] struct {
	client   graphql.Client
	typeName string
	fields   []graphql.Field
	requires []string
}

// NewListing returns a listing for typeName ("regions" queries
// regionsPaginated). Each key in requires must be present and non-null in
// the filter, otherwise Page reports paginate.ErrNotReady.
func NewListing[T any](client graphql.Client, typeName string, fields []graphql.Field, requires ...string) *Listing[T] {
	return &Listing[T]{
		client:   client,
		typeName: typeName,
		fields:   fields,
		requires: requires,
	}
}

// NewRegions lists regions.
func NewRegions(client graphql.Client) *Listing[model.Region] {
	return NewListing[model.Region](client, "regions", RegionFields)
}

// NewProjects lists projects.
func NewProjects(client graphql.Client) *Listing[model.Project] {
	return NewListing[model.Project](client, "projects", ProjectFields)
}

// NewUserProjects lists the projects of the user in filter["user"]; it is
// not ready until the user is known.
func NewUserProjects(client graphql.Client) *Listing[model.Project] {
	return NewListing[model.Project](client, "projects", ProjectFields, "user")
}

// NewLocations lists locations.
func NewLocations(client graphql.Client) *Listing[model.Location] {
	return NewListing[model.Location](client, "locations", LocationFields)
}

// NewSearchLocations lists saved search locations.
func NewSearchLocations(client graphql.Client) *Listing[model.SearchLocation] {
	return NewListing[model.SearchLocation](client, "searchLocations", SearchLocationFields)
}

func (l *Listing[T]) queryName() string { return l.typeName + "Paginated" }

// Page implements paginate.Source.
func (l *Listing[T]) Page(ctx context.Context, q paginate.Query) (paginate.Envelope[T], error) {
	for _, key := range l.requires {
		if v, ok := q.Filter[key]; !ok || v == nil {
			zap.L().Debug("remote: listing waiting on filter",
				zap.String("type", l.typeName),
				zap.String("key", key),
			)
			return paginate.Envelope[T]{}, paginate.ErrNotReady
		}
	}

	args := map[string]any{
		"page":     q.Page,
		"pageSize": q.PageSize,
		"orderBy":  q.OrderBy,
	}
	if len(q.Filter) > 0 {
		args["objects"] = q.Filter
	}

	fields := append(append([]graphql.Field(nil), pageFields...), graphql.F("objects", l.fields...))
	req, err := graphql.Query(l.queryName(), graphql.F(l.queryName(), fields...).WithArgs(args))
	if err != nil {
		return paginate.Envelope[T]{}, eris.Wrapf(err, "remote: build %s query", l.typeName)
	}

	var out map[string]json.RawMessage
	if err := l.client.Do(ctx, req, &out); err != nil {
		return paginate.Envelope[T]{}, eris.Wrapf(err, "remote: query %s", l.queryName())
	}

	raw, ok := out[l.queryName()]
	if !ok || string(raw) == "null" {
		return paginate.Envelope[T]{}, eris.Errorf("remote: %s missing from response", l.queryName())
	}

	var env paginate.Envelope[T]
	if err := json.Unmarshal(raw, &env); err != nil {
		return paginate.Envelope[T]{}, eris.Wrapf(err, "remote: decode %s", l.queryName())
	}
	return env, nil
}
