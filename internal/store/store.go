// Package store serves region listings and user-state aggregates from a SQL
// database, as an alternative to the GraphQL backend.
package store

import (
	"context"

	"github.com/rescape/region-store/internal/model"
	"github.com/rescape/region-store/internal/paginate"
	"github.com/rescape/region-store/internal/scope"
)

// Store is a SQL backend for listings and user state.
type Store interface {
	scope.AggregateClient

	Regions() paginate.Source[model.Region]
	Projects() paginate.Source[model.Project]
	Locations() paginate.Source[model.Location]
	SearchLocations() paginate.Source[model.SearchLocation]

	// SaveRegions inserts or updates regions by key.
	SaveRegions(ctx context.Context, regions []model.Region) (int64, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
