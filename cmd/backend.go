package main

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/rescape/region-store/internal/api"
	"github.com/rescape/region-store/internal/config"
	"github.com/rescape/region-store/internal/model"
	"github.com/rescape/region-store/internal/paginate"
	"github.com/rescape/region-store/internal/remote"
	"github.com/rescape/region-store/internal/resilience"
	"github.com/rescape/region-store/internal/scope"
	"github.com/rescape/region-store/internal/store"
	"github.com/rescape/region-store/pkg/graphql"
)

// Listing names, as used for pagination.page_sizes overrides.
const (
	listingRegions         = "regions"
	listingProjects        = "projects"
	listingUserProjects    = "user_projects"
	listingLocations       = "locations"
	listingSearchLocations = "search_locations"
)

// backend bundles whatever the configured driver serves.
type backend struct {
	listings   api.Listings
	aggregates scope.AggregateClient
	// identity resolves the calling user from the backend itself. Only the
	// graphql driver knows who is calling.
	identity func(ctx context.Context) (scope.Identity, error)
	// store is nil for the graphql driver.
	store store.Store
}

func (b *backend) Close() error {
	if b.store != nil {
		return b.store.Close()
	}
	return nil
}

func openBackend(ctx context.Context) (*backend, error) {
	if cfg.Store.Driver == "graphql" {
		client := newGraphQLClient(cfg.GraphQL)
		users := remote.NewUserStates(client)
		return &backend{
			listings: newListings(
				remote.NewRegions(client),
				remote.NewProjects(client),
				remote.NewUserProjects(client),
				remote.NewLocations(client),
				remote.NewSearchLocations(client),
				cfg.Pagination,
			),
			aggregates: users,
			identity:   users.ResolveIdentity,
		}, nil
	}

	st, err := openStore(ctx)
	if err != nil {
		return nil, err
	}
	return &backend{
		listings: newListings(
			st.Regions(),
			st.Projects(),
			paginate.RequireFilter(st.Projects(), "user"),
			st.Locations(),
			st.SearchLocations(),
			cfg.Pagination,
		),
		aggregates: st,
		store:      st,
	}, nil
}

func openStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	case "sqlite":
		return store.NewSQLite(cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("store driver %q has no database; use postgres or sqlite", cfg.Store.Driver)
	}
}

func newGraphQLClient(c config.GraphQLConfig) graphql.Client {
	opts := []graphql.Option{
		graphql.WithRateLimit(c.RateLimit),
		graphql.WithRetry(resilience.RetryConfig{
			MaxAttempts:    c.Retry.MaxAttempts,
			InitialBackoff: time.Duration(c.Retry.InitialBackoffMs) * time.Millisecond,
			MaxBackoff:     time.Duration(c.Retry.MaxBackoffMs) * time.Millisecond,
			Jitter:         c.Retry.Jitter,
		}),
	}
	if c.Token != "" {
		opts = append(opts, graphql.WithToken(c.Token))
	}
	if c.TimeoutSecs > 0 {
		opts = append(opts, graphql.WithHTTPClient(&http.Client{
			Timeout: time.Duration(c.TimeoutSecs) * time.Second,
		}))
	}
	return graphql.NewClient(c.URL, opts...)
}

func newListings(
	regions paginate.Source[model.Region],
	projects paginate.Source[model.Project],
	userProjects paginate.Source[model.Project],
	locations paginate.Source[model.Location],
	searchLocations paginate.Source[model.SearchLocation],
	p config.PaginationConfig,
) api.Listings {
	return api.Listings{
		Regions:         newAccumulator(listingRegions, regions, p),
		Projects:        newAccumulator(listingProjects, projects, p),
		UserProjects:    newAccumulator(listingUserProjects, userProjects, p),
		Locations:       newAccumulator(listingLocations, locations, p),
		SearchLocations: newAccumulator(listingSearchLocations, searchLocations, p),
	}
}

func newAccumulator[T any](name string, src paginate.Source[T], p config.PaginationConfig) *paginate.Accumulator[T] {
	return paginate.NewAccumulator(paginate.NewPageFetcher(name, src), paginate.Config{
		PageSize:    p.PageSizeFor(name),
		Concurrency: p.Concurrency,
		MaxPages:    p.MaxPages,
	})
}

// resolveIdentity prefers an explicit user id, then the backend's own
// notion of the calling user. An unresolved identity is not an error.
func resolveIdentity(ctx context.Context, b *backend, userID string) (scope.Identity, error) {
	if userID != "" {
		return scope.Identity{UserID: model.ID(userID)}, nil
	}
	if b.identity != nil {
		return b.identity(ctx)
	}
	return scope.Identity{}, nil
}
