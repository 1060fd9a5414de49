// Package api exposes listings and user-state synchronization over HTTP.
package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/rescape/region-store/internal/model"
	"github.com/rescape/region-store/internal/paginate"
	"github.com/rescape/region-store/internal/scope"
	"github.com/rescape/region-store/pkg/graphql"
)

// Config wires the router to its backends.
type Config struct {
	Listings Listings
	Syncer   *scope.Syncer
	Identity IdentityFunc
	// CORSOrigins defaults to all origins.
	CORSOrigins []string
	// ForwardAuthorization runs backend queries with the caller's
	// Authorization token. A request without one runs anonymously, never
	// with the server's configured token.
	ForwardAuthorization bool
}

// NewRouter builds the HTTP handler.
func NewRouter(cfg Config) http.Handler {
	router := chi.NewRouter()

	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(requestLogger)

	identity := cfg.Identity
	allowedHeaders := []string{"Accept", "Content-Type", "X-Request-ID"}
	if identity == nil {
		identity = HeaderIdentity("X-User-ID")
		allowedHeaders = append(allowedHeaders, "X-User-ID")
	}
	if cfg.ForwardAuthorization {
		allowedHeaders = append(allowedHeaders, "Authorization")
	}

	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "PUT", "OPTIONS"},
		AllowedHeaders: allowedHeaders,
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))
	if cfg.ForwardAuthorization {
		router.Use(forwardAuthorization)
	}

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondOK(w, map[string]string{"status": "healthy"})
	})

	router.Route("/api", func(r chi.Router) {
		l := cfg.Listings
		if l.Regions != nil {
			r.Get("/regions", listHandler(l.Regions))
		}
		if l.Projects != nil {
			r.Get("/projects", listHandler(l.Projects))
		}
		if l.UserProjects != nil {
			r.Get("/user-projects", ownedListHandler(l.UserProjects, identity))
		}
		if l.Locations != nil {
			r.Get("/locations", listHandler(l.Locations))
		}
		if l.SearchLocations != nil {
			r.Get("/search-locations", listHandler(l.SearchLocations))
		}

		if cfg.Syncer != nil {
			h := &userStateHandler{syncer: cfg.Syncer, identity: identity}
			if l.Regions != nil {
				h.regions = RegionByID(l.Regions)
			}
			r.Get("/user-state", h.show)
			r.Put("/user-state/{scope}", h.upsert)
		}
	})

	return router
}

// RegionByID looks a region up through its listing. A missing region or a
// listing that is not ready yields nil.
func RegionByID(acc *paginate.Accumulator[model.Region]) func(ctx context.Context, id model.ID) (*model.Region, error) {
	return func(ctx context.Context, id model.ID) (*model.Region, error) {
		res, err := acc.Run(ctx, map[string]any{"id": id.String()}, 1, "")
		if err != nil {
			return nil, err
		}
		if res.NotReady || len(res.Objects) == 0 {
			return nil, nil
		}
		return &res.Objects[0], nil
	}
}

// forwardAuthorization puts the caller's token, possibly empty, on the
// request context for the graphql client.
func forwardAuthorization(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := graphql.WithRequestToken(r.Context(), authToken(r.Header.Get("Authorization")))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// authToken accepts "JWT <token>" and "Bearer <token>".
func authToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok {
		return ""
	}
	switch strings.ToLower(scheme) {
	case "jwt", "bearer":
		return strings.TrimSpace(token)
	}
	return ""
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		zap.L().Info("api: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", chimiddleware.GetReqID(r.Context())),
		)
	})
}
