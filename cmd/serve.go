package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rescape/region-store/internal/api"
	"github.com/rescape/region-store/internal/scope"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve listings and user state over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		b, err := openBackend(ctx)
		if err != nil {
			return err
		}
		defer b.Close()

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", serverPort()),
			Handler:           newHandler(b),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				zap.L().Warn("server shutdown", zap.Error(err))
			}
		}()

		zap.L().Info("starting server",
			zap.String("addr", srv.Addr),
			zap.String("driver", cfg.Store.Driver),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func serverPort() int {
	if servePort != 0 {
		return servePort
	}
	return cfg.Server.Port
}

// newHandler wires the API to the backend. The graphql driver resolves the
// calling user from the caller's own token; SQL drivers trust the X-User-ID
// header.
func newHandler(b *backend) http.Handler {
	apiCfg := api.Config{
		Listings:    b.listings,
		Syncer:      scope.NewSyncer(b.aggregates),
		CORSOrigins: cfg.Server.CORSOrigins,
	}
	if b.identity != nil {
		apiCfg.Identity = api.ContextIdentity(b.identity)
		apiCfg.ForwardAuthorization = true
	}
	return api.NewRouter(apiCfg)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
