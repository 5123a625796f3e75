// Package server assembles the HTTP surface: routes, middleware and the
// Prometheus endpoint.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/johnwards/stagetrack/internal/api"
	"github.com/johnwards/stagetrack/internal/api/admin"
	"github.com/johnwards/stagetrack/internal/api/migrations"
	"github.com/johnwards/stagetrack/internal/api/records"
	"github.com/johnwards/stagetrack/internal/config"
	"github.com/johnwards/stagetrack/internal/migration"
	"github.com/johnwards/stagetrack/internal/store"
)

const shutdownTimeout = 10 * time.Second

// Handler returns the full HTTP handler. gatherer backs /metrics.
func Handler(cfg config.Config, s *store.Store, engine *migration.Engine, gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()

	records.RegisterRoutes(mux, s, engine, cfg.CancelledRetention)
	migrations.RegisterRoutes(mux, s, engine)
	admin.RegisterRoutes(mux, s)
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	// Catch-all: return 404 in the standard error envelope.
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		api.WriteError(w, http.StatusNotFound, api.NewNotFoundError(
			fmt.Sprintf("No route found for %s %s", r.Method, r.URL.Path),
			api.CorrelationID(r.Context()),
		))
	})

	return api.Chain(mux,
		api.Recovery(),
		api.RequestID(),
		api.Auth(cfg.AuthToken),
		api.Actor(),
		api.JSONContentType(),
		api.Logging(),
	)
}

// Run serves srv until ctx is cancelled, then shuts it down gracefully.
func Run(ctx context.Context, srv *http.Server) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("starting stagetrack server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}
