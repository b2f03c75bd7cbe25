// Package server wires the HTTP routes and runs the listener.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mohammed-shakir/geopin/internal/core/config"
	"github.com/mohammed-shakir/geopin/internal/core/health"
	middleware "github.com/mohammed-shakir/geopin/internal/core/middleware"
	"github.com/mohammed-shakir/geopin/internal/core/router"
)

type Deps struct {
	Encoder router.Encoder
	// Ready reports enrichment consumer readiness; nil when disabled.
	Ready  health.ReadinessReporter
	Checks []health.Check
	// Metrics serves /metrics; nil leaves the route unmounted.
	Metrics http.Handler
}

// Routes builds the HTTP handler tree.
func Routes(cfg config.Config, logger *slog.Logger, d Deps) http.Handler {
	defaults := router.Defaults{CodeLength: cfg.PlusCodeLength, H3Res: cfg.H3Res}

	r := chi.NewRouter()
	r.Use(middleware.Recover(logger))
	r.Use(middleware.Logging(logger))
	r.Use(middleware.CORS())

	r.Get("/healthz", health.Liveness())
	r.Get("/readyz", health.Readiness(d.Ready, cfg.CacheOpTimeout*4, d.Checks...))
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Get("/encode", router.HandleEncode(logger, defaults, d.Encoder))
		r.Post("/encode/batch", router.HandleEncodeBatch(logger, defaults, d.Encoder))
		r.Get("/digipin/cell", router.HandleDigipinCell())
		r.Get("/schemes", router.HandleSchemes(d.Encoder))
	})
	return r
}

// Run serves until ctx is canceled, then shuts down gracefully.
func Run(ctx context.Context, cfg config.Config, logger *slog.Logger, d Deps) error {
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           Routes(cfg, logger, d),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listen", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
