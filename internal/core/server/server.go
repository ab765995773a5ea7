package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mohammed-shakir/campus-buildings/internal/core/config"
	"github.com/mohammed-shakir/campus-buildings/internal/core/health"
	middleware "github.com/mohammed-shakir/campus-buildings/internal/core/middleware"
	"github.com/mohammed-shakir/campus-buildings/internal/core/router"
)

type Deps struct {
	Buildings router.BuildingSource
	Ready     health.ReadinessProbe
	Version   string
	Started   time.Time
}

// NewRouter wires every public route.
func NewRouter(cfg config.Config, logger *slog.Logger, d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recover(logger))
	r.Use(middleware.Logging(logger))
	r.Use(middleware.CORS())

	started := d.Started
	if started.IsZero() {
		started = time.Now()
	}
	r.Get("/healthz", health.Liveness(d.Version, started))
	r.Get("/readyz", health.Readiness(d.Ready, cfg.Cache.OpTimeout))
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	rebuild := r.With(middleware.NoWriteDeadline())
	rebuild.Get(router.RouteBuildingList, router.HandleBuildingList(logger, d.Buildings))
	rebuild.Get(router.RouteBuildingList+"/", router.HandleBuildingList(logger, d.Buildings))
	rebuild.Get(router.RouteLocate, router.HandleLocate(logger, cfg.Locate, d.Buildings))
	return r
}

// sets up http and starts serving
func Run(ctx context.Context, cfg config.Config, logger *slog.Logger, d Deps) error {
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           NewRouter(cfg, logger, d),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second, // lifted per route by NoWriteDeadline
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
