// Package server exposes the catalog, plan validation, the LLM planner,
// and dataset coverage over HTTP.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/voltaicdata/voltaic/pkg/metrics"
)

type Server struct {
	log        *slog.Logger
	cfg        Config
	router     *chi.Mux
	httpSrv    *http.Server
	metricsSrv *http.Server
	limiter    *RateLimiter
}

func New(cfg Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	s := &Server{
		log:     cfg.Logger,
		cfg:     cfg,
		router:  chi.NewRouter(),
		limiter: NewRateLimiter(cfg.PlannerRate, cfg.PlannerBurst),
	}
	s.routes()

	s.httpSrv = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           s.router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		s.metricsSrv = &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		}
	}

	return s, nil
}

func (s *Server) routes() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(metrics.Middleware)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	s.router.Get("/healthz", s.handleHealthz)
	s.router.Get("/readyz", s.handleReadyz)
	s.router.Get("/version", s.handleVersion)

	s.router.Route("/api", func(api chi.Router) {
		api.Get("/datasets", s.handleDatasets)
		api.Get("/datasets/{datasetID}/metrics", s.handleDatasetMetrics)
		api.Post("/plans", s.handleBuildPlan)
		api.With(RateLimitMiddleware(s.limiter)).Post("/planner/plans", s.handlePlannerPlan)
		api.Get("/coverage", s.handleCoverage)
	})
}

// Run serves until ctx is cancelled, then shuts down gracefully. The API
// and metrics listeners run under one errgroup so a listener failure stops
// both.
func (s *Server) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.serve(ctx, s.httpSrv, "api")
	})
	if s.metricsSrv != nil {
		g.Go(func() error {
			return s.serve(ctx, s.metricsSrv, "metrics")
		})
	}
	return g.Wait()
}

func (s *Server) serve(ctx context.Context, srv *http.Server, name string) error {
	serveErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErrCh <- fmt.Errorf("failed to listen and serve: %w", err)
		}
	}()

	s.log.Info("http listening", "server", name, "address", srv.Addr)

	select {
	case <-ctx.Done():
		s.log.Info("stopping http server", "server", name, "reason", ctx.Err())
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shutdown %s server: %w", name, err)
		}
		s.log.Info("http server shutdown complete", "server", name)
		return nil
	case err := <-serveErrCh:
		s.log.Error("http server failed", "server", name, "error", err)
		return err
	}
}
