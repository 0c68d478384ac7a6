// Package server owns the HTTP server's lifecycle: binding the chi
// router built by internal/api, and graceful start/shutdown (spec
// §4.5, §4.9).
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/relaydocs/pagesync/internal/api"
	"github.com/relaydocs/pagesync/internal/config"
	"github.com/relaydocs/pagesync/internal/jobs"
	"github.com/relaydocs/pagesync/internal/logging"
	"github.com/relaydocs/pagesync/internal/metrics"
	"github.com/relaydocs/pagesync/internal/upload"
	"github.com/relaydocs/pagesync/internal/workspace"
)

// Config holds HTTP server configuration.
type Config struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DefaultConfig returns default HTTP server configuration.
func DefaultConfig() Config {
	return Config{
		Addr:         "127.0.0.1:3004",
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// Server wraps the HTTP server and the background job sweeper.
type Server struct {
	config      Config
	registry    *jobs.Registry
	store       *jobs.Store // optional; nil disables persistence
	http        *http.Server
	metricsHTTP *http.Server // optional; nil when metrics ride on the main router
}

// New builds a Server wiring client, orchestrator, registry, store, and
// cfg into a chi router (api.NewRouter), matching the teacher's
// NewServer shape but assembled from pagesync's own components instead
// of a *sql.DB. When cfg's MetricsAddr differs from httpCfg.Addr, a
// second listener is set up serving only /metrics (spec §6.3,
// "METRICS_ADDR ... defaults to the main LISTEN_ADDR"); otherwise the
// main router's own /metrics route (internal/api.NewRouter) is enough.
func New(client *workspace.Client, orchestrator *upload.Orchestrator, registry *jobs.Registry, store *jobs.Store, cfg *config.Snapshot, httpCfg Config) *Server {
	router := api.NewRouter(client, orchestrator, registry, store, cfg)

	httpServer := &http.Server{
		Addr:         httpCfg.Addr,
		Handler:      router,
		ReadTimeout:  httpCfg.ReadTimeout,
		WriteTimeout: httpCfg.WriteTimeout,
		IdleTimeout:  httpCfg.IdleTimeout,
	}

	srv := &Server{
		config:   httpCfg,
		registry: registry,
		store:    store,
		http:     httpServer,
	}

	if metricsAddr := cfg.Get().MetricsAddr; metricsAddr != "" && metricsAddr != httpCfg.Addr {
		srv.metricsHTTP = &http.Server{Addr: metricsAddr, Handler: metrics.Handler()}
	}

	return srv
}

// Start starts the HTTP server, the optional standalone metrics
// listener, the job registry's sweeper, and blocks until the main
// server stops or errors.
func (s *Server) Start(_ context.Context) error {
	s.registry.StartSweeper(time.Minute)

	if s.metricsHTTP != nil {
		go func() {
			logging.L().Info().Str("addr", s.metricsHTTP.Addr).Msg("metrics_server_starting")
			if err := s.metricsHTTP.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logging.L().Error().Err(err).Msg("metrics_server_failed")
			}
		}()
	}

	logging.L().Info().Str("addr", s.http.Addr).Msg("server_starting")
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully drains the HTTP server and any standalone
// metrics listener, stops the job sweeper, and closes the job record
// store if one was configured.
func (s *Server) Shutdown(ctx context.Context) error {
	logging.L().Info().Msg("server_shutting_down")
	s.registry.Stop()

	if s.metricsHTTP != nil {
		if err := s.metricsHTTP.Shutdown(ctx); err != nil {
			return fmt.Errorf("metrics server shutdown error: %w", err)
		}
	}

	if err := s.http.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	if s.store != nil {
		if err := s.store.Close(); err != nil {
			return fmt.Errorf("job store close error: %w", err)
		}
	}

	logging.L().Info().Msg("server_shutdown_complete")
	return nil
}
