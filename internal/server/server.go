// Package server provides the optional ops HTTP endpoint for the Wodehouse
// daemons: health and readiness probes, a JSON status snapshot, and the
// Prometheus scrape endpoint. The endpoint is auxiliary; daemons run without
// it when no listen address is configured.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Badkarmaink/wodehouse/internal/health"
	"github.com/Badkarmaink/wodehouse/internal/observe"
)

// StatsFunc returns a point-in-time snapshot of pipeline statistics. The
// snapshot is serialised as the /statusz response body.
type StatsFunc func() any

// Server wraps an [http.Server] exposing /healthz, /readyz, /statusz and
// /metrics. Construct with [New], call [Server.Start] once, and shut down
// with [Server.Stop].
type Server struct {
	srv *http.Server
}

// New builds the ops server on addr. The health handler serves the probe
// routes, stats feeds /statusz, and /metrics serves Prometheus text format.
// All routes are wrapped with HTTP observability.
func New(addr string, m *observe.Metrics, checks *health.Handler, stats StatsFunc) *Server {
	mux := http.NewServeMux()
	checks.Register(mux)
	mux.HandleFunc("GET /statusz", func(w http.ResponseWriter, _ *http.Request) {
		var snapshot any = struct{}{}
		if stats != nil {
			snapshot = stats()
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		if err := json.NewEncoder(w).Encode(snapshot); err != nil {
			http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
		}
	})
	mux.Handle("GET /metrics", promhttp.Handler())

	return &Server{
		srv: &http.Server{
			Addr:         addr,
			Handler:      observe.Instrument(m, mux),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// Start begins serving in a background goroutine. Listen errors other than a
// clean shutdown are logged, not returned.
func (s *Server) Start() {
	slog.Info("ops server listening", "addr", s.srv.Addr)
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("ops server failed", "error", err)
		}
	}()
}

// Stop gracefully shuts the server down, waiting for in-flight requests
// until ctx expires.
func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
