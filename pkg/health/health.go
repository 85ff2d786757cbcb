// Package health exposes HTTP liveness and readiness probes backed by a
// lifecycle.Handle, so an orchestrator can tell whether this process is
// alive and whether it currently holds a usable credential.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/soulkyu/leasekeeper/pkg/lifecycle"
)

// Server provides /healthz and /ready endpoints for Kubernetes-style probes.
type Server struct {
	server *http.Server
	logger *slog.Logger
	handle *lifecycle.Handle
}

// NewServer creates a new health server instance.
func NewServer(addr string, handle *lifecycle.Handle, logger *slog.Logger) *Server {
	return &Server{
		server: &http.Server{
			Addr:         addr,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 5 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
		handle: handle,
	}
}

// Start starts the health server in the background.
func (s *Server) Start() {
	s.server.Handler = s.handler()
	s.logger.Info("starting health server", "address", s.server.Addr)

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("health server error", "error", err)
		}
	}()
}

// Stop gracefully shuts down the health server.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("stopping health server")
	return s.server.Shutdown(ctx)
}

func (s *Server) handler() http.Handler {
	mux := http.NewServeMux()

	// Liveness probe - always returns 200 if the process is alive.
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})

	// Readiness probe - 200 only once a credential has been published.
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		if _, ok := s.handle.Current(); ok {
			w.WriteHeader(http.StatusOK)
			fmt.Fprint(w, "ready")
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, "not ready (no credential acquired yet)")
	})

	mux.HandleFunc("/info", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		current, ok := s.handle.Current()
		info := map[string]interface{}{"acquired": ok}
		if ok {
			info["renewable"] = current.Renewable
			info["lease_duration_seconds"] = current.LeaseDurationSeconds
		}
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(info)
	})

	return mux
}
