// Package server runs the HTTP servers of the local development backend.
//
// Each server hosts one backend surface next to liveness and readiness
// routes and shuts down gracefully: readiness fails first, keep-alives are
// disabled and in-flight requests drain up to ShutdownTimeout.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/felixgeelhaar/portal/internal/health"
	"github.com/felixgeelhaar/portal/internal/log"
)

// Server hosts a handler with probe routes.
type Server struct {
	name            string
	httpServer      *http.Server
	probeManager    *health.ProbeManager
	shutdownTimeout time.Duration
	logger          *log.Logger

	mu       sync.Mutex
	listener net.Listener
}

// Config holds server configuration.
type Config struct {
	// Name identifies the server in logs, e.g. "identity".
	Name string

	// Address is the listen address (e.g., ":5001", "127.0.0.1:0")
	Address string

	// Handler serves every route except the probes.
	Handler http.Handler

	// ShutdownTimeout is the maximum time to wait for connections to drain during shutdown.
	// Defaults to 10 seconds if not specified.
	ShutdownTimeout time.Duration

	// ReadTimeout is the maximum duration for reading the entire request.
	// Defaults to 10 seconds if not specified.
	ReadTimeout time.Duration

	// WriteTimeout is the maximum duration before timing out writes of the response.
	// Defaults to 10 seconds if not specified.
	WriteTimeout time.Duration

	// IdleTimeout is the maximum amount of time to wait for the next request.
	// Defaults to 60 seconds if not specified.
	IdleTimeout time.Duration

	Logger *log.Logger
}

// NewServer creates a server. probeManager may be shared between servers.
func NewServer(probeManager *health.ProbeManager, cfg Config) *Server {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 60 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Discard()
	}
	if cfg.Handler == nil {
		cfg.Handler = http.NotFoundHandler()
	}

	s := &Server{
		name:            cfg.Name,
		probeManager:    probeManager,
		shutdownTimeout: cfg.ShutdownTimeout,
		logger:          cfg.Logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", s.handleLiveness)
	mux.HandleFunc("/health/ready", s.handleReadiness)
	mux.Handle("/", cfg.Handler)

	s.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      mux,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

// Listen binds the listen address. Addr is valid afterwards.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("%s: listen on %s: %w", s.name, s.httpServer.Addr, err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	return nil
}

// Addr returns the bound address, or the configured one before Listen.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.httpServer.Addr
}

// Start serves until the server is shut down, binding first if Listen was
// not called. Returns http.ErrServerClosed after a graceful shutdown.
func (s *Server) Start() error {
	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()
	if ln == nil {
		if err := s.Listen(); err != nil {
			return err
		}
		s.mu.Lock()
		ln = s.listener
		s.mu.Unlock()
	}

	s.probeManager.MarkReady()
	s.logger.Info("server listening", "server", s.name, "addr", ln.Addr().String())
	return s.httpServer.Serve(ln)
}

// Shutdown performs graceful shutdown of the HTTP server.
//
// It:
//  1. Marks the probes as shutting down (readiness fails)
//  2. Disables HTTP keep-alives to stop accepting new requests
//  3. Waits for existing connections to drain (up to ShutdownTimeout)
func (s *Server) Shutdown(ctx context.Context) error {
	s.probeManager.MarkShutdown()
	s.httpServer.SetKeepAlivesEnabled(false)

	shutdownCtx, cancel := context.WithTimeout(ctx, s.shutdownTimeout)
	defer cancel()

	s.logger.Info("server shutting down", "server", s.name)
	return s.httpServer.Shutdown(shutdownCtx)
}

// IsShuttingDown returns whether the server is shutting down.
func (s *Server) IsShuttingDown() bool {
	return s.probeManager.IsShuttingDown()
}

func (s *Server) writeProbeResponse(w http.ResponseWriter, result *health.ProbeResult, unhealthyStatus int) {
	w.Header().Set("Content-Type", "application/json")

	if result.Status == health.StatusUnhealthy {
		w.WriteHeader(unhealthyStatus)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	if err := json.NewEncoder(w).Encode(result); err != nil {
		s.logger.WithError(err).Warn("failed to encode probe response")
	}
}

// handleLiveness handles GET /health/live. It answers 200 even while
// shutting down.
func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	result := s.probeManager.CheckLiveness(r.Context())
	s.writeProbeResponse(w, result, http.StatusOK)
}

// handleReadiness handles GET /health/ready.
//
// Returns:
//   - 200 OK with JSON: ready to serve requests
//   - 503 Service Unavailable with JSON: not started yet, shutting down or a checker is unhealthy
func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	result := s.probeManager.CheckReadiness(r.Context())
	s.writeProbeResponse(w, result, http.StatusServiceUnavailable)
}
