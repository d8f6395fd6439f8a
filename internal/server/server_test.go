package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/felixgeelhaar/portal/internal/health"
)

func TestNewServerDefaults(t *testing.T) {
	s := NewServer(health.NewProbeManager("1.0.0"), Config{Address: ":5001"})

	if s.shutdownTimeout != 10*time.Second {
		t.Errorf("default shutdown timeout: expected 10s, got %v", s.shutdownTimeout)
	}
	if s.httpServer.ReadTimeout != 10*time.Second {
		t.Errorf("default read timeout: expected 10s, got %v", s.httpServer.ReadTimeout)
	}
	if s.httpServer.WriteTimeout != 10*time.Second {
		t.Errorf("default write timeout: expected 10s, got %v", s.httpServer.WriteTimeout)
	}
	if s.httpServer.IdleTimeout != 60*time.Second {
		t.Errorf("default idle timeout: expected 60s, got %v", s.httpServer.IdleTimeout)
	}
	if s.Addr() != ":5001" {
		t.Errorf("Addr before Listen: expected :5001, got %s", s.Addr())
	}
}

func TestHandleLiveness(t *testing.T) {
	tests := []struct {
		name           string
		method         string
		inShutdown     bool
		expectedStatus int
		expectedHealth health.Status
	}{
		{"GET request - normal operation", http.MethodGet, false, http.StatusOK, health.StatusHealthy},
		{"GET request - during shutdown", http.MethodGet, true, http.StatusOK, health.StatusDegraded},
		{"POST request - not allowed", http.MethodPost, false, http.StatusMethodNotAllowed, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pm := health.NewProbeManager("1.0.0")
			if tt.inShutdown {
				pm.MarkShutdown()
			}
			s := NewServer(pm, Config{})

			w := httptest.NewRecorder()
			s.handleLiveness(w, httptest.NewRequest(tt.method, "/health/live", nil))

			if w.Code != tt.expectedStatus {
				t.Errorf("status code: expected %d, got %d", tt.expectedStatus, w.Code)
			}
			if tt.method != http.MethodGet {
				return
			}

			var result health.ProbeResult
			if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if result.Status != tt.expectedHealth {
				t.Errorf("health status: expected %s, got %s", tt.expectedHealth, result.Status)
			}
		})
	}
}

func TestHandleReadiness(t *testing.T) {
	tests := []struct {
		name           string
		ready          bool
		inShutdown     bool
		expectedStatus int
	}{
		{"not started", false, false, http.StatusServiceUnavailable},
		{"ready", true, false, http.StatusOK},
		{"shutting down", true, true, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pm := health.NewProbeManager("1.0.0")
			if tt.ready {
				pm.MarkReady()
			}
			if tt.inShutdown {
				pm.MarkShutdown()
			}
			s := NewServer(pm, Config{})

			w := httptest.NewRecorder()
			s.handleReadiness(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

			if w.Code != tt.expectedStatus {
				t.Errorf("status code: expected %d, got %d", tt.expectedStatus, w.Code)
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("content type: expected application/json, got %s", ct)
			}
		})
	}
}

func TestHandlerIsMounted(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "backend:"+r.URL.Path)
	})
	s := NewServer(health.NewProbeManager("1.0.0"), Config{Handler: handler})

	w := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/auth/health", nil))

	if body := w.Body.String(); body != "backend:/api/auth/health" {
		t.Errorf("unexpected body %q", body)
	}
}

func TestStartAndShutdown(t *testing.T) {
	pm := health.NewProbeManager("1.0.0")
	s := NewServer(pm, Config{
		Name:            "identity",
		Address:         "127.0.0.1:0",
		ShutdownTimeout: time.Second,
	})
	if err := s.Listen(); err != nil {
		t.Fatalf("listen: %v", err)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- s.Start() }()

	url := "http://" + s.Addr() + "/health/ready"
	deadline := time.Now().Add(2 * time.Second)
	for {
		resp, err := http.Get(url)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				break
			}
		}
		if time.Now().After(deadline) {
			t.Fatalf("server never became ready: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	if err := s.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if !s.IsShuttingDown() {
		t.Error("expected server to report shutting down")
	}

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			t.Errorf("Start returned %v, want http.ErrServerClosed", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after shutdown")
	}
}

func TestListenError(t *testing.T) {
	first := NewServer(health.NewProbeManager("1.0.0"), Config{Address: "127.0.0.1:0"})
	if err := first.Listen(); err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer func() { _ = first.listener.Close() }()

	second := NewServer(health.NewProbeManager("1.0.0"), Config{Name: "profile", Address: first.Addr()})
	if err := second.Listen(); err == nil {
		t.Error("expected an error binding an address in use")
	}
}
