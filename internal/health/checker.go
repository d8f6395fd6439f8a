// Package health checks that the configured backends are reachable.
//
// Each backend gets a Checker that calls its health endpoint. The Manager
// runs all checkers in parallel with a per-check timeout and folds the
// results into one status:
//
//	manager := health.NewManager()
//	for _, c := range routes.Targets() {
//	    checker, _ := health.NewBackendChecker(c.Target())
//	    manager.AddChecker(checker)
//	}
//	report := manager.Run(ctx)
package health

import (
	"context"
	"time"
)

// Checker verifies one dependency.
type Checker interface {
	// Name returns the unique name of this health check, usually the
	// backend target name.
	Name() string

	// Check performs the health check. It must respect the context deadline.
	Check(ctx context.Context) *Result
}

// Status represents the health check status.
type Status string

const (
	// StatusHealthy indicates the backend answered its health endpoint.
	StatusHealthy Status = "healthy"

	// StatusDegraded indicates the backend answered but not with success,
	// for example a 404 from a gateway without a health route.
	StatusDegraded Status = "degraded"

	// StatusUnhealthy indicates the backend could not be reached or failed.
	StatusUnhealthy Status = "unhealthy"
)

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// Result represents the result of a health check.
type Result struct {
	Status  Status         `json:"status" yaml:"status"`
	Message string         `json:"message" yaml:"message"`
	Details map[string]any `json:"details,omitempty" yaml:"details,omitempty"`
	Latency time.Duration  `json:"latency" yaml:"latency"`
}

// NewResult creates a new health check result with the given status and message.
func NewResult(status Status, message string) *Result {
	return &Result{
		Status:  status,
		Message: message,
		Details: make(map[string]any),
	}
}

// WithDetail adds a detail to the result and returns the result for chaining.
func (r *Result) WithDetail(key string, value any) *Result {
	r.Details[key] = value
	return r
}

// WithLatency sets the latency and returns the result for chaining.
func (r *Result) WithLatency(latency time.Duration) *Result {
	r.Latency = latency
	return r
}

// Healthy creates a healthy result with the given message.
func Healthy(message string) *Result {
	return NewResult(StatusHealthy, message)
}

// Degraded creates a degraded result with the given message.
func Degraded(message string) *Result {
	return NewResult(StatusDegraded, message)
}

// Unhealthy creates an unhealthy result with the given message.
func Unhealthy(message string) *Result {
	return NewResult(StatusUnhealthy, message)
}
