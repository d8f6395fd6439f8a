package health

import (
	"context"
	"sync/atomic"
	"time"
)

// ProbeManager backs the liveness and readiness routes of the local
// development backend.
type ProbeManager struct {
	*Manager

	startTime  time.Time
	ready      atomic.Bool
	inShutdown atomic.Bool
	version    string
}

// ProbeResult is the JSON body of a probe route.
type ProbeResult struct {
	Status    Status             `json:"status"`
	Version   string             `json:"version,omitempty"`
	Uptime    string             `json:"uptime,omitempty"`
	Checks    map[string]*Result `json:"checks,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
}

// NewProbeManager creates a probe manager reporting version.
func NewProbeManager(version string) *ProbeManager {
	return &ProbeManager{
		Manager:   NewManager(),
		startTime: time.Now(),
		version:   version,
	}
}

// MarkReady lets readiness pass once the server is listening.
func (pm *ProbeManager) MarkReady() {
	pm.ready.Store(true)
}

// MarkShutdown makes readiness fail while connections drain.
func (pm *ProbeManager) MarkShutdown() {
	pm.inShutdown.Store(true)
}

// IsShuttingDown returns whether MarkShutdown was called.
func (pm *ProbeManager) IsShuttingDown() bool {
	return pm.inShutdown.Load()
}

// Uptime returns how long the manager has existed.
func (pm *ProbeManager) Uptime() time.Duration {
	return time.Since(pm.startTime)
}

// CheckLiveness reports that the process responds. It runs no checkers.
func (pm *ProbeManager) CheckLiveness(ctx context.Context) *ProbeResult {
	status := StatusHealthy
	if pm.IsShuttingDown() {
		status = StatusDegraded
	}
	return pm.result(status, nil)
}

// CheckReadiness is unhealthy before MarkReady and after MarkShutdown;
// otherwise it aggregates the registered checkers.
func (pm *ProbeManager) CheckReadiness(ctx context.Context) *ProbeResult {
	if !pm.ready.Load() || pm.IsShuttingDown() {
		return pm.result(StatusUnhealthy, nil)
	}

	checks := pm.Manager.Check(ctx)
	return pm.result(OverallStatus(checks), checks)
}

func (pm *ProbeManager) result(status Status, checks map[string]*Result) *ProbeResult {
	return &ProbeResult{
		Status:    status,
		Version:   pm.version,
		Uptime:    pm.Uptime().Round(time.Second).String(),
		Checks:    checks,
		Timestamp: time.Now(),
	}
}
