package health

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/felixgeelhaar/portal/internal/errors"
	"github.com/felixgeelhaar/portal/internal/transport"
)

// DefaultHealthPath is appended to a target origin to reach its health route.
const DefaultHealthPath = "/health"

// BackendChecker calls GET <origin>/health on one backend. It uses its own
// credential-free client so a health check can never touch the session.
type BackendChecker struct {
	name   string
	client *transport.Client
	path   string
}

// healthBody is the {"status": "ok", "service": "..."} shape backends return.
type healthBody struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

// NewBackendChecker creates a checker for target. The target's credential
// policy is ignored.
func NewBackendChecker(target transport.Target, opts ...transport.Option) (*BackendChecker, error) {
	target.Policy = transport.PolicyNone
	client, err := transport.NewClient(target, nil, opts...)
	if err != nil {
		return nil, err
	}
	return &BackendChecker{
		name:   client.Target().Name,
		client: client,
		path:   DefaultHealthPath,
	}, nil
}

// Name returns the backend target name.
func (c *BackendChecker) Name() string {
	return c.name
}

// Check maps the health response to a status:
//   - Healthy on 2xx
//   - Unhealthy on 5xx or when the backend cannot be reached
//   - Degraded on any other status
func (c *BackendChecker) Check(ctx context.Context) *Result {
	start := time.Now()
	var body healthBody
	err := c.client.Do(ctx, http.MethodGet, c.path, nil, &body)
	latency := time.Since(start)

	url := c.client.URL(c.path)
	pe, ok := errors.As(err)
	// a plain-text body on a 2xx is still a healthy answer
	if ok && pe.Code == errors.ErrCodeMalformedResponse && pe.Status < http.StatusMultipleChoices {
		err = nil
	}
	if err == nil {
		result := Healthy(fmt.Sprintf("%s is up", c.name)).
			WithLatency(latency).
			WithDetail("url", url)
		if body.Service != "" {
			result.WithDetail("service", body.Service)
		}
		return result
	}

	if !ok || pe.Status == 0 || pe.Status >= http.StatusInternalServerError {
		result := Unhealthy(fmt.Sprintf("%s is unavailable", c.name)).
			WithLatency(latency).
			WithDetail("url", url).
			WithDetail("error", err.Error())
		if ok && pe.Status != 0 {
			result.WithDetail("status", pe.Status)
		}
		return result
	}

	return Degraded(fmt.Sprintf("%s answered with status %d", c.name, pe.Status)).
		WithLatency(latency).
		WithDetail("url", url).
		WithDetail("status", pe.Status)
}
