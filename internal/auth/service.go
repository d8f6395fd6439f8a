// Package auth is the operations facade over the identity and profile
// services: login, logout, registration, refresh and the session probe.
//
// Every operation returns (payload, error). A non-nil error is an
// *errors.PortalError whose Kind tells the caller how to react; Outcome
// collapses it to the result the presentation layer renders. The facade never
// redirects, prompts or retries.
package auth

import (
	"context"
	"time"

	"github.com/felixgeelhaar/portal/internal/log"
	"github.com/felixgeelhaar/portal/internal/metrics"
	"github.com/felixgeelhaar/portal/internal/session"
	"github.com/felixgeelhaar/portal/internal/telemetry"
	"github.com/felixgeelhaar/portal/internal/topology"
)

// Operation names used in spans, logs and metrics.
const (
	OpLogin    = "login"
	OpLogout   = "logout"
	OpRegister = "register"
	OpRefresh  = "refresh"
	OpWhoAmI   = "whoami"
	OpRequest  = "request"
)

// Service performs auth operations against the configured topology.
type Service struct {
	routes  *topology.Routes
	store   session.Store
	logger  *log.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithMetrics records operation outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a Service. store must be the same store the route
// clients were built with.
func NewService(routes *topology.Routes, store session.Store, opts ...Option) *Service {
	s := &Service{
		routes: routes,
		store:  store,
		logger: log.Discard(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Current returns the current session.
func (s *Service) Current() session.Session {
	return s.store.Current()
}

// begin opens the span for op and returns the function that closes it with
// the operation's result.
func (s *Service) begin(ctx context.Context, op string) (context.Context, func(error)) {
	ctx, span := telemetry.StartOperationSpan(ctx, op)
	start := time.Now()

	return ctx, func(err error) {
		result := Outcome(err)
		telemetry.RecordDuration(span, "duration", time.Since(start))
		if err != nil {
			telemetry.RecordError(span, err)
			s.logger.WithContext(ctx).WithError(err).Debug("operation failed",
				"operation", op, "outcome", result.String())
		} else {
			telemetry.RecordSuccess(span)
		}
		span.End()

		if s.metrics != nil {
			s.metrics.RecordOperation(op, result.String())
		}
	}
}
