package transport

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/felixgeelhaar/portal/internal/log"
	"github.com/felixgeelhaar/portal/internal/metrics"
	"github.com/felixgeelhaar/portal/internal/session"
	"github.com/felixgeelhaar/portal/internal/telemetry"
)

// RequestIDHeader carries the per-request correlation ID.
const RequestIDHeader = "X-Request-ID"

// roundTripperFunc adapts a function to http.RoundTripper.
type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// chain wraps base with the interceptors for target, outermost first.
func chain(base http.RoundTripper, target Target, store session.Store, logger *log.Logger, m *metrics.Metrics) http.RoundTripper {
	rt := metricsTransport(base, target, logger, m)
	rt = credentialTransport(rt, target, store)
	rt = authFailureTransport(rt, target, store, logger, m)
	rt = tracingTransport(rt, target)
	rt = requestIDTransport(rt)
	return rt
}

// requestIDTransport sets X-Request-ID when the caller has not.
func requestIDTransport(next http.RoundTripper) http.RoundTripper {
	return roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		id := req.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
			req = req.Clone(req.Context())
			req.Header.Set(RequestIDHeader, id)
		}
		ctx := log.ContextWithRequestID(req.Context(), id)
		return next.RoundTrip(req.WithContext(ctx))
	})
}

// tracingTransport wraps each request in a client span.
func tracingTransport(next http.RoundTripper, target Target) http.RoundTripper {
	return roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		ctx, span := telemetry.StartRequestSpan(req.Context(), target.Name, req.Method, req.URL.Path)
		defer span.End()

		span.SetAttributes(attribute.String("request_id", req.Header.Get(RequestIDHeader)))

		resp, err := next.RoundTrip(req.WithContext(ctx))
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}
		span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
		if resp.StatusCode >= 500 {
			span.SetAttributes(attribute.Bool("error", true))
		}
		return resp, nil
	})
}

// authFailureTransport clears the store once for every 401 on a request that
// was not establishing a session. The response is returned unchanged.
func authFailureTransport(next http.RoundTripper, target Target, store session.Store, logger *log.Logger, m *metrics.Metrics) http.RoundTripper {
	return roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		resp, err := next.RoundTrip(req)
		if err != nil || resp.StatusCode != http.StatusUnauthorized {
			return resp, err
		}
		if store == nil || target.Policy == PolicyNone || IsPreAuth(req.Context()) {
			return resp, nil
		}

		logger.WithContext(req.Context()).Warn("authorization rejected, clearing session",
			"target", target.Name, "path", req.URL.Path)
		if clearErr := store.Clear(req.Context()); clearErr != nil {
			logger.WithError(clearErr).Error("failed to clear session")
		}
		if m != nil {
			m.RecordExpiration(target.Name)
		}
		return resp, nil
	})
}

// credentialTransport attaches the bearer credential for bearer targets.
func credentialTransport(next http.RoundTripper, target Target, store session.Store) http.RoundTripper {
	if target.Policy != PolicyBearerFromStore {
		return next
	}
	return roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		token, ok := bearerOverride(req.Context())
		if !ok && !IsPreAuth(req.Context()) && store != nil {
			token = store.Current().Credential
		}
		if token == "" {
			return next.RoundTrip(req)
		}

		req = req.Clone(req.Context())
		req.Header.Set("Authorization", "Bearer "+token)
		return next.RoundTrip(req)
	})
}

// metricsTransport records request counts and latency and logs each request.
func metricsTransport(next http.RoundTripper, target Target, logger *log.Logger, m *metrics.Metrics) http.RoundTripper {
	return roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		start := time.Now()
		resp, err := next.RoundTrip(req)
		elapsed := time.Since(start)

		reqLogger := logger.WithContext(req.Context())
		if err != nil {
			if m != nil {
				m.RecordTransportError(target.Name)
			}
			reqLogger.WithError(err).Debug("request failed",
				"method", req.Method, "target", target.Name, "path", req.URL.Path, "latency", elapsed)
			return nil, err
		}

		if m != nil {
			m.RecordRequest(target.Name, resp.StatusCode, elapsed)
		}
		reqLogger.Debug("request completed",
			"method", req.Method, "target", target.Name, "path", req.URL.Path,
			"status", resp.StatusCode, "latency", elapsed)
		return resp, nil
	})
}
