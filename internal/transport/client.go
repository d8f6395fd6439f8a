package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/felixgeelhaar/portal/internal/errors"
	"github.com/felixgeelhaar/portal/internal/log"
	"github.com/felixgeelhaar/portal/internal/metrics"
	"github.com/felixgeelhaar/portal/internal/session"
	"github.com/felixgeelhaar/portal/internal/version"
)

// DefaultTimeout bounds a single request including reading the body.
const DefaultTimeout = 15 * time.Second

// Client is a preconfigured HTTP client for one backend target.
type Client struct {
	target Target
	http   *http.Client
	logger *log.Logger
}

type options struct {
	timeout time.Duration
	base    http.RoundTripper
	logger  *log.Logger
	metrics *metrics.Metrics
	jar     *SessionJar
}

// Option configures a Client.
type Option func(*options)

// WithTimeout sets the request timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithBaseTransport sets the innermost RoundTripper, http.DefaultTransport
// when unset.
func WithBaseTransport(rt http.RoundTripper) Option {
	return func(o *options) { o.base = rt }
}

// WithLogger sets the logger used by the interceptor chain.
func WithLogger(l *log.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics records request metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithJar shares a cookie jar between clients addressing the same gateway.
func WithJar(jar *SessionJar) Option {
	return func(o *options) { o.jar = jar }
}

// NewClient builds a client for target. store may be nil for PolicyNone
// targets. A cookie-policy client subscribes to store, when it supports
// subscriptions, and empties its jar each time the session is cleared.
func NewClient(target Target, store session.Store, opts ...Option) (*Client, error) {
	if err := target.Validate(); err != nil {
		return nil, err
	}
	target = target.withDefaults()

	o := options{
		timeout: DefaultTimeout,
		base:    http.DefaultTransport,
		logger:  log.Discard(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	hc := &http.Client{
		Timeout:   o.timeout,
		Transport: chain(o.base, target, store, o.logger, o.metrics),
	}

	if target.Policy == PolicyBrowserManagedCookie {
		jar := o.jar
		if jar == nil {
			var err error
			if jar, err = NewJar(); err != nil {
				return nil, errors.Wrap(errors.ErrCodeInvalidConfig, errors.KindValidation, "failed to create cookie jar", err)
			}
		}
		hc.Jar = jar
		resetOnClear(store, jar, o.logger)
		return &Client{target: target, http: hc, logger: o.logger}, nil
	}

	return &Client{
		target: target,
		http:   hc,
		logger: o.logger,
	}, nil
}

// Target returns the normalised target.
func (c *Client) Target() Target {
	return c.target
}

// HTTPClient returns the underlying client with the interceptor chain.
func (c *Client) HTTPClient() *http.Client {
	return c.http
}

// URL resolves path against the target origin.
func (c *Client) URL(path string) string {
	if path == "" {
		return c.target.Origin
	}
	if path[0] != '/' {
		path = "/" + path
	}
	return c.target.Origin + path
}

// Do sends a JSON request and decodes a 2xx response into out. Non-2xx
// responses become a *errors.PortalError tagged by status.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.NewUnreachableError(c.target.Name, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return errors.NewUnreachableError(c.target.Name, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(c.target.Name, resp.StatusCode, data, IsPreAuth(ctx))
	}
	return decodeBody(c.target.Name, resp.StatusCode, data, out)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeEncodeRequest, errors.KindValidation, "failed to encode request body", err)
		}
		reqBody = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.URL(path), reqBody)
	if err != nil {
		return nil, errors.NewInvalidOriginError(c.URL(path), err)
	}
	req.Header.Set("User-Agent", version.UserAgent())
	for k, v := range c.target.Headers {
		req.Header[k] = append([]string(nil), v...)
	}
	return req, nil
}
