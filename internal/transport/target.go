package transport

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/felixgeelhaar/portal/internal/errors"
)

// CredentialPolicy selects how a client proves the session to its target.
type CredentialPolicy int

const (
	// PolicyNone sends no credential.
	PolicyNone CredentialPolicy = iota
	// PolicyBearerFromStore attaches the stored credential as a bearer token.
	PolicyBearerFromStore
	// PolicyBrowserManagedCookie lets the cookie jar carry the session.
	PolicyBrowserManagedCookie
)

// String returns the string representation of the policy
func (p CredentialPolicy) String() string {
	switch p {
	case PolicyBearerFromStore:
		return "bearer"
	case PolicyBrowserManagedCookie:
		return "cookie"
	default:
		return "none"
	}
}

// Target describes one backend a client talks to.
type Target struct {
	// Name identifies the target in logs, metrics and errors.
	Name string
	// Origin is the absolute base URL, path included (for example
	// http://localhost:5001/api/auth).
	Origin  string
	Headers http.Header
	Policy  CredentialPolicy
}

// Validate checks that Origin is an absolute http or https URL.
func (t Target) Validate() error {
	u, err := url.Parse(t.Origin)
	if err != nil {
		return errors.NewInvalidOriginError(t.Origin, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.NewInvalidOriginError(t.Origin, nil).
			WithSuggestion("Use an http:// or https:// URL")
	}
	if u.Host == "" {
		return errors.NewInvalidOriginError(t.Origin, nil)
	}
	switch t.Policy {
	case PolicyNone, PolicyBearerFromStore, PolicyBrowserManagedCookie:
	default:
		return errors.New(errors.ErrCodeInvalidConfig, errors.KindValidation, "unknown credential policy")
	}
	return nil
}

func (t Target) withDefaults() Target {
	headers := make(http.Header, len(t.Headers)+2)
	for k, v := range t.Headers {
		headers[k] = append([]string(nil), v...)
	}
	if headers.Get("Content-Type") == "" {
		headers.Set("Content-Type", "application/json")
	}
	if headers.Get("Accept") == "" {
		headers.Set("Accept", "application/json")
	}

	if t.Name == "" {
		if u, err := url.Parse(t.Origin); err == nil {
			t.Name = u.Host
		}
	}
	t.Origin = strings.TrimRight(t.Origin, "/")
	t.Headers = headers
	return t
}
