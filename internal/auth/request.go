package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/felixgeelhaar/portal/internal/errors"
	"github.com/felixgeelhaar/portal/internal/topology"
)

// Routes a RawRequest can address.
const (
	RouteIdentity = "identity"
	RouteProfile  = "profile"
)

// RawRequest is an arbitrary call made with the current session, for
// exploring endpoints the facade has no operation for.
type RawRequest struct {
	// Route selects the service; the profile route when empty.
	Route string
	// Method is GET, POST, PUT, PATCH or DELETE, in any case.
	Method string
	// Path is relative to the route, e.g. "/profile".
	Path string
	// Body must be valid JSON when set. Methods with a body send {} when
	// it is empty.
	Body json.RawMessage
}

// Request sends req through the route's client, so it carries the session
// like any other operation and a 401 clears the session like any other
// operation. It returns the response payload with any {success, data}
// envelope removed; an empty response yields nil.
func (s *Service) Request(ctx context.Context, req RawRequest) (out json.RawMessage, err error) {
	ctx, done := s.begin(ctx, OpRequest)
	defer func() { done(err) }()

	route, err := s.route(req.Route)
	if err != nil {
		return nil, err
	}

	method := strings.ToUpper(strings.TrimSpace(req.Method))
	switch method {
	case http.MethodGet, http.MethodDelete, http.MethodPost, http.MethodPut, http.MethodPatch:
	default:
		return nil, errors.New(errors.ErrCodeInvalidRequest, errors.KindValidation,
			fmt.Sprintf("unsupported method %q", req.Method)).
			WithSuggestion("Use GET, POST, PUT, PATCH or DELETE")
	}

	path := strings.TrimSpace(req.Path)
	if path == "" {
		return nil, errors.NewMissingFieldError("path")
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	var body any
	switch {
	case len(req.Body) > 0:
		if !json.Valid(req.Body) {
			return nil, errors.New(errors.ErrCodeInvalidRequest, errors.KindValidation,
				"request body is not valid JSON")
		}
		body = req.Body
	case method == http.MethodPost || method == http.MethodPut || method == http.MethodPatch:
		body = json.RawMessage(`{}`)
	}

	var raw json.RawMessage
	if err := route.Client.Do(ctx, method, route.Path(path), body, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func (s *Service) route(name string) (topology.Route, error) {
	switch strings.ToLower(name) {
	case "", RouteProfile:
		return s.routes.Profile, nil
	case RouteIdentity:
		return s.routes.Identity, nil
	default:
		return topology.Route{}, errors.New(errors.ErrCodeInvalidRequest, errors.KindValidation,
			fmt.Sprintf("unknown route %q", name)).
			WithSuggestion("Use --route identity or --route profile")
	}
}
