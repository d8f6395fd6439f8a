package auth

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrNotAuthenticated is returned by WhoAmI whenever the profile could not be
// read. The underlying *errors.PortalError stays reachable with errors.As.
var ErrNotAuthenticated = stderrors.New("not authenticated")

// WhoAmI asks the profile service who the current session belongs to. It has
// no side effects of its own; a 401 has already cleared the store by the
// time it returns.
func (s *Service) WhoAmI(ctx context.Context) (view *ProfileView, err error) {
	ctx, done := s.begin(ctx, OpWhoAmI)
	defer func() { done(err) }()

	profile := s.routes.Profile
	var v ProfileView
	if err := profile.Client.Do(ctx, http.MethodGet, profile.Path("/profile"), nil, &v); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotAuthenticated, err)
	}
	return &v, nil
}
