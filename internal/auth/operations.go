package auth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/felixgeelhaar/portal/internal/config"
	"github.com/felixgeelhaar/portal/internal/errors"
	"github.com/felixgeelhaar/portal/internal/session"
	"github.com/felixgeelhaar/portal/internal/transport"
)

// Login exchanges credentials for a session. On any failure the store is left
// untouched. In cookie mode the session proof stays in the transport jar and
// only the display identity is stored.
func (s *Service) Login(ctx context.Context, username, password string) (resp *LoginResponse, err error) {
	ctx, done := s.begin(ctx, OpLogin)
	defer func() { done(err) }()

	username = strings.TrimSpace(username)
	if username == "" {
		return nil, errors.NewMissingFieldError("username")
	}
	if password == "" {
		return nil, errors.NewMissingFieldError("password")
	}

	identity := s.routes.Identity
	body := map[string]string{"username": username, "password": password}

	var payload tokenPayload
	if err := identity.Client.Do(transport.WithPreAuth(ctx), http.MethodPost, identity.Path("/login"), body, &payload); err != nil {
		return nil, err
	}

	resp, err = s.tokenResponse(&payload, username)
	if err != nil {
		return nil, err
	}

	next := session.Session{
		Authenticated: true,
		Identity:      resp.Identity,
		Origin:        session.OriginLogin,
	}
	if s.routes.Carrier() == session.CarrierBearer {
		next.Credential = resp.AccessToken
		next.RefreshToken = resp.RefreshToken
		next.ExpiresAt = resp.ExpiresAt
	}
	if err := s.store.Set(ctx, next); err != nil {
		return nil, err
	}

	s.logger.WithContext(ctx).Info("logged in", "username", resp.Identity.Username, "mode", string(s.routes.Mode))
	return resp, nil
}

// tokenResponse normalises a login or refresh payload. Bearer topologies
// require an access token.
func (s *Service) tokenResponse(p *tokenPayload, fallbackUsername string) (*LoginResponse, error) {
	access := p.access()
	if access == "" && s.routes.Carrier() == session.CarrierBearer {
		return nil, errors.New(errors.ErrCodeMalformedResponse, errors.KindTransport,
			"login response did not contain an access token")
	}

	resp := &LoginResponse{
		AccessToken:  access,
		RefreshToken: p.refresh(),
		TokenType:    p.TokenType,
	}

	var claims *session.TokenClaims
	if access != "" {
		if c, err := session.ParseTokenClaims(access); err == nil {
			claims = c
			resp.ExpiresAt = c.ExpiresAt
		}
	}
	if resp.ExpiresAt.IsZero() && p.ExpiresIn > 0 {
		resp.ExpiresAt = s.now().Add(time.Duration(p.ExpiresIn) * time.Second)
	}
	resp.Identity = p.identity(claims, fallbackUsername)
	return resp, nil
}

// Logout asks the identity service to end the session and then clears the
// store whatever the outcome. A 401 means the server already considers the
// session gone and counts as success.
func (s *Service) Logout(ctx context.Context) (err error) {
	ctx, done := s.begin(ctx, OpLogout)
	defer func() { done(err) }()

	current := s.store.Current()
	var body any
	if current.RefreshToken != "" {
		body = map[string]string{"refresh_token": current.RefreshToken}
	}

	identity := s.routes.Identity
	reqErr := identity.Client.Do(ctx, http.MethodPost, identity.Path("/logout"), body, nil)

	if clearErr := s.store.Clear(ctx); clearErr != nil {
		s.logger.WithError(clearErr).Warn("failed to clear session")
	}

	if errors.IsKind(reqErr, errors.KindAuthorizationExpired) {
		return nil
	}
	if reqErr != nil {
		return reqErr
	}

	s.logger.WithContext(ctx).Info("logged out", "username", current.Identity.Username)
	return nil
}

// Register creates an account. It never changes the session: registering is
// not logging in.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (view *ProfileView, err error) {
	ctx, done := s.begin(ctx, OpRegister)
	defer func() { done(err) }()

	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" {
		return nil, errors.NewMissingFieldError("username")
	}
	if req.Password == "" {
		return nil, errors.NewMissingFieldError("password")
	}

	var payload struct {
		User     *ProfileView `json:"user"`
		Identity *ProfileView `json:"identity"`
	}
	identity := s.routes.Identity
	// pre-auth so a rejection here can never clear an existing session
	err = identity.Client.Do(transport.WithPreAuth(ctx), http.MethodPost, identity.Path("/register"), req, &payload)
	if err != nil {
		if pe, ok := errors.As(err); ok && pe.Kind == errors.KindAuthenticationRejected {
			pe.Code = errors.ErrCodeRegistrationRejected
		}
		return nil, err
	}

	switch {
	case payload.User != nil:
		view = payload.User
	case payload.Identity != nil:
		view = payload.Identity
	default:
		view = &ProfileView{}
	}
	view.Username = firstNonEmpty(view.Username, req.Username)

	s.logger.WithContext(ctx).Info("registered", "username", view.Username)
	return view, nil
}

// Refresh trades the stored refresh token for a new access token. It is only
// available in direct mode and is never called automatically.
func (s *Service) Refresh(ctx context.Context) (resp *LoginResponse, err error) {
	ctx, done := s.begin(ctx, OpRefresh)
	defer func() { done(err) }()

	if s.routes.Mode != config.ModeDirect {
		return nil, errors.New(errors.ErrCodeRefreshUnavailable, errors.KindValidation,
			"refresh is only available in direct mode").
			WithSuggestion("The gateway renews its session cookie itself")
	}

	current := s.store.Current()
	if !current.Authenticated || current.RefreshToken == "" {
		return nil, errors.New(errors.ErrCodeRefreshUnavailable, errors.KindValidation,
			"no refresh token held").
			WithSuggestion("Run 'portal login' to sign in")
	}

	identity := s.routes.Identity
	var payload tokenPayload
	err = identity.Client.Do(transport.WithBearer(ctx, current.RefreshToken), http.MethodPost, identity.Path("/refresh"), nil, &payload)
	if err != nil {
		return nil, err
	}

	resp, err = s.tokenResponse(&payload, current.Identity.Username)
	if err != nil {
		return nil, err
	}
	if resp.RefreshToken == "" {
		resp.RefreshToken = current.RefreshToken
	}
	// a refresh payload rarely carries the user object
	if payload.User == nil {
		resp.Identity = current.Identity
	}

	next := current
	next.Credential = resp.AccessToken
	next.RefreshToken = resp.RefreshToken
	next.ExpiresAt = resp.ExpiresAt
	next.Identity = resp.Identity
	next.Origin = session.OriginRefresh
	if err := s.store.Set(ctx, next); err != nil {
		return nil, err
	}

	s.logger.WithContext(ctx).Info("session refreshed", "username", next.Identity.Username)
	return resp, nil
}
