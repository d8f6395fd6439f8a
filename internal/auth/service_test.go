package auth

import (
	"context"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/felixgeelhaar/portal/internal/config"
	"github.com/felixgeelhaar/portal/internal/errors"
	"github.com/felixgeelhaar/portal/internal/metrics"
	"github.com/felixgeelhaar/portal/internal/mockbackend"
	"github.com/felixgeelhaar/portal/internal/session"
	"github.com/felixgeelhaar/portal/internal/topology"
	"github.com/felixgeelhaar/portal/internal/transport"
)

const (
	testUser     = "alice"
	testPassword = "Passw0rd!"
)

type harness struct {
	backend *mockbackend.Backend
	store   *session.Manager
	svc     *Service
	metrics *metrics.Metrics

	// identityServer serves login and logout; in gateway mode it is the gateway
	identityServer *httptest.Server
}

func newHarness(t *testing.T, mode config.Mode, opts ...transport.Option) *harness {
	t.Helper()

	b := mockbackend.New(mockbackend.WithBcryptCost(bcrypt.MinCost))
	require.NoError(t, b.AddUser(testUser, testPassword, mockbackend.Profile{Name: "Alice", Email: "alice@example.com"}))

	h := &harness{backend: b}
	cfg := config.Default()
	cfg.Mode = mode

	switch mode {
	case config.ModeDirect:
		authSrv := httptest.NewServer(b.AuthHandler())
		t.Cleanup(authSrv.Close)
		userSrv := httptest.NewServer(b.UserHandler())
		t.Cleanup(userSrv.Close)
		cfg.Direct.AuthURL = authSrv.URL + "/api/auth"
		cfg.Direct.UserURL = userSrv.URL + "/api/user"
		h.identityServer = authSrv
	case config.ModeGateway:
		gw := httptest.NewServer(b.GatewayHandler())
		t.Cleanup(gw.Close)
		cfg.Gateway.URL = gw.URL + "/api"
		h.identityServer = gw
	}

	_, h.metrics = metrics.NewRegistry()
	h.store = session.NewManager(topology.CarrierFor(mode))
	routes, err := topology.Build(cfg, h.store, append([]transport.Option{transport.WithMetrics(h.metrics)}, opts...)...)
	require.NoError(t, err)
	h.svc = NewService(routes, h.store, WithMetrics(h.metrics))
	return h
}

func bothModes(t *testing.T, fn func(t *testing.T, h *harness)) {
	for _, mode := range []config.Mode{config.ModeDirect, config.ModeGateway} {
		t.Run(string(mode), func(t *testing.T) {
			fn(t, newHarness(t, mode))
		})
	}
}

func TestLoginThenWhoAmI(t *testing.T) {
	bothModes(t, func(t *testing.T, h *harness) {
		ctx := context.Background()

		resp, err := h.svc.Login(ctx, testUser, testPassword)
		require.NoError(t, err)
		assert.Equal(t, ResultSuccess, Outcome(err))
		assert.Equal(t, testUser, resp.Identity.Username)
		assert.True(t, h.store.Current().Authenticated)

		view, err := h.svc.WhoAmI(ctx)
		require.NoError(t, err)
		assert.Equal(t, testUser, view.Username)
		assert.Equal(t, "Alice", view.Name)
		assert.Equal(t, "user", view.Role)
	})
}

func TestLoginWrongPassword(t *testing.T) {
	bothModes(t, func(t *testing.T, h *harness) {
		ctx := context.Background()

		_, err := h.svc.Login(ctx, testUser, "wrong")
		require.Error(t, err)
		assert.Equal(t, ResultRejected, Outcome(err))
		assert.True(t, errors.IsKind(err, errors.KindAuthenticationRejected))
		assert.Contains(t, err.Error(), "Invalid username or password")
		assert.True(t, h.store.Current().IsZero())

		_, err = h.svc.WhoAmI(ctx)
		assert.ErrorIs(t, err, ErrNotAuthenticated)
	})
}

func TestExpiredSessionMidway(t *testing.T) {
	bothModes(t, func(t *testing.T, h *harness) {
		ctx := context.Background()

		clears := 0
		h.store.Subscribe(func(previous, current session.Session) {
			if previous.Authenticated && !current.Authenticated {
				clears++
			}
		})

		_, err := h.svc.Login(ctx, testUser, testPassword)
		require.NoError(t, err)
		require.True(t, h.backend.Expire(testUser))

		_, err = h.svc.WhoAmI(ctx)
		require.ErrorIs(t, err, ErrNotAuthenticated)
		assert.True(t, errors.IsKind(err, errors.KindAuthorizationExpired))
		assert.Equal(t, ResultExpired, Outcome(err))
		assert.False(t, h.store.Current().Authenticated)
		assert.Empty(t, h.store.Current().Credential)

		_, err = h.svc.WhoAmI(ctx)
		assert.ErrorIs(t, err, ErrNotAuthenticated)
		assert.Equal(t, 1, clears, "the session is cleared exactly once")
	})
}

func TestRegisterDoesNotLogIn(t *testing.T) {
	bothModes(t, func(t *testing.T, h *harness) {
		sensors := 2
		view, err := h.svc.Register(context.Background(), RegisterRequest{
			Username: "bob",
			Password: "secret1",
			Profile:  RegisterProfile{Name: "Bob", Role: "user", Sensors: &sensors, Topic: "bob/temp"},
		})
		require.NoError(t, err)
		assert.Equal(t, "bob", view.Username)
		require.NotNil(t, view.Sensors)
		assert.Equal(t, 2, *view.Sensors)
		assert.Equal(t, "bob/temp", view.Topic)
		assert.False(t, h.store.Current().Authenticated)
		assert.Equal(t, 2, h.backend.UserCount())
	})
}

func TestRegisterDuplicate(t *testing.T) {
	bothModes(t, func(t *testing.T, h *harness) {
		ctx := context.Background()
		_, err := h.svc.Login(ctx, testUser, testPassword)
		require.NoError(t, err)

		_, err = h.svc.Register(ctx, RegisterRequest{Username: testUser, Password: "another1"})
		require.Error(t, err)

		pe, ok := errors.As(err)
		require.True(t, ok)
		assert.Equal(t, errors.ErrCodeRegistrationRejected, pe.Code)
		assert.Equal(t, 409, pe.Status)
		assert.Contains(t, pe.Message, "already taken")
		assert.True(t, h.store.Current().Authenticated, "a failed registration leaves the session alone")
	})
}

func TestRegisterFieldErrors(t *testing.T) {
	h := newHarness(t, config.ModeDirect)

	_, err := h.svc.Register(context.Background(), RegisterRequest{Username: "carol", Password: "123"})
	require.Error(t, err)
	assert.Equal(t, ResultRejected, Outcome(err))
	assert.Contains(t, err.Error(), "password: must be at least 6 characters")
}

func TestLocalValidation(t *testing.T) {
	cfg := config.Default()
	cfg.Direct.AuthURL = "http://127.0.0.1:1/api/auth"
	cfg.Direct.UserURL = "http://127.0.0.1:1/api/user"
	store := session.NewManager(session.CarrierBearer)
	routes, err := topology.Build(cfg, store)
	require.NoError(t, err)
	svc := NewService(routes, store)

	ctx := context.Background()
	tests := []struct {
		name string
		call func() error
	}{
		{"login without username", func() error { _, err := svc.Login(ctx, "  ", "x"); return err }},
		{"login without password", func() error { _, err := svc.Login(ctx, "alice", ""); return err }},
		{"register without username", func() error { _, err := svc.Register(ctx, RegisterRequest{Password: "x"}); return err }},
		{"register without password", func() error { _, err := svc.Register(ctx, RegisterRequest{Username: "x"}); return err }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			assert.Equal(t, ResultInvalid, Outcome(err), "validation must fail before any network call: %v", err)
		})
	}
}

func TestLoginStoresCredentialOnlyForBearer(t *testing.T) {
	t.Run("direct", func(t *testing.T) {
		h := newHarness(t, config.ModeDirect)
		_, err := h.svc.Login(context.Background(), testUser, testPassword)
		require.NoError(t, err)

		s := h.store.Current()
		assert.NotEmpty(t, s.Credential)
		assert.NotEmpty(t, s.RefreshToken)
		assert.False(t, s.ExpiresAt.IsZero())
		assert.Equal(t, session.OriginLogin, s.Origin)
	})

	t.Run("gateway", func(t *testing.T) {
		h := newHarness(t, config.ModeGateway)
		_, err := h.svc.Login(context.Background(), testUser, testPassword)
		require.NoError(t, err)

		s := h.store.Current()
		assert.True(t, s.Authenticated)
		assert.Empty(t, s.Credential)
		assert.Empty(t, s.RefreshToken)
		assert.Equal(t, testUser, s.Identity.Username)
	})
}

func TestLogout(t *testing.T) {
	bothModes(t, func(t *testing.T, h *harness) {
		ctx := context.Background()
		_, err := h.svc.Login(ctx, testUser, testPassword)
		require.NoError(t, err)

		require.NoError(t, h.svc.Logout(ctx))
		assert.True(t, h.store.Current().IsZero())

		_, err = h.svc.WhoAmI(ctx)
		assert.ErrorIs(t, err, ErrNotAuthenticated)
	})
}

// dropPath fails every request whose path ends with suffix, as if the
// network went down for that call only.
type dropPath struct {
	suffix string
}

func (d dropPath) RoundTrip(req *http.Request) (*http.Response, error) {
	if strings.HasSuffix(req.URL.Path, d.suffix) {
		return nil, stderrors.New("network down")
	}
	return http.DefaultTransport.RoundTrip(req)
}

func TestLogoutClearsEvenWhenUnreachable(t *testing.T) {
	for _, mode := range []config.Mode{config.ModeDirect, config.ModeGateway} {
		t.Run(string(mode), func(t *testing.T) {
			h := newHarness(t, mode, transport.WithBaseTransport(dropPath{suffix: "/logout"}))
			ctx := context.Background()
			_, err := h.svc.Login(ctx, testUser, testPassword)
			require.NoError(t, err)

			err = h.svc.Logout(ctx)
			require.Error(t, err)
			assert.Equal(t, ResultTransportFailure, Outcome(err))
			assert.True(t, h.store.Current().IsZero())

			_, err = h.svc.WhoAmI(ctx)
			assert.ErrorIs(t, err, ErrNotAuthenticated)
			assert.False(t, h.store.Current().Authenticated)
		})
	}
}

func TestLogoutClearsWhenServerClosed(t *testing.T) {
	h := newHarness(t, config.ModeDirect)
	ctx := context.Background()
	_, err := h.svc.Login(ctx, testUser, testPassword)
	require.NoError(t, err)

	h.identityServer.Close()

	err = h.svc.Logout(ctx)
	require.Error(t, err)
	assert.Equal(t, ResultTransportFailure, Outcome(err))
	assert.True(t, h.store.Current().IsZero())

	_, err = h.svc.WhoAmI(ctx)
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestLogoutAfterExpiryIsSuccess(t *testing.T) {
	bothModes(t, func(t *testing.T, h *harness) {
		ctx := context.Background()
		_, err := h.svc.Login(ctx, testUser, testPassword)
		require.NoError(t, err)
		h.backend.Expire(testUser)

		assert.NoError(t, h.svc.Logout(ctx))
		assert.True(t, h.store.Current().IsZero())
	})
}

func TestRefresh(t *testing.T) {
	h := newHarness(t, config.ModeDirect)
	ctx := context.Background()
	_, err := h.svc.Login(ctx, testUser, testPassword)
	require.NoError(t, err)
	before := h.store.Current()

	resp, err := h.svc.Refresh(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)

	after := h.store.Current()
	assert.Equal(t, session.OriginRefresh, after.Origin)
	assert.NotEqual(t, before.Credential, after.Credential)
	assert.Equal(t, before.RefreshToken, after.RefreshToken)
	assert.Equal(t, testUser, after.Identity.Username)

	_, err = h.svc.WhoAmI(ctx)
	assert.NoError(t, err)
}

func TestRefreshUnavailable(t *testing.T) {
	t.Run("gateway", func(t *testing.T) {
		h := newHarness(t, config.ModeGateway)
		_, err := h.svc.Refresh(context.Background())
		pe, ok := errors.As(err)
		require.True(t, ok)
		assert.Equal(t, errors.ErrCodeRefreshUnavailable, pe.Code)
		assert.Equal(t, ResultInvalid, Outcome(err))
	})

	t.Run("no session", func(t *testing.T) {
		h := newHarness(t, config.ModeDirect)
		_, err := h.svc.Refresh(context.Background())
		assert.Equal(t, ResultInvalid, Outcome(err))
	})
}

func TestRefreshAfterExpiryClears(t *testing.T) {
	h := newHarness(t, config.ModeDirect)
	ctx := context.Background()
	_, err := h.svc.Login(ctx, testUser, testPassword)
	require.NoError(t, err)
	h.backend.Expire(testUser)

	_, err = h.svc.Refresh(ctx)
	assert.Equal(t, ResultExpired, Outcome(err))
	assert.True(t, h.store.Current().IsZero())
}

func TestOperationMetrics(t *testing.T) {
	h := newHarness(t, config.ModeDirect)
	ctx := context.Background()

	_, _ = h.svc.Login(ctx, testUser, "wrong")
	_, err := h.svc.Login(ctx, testUser, testPassword)
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.Operations.WithLabelValues(OpLogin, "rejected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.Operations.WithLabelValues(OpLogin, "success")))
}

func TestOutcome(t *testing.T) {
	tests := []struct {
		err  error
		want Result
	}{
		{nil, ResultSuccess},
		{errors.NewMissingFieldError("username"), ResultInvalid},
		{errors.New(errors.ErrCodeCredentialsRejected, errors.KindAuthenticationRejected, "no"), ResultRejected},
		{errors.New(errors.ErrCodeForbidden, errors.KindForbidden, "no"), ResultRejected},
		{errors.NewSessionExpiredError("profile", 401, ""), ResultExpired},
		{errors.NewUnreachableError("identity", stderrors.New("refused")), ResultTransportFailure},
		{stderrors.New("plain"), ResultTransportFailure},
	}
	for _, tt := range tests {
		t.Run(tt.want.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, Outcome(tt.err))
		})
	}
}
