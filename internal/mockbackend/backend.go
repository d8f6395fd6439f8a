package mockbackend

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/crypto/bcrypt"

	"github.com/felixgeelhaar/portal/internal/log"
)

// AccessCookie is the gateway session cookie.
const AccessCookie = "access_token_cookie"

// Backend holds the shared state of every surface.
type Backend struct {
	users  *userStore
	tokens *tokenIssuer
	logger *log.Logger
	now    func() time.Time
}

// Option configures a Backend.
type Option func(*Backend)

// WithSecret sets the HS256 signing secret.
func WithSecret(secret string) Option {
	return func(b *Backend) { b.tokens.secret = []byte(secret) }
}

// WithAccessTTL sets the access token lifetime.
func WithAccessTTL(d time.Duration) Option {
	return func(b *Backend) { b.tokens.accessTTL = d }
}

// WithRefreshTTL sets the refresh token lifetime.
func WithRefreshTTL(d time.Duration) Option {
	return func(b *Backend) { b.tokens.refreshTTL = d }
}

// WithLogger logs each request.
func WithLogger(l *log.Logger) Option {
	return func(b *Backend) { b.logger = l }
}

// WithClock overrides time.Now for token issue and verification.
func WithClock(now func() time.Time) Option {
	return func(b *Backend) {
		b.now = now
		b.tokens.now = now
	}
}

// WithBcryptCost sets the password hashing cost. Tests use bcrypt.MinCost.
func WithBcryptCost(cost int) Option {
	return func(b *Backend) { b.users.cost = cost }
}

// New creates an empty backend.
func New(opts ...Option) *Backend {
	b := &Backend{
		users: newUserStore(bcrypt.DefaultCost),
		tokens: &tokenIssuer{
			secret:     []byte("portal-dev-secret"),
			accessTTL:  15 * time.Minute,
			refreshTTL: 7 * 24 * time.Hour,
			now:        time.Now,
			revoked:    make(map[string]time.Time),
		},
		logger: log.Discard(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// AddUser registers a user directly.
func (b *Backend) AddUser(username, password string, profile Profile) error {
	_, err := b.users.add(username, password, profile, b.now())
	return err
}

// Expire invalidates every token issued to username so far. It reports
// whether the user exists.
func (b *Backend) Expire(username string) bool {
	return b.users.expire(username)
}

// UserCount returns the number of registered users.
func (b *Backend) UserCount() int {
	return b.users.count()
}

// AuthHandler serves the identity service at /api/auth.
func (b *Backend) AuthHandler() http.Handler {
	r := b.router()
	r.Route("/api/auth", func(r chi.Router) {
		b.mountAuth(r, false)
	})
	return r
}

// UserHandler serves the profile service at /api/user.
func (b *Backend) UserHandler() http.Handler {
	r := b.router()
	r.Route("/api/user", func(r chi.Router) {
		b.mountUser(r, false)
	})
	return r
}

// GatewayHandler serves both services at /api/auth and /api/user with
// cookie sessions.
func (b *Backend) GatewayHandler() http.Handler {
	r := b.router()
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", b.handleHealth("gateway"))
		r.Route("/auth", func(r chi.Router) {
			b.mountAuth(r, true)
		})
		r.Route("/user", func(r chi.Router) {
			b.mountUser(r, true)
		})
	})
	return r
}

func (b *Backend) router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(b.requestLogger)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "route not found")
	})
	return r
}

func (b *Backend) mountAuth(r chi.Router, gateway bool) {
	r.Get("/health", b.handleHealth("auth-service"))
	r.Post("/login", b.handleLogin(gateway))
	r.Post("/register", b.handleRegister)
	r.With(b.requireAccess(gateway)).Post("/logout", b.handleLogout(gateway))
	if !gateway {
		r.Post("/refresh", b.handleRefresh)
	}
}

func (b *Backend) mountUser(r chi.Router, gateway bool) {
	r.Get("/health", b.handleHealth("user-service"))
	r.With(b.requireAccess(gateway)).Get("/profile", b.handleProfile)
}

func (b *Backend) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		b.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"request_id", r.Header.Get("X-Request-ID"),
			"latency", time.Since(start))
	})
}
