package mockbackend

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
)

type ctxKey struct{}

type principal struct {
	user   *user
	claims *tokenClaims
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type registerRequest struct {
	Username string  `json:"username"`
	Password string  `json:"password"`
	Profile  Profile `json:"profile"`
}

type logoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, map[string]any{"success": true, "data": data})
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"success": false,
		"error":   map[string]string{"code": code, "message": message},
	})
}

func (b *Backend) handleHealth(service string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": service})
	}
}

func (b *Backend) handleLogin(gateway bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "request body must be JSON")
			return
		}
		if req.Username == "" || req.Password == "" {
			writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "username and password are required")
			return
		}

		u, ok := b.users.authenticate(req.Username, req.Password)
		if !ok {
			writeError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid username or password")
			return
		}

		gen, _ := b.users.generation(u.Username)
		access, err := b.tokens.issue(u, gen, tokenTypeAccess)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "TOKEN_ERROR", "failed to issue token")
			return
		}

		if gateway {
			http.SetCookie(w, &http.Cookie{
				Name:     AccessCookie,
				Value:    access,
				Path:     "/",
				HttpOnly: true,
				SameSite: http.SameSiteStrictMode,
				MaxAge:   int(b.tokens.accessTTL.Seconds()),
			})
			writeData(w, http.StatusOK, map[string]any{"user": u.view()})
			return
		}

		refresh, err := b.tokens.issue(u, gen, tokenTypeRefresh)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "TOKEN_ERROR", "failed to issue token")
			return
		}
		writeData(w, http.StatusOK, map[string]any{
			"access_token":  access,
			"refresh_token": refresh,
			"token_type":    "Bearer",
			"expires_in":    int(b.tokens.accessTTL.Seconds()),
			"user":          u.view(),
		})
	}
}

func (b *Backend) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "request body must be JSON")
		return
	}

	fields := map[string]string{}
	if strings.TrimSpace(req.Username) == "" {
		fields["username"] = "required"
	}
	if len(req.Password) < 6 {
		fields["password"] = "must be at least 6 characters"
	}
	if len(fields) > 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"errors": fields})
		return
	}

	u, err := b.users.add(req.Username, req.Password, req.Profile, b.now())
	if stderrors.Is(err, errDuplicateUser) {
		writeError(w, http.StatusConflict, "DUPLICATE_USERNAME",
			fmt.Sprintf("Username '%s' is already taken", req.Username))
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to register user")
		return
	}
	writeData(w, http.StatusCreated, map[string]any{"user": u.view()})
}

func (b *Backend) handleLogout(gateway bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := r.Context().Value(ctxKey{}).(*principal)
		b.tokens.revoke(p.claims)

		var req logoutRequest
		if r.ContentLength != 0 {
			_ = json.NewDecoder(r.Body).Decode(&req)
		}
		if req.RefreshToken != "" {
			if rc, err := b.tokens.parse(req.RefreshToken, tokenTypeRefresh); err == nil {
				b.tokens.revoke(rc)
			}
		}

		if gateway {
			http.SetCookie(w, &http.Cookie{
				Name:     AccessCookie,
				Value:    "",
				Path:     "/",
				HttpOnly: true,
				MaxAge:   -1,
			})
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Logged out"})
	}
}

func (b *Backend) handleRefresh(w http.ResponseWriter, r *http.Request) {
	raw := bearerToken(r)
	if raw == "" {
		writeError(w, http.StatusUnauthorized, "MISSING_TOKEN", "refresh token required")
		return
	}
	claims, err := b.tokens.parse(raw, tokenTypeRefresh)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "INVALID_TOKEN", err.Error())
		return
	}
	u, ok := b.current(claims)
	if !ok {
		writeError(w, http.StatusUnauthorized, "INVALID_TOKEN", "token no longer valid")
		return
	}

	gen, _ := b.users.generation(u.Username)
	access, err := b.tokens.issue(u, gen, tokenTypeAccess)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "TOKEN_ERROR", "failed to issue token")
		return
	}
	writeData(w, http.StatusOK, map[string]any{
		"access_token": access,
		"token_type":   "Bearer",
		"expires_in":   int(b.tokens.accessTTL.Seconds()),
	})
}

func (b *Backend) handleProfile(w http.ResponseWriter, r *http.Request) {
	p := r.Context().Value(ctxKey{}).(*principal)
	writeData(w, http.StatusOK, p.user.view())
}

// requireAccess accepts a bearer access token, or on the gateway the
// session cookie.
func (b *Backend) requireAccess(gateway bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" && gateway {
				if c, err := r.Cookie(AccessCookie); err == nil {
					raw = c.Value
				}
			}
			if raw == "" {
				writeJSON(w, http.StatusUnauthorized, map[string]string{
					"error":   "Unauthorized",
					"message": "missing access token",
				})
				return
			}

			claims, err := b.tokens.parse(raw, tokenTypeAccess)
			if err != nil {
				writeJSON(w, http.StatusUnauthorized, map[string]string{
					"error":   "Unauthorized",
					"message": "Token is invalid or expired",
				})
				return
			}
			u, ok := b.current(claims)
			if !ok {
				writeJSON(w, http.StatusUnauthorized, map[string]string{
					"error":   "Unauthorized",
					"message": "Token is invalid or expired",
				})
				return
			}

			ctx := context.WithValue(r.Context(), ctxKey{}, &principal{user: u, claims: claims})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// current resolves the token's user and rejects tokens older than the last
// Expire.
func (b *Backend) current(claims *tokenClaims) (*user, bool) {
	u, ok := b.users.get(claims.Username)
	if !ok || u.ID != claims.Subject {
		return nil, false
	}
	gen, _ := b.users.generation(claims.Username)
	if gen != claims.Generation {
		return nil, false
	}
	return u, true
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}
