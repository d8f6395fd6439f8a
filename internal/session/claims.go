package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/felixgeelhaar/portal/internal/errors"
)

// TokenClaims is the display data readable from an access token.
type TokenClaims struct {
	Subject   string
	Username  string
	Role      string
	Type      string
	ExpiresAt time.Time
}

// ParseTokenClaims reads claims from a JWT without verifying its signature.
// The client has no key to verify with; the result is for display and record
// expiry only and must never gate access.
func ParseTokenClaims(token string) (*TokenClaims, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, errors.Wrap(errors.ErrCodeMalformedResponse, errors.KindTransport, "failed to parse access token", err)
	}

	tc := &TokenClaims{
		Username: stringClaim(claims, "username", "preferred_username", "name"),
		Role:     stringClaim(claims, "role"),
		Type:     stringClaim(claims, "type"),
	}
	if sub, err := claims.GetSubject(); err == nil {
		tc.Subject = sub
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		tc.ExpiresAt = exp.Time
	}
	return tc, nil
}

func stringClaim(claims jwt.MapClaims, keys ...string) string {
	for _, k := range keys {
		if v, ok := claims[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
