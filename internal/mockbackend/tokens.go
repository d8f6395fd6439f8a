package mockbackend

import (
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

type tokenClaims struct {
	Username   string `json:"username"`
	Role       string `json:"role"`
	Type       string `json:"type"`
	Generation int    `json:"gen"`
	jwt.RegisteredClaims
}

type tokenIssuer struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time

	mu      sync.Mutex
	revoked map[string]time.Time
}

func (ti *tokenIssuer) issue(u *user, generation int, tokenType string) (string, error) {
	ttl := ti.accessTTL
	if tokenType == tokenTypeRefresh {
		ttl = ti.refreshTTL
	}
	now := ti.now()
	claims := tokenClaims{
		Username:   u.Username,
		Role:       u.role(),
		Type:       tokenType,
		Generation: generation,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(ti.secret)
}

// parse verifies signature, expiry, type and revocation.
func (ti *tokenIssuer) parse(raw, tokenType string) (*tokenClaims, error) {
	claims := &tokenClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return ti.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(ti.now))
	if err != nil {
		return nil, err
	}
	if claims.Type != tokenType {
		return nil, fmt.Errorf("expected %s token, got %q", tokenType, claims.Type)
	}
	if ti.isRevoked(claims.ID) {
		return nil, fmt.Errorf("token has been revoked")
	}
	return claims, nil
}

func (ti *tokenIssuer) revoke(claims *tokenClaims) {
	ti.mu.Lock()
	defer ti.mu.Unlock()
	var exp time.Time
	if claims.ExpiresAt != nil {
		exp = claims.ExpiresAt.Time
	}
	ti.revoked[claims.ID] = exp

	// drop entries whose tokens would fail expiry anyway
	now := ti.now()
	for id, e := range ti.revoked {
		if !e.IsZero() && now.After(e) {
			delete(ti.revoked, id)
		}
	}
}

func (ti *tokenIssuer) isRevoked(id string) bool {
	ti.mu.Lock()
	defer ti.mu.Unlock()
	_, ok := ti.revoked[id]
	return ok
}
