package session

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func TestParseTokenClaims(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	token := signToken(t, jwt.MapClaims{
		"sub":      "42",
		"username": "alice",
		"role":     "admin",
		"type":     "access",
		"exp":      exp.Unix(),
	})

	claims, err := ParseTokenClaims(token)
	require.NoError(t, err)
	assert.Equal(t, "42", claims.Subject)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "admin", claims.Role)
	assert.Equal(t, "access", claims.Type)
	assert.True(t, exp.Equal(claims.ExpiresAt))
}

func TestParseTokenClaimsFallbackUsername(t *testing.T) {
	token := signToken(t, jwt.MapClaims{"preferred_username": "bob"})

	claims, err := ParseTokenClaims(token)
	require.NoError(t, err)
	assert.Equal(t, "bob", claims.Username)
	assert.True(t, claims.ExpiresAt.IsZero())
}

func TestParseTokenClaimsIgnoresSignature(t *testing.T) {
	// expired tokens still parse: the result is display data only
	token := signToken(t, jwt.MapClaims{
		"username": "alice",
		"exp":      time.Now().Add(-time.Hour).Unix(),
	})

	claims, err := ParseTokenClaims(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Username)
}

func TestParseTokenClaimsMalformed(t *testing.T) {
	_, err := ParseTokenClaims("not-a-jwt")
	assert.Error(t, err)
}
