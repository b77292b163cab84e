package authbroker

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionToken_IsExpired(t *testing.T) {
	now := time.Now().UTC()

	live := SessionToken{Jurisdiction: "SP", Token: "abc", ExpiresAt: now.Add(5 * time.Minute)}
	assert.False(t, live.IsExpired())

	lapsed := SessionToken{Jurisdiction: "SP", Token: "abc", ExpiresAt: now.Add(-time.Second)}
	assert.True(t, lapsed.IsExpired())
}

func TestTokenExpiry_DeclaredWins(t *testing.T) {
	declared := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, declared, tokenExpiry("opaque-token", &declared))
}

func TestTokenExpiry_JWTExpClaim(t *testing.T) {
	exp := time.Now().Add(42 * time.Minute).Truncate(time.Second).UTC()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": exp.Unix(),
	}).SignedString([]byte("any-key"))
	require.NoError(t, err)

	assert.Equal(t, exp, tokenExpiry(token, nil))
}

func TestTokenExpiry_DefaultLifetime(t *testing.T) {
	got := tokenExpiry("opaque-token", nil)
	assert.WithinDuration(t, time.Now().UTC().Add(DefaultTokenLifetime), got, time.Minute)
}
