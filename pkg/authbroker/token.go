package authbroker

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTokenLifetime is assumed when a portal declares no expiry and the
// token carries none. Conservative: portals time sessions out well above this.
const DefaultTokenLifetime = 15 * time.Minute

// SessionToken is an ephemeral credential scoped to one jurisdiction. It lives
// for a single operation and is never persisted.
type SessionToken struct {
	Jurisdiction string
	Token        string
	ExpiresAt    time.Time
}

// IsExpired reports whether the token has lapsed.
func (t SessionToken) IsExpired() bool {
	return time.Now().UTC().After(t.ExpiresAt)
}

// tokenExpiry resolves a token's expiry: the portal's declared value wins,
// then a JWT exp claim if the token happens to be one, then the conservative
// default. Several portals return bare JWTs without an expires_at field.
func tokenExpiry(token string, declared *time.Time) time.Time {
	if declared != nil && !declared.IsZero() {
		return declared.UTC()
	}

	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err == nil {
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			return exp.Time.UTC()
		}
	}

	return time.Now().UTC().Add(DefaultTokenLifetime)
}
