// Package synctoken manages source-connection credentials for the duration
// of a sync run (SPEC_FULL §4.7): expiry tracking, opportunistic refresh
// within a skew window, single-flight refresh serialization with retry and
// a circuit breaker around each refresh, and a rate-limited HTTP client
// wrapper that re-authenticates once after a 401.
package synctoken

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token is a credential pair plus its known expiry.
type Token struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// NeedsRefresh reports whether fewer than skew seconds remain before
// ExpiresAt (spec.md §4.7's REFRESH_SKEW check). A zero ExpiresAt means the
// expiry is unknown and a refresh is always due.
func (t *Token) NeedsRefresh(skew time.Duration, now time.Time) bool {
	if t == nil || t.AccessToken == "" {
		return true
	}
	if t.ExpiresAt.IsZero() {
		return true
	}
	return t.ExpiresAt.Sub(now) < skew
}

// ExpiryFromJWT reads the exp claim off a JWT access token without
// verifying its signature — the manager trusts the issuing OAuth provider
// that handed it the token and only needs the expiry for scheduling, not
// for authorization.
func ExpiryFromJWT(accessToken string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(accessToken, claims); err != nil {
		return time.Time{}, false
	}

	expVal, ok := claims["exp"]
	if !ok {
		return time.Time{}, false
	}

	switch exp := expVal.(type) {
	case float64:
		return time.Unix(int64(exp), 0), true
	case int64:
		return time.Unix(exp, 0), true
	default:
		return time.Time{}, false
	}
}
