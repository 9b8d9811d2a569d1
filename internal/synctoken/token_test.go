package synctoken

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestNeedsRefreshNilToken(t *testing.T) {
	var tok *Token
	require.True(t, tok.NeedsRefresh(60*time.Second, time.Now()))
}

func TestNeedsRefreshZeroExpiry(t *testing.T) {
	tok := &Token{AccessToken: "a"}
	require.True(t, tok.NeedsRefresh(60*time.Second, time.Now()))
}

func TestNeedsRefreshWithinSkewWindow(t *testing.T) {
	now := time.Now()
	tok := &Token{AccessToken: "a", ExpiresAt: now.Add(30 * time.Second)}
	require.True(t, tok.NeedsRefresh(60*time.Second, now))
}

func TestNeedsRefreshOutsideSkewWindow(t *testing.T) {
	now := time.Now()
	tok := &Token{AccessToken: "a", ExpiresAt: now.Add(5 * time.Minute)}
	require.False(t, tok.NeedsRefresh(60*time.Second, now))
}

func TestExpiryFromJWT(t *testing.T) {
	exp := time.Now().Add(time.Hour).Unix()
	claims := jwt.MapClaims{"exp": float64(exp), "sub": "user-1"}
	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, claims)
	signed, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	got, ok := ExpiryFromJWT(signed)
	require.True(t, ok)
	require.Equal(t, exp, got.Unix())
}

func TestExpiryFromJWTMalformedToken(t *testing.T) {
	_, ok := ExpiryFromJWT("not-a-jwt")
	require.False(t, ok)
}
