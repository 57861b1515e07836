package notify

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func newTestSource(now *time.Time) *ServiceTokenSource {
	return &ServiceTokenSource{
		Secret:   []byte("test-secret"),
		Issuer:   "deckside-auth",
		Audience: "deckside-mailer",
		TTL:      5 * time.Minute,
		Cache:    &TokenCache{},
		Now:      func() time.Time { return *now },
	}
}

func TestServiceTokenSourceMintsValidToken(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	src := newTestSource(&now)

	signed, err := src.Token()
	require.NoError(t, err)
	require.NotEmpty(t, signed)

	parsed, err := jwt.ParseWithClaims(signed, &jwt.RegisteredClaims{}, func(tok *jwt.Token) (any, error) {
		return []byte("test-secret"), nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithTimeFunc(func() time.Time { return now }))
	require.NoError(t, err)

	claims := parsed.Claims.(*jwt.RegisteredClaims)
	require.Equal(t, "deckside-auth", claims.Issuer)
	require.Equal(t, jwt.ClaimStrings{"deckside-mailer"}, claims.Audience)
	// NumericDate round-trips through Unix seconds, so compare instants
	// rather than time.Time values.
	require.True(t, claims.ExpiresAt.Time.Equal(now.Add(5*time.Minute)))
}

func TestServiceTokenSourceReusesCachedToken(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	src := newTestSource(&now)

	first, err := src.Token()
	require.NoError(t, err)

	// Well inside the TTL the cached token is served as-is.
	now = now.Add(time.Minute)
	second, err := src.Token()
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestServiceTokenSourceRenewsNearExpiry(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	src := newTestSource(&now)

	first, err := src.Token()
	require.NoError(t, err)

	// Inside the renewal skew the cached token may arrive at the relay
	// already dead, so a fresh one is minted.
	now = now.Add(5*time.Minute - renewSkew + time.Second)
	second, err := src.Token()
	require.NoError(t, err)
	require.NotEqual(t, first, second)
}

func TestTokenCache(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	cache := &TokenCache{}

	_, ok := cache.Get(now)
	require.False(t, ok, "empty cache has nothing to serve")

	cache.Put("signed-token", now.Add(time.Hour))

	got, ok := cache.Get(now)
	require.True(t, ok)
	require.Equal(t, "signed-token", got)

	_, ok = cache.Get(now.Add(time.Hour))
	require.False(t, ok, "expired entries are not served")
}
