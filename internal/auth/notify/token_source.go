package notify

import (
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// renewSkew is how long before expiry a cached token stops being served, so
// a token never arrives at the relay already dead.
const renewSkew = 30 * time.Second

// TokenCache holds one signed token and its expiry. It is an explicit
// injected value rather than package state so a ServiceTokenSource can be
// tested with a controllable clock.
type TokenCache struct {
	mu     sync.Mutex
	value  string
	expiry time.Time
}

// Get returns the cached token if it is still comfortably valid at now.
func (c *TokenCache) Get(now time.Time) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.value == "" || now.After(c.expiry.Add(-renewSkew)) {
		return "", false
	}
	return c.value, true
}

// Put stores a freshly signed token.
func (c *TokenCache) Put(value string, expiry time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = value
	c.expiry = expiry
}

// ServiceTokenSource mints short-lived HS256 tokens identifying this service
// to the mail relay, reusing a cached token until it nears expiry.
type ServiceTokenSource struct {
	Secret   []byte
	Issuer   string
	Audience string
	TTL      time.Duration
	Cache    *TokenCache
	Now      func() time.Time // defaults to time.Now
}

func (s *ServiceTokenSource) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Token returns a valid signed service token, minting a new one only when
// the cached token is missing or about to expire.
func (s *ServiceTokenSource) Token() (string, error) {
	now := s.now()

	if s.Cache != nil {
		if tok, ok := s.Cache.Get(now); ok {
			return tok, nil
		}
	}

	expiry := now.Add(s.TTL)
	claims := jwt.RegisteredClaims{
		Issuer:    s.Issuer,
		Subject:   s.Issuer,
		Audience:  jwt.ClaimStrings{s.Audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiry),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.Secret)
	if err != nil {
		return "", err
	}

	if s.Cache != nil {
		s.Cache.Put(signed, expiry)
	}
	return signed, nil
}
