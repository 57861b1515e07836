package service

import (
	"time"

	"github.com/deckside/deckside/pkg/cryptox"
)

// Token lifetimes.
const (
	InvitationTTL   = 48 * time.Hour
	VerificationTTL = 24 * time.Hour
	SessionTTL      = 30 * 24 * time.Hour
)

// TokenIssuer produces opaque tokens and their expiry timestamps. It has no
// persisted state; its only inputs are randomness and the clock, and the
// clock is injectable for tests.
type TokenIssuer struct {
	Clock func() time.Time // defaults to time.Now
}

func (ti *TokenIssuer) Now() time.Time {
	if ti.Clock != nil {
		return ti.Clock()
	}
	return time.Now()
}

// NewToken returns a fresh 256-bit URL-safe token.
func (ti *TokenIssuer) NewToken() (string, error) {
	return cryptox.GenerateToken(cryptox.TokenSize256)
}

func (ti *TokenIssuer) InvitationExpiry() time.Time {
	return ti.Now().Add(InvitationTTL)
}

func (ti *TokenIssuer) VerificationExpiry() time.Time {
	return ti.Now().Add(VerificationTTL)
}

func (ti *TokenIssuer) SessionExpiry() time.Time {
	return ti.Now().Add(SessionTTL)
}

// IsExpired reports whether t is strictly in the past.
func (ti *TokenIssuer) IsExpired(t time.Time) bool {
	return ti.Now().After(t)
}
