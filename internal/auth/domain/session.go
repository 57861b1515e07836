package domain

import "time"

// AuthMethod records how a session was established.
type AuthMethod string

const AuthMethodPassword AuthMethod = "password"

// Session is server-held proof of an authenticated account. The client only
// ever sees the opaque token; ID is that token's fingerprint. Sessions are a
// pointer to account state, never a source of truth: status checks re-fetch
// the account and destroy the session if the account went away or was
// deactivated.
type Session struct {
	ID        string // fingerprint of the opaque session token
	UserID    string
	Email     string
	Method    AuthMethod
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the session is past its rolling deadline.
func (s Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
