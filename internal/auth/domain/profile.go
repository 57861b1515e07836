package domain

import "time"

// Profile is a coach record managed by the club administration tooling. It
// exists before any account does; an invitation later binds one account to
// it. UserID is empty until a registration claims the profile.
type Profile struct {
	ID        string
	FirstName string
	LastName  string
	Email     string
	UserID    string // account back-reference, empty until linked
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Linked reports whether an account already claimed this profile.
func (p Profile) Linked() bool { return p.UserID != "" }
