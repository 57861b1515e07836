package domain

import "time"

// UserStatus tracks whether an account may log in.
type UserStatus string

const (
	// UserStatusPending is a freshly provisioned account awaiting email
	// verification.
	UserStatusPending UserStatus = "pending"
	// UserStatusActive is a verified account allowed to authenticate.
	UserStatusActive UserStatus = "active"
)

// Role is the access level granted to an account.
type Role string

const (
	RoleCoach Role = "coach"
	RoleAdmin Role = "admin"
)

// User is a login identity. Accounts are created exactly once per accepted
// invitation and only deleted by explicit administrative action.
type User struct {
	ID            string
	Email         string // stored lowercased; compared case-insensitively
	PasswordHash  string // argon2id PHC string
	EmailVerified bool
	Status        UserStatus
	Role          Role
	FirstName     string
	LastName      string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// CanAuthenticate reports whether the account may establish a session.
func (u User) CanAuthenticate() bool {
	return u.EmailVerified && u.Status == UserStatusActive
}
