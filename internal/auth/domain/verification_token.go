package domain

import "time"

// VerificationToken is single-use proof of email ownership. It is created in
// the provisioning transaction and deleted on successful verification or when
// found expired.
type VerificationToken struct {
	ID        string
	UserID    string
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
}
