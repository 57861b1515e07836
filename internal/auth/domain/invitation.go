package domain

import "time"

// InvitationStatus is the persisted state of an invitation. Expiry is not a
// stored status: it is evaluated lazily against ExpiresAt, so a pending
// invitation past its deadline simply stops being claimable.
type InvitationStatus string

const (
	// InvitationPending is claimable.
	InvitationPending InvitationStatus = "pending"
	// InvitationProcessing marks an in-flight registration attempt. It is the
	// claim guard: only one concurrent attempt can move pending→processing.
	InvitationProcessing InvitationStatus = "processing"
	// InvitationAccepted is terminal; the account was provisioned.
	InvitationAccepted InvitationStatus = "accepted"
	// InvitationRevoked is terminal; an administrator withdrew the invitation.
	InvitationRevoked InvitationStatus = "revoked"
)

// Invitation authorizes one email address to create an account bound to one
// pre-existing coach profile. Invitations are never physically deleted;
// their status is the audit history.
type Invitation struct {
	ID         string
	Email      string // stored lowercased
	ProfileID  string
	TokenHash  string // fingerprint of the opaque token mailed to the invitee
	Status     InvitationStatus
	CreatedBy  string // admin account id
	CreatedAt  time.Time
	ExpiresAt  time.Time
	AcceptedAt *time.Time
	UpdatedAt  time.Time
}

// Expired reports whether the invitation deadline has passed at the given
// instant. Strict comparison: an invitation expiring exactly now is still
// valid.
func (i Invitation) Expired(now time.Time) bool {
	return now.After(i.ExpiresAt)
}
