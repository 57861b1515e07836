package store

import (
	"context"
	"errors"
	"time"

	"github.com/deckside/deckside/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")

	// ErrClaimConflict means a conditional status transition did not match
	// the row's current state. The caller must re-read the row to find out
	// what actually happened.
	ErrClaimConflict = errors.New("store: claim conflict")

	// ErrInvalidTransition means a status change was attempted from a state
	// it is not allowed from (e.g. revoking an accepted invitation).
	ErrInvalidTransition = errors.New("store: invalid status transition")

	// ErrProfileTaken means a profile is already linked to a different
	// account. Linking is idempotent only for the same account.
	ErrProfileTaken = errors.New("store: profile linked to another account")
)

// Store is the root data access interface. Concrete drivers (sqlite)
// implement this. It exposes sub-repositories to keep concerns tidy and
// testable, and to make it obvious when code would accidentally nest
// transactions.
type Store interface {
	Users() Users
	Profiles() Profiles
	Invitations() Invitations
	VerificationTokens() VerificationTokens
	Sessions() Sessions

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction: commit if fn returns nil,
	// rollback otherwise. This is the recommended way to run the
	// provisioning transaction.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds
// Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	// CreateUser inserts a new user (id is provided by app via ULID).
	// Returns ErrAlreadyExists when the email is taken, compared
	// case-insensitively.
	CreateUser(ctx context.Context, u domain.User) error

	// GetUserByID returns a user by id.
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByEmail looks a user up by email, case-insensitively.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// MarkUserVerified flips email_verified and activates the account.
	MarkUserVerified(ctx context.Context, userID string) error

	// CountUsers returns the total number of accounts (bootstrap check).
	CountUsers(ctx context.Context) (int64, error)
}

type Profiles interface {
	// CreateProfile inserts a coach profile. Full profile CRUD lives in the
	// club management service; this exists for provisioning and seeding.
	CreateProfile(ctx context.Context, p domain.Profile) error

	// GetProfileByID returns a profile by id.
	GetProfileByID(ctx context.Context, id string) (domain.Profile, error)

	// LinkProfileUser sets the profile's account back-reference. The update
	// is conditional: it succeeds when the profile is unlinked or already
	// linked to this same account, and fails with ErrProfileTaken otherwise.
	LinkProfileUser(ctx context.Context, profileID, userID string) error
}

type Invitations interface {
	// CreateInvitation writes a new invitation in pending status
	// (token_hash is the SHA-256 fingerprint of the opaque token).
	CreateInvitation(ctx context.Context, inv domain.Invitation) error

	// GetInvitationByID returns an invitation by id.
	GetInvitationByID(ctx context.Context, id string) (domain.Invitation, error)

	// GetInvitationByTokenHash returns an invitation by token fingerprint.
	GetInvitationByTokenHash(ctx context.Context, hash string) (domain.Invitation, error)

	// GetLatestInvitationByEmail returns the most recently created
	// invitation for an email, case-insensitively.
	GetLatestInvitationByEmail(ctx context.Context, email string) (domain.Invitation, error)

	// ListInvitations returns all invitations, newest first.
	ListInvitations(ctx context.Context) ([]domain.Invitation, error)

	// ClaimInvitation is the single-row compare-and-swap guarding
	// registration: pending→processing only if the current status is
	// exactly pending. Fails with ErrClaimConflict otherwise, or
	// ErrNotFound when the row does not exist. The guarantee holds across
	// processes because the condition is enforced by the storage layer.
	ClaimInvitation(ctx context.Context, id string) error

	// RevertInvitationToPending undoes a claim: processing→pending. It is a
	// no-op (not an error) when the row is not in processing, which makes
	// rollback idempotent and safe to call from every error path.
	RevertInvitationToPending(ctx context.Context, id string) error

	// MarkInvitationAccepted transitions processing→accepted with the
	// acceptance timestamp. Only called inside the provisioning
	// transaction; fails with ErrInvalidTransition if the row is not in
	// processing so a torn workflow aborts the transaction.
	MarkInvitationAccepted(ctx context.Context, id string, acceptedAt time.Time) error

	// RevokeInvitation transitions pending→revoked. Fails with
	// ErrInvalidTransition from any other status.
	RevokeInvitation(ctx context.Context, id string) error

	// UpdateInvitationToken rotates the token fingerprint and expiry of a
	// pending invitation (resend). Fails with ErrInvalidTransition when the
	// invitation is no longer pending.
	UpdateInvitationToken(ctx context.Context, id, tokenHash string, expiresAt time.Time) error
}

type VerificationTokens interface {
	// CreateVerificationToken stores a new verification token record.
	CreateVerificationToken(ctx context.Context, t domain.VerificationToken) error

	// GetVerificationTokenByHash returns the token by fingerprint.
	GetVerificationTokenByHash(ctx context.Context, hash string) (domain.VerificationToken, error)

	// DeleteVerificationToken removes a token after use or on expiry.
	DeleteVerificationToken(ctx context.Context, id string) error

	// DeleteExpiredVerificationTokens is housekeeping.
	DeleteExpiredVerificationTokens(ctx context.Context) error
}

type Sessions interface {
	// CreateSession stores a new server-side session.
	CreateSession(ctx context.Context, s domain.Session) error

	// GetSessionByID returns the session keyed by token fingerprint.
	GetSessionByID(ctx context.Context, id string) (domain.Session, error)

	// TouchSession extends the rolling expiry.
	TouchSession(ctx context.Context, id string, expiresAt time.Time) error

	// DeleteSession destroys one session; deleting a missing session is not
	// an error (logout is idempotent).
	DeleteSession(ctx context.Context, id string) error

	// DeleteUserSessions destroys every session belonging to an account.
	DeleteUserSessions(ctx context.Context, userID string) error

	// DeleteExpiredSessions is housekeeping.
	DeleteExpiredSessions(ctx context.Context) error
}
