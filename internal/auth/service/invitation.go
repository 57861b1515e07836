package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/deckside/deckside/internal/auth/domain"
	"github.com/deckside/deckside/internal/auth/notify"
	"github.com/deckside/deckside/internal/auth/store"
	"github.com/deckside/deckside/pkg/cryptox"
	"github.com/deckside/deckside/pkg/idx"
	"github.com/deckside/deckside/pkg/slogx"
)

var (
	ErrProfileNotFound      = errors.New("profile not found")
	ErrProfileAlreadyLinked = errors.New("profile already linked to an account")
	ErrAccountExists        = errors.New("an account with this email already exists")
	ErrInvitationNotFound   = errors.New("invitation not found")
	ErrInvitationNotPending = errors.New("invitation is no longer pending")
)

// InvitationService owns the administrator-facing invitation lifecycle:
// create, list, resend, revoke. Registration (the invitee side) lives in
// RegistrationService.
type InvitationService struct {
	Store  store.Store
	Tokens *TokenIssuer
	Mailer notify.Mailer
}

// InvitationResult carries the invitation together with the outcome of the
// best-effort email send. EmailError is a user-safe message, never the
// internal error detail.
type InvitationResult struct {
	Invitation domain.Invitation
	EmailSent  bool
	EmailError string
}

// CreateInvitation mints a single-use invitation for email bound to a coach
// profile with the default 48h expiry, then attempts the invitation email.
// The email send failing does not fail the creation; the administrator sees
// emailSent=false and can resend.
func (s *InvitationService) CreateInvitation(
	ctx context.Context,
	email string,
	profileID string,
	createdBy string,
) (InvitationResult, error) {
	return s.CreateInvitationWithTTL(ctx, email, profileID, createdBy, InvitationTTL)
}

// CreateInvitationWithTTL is CreateInvitation with an explicit validity
// window, for administrators that need a shorter or longer one.
func (s *InvitationService) CreateInvitationWithTTL(
	ctx context.Context,
	email string,
	profileID string,
	createdBy string,
	ttl time.Duration,
) (InvitationResult, error) {
	log := slogx.FromContext(ctx)

	email = normalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return InvitationResult{}, err
	}

	// 1. The profile must exist and be unclaimed.
	profile, err := s.Store.Profiles().GetProfileByID(ctx, profileID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return InvitationResult{}, ErrProfileNotFound
		}
		log.Error("failed to fetch profile", slog.Any("error", err))
		return InvitationResult{}, err
	}
	if profile.Linked() {
		return InvitationResult{}, ErrProfileAlreadyLinked
	}

	// 2. Refuse to invite an email that can already log in.
	if _, err := s.Store.Users().GetUserByEmail(ctx, email); err == nil {
		return InvitationResult{}, ErrAccountExists
	} else if !errors.Is(err, store.ErrNotFound) {
		log.Error("failed to check for existing account", slog.Any("error", err))
		return InvitationResult{}, err
	}

	// 3. Generate the opaque token; only its fingerprint is stored.
	token, err := s.Tokens.NewToken()
	if err != nil {
		log.Error("failed to generate invitation token", slog.Any("error", err))
		return InvitationResult{}, err
	}

	inv := domain.Invitation{
		ID:        idx.New().String(),
		Email:     email,
		ProfileID: profileID,
		TokenHash: cryptox.FingerprintToken(token),
		Status:    domain.InvitationPending,
		CreatedBy: createdBy,
		ExpiresAt: s.Tokens.Now().Add(ttl),
	}

	if err := s.Store.Invitations().CreateInvitation(ctx, inv); err != nil {
		log.Error("failed to create invitation",
			slog.String("invitation_id", inv.ID),
			slog.Any("error", err),
		)
		return InvitationResult{}, err
	}

	log.Info("invitation created",
		slog.String("invitation_id", inv.ID),
		slog.String("profile_id", profileID),
		slog.String("created_by", createdBy),
		slog.Time("expires_at", inv.ExpiresAt),
	)

	return s.deliver(ctx, inv, token), nil
}

// ResendInvitation rotates the token of a pending invitation and re-sends
// the email. Rotation is forced by storage of fingerprints only: the
// original token cannot be recovered, so a resend always mints a new one
// with a fresh 48h expiry.
func (s *InvitationService) ResendInvitation(ctx context.Context, id string) (InvitationResult, error) {
	log := slogx.FromContext(ctx)

	inv, err := s.Store.Invitations().GetInvitationByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return InvitationResult{}, ErrInvitationNotFound
		}
		return InvitationResult{}, err
	}
	if inv.Status != domain.InvitationPending {
		return InvitationResult{}, ErrInvitationNotPending
	}

	token, err := s.Tokens.NewToken()
	if err != nil {
		log.Error("failed to generate invitation token", slog.Any("error", err))
		return InvitationResult{}, err
	}

	inv.TokenHash = cryptox.FingerprintToken(token)
	inv.ExpiresAt = s.Tokens.InvitationExpiry()

	if err := s.Store.Invitations().UpdateInvitationToken(ctx, inv.ID, inv.TokenHash, inv.ExpiresAt); err != nil {
		if errors.Is(err, store.ErrInvalidTransition) {
			return InvitationResult{}, ErrInvitationNotPending
		}
		log.Error("failed to rotate invitation token",
			slog.String("invitation_id", inv.ID),
			slog.Any("error", err),
		)
		return InvitationResult{}, err
	}

	log.Info("invitation token rotated", slog.String("invitation_id", inv.ID))

	return s.deliver(ctx, inv, token), nil
}

// RevokeInvitation withdraws a pending invitation. Any other status is an
// explicit rejection so the administrator learns the invitation was already
// used or previously revoked.
func (s *InvitationService) RevokeInvitation(ctx context.Context, id string) error {
	err := s.Store.Invitations().RevokeInvitation(ctx, id)
	switch {
	case err == nil:
		slogx.FromContext(ctx).Info("invitation revoked", slog.String("invitation_id", id))
		return nil
	case errors.Is(err, store.ErrNotFound):
		return ErrInvitationNotFound
	case errors.Is(err, store.ErrInvalidTransition):
		return ErrInvitationNotPending
	default:
		return err
	}
}

// ListInvitations returns every invitation, newest first.
func (s *InvitationService) ListInvitations(ctx context.Context) ([]domain.Invitation, error) {
	return s.Store.Invitations().ListInvitations(ctx)
}

// deliver attempts the invitation email; failure is downgraded to a flag on
// the result because the invitation record is already durable.
func (s *InvitationService) deliver(ctx context.Context, inv domain.Invitation, token string) InvitationResult {
	res := InvitationResult{Invitation: inv}

	if err := s.Mailer.SendInvitation(ctx, inv.Email, token, inv.ExpiresAt); err != nil {
		slogx.FromContext(ctx).Warn("invitation email failed",
			slog.String("invitation_id", inv.ID),
			slog.Any("error", err),
		)
		res.EmailError = "Invitation created, but the email could not be sent. Use resend to try again."
		return res
	}

	res.EmailSent = true
	return res
}
