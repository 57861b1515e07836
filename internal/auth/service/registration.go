package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/deckside/deckside/internal/auth/domain"
	"github.com/deckside/deckside/internal/auth/notify"
	"github.com/deckside/deckside/internal/auth/store"
	"github.com/deckside/deckside/pkg/cryptox"
	"github.com/deckside/deckside/pkg/idx"
	"github.com/deckside/deckside/pkg/slogx"
)

var (
	ErrInvalidInviteToken = errors.New("invitation token is invalid")
	ErrInviteExpired      = errors.New("invitation has expired")
	ErrEmailMismatch      = errors.New("email does not match the invitation")
	// ErrInviteUsed: the invitation already produced an account; the invitee
	// should log in instead of registering again.
	ErrInviteUsed = errors.New("invitation has already been used")
	// ErrInviteUnavailable: revoked or expired under the caller's feet;
	// only an administrator can help.
	ErrInviteUnavailable = errors.New("invitation is no longer available")
	// ErrRegistrationRetry: a previous attempt died mid-flight and its claim
	// has now been released; the caller should simply retry.
	ErrRegistrationRetry  = errors.New("previous registration attempt failed, please retry")
	ErrProfileMissing     = errors.New("invited profile no longer exists")
	ErrRegistrationFailed = errors.New("registration failed")
)

// RegistrationService orchestrates the atomic account-provisioning workflow:
// validate, claim the invitation, hash the password, then commit account +
// profile link + invitation acceptance + verification token as one
// transaction, with a compensating revert on any failure after the claim.
type RegistrationService struct {
	Store  store.Store
	Tokens *TokenIssuer
	Mailer notify.Mailer

	// AutoVerify creates accounts pre-verified and active. Only enabled in
	// non-production environments where no real mailbox exists.
	AutoVerify bool
}

// RegisterResult reports the provisioned account and the outcome of the
// best-effort verification email.
type RegisterResult struct {
	UserID    string
	EmailSent bool
	Message   string
}

// Register provisions an account from a single-use invitation.
func (s *RegistrationService) Register(
	ctx context.Context,
	inviteToken string,
	email string,
	password string,
	passwordConfirm string,
) (RegisterResult, error) {
	log := slogx.FromContext(ctx)

	// 1. Reject malformed input before touching storage.
	if err := validatePassword(password, passwordConfirm); err != nil {
		return RegisterResult{}, err
	}
	email = normalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return RegisterResult{}, err
	}

	// 2. Resolve the invitation by token fingerprint.
	inv, err := s.Store.Invitations().GetInvitationByTokenHash(ctx, cryptox.FingerprintToken(inviteToken))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return RegisterResult{}, ErrInvalidInviteToken
		}
		log.Error("failed to fetch invitation", slog.Any("error", err))
		return RegisterResult{}, err
	}

	// 3. Lazy expiry check, before any state change.
	if s.Tokens.IsExpired(inv.ExpiresAt) {
		return RegisterResult{}, ErrInviteExpired
	}

	// 4. The submitted email must match the invitation. Checked before the
	// claim so a mismatched request never moves the invitation to
	// processing.
	if email != normalizeEmail(inv.Email) {
		return RegisterResult{}, ErrEmailMismatch
	}

	// 5. Claim: the compare-and-swap that makes provisioning exactly-once
	// under concurrent or retried requests.
	if err := s.Store.Invitations().ClaimInvitation(ctx, inv.ID); err != nil {
		if errors.Is(err, store.ErrClaimConflict) {
			return RegisterResult{}, s.resolveClaimConflict(ctx, inv.ID)
		}
		if errors.Is(err, store.ErrNotFound) {
			return RegisterResult{}, ErrInvalidInviteToken
		}
		log.Error("failed to claim invitation",
			slog.String("invitation_id", inv.ID),
			slog.Any("error", err),
		)
		return RegisterResult{}, err
	}

	// The invitation is now in processing. Every exit path below must leave
	// it in a well-defined status: accepted on success, pending on failure.
	result, err := s.provision(ctx, inv, email, password)
	if err != nil {
		// Safe to call unconditionally: reverting is a no-op once the
		// transaction committed (status would be accepted, not processing).
		if revertErr := s.Store.Invitations().RevertInvitationToPending(ctx, inv.ID); revertErr != nil {
			log.Error("failed to revert invitation after registration failure",
				slog.String("invitation_id", inv.ID),
				slog.Any("error", revertErr),
			)
		}
		return RegisterResult{}, err
	}

	return result, nil
}

// resolveClaimConflict re-reads the invitation after a failed claim and maps
// its actual current status to a precise caller-facing error.
func (s *RegistrationService) resolveClaimConflict(ctx context.Context, invitationID string) error {
	log := slogx.FromContext(ctx)

	inv, err := s.Store.Invitations().GetInvitationByID(ctx, invitationID)
	if err != nil {
		log.Error("failed to re-read invitation after claim conflict",
			slog.String("invitation_id", invitationID),
			slog.Any("error", err),
		)
		return ErrRegistrationFailed
	}

	switch inv.Status {
	case domain.InvitationAccepted:
		return ErrInviteUsed
	case domain.InvitationRevoked:
		return ErrInviteUnavailable
	case domain.InvitationProcessing:
		// A prior attempt crashed between claim and revert. Release the
		// claim so the next attempt can succeed.
		if err := s.Store.Invitations().RevertInvitationToPending(ctx, inv.ID); err != nil {
			log.Error("failed to release stuck invitation claim",
				slog.String("invitation_id", inv.ID),
				slog.Any("error", err),
			)
			return ErrRegistrationFailed
		}
		log.Warn("released invitation stuck in processing",
			slog.String("invitation_id", inv.ID),
		)
		return ErrRegistrationRetry
	case domain.InvitationPending:
		if inv.Expired(s.Tokens.Now()) {
			return ErrInviteUnavailable
		}
		// Pending again means a concurrent attempt claimed and reverted
		// between our claim and this read.
		return ErrRegistrationRetry
	default:
		log.Error("invitation in unknown status after claim conflict",
			slog.String("invitation_id", inv.ID),
			slog.String("status", string(inv.Status)),
		)
		return ErrRegistrationFailed
	}
}

// provision runs the slow pre-checks outside any transaction, then commits
// the multi-record mutation as one unit. On error the caller reverts the
// invitation claim.
func (s *RegistrationService) provision(
	ctx context.Context,
	inv domain.Invitation,
	email string,
	password string,
) (RegisterResult, error) {
	log := slogx.FromContext(ctx)

	// 6a. The email must not already have an account.
	if _, err := s.Store.Users().GetUserByEmail(ctx, email); err == nil {
		return RegisterResult{}, ErrAccountExists
	} else if !errors.Is(err, store.ErrNotFound) {
		log.Error("failed to check for existing account", slog.Any("error", err))
		return RegisterResult{}, err
	}

	// 6b. The linked profile must still exist.
	profile, err := s.Store.Profiles().GetProfileByID(ctx, inv.ProfileID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return RegisterResult{}, ErrProfileMissing
		}
		log.Error("failed to fetch profile", slog.Any("error", err))
		return RegisterResult{}, err
	}

	// 6c. Hash the password now: it is CPU-expensive and must never run
	// while transaction locks are held.
	passwordHash, err := cryptox.HashPassword(password)
	if err != nil {
		log.Error("failed to hash password", slog.Any("error", err))
		return RegisterResult{}, err
	}

	verifyToken, err := s.Tokens.NewToken()
	if err != nil {
		log.Error("failed to generate verification token", slog.Any("error", err))
		return RegisterResult{}, err
	}

	now := s.Tokens.Now()
	user := domain.User{
		ID:            idx.New().String(),
		Email:         email,
		PasswordHash:  passwordHash,
		EmailVerified: s.AutoVerify,
		Status:        domain.UserStatusPending,
		Role:          domain.RoleCoach,
		FirstName:     profile.FirstName,
		LastName:      profile.LastName,
	}
	if s.AutoVerify {
		user.Status = domain.UserStatusActive
	}

	verification := domain.VerificationToken{
		ID:        idx.New().String(),
		UserID:    user.ID,
		TokenHash: cryptox.FingerprintToken(verifyToken),
		ExpiresAt: s.Tokens.VerificationExpiry(),
	}

	// 7. One atomic unit: account, profile back-reference, invitation
	// acceptance, verification token. Any failure rolls the whole thing
	// back and the outer handler reverts the claim.
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Users().CreateUser(ctx, user); err != nil {
			return err
		}
		if err := tx.Profiles().LinkProfileUser(ctx, profile.ID, user.ID); err != nil {
			return err
		}
		if err := tx.Invitations().MarkInvitationAccepted(ctx, inv.ID, now); err != nil {
			return err
		}
		return tx.VerificationTokens().CreateVerificationToken(ctx, verification)
	})
	if err != nil {
		log.Error("provisioning transaction failed",
			slog.String("invitation_id", inv.ID),
			slog.Any("error", err),
		)
		if errors.Is(err, store.ErrAlreadyExists) {
			return RegisterResult{}, ErrAccountExists
		}
		if errors.Is(err, store.ErrProfileTaken) {
			return RegisterResult{}, ErrProfileMissing
		}
		return RegisterResult{}, ErrRegistrationFailed
	}

	log.Info("account provisioned",
		slog.String("user_id", user.ID),
		slog.String("invitation_id", inv.ID),
		slog.String("profile_id", profile.ID),
		slog.Bool("auto_verified", s.AutoVerify),
	)

	// 8. Best-effort verification email. The account and invitation state
	// are already committed; a send failure is reported, never unwound.
	result := RegisterResult{UserID: user.ID}
	switch {
	case s.AutoVerify:
		result.Message = "Account created and automatically verified."
	default:
		if err := s.Mailer.SendVerification(ctx, email, verifyToken, verification.ExpiresAt); err != nil {
			log.Warn("verification email failed",
				slog.String("user_id", user.ID),
				slog.Any("error", err),
			)
			result.Message = "Account created, but the verification email could not be sent. Request a new one later."
		} else {
			result.EmailSent = true
			result.Message = "Account created. Check your email to verify your address."
		}
	}

	return result, nil
}
