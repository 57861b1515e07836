package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/deckside/deckside/internal/auth/store"
	"github.com/deckside/deckside/pkg/cryptox"
	"github.com/deckside/deckside/pkg/slogx"
)

// ErrVerificationInvalid covers unknown and expired verification tokens; the
// caller cannot tell the difference and does not need to.
var ErrVerificationInvalid = errors.New("verification token is invalid or expired")

// VerificationService consumes single-use email verification tokens. This is
// the only path (besides the non-production auto-verify) that activates an
// account.
type VerificationService struct {
	Store  store.Store
	Tokens *TokenIssuer
}

// VerifyEmail marks the token's account verified and active, consuming the
// token. An expired token is deleted on detection and reported invalid.
func (s *VerificationService) VerifyEmail(ctx context.Context, token string) error {
	log := slogx.FromContext(ctx)

	record, err := s.Store.VerificationTokens().GetVerificationTokenByHash(ctx, cryptox.FingerprintToken(token))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrVerificationInvalid
		}
		log.Error("failed to fetch verification token", slog.Any("error", err))
		return err
	}

	if s.Tokens.IsExpired(record.ExpiresAt) {
		if err := s.Store.VerificationTokens().DeleteVerificationToken(ctx, record.ID); err != nil {
			log.Warn("failed to delete expired verification token", slog.Any("error", err))
		}
		return ErrVerificationInvalid
	}

	// Activation and consumption are one unit so a crash cannot leave a
	// verified account with a live reusable token.
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Users().MarkUserVerified(ctx, record.UserID); err != nil {
			return err
		}
		return tx.VerificationTokens().DeleteVerificationToken(ctx, record.ID)
	})
	if err != nil {
		log.Error("failed to verify account",
			slog.String("user_id", record.UserID),
			slog.Any("error", err),
		)
		return err
	}

	log.Info("email verified", slog.String("user_id", record.UserID))
	return nil
}
