package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/deckside/deckside/internal/auth/domain"
	"github.com/deckside/deckside/internal/auth/store"
	"github.com/deckside/deckside/pkg/cryptox"
	"github.com/deckside/deckside/pkg/idx"
)

// ErrBootstrapPassword rejects a configured bootstrap password that would not
// pass normal registration validation.
var ErrBootstrapPassword = errors.New("bootstrap password does not meet password requirements")

// BootstrapService seeds the first administrator account on an empty
// database. Without it there is no one who can issue invitations.
type BootstrapService struct {
	Store    store.Store
	Email    string
	Password string
}

// EnsureAdmin creates a verified, active admin account when the user table
// is empty and bootstrap credentials are configured. It is a no-op
// otherwise, so it is safe to run on every startup.
func (s *BootstrapService) EnsureAdmin(ctx context.Context, logger *slog.Logger) error {
	if s.Email == "" || s.Password == "" {
		return nil
	}

	count, err := s.Store.Users().CountUsers(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	if err := validatePassword(s.Password, s.Password); err != nil {
		return ErrBootstrapPassword
	}

	hash, err := cryptox.HashPassword(s.Password)
	if err != nil {
		return err
	}

	admin := domain.User{
		ID:            idx.New().String(),
		Email:         normalizeEmail(s.Email),
		PasswordHash:  hash,
		EmailVerified: true,
		Status:        domain.UserStatusActive,
		Role:          domain.RoleAdmin,
	}

	if err := s.Store.Users().CreateUser(ctx, admin); err != nil {
		// A concurrent replica may have won the race; that is fine.
		if errors.Is(err, store.ErrAlreadyExists) {
			return nil
		}
		return err
	}

	logger.Info("bootstrap admin account created",
		slog.String("user_id", admin.ID),
		slog.String("email", admin.Email),
	)
	return nil
}
