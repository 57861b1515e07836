package sqlite

import (
	"context"
	"time"

	"github.com/deckside/deckside/internal/auth/domain"
	"github.com/deckside/deckside/internal/auth/store"
)

type verificationTokensRepo struct {
	q querier
}

func (r *verificationTokensRepo) CreateVerificationToken(ctx context.Context, t domain.VerificationToken) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO verification_tokens (id, user_id, token_hash, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		t.ID, t.UserID, t.TokenHash, t.ExpiresAt, time.Now().UTC(),
	)
	if err != nil && isUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
	return err
}

func (r *verificationTokensRepo) GetVerificationTokenByHash(ctx context.Context, hash string) (domain.VerificationToken, error) {
	var t domain.VerificationToken
	err := r.q.QueryRowContext(ctx, `
		SELECT id, user_id, token_hash, expires_at, created_at
		FROM verification_tokens WHERE token_hash = ?`, hash,
	).Scan(&t.ID, &t.UserID, &t.TokenHash, &t.ExpiresAt, &t.CreatedAt)
	if err != nil {
		return domain.VerificationToken{}, mapNotFound(err)
	}
	return t, nil
}

func (r *verificationTokensRepo) DeleteVerificationToken(ctx context.Context, id string) error {
	_, err := r.q.ExecContext(ctx,
		`DELETE FROM verification_tokens WHERE id = ?`, id)
	return err
}

func (r *verificationTokensRepo) DeleteExpiredVerificationTokens(ctx context.Context) error {
	_, err := r.q.ExecContext(ctx,
		`DELETE FROM verification_tokens WHERE expires_at < ?`, time.Now().UTC())
	return err
}
