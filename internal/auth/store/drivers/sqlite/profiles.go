package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/deckside/deckside/internal/auth/domain"
	"github.com/deckside/deckside/internal/auth/store"
)

type profilesRepo struct {
	q querier
}

func (r *profilesRepo) CreateProfile(ctx context.Context, p domain.Profile) error {
	now := time.Now().UTC()
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO profiles (id, first_name, last_name, email, user_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.FirstName, p.LastName, p.Email, mapStringNull(p.UserID), now, now,
	)
	return err
}

func (r *profilesRepo) GetProfileByID(ctx context.Context, id string) (domain.Profile, error) {
	var (
		p      domain.Profile
		userID sql.NullString
	)
	err := r.q.QueryRowContext(ctx, `
		SELECT id, first_name, last_name, email, user_id, created_at, updated_at
		FROM profiles WHERE id = ?`, id,
	).Scan(&p.ID, &p.FirstName, &p.LastName, &p.Email, &userID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return domain.Profile{}, mapNotFound(err)
	}
	p.UserID = mapNullString(userID)
	return p, nil
}

// LinkProfileUser is a conditional update: it matches only when the profile
// is unlinked or already linked to this same account, which makes linking
// idempotent per account and a conflict for everyone else.
func (r *profilesRepo) LinkProfileUser(ctx context.Context, profileID, userID string) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE profiles SET user_id = ?, updated_at = ?
		WHERE id = ? AND (user_id IS NULL OR user_id = ?)`,
		userID, time.Now().UTC(), profileID, userID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}

	// No row matched: either the profile is gone or another account holds it.
	var exists int
	if err := r.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM profiles WHERE id = ?`, profileID).Scan(&exists); err != nil {
		return err
	}
	if exists == 0 {
		return store.ErrNotFound
	}
	return store.ErrProfileTaken
}
