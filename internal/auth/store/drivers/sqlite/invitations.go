package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/deckside/deckside/internal/auth/domain"
	"github.com/deckside/deckside/internal/auth/store"
)

type invitationsRepo struct {
	q querier
}

const invitationColumns = `id, email, profile_id, token_hash, status, created_by,
	created_at, expires_at, accepted_at, updated_at`

func (r *invitationsRepo) CreateInvitation(ctx context.Context, inv domain.Invitation) error {
	now := time.Now().UTC()
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO invitations (id, email, profile_id, token_hash, status, created_by,
			created_at, expires_at, accepted_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.ID, inv.Email, inv.ProfileID, inv.TokenHash, string(inv.Status), inv.CreatedBy,
		now, inv.ExpiresAt, mapOptionalTime(inv.AcceptedAt), now,
	)
	if err != nil && isUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
	return err
}

func (r *invitationsRepo) GetInvitationByID(ctx context.Context, id string) (domain.Invitation, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+invitationColumns+` FROM invitations WHERE id = ?`, id)
	return scanInvitation(row)
}

func (r *invitationsRepo) GetInvitationByTokenHash(ctx context.Context, hash string) (domain.Invitation, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+invitationColumns+` FROM invitations WHERE token_hash = ?`, hash)
	return scanInvitation(row)
}

func (r *invitationsRepo) GetLatestInvitationByEmail(ctx context.Context, email string) (domain.Invitation, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT `+invitationColumns+` FROM invitations
		WHERE email = ? ORDER BY created_at DESC, id DESC LIMIT 1`, email)
	return scanInvitation(row)
}

func (r *invitationsRepo) ListInvitations(ctx context.Context) ([]domain.Invitation, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+invitationColumns+` FROM invitations ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Invitation
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

// ClaimInvitation performs the compare-and-swap guarding registration. The
// WHERE clause only matches a row still in pending, so of N concurrent
// claims exactly one observes RowsAffected == 1.
func (r *invitationsRepo) ClaimInvitation(ctx context.Context, id string) error {
	return r.conditionalTransition(ctx, id,
		domain.InvitationProcessing, domain.InvitationPending, store.ErrClaimConflict)
}

// RevertInvitationToPending undoes a claim. A non-matching row is a no-op by
// contract: rollback paths call this unconditionally.
func (r *invitationsRepo) RevertInvitationToPending(ctx context.Context, id string) error {
	_, err := r.q.ExecContext(ctx, `
		UPDATE invitations SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		string(domain.InvitationPending), time.Now().UTC(),
		id, string(domain.InvitationProcessing),
	)
	return err
}

func (r *invitationsRepo) MarkInvitationAccepted(ctx context.Context, id string, acceptedAt time.Time) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE invitations SET status = ?, accepted_at = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		string(domain.InvitationAccepted), acceptedAt, time.Now().UTC(),
		id, string(domain.InvitationProcessing),
	)
	if err != nil {
		return err
	}
	return requireOneRow(res, store.ErrInvalidTransition)
}

func (r *invitationsRepo) RevokeInvitation(ctx context.Context, id string) error {
	return r.conditionalTransition(ctx, id,
		domain.InvitationRevoked, domain.InvitationPending, store.ErrInvalidTransition)
}

func (r *invitationsRepo) UpdateInvitationToken(ctx context.Context, id, tokenHash string, expiresAt time.Time) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE invitations SET token_hash = ?, expires_at = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		tokenHash, expiresAt, time.Now().UTC(),
		id, string(domain.InvitationPending),
	)
	if err != nil {
		return err
	}
	return requireOneRow(res, store.ErrInvalidTransition)
}

// conditionalTransition moves id from `from` to `to`, returning onMiss when
// the row exists but is in a different status, and ErrNotFound when the row
// does not exist at all.
func (r *invitationsRepo) conditionalTransition(
	ctx context.Context,
	id string,
	to, from domain.InvitationStatus,
	onMiss error,
) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE invitations SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		string(to), time.Now().UTC(), id, string(from),
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

	var exists int
	if err := r.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM invitations WHERE id = ?`, id).Scan(&exists); err != nil {
		return err
	}
	if exists == 0 {
		return store.ErrNotFound
	}
	return onMiss
}

func requireOneRow(res sql.Result, onMiss error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return onMiss
	}
	return nil
}

func scanInvitation(row rowScanner) (domain.Invitation, error) {
	var (
		inv        domain.Invitation
		status     string
		acceptedAt sql.NullTime
	)
	err := row.Scan(&inv.ID, &inv.Email, &inv.ProfileID, &inv.TokenHash, &status, &inv.CreatedBy,
		&inv.CreatedAt, &inv.ExpiresAt, &acceptedAt, &inv.UpdatedAt)
	if err != nil {
		return domain.Invitation{}, mapNotFound(err)
	}
	inv.Status = domain.InvitationStatus(status)
	inv.AcceptedAt = mapNullTimePtr(acceptedAt)
	return inv, nil
}
