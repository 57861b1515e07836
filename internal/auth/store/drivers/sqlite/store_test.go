package sqlite

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/deckside/deckside/internal/auth/domain"
	"github.com/deckside/deckside/internal/auth/store"
	"github.com/deckside/deckside/pkg/idx"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	st, err := NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())
	return st
}

func seedUser(t *testing.T, st *Store, email string) domain.User {
	t.Helper()

	u := domain.User{
		ID:           idx.New().String(),
		Email:        email,
		PasswordHash: "digest",
		Status:       domain.UserStatusPending,
		Role:         domain.RoleCoach,
	}
	require.NoError(t, st.Users().CreateUser(context.Background(), u))
	return u
}

func seedProfile(t *testing.T, st *Store) domain.Profile {
	t.Helper()

	p := domain.Profile{
		ID:        idx.New().String(),
		FirstName: "Dana",
		LastName:  "Reyes",
		Email:     "dana@example.com",
	}
	require.NoError(t, st.Profiles().CreateProfile(context.Background(), p))
	return p
}

func seedInvitation(t *testing.T, st *Store, profileID string) domain.Invitation {
	t.Helper()

	inv := domain.Invitation{
		ID:        idx.New().String(),
		Email:     "dana@example.com",
		ProfileID: profileID,
		TokenHash: idx.New().String(),
		Status:    domain.InvitationPending,
		CreatedBy: "admin-1",
		ExpiresAt: time.Now().Add(48 * time.Hour),
	}
	require.NoError(t, st.Invitations().CreateInvitation(context.Background(), inv))
	return inv
}

func TestUsersEmailCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	created := seedUser(t, st, "dana@example.com")

	// Lookup ignores case.
	found, err := st.Users().GetUserByEmail(ctx, "DANA@EXAMPLE.COM")
	require.NoError(t, err)
	require.Equal(t, created.ID, found.ID)

	// Uniqueness does too.
	dup := domain.User{
		ID:           idx.New().String(),
		Email:        "Dana@Example.com",
		PasswordHash: "digest",
		Status:       domain.UserStatusPending,
		Role:         domain.RoleCoach,
	}
	require.ErrorIs(t, st.Users().CreateUser(ctx, dup), store.ErrAlreadyExists)
}

func TestMarkUserVerified(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	u := seedUser(t, st, "dana@example.com")
	require.NoError(t, st.Users().MarkUserVerified(ctx, u.ID))

	verified, err := st.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.True(t, verified.EmailVerified)
	require.Equal(t, domain.UserStatusActive, verified.Status)

	require.ErrorIs(t, st.Users().MarkUserVerified(ctx, "no-such-user"), store.ErrNotFound)
}

func TestLinkProfileUser(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	profile := seedProfile(t, st)
	owner := seedUser(t, st, "owner@example.com")
	other := seedUser(t, st, "other@example.com")

	require.NoError(t, st.Profiles().LinkProfileUser(ctx, profile.ID, owner.ID))

	// Linking the same account again is idempotent.
	require.NoError(t, st.Profiles().LinkProfileUser(ctx, profile.ID, owner.ID))

	// A different account is refused.
	require.ErrorIs(t, st.Profiles().LinkProfileUser(ctx, profile.ID, other.ID), store.ErrProfileTaken)

	// Unknown profile is its own failure.
	require.ErrorIs(t, st.Profiles().LinkProfileUser(ctx, "no-such-profile", owner.ID), store.ErrNotFound)
}

func TestClaimInvitation(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	inv := seedInvitation(t, st, seedProfile(t, st).ID)

	// First claim wins; the second sees the conflict.
	require.NoError(t, st.Invitations().ClaimInvitation(ctx, inv.ID))
	require.ErrorIs(t, st.Invitations().ClaimInvitation(ctx, inv.ID), store.ErrClaimConflict)

	// Missing rows are not conflicts.
	require.ErrorIs(t, st.Invitations().ClaimInvitation(ctx, "no-such-invitation"), store.ErrNotFound)
}

func TestClaimInvitationConcurrent(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	inv := seedInvitation(t, st, seedProfile(t, st).ID)

	// Exactly one of N simultaneous claims may win.
	const claimers = 16
	errs := make([]error, claimers)

	var wg sync.WaitGroup
	for i := 0; i < claimers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = st.Invitations().ClaimInvitation(ctx, inv.ID)
		}(i)
	}
	wg.Wait()

	var wins, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, store.ErrClaimConflict):
			conflicts++
		default:
			t.Fatalf("unexpected claim error: %v", err)
		}
	}
	require.Equal(t, 1, wins)
	require.Equal(t, claimers-1, conflicts)

	got, err := st.Invitations().GetInvitationByID(ctx, inv.ID)
	require.NoError(t, err)
	require.Equal(t, domain.InvitationProcessing, got.Status)
}

func TestGetLatestInvitationByEmail(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	profile := seedProfile(t, st)
	seedInvitation(t, st, profile.ID)
	newer := seedInvitation(t, st, profile.ID)

	// Both invitations carry dana@example.com; the newer one wins.
	got, err := st.Invitations().GetLatestInvitationByEmail(ctx, "dana@example.com")
	require.NoError(t, err)
	require.Equal(t, newer.ID, got.ID)

	// Lookup is case-insensitive, matching the NOCASE email column.
	got, err = st.Invitations().GetLatestInvitationByEmail(ctx, "DANA@EXAMPLE.COM")
	require.NoError(t, err)
	require.Equal(t, newer.ID, got.ID)

	_, err = st.Invitations().GetLatestInvitationByEmail(ctx, "nobody@example.com")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestRevertInvitationToPendingIsIdempotent(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	inv := seedInvitation(t, st, seedProfile(t, st).ID)

	// Reverting a pending invitation is a no-op, not an error.
	require.NoError(t, st.Invitations().RevertInvitationToPending(ctx, inv.ID))

	// processing → pending actually reverts.
	require.NoError(t, st.Invitations().ClaimInvitation(ctx, inv.ID))
	require.NoError(t, st.Invitations().RevertInvitationToPending(ctx, inv.ID))

	got, err := st.Invitations().GetInvitationByID(ctx, inv.ID)
	require.NoError(t, err)
	require.Equal(t, domain.InvitationPending, got.Status)

	// Terminal statuses are never reverted.
	require.NoError(t, st.Invitations().ClaimInvitation(ctx, inv.ID))
	require.NoError(t, st.Invitations().MarkInvitationAccepted(ctx, inv.ID, time.Now()))
	require.NoError(t, st.Invitations().RevertInvitationToPending(ctx, inv.ID))

	got, err = st.Invitations().GetInvitationByID(ctx, inv.ID)
	require.NoError(t, err)
	require.Equal(t, domain.InvitationAccepted, got.Status)
}

func TestMarkInvitationAcceptedRequiresProcessing(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	inv := seedInvitation(t, st, seedProfile(t, st).ID)

	// Accepting straight from pending is a torn workflow.
	err := st.Invitations().MarkInvitationAccepted(ctx, inv.ID, time.Now())
	require.ErrorIs(t, err, store.ErrInvalidTransition)

	require.NoError(t, st.Invitations().ClaimInvitation(ctx, inv.ID))

	acceptedAt := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, st.Invitations().MarkInvitationAccepted(ctx, inv.ID, acceptedAt))

	got, err := st.Invitations().GetInvitationByID(ctx, inv.ID)
	require.NoError(t, err)
	require.Equal(t, domain.InvitationAccepted, got.Status)
	require.NotNil(t, got.AcceptedAt)
}

func TestRevokeInvitationOnlyFromPending(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	inv := seedInvitation(t, st, seedProfile(t, st).ID)

	require.NoError(t, st.Invitations().RevokeInvitation(ctx, inv.ID))
	require.ErrorIs(t, st.Invitations().RevokeInvitation(ctx, inv.ID), store.ErrInvalidTransition)
	require.ErrorIs(t, st.Invitations().RevokeInvitation(ctx, "no-such-invitation"), store.ErrNotFound)
}

func TestUpdateInvitationTokenOnlyWhilePending(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	inv := seedInvitation(t, st, seedProfile(t, st).ID)

	newHash := idx.New().String()
	newExpiry := time.Now().Add(48 * time.Hour)
	require.NoError(t, st.Invitations().UpdateInvitationToken(ctx, inv.ID, newHash, newExpiry))

	got, err := st.Invitations().GetInvitationByTokenHash(ctx, newHash)
	require.NoError(t, err)
	require.Equal(t, inv.ID, got.ID)

	// The old fingerprint no longer resolves.
	_, err = st.Invitations().GetInvitationByTokenHash(ctx, inv.TokenHash)
	require.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, st.Invitations().RevokeInvitation(ctx, inv.ID))
	err = st.Invitations().UpdateInvitationToken(ctx, inv.ID, idx.New().String(), newExpiry)
	require.ErrorIs(t, err, store.ErrInvalidTransition)
}

func TestWithTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	boom := errors.New("boom")
	err := st.WithTx(ctx, func(tx store.Tx) error {
		u := domain.User{
			ID:           idx.New().String(),
			Email:        "rollback@example.com",
			PasswordHash: "digest",
			Status:       domain.UserStatusPending,
			Role:         domain.RoleCoach,
		}
		if err := tx.Users().CreateUser(ctx, u); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = st.Users().GetUserByEmail(ctx, "rollback@example.com")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestWithTxCommits(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	err := st.WithTx(ctx, func(tx store.Tx) error {
		return tx.Users().CreateUser(ctx, domain.User{
			ID:           idx.New().String(),
			Email:        "commit@example.com",
			PasswordHash: "digest",
			Status:       domain.UserStatusPending,
			Role:         domain.RoleCoach,
		})
	})
	require.NoError(t, err)

	_, err = st.Users().GetUserByEmail(ctx, "commit@example.com")
	require.NoError(t, err)
}

func TestDeleteUserSessions(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	u := seedUser(t, st, "dana@example.com")

	for _, id := range []string{"fp-1", "fp-2"} {
		require.NoError(t, st.Sessions().CreateSession(ctx, domain.Session{
			ID:        id,
			UserID:    u.ID,
			Email:     u.Email,
			Method:    domain.AuthMethodPassword,
			ExpiresAt: time.Now().Add(time.Hour),
		}))
	}

	require.NoError(t, st.Sessions().DeleteUserSessions(ctx, u.ID))

	_, err := st.Sessions().GetSessionByID(ctx, "fp-1")
	require.ErrorIs(t, err, store.ErrNotFound)
	_, err = st.Sessions().GetSessionByID(ctx, "fp-2")
	require.ErrorIs(t, err, store.ErrNotFound)

	// Deleting sessions that do not exist is fine.
	require.NoError(t, st.Sessions().DeleteSession(ctx, "fp-1"))
}
