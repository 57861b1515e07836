package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/deckside/deckside/internal/auth/domain"
	"github.com/deckside/deckside/internal/auth/store"
	"github.com/deckside/deckside/internal/auth/store/drivers/sqlite"
	"github.com/deckside/deckside/pkg/idx"
	"github.com/stretchr/testify/require"
)

// testPassword satisfies every composition rule.
const testPassword = "Sw1m-Fast-Lane!"

// recordingMailer captures outgoing emails so tests can read the raw tokens,
// which are otherwise persisted only as fingerprints.
type recordingMailer struct {
	invitationTokens   []string
	verificationTokens []string
	fail               bool
}

func (m *recordingMailer) SendInvitation(ctx context.Context, email, token string, expiresAt time.Time) error {
	if m.fail {
		return errors.New("mail relay unavailable")
	}
	m.invitationTokens = append(m.invitationTokens, token)
	return nil
}

func (m *recordingMailer) SendVerification(ctx context.Context, email, token string, expiresAt time.Time) error {
	if m.fail {
		return errors.New("mail relay unavailable")
	}
	m.verificationTokens = append(m.verificationTokens, token)
	return nil
}

func (m *recordingMailer) lastInvitationToken(t *testing.T) string {
	t.Helper()
	require.NotEmpty(t, m.invitationTokens, "no invitation email was sent")
	return m.invitationTokens[len(m.invitationTokens)-1]
}

func (m *recordingMailer) lastVerificationToken(t *testing.T) string {
	t.Helper()
	require.NotEmpty(t, m.verificationTokens, "no verification email was sent")
	return m.verificationTokens[len(m.verificationTokens)-1]
}

// testEnv wires every service against one in-memory database.
type testEnv struct {
	store  *sqlite.Store
	mailer *recordingMailer
	tokens *TokenIssuer

	invitations  *InvitationService
	registration *RegistrationService
	verification *VerificationService
	sessions     *SessionService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	mailer := &recordingMailer{}
	tokens := &TokenIssuer{}

	return &testEnv{
		store:        st,
		mailer:       mailer,
		tokens:       tokens,
		invitations:  &InvitationService{Store: st, Tokens: tokens, Mailer: mailer},
		registration: &RegistrationService{Store: st, Tokens: tokens, Mailer: mailer},
		verification: &VerificationService{Store: st, Tokens: tokens},
		sessions:     &SessionService{Store: st, Tokens: tokens},
	}
}

// setClock pins every service to a fixed instant.
func (e *testEnv) setClock(now time.Time) {
	e.tokens.Clock = func() time.Time { return now }
}

func (e *testEnv) seedProfile(t *testing.T, firstName, lastName, email string) domain.Profile {
	t.Helper()

	profile := domain.Profile{
		ID:        idx.New().String(),
		FirstName: firstName,
		LastName:  lastName,
		Email:     email,
	}
	require.NoError(t, e.store.Profiles().CreateProfile(context.Background(), profile))
	return profile
}

// invite seeds a profile and mints an invitation for it, returning the raw
// token captured from the outgoing email.
func (e *testEnv) invite(t *testing.T, email string) (domain.Invitation, string) {
	t.Helper()

	profile := e.seedProfile(t, "Dana", "Reyes", email)
	result, err := e.invitations.CreateInvitation(context.Background(), email, profile.ID, "admin-1")
	require.NoError(t, err)
	require.True(t, result.EmailSent)

	return result.Invitation, e.mailer.lastInvitationToken(t)
}

// register runs the full happy-path registration for email and returns the
// provisioned user id.
func (e *testEnv) register(t *testing.T, email string) string {
	t.Helper()

	_, token := e.invite(t, email)
	result, err := e.registration.Register(context.Background(), token, email, testPassword, testPassword)
	require.NoError(t, err)
	return result.UserID
}

// registerVerified provisions and verifies an account, leaving it able to
// log in.
func (e *testEnv) registerVerified(t *testing.T, email string) string {
	t.Helper()

	userID := e.register(t, email)
	require.NoError(t, e.verification.VerifyEmail(context.Background(), e.mailer.lastVerificationToken(t)))
	return userID
}

func (e *testEnv) invitationStatus(t *testing.T, id string) domain.InvitationStatus {
	t.Helper()

	inv, err := e.store.Invitations().GetInvitationByID(context.Background(), id)
	require.NoError(t, err)
	return inv.Status
}

func (e *testEnv) requireNoAccount(t *testing.T, email string) {
	t.Helper()

	_, err := e.store.Users().GetUserByEmail(context.Background(), email)
	require.ErrorIs(t, err, store.ErrNotFound)
}
