package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/deckside/deckside/internal/auth/domain"
	"github.com/deckside/deckside/internal/auth/store"
	"github.com/deckside/deckside/pkg/cryptox"
	"github.com/deckside/deckside/pkg/slogx"
)

var (
	// ErrInvalidCredentials covers both unknown email and wrong password so
	// responses cannot be used to enumerate accounts.
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailUnverified    = errors.New("email address not verified")
	ErrAccountInactive    = errors.New("account is not active")
	// ErrNoSession means the caller is anonymous: missing, expired, or
	// invalidated session.
	ErrNoSession = errors.New("no valid session")
)

// SessionService is the authentication state machine: anonymous → login →
// authenticated → logout/invalidation → anonymous. Sessions are server-held
// rows keyed by the fingerprint of an opaque token the client stores in a
// cookie.
type SessionService struct {
	Store  store.Store
	Tokens *TokenIssuer
}

// LoginResult carries the new session and the raw token to hand to the
// client. The raw token is never persisted.
type LoginResult struct {
	Session domain.Session
	Token   string
	User    domain.User
}

// Login validates credentials and establishes a fresh session.
// presentedToken is whatever session token the request arrived with; it is
// destroyed and never promoted, so an attacker who planted a session
// identifier before login gains nothing (session fixation defense).
func (s *SessionService) Login(ctx context.Context, email, password, presentedToken string) (LoginResult, error) {
	log := slogx.FromContext(ctx)

	email = normalizeEmail(email)

	user, err := s.Store.Users().GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Burn comparable CPU to a real verification so response timing
			// does not distinguish unknown emails.
			_ = cryptox.VerifyPassword(password, dummyDigest)
			return LoginResult{}, ErrInvalidCredentials
		}
		log.Error("failed to fetch user for login", slog.Any("error", err))
		return LoginResult{}, err
	}

	if err := cryptox.VerifyPassword(password, user.PasswordHash); err != nil {
		return LoginResult{}, ErrInvalidCredentials
	}
	if !user.EmailVerified {
		return LoginResult{}, ErrEmailUnverified
	}
	if user.Status != domain.UserStatusActive {
		return LoginResult{}, ErrAccountInactive
	}

	// Regenerate the session identifier: drop whatever the client presented
	// and mint a brand-new token for the authenticated session.
	if presentedToken != "" {
		if err := s.Store.Sessions().DeleteSession(ctx, cryptox.FingerprintToken(presentedToken)); err != nil {
			log.Warn("failed to drop pre-login session", slog.Any("error", err))
		}
	}

	token, err := s.Tokens.NewToken()
	if err != nil {
		log.Error("failed to generate session token", slog.Any("error", err))
		return LoginResult{}, err
	}

	session := domain.Session{
		ID:        cryptox.FingerprintToken(token),
		UserID:    user.ID,
		Email:     user.Email,
		Method:    domain.AuthMethodPassword,
		ExpiresAt: s.Tokens.SessionExpiry(),
	}

	// Persist before responding: the cookie must never reference a session
	// that might not exist.
	if err := s.Store.Sessions().CreateSession(ctx, session); err != nil {
		log.Error("failed to persist session", slog.Any("error", err))
		return LoginResult{}, err
	}

	log.Info("login succeeded",
		slog.String("user_id", user.ID),
		slog.String("method", string(session.Method)),
	)

	return LoginResult{Session: session, Token: token, User: user}, nil
}

// Status resolves the presented session token to a live account. The account
// is always re-fetched from storage: sessions are only a pointer to account
// state, never a source of truth. A session pointing at a missing,
// unverified, or inactive account is destroyed on sight.
func (s *SessionService) Status(ctx context.Context, presentedToken string) (domain.User, domain.Session, error) {
	if presentedToken == "" {
		return domain.User{}, domain.Session{}, ErrNoSession
	}

	log := slogx.FromContext(ctx)
	sessionID := cryptox.FingerprintToken(presentedToken)

	session, err := s.Store.Sessions().GetSessionByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, domain.Session{}, ErrNoSession
		}
		return domain.User{}, domain.Session{}, err
	}

	if session.Expired(s.Tokens.Now()) {
		_ = s.Store.Sessions().DeleteSession(ctx, sessionID)
		return domain.User{}, domain.Session{}, ErrNoSession
	}

	user, err := s.Store.Users().GetUserByID(ctx, session.UserID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return domain.User{}, domain.Session{}, err
	}
	if errors.Is(err, store.ErrNotFound) || !user.CanAuthenticate() {
		if delErr := s.Store.Sessions().DeleteSession(ctx, sessionID); delErr != nil {
			log.Warn("failed to destroy invalidated session", slog.Any("error", delErr))
		}
		return domain.User{}, domain.Session{}, ErrNoSession
	}

	// Rolling expiry: active sessions stay alive.
	session.ExpiresAt = s.Tokens.SessionExpiry()
	if err := s.Store.Sessions().TouchSession(ctx, sessionID, session.ExpiresAt); err != nil {
		log.Warn("failed to extend session expiry", slog.Any("error", err))
	}

	return user, session, nil
}

// Logout destroys the presented session. It is idempotent: logging out
// without a session, or twice, succeeds.
func (s *SessionService) Logout(ctx context.Context, presentedToken string) error {
	if presentedToken == "" {
		return nil
	}
	return s.Store.Sessions().DeleteSession(ctx, cryptox.FingerprintToken(presentedToken))
}

// dummyDigest is a throwaway argon2id digest used to equalize login timing
// when the email is unknown. The plaintext is irrelevant; it only has to be
// a well-formed digest.
const dummyDigest = "$argon2id$v=19$m=19456,t=2,p=1$AAAAAAAAAAAAAAAAAAAAAA$bPCKM1D1Fnff5itObja2e0defe4V1podbdNgEkGhnGM"
