package http

import (
	"errors"
	"net/http"

	"github.com/deckside/deckside/internal/auth/service"
	"github.com/deckside/deckside/pkg/httpx"
	"github.com/deckside/deckside/pkg/slogx"
)

type AuthStatusHandler struct {
	Sessions *service.SessionService
	Cookies  CookieConfig
}

func (h *AuthStatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	token := sessionTokenFromRequest(r, h.Cookies)

	user, session, err := h.Sessions.Status(ctx, token)
	if err != nil {
		if !errors.Is(err, service.ErrNoSession) {
			slogx.FromContext(ctx).Error("session status check failed", "err", err)
		}
		// An invalid session cookie is cleared so the client stops
		// presenting it.
		if token != "" {
			clearSessionCookie(w, h.Cookies)
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"authenticated": false})
		return
	}

	// The rolling expiry moved; refresh the cookie deadline to match.
	setSessionCookie(w, h.Cookies, token, session.ExpiresAt)
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"authenticated": true,
		"user":          toUserResponse(user),
	})
}
