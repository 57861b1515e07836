package http

import (
	"net/http"

	"github.com/deckside/deckside/internal/auth/service"
	"github.com/deckside/deckside/pkg/httpx"
	"github.com/deckside/deckside/pkg/slogx"
)

type LogoutHandler struct {
	Sessions *service.SessionService
	Cookies  CookieConfig
}

func (h *LogoutHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	token := sessionTokenFromRequest(r, h.Cookies)
	if err := h.Sessions.Logout(ctx, token); err != nil {
		// The session row may outlive this failure; housekeeping will
		// collect it. The client still gets logged out.
		slogx.FromContext(ctx).Warn("failed to destroy session on logout", "err", err)
	}

	clearSessionCookie(w, h.Cookies)
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}
