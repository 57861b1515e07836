package http

import (
	"errors"
	"net/http"

	"github.com/deckside/deckside/internal/auth/service"
	"github.com/deckside/deckside/pkg/httpx"
	"github.com/deckside/deckside/pkg/slogx"
)

type VerifyEmailHandler struct {
	Verification *service.VerificationService
}

func (h *VerifyEmailHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	token := r.URL.Query().Get("token")
	if token == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "token is required")
		return
	}

	if err := h.Verification.VerifyEmail(ctx, token); err != nil {
		if errors.Is(err, service.ErrVerificationInvalid) {
			httpx.WriteJSON(w, http.StatusBadRequest, map[string]any{
				"success": false,
				"message": "This verification link is invalid or has expired.",
			})
			return
		}
		slogx.FromContext(ctx).Error("email verification failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error",
			"Verification failed. Please try again.")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Email verified. You can now log in.",
	})
}
