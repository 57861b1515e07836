package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/deckside/deckside/internal/auth/service"
	"github.com/deckside/deckside/pkg/httpx"
	"github.com/deckside/deckside/pkg/slogx"
)

type RegisterHandler struct {
	Registration *service.RegistrationService
}

type registerRequest struct {
	InviteToken     string `json:"inviteToken"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"passwordConfirm"`
}

type registerResponse struct {
	UserID    string `json:"userId"`
	EmailSent bool   `json:"emailSent"`
	Message   string `json:"message"`
}

func (h *RegisterHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}
	if req.InviteToken == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "inviteToken is required")
		return
	}

	result, err := h.Registration.Register(ctx, req.InviteToken, req.Email, req.Password, req.PasswordConfirm)
	if err != nil {
		writeRegisterError(w, log, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, registerResponse{
		UserID:    result.UserID,
		EmailSent: result.EmailSent,
		Message:   result.Message,
	})
}

func writeRegisterError(w http.ResponseWriter, log *slog.Logger, err error) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		httpx.WriteJSON(w, http.StatusBadRequest, httpx.ErrorResponse{
			Error:   "validation_error",
			Message: verr.Message,
			Field:   verr.Field,
		})
	case errors.Is(err, service.ErrInvalidInviteToken):
		httpx.WriteError(w, http.StatusBadRequest, "invalid_invitation",
			"This invitation link is not valid.")
	case errors.Is(err, service.ErrInviteExpired):
		httpx.WriteError(w, http.StatusBadRequest, "invitation_expired",
			"This invitation has expired. Contact an administrator for a new one.")
	case errors.Is(err, service.ErrEmailMismatch):
		httpx.WriteError(w, http.StatusBadRequest, "email_mismatch",
			"The email address does not match this invitation.")
	case errors.Is(err, service.ErrInviteUsed):
		httpx.WriteError(w, http.StatusBadRequest, "invitation_used",
			"This invitation has already been used. Log in instead.")
	case errors.Is(err, service.ErrInviteUnavailable):
		httpx.WriteError(w, http.StatusBadRequest, "invitation_unavailable",
			"This invitation is no longer available. Contact an administrator.")
	case errors.Is(err, service.ErrRegistrationRetry):
		httpx.WriteError(w, http.StatusBadRequest, "registration_retry",
			"A previous registration attempt failed. Please try again.")
	case errors.Is(err, service.ErrAccountExists):
		httpx.WriteError(w, http.StatusBadRequest, "account_exists",
			"An account with this email already exists. Log in instead.")
	case errors.Is(err, service.ErrProfileMissing):
		httpx.WriteError(w, http.StatusBadRequest, "profile_missing",
			"The staff profile for this invitation no longer exists. Contact an administrator.")
	default:
		log.Error("registration failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error",
			"Registration failed. Please try again.")
	}
}
