package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/deckside/deckside/internal/auth/domain"
	"github.com/deckside/deckside/internal/auth/service"
	"github.com/deckside/deckside/pkg/httpx"
	"github.com/deckside/deckside/pkg/slogx"
)

type LoginHandler struct {
	Sessions *service.SessionService
	Cookies  CookieConfig
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Role      string `json:"role"`
}

func toUserResponse(u domain.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Role:      string(u.Role),
	}
}

func (h *LoginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}
	if req.Email == "" || req.Password == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "email and password are required")
		return
	}

	// Pass along any session token the client already holds; login destroys
	// it and issues a fresh identifier.
	presented := sessionTokenFromRequest(r, h.Cookies)

	result, err := h.Sessions.Login(ctx, req.Email, req.Password, presented)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			httpx.WriteError(w, http.StatusUnauthorized, "invalid_credentials",
				"Invalid email or password")
		case errors.Is(err, service.ErrEmailUnverified):
			httpx.WriteError(w, http.StatusForbidden, "email_unverified",
				"Verify your email address before logging in.")
		case errors.Is(err, service.ErrAccountInactive):
			httpx.WriteError(w, http.StatusForbidden, "account_inactive",
				"This account is not active. Contact an administrator.")
		default:
			log.Error("login failed", "err", err)
			httpx.WriteError(w, http.StatusInternalServerError, "server_error",
				"Login failed. Please try again.")
		}
		return
	}

	setSessionCookie(w, h.Cookies, result.Token, result.Session.ExpiresAt)
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"user": toUserResponse(result.User),
	})
}
