package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/deckside/deckside/internal/auth/domain"
	"github.com/deckside/deckside/internal/auth/service"
	"github.com/deckside/deckside/pkg/httpx"
	"github.com/deckside/deckside/pkg/slogx"
)

// InvitationsHandler serves the administrator-only invitation endpoints.
type InvitationsHandler struct {
	Invitations *service.InvitationService
}

// maxInvitationHours caps administrator-chosen invitation validity at 30 days.
const maxInvitationHours = 720

type createInvitationRequest struct {
	Email     string `json:"email"`
	ProfileID string `json:"profileId"`
	// ExpiresInHours overrides the default 48h validity window when positive.
	ExpiresInHours int `json:"expiresInHours,omitempty"`
}

type invitationResponse struct {
	ID         string     `json:"id"`
	Email      string     `json:"email"`
	ProfileID  string     `json:"profileId"`
	Status     string     `json:"status"`
	CreatedBy  string     `json:"createdBy"`
	CreatedAt  time.Time  `json:"createdAt"`
	ExpiresAt  time.Time  `json:"expiresAt"`
	AcceptedAt *time.Time `json:"acceptedAt,omitempty"`
}

func toInvitationResponse(inv domain.Invitation) invitationResponse {
	return invitationResponse{
		ID:         inv.ID,
		Email:      inv.Email,
		ProfileID:  inv.ProfileID,
		Status:     string(inv.Status),
		CreatedBy:  inv.CreatedBy,
		CreatedAt:  inv.CreatedAt,
		ExpiresAt:  inv.ExpiresAt,
		AcceptedAt: inv.AcceptedAt,
	}
}

type invitationResultResponse struct {
	Invitation invitationResponse `json:"invitation"`
	EmailSent  bool               `json:"emailSent"`
	EmailError string             `json:"emailError,omitempty"`
}

func toInvitationResultResponse(res service.InvitationResult) invitationResultResponse {
	return invitationResultResponse{
		Invitation: toInvitationResponse(res.Invitation),
		EmailSent:  res.EmailSent,
		EmailError: res.EmailError,
	}
}

// Create handles POST /v1/invitations.
func (h *InvitationsHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	principal, ok := httpx.PrincipalFromContext(ctx)
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return
	}

	var req createInvitationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}
	if req.Email == "" || req.ProfileID == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "email and profileId are required")
		return
	}
	if req.ExpiresInHours < 0 || req.ExpiresInHours > maxInvitationHours {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request",
			"expiresInHours must be between 1 and 720")
		return
	}

	ttl := service.InvitationTTL
	if req.ExpiresInHours > 0 {
		ttl = time.Duration(req.ExpiresInHours) * time.Hour
	}

	result, err := h.Invitations.CreateInvitationWithTTL(ctx, req.Email, req.ProfileID, principal.UserID, ttl)
	if err != nil {
		var verr *service.ValidationError
		switch {
		case errors.As(err, &verr):
			httpx.WriteJSON(w, http.StatusBadRequest, httpx.ErrorResponse{
				Error:   "validation_error",
				Message: verr.Message,
				Field:   verr.Field,
			})
		case errors.Is(err, service.ErrProfileNotFound):
			httpx.WriteError(w, http.StatusBadRequest, "profile_not_found", "Profile not found")
		case errors.Is(err, service.ErrProfileAlreadyLinked):
			httpx.WriteError(w, http.StatusBadRequest, "profile_linked",
				"This profile is already linked to an account")
		case errors.Is(err, service.ErrAccountExists):
			httpx.WriteError(w, http.StatusBadRequest, "account_exists",
				"An account with this email already exists")
		default:
			log.Error("failed to create invitation", "err", err)
			httpx.WriteError(w, http.StatusInternalServerError, "server_error",
				"Failed to create invitation")
		}
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, toInvitationResultResponse(result))
}

// List handles GET /v1/invitations.
func (h *InvitationsHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	invitations, err := h.Invitations.ListInvitations(ctx)
	if err != nil {
		slogx.FromContext(ctx).Error("failed to list invitations", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error",
			"Failed to list invitations")
		return
	}

	out := make([]invitationResponse, 0, len(invitations))
	for _, inv := range invitations {
		out = append(out, toInvitationResponse(inv))
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

// Resend handles POST /v1/invitations/{id}/resend.
func (h *InvitationsHandler) Resend(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	result, err := h.Invitations.ResendInvitation(ctx, r.PathValue("id"))
	if err != nil {
		h.writeLifecycleError(w, r, err, "resend")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toInvitationResultResponse(result))
}

// Revoke handles PATCH /v1/invitations/{id}/revoke.
func (h *InvitationsHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.Invitations.RevokeInvitation(ctx, r.PathValue("id")); err != nil {
		h.writeLifecycleError(w, r, err, "revoke")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]string{"message": "Invitation revoked"})
}

func (h *InvitationsHandler) writeLifecycleError(w http.ResponseWriter, r *http.Request, err error, op string) {
	switch {
	case errors.Is(err, service.ErrInvitationNotFound):
		httpx.WriteError(w, http.StatusNotFound, "not_found", "Invitation not found")
	case errors.Is(err, service.ErrInvitationNotPending):
		httpx.WriteError(w, http.StatusBadRequest, "invitation_not_pending",
			"Only pending invitations can be changed")
	default:
		slogx.FromContext(r.Context()).Error("invitation operation failed", "op", op, "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error",
			"Invitation operation failed")
	}
}
