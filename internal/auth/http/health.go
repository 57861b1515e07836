package http

import (
	"net/http"

	"github.com/deckside/deckside/internal/auth/store"
	"github.com/deckside/deckside/pkg/httpx"
)

// HealthHandler serves the liveness and readiness probes.
type HealthHandler struct {
	Store store.Store
}

// Livez handles GET /livez. It reports process liveness only.
func (h *HealthHandler) Livez(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readyz handles GET /readyz. It verifies the database is reachable.
func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Ping(r.Context()); err != nil {
		httpx.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
