package http

import (
	"net/http"

	"github.com/deckside/deckside/internal/auth/service"
	"github.com/deckside/deckside/pkg/httpx"
)

// SessionMiddleware resolves the session cookie to a typed Principal and
// injects it into the request context. The account is re-fetched from
// storage on every request, so a deleted or deactivated account loses access
// immediately, and its dangling session is destroyed in the process.
func SessionMiddleware(sessions *service.SessionService, cookies CookieConfig) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := sessionTokenFromRequest(r, cookies)

			user, session, err := sessions.Status(r.Context(), token)
			if err != nil {
				httpx.WriteError(w, http.StatusUnauthorized,
					"unauthorized", "Authentication required")
				return
			}

			principal := httpx.Principal{
				UserID: user.ID,
				Email:  user.Email,
				Role:   string(user.Role),
				Method: string(session.Method),
			}
			next.ServeHTTP(w, r.WithContext(httpx.WithPrincipal(r.Context(), principal)))
		})
	}
}

// RequireAdmin rejects non-administrator principals. Must run after
// SessionMiddleware.
func RequireAdmin() httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := httpx.PrincipalFromContext(r.Context())
			if !ok || !p.IsAdmin() {
				httpx.WriteError(w, http.StatusForbidden,
					"forbidden", "Administrator access required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
