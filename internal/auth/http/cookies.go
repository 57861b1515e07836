package http

import (
	"net/http"
	"time"
)

// CookieConfig controls how the session cookie is written.
type CookieConfig struct {
	Name   string
	Secure bool // true in production: cookie only travels over TLS
}

// sessionTokenFromRequest extracts the opaque session token, if any.
func sessionTokenFromRequest(r *http.Request, cfg CookieConfig) string {
	c, err := r.Cookie(cfg.Name)
	if err != nil {
		return ""
	}
	return c.Value
}

// setSessionCookie delivers the opaque session token to the client.
// HTTP-only so scripts can never read it.
func setSessionCookie(w http.ResponseWriter, cfg CookieConfig, token string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     cfg.Name,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// clearSessionCookie expires the session cookie immediately.
func clearSessionCookie(w http.ResponseWriter, cfg CookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     cfg.Name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}
