package http

import (
	"log/slog"
	"net/http"

	"github.com/deckside/deckside/internal/auth/service"
	"github.com/deckside/deckside/internal/auth/store"
	"github.com/deckside/deckside/pkg/httpx"
	"github.com/deckside/deckside/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	logger  *slog.Logger
	cookies CookieConfig
	store   store.Store

	RegistrationService *service.RegistrationService
	VerificationService *service.VerificationService
	SessionService      *service.SessionService
	InvitationService   *service.InvitationService
}

func NewRouter(st store.Store, cookies CookieConfig, logger *slog.Logger) *Router {
	r := &Router{
		Mux:     http.NewServeMux(),
		logger:  logger,
		cookies: cookies,
		store:   st,
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAccounts()
	r.registerSessions()
	r.registerInvitations()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global
// middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerAccounts() {
	// POST /v1/register - strict rate limit by IP, this is the endpoint
	// invitation tokens are burned against
	registerHandler := &RegisterHandler{Registration: r.RegistrationService}
	r.Mux.Handle("POST /v1/register",
		httpx.Chain(registerHandler,
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	// GET /v1/verify-email - moderate rate limit by IP (clicked from email,
	// tokens are single-use so retries are harmless)
	verifyHandler := &VerifyEmailHandler{Verification: r.VerificationService}
	r.Mux.Handle("GET /v1/verify-email",
		httpx.Chain(verifyHandler,
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerSessions() {
	// POST /v1/login - strict rate limit by IP (credential guessing)
	loginHandler := &LoginHandler{Sessions: r.SessionService, Cookies: r.cookies}
	r.Mux.Handle("POST /v1/login",
		httpx.Chain(loginHandler,
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	// GET /v1/auth/status - lenient rate limit (frontends poll this)
	statusHandler := &AuthStatusHandler{Sessions: r.SessionService, Cookies: r.cookies}
	r.Mux.Handle("GET /v1/auth/status",
		httpx.Chain(statusHandler,
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)

	// POST /v1/logout - lenient rate limit, idempotent
	logoutHandler := &LogoutHandler{Sessions: r.SessionService, Cookies: r.cookies}
	r.Mux.Handle("POST /v1/logout",
		httpx.Chain(logoutHandler,
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}

func (r *Router) registerInvitations() {
	h := &InvitationsHandler{Invitations: r.InvitationService}

	// Admin endpoints: session auth + admin role, moderate rate limit keyed
	// by the authenticated principal rather than IP.
	admin := func(fn http.HandlerFunc) http.Handler {
		return httpx.Chain(fn,
			SessionMiddleware(r.SessionService, r.cookies),
			RequireAdmin(),
			httpx.RateLimitByPrincipal(httpx.ModerateLimit),
		)
	}

	r.Mux.Handle("POST /v1/invitations", admin(h.Create))
	r.Mux.Handle("GET /v1/invitations", admin(h.List))
	r.Mux.Handle("POST /v1/invitations/{id}/resend", admin(h.Resend))
	r.Mux.Handle("PATCH /v1/invitations/{id}/revoke", admin(h.Revoke))
}

func (r *Router) registerSystem() {
	h := &HealthHandler{Store: r.store}

	// Health check endpoints - public rate limits (monitoring systems may
	// poll frequently)
	r.Mux.Handle("GET /livez",
		httpx.Chain(http.HandlerFunc(h.Livez),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(http.HandlerFunc(h.Readyz),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
}
