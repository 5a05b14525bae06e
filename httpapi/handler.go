package httpapi

import (
	"io"
	"log"
	"net/http"
	"time"

	"github.com/sentinelgrid/authcore"
	"github.com/sentinelgrid/authcore/middleware"
	"github.com/sentinelgrid/authcore/permission"
)

const (
	refreshCookieName = "refresh_token"
	refreshCookiePath = "/auth"
)

// Options configures [NewHandler]. The zero value is usable.
type Options struct {
	// Logger receives access logs. Nil discards them.
	Logger *log.Logger
	// CookieSecure sets the Secure attribute on the refresh cookie.
	CookieSecure bool
	// TrustForwardedFor takes the client IP from X-Forwarded-For. Only enable
	// behind a proxy that overwrites the header.
	TrustForwardedFor bool
	// RateLimitRPS and RateLimitBurst configure the per-IP request throttle.
	// RateLimitRPS <= 0 disables it.
	RateLimitRPS   float64
	RateLimitBurst int
	// Metrics instruments every route when non-nil.
	Metrics *HTTPMetrics
	// MetricsHandler is served at GET /metrics when non-nil.
	MetricsHandler http.Handler
	// Now is used for expires_in and cookie lifetimes.
	Now func() time.Time
}

// API holds the handlers. Build it with [NewHandler].
type API struct {
	engine *authcore.Engine
	opts   Options
	mux    *http.ServeMux
}

// NewHandler builds the routed and middleware-wrapped REST handler.
func NewHandler(engine *authcore.Engine, opts Options) http.Handler {
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard, "", 0)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	a := &API{engine: engine, opts: opts, mux: http.NewServeMux()}
	a.routes()

	var h http.Handler = a.mux
	if opts.Metrics != nil {
		h = opts.Metrics.Instrument(h)
	}
	if opts.RateLimitRPS > 0 {
		h = NewThrottle(opts.RateLimitRPS, opts.RateLimitBurst).Middleware(opts.TrustForwardedFor)(h)
	}
	h = SecurityHeaders(h)
	h = Logging(opts.Logger)(h)
	h = RequestContext(opts.TrustForwardedFor)(h)
	return h
}

func (a *API) routes() {
	guard := middleware.Guard(a.engine, middleware.WithErrorWriter(guardErrorWriter))
	require := func(role permission.Role, h http.HandlerFunc) http.Handler {
		return guard(middleware.RequireRole(a.engine, role, middleware.WithErrorWriter(guardErrorWriter))(h))
	}

	a.mux.HandleFunc("POST /auth/register", a.register)
	a.mux.HandleFunc("POST /auth/login", a.login)
	a.mux.HandleFunc("POST /auth/refresh", a.refresh)
	a.mux.HandleFunc("POST /auth/logout", a.logout)
	a.mux.Handle("GET /auth/me", guard(http.HandlerFunc(a.me)))
	a.mux.HandleFunc("POST /auth/forgot-password", a.forgotPassword)
	a.mux.HandleFunc("POST /auth/reset-password", a.resetPassword)
	a.mux.HandleFunc("GET /healthz", a.healthz)

	a.mux.Handle("GET /admin/ping", require(permission.RoleAnalyst, a.adminPing))
	a.mux.Handle("GET /admin/users/{id}", require(permission.RoleAdmin, a.getUser))
	a.mux.Handle("PUT /admin/users/{id}/role", require(permission.RoleAdmin, a.updateRole))
	a.mux.Handle("POST /admin/users/{id}/deactivate", require(permission.RoleAdmin, a.deactivate))
	a.mux.Handle("POST /admin/users/{id}/activate", require(permission.RoleAdmin, a.activate))
	a.mux.Handle("GET /admin/users/{id}/sessions", require(permission.RoleAdmin, a.listSessions))
	a.mux.Handle("DELETE /admin/users/{id}/sessions", require(permission.RoleAdmin, a.revokeSessions))

	if a.opts.MetricsHandler != nil {
		a.mux.Handle("GET /metrics", a.opts.MetricsHandler)
	}

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", "not found")
	})
}

func (a *API) setRefreshCookie(w http.ResponseWriter, token string, expires time.Time) {
	maxAge := int(expires.Sub(a.opts.Now()).Seconds())
	if maxAge <= 0 {
		maxAge = -1
	}
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    token,
		Path:     refreshCookiePath,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   a.opts.CookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (a *API) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     refreshCookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   a.opts.CookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
}
