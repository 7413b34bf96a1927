package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/modvault/session-security/internal/http/handler"
	"github.com/modvault/session-security/internal/http/middleware"
	"github.com/modvault/session-security/internal/http/response"
	"github.com/modvault/session-security/internal/security"
	"github.com/modvault/session-security/internal/service"
)

type Dependencies struct {
	AuthHandler    *handler.AuthHandler
	SessionHandler *handler.SessionHandler
	AdminHandler   *handler.AdminHandler
	JWTManager     *security.JWTManager
	Lifecycle      *service.SessionLifecycle
	LoginLimiter   service.LoginAttemptLimiter
	EnableOTelHTTP bool
}

func NewRouter(dep Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.StructuredRequestLogger)
	r.Use(middleware.SecurityHeaders)

	loginLimiter := dep.LoginLimiter
	if loginLimiter == nil {
		loginLimiter = service.NewNoopLoginLimiter()
	}
	authed := middleware.AuthMiddleware(dep.JWTManager, dep.Lifecycle)

	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, r, http.StatusOK, map[string]string{"status": "ready"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", dep.AuthHandler.Register)
			r.With(middleware.LoginRateLimit(loginLimiter)).Post("/login", dep.AuthHandler.Login)
			r.With(authed).Post("/logout", dep.AuthHandler.Logout)
		})

		r.Group(func(r chi.Router) {
			r.Use(authed)
			r.Get("/me/sessions", dep.SessionHandler.List)
			r.Delete("/me/sessions/{token}", dep.SessionHandler.Revoke)
			r.Post("/me/sessions/revoke-others", dep.SessionHandler.RevokeOthers)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(authed)
			r.Use(middleware.RequireAdmin)
			r.Post("/users/{id}/force-logout", dep.AdminHandler.ForceLogout)
			r.Get("/users/{id}/login-history", dep.AdminHandler.LoginHistory)
			r.Get("/users/{id}/login-stats", dep.AdminHandler.LoginStats)
			r.Get("/security/suspicious", dep.AdminHandler.Suspicious)
		})
	})

	var h http.Handler = r
	if dep.EnableOTelHTTP {
		h = otelhttp.NewHandler(r, "http.server")
	}
	return h
}
