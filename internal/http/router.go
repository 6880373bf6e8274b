package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/relayhq/crmcore/internal/config"
	"github.com/relayhq/crmcore/internal/http/features/session"
	"github.com/relayhq/crmcore/internal/http/features/team"
	"github.com/relayhq/crmcore/internal/http/features/workspace"
	"github.com/relayhq/crmcore/internal/http/middleware"
	"github.com/relayhq/crmcore/internal/httputil"
	"github.com/relayhq/crmcore/pkg/auth"
	"github.com/relayhq/crmcore/pkg/org"
	"github.com/relayhq/crmcore/pkg/tenanthost"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Logger          *slog.Logger
	Resolver        *tenanthost.Resolver
	Engine          *org.Engine
	SessionService  *auth.SessionService
	Members         middleware.MemberLoader
	Cookies         httputil.CookieConfig
	RateLimitConfig config.RateLimitConfig
	SecurityHeaders config.SecurityHeadersConfig
	MaxRequestBody  int64
}

// NewRouter creates a new HTTP router with all routes registered.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Apply global middleware
	r.Use(middleware.Recover(cfg.Logger))
	r.Use(middleware.Logging(cfg.Logger))
	r.Use(middleware.SecurityHeaders(cfg.SecurityHeaders))
	r.Use(middleware.RequestSizeLimit(cfg.MaxRequestBody))
	r.Use(middleware.ResolveWorkspace(cfg.Resolver))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Create rate limiters for different endpoint types
	rateLimiters := middleware.CreateRateLimiters(cfg.RateLimitConfig, cfg.Logger)

	// Workspace discovery works on any resolvable host, authenticated or not.
	workspaceHandler := workspace.NewHandler()
	r.With(rateLimiters["read"]).Get("/v1/workspace", workspaceHandler.Get)

	// Session routes are scoped to a workspace: login credentials are only
	// meaningful inside the tenant the host resolved to.
	sessionHandler := session.NewHandler(cfg.Logger, cfg.SessionService, cfg.Cookies)
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireWorkspace)
		r.Use(rateLimiters["auth"])
		r.Post("/v1/auth/login", sessionHandler.Login)
	})
	r.Post("/v1/auth/logout", sessionHandler.Logout)

	// Team routes require both a resolved workspace and an authenticated
	// member of that workspace.
	teamHandler := team.NewHandler(cfg.Logger, cfg.Engine)
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireWorkspace)
		r.Use(middleware.Auth(cfg.SessionService, cfg.Members))

		r.With(rateLimiters["read"]).Get("/v1/team", teamHandler.List)
		r.With(rateLimiters["read"]).Get("/v1/roles/assignable", teamHandler.AssignableRoles)

		r.Group(func(r chi.Router) {
			r.Use(rateLimiters["write"])
			r.Patch("/v1/team/{memberID}/role", teamHandler.Promote)
			r.Patch("/v1/team/{memberID}/manager", teamHandler.AssignManager)
			r.Delete("/v1/team/{memberID}", teamHandler.Remove)
		})
	})

	return r
}
