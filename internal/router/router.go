package router // package router defines how HTTP routes are registered for the API

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/shared-session-control/internal/config"
	"github.com/iliyamo/shared-session-control/internal/handler"
	"github.com/iliyamo/shared-session-control/internal/middleware"
	"github.com/iliyamo/shared-session-control/internal/model"
)

// Route binds one protected endpoint to its minimum role. The table below is
// the whole authorization policy: every protected route appears here once,
// so the surface is enumerable and testable.
type Route struct {
	Method  string
	Path    string
	MinRole string
	Handler echo.HandlerFunc
}

// Handlers groups everything the router wires.
type Handlers struct {
	Auth    *handler.AuthHandler
	Users   *handler.UserHandler
	Bundle  *handler.BundleHandler
	Billing *handler.BillingHandler
	Admin   *handler.AdminHandler
}

// ProtectedRoutes enumerates the authenticated surface and its role policy.
func ProtectedRoutes(h Handlers) []Route {
	return []Route{
		// Session introspection (any authenticated role).
		{http.MethodGet, "/auth/me", model.RoleUser, h.Auth.Me},
		{http.MethodGet, "/auth/session-status", model.RoleUser, h.Auth.SessionStatus},
		{http.MethodPost, "/auth/logout", model.RoleUser, h.Auth.Logout},

		// User management.
		{http.MethodGet, "/users", model.RoleSupport, h.Users.List},
		{http.MethodPost, "/users", model.RoleOperator, h.Users.Create},
		{http.MethodGet, "/users/:id", model.RoleSupport, h.Users.Get},
		{http.MethodPatch, "/users/:id", model.RoleOperator, h.Users.Update},
		{http.MethodDelete, "/users/:id", model.RoleOperatorRoot, h.Users.Delete},
		{http.MethodPatch, "/users/:id/role", model.RoleOperatorRoot, h.Users.UpdateRole},
		{http.MethodPatch, "/users/:id/status", model.RoleOperator, h.Users.UpdateStatus},
		{http.MethodPatch, "/users/:id/password", model.RoleOperator, h.Users.UpdatePassword},
		{http.MethodPost, "/users/:id/force-logout", model.RoleOperator, h.Users.ForceLogout},

		// Bundle distribution.
		{http.MethodGet, "/sessions/my-sessions", model.RoleUser, h.Bundle.MySessions},
		{http.MethodGet, "/sessions/shared-stats", model.RoleOperator, h.Bundle.SharedStats},
		{http.MethodPost, "/sessions/:id/request-upload", model.RoleOperator, h.Bundle.RequestUpload},
		{http.MethodPost, "/sessions/:id/complete-upload", model.RoleOperator, h.Bundle.CompleteUpload},
		{http.MethodPost, "/sessions/:id/request-download", model.RoleUser, h.Bundle.RequestDownload},
		{http.MethodPost, "/sessions/:id/mark-ready", model.RoleOperatorRoot, h.Bundle.MarkReady},
		{http.MethodPost, "/sessions/:id/events", model.RoleUser, h.Bundle.ReportEvent},
		{http.MethodGet, "/sessions/:id/events", model.RoleOperator, h.Bundle.ListEvents},
		{http.MethodGet, "/sessions", model.RoleOperator, h.Bundle.List},
		{http.MethodPost, "/sessions", model.RoleOperator, h.Bundle.Create},
		{http.MethodGet, "/sessions/active", model.RoleSupport, h.Admin.ActiveSessions},
		{http.MethodGet, "/sessions/:id", model.RoleOperator, h.Bundle.Get},
		{http.MethodPatch, "/sessions/:id", model.RoleOperator, h.Bundle.Update},
		{http.MethodDelete, "/sessions/:id", model.RoleOperatorRoot, h.Bundle.Delete},

		// Billing.
		{http.MethodGet, "/users/:id/billing/status", model.RoleSupport, h.Billing.Status},
		{http.MethodPost, "/users/:id/billing/start-cycle", model.RoleOperator, h.Billing.StartCycle},
		{http.MethodPost, "/users/:id/billing/payments", model.RoleOperator, h.Billing.AddPayment},
		{http.MethodPost, "/users/:id/billing/trial", model.RoleOperator, h.Billing.SetTrial},
		{http.MethodGet, "/users/:id/billing/payments", model.RoleSupport, h.Billing.Payments},
		{http.MethodGet, "/users/:id/billing/history", model.RoleSupport, h.Billing.History},

		// Security alerts and activity.
		{http.MethodGet, "/alerts", model.RoleSupport, h.Admin.ListAlerts},
		{http.MethodGet, "/alerts/unread-count", model.RoleSupport, h.Admin.UnreadAlertCount},
		{http.MethodGet, "/alerts/stats", model.RoleSupport, h.Admin.AlertStats},
		{http.MethodPost, "/alerts/:id/read", model.RoleSupport, h.Admin.MarkAlertRead},
		{http.MethodPost, "/alerts/:id/dismiss", model.RoleSupport, h.Admin.DismissAlert},
		{http.MethodGet, "/history/logins", model.RoleSupport, h.Admin.RecentLoginHistory},
		{http.MethodGet, "/users/:id/history/logins", model.RoleSupport, h.Admin.UserLoginHistory},
		{http.MethodGet, "/users/:id/sessions", model.RoleSupport, h.Admin.UserSessions},
		{http.MethodGet, "/audit-log", model.RoleOperatorRoot, h.Admin.AuditLog},

		// Configuration catalog.
		{http.MethodGet, "/domains", model.RoleOperator, h.Admin.Domains},
		{http.MethodPost, "/domains", model.RoleOperatorRoot, h.Admin.CreateDomain},
		{http.MethodGet, "/proxies", model.RoleOperator, h.Admin.Proxies},
		{http.MethodPost, "/proxies", model.RoleOperatorRoot, h.Admin.CreateProxy},
	}
}

// RegisterRoutes wires the full HTTP surface: the public endpoints, the
// rate-limited login, and every protected route behind the auth middleware
// with its policy role.
func RegisterRoutes(e *echo.Echo, cfg config.Config, rdb *redis.Client, h Handlers,
	users middleware.AuthUserLoader, sessions middleware.ActivityToucher) {
	e.GET("/healthz", handler.Health)

	api := e.Group("/api/v1")
	api.POST("/auth/login", h.Auth.Login,
		middleware.LoginRateLimit(config.LoadRateLimitConfig(), rdb))
	api.POST("/auth/refresh", h.Auth.Refresh)

	auth := api.Group("", middleware.Auth(cfg.JWTAccessSecret, users, sessions))
	for _, r := range ProtectedRoutes(h) {
		auth.Add(r.Method, r.Path, r.Handler, middleware.RequireRole(r.MinRole))
	}
}
