package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/shared-session-control/internal/repository"
)

// AdminHandler serves the read-mostly admin surface: security alerts, login
// history, session activity, the audit journal and the catalog.
type AdminHandler struct {
	Alerts   *repository.AlertRepo
	History  *repository.HistoryRepo
	Sessions *repository.SessionRepo
	Audits   *repository.AuditRepo
	Catalog  *repository.CatalogRepo
}

func NewAdminHandler(alerts *repository.AlertRepo, history *repository.HistoryRepo,
	sessions *repository.SessionRepo, audits *repository.AuditRepo, catalog *repository.CatalogRepo) *AdminHandler {
	return &AdminHandler{Alerts: alerts, History: history, Sessions: sessions, Audits: audits, Catalog: catalog}
}

// ListAlerts returns alerts filtered by the optional query parameters
// user_id, type, severity and unread.
func (h *AdminHandler) ListAlerts(c echo.Context) error {
	f := repository.AlertFilter{
		AlertType:  c.QueryParam("type"),
		Severity:   c.QueryParam("severity"),
		UnreadOnly: c.QueryParam("unread") == "true",
	}
	if s := c.QueryParam("user_id"); s != "" {
		id, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid user_id"})
		}
		f.UserID = &id
	}
	if s := c.QueryParam("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			f.Limit = n
		}
	}

	ctx, cancel := reqCtx(c)
	defer cancel()
	alerts, err := h.Alerts.List(ctx, f)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, alerts)
}

// UnreadAlertCount serves the dashboard badge.
func (h *AdminHandler) UnreadAlertCount(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	n, err := h.Alerts.UnreadCount(ctx)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"unread": n})
}

// AlertStats aggregates alert counts by severity.
func (h *AdminHandler) AlertStats(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	counts, err := h.Alerts.CountBySeverity(ctx)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, counts)
}

// MarkAlertRead flips the monotonic is_read flag.
func (h *AdminHandler) MarkAlertRead(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Alerts.MarkRead(ctx, id); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// DismissAlert flips the monotonic is_dismissed flag.
func (h *AdminHandler) DismissAlert(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Alerts.Dismiss(ctx, id); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// UserLoginHistory returns one user's login attempts.
func (h *AdminHandler) UserLoginHistory(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	items, err := h.History.ListByUser(ctx, id, queryLimit(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, items)
}

// RecentLoginHistory returns the latest attempts across all users.
func (h *AdminHandler) RecentLoginHistory(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	items, err := h.History.ListRecent(ctx, queryLimit(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, items)
}

// UserSessions returns one user's session activity.
func (h *AdminHandler) UserSessions(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	items, err := h.Sessions.ListByUser(ctx, id, queryLimit(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, items)
}

// ActiveSessions returns every active session in the deployment.
func (h *AdminHandler) ActiveSessions(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	items, err := h.Sessions.ListActive(ctx)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, items)
}

// AuditLog returns the latest privileged-action journal rows.
func (h *AdminHandler) AuditLog(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	items, err := h.Audits.ListRecent(ctx, queryLimit(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, items)
}

// Domains lists the upstream-application catalog.
func (h *AdminHandler) Domains(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	domains, err := h.Catalog.ListDomains(ctx)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, domains)
}

// Proxies lists the egress-proxy catalog with credentials stripped.
func (h *AdminHandler) Proxies(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	proxies, err := h.Catalog.ListProxies(ctx)
	if err != nil {
		return fail(c, err)
	}
	type proxyView struct {
		ID   uint64 `json:"id"`
		Host string `json:"host"`
		Port string `json:"port"`
	}
	views := make([]proxyView, 0, len(proxies))
	for _, p := range proxies {
		views = append(views, proxyView{ID: p.ID, Host: p.Host, Port: p.Port})
	}
	return c.JSON(http.StatusOK, views)
}

// CreateDomain registers an upstream application in the catalog. Upsert by
// name, so re-posting the same domain is idempotent.
func (h *AdminHandler) CreateDomain(c echo.Context) error {
	var req struct {
		Name    string `json:"name"`
		BaseURL string `json:"base_url"`
	}
	if err := c.Bind(&req); err != nil || req.Name == "" || req.BaseURL == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "name and base_url required"})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	id, err := h.Catalog.UpsertDomain(ctx, req.Name, req.BaseURL)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"id": id})
}

// CreateProxy registers an egress proxy in the catalog, upserted by
// host:port.
func (h *AdminHandler) CreateProxy(c echo.Context) error {
	var req struct {
		Host     string  `json:"host"`
		Port     string  `json:"port"`
		Username *string `json:"username"`
		Password *string `json:"password"`
	}
	if err := c.Bind(&req); err != nil || req.Host == "" || req.Port == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "host and port required"})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	id, err := h.Catalog.UpsertProxy(ctx, req.Host, req.Port, req.Username, req.Password)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"id": id})
}

func queryLimit(c echo.Context) int {
	if s := c.QueryParam("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return 0
}
