package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/shared-session-control/internal/config"
	"github.com/iliyamo/shared-session-control/internal/middleware"
	"github.com/iliyamo/shared-session-control/internal/model"
	"github.com/iliyamo/shared-session-control/internal/repository"
	"github.com/iliyamo/shared-session-control/internal/service"
)

// UserHandler exposes the operator user-management surface.
type UserHandler struct {
	Cfg    config.Config
	Users  *repository.UserRepo
	Auth   *service.AuthService
	Audits *repository.AuditRepo
}

func NewUserHandler(cfg config.Config, users *repository.UserRepo, auth *service.AuthService, audits *repository.AuditRepo) *UserHandler {
	return &UserHandler{Cfg: cfg, Users: users, Auth: auth, Audits: audits}
}

type createUserReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

var validRoles = map[string]bool{
	model.RoleOperatorRoot: true,
	model.RoleOperator:     true,
	model.RoleSupport:      true,
	model.RoleUser:         true,
}

var validStatuses = map[string]bool{
	model.StatusActive:    true,
	model.StatusSuspended: true,
	model.StatusDisabled:  true,
}

// List returns every user.
func (h *UserHandler) List(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	users, err := h.Users.List(ctx)
	if err != nil {
		return fail(c, err)
	}
	views := make([]userView, 0, len(users))
	for _, u := range users {
		views = append(views, viewOf(u))
	}
	return c.JSON(http.StatusOK, views)
}

// Create registers a new account.
func (h *UserHandler) Create(c echo.Context) error {
	var req createUserReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid body"})
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "email and password required"})
	}
	role := strings.ToUpper(strings.TrimSpace(req.Role))
	if role == "" {
		role = model.RoleUser
	}
	if !validRoles[role] {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "unknown role"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	id, err := h.Users.Create(ctx, req.Email, req.Password, role, h.Cfg.BcryptCost)
	if err != nil {
		return fail(c, err)
	}
	audit(ctx, h.Audits, middleware.UserID(c), "user.create", "user", strconv.FormatUint(id, 10))
	u, err := h.Users.GetByID(ctx, id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, viewOf(u))
}

// Get returns one user.
func (h *UserHandler) Get(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	u, err := h.Users.GetByID(ctx, id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, viewOf(u))
}

// Update patches the user's email.
func (h *UserHandler) Update(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}
	var req struct {
		Email string `json:"email"`
	}
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Email) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "email required"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()
	if _, err := h.Users.GetByID(ctx, id); err != nil {
		return fail(c, err)
	}
	if err := h.Users.UpdateEmail(ctx, id, req.Email); err != nil {
		return fail(c, err)
	}
	audit(ctx, h.Audits, middleware.UserID(c), "user.update", "user", c.Param("id"))
	u, err := h.Users.GetByID(ctx, id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, viewOf(u))
}

// Delete removes a user. The last operator-root cannot be deleted.
func (h *UserHandler) Delete(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Users.Delete(ctx, id); err != nil {
		return fail(c, err)
	}
	audit(ctx, h.Audits, middleware.UserID(c), "user.delete", "user", c.Param("id"))
	return c.NoContent(http.StatusNoContent)
}

// UpdateRole changes a user's role; demoting the final operator-root is a
// 409.
func (h *UserHandler) UpdateRole(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}
	var req struct {
		Role string `json:"role"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid body"})
	}
	role := strings.ToUpper(strings.TrimSpace(req.Role))
	if !validRoles[role] {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "unknown role"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Users.UpdateRole(ctx, id, role); err != nil {
		return fail(c, err)
	}
	audit(ctx, h.Audits, middleware.UserID(c), "user.role", "user", c.Param("id"))
	return c.NoContent(http.StatusNoContent)
}

// UpdateStatus sets the account status. Re-enabling a swept account happens
// here; add-payment alone never does it.
func (h *UserHandler) UpdateStatus(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}
	var req struct {
		Status string `json:"status"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid body"})
	}
	status := strings.ToUpper(strings.TrimSpace(req.Status))
	if !validStatuses[status] {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "unknown status"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()
	if _, err := h.Users.GetByID(ctx, id); err != nil {
		return fail(c, err)
	}
	if err := h.Users.UpdateStatus(ctx, id, status); err != nil {
		return fail(c, err)
	}
	audit(ctx, h.Audits, middleware.UserID(c), "user.status", "user", c.Param("id"))
	return c.NoContent(http.StatusNoContent)
}

// UpdatePassword sets a new password through the hasher.
func (h *UserHandler) UpdatePassword(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}
	var req struct {
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "password required"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()
	if _, err := h.Users.GetByID(ctx, id); err != nil {
		return fail(c, err)
	}
	if err := h.Users.SetPassword(ctx, id, req.Password, h.Cfg.BcryptCost); err != nil {
		return fail(c, err)
	}
	audit(ctx, h.Audits, middleware.UserID(c), "user.password", "user", c.Param("id"))
	return c.NoContent(http.StatusNoContent)
}

// ForceLogout terminates the user's session on the operator's behalf. The
// displaced client learns about it on its next session-status poll.
func (h *UserHandler) ForceLogout(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if _, err := h.Users.GetByID(ctx, id); err != nil {
		return fail(c, err)
	}
	if err := h.Auth.ForceLogout(ctx, id); err != nil {
		return fail(c, err)
	}
	audit(ctx, h.Audits, middleware.UserID(c), "user.force_logout", "user", c.Param("id"))
	return c.NoContent(http.StatusNoContent)
}
