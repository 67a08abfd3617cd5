package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/shared-session-control/internal/middleware"
	"github.com/iliyamo/shared-session-control/internal/service"
)

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Auth *service.AuthService
}

func NewAuthHandler(auth *service.AuthService) *AuthHandler {
	return &AuthHandler{Auth: auth}
}

// ----- DTOs -----

type loginReq struct {
	Email          string `json:"email"`
	Password       string `json:"password"`
	MACAddress     string `json:"macAddress"`
	DeviceMetadata string `json:"deviceMetadata"`
}
type refreshReq struct {
	RefreshToken string `json:"refreshToken"`
}

type authResp struct {
	User   userView          `json:"user"`
	Tokens service.TokenPair `json:"tokens"`
}

// Login runs the full pipeline. Both unknown-email and bad-password produce
// the same 401 body; a bad password is recorded in login history, while an
// unknown email leaves no history row and raises a system-scoped alert.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid body"})
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "email and password required"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	res, err := h.Auth.Login(ctx, service.LoginInput{
		Email:          req.Email,
		Password:       req.Password,
		IP:             c.RealIP(),
		UserAgent:      c.Request().UserAgent(),
		MACAddress:     req.MACAddress,
		DeviceMetadata: req.DeviceMetadata,
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, authResp{User: viewOf(res.User), Tokens: res.Tokens})
}

// Refresh exchanges a refresh token for a new pair. The new access token
// becomes the user's current session token immediately.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "refreshToken required"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	tokens, err := h.Auth.Refresh(ctx, strings.TrimSpace(req.RefreshToken))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"tokens": tokens})
}

// Me returns the authenticated user's projection.
func (h *AuthHandler) Me(c echo.Context) error {
	u, err := h.Auth.CurrentUser(c.Request().Context(), middleware.UserID(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, viewOf(u))
}

// SessionStatus reaches this handler only when the middleware accepted the
// token, so it always reports valid. The displaced-session 401 with its
// stable reason comes from the middleware itself; clients poll this every
// few seconds.
func (h *AuthHandler) SessionStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"valid": true, "userId": middleware.UserID(c)})
}

// Logout closes the caller's session and clears the current session token.
func (h *AuthHandler) Logout(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Auth.Logout(ctx, middleware.UserID(c)); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
