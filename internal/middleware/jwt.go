package middleware // middleware provides shared request processing for handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/shared-session-control/internal/model"
	"github.com/iliyamo/shared-session-control/internal/utils"
)

// ReasonDisplaced is the stable reason string returned when the presented
// token is valid but no longer the user's current session token. Clients
// poll session-status and log themselves out on this reason.
const ReasonDisplaced = "logged_out_from_another_device"

// AuthUserLoader loads users for per-request revalidation.
type AuthUserLoader interface {
	GetByID(ctx context.Context, id uint64) (model.User, error)
}

// ActivityToucher bumps last_activity_at; failures are swallowed.
type ActivityToucher interface {
	TouchActivity(ctx context.Context, userID uint64, at time.Time) error
}

// Auth returns the authentication middleware run on every protected route:
//
//  1. Extract and verify the bearer access token. Expiry maps to its own
//     401 body so the client knows to refresh.
//  2. Load the user; reject missing or non-active accounts.
//  3. Compare the bearer to the user's current session token. A mismatch
//     means this session was displaced by a newer login.
//  4. Touch the active session's last-activity timestamp (best-effort).
//
// On success the user id, role and loaded user are stored in the context
// under "user_id", "role" and "user".
func Auth(secret string, users AuthUserLoader, sessions ActivityToucher) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"message": "missing bearer token"})
			}
			raw := strings.TrimPrefix(auth, "Bearer ")

			userID, role, err := utils.VerifyToken(secret, raw)
			if err != nil {
				if errors.Is(err, utils.ErrTokenExpired) {
					return c.JSON(http.StatusUnauthorized, echo.Map{"message": "token expired", "reason": "token_expired"})
				}
				return c.JSON(http.StatusUnauthorized, echo.Map{"message": "invalid token"})
			}

			ctx := c.Request().Context()
			u, err := users.GetByID(ctx, userID)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"message": "invalid token"})
			}
			if u.Status != model.StatusActive {
				return c.JSON(http.StatusForbidden, echo.Map{"message": "account is not active"})
			}
			if u.CurrentSessionToken == nil || *u.CurrentSessionToken != raw {
				return c.JSON(http.StatusUnauthorized, echo.Map{
					"message": "session was terminated",
					"reason":  ReasonDisplaced,
				})
			}

			if err := sessions.TouchActivity(ctx, userID, time.Now().UTC()); err != nil {
				log.Printf("middleware: activity touch failed for user %d: %v", userID, err)
			}

			c.Set("user_id", userID)
			c.Set("role", role)
			c.Set("user", u)
			return next(c)
		}
	}
}

// UserID extracts the authenticated user's id stored by Auth.
func UserID(c echo.Context) uint64 {
	if v, ok := c.Get("user_id").(uint64); ok {
		return v
	}
	return 0
}

// Role extracts the authenticated user's role stored by Auth.
func Role(c echo.Context) string {
	if v, ok := c.Get("role").(string); ok {
		return v
	}
	return ""
}
