package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/shared-session-control/internal/model"
)

// RequireRole returns a middleware enforcing that the authenticated user's
// role ranks at or above minRole (operator-root > operator > support >
// user). It assumes Auth has stored the role in the context. Routes declare
// their minimum role in the router's policy table, so the full surface is
// enumerable and testable.
func RequireRole(minRole string) echo.MiddlewareFunc {
	min := model.RoleRank(minRole)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, ok := c.Get("role").(string)
			if !ok || model.RoleRank(role) < min {
				return c.JSON(http.StatusForbidden, echo.Map{"message": "forbidden"})
			}
			return next(c)
		}
	}
}
