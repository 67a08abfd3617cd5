package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Health is the unauthenticated liveness probe. Load balancers and the
// desktop client's connectivity check hit it; it never touches the database.
func Health(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}
