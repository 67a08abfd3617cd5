package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/shared-session-control/internal/model"
	"github.com/iliyamo/shared-session-control/internal/repository"
	"github.com/iliyamo/shared-session-control/internal/service"
)

// dbTimeout bounds every handler-initiated database call.
const dbTimeout = 10 * time.Second

// reqCtx derives the bounded context used for repository calls.
func reqCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), dbTimeout)
}

// fail maps domain errors onto HTTP statuses per the error design:
// validation 400, unauthenticated 401, forbidden 403, not-found 404,
// conflict 409, upstream 502, everything else 500. Upstream detail is
// logged, never echoed.
func fail(c echo.Context, err error) error {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": "invalid credentials"})
	case errors.Is(err, service.ErrInactiveAccount):
		return c.JSON(http.StatusForbidden, echo.Map{"message": "account is not active"})
	case errors.Is(err, service.ErrBillingExpired):
		return c.JSON(http.StatusForbidden, echo.Map{"message": "billing period has expired"})
	case errors.Is(err, repository.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"message": "not found"})
	case errors.Is(err, repository.ErrEmailExists):
		return c.JSON(http.StatusConflict, echo.Map{"message": "email already exists"})
	case errors.Is(err, repository.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"message": "operation conflicts with current state"})
	case errors.Is(err, repository.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"message": "forbidden"})
	case errors.Is(err, service.ErrBundleNotReady):
		return c.JSON(http.StatusConflict, echo.Map{"message": "bundle is not ready for download"})
	case errors.Is(err, service.ErrNoUploadGrant):
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "no upload was requested"})
	case errors.Is(err, service.ErrUnknownCycle):
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "unknown billing cycle"})
	case errors.Is(err, service.ErrUpstream):
		log.Printf("handler: upstream failure: %v", err)
		return c.JSON(http.StatusBadGateway, echo.Map{"message": "upstream service unavailable"})
	}
	log.Printf("handler: internal error: %v", err)
	return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
}

// pathID parses the :id route parameter.
func pathID(c echo.Context) (uint64, error) {
	return strconv.ParseUint(c.Param("id"), 10, 64)
}

// userView is the user projection returned by every endpoint; the password
// hash and session token never leave the server.
type userView struct {
	ID              uint64     `json:"id"`
	Email           string     `json:"email"`
	Role            string     `json:"role"`
	Status          string     `json:"status"`
	LastLoginAt     *time.Time `json:"last_login_at,omitempty"`
	LastLoginIP     *string    `json:"last_login_ip,omitempty"`
	IsTrialActive   bool       `json:"is_trial_active"`
	IsBillingActive bool       `json:"is_billing_active"`
	TrialEndDate    *time.Time `json:"trial_end_date,omitempty"`
	BillingCycleEnd *time.Time `json:"billing_cycle_end_date,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

func viewOf(u model.User) userView {
	return userView{
		ID:              u.ID,
		Email:           u.Email,
		Role:            u.Role,
		Status:          u.Status,
		LastLoginAt:     u.LastLoginAt,
		LastLoginIP:     u.LastLoginIP,
		IsTrialActive:   u.IsTrialActive,
		IsBillingActive: u.IsBillingActive,
		TrialEndDate:    u.TrialEndDate,
		BillingCycleEnd: u.BillingCycleEnd,
		CreatedAt:       u.CreatedAt,
	}
}

// audit writes a fire-and-forget journal row for a privileged action.
func audit(ctx context.Context, audits *repository.AuditRepo, actorID uint64, action, targetType, targetID string) {
	if audits == nil {
		return
	}
	a := model.AuditLog{ActorID: &actorID, Action: action, TargetType: targetType, TargetID: targetID}
	if err := audits.Create(ctx, &a); err != nil {
		log.Printf("audit: write failed for action %s: %v", action, err)
	}
}
