package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/shared-session-control/internal/middleware"
	"github.com/iliyamo/shared-session-control/internal/model"
	"github.com/iliyamo/shared-session-control/internal/repository"
	"github.com/iliyamo/shared-session-control/internal/service"
)

// BillingHandler exposes the billing mutations and queries. Per the router's
// policy table, queries sit behind role >= support and mutations behind
// role >= operator.
type BillingHandler struct {
	Billing *service.BillingService
	Ledger  *repository.BillingRepo
	Audits  *repository.AuditRepo
}

func NewBillingHandler(billing *service.BillingService, ledger *repository.BillingRepo, audits *repository.AuditRepo) *BillingHandler {
	return &BillingHandler{Billing: billing, Ledger: ledger, Audits: audits}
}

var validCycles = map[string]bool{
	model.CycleDaily:       true,
	model.CycleWeekly:      true,
	model.CycleMonthly:     true,
	model.CycleThreeMonths: true,
	model.CycleHalfYear:    true,
	model.CycleYearly:      true,
}

// Status returns the derived billing standing for a user.
func (h *BillingHandler) Status(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	status, err := h.Billing.Status(ctx, id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, status)
}

// StartCycle begins a billing cycle for a user.
func (h *BillingHandler) StartCycle(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}
	var req struct {
		Cycle     string     `json:"cycle"`
		StartDate *time.Time `json:"startDate"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid body"})
	}
	cycle := strings.ToUpper(strings.TrimSpace(req.Cycle))
	if !validCycles[cycle] {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "unknown billing cycle"})
	}
	var start time.Time
	if req.StartDate != nil {
		start = req.StartDate.UTC()
	}

	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Billing.StartCycle(ctx, id, cycle, start); err != nil {
		return fail(c, err)
	}
	audit(ctx, h.Audits, middleware.UserID(c), "billing.start_cycle", "user", c.Param("id"))
	return c.NoContent(http.StatusNoContent)
}

// AddPayment records a payment and extends the cycle. It never re-enables a
// disabled account; that is an explicit operator action.
func (h *BillingHandler) AddPayment(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}
	var req struct {
		Cycle  string `json:"cycle"`
		Amount string `json:"amount"`
		Memo   string `json:"memo"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid body"})
	}
	cycle := strings.ToUpper(strings.TrimSpace(req.Cycle))
	if !validCycles[cycle] {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "unknown billing cycle"})
	}
	if strings.TrimSpace(req.Amount) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "amount required"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()
	p, err := h.Billing.AddPayment(ctx, id, cycle, req.Amount, req.Memo, middleware.UserID(c))
	if err != nil {
		return fail(c, err)
	}
	audit(ctx, h.Audits, middleware.UserID(c), "billing.add_payment", "user", c.Param("id"))
	return c.JSON(http.StatusCreated, p)
}

// SetTrial grants a trial window in hours.
func (h *BillingHandler) SetTrial(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}
	var req struct {
		Hours int `json:"hours"`
	}
	if err := c.Bind(&req); err != nil || req.Hours <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "hours must be positive"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Billing.SetTrial(ctx, id, req.Hours); err != nil {
		return fail(c, err)
	}
	audit(ctx, h.Audits, middleware.UserID(c), "billing.set_trial", "user", c.Param("id"))
	return c.NoContent(http.StatusNoContent)
}

// Payments lists a user's payment ledger.
func (h *BillingHandler) Payments(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	payments, err := h.Ledger.ListPaymentsByUser(ctx, id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, payments)
}

// History lists a user's billing-state transitions.
func (h *BillingHandler) History(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	items, err := h.Ledger.ListHistoryByUser(ctx, id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, items)
}
