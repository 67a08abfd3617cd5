package service

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/iliyamo/shared-session-control/internal/model"
)

// Billing states derived from the user's projection fields.
const (
	BillingStateActive  = "active"
	BillingStateExpired = "expired"
	BillingStateNoPlan  = "no_plan"
)

// ErrUnknownCycle is returned for cycle values outside the supported set.
var ErrUnknownCycle = errors.New("unknown billing cycle")

// BillingStatus is the derived standing of a user's plan.
type BillingStatus struct {
	State         string `json:"state"`
	DaysRemaining int    `json:"days_remaining,omitempty"`
}

// BillingUserStore is the slice of the user repository the billing engine
// mutates.
type BillingUserStore interface {
	GetByID(ctx context.Context, id uint64) (model.User, error)
	UpdateCycleFields(ctx context.Context, id uint64, cycle string, start, end time.Time) error
	UpdateTrialFields(ctx context.Context, id uint64, start, end time.Time) error
}

// BillingLedger is the slice of the billing repository the engine writes.
type BillingLedger interface {
	CreatePayment(ctx context.Context, p *model.Payment) error
	CreateHistory(ctx context.Context, h *model.BillingHistory) error
}

// BillingService owns cycle arithmetic, the status projection and the
// operator-facing billing operations. now is a seam for tests.
type BillingService struct {
	users  BillingUserStore
	ledger BillingLedger
	now    func() time.Time
}

func NewBillingService(users BillingUserStore, ledger BillingLedger) *BillingService {
	return &BillingService{users: users, ledger: ledger, now: func() time.Time { return time.Now().UTC() }}
}

// AddCycle returns start advanced by one cycle duration. Month-based cycles
// preserve the day-of-month where possible and clamp to the last day of the
// target month otherwise (Jan 31 + 1 month = Feb 28/29).
func AddCycle(start time.Time, cycle string) (time.Time, error) {
	switch cycle {
	case model.CycleDaily:
		return start.Add(24 * time.Hour), nil
	case model.CycleWeekly:
		return start.Add(7 * 24 * time.Hour), nil
	case model.CycleMonthly:
		return addMonthsClamped(start, 1), nil
	case model.CycleThreeMonths:
		return addMonthsClamped(start, 3), nil
	case model.CycleHalfYear:
		return addMonthsClamped(start, 6), nil
	case model.CycleYearly:
		return addMonthsClamped(start, 12), nil
	}
	return time.Time{}, ErrUnknownCycle
}

// addMonthsClamped adds calendar months without the normalization overflow
// of time.AddDate (which turns Jan 31 + 1 month into Mar 2/3).
func addMonthsClamped(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	m := int(month) + months
	year += (m - 1) / 12
	month = time.Month((m-1)%12 + 1)
	if last := daysInMonth(year, month); day > last {
		day = last
	}
	return time.Date(year, month, day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// StatusOf derives the billing standing at instant now. End dates are
// exclusive upper bounds: a login at the exact end instant is expired.
func StatusOf(u model.User, now time.Time) BillingStatus {
	if u.IsTrialActive && u.TrialEndDate != nil && now.Before(*u.TrialEndDate) {
		return BillingStatus{State: BillingStateActive, DaysRemaining: daysUntil(now, *u.TrialEndDate)}
	}
	if u.IsBillingActive && u.BillingCycleEnd != nil && now.Before(*u.BillingCycleEnd) {
		return BillingStatus{State: BillingStateActive, DaysRemaining: daysUntil(now, *u.BillingCycleEnd)}
	}
	if u.TrialEndDate != nil && !now.Before(*u.TrialEndDate) {
		return BillingStatus{State: BillingStateExpired}
	}
	if u.BillingCycleEnd != nil && !now.Before(*u.BillingCycleEnd) {
		return BillingStatus{State: BillingStateExpired}
	}
	return BillingStatus{State: BillingStateNoPlan}
}

// daysUntil returns the ceiling of (end-now) in whole days.
func daysUntil(now, end time.Time) int {
	d := end.Sub(now)
	days := int(d / (24 * time.Hour))
	if d%(24*time.Hour) > 0 {
		days++
	}
	return days
}

// Status returns the derived standing for one user.
func (s *BillingService) Status(ctx context.Context, userID uint64) (BillingStatus, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return BillingStatus{}, err
	}
	return StatusOf(u, s.now()), nil
}

// StartCycle begins a billing cycle at startDate (now when zero), clearing
// any trial.
func (s *BillingService) StartCycle(ctx context.Context, userID uint64, cycle string, startDate time.Time) error {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return err
	}
	if startDate.IsZero() {
		startDate = s.now()
	}
	end, err := AddCycle(startDate, cycle)
	if err != nil {
		return err
	}
	if err := s.users.UpdateCycleFields(ctx, userID, cycle, startDate, end); err != nil {
		return err
	}
	s.history(ctx, userID, model.BillingCycleStarted, map[string]any{
		"cycle": cycle, "cycle_start": startDate, "cycle_end": end,
	})
	return nil
}

// AddPayment appends a ledger row and extends the user's cycle. The new
// cycle starts at the later of now and the current cycle end, so
// prepayments stack instead of overlapping.
func (s *BillingService) AddPayment(ctx context.Context, userID uint64, cycle, amount, memo string, adminID uint64) (model.Payment, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return model.Payment{}, err
	}
	now := s.now()
	cycleStart := now
	if u.BillingCycleEnd != nil && u.BillingCycleEnd.After(now) {
		cycleStart = *u.BillingCycleEnd
	}
	cycleEnd, err := AddCycle(cycleStart, cycle)
	if err != nil {
		return model.Payment{}, err
	}

	p := model.Payment{
		UserID:         userID,
		Amount:         amount,
		Cycle:          cycle,
		PaymentDate:    now,
		CycleStartDate: cycleStart,
		CycleEndDate:   cycleEnd,
		CreatedBy:      &adminID,
	}
	if memo != "" {
		p.Memo = &memo
	}
	if err := s.ledger.CreatePayment(ctx, &p); err != nil {
		return model.Payment{}, err
	}
	// Materialize the extension. Note: this does not re-enable a DISABLED
	// account; an operator must flip status separately.
	if err := s.users.UpdateCycleFields(ctx, userID, cycle, cycleStart, cycleEnd); err != nil {
		return model.Payment{}, err
	}
	s.history(ctx, userID, model.BillingPaymentAdded, map[string]any{
		"payment_id": p.ID, "amount": amount, "cycle": cycle,
		"cycle_start": cycleStart, "cycle_end": cycleEnd, "added_by": adminID,
	})
	return p, nil
}

// SetTrial grants a trial window of the given hours starting now, clearing
// any cycle.
func (s *BillingService) SetTrial(ctx context.Context, userID uint64, hours int) error {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return err
	}
	start := s.now()
	end := start.Add(time.Duration(hours) * time.Hour)
	if err := s.users.UpdateTrialFields(ctx, userID, start, end); err != nil {
		return err
	}
	s.history(ctx, userID, model.BillingTrialStarted, map[string]any{
		"trial_start": start, "trial_end": end, "hours": hours,
	})
	return nil
}

// history appends a billing-state transition. Best-effort: failures are
// logged, never surfaced.
func (s *BillingService) history(ctx context.Context, userID uint64, event string, details map[string]any) {
	blob, _ := json.Marshal(details)
	if err := s.ledger.CreateHistory(ctx, &model.BillingHistory{
		UserID: userID, Event: event, Details: blob,
	}); err != nil {
		log.Printf("billing: history write failed: %v", err)
	}
}
