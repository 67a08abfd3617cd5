package model

import "time"

// Billing cycle types. Duration semantics live in service/billing: day-based
// cycles add whole days, month-based cycles add calendar months with
// day-of-month clamping.
const (
	CycleDaily       = "DAILY"
	CycleWeekly      = "WEEKLY"
	CycleMonthly     = "MONTHLY"
	CycleThreeMonths = "THREE_MONTHS"
	CycleHalfYear    = "HALF_YEAR"
	CycleYearly      = "YEARLY"
)

// Billing history events.
const (
	BillingCycleStarted = "CYCLE_STARTED"
	BillingPaymentAdded = "PAYMENT_ADDED"
	BillingTrialStarted = "TRIAL_STARTED"
	BillingAutoDisabled = "AUTO_DISABLED"
)

// Payment is one row in the append-only payments ledger. Rows are never
// mutated after creation; the user's billing fields are a projection over
// this table.
type Payment struct {
	ID             uint64
	UserID         uint64
	Amount         string // DECIMAL(12,2), kept as string to avoid float drift
	Cycle          string
	PaymentDate    time.Time
	CycleStartDate time.Time
	CycleEndDate   time.Time
	Memo           *string
	CreatedBy      *uint64
}

// BillingHistory is the append-only audit of billing-state transitions. It
// exists for support and never affects behavior.
type BillingHistory struct {
	ID        uint64
	UserID    uint64
	Event     string
	Details   []byte
	CreatedAt time.Time
}
