package model

import "time"

// Role tiers from most to least privileged. Stored as the string value in
// users.role and carried verbatim in the JWT "role" claim.
const (
	RoleOperatorRoot = "OPERATOR_ROOT"
	RoleOperator     = "OPERATOR"
	RoleSupport      = "SUPPORT"
	RoleUser         = "USER"
)

// Account status values. DISABLED is set by the billing sweeper or an
// operator; disabled accounts fail the login status gate.
const (
	StatusActive    = "ACTIVE"
	StatusSuspended = "SUSPENDED"
	StatusDisabled  = "DISABLED"
)

// User represents an application user record as stored in the `users` table.
// CurrentSessionToken holds the access token of the single session allowed
// to act for this user; it is nil when the user has no active session.
// The billing fields are a materialized projection of the payments ledger.
type User struct {
	ID                  uint64     // users.id
	Email               string     // users.email
	PasswordHash        string     // users.password_hash
	Role                string     // users.role
	Status              string     // users.status
	CurrentSessionToken *string    // users.current_session_token (nullable)
	LastLoginAt         *time.Time // users.last_login_at
	LastLoginIP         *string    // users.last_login_ip
	IsTrialActive       bool       // users.is_trial_active
	IsBillingActive     bool       // users.is_billing_active
	TrialStartDate      *time.Time // users.trial_start_date
	TrialEndDate        *time.Time // users.trial_end_date
	BillingCycle        *string    // users.billing_cycle
	BillingCycleStart   *time.Time // users.billing_cycle_start_date
	BillingCycleEnd     *time.Time // users.billing_cycle_end_date
	CreatedAt           time.Time  // users.created_at
	UpdatedAt           time.Time  // users.updated_at
}

// RoleRank maps a role to its privilege rank. Higher outranks lower; used by
// the role middleware to enforce minimum-role route policies.
func RoleRank(role string) int {
	switch role {
	case RoleOperatorRoot:
		return 4
	case RoleOperator:
		return 3
	case RoleSupport:
		return 2
	case RoleUser:
		return 1
	}
	return 0
}
