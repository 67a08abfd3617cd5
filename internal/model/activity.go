package model

import "time"

// Logout reasons recorded on session_activity rows when a session closes.
const (
	LogoutManual        = "MANUAL"
	LogoutNewLogin      = "NEW_LOGIN"
	LogoutForcedByAdmin = "FORCED_BY_ADMIN"
	LogoutTokenExpired  = "TOKEN_EXPIRED"
)

// Failure reasons stored on unsuccessful login_history rows. The login
// endpoint never leaks these to the caller; both credential failures map to
// the same HTTP 401 body.
const (
	FailureBadPassword     = "bad_password"
	FailureInactiveAccount = "inactive_account"
	FailureBillingExpired  = "billing_expired"
)

// LoginHistory is one row per login attempt, successful or not. UserID is
// always set: attempts against nonexistent accounts are not recorded here
// (they produce a system-scoped security alert instead).
type LoginHistory struct {
	ID                uint64
	UserID            *uint64
	Email             string
	IP                string
	City              *string
	Country           *string
	Latitude          *float64
	Longitude         *float64
	DeviceFingerprint string
	Success           bool
	FailureReason     *string
	CreatedAt         time.Time
}

// SessionActivity is the durable record of one login's lifetime. At any
// moment at most one row per user has IsActive=true; the login pipeline
// closes prior rows inside the same transaction that inserts a new one.
type SessionActivity struct {
	ID                uint64
	UserID            uint64
	SessionToken      string
	IP                string
	City              *string
	Country           *string
	Latitude          *float64
	Longitude         *float64
	DeviceFingerprint string
	LoginAt           time.Time
	LastActivityAt    time.Time
	IsActive          bool
	LogoutAt          *time.Time
	LogoutReason      *string
}
