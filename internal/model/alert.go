package model

import "time"

// Alert types fired by the login pipeline.
const (
	AlertFailedLogin         = "FAILED_LOGIN"
	AlertMultipleDeviceLogin = "MULTIPLE_DEVICE_LOGIN"
	AlertSuspiciousLocation  = "SUSPICIOUS_LOCATION"
)

// Alert severities.
const (
	SeverityLow      = "LOW"
	SeverityMedium   = "MEDIUM"
	SeverityHigh     = "HIGH"
	SeverityCritical = "CRITICAL"
)

// SecurityAlert is an append-only record surfaced on the admin dashboard.
// IsRead and IsDismissed only ever transition false -> true. Metadata is a
// JSON blob whose shape depends on AlertType.
type SecurityAlert struct {
	ID          uint64
	UserID      *uint64
	AlertType   string
	Severity    string
	Message     string
	Metadata    []byte
	IsRead      bool
	IsDismissed bool
	CreatedAt   time.Time
}
