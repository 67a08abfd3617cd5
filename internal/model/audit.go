package model

import "time"

// AuditLog is the privileged-action journal. Writes are fire-and-forget from
// handlers: a failed insert is logged and the originating request proceeds.
type AuditLog struct {
	ID         uint64
	ActorID    *uint64
	Action     string
	TargetType string
	TargetID   string
	Metadata   []byte
	CreatedAt  time.Time
}

// Domain is a configuration catalog entry naming an upstream web application
// whose session the shared bundle captures.
type Domain struct {
	ID        uint64
	Name      string
	BaseURL   string
	CreatedAt time.Time
}

// Proxy is a configuration catalog entry for the egress proxy; the shared
// bundle row may reference one.
type Proxy struct {
	ID        uint64
	Host      string
	Port      string
	Username  *string
	Password  *string
	CreatedAt time.Time
}
