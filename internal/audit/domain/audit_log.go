package domain

import "time"

// AuditLog represents one recorded protocol event.
type AuditLog struct {
	ID        string
	UserID    string
	DeviceID  string
	RPID      string
	Action    string
	Outcome   string
	IP        string
	Metadata  string
	CreatedAt time.Time
}
