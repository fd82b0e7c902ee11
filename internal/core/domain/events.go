package domain

import "time"

// AuditRecordedEvent represents the payload for occasio.audit.recorded messages.
type AuditRecordedEvent struct {
	EventID     string
	EventType   string
	UserID      *int64
	Username    string
	IPAddress   string
	Status      string
	Description string
	OccurredAt  time.Time
}

// AccountLockedEvent represents the payload for occasio.account.locked messages.
type AccountLockedEvent struct {
	EventID     string
	AccountID   int64
	Username    string
	Attempts    int
	LockedUntil time.Time
	OccurredAt  time.Time
}

// PasswordChangedEvent represents the payload for occasio.password.changed messages.
type PasswordChangedEvent struct {
	EventID    string
	AccountID  int64
	Username   string
	ChangedBy  string
	OccurredAt time.Time
}
