package domain

import "time"

// Session is the server-side record a session token resolves to. The client only
// ever holds the opaque token; all account data stays on this side.
type Session struct {
	ID        string
	AccountID int64
	Username  string
	Role      Role
	IP        string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// IsActive reports whether the session is still valid at the supplied moment.
func (s Session) IsActive(at time.Time) bool {
	return s.ExpiresAt.After(at)
}

// LoginReport is the one-shot last-login summary attached to a fresh session.
// It is consumed exactly once and then gone.
type LoginReport struct {
	Message     string
	GeneratedAt time.Time
}
