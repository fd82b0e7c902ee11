package domain

import "time"

// AuditEventType categorizes audit log entries.
type AuditEventType string

const (
	AuditEventAuthentication    AuditEventType = "Authentication"
	AuditEventInputValidation   AuditEventType = "Input Validation"
	AuditEventAccessControl     AuditEventType = "Access Control"
	AuditEventAccountManagement AuditEventType = "Account Management"
)

// AuditStatus marks an audit entry as the record of a successful or failed action.
type AuditStatus string

const (
	AuditStatusSuccess AuditStatus = "Success"
	AuditStatusFailure AuditStatus = "Failure"
)

// AuditEntry mirrors a row of the append-only audit_logs table. UserID is nil when
// the acting account could not be resolved; Username then carries the attempted
// name or "Guest".
type AuditEntry struct {
	ID          int64
	EventType   AuditEventType
	UserID      *int64
	Username    string
	IPAddress   string
	Status      AuditStatus
	Description string
	CreatedAt   time.Time
}
