package domain

import "time"

// Account mirrors the persisted representation in the accounts table.
type Account struct {
	ID                  int64
	Username            string
	PasswordHash        string
	Role                Role
	Address             *string
	LoginAttempts       int
	LockoutUntil        *time.Time
	LastSuccessfulLogin *time.Time
	LastLoginAttempt    *time.Time
	LastPasswordChange  *time.Time
	CreatedAt           time.Time
}

// IsLocked reports whether the account lockout is still in force at the supplied moment.
func (a Account) IsLocked(at time.Time) bool {
	return a.LockoutUntil != nil && at.Before(*a.LockoutUntil)
}

// PasswordHistoryEntry tracks historical password hashes for reuse prevention.
type PasswordHistoryEntry struct {
	ID           int64
	AccountID    int64
	PasswordHash string
	ChangedAt    time.Time
}

// SecurityQuestion stores the recovery question and the hashed answer for an account.
// The answer is hashed with the same work factor as a password.
type SecurityQuestion struct {
	AccountID  int64
	Question   string
	AnswerHash string
	UpdatedAt  time.Time
}

// ProfileImage is the stored profile picture blob for an account.
type ProfileImage struct {
	AccountID   int64
	ContentType string
	Data        []byte
	UpdatedAt   time.Time
}

// CategoryAssignment links a manager account to a product category it oversees.
type CategoryAssignment struct {
	AccountID  int64
	Category   string
	AssignedAt time.Time
}
