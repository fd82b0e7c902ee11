package port

import (
	"context"
	"time"

	"github.com/Skillial/CSSECDV-Case-Study/internal/core/domain"
)

// AccountRepository exposes persistence behavior for accounts, their password
// history and category assignments.
type AccountRepository interface {
	// Create inserts the account and its initial password-history entry in one
	// transaction and returns the generated id.
	Create(ctx context.Context, account domain.Account) (int64, error)
	GetByUsername(ctx context.Context, username string) (*domain.Account, error)
	GetByID(ctx context.Context, id int64) (*domain.Account, error)
	List(ctx context.Context, limit, offset int) ([]domain.Account, error)

	// RecordFailedAttempt atomically increments login_attempts, stamps
	// last_login_attempt and applies the lockout when the incremented count
	// reaches threshold. It returns the post-update state.
	RecordFailedAttempt(ctx context.Context, id int64, at time.Time, threshold int, lockFor time.Duration) (*domain.Account, error)
	// ResetLockout clears login_attempts and lockout_until.
	ResetLockout(ctx context.Context, id int64) error
	// RecordSuccessfulLogin resets the counter and stamps both
	// last_successful_login and last_login_attempt.
	RecordSuccessfulLogin(ctx context.Context, id int64, at time.Time) error

	// UpdatePassword transactionally replaces the hash, stamps
	// last_password_change, clears the lockout state and appends the new hash
	// to the history. History rows are never deleted; the reuse window is
	// bounded at read time by ListPasswordHistory.
	UpdatePassword(ctx context.Context, id int64, passwordHash string, changedAt time.Time) error
	ListPasswordHistory(ctx context.Context, id int64, limit int) ([]domain.PasswordHistoryEntry, error)

	UpdateAddress(ctx context.Context, id int64, address string) error
	UpdateProfileImage(ctx context.Context, image domain.ProfileImage) error
	GetProfileImage(ctx context.Context, id int64) (*domain.ProfileImage, error)

	// ReplaceCategoryAssignments swaps the full assignment set for a manager
	// account in one transaction.
	ReplaceCategoryAssignments(ctx context.Context, id int64, categories []string, at time.Time) error
	ListCategoryAssignments(ctx context.Context, id int64) ([]domain.CategoryAssignment, error)
}

// SecurityQuestionRepository persists the per-account recovery question.
type SecurityQuestionRepository interface {
	Upsert(ctx context.Context, question domain.SecurityQuestion) error
	GetByAccountID(ctx context.Context, accountID int64) (*domain.SecurityQuestion, error)
}
