package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Skillial/CSSECDV-Case-Study/internal/core/domain"
	"github.com/Skillial/CSSECDV-Case-Study/internal/core/port"
	"github.com/Skillial/CSSECDV-Case-Study/internal/repository"
)

var accountColumns = []string{
	"id",
	"username",
	"password_hash",
	"role",
	"address",
	"login_attempts",
	"lockout_until",
	"last_successful_login",
	"last_login_attempt",
	"last_password_change",
	"created_at",
}

// AccountRepository implements port.AccountRepository using PostgreSQL.
type AccountRepository struct {
	pool    pgPool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewAccountRepository wires a PostgreSQL-backed account repository.
func NewAccountRepository(pool *pgxpool.Pool) *AccountRepository {
	return &AccountRepository{
		pool:    pool,
		exec:    pool,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// WithTx returns a repository instance operating within the supplied transaction.
func (r *AccountRepository) WithTx(tx pgx.Tx) *AccountRepository {
	if tx == nil {
		return r
	}
	return &AccountRepository{
		pool:    r.pool,
		exec:    tx,
		builder: r.builder,
	}
}

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var account domain.Account
	if err := row.Scan(
		&account.ID,
		&account.Username,
		&account.PasswordHash,
		&account.Role,
		&account.Address,
		&account.LoginAttempts,
		&account.LockoutUntil,
		&account.LastSuccessfulLogin,
		&account.LastLoginAttempt,
		&account.LastPasswordChange,
		&account.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan account: %w", err)
	}
	return &account, nil
}

// Create inserts the account together with its initial password-history entry.
// A username collision surfaces as repository.ErrDuplicate.
func (r *AccountRepository) Create(ctx context.Context, account domain.Account) (int64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin create account tx: %w", err)
	}
	defer tx.Rollback(ctx)

	stmt, args, err := r.builder.Insert("occasio.accounts").
		Columns("username", "password_hash", "role", "address", "created_at").
		Values(account.Username, account.PasswordHash, account.Role, account.Address, account.CreatedAt).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build insert account sql: %w", err)
	}

	var id int64
	if err := tx.QueryRow(ctx, stmt, args...).Scan(&id); err != nil {
		if isUniqueViolation(err) {
			return 0, repository.ErrDuplicate
		}
		return 0, fmt.Errorf("insert account: %w", err)
	}

	stmt, args, err = r.builder.Insert("occasio.password_history").
		Columns("account_id", "password_hash", "changed_at").
		Values(id, account.PasswordHash, account.CreatedAt).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build insert initial password history sql: %w", err)
	}

	if _, err := tx.Exec(ctx, stmt, args...); err != nil {
		return 0, fmt.Errorf("insert initial password history: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit create account tx: %w", err)
	}

	return id, nil
}

// GetByUsername retrieves an account by its unique username.
func (r *AccountRepository) GetByUsername(ctx context.Context, username string) (*domain.Account, error) {
	stmt, args, err := r.builder.Select(accountColumns...).
		From("occasio.accounts").
		Where(squirrel.Eq{"username": username}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select account by username sql: %w", err)
	}

	return scanAccount(r.exec.QueryRow(ctx, stmt, args...))
}

// GetByID retrieves an account by identifier.
func (r *AccountRepository) GetByID(ctx context.Context, id int64) (*domain.Account, error) {
	stmt, args, err := r.builder.Select(accountColumns...).
		From("occasio.accounts").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select account sql: %w", err)
	}

	return scanAccount(r.exec.QueryRow(ctx, stmt, args...))
}

// List returns accounts ordered by creation time with pagination.
func (r *AccountRepository) List(ctx context.Context, limit, offset int) ([]domain.Account, error) {
	query := r.builder.Select(accountColumns...).
		From("occasio.accounts").
		OrderBy("created_at DESC")

	if limit > 0 {
		query = query.Limit(uint64(limit))
	}
	if offset > 0 {
		query = query.Offset(uint64(offset))
	}

	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list accounts sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	defer rows.Close()

	accounts := make([]domain.Account, 0)
	for rows.Next() {
		var account domain.Account
		if err := rows.Scan(
			&account.ID,
			&account.Username,
			&account.PasswordHash,
			&account.Role,
			&account.Address,
			&account.LoginAttempts,
			&account.LockoutUntil,
			&account.LastSuccessfulLogin,
			&account.LastLoginAttempt,
			&account.LastPasswordChange,
			&account.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, account)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}

	return accounts, nil
}

// RecordFailedAttempt increments the counter, stamps the attempt and applies the
// lockout in a single statement so concurrent failures cannot race past the
// threshold. The freshly incremented state is returned.
func (r *AccountRepository) RecordFailedAttempt(ctx context.Context, id int64, at time.Time, threshold int, lockFor time.Duration) (*domain.Account, error) {
	stmt := `
		UPDATE occasio.accounts
		   SET login_attempts = login_attempts + 1,
		       last_login_attempt = $2,
		       lockout_until = CASE
		           WHEN login_attempts + 1 >= $3 THEN $4
		           ELSE lockout_until
		       END
		 WHERE id = $1
		RETURNING id, username, password_hash, role, address, login_attempts,
		          lockout_until, last_successful_login, last_login_attempt,
		          last_password_change, created_at
	`

	account, err := scanAccount(r.exec.QueryRow(ctx, stmt, id, at, threshold, at.Add(lockFor)))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("record failed attempt: %w", err)
	}

	return account, nil
}

// ResetLockout clears the failed-attempt counter and any pending lockout.
func (r *AccountRepository) ResetLockout(ctx context.Context, id int64) error {
	stmt, args, err := r.builder.Update("occasio.accounts").
		Set("login_attempts", 0).
		Set("lockout_until", nil).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build reset lockout sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("reset lockout: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// RecordSuccessfulLogin resets the counter and stamps both login timestamps.
func (r *AccountRepository) RecordSuccessfulLogin(ctx context.Context, id int64, at time.Time) error {
	stmt, args, err := r.builder.Update("occasio.accounts").
		Set("login_attempts", 0).
		Set("lockout_until", nil).
		Set("last_successful_login", at).
		Set("last_login_attempt", at).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build record successful login sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("record successful login: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// UpdatePassword replaces the stored hash and appends it to the history in one
// transaction. Lockout state is cleared alongside. History rows are never
// deleted; the reuse window is bounded when the history is read.
func (r *AccountRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string, changedAt time.Time) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin update password tx: %w", err)
	}
	defer tx.Rollback(ctx)

	stmt, args, err := r.builder.Update("occasio.accounts").
		Set("password_hash", passwordHash).
		Set("last_password_change", changedAt).
		Set("login_attempts", 0).
		Set("lockout_until", nil).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update password sql: %w", err)
	}

	ct, err := tx.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	stmt, args, err = r.builder.Insert("occasio.password_history").
		Columns("account_id", "password_hash", "changed_at").
		Values(id, passwordHash, changedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert password history sql: %w", err)
	}

	if _, err := tx.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert password history: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit update password tx: %w", err)
	}

	return nil
}

// ListPasswordHistory retrieves the most recent password hashes for an account.
func (r *AccountRepository) ListPasswordHistory(ctx context.Context, id int64, limit int) ([]domain.PasswordHistoryEntry, error) {
	query := r.builder.Select("id", "account_id", "password_hash", "changed_at").
		From("occasio.password_history").
		Where(squirrel.Eq{"account_id": id}).
		OrderBy("changed_at DESC")
	if limit > 0 {
		query = query.Limit(uint64(limit))
	}

	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select password history sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query password history: %w", err)
	}
	defer rows.Close()

	history := make([]domain.PasswordHistoryEntry, 0)
	for rows.Next() {
		var entry domain.PasswordHistoryEntry
		if err := rows.Scan(&entry.ID, &entry.AccountID, &entry.PasswordHash, &entry.ChangedAt); err != nil {
			return nil, fmt.Errorf("scan password history: %w", err)
		}
		history = append(history, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate password history: %w", err)
	}

	return history, nil
}

// UpdateAddress replaces the stored delivery address.
func (r *AccountRepository) UpdateAddress(ctx context.Context, id int64, address string) error {
	stmt, args, err := r.builder.Update("occasio.accounts").
		Set("address", address).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update address sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update address: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// UpdateProfileImage stores the profile picture blob and its content type.
func (r *AccountRepository) UpdateProfileImage(ctx context.Context, image domain.ProfileImage) error {
	stmt, args, err := r.builder.Update("occasio.accounts").
		Set("profile_image", image.Data).
		Set("profile_image_mime", image.ContentType).
		Set("profile_image_updated_at", image.UpdatedAt).
		Where(squirrel.Eq{"id": image.AccountID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update profile image sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update profile image: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// GetProfileImage fetches the stored profile picture. Accounts without one
// report repository.ErrNotFound.
func (r *AccountRepository) GetProfileImage(ctx context.Context, id int64) (*domain.ProfileImage, error) {
	stmt, args, err := r.builder.Select("id", "profile_image", "profile_image_mime", "profile_image_updated_at").
		From("occasio.accounts").
		Where(squirrel.Eq{"id": id}).
		Where("profile_image IS NOT NULL").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select profile image sql: %w", err)
	}

	var image domain.ProfileImage
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(
		&image.AccountID,
		&image.Data,
		&image.ContentType,
		&image.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan profile image: %w", err)
	}

	return &image, nil
}

// ReplaceCategoryAssignments swaps the full category set for a manager account.
func (r *AccountRepository) ReplaceCategoryAssignments(ctx context.Context, id int64, categories []string, at time.Time) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin replace categories tx: %w", err)
	}
	defer tx.Rollback(ctx)

	stmt, args, err := r.builder.Delete("occasio.category_assignments").
		Where(squirrel.Eq{"account_id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete categories sql: %w", err)
	}

	if _, err := tx.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("delete categories: %w", err)
	}

	if len(categories) > 0 {
		insert := r.builder.Insert("occasio.category_assignments").
			Columns("account_id", "category", "assigned_at")
		for _, category := range categories {
			insert = insert.Values(id, category, at)
		}

		stmt, args, err = insert.ToSql()
		if err != nil {
			return fmt.Errorf("build insert categories sql: %w", err)
		}

		if _, err := tx.Exec(ctx, stmt, args...); err != nil {
			return fmt.Errorf("insert categories: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit replace categories tx: %w", err)
	}

	return nil
}

// ListCategoryAssignments lists the categories assigned to an account.
func (r *AccountRepository) ListCategoryAssignments(ctx context.Context, id int64) ([]domain.CategoryAssignment, error) {
	stmt, args, err := r.builder.Select("account_id", "category", "assigned_at").
		From("occasio.category_assignments").
		Where(squirrel.Eq{"account_id": id}).
		OrderBy("assigned_at ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list categories sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	assignments := make([]domain.CategoryAssignment, 0)
	for rows.Next() {
		var assignment domain.CategoryAssignment
		if err := rows.Scan(&assignment.AccountID, &assignment.Category, &assignment.AssignedAt); err != nil {
			return nil, fmt.Errorf("scan category assignment: %w", err)
		}
		assignments = append(assignments, assignment)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate category assignments: %w", err)
	}

	return assignments, nil
}

var _ port.AccountRepository = (*AccountRepository)(nil)
