package postgres

import (
	"context"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Skillial/CSSECDV-Case-Study/internal/core/domain"
	"github.com/Skillial/CSSECDV-Case-Study/internal/core/port"
)

// AuditRepository implements port.AuditRepository over the append-only
// audit_logs table.
type AuditRepository struct {
	pool    *pgxpool.Pool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewAuditRepository wires a PostgreSQL-backed audit repository.
func NewAuditRepository(pool *pgxpool.Pool) *AuditRepository {
	return &AuditRepository{
		pool:    pool,
		exec:    pool,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Append inserts a single audit entry. The table is append-only; there is no
// update or delete path.
func (r *AuditRepository) Append(ctx context.Context, entry domain.AuditEntry) error {
	stmt, args, err := r.builder.Insert("occasio.audit_logs").
		Columns("event_type", "user_id", "username", "ip_address", "status", "description", "created_at").
		Values(entry.EventType, entry.UserID, entry.Username, entry.IPAddress, entry.Status, entry.Description, entry.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert audit entry sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}

	return nil
}

// List returns audit entries newest first with pagination.
func (r *AuditRepository) List(ctx context.Context, limit, offset int) ([]domain.AuditEntry, error) {
	query := r.builder.Select("id", "event_type", "user_id", "username", "ip_address", "status", "description", "created_at").
		From("occasio.audit_logs").
		OrderBy("created_at DESC", "id DESC")

	if limit > 0 {
		query = query.Limit(uint64(limit))
	}
	if offset > 0 {
		query = query.Offset(uint64(offset))
	}

	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list audit entries sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	entries := make([]domain.AuditEntry, 0)
	for rows.Next() {
		var entry domain.AuditEntry
		if err := rows.Scan(
			&entry.ID,
			&entry.EventType,
			&entry.UserID,
			&entry.Username,
			&entry.IPAddress,
			&entry.Status,
			&entry.Description,
			&entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}

	return entries, nil
}

var _ port.AuditRepository = (*AuditRepository)(nil)
