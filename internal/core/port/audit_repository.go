package port

import (
	"context"

	"github.com/Skillial/CSSECDV-Case-Study/internal/core/domain"
)

// AuditRepository appends to and reads from the append-only audit log.
type AuditRepository interface {
	Append(ctx context.Context, entry domain.AuditEntry) error
	List(ctx context.Context, limit, offset int) ([]domain.AuditEntry, error)
}
