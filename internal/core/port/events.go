package port

import (
	"context"

	"github.com/Skillial/CSSECDV-Case-Study/internal/core/domain"
)

// EventPublisher publishes domain events to the message bus.
type EventPublisher interface {
	PublishAuditRecorded(ctx context.Context, event domain.AuditRecordedEvent) error
	PublishAccountLocked(ctx context.Context, event domain.AccountLockedEvent) error
	PublishPasswordChanged(ctx context.Context, event domain.PasswordChangedEvent) error
}
