package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Skillial/CSSECDV-Case-Study/internal/core/domain"
	"github.com/Skillial/CSSECDV-Case-Study/internal/core/port"
)

// StubPublisher logs events instead of sending them to Kafka. Used when no
// brokers are configured.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a development-friendly event publisher.
func NewStubPublisher(logger *zap.Logger) *StubPublisher {
	return &StubPublisher{logger: logger}
}

func (p *StubPublisher) logEvent(eventType string, at time.Time, payload any) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	p.logger.Info("stub event published",
		zap.String("event_type", eventType),
		zap.Time("timestamp", at.UTC()),
		zap.Any("payload", payload),
	)
}

// PublishAuditRecorded logs occasio.audit.recorded events.
func (p *StubPublisher) PublishAuditRecorded(_ context.Context, event domain.AuditRecordedEvent) error {
	payload := map[string]any{
		"event_type":  event.EventType,
		"user_id":     event.UserID,
		"username":    event.Username,
		"ip_address":  event.IPAddress,
		"status":      event.Status,
		"description": event.Description,
	}
	p.logEvent("audit.recorded", event.OccurredAt, payload)
	return nil
}

// PublishAccountLocked logs occasio.account.locked events.
func (p *StubPublisher) PublishAccountLocked(_ context.Context, event domain.AccountLockedEvent) error {
	payload := map[string]any{
		"account_id":   event.AccountID,
		"username":     event.Username,
		"attempts":     event.Attempts,
		"locked_until": event.LockedUntil,
	}
	p.logEvent("account.locked", event.OccurredAt, payload)
	return nil
}

// PublishPasswordChanged logs occasio.password.changed events.
func (p *StubPublisher) PublishPasswordChanged(_ context.Context, event domain.PasswordChangedEvent) error {
	payload := map[string]any{
		"account_id": event.AccountID,
		"username":   event.Username,
		"changed_by": event.ChangedBy,
	}
	p.logEvent("password.changed", event.OccurredAt, payload)
	return nil
}

var _ port.EventPublisher = (*StubPublisher)(nil)
