package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Skillial/CSSECDV-Case-Study/internal/core/domain"
	"github.com/Skillial/CSSECDV-Case-Study/internal/core/port"
	"github.com/Skillial/CSSECDV-Case-Study/internal/infra/config"
)

const schemaVersion = "1.0"

// EventPublisher implements port.EventPublisher using Kafka.
type EventPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
}

// NewEventPublisher constructs a Kafka-backed event publisher.
func NewEventPublisher(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *EventPublisher {
	return &EventPublisher{producer: producer, appCfg: appCfg, logger: logger}
}

type envelopeMetadata map[string]string

type eventEnvelope struct {
	EventID   string           `json:"event_id"`
	EventType string           `json:"event_type"`
	Timestamp time.Time        `json:"timestamp"`
	Version   string           `json:"version"`
	Payload   any              `json:"payload"`
	Metadata  envelopeMetadata `json:"metadata,omitempty"`
}

func (p *EventPublisher) publish(ctx context.Context, eventID, eventType string, ts time.Time, payload any) error {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	id := eventID
	if id == "" {
		id = uuid.NewString()
	}

	metadata := envelopeMetadata{
		"service":     p.appCfg.Name,
		"environment": p.appCfg.Env,
	}

	if span := trace.SpanFromContext(ctx); span != nil {
		if sc := span.SpanContext(); sc.IsValid() {
			metadata["trace_id"] = sc.TraceID().String()
		}
	}

	envelope := eventEnvelope{
		EventID:   id,
		EventType: eventType,
		Timestamp: ts.UTC(),
		Version:   schemaVersion,
		Payload:   payload,
		Metadata:  metadata,
	}

	bytes, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(eventType),
		Value: sarama.ByteEncoder(bytes),
	}

	select {
	case p.producer.Producer().Input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishAuditRecorded publishes occasio.audit.recorded events.
func (p *EventPublisher) PublishAuditRecorded(ctx context.Context, event domain.AuditRecordedEvent) error {
	payload := struct {
		EventType   string    `json:"event_type"`
		UserID      *int64    `json:"user_id,omitempty"`
		Username    string    `json:"username"`
		IPAddress   string    `json:"ip_address"`
		Status      string    `json:"status"`
		Description string    `json:"description"`
		OccurredAt  time.Time `json:"occurred_at"`
	}{
		EventType:   event.EventType,
		UserID:      event.UserID,
		Username:    event.Username,
		IPAddress:   event.IPAddress,
		Status:      event.Status,
		Description: event.Description,
		OccurredAt:  event.OccurredAt.UTC(),
	}

	return p.publish(ctx, event.EventID, "audit.recorded", event.OccurredAt, payload)
}

// PublishAccountLocked publishes occasio.account.locked events.
func (p *EventPublisher) PublishAccountLocked(ctx context.Context, event domain.AccountLockedEvent) error {
	payload := struct {
		AccountID   int64     `json:"account_id"`
		Username    string    `json:"username"`
		Attempts    int       `json:"attempts"`
		LockedUntil time.Time `json:"locked_until"`
		OccurredAt  time.Time `json:"occurred_at"`
	}{
		AccountID:   event.AccountID,
		Username:    event.Username,
		Attempts:    event.Attempts,
		LockedUntil: event.LockedUntil.UTC(),
		OccurredAt:  event.OccurredAt.UTC(),
	}

	return p.publish(ctx, event.EventID, "account.locked", event.OccurredAt, payload)
}

// PublishPasswordChanged publishes occasio.password.changed events.
func (p *EventPublisher) PublishPasswordChanged(ctx context.Context, event domain.PasswordChangedEvent) error {
	payload := struct {
		AccountID  int64     `json:"account_id"`
		Username   string    `json:"username"`
		ChangedBy  string    `json:"changed_by"`
		OccurredAt time.Time `json:"occurred_at"`
	}{
		AccountID:  event.AccountID,
		Username:   event.Username,
		ChangedBy:  event.ChangedBy,
		OccurredAt: event.OccurredAt.UTC(),
	}

	return p.publish(ctx, event.EventID, "password.changed", event.OccurredAt, payload)
}

var _ port.EventPublisher = (*EventPublisher)(nil)
