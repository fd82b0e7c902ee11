package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Skillial/CSSECDV-Case-Study/internal/core/domain"
	"github.com/Skillial/CSSECDV-Case-Study/internal/core/port"
)

// guestActor labels audit entries whose acting account could not be resolved.
const guestActor = "Guest"

// ErrAuditUnavailable indicates the audit service is not properly configured.
var ErrAuditUnavailable = errors.New("audit service unavailable")

// AuditService records security-relevant actions. Recording is fire-and-forget:
// a failed insert is logged and never aborts the calling operation.
type AuditService struct {
	entries port.AuditRepository
	events  port.EventPublisher
	logger  *zap.Logger
	now     func() time.Time
}

// NewAuditService constructs an AuditService instance.
func NewAuditService(entries port.AuditRepository, events port.EventPublisher, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditService{
		entries: entries,
		events:  events,
		logger:  logger,
		now:     time.Now,
	}
}

// WithClock allows tests to override the clock used by the service.
func (s *AuditService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// Record appends an audit entry. userID is nil when the actor is unresolved;
// username then carries the attempted name or "Guest".
func (s *AuditService) Record(ctx context.Context, eventType domain.AuditEventType, userID *int64, username, ip string, status domain.AuditStatus, description string) {
	if s == nil || s.entries == nil {
		return
	}

	if strings.TrimSpace(username) == "" {
		username = guestActor
	}

	entry := domain.AuditEntry{
		EventType:   eventType,
		UserID:      userID,
		Username:    username,
		IPAddress:   ip,
		Status:      status,
		Description: description,
		CreatedAt:   s.now().UTC(),
	}

	if err := s.entries.Append(ctx, entry); err != nil {
		s.logger.Warn("audit append failed",
			zap.String("event_type", string(eventType)),
			zap.String("username", username),
			zap.Error(err),
		)
	}

	s.publishRecorded(ctx, entry)
}

func (s *AuditService) publishRecorded(ctx context.Context, entry domain.AuditEntry) {
	if s.events == nil {
		return
	}

	event := domain.AuditRecordedEvent{
		EventID:     uuid.NewString(),
		EventType:   string(entry.EventType),
		UserID:      entry.UserID,
		Username:    entry.Username,
		IPAddress:   entry.IPAddress,
		Status:      string(entry.Status),
		Description: entry.Description,
		OccurredAt:  entry.CreatedAt,
	}

	if err := s.events.PublishAuditRecorded(ctx, event); err != nil {
		s.logger.Warn("publish audit recorded event failed", zap.Error(err))
	}
}

// List returns audit entries newest first.
func (s *AuditService) List(ctx context.Context, limit, offset int) ([]domain.AuditEntry, error) {
	if s.entries == nil {
		return nil, ErrAuditUnavailable
	}
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	entries, err := s.entries.List(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}

	return entries, nil
}
