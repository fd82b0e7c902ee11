package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Skillial/CSSECDV-Case-Study/internal/core/domain"
	"github.com/Skillial/CSSECDV-Case-Study/internal/core/port"
	"github.com/Skillial/CSSECDV-Case-Study/internal/repository"
)

// SessionRepository keeps session records in Redis keyed by hashed token. The
// one-shot login report lives under a sibling key so taking it never touches
// the session itself.
type SessionRepository struct {
	client *redis.Client
	prefix string
}

// NewSessionRepository constructs a Redis-backed session store.
func NewSessionRepository(client *redis.Client, prefix string) *SessionRepository {
	if prefix == "" {
		prefix = "occasio:session"
	}
	return &SessionRepository{client: client, prefix: prefix}
}

type sessionRecord struct {
	ID        string    `json:"id"`
	AccountID int64     `json:"account_id"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	IP        string    `json:"ip"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

type reportRecord struct {
	Message     string    `json:"message"`
	GeneratedAt time.Time `json:"generated_at"`
}

func (r *SessionRepository) sessionKey(tokenHash string) string {
	return fmt.Sprintf("%s:%s", r.prefix, tokenHash)
}

func (r *SessionRepository) reportKey(tokenHash string) string {
	return fmt.Sprintf("%s:report:%s", r.prefix, tokenHash)
}

// Save stores the session record under the hashed token with the supplied TTL.
func (r *SessionRepository) Save(ctx context.Context, tokenHash string, session domain.Session, ttl time.Duration) error {
	record := sessionRecord{
		ID:        session.ID,
		AccountID: session.AccountID,
		Username:  session.Username,
		Role:      string(session.Role),
		IP:        session.IP,
		CreatedAt: session.CreatedAt,
		ExpiresAt: session.ExpiresAt,
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	if err := r.client.Set(ctx, r.sessionKey(tokenHash), payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis set session: %w", err)
	}

	return nil
}

// Get resolves the hashed token to a session record.
func (r *SessionRepository) Get(ctx context.Context, tokenHash string) (*domain.Session, error) {
	payload, err := r.client.Get(ctx, r.sessionKey(tokenHash)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("redis get session: %w", err)
	}

	var record sessionRecord
	if err := json.Unmarshal(payload, &record); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}

	role, err := domain.ParseRole(record.Role)
	if err != nil {
		return nil, fmt.Errorf("parse session role: %w", err)
	}

	return &domain.Session{
		ID:        record.ID,
		AccountID: record.AccountID,
		Username:  record.Username,
		Role:      role,
		IP:        record.IP,
		CreatedAt: record.CreatedAt,
		ExpiresAt: record.ExpiresAt,
	}, nil
}

// Delete removes the session and any pending login report.
func (r *SessionRepository) Delete(ctx context.Context, tokenHash string) error {
	if err := r.client.Del(ctx, r.sessionKey(tokenHash), r.reportKey(tokenHash)).Err(); err != nil {
		return fmt.Errorf("redis del session: %w", err)
	}
	return nil
}

// SetLoginReport stores the one-shot last-login report for a fresh session.
func (r *SessionRepository) SetLoginReport(ctx context.Context, tokenHash string, report domain.LoginReport, ttl time.Duration) error {
	payload, err := json.Marshal(reportRecord{Message: report.Message, GeneratedAt: report.GeneratedAt})
	if err != nil {
		return fmt.Errorf("marshal login report: %w", err)
	}

	if err := r.client.Set(ctx, r.reportKey(tokenHash), payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis set login report: %w", err)
	}

	return nil
}

// TakeLoginReport returns the report and removes it atomically via GETDEL, so
// a second take finds nothing.
func (r *SessionRepository) TakeLoginReport(ctx context.Context, tokenHash string) (*domain.LoginReport, error) {
	payload, err := r.client.GetDel(ctx, r.reportKey(tokenHash)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("redis getdel login report: %w", err)
	}

	var record reportRecord
	if err := json.Unmarshal(payload, &record); err != nil {
		return nil, fmt.Errorf("unmarshal login report: %w", err)
	}

	return &domain.LoginReport{Message: record.Message, GeneratedAt: record.GeneratedAt}, nil
}

var _ port.SessionStore = (*SessionRepository)(nil)
