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
	"github.com/Skillial/CSSECDV-Case-Study/internal/infra/security"
	"github.com/Skillial/CSSECDV-Case-Study/internal/repository"
)

const defaultSessionTTL = 30 * time.Minute

var (
	// ErrSessionNotFound indicates the token does not resolve to an active session.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionUnavailable indicates the session store is not configured.
	ErrSessionUnavailable = errors.New("session service unavailable")
)

// SessionService manages opaque server-side sessions. Clients hold only the
// random token; the store is keyed by its SHA-256 hash.
type SessionService struct {
	sessions port.SessionStore
	logger   *zap.Logger
	now      func() time.Time
	ttl      time.Duration
}

// NewSessionService constructs a SessionService instance.
func NewSessionService(sessions port.SessionStore, ttl time.Duration, logger *zap.Logger) *SessionService {
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionService{
		sessions: sessions,
		logger:   logger,
		now:      time.Now,
		ttl:      ttl,
	}
}

// WithClock allows tests to override the clock used by the service.
func (s *SessionService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// Establish creates a session for the account and returns the opaque token the
// client will hold. A fresh last-login report, when present, is stored in the
// one-shot slot next to the session.
func (s *SessionService) Establish(ctx context.Context, account domain.Account, ip string, report *domain.LoginReport) (string, *domain.Session, error) {
	if s.sessions == nil {
		return "", nil, ErrSessionUnavailable
	}

	token, err := security.GenerateSecureToken(security.SessionTokenBytes)
	if err != nil {
		return "", nil, fmt.Errorf("generate session token: %w", err)
	}

	now := s.now().UTC()
	session := domain.Session{
		ID:        uuid.NewString(),
		AccountID: account.ID,
		Username:  account.Username,
		Role:      account.Role,
		IP:        ip,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}

	tokenHash := security.HashToken(token)
	if err := s.sessions.Save(ctx, tokenHash, session, s.ttl); err != nil {
		return "", nil, fmt.Errorf("save session: %w", err)
	}

	if report != nil {
		if err := s.sessions.SetLoginReport(ctx, tokenHash, *report, s.ttl); err != nil {
			s.logger.Warn("store login report failed",
				zap.String("username", account.Username),
				zap.Error(err),
			)
		}
	}

	return token, &session, nil
}

// Resolve maps a client token to its session record.
func (s *SessionService) Resolve(ctx context.Context, token string) (*domain.Session, error) {
	if s.sessions == nil {
		return nil, ErrSessionUnavailable
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrSessionNotFound
	}

	tokenHash := security.HashToken(token)
	session, err := s.sessions.Get(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("fetch session: %w", err)
	}

	// The store TTL normally handles expiry; this guards against clock skew.
	if !session.IsActive(s.now().UTC()) {
		_ = s.sessions.Delete(ctx, tokenHash)
		return nil, ErrSessionNotFound
	}

	return session, nil
}

// Destroy removes the session and any unconsumed login report.
func (s *SessionService) Destroy(ctx context.Context, token string) error {
	if s.sessions == nil {
		return ErrSessionUnavailable
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return nil
	}

	if err := s.sessions.Delete(ctx, security.HashToken(token)); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}

	return nil
}

// TakeLastLoginReport consumes the one-shot last-login report. The second and
// every later call for the same session reports nothing.
func (s *SessionService) TakeLastLoginReport(ctx context.Context, token string) (string, bool, error) {
	if s.sessions == nil {
		return "", false, ErrSessionUnavailable
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return "", false, nil
	}

	report, err := s.sessions.TakeLoginReport(ctx, security.HashToken(token))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("take login report: %w", err)
	}

	return report.Message, true, nil
}
