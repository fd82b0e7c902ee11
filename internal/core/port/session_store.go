package port

import (
	"context"
	"time"

	"github.com/Skillial/CSSECDV-Case-Study/internal/core/domain"
)

// SessionStore keeps server-side session records keyed by hashed session token.
type SessionStore interface {
	Save(ctx context.Context, tokenHash string, session domain.Session, ttl time.Duration) error
	Get(ctx context.Context, tokenHash string) (*domain.Session, error)
	Delete(ctx context.Context, tokenHash string) error

	// SetLoginReport stores the one-shot last-login report next to the session.
	SetLoginReport(ctx context.Context, tokenHash string, report domain.LoginReport, ttl time.Duration) error
	// TakeLoginReport returns the report and removes it in one atomic step.
	// A second call for the same session finds nothing.
	TakeLoginReport(ctx context.Context, tokenHash string) (*domain.LoginReport, error)
}

// RecoveryTokenStore keeps short-lived recovery-session tokens issued by the
// verify step of password recovery, keyed by hashed token.
type RecoveryTokenStore interface {
	Save(ctx context.Context, tokenHash string, accountID int64, ttl time.Duration) error
	// Consume resolves the token to an account id and invalidates it atomically.
	Consume(ctx context.Context, tokenHash string) (int64, error)
	// Peek resolves the token without invalidating it.
	Peek(ctx context.Context, tokenHash string) (int64, error)
}
