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
	"github.com/Skillial/CSSECDV-Case-Study/internal/infra/logger"
	"github.com/Skillial/CSSECDV-Case-Study/internal/infra/security"
	"github.com/Skillial/CSSECDV-Case-Study/internal/repository"
)

const (
	minUsernameLength = 3
	maxUsernameLength = 20

	defaultLockoutThreshold = 5
	defaultLockoutDuration  = 10 * time.Minute

	loginReportTimeFormat = time.RFC1123
)

var (
	// ErrInvalidCredentials covers every client-visible login failure: unknown
	// username, wrong password, active lockout and malformed input. The real
	// reason only ever reaches the audit log.
	ErrInvalidCredentials = errors.New("invalid username and/or password")
	// ErrAuthUnavailable indicates the service is not properly configured.
	ErrAuthUnavailable = errors.New("authentication service unavailable")
)

// AuthService coordinates credential authentication, the lockout state machine
// and session establishment.
type AuthService struct {
	accounts port.AccountRepository
	sessions *SessionService
	audit    *AuditService
	events   port.EventPublisher
	hasher   port.PasswordHasher
	logger   *zap.Logger
	now      func() time.Time

	lockoutThreshold int
	lockoutDuration  time.Duration
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(accounts port.AccountRepository, sessions *SessionService, audit *AuditService, events port.EventPublisher, hasher port.PasswordHasher, log *zap.Logger) *AuthService {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthService{
		accounts:         accounts,
		sessions:         sessions,
		audit:            audit,
		events:           events,
		hasher:           hasher,
		logger:           log,
		now:              time.Now,
		lockoutThreshold: defaultLockoutThreshold,
		lockoutDuration:  defaultLockoutDuration,
	}
}

// WithClock allows tests to override the clock used by the service.
func (s *AuthService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// WithLockoutPolicy overrides the failed-attempt threshold and lockout window.
func (s *AuthService) WithLockoutPolicy(threshold int, duration time.Duration) {
	if threshold > 0 {
		s.lockoutThreshold = threshold
	}
	if duration > 0 {
		s.lockoutDuration = duration
	}
}

// LoginInput carries the submitted credentials and request origin.
type LoginInput struct {
	Username string
	Password string
	IP       string
}

// LoginResult is returned on successful authentication. Token is the opaque
// session token handed to the client; Report repeats the one-shot last-login
// summary also stored with the session.
type LoginResult struct {
	Token   string
	Session domain.Session
	Account domain.Account
	Report  domain.LoginReport
}

// Login validates the credentials, walks the lockout state machine and
// establishes a session. Every failure surfaces as ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*LoginResult, error) {
	if s.accounts == nil || s.sessions == nil || s.hasher == nil {
		return nil, ErrAuthUnavailable
	}

	username := strings.TrimSpace(input.Username)
	if err := validateLoginInput(username, input.Password); err != nil {
		s.audit.Record(ctx, domain.AuditEventInputValidation, nil, username, input.IP,
			domain.AuditStatusFailure, fmt.Sprintf("Login rejected: %v", err))
		return nil, ErrInvalidCredentials
	}

	account, err := s.accounts.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.audit.Record(ctx, domain.AuditEventAuthentication, nil, username, input.IP,
				domain.AuditStatusFailure, "Login failed: unknown username")
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup account: %w", err)
	}

	now := s.now().UTC()

	if account.IsLocked(now) {
		// Locked attempts do not move the counter or the lockout window.
		s.audit.Record(ctx, domain.AuditEventAuthentication, &account.ID, account.Username, input.IP,
			domain.AuditStatusFailure,
			fmt.Sprintf("Login rejected: account locked until %s", account.LockoutUntil.UTC().Format(loginReportTimeFormat)))
		return nil, ErrInvalidCredentials
	}

	// Lazy expiry: a lapsed lockout resets the counter on the next attempt.
	if account.LockoutUntil != nil {
		if err := s.accounts.ResetLockout(ctx, account.ID); err != nil {
			return nil, fmt.Errorf("reset lockout: %w", err)
		}
		account.LoginAttempts = 0
		account.LockoutUntil = nil
	}

	ok, err := s.hasher.Verify(input.Password, account.PasswordHash)
	if err != nil {
		// A malformed stored hash verifies as a mismatch; log for operators.
		s.logger.Error("password verification error",
			zap.String("username", logger.MaskString(account.Username)),
			zap.Error(err),
		)
		ok = false
	}

	if !ok {
		return nil, s.handleFailedAttempt(ctx, account, now, input.IP)
	}

	report := loginReport(account, now)

	if err := s.accounts.RecordSuccessfulLogin(ctx, account.ID, now); err != nil {
		return nil, fmt.Errorf("record successful login: %w", err)
	}
	account.LoginAttempts = 0
	account.LockoutUntil = nil
	account.LastSuccessfulLogin = &now
	account.LastLoginAttempt = &now

	token, session, err := s.sessions.Establish(ctx, *account, input.IP, &report)
	if err != nil {
		return nil, fmt.Errorf("establish session: %w", err)
	}

	s.audit.Record(ctx, domain.AuditEventAuthentication, &account.ID, account.Username, input.IP,
		domain.AuditStatusSuccess, "Login successful")

	sanitized := *account
	sanitized.PasswordHash = ""

	return &LoginResult{
		Token:   token,
		Session: *session,
		Account: sanitized,
		Report:  report,
	}, nil
}

// Logout destroys the session behind the token.
func (s *AuthService) Logout(ctx context.Context, token string, identity *domain.Session, ip string) error {
	if s.sessions == nil {
		return ErrAuthUnavailable
	}

	if err := s.sessions.Destroy(ctx, token); err != nil {
		return fmt.Errorf("destroy session: %w", err)
	}

	if identity != nil {
		s.audit.Record(ctx, domain.AuditEventAuthentication, &identity.AccountID, identity.Username, ip,
			domain.AuditStatusSuccess, "Logout successful")
	}

	return nil
}

func (s *AuthService) handleFailedAttempt(ctx context.Context, account *domain.Account, now time.Time, ip string) error {
	updated, err := s.accounts.RecordFailedAttempt(ctx, account.ID, now, s.lockoutThreshold, s.lockoutDuration)
	if err != nil {
		return fmt.Errorf("record failed attempt: %w", err)
	}

	description := fmt.Sprintf("Login failed: wrong password (attempt %d of %d)", updated.LoginAttempts, s.lockoutThreshold)
	if updated.LockoutUntil != nil && updated.LoginAttempts >= s.lockoutThreshold {
		description = fmt.Sprintf("Login failed: wrong password, account locked until %s",
			updated.LockoutUntil.UTC().Format(loginReportTimeFormat))
		s.publishAccountLocked(ctx, updated, now)
	}

	s.audit.Record(ctx, domain.AuditEventAuthentication, &account.ID, account.Username, ip,
		domain.AuditStatusFailure, description)

	return ErrInvalidCredentials
}

func (s *AuthService) publishAccountLocked(ctx context.Context, account *domain.Account, now time.Time) {
	if s.events == nil || account.LockoutUntil == nil {
		return
	}

	event := domain.AccountLockedEvent{
		EventID:     uuid.NewString(),
		AccountID:   account.ID,
		Username:    account.Username,
		Attempts:    account.LoginAttempts,
		LockedUntil: *account.LockoutUntil,
		OccurredAt:  now,
	}

	if err := s.events.PublishAccountLocked(ctx, event); err != nil {
		s.logger.Warn("publish account locked event failed",
			zap.String("username", logger.MaskString(account.Username)),
			zap.Error(err),
		)
	}
}

// loginReport summarizes the previous login activity from the state as it was
// BEFORE this attempt is recorded.
func loginReport(account *domain.Account, now time.Time) domain.LoginReport {
	report := domain.LoginReport{GeneratedAt: now}

	switch {
	case account.LastLoginAttempt == nil:
		report.Message = "This is your first login."
	case account.LastSuccessfulLogin != nil && account.LastSuccessfulLogin.Equal(*account.LastLoginAttempt):
		report.Message = fmt.Sprintf("Your last login was successful at: %s.",
			account.LastSuccessfulLogin.UTC().Format(loginReportTimeFormat))
	default:
		report.Message = fmt.Sprintf("Your last login attempt was unsuccessful at: %s.",
			account.LastLoginAttempt.UTC().Format(loginReportTimeFormat))
	}

	return report
}

func validateLoginInput(username, password string) error {
	if length := len(username); length < minUsernameLength || length > maxUsernameLength {
		return fmt.Errorf("username must be between %d and %d characters", minUsernameLength, maxUsernameLength)
	}
	if length := len(password); length < security.MinPasswordLength || length > security.MaxPasswordLength {
		return fmt.Errorf("password must be between %d and %d characters", security.MinPasswordLength, security.MaxPasswordLength)
	}
	return nil
}
