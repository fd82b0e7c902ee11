package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/Skillial/CSSECDV-Case-Study/internal/core/domain"
	"github.com/Skillial/CSSECDV-Case-Study/internal/infra/security"
)

const testPassword = "Correct1!"

type authFixture struct {
	auth     *AuthService
	sessions *SessionService
	accounts *fakeAccountRepo
	store    *fakeSessionStore
	audit    *fakeAuditRepo
	now      time.Time
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()

	log := zaptest.NewLogger(t)
	accounts := newFakeAccountRepo()
	store := newFakeSessionStore()
	auditRepo := newFakeAuditRepo()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	auditService := NewAuditService(auditRepo, nil, log)
	auditService.WithClock(clock)

	sessions := NewSessionService(store, 30*time.Minute, log)
	sessions.WithClock(clock)

	hasher := security.NewBcryptHasherWithCost(4)
	auth := NewAuthService(accounts, sessions, auditService, nil, hasher, log)
	auth.WithClock(clock)

	return &authFixture{
		auth:     auth,
		sessions: sessions,
		accounts: accounts,
		store:    store,
		audit:    auditRepo,
		now:      now,
	}
}

func (f *authFixture) seedAccount(t *testing.T, username string) *domain.Account {
	t.Helper()

	hasher := security.NewBcryptHasherWithCost(4)
	hash, err := hasher.Hash(testPassword)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}

	id, err := f.accounts.Create(context.Background(), domain.Account{
		Username:     username,
		PasswordHash: hash,
		Role:         domain.RoleCustomer,
		CreatedAt:    f.now.Add(-24 * time.Hour),
	})
	if err != nil {
		t.Fatalf("seed account: %v", err)
	}
	return f.accounts.accounts[id]
}

func TestLoginFirstLoginReport(t *testing.T) {
	f := newAuthFixture(t)
	f.seedAccount(t, "alice")

	result, err := f.auth.Login(context.Background(), LoginInput{Username: "alice", Password: testPassword, IP: "10.0.0.1"})
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}

	if result.Report.Message != "This is your first login." {
		t.Fatalf("unexpected report: %q", result.Report.Message)
	}
	if result.Token == "" {
		t.Fatal("expected a session token")
	}
	if result.Account.PasswordHash != "" {
		t.Fatal("password hash must not leak")
	}

	entry, ok := f.audit.last()
	if !ok || entry.Status != domain.AuditStatusSuccess || entry.EventType != domain.AuditEventAuthentication {
		t.Fatalf("expected success authentication audit entry, got %+v", entry)
	}
}

func TestLoginReportAfterSuccessfulLogin(t *testing.T) {
	f := newAuthFixture(t)
	account := f.seedAccount(t, "alice")

	previous := f.now.Add(-2 * time.Hour)
	account.LastSuccessfulLogin = &previous
	account.LastLoginAttempt = &previous

	result, err := f.auth.Login(context.Background(), LoginInput{Username: "alice", Password: testPassword, IP: "10.0.0.1"})
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}

	want := fmt.Sprintf("Your last login was successful at: %s.", previous.UTC().Format(time.RFC1123))
	if result.Report.Message != want {
		t.Fatalf("report = %q, want %q", result.Report.Message, want)
	}
}

func TestLoginReportAfterFailedAttempt(t *testing.T) {
	f := newAuthFixture(t)
	account := f.seedAccount(t, "alice")

	success := f.now.Add(-3 * time.Hour)
	failed := f.now.Add(-1 * time.Hour)
	account.LastSuccessfulLogin = &success
	account.LastLoginAttempt = &failed

	result, err := f.auth.Login(context.Background(), LoginInput{Username: "alice", Password: testPassword, IP: "10.0.0.1"})
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}

	want := fmt.Sprintf("Your last login attempt was unsuccessful at: %s.", failed.UTC().Format(time.RFC1123))
	if result.Report.Message != want {
		t.Fatalf("report = %q, want %q", result.Report.Message, want)
	}
}

func TestLoginUnknownUsernameIsGeneric(t *testing.T) {
	f := newAuthFixture(t)

	_, err := f.auth.Login(context.Background(), LoginInput{Username: "nobody", Password: testPassword, IP: "10.0.0.1"})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}

	entry, ok := f.audit.last()
	if !ok || entry.Status != domain.AuditStatusFailure {
		t.Fatalf("expected failure audit entry, got %+v", entry)
	}
	if entry.UserID != nil {
		t.Fatal("unresolved account must audit with nil user id")
	}
}

func TestLoginWrongPasswordIncrementsCounter(t *testing.T) {
	f := newAuthFixture(t)
	account := f.seedAccount(t, "alice")

	_, err := f.auth.Login(context.Background(), LoginInput{Username: "alice", Password: "Wrong1!pw", IP: "10.0.0.1"})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}

	if account.LoginAttempts != 1 {
		t.Fatalf("login attempts = %d, want 1", account.LoginAttempts)
	}
	if account.LockoutUntil != nil {
		t.Fatal("lockout must not engage below the threshold")
	}
}

func TestLoginLocksAfterThreshold(t *testing.T) {
	f := newAuthFixture(t)
	account := f.seedAccount(t, "alice")

	for i := 0; i < 5; i++ {
		_, err := f.auth.Login(context.Background(), LoginInput{Username: "alice", Password: "Wrong1!pw", IP: "10.0.0.1"})
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected ErrInvalidCredentials, got %v", i+1, err)
		}
	}

	if account.LockoutUntil == nil {
		t.Fatal("expected lockout after fifth failed attempt")
	}
	wantUntil := f.now.Add(10 * time.Minute)
	if !account.LockoutUntil.Equal(wantUntil) {
		t.Fatalf("lockout until = %v, want %v", account.LockoutUntil, wantUntil)
	}

	// Even the correct password is rejected while locked, and the counter
	// does not move.
	_, err := f.auth.Login(context.Background(), LoginInput{Username: "alice", Password: testPassword, IP: "10.0.0.1"})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials while locked, got %v", err)
	}
	if account.LoginAttempts != 5 {
		t.Fatalf("login attempts = %d, want 5 (no increment while locked)", account.LoginAttempts)
	}
}

func TestLoginAfterLockoutExpiry(t *testing.T) {
	f := newAuthFixture(t)
	account := f.seedAccount(t, "alice")

	expired := f.now.Add(-time.Minute)
	account.LoginAttempts = 5
	account.LockoutUntil = &expired

	result, err := f.auth.Login(context.Background(), LoginInput{Username: "alice", Password: testPassword, IP: "10.0.0.1"})
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if result.Account.LoginAttempts != 0 {
		t.Fatalf("login attempts = %d, want 0 after expired lockout", result.Account.LoginAttempts)
	}
	if account.LockoutUntil != nil {
		t.Fatal("expired lockout must be cleared")
	}
}

func TestLoginInputValidationIsGeneric(t *testing.T) {
	f := newAuthFixture(t)

	_, err := f.auth.Login(context.Background(), LoginInput{Username: "al", Password: testPassword, IP: "10.0.0.1"})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}

	entry, ok := f.audit.last()
	if !ok || entry.EventType != domain.AuditEventInputValidation {
		t.Fatalf("expected input validation audit entry, got %+v", entry)
	}
	if !strings.Contains(entry.Description, "username") {
		t.Fatalf("expected the real reason in the audit trail, got %q", entry.Description)
	}
}

func TestLogoutDestroysSession(t *testing.T) {
	f := newAuthFixture(t)
	f.seedAccount(t, "alice")

	result, err := f.auth.Login(context.Background(), LoginInput{Username: "alice", Password: testPassword, IP: "10.0.0.1"})
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}

	if err := f.auth.Logout(context.Background(), result.Token, &result.Session, "10.0.0.1"); err != nil {
		t.Fatalf("Logout returned error: %v", err)
	}

	if _, err := f.sessions.Resolve(context.Background(), result.Token); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound after logout, got %v", err)
	}
}
