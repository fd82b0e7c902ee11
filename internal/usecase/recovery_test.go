package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/Skillial/CSSECDV-Case-Study/internal/core/domain"
	"github.com/Skillial/CSSECDV-Case-Study/internal/infra/security"
)

type recoveryFixture struct {
	recovery  *RecoveryService
	accounts  *fakeAccountRepo
	questions *fakeSecurityQuestionRepo
	tokens    *fakeRecoveryTokenStore
	audit     *fakeAuditRepo
	hasher    *security.BcryptHasher
	now       time.Time
}

func newRecoveryFixture(t *testing.T) *recoveryFixture {
	t.Helper()

	log := zaptest.NewLogger(t)
	accounts := newFakeAccountRepo()
	questions := newFakeSecurityQuestionRepo()
	tokens := newFakeRecoveryTokenStore()
	auditRepo := newFakeAuditRepo()
	hasher := security.NewBcryptHasherWithCost(4)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	auditService := NewAuditService(auditRepo, nil, log)
	auditService.WithClock(clock)

	recovery := NewRecoveryService(accounts, questions, tokens, auditService, nil, hasher, security.DefaultPasswordValidator(), log)
	recovery.WithClock(clock)

	return &recoveryFixture{
		recovery:  recovery,
		accounts:  accounts,
		questions: questions,
		tokens:    tokens,
		audit:     auditRepo,
		hasher:    hasher,
		now:       now,
	}
}

func (f *recoveryFixture) seedAccount(t *testing.T, username, password string) *domain.Account {
	t.Helper()

	hash, err := f.hasher.Hash(password)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}

	id, err := f.accounts.Create(context.Background(), domain.Account{
		Username:     username,
		PasswordHash: hash,
		Role:         domain.RoleCustomer,
		CreatedAt:    f.now.Add(-72 * time.Hour),
	})
	if err != nil {
		t.Fatalf("seed account: %v", err)
	}
	return f.accounts.accounts[id]
}

func (f *recoveryFixture) seedQuestion(t *testing.T, accountID int64, question, answer string) {
	t.Helper()

	answerHash, err := f.hasher.Hash(answer)
	if err != nil {
		t.Fatalf("hash answer: %v", err)
	}
	if err := f.questions.Upsert(context.Background(), domain.SecurityQuestion{
		AccountID:  accountID,
		Question:   question,
		AnswerHash: answerHash,
		UpdatedAt:  f.now,
	}); err != nil {
		t.Fatalf("seed question: %v", err)
	}
}

func TestVerifyDetailsIssuesToken(t *testing.T) {
	f := newRecoveryFixture(t)
	account := f.seedAccount(t, "alice", "Correct1!")
	f.seedQuestion(t, account.ID, "First pet?", "rex")

	token, err := f.recovery.VerifyDetails(context.Background(), VerifyDetailsInput{
		Username: "alice",
		Question: "First pet?",
		Answer:   "rex",
		IP:       "10.0.0.1",
	})
	if err != nil {
		t.Fatalf("VerifyDetails returned error: %v", err)
	}
	if token == "" {
		t.Fatal("expected a recovery token")
	}

	accountID, err := f.tokens.Peek(context.Background(), security.HashToken(token))
	if err != nil || accountID != account.ID {
		t.Fatalf("token binding = (%d, %v), want (%d, nil)", accountID, err, account.ID)
	}
}

func TestVerifyDetailsFailuresAreGeneric(t *testing.T) {
	f := newRecoveryFixture(t)
	account := f.seedAccount(t, "alice", "Correct1!")
	f.seedQuestion(t, account.ID, "First pet?", "rex")

	cases := []struct {
		name  string
		input VerifyDetailsInput
	}{
		{name: "unknown username", input: VerifyDetailsInput{Username: "mallory", Question: "First pet?", Answer: "rex"}},
		{name: "question mismatch", input: VerifyDetailsInput{Username: "alice", Question: "Favourite color?", Answer: "rex"}},
		{name: "answer mismatch", input: VerifyDetailsInput{Username: "alice", Question: "First pet?", Answer: "fido"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.input.IP = "10.0.0.1"
			before := f.audit.count()
			_, err := f.recovery.VerifyDetails(context.Background(), tc.input)
			if !errors.Is(err, ErrRecoveryVerificationFailed) {
				t.Fatalf("expected ErrRecoveryVerificationFailed, got %v", err)
			}
			if f.audit.count() != before+1 {
				t.Fatal("every failure must be audited")
			}
			entry, _ := f.audit.last()
			if entry.Status != domain.AuditStatusFailure {
				t.Fatalf("expected failure audit entry, got %+v", entry)
			}
		})
	}
}

func TestResetPasswordRequiresMatchingToken(t *testing.T) {
	f := newRecoveryFixture(t)
	f.seedAccount(t, "alice", "Correct1!")
	other := f.seedAccount(t, "bob", "Correct1!")
	f.seedQuestion(t, other.ID, "First pet?", "rex")

	// Token bound to bob cannot reset alice's password.
	token, err := f.recovery.VerifyDetails(context.Background(), VerifyDetailsInput{
		Username: "bob", Question: "First pet?", Answer: "rex", IP: "10.0.0.1",
	})
	if err != nil {
		t.Fatalf("VerifyDetails returned error: %v", err)
	}

	err = f.recovery.ResetPassword(context.Background(), ResetPasswordInput{
		Username:      "alice",
		RecoveryToken: token,
		NewPassword:   "Fresh9$pw",
		IP:            "10.0.0.1",
	})
	if !errors.Is(err, ErrRecoveryTokenInvalid) {
		t.Fatalf("expected ErrRecoveryTokenInvalid, got %v", err)
	}
}

func TestResetPasswordConsumesToken(t *testing.T) {
	f := newRecoveryFixture(t)
	account := f.seedAccount(t, "alice", "Correct1!")
	f.seedQuestion(t, account.ID, "First pet?", "rex")

	token, err := f.recovery.VerifyDetails(context.Background(), VerifyDetailsInput{
		Username: "alice", Question: "First pet?", Answer: "rex", IP: "10.0.0.1",
	})
	if err != nil {
		t.Fatalf("VerifyDetails returned error: %v", err)
	}

	err = f.recovery.ResetPassword(context.Background(), ResetPasswordInput{
		Username:      "alice",
		RecoveryToken: token,
		NewPassword:   "Fresh9$pw",
		IP:            "10.0.0.1",
	})
	if err != nil {
		t.Fatalf("ResetPassword returned error: %v", err)
	}

	ok, err := f.hasher.Verify("Fresh9$pw", account.PasswordHash)
	if err != nil || !ok {
		t.Fatalf("new password did not stick: ok=%v err=%v", ok, err)
	}

	// Second reset with the same token must fail.
	err = f.recovery.ResetPassword(context.Background(), ResetPasswordInput{
		Username:      "alice",
		RecoveryToken: token,
		NewPassword:   "0ther$Pw1",
		IP:            "10.0.0.1",
	})
	if !errors.Is(err, ErrRecoveryTokenInvalid) {
		t.Fatalf("expected consumed token to be rejected, got %v", err)
	}
}

func TestResetPasswordPolicyRejectionKeepsToken(t *testing.T) {
	f := newRecoveryFixture(t)
	account := f.seedAccount(t, "alice", "Correct1!")
	f.seedQuestion(t, account.ID, "First pet?", "rex")

	token, err := f.recovery.VerifyDetails(context.Background(), VerifyDetailsInput{
		Username: "alice", Question: "First pet?", Answer: "rex", IP: "10.0.0.1",
	})
	if err != nil {
		t.Fatalf("VerifyDetails returned error: %v", err)
	}

	err = f.recovery.ResetPassword(context.Background(), ResetPasswordInput{
		Username:      "alice",
		RecoveryToken: token,
		NewPassword:   "weak",
		IP:            "10.0.0.1",
	})
	if !errors.Is(err, ErrPasswordPolicy) {
		t.Fatalf("expected ErrPasswordPolicy, got %v", err)
	}

	// The token survives the rejection so the user can retry.
	if _, err := f.tokens.Peek(context.Background(), security.HashToken(token)); err != nil {
		t.Fatalf("token must survive a policy rejection: %v", err)
	}
}

func TestChangePasswordRejectsSamePassword(t *testing.T) {
	f := newRecoveryFixture(t)
	account := f.seedAccount(t, "alice", "Correct1!")

	err := f.recovery.ChangePassword(context.Background(), ChangePasswordInput{
		AccountID:   account.ID,
		OldPassword: "Correct1!",
		NewPassword: "Correct1!",
		IP:          "10.0.0.1",
	})
	if !errors.Is(err, ErrPasswordSameAsOld) {
		t.Fatalf("expected ErrPasswordSameAsOld, got %v", err)
	}
}

func TestChangePasswordRejectsWrongOldPassword(t *testing.T) {
	f := newRecoveryFixture(t)
	account := f.seedAccount(t, "alice", "Correct1!")

	err := f.recovery.ChangePassword(context.Background(), ChangePasswordInput{
		AccountID:   account.ID,
		OldPassword: "Wrong1!pw",
		NewPassword: "Fresh9$pw",
		IP:          "10.0.0.1",
	})
	if !errors.Is(err, ErrInvalidOldPassword) {
		t.Fatalf("expected ErrInvalidOldPassword, got %v", err)
	}
}

func TestChangePasswordRejectsRecentChange(t *testing.T) {
	f := newRecoveryFixture(t)
	account := f.seedAccount(t, "alice", "Correct1!")

	recent := f.now.Add(-time.Hour)
	account.LastPasswordChange = &recent

	err := f.recovery.ChangePassword(context.Background(), ChangePasswordInput{
		AccountID:   account.ID,
		OldPassword: "Correct1!",
		NewPassword: "Fresh9$pw",
		IP:          "10.0.0.1",
	})
	if !errors.Is(err, ErrPasswordTooRecent) {
		t.Fatalf("expected ErrPasswordTooRecent, got %v", err)
	}
}

func TestChangePasswordRejectsReuseFromHistory(t *testing.T) {
	f := newRecoveryFixture(t)
	account := f.seedAccount(t, "alice", "Correct1!")

	// Rotate to a new password, then try to rotate back to the original.
	old := f.now.Add(-48 * time.Hour)
	account.LastPasswordChange = &old

	err := f.recovery.ChangePassword(context.Background(), ChangePasswordInput{
		AccountID:   account.ID,
		OldPassword: "Correct1!",
		NewPassword: "Fresh9$pw",
		IP:          "10.0.0.1",
	})
	if err != nil {
		t.Fatalf("first change failed: %v", err)
	}

	// Allow the age gate to pass for the second change.
	f.recovery.WithMinPasswordAge(0)

	err = f.recovery.ChangePassword(context.Background(), ChangePasswordInput{
		AccountID:   account.ID,
		OldPassword: "Fresh9$pw",
		NewPassword: "Correct1!",
		IP:          "10.0.0.1",
	})
	if !errors.Is(err, ErrPasswordInHistory) {
		t.Fatalf("expected ErrPasswordInHistory, got %v", err)
	}
}

func TestChangePasswordHistoryIsAppendOnly(t *testing.T) {
	f := newRecoveryFixture(t)
	account := f.seedAccount(t, "alice", "Correct1!")

	old := f.now.Add(-48 * time.Hour)
	account.LastPasswordChange = &old

	f.recovery.WithHistoryLimit(1)
	f.recovery.WithMinPasswordAge(0)

	err := f.recovery.ChangePassword(context.Background(), ChangePasswordInput{
		AccountID:   account.ID,
		OldPassword: "Correct1!",
		NewPassword: "Fresh9$pw",
		IP:          "10.0.0.1",
	})
	if err != nil {
		t.Fatalf("first change failed: %v", err)
	}

	// The reuse window is bounded at read time, so with a window of one only
	// the newest hash blocks reuse and the original password passes again.
	err = f.recovery.ChangePassword(context.Background(), ChangePasswordInput{
		AccountID:   account.ID,
		OldPassword: "Fresh9$pw",
		NewPassword: "Correct1!",
		IP:          "10.0.0.1",
	})
	if err != nil {
		t.Fatalf("reuse outside the window must be allowed: %v", err)
	}

	// Every rotation stays on record.
	if got := len(f.accounts.history[account.ID]); got != 3 {
		t.Fatalf("history rows = %d, want 3", got)
	}
}

func TestSetSecurityQuestionRequiresPassword(t *testing.T) {
	f := newRecoveryFixture(t)
	account := f.seedAccount(t, "alice", "Correct1!")

	err := f.recovery.SetSecurityQuestion(context.Background(), SetSecurityQuestionInput{
		AccountID:       account.ID,
		CurrentPassword: "Wrong1!pw",
		Question:        "First pet?",
		Answer:          "rex",
		IP:              "10.0.0.1",
	})
	if !errors.Is(err, ErrInvalidOldPassword) {
		t.Fatalf("expected ErrInvalidOldPassword, got %v", err)
	}

	err = f.recovery.SetSecurityQuestion(context.Background(), SetSecurityQuestionInput{
		AccountID:       account.ID,
		CurrentPassword: "Correct1!",
		Question:        "First pet?",
		Answer:          "rex",
		IP:              "10.0.0.1",
	})
	if err != nil {
		t.Fatalf("SetSecurityQuestion returned error: %v", err)
	}

	stored, err := f.questions.GetByAccountID(context.Background(), account.ID)
	if err != nil {
		t.Fatalf("stored question missing: %v", err)
	}
	ok, err := f.hasher.Verify("rex", stored.AnswerHash)
	if err != nil || !ok {
		t.Fatalf("answer hash mismatch: ok=%v err=%v", ok, err)
	}
}
