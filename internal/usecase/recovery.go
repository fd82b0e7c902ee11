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

const (
	maxSecurityQuestionLength = 255
	maxSecurityAnswerLength   = 100

	defaultPasswordHistoryLimit = 5
	defaultMinPasswordAge       = 24 * time.Hour
	defaultRecoveryTokenTTL     = 10 * time.Minute

	passwordChangedByOwner    = "owner"
	passwordChangedByRecovery = "recovery"
)

var (
	// ErrRecoveryVerificationFailed covers every verify-details failure: unknown
	// username, no question on file, question or answer mismatch. The specific
	// cause is only recorded in the audit log.
	ErrRecoveryVerificationFailed = errors.New("could not verify details")
	// ErrRecoveryTokenInvalid indicates the reset was attempted without a valid
	// recovery token from a prior verification.
	ErrRecoveryTokenInvalid = errors.New("recovery token invalid")
	// ErrInvalidOldPassword indicates the current password did not match.
	ErrInvalidOldPassword = errors.New("old password does not match")
	// ErrPasswordSameAsOld indicates the new password equals the current one.
	ErrPasswordSameAsOld = errors.New("new password must differ from the old password")
	// ErrPasswordTooRecent indicates the password was changed too recently.
	ErrPasswordTooRecent = errors.New("password was changed too recently")
	// ErrPasswordInHistory indicates the new password matches a recent one.
	ErrPasswordInHistory = errors.New("new password matches a recently used password")
	// ErrPasswordPolicy indicates the new password fails the composition policy.
	ErrPasswordPolicy = errors.New("password does not meet the policy")
	// ErrRecoveryUnavailable indicates the service is not properly configured.
	ErrRecoveryUnavailable = errors.New("password recovery service unavailable")
)

// RecoveryService implements password recovery via security question, direct
// password change and security-question management.
type RecoveryService struct {
	accounts  port.AccountRepository
	questions port.SecurityQuestionRepository
	tokens    port.RecoveryTokenStore
	audit     *AuditService
	events    port.EventPublisher
	hasher    port.PasswordHasher
	validator *security.PasswordValidator
	logger    *zap.Logger
	now       func() time.Time

	historyLimit   int
	minPasswordAge time.Duration
	tokenTTL       time.Duration
}

// NewRecoveryService constructs a RecoveryService instance.
func NewRecoveryService(
	accounts port.AccountRepository,
	questions port.SecurityQuestionRepository,
	tokens port.RecoveryTokenStore,
	audit *AuditService,
	events port.EventPublisher,
	hasher port.PasswordHasher,
	validator *security.PasswordValidator,
	logger *zap.Logger,
) *RecoveryService {
	if validator == nil {
		validator = security.DefaultPasswordValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecoveryService{
		accounts:       accounts,
		questions:      questions,
		tokens:         tokens,
		audit:          audit,
		events:         events,
		hasher:         hasher,
		validator:      validator,
		logger:         logger,
		now:            time.Now,
		historyLimit:   defaultPasswordHistoryLimit,
		minPasswordAge: defaultMinPasswordAge,
		tokenTTL:       defaultRecoveryTokenTTL,
	}
}

// WithClock allows tests to override the clock used by the service.
func (s *RecoveryService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// WithHistoryLimit adjusts how many history entries the reuse check covers.
func (s *RecoveryService) WithHistoryLimit(limit int) {
	if limit >= 0 {
		s.historyLimit = limit
	}
}

// WithMinPasswordAge adjusts the minimum time between password changes.
func (s *RecoveryService) WithMinPasswordAge(age time.Duration) {
	if age >= 0 {
		s.minPasswordAge = age
	}
}

// WithTokenTTL adjusts the recovery token lifetime.
func (s *RecoveryService) WithTokenTTL(ttl time.Duration) {
	if ttl > 0 {
		s.tokenTTL = ttl
	}
}

// VerifyDetailsInput carries the recovery challenge response.
type VerifyDetailsInput struct {
	Username string
	Question string
	Answer   string
	IP       string
}

// VerifyDetails checks the username, question and answer. On success it issues
// a short-lived recovery token that ResetPassword requires, binding the reset
// to this verification.
func (s *RecoveryService) VerifyDetails(ctx context.Context, input VerifyDetailsInput) (string, error) {
	if s.accounts == nil || s.questions == nil || s.tokens == nil || s.hasher == nil {
		return "", ErrRecoveryUnavailable
	}

	username := strings.TrimSpace(input.Username)
	question := strings.TrimSpace(input.Question)
	answer := strings.TrimSpace(input.Answer)

	if err := validateRecoveryChallenge(username, question, answer); err != nil {
		s.audit.Record(ctx, domain.AuditEventInputValidation, nil, username, input.IP,
			domain.AuditStatusFailure, fmt.Sprintf("Recovery verification rejected: %v", err))
		return "", ErrRecoveryVerificationFailed
	}

	account, err := s.accounts.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.audit.Record(ctx, domain.AuditEventAccountManagement, nil, username, input.IP,
				domain.AuditStatusFailure, "Recovery verification failed: unknown username")
			return "", ErrRecoveryVerificationFailed
		}
		return "", fmt.Errorf("lookup account: %w", err)
	}

	stored, err := s.questions.GetByAccountID(ctx, account.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.audit.Record(ctx, domain.AuditEventAccountManagement, &account.ID, account.Username, input.IP,
				domain.AuditStatusFailure, "Recovery verification failed: no security question on file")
			return "", ErrRecoveryVerificationFailed
		}
		return "", fmt.Errorf("lookup security question: %w", err)
	}

	if stored.Question != question {
		s.audit.Record(ctx, domain.AuditEventAccountManagement, &account.ID, account.Username, input.IP,
			domain.AuditStatusFailure, "Recovery verification failed: security question mismatch")
		return "", ErrRecoveryVerificationFailed
	}

	ok, err := s.hasher.Verify(answer, stored.AnswerHash)
	if err != nil {
		s.logger.Error("security answer verification error", zap.Error(err))
		ok = false
	}
	if !ok {
		s.audit.Record(ctx, domain.AuditEventAccountManagement, &account.ID, account.Username, input.IP,
			domain.AuditStatusFailure, "Recovery verification failed: security answer mismatch")
		return "", ErrRecoveryVerificationFailed
	}

	token, err := security.GenerateSecureToken(security.SessionTokenBytes)
	if err != nil {
		return "", fmt.Errorf("generate recovery token: %w", err)
	}

	if err := s.tokens.Save(ctx, security.HashToken(token), account.ID, s.tokenTTL); err != nil {
		return "", fmt.Errorf("store recovery token: %w", err)
	}

	s.audit.Record(ctx, domain.AuditEventAccountManagement, &account.ID, account.Username, input.IP,
		domain.AuditStatusSuccess, "Recovery details verified")

	return token, nil
}

// ResetPasswordInput carries the token-bound reset request.
type ResetPasswordInput struct {
	Username      string
	RecoveryToken string
	NewPassword   string
	IP            string
}

// ResetPassword replaces the password after a successful VerifyDetails. The
// recovery token must resolve to the same account and is consumed on success.
func (s *RecoveryService) ResetPassword(ctx context.Context, input ResetPasswordInput) error {
	if s.accounts == nil || s.tokens == nil || s.hasher == nil {
		return ErrRecoveryUnavailable
	}

	username := strings.TrimSpace(input.Username)
	token := strings.TrimSpace(input.RecoveryToken)
	if username == "" || token == "" {
		s.audit.Record(ctx, domain.AuditEventInputValidation, nil, username, input.IP,
			domain.AuditStatusFailure, "Password reset rejected: missing username or recovery token")
		return ErrRecoveryTokenInvalid
	}

	account, err := s.accounts.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.audit.Record(ctx, domain.AuditEventAccountManagement, nil, username, input.IP,
				domain.AuditStatusFailure, "Password reset failed: unknown username")
			return ErrRecoveryTokenInvalid
		}
		return fmt.Errorf("lookup account: %w", err)
	}

	tokenHash := security.HashToken(token)
	accountID, err := s.tokens.Peek(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.audit.Record(ctx, domain.AuditEventAccountManagement, &account.ID, account.Username, input.IP,
				domain.AuditStatusFailure, "Password reset failed: recovery token missing or expired")
			return ErrRecoveryTokenInvalid
		}
		return fmt.Errorf("resolve recovery token: %w", err)
	}
	if accountID != account.ID {
		s.audit.Record(ctx, domain.AuditEventAccountManagement, &account.ID, account.Username, input.IP,
			domain.AuditStatusFailure, "Password reset failed: recovery token bound to another account")
		return ErrRecoveryTokenInvalid
	}

	if err := s.applyNewPassword(ctx, account, input.NewPassword, passwordChangedByRecovery, input.IP); err != nil {
		return err
	}

	// Token survives policy rejections above so the user can retry without
	// re-verifying; a successful reset consumes it.
	if _, err := s.tokens.Consume(ctx, tokenHash); err != nil && !errors.Is(err, repository.ErrNotFound) {
		s.logger.Warn("consume recovery token failed", zap.Error(err))
	}

	return nil
}

// ChangePasswordInput carries an authenticated password change.
type ChangePasswordInput struct {
	AccountID   int64
	OldPassword string
	NewPassword string
	IP          string
}

// ChangePassword updates the password after verifying the current one.
func (s *RecoveryService) ChangePassword(ctx context.Context, input ChangePasswordInput) error {
	if s.accounts == nil || s.hasher == nil {
		return ErrRecoveryUnavailable
	}

	account, err := s.accounts.GetByID(ctx, input.AccountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidOldPassword
		}
		return fmt.Errorf("lookup account: %w", err)
	}

	if input.OldPassword == input.NewPassword {
		s.audit.Record(ctx, domain.AuditEventInputValidation, &account.ID, account.Username, input.IP,
			domain.AuditStatusFailure, "Password change rejected: new password equals old password")
		return ErrPasswordSameAsOld
	}

	ok, err := s.hasher.Verify(input.OldPassword, account.PasswordHash)
	if err != nil {
		s.logger.Error("old password verification error", zap.Error(err))
		ok = false
	}
	if !ok {
		s.audit.Record(ctx, domain.AuditEventAccountManagement, &account.ID, account.Username, input.IP,
			domain.AuditStatusFailure, "Password change failed: old password mismatch")
		return ErrInvalidOldPassword
	}

	return s.applyNewPassword(ctx, account, input.NewPassword, passwordChangedByOwner, input.IP)
}

// SetSecurityQuestionInput carries a security-question update.
type SetSecurityQuestionInput struct {
	AccountID       int64
	CurrentPassword string
	Question        string
	Answer          string
	IP              string
}

// SetSecurityQuestion stores or replaces the account's recovery question. The
// answer is hashed with the same work factor as a password.
func (s *RecoveryService) SetSecurityQuestion(ctx context.Context, input SetSecurityQuestionInput) error {
	if s.accounts == nil || s.questions == nil || s.hasher == nil {
		return ErrRecoveryUnavailable
	}

	account, err := s.accounts.GetByID(ctx, input.AccountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidOldPassword
		}
		return fmt.Errorf("lookup account: %w", err)
	}

	question := strings.TrimSpace(input.Question)
	answer := strings.TrimSpace(input.Answer)
	if question == "" || len(question) > maxSecurityQuestionLength || answer == "" || len(answer) > maxSecurityAnswerLength {
		s.audit.Record(ctx, domain.AuditEventInputValidation, &account.ID, account.Username, input.IP,
			domain.AuditStatusFailure, "Security question update rejected: invalid question or answer")
		return ErrPasswordPolicy
	}

	ok, err := s.hasher.Verify(input.CurrentPassword, account.PasswordHash)
	if err != nil {
		s.logger.Error("current password verification error", zap.Error(err))
		ok = false
	}
	if !ok {
		s.audit.Record(ctx, domain.AuditEventAccountManagement, &account.ID, account.Username, input.IP,
			domain.AuditStatusFailure, "Security question update failed: password mismatch")
		return ErrInvalidOldPassword
	}

	answerHash, err := s.hasher.Hash(answer)
	if err != nil {
		return fmt.Errorf("hash security answer: %w", err)
	}

	if err := s.questions.Upsert(ctx, domain.SecurityQuestion{
		AccountID:  account.ID,
		Question:   question,
		AnswerHash: answerHash,
		UpdatedAt:  s.now().UTC(),
	}); err != nil {
		return fmt.Errorf("store security question: %w", err)
	}

	s.audit.Record(ctx, domain.AuditEventAccountManagement, &account.ID, account.Username, input.IP,
		domain.AuditStatusSuccess, "Security question updated")

	return nil
}

// applyNewPassword enforces composition, same-as-old, minimum age and history
// rules, then persists the new hash with its history entry.
func (s *RecoveryService) applyNewPassword(ctx context.Context, account *domain.Account, newPassword, changedBy, ip string) error {
	if err := s.validator.Validate(newPassword); err != nil {
		s.audit.Record(ctx, domain.AuditEventInputValidation, &account.ID, account.Username, ip,
			domain.AuditStatusFailure, fmt.Sprintf("Password change rejected: %v", err))
		return fmt.Errorf("%w: %v", ErrPasswordPolicy, err)
	}

	same, err := s.hasher.Verify(newPassword, account.PasswordHash)
	if err != nil {
		s.logger.Error("new password comparison error", zap.Error(err))
		same = false
	}
	if same {
		s.audit.Record(ctx, domain.AuditEventAccountManagement, &account.ID, account.Username, ip,
			domain.AuditStatusFailure, "Password change rejected: new password equals old password")
		return ErrPasswordSameAsOld
	}

	now := s.now().UTC()
	if s.minPasswordAge > 0 && account.LastPasswordChange != nil {
		if now.Sub(*account.LastPasswordChange) < s.minPasswordAge {
			s.audit.Record(ctx, domain.AuditEventAccountManagement, &account.ID, account.Username, ip,
				domain.AuditStatusFailure, "Password change rejected: password changed too recently")
			return ErrPasswordTooRecent
		}
	}

	if s.historyLimit > 0 {
		history, err := s.accounts.ListPasswordHistory(ctx, account.ID, s.historyLimit)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("list password history: %w", err)
		}
		for _, entry := range history {
			reused, verr := s.hasher.Verify(newPassword, entry.PasswordHash)
			if verr != nil {
				s.logger.Error("password history comparison error", zap.Error(verr))
				continue
			}
			if reused {
				s.audit.Record(ctx, domain.AuditEventAccountManagement, &account.ID, account.Username, ip,
					domain.AuditStatusFailure, "Password change rejected: password found in recent history")
				return ErrPasswordInHistory
			}
		}
	}

	newHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash new password: %w", err)
	}

	if err := s.accounts.UpdatePassword(ctx, account.ID, newHash, now); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	s.audit.Record(ctx, domain.AuditEventAccountManagement, &account.ID, account.Username, ip,
		domain.AuditStatusSuccess, "Password changed")

	s.publishPasswordChanged(ctx, account, changedBy, now)

	return nil
}

func (s *RecoveryService) publishPasswordChanged(ctx context.Context, account *domain.Account, changedBy string, at time.Time) {
	if s.events == nil {
		return
	}

	event := domain.PasswordChangedEvent{
		EventID:    uuid.NewString(),
		AccountID:  account.ID,
		Username:   account.Username,
		ChangedBy:  changedBy,
		OccurredAt: at,
	}

	if err := s.events.PublishPasswordChanged(ctx, event); err != nil {
		s.logger.Warn("publish password changed event failed", zap.Error(err))
	}
}

func validateRecoveryChallenge(username, question, answer string) error {
	if length := len(username); length < minUsernameLength || length > maxUsernameLength {
		return fmt.Errorf("username must be between %d and %d characters", minUsernameLength, maxUsernameLength)
	}
	if question == "" || len(question) > maxSecurityQuestionLength {
		return fmt.Errorf("question must be between 1 and %d characters", maxSecurityQuestionLength)
	}
	if answer == "" || len(answer) > maxSecurityAnswerLength {
		return fmt.Errorf("answer must be between 1 and %d characters", maxSecurityAnswerLength)
	}
	return nil
}
