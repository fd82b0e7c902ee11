package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Skillial/CSSECDV-Case-Study/internal/core/domain"
	"github.com/Skillial/CSSECDV-Case-Study/internal/core/port"
	"github.com/Skillial/CSSECDV-Case-Study/internal/infra/security"
	"github.com/Skillial/CSSECDV-Case-Study/internal/repository"
)

var (
	// ErrRegistrationFailed covers every client-visible registration failure,
	// including username collisions, so names cannot be enumerated.
	ErrRegistrationFailed = errors.New("registration failed, please try again with different information")
	// ErrRegistrationInvalid carries a specific validation message the client
	// may see, e.g. a policy violation on the chosen password.
	ErrRegistrationInvalid = errors.New("registration input invalid")
	// ErrRegistrationUnavailable indicates the service is not properly configured.
	ErrRegistrationUnavailable = errors.New("registration service unavailable")
	// ErrAccountNotFound indicates the targeted account does not exist.
	ErrAccountNotFound = errors.New("account not found")
	// ErrNotAManager indicates a category assignment targeted a non-manager.
	ErrNotAManager = errors.New("categories can only be assigned to managers")
)

// RegistrationService creates customer accounts via self-registration and
// admin/manager accounts via provisioning.
type RegistrationService struct {
	accounts  port.AccountRepository
	audit     *AuditService
	hasher    port.PasswordHasher
	validator *security.PasswordValidator
	logger    *zap.Logger
	now       func() time.Time
}

// NewRegistrationService constructs a RegistrationService instance.
func NewRegistrationService(accounts port.AccountRepository, audit *AuditService, hasher port.PasswordHasher, validator *security.PasswordValidator, logger *zap.Logger) *RegistrationService {
	if validator == nil {
		validator = security.DefaultPasswordValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RegistrationService{
		accounts:  accounts,
		audit:     audit,
		hasher:    hasher,
		validator: validator,
		logger:    logger,
		now:       time.Now,
	}
}

// WithClock allows tests to override the clock used by the service.
func (s *RegistrationService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// RegisterInput carries a self-registration request.
type RegisterInput struct {
	Username        string
	Password        string
	ConfirmPassword string
	IP              string
}

// RegisterCustomer creates a customer account. A duplicate username fails with
// the same generic error as any other rejection.
func (s *RegistrationService) RegisterCustomer(ctx context.Context, input RegisterInput) (*domain.Account, error) {
	return s.create(ctx, input, domain.RoleCustomer, nil)
}

// ProvisionInput carries an admin-initiated account creation.
type ProvisionInput struct {
	Username        string
	Password        string
	ConfirmPassword string
	Role            domain.Role
	IP              string
}

// ProvisionAccount creates an admin or manager account on behalf of the acting
// administrator. The role is fixed at creation and never changes afterwards.
func (s *RegistrationService) ProvisionAccount(ctx context.Context, actor *domain.Session, input ProvisionInput) (*domain.Account, error) {
	if input.Role != domain.RoleAdmin && input.Role != domain.RoleManager {
		s.auditFor(ctx, actor, input.IP, domain.AuditStatusFailure,
			fmt.Sprintf("Account provisioning rejected: role %q not provisionable", input.Role))
		return nil, fmt.Errorf("%w: role must be admin or manager", ErrRegistrationInvalid)
	}

	return s.create(ctx, RegisterInput{
		Username:        input.Username,
		Password:        input.Password,
		ConfirmPassword: input.ConfirmPassword,
		IP:              input.IP,
	}, input.Role, actor)
}

func (s *RegistrationService) create(ctx context.Context, input RegisterInput, role domain.Role, actor *domain.Session) (*domain.Account, error) {
	if s.accounts == nil || s.hasher == nil {
		return nil, ErrRegistrationUnavailable
	}

	username := strings.TrimSpace(input.Username)

	if err := validateUsername(username); err != nil {
		s.auditRegistrationFailure(ctx, actor, username, input.IP, domain.AuditEventInputValidation,
			fmt.Sprintf("Registration rejected: %v", err))
		return nil, fmt.Errorf("%w: %v", ErrRegistrationInvalid, err)
	}
	if input.Password != input.ConfirmPassword {
		s.auditRegistrationFailure(ctx, actor, username, input.IP, domain.AuditEventInputValidation,
			"Registration rejected: password confirmation mismatch")
		return nil, fmt.Errorf("%w: passwords do not match", ErrRegistrationInvalid)
	}
	if err := s.validator.Validate(input.Password); err != nil {
		s.auditRegistrationFailure(ctx, actor, username, input.IP, domain.AuditEventInputValidation,
			fmt.Sprintf("Registration rejected: %v", err))
		return nil, fmt.Errorf("%w: %v", ErrRegistrationInvalid, err)
	}

	passwordHash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()
	account := domain.Account{
		Username:     username,
		PasswordHash: passwordHash,
		Role:         role,
		CreatedAt:    now,
	}

	id, err := s.accounts.Create(ctx, account)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			// Same outward failure as any other rejection.
			s.auditRegistrationFailure(ctx, actor, username, input.IP, domain.AuditEventAccountManagement,
				"Registration failed: username already taken")
			return nil, ErrRegistrationFailed
		}
		return nil, fmt.Errorf("create account: %w", err)
	}
	account.ID = id

	s.auditFor(ctx, actor, input.IP, domain.AuditStatusSuccess,
		fmt.Sprintf("Account %q created with role %s", username, role))

	account.PasswordHash = ""
	return &account, nil
}

// AssignCategories replaces the product categories a manager is responsible
// for. The whole replacement happens in one transaction.
func (s *RegistrationService) AssignCategories(ctx context.Context, actor *domain.Session, employeeID int64, categories []string, ip string) error {
	if s.accounts == nil {
		return ErrRegistrationUnavailable
	}

	cleaned := make([]string, 0, len(categories))
	for _, category := range categories {
		category = strings.TrimSpace(category)
		if category == "" {
			continue
		}
		cleaned = append(cleaned, category)
	}
	if len(cleaned) == 0 {
		s.auditFor(ctx, actor, ip, domain.AuditStatusFailure,
			fmt.Sprintf("Category assignment rejected for account %d: no categories given", employeeID))
		return fmt.Errorf("%w: at least one category required", ErrRegistrationInvalid)
	}

	target, err := s.accounts.GetByID(ctx, employeeID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.auditFor(ctx, actor, ip, domain.AuditStatusFailure,
				fmt.Sprintf("Category assignment failed: account %d not found", employeeID))
			return ErrAccountNotFound
		}
		return fmt.Errorf("lookup account: %w", err)
	}
	if target.Role != domain.RoleManager {
		s.auditFor(ctx, actor, ip, domain.AuditStatusFailure,
			fmt.Sprintf("Category assignment failed: account %q is not a manager", target.Username))
		return ErrNotAManager
	}

	if err := s.accounts.ReplaceCategoryAssignments(ctx, employeeID, cleaned, s.now().UTC()); err != nil {
		return fmt.Errorf("replace category assignments: %w", err)
	}

	s.auditFor(ctx, actor, ip, domain.AuditStatusSuccess,
		fmt.Sprintf("Categories assigned to manager %q: %s", target.Username, strings.Join(cleaned, ", ")))

	return nil
}

// ListAccounts returns accounts for the admin overview, password hashes cleared.
func (s *RegistrationService) ListAccounts(ctx context.Context, limit, offset int) ([]domain.Account, error) {
	if s.accounts == nil {
		return nil, ErrRegistrationUnavailable
	}
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	accounts, err := s.accounts.List(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}

	for i := range accounts {
		accounts[i].PasswordHash = ""
	}

	return accounts, nil
}

func (s *RegistrationService) auditRegistrationFailure(ctx context.Context, actor *domain.Session, username, ip string, eventType domain.AuditEventType, description string) {
	if actor != nil {
		s.audit.Record(ctx, eventType, &actor.AccountID, actor.Username, ip, domain.AuditStatusFailure, description)
		return
	}
	s.audit.Record(ctx, eventType, nil, username, ip, domain.AuditStatusFailure, description)
}

func (s *RegistrationService) auditFor(ctx context.Context, actor *domain.Session, ip string, status domain.AuditStatus, description string) {
	var userID *int64
	username := ""
	if actor != nil {
		userID = &actor.AccountID
		username = actor.Username
	}
	s.audit.Record(ctx, domain.AuditEventAccountManagement, userID, username, ip, status, description)
}

func validateUsername(username string) error {
	if length := len(username); length < minUsernameLength || length > maxUsernameLength {
		return fmt.Errorf("username must be between %d and %d characters", minUsernameLength, maxUsernameLength)
	}
	for _, r := range username {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '_':
		default:
			return errors.New("username may only contain letters, digits and underscores")
		}
	}
	return nil
}
