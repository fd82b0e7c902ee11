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
	"github.com/Skillial/CSSECDV-Case-Study/internal/repository"
)

const (
	minAddressLength = 5
	maxAddressLength = 255

	defaultMaxProfileImageBytes = 50 << 20
)

var (
	// ErrProfileInvalid carries a specific validation message the client may see.
	ErrProfileInvalid = errors.New("profile input invalid")
	// ErrProfileImageNotFound indicates the account has no stored picture.
	ErrProfileImageNotFound = errors.New("profile image not found")
	// ErrProfileUnavailable indicates the service is not properly configured.
	ErrProfileUnavailable = errors.New("profile service unavailable")
)

// ProfileService manages the mutable parts of an account profile: delivery
// address, profile picture and the category view.
type ProfileService struct {
	accounts port.AccountRepository
	audit    *AuditService
	logger   *zap.Logger
	now      func() time.Time

	maxImageBytes int64
}

// NewProfileService constructs a ProfileService instance.
func NewProfileService(accounts port.AccountRepository, audit *AuditService, logger *zap.Logger) *ProfileService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProfileService{
		accounts:      accounts,
		audit:         audit,
		logger:        logger,
		now:           time.Now,
		maxImageBytes: defaultMaxProfileImageBytes,
	}
}

// WithClock allows tests to override the clock used by the service.
func (s *ProfileService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// WithMaxImageBytes adjusts the profile picture size cap.
func (s *ProfileService) WithMaxImageBytes(limit int64) {
	if limit > 0 {
		s.maxImageBytes = limit
	}
}

// UpdateAddress replaces the caller's delivery address.
func (s *ProfileService) UpdateAddress(ctx context.Context, identity *domain.Session, address, ip string) error {
	if s.accounts == nil {
		return ErrProfileUnavailable
	}
	if identity == nil {
		return ErrProfileInvalid
	}

	address = strings.TrimSpace(address)
	if length := len(address); length < minAddressLength || length > maxAddressLength {
		s.audit.Record(ctx, domain.AuditEventInputValidation, &identity.AccountID, identity.Username, ip,
			domain.AuditStatusFailure,
			fmt.Sprintf("Address update rejected: address must be between %d and %d characters", minAddressLength, maxAddressLength))
		return fmt.Errorf("%w: address must be between %d and %d characters", ErrProfileInvalid, minAddressLength, maxAddressLength)
	}

	if err := s.accounts.UpdateAddress(ctx, identity.AccountID, address); err != nil {
		return fmt.Errorf("update address: %w", err)
	}

	s.audit.Record(ctx, domain.AuditEventAccountManagement, &identity.AccountID, identity.Username, ip,
		domain.AuditStatusSuccess, "Address updated")

	return nil
}

// UpdateProfileImage stores the caller's profile picture. Only image/* content
// within the size cap is accepted.
func (s *ProfileService) UpdateProfileImage(ctx context.Context, identity *domain.Session, contentType string, data []byte, ip string) error {
	if s.accounts == nil {
		return ErrProfileUnavailable
	}
	if identity == nil {
		return ErrProfileInvalid
	}

	if !strings.HasPrefix(contentType, "image/") {
		s.audit.Record(ctx, domain.AuditEventInputValidation, &identity.AccountID, identity.Username, ip,
			domain.AuditStatusFailure,
			fmt.Sprintf("Profile image rejected: unsupported content type %q", contentType))
		return fmt.Errorf("%w: only image uploads are accepted", ErrProfileInvalid)
	}
	if len(data) == 0 {
		s.audit.Record(ctx, domain.AuditEventInputValidation, &identity.AccountID, identity.Username, ip,
			domain.AuditStatusFailure, "Profile image rejected: empty upload")
		return fmt.Errorf("%w: image data is empty", ErrProfileInvalid)
	}
	if int64(len(data)) > s.maxImageBytes {
		s.audit.Record(ctx, domain.AuditEventInputValidation, &identity.AccountID, identity.Username, ip,
			domain.AuditStatusFailure,
			fmt.Sprintf("Profile image rejected: %d bytes exceeds the %d byte limit", len(data), s.maxImageBytes))
		return fmt.Errorf("%w: image exceeds the size limit", ErrProfileInvalid)
	}

	if err := s.accounts.UpdateProfileImage(ctx, domain.ProfileImage{
		AccountID:   identity.AccountID,
		ContentType: contentType,
		Data:        data,
		UpdatedAt:   s.now().UTC(),
	}); err != nil {
		return fmt.Errorf("update profile image: %w", err)
	}

	s.audit.Record(ctx, domain.AuditEventAccountManagement, &identity.AccountID, identity.Username, ip,
		domain.AuditStatusSuccess, "Profile image updated")

	return nil
}

// ProfileImage returns the stored picture for the account.
func (s *ProfileService) ProfileImage(ctx context.Context, accountID int64) (*domain.ProfileImage, error) {
	if s.accounts == nil {
		return nil, ErrProfileUnavailable
	}

	image, err := s.accounts.GetProfileImage(ctx, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrProfileImageNotFound
		}
		return nil, fmt.Errorf("fetch profile image: %w", err)
	}

	return image, nil
}

// Categories lists the category assignments for a manager account.
func (s *ProfileService) Categories(ctx context.Context, accountID int64) ([]domain.CategoryAssignment, error) {
	if s.accounts == nil {
		return nil, ErrProfileUnavailable
	}

	assignments, err := s.accounts.ListCategoryAssignments(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("list category assignments: %w", err)
	}

	return assignments, nil
}
