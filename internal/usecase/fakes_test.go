package usecase

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Skillial/CSSECDV-Case-Study/internal/core/domain"
	"github.com/Skillial/CSSECDV-Case-Study/internal/core/port"
	"github.com/Skillial/CSSECDV-Case-Study/internal/repository"
)

type fakeAccountRepo struct {
	mu         sync.Mutex
	nextID     int64
	accounts   map[int64]*domain.Account
	history    map[int64][]domain.PasswordHistoryEntry
	categories map[int64][]domain.CategoryAssignment
	images     map[int64]domain.ProfileImage
}

func newFakeAccountRepo() *fakeAccountRepo {
	return &fakeAccountRepo{
		accounts:   make(map[int64]*domain.Account),
		history:    make(map[int64][]domain.PasswordHistoryEntry),
		categories: make(map[int64][]domain.CategoryAssignment),
		images:     make(map[int64]domain.ProfileImage),
	}
}

func (f *fakeAccountRepo) Create(_ context.Context, account domain.Account) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, existing := range f.accounts {
		if existing.Username == account.Username {
			return 0, repository.ErrDuplicate
		}
	}

	f.nextID++
	account.ID = f.nextID
	f.accounts[account.ID] = &account
	f.history[account.ID] = []domain.PasswordHistoryEntry{{
		ID:           1,
		AccountID:    account.ID,
		PasswordHash: account.PasswordHash,
		ChangedAt:    account.CreatedAt,
	}}
	return account.ID, nil
}

func (f *fakeAccountRepo) GetByUsername(_ context.Context, username string) (*domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, account := range f.accounts {
		if account.Username == username {
			copied := *account
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeAccountRepo) GetByID(_ context.Context, id int64) (*domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	account, ok := f.accounts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *account
	return &copied, nil
}

func (f *fakeAccountRepo) List(_ context.Context, limit, offset int) ([]domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]domain.Account, 0, len(f.accounts))
	for _, account := range f.accounts {
		out = append(out, *account)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeAccountRepo) RecordFailedAttempt(_ context.Context, id int64, at time.Time, threshold int, lockFor time.Duration) (*domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	account, ok := f.accounts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}

	account.LoginAttempts++
	attempt := at
	account.LastLoginAttempt = &attempt
	if account.LoginAttempts >= threshold {
		until := at.Add(lockFor)
		account.LockoutUntil = &until
	}

	copied := *account
	return &copied, nil
}

func (f *fakeAccountRepo) ResetLockout(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	account, ok := f.accounts[id]
	if !ok {
		return repository.ErrNotFound
	}
	account.LoginAttempts = 0
	account.LockoutUntil = nil
	return nil
}

func (f *fakeAccountRepo) RecordSuccessfulLogin(_ context.Context, id int64, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	account, ok := f.accounts[id]
	if !ok {
		return repository.ErrNotFound
	}
	account.LoginAttempts = 0
	account.LockoutUntil = nil
	stamp := at
	account.LastSuccessfulLogin = &stamp
	account.LastLoginAttempt = &stamp
	return nil
}

func (f *fakeAccountRepo) UpdatePassword(_ context.Context, id int64, passwordHash string, changedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	account, ok := f.accounts[id]
	if !ok {
		return repository.ErrNotFound
	}
	account.PasswordHash = passwordHash
	stamp := changedAt
	account.LastPasswordChange = &stamp
	account.LoginAttempts = 0
	account.LockoutUntil = nil

	entries := append(f.history[id], domain.PasswordHistoryEntry{
		ID:           int64(len(f.history[id]) + 1),
		AccountID:    id,
		PasswordHash: passwordHash,
		ChangedAt:    changedAt,
	})
	sort.Slice(entries, func(i, j int) bool { return entries[i].ChangedAt.After(entries[j].ChangedAt) })
	f.history[id] = entries
	return nil
}

func (f *fakeAccountRepo) ListPasswordHistory(_ context.Context, id int64, limit int) ([]domain.PasswordHistoryEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries := f.history[id]
	if limit > 0 && limit < len(entries) {
		entries = entries[:limit]
	}
	out := make([]domain.PasswordHistoryEntry, len(entries))
	copy(out, entries)
	return out, nil
}

func (f *fakeAccountRepo) UpdateAddress(_ context.Context, id int64, address string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	account, ok := f.accounts[id]
	if !ok {
		return repository.ErrNotFound
	}
	account.Address = &address
	return nil
}

func (f *fakeAccountRepo) UpdateProfileImage(_ context.Context, image domain.ProfileImage) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.accounts[image.AccountID]; !ok {
		return repository.ErrNotFound
	}
	f.images[image.AccountID] = image
	return nil
}

func (f *fakeAccountRepo) GetProfileImage(_ context.Context, id int64) (*domain.ProfileImage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	image, ok := f.images[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := image
	return &copied, nil
}

func (f *fakeAccountRepo) ReplaceCategoryAssignments(_ context.Context, id int64, categories []string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.accounts[id]; !ok {
		return repository.ErrNotFound
	}
	assignments := make([]domain.CategoryAssignment, 0, len(categories))
	for _, category := range categories {
		assignments = append(assignments, domain.CategoryAssignment{
			AccountID:  id,
			Category:   category,
			AssignedAt: at,
		})
	}
	f.categories[id] = assignments
	return nil
}

func (f *fakeAccountRepo) ListCategoryAssignments(_ context.Context, id int64) ([]domain.CategoryAssignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]domain.CategoryAssignment, len(f.categories[id]))
	copy(out, f.categories[id])
	return out, nil
}

type fakeSecurityQuestionRepo struct {
	mu        sync.Mutex
	questions map[int64]domain.SecurityQuestion
}

func newFakeSecurityQuestionRepo() *fakeSecurityQuestionRepo {
	return &fakeSecurityQuestionRepo{questions: make(map[int64]domain.SecurityQuestion)}
}

func (f *fakeSecurityQuestionRepo) Upsert(_ context.Context, question domain.SecurityQuestion) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.questions[question.AccountID] = question
	return nil
}

func (f *fakeSecurityQuestionRepo) GetByAccountID(_ context.Context, accountID int64) (*domain.SecurityQuestion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	question, ok := f.questions[accountID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := question
	return &copied, nil
}

type fakeSessionStore struct {
	mu       sync.Mutex
	sessions map[string]domain.Session
	reports  map[string]domain.LoginReport
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{
		sessions: make(map[string]domain.Session),
		reports:  make(map[string]domain.LoginReport),
	}
}

func (f *fakeSessionStore) Save(_ context.Context, tokenHash string, session domain.Session, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[tokenHash] = session
	return nil
}

func (f *fakeSessionStore) Get(_ context.Context, tokenHash string) (*domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	session, ok := f.sessions[tokenHash]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := session
	return &copied, nil
}

func (f *fakeSessionStore) Delete(_ context.Context, tokenHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, tokenHash)
	delete(f.reports, tokenHash)
	return nil
}

func (f *fakeSessionStore) SetLoginReport(_ context.Context, tokenHash string, report domain.LoginReport, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports[tokenHash] = report
	return nil
}

func (f *fakeSessionStore) TakeLoginReport(_ context.Context, tokenHash string) (*domain.LoginReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	report, ok := f.reports[tokenHash]
	if !ok {
		return nil, repository.ErrNotFound
	}
	delete(f.reports, tokenHash)
	copied := report
	return &copied, nil
}

type fakeRecoveryTokenStore struct {
	mu     sync.Mutex
	tokens map[string]int64
}

func newFakeRecoveryTokenStore() *fakeRecoveryTokenStore {
	return &fakeRecoveryTokenStore{tokens: make(map[string]int64)}
}

func (f *fakeRecoveryTokenStore) Save(_ context.Context, tokenHash string, accountID int64, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens[tokenHash] = accountID
	return nil
}

func (f *fakeRecoveryTokenStore) Consume(_ context.Context, tokenHash string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	accountID, ok := f.tokens[tokenHash]
	if !ok {
		return 0, repository.ErrNotFound
	}
	delete(f.tokens, tokenHash)
	return accountID, nil
}

func (f *fakeRecoveryTokenStore) Peek(_ context.Context, tokenHash string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	accountID, ok := f.tokens[tokenHash]
	if !ok {
		return 0, repository.ErrNotFound
	}
	return accountID, nil
}

type fakeAuditRepo struct {
	mu      sync.Mutex
	entries []domain.AuditEntry
}

func newFakeAuditRepo() *fakeAuditRepo {
	return &fakeAuditRepo{}
}

func (f *fakeAuditRepo) Append(_ context.Context, entry domain.AuditEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry.ID = int64(len(f.entries) + 1)
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeAuditRepo) List(_ context.Context, limit, offset int) ([]domain.AuditEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]domain.AuditEntry, len(f.entries))
	copy(out, f.entries)
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })

	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeAuditRepo) last() (domain.AuditEntry, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.entries) == 0 {
		return domain.AuditEntry{}, false
	}
	return f.entries[len(f.entries)-1], true
}

func (f *fakeAuditRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries)
}

var (
	_ port.AccountRepository          = (*fakeAccountRepo)(nil)
	_ port.SecurityQuestionRepository = (*fakeSecurityQuestionRepo)(nil)
	_ port.SessionStore               = (*fakeSessionStore)(nil)
	_ port.RecoveryTokenStore         = (*fakeRecoveryTokenStore)(nil)
	_ port.AuditRepository            = (*fakeAuditRepo)(nil)
)
