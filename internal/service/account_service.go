package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spec-kit/account-service/internal/domain"
	"github.com/spec-kit/account-service/internal/events"
	"github.com/spec-kit/account-service/internal/repository"
	apperrors "github.com/spec-kit/account-service/pkg/util"
)

// MinPasswordLength is the shortest accepted password, counted in characters.
const MinPasswordLength = 8

var emailPattern = regexp.MustCompile(`^[A-Za-z0-9+_.-]+@(.+)$`)

// ErrAccountNotFound is returned when a lookup has no result, including for
// blank or non-positive keys.
var ErrAccountNotFound = apperrors.NewNotFound("account")

// Hasher is a one-way credential hash with verification.
type Hasher interface {
	Hash(password string) (string, error)
	Verify(password, hashed string) bool
}

// RegistrationInput is the candidate record for a new account.
type RegistrationInput struct {
	Name     string
	Email    string
	Password string
	Role     *domain.Role
}

// AccountUpdate carries the fields to replace; blank strings and a nil role are left alone.
type AccountUpdate struct {
	Name     string
	Email    string
	Password string
	Role     *domain.Role
}

// AccountManager owns account validation and state transitions.
type AccountManager struct {
	accounts   repository.AccountRepository
	hasher     Hasher
	logger     *zap.Logger
	dispatcher events.Dispatcher
}

// AccountManagerOption customizes an AccountManager.
type AccountManagerOption func(*AccountManager)

// WithLogger sets the logger used at decision points.
func WithLogger(logger *zap.Logger) AccountManagerOption {
	return func(m *AccountManager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithDispatcher publishes account lifecycle events after successful mutations.
func WithDispatcher(dispatcher events.Dispatcher) AccountManagerOption {
	return func(m *AccountManager) {
		m.dispatcher = dispatcher
	}
}

// NewAccountManager builds the manager around its directory and hasher.
func NewAccountManager(accounts repository.AccountRepository, hasher Hasher, opts ...AccountManagerOption) *AccountManager {
	m := &AccountManager{
		accounts: accounts,
		hasher:   hasher,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Register validates the candidate, stores it with a hashed password and returns
// the stored account.
func (m *AccountManager) Register(ctx context.Context, input *RegistrationInput) (*domain.Account, error) {
	if input == nil {
		return nil, apperrors.NewInvalidInput("account details required")
	}
	m.logger.Info("registering account", zap.String("email", input.Email))

	if isBlank(input.Name) {
		return nil, apperrors.NewInvalidInput("name required")
	}
	if !isValidEmail(input.Email) {
		return nil, apperrors.NewInvalidInput("invalid email format")
	}
	if isBlank(input.Password) {
		return nil, apperrors.NewInvalidInput("password required")
	}
	role := domain.RoleUser
	if input.Role != nil {
		parsed, ok := domain.ParseRole(string(*input.Role))
		if !ok {
			return nil, apperrors.NewInvalidInput("invalid role")
		}
		role = parsed
	}

	email := normalizeEmail(input.Email)
	exists, err := m.accounts.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if exists {
		m.logger.Warn("registration rejected: duplicate email", zap.String("email", email))
		return nil, duplicateEmail("email already exists: " + email)
	}

	if !m.IsPasswordStrong(input.Password) {
		m.logger.Warn("registration rejected: weak password", zap.String("email", email))
		return nil, weakPassword()
	}

	hash, err := m.hasher.Hash(input.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	saved, err := m.accounts.Save(ctx, &domain.Account{
		Name:         strings.TrimSpace(input.Name),
		Email:        email,
		PasswordHash: hash,
		Role:         role,
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			m.logger.Warn("registration rejected by directory: duplicate email", zap.String("email", email))
			return nil, duplicateEmail("email already exists: " + email)
		}
		return nil, fmt.Errorf("save account: %w", err)
	}

	m.logger.Info("account registered", zap.Int64("account_id", saved.ID))
	m.publish(ctx, events.NewEvent(events.EventAccountRegistered, saved.ID, events.AccountRegisteredPayload{
		Email: saved.Email,
		Role:  saved.Role,
	}))
	return saved, nil
}

// Authenticate reports whether the credentials match a stored account. It never
// says which part was wrong.
func (m *AccountManager) Authenticate(ctx context.Context, email, password string) bool {
	if isBlank(email) || isBlank(password) {
		m.logger.Warn("authentication failed: blank email or password")
		return false
	}

	account, err := m.accounts.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			m.logger.Warn("authentication failed: unknown email", zap.String("email", email))
		} else {
			m.logger.Error("authentication failed: directory error", zap.Error(err))
		}
		return false
	}

	if !m.hasher.Verify(password, account.PasswordHash) {
		m.logger.Warn("authentication failed: wrong password", zap.String("email", email))
		return false
	}
	m.logger.Info("account authenticated", zap.Int64("account_id", account.ID))
	return true
}

// ValidateCredential compares a raw password with a stored hash.
func (m *AccountManager) ValidateCredential(password, hashed string) bool {
	if isBlank(password) || isBlank(hashed) {
		return false
	}
	return m.hasher.Verify(password, hashed)
}

// FindByEmail looks an account up by its normalized email.
func (m *AccountManager) FindByEmail(ctx context.Context, email string) (*domain.Account, error) {
	if isBlank(email) {
		return nil, ErrAccountNotFound
	}
	account, err := m.accounts.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, notFoundOr(err)
	}
	return account, nil
}

// FindByID looks an account up by identifier.
func (m *AccountManager) FindByID(ctx context.Context, id int64) (*domain.Account, error) {
	if id <= 0 {
		return nil, ErrAccountNotFound
	}
	account, err := m.accounts.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err)
	}
	return account, nil
}

// Exists reports whether an account uses the email.
func (m *AccountManager) Exists(ctx context.Context, email string) bool {
	if isBlank(email) {
		return false
	}
	exists, err := m.accounts.ExistsByEmail(ctx, normalizeEmail(email))
	if err != nil {
		m.logger.Error("email existence check failed", zap.Error(err))
		return false
	}
	return exists
}

// IsPasswordStrong applies the password policy.
func (m *AccountManager) IsPasswordStrong(password string) bool {
	if isBlank(password) {
		return false
	}
	return utf8.RuneCountInString(password) >= MinPasswordLength
}

// Update replaces the fields present in updates and stores the account.
func (m *AccountManager) Update(ctx context.Context, id int64, updates *AccountUpdate) (*domain.Account, error) {
	if id <= 0 || updates == nil {
		return nil, ErrAccountNotFound
	}

	account, err := m.accounts.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			m.logger.Warn("update failed: account not found", zap.Int64("account_id", id))
		}
		return nil, notFoundOr(err)
	}

	var changed []string

	if !isBlank(updates.Name) {
		account.Name = strings.TrimSpace(updates.Name)
		changed = append(changed, "name")
	}

	if isValidEmail(updates.Email) {
		email := normalizeEmail(updates.Email)
		if !strings.EqualFold(account.Email, email) {
			taken, err := m.accounts.ExistsByEmail(ctx, email)
			if err != nil {
				return nil, fmt.Errorf("check email: %w", err)
			}
			if taken {
				return nil, duplicateEmail("email already taken: " + email)
			}
		}
		account.Email = email
		changed = append(changed, "email")
	}

	if !isBlank(updates.Password) {
		if !m.IsPasswordStrong(updates.Password) {
			return nil, weakPassword()
		}
		hash, err := m.hasher.Hash(updates.Password)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		account.PasswordHash = hash
		changed = append(changed, "password")
	}

	if updates.Role != nil {
		role, ok := domain.ParseRole(string(*updates.Role))
		if !ok {
			return nil, apperrors.NewInvalidInput("invalid role")
		}
		account.Role = role
		changed = append(changed, "role")
	}

	saved, err := m.accounts.Save(ctx, account)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, duplicateEmail("email already taken: " + account.Email)
		}
		return nil, notFoundOr(err)
	}

	m.logger.Info("account updated", zap.Int64("account_id", id), zap.Strings("fields", changed))
	m.publish(ctx, events.NewEvent(events.EventAccountUpdated, id, events.AccountUpdatedPayload{Fields: changed}))
	return saved, nil
}

// ChangeRole sets the role of an existing account.
func (m *AccountManager) ChangeRole(ctx context.Context, id int64, role domain.Role) (*domain.Account, error) {
	if id <= 0 || role == "" {
		return nil, ErrAccountNotFound
	}
	newRole, ok := domain.ParseRole(string(role))
	if !ok {
		return nil, apperrors.NewInvalidInput("invalid role")
	}

	account, err := m.accounts.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err)
	}

	oldRole := account.Role
	account.Role = newRole
	saved, err := m.accounts.Save(ctx, account)
	if err != nil {
		return nil, notFoundOr(err)
	}

	m.logger.Info("account role changed", zap.Int64("account_id", id), zap.String("role", string(newRole)))
	m.publish(ctx, events.NewEvent(events.EventAccountRoleChanged, id, events.AccountRoleChangedPayload{
		OldRole: oldRole,
		NewRole: newRole,
	}))
	return saved, nil
}

// Delete removes the account and reports whether it did. Directory failures
// are logged and reported as false.
func (m *AccountManager) Delete(ctx context.Context, id int64) bool {
	if id <= 0 {
		m.logger.Warn("delete failed: invalid id", zap.Int64("account_id", id))
		return false
	}

	exists, err := m.accounts.ExistsByID(ctx, id)
	if err != nil {
		m.logger.Error("delete failed: existence check", zap.Int64("account_id", id), zap.Error(err))
		return false
	}
	if !exists {
		m.logger.Warn("delete failed: account not found", zap.Int64("account_id", id))
		return false
	}

	if err := m.accounts.DeleteByID(ctx, id); err != nil {
		m.logger.Error("delete failed", zap.Int64("account_id", id), zap.Error(err))
		return false
	}

	m.logger.Info("account deleted", zap.Int64("account_id", id))
	m.publish(ctx, events.NewEvent(events.EventAccountDeleted, id, nil))
	return true
}

// List returns every account.
func (m *AccountManager) List(ctx context.Context) ([]domain.Account, error) {
	accounts, err := m.accounts.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	m.logger.Debug("listed accounts", zap.Int("count", len(accounts)))
	return accounts, nil
}

// Count returns the number of accounts.
func (m *AccountManager) Count(ctx context.Context) (int64, error) {
	return m.accounts.Count(ctx)
}

// IsAdmin reports whether the account exists and holds the ADMIN role.
func (m *AccountManager) IsAdmin(ctx context.Context, id int64) bool {
	account, err := m.FindByID(ctx, id)
	if err != nil {
		return false
	}
	return account.IsAdmin()
}

func (m *AccountManager) publish(ctx context.Context, event events.Event) {
	if m.dispatcher == nil {
		return
	}
	if err := m.dispatcher.Publish(ctx, event); err != nil {
		m.logger.Warn("event handler failed", zap.String("event_type", string(event.Type)), zap.Error(err))
	}
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

func isValidEmail(email string) bool {
	if isBlank(email) {
		return false
	}
	return emailPattern.MatchString(strings.TrimSpace(email))
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func duplicateEmail(message string) error {
	return apperrors.NewDuplicateResource(message, nil)
}

func weakPassword() error {
	return apperrors.NewWeakCredential(fmt.Sprintf("password must be at least %d characters long", MinPasswordLength))
}

func notFoundOr(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrAccountNotFound
	}
	return err
}
