package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/account-service/internal/auth"
	"github.com/spec-kit/account-service/internal/config"
	"github.com/spec-kit/account-service/internal/domain"
	"github.com/spec-kit/account-service/internal/repository"
	apperrors "github.com/spec-kit/account-service/pkg/util"
)

var (
	// ErrUnknownAccount is returned by LoginUser when no account has the email.
	ErrUnknownAccount = apperrors.NewDomainError(apperrors.CodeInvalidInput, "user doesn't exist", http.StatusBadRequest, nil)
	// ErrInvalidCredentials is returned by LoginUser on a password mismatch.
	ErrInvalidCredentials = apperrors.NewDomainError(apperrors.CodeInvalidInput, "invalid credentials", http.StatusBadRequest, nil)
	// ErrInvalidAdminCredentials is returned by LoginAdmin on any mismatch.
	ErrInvalidAdminCredentials = apperrors.NewDomainError(apperrors.CodeInvalidInput, "invalid admin credentials", http.StatusBadRequest, nil)
)

// AuthResult is an issued access token together with the account it was issued for.
// Account is nil for the built-in administrator.
type AuthResult struct {
	Account     *domain.Account
	AccessToken string
	Token       domain.Token
}

// AuthService coordinates registration, login and logout flows.
type AuthService struct {
	accounts *AccountManager
	tokenMgr *auth.TokenManager
	denylist repository.TokenDenylist
	admin    config.AdminConfig
	logger   *zap.Logger
}

// AuthDependencies encapsulates collaborators of the auth service.
type AuthDependencies struct {
	Accounts *AccountManager
	Tokens   *auth.TokenManager
	Denylist repository.TokenDenylist
	Logger   *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, deps AuthDependencies) *AuthService {
	tokens := deps.Tokens
	if tokens == nil {
		tokens = auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		accounts: deps.Accounts,
		tokenMgr: tokens,
		denylist: deps.Denylist,
		admin:    cfg.Admin,
		logger:   logger,
	}
}

// RegisterUser creates a new account and signs it in.
func (s *AuthService) RegisterUser(ctx context.Context, input *RegistrationInput) (*AuthResult, error) {
	account, err := s.accounts.Register(ctx, input)
	if err != nil {
		return nil, err
	}
	return s.issueForAccount(account)
}

// LoginUser authenticates a stored account by email and password.
func (s *AuthService) LoginUser(ctx context.Context, email, password string) (*AuthResult, error) {
	account, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil, ErrUnknownAccount
		}
		return nil, err
	}
	if !s.accounts.ValidateCredential(password, account.PasswordHash) {
		s.logger.Warn("login rejected: invalid credentials", zap.Int64("account_id", account.ID))
		return nil, ErrInvalidCredentials
	}
	return s.issueForAccount(account)
}

// LoginAdmin authenticates the built-in administrator configured through ADMIN_EMAIL
// and ADMIN_PASSWORD.
func (s *AuthService) LoginAdmin(_ context.Context, email, password string) (*AuthResult, error) {
	if s.admin.Password == "" || s.admin.Email == "" {
		s.logger.Warn("admin login rejected: administrator not configured")
		return nil, ErrInvalidAdminCredentials
	}
	emailOK := subtle.ConstantTimeCompare([]byte(strings.TrimSpace(email)), []byte(s.admin.Email)) == 1
	passwordOK := subtle.ConstantTimeCompare([]byte(password), []byte(s.admin.Password)) == 1
	if !emailOK || !passwordOK {
		s.logger.Warn("admin login rejected: invalid credentials")
		return nil, ErrInvalidAdminCredentials
	}

	tokenStr, token, err := s.tokenMgr.GenerateToken(s.admin.Email, domain.SubjectTypeAdmin, domain.RoleAdmin, s.admin.Email)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	s.logger.Info("admin logged in")
	return &AuthResult{AccessToken: tokenStr, Token: token}, nil
}

// Logout revokes the presented token until it would have expired.
func (s *AuthService) Logout(ctx context.Context, claims *auth.Claims) error {
	if claims == nil {
		return apperrors.NewUnauthorized("authentication required")
	}
	if s.denylist == nil {
		return nil
	}
	token := claims.Token()
	if err := s.denylist.Revoke(ctx, token.ID, token.ExpiresAt); err != nil {
		return err
	}
	s.logger.Info("token revoked", zap.String("subject", token.SubjectID))
	return nil
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

func (s *AuthService) issueForAccount(account *domain.Account) (*AuthResult, error) {
	subjectID := strconv.FormatInt(account.ID, 10)
	tokenStr, token, err := s.tokenMgr.GenerateToken(subjectID, domain.SubjectTypeAccount, account.Role, account.Email)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &AuthResult{Account: account, AccessToken: tokenStr, Token: token}, nil
}
