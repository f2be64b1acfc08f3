package auth

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/account-service/internal/domain"
	"github.com/spec-kit/account-service/internal/repository"
	apperrors "github.com/spec-kit/account-service/pkg/util"
)

const principalKey = "auth_principal"

// Principal represents the authenticated caller.
type Principal struct {
	SubjectType domain.SubjectType
	Email       string
	Account     *domain.Account
	Claims      *Claims
}

// AccountLookup resolves the account behind an access token.
type AccountLookup interface {
	FindByID(ctx context.Context, id int64) (*domain.Account, error)
}

// AuthMiddleware validates bearer tokens and loads principals.
type AuthMiddleware struct {
	tokens   *TokenManager
	accounts AccountLookup
	denylist repository.TokenDenylist
}

// NewAuthMiddleware constructs middleware. A nil denylist disables revocation checks.
func NewAuthMiddleware(tokens *TokenManager, accounts AccountLookup, denylist repository.TokenDenylist) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, accounts: accounts, denylist: denylist}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	claims, err := m.tokens.ParseToken(strings.TrimSpace(parts[1]))
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}

	ctx := c.UserContext()
	if m.denylist != nil {
		revoked, err := m.denylist.IsRevoked(ctx, claims.ID)
		if err != nil {
			return apperrors.NewInternalError(err)
		}
		if revoked {
			return apperrors.NewUnauthorized("token revoked")
		}
	}

	principal := &Principal{SubjectType: claims.SubjectType, Email: claims.Email, Claims: claims}

	switch claims.SubjectType {
	case domain.SubjectTypeAccount:
		id, err := strconv.ParseInt(claims.Subject, 10, 64)
		if err != nil {
			return apperrors.NewUnauthorized("invalid token subject")
		}
		account, err := m.accounts.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) || apperrors.HasCode(err, apperrors.CodeNotFound) {
				return apperrors.NewUnauthorized("account not found")
			}
			return apperrors.ToDomainError(err)
		}
		principal.Account = account
		principal.Email = account.Email
	case domain.SubjectTypeAdmin:
	default:
		return apperrors.NewUnauthorized("unknown subject")
	}

	c.Locals(principalKey, principal)
	return c.Next()
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}
