package auth

import (
	"context"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/account-service/internal/domain"
)

// AdminChecker reports whether a stored account holds the ADMIN role.
type AdminChecker interface {
	IsAdmin(ctx context.Context, id int64) bool
}

// RequireAdmin lets through the configured administrator and accounts whose role is ADMIN.
func RequireAdmin(checker AdminChecker) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return fiber.NewError(http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
		}
		switch principal.SubjectType {
		case domain.SubjectTypeAdmin:
			return c.Next()
		case domain.SubjectTypeAccount:
			if principal.Account != nil && checker.IsAdmin(c.UserContext(), principal.Account.ID) {
				return c.Next()
			}
		}
		return fiber.NewError(http.StatusForbidden, "admin role required")
	}
}

// RequireAnyRole ensures caller is authenticated.
func RequireAnyRole() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := PrincipalFromContext(c); !ok {
			return fiber.NewError(http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
		}
		return c.Next()
	}
}
