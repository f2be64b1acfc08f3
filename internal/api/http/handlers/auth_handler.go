package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/account-service/internal/api/dto"
	"github.com/spec-kit/account-service/internal/auth"
	"github.com/spec-kit/account-service/internal/domain"
	"github.com/spec-kit/account-service/internal/service"
)

// AuthHandler exposes registration, login and session endpoints.
type AuthHandler struct {
	auth *service.AuthService
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: authService}
}

// Register handles POST /api/auth/register.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}

	input := &service.RegistrationInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     roleFromRequest(req.Role),
	}
	result, err := h.auth.RegisterUser(c.UserContext(), input)
	if err != nil {
		return err
	}

	return c.JSON(authResponse(result, "User registered successfully"))
}

// LoginUser handles POST /api/auth/login/user.
func (h *AuthHandler) LoginUser(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if req.Email == "" || req.Password == "" {
		return fiber.NewError(http.StatusBadRequest, "email and password required")
	}

	result, err := h.auth.LoginUser(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(authResponse(result, "User login successful"))
}

// LoginAdmin handles POST /api/auth/login/admin.
func (h *AuthHandler) LoginAdmin(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if req.Email == "" || req.Password == "" {
		return fiber.NewError(http.StatusBadRequest, "email and password required")
	}

	result, err := h.auth.LoginAdmin(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(authResponse(result, "Admin login successful"))
}

// Logout handles POST /api/auth/logout.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "authentication required")
	}
	if err := h.auth.Logout(c.UserContext(), principal.Claims); err != nil {
		return err
	}
	return c.JSON(dto.MessageResponse{Success: true, Message: "Logged out"})
}

// Me handles GET /api/auth/me.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "authentication required")
	}
	role := domain.RoleAdmin
	if principal.Account != nil {
		role = principal.Account.Role
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"subject_type": principal.SubjectType,
			"email":        principal.Email,
			"role":         role,
			"user":         dto.NewAccountResponse(principal.Account),
		},
	})
}

func authResponse(result *service.AuthResult, message string) dto.AuthResponse {
	return dto.AuthResponse{
		Success:   true,
		Token:     result.AccessToken,
		ExpiresAt: result.Token.ExpiresAt,
		Role:      result.Token.Role,
		User:      dto.NewAccountResponse(result.Account),
		Message:   message,
	}
}

func roleFromRequest(raw *string) *domain.Role {
	if raw == nil || *raw == "" {
		return nil
	}
	role := domain.Role(*raw)
	return &role
}
