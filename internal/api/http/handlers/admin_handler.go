package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/account-service/internal/api/dto"
	"github.com/spec-kit/account-service/internal/domain"
	"github.com/spec-kit/account-service/internal/service"
	apperrors "github.com/spec-kit/account-service/pkg/util"
)

// AdminHandler exposes account administration endpoints.
type AdminHandler struct {
	accounts *service.AccountManager
}

// NewAdminHandler constructs handler.
func NewAdminHandler(accounts *service.AccountManager) *AdminHandler {
	return &AdminHandler{accounts: accounts}
}

// List handles GET /api/admin/users.
func (h *AdminHandler) List(c *fiber.Ctx) error {
	accounts, err := h.accounts.List(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": dto.NewAccountResponses(accounts)})
}

// Count handles GET /api/admin/users/count.
func (h *AdminHandler) Count(c *fiber.Ctx) error {
	count, err := h.accounts.Count(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": fiber.Map{"count": count}})
}

// Get handles GET /api/admin/users/:id.
func (h *AdminHandler) Get(c *fiber.Ctx) error {
	account, err := h.accounts.FindByID(c.UserContext(), accountIDParam(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": dto.NewAccountResponse(account)})
}

// Update handles PUT /api/admin/users/:id.
func (h *AdminHandler) Update(c *fiber.Ctx) error {
	var req dto.UpdateAccountRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}

	account, err := h.accounts.Update(c.UserContext(), accountIDParam(c), &service.AccountUpdate{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     roleFromRequest(req.Role),
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": dto.NewAccountResponse(account)})
}

// ChangeRole handles PUT /api/admin/users/:id/role.
func (h *AdminHandler) ChangeRole(c *fiber.Ctx) error {
	var req dto.ChangeRoleRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if strings.TrimSpace(req.Role) == "" {
		return fiber.NewError(http.StatusBadRequest, "role required")
	}

	account, err := h.accounts.ChangeRole(c.UserContext(), accountIDParam(c), domain.Role(req.Role))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": dto.NewAccountResponse(account)})
}

// Delete handles DELETE /api/admin/users/:id.
func (h *AdminHandler) Delete(c *fiber.Ctx) error {
	if !h.accounts.Delete(c.UserContext(), accountIDParam(c)) {
		return apperrors.NewNotFound("account")
	}
	return c.JSON(dto.MessageResponse{Success: true, Message: "User deleted successfully"})
}

// accountIDParam returns 0 for malformed ids, which the account manager treats as not found.
func accountIDParam(c *fiber.Ctx) int64 {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return 0
	}
	return id
}
