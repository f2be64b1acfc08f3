package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/account-service/internal/api/http/handlers"
	"github.com/spec-kit/account-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Admin          *handlers.AdminHandler
	AuthMiddleware *auth.AuthMiddleware
	AdminChecker   auth.AdminChecker
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	if cfg.Health != nil {
		app.Get("/health/live", cfg.Health.Live)
		app.Get("/health/ready", cfg.Health.Ready)
		app.Get("/metrics", cfg.Health.Metrics)
	}

	authGroup := app.Group("/api/auth")
	authGroup.Post("/register", cfg.Auth.Register)
	authGroup.Post("/login/user", cfg.Auth.LoginUser)
	authGroup.Post("/login/admin", cfg.Auth.LoginAdmin)

	authGroup.Post("/logout", cfg.AuthMiddleware.Handle, auth.RequireAnyRole(), cfg.Auth.Logout)
	authGroup.Get("/me", cfg.AuthMiddleware.Handle, auth.RequireAnyRole(), cfg.Auth.Me)

	admin := app.Group("/api/admin", cfg.AuthMiddleware.Handle, auth.RequireAdmin(cfg.AdminChecker))
	admin.Get("/users", cfg.Admin.List)
	admin.Get("/users/count", cfg.Admin.Count)
	admin.Get("/users/:id", cfg.Admin.Get)
	admin.Put("/users/:id", cfg.Admin.Update)
	admin.Put("/users/:id/role", cfg.Admin.ChangeRole)
	admin.Delete("/users/:id", cfg.Admin.Delete)
}
