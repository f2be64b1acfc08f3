package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/account-service/internal/api/http/handlers"
	"github.com/spec-kit/account-service/internal/auth"
	"github.com/spec-kit/account-service/internal/config"
	"github.com/spec-kit/account-service/internal/observability"
	"github.com/spec-kit/account-service/internal/persistence"
	"github.com/spec-kit/account-service/internal/repository"
	"github.com/spec-kit/account-service/internal/service"
)

type testServer struct {
	app      *fiber.App
	accounts *service.AccountManager
	metrics  *observability.Metrics
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := config.Config{
		App:   config.AppConfig{Name: "account-service", Version: "test"},
		Auth:  config.AuthConfig{JWTSecret: "router-secret", AccessTokenTTLMinutes: 5},
		Admin: config.AdminConfig{Email: "root@example.com", Password: "admin-pass"},
	}
	logger := zap.NewNop()
	denylist := repository.NewTokenDenylist(client)
	accounts := service.NewAccountManager(repository.NewMemoryAccountRepository(), auth.NewBcryptHasher(bcrypt.MinCost))
	authService := service.NewAuthService(cfg, service.AuthDependencies{Accounts: accounts, Denylist: denylist})
	metrics := observability.NewMetrics()

	app := fiber.New()
	RegisterMiddlewares(app, MiddlewareConfig{Logger: logger, Metrics: metrics, AllowedOrigins: []string{"*"}})
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, &persistence.Postgres{}, &persistence.Redis{Client: client}, metrics),
		Auth:           handlers.NewAuthHandler(authService),
		Admin:          handlers.NewAdminHandler(accounts),
		AuthMiddleware: auth.NewAuthMiddleware(authService.TokenManager(), accounts, denylist),
		AdminChecker:   accounts,
	})
	return &testServer{app: app, accounts: accounts, metrics: metrics}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}

	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	payload := map[string]any{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &payload), string(raw))
	}
	return resp.StatusCode, payload
}

func (s *testServer) registerUser(t *testing.T, name, email, password string) (string, int64) {
	t.Helper()
	status, body := s.do(t, fiber.MethodPost, "/api/auth/register", "", map[string]any{
		"name": name, "email": email, "password": password,
	})
	require.Equal(t, fiber.StatusOK, status, body)
	user := body["user"].(map[string]any)
	return body["token"].(string), int64(user["id"].(float64))
}

func (s *testServer) adminToken(t *testing.T) string {
	t.Helper()
	status, body := s.do(t, fiber.MethodPost, "/api/auth/login/admin", "", map[string]any{
		"email": "root@example.com", "password": "admin-pass",
	})
	require.Equal(t, fiber.StatusOK, status, body)
	return body["token"].(string)
}

func errorCode(body map[string]any) string {
	errBody, _ := body["error"].(map[string]any)
	code, _ := errBody["code"].(string)
	return code
}

func TestRegisterEndpoint(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, fiber.MethodPost, "/api/auth/register", "", map[string]any{
		"name": "Ann", "email": " Ann@X.com", "password": "LongEnough1",
	})
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "USER", body["role"])
	user := body["user"].(map[string]any)
	assert.Equal(t, "ann@x.com", user["email"])
	assert.NotContains(t, user, "password_hash")

	status, body = s.do(t, fiber.MethodPost, "/api/auth/register", "", map[string]any{
		"name": "Ann", "email": "ann@x.com", "password": "LongEnough1",
	})
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, "DUPLICATE_RESOURCE", errorCode(body))
	assert.Contains(t, body["message"], "ann@x.com")

	status, body = s.do(t, fiber.MethodPost, "/api/auth/register", "", map[string]any{
		"name": "Bob", "email": "bob@x.com", "password": "short",
	})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "WEAK_CREDENTIAL", errorCode(body))

	status, body = s.do(t, fiber.MethodPost, "/api/auth/register", "", map[string]any{
		"name": "Bob", "email": "bob-at-x", "password": "LongEnough1",
	})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "INVALID_INPUT", errorCode(body))
}

func TestLoginAndSessionEndpoints(t *testing.T) {
	s := newTestServer(t)
	s.registerUser(t, "Ann", "ann@x.com", "LongEnough1")

	status, body := s.do(t, fiber.MethodPost, "/api/auth/login/user", "", map[string]any{
		"email": "ann@x.com", "password": "wrong-password",
	})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "invalid credentials", body["message"])

	status, body = s.do(t, fiber.MethodPost, "/api/auth/login/user", "", map[string]any{
		"email": "nobody@x.com", "password": "LongEnough1",
	})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "user doesn't exist", body["message"])

	status, _ = s.do(t, fiber.MethodPost, "/api/auth/login/user", "", map[string]any{"email": "ann@x.com"})
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, body = s.do(t, fiber.MethodPost, "/api/auth/login/user", "", map[string]any{
		"email": "ann@x.com", "password": "LongEnough1",
	})
	require.Equal(t, fiber.StatusOK, status)
	token := body["token"].(string)

	status, body = s.do(t, fiber.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, fiber.StatusOK, status)
	data := body["data"].(map[string]any)
	assert.Equal(t, "ACCOUNT", data["subject_type"])
	assert.Equal(t, "ann@x.com", data["email"])

	status, _ = s.do(t, fiber.MethodPost, "/api/auth/logout", token, nil)
	require.Equal(t, fiber.StatusOK, status)

	status, body = s.do(t, fiber.MethodGet, "/api/auth/me", token, nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, "token revoked", body["message"])
}

func TestAdminLogin(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, fiber.MethodPost, "/api/auth/login/admin", "", map[string]any{
		"email": "root@example.com", "password": "nope",
	})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "invalid admin credentials", body["message"])

	token := s.adminToken(t)
	status, body = s.do(t, fiber.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, fiber.StatusOK, status)
	data := body["data"].(map[string]any)
	assert.Equal(t, "ADMIN", data["subject_type"])
	assert.Nil(t, data["user"])
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	s := newTestServer(t)
	userToken, userID := s.registerUser(t, "Ann", "ann@x.com", "LongEnough1")

	status, _ := s.do(t, fiber.MethodGet, "/api/admin/users", "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, body := s.do(t, fiber.MethodGet, "/api/admin/users", userToken, nil)
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", errorCode(body))

	adminToken := s.adminToken(t)
	status, _ = s.do(t, fiber.MethodPut, fmt.Sprintf("/api/admin/users/%d/role", userID), adminToken, map[string]any{"role": "ADMIN"})
	require.Equal(t, fiber.StatusOK, status)

	status, _ = s.do(t, fiber.MethodGet, "/api/admin/users", userToken, nil)
	assert.Equal(t, fiber.StatusOK, status, "promoted account passes the admin guard")
}

func TestAdminAccountManagement(t *testing.T) {
	s := newTestServer(t)
	_, annID := s.registerUser(t, "Ann", "ann@x.com", "LongEnough1")
	s.registerUser(t, "Bob", "bob@x.com", "LongEnough1")
	token := s.adminToken(t)

	status, body := s.do(t, fiber.MethodGet, "/api/admin/users", token, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, body["data"], 2)

	status, body = s.do(t, fiber.MethodGet, "/api/admin/users/count", token, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, float64(2), body["data"].(map[string]any)["count"])

	annPath := fmt.Sprintf("/api/admin/users/%d", annID)
	status, body = s.do(t, fiber.MethodPut, annPath, token, map[string]any{"name": "Annie"})
	require.Equal(t, fiber.StatusOK, status)
	data := body["data"].(map[string]any)
	assert.Equal(t, "Annie", data["name"])
	assert.Equal(t, "ann@x.com", data["email"])

	status, body = s.do(t, fiber.MethodPut, annPath, token, map[string]any{"email": "bob@x.com"})
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Contains(t, body["message"], "email already taken")

	status, _ = s.do(t, fiber.MethodPut, annPath+"/role", token, map[string]any{"role": "ROOT"})
	assert.Equal(t, fiber.StatusBadRequest, status)
	status, _ = s.do(t, fiber.MethodPut, annPath+"/role", token, map[string]any{"role": " "})
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _ = s.do(t, fiber.MethodGet, "/api/admin/users/abc", token, nil)
	assert.Equal(t, fiber.StatusNotFound, status)

	status, body = s.do(t, fiber.MethodDelete, annPath, token, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "User deleted successfully", body["message"])

	status, _ = s.do(t, fiber.MethodDelete, annPath, token, nil)
	assert.Equal(t, fiber.StatusNotFound, status)
	status, _ = s.do(t, fiber.MethodGet, annPath, token, nil)
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestDeletedAccountTokenIsRejected(t *testing.T) {
	s := newTestServer(t)
	userToken, userID := s.registerUser(t, "Ann", "ann@x.com", "LongEnough1")

	status, _ := s.do(t, fiber.MethodDelete, fmt.Sprintf("/api/admin/users/%d", userID), s.adminToken(t), nil)
	require.Equal(t, fiber.StatusOK, status)

	status, body := s.do(t, fiber.MethodGet, "/api/auth/me", userToken, nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, "account not found", body["message"])
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, fiber.MethodGet, "/health/live", "", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "alive", body["status"])

	status, body = s.do(t, fiber.MethodGet, "/health/ready", "", nil)
	require.Equal(t, fiber.StatusOK, status)
	deps := body["dependencies"].(map[string]any)
	assert.Equal(t, "disabled", deps["postgres"])
	assert.Equal(t, "ok", deps["redis"])

	status, _ = s.do(t, fiber.MethodGet, "/metrics", "", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.NotEmpty(t, s.metrics.Snapshot().Requests)
}
