package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"boltz-license-backend/database"
	"boltz-license-backend/metrics"
	"boltz-license-backend/middlewares"
	"boltz-license-backend/models"
	"boltz-license-backend/services"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testSecret = []byte("routes-test-secret")

type testServer struct {
	app   *fiber.App
	store *database.MemoryStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	log := zap.NewNop()
	store := database.NewMemoryStore()
	app := fiber.New(fiber.Config{ErrorHandler: middlewares.ErrorHandler(log)})
	Register(app, Dependencies{
		Store:          store,
		Verifier:       services.NewVerifier(store, log),
		Licenses:       services.NewLicenseService(store, services.NewRandomKeyGenerator(), log),
		Auth:           services.NewAuthService(store, log),
		Metrics:        metrics.New(),
		Secret:         testSecret,
		AllowedOrigins: "https://dashboard.example.com",
		Log:            log,
	})
	return &testServer{app: app, store: store}
}

// profile stores a profile with the given role and returns a bearer token for it.
func (s *testServer) profile(t *testing.T, email string, role models.Role) (string, string) {
	t.Helper()
	p := &models.Profile{Email: email, Role: role, FirstName: "Test", LastName: string(role)}
	require.NoError(t, p.SetPassword("correct-horse"))
	require.NoError(t, s.store.CreateProfile(context.Background(), p))
	token, err := middlewares.GenerateJWT(testSecret, p.ID, role)
	require.NoError(t, err)
	return p.ID, token
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

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON) {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func TestLicenseLifecycle(t *testing.T) {
	s := newTestServer(t)
	_, adminToken := s.profile(t, "admin@example.com", models.RoleAdmin)
	ownerID, ownerToken := s.profile(t, "owner@example.com", models.RoleUser)

	status, created := s.do(t, http.MethodPost, "/api/licenses", adminToken, map[string]any{
		"application": "  Boltz  ",
		"userEmail":   "owner@example.com",
	})
	require.Equal(t, fiber.StatusCreated, status, created)
	id := created["id"].(string)
	key := created["key"].(string)
	assert.Regexp(t, `^BOLTZ-[A-Z0-9]{6}-[A-Z0-9]{6}-[A-Z0-9]{6}$`, key)
	assert.Equal(t, "Boltz", created["application"])
	assert.Equal(t, "Active", created["status"])
	assert.Equal(t, ownerID, created["user_id"])
	assert.Equal(t, "owner@example.com", created["user_email"])

	status, out := s.do(t, http.MethodPost, "/functions/v1/verify-license", "", map[string]any{
		"licenseKey":      key,
		"applicationName": "Boltz",
		"hwid":            "HW-1",
	})
	require.Equal(t, fiber.StatusOK, status, out)
	assert.Equal(t, true, out["success"])

	status, out = s.do(t, http.MethodGet, "/api/licenses", ownerToken, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, out["licenses"], 1)
	assert.NotEmpty(t, out["refreshed_at"])

	status, out = s.do(t, http.MethodGet, "/api/licenses/"+id+"/logs", ownerToken, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, out["logs"], 1)

	// owners can read but not manage
	status, _ = s.do(t, http.MethodPatch, "/api/licenses/"+id, ownerToken, map[string]any{"status": "Suspended"})
	assert.Equal(t, fiber.StatusForbidden, status)

	status, out = s.do(t, http.MethodPatch, "/api/licenses/"+id, adminToken, map[string]any{"status": "suspended", "clearHwid": true})
	require.Equal(t, fiber.StatusOK, status, out)
	assert.Equal(t, "Suspended", out["status"])

	status, out = s.do(t, http.MethodPost, "/api/verify", "", map[string]any{"licenseKey": key})
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Equal(t, "License is suspended", out["message"])

	status, out = s.do(t, http.MethodGet, "/api/licenses/stats", adminToken, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.EqualValues(t, 1, out["total"])
	assert.EqualValues(t, 1, out["suspended"])
	assert.EqualValues(t, 1, out["applications"])

	status, _ = s.do(t, http.MethodDelete, "/api/licenses/"+id, adminToken, nil)
	assert.Equal(t, fiber.StatusOK, status)
	status, _ = s.do(t, http.MethodGet, "/api/licenses/"+id, adminToken, nil)
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestLicenseScoping(t *testing.T) {
	s := newTestServer(t)
	_, resellerA := s.profile(t, "a@example.com", models.RoleReseller)
	_, resellerB := s.profile(t, "b@example.com", models.RoleReseller)
	_, userToken := s.profile(t, "u@example.com", models.RoleUser)

	status, created := s.do(t, http.MethodPost, "/api/licenses", resellerA, map[string]any{"application": "Boltz"})
	require.Equal(t, fiber.StatusCreated, status)
	id := created["id"].(string)
	assert.Equal(t, "No user assigned", created["user_email"])

	status, out := s.do(t, http.MethodGet, "/api/licenses", resellerB, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Empty(t, out["licenses"])

	status, _ = s.do(t, http.MethodGet, "/api/licenses/"+id, resellerB, nil)
	assert.Equal(t, fiber.StatusNotFound, status)

	status, _ = s.do(t, http.MethodPost, "/api/licenses", userToken, map[string]any{"application": "Boltz"})
	assert.Equal(t, fiber.StatusForbidden, status)

	status, _ = s.do(t, http.MethodGet, "/api/licenses", "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
}

func TestLicenseInputValidation(t *testing.T) {
	s := newTestServer(t)
	_, adminToken := s.profile(t, "admin@example.com", models.RoleAdmin)

	status, out := s.do(t, http.MethodPost, "/api/licenses", adminToken, map[string]any{"userEmail": "not-an-email"})
	assert.Equal(t, fiber.StatusUnprocessableEntity, status)
	assert.Contains(t, out["errors"], "application")
	assert.Contains(t, out["errors"], "userEmail")

	status, _ = s.do(t, http.MethodPost, "/api/licenses", adminToken, map[string]any{"application": "Boltz", "status": "Frozen"})
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, out = s.do(t, http.MethodPost, "/api/licenses", adminToken, map[string]any{"application": "Boltz", "userEmail": "ghost@example.com"})
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "user not found", out["message"])

	status, _ = s.do(t, http.MethodGet, "/api/licenses?since=yesterday", adminToken, nil)
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestAuthFlow(t *testing.T) {
	s := newTestServer(t)

	status, out := s.do(t, http.MethodPost, "/api/registration", "", map[string]any{
		"email":            "New@Example.com",
		"password":         "long-enough",
		"password_confirm": "long-enough",
		"first_name":       "Ada",
		"last_name":        "Lovelace",
	})
	require.Equal(t, fiber.StatusCreated, status, out)
	assert.Equal(t, "new@example.com", out["email"])
	assert.Equal(t, "user", out["role"])
	assert.NotContains(t, out, "password")

	status, _ = s.do(t, http.MethodPost, "/api/registration", "", map[string]any{
		"email": "new@example.com", "password": "long-enough", "password_confirm": "long-enough",
	})
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _ = s.do(t, http.MethodPost, "/api/registration", "", map[string]any{
		"email": "other@example.com", "password": "long-enough", "password_confirm": "different",
	})
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _ = s.do(t, http.MethodPost, "/api/login", "", map[string]any{"email": "new@example.com", "password": "wrong"})
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, out = s.do(t, http.MethodPost, "/api/login", "", map[string]any{"email": "new@example.com", "password": "long-enough"})
	require.Equal(t, fiber.StatusOK, status, out)
	token := out["token"].(string)
	user := out["user"].(map[string]any)
	assert.Equal(t, "Ada Lovelace", user["name"])

	status, out = s.do(t, http.MethodGet, "/api/me", token, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "new@example.com", out["email"])

	status, out = s.do(t, http.MethodPost, "/api/logout", "", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "success", out["message"])
}

func TestVerifyPreflightAllowsAnyOrigin(t *testing.T) {
	s := newTestServer(t)
	for _, path := range []string{"/functions/v1/verify-license", "/api/verify"} {
		req := httptest.NewRequest(http.MethodOptions, path, nil)
		req.Header.Set(fiber.HeaderOrigin, "https://client.example.org")
		req.Header.Set(fiber.HeaderAccessControlRequestMethod, http.MethodPost)
		resp, err := s.app.Test(req, -1)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusNoContent, resp.StatusCode, path)
		assert.Equal(t, "*", resp.Header.Get(fiber.HeaderAccessControlAllowOrigin), path)
		assert.Contains(t, resp.Header.Get(fiber.HeaderAccessControlAllowHeaders), "x-client-info", path)
	}
}

func TestVerifyBareOptionsAnsweredWithoutBody(t *testing.T) {
	s := newTestServer(t)
	for _, path := range []string{"/functions/v1/verify-license", "/api/verify"} {
		req := httptest.NewRequest(http.MethodOptions, path, nil)
		req.Header.Set(fiber.HeaderOrigin, "https://client.example.org")
		resp, err := s.app.Test(req, -1)
		require.NoError(t, err)
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)

		assert.Equal(t, fiber.StatusNoContent, resp.StatusCode, path)
		assert.Empty(t, body, path)
		assert.Equal(t, "*", resp.Header.Get(fiber.HeaderAccessControlAllowOrigin), path)
		assert.Equal(t, verifyHeaders, resp.Header.Get(fiber.HeaderAccessControlAllowHeaders), path)
	}
}

func TestUnknownAPIPathIsNotFound(t *testing.T) {
	s := newTestServer(t)
	status, _ := s.do(t, http.MethodGet, "/api/nonexistent", "", nil)
	assert.Equal(t, fiber.StatusNotFound, status)

	status, _ = s.do(t, http.MethodGet, "/api/me", "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
}

func TestVerifyResponseCarriesCORSHeader(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/functions/v1/verify-license", strings.NewReader(`{}`))
	req.Header.Set(fiber.HeaderOrigin, "https://client.example.org")
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get(fiber.HeaderAccessControlAllowOrigin))
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	status, out := s.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "ok", out["status"])

	s.do(t, http.MethodPost, "/api/verify", "", map[string]any{"licenseKey": "missing"})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `boltz_license_verifications_total{outcome="not_found"} 1`)
}
