package routes

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	pkgAuth "github.com/gembotlabs/gembot-backend/pkg/auth"
	"github.com/gembotlabs/gembot-backend/pkg/config"
	"github.com/gembotlabs/gembot-backend/pkg/enums"
	"github.com/gembotlabs/gembot-backend/pkg/logger"
)

func testConfig(env string) *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: env},
		JWT: config.JWTConfig{
			Secret:            "router-test-secret",
			Issuer:            "gembot",
			ExpirationMinutes: 30,
		},
	}
}

func newTestRouter(t *testing.T, env string) http.Handler {
	t.Helper()
	return NewRouter(RouterParams{
		Config: testConfig(env),
		Logger: logger.New(logger.Options{ServiceName: "router-test"}),
	})
}

func mintToken(t *testing.T, cfg *config.Config, role enums.ActorRole) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(cfg.JWT, time.Now(), pkgAuth.AccessTokenPayload{
		ActorID: uuid.New(),
		Role:    role,
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func TestHealthLiveIsPublic(t *testing.T) {
	router := newTestRouter(t, "test")

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestMemberRoutesRequireToken(t *testing.T) {
	router := newTestRouter(t, "test")

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/v1/me"},
		{http.MethodGet, "/api/v1/team"},
		{http.MethodGet, "/api/v1/wallet/"},
		{http.MethodPost, "/api/v1/subscription/check"},
		{http.MethodGet, "/api/v1/transactions"},
		{http.MethodPost, "/api/v1/auth/complete-profile"},
	}
	for _, tt := range paths {
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, httptest.NewRequest(tt.method, tt.path, nil))
		if resp.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s: expected 401 got %d", tt.method, tt.path, resp.Code)
		}
	}
}

func TestAdminRoutesRejectMemberTokens(t *testing.T) {
	cfg := testConfig("test")
	router := NewRouter(RouterParams{
		Config: cfg,
		Logger: logger.New(logger.Options{ServiceName: "router-test"}),
	})
	token := mintToken(t, cfg, enums.ActorRoleMember)

	paths := []string{
		"/api/admin/v1/members/",
		"/api/admin/v1/transactions",
		"/api/admin/v1/settings/levels",
	}
	for _, path := range paths {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		if resp.Code != http.StatusForbidden {
			t.Fatalf("%s: expected 403 got %d", path, resp.Code)
		}
	}
}

func TestMemberRoutesRejectAdminTokens(t *testing.T) {
	cfg := testConfig("test")
	router := NewRouter(RouterParams{
		Config: cfg,
		Logger: logger.New(logger.Options{ServiceName: "router-test"}),
	})
	token := mintToken(t, cfg, enums.ActorRoleAdmin)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/team", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", resp.Code)
	}
}

func TestGarbageTokenIsRejected(t *testing.T) {
	router := newTestRouter(t, "test")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAdminRegisterHiddenInProduction(t *testing.T) {
	prod := newTestRouter(t, config.AppEnvProd)
	resp := httptest.NewRecorder()
	prod.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/admin/v1/auth/register", nil))
	if resp.Code == http.StatusBadRequest {
		t.Fatal("register must not be routed in production")
	}
	if resp.Code != http.StatusNotFound && resp.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 404/405 in production, got %d", resp.Code)
	}
}
