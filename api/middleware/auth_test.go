package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	pkgAuth "github.com/gembotlabs/gembot-backend/pkg/auth"
	"github.com/gembotlabs/gembot-backend/pkg/config"
	"github.com/gembotlabs/gembot-backend/pkg/enums"
)

var jwtTestConfig = config.JWTConfig{
	Secret:            "middleware-test-secret",
	Issuer:            "gembot",
	ExpirationMinutes: 15,
}

func TestAuthSeedsActorContext(t *testing.T) {
	actorID := uuid.New()
	token, err := pkgAuth.MintAccessToken(jwtTestConfig, time.Now(), pkgAuth.AccessTokenPayload{
		ActorID: actorID,
		Role:    enums.ActorRoleMember,
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}

	var gotActor, gotRole string
	handler := Auth(jwtTestConfig, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotActor = ActorIDFromContext(r.Context())
		gotRole = RoleFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if gotActor != actorID.String() {
		t.Fatalf("actor id = %q, want %q", gotActor, actorID)
	}
	if gotRole != string(enums.ActorRoleMember) {
		t.Fatalf("role = %q, want member", gotRole)
	}
}

func TestAuthRejectsMissingAndMalformedTokens(t *testing.T) {
	handler := Auth(jwtTestConfig, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	for _, header := range []string{"", "Bearer", "Bearer  ", "Bearer garbage"} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		if resp.Code != http.StatusUnauthorized {
			t.Fatalf("header %q: expected 401 got %d", header, resp.Code)
		}
	}
}

func TestAuthRejectsExpiredToken(t *testing.T) {
	token, err := pkgAuth.MintAccessToken(jwtTestConfig, time.Now().Add(-2*time.Hour), pkgAuth.AccessTokenPayload{
		ActorID: uuid.New(),
		Role:    enums.ActorRoleAdmin,
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}

	handler := Auth(jwtTestConfig, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestRequireRole(t *testing.T) {
	handler := RequireRole(enums.ActorRoleAdmin, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/admin/v1/members", nil)
	req = req.WithContext(WithActor(req.Context(), uuid.NewString(), string(enums.ActorRoleMember)))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("member hitting admin route: expected 403 got %d", resp.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/admin/v1/members", nil)
	req = req.WithContext(WithActor(req.Context(), uuid.NewString(), string(enums.ActorRoleAdmin)))
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusNoContent {
		t.Fatalf("admin hitting admin route: expected 204 got %d", resp.Code)
	}
}
