package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xbrch/xbrch-saas-platform/internal/api"
	mw "github.com/xbrch/xbrch-saas-platform/internal/api/middleware"
	"github.com/xbrch/xbrch-saas-platform/internal/auth"
	"github.com/xbrch/xbrch-saas-platform/internal/cache"
	"github.com/xbrch/xbrch-saas-platform/internal/store"
	"github.com/xbrch/xbrch-saas-platform/pkg/models"
)

const routerSecret = "router-test-secret-0123456789"

// --- stub store: knows a single set of tenants, no API keys ---

type stubStore struct {
	tenants map[uuid.UUID]*models.Tenant
}

func (s *stubStore) GetTenant(_ context.Context, id uuid.UUID) (*models.Tenant, error) {
	if t, ok := s.tenants[id]; ok {
		return t, nil
	}
	return nil, store.ErrNotFound
}
func (s *stubStore) GetAPIKeyByPrefix(_ context.Context, _ string) ([]*models.APIKey, error) {
	return nil, nil
}
func (s *stubStore) UpdateAPIKeyLastUsed(_ context.Context, _ uuid.UUID) error { return nil }

// --- stub cache ---

type stubCache struct{}

func (c *stubCache) Set(_ context.Context, _ string, _ []byte, _ time.Duration) error { return nil }
func (c *stubCache) Get(_ context.Context, _ string) ([]byte, bool, error)            { return nil, false, nil }
func (c *stubCache) Delete(_ context.Context, _ string) error                         { return nil }
func (c *stubCache) Ping(_ context.Context) error                                     { return nil }
func (c *stubCache) IncrWithExpiry(_ context.Context, _ string, _ time.Duration) (int64, error) {
	return 1, nil
}

var _ cache.Cache = (*stubCache)(nil)
var _ mw.AuthStore = (*stubStore)(nil)

// --- router tests ---

func ok(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"data":{}}`))
}

func newTestRouter(st *stubStore) (http.Handler, *auth.TokenManager) {
	tokens := auth.NewTokenManager(routerSecret, time.Hour)
	if st == nil {
		st = &stubStore{}
	}
	return api.NewRouter(api.Dependencies{
		Auth:      mw.NewAuth(st, tokens),
		RateLimit: mw.NewRateLimit(&stubCache{}, 60),
		HealthHandler: func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		},
		MetricsHandler:         http.HandlerFunc(ok),
		CreateBroadcastHandler: ok,
		ListBroadcastsHandler:  ok,
		CreateTenantHandler:    ok,
	}), tokens
}

func tokenFor(t *testing.T, tokens *auth.TokenManager, tenant *models.Tenant) string {
	t.Helper()
	tok, _, err := tokens.Generate(tenant)
	require.NoError(t, err)
	return tok
}

func TestRouter_HealthEndpoint_Public(t *testing.T) {
	router, _ := newTestRouter(nil)

	req := httptest.NewRequest("GET", "/api/v1/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_MetricsEndpoint_Public(t *testing.T) {
	router, _ := newTestRouter(nil)

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_PublicEndpoints_NoAuth(t *testing.T) {
	router, _ := newTestRouter(nil)

	endpoints := []struct {
		method string
		path   string
	}{
		{"POST", "/api/v1/auth/login"},
		{"GET", "/api/v1/wall/public/corner-bakery-1a2b3c4d"},
	}

	for _, ep := range endpoints {
		t.Run(ep.method+" "+ep.path, func(t *testing.T) {
			req := httptest.NewRequest(ep.method, ep.path, nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			// Unwired handlers answer 501, never 401.
			assert.Equal(t, http.StatusNotImplemented, w.Code)
		})
	}
}

func TestRouter_ProtectedEndpoints_RequireAuth(t *testing.T) {
	router, _ := newTestRouter(nil)

	endpoints := []struct {
		method string
		path   string
	}{
		{"POST", "/api/v1/broadcasts"},
		{"GET", "/api/v1/broadcasts"},
		{"GET", "/api/v1/broadcasts/" + uuid.NewString()},
		{"DELETE", "/api/v1/broadcasts/" + uuid.NewString()},
		{"PATCH", "/api/v1/broadcasts/" + uuid.NewString() + "/status"},
		{"GET", "/api/v1/usage"},
		{"GET", "/api/v1/audit"},
		{"GET", "/api/v1/profile"},
		{"PUT", "/api/v1/profile"},
		{"POST", "/api/v1/wall/updates"},
		{"GET", "/api/v1/wall/updates"},
		{"POST", "/api/v1/keys"},
		{"GET", "/api/v1/keys"},
		{"PUT", "/api/v1/auth/password"},
		{"POST", "/api/v1/admin/tenants"},
		{"GET", "/api/v1/admin/tenants"},
		{"GET", "/api/v1/admin/tenants/" + uuid.NewString()},
		{"PUT", "/api/v1/admin/tenants/" + uuid.NewString()},
		{"DELETE", "/api/v1/admin/tenants/" + uuid.NewString()},
		{"GET", "/api/v1/admin/stats"},
		{"GET", "/api/v1/wall/updates/" + uuid.NewString()},
		{"PUT", "/api/v1/wall/updates/" + uuid.NewString()},
		{"DELETE", "/api/v1/wall/updates/" + uuid.NewString()},
		{"GET", "/api/v1/wall/stats"},
		{"GET", "/api/v1/wall/embed-code"},
		{"POST", "/api/v1/website/announcement"},
		{"POST", "/api/v1/website/blog"},
		{"GET", "/api/v1/website/posts"},
		{"GET", "/api/v1/website/posts/" + uuid.NewString()},
		{"PUT", "/api/v1/website/posts/" + uuid.NewString()},
		{"DELETE", "/api/v1/website/posts/" + uuid.NewString()},
		{"GET", "/api/v1/website/stats"},
		{"GET", "/api/v1/analytics/tokens"},
		{"GET", "/api/v1/analytics/dashboard"},
	}

	for _, ep := range endpoints {
		t.Run(ep.method+" "+ep.path, func(t *testing.T) {
			req := httptest.NewRequest(ep.method, ep.path, nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)

			var body map[string]any
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			errObj := body["error"].(map[string]any)
			assert.Equal(t, "INVALID_TOKEN", errObj["code"])
		})
	}
}

func TestRouter_UserToken_ReachesBroadcasts(t *testing.T) {
	user := &models.Tenant{ID: uuid.New(), Email: "u@example.com", Role: models.RoleUser, Plan: models.PlanFree, IsActive: true}
	router, tokens := newTestRouter(&stubStore{tenants: map[uuid.UUID]*models.Tenant{user.ID: user}})

	req := httptest.NewRequest("POST", "/api/v1/broadcasts", nil)
	req.Header.Set("Authorization", "Bearer "+tokenFor(t, tokens, user))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_AdminRoutes_RequireAdminScope(t *testing.T) {
	user := &models.Tenant{ID: uuid.New(), Email: "u@example.com", Role: models.RoleUser, Plan: models.PlanFree, IsActive: true}
	admin := &models.Tenant{ID: uuid.New(), Email: "a@example.com", Role: models.RoleAdmin, Plan: models.PlanAuthority, IsActive: true}
	router, tokens := newTestRouter(&stubStore{tenants: map[uuid.UUID]*models.Tenant{user.ID: user, admin.ID: admin}})

	req := httptest.NewRequest("POST", "/api/v1/admin/tenants", nil)
	req.Header.Set("Authorization", "Bearer "+tokenFor(t, tokens, user))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	req = httptest.NewRequest("POST", "/api/v1/admin/tenants", nil)
	req.Header.Set("Authorization", "Bearer "+tokenFor(t, tokens, admin))
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_AdminStats_RequiresAdminScope(t *testing.T) {
	user := &models.Tenant{ID: uuid.New(), Email: "u@example.com", Role: models.RoleUser, Plan: models.PlanFree, IsActive: true}
	router, tokens := newTestRouter(&stubStore{tenants: map[uuid.UUID]*models.Tenant{user.ID: user}})

	for _, path := range []string{"/api/v1/admin/stats", "/api/v1/admin/tenants/" + uuid.NewString()} {
		req := httptest.NewRequest("GET", path, nil)
		req.Header.Set("Authorization", "Bearer "+tokenFor(t, tokens, user))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusForbidden, w.Code, path)
	}
}

func TestRouter_UnwiredHandler_NotImplemented(t *testing.T) {
	user := &models.Tenant{ID: uuid.New(), Email: "u@example.com", Role: models.RoleUser, Plan: models.PlanFree, IsActive: true}
	router, tokens := newTestRouter(&stubStore{tenants: map[uuid.UUID]*models.Tenant{user.ID: user}})

	req := httptest.NewRequest("GET", "/api/v1/usage", nil)
	req.Header.Set("Authorization", "Bearer "+tokenFor(t, tokens, user))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotImplemented, w.Code)
}

func TestRouter_NotFound(t *testing.T) {
	router, _ := newTestRouter(nil)

	req := httptest.NewRequest("GET", "/api/v1/nonexistent", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
