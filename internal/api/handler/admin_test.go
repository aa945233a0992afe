package handler_test

import (
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xbrch/xbrch-saas-platform/internal/api/handler"
	mw "github.com/xbrch/xbrch-saas-platform/internal/api/middleware"
	"github.com/xbrch/xbrch-saas-platform/internal/auth"
	"github.com/xbrch/xbrch-saas-platform/internal/config"
	"github.com/xbrch/xbrch-saas-platform/pkg/models"
)

var testPlans = config.PlanLimits{Free: 10, Pro: 100, Authority: 1000}

func TestCreateTenant_PlanDefaultLimit(t *testing.T) {
	s := newMemStore()
	adminID := uuid.New()
	h := handler.NewCreateTenantHandler(s, testPlans)

	w := serve(h, asTenant(newRequest(t, "POST", "/api/v1/admin/tenants", map[string]any{
		"email":    "Baker@Example.com",
		"password": "s3cret-pass",
		"plan":     "pro",
	}), adminID, mw.ScopeBroadcast, mw.ScopeAdmin))
	require.Equal(t, http.StatusCreated, w.Code)

	var got models.Tenant
	decodeData(t, w, &got)
	assert.Equal(t, "baker@example.com", got.Email)
	assert.Equal(t, models.RoleUser, got.Role)
	assert.Equal(t, 100, got.MonthlyLimit)
	assert.True(t, got.IsActive)

	stored := s.tenants[got.ID]
	require.NotNil(t, stored)
	assert.True(t, auth.CheckPassword(stored.PasswordHash, "s3cret-pass"))
	assert.Equal(t, []string{models.AuditCreateUser}, s.auditActions())
	assert.Equal(t, adminID, *s.audit[0].TenantID)
}

func TestCreateTenant_ExplicitLimit(t *testing.T) {
	s := newMemStore()
	h := handler.NewCreateTenantHandler(s, testPlans)

	w := serve(h, asTenant(newRequest(t, "POST", "/api/v1/admin/tenants", map[string]any{
		"email":         "zero@example.com",
		"password":      "s3cret-pass",
		"monthly_limit": 0,
	}), uuid.New(), mw.ScopeAdmin))
	require.Equal(t, http.StatusCreated, w.Code)

	var got models.Tenant
	decodeData(t, w, &got)
	assert.Equal(t, models.PlanFree, got.Plan)
	assert.Equal(t, 0, got.MonthlyLimit)
}

func TestCreateTenant_Duplicate(t *testing.T) {
	s := newMemStore()
	seedTenant(t, s, "taken@example.com", "whatever-1", true)
	h := handler.NewCreateTenantHandler(s, testPlans)

	w := serve(h, asTenant(newRequest(t, "POST", "/api/v1/admin/tenants", map[string]any{
		"email":    "taken@example.com",
		"password": "s3cret-pass",
	}), uuid.New(), mw.ScopeAdmin))
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "DUPLICATE_EMAIL", errorCode(t, w))
}

func TestCreateTenant_Validation(t *testing.T) {
	h := handler.NewCreateTenantHandler(newMemStore(), testPlans)

	tests := []struct {
		name string
		body map[string]any
	}{
		{"bad email", map[string]any{"email": "nope", "password": "s3cret-pass"}},
		{"short password", map[string]any{"email": "a@example.com", "password": "short"}},
		{"unknown plan", map[string]any{"email": "a@example.com", "password": "s3cret-pass", "plan": "gold"}},
		{"unknown role", map[string]any{"email": "a@example.com", "password": "s3cret-pass", "role": "owner"}},
		{"negative limit", map[string]any{"email": "a@example.com", "password": "s3cret-pass", "monthly_limit": -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(h, asTenant(newRequest(t, "POST", "/api/v1/admin/tenants", tt.body), uuid.New(), mw.ScopeAdmin))
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "VALIDATION_FAILED", errorCode(t, w))
		})
	}
}

func TestListTenants_Filters(t *testing.T) {
	s := newMemStore()
	seedTenant(t, s, "a@example.com", "password-a", true)
	free := seedTenant(t, s, "b@example.com", "password-b", true)
	free.Plan = models.PlanFree
	h := handler.NewListTenantsHandler(s)

	w := serve(h, asTenant(newRequest(t, "GET", "/api/v1/admin/tenants?plan=free", nil), uuid.New(), mw.ScopeAdmin))
	require.Equal(t, http.StatusOK, w.Code)

	var got []models.Tenant
	decodeData(t, w, &got)
	require.Len(t, got, 1)
	assert.Equal(t, "b@example.com", got[0].Email)
}

func seedTenantWithRole(s *memStore, email, role, plan string) *models.Tenant {
	t := &models.Tenant{ID: uuid.New(), Email: email, Role: role, Plan: plan, MonthlyLimit: testPlans.For(plan), IsActive: true}
	s.tenants[t.ID] = t
	return t
}

func TestGetTenant(t *testing.T) {
	s := newMemStore()
	tenant := seedTenantWithRole(s, "baker@example.com", models.RoleUser, models.PlanFree)
	h := handler.NewGetTenantHandler(s)

	w := serve(h, withParams(asTenant(newRequest(t, "GET", "/", nil), uuid.New(), mw.ScopeAdmin),
		"tenantID", tenant.ID.String()))
	require.Equal(t, http.StatusOK, w.Code)

	var got models.Tenant
	decodeData(t, w, &got)
	assert.Equal(t, "baker@example.com", got.Email)

	w = serve(h, withParams(asTenant(newRequest(t, "GET", "/", nil), uuid.New(), mw.ScopeAdmin),
		"tenantID", uuid.NewString()))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateTenant_PlanChangeResetsLimit(t *testing.T) {
	s := newMemStore()
	adminID := uuid.New()
	tenant := seedTenantWithRole(s, "baker@example.com", models.RoleUser, models.PlanFree)
	h := handler.NewUpdateTenantHandler(s, testPlans)

	w := serve(h, withParams(asTenant(newRequest(t, "PUT", "/", map[string]any{"plan": "pro"}), adminID, mw.ScopeAdmin),
		"tenantID", tenant.ID.String()))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.PlanPro, tenant.Plan)
	assert.Equal(t, 100, tenant.MonthlyLimit)

	w = serve(h, withParams(asTenant(newRequest(t, "PUT", "/", map[string]any{"plan": "authority", "monthly_limit": 5}),
		adminID, mw.ScopeAdmin), "tenantID", tenant.ID.String()))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 5, tenant.MonthlyLimit, "explicit limit wins over the plan default")

	assert.Equal(t, []string{models.AuditUpdateUser, models.AuditUpdateUser}, s.auditActions())
	assert.Equal(t, adminID, *s.audit[0].TenantID)
	assert.Equal(t, tenant.ID.String(), *s.audit[0].ResourceID)
}

func TestUpdateTenant_Deactivate(t *testing.T) {
	s := newMemStore()
	tenant := seedTenantWithRole(s, "baker@example.com", models.RoleUser, models.PlanFree)
	h := handler.NewUpdateTenantHandler(s, testPlans)

	w := serve(h, withParams(asTenant(newRequest(t, "PUT", "/", map[string]any{"is_active": false}), uuid.New(), mw.ScopeAdmin),
		"tenantID", tenant.ID.String()))
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, tenant.IsActive)
}

func TestUpdateTenant_Rejects(t *testing.T) {
	s := newMemStore()
	admin := seedTenantWithRole(s, "ops@example.com", models.RoleAdmin, models.PlanAuthority)
	other := seedTenantWithRole(s, "baker@example.com", models.RoleUser, models.PlanFree)
	h := handler.NewUpdateTenantHandler(s, testPlans)

	tests := []struct {
		name     string
		target   uuid.UUID
		body     map[string]any
		wantCode int
		wantErr  string
	}{
		{"self deactivation", admin.ID, map[string]any{"is_active": false}, http.StatusBadRequest, "INVALID_REQUEST"},
		{"self demotion", admin.ID, map[string]any{"role": "user"}, http.StatusBadRequest, "INVALID_REQUEST"},
		{"duplicate email", other.ID, map[string]any{"email": "OPS@example.com"}, http.StatusConflict, "DUPLICATE_EMAIL"},
		{"unknown plan", other.ID, map[string]any{"plan": "gold"}, http.StatusBadRequest, "VALIDATION_FAILED"},
		{"empty body", other.ID, map[string]any{}, http.StatusBadRequest, "VALIDATION_FAILED"},
		{"missing tenant", uuid.New(), map[string]any{"role": "user"}, http.StatusNotFound, "NOT_FOUND"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(h, withParams(asTenant(newRequest(t, "PUT", "/", tt.body), admin.ID, mw.ScopeAdmin),
				"tenantID", tt.target.String()))
			assert.Equal(t, tt.wantCode, w.Code)
			assert.Equal(t, tt.wantErr, errorCode(t, w))
		})
	}
	assert.True(t, admin.IsActive)
	assert.Equal(t, models.RoleAdmin, admin.Role)
	assert.Equal(t, "baker@example.com", other.Email)
}

func TestDeleteTenant(t *testing.T) {
	s := newMemStore()
	adminID := uuid.New()
	tenant := seedTenantWithRole(s, "baker@example.com", models.RoleUser, models.PlanFree)
	h := handler.NewDeleteTenantHandler(s)

	w := serve(h, withParams(asTenant(newRequest(t, "DELETE", "/", nil), adminID, mw.ScopeAdmin),
		"tenantID", tenant.ID.String()))
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.NotContains(t, s.tenants, tenant.ID)
	assert.Equal(t, []string{models.AuditDeleteUser}, s.auditActions())
	assert.Equal(t, adminID, *s.audit[0].TenantID)

	w = serve(h, withParams(asTenant(newRequest(t, "DELETE", "/", nil), adminID, mw.ScopeAdmin),
		"tenantID", tenant.ID.String()))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteTenant_RefusesSelf(t *testing.T) {
	s := newMemStore()
	admin := seedTenantWithRole(s, "ops@example.com", models.RoleAdmin, models.PlanAuthority)
	h := handler.NewDeleteTenantHandler(s)

	w := serve(h, withParams(asTenant(newRequest(t, "DELETE", "/", nil), admin.ID, mw.ScopeAdmin),
		"tenantID", admin.ID.String()))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, s.tenants, admin.ID)
	assert.Empty(t, s.audit)
}

func TestTenantStats(t *testing.T) {
	s := newMemStore()
	seedTenantWithRole(s, "ops@example.com", models.RoleAdmin, models.PlanAuthority)
	seedTenantWithRole(s, "baker@example.com", models.RoleUser, models.PlanFree)
	h := handler.NewTenantStatsHandler(s)

	w := serve(h, asTenant(newRequest(t, "GET", "/api/v1/admin/stats", nil), uuid.New(), mw.ScopeAdmin))
	require.Equal(t, http.StatusOK, w.Code)

	var got models.TenantStats
	decodeData(t, w, &got)
	assert.Equal(t, 2, got.Total)
	assert.Equal(t, 1, got.ByRole[models.RoleAdmin])
	assert.Equal(t, 1, got.ByPlan[models.PlanFree])
}
