package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	mw "github.com/xbrch/xbrch-saas-platform/internal/api/middleware"
	"github.com/xbrch/xbrch-saas-platform/internal/api/response"
	"github.com/xbrch/xbrch-saas-platform/internal/auth"
	"github.com/xbrch/xbrch-saas-platform/internal/config"
	"github.com/xbrch/xbrch-saas-platform/internal/ledger"
	"github.com/xbrch/xbrch-saas-platform/internal/store"
	"github.com/xbrch/xbrch-saas-platform/pkg/models"
)

// TenantAdminStore is the subset of store.Store used by the admin endpoints.
type TenantAdminStore interface {
	CreateTenant(ctx context.Context, t *models.Tenant) error
	ListTenants(ctx context.Context, filter store.TenantFilter) ([]*models.Tenant, int, error)
	CreateAuditEntry(ctx context.Context, e *models.AuditEntry) error
	GetTenant(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
	UpdateTenant(ctx context.Context, p store.TenantPatch, audit *models.AuditEntry) (*models.Tenant, error)
	DeleteTenant(ctx context.Context, id uuid.UUID, audit *models.AuditEntry) error
	TenantStats(ctx context.Context, month string, now time.Time) (*models.TenantStats, error)
}

type createTenantRequest struct {
	Email        string `json:"email" validate:"required,email,max=255"`
	Password     string `json:"password" validate:"required,min=8,max=72"`
	Role         string `json:"role" validate:"omitempty,oneof=admin user"`
	Plan         string `json:"plan" validate:"omitempty,oneof=free pro authority"`
	MonthlyLimit *int   `json:"monthly_limit" validate:"omitempty,min=0"`
}

// NewCreateTenantHandler returns an http.HandlerFunc for POST /api/v1/admin/tenants.
// When monthly_limit is omitted the plan's default limit applies.
func NewCreateTenantHandler(s TenantAdminStore, plans config.PlanLimits) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		adminID, ok := tenantID(w, r)
		if !ok {
			return
		}

		var req createTenantRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.Role == "" {
			req.Role = models.RoleUser
		}
		if req.Plan == "" {
			req.Plan = models.PlanFree
		}
		limit := plans.For(req.Plan)
		if req.MonthlyLimit != nil {
			limit = *req.MonthlyLimit
		}

		hash, err := auth.HashPassword(req.Password)
		if err != nil {
			internalError(w, r, "hash password", err)
			return
		}

		now := time.Now().UTC()
		t := &models.Tenant{
			ID:           uuid.New(),
			Email:        strings.ToLower(strings.TrimSpace(req.Email)),
			PasswordHash: hash,
			Role:         req.Role,
			Plan:         req.Plan,
			MonthlyLimit: limit,
			IsActive:     true,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		err = s.CreateTenant(r.Context(), t)
		if errors.Is(err, store.ErrDuplicateKey) {
			response.Error(w, http.StatusConflict, "DUPLICATE_EMAIL", "An account with this email already exists", nil)
			return
		}
		if err != nil {
			internalError(w, r, "create tenant", err)
			return
		}

		audit := models.NewAuditEntry(adminID, models.AuditCreateUser, "tenant", t.ID.String(),
			map[string]any{"email": t.Email, "role": t.Role, "plan": t.Plan, "monthly_limit": t.MonthlyLimit},
			mw.ClientInfo(r))
		if err := s.CreateAuditEntry(r.Context(), audit); err != nil {
			internalError(w, r, "audit create tenant", err)
			return
		}

		response.Created(w, t)
	}
}

// NewListTenantsHandler returns an http.HandlerFunc for GET /api/v1/admin/tenants.
func NewListTenantsHandler(s TenantAdminStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, limit := pageParams(r)
		tenants, total, err := s.ListTenants(r.Context(), store.TenantFilter{
			Plan:  r.URL.Query().Get("plan"),
			Role:  r.URL.Query().Get("role"),
			Page:  page,
			Limit: limit,
		})
		if err != nil {
			internalError(w, r, "list tenants", err)
			return
		}

		response.Collection(w, tenants, response.NewPaginationMeta(page, limit, total))
	}
}

// NewGetTenantHandler returns an http.HandlerFunc for GET /api/v1/admin/tenants/{tenantID}.
func NewGetTenantHandler(s TenantAdminStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r, "tenantID")
		if !ok {
			return
		}

		t, err := s.GetTenant(r.Context(), id)
		if errors.Is(err, store.ErrNotFound) {
			notFound(w, "Tenant")
			return
		}
		if err != nil {
			internalError(w, r, "get tenant", err)
			return
		}
		response.JSON(w, t)
	}
}

type updateTenantRequest struct {
	Email        *string `json:"email" validate:"omitempty,email,max=255"`
	Role         *string `json:"role" validate:"omitempty,oneof=admin user"`
	Plan         *string `json:"plan" validate:"omitempty,oneof=free pro authority"`
	MonthlyLimit *int    `json:"monthly_limit" validate:"omitempty,min=0"`
	IsActive     *bool   `json:"is_active"`
}

// NewUpdateTenantHandler returns an http.HandlerFunc for PUT /api/v1/admin/tenants/{tenantID}.
// A plan change without monthly_limit resets the limit to the new plan's default.
// Operators cannot deactivate or demote themselves.
func NewUpdateTenantHandler(s TenantAdminStore, plans config.PlanLimits) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		adminID, ok := tenantID(w, r)
		if !ok {
			return
		}
		id, ok := pathUUID(w, r, "tenantID")
		if !ok {
			return
		}
		var req updateTenantRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		if id == adminID {
			if req.IsActive != nil && !*req.IsActive {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Cannot deactivate your own account", nil)
				return
			}
			if req.Role != nil && *req.Role != models.RoleAdmin {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Cannot remove your own admin role", nil)
				return
			}
		}

		patch := store.TenantPatch{
			ID:           id,
			Email:        req.Email,
			Role:         req.Role,
			Plan:         req.Plan,
			MonthlyLimit: req.MonthlyLimit,
			IsActive:     req.IsActive,
			At:           time.Now().UTC(),
		}
		if req.Plan != nil && req.MonthlyLimit == nil {
			limit := plans.For(*req.Plan)
			patch.MonthlyLimit = &limit
		}

		values := map[string]any{}
		if patch.Email != nil {
			values["email"] = strings.ToLower(strings.TrimSpace(*patch.Email))
		}
		if patch.Role != nil {
			values["role"] = *patch.Role
		}
		if patch.Plan != nil {
			values["plan"] = *patch.Plan
		}
		if patch.MonthlyLimit != nil {
			values["monthly_limit"] = *patch.MonthlyLimit
		}
		if patch.IsActive != nil {
			values["is_active"] = *patch.IsActive
		}
		if len(values) == 0 {
			response.Error(w, http.StatusBadRequest, "VALIDATION_FAILED", "Request validation failed",
				map[string]string{"body": "no fields to update"})
			return
		}

		audit := models.NewAuditEntry(adminID, models.AuditUpdateUser, "tenant", id.String(), values, mw.ClientInfo(r)).At(patch.At)
		t, err := s.UpdateTenant(r.Context(), patch, audit)
		switch {
		case errors.Is(err, store.ErrNotFound):
			notFound(w, "Tenant")
		case errors.Is(err, store.ErrDuplicateKey):
			response.Error(w, http.StatusConflict, "DUPLICATE_EMAIL", "An account with this email already exists", nil)
		case err != nil:
			internalError(w, r, "update tenant", err)
		default:
			response.JSON(w, t)
		}
	}
}

// NewDeleteTenantHandler returns an http.HandlerFunc for DELETE /api/v1/admin/tenants/{tenantID}.
// The tenant's data goes with it; the audit entry is recorded against the operator.
func NewDeleteTenantHandler(s TenantAdminStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		adminID, ok := tenantID(w, r)
		if !ok {
			return
		}
		id, ok := pathUUID(w, r, "tenantID")
		if !ok {
			return
		}
		if id == adminID {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Cannot delete your own account", nil)
			return
		}

		audit := models.NewAuditEntry(adminID, models.AuditDeleteUser, "tenant", id.String(), nil, mw.ClientInfo(r))
		err := s.DeleteTenant(r.Context(), id, audit)
		if errors.Is(err, store.ErrNotFound) {
			notFound(w, "Tenant")
			return
		}
		if err != nil {
			internalError(w, r, "delete tenant", err)
			return
		}
		response.NoContent(w)
	}
}

// NewTenantStatsHandler returns an http.HandlerFunc for GET /api/v1/admin/stats.
func NewTenantStatsHandler(s TenantAdminStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := time.Now().UTC()
		stats, err := s.TenantStats(r.Context(), ledger.MonthKey(now), now)
		if err != nil {
			internalError(w, r, "tenant stats", err)
			return
		}
		response.JSON(w, stats)
	}
}
