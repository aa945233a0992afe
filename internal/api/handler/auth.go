package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	mw "github.com/xbrch/xbrch-saas-platform/internal/api/middleware"
	"github.com/xbrch/xbrch-saas-platform/internal/api/response"
	"github.com/xbrch/xbrch-saas-platform/internal/auth"
	"github.com/xbrch/xbrch-saas-platform/internal/cache"
	"github.com/xbrch/xbrch-saas-platform/internal/store"
	"github.com/xbrch/xbrch-saas-platform/pkg/models"
)

const (
	maxLoginAttempts   = 10
	loginAttemptWindow = 15 * time.Minute
)

// AccountStore is the subset of store.Store the account endpoints need.
type AccountStore interface {
	GetTenant(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
	GetTenantByEmail(ctx context.Context, email string) (*models.Tenant, error)
	UpdateTenantLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
	UpdateTenantPassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	CreateAuditEntry(ctx context.Context, e *models.AuditEntry) error
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Token     string         `json:"token"`
	ExpiresAt time.Time      `json:"expires_at"`
	Tenant    *models.Tenant `json:"tenant"`
}

// NewLoginHandler returns an http.HandlerFunc for POST /api/v1/auth/login.
// Failed attempts per email are counted in the cache; ca may be nil.
func NewLoginHandler(s AccountStore, tokens *auth.TokenManager, ca cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		email := strings.ToLower(strings.TrimSpace(req.Email))

		if ca != nil {
			raw, found, err := ca.Get(r.Context(), cache.LoginAttemptsKey(email))
			if n, _ := strconv.Atoi(string(raw)); err == nil && found && n >= maxLoginAttempts {
				response.TooManyRequests(w, "TOO_MANY_ATTEMPTS",
					"Too many failed login attempts. Try again later.", loginAttemptWindow)
				return
			}
		}

		t, err := s.GetTenantByEmail(r.Context(), email)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			internalError(w, r, "login lookup", err)
			return
		}
		if t == nil || !auth.CheckPassword(t.PasswordHash, req.Password) {
			if ca != nil {
				if _, err := ca.IncrWithExpiry(r.Context(), cache.LoginAttemptsKey(email), loginAttemptWindow); err != nil {
					slog.Warn("login attempt counter failed", "error", err)
				}
			}
			response.Error(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password", nil)
			return
		}
		if !t.IsActive {
			response.Error(w, http.StatusForbidden, "ACCOUNT_DISABLED", "Account is disabled", nil)
			return
		}

		token, expiresAt, err := tokens.Generate(t)
		if err != nil {
			internalError(w, r, "issue token", err)
			return
		}

		now := time.Now().UTC()
		if err := s.UpdateTenantLastLogin(r.Context(), t.ID, now); err != nil {
			slog.Warn("update last login failed", "tenant_id", t.ID, "error", err)
		}
		t.LastLoginAt = &now
		if err := s.CreateAuditEntry(r.Context(),
			models.NewAuditEntry(t.ID, models.AuditLogin, "tenant", t.ID.String(), nil, mw.ClientInfo(r))); err != nil {
			slog.Warn("login audit failed", "tenant_id", t.ID, "error", err)
		}
		if ca != nil {
			_ = ca.Delete(r.Context(), cache.LoginAttemptsKey(email))
		}

		response.JSON(w, loginResponse{Token: token, ExpiresAt: expiresAt, Tenant: t})
	}
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=72"`
}

// NewChangePasswordHandler returns an http.HandlerFunc for PUT /api/v1/auth/password.
func NewChangePasswordHandler(s AccountStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tid, ok := tenantID(w, r)
		if !ok {
			return
		}

		var req changePasswordRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		t, err := s.GetTenant(r.Context(), tid)
		if err != nil {
			internalError(w, r, "load tenant", err)
			return
		}
		if !auth.CheckPassword(t.PasswordHash, req.CurrentPassword) {
			response.Error(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Current password is incorrect", nil)
			return
		}

		hash, err := auth.HashPassword(req.NewPassword)
		if err != nil {
			internalError(w, r, "hash password", err)
			return
		}
		if err := s.UpdateTenantPassword(r.Context(), tid, hash); err != nil {
			internalError(w, r, "update password", err)
			return
		}

		response.NoContent(w)
	}
}
