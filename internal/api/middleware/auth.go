package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/xbrch/xbrch-saas-platform/internal/api/response"
	"github.com/xbrch/xbrch-saas-platform/internal/auth"
	"github.com/xbrch/xbrch-saas-platform/internal/store"
	"github.com/xbrch/xbrch-saas-platform/pkg/models"
)

const (
	ScopeBroadcast = "broadcast"
	ScopeAdmin     = "admin"
)

// AuthStore is the subset of store.Store the auth middleware needs.
type AuthStore interface {
	GetTenant(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
	GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error
}

// Auth provides authentication and scope-checking middleware.
type Auth struct {
	store  AuthStore
	tokens *auth.TokenManager
}

// NewAuth creates a new Auth middleware.
func NewAuth(s AuthStore, tokens *auth.TokenManager) *Auth {
	return &Auth{store: s, tokens: tokens}
}

// Authenticate accepts either a session token or an API key as the Bearer
// credential and sets tenant_id, principal and scopes in the request context.
// Inactive tenants are rejected in both cases.
func (a *Auth) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := extractBearerToken(r)
		if raw == "" {
			response.Error(w, http.StatusUnauthorized,
				"INVALID_TOKEN", "Missing or invalid Authorization header", nil)
			return
		}

		var (
			tenantID  uuid.UUID
			principal string
			scopes    []string
			ok        bool
		)
		session := auth.LooksLikeJWT(raw)
		if session {
			tenantID, principal, ok = a.fromToken(w, raw)
		} else {
			tenantID, principal, scopes, ok = a.fromAPIKey(w, r, raw)
		}
		if !ok {
			return
		}

		tenant, err := a.store.GetTenant(r.Context(), tenantID)
		if errors.Is(err, store.ErrNotFound) {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Unknown account", nil)
			return
		}
		if err != nil {
			slog.Error("auth tenant lookup failed", "tenant_id", tenantID, "error", err)
			response.Error(w, http.StatusInternalServerError,
				"INTERNAL_ERROR", "Failed to validate credentials", nil)
			return
		}
		if !tenant.IsActive {
			response.Error(w, http.StatusForbidden, "ACCOUNT_DISABLED", "Account is disabled", nil)
			return
		}
		// Session scopes follow the stored role so a demotion takes effect
		// before the token expires.
		if session {
			scopes = ScopesForRole(tenant.Role)
		}

		ctx := SetTenantID(r.Context(), tenantID)
		ctx = setPrincipal(ctx, principal)
		ctx = SetScopes(ctx, scopes)
		tagRequest(ctx, tenantID, principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *Auth) fromToken(w http.ResponseWriter, raw string) (uuid.UUID, string, bool) {
	claims, err := a.tokens.Verify(raw)
	if err != nil {
		response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Invalid or expired token", nil)
		return uuid.Nil, "", false
	}
	return claims.TenantID, "tenant:" + claims.TenantID.String(), true
}

func (a *Auth) fromAPIKey(w http.ResponseWriter, r *http.Request, raw string) (uuid.UUID, string, []string, bool) {
	if len(raw) < auth.KeyPrefixLen {
		response.Error(w, http.StatusUnauthorized,
			"INVALID_TOKEN", "Invalid API key format", nil)
		return uuid.Nil, "", nil, false
	}
	prefix := raw[:auth.KeyPrefixLen]

	keys, err := a.store.GetAPIKeyByPrefix(r.Context(), prefix)
	if err != nil {
		response.Error(w, http.StatusInternalServerError,
			"INTERNAL_ERROR", "Failed to validate API key", nil)
		return uuid.Nil, "", nil, false
	}

	for _, key := range keys {
		if auth.CheckPassword(key.KeyHash, raw) {
			// Update last_used_at async
			go a.store.UpdateAPIKeyLastUsed(context.Background(), key.ID)
			return key.TenantID, prefix, key.Scopes, true
		}
	}

	response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Invalid API key", nil)
	return uuid.Nil, "", nil, false
}

// ScopesForRole returns the scopes granted to a session token.
func ScopesForRole(role string) []string {
	if role == models.RoleAdmin {
		return []string{ScopeBroadcast, ScopeAdmin}
	}
	return []string{ScopeBroadcast}
}

// RequireScope returns middleware that checks whether the authenticated
// caller has the specified scope.
func (a *Auth) RequireScope(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if HasScope(r, scope) {
				next.ServeHTTP(w, r)
				return
			}
			response.Error(w, http.StatusForbidden,
				"FORBIDDEN", "Insufficient permissions", nil)
		})
	}
}

func extractBearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
