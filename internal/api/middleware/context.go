package middleware

import (
	"context"
	"net"
	"net/http"

	"github.com/google/uuid"
	"github.com/xbrch/xbrch-saas-platform/pkg/models"
)

type contextKey string

const (
	tenantIDKey  contextKey = "tenant_id"
	principalKey contextKey = "principal"
	scopesKey    contextKey = "scopes"
	logTagsKey   contextKey = "log_tags"
)

// logTags is shared by pointer so Authenticate, running inside Logger,
// can report who the caller was back to the request line.
type logTags struct {
	tenantID  uuid.UUID
	principal string
}

func tagRequest(ctx context.Context, tenantID uuid.UUID, principal string) {
	if t, ok := ctx.Value(logTagsKey).(*logTags); ok {
		t.tenantID = tenantID
		t.principal = principal
	}
}

func SetTenantID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, tenantIDKey, id)
}

func GetTenantID(r *http.Request) (uuid.UUID, bool) {
	id, ok := r.Context().Value(tenantIDKey).(uuid.UUID)
	return id, ok
}

// principal identifies the caller for rate limiting: the API key prefix,
// or "tenant:<id>" for session tokens.
func setPrincipal(ctx context.Context, principal string) context.Context {
	return context.WithValue(ctx, principalKey, principal)
}

func getPrincipal(r *http.Request) (string, bool) {
	p, ok := r.Context().Value(principalKey).(string)
	return p, ok
}

func SetScopes(ctx context.Context, scopes []string) context.Context {
	return context.WithValue(ctx, scopesKey, scopes)
}

func getScopes(r *http.Request) []string {
	scopes, _ := r.Context().Value(scopesKey).([]string)
	return scopes
}

// HasScope reports whether the authenticated caller holds scope.
func HasScope(r *http.Request, scope string) bool {
	for _, s := range getScopes(r) {
		if s == scope {
			return true
		}
	}
	return false
}

// ClientInfo returns the request provenance recorded in audit entries.
// RemoteAddr has already been rewritten by chi's RealIP middleware.
func ClientInfo(r *http.Request) models.Provenance {
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	return models.Provenance{IPAddress: ip, UserAgent: r.UserAgent()}
}

// ExportedPrincipalKey returns the context key for the principal (for testing).
func ExportedPrincipalKey() contextKey {
	return principalKey
}
