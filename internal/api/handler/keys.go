package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	mw "github.com/xbrch/xbrch-saas-platform/internal/api/middleware"
	"github.com/xbrch/xbrch-saas-platform/internal/api/response"
	"github.com/xbrch/xbrch-saas-platform/internal/auth"
	"github.com/xbrch/xbrch-saas-platform/internal/store"
	"github.com/xbrch/xbrch-saas-platform/pkg/models"
)

// APIKeyStore is the subset of store.Store used by the key management endpoints.
type APIKeyStore interface {
	CreateAPIKey(ctx context.Context, key *models.APIKey) error
	ListAPIKeys(ctx context.Context, tenantID uuid.UUID) ([]*models.APIKey, error)
	RevokeAPIKey(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) error
	CreateAuditEntry(ctx context.Context, e *models.AuditEntry) error
}

type createKeyRequest struct {
	Name   string   `json:"name" validate:"required,max=100"`
	Scopes []string `json:"scopes" validate:"omitempty,max=2,dive,oneof=broadcast admin"`
}

type createKeyResponse struct {
	*models.APIKey
	Key string `json:"key"`
}

// NewCreateAPIKeyHandler returns an http.HandlerFunc for POST /api/v1/keys.
// The raw key is only ever returned in this response.
func NewCreateAPIKeyHandler(s APIKeyStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tid, ok := tenantID(w, r)
		if !ok {
			return
		}

		var req createKeyRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if len(req.Scopes) == 0 {
			req.Scopes = []string{mw.ScopeBroadcast}
		}
		for _, sc := range req.Scopes {
			if !mw.HasScope(r, sc) {
				response.Error(w, http.StatusForbidden, "FORBIDDEN",
					"Cannot grant a scope you do not hold: "+sc, nil)
				return
			}
		}

		raw, prefix, hash, err := auth.GenerateAPIKey()
		if err != nil {
			internalError(w, r, "generate api key", err)
			return
		}

		now := time.Now().UTC()
		key := &models.APIKey{
			ID:        uuid.New(),
			TenantID:  tid,
			Name:      req.Name,
			KeyHash:   hash,
			KeyPrefix: prefix,
			Scopes:    req.Scopes,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.CreateAPIKey(r.Context(), key); err != nil {
			internalError(w, r, "create api key", err)
			return
		}

		audit := models.NewAuditEntry(tid, models.AuditCreateAPIKey, "api_key", key.ID.String(),
			map[string]any{"name": key.Name, "prefix": prefix, "scopes": key.Scopes}, mw.ClientInfo(r))
		if err := s.CreateAuditEntry(r.Context(), audit); err != nil {
			internalError(w, r, "audit create api key", err)
			return
		}

		response.Created(w, createKeyResponse{APIKey: key, Key: raw})
	}
}

// NewListAPIKeysHandler returns an http.HandlerFunc for GET /api/v1/keys.
func NewListAPIKeysHandler(s APIKeyStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tid, ok := tenantID(w, r)
		if !ok {
			return
		}

		keys, err := s.ListAPIKeys(r.Context(), tid)
		if err != nil {
			internalError(w, r, "list api keys", err)
			return
		}
		if keys == nil {
			keys = []*models.APIKey{}
		}

		response.JSON(w, keys)
	}
}

// NewRevokeAPIKeyHandler returns an http.HandlerFunc for DELETE /api/v1/keys/{keyID}.
func NewRevokeAPIKeyHandler(s APIKeyStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tid, ok := tenantID(w, r)
		if !ok {
			return
		}
		id, ok := pathUUID(w, r, "keyID")
		if !ok {
			return
		}

		err := s.RevokeAPIKey(r.Context(), id, tid)
		if errors.Is(err, store.ErrNotFound) {
			notFound(w, "API key")
			return
		}
		if err != nil {
			internalError(w, r, "revoke api key", err)
			return
		}

		audit := models.NewAuditEntry(tid, models.AuditRevokeAPIKey, "api_key", id.String(), nil, mw.ClientInfo(r))
		if err := s.CreateAuditEntry(r.Context(), audit); err != nil {
			internalError(w, r, "audit revoke api key", err)
			return
		}

		response.NoContent(w)
	}
}
