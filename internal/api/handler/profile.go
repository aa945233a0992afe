package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"

	mw "github.com/xbrch/xbrch-saas-platform/internal/api/middleware"
	"github.com/xbrch/xbrch-saas-platform/internal/api/response"
	"github.com/xbrch/xbrch-saas-platform/internal/broadcast"
	"github.com/xbrch/xbrch-saas-platform/internal/cache"
	"github.com/xbrch/xbrch-saas-platform/internal/store"
	"github.com/xbrch/xbrch-saas-platform/pkg/models"
)

// ProfileStore is the subset of store.Store used by the business profile endpoints.
type ProfileStore interface {
	GetBusinessProfile(ctx context.Context, tenantID uuid.UUID) (*models.BusinessProfile, error)
	UpsertBusinessProfile(ctx context.Context, p *models.BusinessProfile, audit *models.AuditEntry) (*models.BusinessProfile, error)
}

type profileRequest struct {
	Name        string `json:"name" validate:"required,max=255"`
	City        string `json:"city" validate:"required,max=100"`
	Industry    string `json:"industry" validate:"required,max=100"`
	Tone        string `json:"tone" validate:"omitempty,oneof=professional casual friendly formal"`
	DefaultCTA  string `json:"default_cta" validate:"omitempty,max=255"`
	WebsiteURL  string `json:"website_url" validate:"omitempty,url,max=500"`
	Phone       string `json:"phone" validate:"omitempty,max=50"`
	Description string `json:"description" validate:"omitempty,max=1000"`
}

// NewGetProfileHandler returns an http.HandlerFunc for GET /api/v1/profile.
// Tenants without a saved profile get the default one.
func NewGetProfileHandler(s ProfileStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tid, ok := tenantID(w, r)
		if !ok {
			return
		}

		p, err := s.GetBusinessProfile(r.Context(), tid)
		if errors.Is(err, store.ErrNotFound) {
			def := models.DefaultBusinessProfile()
			response.JSON(w, def)
			return
		}
		if err != nil {
			internalError(w, r, "get business profile", err)
			return
		}

		response.JSON(w, p)
	}
}

// NewUpdateProfileHandler returns an http.HandlerFunc for PUT /api/v1/profile.
// The cached profile and public wall for the tenant are dropped on success; ca may be nil.
func NewUpdateProfileHandler(s ProfileStore, ca cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tid, ok := tenantID(w, r)
		if !ok {
			return
		}

		var req profileRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.Tone == "" {
			req.Tone = "professional"
		}

		now := time.Now().UTC()
		p := &models.BusinessProfile{
			TenantID:    tid,
			Name:        strings.TrimSpace(req.Name),
			Slug:        profileSlug(req.Name, tid),
			City:        strings.TrimSpace(req.City),
			Industry:    strings.TrimSpace(req.Industry),
			Tone:        req.Tone,
			DefaultCTA:  req.DefaultCTA,
			WebsiteURL:  req.WebsiteURL,
			Phone:       req.Phone,
			Description: req.Description,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		audit := models.NewAuditEntry(tid, models.AuditUpdateProfile, "business_profile", tid.String(),
			map[string]any{"name": p.Name, "slug": p.Slug, "city": p.City, "industry": p.Industry, "tone": p.Tone},
			mw.ClientInfo(r))

		old, _ := s.GetBusinessProfile(r.Context(), tid)
		saved, err := s.UpsertBusinessProfile(r.Context(), p, audit)
		if errors.Is(err, store.ErrDuplicateKey) {
			response.Error(w, http.StatusConflict, "DUPLICATE_SLUG", "Business slug is already taken", nil)
			return
		}
		if err != nil {
			internalError(w, r, "upsert business profile", err)
			return
		}

		broadcast.InvalidateProfile(r.Context(), ca, tid)
		if ca != nil {
			if old != nil && old.Slug != saved.Slug {
				if err := ca.Delete(r.Context(), cache.PublicWallKey(old.Slug)); err != nil {
					slog.Warn("public wall cache invalidation failed", "slug", old.Slug, "error", err)
				}
			}
			if err := ca.Delete(r.Context(), cache.PublicWallKey(saved.Slug)); err != nil {
				slog.Warn("public wall cache invalidation failed", "slug", saved.Slug, "error", err)
			}
		}

		response.JSON(w, saved)
	}
}

// profileSlug builds a stable public slug from the business name and tenant id.
func profileSlug(name string, tid uuid.UUID) string {
	base := slug.Make(name)
	if base == "" {
		base = "business"
	}
	return base + "-" + tid.String()[:8]
}
