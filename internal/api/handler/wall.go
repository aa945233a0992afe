package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gosimple/slug"

	mw "github.com/xbrch/xbrch-saas-platform/internal/api/middleware"
	"github.com/xbrch/xbrch-saas-platform/internal/api/response"
	"github.com/xbrch/xbrch-saas-platform/internal/cache"
	"github.com/xbrch/xbrch-saas-platform/internal/store"
	"github.com/xbrch/xbrch-saas-platform/pkg/models"
)

const (
	maxWallContent     = 300
	publicWallMaxItems = 50
	wallSlugWords      = 60
	wallStatsWindow    = 30 * 24 * time.Hour
)

// WallStore is the subset of store.Store used by the wall endpoints.
type WallStore interface {
	GetBusinessProfile(ctx context.Context, tenantID uuid.UUID) (*models.BusinessProfile, error)
	GetBusinessProfileBySlug(ctx context.Context, slug string) (*models.BusinessProfile, error)
	CreateWallUpdate(ctx context.Context, u *models.WallUpdate, audit *models.AuditEntry) error
	ListWallUpdates(ctx context.Context, tenantID uuid.UUID, page, limit int) ([]*models.WallUpdate, int, error)
	ListPublicWallUpdates(ctx context.Context, tenantID uuid.UUID, limit int) ([]*models.WallUpdate, error)
	GetWallUpdate(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) (*models.WallUpdate, error)
	UpdateWallUpdate(ctx context.Context, p store.WallPatch, audit *models.AuditEntry) (*models.WallUpdate, error)
	DeleteWallUpdate(ctx context.Context, id uuid.UUID, tenantID uuid.UUID, audit *models.AuditEntry) error
	WallStats(ctx context.Context, tenantID uuid.UUID, since time.Time) (*models.WallStats, error)
}

type wallUpdateRequest struct {
	Content   string  `json:"content" validate:"required"`
	ImageURL  *string `json:"image_url" validate:"omitempty,url,max=500"`
	LinkURL   *string `json:"link_url" validate:"omitempty,url,max=500"`
	LinkTitle *string `json:"link_title" validate:"omitempty,max=255"`
	IsPublic  *bool   `json:"is_public"`
}

// NewCreateWallUpdateHandler returns an http.HandlerFunc for POST /api/v1/wall/updates.
func NewCreateWallUpdateHandler(s WallStore, ca cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tid, ok := tenantID(w, r)
		if !ok {
			return
		}

		var req wallUpdateRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		content := strings.TrimSpace(req.Content)
		if content == "" {
			response.Error(w, http.StatusBadRequest, "VALIDATION_FAILED", "Request validation failed",
				map[string]string{"content": "is required"})
			return
		}
		if utf8.RuneCountInString(content) > maxWallContent {
			response.Error(w, http.StatusBadRequest, "VALIDATION_FAILED", "Request validation failed",
				map[string]string{"content": "must be at most 300 characters"})
			return
		}

		isPublic := true
		if req.IsPublic != nil {
			isPublic = *req.IsPublic
		}

		now := time.Now().UTC()
		u := &models.WallUpdate{
			ID:        uuid.New(),
			TenantID:  tid,
			Content:   content,
			ImageURL:  req.ImageURL,
			LinkURL:   req.LinkURL,
			LinkTitle: req.LinkTitle,
			IsPublic:  isPublic,
			CreatedAt: now,
			UpdatedAt: now,
		}
		u.Slug = wallSlug(content, u.ID)

		audit := models.NewAuditEntry(tid, models.AuditCreateWall, "wall_update", u.ID.String(),
			map[string]any{"slug": u.Slug, "is_public": u.IsPublic}, mw.ClientInfo(r))
		if err := s.CreateWallUpdate(r.Context(), u, audit); err != nil {
			internalError(w, r, "create wall update", err)
			return
		}

		if u.IsPublic {
			invalidatePublicWall(r, s, ca, tid)
		}

		response.Created(w, u)
	}
}

// NewListWallUpdatesHandler returns an http.HandlerFunc for GET /api/v1/wall/updates.
func NewListWallUpdatesHandler(s WallStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tid, ok := tenantID(w, r)
		if !ok {
			return
		}

		page, limit := pageParams(r)
		updates, total, err := s.ListWallUpdates(r.Context(), tid, page, limit)
		if err != nil {
			internalError(w, r, "list wall updates", err)
			return
		}
		if updates == nil {
			updates = []*models.WallUpdate{}
		}

		response.Collection(w, updates, response.NewPaginationMeta(page, limit, total))
	}
}

// NewPublicWallHandler returns an http.HandlerFunc for GET /api/v1/wall/public/{slug}.
// Responses are cached for cache.PublicWallTTL; ca may be nil.
func NewPublicWallHandler(s WallStore, ca cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		businessSlug := strings.ToLower(chi.URLParam(r, "slug"))
		key := cache.PublicWallKey(businessSlug)

		if ca != nil {
			var cached models.PublicWall
			found, err := cache.GetJSON(r.Context(), ca, key, &cached)
			if err != nil {
				slog.Warn("public wall cache read failed", "slug", businessSlug, "error", err)
			}
			if found {
				w.Header().Set("X-Cache", "HIT")
				response.JSON(w, cached)
				return
			}
		}

		p, err := s.GetBusinessProfileBySlug(r.Context(), businessSlug)
		if errors.Is(err, store.ErrNotFound) {
			notFound(w, "Business")
			return
		}
		if err != nil {
			internalError(w, r, "get business by slug", err)
			return
		}

		updates, err := s.ListPublicWallUpdates(r.Context(), p.TenantID, publicWallMaxItems)
		if err != nil {
			internalError(w, r, "list public wall updates", err)
			return
		}
		if updates == nil {
			updates = []*models.WallUpdate{}
		}
		wall := models.PublicWall{Business: *p, Updates: updates}

		if ca != nil {
			if err := cache.SetJSON(r.Context(), ca, key, wall, cache.PublicWallTTL); err != nil {
				slog.Warn("public wall cache write failed", "slug", businessSlug, "error", err)
			}
		}

		w.Header().Set("X-Cache", "MISS")
		response.JSON(w, wall)
	}
}

// NewGetWallUpdateHandler returns an http.HandlerFunc for GET /api/v1/wall/updates/{updateID}.
func NewGetWallUpdateHandler(s WallStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tid, ok := tenantID(w, r)
		if !ok {
			return
		}
		id, ok := pathUUID(w, r, "updateID")
		if !ok {
			return
		}

		u, err := s.GetWallUpdate(r.Context(), id, tid)
		if errors.Is(err, store.ErrNotFound) {
			notFound(w, "Wall update")
			return
		}
		if err != nil {
			internalError(w, r, "get wall update", err)
			return
		}
		response.JSON(w, u)
	}
}

// An empty image_url, link_url or link_title clears the stored value.
type editWallUpdateRequest struct {
	Content   *string `json:"content"`
	ImageURL  *string `json:"image_url" validate:"omitempty,url,max=500"`
	LinkURL   *string `json:"link_url" validate:"omitempty,url,max=500"`
	LinkTitle *string `json:"link_title" validate:"omitempty,max=255"`
	IsPublic  *bool   `json:"is_public"`
}

// NewUpdateWallUpdateHandler returns an http.HandlerFunc for PUT /api/v1/wall/updates/{updateID}.
func NewUpdateWallUpdateHandler(s WallStore, ca cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tid, ok := tenantID(w, r)
		if !ok {
			return
		}
		id, ok := pathUUID(w, r, "updateID")
		if !ok {
			return
		}
		var req editWallUpdateRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		patch := store.WallPatch{
			ID:        id,
			TenantID:  tid,
			ImageURL:  req.ImageURL,
			LinkURL:   req.LinkURL,
			LinkTitle: req.LinkTitle,
			IsPublic:  req.IsPublic,
			At:        time.Now().UTC(),
		}
		values := map[string]any{}
		if req.Content != nil {
			content := strings.TrimSpace(*req.Content)
			if content == "" {
				response.Error(w, http.StatusBadRequest, "VALIDATION_FAILED", "Request validation failed",
					map[string]string{"content": "must not be empty"})
				return
			}
			if utf8.RuneCountInString(content) > maxWallContent {
				response.Error(w, http.StatusBadRequest, "VALIDATION_FAILED", "Request validation failed",
					map[string]string{"content": "must be at most 300 characters"})
				return
			}
			patch.Content = &content
			values["content"] = content
		}
		if req.ImageURL != nil {
			values["image_url"] = *req.ImageURL
		}
		if req.LinkURL != nil {
			values["link_url"] = *req.LinkURL
		}
		if req.LinkTitle != nil {
			values["link_title"] = *req.LinkTitle
		}
		if req.IsPublic != nil {
			values["is_public"] = *req.IsPublic
		}
		if len(values) == 0 {
			response.Error(w, http.StatusBadRequest, "VALIDATION_FAILED", "Request validation failed",
				map[string]string{"body": "no fields to update"})
			return
		}

		audit := models.NewAuditEntry(tid, models.AuditUpdateWall, "wall_update", id.String(), values, mw.ClientInfo(r)).At(patch.At)
		u, err := s.UpdateWallUpdate(r.Context(), patch, audit)
		if errors.Is(err, store.ErrNotFound) {
			notFound(w, "Wall update")
			return
		}
		if err != nil {
			internalError(w, r, "update wall update", err)
			return
		}

		// Visibility may have changed either way, so the public view is always dropped.
		invalidatePublicWall(r, s, ca, tid)
		response.JSON(w, u)
	}
}

// NewDeleteWallUpdateHandler returns an http.HandlerFunc for DELETE /api/v1/wall/updates/{updateID}.
func NewDeleteWallUpdateHandler(s WallStore, ca cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tid, ok := tenantID(w, r)
		if !ok {
			return
		}
		id, ok := pathUUID(w, r, "updateID")
		if !ok {
			return
		}

		audit := models.NewAuditEntry(tid, models.AuditDeleteWall, "wall_update", id.String(), nil, mw.ClientInfo(r))
		err := s.DeleteWallUpdate(r.Context(), id, tid, audit)
		if errors.Is(err, store.ErrNotFound) {
			notFound(w, "Wall update")
			return
		}
		if err != nil {
			internalError(w, r, "delete wall update", err)
			return
		}

		invalidatePublicWall(r, s, ca, tid)
		response.NoContent(w)
	}
}

// NewWallStatsHandler returns an http.HandlerFunc for GET /api/v1/wall/stats.
func NewWallStatsHandler(s WallStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tid, ok := tenantID(w, r)
		if !ok {
			return
		}

		stats, err := s.WallStats(r.Context(), tid, time.Now().UTC().Add(-wallStatsWindow))
		if err != nil {
			internalError(w, r, "wall stats", err)
			return
		}
		response.JSON(w, stats)
	}
}

// EmbedCode holds the snippets a tenant pastes into a website to show its public wall.
type EmbedCode struct {
	WallURL   string `json:"wall_url"`
	IFrame    string `json:"iframe"`
	Script    string `json:"script"`
	Shortcode string `json:"wordpress_shortcode"`
}

// NewWallEmbedHandler returns an http.HandlerFunc for GET /api/v1/wall/embed-code.
// baseURL is the public origin of the API.
func NewWallEmbedHandler(s WallStore, baseURL string) http.HandlerFunc {
	baseURL = strings.TrimRight(baseURL, "/")
	return func(w http.ResponseWriter, r *http.Request) {
		tid, ok := tenantID(w, r)
		if !ok {
			return
		}

		p, err := s.GetBusinessProfile(r.Context(), tid)
		if errors.Is(err, store.ErrNotFound) {
			notFound(w, "Business profile")
			return
		}
		if err != nil {
			internalError(w, r, "get business profile", err)
			return
		}

		response.JSON(w, embedCode(baseURL, p.Slug))
	}
}

func embedCode(baseURL, businessSlug string) EmbedCode {
	wallURL := baseURL + "/api/v1/wall/public/" + url.PathEscape(businessSlug)
	return EmbedCode{
		WallURL: wallURL,
		IFrame: fmt.Sprintf(`<iframe src="%s" width="100%%" height="600" frameborder="0" title="%s updates"></iframe>`,
			wallURL, businessSlug),
		Script: fmt.Sprintf(`<div id="xbrch-wall" data-business="%s"></div>`+"\n"+
			`<script src="%s/embed/wall.js" data-endpoint="%s" async></script>`,
			businessSlug, baseURL, wallURL),
		Shortcode: fmt.Sprintf(`[xbrch_wall business="%s" width="100%%" height="600"]`, businessSlug),
	}
}

// invalidatePublicWall drops the cached public wall of tid. Failures are logged only.
func invalidatePublicWall(r *http.Request, s WallStore, ca cache.Cache, tid uuid.UUID) {
	if ca == nil {
		return
	}
	p, err := s.GetBusinessProfile(r.Context(), tid)
	if err != nil {
		return
	}
	if err := ca.Delete(r.Context(), cache.PublicWallKey(p.Slug)); err != nil {
		slog.Warn("public wall cache invalidation failed", "slug", p.Slug, "error", err)
	}
}

// wallSlug derives a short readable slug from the content, made unique by the update id.
func wallSlug(content string, id uuid.UUID) string {
	if utf8.RuneCountInString(content) > wallSlugWords {
		content = string([]rune(content)[:wallSlugWords])
	}
	base := slug.Make(content)
	if base == "" {
		base = "update"
	}
	return strings.Trim(base, "-") + "-" + id.String()[:8]
}
