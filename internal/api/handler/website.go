package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	mw "github.com/xbrch/xbrch-saas-platform/internal/api/middleware"
	"github.com/xbrch/xbrch-saas-platform/internal/api/response"
	"github.com/xbrch/xbrch-saas-platform/internal/store"
	"github.com/xbrch/xbrch-saas-platform/internal/website"
	"github.com/xbrch/xbrch-saas-platform/pkg/models"
)

const websiteStatsWindow = 30 * 24 * time.Hour

// WebsiteService generates and edits website posts. *website.Service satisfies it.
type WebsiteService interface {
	CreateAnnouncement(ctx context.Context, p website.CreateParams) (*models.WebsitePost, error)
	CreateBlog(ctx context.Context, p website.CreateParams) (*models.WebsitePost, error)
	UpdatePost(ctx context.Context, p website.UpdateParams) (*models.WebsitePost, error)
}

// WebsiteStore is the subset of store.Store the website read endpoints need.
type WebsiteStore interface {
	GetWebsitePost(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) (*models.WebsitePost, error)
	ListWebsitePosts(ctx context.Context, filter store.PostFilter) ([]*models.WebsitePost, int, error)
	DeleteWebsitePost(ctx context.Context, id uuid.UUID, tenantID uuid.UUID, audit *models.AuditEntry) error
	WebsiteStats(ctx context.Context, tenantID uuid.UUID, since time.Time) (*models.WebsiteStats, error)
}

type announcementRequest struct {
	Message            string `json:"message" validate:"required"`
	PublishImmediately bool   `json:"publish_immediately"`
}

type blogRequest struct {
	Topic              string `json:"topic" validate:"required"`
	PublishImmediately bool   `json:"publish_immediately"`
}

// NewCreateAnnouncementHandler returns an http.HandlerFunc for POST /api/v1/website/announcement.
func NewCreateAnnouncementHandler(svc WebsiteService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tid, ok := tenantID(w, r)
		if !ok {
			return
		}
		var req announcementRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		post, err := svc.CreateAnnouncement(r.Context(), website.CreateParams{
			TenantID:   tid,
			Text:       req.Message,
			Publish:    req.PublishImmediately,
			Provenance: mw.ClientInfo(r),
		})
		if err != nil {
			websiteError(w, r, "create announcement", err)
			return
		}
		response.Created(w, post)
	}
}

// NewCreateBlogHandler returns an http.HandlerFunc for POST /api/v1/website/blog.
func NewCreateBlogHandler(svc WebsiteService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tid, ok := tenantID(w, r)
		if !ok {
			return
		}
		var req blogRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		post, err := svc.CreateBlog(r.Context(), website.CreateParams{
			TenantID:   tid,
			Text:       req.Topic,
			Publish:    req.PublishImmediately,
			Provenance: mw.ClientInfo(r),
		})
		if err != nil {
			websiteError(w, r, "create blog", err)
			return
		}
		response.Created(w, post)
	}
}

// NewListPostsHandler returns an http.HandlerFunc for GET /api/v1/website/posts.
func NewListPostsHandler(s WebsiteStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tid, ok := tenantID(w, r)
		if !ok {
			return
		}

		page, limit := pageParams(r)
		filter := store.PostFilter{
			TenantID: tid,
			Type:     r.URL.Query().Get("type"),
			Status:   r.URL.Query().Get("status"),
			Page:     page,
			Limit:    limit,
		}
		if filter.Type != "" && filter.Type != models.PostTypeAnnouncement && filter.Type != models.PostTypeBlog {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "type must be one of: announcement blog", nil)
			return
		}
		if filter.Status != "" && !models.ValidPostStatus(filter.Status) {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"status must be one of: draft published archived", nil)
			return
		}

		posts, total, err := s.ListWebsitePosts(r.Context(), filter)
		if err != nil {
			internalError(w, r, "list website posts", err)
			return
		}
		response.Collection(w, posts, response.NewPaginationMeta(page, limit, total))
	}
}

type postWithMarkdown struct {
	*models.WebsitePost
	Markdown string `json:"markdown"`
}

// NewGetPostHandler returns an http.HandlerFunc for GET /api/v1/website/posts/{postID}.
// With ?format=markdown the response also carries the content as markdown.
func NewGetPostHandler(s WebsiteStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tid, ok := tenantID(w, r)
		if !ok {
			return
		}
		id, ok := pathUUID(w, r, "postID")
		if !ok {
			return
		}

		post, err := s.GetWebsitePost(r.Context(), id, tid)
		if errors.Is(err, store.ErrNotFound) {
			notFound(w, "Post")
			return
		}
		if err != nil {
			internalError(w, r, "get website post", err)
			return
		}

		switch r.URL.Query().Get("format") {
		case "", "html":
			response.JSON(w, post)
		case "markdown":
			md, err := website.Markdown(post.Content)
			if err != nil {
				internalError(w, r, "convert post to markdown", err)
				return
			}
			response.JSON(w, postWithMarkdown{WebsitePost: post, Markdown: md})
		default:
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "format must be one of: html markdown", nil)
		}
	}
}

type updatePostRequest struct {
	Title   *string `json:"title"`
	Content *string `json:"content"`
	Status  *string `json:"status" validate:"omitempty,oneof=draft published archived"`
}

// NewUpdatePostHandler returns an http.HandlerFunc for PUT /api/v1/website/posts/{postID}.
func NewUpdatePostHandler(svc WebsiteService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tid, ok := tenantID(w, r)
		if !ok {
			return
		}
		id, ok := pathUUID(w, r, "postID")
		if !ok {
			return
		}
		var req updatePostRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		post, err := svc.UpdatePost(r.Context(), website.UpdateParams{
			ID:         id,
			TenantID:   tid,
			Title:      req.Title,
			Content:    req.Content,
			Status:     req.Status,
			Provenance: mw.ClientInfo(r),
		})
		if err != nil {
			websiteError(w, r, "update website post", err)
			return
		}
		response.JSON(w, post)
	}
}

// NewDeletePostHandler returns an http.HandlerFunc for DELETE /api/v1/website/posts/{postID}.
func NewDeletePostHandler(s WebsiteStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tid, ok := tenantID(w, r)
		if !ok {
			return
		}
		id, ok := pathUUID(w, r, "postID")
		if !ok {
			return
		}

		audit := models.NewAuditEntry(tid, models.AuditDeletePost, "website_post", id.String(), nil, mw.ClientInfo(r))
		err := s.DeleteWebsitePost(r.Context(), id, tid, audit)
		if errors.Is(err, store.ErrNotFound) {
			notFound(w, "Post")
			return
		}
		if err != nil {
			internalError(w, r, "delete website post", err)
			return
		}
		response.NoContent(w)
	}
}

// NewWebsiteStatsHandler returns an http.HandlerFunc for GET /api/v1/website/stats.
func NewWebsiteStatsHandler(s WebsiteStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tid, ok := tenantID(w, r)
		if !ok {
			return
		}

		stats, err := s.WebsiteStats(r.Context(), tid, time.Now().UTC().Add(-websiteStatsWindow))
		if err != nil {
			internalError(w, r, "website stats", err)
			return
		}
		response.JSON(w, stats)
	}
}

func websiteError(w http.ResponseWriter, r *http.Request, op string, err error) {
	var verr *website.ValidationError
	switch {
	case errors.As(err, &verr):
		response.Error(w, http.StatusBadRequest, "VALIDATION_FAILED",
			"Request validation failed", map[string]string{verr.Field: verr.Message})
	case errors.Is(err, store.ErrNotFound):
		notFound(w, "Post")
	default:
		internalError(w, r, op, err)
	}
}
