package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	mw "github.com/xbrch/xbrch-saas-platform/internal/api/middleware"
	"github.com/xbrch/xbrch-saas-platform/internal/api/response"
	"github.com/xbrch/xbrch-saas-platform/internal/broadcast"
	"github.com/xbrch/xbrch-saas-platform/internal/store"
	"github.com/xbrch/xbrch-saas-platform/pkg/models"
)

// BroadcastCreator is implemented by *broadcast.Service.
type BroadcastCreator interface {
	CreateBroadcast(ctx context.Context, p broadcast.CreateParams) (*broadcast.Result, error)
}

// BroadcastStore is the subset of store.Store the history endpoints need.
type BroadcastStore interface {
	GetBroadcast(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) (*models.Broadcast, error)
	ListBroadcasts(ctx context.Context, filter store.BroadcastFilter) ([]*models.Broadcast, int, error)
	DeleteBroadcast(ctx context.Context, id uuid.UUID, tenantID uuid.UUID, audit *models.AuditEntry) error
	UpdateBroadcastStatus(ctx context.Context, id uuid.UUID, tenantID uuid.UUID, status string, audit *models.AuditEntry) (*models.Broadcast, error)
	MarkOutputPublished(ctx context.Context, p store.PublishParams, audit *models.AuditEntry) (*models.BroadcastOutput, error)
}

type createBroadcastRequest struct {
	Message   string   `json:"message" validate:"required"`
	Platforms []string `json:"platforms" validate:"required,min=1,max=6,dive,oneof=x facebook linkedin instagram whatsapp sms"`
}

// NewCreateBroadcastHandler returns an http.HandlerFunc for POST /api/v1/broadcasts.
func NewCreateBroadcastHandler(svc BroadcastCreator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tid, ok := tenantID(w, r)
		if !ok {
			return
		}

		var req createBroadcastRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		result, err := svc.CreateBroadcast(r.Context(), broadcast.CreateParams{
			TenantID:   tid,
			Message:    req.Message,
			Platforms:  req.Platforms,
			Provenance: mw.ClientInfo(r),
		})
		if err != nil {
			var (
				quota *broadcast.QuotaExceededError
				verr  *broadcast.ValidationError
			)
			switch {
			case errors.As(err, &quota):
				response.Error(w, http.StatusTooManyRequests, "QUOTA_EXCEEDED",
					"Monthly broadcast limit reached. Upgrade your plan to continue.",
					map[string]any{"used": quota.Used, "limit": quota.Limit, "month": quota.Month})
			case errors.As(err, &verr):
				response.Error(w, http.StatusBadRequest, "VALIDATION_FAILED",
					"Request validation failed", map[string]string{verr.Field: verr.Message})
			default:
				internalError(w, r, "create broadcast", err)
			}
			return
		}

		response.Created(w, result)
	}
}

// NewListBroadcastsHandler returns an http.HandlerFunc for GET /api/v1/broadcasts.
func NewListBroadcastsHandler(s BroadcastStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tid, ok := tenantID(w, r)
		if !ok {
			return
		}

		page, limit := pageParams(r)
		filter := store.BroadcastFilter{
			TenantID: tid,
			Status:   r.URL.Query().Get("status"),
			Page:     page,
			Limit:    limit,
		}
		if filter.Status != "" && !validStatus(filter.Status) {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"status must be one of: generated published archived", nil)
			return
		}
		if since := r.URL.Query().Get("since"); since != "" {
			t, err := time.Parse(time.RFC3339, since)
			if err != nil {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
					"since must be a valid RFC3339 timestamp", nil)
				return
			}
			filter.Since = t
		}

		broadcasts, total, err := s.ListBroadcasts(r.Context(), filter)
		if err != nil {
			internalError(w, r, "list broadcasts", err)
			return
		}

		response.Collection(w, broadcasts, response.NewPaginationMeta(page, limit, total))
	}
}

// NewGetBroadcastHandler returns an http.HandlerFunc for GET /api/v1/broadcasts/{broadcastID}.
func NewGetBroadcastHandler(s BroadcastStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tid, ok := tenantID(w, r)
		if !ok {
			return
		}
		id, ok := pathUUID(w, r, "broadcastID")
		if !ok {
			return
		}

		b, err := s.GetBroadcast(r.Context(), id, tid)
		if errors.Is(err, store.ErrNotFound) {
			notFound(w, "Broadcast")
			return
		}
		if err != nil {
			internalError(w, r, "get broadcast", err)
			return
		}

		response.JSON(w, b)
	}
}

// NewDeleteBroadcastHandler returns an http.HandlerFunc for DELETE /api/v1/broadcasts/{broadcastID}.
// Deleting a broadcast does not give its quota back.
func NewDeleteBroadcastHandler(s BroadcastStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tid, ok := tenantID(w, r)
		if !ok {
			return
		}
		id, ok := pathUUID(w, r, "broadcastID")
		if !ok {
			return
		}

		audit := models.NewAuditEntry(tid, models.AuditDeleteBroadcast, "broadcast", id.String(), nil, mw.ClientInfo(r))
		err := s.DeleteBroadcast(r.Context(), id, tid, audit)
		if errors.Is(err, store.ErrNotFound) {
			notFound(w, "Broadcast")
			return
		}
		if err != nil {
			internalError(w, r, "delete broadcast", err)
			return
		}

		response.NoContent(w)
	}
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=published archived"`
}

// NewUpdateBroadcastStatusHandler returns an http.HandlerFunc for PATCH /api/v1/broadcasts/{broadcastID}/status.
func NewUpdateBroadcastStatusHandler(s BroadcastStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tid, ok := tenantID(w, r)
		if !ok {
			return
		}
		id, ok := pathUUID(w, r, "broadcastID")
		if !ok {
			return
		}

		var req updateStatusRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		audit := models.NewAuditEntry(tid, models.AuditUpdateBroadcast, "broadcast", id.String(),
			map[string]any{"status": req.Status}, mw.ClientInfo(r))
		b, err := s.UpdateBroadcastStatus(r.Context(), id, tid, req.Status, audit)
		switch {
		case errors.Is(err, store.ErrNotFound):
			notFound(w, "Broadcast")
		case errors.Is(err, store.ErrInvalidTransition):
			response.Error(w, http.StatusConflict, "INVALID_TRANSITION",
				"Broadcast cannot move to status "+req.Status, nil)
		case err != nil:
			internalError(w, r, "update broadcast status", err)
		default:
			response.JSON(w, b)
		}
	}
}

type publishOutputRequest struct {
	PlatformPostID string `json:"platform_post_id" validate:"omitempty,max=255"`
}

// NewPublishOutputHandler returns an http.HandlerFunc for
// POST /api/v1/broadcasts/{broadcastID}/outputs/{outputID}/publish.
// Publish metadata is recorded once per output.
func NewPublishOutputHandler(s BroadcastStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tid, ok := tenantID(w, r)
		if !ok {
			return
		}
		broadcastID, ok := pathUUID(w, r, "broadcastID")
		if !ok {
			return
		}
		outputID, ok := pathUUID(w, r, "outputID")
		if !ok {
			return
		}

		var req publishOutputRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		audit := models.NewAuditEntry(tid, models.AuditPublishOutput, "broadcast_output", outputID.String(),
			map[string]any{"broadcast_id": broadcastID.String(), "platform_post_id": req.PlatformPostID}, mw.ClientInfo(r))
		out, err := s.MarkOutputPublished(r.Context(), store.PublishParams{
			BroadcastID:    broadcastID,
			OutputID:       outputID,
			TenantID:       tid,
			PlatformPostID: req.PlatformPostID,
			PublishedAt:    time.Now().UTC(),
		}, audit)
		switch {
		case errors.Is(err, store.ErrNotFound):
			notFound(w, "Output")
		case errors.Is(err, store.ErrAlreadyPublished):
			response.Error(w, http.StatusConflict, "ALREADY_PUBLISHED", "Output has already been published", nil)
		case err != nil:
			internalError(w, r, "publish output", err)
		default:
			response.JSON(w, out)
		}
	}
}

func validStatus(s string) bool {
	switch s {
	case models.BroadcastStatusGenerated, models.BroadcastStatusPublished, models.BroadcastStatusArchived:
		return true
	}
	return false
}
