package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/xbrch/xbrch-saas-platform/internal/api/response"
	"github.com/xbrch/xbrch-saas-platform/internal/ledger"
	"github.com/xbrch/xbrch-saas-platform/internal/store"
	"github.com/xbrch/xbrch-saas-platform/pkg/models"
)

// UsageReader is implemented by *ledger.Ledger.
type UsageReader interface {
	Remaining(ctx context.Context, tenantID uuid.UUID, month string) (*models.UsageSnapshot, error)
}

// NewUsageHandler returns an http.HandlerFunc for GET /api/v1/usage.
// The optional month query parameter ("YYYY-MM") defaults to the current UTC month.
func NewUsageHandler(l UsageReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tid, ok := tenantID(w, r)
		if !ok {
			return
		}

		month := r.URL.Query().Get("month")
		if month == "" {
			month = ledger.MonthKey(time.Now())
		} else if _, err := time.Parse("2006-01", month); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "month must be formatted YYYY-MM", nil)
			return
		}

		snap, err := l.Remaining(r.Context(), tid, month)
		if err != nil {
			internalError(w, r, "read usage", err)
			return
		}
		if snap.Remaining < 0 {
			snap.Remaining = 0
		}

		response.JSON(w, snap)
	}
}

// AuditReader is the subset of store.Store the audit endpoint needs.
type AuditReader interface {
	ListAuditEntries(ctx context.Context, filter store.AuditFilter) ([]*models.AuditEntry, error)
}

// NewListAuditHandler returns an http.HandlerFunc for GET /api/v1/audit.
func NewListAuditHandler(s AuditReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tid, ok := tenantID(w, r)
		if !ok {
			return
		}

		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		if limit <= 0 {
			limit = 50
		}
		if limit > 100 {
			limit = 100
		}

		entries, err := s.ListAuditEntries(r.Context(), store.AuditFilter{
			TenantID: tid,
			Action:   r.URL.Query().Get("action"),
			Limit:    limit,
		})
		if err != nil {
			internalError(w, r, "list audit entries", err)
			return
		}
		if entries == nil {
			entries = []*models.AuditEntry{}
		}

		response.JSON(w, entries)
	}
}
