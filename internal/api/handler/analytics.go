package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/xbrch/xbrch-saas-platform/internal/api/response"
	"github.com/xbrch/xbrch-saas-platform/internal/ledger"
	"github.com/xbrch/xbrch-saas-platform/pkg/models"
)

const (
	defaultReportMonths = 3
	maxReportMonths     = 24
	dashboardWindow     = 30 * 24 * time.Hour
)

// AnalyticsStore is the subset of store.Store the analytics endpoints need.
type AnalyticsStore interface {
	TokenUsageReport(ctx context.Context, tenantID uuid.UUID, since time.Time) (*models.TokenReport, error)
	Dashboard(ctx context.Context, tenantID uuid.UUID, month string, since time.Time) (*models.Dashboard, error)
}

// NewTokenReportHandler returns an http.HandlerFunc for GET /api/v1/analytics/tokens.
// months (default 3, at most 24) counts back from the current UTC month, inclusive.
func NewTokenReportHandler(s AnalyticsStore, now func() time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tid, ok := tenantID(w, r)
		if !ok {
			return
		}

		months := defaultReportMonths
		if v := r.URL.Query().Get("months"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 || n > maxReportMonths {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "months must be between 1 and 24", nil)
				return
			}
			months = n
		}

		report, err := s.TokenUsageReport(r.Context(), tid, reportSince(now(), months))
		if err != nil {
			internalError(w, r, "token usage report", err)
			return
		}
		response.JSON(w, report)
	}
}

// NewDashboardHandler returns an http.HandlerFunc for GET /api/v1/analytics/dashboard.
func NewDashboardHandler(s AnalyticsStore, now func() time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tid, ok := tenantID(w, r)
		if !ok {
			return
		}

		t := now().UTC()
		d, err := s.Dashboard(r.Context(), tid, ledger.MonthKey(t), t.Add(-dashboardWindow))
		if err != nil {
			internalError(w, r, "dashboard", err)
			return
		}
		if d.Usage != nil && d.Usage.Remaining < 0 {
			d.Usage.Remaining = 0
		}
		response.JSON(w, d)
	}
}

// reportSince is the first instant of the month months-1 months before t.
func reportSince(t time.Time, months int) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month()-time.Month(months-1), 1, 0, 0, 0, 0, time.UTC)
}
