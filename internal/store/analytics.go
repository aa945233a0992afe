package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/xbrch/xbrch-saas-platform/pkg/models"
)

const recentActivityLimit = 10

// TokenUsageReport aggregates the tenant's token usage rows created since since
// by UTC month, operation and provider, newest month first.
func (s *PostgresStore) TokenUsageReport(ctx context.Context, tenantID uuid.UUID, since time.Time) (*models.TokenReport, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT to_char(created_at AT TIME ZONE 'UTC', 'YYYY-MM') AS month, operation_type, provider,
		        COUNT(*), COALESCE(SUM(prompt_tokens), 0), COALESCE(SUM(completion_tokens), 0), COALESCE(SUM(total_tokens), 0)
		 FROM ai_token_usage
		 WHERE tenant_id = $1 AND created_at >= $2
		 GROUP BY month, operation_type, provider
		 ORDER BY month DESC, operation_type, provider`, tenantID, since)
	if err != nil {
		return nil, fmt.Errorf("token usage report: %w", err)
	}
	defer rows.Close()

	report := &models.TokenReport{Since: since, Rows: []models.TokenUsageRow{}}
	for rows.Next() {
		var r models.TokenUsageRow
		if err := rows.Scan(&r.Month, &r.Operation, &r.Provider, &r.Requests,
			&r.PromptTokens, &r.CompletionTokens, &r.TotalTokens); err != nil {
			return nil, fmt.Errorf("scan token usage row: %w", err)
		}
		report.Rows = append(report.Rows, r)
		report.TotalRequests += r.Requests
		report.TotalTokens += r.TotalTokens
	}
	return report, rows.Err()
}

// Dashboard gathers the tenant overview: usage for month, broadcast, platform,
// website and wall summaries, and the latest activity across all three.
// Wall RecentUpdates counts updates created since since.
func (s *PostgresStore) Dashboard(ctx context.Context, tenantID uuid.UUID, month string, since time.Time) (*models.Dashboard, error) {
	usage, err := s.GetUsageSnapshot(ctx, tenantID, month)
	if err != nil {
		return nil, err
	}
	usage.Remaining = usage.Limit - usage.Used

	d := &models.Dashboard{Usage: usage}

	err = s.pool.QueryRow(ctx,
		`SELECT COUNT(*), COALESCE(AVG(score), 0)::float8,
		        COUNT(*) FILTER (WHERE score >= 80),
		        COUNT(*) FILTER (WHERE confidence_badge = $2),
		        COUNT(*) FILTER (WHERE status = $3)
		 FROM broadcasts WHERE tenant_id = $1`,
		tenantID, models.RiskLow, models.BroadcastStatusPublished,
	).Scan(&d.Broadcasts.Total, &d.Broadcasts.AvgScore, &d.Broadcasts.HighScore,
		&d.Broadcasts.LowRisk, &d.Broadcasts.Published)
	if err != nil {
		return nil, fmt.Errorf("broadcast stats: %w", err)
	}

	if d.Platforms, err = s.platformStats(ctx, tenantID); err != nil {
		return nil, err
	}
	if d.Website, err = postTypeStats(ctx, s.pool, tenantID); err != nil {
		return nil, err
	}
	wall, err := wallOverview(ctx, s.pool, tenantID, since)
	if err != nil {
		return nil, err
	}
	d.Wall = *wall

	if d.Recent, err = s.recentActivity(ctx, tenantID); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *PostgresStore) platformStats(ctx context.Context, tenantID uuid.UUID) ([]models.PlatformStats, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT o.platform, COUNT(*), COALESCE(AVG(o.character_count), 0)::float8
		 FROM broadcast_outputs o
		 JOIN broadcasts b ON b.id = o.broadcast_id
		 WHERE b.tenant_id = $1
		 GROUP BY o.platform
		 ORDER BY COUNT(*) DESC, o.platform`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("platform stats: %w", err)
	}
	defer rows.Close()

	stats := []models.PlatformStats{}
	for rows.Next() {
		var p models.PlatformStats
		if err := rows.Scan(&p.Platform, &p.Outputs, &p.AvgLength); err != nil {
			return nil, fmt.Errorf("scan platform stats: %w", err)
		}
		stats = append(stats, p)
	}
	return stats, rows.Err()
}

func (s *PostgresStore) recentActivity(ctx context.Context, tenantID uuid.UUID) ([]models.Activity, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT 'broadcast', original_message, score, created_at FROM broadcasts WHERE tenant_id = $1
		 UNION ALL
		 SELECT 'website_post', title, word_count, created_at FROM website_posts WHERE tenant_id = $1
		 UNION ALL
		 SELECT 'wall_update', content, view_count, created_at FROM wall_updates WHERE tenant_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`, tenantID, recentActivityLimit)
	if err != nil {
		return nil, fmt.Errorf("recent activity: %w", err)
	}
	defer rows.Close()

	items := []models.Activity{}
	for rows.Next() {
		var a models.Activity
		if err := rows.Scan(&a.Type, &a.Title, &a.Score, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		items = append(items, a)
	}
	return items, rows.Err()
}
