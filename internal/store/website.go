package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/xbrch/xbrch-saas-platform/pkg/models"
)

const postColumns = `id, tenant_id, type, title, content, slug, meta_description, meta_keywords, status, word_count, published_at, created_at, updated_at`

func scanPost(row pgx.Row) (*models.WebsitePost, error) {
	var p models.WebsitePost
	err := row.Scan(&p.ID, &p.TenantID, &p.Type, &p.Title, &p.Content, &p.Slug, &p.MetaDescription,
		&p.MetaKeywords, &p.Status, &p.WordCount, &p.PublishedAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// CreateWebsitePost stores a generated post, its token usage and audit entry,
// and adds the tokens to the month's ledger row, in one transaction.
func (s *PostgresStore) CreateWebsitePost(ctx context.Context, w WebsitePostWrite) error {
	p := w.Post
	return s.withTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO website_posts (`+postColumns+`)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
			p.ID, p.TenantID, p.Type, p.Title, p.Content, p.Slug, p.MetaDescription,
			p.MetaKeywords, p.Status, p.WordCount, p.PublishedAt, p.CreatedAt, p.UpdatedAt)
		if err != nil {
			if isDuplicateKeyError(err) {
				return ErrDuplicateKey
			}
			return fmt.Errorf("create website post: %w", err)
		}

		if tu := w.TokenUsage; tu != nil {
			if err := addLedgerTokens(ctx, tx, p.TenantID, w.Month, tu.TotalTokens); err != nil {
				return err
			}
			if err := insertTokenUsage(ctx, tx, tu); err != nil {
				return err
			}
		}
		return insertAuditEntry(ctx, tx, w.Audit)
	})
}

func (s *PostgresStore) GetWebsitePost(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) (*models.WebsitePost, error) {
	p, err := scanPost(s.pool.QueryRow(ctx,
		`SELECT `+postColumns+` FROM website_posts WHERE id = $1 AND tenant_id = $2`, id, tenantID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get website post: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) ListWebsitePosts(ctx context.Context, filter PostFilter) ([]*models.WebsitePost, int, error) {
	conditions := []string{"tenant_id = $1"}
	args := []any{filter.TenantID}
	argIdx := 2

	if filter.Type != "" {
		conditions = append(conditions, fmt.Sprintf("type = $%d", argIdx))
		args = append(args, filter.Type)
		argIdx++
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, filter.Status)
		argIdx++
	}

	where := strings.Join(conditions, " AND ")

	var total int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM website_posts WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count website posts: %w", err)
	}

	_, limit, offset := normalizePage(filter.Page, filter.Limit)
	args = append(args, limit, offset)
	rows, err := s.pool.Query(ctx, fmt.Sprintf(
		`SELECT `+postColumns+` FROM website_posts WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		where, argIdx, argIdx+1), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list website posts: %w", err)
	}
	defer rows.Close()

	posts := []*models.WebsitePost{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan website post: %w", err)
		}
		posts = append(posts, p)
	}
	return posts, total, rows.Err()
}

// UpdateWebsitePost applies p. published_at is stamped the first time the
// status becomes published and kept on later edits.
func (s *PostgresStore) UpdateWebsitePost(ctx context.Context, p PostPatch, audit *models.AuditEntry) (*models.WebsitePost, error) {
	var updated *models.WebsitePost
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		var err error
		updated, err = scanPost(tx.QueryRow(ctx,
			`UPDATE website_posts SET
			   title = COALESCE($3, title),
			   content = COALESCE($4, content),
			   word_count = COALESCE($5, word_count),
			   status = COALESCE($6, status),
			   published_at = CASE
			     WHEN $6 = 'published' AND published_at IS NULL THEN $7
			     ELSE published_at END,
			   updated_at = $7
			 WHERE id = $1 AND tenant_id = $2
			 RETURNING `+postColumns,
			p.ID, p.TenantID, p.Title, p.Content, p.WordCount, p.Status, p.At))
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("update website post: %w", err)
		}
		return insertAuditEntry(ctx, tx, audit)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *PostgresStore) DeleteWebsitePost(ctx context.Context, id uuid.UUID, tenantID uuid.UUID, audit *models.AuditEntry) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM website_posts WHERE id = $1 AND tenant_id = $2`, id, tenantID)
		if err != nil {
			return fmt.Errorf("delete website post: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return insertAuditEntry(ctx, tx, audit)
	})
}

// WebsiteStats summarizes posts by type, and counts posts created since since.
func (s *PostgresStore) WebsiteStats(ctx context.Context, tenantID uuid.UUID, since time.Time) (*models.WebsiteStats, error) {
	byType, err := postTypeStats(ctx, s.pool, tenantID)
	if err != nil {
		return nil, err
	}

	stats := &models.WebsiteStats{ByType: byType}
	if err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM website_posts WHERE tenant_id = $1 AND created_at >= $2`, tenantID, since,
	).Scan(&stats.RecentPosts); err != nil {
		return nil, fmt.Errorf("count recent website posts: %w", err)
	}
	return stats, nil
}

func postTypeStats(ctx context.Context, q querier, tenantID uuid.UUID) ([]models.PostTypeStats, error) {
	rows, err := q.Query(ctx,
		`SELECT type, COUNT(*), COUNT(*) FILTER (WHERE status = 'published'),
		        COALESCE(SUM(word_count), 0), COALESCE(AVG(word_count), 0)::float8
		 FROM website_posts WHERE tenant_id = $1
		 GROUP BY type ORDER BY type`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("website post stats: %w", err)
	}
	defer rows.Close()

	stats := []models.PostTypeStats{}
	for rows.Next() {
		var st models.PostTypeStats
		if err := rows.Scan(&st.Type, &st.Count, &st.Published, &st.TotalWords, &st.AvgWords); err != nil {
			return nil, fmt.Errorf("scan website post stats: %w", err)
		}
		stats = append(stats, st)
	}
	return stats, rows.Err()
}
