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

const broadcastColumns = `id, tenant_id, original_message, score, confidence_badge, originality_score, status, created_at, updated_at`

const outputColumns = `id, broadcast_id, platform, content, character_count, published_at, platform_post_id, engagement_stats, created_at`

func scanBroadcast(row pgx.Row) (*models.Broadcast, error) {
	var b models.Broadcast
	err := row.Scan(&b.ID, &b.TenantID, &b.OriginalMessage, &b.Score, &b.ConfidenceBadge,
		&b.OriginalityScore, &b.Status, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func scanOutput(row pgx.Row) (*models.BroadcastOutput, error) {
	var o models.BroadcastOutput
	err := row.Scan(&o.ID, &o.BroadcastID, &o.Platform, &o.Content, &o.CharacterCount,
		&o.PublishedAt, &o.PlatformPostID, &o.EngagementStats, &o.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// CreateBroadcast persists a generated broadcast with its outputs, increments the
// usage ledger, records token usage and appends the audit entry, all in one
// transaction. It returns the ledger row as it stands after the increment.
func (s *PostgresStore) CreateBroadcast(ctx context.Context, w BroadcastWrite) (*models.UsageEntry, error) {
	b := w.Broadcast
	var usage *models.UsageEntry

	err := s.withTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO broadcasts (`+broadcastColumns+`)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			b.ID, b.TenantID, b.OriginalMessage, b.Score, b.ConfidenceBadge,
			b.OriginalityScore, b.Status, b.CreatedAt, b.UpdatedAt)
		if err != nil {
			return fmt.Errorf("create broadcast: %w", err)
		}

		for i, o := range b.Outputs {
			_, err := tx.Exec(ctx,
				`INSERT INTO broadcast_outputs (id, broadcast_id, platform, position, content, character_count, created_at)
				 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				o.ID, b.ID, o.Platform, i, o.Content, o.CharacterCount, o.CreatedAt)
			if err != nil {
				return fmt.Errorf("create broadcast output %s: %w", o.Platform, err)
			}
		}

		usage, err = incrementUsage(ctx, tx, b.TenantID, w.Month, w.Tokens)
		if err != nil {
			return err
		}

		if err := insertTokenUsage(ctx, tx, w.TokenUsage); err != nil {
			return err
		}
		return insertAuditEntry(ctx, tx, w.Audit)
	})
	if err != nil {
		return nil, err
	}
	return usage, nil
}

func (s *PostgresStore) GetBroadcast(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) (*models.Broadcast, error) {
	b, err := scanBroadcast(s.pool.QueryRow(ctx,
		`SELECT `+broadcastColumns+` FROM broadcasts WHERE id = $1 AND tenant_id = $2`, id, tenantID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get broadcast: %w", err)
	}

	if err := s.attachOutputs(ctx, []*models.Broadcast{b}); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *PostgresStore) ListBroadcasts(ctx context.Context, filter BroadcastFilter) ([]*models.Broadcast, int, error) {
	conditions := []string{"tenant_id = $1"}
	args := []any{filter.TenantID}
	argIdx := 2

	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, filter.Status)
		argIdx++
	}
	if !filter.Since.IsZero() {
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", argIdx))
		args = append(args, filter.Since)
		argIdx++
	}

	where := strings.Join(conditions, " AND ")

	var total int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM broadcasts WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count broadcasts: %w", err)
	}

	_, limit, offset := normalizePage(filter.Page, filter.Limit)
	dataQuery := fmt.Sprintf(
		`SELECT `+broadcastColumns+` FROM broadcasts WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		where, argIdx, argIdx+1)
	args = append(args, limit, offset)

	rows, err := s.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list broadcasts: %w", err)
	}
	defer rows.Close()

	var broadcasts []*models.Broadcast
	for rows.Next() {
		b, err := scanBroadcast(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan broadcast: %w", err)
		}
		broadcasts = append(broadcasts, b)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list broadcasts: %w", err)
	}

	if err := s.attachOutputs(ctx, broadcasts); err != nil {
		return nil, 0, err
	}
	return broadcasts, total, nil
}

// attachOutputs loads the outputs of every broadcast in one query.
func (s *PostgresStore) attachOutputs(ctx context.Context, broadcasts []*models.Broadcast) error {
	if len(broadcasts) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, len(broadcasts))
	byID := make(map[uuid.UUID]*models.Broadcast, len(broadcasts))
	for i, b := range broadcasts {
		ids[i] = b.ID
		byID[b.ID] = b
		b.Outputs = []*models.BroadcastOutput{}
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+outputColumns+` FROM broadcast_outputs WHERE broadcast_id = ANY($1) ORDER BY position`, ids)
	if err != nil {
		return fmt.Errorf("list broadcast outputs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		o, err := scanOutput(rows)
		if err != nil {
			return fmt.Errorf("scan broadcast output: %w", err)
		}
		if b, ok := byID[o.BroadcastID]; ok {
			b.Outputs = append(b.Outputs, o)
		}
	}
	return rows.Err()
}

// ListRecentMessages returns the tenant's latest original messages, newest first.
func (s *PostgresStore) ListRecentMessages(ctx context.Context, tenantID uuid.UUID, limit int) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT original_message FROM broadcasts WHERE tenant_id = $1 ORDER BY created_at DESC LIMIT $2`,
		tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent messages: %w", err)
	}
	defer rows.Close()

	messages := []string{}
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, fmt.Errorf("scan recent message: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// DeleteBroadcast removes a broadcast and, through the foreign key cascade, its outputs.
// Ledger counters are not decremented: they count broadcasts created, not retained.
func (s *PostgresStore) DeleteBroadcast(ctx context.Context, id uuid.UUID, tenantID uuid.UUID, audit *models.AuditEntry) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM broadcasts WHERE id = $1 AND tenant_id = $2`, id, tenantID)
		if err != nil {
			return fmt.Errorf("delete broadcast: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return insertAuditEntry(ctx, tx, audit)
	})
}

var validTransitions = map[string][]string{
	models.BroadcastStatusGenerated: {models.BroadcastStatusPublished, models.BroadcastStatusArchived},
	models.BroadcastStatusPublished: {models.BroadcastStatusArchived},
}

func (s *PostgresStore) UpdateBroadcastStatus(ctx context.Context, id uuid.UUID, tenantID uuid.UUID, status string, audit *models.AuditEntry) (*models.Broadcast, error) {
	var updated *models.Broadcast
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		var current string
		err := tx.QueryRow(ctx,
			`SELECT status FROM broadcasts WHERE id = $1 AND tenant_id = $2 FOR UPDATE`, id, tenantID,
		).Scan(&current)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get broadcast status: %w", err)
		}

		valid := false
		for _, a := range validTransitions[current] {
			if a == status {
				valid = true
				break
			}
		}
		if !valid {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, status)
		}

		updated, err = scanBroadcast(tx.QueryRow(ctx,
			`UPDATE broadcasts SET status = $2, updated_at = NOW() WHERE id = $1
			 RETURNING `+broadcastColumns, id, status))
		if err != nil {
			return fmt.Errorf("update broadcast status: %w", err)
		}
		return insertAuditEntry(ctx, tx, audit)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// MarkOutputPublished records publish metadata on an output. It may be set only once.
func (s *PostgresStore) MarkOutputPublished(ctx context.Context, p PublishParams, audit *models.AuditEntry) (*models.BroadcastOutput, error) {
	var out *models.BroadcastOutput
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		var publishedAt *string
		err := tx.QueryRow(ctx,
			`SELECT o.published_at::text FROM broadcast_outputs o
			 JOIN broadcasts b ON b.id = o.broadcast_id
			 WHERE o.id = $1 AND o.broadcast_id = $2 AND b.tenant_id = $3
			 FOR UPDATE OF o`, p.OutputID, p.BroadcastID, p.TenantID,
		).Scan(&publishedAt)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get broadcast output: %w", err)
		}
		if publishedAt != nil {
			return ErrAlreadyPublished
		}

		out, err = scanOutput(tx.QueryRow(ctx,
			`UPDATE broadcast_outputs SET published_at = $2, platform_post_id = $3
			 WHERE id = $1 RETURNING `+outputColumns,
			p.OutputID, p.PublishedAt, p.PlatformPostID))
		if err != nil {
			return fmt.Errorf("mark output published: %w", err)
		}
		return insertAuditEntry(ctx, tx, audit)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// --- Wall Updates ---

const wallColumns = `id, tenant_id, content, image_url, link_url, link_title, slug, is_public, view_count, created_at, updated_at`

func scanWallUpdates(rows pgx.Rows) ([]*models.WallUpdate, error) {
	defer rows.Close()

	updates := []*models.WallUpdate{}
	for rows.Next() {
		var u models.WallUpdate
		if err := rows.Scan(&u.ID, &u.TenantID, &u.Content, &u.ImageURL, &u.LinkURL, &u.LinkTitle,
			&u.Slug, &u.IsPublic, &u.ViewCount, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan wall update: %w", err)
		}
		updates = append(updates, &u)
	}
	return updates, rows.Err()
}

func (s *PostgresStore) CreateWallUpdate(ctx context.Context, u *models.WallUpdate, audit *models.AuditEntry) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO wall_updates (`+wallColumns+`)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			u.ID, u.TenantID, u.Content, u.ImageURL, u.LinkURL, u.LinkTitle,
			u.Slug, u.IsPublic, u.ViewCount, u.CreatedAt, u.UpdatedAt)
		if err != nil {
			if isDuplicateKeyError(err) {
				return ErrDuplicateKey
			}
			return fmt.Errorf("create wall update: %w", err)
		}
		return insertAuditEntry(ctx, tx, audit)
	})
}

func (s *PostgresStore) ListWallUpdates(ctx context.Context, tenantID uuid.UUID, page, limit int) ([]*models.WallUpdate, int, error) {
	var total int
	if err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM wall_updates WHERE tenant_id = $1`, tenantID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count wall updates: %w", err)
	}

	_, limit, offset := normalizePage(page, limit)
	rows, err := s.pool.Query(ctx,
		`SELECT `+wallColumns+` FROM wall_updates WHERE tenant_id = $1
		 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, tenantID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list wall updates: %w", err)
	}
	updates, err := scanWallUpdates(rows)
	if err != nil {
		return nil, 0, err
	}
	return updates, total, nil
}

func (s *PostgresStore) ListPublicWallUpdates(ctx context.Context, tenantID uuid.UUID, limit int) ([]*models.WallUpdate, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+wallColumns+` FROM wall_updates WHERE tenant_id = $1 AND is_public
		 ORDER BY created_at DESC LIMIT $2`, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("list public wall updates: %w", err)
	}
	return scanWallUpdates(rows)
}

func (s *PostgresStore) GetWallUpdate(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) (*models.WallUpdate, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+wallColumns+` FROM wall_updates WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	if err != nil {
		return nil, fmt.Errorf("get wall update: %w", err)
	}
	updates, err := scanWallUpdates(rows)
	if err != nil {
		return nil, err
	}
	if len(updates) == 0 {
		return nil, ErrNotFound
	}
	return updates[0], nil
}

// UpdateWallUpdate applies p and appends the audit entry in one transaction.
// An empty image or link field clears it.
func (s *PostgresStore) UpdateWallUpdate(ctx context.Context, p WallPatch, audit *models.AuditEntry) (*models.WallUpdate, error) {
	var updated *models.WallUpdate
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx,
			`UPDATE wall_updates SET
			   content = COALESCE($3, content),
			   image_url = CASE WHEN $4::text IS NULL THEN image_url ELSE NULLIF($4, '') END,
			   link_url = CASE WHEN $5::text IS NULL THEN link_url ELSE NULLIF($5, '') END,
			   link_title = CASE WHEN $6::text IS NULL THEN link_title ELSE NULLIF($6, '') END,
			   is_public = COALESCE($7, is_public),
			   updated_at = $8
			 WHERE id = $1 AND tenant_id = $2
			 RETURNING `+wallColumns,
			p.ID, p.TenantID, p.Content, p.ImageURL, p.LinkURL, p.LinkTitle, p.IsPublic, p.At)
		if err != nil {
			return fmt.Errorf("update wall update: %w", err)
		}
		updates, err := scanWallUpdates(rows)
		if err != nil {
			return err
		}
		if len(updates) == 0 {
			return ErrNotFound
		}
		updated = updates[0]
		return insertAuditEntry(ctx, tx, audit)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *PostgresStore) DeleteWallUpdate(ctx context.Context, id uuid.UUID, tenantID uuid.UUID, audit *models.AuditEntry) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM wall_updates WHERE id = $1 AND tenant_id = $2`, id, tenantID)
		if err != nil {
			return fmt.Errorf("delete wall update: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return insertAuditEntry(ctx, tx, audit)
	})
}

// WallStats returns all-time totals for the tenant's wall, with RecentUpdates
// and Daily covering updates created since since.
func (s *PostgresStore) WallStats(ctx context.Context, tenantID uuid.UUID, since time.Time) (*models.WallStats, error) {
	st, err := wallOverview(ctx, s.pool, tenantID, since)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx,
		`SELECT to_char(created_at AT TIME ZONE 'UTC', 'YYYY-MM-DD') AS day, COUNT(*), COALESCE(SUM(view_count), 0)
		 FROM wall_updates WHERE tenant_id = $1 AND created_at >= $2
		 GROUP BY day ORDER BY day DESC`, tenantID, since)
	if err != nil {
		return nil, fmt.Errorf("wall daily stats: %w", err)
	}
	defer rows.Close()

	st.Daily = []models.WallDay{}
	for rows.Next() {
		var d models.WallDay
		if err := rows.Scan(&d.Date, &d.Updates, &d.Views); err != nil {
			return nil, fmt.Errorf("scan wall day: %w", err)
		}
		st.Daily = append(st.Daily, d)
	}
	return st, rows.Err()
}

func wallOverview(ctx context.Context, q querier, tenantID uuid.UUID, since time.Time) (*models.WallStats, error) {
	var st models.WallStats
	err := q.QueryRow(ctx,
		`SELECT COUNT(*), COALESCE(SUM(view_count), 0),
		        COUNT(*) FILTER (WHERE image_url IS NOT NULL),
		        COUNT(*) FILTER (WHERE link_url IS NOT NULL),
		        COUNT(*) FILTER (WHERE created_at >= $2)
		 FROM wall_updates WHERE tenant_id = $1`, tenantID, since,
	).Scan(&st.TotalUpdates, &st.TotalViews, &st.WithImages, &st.WithLinks, &st.RecentUpdates)
	if err != nil {
		return nil, fmt.Errorf("wall stats: %w", err)
	}
	return &st, nil
}
