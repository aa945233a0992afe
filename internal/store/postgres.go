package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/xbrch/xbrch-saas-platform/pkg/models"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

var _ Store = (*PostgresStore)(nil)

// querier is satisfied by both the pool and an open transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// withTx runs fn inside a transaction that is committed only if fn returns nil.
func (s *PostgresStore) withTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// --- Tenants ---

const tenantColumns = `id, email, password_hash, role, plan, monthly_limit, is_active, last_login_at, created_at, updated_at`

func scanTenant(row pgx.Row) (*models.Tenant, error) {
	var t models.Tenant
	err := row.Scan(&t.ID, &t.Email, &t.PasswordHash, &t.Role, &t.Plan, &t.MonthlyLimit,
		&t.IsActive, &t.LastLoginAt, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *PostgresStore) CreateTenant(ctx context.Context, t *models.Tenant) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO tenants (`+tenantColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		t.ID, strings.ToLower(t.Email), t.PasswordHash, t.Role, t.Plan, t.MonthlyLimit,
		t.IsActive, t.LastLoginAt, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create tenant: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetTenant(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	t, err := scanTenant(s.pool.QueryRow(ctx,
		`SELECT `+tenantColumns+` FROM tenants WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get tenant: %w", err)
	}
	return t, nil
}

func (s *PostgresStore) GetTenantByEmail(ctx context.Context, email string) (*models.Tenant, error) {
	t, err := scanTenant(s.pool.QueryRow(ctx,
		`SELECT `+tenantColumns+` FROM tenants WHERE email = $1`, strings.ToLower(email)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get tenant by email: %w", err)
	}
	return t, nil
}

func (s *PostgresStore) ListTenants(ctx context.Context, filter TenantFilter) ([]*models.Tenant, int, error) {
	conditions := []string{"TRUE"}
	var args []any
	argIdx := 1

	if filter.Plan != "" {
		conditions = append(conditions, fmt.Sprintf("plan = $%d", argIdx))
		args = append(args, filter.Plan)
		argIdx++
	}
	if filter.Role != "" {
		conditions = append(conditions, fmt.Sprintf("role = $%d", argIdx))
		args = append(args, filter.Role)
		argIdx++
	}

	where := strings.Join(conditions, " AND ")

	var total int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM tenants WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count tenants: %w", err)
	}

	_, limit, offset := normalizePage(filter.Page, filter.Limit)
	dataQuery := fmt.Sprintf(
		`SELECT `+tenantColumns+` FROM tenants WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		where, argIdx, argIdx+1)
	args = append(args, limit, offset)

	rows, err := s.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list tenants: %w", err)
	}
	defer rows.Close()

	var tenants []*models.Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan tenant: %w", err)
		}
		tenants = append(tenants, t)
	}
	return tenants, total, rows.Err()
}

func (s *PostgresStore) UpdateTenantLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE tenants SET last_login_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("update tenant last login: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) UpdateTenantPassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE tenants SET password_hash = $2, updated_at = NOW() WHERE id = $1`, id, passwordHash)
	if err != nil {
		return fmt.Errorf("update tenant password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateTenant applies an operator edit and appends the audit entry in one
// transaction. A taken email returns ErrDuplicateKey.
func (s *PostgresStore) UpdateTenant(ctx context.Context, p TenantPatch, audit *models.AuditEntry) (*models.Tenant, error) {
	var email *string
	if p.Email != nil {
		e := strings.ToLower(strings.TrimSpace(*p.Email))
		email = &e
	}

	var updated *models.Tenant
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		var err error
		updated, err = scanTenant(tx.QueryRow(ctx,
			`UPDATE tenants SET
			   email = COALESCE($2, email),
			   role = COALESCE($3, role),
			   plan = COALESCE($4, plan),
			   monthly_limit = COALESCE($5, monthly_limit),
			   is_active = COALESCE($6, is_active),
			   updated_at = $7
			 WHERE id = $1
			 RETURNING `+tenantColumns,
			p.ID, email, p.Role, p.Plan, p.MonthlyLimit, p.IsActive, p.At))
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		if err != nil {
			return fmt.Errorf("update tenant: %w", err)
		}
		return insertAuditEntry(ctx, tx, audit)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteTenant removes a tenant. Its profile, keys, ledger rows, broadcasts,
// posts, wall and own audit rows go with it through the foreign key cascades.
func (s *PostgresStore) DeleteTenant(ctx context.Context, id uuid.UUID, audit *models.AuditEntry) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM tenants WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("delete tenant: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return insertAuditEntry(ctx, tx, audit)
	})
}

// TenantStats counts tenants by role, plan and activity, and totals ledger
// usage for month across all tenants.
func (s *PostgresStore) TenantStats(ctx context.Context, month string, now time.Time) (*models.TenantStats, error) {
	st := &models.TenantStats{Month: month, ByRole: map[string]int{}, ByPlan: map[string]int{}}

	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*),
		        COUNT(*) FILTER (WHERE is_active),
		        COUNT(*) FILTER (WHERE created_at >= $1),
		        COUNT(*) FILTER (WHERE last_login_at >= $2)
		 FROM tenants`, now.AddDate(0, 0, -30), now.AddDate(0, 0, -7),
	).Scan(&st.Total, &st.Active, &st.NewLast30Days, &st.LoggedInLast7)
	if err != nil {
		return nil, fmt.Errorf("tenant stats: %w", err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT 'role', role, COUNT(*) FROM tenants GROUP BY role
		 UNION ALL
		 SELECT 'plan', plan, COUNT(*) FROM tenants GROUP BY plan`)
	if err != nil {
		return nil, fmt.Errorf("tenant breakdown: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var kind, key string
		var n int
		if err := rows.Scan(&kind, &key, &n); err != nil {
			return nil, fmt.Errorf("scan tenant breakdown: %w", err)
		}
		if kind == "role" {
			st.ByRole[key] = n
		} else {
			st.ByPlan[key] = n
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	err = s.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(broadcasts_used), 0), COALESCE(SUM(ai_tokens_used), 0)
		 FROM usage_ledger WHERE month = $1`, month,
	).Scan(&st.BroadcastsUsed, &st.TokensUsed)
	if err != nil {
		return nil, fmt.Errorf("tenant usage totals: %w", err)
	}
	return st, nil
}

// --- Business Profiles ---

const profileColumns = `tenant_id, name, slug, city, industry, tone, default_cta, website_url, phone, description, created_at, updated_at`

func scanProfile(row pgx.Row) (*models.BusinessProfile, error) {
	var p models.BusinessProfile
	err := row.Scan(&p.TenantID, &p.Name, &p.Slug, &p.City, &p.Industry, &p.Tone,
		&p.DefaultCTA, &p.WebsiteURL, &p.Phone, &p.Description, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PostgresStore) GetBusinessProfile(ctx context.Context, tenantID uuid.UUID) (*models.BusinessProfile, error) {
	p, err := scanProfile(s.pool.QueryRow(ctx,
		`SELECT `+profileColumns+` FROM business_profiles WHERE tenant_id = $1`, tenantID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get business profile: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) GetBusinessProfileBySlug(ctx context.Context, slug string) (*models.BusinessProfile, error) {
	p, err := scanProfile(s.pool.QueryRow(ctx,
		`SELECT `+profileColumns+` FROM business_profiles WHERE slug = $1`, slug))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get business profile by slug: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) UpsertBusinessProfile(ctx context.Context, p *models.BusinessProfile, audit *models.AuditEntry) (*models.BusinessProfile, error) {
	var result *models.BusinessProfile
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		var err error
		result, err = scanProfile(tx.QueryRow(ctx,
			`INSERT INTO business_profiles (`+profileColumns+`)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
			 ON CONFLICT (tenant_id) DO UPDATE SET
			   name = EXCLUDED.name,
			   slug = EXCLUDED.slug,
			   city = EXCLUDED.city,
			   industry = EXCLUDED.industry,
			   tone = EXCLUDED.tone,
			   default_cta = EXCLUDED.default_cta,
			   website_url = EXCLUDED.website_url,
			   phone = EXCLUDED.phone,
			   description = EXCLUDED.description,
			   updated_at = NOW()
			 RETURNING `+profileColumns,
			p.TenantID, p.Name, p.Slug, p.City, p.Industry, p.Tone,
			p.DefaultCTA, p.WebsiteURL, p.Phone, p.Description))
		if err != nil {
			if isDuplicateKeyError(err) {
				return ErrDuplicateKey
			}
			return fmt.Errorf("upsert business profile: %w", err)
		}
		return insertAuditEntry(ctx, tx, audit)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// --- API Keys ---

const apiKeyColumns = `id, tenant_id, name, key_hash, key_prefix, scopes, last_used_at, deleted_at, created_at, updated_at`

func scanAPIKeys(rows pgx.Rows) ([]*models.APIKey, error) {
	defer rows.Close()

	var keys []*models.APIKey
	for rows.Next() {
		var k models.APIKey
		if err := rows.Scan(&k.ID, &k.TenantID, &k.Name, &k.KeyHash, &k.KeyPrefix, &k.Scopes,
			&k.LastUsedAt, &k.DeletedAt, &k.CreatedAt, &k.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		keys = append(keys, &k)
	}
	return keys, rows.Err()
}

func (s *PostgresStore) GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+apiKeyColumns+` FROM api_keys WHERE key_prefix = $1 AND deleted_at IS NULL`, prefix)
	if err != nil {
		return nil, fmt.Errorf("get api key by prefix: %w", err)
	}
	return scanAPIKeys(rows)
}

func (s *PostgresStore) UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET last_used_at = NOW(), updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("update api key last used: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateAPIKey(ctx context.Context, key *models.APIKey) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO api_keys (id, tenant_id, name, key_hash, key_prefix, scopes, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		key.ID, key.TenantID, key.Name, key.KeyHash, key.KeyPrefix, key.Scopes, key.CreatedAt, key.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create api key: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAPIKeys(ctx context.Context, tenantID uuid.UUID) ([]*models.APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+apiKeyColumns+` FROM api_keys WHERE tenant_id = $1 AND deleted_at IS NULL ORDER BY created_at DESC`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	return scanAPIKeys(rows)
}

func (s *PostgresStore) RevokeAPIKey(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET deleted_at = NOW(), updated_at = NOW()
		 WHERE id = $1 AND tenant_id = $2 AND deleted_at IS NULL`, id, tenantID)
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Usage Ledger ---

// GetUsageSnapshot reads the tenant's limit together with the ledger row for month.
// A missing ledger row counts as zero usage.
func (s *PostgresStore) GetUsageSnapshot(ctx context.Context, tenantID uuid.UUID, month string) (*models.UsageSnapshot, error) {
	snap := models.UsageSnapshot{Month: month}
	err := s.pool.QueryRow(ctx,
		`SELECT t.plan, t.monthly_limit, COALESCE(u.broadcasts_used, 0), COALESCE(u.ai_tokens_used, 0)
		 FROM tenants t
		 LEFT JOIN usage_ledger u ON u.tenant_id = t.id AND u.month = $2
		 WHERE t.id = $1`, tenantID, month,
	).Scan(&snap.Plan, &snap.Limit, &snap.Used, &snap.TokensUsed)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get usage snapshot: %w", err)
	}
	return &snap, nil
}

// IncrementUsage adds one broadcast and tokens to the ledger row for month,
// creating it if needed, in a single statement.
func (s *PostgresStore) IncrementUsage(ctx context.Context, tenantID uuid.UUID, month string, tokens int) (*models.UsageEntry, error) {
	return incrementUsage(ctx, s.pool, tenantID, month, tokens)
}

func incrementUsage(ctx context.Context, q querier, tenantID uuid.UUID, month string, tokens int) (*models.UsageEntry, error) {
	var e models.UsageEntry
	err := q.QueryRow(ctx,
		`INSERT INTO usage_ledger (tenant_id, month, broadcasts_used, ai_tokens_used, created_at, updated_at)
		 VALUES ($1, $2, 1, $3, NOW(), NOW())
		 ON CONFLICT (tenant_id, month) DO UPDATE SET
		   broadcasts_used = usage_ledger.broadcasts_used + 1,
		   ai_tokens_used = usage_ledger.ai_tokens_used + EXCLUDED.ai_tokens_used,
		   updated_at = NOW()
		 RETURNING tenant_id, month, broadcasts_used, ai_tokens_used, created_at, updated_at`,
		tenantID, month, tokens,
	).Scan(&e.TenantID, &e.Month, &e.BroadcastsUsed, &e.AITokensUsed, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("increment usage: %w", err)
	}
	return &e, nil
}

// addLedgerTokens adds tokens to the ledger row for month without counting a broadcast.
func addLedgerTokens(ctx context.Context, q querier, tenantID uuid.UUID, month string, tokens int) error {
	_, err := q.Exec(ctx,
		`INSERT INTO usage_ledger (tenant_id, month, broadcasts_used, ai_tokens_used, created_at, updated_at)
		 VALUES ($1, $2, 0, $3, NOW(), NOW())
		 ON CONFLICT (tenant_id, month) DO UPDATE SET
		   ai_tokens_used = usage_ledger.ai_tokens_used + EXCLUDED.ai_tokens_used,
		   updated_at = NOW()`,
		tenantID, month, tokens)
	if err != nil {
		return fmt.Errorf("add ledger tokens: %w", err)
	}
	return nil
}

// insertTokenUsage is a no-op for a nil row.
func insertTokenUsage(ctx context.Context, q querier, tu *models.TokenUsage) error {
	if tu == nil {
		return nil
	}
	_, err := q.Exec(ctx,
		`INSERT INTO ai_token_usage (id, tenant_id, provider, model, prompt_tokens, completion_tokens, total_tokens, operation_type, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		tu.ID, tu.TenantID, tu.Provider, tu.Model, tu.PromptTokens,
		tu.CompletionTokens, tu.TotalTokens, tu.OperationType, tu.CreatedAt)
	if err != nil {
		return fmt.Errorf("record token usage: %w", err)
	}
	return nil
}

// --- Audit Log ---

func (s *PostgresStore) CreateAuditEntry(ctx context.Context, e *models.AuditEntry) error {
	return insertAuditEntry(ctx, s.pool, e)
}

// insertAuditEntry is a no-op for a nil entry so callers can pass an optional audit record.
func insertAuditEntry(ctx context.Context, q querier, e *models.AuditEntry) error {
	if e == nil {
		return nil
	}
	_, err := q.Exec(ctx,
		`INSERT INTO audit_log (id, tenant_id, action, resource_type, resource_id, new_values, ip_address, user_agent, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		e.ID, e.TenantID, e.Action, e.ResourceType, e.ResourceID, e.NewValues,
		e.IPAddress, e.UserAgent, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("create audit entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAuditEntries(ctx context.Context, filter AuditFilter) ([]*models.AuditEntry, error) {
	conditions := []string{"tenant_id = $1"}
	args := []any{filter.TenantID}
	argIdx := 2

	if filter.Action != "" {
		conditions = append(conditions, fmt.Sprintf("action = $%d", argIdx))
		args = append(args, filter.Action)
		argIdx++
	}

	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, fmt.Sprintf(
		`SELECT id, tenant_id, action, resource_type, resource_id, new_values, ip_address, user_agent, created_at
		 FROM audit_log WHERE %s ORDER BY created_at DESC LIMIT $%d`,
		strings.Join(conditions, " AND "), argIdx), args...)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []*models.AuditEntry
	for rows.Next() {
		var e models.AuditEntry
		if err := rows.Scan(&e.ID, &e.TenantID, &e.Action, &e.ResourceType, &e.ResourceID,
			&e.NewValues, &e.IPAddress, &e.UserAgent, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
