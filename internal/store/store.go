package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/xbrch/xbrch-saas-platform/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")
var ErrInvalidTransition = errors.New("invalid status transition")
var ErrAlreadyPublished = errors.New("output already published")

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error

	CreateTenant(ctx context.Context, t *models.Tenant) error
	GetTenant(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
	GetTenantByEmail(ctx context.Context, email string) (*models.Tenant, error)
	ListTenants(ctx context.Context, filter TenantFilter) ([]*models.Tenant, int, error)
	UpdateTenantLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
	UpdateTenantPassword(ctx context.Context, id uuid.UUID, passwordHash string) error

	GetBusinessProfile(ctx context.Context, tenantID uuid.UUID) (*models.BusinessProfile, error)
	GetBusinessProfileBySlug(ctx context.Context, slug string) (*models.BusinessProfile, error)
	UpsertBusinessProfile(ctx context.Context, p *models.BusinessProfile, audit *models.AuditEntry) (*models.BusinessProfile, error)

	GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error
	CreateAPIKey(ctx context.Context, key *models.APIKey) error
	ListAPIKeys(ctx context.Context, tenantID uuid.UUID) ([]*models.APIKey, error)
	RevokeAPIKey(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) error

	GetUsageSnapshot(ctx context.Context, tenantID uuid.UUID, month string) (*models.UsageSnapshot, error)
	IncrementUsage(ctx context.Context, tenantID uuid.UUID, month string, tokens int) (*models.UsageEntry, error)

	CreateBroadcast(ctx context.Context, w BroadcastWrite) (*models.UsageEntry, error)
	GetBroadcast(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) (*models.Broadcast, error)
	ListBroadcasts(ctx context.Context, filter BroadcastFilter) ([]*models.Broadcast, int, error)
	ListRecentMessages(ctx context.Context, tenantID uuid.UUID, limit int) ([]string, error)
	DeleteBroadcast(ctx context.Context, id uuid.UUID, tenantID uuid.UUID, audit *models.AuditEntry) error
	UpdateBroadcastStatus(ctx context.Context, id uuid.UUID, tenantID uuid.UUID, status string, audit *models.AuditEntry) (*models.Broadcast, error)
	MarkOutputPublished(ctx context.Context, p PublishParams, audit *models.AuditEntry) (*models.BroadcastOutput, error)

	CreateAuditEntry(ctx context.Context, e *models.AuditEntry) error
	ListAuditEntries(ctx context.Context, filter AuditFilter) ([]*models.AuditEntry, error)

	CreateWallUpdate(ctx context.Context, u *models.WallUpdate, audit *models.AuditEntry) error
	GetWallUpdate(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) (*models.WallUpdate, error)
	ListWallUpdates(ctx context.Context, tenantID uuid.UUID, page, limit int) ([]*models.WallUpdate, int, error)
	ListPublicWallUpdates(ctx context.Context, tenantID uuid.UUID, limit int) ([]*models.WallUpdate, error)
	UpdateWallUpdate(ctx context.Context, p WallPatch, audit *models.AuditEntry) (*models.WallUpdate, error)
	DeleteWallUpdate(ctx context.Context, id uuid.UUID, tenantID uuid.UUID, audit *models.AuditEntry) error
	WallStats(ctx context.Context, tenantID uuid.UUID, since time.Time) (*models.WallStats, error)

	CreateWebsitePost(ctx context.Context, w WebsitePostWrite) error
	GetWebsitePost(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) (*models.WebsitePost, error)
	ListWebsitePosts(ctx context.Context, filter PostFilter) ([]*models.WebsitePost, int, error)
	UpdateWebsitePost(ctx context.Context, p PostPatch, audit *models.AuditEntry) (*models.WebsitePost, error)
	DeleteWebsitePost(ctx context.Context, id uuid.UUID, tenantID uuid.UUID, audit *models.AuditEntry) error
	WebsiteStats(ctx context.Context, tenantID uuid.UUID, since time.Time) (*models.WebsiteStats, error)

	TokenUsageReport(ctx context.Context, tenantID uuid.UUID, since time.Time) (*models.TokenReport, error)
	Dashboard(ctx context.Context, tenantID uuid.UUID, month string, since time.Time) (*models.Dashboard, error)

	UpdateTenant(ctx context.Context, p TenantPatch, audit *models.AuditEntry) (*models.Tenant, error)
	DeleteTenant(ctx context.Context, id uuid.UUID, audit *models.AuditEntry) error
	TenantStats(ctx context.Context, month string, now time.Time) (*models.TenantStats, error)
}

// WebsitePostWrite is a generated post persisted in one transaction with its
// token usage row, the ledger token increment for Month and the audit entry.
// Website posts do not count against the broadcast quota.
type WebsitePostWrite struct {
	Post       *models.WebsitePost
	Month      string
	TokenUsage *models.TokenUsage
	Audit      *models.AuditEntry
}

type PostFilter struct {
	TenantID uuid.UUID
	Type     string
	Status   string
	Page     int
	Limit    int
}

// PostPatch is a partial website post update. Nil fields are left unchanged.
type PostPatch struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	Title     *string
	Content   *string
	WordCount *int
	Status    *string
	At        time.Time
}

// WallPatch is a partial wall update edit. Nil fields are left unchanged.
type WallPatch struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	Content   *string
	ImageURL  *string
	LinkURL   *string
	LinkTitle *string
	IsPublic  *bool
	At        time.Time
}

// TenantPatch is an operator edit of a tenant. Nil fields are left unchanged.
type TenantPatch struct {
	ID           uuid.UUID
	Email        *string
	Role         *string
	Plan         *string
	MonthlyLimit *int
	IsActive     *bool
	At           time.Time
}

// BroadcastWrite is everything persisted for one created broadcast. It is
// applied in a single transaction: the broadcast and its outputs, the ledger
// increment for Month, the token usage row and the audit entry.
type BroadcastWrite struct {
	Broadcast  *models.Broadcast
	Month      string
	Tokens     int
	TokenUsage *models.TokenUsage
	Audit      *models.AuditEntry
}

type BroadcastFilter struct {
	TenantID uuid.UUID
	Status   string
	Since    time.Time
	Page     int
	Limit    int
}

type TenantFilter struct {
	Plan  string
	Role  string
	Page  int
	Limit int
}

type AuditFilter struct {
	TenantID uuid.UUID
	Action   string
	Limit    int
}

type PublishParams struct {
	BroadcastID    uuid.UUID
	OutputID       uuid.UUID
	TenantID       uuid.UUID
	PlatformPostID string
	PublishedAt    time.Time
}

// normalizePage applies the default and maximum page size used by every list query.
func normalizePage(page, limit int) (int, int, int) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if page <= 0 {
		page = 1
	}
	return page, limit, (page - 1) * limit
}
