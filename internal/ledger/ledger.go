// Package ledger enforces per-tenant monthly broadcast quotas.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/xbrch/xbrch-saas-platform/pkg/models"
)

const monthLayout = "2006-01"

// MonthKey returns the ledger month ("YYYY-MM") that t falls in, in UTC.
// Callers compute it once per operation so every ledger effect lands in the same month.
func MonthKey(t time.Time) string {
	return t.UTC().Format(monthLayout)
}

// Store is the subset of store.Store the ledger needs.
type Store interface {
	GetUsageSnapshot(ctx context.Context, tenantID uuid.UUID, month string) (*models.UsageSnapshot, error)
	IncrementUsage(ctx context.Context, tenantID uuid.UUID, month string, tokens int) (*models.UsageEntry, error)
}

// Ledger reads and records monthly usage.
type Ledger struct {
	store Store
}

func New(s Store) *Ledger {
	return &Ledger{store: s}
}

// Remaining returns the tenant's usage for month. Remaining may be zero or
// negative when the tenant is at or over its limit.
func (l *Ledger) Remaining(ctx context.Context, tenantID uuid.UUID, month string) (*models.UsageSnapshot, error) {
	snap, err := l.store.GetUsageSnapshot(ctx, tenantID, month)
	if err != nil {
		return nil, fmt.Errorf("read usage: %w", err)
	}
	snap.Remaining = snap.Limit - snap.Used
	return snap, nil
}

// Record counts one broadcast and tokens against month. The increment is a single
// atomic upsert in the store, so concurrent calls never lose updates.
// Broadcasts created through the API increment inside their own write
// transaction instead; Record is for usage with no other row to write.
func (l *Ledger) Record(ctx context.Context, tenantID uuid.UUID, month string, tokens int) (*models.UsageEntry, error) {
	entry, err := l.store.IncrementUsage(ctx, tenantID, month, tokens)
	if err != nil {
		return nil, fmt.Errorf("record usage: %w", err)
	}
	return entry, nil
}

// Exhausted reports whether no broadcasts remain in snap.
func Exhausted(snap *models.UsageSnapshot) bool {
	return snap.Remaining <= 0
}

// After returns the snapshot that results from applying entry to snap.
func After(snap *models.UsageSnapshot, entry *models.UsageEntry) *models.UsageSnapshot {
	return &models.UsageSnapshot{
		Month:      entry.Month,
		Plan:       snap.Plan,
		Used:       entry.BroadcastsUsed,
		Limit:      snap.Limit,
		Remaining:  snap.Limit - entry.BroadcastsUsed,
		TokensUsed: entry.AITokensUsed,
	}
}
