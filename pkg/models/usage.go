package models

import (
	"time"

	"github.com/google/uuid"
)

// UsageEntry is one row of the usage ledger, keyed by tenant and calendar month ("YYYY-MM").
type UsageEntry struct {
	TenantID       uuid.UUID `db:"tenant_id"       json:"-"`
	Month          string    `db:"month"           json:"month"`
	BroadcastsUsed int       `db:"broadcasts_used" json:"broadcasts_used"`
	AITokensUsed   int       `db:"ai_tokens_used"  json:"ai_tokens_used"`
	CreatedAt      time.Time `db:"created_at"      json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"      json:"updated_at"`
}

// TokenUsage records the estimated token spend of one oracle-backed operation.
type TokenUsage struct {
	ID               uuid.UUID `db:"id"                json:"id"`
	TenantID         uuid.UUID `db:"tenant_id"         json:"tenant_id"`
	Provider         string    `db:"provider"          json:"provider"`
	Model            string    `db:"model"             json:"model"`
	PromptTokens     int       `db:"prompt_tokens"     json:"prompt_tokens"`
	CompletionTokens int       `db:"completion_tokens" json:"completion_tokens"`
	TotalTokens      int       `db:"total_tokens"      json:"total_tokens"`
	OperationType    string    `db:"operation_type"    json:"operation_type"`
	CreatedAt        time.Time `db:"created_at"        json:"created_at"`
}

// UsageSnapshot is a tenant's position against its monthly quota.
type UsageSnapshot struct {
	Month      string `json:"month"`
	Plan       string `json:"plan"`
	Used       int    `json:"used"`
	Limit      int    `json:"limit"`
	Remaining  int    `json:"remaining"`
	TokensUsed int    `json:"ai_tokens_used"`
}
