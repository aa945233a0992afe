package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	AuditCreateBroadcast = "CREATE_BROADCAST"
	AuditDeleteBroadcast = "DELETE_BROADCAST"
	AuditUpdateBroadcast = "UPDATE_BROADCAST_STATUS"
	AuditPublishOutput   = "PUBLISH_OUTPUT"
	AuditUpdateProfile   = "UPDATE_BUSINESS_PROFILE"
	AuditCreateUser      = "CREATE_USER"
	AuditLogin           = "LOGIN"
	AuditCreateWall      = "CREATE_WALL_UPDATE"
	AuditCreateAPIKey    = "CREATE_API_KEY"
	AuditRevokeAPIKey    = "REVOKE_API_KEY"
	AuditUpdateWall      = "UPDATE_WALL_UPDATE"
	AuditDeleteWall      = "DELETE_WALL_UPDATE"
	AuditCreateAnnounce  = "CREATE_ANNOUNCEMENT"
	AuditCreateBlog      = "CREATE_BLOG"
	AuditUpdatePost      = "UPDATE_WEBSITE_POST"
	AuditDeletePost      = "DELETE_WEBSITE_POST"
	AuditUpdateUser      = "UPDATE_USER"
	AuditDeleteUser      = "DELETE_USER"
)

// Provenance identifies where a mutating request came from.
type Provenance struct {
	IPAddress string
	UserAgent string
}

// AuditEntry is an append-only record of a mutating action.
type AuditEntry struct {
	ID           uuid.UUID      `db:"id"            json:"id"`
	TenantID     *uuid.UUID     `db:"tenant_id"     json:"tenant_id,omitempty"`
	Action       string         `db:"action"        json:"action"`
	ResourceType string         `db:"resource_type" json:"resource_type"`
	ResourceID   *string        `db:"resource_id"   json:"resource_id,omitempty"`
	NewValues    map[string]any `db:"new_values"    json:"new_values,omitempty"`
	IPAddress    string         `db:"ip_address"    json:"ip_address"`
	UserAgent    string         `db:"user_agent"    json:"user_agent"`
	CreatedAt    time.Time      `db:"created_at"    json:"created_at"`
}

// NewAuditEntry builds an entry for an action taken by tenantID on a resource.
func NewAuditEntry(tenantID uuid.UUID, action, resourceType, resourceID string, values map[string]any, p Provenance) *AuditEntry {
	e := &AuditEntry{
		ID:           uuid.New(),
		TenantID:     &tenantID,
		Action:       action,
		ResourceType: resourceType,
		NewValues:    values,
		IPAddress:    p.IPAddress,
		UserAgent:    p.UserAgent,
		CreatedAt:    time.Now().UTC(),
	}
	if resourceID != "" {
		e.ResourceID = &resourceID
	}
	return e
}

// At overrides the entry's timestamp, for callers that freeze the clock once
// per operation.
func (e *AuditEntry) At(t time.Time) *AuditEntry {
	e.CreatedAt = t
	return e
}
