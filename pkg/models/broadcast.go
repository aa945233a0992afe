package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	BroadcastStatusGenerated = "generated"
	BroadcastStatusPublished = "published"
	BroadcastStatusArchived  = "archived"
)

// Platform identifiers a broadcast can be adapted for.
const (
	PlatformX         = "x"
	PlatformFacebook  = "facebook"
	PlatformLinkedIn  = "linkedin"
	PlatformInstagram = "instagram"
	PlatformWhatsApp  = "whatsapp"
	PlatformSMS       = "sms"
)

// Platforms lists every supported platform in display order.
var Platforms = []string{
	PlatformX, PlatformFacebook, PlatformLinkedIn,
	PlatformInstagram, PlatformWhatsApp, PlatformSMS,
}

// ValidPlatform reports whether p is one of Platforms.
func ValidPlatform(p string) bool {
	for _, known := range Platforms {
		if p == known {
			return true
		}
	}
	return false
}

// Broadcast is one submitted message and its AI evaluation.
type Broadcast struct {
	ID               uuid.UUID          `db:"id"                json:"id"`
	TenantID         uuid.UUID          `db:"tenant_id"         json:"tenant_id"`
	OriginalMessage  string             `db:"original_message"  json:"original_message"`
	Score            int                `db:"score"             json:"score"`
	ConfidenceBadge  string             `db:"confidence_badge"  json:"confidence_badge"`
	OriginalityScore int                `db:"originality_score" json:"originality_score"`
	Status           string             `db:"status"            json:"status"`
	CreatedAt        time.Time          `db:"created_at"        json:"created_at"`
	UpdatedAt        time.Time          `db:"updated_at"        json:"updated_at"`
	Outputs          []*BroadcastOutput `db:"-"                 json:"outputs,omitempty"`
}

// BroadcastOutput is the adaptation of a broadcast for a single platform.
// Content never changes after creation; publish metadata is recorded once.
type BroadcastOutput struct {
	ID              uuid.UUID      `db:"id"               json:"id"`
	BroadcastID     uuid.UUID      `db:"broadcast_id"     json:"broadcast_id"`
	Platform        string         `db:"platform"         json:"platform"`
	Content         string         `db:"content"          json:"content"`
	CharacterCount  int            `db:"character_count"  json:"character_count"`
	PublishedAt     *time.Time     `db:"published_at"     json:"published_at,omitempty"`
	PlatformPostID  *string        `db:"platform_post_id" json:"platform_post_id,omitempty"`
	EngagementStats map[string]int `db:"engagement_stats" json:"engagement_stats,omitempty"`
	CreatedAt       time.Time      `db:"created_at"       json:"created_at"`
}
