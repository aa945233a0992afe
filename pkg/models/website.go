package models

import (
	"time"

	"github.com/google/uuid"
)

// Website post types.
const (
	PostTypeAnnouncement = "announcement"
	PostTypeBlog         = "blog"
)

// Website post statuses.
const (
	PostStatusDraft     = "draft"
	PostStatusPublished = "published"
	PostStatusArchived  = "archived"
)

// ValidPostStatus reports whether s is a known website post status.
func ValidPostStatus(s string) bool {
	switch s {
	case PostStatusDraft, PostStatusPublished, PostStatusArchived:
		return true
	}
	return false
}

// WebsitePost is an announcement or blog article generated for a tenant's website.
// Content is sanitized HTML.
type WebsitePost struct {
	ID              uuid.UUID  `db:"id"               json:"id"`
	TenantID        uuid.UUID  `db:"tenant_id"        json:"-"`
	Type            string     `db:"type"             json:"type"`
	Title           string     `db:"title"            json:"title"`
	Content         string     `db:"content"          json:"content"`
	Slug            string     `db:"slug"             json:"slug"`
	MetaDescription string     `db:"meta_description" json:"meta_description"`
	MetaKeywords    string     `db:"meta_keywords"    json:"meta_keywords"`
	Status          string     `db:"status"           json:"status"`
	WordCount       int        `db:"word_count"       json:"word_count"`
	PublishedAt     *time.Time `db:"published_at"     json:"published_at,omitempty"`
	CreatedAt       time.Time  `db:"created_at"       json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at"       json:"updated_at"`
}

// AnnouncementRequest asks the oracle for a website announcement.
type AnnouncementRequest struct {
	Message string
	Profile BusinessProfile
}

// Announcement is a generated website announcement. Content is HTML.
type Announcement struct {
	Title           string `json:"title"`
	Content         string `json:"content"`
	MetaDescription string `json:"metaDescription"`
	MetaKeywords    string `json:"metaKeywords"`
	CTA             string `json:"cta"`
	Fallback        bool   `json:"-"`
}

// BlogRequest asks the oracle for a blog article on a topic.
type BlogRequest struct {
	Topic   string
	Profile BusinessProfile
}

// PostTypeStats summarizes one post type.
type PostTypeStats struct {
	Type       string  `json:"type"`
	Count      int     `json:"count"`
	Published  int     `json:"published"`
	TotalWords int     `json:"total_words"`
	AvgWords   float64 `json:"avg_words"`
}

// WebsiteStats summarizes a tenant's website posts.
type WebsiteStats struct {
	ByType      []PostTypeStats `json:"by_type"`
	RecentPosts int             `json:"recent_posts"`
}
