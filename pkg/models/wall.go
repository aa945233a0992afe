package models

import (
	"time"

	"github.com/google/uuid"
)

// WallUpdate is a short post shown on a tenant's public broadcast wall.
type WallUpdate struct {
	ID        uuid.UUID `db:"id"         json:"id"`
	TenantID  uuid.UUID `db:"tenant_id"  json:"-"`
	Content   string    `db:"content"    json:"content"`
	ImageURL  *string   `db:"image_url"  json:"image_url,omitempty"`
	LinkURL   *string   `db:"link_url"   json:"link_url,omitempty"`
	LinkTitle *string   `db:"link_title" json:"link_title,omitempty"`
	Slug      string    `db:"slug"       json:"slug"`
	IsPublic  bool      `db:"is_public"  json:"is_public"`
	ViewCount int       `db:"view_count" json:"view_count"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// PublicWall is the public view of a tenant's wall.
type PublicWall struct {
	Business BusinessProfile `json:"business"`
	Updates  []*WallUpdate   `json:"updates"`
}
