package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

const (
	PlanFree      = "free"
	PlanPro       = "pro"
	PlanAuthority = "authority"
)

// Tenant represents a registered business account. Every other entity belongs to a tenant,
// and the monthly broadcast quota is enforced per tenant.
type Tenant struct {
	ID           uuid.UUID  `db:"id"            json:"id"`
	Email        string     `db:"email"         json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	Role         string     `db:"role"          json:"role"`
	Plan         string     `db:"plan"          json:"plan"`
	MonthlyLimit int        `db:"monthly_limit" json:"monthly_limit"`
	IsActive     bool       `db:"is_active"     json:"is_active"`
	LastLoginAt  *time.Time `db:"last_login_at" json:"last_login_at,omitempty"`
	CreatedAt    time.Time  `db:"created_at"    json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"    json:"updated_at"`
}

// BusinessProfile is the brand context handed to the content oracle.
type BusinessProfile struct {
	TenantID    uuid.UUID `db:"tenant_id"   json:"-"`
	Name        string    `db:"name"        json:"name"`
	Slug        string    `db:"slug"        json:"slug"`
	City        string    `db:"city"        json:"city"`
	Industry    string    `db:"industry"    json:"industry"`
	Tone        string    `db:"tone"        json:"tone"`
	DefaultCTA  string    `db:"default_cta" json:"default_cta"`
	WebsiteURL  string    `db:"website_url" json:"website_url"`
	Phone       string    `db:"phone"       json:"phone"`
	Description string    `db:"description" json:"description"`
	CreatedAt   time.Time `db:"created_at"  json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"  json:"updated_at"`
}

// DefaultBusinessProfile is used when a tenant has not filled in a profile yet.
func DefaultBusinessProfile() BusinessProfile {
	return BusinessProfile{
		Name:     "Business",
		City:     "Unknown",
		Industry: "general",
		Tone:     "professional",
	}
}

// Tones accepted for a business profile.
var Tones = []string{"professional", "casual", "friendly", "formal"}
