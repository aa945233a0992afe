// Package models contains shared data models used across the XBRCH codebase.
package models

import "context"

// Risk tiers returned by an originality check.
const (
	RiskLow      = "Low"
	RiskMinor    = "Minor"
	RiskModerate = "Moderate"
	RiskHigh     = "High Risk"
)

// ValidRiskTier reports whether tier is one of the known risk tiers.
func ValidRiskTier(tier string) bool {
	switch tier {
	case RiskLow, RiskMinor, RiskModerate, RiskHigh:
		return true
	}
	return false
}

// ContentOracle is the interface every AI integration implements.
// Handlers and services depend on this interface, never on a concrete provider.
type ContentOracle interface {
	// Score rates a message for a platform in the context of a business profile.
	Score(ctx context.Context, req ScoreRequest) (ScoreResult, error)
	// CheckOriginality compares a message against the tenant's recent messages.
	CheckOriginality(ctx context.Context, req OriginalityRequest) (OriginalityResult, error)
	// Adapt rewrites a message for one platform.
	Adapt(ctx context.Context, req AdaptRequest) (string, error)
	// Announce turns a message into a website announcement.
	Announce(ctx context.Context, req AnnouncementRequest) (Announcement, error)
	// WriteBlog drafts an HTML blog article on a topic.
	WriteBlog(ctx context.Context, req BlogRequest) (string, error)
	// Name returns the provider identifier (e.g., "openai", "anthropic").
	Name() string
	// Model returns the model the provider is configured with.
	Model() string
}

type ScoreRequest struct {
	Message  string
	Platform string
	Profile  BusinessProfile
}

// ScoreResult is a 0-100 quality score with its breakdown.
type ScoreResult struct {
	Score          int    `json:"score"`
	Clarity        int    `json:"clarity"`
	PlatformFit    int    `json:"platform_fit"`
	Specificity    int    `json:"specificity"`
	CTAStrength    int    `json:"cta_strength"`
	BrandAlignment int    `json:"brand_alignment"`
	Feedback       string `json:"feedback"`
	Fallback       bool   `json:"fallback,omitempty"`
}

type OriginalityRequest struct {
	Message string
	History []string // Most recent first
}

type OriginalityResult struct {
	OriginalityScore int      `json:"originality_score"`
	RiskTier         string   `json:"risk_tier"`
	Issues           []string `json:"issues"`
	Suggestions      []string `json:"suggestions"`
	Fallback         bool     `json:"fallback,omitempty"`
}

type AdaptRequest struct {
	Message  string
	Platform string
	Profile  BusinessProfile
}
