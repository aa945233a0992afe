package models

import "time"

// TokenUsageRow aggregates ai_token_usage for one month, operation and provider.
type TokenUsageRow struct {
	Month            string `json:"month"`
	Operation        string `json:"operation"`
	Provider         string `json:"provider"`
	Requests         int    `json:"requests"`
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
	TotalTokens      int    `json:"total_tokens"`
}

// TokenReport is a tenant's estimated token spend since a point in time.
type TokenReport struct {
	Since         time.Time       `json:"since"`
	Rows          []TokenUsageRow `json:"rows"`
	TotalRequests int             `json:"total_requests"`
	TotalTokens   int             `json:"total_tokens"`
}

// BroadcastStats summarizes a tenant's broadcasts.
type BroadcastStats struct {
	Total     int     `json:"total"`
	AvgScore  float64 `json:"avg_score"`
	HighScore int     `json:"high_score"` // score >= 80
	LowRisk   int     `json:"low_risk"`
	Published int     `json:"published"`
}

type PlatformStats struct {
	Platform  string  `json:"platform"`
	Outputs   int     `json:"outputs"`
	AvgLength float64 `json:"avg_length"`
}

type WallDay struct {
	Date    string `json:"date"` // YYYY-MM-DD, UTC
	Updates int    `json:"updates"`
	Views   int    `json:"views"`
}

// WallStats summarizes a tenant's wall. Daily covers the stats window only.
type WallStats struct {
	TotalUpdates  int       `json:"total_updates"`
	TotalViews    int       `json:"total_views"`
	WithImages    int       `json:"with_images"`
	WithLinks     int       `json:"with_links"`
	RecentUpdates int       `json:"recent_updates"`
	Daily         []WallDay `json:"daily,omitempty"`
}

// Activity is one recent item on the dashboard. Score is the broadcast score,
// the post word count or the wall view count depending on Type.
type Activity struct {
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Score     int       `json:"score"`
	CreatedAt time.Time `json:"created_at"`
}

// Dashboard is the tenant analytics overview.
type Dashboard struct {
	Usage      *UsageSnapshot  `json:"usage"`
	Broadcasts BroadcastStats  `json:"broadcasts"`
	Platforms  []PlatformStats `json:"platforms"`
	Website    []PostTypeStats `json:"website"`
	Wall       WallStats       `json:"wall"`
	Recent     []Activity      `json:"recent_activity"`
}

// TenantStats is the operator overview of all tenants.
type TenantStats struct {
	Total          int            `json:"total"`
	Active         int            `json:"active"`
	NewLast30Days  int            `json:"new_last_30_days"`
	LoggedInLast7  int            `json:"logged_in_last_7_days"`
	ByRole         map[string]int `json:"by_role"`
	ByPlan         map[string]int `json:"by_plan"`
	Month          string         `json:"month"`
	BroadcastsUsed int            `json:"broadcasts_used"`
	TokensUsed     int            `json:"ai_tokens_used"`
}
