// Package chat implements the content oracle on top of any chat-completion backend.
package chat

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/xbrch/xbrch-saas-platform/pkg/models"
)

// Prompt is a single-turn chat request.
type Prompt struct {
	System      string
	User        string
	MaxTokens   int
	Temperature float64
}

// Completer sends one prompt to a language model and returns the reply text.
type Completer interface {
	Complete(ctx context.Context, p Prompt) (string, error)
	Name() string
	Model() string
}

// Oracle turns the three content operations into prompts and parses the replies.
type Oracle struct {
	completer Completer
}

func NewOracle(c Completer) *Oracle {
	return &Oracle{completer: c}
}

func (o *Oracle) Name() string  { return o.completer.Name() }
func (o *Oracle) Model() string { return o.completer.Model() }

type scoreReply struct {
	Score          *int   `json:"score"`
	Clarity        int    `json:"clarity"`
	PlatformFit    int    `json:"platform_fit"`
	Specificity    int    `json:"specificity"`
	CTAStrength    int    `json:"cta_strength"`
	BrandAlignment int    `json:"brand_alignment"`
	Feedback       string `json:"feedback"`
}

func (o *Oracle) Score(ctx context.Context, req models.ScoreRequest) (models.ScoreResult, error) {
	content, err := o.completer.Complete(ctx, scorePrompt(req))
	if err != nil {
		return models.ScoreResult{}, err
	}

	var reply scoreReply
	if err := decodeJSON(content, &reply); err != nil {
		return models.ScoreResult{}, err
	}
	if reply.Score == nil {
		return models.ScoreResult{}, fmt.Errorf("%w: score missing", ErrInvalidResponse)
	}

	return models.ScoreResult{
		Score:          clamp(*reply.Score, 100),
		Clarity:        clamp(reply.Clarity, 25),
		PlatformFit:    clamp(reply.PlatformFit, 25),
		Specificity:    clamp(reply.Specificity, 20),
		CTAStrength:    clamp(reply.CTAStrength, 15),
		BrandAlignment: clamp(reply.BrandAlignment, 15),
		Feedback:       reply.Feedback,
	}, nil
}

type originalityReply struct {
	OriginalityScore *int     `json:"originality_score"`
	RiskTier         string   `json:"risk_tier"`
	Issues           []string `json:"issues"`
	Suggestions      []string `json:"suggestions"`
}

func (o *Oracle) CheckOriginality(ctx context.Context, req models.OriginalityRequest) (models.OriginalityResult, error) {
	content, err := o.completer.Complete(ctx, originalityPrompt(req))
	if err != nil {
		return models.OriginalityResult{}, err
	}

	var reply originalityReply
	if err := decodeJSON(content, &reply); err != nil {
		return models.OriginalityResult{}, err
	}
	if reply.OriginalityScore == nil {
		return models.OriginalityResult{}, fmt.Errorf("%w: originality_score missing", ErrInvalidResponse)
	}
	if !models.ValidRiskTier(reply.RiskTier) {
		return models.OriginalityResult{}, fmt.Errorf("%w: unknown risk tier %q", ErrInvalidResponse, reply.RiskTier)
	}

	result := models.OriginalityResult{
		OriginalityScore: clamp(*reply.OriginalityScore, 100),
		RiskTier:         reply.RiskTier,
		Issues:           reply.Issues,
		Suggestions:      reply.Suggestions,
	}
	if result.Issues == nil {
		result.Issues = []string{}
	}
	if result.Suggestions == nil {
		result.Suggestions = []string{}
	}
	return result, nil
}

func (o *Oracle) Adapt(ctx context.Context, req models.AdaptRequest) (string, error) {
	content, err := o.completer.Complete(ctx, adaptPrompt(req))
	if err != nil {
		return "", err
	}

	text := CleanText(content)
	if text == "" {
		return "", fmt.Errorf("%w: empty adaptation", ErrInvalidResponse)
	}
	return text, nil
}

func (o *Oracle) Announce(ctx context.Context, req models.AnnouncementRequest) (models.Announcement, error) {
	content, err := o.completer.Complete(ctx, announcementPrompt(req))
	if err != nil {
		return models.Announcement{}, err
	}

	var reply models.Announcement
	if err := decodeJSON(content, &reply); err != nil {
		return models.Announcement{}, err
	}
	if reply.Title == "" || reply.Content == "" {
		return models.Announcement{}, fmt.Errorf("%w: announcement missing title or content", ErrInvalidResponse)
	}
	return reply, nil
}

func (o *Oracle) WriteBlog(ctx context.Context, req models.BlogRequest) (string, error) {
	content, err := o.completer.Complete(ctx, blogPrompt(req))
	if err != nil {
		return "", err
	}

	html := CleanText(content)
	if html == "" {
		return "", fmt.Errorf("%w: empty article", ErrInvalidResponse)
	}
	return html, nil
}

func decodeJSON(content string, v any) error {
	raw := ExtractJSON(content)
	if raw == "" {
		return fmt.Errorf("%w: no JSON object in reply", ErrInvalidResponse)
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return nil
}

func clamp(v, max int) int {
	if v < 0 {
		return 0
	}
	if v > max {
		return max
	}
	return v
}

// Compile-time check that Oracle implements ContentOracle.
var _ models.ContentOracle = (*Oracle)(nil)
