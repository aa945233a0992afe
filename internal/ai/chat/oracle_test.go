package chat

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xbrch/xbrch-saas-platform/pkg/models"
)

type stubCompleter struct {
	reply   string
	err     error
	prompts []Prompt
}

func (s *stubCompleter) Complete(_ context.Context, p Prompt) (string, error) {
	s.prompts = append(s.prompts, p)
	return s.reply, s.err
}

func (s *stubCompleter) Name() string  { return "stub" }
func (s *stubCompleter) Model() string { return "stub-1" }

var bakery = models.BusinessProfile{Name: "Corner Bakery", City: "Austin", Industry: "food", Tone: "friendly"}

func TestScore_ParsesFencedJSON(t *testing.T) {
	c := &stubCompleter{reply: "Here you go:\n```json\n{\"score\": 88, \"clarity\": 23, \"platform_fit\": 21, \"specificity\": 17, \"cta_strength\": 13, \"brand_alignment\": 14, \"feedback\": \"Strong hook.\",}\n```"}
	o := NewOracle(c)

	got, err := o.Score(context.Background(), models.ScoreRequest{Message: "Grand opening!", Platform: models.PlatformX, Profile: bakery})
	require.NoError(t, err)
	assert.Equal(t, 88, got.Score)
	assert.Equal(t, 23, got.Clarity)
	assert.Equal(t, "Strong hook.", got.Feedback)
	assert.False(t, got.Fallback)

	require.Len(t, c.prompts, 1)
	assert.Contains(t, c.prompts[0].User, "Corner Bakery")
	assert.Contains(t, c.prompts[0].User, "280 characters")
	assert.Contains(t, c.prompts[0].User, "Grand opening!")
}

func TestScore_ClampsOutOfRange(t *testing.T) {
	o := NewOracle(&stubCompleter{reply: `{"score": 140, "clarity": -3, "platform_fit": 99}`})

	got, err := o.Score(context.Background(), models.ScoreRequest{Message: "x"})
	require.NoError(t, err)
	assert.Equal(t, 100, got.Score)
	assert.Equal(t, 0, got.Clarity)
	assert.Equal(t, 25, got.PlatformFit)
}

func TestScore_InvalidReplies(t *testing.T) {
	replies := []string{
		"I cannot rate this.",
		`{"clarity": 20}`,
		`{"score": "high"}`,
	}
	for _, reply := range replies {
		_, err := NewOracle(&stubCompleter{reply: reply}).Score(context.Background(), models.ScoreRequest{})
		assert.True(t, errors.Is(err, ErrInvalidResponse), "reply %q", reply)
	}
}

func TestScore_PropagatesCompleterError(t *testing.T) {
	_, err := NewOracle(&stubCompleter{err: ErrProviderUnavailable}).Score(context.Background(), models.ScoreRequest{})
	assert.ErrorIs(t, err, ErrProviderUnavailable)
}

func TestCheckOriginality(t *testing.T) {
	c := &stubCompleter{reply: `{"originality_score": 64, "risk_tier": "Moderate", "issues": ["Similar to a post from last week"]}`}
	o := NewOracle(c)

	got, err := o.CheckOriginality(context.Background(), models.OriginalityRequest{
		Message: "Fresh bread daily",
		History: []string{"Fresh bread every day", "Weekend sale"},
	})
	require.NoError(t, err)
	assert.Equal(t, 64, got.OriginalityScore)
	assert.Equal(t, models.RiskModerate, got.RiskTier)
	assert.Equal(t, []string{"Similar to a post from last week"}, got.Issues)
	assert.Equal(t, []string{}, got.Suggestions)

	assert.Contains(t, c.prompts[0].User, "1. Fresh bread every day")
	assert.Contains(t, c.prompts[0].User, "2. Weekend sale")
}

func TestCheckOriginality_NoHistory(t *testing.T) {
	c := &stubCompleter{reply: `{"originality_score": 90, "risk_tier": "Low"}`}
	_, err := NewOracle(c).CheckOriginality(context.Background(), models.OriginalityRequest{Message: "hi"})
	require.NoError(t, err)
	assert.Contains(t, c.prompts[0].User, "(none)")
}

func TestCheckOriginality_UnknownTier(t *testing.T) {
	o := NewOracle(&stubCompleter{reply: `{"originality_score": 50, "risk_tier": "Spicy"}`})

	_, err := o.CheckOriginality(context.Background(), models.OriginalityRequest{Message: "hi"})
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func TestAdapt(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  string
	}{
		{"plain", "Grand opening Saturday! 🎉 #Austin", "Grand opening Saturday! 🎉 #Austin"},
		{"quoted", `"Grand opening Saturday!"`, "Grand opening Saturday!"},
		{"fenced", "```\nGrand opening Saturday!\n```", "Grand opening Saturday!"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewOracle(&stubCompleter{reply: tt.reply}).Adapt(context.Background(),
				models.AdaptRequest{Message: "Grand opening!", Platform: models.PlatformX, Profile: bakery})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAdapt_EmptyReply(t *testing.T) {
	_, err := NewOracle(&stubCompleter{reply: "  \n "}).Adapt(context.Background(), models.AdaptRequest{Message: "x"})
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func TestAdaptPrompt_UsesPlatformGuide(t *testing.T) {
	for _, p := range models.Platforms {
		prompt := adaptPrompt(models.AdaptRequest{Message: "m", Platform: p, Profile: bakery})
		assert.True(t, strings.Contains(prompt.User, platformGuides[p]), "platform %s", p)
	}
}

func TestExtractJSON(t *testing.T) {
	assert.Equal(t, `{"a": 1}`, ExtractJSON("prefix {\"a\": 1} suffix"))
	assert.Equal(t, `{"a": [1, 2]}`, ExtractJSON(`{"a": [1, 2,],}`))
	assert.Equal(t, "", ExtractJSON("no json here"))
}

func TestAnnounce(t *testing.T) {
	sc := &stubCompleter{reply: "```json\n" + `{"title": "Grand Opening in Austin", "content": "<p>Join us.</p>", ` +
		`"metaDescription": "Corner Bakery opens Saturday", "metaKeywords": "bakery, austin", "cta": "Visit"}` + "\n```"}

	got, err := NewOracle(sc).Announce(context.Background(),
		models.AnnouncementRequest{Message: "We open Saturday", Profile: bakery})
	require.NoError(t, err)
	assert.Equal(t, "Grand Opening in Austin", got.Title)
	assert.Equal(t, "<p>Join us.</p>", got.Content)
	assert.Equal(t, "bakery, austin", got.MetaKeywords)
	assert.False(t, got.Fallback)

	require.Len(t, sc.prompts, 1)
	assert.Contains(t, sc.prompts[0].User, "We open Saturday")
	assert.Contains(t, sc.prompts[0].User, "Corner Bakery")
	assert.Equal(t, 500, sc.prompts[0].MaxTokens)
}

func TestAnnounce_MissingFields(t *testing.T) {
	_, err := NewOracle(&stubCompleter{reply: `{"title": "", "content": "<p>x</p>"}`}).Announce(context.Background(),
		models.AnnouncementRequest{Message: "x"})
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func TestWriteBlog(t *testing.T) {
	sc := &stubCompleter{reply: "```html\n<h1>Sourdough 101</h1>\n<p>Flour, water, salt.</p>\n```"}

	got, err := NewOracle(sc).WriteBlog(context.Background(), models.BlogRequest{Topic: "sourdough", Profile: bakery})
	require.NoError(t, err)
	assert.Equal(t, "<h1>Sourdough 101</h1>\n<p>Flour, water, salt.</p>", got)
	assert.Contains(t, sc.prompts[0].User, "Topic: sourdough")
	assert.Contains(t, sc.prompts[0].User, "META:Keywords")
}

func TestWriteBlog_Errors(t *testing.T) {
	_, err := NewOracle(&stubCompleter{reply: " "}).WriteBlog(context.Background(), models.BlogRequest{Topic: "x"})
	assert.ErrorIs(t, err, ErrInvalidResponse)

	boom := errors.New("boom")
	_, err = NewOracle(&stubCompleter{err: boom}).WriteBlog(context.Background(), models.BlogRequest{Topic: "x"})
	assert.ErrorIs(t, err, boom)
}
