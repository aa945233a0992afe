package ai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/net/html"

	"github.com/xbrch/xbrch-saas-platform/internal/metrics"
	"github.com/xbrch/xbrch-saas-platform/pkg/models"
)

const (
	maxHistoryEntryBytes = 500
	maxFeedbackBytes     = 1000
	maxAdaptationBytes   = 4000
	maxArticleBytes      = 64 << 10
)

// FallbackScore is returned when scoring fails for any reason.
func FallbackScore() models.ScoreResult {
	return models.ScoreResult{
		Score:          75,
		Clarity:        22,
		PlatformFit:    19,
		Specificity:    15,
		CTAStrength:    11,
		BrandAlignment: 8,
		Feedback:       "Auto-scored due to AI error",
		Fallback:       true,
	}
}

// FallbackOriginality is returned when the originality check fails for any reason.
func FallbackOriginality() models.OriginalityResult {
	return models.OriginalityResult{
		OriginalityScore: 70,
		RiskTier:         models.RiskMinor,
		Issues:           []string{"Unable to perform full originality check"},
		Suggestions:      []string{"Review for uniqueness"},
		Fallback:         true,
	}
}

// FallbackAnnouncement is returned when announcement generation fails.
// The message becomes a single escaped paragraph.
func FallbackAnnouncement(message string, p models.BusinessProfile) models.Announcement {
	return models.Announcement{
		Title:           "Important Announcement",
		Content:         "<p>" + html.EscapeString(message) + "</p>",
		MetaDescription: "Latest update from " + p.Name,
		MetaKeywords:    "announcement, update, news",
		CTA:             "Learn More",
		Fallback:        true,
	}
}

// FallbackBlog is the article skeleton returned when blog generation fails.
func FallbackBlog(topic string, p models.BusinessProfile) string {
	t := html.EscapeString(topic)
	name := html.EscapeString(p.Name)
	city := html.EscapeString(p.City)
	return fmt.Sprintf(`<h1>%[1]s</h1>
<h2>Introduction</h2>
<p>Learn more about %[1]s from %[2]s in %[3]s.</p>
<h2>Key Points</h2>
<p>This topic is important for many reasons...</p>
<!-- META:Description:Learn about %[1]s from %[2]s-->
<!-- META:Keywords:%[1]s, %[3]s, %[4]s-->`, t, name, city, html.EscapeString(p.Industry))
}

// Guard wraps a ContentOracle so that callers never see an oracle failure.
// Every call runs under its own inference timeout; errors, timeouts and panics
// are logged and replaced by the fixed fallback values.
type Guard struct {
	oracle  models.ContentOracle
	timeout time.Duration
}

// NewGuard creates a Guard around oracle.
func NewGuard(oracle models.ContentOracle, timeout time.Duration) *Guard {
	return &Guard{oracle: oracle, timeout: timeout}
}

func (g *Guard) Name() string  { return g.oracle.Name() }
func (g *Guard) Model() string { return g.oracle.Model() }

// Score rates a message. It never fails.
func (g *Guard) Score(ctx context.Context, req models.ScoreRequest) models.ScoreResult {
	var res models.ScoreResult
	err := g.call(ctx, "score", func(ctx context.Context) error {
		var err error
		res, err = g.oracle.Score(ctx, req)
		return err
	})
	if err != nil {
		return FallbackScore()
	}
	res.Feedback = truncateString(res.Feedback, maxFeedbackBytes)
	res.Fallback = false
	return res
}

// CheckOriginality compares a message against history. It never fails.
func (g *Guard) CheckOriginality(ctx context.Context, req models.OriginalityRequest) models.OriginalityResult {
	history := make([]string, len(req.History))
	for i, h := range req.History {
		history[i] = truncateString(h, maxHistoryEntryBytes)
	}
	req.History = history

	var res models.OriginalityResult
	err := g.call(ctx, "originality", func(ctx context.Context) error {
		var err error
		res, err = g.oracle.CheckOriginality(ctx, req)
		return err
	})
	if err != nil {
		return FallbackOriginality()
	}
	if res.Issues == nil {
		res.Issues = []string{}
	}
	if res.Suggestions == nil {
		res.Suggestions = []string{}
	}
	res.Fallback = false
	return res
}

// Adapt rewrites a message for one platform. On failure the original message is returned.
func (g *Guard) Adapt(ctx context.Context, req models.AdaptRequest) string {
	var out string
	err := g.call(ctx, "adapt", func(ctx context.Context) error {
		var err error
		out, err = g.oracle.Adapt(ctx, req)
		return err
	})
	out = strings.TrimSpace(out)
	if err != nil || out == "" {
		return req.Message
	}
	return truncateString(out, maxAdaptationBytes)
}

// Announce drafts a website announcement. It never fails; a reply missing
// its title or content is replaced by FallbackAnnouncement.
func (g *Guard) Announce(ctx context.Context, req models.AnnouncementRequest) models.Announcement {
	var res models.Announcement
	err := g.call(ctx, "announcement", func(ctx context.Context) error {
		var err error
		res, err = g.oracle.Announce(ctx, req)
		return err
	})
	res.Title = strings.TrimSpace(res.Title)
	res.Content = strings.TrimSpace(res.Content)
	if err != nil || res.Title == "" || res.Content == "" {
		return FallbackAnnouncement(req.Message, req.Profile)
	}
	res.Content = truncateString(res.Content, maxArticleBytes)
	res.Fallback = false
	return res
}

// WriteBlog drafts an HTML article. On failure the FallbackBlog skeleton is returned.
func (g *Guard) WriteBlog(ctx context.Context, req models.BlogRequest) string {
	var out string
	err := g.call(ctx, "blog", func(ctx context.Context) error {
		var err error
		out, err = g.oracle.WriteBlog(ctx, req)
		return err
	})
	out = strings.TrimSpace(out)
	if err != nil || out == "" {
		return FallbackBlog(req.Topic, req.Profile)
	}
	return truncateString(out, maxArticleBytes)
}

// call runs fn under the inference timeout and records the outcome.
// A panic inside the provider is converted to an error.
func (g *Guard) call(ctx context.Context, op string, fn func(context.Context) error) (err error) {
	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	provider := g.oracle.Name()
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s: %v", op, r)
		}
		metrics.OracleDuration.WithLabelValues(provider, op).Observe(time.Since(start).Seconds())
		outcome := "ok"
		if err != nil {
			outcome = "fallback"
			slog.Warn("oracle call failed, using fallback",
				"provider", provider,
				"operation", op,
				"error", err,
			)
		}
		metrics.OracleCalls.WithLabelValues(provider, op, outcome).Inc()
	}()

	if err := fn(callCtx); err != nil {
		if callCtx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("%w: %v", ErrInferenceTimeout, err)
		}
		return err
	}
	return nil
}

// truncateString truncates s to maxBytes without splitting UTF-8 runes.
func truncateString(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	for maxBytes > 0 && !utf8.RuneStart(s[maxBytes]) {
		maxBytes--
	}
	return s[:maxBytes]
}
