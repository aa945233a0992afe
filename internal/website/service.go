// Package website generates announcements and blog articles for a tenant's
// website and keeps the stored HTML sanitized.
package website

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"golang.org/x/net/html"

	"github.com/xbrch/xbrch-saas-platform/internal/ledger"
	"github.com/xbrch/xbrch-saas-platform/internal/metrics"
	"github.com/xbrch/xbrch-saas-platform/internal/store"
	"github.com/xbrch/xbrch-saas-platform/pkg/models"
)

const (
	MaxMessageLength = 2000
	MaxTopicLength   = 200
	MaxTitleLength   = 200
)

// Fixed token estimates per generated post, split into prompt and completion.
var tokenEstimates = map[string][2]int{
	models.PostTypeAnnouncement: {200, 300},
	models.PostTypeBlog:         {300, 1500},
}

var ErrValidation = errors.New("validation failed")

// ValidationError describes one rejected request field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Store is the subset of store.Store the website service needs.
type Store interface {
	CreateWebsitePost(ctx context.Context, w store.WebsitePostWrite) error
	UpdateWebsitePost(ctx context.Context, p store.PostPatch, audit *models.AuditEntry) (*models.WebsitePost, error)
}

// ProfileLoader resolves a tenant's business profile. *broadcast.Service satisfies it.
type ProfileLoader interface {
	Profile(ctx context.Context, tenantID uuid.UUID) (models.BusinessProfile, error)
}

// Writer drafts website content and never fails. *ai.Guard satisfies it.
type Writer interface {
	Announce(ctx context.Context, req models.AnnouncementRequest) models.Announcement
	WriteBlog(ctx context.Context, req models.BlogRequest) string
	Name() string
	Model() string
}

type CreateParams struct {
	TenantID   uuid.UUID
	Text       string // message for an announcement, topic for a blog
	Publish    bool
	Provenance models.Provenance
}

type UpdateParams struct {
	ID         uuid.UUID
	TenantID   uuid.UUID
	Title      *string
	Content    *string
	Status     *string
	Provenance models.Provenance
}

type Service struct {
	store    Store
	profiles ProfileLoader
	writer   Writer
	now      func() time.Time
}

func NewService(st Store, profiles ProfileLoader, w Writer) *Service {
	return &Service{
		store:    st,
		profiles: profiles,
		writer:   w,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the wall clock. Used by tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// CreateAnnouncement turns a short message into a website announcement and stores it.
func (s *Service) CreateAnnouncement(ctx context.Context, p CreateParams) (*models.WebsitePost, error) {
	message := strings.TrimSpace(p.Text)
	if err := checkText("message", message, MaxMessageLength); err != nil {
		return nil, err
	}

	profile, err := s.profiles.Profile(ctx, p.TenantID)
	if err != nil {
		return nil, err
	}

	a := s.writer.Announce(ctx, models.AnnouncementRequest{Message: message, Profile: profile})
	doc, err := Inspect(a.Content)
	if err != nil {
		return nil, fmt.Errorf("sanitize announcement: %w", err)
	}
	if doc.HTML == "" {
		doc.HTML = "<p>" + html.EscapeString(message) + "</p>"
		doc.WordCount = len(strings.Fields(message))
	}

	post := &models.WebsitePost{
		Type:            models.PostTypeAnnouncement,
		Title:           a.Title,
		Content:         doc.HTML,
		MetaDescription: a.MetaDescription,
		MetaKeywords:    a.MetaKeywords,
		WordCount:       doc.WordCount,
	}
	if err := s.persist(ctx, p, post, models.AuditCreateAnnounce,
		map[string]any{"title": post.Title, "fallback": a.Fallback}); err != nil {
		return nil, err
	}
	return post, nil
}

// CreateBlog drafts an article on a topic and stores it. The title is the
// article's first heading and the meta fields come from its META comments,
// each falling back to values derived from the topic and profile.
func (s *Service) CreateBlog(ctx context.Context, p CreateParams) (*models.WebsitePost, error) {
	topic := strings.TrimSpace(p.Text)
	if err := checkText("topic", topic, MaxTopicLength); err != nil {
		return nil, err
	}

	profile, err := s.profiles.Profile(ctx, p.TenantID)
	if err != nil {
		return nil, err
	}

	doc, err := Inspect(s.writer.WriteBlog(ctx, models.BlogRequest{Topic: topic, Profile: profile}))
	if err != nil {
		return nil, fmt.Errorf("sanitize article: %w", err)
	}

	post := &models.WebsitePost{
		Type:            models.PostTypeBlog,
		Title:           firstNonEmpty(doc.Title, topic),
		Content:         doc.HTML,
		MetaDescription: firstNonEmpty(doc.MetaDescription, "Learn about "+topic+" from "+profile.Name),
		MetaKeywords:    firstNonEmpty(doc.MetaKeywords, strings.Join([]string{topic, profile.City, profile.Industry}, ", ")),
		WordCount:       doc.WordCount,
	}
	if err := s.persist(ctx, p, post, models.AuditCreateBlog,
		map[string]any{"title": post.Title, "word_count": post.WordCount}); err != nil {
		return nil, err
	}
	return post, nil
}

// persist stamps the post and writes it with its token usage and audit entry
// in one transaction.
func (s *Service) persist(ctx context.Context, p CreateParams, post *models.WebsitePost, action string, values map[string]any) error {
	now := s.now()

	post.ID = uuid.New()
	post.TenantID = p.TenantID
	post.Title = truncateRunes(post.Title, MaxTitleLength)
	post.Slug = postSlug(post.Title, post.ID)
	post.Status = models.PostStatusDraft
	if p.Publish {
		post.Status = models.PostStatusPublished
		post.PublishedAt = &now
	}
	post.CreatedAt = now
	post.UpdatedAt = now

	est := tokenEstimates[post.Type]
	err := s.store.CreateWebsitePost(ctx, store.WebsitePostWrite{
		Post:  post,
		Month: ledger.MonthKey(now),
		TokenUsage: &models.TokenUsage{
			ID:               uuid.New(),
			TenantID:         p.TenantID,
			Provider:         s.writer.Name(),
			Model:            s.writer.Model(),
			PromptTokens:     est[0],
			CompletionTokens: est[1],
			TotalTokens:      est[0] + est[1],
			OperationType:    post.Type,
			CreatedAt:        now,
		},
		Audit: models.NewAuditEntry(p.TenantID, action, "website_post", post.ID.String(), values, p.Provenance).At(now),
	})
	if err != nil {
		return fmt.Errorf("persist website post: %w", err)
	}

	metrics.WebsitePostsCreated.WithLabelValues(post.Type).Inc()
	metrics.EstimatedTokens.Add(float64(est[0] + est[1]))
	slog.Info("website post created",
		"tenant_id", p.TenantID,
		"post_id", post.ID,
		"type", post.Type,
		"words", post.WordCount,
	)
	return nil
}

// UpdatePost applies a partial edit. New content is sanitized and recounted;
// published_at is set the first time the post becomes published.
func (s *Service) UpdatePost(ctx context.Context, p UpdateParams) (*models.WebsitePost, error) {
	patch := store.PostPatch{ID: p.ID, TenantID: p.TenantID, At: s.now()}
	values := map[string]any{}

	if p.Title != nil {
		title := strings.TrimSpace(*p.Title)
		if err := checkText("title", title, MaxTitleLength); err != nil {
			return nil, err
		}
		patch.Title = &title
		values["title"] = title
	}
	if p.Content != nil {
		doc, err := Inspect(*p.Content)
		if err != nil {
			return nil, &ValidationError{Field: "content", Message: "is not valid HTML"}
		}
		if strings.TrimSpace(doc.HTML) == "" {
			return nil, &ValidationError{Field: "content", Message: "is required"}
		}
		patch.Content = &doc.HTML
		patch.WordCount = &doc.WordCount
		values["word_count"] = doc.WordCount
	}
	if p.Status != nil {
		if !models.ValidPostStatus(*p.Status) {
			return nil, &ValidationError{Field: "status", Message: "must be one of draft, published, archived"}
		}
		patch.Status = p.Status
		values["status"] = *p.Status
	}
	if len(values) == 0 {
		return nil, &ValidationError{Field: "body", Message: "no fields to update"}
	}

	audit := models.NewAuditEntry(p.TenantID, models.AuditUpdatePost, "website_post", p.ID.String(), values, p.Provenance).At(patch.At)
	return s.store.UpdateWebsitePost(ctx, patch, audit)
}

func checkText(field, v string, max int) error {
	if v == "" {
		return &ValidationError{Field: field, Message: "is required"}
	}
	if n := len([]rune(v)); n > max {
		return &ValidationError{Field: field, Message: fmt.Sprintf("must be at most %d characters, got %d", max, n)}
	}
	return nil
}

// postSlug is the title slug plus the first eight characters of the post id,
// so equal titles never collide.
func postSlug(title string, id uuid.UUID) string {
	base := slug.Make(title)
	if len(base) > 80 {
		base = strings.Trim(base[:80], "-")
	}
	if base == "" {
		base = "post"
	}
	return base + "-" + id.String()[:8]
}

func firstNonEmpty(v, fallback string) string {
	if strings.TrimSpace(v) != "" {
		return v
	}
	return fallback
}

func truncateRunes(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
