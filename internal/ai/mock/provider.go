package mock

import (
	"context"
	"sync/atomic"

	"github.com/xbrch/xbrch-saas-platform/internal/ai"
	"github.com/xbrch/xbrch-saas-platform/pkg/models"
)

// MockOracle satisfies models.ContentOracle for testing.
type MockOracle struct {
	Name_           string
	ScoreFunc       func(ctx context.Context, req models.ScoreRequest) (models.ScoreResult, error)
	OriginalityFunc func(ctx context.Context, req models.OriginalityRequest) (models.OriginalityResult, error)
	AdaptFunc       func(ctx context.Context, req models.AdaptRequest) (string, error)
	AnnounceFunc    func(ctx context.Context, req models.AnnouncementRequest) (models.Announcement, error)
	BlogFunc        func(ctx context.Context, req models.BlogRequest) (string, error)

	calls atomic.Int64
}

func (m *MockOracle) Name() string  { return m.Name_ }
func (m *MockOracle) Model() string { return "mock-v1" }

// Calls returns the total number of oracle operations invoked.
func (m *MockOracle) Calls() int { return int(m.calls.Load()) }

func (m *MockOracle) Score(ctx context.Context, req models.ScoreRequest) (models.ScoreResult, error) {
	m.calls.Add(1)
	if m.ScoreFunc != nil {
		return m.ScoreFunc(ctx, req)
	}
	return models.ScoreResult{}, nil
}

func (m *MockOracle) CheckOriginality(ctx context.Context, req models.OriginalityRequest) (models.OriginalityResult, error) {
	m.calls.Add(1)
	if m.OriginalityFunc != nil {
		return m.OriginalityFunc(ctx, req)
	}
	return models.OriginalityResult{}, nil
}

func (m *MockOracle) Adapt(ctx context.Context, req models.AdaptRequest) (string, error) {
	m.calls.Add(1)
	if m.AdaptFunc != nil {
		return m.AdaptFunc(ctx, req)
	}
	return req.Message, nil
}

func (m *MockOracle) Announce(ctx context.Context, req models.AnnouncementRequest) (models.Announcement, error) {
	m.calls.Add(1)
	if m.AnnounceFunc != nil {
		return m.AnnounceFunc(ctx, req)
	}
	return models.Announcement{Title: "Announcement", Content: "<p>" + req.Message + "</p>"}, nil
}

func (m *MockOracle) WriteBlog(ctx context.Context, req models.BlogRequest) (string, error) {
	m.calls.Add(1)
	if m.BlogFunc != nil {
		return m.BlogFunc(ctx, req)
	}
	return "<h1>" + req.Topic + "</h1>", nil
}

// NewMockOracle returns a MockOracle with sensible default responses.
// Adaptations are prefixed with the platform id so tests can tell them apart.
func NewMockOracle() *MockOracle {
	return &MockOracle{
		Name_: "mock",
		ScoreFunc: func(_ context.Context, _ models.ScoreRequest) (models.ScoreResult, error) {
			return models.ScoreResult{
				Score:          88,
				Clarity:        23,
				PlatformFit:    22,
				Specificity:    17,
				CTAStrength:    13,
				BrandAlignment: 13,
				Feedback:       "Clear and specific",
			}, nil
		},
		OriginalityFunc: func(_ context.Context, _ models.OriginalityRequest) (models.OriginalityResult, error) {
			return models.OriginalityResult{
				OriginalityScore: 92,
				RiskTier:         models.RiskLow,
				Issues:           []string{},
				Suggestions:      []string{},
			}, nil
		},
		AdaptFunc: func(_ context.Context, req models.AdaptRequest) (string, error) {
			return "[" + req.Platform + "] " + req.Message, nil
		},
		AnnounceFunc: func(_ context.Context, req models.AnnouncementRequest) (models.Announcement, error) {
			return models.Announcement{
				Title:           "News from " + req.Profile.Name,
				Content:         "<p>" + req.Message + "</p><p>Visit us soon.</p>",
				MetaDescription: "Latest news from " + req.Profile.Name,
				MetaKeywords:    "news, " + req.Profile.City,
				CTA:             "Visit us",
			}, nil
		},
		BlogFunc: func(_ context.Context, req models.BlogRequest) (string, error) {
			return "<h1>" + req.Topic + "</h1>\n<h2>Why it matters</h2>\n<p>A short article about " + req.Topic + ".</p>\n" +
				"<!-- META:Description:All about " + req.Topic + "-->\n<!-- META:Keywords:" + req.Topic + ", local-->", nil
		},
	}
}

// NewFailingOracle returns a MockOracle that always returns the given error.
func NewFailingOracle(err error) *MockOracle {
	return &MockOracle{
		Name_: "mock-failing",
		ScoreFunc: func(_ context.Context, _ models.ScoreRequest) (models.ScoreResult, error) {
			return models.ScoreResult{}, err
		},
		OriginalityFunc: func(_ context.Context, _ models.OriginalityRequest) (models.OriginalityResult, error) {
			return models.OriginalityResult{}, err
		},
		AdaptFunc: func(_ context.Context, _ models.AdaptRequest) (string, error) {
			return "", err
		},
		AnnounceFunc: func(_ context.Context, _ models.AnnouncementRequest) (models.Announcement, error) {
			return models.Announcement{}, err
		},
		BlogFunc: func(_ context.Context, _ models.BlogRequest) (string, error) {
			return "", err
		},
	}
}

// NewTimeoutOracle returns a MockOracle that blocks until context is cancelled.
func NewTimeoutOracle() *MockOracle {
	return &MockOracle{
		Name_: "mock-timeout",
		ScoreFunc: func(ctx context.Context, _ models.ScoreRequest) (models.ScoreResult, error) {
			<-ctx.Done()
			return models.ScoreResult{}, ai.ErrInferenceTimeout
		},
		OriginalityFunc: func(ctx context.Context, _ models.OriginalityRequest) (models.OriginalityResult, error) {
			<-ctx.Done()
			return models.OriginalityResult{}, ai.ErrInferenceTimeout
		},
		AdaptFunc: func(ctx context.Context, _ models.AdaptRequest) (string, error) {
			<-ctx.Done()
			return "", ai.ErrInferenceTimeout
		},
		AnnounceFunc: func(ctx context.Context, _ models.AnnouncementRequest) (models.Announcement, error) {
			<-ctx.Done()
			return models.Announcement{}, ai.ErrInferenceTimeout
		},
		BlogFunc: func(ctx context.Context, _ models.BlogRequest) (string, error) {
			<-ctx.Done()
			return "", ai.ErrInferenceTimeout
		},
	}
}

// Compile-time check that MockOracle implements ContentOracle.
var _ models.ContentOracle = (*MockOracle)(nil)
