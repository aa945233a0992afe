// Package broadcast turns one submitted message into scored, platform-adapted
// outputs and charges the tenant's monthly quota for it.
package broadcast

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/xbrch/xbrch-saas-platform/internal/cache"
	"github.com/xbrch/xbrch-saas-platform/internal/ledger"
	"github.com/xbrch/xbrch-saas-platform/internal/metrics"
	"github.com/xbrch/xbrch-saas-platform/internal/store"
	"github.com/xbrch/xbrch-saas-platform/pkg/models"
)

const (
	historySize   = 10
	operationType = "broadcast_generation"
)

// Store is the subset of store.Store the orchestrator needs.
type Store interface {
	GetBusinessProfile(ctx context.Context, tenantID uuid.UUID) (*models.BusinessProfile, error)
	ListRecentMessages(ctx context.Context, tenantID uuid.UUID, limit int) ([]string, error)
	CreateBroadcast(ctx context.Context, w store.BroadcastWrite) (*models.UsageEntry, error)
}

// Evaluator is a content oracle whose calls never fail. *ai.Guard satisfies it.
type Evaluator interface {
	Score(ctx context.Context, req models.ScoreRequest) models.ScoreResult
	CheckOriginality(ctx context.Context, req models.OriginalityRequest) models.OriginalityResult
	Adapt(ctx context.Context, req models.AdaptRequest) string
	Name() string
	Model() string
}

type CreateParams struct {
	TenantID   uuid.UUID
	Message    string
	Platforms  []string
	Provenance models.Provenance
}

// Result is everything returned for a created broadcast. Outputs are in request order.
type Result struct {
	Broadcast   *models.Broadcast        `json:"broadcast"`
	Scoring     models.ScoreResult       `json:"scoring"`
	Originality models.OriginalityResult `json:"originality"`
	Usage       *models.UsageSnapshot    `json:"usage"`
}

// Options tune a Service. The zero value is sequential evaluation with 100 tokens per platform.
type Options struct {
	ParallelEvaluation bool
	TokensPerPlatform  int
}

type Service struct {
	store     Store
	ledger    *ledger.Ledger
	evaluator Evaluator
	cache     cache.Cache
	opts      Options
	now       func() time.Time
}

// NewService creates a Service. ca may be nil, in which case profiles are always read from the store.
func NewService(st Store, l *ledger.Ledger, ev Evaluator, ca cache.Cache, opts Options) *Service {
	if opts.TokensPerPlatform <= 0 {
		opts.TokensPerPlatform = 100
	}
	return &Service{
		store:     st,
		ledger:    l,
		evaluator: ev,
		cache:     ca,
		opts:      opts,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the wall clock. Used by tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// CreateBroadcast validates the request, checks the quota, evaluates and adapts
// the message, then persists everything in one transaction.
// It returns *QuotaExceededError when the month's quota is used up, in which case
// no oracle call and no write happens.
func (s *Service) CreateBroadcast(ctx context.Context, p CreateParams) (*Result, error) {
	message, err := normalize(p)
	if err != nil {
		return nil, err
	}

	now := s.now()
	month := ledger.MonthKey(now)

	snap, err := s.ledger.Remaining(ctx, p.TenantID, month)
	if err != nil {
		return nil, err
	}
	if ledger.Exhausted(snap) {
		metrics.QuotaRejections.WithLabelValues(snap.Plan).Inc()
		return nil, &QuotaExceededError{Used: snap.Used, Limit: snap.Limit, Month: month}
	}

	profile, err := s.Profile(ctx, p.TenantID)
	if err != nil {
		return nil, err
	}

	history, err := s.store.ListRecentMessages(ctx, p.TenantID, historySize)
	if err != nil {
		return nil, fmt.Errorf("load message history: %w", err)
	}

	scoring, originality := s.evaluate(ctx, message, p.Platforms[0], profile, history)

	b := &models.Broadcast{
		ID:               uuid.New(),
		TenantID:         p.TenantID,
		OriginalMessage:  message,
		Score:            scoring.Score,
		ConfidenceBadge:  originality.RiskTier,
		OriginalityScore: originality.OriginalityScore,
		Status:           models.BroadcastStatusGenerated,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	tokens := 0
	for _, platform := range p.Platforms {
		content := s.evaluator.Adapt(ctx, models.AdaptRequest{
			Message:  message,
			Platform: platform,
			Profile:  profile,
		})
		b.Outputs = append(b.Outputs, &models.BroadcastOutput{
			ID:             uuid.New(),
			BroadcastID:    b.ID,
			Platform:       platform,
			Content:        content,
			CharacterCount: utf8.RuneCountInString(content),
			CreatedAt:      now,
		})
		tokens += s.opts.TokensPerPlatform
	}

	prompt := tokens * 70 / 100
	entry, err := s.store.CreateBroadcast(ctx, store.BroadcastWrite{
		Broadcast: b,
		Month:     month,
		Tokens:    tokens,
		TokenUsage: &models.TokenUsage{
			ID:               uuid.New(),
			TenantID:         p.TenantID,
			Provider:         s.evaluator.Name(),
			Model:            s.evaluator.Model(),
			PromptTokens:     prompt,
			CompletionTokens: tokens - prompt,
			TotalTokens:      tokens,
			OperationType:    operationType,
			CreatedAt:        now,
		},
		Audit: models.NewAuditEntry(p.TenantID, models.AuditCreateBroadcast, "broadcast", b.ID.String(),
			map[string]any{"platforms": p.Platforms, "score": scoring.Score}, p.Provenance).At(now),
	})
	if err != nil {
		return nil, fmt.Errorf("persist broadcast: %w", err)
	}

	metrics.BroadcastsCreated.WithLabelValues(snap.Plan).Inc()
	for _, platform := range p.Platforms {
		metrics.BroadcastOutputs.WithLabelValues(platform).Inc()
	}
	metrics.EstimatedTokens.Add(float64(tokens))

	slog.Info("broadcast created",
		"tenant_id", p.TenantID,
		"broadcast_id", b.ID,
		"platforms", p.Platforms,
		"score", scoring.Score,
		"risk_tier", originality.RiskTier,
		"month", month,
	)

	return &Result{
		Broadcast:   b,
		Scoring:     scoring,
		Originality: originality,
		Usage:       ledger.After(snap, entry),
	}, nil
}

// evaluate runs the score and originality checks. They are independent, so they
// may run concurrently when ParallelEvaluation is set.
func (s *Service) evaluate(ctx context.Context, message, platform string, profile models.BusinessProfile, history []string) (models.ScoreResult, models.OriginalityResult) {
	var (
		scoring     models.ScoreResult
		originality models.OriginalityResult
	)
	score := func() error {
		scoring = s.evaluator.Score(ctx, models.ScoreRequest{Message: message, Platform: platform, Profile: profile})
		return nil
	}
	check := func() error {
		originality = s.evaluator.CheckOriginality(ctx, models.OriginalityRequest{Message: message, History: history})
		return nil
	}

	if !s.opts.ParallelEvaluation {
		_ = score()
		_ = check()
		return scoring, originality
	}

	var g errgroup.Group
	g.Go(score)
	g.Go(check)
	_ = g.Wait()
	return scoring, originality
}

// Profile reads the tenant's business profile through the cache and falls
// back to the default profile when the tenant has none.
func (s *Service) Profile(ctx context.Context, tenantID uuid.UUID) (models.BusinessProfile, error) {
	key := cache.ProfileKey(tenantID)
	if s.cache != nil {
		var cached models.BusinessProfile
		found, err := cache.GetJSON(ctx, s.cache, key, &cached)
		if err != nil {
			slog.Warn("profile cache read failed", "tenant_id", tenantID, "error", err)
		}
		if found {
			return cached, nil
		}
	}

	p, err := s.store.GetBusinessProfile(ctx, tenantID)
	if errors.Is(err, store.ErrNotFound) {
		return models.DefaultBusinessProfile(), nil
	}
	if err != nil {
		return models.BusinessProfile{}, fmt.Errorf("load business profile: %w", err)
	}

	if s.cache != nil {
		if err := cache.SetJSON(ctx, s.cache, key, p, cache.ProfileTTL); err != nil {
			slog.Warn("profile cache write failed", "tenant_id", tenantID, "error", err)
		}
	}
	return *p, nil
}

// InvalidateProfile drops the cached profile after an update.
func InvalidateProfile(ctx context.Context, ca cache.Cache, tenantID uuid.UUID) {
	if ca == nil {
		return
	}
	if err := ca.Delete(ctx, cache.ProfileKey(tenantID)); err != nil {
		slog.Warn("profile cache invalidation failed", "tenant_id", tenantID, "error", err)
	}
}
