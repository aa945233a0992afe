package mock_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xbrch/xbrch-saas-platform/internal/ai"
	"github.com/xbrch/xbrch-saas-platform/internal/ai/mock"
	"github.com/xbrch/xbrch-saas-platform/pkg/models"
)

func scoreRequest() models.ScoreRequest {
	return models.ScoreRequest{
		Message:  "Fresh sourdough every morning at 7",
		Platform: models.PlatformX,
		Profile:  models.DefaultBusinessProfile(),
	}
}

// --- NewMockOracle ---

func TestNewMockOracle_Name(t *testing.T) {
	o := mock.NewMockOracle()
	assert.Equal(t, "mock", o.Name())
	assert.Equal(t, "mock-v1", o.Model())
}

func TestNewMockOracle_Score(t *testing.T) {
	o := mock.NewMockOracle()
	res, err := o.Score(context.Background(), scoreRequest())

	require.NoError(t, err)
	assert.Equal(t, 88, res.Score)
	assert.False(t, res.Fallback)
	assert.Equal(t, 1, o.Calls())
}

func TestNewMockOracle_CheckOriginality(t *testing.T) {
	o := mock.NewMockOracle()
	res, err := o.CheckOriginality(context.Background(), models.OriginalityRequest{Message: "hi"})

	require.NoError(t, err)
	assert.Equal(t, models.RiskLow, res.RiskTier)
	assert.Empty(t, res.Issues)
}

func TestNewMockOracle_AdaptPrefixesPlatform(t *testing.T) {
	o := mock.NewMockOracle()
	out, err := o.Adapt(context.Background(), models.AdaptRequest{Message: "hello", Platform: models.PlatformLinkedIn})

	require.NoError(t, err)
	assert.Equal(t, "[linkedin] hello", out)
}

// --- NewFailingOracle ---

func TestNewFailingOracle_CustomError(t *testing.T) {
	customErr := errors.New("custom AI error")
	o := mock.NewFailingOracle(customErr)
	assert.Equal(t, "mock-failing", o.Name())

	_, err := o.Score(context.Background(), scoreRequest())
	assert.ErrorIs(t, err, customErr)

	_, err = o.CheckOriginality(context.Background(), models.OriginalityRequest{})
	assert.ErrorIs(t, err, customErr)

	_, err = o.Adapt(context.Background(), models.AdaptRequest{})
	assert.ErrorIs(t, err, customErr)

	assert.Equal(t, 3, o.Calls())
}

// --- NewTimeoutOracle ---

func TestNewTimeoutOracle_Score(t *testing.T) {
	o := mock.NewTimeoutOracle()
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := o.Score(ctx, scoreRequest())
	assert.ErrorIs(t, err, ai.ErrInferenceTimeout)
}

// --- Sentinel errors ---

func TestSentinelErrors(t *testing.T) {
	assert.NotNil(t, ai.ErrProviderUnavailable)
	assert.NotNil(t, ai.ErrInferenceTimeout)
	assert.NotNil(t, ai.ErrInvalidResponse)

	assert.NotEqual(t, ai.ErrProviderUnavailable, ai.ErrInferenceTimeout)
	assert.NotEqual(t, ai.ErrInferenceTimeout, ai.ErrInvalidResponse)
}

// --- Zero-value MockOracle ---

func TestMockOracle_NilFuncs(t *testing.T) {
	o := &mock.MockOracle{Name_: "bare"}

	res, err := o.Score(context.Background(), scoreRequest())
	assert.NoError(t, err)
	assert.Equal(t, models.ScoreResult{}, res)

	out, err := o.Adapt(context.Background(), models.AdaptRequest{Message: "unchanged"})
	assert.NoError(t, err)
	assert.Equal(t, "unchanged", out)
}
