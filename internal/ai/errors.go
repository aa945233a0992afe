package ai

import "github.com/xbrch/xbrch-saas-platform/internal/ai/chat"

var (
	ErrProviderUnavailable = chat.ErrProviderUnavailable
	ErrInferenceTimeout    = chat.ErrInferenceTimeout
	ErrInvalidResponse     = chat.ErrInvalidResponse
)
