package ai

import (
	"fmt"

	"github.com/xbrch/xbrch-saas-platform/internal/ai/anthropic"
	"github.com/xbrch/xbrch-saas-platform/internal/ai/chat"
	"github.com/xbrch/xbrch-saas-platform/internal/ai/openai"
	"github.com/xbrch/xbrch-saas-platform/internal/config"
	"github.com/xbrch/xbrch-saas-platform/pkg/models"
)

// NewOracle constructs the content oracle for the configured provider.
// Ollama and vLLM both expose the OpenAI chat completions API and share its client.
// Called once at server startup.
func NewOracle(cfg config.AIConfig) (models.ContentOracle, error) {
	var c chat.Completer
	switch cfg.Provider {
	case "ollama":
		c = openai.NewClient("ollama", cfg.Ollama.BaseURL, "", cfg.Ollama.Model, cfg.InferenceTimeout)
	case "vllm":
		c = openai.NewClient("vllm", cfg.VLLM.BaseURL, "", cfg.VLLM.Model, cfg.InferenceTimeout)
	case "openai":
		c = openai.NewClient("openai", cfg.OpenAI.BaseURL, cfg.OpenAI.APIKey, cfg.OpenAI.Model, cfg.InferenceTimeout)
	case "anthropic":
		c = anthropic.NewClient(cfg.Anthropic.BaseURL, cfg.Anthropic.APIKey, cfg.Anthropic.Model, cfg.InferenceTimeout)
	default:
		return nil, fmt.Errorf("unknown AI provider %q: must be one of ollama, vllm, openai, anthropic", cfg.Provider)
	}
	return chat.NewOracle(c), nil
}
