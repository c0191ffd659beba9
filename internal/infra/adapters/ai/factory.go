package ai

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"local-chat-assistant/internal/config"
	"local-chat-assistant/internal/domain/ports/adapter"
)

// NewFromConfig builds the configured inference adapter wrapped in the
// concurrency limiter.
func NewFromConfig(ctx context.Context, cfg config.AIConfig, logger *zerolog.Logger) (adapter.InferenceAdapter, error) {
	var (
		inner adapter.InferenceAdapter
		err   error
	)
	switch cfg.Provider {
	case "ollama":
		inner, err = NewOllamaAdapter(cfg.BaseURL, cfg.Timeout)
	case "openai":
		inner, err = NewOpenAIAdapter(cfg.APIKey, cfg.BaseURL, cfg.Timeout)
	case "gemini":
		inner, err = NewGeminiAdapter(ctx, cfg.APIKey, cfg.BaseURL, cfg.Model)
	case "noop":
		inner = NewNoopAIAdapter(logger)
	default:
		return nil, fmt.Errorf("unknown ai provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("init %s adapter: %w", cfg.Provider, err)
	}
	return NewLimitedAI(inner, cfg.ConcurrentLimit), nil
}
