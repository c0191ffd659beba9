package ai

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"local-chat-assistant/internal/domain/ports/adapter"
)

var _ adapter.InferenceAdapter = (*NoopAIAdapter)(nil)

// NoopAIAdapter implements adapter.InferenceAdapter for local/dev testing.
// It logs prompts instead of sending real inference requests.
type NoopAIAdapter struct {
	log   *zerolog.Logger
	delay time.Duration
}

func NewNoopAIAdapter(logger *zerolog.Logger) *NoopAIAdapter {
	return &NoopAIAdapter{log: logger, delay: 100 * time.Millisecond}
}

func (a *NoopAIAdapter) Name() string { return "noop" }

func (a *NoopAIAdapter) Generate(ctx context.Context, model, prompt string) (string, error) {
	// Simulate processing and respect ctx
	select {
	case <-time.After(a.delay):
	case <-ctx.Done():
		return "", ctx.Err()
	}
	if a.log != nil {
		a.log.Debug().Str("model", model).Int("prompt_len", len(prompt)).Msg("noop generate")
	}
	return "This is a noop AI response.", nil
}

func (a *NoopAIAdapter) ListModels(ctx context.Context) ([]string, error) {
	return []string{"noop-ai-model"}, nil
}
