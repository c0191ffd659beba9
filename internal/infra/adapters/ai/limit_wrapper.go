package ai

import (
	"context"

	"local-chat-assistant/internal/domain/ports/adapter"
)

// Compile-time check
var _ adapter.InferenceAdapter = (*limitedAI)(nil)

// limitedAI bounds the number of in-flight Generate calls. Waiting for a slot
// counts against the caller's deadline.
type limitedAI struct {
	inner adapter.InferenceAdapter
	sem   chan struct{}
}

func NewLimitedAI(inner adapter.InferenceAdapter, maxConcurrent int) adapter.InferenceAdapter {
	if maxConcurrent <= 0 {
		return inner
	}
	return &limitedAI{
		inner: inner,
		sem:   make(chan struct{}, maxConcurrent),
	}
}

func (l *limitedAI) Name() string { return l.inner.Name() }

func (l *limitedAI) ListModels(ctx context.Context) ([]string, error) {
	return l.inner.ListModels(ctx)
}

func (l *limitedAI) Generate(ctx context.Context, model, prompt string) (string, error) {
	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	defer func() { <-l.sem }()
	return l.inner.Generate(ctx, model, prompt)
}
