package adapter

import (
	"context"
	"net/http"
)

// InferenceAdapter is the port for a text-generation endpoint. One call, one
// prompt, no streaming.
type InferenceAdapter interface {
	// Name identifies the provider in logs and metrics.
	Name() string
	ListModels(ctx context.Context) ([]string, error)

	// Generate returns the generated text for prompt. Implementations return
	// *StatusError for non-success statuses and wrap domain.ErrMalformedResponse
	// or domain.ErrEmptyResponse when the body cannot be used.
	Generate(ctx context.Context, model, prompt string) (string, error)
}

// TokenCounter gives best-effort token counts for stored messages.
type TokenCounter interface {
	Count(text string) int
}

// StatusError is a non-success answer from the inference endpoint.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

// Error omits the status code; GenerationError already reports it.
func (e *StatusError) Error() string {
	if e.Body == "" {
		return e.Provider + ": " + http.StatusText(e.StatusCode)
	}
	return e.Provider + ": " + e.Body
}
