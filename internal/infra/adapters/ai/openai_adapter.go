package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"local-chat-assistant/internal/domain"
	"local-chat-assistant/internal/domain/ports/adapter"
)

// Compile-time assurance this adapter satisfies the port
var _ adapter.InferenceAdapter = (*OpenAIAdapter)(nil)

// OpenAIAdapter implements adapter.InferenceAdapter with the Chat Completions
// API. Any OpenAI-compatible server works, including Ollama's /v1 endpoint.
type OpenAIAdapter struct {
	client openai.Client
}

func NewOpenAIAdapter(apiKey, base string, timeout time.Duration) (*OpenAIAdapter, error) {
	if base == "" {
		return nil, errors.New("openai base url empty")
	}
	if apiKey == "" {
		// local servers ignore the key but the header must be present
		apiKey = "ollama"
	}
	c := openai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithBaseURL(base),
		option.WithRequestTimeout(timeout),
		option.WithMaxRetries(0),
	)
	return &OpenAIAdapter{client: c}, nil
}

func (o *OpenAIAdapter) Name() string { return "openai" }

func (o *OpenAIAdapter) ListModels(ctx context.Context) ([]string, error) {
	iter := o.client.Models.ListAutoPaging(ctx)
	var out []string
	for iter.Next() {
		out = append(out, iter.Current().ID)
	}
	if err := iter.Err(); err != nil {
		return nil, mapOpenAIError(err)
	}
	return out, nil
}

func (o *OpenAIAdapter) Generate(ctx context.Context, model, prompt string) (string, error) {
	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	})
	if err != nil {
		return "", mapOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices: %w", domain.ErrEmptyResponse)
	}
	return resp.Choices[0].Message.Content, nil
}

func mapOpenAIError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return &adapter.StatusError{Provider: "openai", StatusCode: apiErr.StatusCode, Body: apiErr.Message}
	}
	return err
}
