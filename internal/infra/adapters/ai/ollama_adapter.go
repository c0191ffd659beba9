package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"local-chat-assistant/internal/domain"
	"local-chat-assistant/internal/domain/ports/adapter"
)

// Compile-time assurance this adapter satisfies the port
var _ adapter.InferenceAdapter = (*OllamaAdapter)(nil)

// OllamaAdapter talks to a local Ollama server over its native API.
// Generation uses POST /api/generate with streaming disabled, so one request
// yields one JSON object whose "response" field holds the full reply.
type OllamaAdapter struct {
	base   string // e.g., http://localhost:11434
	client *http.Client
}

func NewOllamaAdapter(base string, timeout time.Duration) (*OllamaAdapter, error) {
	if base == "" {
		base = "http://localhost:11434"
	}
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		return nil, fmt.Errorf("ollama base url %q must be http(s)", base)
	}
	return &OllamaAdapter{
		base:   strings.TrimRight(base, "/"),
		client: &http.Client{Timeout: timeout},
	}, nil
}

func (o *OllamaAdapter) Name() string { return "ollama" }

// ListModels returns the locally pulled models.
func (o *OllamaAdapter) ListModels(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.base+"/api/tags", nil)
	if err != nil {
		return nil, err
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, o.statusError(resp)
	}
	var payload struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedResponse, err)
	}
	out := make([]string, 0, len(payload.Models))
	for _, m := range payload.Models {
		if m.Name != "" {
			out = append(out, m.Name)
		}
	}
	return out, nil
}

func (o *OllamaAdapter) Generate(ctx context.Context, model, prompt string) (string, error) {
	reqBody := struct {
		Model  string `json:"model"`
		Prompt string `json:"prompt"`
		Stream bool   `json:"stream"`
	}{Model: model, Prompt: prompt, Stream: false}

	b, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.base+"/api/generate", bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", o.statusError(resp)
	}

	var payload struct {
		Response *string `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		var netErr net.Error
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", domain.ErrMalformedResponse, err)
	}
	if payload.Response == nil {
		return "", domain.ErrEmptyResponse
	}
	return *payload.Response, nil
}

func (o *OllamaAdapter) statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	msg := strings.TrimSpace(string(body))
	// Ollama reports failures as {"error": "..."}
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		msg = e.Error
	}
	return &adapter.StatusError{Provider: o.Name(), StatusCode: resp.StatusCode, Body: msg}
}
