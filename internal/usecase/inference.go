package usecase

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/rs/zerolog"

	"local-chat-assistant/internal/domain"
	"local-chat-assistant/internal/domain/model"
	"local-chat-assistant/internal/domain/ports/adapter"
	"local-chat-assistant/internal/infra/logging"
	"local-chat-assistant/internal/infra/metrics"
)

const (
	// SummaryInputLimit is how many characters of an uploaded file are sent
	// to the model for summarisation.
	SummaryInputLimit = 4000

	summaryPrompt = "Summarize the following file content in a few sentences for a developer:\n\n"

	ReplyErrorPrefix   = "Error"
	ReplyFallback      = "Sorry, I couldn't generate a response."
	SummaryErrorPrefix = "Error generating summary"
	SummaryFallback    = "Could not generate summary."
)

// InferenceClient issues one synchronous, non-streaming request per call and
// never fails: every outcome is folded into a model.Generation.
type InferenceClient struct {
	ai      adapter.InferenceAdapter
	model   string
	timeout time.Duration
	counter adapter.TokenCounter
	log     *zerolog.Logger
}

func NewInferenceClient(ai adapter.InferenceAdapter, modelName string, timeout time.Duration, counter adapter.TokenCounter, logger *zerolog.Logger) *InferenceClient {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	if logger == nil {
		logger = logging.Nop()
	}
	l := logger.With().Str("component", "inference").Str("provider", ai.Name()).Logger()
	return &InferenceClient{
		ai:      ai,
		model:   modelName,
		timeout: timeout,
		counter: counter,
		log:     &l,
	}
}

func (c *InferenceClient) Model() string { return c.model }

func (c *InferenceClient) ListModels(ctx context.Context) ([]string, error) {
	return c.ai.ListModels(ctx)
}

// Generate sends prompt to the configured model and waits at most the
// configured timeout for the reply.
func (c *InferenceClient) Generate(ctx context.Context, prompt string) model.Generation {
	defer logging.TraceDuration(c.log, "InferenceClient.Generate")()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	text, err := c.ai.Generate(ctx, c.model, prompt)
	elapsed := time.Since(start)

	gen := model.Generation{Text: text}
	if err != nil {
		gen = model.Generation{Err: classify(err)}
	}

	metrics.ObserveGeneration(c.ai.Name(), c.model, gen.ErrorKind(), c.count(prompt), c.count(gen.Text), elapsed.Milliseconds())

	if gen.OK() {
		c.log.Debug().Dur("elapsed", elapsed).Int("reply_len", len(gen.Text)).Msg("generation finished")
	} else {
		c.log.Warn().Err(gen.Err).Str("kind", gen.ErrorKind()).Dur("elapsed", elapsed).Msg("generation failed")
	}
	return gen
}

// Summarize asks the model for a short developer-oriented summary of the
// first SummaryInputLimit characters of content.
func (c *InferenceClient) Summarize(ctx context.Context, content string) model.Generation {
	return c.Generate(ctx, SummaryPrompt(content))
}

func SummaryPrompt(content string) string {
	if r := []rune(content); len(r) > SummaryInputLimit {
		content = string(r[:SummaryInputLimit])
	}
	return summaryPrompt + content
}

func (c *InferenceClient) count(s string) int {
	if c.counter == nil || s == "" {
		return 0
	}
	return c.counter.Count(s)
}

func classify(err error) *model.GenerationError {
	var status *adapter.StatusError
	if errors.As(err, &status) {
		return &model.GenerationError{Kind: model.GenErrHTTPStatus, StatusCode: status.StatusCode, Cause: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &model.GenerationError{Kind: model.GenErrTimeout, Cause: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &model.GenerationError{Kind: model.GenErrTimeout, Cause: err}
	}
	if errors.Is(err, domain.ErrMalformedResponse) || errors.Is(err, domain.ErrEmptyResponse) {
		return &model.GenerationError{Kind: model.GenErrMalformed, Cause: err}
	}
	return &model.GenerationError{Kind: model.GenErrTransport, Cause: err}
}
