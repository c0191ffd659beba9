// File: internal/usecase/chat_uc.go
package usecase

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"local-chat-assistant/internal/domain"
	"local-chat-assistant/internal/domain/model"
	"local-chat-assistant/internal/infra/logging"
	"local-chat-assistant/internal/infra/metrics"
)

// Compile-time check
var _ ChatUseCase = (*chatUC)(nil)

// ChatUseCase handles the events a chat front-end emits. Every method
// addresses one workspace; events of the same workspace run one at a time.
type ChatUseCase interface {
	NewChat(ctx context.Context, ws string) (*View, error)
	SelectChat(ctx context.Context, ws string, index int) (*View, error)
	ClearAll(ctx context.Context, ws string) (*View, error)
	SendMessage(ctx context.Context, ws, text string) (*Turn, error)
	SelectSuggestion(ctx context.Context, ws, text string) (*Turn, error)
	UploadFile(ctx context.Context, ws, name string, data []byte) (*View, model.Generation, error)
	View(ctx context.Context, ws string) (*View, error)
	Suggestions() []string
	ListModels(ctx context.Context) ([]string, error)
}

// TurnLocker serializes turns of one workspace across service instances.
type TurnLocker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}

// RateLimiter is a per-key fixed-window limiter.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// Limits bounds how often one workspace may trigger inference calls.
// Zero values disable the corresponding limit.
type Limits struct {
	MessagesPerMinute int
	UploadsPerMinute  int
	LockTTL           time.Duration
}

// ChatEntry is one saved chat as listed in the sidebar.
type ChatEntry struct {
	Index        int    `json:"index"`
	Title        string `json:"title"`
	FileName     string `json:"file_name,omitempty"`
	MessageCount int    `json:"message_count"`
	Active       bool   `json:"active"`
}

// View is everything a front-end needs to render a workspace.
type View struct {
	Chats       []ChatEntry         `json:"chats"`
	ActiveIndex *int                `json:"active_index"`
	Messages    []model.ChatMessage `json:"messages"`
	FileName    string              `json:"file_name,omitempty"`
	FileSummary string              `json:"file_summary,omitempty"`
	// Suggestions is filled while the active chat has no messages.
	Suggestions []string `json:"suggestions,omitempty"`
}

// Turn is the outcome of one user prompt: the stored user message, the
// paired assistant message and the typed inference result behind it.
type Turn struct {
	User       model.ChatMessage `json:"user"`
	Assistant  model.ChatMessage `json:"assistant"`
	Generation model.Generation  `json:"-"`
	ErrorKind  string            `json:"error_kind,omitempty"`
	View       *View             `json:"view"`
}

const (
	actionMessage = "message"
	actionUpload  = "upload"
)

type chatUC struct {
	reg     *WorkspaceRegistry
	infer   *InferenceClient
	locker  TurnLocker
	limiter RateLimiter
	limits  Limits
	log     *zerolog.Logger
}

// NewChatUseCase wires the chat handlers. locker and limiter are optional.
func NewChatUseCase(
	reg *WorkspaceRegistry,
	infer *InferenceClient,
	locker TurnLocker,
	limiter RateLimiter,
	limits Limits,
	logger *zerolog.Logger,
) *chatUC {
	if logger == nil {
		logger = logging.Nop()
	}
	if limits.LockTTL <= 0 {
		limits.LockTTL = 3 * time.Minute
	}
	l := logger.With().Str("component", "chat").Logger()
	return &chatUC{
		reg:     reg,
		infer:   infer,
		locker:  locker,
		limiter: limiter,
		limits:  limits,
		log:     &l,
	}
}

func (c *chatUC) NewChat(ctx context.Context, ws string) (*View, error) {
	defer logging.TraceDuration(c.log, "ChatUC.NewChat")()
	return c.mutate(ctx, ws, "new_chat", func(s *model.SessionStore) error {
		s.StartNewChat()
		return nil
	})
}

func (c *chatUC) SelectChat(ctx context.Context, ws string, index int) (*View, error) {
	defer logging.TraceDuration(c.log, "ChatUC.SelectChat")()
	return c.mutate(ctx, ws, "select_chat", func(s *model.SessionStore) error {
		return s.SelectChat(index)
	})
}

func (c *chatUC) ClearAll(ctx context.Context, ws string) (*View, error) {
	defer logging.TraceDuration(c.log, "ChatUC.ClearAll")()
	return c.mutate(ctx, ws, "clear_all", func(s *model.SessionStore) error {
		s.ClearAll()
		return nil
	})
}

func (c *chatUC) SendMessage(ctx context.Context, ws, text string) (*Turn, error) {
	defer logging.TraceDuration(c.log, "ChatUC.SendMessage")()
	return c.turn(ctx, ws, text, "message")
}

// SelectSuggestion submits a starter prompt exactly like a typed message.
func (c *chatUC) SelectSuggestion(ctx context.Context, ws, text string) (*Turn, error) {
	defer logging.TraceDuration(c.log, "ChatUC.SelectSuggestion")()
	return c.turn(ctx, ws, text, "suggestion")
}

// UploadFile summarises the file and attaches the summary to the active
// chat, replacing any earlier one. The returned Generation is the raw
// summarisation result; the View carries the rendered text.
func (c *chatUC) UploadFile(ctx context.Context, ws, name string, data []byte) (*View, model.Generation, error) {
	defer logging.TraceDuration(c.log, "ChatUC.UploadFile")()

	name = filepath.Base(strings.TrimSpace(stripNUL(name)))
	if err := ValidateUploadName(name); err != nil {
		return nil, model.Generation{}, err
	}
	if err := c.allow(ctx, ws, actionUpload, c.limits.UploadsPerMinute); err != nil {
		return nil, model.Generation{}, err
	}
	unlock, err := c.lockTurn(ctx, ws)
	if err != nil {
		return nil, model.Generation{}, err
	}
	defer unlock()

	var (
		view *View
		gen  model.Generation
	)
	err = c.reg.Do(ctx, ws, func(s *model.SessionStore) error {
		gen = c.infer.Summarize(context.WithoutCancel(ctx), DecodeUpload(data))
		s.AttachFileSummary(name, stripNUL(gen.Display(SummaryErrorPrefix, SummaryFallback)))
		c.reg.Persist(ctx, ws, s)
		view = buildView(s)
		return nil
	})
	if err != nil {
		return nil, model.Generation{}, err
	}
	metrics.IncChatEvent("upload")
	logging.With(ctx, c.log).Info().
		Str("file", name).
		Int("bytes", len(data)).
		Str("error_kind", gen.ErrorKind()).
		Msg("file summarised")
	return view, gen, nil
}

func (c *chatUC) View(ctx context.Context, ws string) (*View, error) {
	var view *View
	err := c.reg.Do(ctx, ws, func(s *model.SessionStore) error {
		view = buildView(s)
		return nil
	})
	return view, err
}

func (c *chatUC) Suggestions() []string { return Suggestions() }

func (c *chatUC) ListModels(ctx context.Context) ([]string, error) {
	return c.infer.ListModels(ctx)
}

// --- internal ---

func (c *chatUC) mutate(ctx context.Context, ws, event string, fn func(*model.SessionStore) error) (*View, error) {
	var view *View
	err := c.reg.Do(ctx, ws, func(s *model.SessionStore) error {
		if err := fn(s); err != nil {
			return err
		}
		c.reg.Persist(ctx, ws, s)
		view = buildView(s)
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.IncChatEvent(event)
	return view, nil
}

// turn appends the user prompt, asks the model and appends whatever came
// back. The assistant message is appended even when inference failed, so a
// user message is never left unanswered.
func (c *chatUC) turn(ctx context.Context, ws, text, event string) (*Turn, error) {
	text = strings.TrimSpace(stripNUL(text))
	if text == "" {
		return nil, fmt.Errorf("empty message: %w", domain.ErrInvalidArgument)
	}
	if err := c.allow(ctx, ws, actionMessage, c.limits.MessagesPerMinute); err != nil {
		return nil, err
	}
	unlock, err := c.lockTurn(ctx, ws)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var t Turn
	err = c.reg.Do(ctx, ws, func(s *model.SessionStore) error {
		userMsg, err := s.AppendMessage(model.RoleUser, text)
		if err != nil {
			return err
		}
		// the request is bounded by the inference timeout only
		gen := c.infer.Generate(context.WithoutCancel(ctx), text)
		reply, err := s.AppendMessage(model.RoleAssistant, stripNUL(gen.Display(ReplyErrorPrefix, ReplyFallback)))
		if err != nil {
			return err
		}
		c.reg.Persist(ctx, ws, s)

		t = Turn{
			User:       userMsg,
			Assistant:  reply,
			Generation: gen,
			ErrorKind:  gen.ErrorKind(),
			View:       buildView(s),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.IncChatEvent(event)
	logging.With(ctx, c.log).Info().
		Str("event", event).
		Str("error_kind", t.ErrorKind).
		Int("prompt_tokens", t.User.Tokens).
		Int("reply_tokens", t.Assistant.Tokens).
		Msg("turn completed")
	return &t, nil
}

func (c *chatUC) allow(ctx context.Context, ws, action string, limit int) error {
	if c.limiter == nil || limit <= 0 {
		return nil
	}
	ok, err := c.limiter.Allow(ctx, rateLimitKey(ws, action), limit, time.Minute)
	if err != nil {
		// fail open
		logging.With(ctx, c.log).Warn().Err(err).Str("action", action).Msg("rate limiter unavailable")
		return nil
	}
	if !ok {
		metrics.IncRateLimitTriggered(action)
		return domain.ErrRateLimited
	}
	return nil
}

func (c *chatUC) lockTurn(ctx context.Context, ws string) (func(), error) {
	if c.locker == nil {
		return func() {}, nil
	}
	key := turnLockKey(ws)
	token, err := c.locker.TryLock(ctx, key, c.limits.LockTTL)
	if err != nil {
		return nil, err
	}
	return func() {
		if err := c.locker.Unlock(context.WithoutCancel(ctx), key, token); err != nil {
			c.log.Warn().Err(err).Str("workspace_id", ws).Msg("failed to release turn lock")
		}
	}, nil
}

func rateLimitKey(ws, action string) string { return "rate_limit:" + ws + ":" + action }

func turnLockKey(ws string) string { return "lock:turn:" + ws }

func buildView(s *model.SessionStore) *View {
	v := &View{Messages: s.ActiveMessages()}
	active, hasActive := s.ActiveIndex()
	if hasActive {
		v.ActiveIndex = &active
	}
	for i, cs := range s.Sessions() {
		v.Chats = append(v.Chats, ChatEntry{
			Index:        i,
			Title:        cs.Title,
			FileName:     cs.FileName,
			MessageCount: len(cs.Messages),
			Active:       hasActive && i == active,
		})
	}
	if v.Chats == nil {
		v.Chats = []ChatEntry{}
	}
	if cur, ok := s.Active(); ok {
		v.FileName = cur.FileName
		v.FileSummary = cur.FileSummary
	}
	if len(v.Messages) == 0 {
		v.Suggestions = Suggestions()
	}
	return v
}
