package application

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"local-chat-assistant/internal/domain"
	"local-chat-assistant/internal/domain/ports/adapter"
	"local-chat-assistant/internal/infra/i18n"
	"local-chat-assistant/internal/infra/logging"
	"local-chat-assistant/internal/usecase"
)

// Compile-time check
var _ Facade = (*BotFacade)(nil)

// Callback data prefixes for inline buttons.
const (
	SelectPrefix     = "select:"
	SuggestionPrefix = "sugg:"
)

// Reply is what a text front-end shows for one event.
type Reply struct {
	Text    string
	Buttons [][]adapter.InlineButton
}

// BotFacade turns chat events into localized text replies. It serves the
// Telegram bot and the terminal demo; both number chats from 1.
type BotFacade struct {
	ChatUC usecase.ChatUseCase

	tr        *i18n.Translator
	maxUpload int64
	log       *zerolog.Logger
}

func NewBotFacade(chatUC usecase.ChatUseCase, tr *i18n.Translator, maxUpload int64, logger *zerolog.Logger) *BotFacade {
	if logger == nil {
		logger = logging.Nop()
	}
	if maxUpload <= 0 {
		maxUpload = 10 << 20
	}
	l := logger.With().Str("component", "facade").Logger()
	return &BotFacade{ChatUC: chatUC, tr: tr, maxUpload: maxUpload, log: &l}
}

// HandleStart greets the user. An empty chat also gets the starter
// suggestions as buttons.
func (b *BotFacade) HandleStart(ctx context.Context, ws string) (Reply, error) {
	view, err := b.ChatUC.View(ctx, ws)
	if err != nil {
		return b.explain(ctx, "view", err)
	}
	text := b.tr.T("greeting") + "\n\n" + b.tr.T("help")
	if len(view.Messages) > 0 {
		return Reply{Text: text}, nil
	}
	sugg := b.HandleSuggestions()
	return Reply{Text: text + "\n\n" + sugg.Text, Buttons: sugg.Buttons}, nil
}

// HandleHelp returns the help text stored under key.
func (b *BotFacade) HandleHelp(key string) Reply {
	return Reply{Text: b.tr.T(key)}
}

func (b *BotFacade) HandleNewChat(ctx context.Context, ws string) (Reply, error) {
	if _, err := b.ChatUC.NewChat(ctx, ws); err != nil {
		return b.explain(ctx, "new chat", err)
	}
	return Reply{Text: b.tr.T("new_chat")}, nil
}

// HandleChats lists saved chats with one select button per chat.
func (b *BotFacade) HandleChats(ctx context.Context, ws string) (Reply, error) {
	view, err := b.ChatUC.View(ctx, ws)
	if err != nil {
		return b.explain(ctx, "list chats", err)
	}
	if len(view.Chats) == 0 {
		return Reply{Text: b.tr.T("chats_empty")}, nil
	}

	var sb strings.Builder
	sb.WriteString(b.tr.T("chats_header"))
	rows := make([][]adapter.InlineButton, 0, len(view.Chats))
	for _, c := range view.Chats {
		key := "chat_line"
		if c.Active {
			key = "chat_line_active"
		}
		sb.WriteString("\n")
		sb.WriteString(b.tr.T(key, c.Index+1, c.Title, c.MessageCount))
		rows = append(rows, []adapter.InlineButton{{
			Text: strconv.Itoa(c.Index+1) + ". " + c.Title,
			Data: SelectPrefix + strconv.Itoa(c.Index),
		}})
	}
	return Reply{Text: sb.String(), Buttons: rows}, nil
}

// HandleSelect switches to the chat numbered by arg. Without an argument it
// lists the chats instead.
func (b *BotFacade) HandleSelect(ctx context.Context, ws, arg string) (Reply, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return b.HandleChats(ctx, ws)
	}
	n, err := strconv.Atoi(arg)
	if err != nil {
		return Reply{Text: b.tr.T("select_usage")}, nil
	}
	return b.HandleSelectIndex(ctx, ws, n-1)
}

// HandleSelectIndex switches to the chat at the zero-based index.
func (b *BotFacade) HandleSelectIndex(ctx context.Context, ws string, index int) (Reply, error) {
	view, err := b.ChatUC.SelectChat(ctx, ws, index)
	if err != nil {
		if errors.Is(err, domain.ErrIndexOutOfRange) {
			return Reply{Text: b.tr.T("err_out_of_range", index+1)}, nil
		}
		return b.explain(ctx, "select chat", err)
	}
	title := ""
	if index < len(view.Chats) {
		title = view.Chats[index].Title
	}
	text := b.tr.T("chat_selected", index+1, title)
	if view.FileSummary != "" {
		text += "\n\n" + b.tr.T("summary_header", view.FileName) + "\n" + view.FileSummary
	}
	if n := len(view.Messages); n > 0 {
		text += "\n\n" + view.Messages[n-1].Content
	}
	return Reply{Text: text}, nil
}

func (b *BotFacade) HandleClear(ctx context.Context, ws string) (Reply, error) {
	if _, err := b.ChatUC.ClearAll(ctx, ws); err != nil {
		return b.explain(ctx, "clear chats", err)
	}
	return Reply{Text: b.tr.T("chats_cleared")}, nil
}

// HandleSuggestions lists the starter prompts, numbered, with a button each.
func (b *BotFacade) HandleSuggestions() Reply {
	items := b.ChatUC.Suggestions()
	var sb strings.Builder
	sb.WriteString(b.tr.T("suggestions_intro"))
	rows := make([][]adapter.InlineButton, 0, len(items))
	for i, s := range items {
		sb.WriteString(fmt.Sprintf("\n%d. %s", i+1, s))
		rows = append(rows, []adapter.InlineButton{{Text: s, Data: SuggestionPrefix + strconv.Itoa(i)}})
	}
	return Reply{Text: sb.String(), Buttons: rows}
}

// HandleSuggestion submits the starter prompt at the zero-based index.
func (b *BotFacade) HandleSuggestion(ctx context.Context, ws string, index int) (Reply, error) {
	items := b.ChatUC.Suggestions()
	if index < 0 || index >= len(items) {
		return Reply{Text: b.tr.T("err_generic")}, fmt.Errorf("suggestion %d: %w", index, domain.ErrInvalidArgument)
	}
	turn, err := b.ChatUC.SelectSuggestion(ctx, ws, items[index])
	if err != nil {
		return b.explain(ctx, "suggestion", err)
	}
	return Reply{Text: turn.Assistant.Content}, nil
}

// HandleMessage runs one chat turn and replies with the assistant text,
// which is an error description when inference failed.
func (b *BotFacade) HandleMessage(ctx context.Context, ws, text string) (Reply, error) {
	turn, err := b.ChatUC.SendMessage(ctx, ws, text)
	if err != nil {
		return b.explain(ctx, "send message", err)
	}
	return Reply{Text: turn.Assistant.Content}, nil
}

// PrecheckUpload rejects a file by name and size before it is fetched.
func (b *BotFacade) PrecheckUpload(name string, size int64) (Reply, bool) {
	if size > b.maxUpload {
		return Reply{Text: b.tr.T("err_file_too_large", b.maxUpload>>20)}, false
	}
	if err := usecase.ValidateUploadName(name); err != nil {
		return Reply{Text: b.tr.T("err_unsupported_file")}, false
	}
	return Reply{}, true
}

// HandleUpload summarises the file into the active chat.
func (b *BotFacade) HandleUpload(ctx context.Context, ws, name string, data []byte) (Reply, error) {
	if r, ok := b.PrecheckUpload(name, int64(len(data))); !ok {
		return r, nil
	}
	view, _, err := b.ChatUC.UploadFile(ctx, ws, name, data)
	if err != nil {
		return b.explain(ctx, "upload", err)
	}
	return Reply{Text: b.tr.T("summary_header", view.FileName) + "\n" + view.FileSummary}, nil
}

// explain maps err to a user-facing reply. Errors the user cannot act on
// are also returned for logging.
func (b *BotFacade) explain(ctx context.Context, op string, err error) (Reply, error) {
	switch {
	case errors.Is(err, domain.ErrRateLimited):
		return Reply{Text: b.tr.T("err_rate_limited")}, nil
	case errors.Is(err, domain.ErrTurnInProgress):
		return Reply{Text: b.tr.T("err_busy")}, nil
	case errors.Is(err, domain.ErrUnsupportedFile):
		return Reply{Text: b.tr.T("err_unsupported_file")}, nil
	case errors.Is(err, domain.ErrInvalidArgument):
		return Reply{Text: b.tr.T("err_empty_message")}, nil
	case errors.Is(err, domain.ErrUnavailable):
		logging.With(ctx, b.log).Warn().Err(err).Str("op", op).Msg("history unavailable")
		return Reply{Text: b.tr.T("err_unavailable")}, nil
	}
	logging.With(ctx, b.log).Error().Err(err).Str("op", op).Msg("chat event failed")
	return Reply{Text: b.tr.T("err_generic")}, fmt.Errorf("%s: %w", op, err)
}
