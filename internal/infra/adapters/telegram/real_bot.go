package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"local-chat-assistant/internal/application"
	"local-chat-assistant/internal/config"
	"local-chat-assistant/internal/domain/ports/adapter"
	"local-chat-assistant/internal/infra/logging"
	"local-chat-assistant/internal/infra/metrics"
	"local-chat-assistant/internal/usecase"
)

var _ adapter.TelegramBotAdapter = (*RealTelegramBotAdapter)(nil)

// messageLimit is Telegram's maximum text length per message.
const messageLimit = 4096

// botAPI is the part of *tgbotapi.BotAPI the adapter uses.
type botAPI interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
}

// RealTelegramBotAdapter polls updates and delegates them to the facade.
// Each Telegram chat is its own workspace.
type RealTelegramBotAdapter struct {
	bot         botAPI
	facade      application.Facade
	translator  translator
	rateLimiter usecase.RateLimiter
	httpClient  *http.Client
	log         *zerolog.Logger

	updateWorkers int
	cancelPolling context.CancelFunc
}

type translator interface {
	T(key string, args ...interface{}) string
}

func NewRealTelegramBotAdapter(
	cfg *config.BotConfig,
	facade application.Facade,
	tr translator,
	rateLimiter usecase.RateLimiter,
	logger *zerolog.Logger,
) (*RealTelegramBotAdapter, error) {
	if cfg == nil {
		return nil, errors.New("bot config is nil")
	}
	if facade == nil {
		return nil, errors.New("bot facade is nil")
	}
	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("telegram login: %w", err)
	}
	return newAdapter(bot, facade, tr, rateLimiter, cfg.Workers, logger), nil
}

func newAdapter(bot botAPI, facade application.Facade, tr translator, rl usecase.RateLimiter, workers int, logger *zerolog.Logger) *RealTelegramBotAdapter {
	if workers <= 0 {
		workers = 4
	}
	if logger == nil {
		logger = logging.Nop()
	}
	l := logger.With().Str("component", "telegram").Logger()
	return &RealTelegramBotAdapter{
		bot:           bot,
		facade:        facade,
		translator:    tr,
		rateLimiter:   rl,
		httpClient:    &http.Client{Timeout: 60 * time.Second},
		log:           &l,
		updateWorkers: workers,
	}
}

// WorkspaceID names the workspace of a Telegram chat.
func WorkspaceID(chatID int64) string { return "tg:" + strconv.FormatInt(chatID, 10) }

// StartPolling blocks until ctx is cancelled or StopPolling is called.
// Updates of one chat are always handled by the same worker, so they are
// answered in order.
func (r *RealTelegramBotAdapter) StartPolling(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := r.bot.GetUpdatesChan(u)

	ctx, cancel := context.WithCancel(ctx)
	r.cancelPolling = cancel

	if err := r.SetMenuCommands(ctx); err != nil {
		r.log.Warn().Err(err).Msg("failed to set bot commands")
	}

	var wg sync.WaitGroup
	queues := make([]chan tgbotapi.Update, r.updateWorkers)
	for i := range queues {
		queues[i] = make(chan tgbotapi.Update, 100)
		wg.Add(1)
		go func(id int, in <-chan tgbotapi.Update) {
			defer wg.Done()
			for up := range in {
				if err := r.handleUpdate(ctx, up); err != nil {
					r.log.Error().Err(err).Int("worker", id).Msg("update failed")
				}
			}
		}(i, queues[i])
	}

	r.log.Info().Int("workers", r.updateWorkers).Msg("telegram polling started")
	defer func() {
		r.bot.StopReceivingUpdates()
		for _, q := range queues {
			close(q)
		}
		wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			chatID := updateChatID(up)
			if chatID < 0 {
				chatID = -chatID
			}
			q := queues[chatID%int64(len(queues))]
			select {
			case q <- up:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

func (r *RealTelegramBotAdapter) StopPolling() {
	if r.cancelPolling != nil {
		r.cancelPolling()
	}
}

// SetMenuCommands publishes the command list shown by Telegram clients.
func (r *RealTelegramBotAdapter) SetMenuCommands(ctx context.Context) error {
	cmds := tgbotapi.NewSetMyCommands(
		tgbotapi.BotCommand{Command: "new", Description: "Start a new chat"},
		tgbotapi.BotCommand{Command: "chats", Description: "List saved chats"},
		tgbotapi.BotCommand{Command: "select", Description: "Switch to chat N"},
		tgbotapi.BotCommand{Command: "clear", Description: "Delete all chats"},
		tgbotapi.BotCommand{Command: "suggest", Description: "Show example questions"},
		tgbotapi.BotCommand{Command: "help", Description: "Show help"},
	)
	_, err := r.bot.Request(cmds)
	return err
}

// SendMessage sends text, split into several messages when it is longer
// than Telegram allows.
func (r *RealTelegramBotAdapter) SendMessage(ctx context.Context, tgID int64, text string) error {
	for _, part := range splitText(text, messageLimit) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := r.bot.Send(tgbotapi.NewMessage(tgID, part)); err != nil {
			return err
		}
	}
	return nil
}

// SendButtons sends text with an inline keyboard under its last part.
// Buttons without Data echo their label back.
func (r *RealTelegramBotAdapter) SendButtons(
	ctx context.Context,
	telegramID int64,
	text string,
	rows [][]adapter.InlineButton,
) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	kbRows := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		kr := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, btn := range row {
			label := truncateRunes(strings.TrimSpace(btn.Text), 60)
			if label == "" {
				label = "•"
			}
			data := btn.Data
			if data == "" {
				data = label
			}
			if len(data) > adapter.MaxButtonData {
				return fmt.Errorf("button %q: callback data exceeds %d bytes", label, adapter.MaxButtonData)
			}
			kr = append(kr, tgbotapi.NewInlineKeyboardButtonData(label, data))
		}
		kbRows = append(kbRows, kr)
	}
	if len(kbRows) == 0 {
		return r.SendMessage(ctx, telegramID, text)
	}

	parts := splitText(text, messageLimit)
	for _, part := range parts[:len(parts)-1] {
		if _, err := r.bot.Send(tgbotapi.NewMessage(telegramID, part)); err != nil {
			return err
		}
	}
	msg := tgbotapi.NewMessage(telegramID, parts[len(parts)-1])
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(kbRows...)
	_, err := r.bot.Send(msg)
	return err
}

// sendReply sends a facade reply, with buttons when it has any.
func (r *RealTelegramBotAdapter) sendReply(ctx context.Context, chatID int64, reply application.Reply) error {
	if len(reply.Buttons) > 0 {
		return r.SendButtons(ctx, chatID, reply.Text, reply.Buttons)
	}
	return r.SendMessage(ctx, chatID, reply.Text)
}

// respond logs a facade error and sends the reply that came with it.
func (r *RealTelegramBotAdapter) respond(ctx context.Context, chatID int64, reply application.Reply, err error) error {
	if err != nil {
		logging.With(ctx, r.log).Error().Err(err).Int64("chat_id", chatID).Msg("telegram event failed")
	}
	return r.sendReply(ctx, chatID, reply)
}

// typing shows the "typing..." indicator while a slow call runs.
func (r *RealTelegramBotAdapter) typing(chatID int64) {
	if _, err := r.bot.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)); err != nil {
		r.log.Debug().Err(err).Int64("chat_id", chatID).Msg("chat action failed")
	}
}

func (r *RealTelegramBotAdapter) handleUpdate(ctx context.Context, update tgbotapi.Update) error {
	// ----- Inline button callbacks -----
	if update.CallbackQuery != nil {
		return r.handleQuery(ctx, update.CallbackQuery)
	}

	// ----- Regular messages -----
	msg := update.Message
	if msg == nil || msg.Chat == nil {
		return nil
	}
	chatID := msg.Chat.ID
	ctx = logging.WithWorkspaceID(ctx, WorkspaceID(chatID))

	command := "message"
	switch {
	case msg.IsCommand():
		command = "/" + msg.Command()
	case msg.Document != nil:
		command = "document"
	}
	metrics.IncTelegramCommand(command)

	if !r.allow(ctx, chatID, command) {
		return r.SendMessage(ctx, chatID, r.translator.T("err_rate_limited"))
	}

	switch {
	case msg.IsCommand():
		if fn, ok := r.commandRoutes()[msg.Command()]; ok {
			return fn(ctx, msg)
		}
		return r.handleHelpCommand(ctx, msg)
	case msg.Document != nil:
		return r.handleDocument(ctx, msg)
	case strings.TrimSpace(msg.Text) != "":
		r.typing(chatID)
		reply, err := r.facade.HandleMessage(ctx, WorkspaceID(chatID), msg.Text)
		return r.respond(ctx, chatID, reply, err)
	default:
		return nil
	}
}

// handleDocument checks the upload before fetching it from Telegram.
func (r *RealTelegramBotAdapter) handleDocument(ctx context.Context, msg *tgbotapi.Message) error {
	chatID := msg.Chat.ID
	doc := msg.Document
	if reply, ok := r.facade.PrecheckUpload(doc.FileName, int64(doc.FileSize)); !ok {
		return r.sendReply(ctx, chatID, reply)
	}
	if err := r.SendMessage(ctx, chatID, r.translator.T("summarizing")); err != nil {
		return err
	}
	r.typing(chatID)

	data, err := r.download(ctx, doc.FileID)
	if err != nil {
		logging.With(ctx, r.log).Error().Err(err).Str("file", doc.FileName).Msg("document download failed")
		return r.SendMessage(ctx, chatID, r.translator.T("err_generic"))
	}
	reply, err := r.facade.HandleUpload(ctx, WorkspaceID(chatID), doc.FileName, data)
	return r.respond(ctx, chatID, reply, err)
}

func (r *RealTelegramBotAdapter) download(ctx context.Context, fileID string) ([]byte, error) {
	url, err := r.bot.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("resolve file: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch file: status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// allow applies the per-chat command limit. Limiter errors fail open.
func (r *RealTelegramBotAdapter) allow(ctx context.Context, chatID int64, command string) bool {
	if r.rateLimiter == nil {
		return true
	}
	key := "rate_limit:" + WorkspaceID(chatID) + ":telegram"
	ok, err := r.rateLimiter.Allow(ctx, key, 30, time.Minute)
	if err != nil {
		r.log.Warn().Err(err).Msg("rate limiter unavailable")
		return true
	}
	if !ok {
		metrics.IncRateLimitTriggered("telegram")
		r.log.Debug().Int64("chat_id", chatID).Str("command", command).Msg("telegram rate limit hit")
	}
	return ok
}

func updateChatID(up tgbotapi.Update) int64 {
	switch {
	case up.Message != nil && up.Message.Chat != nil:
		return up.Message.Chat.ID
	case up.CallbackQuery != nil && up.CallbackQuery.Message != nil && up.CallbackQuery.Message.Chat != nil:
		return up.CallbackQuery.Message.Chat.ID
	case up.CallbackQuery != nil && up.CallbackQuery.From != nil:
		return up.CallbackQuery.From.ID
	}
	return 0
}

// splitText cuts s into pieces of at most limit runes, preferring line
// breaks. It always returns at least one piece.
func splitText(s string, limit int) []string {
	runes := []rune(s)
	if len(runes) <= limit {
		return []string{s}
	}
	var parts []string
	for len(runes) > limit {
		cut := limit
		for i := limit; i > limit/2; i-- {
			if runes[i-1] == '\n' {
				cut = i
				break
			}
		}
		parts = append(parts, string(runes[:cut]))
		runes = runes[cut:]
	}
	if len(runes) > 0 {
		parts = append(parts, string(runes))
	}
	return parts
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
