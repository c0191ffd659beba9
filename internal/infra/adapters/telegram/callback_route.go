package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"local-chat-assistant/internal/application"
	"local-chat-assistant/internal/infra/logging"
	"local-chat-assistant/internal/infra/metrics"
)

type cbHandler func(ctx context.Context, chatID int64, data string) error
type prefixCB struct {
	Prefix string
	Fn     cbHandler
}

// Prefix-match callbacks
func (r *RealTelegramBotAdapter) cbPrefixRoutes() []prefixCB {
	return []prefixCB{
		{
			Prefix: application.SelectPrefix,
			Fn:     r.selectPrefixCBRoute,
		},
		{
			Prefix: application.SuggestionPrefix,
			Fn:     r.suggestionPrefixCBRoute,
		},
	}
}

func (r *RealTelegramBotAdapter) selectPrefixCBRoute(ctx context.Context, chatID int64, data string) error {
	idx, err := callbackIndex(data, application.SelectPrefix)
	if err != nil {
		return err
	}
	reply, err := r.facade.HandleSelectIndex(ctx, WorkspaceID(chatID), idx)
	return r.respond(ctx, chatID, reply, err)
}

func (r *RealTelegramBotAdapter) suggestionPrefixCBRoute(ctx context.Context, chatID int64, data string) error {
	idx, err := callbackIndex(data, application.SuggestionPrefix)
	if err != nil {
		return err
	}
	r.typing(chatID)
	reply, err := r.facade.HandleSuggestion(ctx, WorkspaceID(chatID), idx)
	return r.respond(ctx, chatID, reply, err)
}

func (r *RealTelegramBotAdapter) handleQuery(ctx context.Context, query *tgbotapi.CallbackQuery) error {
	if query == nil || query.From == nil {
		return errors.New("invalid callback query")
	}

	// Stop telegram spinner when we return
	defer func() { _, _ = r.bot.Request(tgbotapi.NewCallback(query.ID, "")) }()

	var chatID int64
	if query.Message != nil && query.Message.Chat != nil {
		chatID = query.Message.Chat.ID
	} else {
		chatID = query.From.ID
	}
	if chatID == 0 {
		return nil
	}
	ctx = logging.WithWorkspaceID(ctx, WorkspaceID(chatID))

	data := strings.TrimSpace(query.Data)
	metrics.IncTelegramCommand("callback")
	if !r.allow(ctx, chatID, "callback") {
		return r.SendMessage(ctx, chatID, r.translator.T("err_rate_limited"))
	}

	for _, pr := range r.cbPrefixRoutes() {
		if strings.HasPrefix(data, pr.Prefix) {
			return pr.Fn(ctx, chatID, data)
		}
	}
	return fmt.Errorf("unknown callback data %q", data)
}

func callbackIndex(data, prefix string) (int, error) {
	idx, err := strconv.Atoi(strings.TrimPrefix(data, prefix))
	if err != nil {
		return 0, fmt.Errorf("callback %q: %w", data, err)
	}
	return idx, nil
}
