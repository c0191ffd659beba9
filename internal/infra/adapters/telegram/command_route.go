package telegram

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type commandHandler func(ctx context.Context, message *tgbotapi.Message) error

// commandRoutes defines all available bot commands and their handlers.
func (r *RealTelegramBotAdapter) commandRoutes() map[string]commandHandler {
	return map[string]commandHandler{
		"start":   r.handleStartCommand,
		"new":     r.handleNewCommand,
		"chats":   r.handleChatsCommand,
		"select":  r.handleSelectCommand,
		"clear":   r.handleClearCommand,
		"suggest": r.handleSuggestCommand,
		"help":    r.handleHelpCommand,
	}
}

// handleStartCommand greets the user and offers starter questions.
func (r *RealTelegramBotAdapter) handleStartCommand(ctx context.Context, message *tgbotapi.Message) error {
	reply, err := r.facade.HandleStart(ctx, WorkspaceID(message.Chat.ID))
	return r.respond(ctx, message.Chat.ID, reply, err)
}

func (r *RealTelegramBotAdapter) handleNewCommand(ctx context.Context, message *tgbotapi.Message) error {
	reply, err := r.facade.HandleNewChat(ctx, WorkspaceID(message.Chat.ID))
	return r.respond(ctx, message.Chat.ID, reply, err)
}

func (r *RealTelegramBotAdapter) handleChatsCommand(ctx context.Context, message *tgbotapi.Message) error {
	reply, err := r.facade.HandleChats(ctx, WorkspaceID(message.Chat.ID))
	return r.respond(ctx, message.Chat.ID, reply, err)
}

// handleSelectCommand handles "/select N"; without N it shows the chat picker.
func (r *RealTelegramBotAdapter) handleSelectCommand(ctx context.Context, message *tgbotapi.Message) error {
	reply, err := r.facade.HandleSelect(ctx, WorkspaceID(message.Chat.ID), message.CommandArguments())
	return r.respond(ctx, message.Chat.ID, reply, err)
}

func (r *RealTelegramBotAdapter) handleClearCommand(ctx context.Context, message *tgbotapi.Message) error {
	reply, err := r.facade.HandleClear(ctx, WorkspaceID(message.Chat.ID))
	return r.respond(ctx, message.Chat.ID, reply, err)
}

func (r *RealTelegramBotAdapter) handleSuggestCommand(ctx context.Context, message *tgbotapi.Message) error {
	return r.sendReply(ctx, message.Chat.ID, r.facade.HandleSuggestions())
}

func (r *RealTelegramBotAdapter) handleHelpCommand(ctx context.Context, message *tgbotapi.Message) error {
	return r.sendReply(ctx, message.Chat.ID, r.facade.HandleHelp("help"))
}
