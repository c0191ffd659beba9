// File: internal/domain/ports/adapter/telegram.go
package adapter

import "context"

// MaxButtonData is the most callback data Telegram echoes back for a button.
const MaxButtonData = 64

// InlineButton is one tappable reply option under a bot message. Tapping it
// sends Data back to the bot as a callback query.
type InlineButton struct {
	Text string
	Data string
}

// TelegramBotAdapter delivers chat replies to a Telegram chat. Long texts are
// split by the implementation; rows lay buttons out top to bottom.
type TelegramBotAdapter interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
	SendButtons(ctx context.Context, chatID int64, text string, rows [][]InlineButton) error
}
