package application

import "context"

// Facade is the surface the text front-ends depend on. Using an interface
// lets the Telegram adapter be tested with a light-weight mock.
type Facade interface {
	HandleStart(ctx context.Context, ws string) (Reply, error)
	HandleHelp(key string) Reply
	HandleNewChat(ctx context.Context, ws string) (Reply, error)
	HandleChats(ctx context.Context, ws string) (Reply, error)
	HandleSelect(ctx context.Context, ws, arg string) (Reply, error)
	HandleSelectIndex(ctx context.Context, ws string, index int) (Reply, error)
	HandleClear(ctx context.Context, ws string) (Reply, error)
	HandleSuggestions() Reply
	HandleSuggestion(ctx context.Context, ws string, index int) (Reply, error)
	HandleMessage(ctx context.Context, ws, text string) (Reply, error)
	PrecheckUpload(name string, size int64) (Reply, bool)
	HandleUpload(ctx context.Context, ws, name string, data []byte) (Reply, error)
}
