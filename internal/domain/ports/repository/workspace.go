package repository

import (
	"context"
	"time"

	"local-chat-assistant/internal/domain/model"
)

// -----------------------------
// Workspaces (chat histories)
// -----------------------------

// WorkspaceRepository persists the chat history of one workspace as a whole.
// Load returns domain.ErrNotFound for unknown workspaces.
type WorkspaceRepository interface {
	Load(ctx context.Context, workspaceID string) (*model.Snapshot, error)
	Save(ctx context.Context, workspaceID string, snap *model.Snapshot) error
	Delete(ctx context.Context, workspaceID string) error
}

// WorkspacePurger removes stored workspaces not written since before.
type WorkspacePurger interface {
	DeleteUpdatedBefore(ctx context.Context, before time.Time) (int64, error)
}
