package postgres

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"local-chat-assistant/internal/domain"
	"local-chat-assistant/internal/domain/model"
	"local-chat-assistant/internal/domain/ports/repository"
	red "local-chat-assistant/internal/infra/redis"
)

var _ repository.WorkspaceRepository = (*workspaceRepoCacheDecorator)(nil)

type workspaceRepoCacheDecorator struct {
	inner repository.WorkspaceRepository
	cache *red.ChatCache
	log   *zerolog.Logger
}

// NewWorkspaceRepoCacheDecorator puts the Redis snapshot cache in front of
// inner. Reads fill the cache; writes invalidate it.
func NewWorkspaceRepoCacheDecorator(inner repository.WorkspaceRepository, cache *red.ChatCache, logger *zerolog.Logger) repository.WorkspaceRepository {
	return &workspaceRepoCacheDecorator{inner: inner, cache: cache, log: logger}
}

func (d *workspaceRepoCacheDecorator) Load(ctx context.Context, ws string) (*model.Snapshot, error) {
	snap, err := d.cache.Load(ctx, ws)
	if err == nil {
		return snap, nil
	}
	if !errors.Is(err, domain.ErrNotFound) && d.log != nil {
		d.log.Warn().Err(err).Str("workspace_id", ws).Msg("workspace cache read failed")
	}

	snap, err = d.inner.Load(ctx, ws)
	if err != nil {
		return nil, err
	}
	_ = d.cache.Save(ctx, ws, snap)
	return snap, nil
}

// For write operations, we must invalidate the cache.
func (d *workspaceRepoCacheDecorator) Save(ctx context.Context, ws string, snap *model.Snapshot) error {
	_ = d.cache.Delete(ctx, ws)
	return d.inner.Save(ctx, ws, snap)
}

func (d *workspaceRepoCacheDecorator) Delete(ctx context.Context, ws string) error {
	_ = d.cache.Delete(ctx, ws)
	return d.inner.Delete(ctx, ws)
}
