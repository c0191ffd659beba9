package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"local-chat-assistant/internal/domain"
	"local-chat-assistant/internal/domain/model"
	"local-chat-assistant/internal/domain/ports/repository"
	"local-chat-assistant/internal/infra/metrics"
)

var _ repository.WorkspaceRepository = (*ChatCache)(nil)

// ChatCache keeps workspace snapshots as JSON with a sliding TTL. It serves
// either as the only workspace store or as a read-through cache in front of
// Postgres.
type ChatCache struct {
	client RedisClient
	ttl    time.Duration
}

func NewChatCache(client RedisClient, ttl time.Duration) *ChatCache {
	return &ChatCache{
		client: client,
		ttl:    ttl,
	}
}

func workspaceKey(ws string) string { return "chat_workspace:" + ws }

func (c *ChatCache) Save(ctx context.Context, ws string, snap *model.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return c.client.Set(ctx, workspaceKey(ws), data, c.ttl)
}

func (c *ChatCache) Load(ctx context.Context, ws string) (*model.Snapshot, error) {
	key := workspaceKey(ws)
	data, err := c.client.Get(ctx, key)
	if errors.Is(err, redis.Nil) {
		metrics.IncCacheRequest("miss")
		return nil, domain.ErrNotFound
	}
	if err != nil {
		metrics.IncCacheRequest("error")
		return nil, err
	}
	metrics.IncCacheRequest("hit")

	var snap model.Snapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	_ = c.client.Expire(ctx, key, c.ttl)
	return &snap, nil
}

func (c *ChatCache) Delete(ctx context.Context, ws string) error {
	return c.client.Del(ctx, workspaceKey(ws))
}
