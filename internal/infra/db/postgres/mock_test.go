//go:build !integration

package postgres

import (
	"context"
	"time"

	"local-chat-assistant/internal/domain/model"
	"local-chat-assistant/internal/domain/ports/repository"
	red "local-chat-assistant/internal/infra/redis"
)

// --- Mocks for Cache Decorator Tests ---

// mockInnerWorkspaceRepo mocks the database repository that the decorator wraps.
type mockInnerWorkspaceRepo struct {
	LoadFunc   func(ctx context.Context, ws string) (*model.Snapshot, error)
	SaveFunc   func(ctx context.Context, ws string, snap *model.Snapshot) error
	DeleteFunc func(ctx context.Context, ws string) error
}

var _ repository.WorkspaceRepository = (*mockInnerWorkspaceRepo)(nil)

func (m *mockInnerWorkspaceRepo) Load(ctx context.Context, ws string) (*model.Snapshot, error) {
	return m.LoadFunc(ctx, ws)
}
func (m *mockInnerWorkspaceRepo) Save(ctx context.Context, ws string, snap *model.Snapshot) error {
	return m.SaveFunc(ctx, ws, snap)
}
func (m *mockInnerWorkspaceRepo) Delete(ctx context.Context, ws string) error {
	return m.DeleteFunc(ctx, ws)
}

// mockRedisClient mocks our Redis client wrapper.
type mockRedisClient struct {
	GetFunc    func(ctx context.Context, key string) (string, error)
	SetFunc    func(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	DelFunc    func(ctx context.Context, keys ...string) error
	ExpireFunc func(ctx context.Context, key string, expiration time.Duration) error
}

var _ red.RedisClient = &mockRedisClient{}

func (m *mockRedisClient) Get(ctx context.Context, key string) (string, error) {
	return m.GetFunc(ctx, key)
}
func (m *mockRedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if m.SetFunc == nil {
		return nil
	}
	return m.SetFunc(ctx, key, value, expiration)
}
func (m *mockRedisClient) Del(ctx context.Context, keys ...string) error {
	if m.DelFunc == nil {
		return nil
	}
	return m.DelFunc(ctx, keys...)
}
func (m *mockRedisClient) Expire(ctx context.Context, key string, expiration time.Duration) error {
	if m.ExpireFunc == nil {
		return nil
	}
	return m.ExpireFunc(ctx, key, expiration)
}
func (m *mockRedisClient) Ping(ctx context.Context) error                       { return nil }
func (m *mockRedisClient) Incr(ctx context.Context, key string) (int64, error) { return 0, nil }
func (m *mockRedisClient) Close() error                                         { return nil }
