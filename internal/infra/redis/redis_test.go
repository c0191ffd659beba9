//go:build !integration

package redis

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"

	"local-chat-assistant/internal/config"
	"local-chat-assistant/internal/domain"
	"local-chat-assistant/internal/domain/model"
)

// memClient is an in-process RedisClient.
type memClient struct {
	mu   sync.Mutex
	kv   map[string]string
	ttls map[string]time.Duration
}

func newMemClient() *memClient {
	return &memClient{kv: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memClient) Ping(ctx context.Context) error { return nil }

func (m *memClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch v := value.(type) {
	case []byte:
		m.kv[key] = string(v)
	case string:
		m.kv[key] = v
	default:
		return errors.New("unsupported value type")
	}
	m.ttls[key] = expiration
	return nil
}

func (m *memClient) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.kv[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (m *memClient) Incr(ctx context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, _ := strconv.ParseInt(m.kv[key], 10, 64)
	n++
	m.kv[key] = strconv.FormatInt(n, 10)
	return n, nil
}

func (m *memClient) Expire(ctx context.Context, key string, expiration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ttls[key] = expiration
	return nil
}

func (m *memClient) Del(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.kv, k)
		delete(m.ttls, k)
	}
	return nil
}

func (m *memClient) Close() error { return nil }

func TestChatCache_RoundTrip(t *testing.T) {
	ctx := context.Background()
	cli := newMemClient()
	cache := NewChatCache(cli, time.Hour)

	t.Run("missing workspace is not found", func(t *testing.T) {
		if _, err := cache.Load(ctx, "ws-none"); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	store := model.NewSessionStore()
	if _, err := store.AppendMessage(model.RoleUser, "hello there"); err != nil {
		t.Fatal(err)
	}
	if err := cache.Save(ctx, "ws-1", store.Snapshot()); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if cli.ttls[workspaceKey("ws-1")] != time.Hour {
		t.Errorf("expected ttl to be set on save")
	}

	t.Run("load returns the saved snapshot", func(t *testing.T) {
		snap, err := cache.Load(ctx, "ws-1")
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if len(snap.Sessions) != 1 || snap.ActiveIndex != 0 {
			t.Fatalf("unexpected snapshot: %+v", snap)
		}
		if got := snap.Sessions[0].Messages[0].Content; got != "hello there" {
			t.Errorf("unexpected message %q", got)
		}
	})

	t.Run("delete removes it", func(t *testing.T) {
		if err := cache.Delete(ctx, "ws-1"); err != nil {
			t.Fatal(err)
		}
		if _, err := cache.Load(ctx, "ws-1"); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound after delete, got %v", err)
		}
	})
}

func TestRateLimiter_Allow(t *testing.T) {
	ctx := context.Background()
	cli := newMemClient()
	rl := NewRateLimiter(cli)
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	rl.now = func() time.Time { return now }
	key := "rate_limit:ws-1:message"

	for i := 1; i <= 3; i++ {
		ok, err := rl.Allow(ctx, key, 3, time.Minute)
		if err != nil || !ok {
			t.Fatalf("call %d should be allowed, got ok=%v err=%v", i, ok, err)
		}
	}
	ok, err := rl.Allow(ctx, key, 3, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("fourth call should be limited")
	}
	if ttl := cli.ttls[windowKey(key, now, time.Minute)]; ttl < time.Minute {
		t.Errorf("expected the window key to expire after at least a minute, got %v", ttl)
	}

	t.Run("next window starts fresh", func(t *testing.T) {
		now = now.Add(time.Minute)
		ok, err := rl.Allow(ctx, key, 3, time.Minute)
		if err != nil || !ok {
			t.Fatalf("expected a fresh window, got ok=%v err=%v", ok, err)
		}
	})

	t.Run("keys are independent", func(t *testing.T) {
		ok, err := rl.Allow(ctx, "rate_limit:ws-2:message", 1, time.Minute)
		if err != nil || !ok {
			t.Fatalf("other workspace should not be limited, got ok=%v err=%v", ok, err)
		}
	})
}

func TestClientOptions(t *testing.T) {
	t.Run("bare address", func(t *testing.T) {
		opts, err := clientOptions(&config.RedisConfig{URL: "localhost:6379", DB: 2})
		if err != nil {
			t.Fatal(err)
		}
		if opts.Addr != "localhost:6379" || opts.DB != 2 {
			t.Fatalf("unexpected options %+v", opts)
		}
	})

	t.Run("url with overrides", func(t *testing.T) {
		opts, err := clientOptions(&config.RedisConfig{URL: "redis://:urlpass@cache:6380/1", Password: "cfgpass"})
		if err != nil {
			t.Fatal(err)
		}
		if opts.Addr != "cache:6380" || opts.DB != 1 || opts.Password != "cfgpass" {
			t.Fatalf("unexpected options %+v", opts)
		}
	})

	t.Run("bad url", func(t *testing.T) {
		if _, err := clientOptions(&config.RedisConfig{URL: "http://cache"}); err == nil {
			t.Fatal("expected an error for a non-redis scheme")
		}
	})
}

// lockCmdable answers just the commands RedisLocker sends.
type lockCmdable struct {
	redis.Cmdable
	mu   sync.Mutex
	held map[string]string
}

func (l *lockCmdable) SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) *redis.BoolCmd {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	l.held[key] = value.(string)
	return redis.NewBoolResult(true, nil)
}

func (l *lockCmdable) EvalSha(ctx context.Context, sha1 string, keys []string, args ...interface{}) *redis.Cmd {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[keys[0]] != args[0].(string) {
		return redis.NewCmdResult(int64(0), nil)
	}
	delete(l.held, keys[0])
	return redis.NewCmdResult(int64(1), nil)
}

func TestRedisLocker(t *testing.T) {
	ctx := context.Background()
	cli := &lockCmdable{held: map[string]string{}}
	l := newLocker(cli)
	l.wait = time.Millisecond

	token, err := l.TryLock(ctx, "turn:ws-1", time.Second)
	if err != nil || token == "" {
		t.Fatalf("first lock: token=%q err=%v", token, err)
	}
	if _, err := l.TryLock(ctx, "turn:ws-1", time.Second); !errors.Is(err, domain.ErrTurnInProgress) {
		t.Fatalf("expected ErrTurnInProgress, got %v", err)
	}
	if err := l.Unlock(ctx, "turn:ws-1", "someone-else"); !errors.Is(err, ErrLockLost) {
		t.Fatalf("foreign token should not release, got %v", err)
	}
	if err := l.Unlock(ctx, "turn:ws-1", token); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if _, err := l.TryLock(ctx, "turn:ws-1", time.Second); err != nil {
		t.Fatalf("lock after release: %v", err)
	}

	t.Run("cancelled while waiting", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		l.wait = time.Hour
		if _, err := l.TryLock(cctx, "turn:ws-1", time.Second); !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	})
}
