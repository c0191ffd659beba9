// File: internal/infra/redis/lock.go
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"local-chat-assistant/internal/domain"
)

// ErrLockLost is returned by Unlock when the lock expired and may have been
// taken by another instance in the meantime.
var ErrLockLost = errors.New("turn lock expired before release")

// RedisLocker serializes chat turns of one workspace across instances with
// SET NX PX and a compare-and-delete release.
type RedisLocker struct {
	cli   redis.Cmdable
	tries int
	wait  time.Duration
}

func NewLocker(c *Client) *RedisLocker {
	return newLocker(c.cli)
}

func newLocker(cli redis.Cmdable) *RedisLocker {
	return &RedisLocker{cli: cli, tries: 5, wait: 50 * time.Millisecond}
}

// TryLock polls briefly for key and gives up with domain.ErrTurnInProgress
// while another holder keeps it. The returned token is needed to unlock.
func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	for attempt := 1; ; attempt++ {
		ok, err := l.cli.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			return "", fmt.Errorf("acquire %s: %w", key, err)
		}
		if ok {
			return token, nil
		}
		if attempt >= l.tries {
			return "", domain.ErrTurnInProgress
		}
		timer := time.NewTimer(l.wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", ctx.Err()
		case <-timer.C:
		}
	}
}

var luaUnlock = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// Unlock releases key if it is still held with token.
func (l *RedisLocker) Unlock(ctx context.Context, key, token string) error {
	n, err := luaUnlock.Run(ctx, l.cli, []string{key}, token).Int64()
	if err != nil {
		return fmt.Errorf("release %s: %w", key, err)
	}
	if n == 0 {
		return ErrLockLost
	}
	return nil
}
