package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrLockHeld is returned when another holder owns the lock
var ErrLockHeld = errors.New("lock already held")

// Locker implements single-holder locks using SET NX
// ⭐ SSOT: 분산 잠금은 여기서만 (동일 기간/날짜 run 중복 실행 방지)
type Locker struct {
	client *Client
	prefix string
}

// Lock is one acquired lock
type Lock struct {
	locker *Locker
	key    string
	token  string
}

// NewLocker creates a new locker
func NewLocker(client *Client, prefix string) *Locker {
	return &Locker{
		client: client,
		prefix: prefix,
	}
}

// Acquire takes the lock for ttl. token identifies the holder (e.g. run id).
// When Redis is disabled, every Acquire succeeds.
func (l *Locker) Acquire(ctx context.Context, key, token string, ttl time.Duration) (*Lock, error) {
	fullKey := fmt.Sprintf("%s:lock:%s", l.prefix, key)
	lock := &Lock{locker: l, key: fullKey, token: token}

	if !l.client.Enabled() {
		return lock, nil
	}

	ok, err := l.client.Redis().SetNX(ctx, fullKey, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("lock acquire failed: %w", err)
	}
	if !ok {
		holder, _ := l.client.Redis().Get(ctx, fullKey).Result()
		return nil, fmt.Errorf("%w: %s (holder %s)", ErrLockHeld, key, holder)
	}

	return lock, nil
}

// releaseScript deletes the key only when the token still matches
var releaseScript = redis.NewScript(`
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		return redis.call('DEL', KEYS[1])
	end
	return 0
`)

// Release frees the lock if this holder still owns it
func (l *Lock) Release(ctx context.Context) error {
	if l == nil || !l.locker.client.Enabled() {
		return nil
	}

	if err := releaseScript.Run(ctx, l.locker.client.Redis(), []string{l.key}, l.token).Err(); err != nil {
		return fmt.Errorf("lock release failed: %w", err)
	}
	return nil
}
