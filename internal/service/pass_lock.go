package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultPassLockKey = "helpdesk:ingest:pass"

// PassLock guards a pass across processes. Acquire returns ErrPassInProgress
// when the lock is held elsewhere.
type PassLock interface {
	Acquire(ctx context.Context) (release func(context.Context), err error)
}

// releaseScript deletes the key only if it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisPassLock is a SET NX PX lock with token-checked release.
type RedisPassLock struct {
	client redis.Cmdable
	key    string
	ttl    time.Duration
}

// NewRedisPassLock creates a lock on key with the given expiry.
func NewRedisPassLock(client redis.Cmdable, key string, ttl time.Duration) *RedisPassLock {
	if key == "" {
		key = defaultPassLockKey
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisPassLock{client: client, key: key, ttl: ttl}
}

// Acquire implements PassLock.
func (l *RedisPassLock) Acquire(ctx context.Context) (func(context.Context), error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrPassInProgress
	}
	return func(ctx context.Context) {
		_ = releaseScript.Run(ctx, l.client, []string{l.key}, token).Err()
	}, nil
}
