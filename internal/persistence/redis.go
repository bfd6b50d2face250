package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/crm-helpdesk/internal/config"
)

var errRedisNotConfigured = errors.New("redis client not configured")

// Redis holds the shared client used for the ingestion pass lock.
type Redis struct {
	Client *redis.Client
}

// NewRedis builds the client. An unreachable server is logged, not fatal:
// the lock is optional and readiness reports the failure.
func NewRedis(cfg config.RedisConfig, logger *zap.Logger) *Redis {
	dialTimeout := time.Duration(cfg.DialTimeoutSec) * time.Second
	if dialTimeout <= 0 {
		dialTimeout = 5 * time.Second
	}
	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		PoolSize:    cfg.PoolSize,
		DialTimeout: dialTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()
	fields := []zap.Field{zap.String("addr", cfg.Addr), zap.Int("db", cfg.DB)}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unreachable at startup", append(fields, zap.Error(err))...)
	} else {
		logger.Info("redis connected", fields...)
	}
	return &Redis{Client: client}
}

// Cmdable exposes the client for lock operations.
func (r *Redis) Cmdable() redis.Cmdable {
	if r == nil {
		return nil
	}
	return r.Client
}

func (r *Redis) Close() {
	if r == nil || r.Client == nil {
		return
	}
	_ = r.Client.Close()
}

// Ping is used by the readiness probe.
func (r *Redis) Ping(ctx context.Context) error {
	if r == nil || r.Client == nil {
		return errRedisNotConfigured
	}
	return r.Client.Ping(ctx).Err()
}
