package dedup

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"task-recurrence-service/pkg/config"
)

// NewRedisClient returns nil when no address is configured; callers treat a
// nil client as "duplicate suppression disabled".
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	if cfg.Addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// Deduper claims keys in redis with SET NX so that one notification per key
// and TTL window gets through.
type Deduper struct {
	rdb    *redis.Client
	logger *zap.Logger
}

func NewDeduper(rdb *redis.Client, logger *zap.Logger) *Deduper {
	return &Deduper{rdb: rdb, logger: logger}
}

// AcquireOnce reports whether this is the first claim of key within ttl.
// When redis is unavailable it allows the caller through: a duplicate
// notification is preferable to a lost one.
func (d *Deduper) AcquireOnce(ctx context.Context, key string, ttl time.Duration) bool {
	ok, err := d.rdb.SetNX(ctx, "dedup:"+key, 1, ttl).Result()
	if err != nil {
		d.logger.Warn("Redis dedup check failed, allowing processing",
			zap.String("key", key),
			zap.Error(err),
		)
		return true
	}
	if !ok {
		d.logger.Debug("Duplicate suppressed", zap.String("key", key))
	}
	return ok
}
