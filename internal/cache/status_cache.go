package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jonathantombe/MisakGuambShop-Backend/internal/models"
	"github.com/jonathantombe/MisakGuambShop-Backend/pkg/logger"
)

// StatusCache is a read-through cache for payment status polling. Cache
// failures are never surfaced: the store stays authoritative.
type StatusCache interface {
	Get(ctx context.Context, referenceCode string) (models.PaymentStatus, bool)
	Set(ctx context.Context, referenceCode string, status models.PaymentStatus)
	Invalidate(ctx context.Context, referenceCode string)
}

type redisStatusCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *logger.Logger
}

func NewRedisStatusCache(client *redis.Client, ttl time.Duration, log *logger.Logger) StatusCache {
	return &redisStatusCache{client: client, ttl: ttl, logger: log}
}

func statusKey(referenceCode string) string {
	return "payment:status:" + referenceCode
}

func (c *redisStatusCache) Get(ctx context.Context, referenceCode string) (models.PaymentStatus, bool) {
	value, err := c.client.Get(ctx, statusKey(referenceCode)).Result()
	if err == redis.Nil {
		return "", false
	}
	if err != nil {
		c.logger.WithReference(referenceCode).WithError(err).Warn("status cache read failed")
		return "", false
	}
	return models.PaymentStatus(value), true
}

func (c *redisStatusCache) Set(ctx context.Context, referenceCode string, status models.PaymentStatus) {
	if err := c.client.Set(ctx, statusKey(referenceCode), string(status), c.ttl).Err(); err != nil {
		c.logger.WithReference(referenceCode).WithError(err).Warn("status cache write failed")
	}
}

func (c *redisStatusCache) Invalidate(ctx context.Context, referenceCode string) {
	if err := c.client.Del(ctx, statusKey(referenceCode)).Err(); err != nil {
		c.logger.WithReference(referenceCode).WithError(err).Warn("status cache invalidation failed")
	}
}

// NoopStatusCache is used when no Redis address is configured.
type NoopStatusCache struct{}

func (NoopStatusCache) Get(context.Context, string) (models.PaymentStatus, bool) { return "", false }
func (NoopStatusCache) Set(context.Context, string, models.PaymentStatus)        {}
func (NoopStatusCache) Invalidate(context.Context, string)                       {}
