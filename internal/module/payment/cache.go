package payment

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const statusCacheTTL = 30 * time.Second

// StatusCache caches serialized order status responses in Redis. All
// operations degrade to no-ops when Redis is unavailable; status reads fall
// through to the database.
type StatusCache struct {
	client redis.UniversalClient
	logger *zap.Logger
}

// NewStatusCache creates a new status cache. A nil client disables caching.
func NewStatusCache(client redis.UniversalClient, logger *zap.Logger) *StatusCache {
	return &StatusCache{client: client, logger: logger}
}

func (c *StatusCache) key(orderNumber string) string {
	return "order:status:" + orderNumber
}

// Get returns the cached status payload for an order, if present.
func (c *StatusCache) Get(ctx context.Context, orderNumber string) ([]byte, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}
	data, err := c.client.Get(ctx, c.key(orderNumber)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("status cache read failed", zap.Error(err))
		}
		return nil, false
	}
	return data, true
}

// Set stores a status payload for an order.
func (c *StatusCache) Set(ctx context.Context, orderNumber string, payload []byte) {
	if c == nil || c.client == nil {
		return
	}
	if err := c.client.Set(ctx, c.key(orderNumber), payload, statusCacheTTL).Err(); err != nil {
		c.logger.Warn("status cache write failed", zap.Error(err))
	}
}

// Invalidate drops the cached status for an order. Called after any webhook
// that mutates the order, so clients never poll a stale paid/unpaid answer
// for longer than one round trip.
func (c *StatusCache) Invalidate(ctx context.Context, orderNumber string) {
	if c == nil || c.client == nil {
		return
	}
	if err := c.client.Del(ctx, c.key(orderNumber)).Err(); err != nil {
		c.logger.Warn("status cache invalidation failed", zap.Error(err))
	}
}
