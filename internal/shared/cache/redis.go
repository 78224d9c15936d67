package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/printforge/server/internal/shared/config"
	"github.com/redis/go-redis/v9"
)

const (
	dialTimeout = 3 * time.Second
	opTimeout   = 500 * time.Millisecond
)

// New connects to redis and verifies the connection before handing the
// client out. The cache is best-effort, so timeouts are short: a slow redis
// must not drag order-status requests down with it.
func New(cfg *config.RedisConfig) (redis.UniversalClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  dialTimeout,
		ReadTimeout:  opTimeout,
		WriteTimeout: opTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return client, nil
}

// Close closes the client.
func Close(client redis.UniversalClient) error {
	return client.Close()
}
