package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/hanbitlab/storefront-backend/config"
	"github.com/hanbitlab/storefront-backend/pkg/logger"
	"github.com/redis/go-redis/v9"
)

var client *redis.Client

// Init initializes the Redis connection used for request throttling.
func Init(cfg *config.RedisConfig) error {
	logger.Info("Initializing Redis connection", map[string]interface{}{
		"host": cfg.Host,
		"port": cfg.Port,
		"db":   cfg.DB,
	})

	client = redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Error("Failed to connect to Redis", err, map[string]interface{}{
			"host": cfg.Host,
			"port": cfg.Port,
		})
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Redis connection established successfully", nil)
	return nil
}

// GetClient returns the Redis client, or nil when Redis is not configured.
func GetClient() *redis.Client {
	return client
}

// Close closes the Redis connection.
func Close() error {
	if client != nil {
		logger.Info("Closing Redis connection", nil)
		return client.Close()
	}
	return nil
}

// IncrWindow increments a fixed-window throttle counter and returns the
// count within the current window. The window key expires on first hit.
func IncrWindow(ctx context.Context, scope, caller string, window time.Duration) (int64, error) {
	key := fmt.Sprintf("throttle:%s:%s:%d", scope, caller, time.Now().Unix()/int64(window.Seconds()))

	count, err := client.Incr(ctx, key).Result()
	if err != nil {
		logger.Error("Failed to increment throttle counter", err, map[string]interface{}{
			"scope": scope,
		})
		return 0, err
	}
	if count == 1 {
		if err := client.Expire(ctx, key, window).Err(); err != nil {
			logger.Error("Failed to set throttle window expiry", err, map[string]interface{}{
				"scope": scope,
			})
		}
	}
	return count, nil
}
