package cache

import (
	"context"
	"shop-service/pkg/config"
	"shop-service/pkg/logger"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// NewRedisClient connects to redis and returns nil when redis is not
// configured or unreachable. Callers treat a nil client as "feature disabled".
func NewRedisClient(ctx context.Context, cfg *config.RedisConfig) *redis.Client {
	log := logger.GetLogger()

	if cfg.Addr == "" {
		log.Info("Redis address not configured, rate limiting disabled")
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Warn("Failed to connect to Redis, rate limiting disabled",
			zap.String("addr", cfg.Addr),
			zap.Error(err))
		_ = client.Close()
		return nil
	}

	log.Info("Redis connected successfully", zap.String("addr", cfg.Addr))
	return client
}
