package middleware

import (
	"net/http"
	"shop-service/pkg/logger"
	"shop-service/prometheus"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RateLimiter allows limit requests per client IP within period, counted in
// redis. A nil client disables limiting. Redis errors let the request through.
func RateLimiter(client *redis.Client, prefix string, limit int, period time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if client == nil {
			return next
		}

		return func(c echo.Context) error {
			ctx := c.Request().Context()
			key := "rate_limit:" + prefix + ":" + c.RealIP()

			var (
				incr *redis.IntCmd
				ttl  *redis.DurationCmd
			)
			_, err := client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				incr = pipe.Incr(ctx, key)
				ttl = pipe.TTL(ctx, key)
				return nil
			})
			if err != nil {
				logger.FromContext(c).Error("Rate limiter unavailable", zap.Error(err))
				return next(c)
			}

			// a counter without expiry starts the window clock, whether this is
			// the first hit or an earlier EXPIRE was lost
			if ttl.Val() < 0 {
				if err := client.Expire(ctx, key, period).Err(); err != nil {
					logger.FromContext(c).Error("Rate limit window not set", zap.Error(err))
					client.Del(ctx, key)
					return next(c)
				}
			}

			count := incr.Val()
			if count > int64(limit) {
				logger.FromContext(c).Warn("Rate limit exceeded",
					zap.String("ip", c.RealIP()),
					zap.Int64("count", count))
				prometheus.RecordRateLimited()
				return c.JSON(http.StatusTooManyRequests, echo.Map{"error": "too many requests"})
			}

			return next(c)
		}
	}
}
