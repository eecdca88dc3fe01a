package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"conduzauto/backend/config"
	"conduzauto/backend/pkg/redis"
	"conduzauto/backend/pkg/response"
)

// RateLimit 基于 Redis 滑动窗口的速率限制中间件，按客户端 IP + 路由计数
// 未启用或 rdb 为 nil 时直接放行；Redis 出错时降级放行（与 JWTAuth 策略一致）
func RateLimit(cfg *config.RateLimitConfig, rdb *redis.Client, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !cfg.Enabled || rdb == nil {
			c.Next()
			return
		}

		key := fmt.Sprintf("rate_limit:%s:%s", c.ClientIP(), c.FullPath())
		allowed, err := rdb.CheckRateLimit(c.Request.Context(), key, cfg.Limit, cfg.Window)
		if err != nil {
			logger.Warn("限流检查失败，降级放行", zap.String("route", c.FullPath()), zap.Error(err))
			c.Next()
			return
		}

		if !allowed {
			c.Header("Retry-After", fmt.Sprintf("%d", int(cfg.Window.Seconds())))
			response.Error(c, http.StatusTooManyRequests, 10004, response.KindRateLimited, "请求过于频繁，请稍后再试")
			c.Abort()
			return
		}

		c.Next()
	}
}
