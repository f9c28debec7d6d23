package middleware

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"smart-campus/backend/pkg/redis"
	"smart-campus/backend/pkg/response"
)

// RateLimit 基于 Redis 固定窗口计数的速率限制中间件，用于排课求解等重接口
// 已认证请求按 user_id 计数，否则按客户端 IP
// rdb 为 nil 或 limit<=0 时不限流；Redis 出错时降级放行
func RateLimit(rdb *redis.Client, limit int, window time.Duration, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rdb == nil || limit <= 0 {
			c.Next()
			return
		}

		subject := c.GetString(ctxUserID)
		if subject == "" {
			subject = c.ClientIP()
		}
		key := fmt.Sprintf("campus:rate_limit:%s:%s", c.FullPath(), subject)

		allowed, err := rdb.CheckRateLimit(c.Request.Context(), key, limit, window)
		if err != nil {
			logger.Warn("限流检查失败，降级放行", zap.String("key", key), zap.Error(err))
			c.Next()
			return
		}

		if !allowed {
			response.TooManyRequests(c, 10004, "请求过于频繁，请稍后再试")
			c.Abort()
			return
		}

		c.Next()
	}
}
