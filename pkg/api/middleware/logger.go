package middleware

import (
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/gin-gonic/gin"
)

// Logger 请求日志中间件，/ws长连接不记录
func Logger(logger watermill.LoggerAdapter) gin.HandlerFunc {
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := watermill.LogFields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
			"client":  c.ClientIP(),
		}
		if len(c.Errors) > 0 {
			logger.Error("请求处理失败", c.Errors.Last().Err, fields)
			return
		}
		logger.Debug("请求完成", fields)
	}
}

// CORS 允许看板跨域访问只读接口
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
