package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/gin-gonic/gin"

	"github.com/LENAX/task-visualizer/pkg/api/dto"
)

// Recovery panic恢复中间件
// 处理器panic时记录请求与堆栈，返回500且不影响发布协程
func Recovery(logger watermill.LoggerAdapter) gin.HandlerFunc {
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			logger.Error("请求处理panic", fmt.Errorf("%v", r), watermill.LogFields{
				"method": c.Request.Method,
				"path":   c.Request.URL.Path,
				"stack":  string(debug.Stack()),
			})
			c.AbortWithStatusJSON(http.StatusInternalServerError,
				dto.NewErrorResponse(http.StatusInternalServerError, "服务器内部错误"))
		}()
		c.Next()
	}
}
