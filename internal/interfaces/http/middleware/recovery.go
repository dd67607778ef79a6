// Package middleware 提供 HTTP 中间件
package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"libra-lite/pkg/errors"
	"libra-lite/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Recovery Panic 恢复中间件
// 流式响应已写出头部时只记录日志，不再改写状态码
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.Error(c.Request.Context(), "panic recovered",
					fmt.Errorf("%v", rec),
					"stack", string(debug.Stack()),
					"path", c.Request.URL.Path,
					"method", c.Request.Method,
				)

				if c.Writer.Written() {
					c.Abort()
					return
				}
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"code":       errors.CodeInternalError,
					"message":    "internal server error",
					"request_id": c.GetString(RequestIDContextKey),
				})
			}
		}()

		c.Next()
	}
}
