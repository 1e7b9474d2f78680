package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"

	"github.com/nexusgate/nexusgate/common/ctxkey"
	"github.com/nexusgate/nexusgate/common/logger"
)

// RelayPanicRecover converts a panic anywhere downstream into a 500 response
// instead of killing the connection, logging the buffered request body (stored
// by the relay handler from the auth pipeline's result) alongside the stack trace.
func RelayPanicRecover() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				body, _ := c.Get(ctxkey.RequestBody)
				logger.Logger.Error("panic detected",
					zap.Any("panic", err),
					zap.String("stacktrace", string(debug.Stack())),
					zap.String("method", c.Request.Method),
					zap.String("path", c.Request.URL.Path),
					zap.Any("request_body", body))
				c.JSON(http.StatusInternalServerError, gin.H{
					"error": gin.H{
						"message": fmt.Sprintf("internal error: %v", err),
						"type":    "INTERNAL_PANIC",
					},
				})
				c.Abort()
			}
		}()
		c.Next()
	}
}
