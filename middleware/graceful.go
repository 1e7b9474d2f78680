package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/nexusgate/nexusgate/common/graceful"
)

// RequestTracker counts c as in-flight for the duration of the handler chain
// so graceful.Drain can wait for long-running SSE handlers to finish before
// the process exits.
func RequestTracker() gin.HandlerFunc {
	return func(c *gin.Context) {
		end := graceful.BeginRequest()
		defer end()
		c.Next()
	}
}
