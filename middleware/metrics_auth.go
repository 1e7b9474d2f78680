package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nexusgate/nexusgate/common/config"
	"github.com/nexusgate/nexusgate/common/network"
)

// MetricsAuth rejects /metrics callers outside config.MetricsAllowedSubnets.
// An empty allowlist permits any caller, which is the default for gateways
// run behind a private network.
func MetricsAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if config.MetricsAllowedSubnets == "" {
			c.Next()
			return
		}
		if !network.IsIpInSubnets(c.Request.Context(), c.ClientIP(), config.MetricsAllowedSubnets) {
			c.AbortWithStatus(http.StatusForbidden)
			return
		}
		c.Next()
	}
}
