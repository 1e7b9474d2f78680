// Package router wires the gateway's HTTP surface: health check plus
// the OpenAI-compatible relay routes, each passing through the request-id
// and panic-recovery middleware before reaching a controller handler.
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nexusgate/nexusgate/middleware"
	"github.com/nexusgate/nexusgate/relay/controller"
)

// SetRouter registers the gateway's routes against engine, backed by deps.
func SetRouter(engine *gin.Engine, deps *controller.Deps) {
	engine.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	relay := engine.Group("/v1")
	relay.Use(middleware.RequestId(), middleware.RelayPanicRecover())
	{
		relay.POST("/chat/completions", deps.ChatCompletions)
		relay.POST("/embeddings", deps.Embeddings)
		relay.POST("/images/generations", deps.ImageGenerations)
		relay.POST("/file/completions", deps.FileCompletions)
		relay.POST("/rag/completions", deps.RagCompletions)
	}
}
