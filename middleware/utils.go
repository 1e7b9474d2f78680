package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nexusgate/nexusgate/common/helper"
	"github.com/nexusgate/nexusgate/gatewayerr"
)

// AbortWithError renders err as the OpenAI-style error envelope and aborts
// the gin context. A *gatewayerr.Error carries its own HTTP status; any
// other error type falls back to 500.
func AbortWithError(c *gin.Context, err error) {
	gwErr, ok := err.(*gatewayerr.Error)
	if !ok {
		gwErr = &gatewayerr.Error{Status: http.StatusInternalServerError, Message: err.Error()}
	}

	body := gwErr.JSON()
	if errBody, ok := body["error"].(map[string]any); ok {
		errBody["message"] = helper.MessageWithRequestId(gwErr.Message, c.GetString(helper.RequestIdKey))
	}

	c.JSON(gwErr.Status, body)
	c.Abort()
}
