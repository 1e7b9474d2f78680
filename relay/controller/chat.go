package controller

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"
	"github.com/tidwall/gjson"

	"github.com/nexusgate/nexusgate/common/config"
	"github.com/nexusgate/nexusgate/common/ctxkey"
	"github.com/nexusgate/nexusgate/common/graceful"
	"github.com/nexusgate/nexusgate/common/logger"
	"github.com/nexusgate/nexusgate/gatewayerr"
	"github.com/nexusgate/nexusgate/middleware"
	"github.com/nexusgate/nexusgate/model"
	"github.com/nexusgate/nexusgate/relay/meta"
	"github.com/nexusgate/nexusgate/relay/resolver"
	"github.com/nexusgate/nexusgate/relay/streaming"
	"github.com/nexusgate/nexusgate/relay/telemetry"
	"github.com/nexusgate/nexusgate/relay/upstream"
)

// ChatCompletions implements POST /v1/chat/completions: validate,
// authenticate, admit, resolve, relay, stream/decode, and record usage.
func (d *Deps) ChatCompletions(c *gin.Context) {
	d.relay(c, true)
}

// FileCompletions implements POST /v1/file/completions: a chat request
// carrying file_id, routed through the identical pipeline. The upstream
// client already forwards file_id verbatim.
func (d *Deps) FileCompletions(c *gin.Context) {
	d.relay(c, true)
}

// RagCompletions implements POST /v1/rag/completions: a thin alias of chat.
// Retrieval itself happens upstream, never in the gateway.
func (d *Deps) RagCompletions(c *gin.Context) {
	d.relay(c, true)
}

// Embeddings implements POST /v1/embeddings. Unlike chat, an empty/absent
// "messages" array is not a validation error.
func (d *Deps) Embeddings(c *gin.Context) {
	d.relay(c, false)
}

// ImageGenerations implements POST /v1/images/generations. The response is
// treated like any other non-stream JSON body; no image decoding happens
// in the gateway.
func (d *Deps) ImageGenerations(c *gin.Context) {
	d.relay(c, false)
}

// relay runs the shared auth->quota->resolve->dispatch->respond->record
// pipeline for every relay route. requireMessages gates the chat-only
// "messages non-empty" check; embeddings and image requests skip it.
func (d *Deps) relay(c *gin.Context, requireMessages bool) {
	ctx := c.Request.Context()

	result, err := d.Auth.Authenticate(ctx, c.Request)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.Set(ctxkey.RequestBody, result.Body)
	c.Set(ctxkey.AccountId, result.AccountId)
	c.Set(ctxkey.ActiveModel, result.ActiveModel)

	if requireMessages && !hasNonEmptyMessages(result.Body) {
		middleware.AbortWithError(c, gatewayerr.New(gatewayerr.BadRequestEmptyMessages, "messages must be a non-empty array"))
		return
	}

	isStream := gjson.GetBytes(result.Body, "stream").Bool()
	startTime := time.Now()
	m := &meta.Meta{
		AccountId:   result.AccountId,
		AppKey:      result.AppKey,
		ActiveModel: result.ActiveModel,
		IsStream:    isStream,
		StartTime:   startTime,
	}

	limits, err := model.LimitsForModel(d.DB, result.ActiveModel)
	if err != nil {
		middleware.AbortWithError(c, gatewayerr.Wrap(gatewayerr.InternalAuthStore, "load model limits", err))
		return
	}

	if err := d.Coil.Admit(ctx, m, limits); err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	svc, err := resolver.Resolve(d.DB, result.ActiveModel)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	rewritten, err := upstream.RewriteRequestBody(result.Body, svc.UpstreamModelName, isStream)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	resp, err := d.Upstream.Do(ctx, svc.URL, rewritten)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	if isStream {
		usage := streaming.Pump(ctx, c.Writer, resp.Body, result.ActiveModel)
		if usage != nil {
			d.recordUsageAsync(m, startTime, usage)
		}
		return
	}

	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		middleware.AbortWithError(c, gatewayerr.Wrap(gatewayerr.UpstreamTransport, "read upstream body", err))
		return
	}

	rewrittenBody, usage, err := streaming.DecodeNonStream(body, result.ActiveModel)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	c.Data(http.StatusOK, "application/json", rewrittenBody)
	if usage != nil {
		d.recordUsageAsync(m, startTime, usage)
	}
}

// recordUsageAsync enqueues the telemetry record and reports final
// consumption to coil in a tracked background goroutine, so neither blocks
// the response that has already started flushing to the client.
// graceful.Drain waits for this goroutine before the process exits.
func (d *Deps) recordUsageAsync(m *meta.Meta, startTime time.Time, usage *streaming.Usage) {
	graceful.GoCritical(context.Background(), "record-usage", func(ctx context.Context) {
		endTime := time.Now()
		d.Dispatcher.Enqueue(telemetry.Record{
			AccountId:        m.AccountId,
			RegionName:       config.GatewayRegionName,
			RegionId:         config.GatewayRegionID,
			ActiveModel:      m.ActiveModel,
			AppKey:           m.AppKey,
			StartTime:        startTime.UnixMilli(),
			EndTime:          endTime.UnixMilli(),
			TotalTokens:      usage.TotalTokens,
			PromptTokens:     usage.PromptTokens,
			CompletionTokens: usage.CompletionTokens,
			EmitTime:         endTime.UnixMilli(),
		})

		if err := d.Coil.Consume(ctx, m, usage.TotalTokens); err != nil {
			logger.Logger.Warn("coil consume reported failure", zap.Error(err))
		}
	})
}
