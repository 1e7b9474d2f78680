// Package ctxkey names the gin context keys shared across the request pipeline.
package ctxkey

const (
	// RequestId is the per-request identifier, also echoed as a response header.
	// Set in: middleware.RequestId.
	// Read in: middleware.AbortWithError, which appends it to error messages.
	RequestId = "X-Nexusgate-Request-Id"

	// AccountId is the principal bound to this request by the auth pipeline:
	// the raw user key in local mode, or the remote check's accountId in remote mode.
	// Set in: relay/controller, from the auth pipeline's Result.
	// Quota and telemetry receive the account id through meta.Meta, not this key.
	AccountId = "account_id"

	// AppKey is the caller-supplied appKey header, used as part of the model-namespace
	// auth cache key and forwarded to the remote auth check.
	// No handler stores it in the gin context; the value travels in
	// auth.Result.AppKey and meta.Meta.AppKey.
	AppKey = "app_key"

	// RequestBody holds the raw JSON body captured by the auth pipeline.
	// Set in: relay/controller, from the auth pipeline's Result.
	// Read in: middleware.RelayPanicRecover, which logs it alongside a panic.
	RequestBody = "request_body"

	// ActiveModel is the client-supplied model name, the externally advertised
	// id in the gateway's namespace.
	// Set in: relay/controller, from the auth pipeline's Result.
	// The resolver, quota and streaming layers receive the model as an argument,
	// not through this key.
	ActiveModel = "active_model"

	// StartTime names the request start time. No handler stores it in the gin
	// context; usage records take the start time from meta.Meta.StartTime.
	StartTime = "start_time"
)
