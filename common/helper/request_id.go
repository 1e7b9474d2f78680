package helper

import "github.com/google/uuid"

// RequestIdKey is the header/context name carrying the per-request identifier.
const RequestIdKey = "X-Nexusgate-Request-Id"

// GenRequestID returns a fresh unique request identifier.
func GenRequestID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// MessageWithRequestId appends the request id to a client-facing error
// message so it can be correlated against server logs.
func MessageWithRequestId(message, requestId string) string {
	if requestId == "" {
		return message
	}
	return message + " (request id: " + requestId + ")"
}
