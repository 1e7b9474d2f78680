// Package gatewayerr defines the gateway's typed error taxonomy and its
// mapping to HTTP status codes and OpenAI-style error bodies.
package gatewayerr

import (
	"net/http"

	"github.com/Laisky/errors/v2"
)

// Kind identifies one row of the error taxonomy.
type Kind string

const (
	BadRequestMissingModel    Kind = "BAD_REQUEST_MISSING_MODEL"
	BadRequestEmptyMessages   Kind = "BAD_REQUEST_EMPTY_MESSAGES"
	UnauthMissingKey          Kind = "UNAUTH_MISSING_KEY"
	ForbiddenInvalidKey       Kind = "FORBIDDEN_INVALID_KEY"
	ForbiddenKeyModelMismatch Kind = "FORBIDDEN_KEY_MODEL_MISMATCH"
	ForbiddenRemoteReject     Kind = "FORBIDDEN_REMOTE_REJECT"
	UnsupportedModel          Kind = "UNSUPPORTED_MODEL"
	ThrottledRPM              Kind = "THROTTLED_RPM"
	ThrottledTPM              Kind = "THROTTLED_TPM"
	UpstreamStatus            Kind = "UPSTREAM_STATUS"
	UpstreamTransport         Kind = "UPSTREAM_TRANSPORT"
	UpstreamDecode            Kind = "UPSTREAM_DECODE"
	InternalAuthStore         Kind = "INTERNAL_AUTH_STORE"
	InternalCoil              Kind = "INTERNAL_COIL"
)

var statusByKind = map[Kind]int{
	BadRequestMissingModel:    http.StatusBadRequest,
	BadRequestEmptyMessages:   http.StatusBadRequest,
	UnauthMissingKey:          http.StatusUnauthorized,
	ForbiddenInvalidKey:       http.StatusForbidden,
	ForbiddenKeyModelMismatch: http.StatusForbidden,
	ForbiddenRemoteReject:     http.StatusForbidden,
	UnsupportedModel:          http.StatusBadRequest,
	ThrottledRPM:              http.StatusTooManyRequests,
	ThrottledTPM:              http.StatusTooManyRequests,
	UpstreamStatus:            http.StatusBadGateway,
	UpstreamTransport:         http.StatusInternalServerError,
	UpstreamDecode:            http.StatusInternalServerError,
	InternalAuthStore:         http.StatusInternalServerError,
	InternalCoil:              http.StatusInternalServerError,
}

// Error is a gateway error carrying its taxonomy kind, the HTTP status it
// maps to, a client-facing message, and an optional wrapped cause for logs.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return string(e.Kind) + ": " + e.Message + ": " + e.Cause.Error()
	}
	return string(e.Kind) + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// New constructs an Error of the given kind with a client-facing message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Status: statusByKind[kind], Message: message}
}

// Wrap constructs an Error of the given kind, attaching cause for logging
// without leaking its detail to the client-facing Message.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Status: statusByKind[kind], Message: message, Cause: errors.WithStack(cause)}
}

// JSON renders the OpenAI-style error envelope for this error.
func (e *Error) JSON() map[string]any {
	return map[string]any{
		"error": map[string]any{
			"message": e.Message,
			"type":    string(e.Kind),
		},
	}
}
