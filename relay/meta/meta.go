// Package meta defines the per-request fingerprint threaded from the auth
// pipeline through quota, relay, and telemetry.
package meta

import "time"

// Meta is the per-request fingerprint: the principal and model the request
// is bound to, widened with the fields the request handler and telemetry
// dispatcher need.
type Meta struct {
	AccountId   string
	AppKey      string
	ActiveModel string
	IsStream    bool
	StartTime   time.Time
}

// FingerprintUser is the principal identifier passed to coil.
func (m *Meta) FingerprintUser() string { return m.AccountId }

// TokensFingerprintUser is the coil user key for the tokens bucket. The
// "tokens" prefix keeps the request-count and token-count dimensions
// independent on the coil side.
func (m *Meta) TokensFingerprintUser() string { return "tokens" + m.AccountId }
