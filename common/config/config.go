// Package config holds the gateway's process-wide tunables, read once from
// the environment at startup. Reading configuration files is out of scope;
// every value here has a safe default so the gateway runs unconfigured.
package config

import (
	"strings"
	"time"

	"github.com/nexusgate/nexusgate/common/env"
)

var (
	// DebugEnabled toggles verbose structured logging when DEBUG=true.
	DebugEnabled = env.Bool("DEBUG", false)

	// SQLDSN selects the registry store driver: empty for SQLite, a
	// "postgres://" URL for PostgreSQL, anything else for MySQL.
	SQLDSN = strings.TrimSpace(env.String("SQL_DSN", ""))
	// SQLitePath is the on-disk path used when SQLDSN is empty.
	SQLitePath = env.String("SQLITE_PATH", "nexusgate.db")
	// SQLiteBusyTimeoutMS bounds how long SQLite waits on a locked database.
	SQLiteBusyTimeoutMS = env.Int("SQLITE_BUSY_TIMEOUT_MS", 3000)
	// DebugSQLEnabled turns on gorm's per-query SQL logging.
	DebugSQLEnabled = env.Bool("DEBUG_SQL", false)

	// LocalAuthEnabled turns on the local-credential-store auth mode.
	LocalAuthEnabled = env.Bool("LOCAL_AUTH_ENABLED", false)
	// RemoteAuthEnabled turns on the remote apiInfo-check auth mode.
	RemoteAuthEnabled = env.Bool("REMOTE_AUTH_ENABLED", false)
	// AuthRemoteServer is the base URL of the remote apiInfo checker.
	AuthRemoteServer = strings.TrimSpace(env.String("AUTH_REMOTE_SERVER", ""))
	// AuthRemoteTimeoutSec bounds the remote apiInfo check call.
	AuthRemoteTimeoutSec = env.Int("AUTH_REMOTE_TIMEOUT_SEC", 5)

	// AuthCacheCapacity bounds the number of entries held by the auth cache
	// (combined across the manage and model namespaces). <=0 disables caching.
	AuthCacheCapacity = env.Int("AUTH_CACHE_CAPACITY", 100_000)
	// AuthCacheTimeSec is the default TTL applied to cached auth entries.
	AuthCacheTimeSec = env.Int("AUTH_CACHE_TIME_SEC", 300)

	// CoilEnabled turns on the quota/admission pipeline.
	CoilEnabled = env.Bool("COIL_ENABLED", false)
	// CoilIP is the base URL of the coil token-bucket service.
	CoilIP = strings.TrimSpace(env.String("COIL_IP", "http://127.0.0.1:9000"))
	// CoilTimeoutSec bounds each coil HTTP call.
	CoilTimeoutSec = env.Int("COIL_TIMEOUT_SEC", 5)
	// CoilTokenReserve is the pessimistic token-bucket reservation made at
	// admission time, before the real usage is known.
	CoilTokenReserve = env.Int("COIL_TOKEN_RESERVE", 8192)

	// UpstreamTimeoutSec is the hard per-request ceiling for upstream calls.
	UpstreamTimeoutSec = env.Int("UPSTREAM_TIMEOUT_SEC", 300)
	// UpstreamConnectTimeoutSec bounds establishing the upstream TCP/TLS connection.
	UpstreamConnectTimeoutSec = env.Int("UPSTREAM_CONNECT_TIMEOUT_SEC", 10)

	// MaxBodyBytes bounds the buffered request body the auth pipeline captures
	// for downstream replay. Chat/embedding bodies are small; file uploads get
	// more room.
	MaxBodyBytes = int64(env.Int("MAX_BODY_BYTES", 100*1024*1024))

	// TelemetryFlushIntervalSec is the cadence at which the telemetry
	// dispatcher drains its queue.
	TelemetryFlushIntervalSec = env.Int("TELEMETRY_FLUSH_INTERVAL_SEC", 60)
	// TelemetryPublishTimeoutSec bounds each individual bus-publish call.
	TelemetryPublishTimeoutSec = env.Int("TELEMETRY_PUBLISH_TIMEOUT_SEC", 5)
	// TelemetryDrainTimeoutSec bounds the final drain performed at shutdown.
	TelemetryDrainTimeoutSec = env.Int("TELEMETRY_DRAIN_TIMEOUT_SEC", 30)
	// MessageBusURL is where usage records are POSTed.
	MessageBusURL = strings.TrimSpace(env.String("MESSAGE_BUS_URL", ""))
	// MessageBusTopic is attached to every published usage record.
	MessageBusTopic = env.String("MESSAGE_BUS_TOPIC", "nexusgate.usage")

	// GatewayRegionName is stamped onto remote-auth checks and usage records,
	// mirroring the cloudRegionId field carried by the original implementation.
	GatewayRegionName = env.String("GATEWAY_REGION_NAME", "default")
	// GatewayRegionID is the numeric/identifier counterpart of GatewayRegionName.
	GatewayRegionID = env.String("GATEWAY_REGION_ID", "0")

	// LogPushAPI defines the webhook endpoint for escalated log alerts.
	LogPushAPI = env.String("LOG_PUSH_API", "")
	// LogPushType labels outbound log alerts so downstream processors can route them.
	LogPushType = env.String("LOG_PUSH_TYPE", "")
	// LogPushToken authenticates outbound log alert requests.
	LogPushToken = env.String("LOG_PUSH_TOKEN", "")

	// ServerPort overrides the default HTTP listen port.
	ServerPort = strings.TrimSpace(env.String("PORT", ""))
	// GinMode selects Gin's mode: any value other than "debug" runs Gin in
	// release mode.
	GinMode = strings.TrimSpace(env.String("GIN_MODE", "release"))

	// MetricsAllowedSubnets restricts /metrics to the given comma-separated
	// CIDR list. Empty allows any caller (fine behind a private network).
	MetricsAllowedSubnets = strings.TrimSpace(env.String("METRICS_ALLOWED_SUBNETS", ""))

	// ShutdownDrainTimeoutSec bounds how long the server waits for in-flight
	// requests and background usage-recording tasks to finish on SIGTERM.
	ShutdownDrainTimeoutSec = env.Int("SHUTDOWN_DRAIN_TIMEOUT_SEC", 30)
)

// ShutdownDrainTimeout returns ShutdownDrainTimeoutSec as a duration.
func ShutdownDrainTimeout() time.Duration {
	return time.Duration(ShutdownDrainTimeoutSec) * time.Second
}

// AuthCacheTime returns AuthCacheTimeSec as a duration.
func AuthCacheTime() time.Duration {
	return time.Duration(AuthCacheTimeSec) * time.Second
}

// UpstreamTimeout returns UpstreamTimeoutSec as a duration.
func UpstreamTimeout() time.Duration {
	return time.Duration(UpstreamTimeoutSec) * time.Second
}

// UpstreamConnectTimeout returns UpstreamConnectTimeoutSec as a duration.
func UpstreamConnectTimeout() time.Duration {
	return time.Duration(UpstreamConnectTimeoutSec) * time.Second
}

// CoilTimeout returns CoilTimeoutSec as a duration.
func CoilTimeout() time.Duration {
	return time.Duration(CoilTimeoutSec) * time.Second
}

// AuthRemoteTimeout returns AuthRemoteTimeoutSec as a duration.
func AuthRemoteTimeout() time.Duration {
	return time.Duration(AuthRemoteTimeoutSec) * time.Second
}

// TelemetryPublishTimeout returns TelemetryPublishTimeoutSec as a duration.
func TelemetryPublishTimeout() time.Duration {
	return time.Duration(TelemetryPublishTimeoutSec) * time.Second
}

// TelemetryDrainTimeout returns TelemetryDrainTimeoutSec as a duration.
func TelemetryDrainTimeout() time.Duration {
	return time.Duration(TelemetryDrainTimeoutSec) * time.Second
}
