// Package duckbot provides a group-chat moderation assistant with a
// privacy-hardened web-search command.
//
// The Bot type is the main entry point: create one with New, wire in a
// blacklist store, authorization gate, moderation executor, search service,
// and welcome store, then feed it chat updates with Dispatch.
//
// Guard filters (query refusal predicates) are configured via [Config] which
// can be loaded from a YAML or JSON file using [LoadConfig].
package duckbot

// Config holds the configuration for the bot core.
type Config struct {
	// OwnerID is the caller id of the single bot owner. Owner-level commands
	// (blacklist management) are restricted to this identity.
	OwnerID int64 `json:"owner_id" yaml:"owner_id"`
	// WarnThreshold is the warning count that triggers an automatic ban.
	// Zero selects the default (3).
	WarnThreshold int `json:"warn_threshold,omitempty" yaml:"warn_threshold,omitempty"`
	// Search configures the outbound search call.
	Search SearchConfig `json:"search" yaml:"search"`
	// Blacklist selects the blacklist backend.
	Blacklist BlacklistConfig `json:"blacklist" yaml:"blacklist"`
	// WelcomeStorePath is the flat file holding per-chat welcome messages.
	WelcomeStorePath string `json:"welcome_store,omitempty" yaml:"welcome_store,omitempty"`
	// Audit optionally persists authorization decisions to a database.
	Audit AuditConfig `json:"audit,omitempty" yaml:"audit,omitempty"`
	// Filters configuration (optional). When empty, the built-in ip-query
	// filter is enabled by default.
	Filters []FilterConfig `json:"filters,omitempty" yaml:"filters,omitempty"`
}

// SearchConfig configures the search backend and its retry policy.
type SearchConfig struct {
	// Endpoint overrides the instant-answer API URL (empty for the default).
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	// Timeout is the per-attempt timeout as a duration string (e.g. "5s").
	Timeout string `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	// Retry bounds the attempt budget for transient failures.
	Retry RetryConfig `json:"retry,omitempty" yaml:"retry,omitempty"`
	// RateLimit throttles search per caller. Zero disables throttling.
	RateLimit RateLimitConfig `json:"rate_limit,omitempty" yaml:"rate_limit,omitempty"`
}

// RateLimitConfig bounds per-caller search throughput.
type RateLimitConfig struct {
	// PerSecond is the sustained request rate per caller. Zero disables.
	PerSecond float64 `json:"per_second,omitempty" yaml:"per_second,omitempty"`
	// Burst is the bucket capacity. Zero defaults to PerSecond.
	Burst float64 `json:"burst,omitempty" yaml:"burst,omitempty"`
}

// RetryConfig defines retry behavior for idempotent search calls.
type RetryConfig struct {
	// Attempts is the total attempt budget, first try included.
	Attempts int `json:"attempts,omitempty" yaml:"attempts,omitempty"`
	// BackoffBase is the exponential backoff unit as a duration string.
	BackoffBase string `json:"backoff_base,omitempty" yaml:"backoff_base,omitempty"`
}

// BlacklistBackend selects a blacklist store implementation.
type BlacklistBackend string

// Supported blacklist backends.
const (
	BackendMemory   BlacklistBackend = "memory"
	BackendSQLite   BlacklistBackend = "sqlite"
	BackendPostgres BlacklistBackend = "postgres"
	BackendRedis    BlacklistBackend = "redis"
)

// BlacklistConfig selects and configures the blacklist backend.
type BlacklistConfig struct {
	// Backend is one of memory, sqlite, postgres, redis. Empty means memory.
	Backend BlacklistBackend `json:"backend,omitempty" yaml:"backend,omitempty"`
	// DSN is the backend connection string (file path, Postgres DSN, or
	// Redis address). Ignored for the memory backend.
	DSN string `json:"dsn,omitempty" yaml:"dsn,omitempty"`
}

// AuditBackend selects an audit log implementation.
type AuditBackend string

// Supported audit backends.
const (
	AuditNone     AuditBackend = ""
	AuditSQLite   AuditBackend = "sqlite"
	AuditPostgres AuditBackend = "postgres"
)

// AuditConfig selects and configures the persistent audit log. With an empty
// backend, decisions are only written to the structured log.
type AuditConfig struct {
	Backend AuditBackend `json:"backend,omitempty" yaml:"backend,omitempty"`
	DSN     string       `json:"dsn,omitempty" yaml:"dsn,omitempty"`
}

// FilterConfig holds guard filter configuration.
type FilterConfig struct {
	Name    string                 `json:"name" yaml:"name"`
	Enabled bool                   `json:"enabled" yaml:"enabled"`
	Config  map[string]interface{} `json:"config,omitempty" yaml:"config,omitempty"`
}
