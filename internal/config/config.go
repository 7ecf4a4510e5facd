// Package config loads console settings from the environment.
//
// Every field is bound to a variable through struct tags (env, envAlt,
// default, required). Load fails on startup when any value is malformed or
// out of range.
package config

import (
	"strconv"
	"time"
)

// Config is the complete runtime configuration.
type Config struct {
	Server   ServerConfig
	API      APIConfig
	Upload   UploadConfig
	Database DatabaseConfig
	History  HistoryConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host            string        `env:"SERVER_HOST" default:"0.0.0.0"`
	Port            int           `env:"SERVER_PORT" default:"8080"`
	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"` // 0 = unlimited
	IdleTimeout     time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout bounds non-upload requests. Upload requests are
	// bounded by Upload.Timeout instead.
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// APIConfig points at the remote master-data API.
type APIConfig struct {
	// BaseURL is the API root; target paths such as /items are appended.
	BaseURL string `env:"MASTERDATA_API_URL" envAlt:"API_BASE_URL" default:"https://api-assignment.inveesync.in"`

	Timeout time.Duration `env:"MASTERDATA_API_TIMEOUT" default:"30s"` // per request

	// RequestsPerSecond paces outbound requests. Zero disables pacing.
	RequestsPerSecond float64 `env:"MASTERDATA_API_RPS" default:"0"`

	// Batch sends a whole import as one JSON array instead of one
	// request per record.
	Batch bool `env:"MASTERDATA_API_BATCH" default:"false"`
}

// UploadConfig limits files, sessions and upload concurrency.
type UploadConfig struct {
	MaxFileSize int64         `env:"UPLOAD_MAX_FILE_SIZE" default:"10485760"` // bytes
	Timeout     time.Duration `env:"UPLOAD_TIMEOUT" default:"10m"`
	SessionTTL  time.Duration `env:"UPLOAD_SESSION_TTL" default:"1h"`

	// MaxConcurrent caps upload sequences running at once across all
	// sessions; MaxWait is how long a caller queues for a slot.
	MaxConcurrent int           `env:"UPLOAD_MAX_CONCURRENT" default:"5"`
	MaxWait       time.Duration `env:"UPLOAD_MAX_WAIT" default:"30s"`
}

// DatabaseConfig configures the optional PostgreSQL history store.
// An empty URL keeps history in memory.
type DatabaseConfig struct {
	URL             string        `env:"DATABASE_URL" envAlt:"DB_URL"`
	MaxConns        int           `env:"DB_MAX_CONNS" default:"5"`
	MinConns        int           `env:"DB_MIN_CONNS" default:"1"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

type HistoryConfig struct {
	RetentionDays int           `env:"HISTORY_RETENTION_DAYS" default:"90"`
	CheckInterval time.Duration `env:"HISTORY_CHECK_INTERVAL" default:"24h"`

	// MemorySize is the ring size used without a database.
	MemorySize int `env:"HISTORY_MEMORY_SIZE" default:"200"`
}

// RateLimitConfig throttles inbound requests per client IP.
type RateLimitConfig struct {
	Enabled           bool `env:"RATE_LIMIT_ENABLED" default:"true"`
	RequestsPerMinute int  `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"120"`
}

type SecurityConfig struct {
	// TrustedProxies lists proxy CIDRs or addresses whose forwarding
	// headers are honoured.
	TrustedProxies []string `env:"TRUSTED_PROXIES"`
	EnableCSP      bool     `env:"SECURITY_ENABLE_CSP" default:"true"`
}

type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL" default:"info"`  // debug, info, warn, error
	Format string `env:"LOG_FORMAT" default:"text"` // text or json
}

// Addr returns host:port for the listener.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// HistoryEnabled reports whether import runs go to PostgreSQL.
func (c *Config) HistoryEnabled() bool {
	return c.Database.URL != ""
}
