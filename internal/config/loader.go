package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Load reads configuration from the process environment, applies defaults
// and validates the result. Every bad variable is reported, not just the
// first.
func Load() (*Config, error) {
	return load(os.LookupEnv)
}

// lookupFunc resolves an environment variable.
type lookupFunc func(key string) (string, bool)

func load(lookup lookupFunc) (*Config, error) {
	cfg := &Config{}

	if errs := populate(reflect.ValueOf(cfg).Elem(), lookup); len(errs) > 0 {
		return nil, fmt.Errorf("config load: %w", errors.Join(errs...))
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// populate fills tagged fields of the struct v, descending into nested
// structs. Tags: env (primary name), envAlt (fallback name), default,
// required:"true".
func populate(v reflect.Value, lookup lookupFunc) []error {
	var errs []error
	t := v.Type()

	for i := range t.NumField() {
		sf, fv := t.Field(i), v.Field(i)
		if !fv.CanSet() {
			continue
		}
		if sf.Type.Kind() == reflect.Struct {
			errs = append(errs, populate(fv, lookup)...)
			continue
		}

		name := sf.Tag.Get("env")
		if name == "" {
			continue
		}

		raw, ok := firstSet(lookup, name, sf.Tag.Get("envAlt"))
		if !ok {
			if sf.Tag.Get("required") == "true" {
				errs = append(errs, fmt.Errorf("%s is required", name))
				continue
			}
			raw = sf.Tag.Get("default")
		}
		if raw == "" {
			continue
		}

		parse, found := parsers[sf.Type]
		if !found {
			errs = append(errs, fmt.Errorf("%s: unsupported field type %s", name, sf.Type))
			continue
		}
		val, err := parse(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid value for %s=%q: %w", name, raw, err))
			continue
		}
		fv.Set(reflect.ValueOf(val).Convert(sf.Type))
	}
	return errs
}

// firstSet returns the first non-empty variable among names.
func firstSet(lookup lookupFunc, names ...string) (string, bool) {
	for _, n := range names {
		if n == "" {
			continue
		}
		if v, ok := lookup(n); ok && v != "" {
			return v, true
		}
	}
	return "", false
}

// parsers converts raw strings per supported field type.
var parsers = map[reflect.Type]func(string) (any, error){
	reflect.TypeFor[string]():        func(s string) (any, error) { return s, nil },
	reflect.TypeFor[int]():           func(s string) (any, error) { return strconv.Atoi(s) },
	reflect.TypeFor[int64]():         func(s string) (any, error) { return strconv.ParseInt(s, 10, 64) },
	reflect.TypeFor[float64]():       func(s string) (any, error) { return strconv.ParseFloat(s, 64) },
	reflect.TypeFor[bool]():          func(s string) (any, error) { return strconv.ParseBool(s) },
	reflect.TypeFor[time.Duration](): func(s string) (any, error) { return time.ParseDuration(s) },
	reflect.TypeFor[[]string]():      func(s string) (any, error) { return splitList(s), nil },
}

// splitList splits a comma-separated list, dropping blank entries.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate checks every config group and reports all problems at once.
func (c *Config) Validate() error {
	var p problems

	c.Server.validate(&p)
	c.API.validate(&p)
	c.Upload.validate(&p)
	if c.HistoryEnabled() {
		c.Database.validate(&p)
	}
	c.History.validate(&p)
	if c.Rate.Enabled && c.Rate.RequestsPerMinute <= 0 {
		p.add("RATE_LIMIT_REQUESTS_PER_MINUTE must be positive when rate limiting is enabled")
	}
	c.Logging.validate(&p)

	if len(p) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(p, "\n  - "))
	}
	return nil
}

type problems []string

func (p *problems) add(format string, args ...any) {
	*p = append(*p, fmt.Sprintf(format, args...))
}

func (p *problems) positive(name string, ok bool) {
	if !ok {
		p.add("%s must be positive", name)
	}
}

func (s ServerConfig) validate(p *problems) {
	if s.Port <= 0 || s.Port > 65535 {
		p.add("SERVER_PORT (%d) must be 1-65535", s.Port)
	}
	if s.ReadTimeout < 0 {
		p.add("SERVER_READ_TIMEOUT must be non-negative")
	}
	p.positive("SERVER_SHUTDOWN_TIMEOUT", s.ShutdownTimeout > 0)
}

func (a APIConfig) validate(p *problems) {
	if u, err := url.Parse(a.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		p.add("MASTERDATA_API_URL (%q) must be an absolute URL", a.BaseURL)
	}
	p.positive("MASTERDATA_API_TIMEOUT", a.Timeout > 0)
	if a.RequestsPerSecond < 0 {
		p.add("MASTERDATA_API_RPS must be non-negative")
	}
}

func (u UploadConfig) validate(p *problems) {
	p.positive("UPLOAD_MAX_FILE_SIZE", u.MaxFileSize > 0)
	p.positive("UPLOAD_TIMEOUT", u.Timeout > 0)
	p.positive("UPLOAD_SESSION_TTL", u.SessionTTL > 0)
	p.positive("UPLOAD_MAX_CONCURRENT", u.MaxConcurrent > 0)
	if u.MaxWait < 0 {
		p.add("UPLOAD_MAX_WAIT must be non-negative")
	}
}

func (d DatabaseConfig) validate(p *problems) {
	p.positive("DB_MAX_CONNS", d.MaxConns > 0)
	if d.MinConns < 0 {
		p.add("DB_MIN_CONNS must be non-negative")
	}
	if d.MaxConns < d.MinConns {
		p.add("DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)", d.MaxConns, d.MinConns)
	}
}

func (h HistoryConfig) validate(p *problems) {
	p.positive("HISTORY_RETENTION_DAYS", h.RetentionDays > 0)
	p.positive("HISTORY_CHECK_INTERVAL", h.CheckInterval > 0)
	p.positive("HISTORY_MEMORY_SIZE", h.MemorySize > 0)
}

func (l LoggingConfig) validate(p *problems) {
	switch strings.ToLower(l.Level) {
	case "debug", "info", "warn", "error":
	default:
		p.add("LOG_LEVEL (%q) must be one of: debug, info, warn, error", l.Level)
	}
	switch strings.ToLower(l.Format) {
	case "text", "json":
	default:
		p.add("LOG_FORMAT (%q) must be one of: text, json", l.Format)
	}
}

// String returns the config for logging with the database URL masked.
func (c *Config) String() string {
	db := "disabled"
	if c.Database.URL != "" {
		db = fmt.Sprintf("{URL: [MASKED], MaxConns: %d}", c.Database.MaxConns)
	}
	return fmt.Sprintf("Config{Server: {Addr: %q}, API: {BaseURL: %q, RPS: %g, Batch: %v}, "+
		"Upload: {MaxFileSize: %d, SessionTTL: %s, MaxConcurrent: %d}, Database: %s, "+
		"Rate: {Enabled: %v, RequestsPerMinute: %d}, Logging: {Level: %q, Format: %q}}",
		c.Server.Addr(), c.API.BaseURL, c.API.RequestsPerSecond, c.API.Batch,
		c.Upload.MaxFileSize, c.Upload.SessionTTL, c.Upload.MaxConcurrent, db,
		c.Rate.Enabled, c.Rate.RequestsPerMinute, c.Logging.Level, c.Logging.Format)
}
