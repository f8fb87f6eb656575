// Package config loads mediate settings from YAML, .env files and
// MEDIATE_ environment variables, and turns them into a behavior stack.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/felixgeelhaar/mediate/validation"
)

// EnvPrefix is the prefix of environment overrides. Nested keys are
// separated by a double underscore: MEDIATE_SERVER__ADDR=:9090.
const EnvPrefix = "MEDIATE_"

// DefaultPath is read when Load is called with an empty path.
// A missing default file is not an error.
const DefaultPath = "mediate.yaml"

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Log       LogConfig       `koanf:"log"`
	Pipeline  PipelineConfig  `koanf:"pipeline"`
	Auth      AuthConfig      `koanf:"auth"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	Storage   StorageConfig   `koanf:"storage"`
}

type ServerConfig struct {
	Addr            string        `koanf:"addr"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	MaxBodyBytes    int64         `koanf:"max_body_bytes"`
}

type LogConfig struct {
	Level  string `koanf:"level"`  // debug, info, warn, error
	Format string `koanf:"format"` // text, json
}

type PipelineConfig struct {
	// Timeout bounds validation and handling. Zero disables it.
	Timeout   time.Duration   `koanf:"timeout"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
}

type RateLimitConfig struct {
	Enabled bool `koanf:"enabled"`
	Rate    int  `koanf:"rate"` // requests per second
	Burst   int  `koanf:"burst"`
	// Key selects the bucket: global, request or identity.
	Key string `koanf:"key"`
}

type AuthConfig struct {
	Enabled bool          `koanf:"enabled"`
	Tokens  []TokenConfig `koanf:"tokens"`
	// Public requests skip authentication.
	Public []string `koanf:"public"`
	// Requests listed here require AdminRole.
	AdminRequests []string `koanf:"admin_requests"`
	AdminRole     string   `koanf:"admin_role"`
}

// TokenConfig is a static credential accepted as a bearer token or an
// X-API-Key header.
type TokenConfig struct {
	Token string   `koanf:"token"`
	ID    string   `koanf:"id"`
	Name  string   `koanf:"name"`
	Roles []string `koanf:"roles"`
}

type TelemetryConfig struct {
	ServiceName string `koanf:"service_name"`
	Metrics     bool   `koanf:"metrics"`
	Tracing     bool   `koanf:"tracing"`
}

type StorageConfig struct {
	Path string `koanf:"path"` // sqlite database file, ":memory:" for tests
}

var defaults = map[string]any{
	"server.addr":               ":8080",
	"server.read_timeout":       "10s",
	"server.write_timeout":      "30s",
	"server.shutdown_timeout":   "15s",
	"server.max_body_bytes":     1 << 20,
	"log.level":                 "info",
	"log.format":                "text",
	"pipeline.timeout":          "30s",
	"pipeline.rate_limit.rate":  100,
	"pipeline.rate_limit.burst": 200,
	"pipeline.rate_limit.key":   "global",
	"auth.admin_role":           "admin",
	"telemetry.service_name":    "mediate",
	"telemetry.metrics":         true,
	"storage.path":              "mediate.db",
}

// Load reads configuration in increasing order of precedence: defaults, the
// YAML file at path, then MEDIATE_ environment variables. A .env file in the
// working directory is loaded into the environment first if present.
func Load(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	k := koanf.New(".")

	optional := path == ""
	if optional {
		path = DefaultPath
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if !optional || !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: load %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("config: load environment: %w", err)
	}

	for key, value := range defaults {
		if !k.Exists(key) {
			if err := k.Set(key, value); err != nil {
				return nil, fmt.Errorf("config: default %s: %w", key, err)
			}
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	return &cfg, nil
}

// Validate checks the configuration and returns a *validation.ValidationFailed
// listing every problem.
func (c *Config) Validate() error {
	r := new(validation.Rules).
		Required("server.addr", c.Server.Addr).
		Check(c.Server.MaxBodyBytes > 0, "server.max_body_bytes", "must be positive").
		Check(c.Server.ReadTimeout >= 0, "server.read_timeout", "must not be negative").
		Check(c.Server.WriteTimeout >= 0, "server.write_timeout", "must not be negative").
		OneOf("log.level", c.Log.Level, "debug", "info", "warn", "error").
		OneOf("log.format", c.Log.Format, "text", "json").
		Check(c.Pipeline.Timeout >= 0, "pipeline.timeout", "must not be negative").
		Required("telemetry.service_name", c.Telemetry.ServiceName).
		Required("storage.path", c.Storage.Path)

	if rl := c.Pipeline.RateLimit; rl.Enabled {
		r.Check(rl.Rate > 0, "pipeline.rate_limit.rate", "must be positive").
			Check(rl.Burst > 0, "pipeline.rate_limit.burst", "must be positive").
			OneOf("pipeline.rate_limit.key", rl.Key, "global", "request", "identity")
	}

	if c.Auth.Enabled {
		r.Check(len(c.Auth.Tokens) > 0, "auth.tokens", "must not be empty when auth is enabled")
		seen := make(map[string]bool, len(c.Auth.Tokens))
		for i, t := range c.Auth.Tokens {
			field := fmt.Sprintf("auth.tokens[%d]", i)
			r.Required(field+".token", t.Token).
				Required(field+".id", t.ID).
				Check(!seen[t.Token] || t.Token == "", field+".token", "is duplicated")
			seen[t.Token] = true
		}
		if len(c.Auth.AdminRequests) > 0 {
			r.Required("auth.admin_role", c.Auth.AdminRole)
		}
	}

	if errs := r.Errors(); len(errs) > 0 {
		return validation.NewValidationFailed(errs)
	}
	return nil
}

// NewLogger builds the process logger described by the log section.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
