package config

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/felixgeelhaar/mediate/behavior"
	"github.com/felixgeelhaar/mediate/pipeline"
	"github.com/felixgeelhaar/mediate/testutil"
	"github.com/felixgeelhaar/mediate/validation"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoad(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		t.Chdir(t.TempDir())

		cfg, err := Load("")
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}

		if cfg.Server.Addr != ":8080" {
			t.Errorf("server.addr = %q, want %q", cfg.Server.Addr, ":8080")
		}
		if cfg.Server.ReadTimeout != 10*time.Second {
			t.Errorf("server.read_timeout = %v, want 10s", cfg.Server.ReadTimeout)
		}
		if cfg.Server.MaxBodyBytes != 1<<20 {
			t.Errorf("server.max_body_bytes = %d", cfg.Server.MaxBodyBytes)
		}
		if cfg.Pipeline.Timeout != 30*time.Second {
			t.Errorf("pipeline.timeout = %v, want 30s", cfg.Pipeline.Timeout)
		}
		if cfg.Pipeline.RateLimit.Enabled {
			t.Error("rate limiting should be disabled by default")
		}
		if cfg.Telemetry.ServiceName != "mediate" {
			t.Errorf("telemetry.service_name = %q", cfg.Telemetry.ServiceName)
		}
		if err := cfg.Validate(); err != nil {
			t.Errorf("defaults should be valid: %v", err)
		}
	})

	t.Run("yaml file", func(t *testing.T) {
		dir := t.TempDir()
		path := writeFile(t, dir, "mediate.yaml", `
server:
  addr: ":9090"
  write_timeout: 5s
pipeline:
  timeout: 2s
  rate_limit:
    enabled: true
    rate: 5
    burst: 10
    key: identity
auth:
  enabled: true
  public: [Health]
  admin_requests: [DeleteEmployee]
  tokens:
    - token: secret
      id: ops
      roles: [admin]
storage:
  path: /var/lib/mediate/employees.db
`)

		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}

		if cfg.Server.Addr != ":9090" {
			t.Errorf("server.addr = %q, want %q", cfg.Server.Addr, ":9090")
		}
		if cfg.Server.WriteTimeout != 5*time.Second {
			t.Errorf("server.write_timeout = %v, want 5s", cfg.Server.WriteTimeout)
		}
		if cfg.Server.ReadTimeout != 10*time.Second {
			t.Errorf("unset keys keep defaults, got read_timeout %v", cfg.Server.ReadTimeout)
		}
		if rl := cfg.Pipeline.RateLimit; !rl.Enabled || rl.Rate != 5 || rl.Burst != 10 || rl.Key != "identity" {
			t.Errorf("rate_limit = %+v", rl)
		}
		if len(cfg.Auth.Tokens) != 1 || cfg.Auth.Tokens[0].Roles[0] != "admin" {
			t.Errorf("auth.tokens = %+v", cfg.Auth.Tokens)
		}
		if cfg.Storage.Path != "/var/lib/mediate/employees.db" {
			t.Errorf("storage.path = %q", cfg.Storage.Path)
		}
		if err := cfg.Validate(); err != nil {
			t.Errorf("Validate() = %v", err)
		}
	})

	t.Run("env overrides file", func(t *testing.T) {
		dir := t.TempDir()
		path := writeFile(t, dir, "mediate.yaml", "server:\n  addr: \":9090\"\n")
		t.Setenv("MEDIATE_SERVER__ADDR", ":7070")
		t.Setenv("MEDIATE_PIPELINE__RATE_LIMIT__RATE", "42")

		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cfg.Server.Addr != ":7070" {
			t.Errorf("server.addr = %q, want %q", cfg.Server.Addr, ":7070")
		}
		if cfg.Pipeline.RateLimit.Rate != 42 {
			t.Errorf("rate = %d, want 42", cfg.Pipeline.RateLimit.Rate)
		}
	})

	t.Run("dotenv file", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, ".env", "MEDIATE_STORAGE__PATH=from-dotenv.db\n")
		t.Chdir(dir)
		t.Cleanup(func() { os.Unsetenv("MEDIATE_STORAGE__PATH") })

		cfg, err := Load("")
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cfg.Storage.Path != "from-dotenv.db" {
			t.Errorf("storage.path = %q, want %q", cfg.Storage.Path, "from-dotenv.db")
		}
	})

	t.Run("missing explicit file", func(t *testing.T) {
		if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
			t.Error("expected error for missing explicit config file")
		}
	})

	t.Run("malformed file", func(t *testing.T) {
		path := writeFile(t, t.TempDir(), "bad.yaml", "server: [\n")
		if _, err := Load(path); err == nil {
			t.Error("expected parse error")
		}
	})
}

func validConfig() *Config {
	return &Config{
		Server:    ServerConfig{Addr: ":8080", MaxBodyBytes: 1024},
		Log:       LogConfig{Level: "info", Format: "text"},
		Telemetry: TelemetryConfig{ServiceName: "mediate"},
		Storage:   StorageConfig{Path: ":memory:"},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		fields []string
	}{
		{name: "valid", modify: func(*Config) {}},
		{
			name:   "missing addr and bad log level",
			modify: func(c *Config) { c.Server.Addr = ""; c.Log.Level = "loud" },
			fields: []string{"server.addr", "log.level"},
		},
		{
			name: "rate limit needs positive values",
			modify: func(c *Config) {
				c.Pipeline.RateLimit = RateLimitConfig{Enabled: true, Key: "tenant"}
			},
			fields: []string{"pipeline.rate_limit.rate", "pipeline.rate_limit.burst", "pipeline.rate_limit.key"},
		},
		{
			name:   "auth needs tokens",
			modify: func(c *Config) { c.Auth.Enabled = true },
			fields: []string{"auth.tokens"},
		},
		{
			name: "auth tokens are checked",
			modify: func(c *Config) {
				c.Auth = AuthConfig{
					Enabled: true,
					Tokens:  []TokenConfig{{Token: "a", ID: "1"}, {Token: "a", ID: ""}},
				}
			},
			fields: []string{"auth.tokens[1].id", "auth.tokens[1].token"},
		},
		{
			name:   "negative timeout",
			modify: func(c *Config) { c.Pipeline.Timeout = -time.Second },
			fields: []string{"pipeline.timeout"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.modify(cfg)

			err := cfg.Validate()
			if len(tt.fields) == 0 {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}

			vf, ok := validation.As(err)
			if !ok {
				t.Fatalf("Validate() = %v, want *ValidationFailed", err)
			}
			got := strings.Join(vf.Fields(), ",")
			if got != strings.Join(tt.fields, ",") {
				t.Errorf("fields = %s, want %s", got, strings.Join(tt.fields, ","))
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	cfg := validConfig()
	cfg.Log = LogConfig{Level: "warn", Format: "json"}

	logger := cfg.NewLogger(&buf)
	logger.Info("hidden")
	logger.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info should be filtered at warn level: %s", out)
	}
	if !strings.Contains(out, `"msg":"shown"`) {
		t.Errorf("expected JSON output, got %s", out)
	}
}

type createEmployee struct{ Name string }

type deleteEmployee struct{ ID string }

func TestBuildStack(t *testing.T) {
	ok := func(ctx context.Context, req any) (any, error) { return "ok", nil }

	t.Run("minimal", func(t *testing.T) {
		cfg := validConfig()
		stack := BuildStack(cfg, StackDeps{})
		if len(stack) != 4 {
			t.Fatalf("len(stack) = %d, want 4", len(stack))
		}
		if _, err := pipeline.Execute(context.Background(), any(createEmployee{}), ok, stack...); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("everything enabled", func(t *testing.T) {
		cfg := validConfig()
		cfg.Pipeline.Timeout = time.Second
		cfg.Pipeline.RateLimit = RateLimitConfig{Enabled: true, Rate: 1, Burst: 1, Key: "identity"}
		cfg.Auth = AuthConfig{
			Enabled:       true,
			Tokens:        []TokenConfig{{Token: "t1", ID: "ops", Roles: []string{"admin"}}, {Token: "t2", ID: "dev"}},
			Public:        []string{"createEmployee"},
			AdminRequests: []string{"deleteEmployee"},
			AdminRole:     "admin",
		}
		cfg.Telemetry.Metrics = true
		cfg.Telemetry.Tracing = true

		registry := validation.NewRegistry()
		validation.Register[createEmployee](registry, validation.ValidatorFunc[createEmployee](func(_ context.Context, req createEmployee) []validation.FieldError {
			return new(validation.Rules).Required("name", req.Name).Errors()
		}))

		stack := BuildStack(cfg, StackDeps{
			Logger:   behavior.NopLogger{},
			Registry: registry,
			Metrics:  behavior.NewMetrics(prometheus.NewRegistry()),
		})
		if len(stack) != 9 {
			t.Fatalf("len(stack) = %d, want 9", len(stack))
		}

		ctx := context.Background()

		// Public requests skip auth but are still validated
		_, err := pipeline.Execute(ctx, any(createEmployee{}), ok, stack...)
		if !errors.Is(err, validation.ErrValidationFailed) {
			t.Errorf("createEmployee: err = %v, want ErrValidationFailed", err)
		}

		_, err = pipeline.Execute(ctx, any(deleteEmployee{ID: "1"}), ok, stack...)
		if !errors.Is(err, behavior.ErrUnauthenticated) {
			t.Errorf("anonymous delete: err = %v, want ErrUnauthenticated", err)
		}

		dev := behavior.SetMetadata(ctx, "X-API-Key", "t2")
		_, err = pipeline.Execute(dev, any(deleteEmployee{ID: "1"}), ok, stack...)
		if !errors.Is(err, behavior.ErrForbidden) {
			t.Errorf("dev delete: err = %v, want ErrForbidden", err)
		}

		ops := behavior.SetMetadata(ctx, "Authorization", "Bearer t1")
		if _, err := pipeline.Execute(ops, any(deleteEmployee{ID: "1"}), ok, stack...); err != nil {
			t.Errorf("ops delete: %v", err)
		}
		_, err = pipeline.Execute(ops, any(deleteEmployee{ID: "2"}), ok, stack...)
		if !errors.Is(err, behavior.ErrRateLimited) {
			t.Errorf("second ops delete: err = %v, want ErrRateLimited", err)
		}
	})
	t.Run("panics are logged and counted", func(t *testing.T) {
		cfg := validConfig()
		cfg.Telemetry.Metrics = true
		logger := &testutil.Logger{}
		metrics := behavior.NewMetrics(prometheus.NewRegistry())

		stack := BuildStack(cfg, StackDeps{Logger: logger, Metrics: metrics})
		_, err := pipeline.Execute(context.Background(), any(createEmployee{Name: "Ada"}), func(context.Context, any) (any, error) {
			panic("boom")
		}, stack...)

		var panicErr *behavior.PanicError
		if !errors.As(err, &panicErr) {
			t.Fatalf("err = %v, want *PanicError", err)
		}
		lines := logger.Lines()
		if len(lines) != 2 || lines[1] != "error:request failed" {
			t.Errorf("log lines = %v, want request started then request failed", lines)
		}
		got := promtestutil.ToFloat64(metrics.Requests.WithLabelValues(behavior.RequestName(createEmployee{}), behavior.OutcomePanic))
		if got != 1 {
			t.Errorf("panic outcome count = %v, want 1", got)
		}
	})
}
