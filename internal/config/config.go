package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

const (
	ProviderPostgREST = "postgrest"
	ProviderPostgres  = "postgres"
	ProviderMemory    = "memory"

	// ConfigPathEnvVar overrides the YAML file location.
	ConfigPathEnvVar = "CONFIG_PATH"
)

var DefaultConfigPaths = []string{"config.yaml", "config.yml"}

type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Provider ProviderConfig `koanf:"provider"`
	Fallback FallbackConfig `koanf:"fallback"`
	Export   ExportConfig   `koanf:"export"`
	Security SecurityConfig `koanf:"security"`
	Logging  LoggingConfig  `koanf:"logging"`
}

type ServerConfig struct {
	Port              string        `koanf:"port" validate:"required,numeric"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout" validate:"gt=0"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
	// WarmRange is loaded once at startup; empty skips the warm-up.
	WarmRange         string        `koanf:"warm_range"`
}

type ProviderConfig struct {
	Kind     string `koanf:"kind" validate:"oneof=postgrest postgres memory"`
	URL      string `koanf:"url" validate:"required_if=Kind postgrest"`
	APIKey   string `koanf:"api_key" validate:"required_if=Kind postgrest"`
	DSN      string `koanf:"dsn" validate:"required_if=Kind postgres"`
	SeedFile string `koanf:"seed_file"`

	// Timeout bounds one provider call; zero leaves calls unbounded.
	Timeout         time.Duration `koanf:"timeout" validate:"gte=0"`
	Retries         int           `koanf:"retries" validate:"gte=0,lte=5"`
	RetryBase       time.Duration `koanf:"retry_base" validate:"gte=0"`
	BreakerFailures uint32        `koanf:"breaker_failures" validate:"gte=1"`
	BreakerCooldown time.Duration `koanf:"breaker_cooldown" validate:"gt=0"`
}

type FallbackConfig struct {
	Enabled bool   `koanf:"enabled"`
	OnEmpty bool   `koanf:"on_empty"`
	Seed    uint64 `koanf:"seed"`
}

type ExportConfig struct {
	SinkURL    string `koanf:"sink_url"`
	SinkSecret string `koanf:"sink_secret"`
}

type SecurityConfig struct {
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitRequests int           `koanf:"rate_limit_requests" validate:"gte=1"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window" validate:"gt=0"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json console"`
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Port:              "8080",
			ReadHeaderTimeout: 10 * time.Second,
			ShutdownTimeout:   15 * time.Second,
			WarmRange:         "30d",
		},
		Provider: ProviderConfig{
			Kind:            ProviderPostgREST,
			Timeout:         15 * time.Second,
			Retries:         0,
			RetryBase:       100 * time.Millisecond,
			BreakerFailures: 5,
			BreakerCooldown: 30 * time.Second,
		},
		Fallback: FallbackConfig{Enabled: true, OnEmpty: true},
		Security: SecurityConfig{
			CORSOrigins:       []string{"*"},
			RateLimitRequests: 120,
			RateLimitWindow:   time.Minute,
		},
		Logging: LoggingConfig{Level: "info", Format: "json"},
	}
}

// Load layers defaults, the first YAML file found, then the environment
// (after reading .env when present).
func Load() (*Config, error) {
	return LoadFrom(findConfigFile())
}

func LoadFrom(path string) (*Config, error) {
	// a missing .env is normal outside local development
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("config: defaults: %w", err)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("config: load %s: %w", path, err)
		}
	}
	if err := k.Load(env.ProviderWithValue("", ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("config: environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	cfg.Security.CORSOrigins = trimAll(cfg.Security.CORSOrigins)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func v() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

func (c *Config) Validate() error {
	if err := v().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("config: invalid: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("config: invalid: %w", err)
	}
	if c.Provider.URL != "" {
		if err := v().Var(c.Provider.URL, "url"); err != nil {
			return fmt.Errorf("config: provider.url %q is not a URL", c.Provider.URL)
		}
	}
	if c.Export.SinkURL != "" {
		if err := v().Var(c.Export.SinkURL, "url"); err != nil {
			return fmt.Errorf("config: export.sink_url %q is not a URL", c.Export.SinkURL)
		}
	}
	return nil
}

var envKeys = map[string]string{
	"port":                 "server.port",
	"read_header_timeout":  "server.read_header_timeout",
	"shutdown_timeout":     "server.shutdown_timeout",
	"warm_range":           "server.warm_range",
	"provider":             "provider.kind",
	"supabase_url":         "provider.url",
	"supabase_anon_key":    "provider.api_key",
	"database_url":         "provider.dsn",
	"seed_file":            "provider.seed_file",
	"provider_timeout":     "provider.timeout",
	"http_timeout_seconds": "provider.timeout",
	"provider_retries":     "provider.retries",
	"provider_retry_base":  "provider.retry_base",
	"breaker_failures":     "provider.breaker_failures",
	"breaker_cooldown":     "provider.breaker_cooldown",
	"fallback_enabled":     "fallback.enabled",
	"fallback_on_empty":    "fallback.on_empty",
	"fallback_seed":        "fallback.seed",
	"sink_url":             "export.sink_url",
	"sink_secret":          "export.sink_secret",
	"cors_origins":         "security.cors_origins",
	"rate_limit_requests":  "security.rate_limit_requests",
	"rate_limit_window":    "security.rate_limit_window",
	"disable_rate_limit":   "security.rate_limit_disabled",
	"log_level":            "logging.level",
	"log_format":           "logging.format",
}

// envTransform maps known variables to config paths; everything else is
// ignored.
func envTransform(key, value string) (string, interface{}) {
	k := strings.ToLower(key)
	path, ok := envKeys[k]
	if !ok {
		return "", nil
	}
	switch k {
	case "http_timeout_seconds":
		value = strings.TrimSpace(value) + "s"
	case "cors_origins":
		return path, trimAll(strings.Split(value, ","))
	}
	return path, value
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
