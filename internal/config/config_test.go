package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultsWithPostgRESTEnv(t *testing.T) {
	t.Setenv("SUPABASE_URL", "https://example.supabase.co")
	t.Setenv("SUPABASE_ANON_KEY", "anon")

	cfg, err := LoadFrom("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != "8080" || cfg.Provider.Kind != ProviderPostgREST || cfg.Server.WarmRange != "30d" {
		t.Fatalf("defaults: %+v", cfg.Server)
	}
	if !cfg.Fallback.Enabled || !cfg.Fallback.OnEmpty || cfg.Provider.Retries != 0 {
		t.Fatalf("fallback defaults: %+v %+v", cfg.Fallback, cfg.Provider)
	}
	if cfg.Provider.APIKey != "anon" || cfg.Provider.URL != "https://example.supabase.co" {
		t.Fatalf("env not applied: %+v", cfg.Provider)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PROVIDER", "memory")
	t.Setenv("PORT", "9090")
	t.Setenv("HTTP_TIMEOUT_SECONDS", "3")
	t.Setenv("FALLBACK_ON_EMPTY", "false")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("WARM_RANGE", "")

	cfg, err := LoadFrom("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != "9090" || cfg.Provider.Timeout != 3*time.Second {
		t.Fatalf("overrides: port=%s timeout=%s", cfg.Server.Port, cfg.Provider.Timeout)
	}
	if cfg.Fallback.OnEmpty || !cfg.Fallback.Enabled {
		t.Fatalf("fallback: %+v", cfg.Fallback)
	}
	if len(cfg.Security.CORSOrigins) != 2 || cfg.Security.CORSOrigins[1] != "https://b.example" {
		t.Fatalf("cors: %q", cfg.Security.CORSOrigins)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("log level: %s", cfg.Logging.Level)
	}
	if cfg.Server.WarmRange != "" {
		t.Fatalf("warm range not cleared: %q", cfg.Server.WarmRange)
	}
}

func TestYAMLFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := `
provider:
  kind: postgres
  dsn: postgres://dash@localhost/dash?sslmode=disable
  retries: 2
fallback:
  seed: 42
server:
  port: "7000"
`
	if err := os.WriteFile(path, []byte(yml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PORT", "7100")

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Provider.Kind != ProviderPostgres || cfg.Provider.Retries != 2 || cfg.Fallback.Seed != 42 {
		t.Fatalf("yaml: %+v %+v", cfg.Provider, cfg.Fallback)
	}
	if cfg.Server.Port != "7100" {
		t.Fatalf("env should win over yaml: %s", cfg.Server.Port)
	}
}

func TestValidation(t *testing.T) {
	cases := map[string]map[string]string{
		"unknown provider":    {"PROVIDER": "mongo"},
		"postgrest needs url": {"PROVIDER": "postgrest"},
		"postgres needs dsn":  {"PROVIDER": "postgres"},
		"bad port":            {"PROVIDER": "memory", "PORT": "http"},
		"bad level":           {"PROVIDER": "memory", "LOG_LEVEL": "loud"},
		"bad sink":            {"PROVIDER": "memory", "SINK_URL": "not a url"},
		"too many retries":    {"PROVIDER": "memory", "PROVIDER_RETRIES": "9"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := LoadFrom("")
			if err == nil || !strings.HasPrefix(err.Error(), "config:") {
				t.Fatalf("expected config error, got %v", err)
			}
		})
	}
}
