package internal

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/starford/vaultvec/internal/apperr"
	pkgconfig "github.com/starford/vaultvec/pkg/config"
)

func validConfig() *Config {
	cfg := NewDefaultConfig()
	cfg.Embedding.APIKey = "sk-test"
	return cfg
}

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestConfig_DefaultsWithKeyAreValid(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestConfig_MissingSettingsAreConfigurationMissing(t *testing.T) {
	cases := map[string]func(*Config){
		"api key": func(c *Config) { c.Embedding.APIKey = "" },
		"pgvector dsn": func(c *Config) {
			c.VectorStore.Backend = VectorBackendPGVector
			c.VectorStore.DSN = ""
		},
		"hnsw path":   func(c *Config) { c.VectorStore.Path = "" },
		"sqlite path": func(c *Config) { c.ContentStore.SQLite.Path = "" },
		"s3 bucket":   func(c *Config) { c.ContentStore.Backend = ContentBackendS3 },
		"vault for watch": func(c *Config) {
			c.Vault.Path = ""
			c.Watch.Enabled = true
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := validConfig()
			mutate(cfg)
			err := cfg.Validate()
			if !errors.Is(err, apperr.ErrConfigurationMissing) {
				t.Fatalf("err = %v, want ErrConfigurationMissing", err)
			}
		})
	}
}

func TestConfig_RejectsOutOfRangeValues(t *testing.T) {
	cases := map[string]func(*Config){
		"backend":    func(c *Config) { c.VectorStore.Backend = "faiss" },
		"dimensions": func(c *Config) { c.Embedding.Dimensions = 0 },
		"batch size": func(c *Config) { c.Sync.BatchSize = 0 },
		"min score":  func(c *Config) { c.Search.MinScore = 1.5 },
		"port":       func(c *Config) { c.App.HTTP.Port = 70000 },
		"debounce":   func(c *Config) { c.Watch.Debounce = -time.Second },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := validConfig()
			mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestConfig_LoadYAMLWithEnv(t *testing.T) {
	t.Setenv("VAULTVEC_TEST_KEY", "sk-from-env")
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
app:
  log_level: debug
  http:
    port: 9090
vault:
  path: /notes
  name: Work
embedding:
  api_key: ${VAULTVEC_TEST_KEY}
vector_store:
  backend: memory
content_store:
  backend: memory
sync:
  batch_delay: 250ms
watch:
  enabled: true
  reconcile_interval: 5m
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := NewDefaultConfig()
	if err := pkgconfig.Load(path, cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Embedding.APIKey != "sk-from-env" {
		t.Errorf("api key = %q", cfg.Embedding.APIKey)
	}
	if cfg.App.HTTP.Address() != ":9090" {
		t.Errorf("address = %q", cfg.App.HTTP.Address())
	}
	if cfg.Sync.BatchDelay != 250*time.Millisecond {
		t.Errorf("batch delay = %v", cfg.Sync.BatchDelay)
	}
	if cfg.Watch.ReconcileInterval != 5*time.Minute {
		t.Errorf("reconcile interval = %v", cfg.Watch.ReconcileInterval)
	}
	if cfg.Embedding.Model != "text-embedding-3-small" {
		t.Errorf("defaults should survive partial files, model = %q", cfg.Embedding.Model)
	}
	if cfg.Vault.Name != "Work" {
		t.Errorf("vault name = %q", cfg.Vault.Name)
	}
}

func TestConfig_LoadReportsMissingKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("vector_store:\n  backend: memory\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	err := pkgconfig.Load(path, NewDefaultConfig())
	if !errors.Is(err, apperr.ErrConfigurationMissing) {
		t.Fatalf("err = %v, want ErrConfigurationMissing", err)
	}
}
