package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/vaultvec/internal/apperr"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Backends.
const (
	ProviderOpenAI = "openai"

	VectorBackendHNSW     = "hnsw"
	VectorBackendPGVector = "pgvector"
	VectorBackendMemory   = "memory"

	ContentBackendSQLite = "sqlite"
	ContentBackendS3     = "s3"
	ContentBackendMemory = "memory"
)

// Config represents the application configuration.
type Config struct {
	App          ApplicationConfig  `yaml:"app"`
	Vault        VaultConfig        `yaml:"vault"`
	Embedding    EmbeddingConfig    `yaml:"embedding"`
	VectorStore  VectorStoreConfig  `yaml:"vector_store"`
	ContentStore ContentStoreConfig `yaml:"content_store"`
	Search       SearchConfig       `yaml:"search"`
	Sync         SyncConfig         `yaml:"sync"`
	Watch        WatchConfig        `yaml:"watch"`
	Auth         AuthConfig         `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validators := []interface{ Validate() error }{
		&c.App, &c.Vault, &c.Embedding, &c.VectorStore, &c.ContentStore,
		&c.Search, &c.Sync, &c.Watch, &c.Auth,
	}
	for _, v := range validators {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	if (c.Watch.Enabled || c.Sync.OnStart) && c.Vault.Path == "" {
		return fmt.Errorf("vault: path is required for watch or sync on start: %w", apperr.ErrConfigurationMissing)
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// VaultConfig points at the Markdown vault. Path may be empty when notes
// only arrive through the API.
type VaultConfig struct {
	Path string `yaml:"path"`
	// Name is used in obsidian:// links.
	Name string `yaml:"name"`
}

// Validate validates the vault configuration.
func (c *VaultConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Name, validation.Length(0, 255)),
	)
}

// EmbeddingConfig selects the embedding provider.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	// CacheSize is the number of cached query/document vectors; 0 disables.
	CacheSize         int     `yaml:"cache_size"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// Validate validates the embedding configuration.
func (c *EmbeddingConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Provider, validation.Required, validation.In(ProviderOpenAI)),
		validation.Field(&c.Model, validation.Required),
		validation.Field(&c.Dimensions, validation.Required, validation.Min(1)),
		validation.Field(&c.CacheSize, validation.Min(0)),
		validation.Field(&c.RequestsPerSecond, validation.Min(0.0)),
		validation.Field(&c.Burst, validation.Min(0)),
	); err != nil {
		return fmt.Errorf("embedding: %w", err)
	}
	if c.Provider == ProviderOpenAI && c.APIKey == "" {
		return fmt.Errorf("embedding: api_key: %w", apperr.ErrConfigurationMissing)
	}
	return nil
}

// VectorStoreConfig selects the vector index backend.
type VectorStoreConfig struct {
	Backend string `yaml:"backend"`
	// Path is the HNSW snapshot file.
	Path  string `yaml:"path"`
	DSN   string `yaml:"dsn"`
	Table string `yaml:"table"`
}

// Validate validates the vector store configuration.
func (c *VectorStoreConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Backend, validation.Required,
			validation.In(VectorBackendHNSW, VectorBackendPGVector, VectorBackendMemory)),
	); err != nil {
		return fmt.Errorf("vector_store: %w", err)
	}
	switch {
	case c.Backend == VectorBackendHNSW && c.Path == "":
		return fmt.Errorf("vector_store: path: %w", apperr.ErrConfigurationMissing)
	case c.Backend == VectorBackendPGVector && c.DSN == "":
		return fmt.Errorf("vector_store: dsn: %w", apperr.ErrConfigurationMissing)
	}
	return nil
}

// ContentStoreConfig selects the content store backend.
type ContentStoreConfig struct {
	Backend  string       `yaml:"backend"`
	SQLite   SQLiteConfig `yaml:"sqlite"`
	S3       S3Config     `yaml:"s3"`
	PageSize int          `yaml:"page_size"`
}

// Validate validates the content store configuration.
func (c *ContentStoreConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Backend, validation.Required,
			validation.In(ContentBackendSQLite, ContentBackendS3, ContentBackendMemory)),
		validation.Field(&c.PageSize, validation.Min(0), validation.Max(1000)),
	); err != nil {
		return fmt.Errorf("content_store: %w", err)
	}
	switch {
	case c.Backend == ContentBackendSQLite && c.SQLite.Path == "":
		return fmt.Errorf("content_store: sqlite.path: %w", apperr.ErrConfigurationMissing)
	case c.Backend == ContentBackendS3 && c.S3.Bucket == "":
		return fmt.Errorf("content_store: s3.bucket: %w", apperr.ErrConfigurationMissing)
	}
	return nil
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// S3Config holds S3-compatible bucket configuration. Empty credentials
// fall back to the default AWS chain.
type S3Config struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	UsePathStyle    bool   `yaml:"use_path_style"`
}

// SearchConfig holds retrieval defaults.
type SearchConfig struct {
	MinScore         float64 `yaml:"min_score"`
	FreshnessEnabled bool    `yaml:"freshness_enabled"`
	// OpenMinScore is the threshold of the search/fetch tool pair.
	OpenMinScore float64 `yaml:"open_min_score"`
}

// Validate validates the search configuration.
func (c *SearchConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.MinScore, validation.Min(0.0), validation.Max(1.0)),
		validation.Field(&c.OpenMinScore, validation.Min(0.0), validation.Max(1.0)),
	)
}

// SyncConfig tunes the indexing pipeline.
type SyncConfig struct {
	BatchSize  int           `yaml:"batch_size"`
	BatchDelay time.Duration `yaml:"batch_delay"`
	OnStart    bool          `yaml:"on_start"`
}

// Validate validates the sync configuration.
func (c *SyncConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.BatchSize, validation.Required, validation.Min(1), validation.Max(100)),
		validation.Field(&c.BatchDelay, validation.Min(time.Duration(0))),
	)
}

// WatchConfig controls the vault watcher.
type WatchConfig struct {
	Enabled           bool          `yaml:"enabled"`
	Debounce          time.Duration `yaml:"debounce"`
	ReconcileInterval time.Duration `yaml:"reconcile_interval"`
	// AutoPurge allows unattended deletion of orphans.
	AutoPurge bool `yaml:"auto_purge"`
}

// Validate validates the watch configuration.
func (c *WatchConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Debounce, validation.Min(time.Duration(0))),
		validation.Field(&c.ReconcileInterval, validation.Min(time.Duration(0))),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Vault: VaultConfig{
			Path: "./vault",
			Name: "ObsidianVault",
		},
		Embedding: EmbeddingConfig{
			Provider:          ProviderOpenAI,
			Model:             "text-embedding-3-small",
			Dimensions:        1536,
			CacheSize:         1024,
			RequestsPerSecond: 5,
			Burst:             5,
		},
		VectorStore: VectorStoreConfig{
			Backend: VectorBackendHNSW,
			Path:    "./data/vectors.hnsw",
			Table:   "note_vectors",
		},
		ContentStore: ContentStoreConfig{
			Backend: ContentBackendSQLite,
			SQLite: SQLiteConfig{
				Path: "./data/content.db",
			},
			S3: S3Config{
				Region: "us-east-1",
			},
			PageSize: 1000,
		},
		Search: SearchConfig{
			MinScore:         0.7,
			FreshnessEnabled: true,
			OpenMinScore:     0.3,
		},
		Sync: SyncConfig{
			BatchSize:  10,
			BatchDelay: 100 * time.Millisecond,
		},
		Watch: WatchConfig{
			Debounce: 200 * time.Millisecond,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
