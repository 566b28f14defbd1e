package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/starford/vaultvec/internal/contentstore"
	"github.com/starford/vaultvec/internal/embedding"
	"github.com/starford/vaultvec/internal/index"
	"github.com/starford/vaultvec/internal/noteservice"
	"github.com/starford/vaultvec/internal/reconcile"
	"github.com/starford/vaultvec/internal/search"
	"github.com/starford/vaultvec/internal/stats"
	"github.com/starford/vaultvec/internal/storage"
	"github.com/starford/vaultvec/internal/vectorstore"
)

// Stack is the set of components built from a Config. Every surface (HTTP,
// MCP, CLI) runs on one Stack.
type Stack struct {
	Config     *Config
	Logger     *slog.Logger
	Vault      *storage.FS
	Embedder   embedding.Embedder
	Vectors    vectorstore.Store
	Content    contentstore.Store
	Pipeline   *index.Pipeline
	Reconciler *reconcile.Reconciler
	Service    *noteservice.Service
}

// Open builds a Stack. The caller must Close it.
func Open(ctx context.Context, opts ...Option) (*Stack, error) {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	cfg := app.config

	out := app.logOutput
	if out == nil {
		out = os.Stdout
	}
	logger := slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("vault_path", cfg.Vault.Path),
		slog.String("embedding_model", cfg.Embedding.Model),
		slog.String("vector_store", cfg.VectorStore.Backend),
		slog.String("content_store", cfg.ContentStore.Backend),
		slog.String("log_level", cfg.App.LogLevel.String()))

	s := &Stack{Config: cfg, Logger: logger}
	if err := s.build(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Stack) build(ctx context.Context) error {
	cfg := s.Config

	var source storage.Source
	if cfg.Vault.Path != "" {
		if err := os.MkdirAll(cfg.Vault.Path, 0o755); err != nil {
			return fmt.Errorf("create vault dir: %w", err)
		}
		vault, err := storage.NewFS(cfg.Vault.Path)
		if err != nil {
			return fmt.Errorf("init vault: %w", err)
		}
		s.Vault = vault
		source = vault
	}

	emb, err := newEmbedder(cfg.Embedding, s.Logger)
	if err != nil {
		return fmt.Errorf("init embedder: %w", err)
	}
	s.Embedder = emb

	if s.Vectors, err = newVectorStore(ctx, cfg.VectorStore, cfg.Embedding.Dimensions, s.Logger); err != nil {
		return fmt.Errorf("init vector store: %w", err)
	}
	if s.Content, err = newContentStore(ctx, cfg.ContentStore); err != nil {
		return fmt.Errorf("init content store: %w", err)
	}

	s.Pipeline = index.NewPipeline(s.Embedder, s.Vectors, s.Content, source, index.Config{
		BatchSize:  cfg.Sync.BatchSize,
		BatchDelay: cfg.Sync.BatchDelay,
	}, s.Logger)
	s.Reconciler = reconcile.New(s.Vectors, s.Content, s.Logger)
	engine := search.New(s.Embedder, s.Vectors, s.Content, search.Options{
		MinScore:         cfg.Search.MinScore,
		FreshnessEnabled: cfg.Search.FreshnessEnabled,
	}, s.Logger)

	s.Service = noteservice.NewService(noteservice.Deps{
		Pipeline:   s.Pipeline,
		Search:     engine,
		Reconciler: s.Reconciler,
		Stats:      stats.New(s.Content, s.Vectors, cfg.Embedding.Dimensions, s.Logger),
		Content:    s.Content,
		Source:     source,
	}, noteservice.Options{
		VaultName:    cfg.Vault.Name,
		OpenMinScore: cfg.Search.OpenMinScore,
	})
	return nil
}

// Close flushes and releases the stores.
func (s *Stack) Close() error {
	var errs []error
	if s.Vectors != nil {
		if err := s.Vectors.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close vector store: %w", err))
		}
	}
	if s.Content != nil {
		if err := s.Content.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close content store: %w", err))
		}
	}
	return errors.Join(errs...)
}

// newEmbedder wraps the provider with the rate limiter and breaker, then the
// cache, so cache hits never wait on the limiter.
func newEmbedder(cfg EmbeddingConfig, logger *slog.Logger) (embedding.Embedder, error) {
	var base embedding.Embedder
	switch cfg.Provider {
	case ProviderOpenAI:
		oa, err := embedding.NewOpenAI(embedding.OpenAIConfig{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
		})
		if err != nil {
			return nil, err
		}
		base = oa
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}

	var emb embedding.Embedder = embedding.NewResilient(base, embedding.ResilienceConfig{
		RequestsPerSecond: cfg.RequestsPerSecond,
		Burst:             cfg.Burst,
	}, logger)
	if cfg.CacheSize > 0 {
		emb = embedding.NewCached(emb, cfg.CacheSize)
	}
	return emb, nil
}

func newVectorStore(ctx context.Context, cfg VectorStoreConfig, dims int, logger *slog.Logger) (vectorstore.Store, error) {
	switch cfg.Backend {
	case VectorBackendHNSW:
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, fmt.Errorf("create snapshot dir: %w", err)
		}
		return vectorstore.NewHNSW(vectorstore.HNSWConfig{Dimensions: dims, Path: cfg.Path}, logger)
	case VectorBackendPGVector:
		return vectorstore.NewPGVector(ctx, vectorstore.PGVectorConfig{
			DSN:        cfg.DSN,
			Table:      cfg.Table,
			Dimensions: dims,
		})
	case VectorBackendMemory:
		return vectorstore.NewMemory(dims), nil
	default:
		return nil, fmt.Errorf("unknown vector store backend %q", cfg.Backend)
	}
}

func newContentStore(ctx context.Context, cfg ContentStoreConfig) (contentstore.Store, error) {
	switch cfg.Backend {
	case ContentBackendSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.SQLite.Path), 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
		return contentstore.OpenSQLite(cfg.SQLite.Path, cfg.PageSize)
	case ContentBackendS3:
		return contentstore.NewS3(ctx, contentstore.S3Config{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			UsePathStyle:    cfg.S3.UsePathStyle,
			PageSize:        cfg.PageSize,
		})
	case ContentBackendMemory:
		return contentstore.NewMemory(cfg.PageSize), nil
	default:
		return nil, fmt.Errorf("unknown content store backend %q", cfg.Backend)
	}
}
