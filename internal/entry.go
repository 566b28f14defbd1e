// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/vaultvec/internal/api"
	"github.com/starford/vaultvec/internal/index"
	"github.com/starford/vaultvec/internal/mcpserver"
	"github.com/starford/vaultvec/internal/sse"
)

// snapshotInterval is how often a persistent vector index is flushed while
// the server runs. Close flushes once more on shutdown.
const snapshotInterval = time.Minute

type snapshotter interface {
	Save() error
}

// Run starts the HTTP server, plus the vault watcher and the initial sync
// when configured, and blocks until ctx is cancelled or a signal arrives.
func Run(ctx context.Context, opts ...Option) error {
	stack, err := Open(ctx, opts...)
	if err != nil {
		return err
	}
	defer func() {
		if err := stack.Close(); err != nil {
			stack.Logger.Error("close stores failed", slog.String("error", err.Error()))
		}
	}()

	cfg := stack.Config
	logger := stack.Logger

	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()
	stack.Pipeline.OnEvent(broker.PublishNoteEvent)

	apiRouter := api.NewRouter(stack.Service, broker, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if _, err := stack.Vectors.Count(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	// MCP over streamable HTTP, behind the same auth as the API.
	mcpSrv := mcpserver.New(stack.Service, logger)
	r.Handle("/mcp", api.AuthMiddleware(cfg.Auth.AuthEnabled(), cfg.Auth.Token)(mcpSrv.HTTPHandler()))

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	if cfg.Sync.OnStart {
		g.Go(func() error {
			res, err := stack.Pipeline.SyncAll(gCtx)
			if err != nil {
				logger.Warn("initial sync failed", slog.String("error", err.Error()))
				return nil
			}
			logger.Info("initial sync finished", slog.String("result", res.Message()))
			broker.Publish(sse.Event{Type: sse.TypeSyncCompleted, Data: res})
			return nil
		})
	}

	if cfg.Watch.Enabled {
		g.Go(func() error {
			err := index.Watch(gCtx, stack.Pipeline, stack.Reconciler, stack.Vault, index.WatchConfig{
				Debounce:          cfg.Watch.Debounce,
				ReconcileInterval: cfg.Watch.ReconcileInterval,
				AutoPurge:         cfg.Watch.AutoPurge,
			}, logger, broker.PublishNoteEvent)
			if err != nil {
				logger.Error("watcher stopped", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	if snap, ok := stack.Vectors.(snapshotter); ok {
		g.Go(func() error {
			flushSnapshots(gCtx, snap, logger)
			return nil
		})
	}

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group so the watcher and flusher stop with the
// HTTP server.
var errShutdown = errors.New("shutdown")

func flushSnapshots(ctx context.Context, snap snapshotter, logger *slog.Logger) {
	ticker := time.NewTicker(snapshotInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := snap.Save(); err != nil {
				logger.Error("vector snapshot failed", slog.String("error", err.Error()))
			}
		}
	}
}

// RunMCP serves the MCP tools over stdin/stdout until the client closes the
// stream. Logs go to stderr.
func RunMCP(ctx context.Context, opts ...Option) error {
	opts = append(opts, WithLogOutput(os.Stderr))
	stack, err := Open(ctx, opts...)
	if err != nil {
		return err
	}
	defer func() {
		if err := stack.Close(); err != nil {
			stack.Logger.Error("close stores failed", slog.String("error", err.Error()))
		}
	}()

	cfg := stack.Config
	logger := stack.Logger

	bgCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gCtx := errgroup.WithContext(bgCtx)

	if cfg.Sync.OnStart {
		g.Go(func() error {
			res, err := stack.Pipeline.SyncAll(gCtx)
			if err != nil {
				logger.Warn("initial sync failed", slog.String("error", err.Error()))
				return nil
			}
			logger.Info("initial sync finished", slog.String("result", res.Message()))
			return nil
		})
	}
	if cfg.Watch.Enabled {
		g.Go(func() error {
			err := index.Watch(gCtx, stack.Pipeline, stack.Reconciler, stack.Vault, index.WatchConfig{
				Debounce:          cfg.Watch.Debounce,
				ReconcileInterval: cfg.Watch.ReconcileInterval,
				AutoPurge:         cfg.Watch.AutoPurge,
			}, logger, nil)
			if err != nil {
				logger.Error("watcher stopped", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	srv := mcpserver.New(stack.Service, logger)
	logger.Info("MCP server listening on stdio")
	serveErr := srv.ServeStdio()

	cancel()
	_ = g.Wait()
	if serveErr != nil {
		return fmt.Errorf("mcp server: %w", serveErr)
	}
	return nil
}
