// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/mindmaps/internal/account"
	"github.com/starford/mindmaps/internal/api"
	"github.com/starford/mindmaps/internal/mcpserver"
	"github.com/starford/mindmaps/internal/mindmap"
	"github.com/starford/mindmaps/internal/sse"
	"github.com/starford/mindmaps/internal/storage"
	"github.com/starford/mindmaps/internal/templates"
)

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := newApplication(opts)
	if app.config == nil {
		return fmt.Errorf("config is required")
	}
	cfg := app.config

	// Initialize structured JSON logger.
	logger := newLogger(cfg, app.stdout)
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("templates_dir", cfg.Templates.Dir),
		slog.String("log_level", cfg.App.LogLevel.String()))

	db, err := storage.Open(cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	defer db.Close()

	dir, err := templates.NewDir(cfg.Templates.Dir)
	if err != nil {
		return fmt.Errorf("init templates: %w", err)
	}

	// Run initial template sync.
	if res, err := templates.Sync(ctx, db, dir, logger); err != nil {
		logger.Warn("initial template sync failed", slog.String("error", err.Error()))
	} else {
		logger.Info("Templates synced",
			slog.Int("upserted", res.Upserted),
			slog.Int("removed", res.Removed),
			slog.Int("failed", res.Failed))
	}

	// SSE broker.
	broker := sse.NewBroker(cfg.Events.GalleryThrottle, cfg.App.HTTP.CORSOrigin)
	defer broker.Close()

	maps := mindmap.NewService(db, mindmap.WithNotifier(broker))
	accounts := account.NewService(db,
		account.WithTokenTTL(cfg.Auth.TokenTTL),
		account.WithBcryptCost(cfg.Auth.BcryptCost))

	apiRouter := api.NewRouter(api.Deps{
		MindMaps:       maps,
		Accounts:       accounts,
		Events:         broker,
		RequestTimeout: cfg.App.HTTP.RequestTimeout,
	})

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(api.CORS(cfg.App.HTTP.CORSOrigin))

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := db.Ping(r.Context()); err != nil {
			logger.Warn("readiness check failed", slog.String("error", err.Error()))
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	// Event streams only end when the broker closes their channels.
	httpServer.RegisterOnShutdown(broker.Close)

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Start template watcher with SSE callback.
	if cfg.Templates.Watch {
		g.Go(func() error {
			err := templates.Watch(gCtx, db, dir, templates.DefaultDebounce, logger, func(res templates.Result) {
				broker.PublishTemplatesUpdated(res.Changed())
			})
			if err != nil {
				logger.Warn("template watcher failed", slog.String("error", err.Error()))
			}
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

// errShutdown cancels the errgroup context once the server has stopped so
// the watcher exits too.
var errShutdown = errors.New("shutdown")

// RunMCP serves the MCP tools over stdio acting as the configured user.
// Logs go to stderr because stdout carries the protocol.
func RunMCP(ctx context.Context, opts ...Option) error {
	app := newApplication(opts)
	if app.config == nil {
		return fmt.Errorf("config is required")
	}
	cfg := app.config
	if err := cfg.MCP.Validate(); err != nil {
		return fmt.Errorf("mcp config: %w", err)
	}

	logger := newLogger(cfg, os.Stderr)
	slog.SetDefault(logger)

	db, err := storage.Open(cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	defer db.Close()

	accounts := account.NewService(db)
	user, err := accounts.Lookup(ctx, cfg.MCP.User)
	if err != nil {
		return fmt.Errorf("mcp user %q: %w", cfg.MCP.User, err)
	}

	srv, err := mcpserver.New(mindmap.NewService(db), user.ID)
	if err != nil {
		return err
	}
	logger.Info("MCP server starting", slog.String("user", user.Username))
	if err := srv.Serve(ctx, app.stdin, app.stdout); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}

// Seed writes the built-in templates into the templates directory, keeping
// files that already exist, and syncs the library once.
func Seed(ctx context.Context, opts ...Option) error {
	app := newApplication(opts)
	if app.config == nil {
		return fmt.Errorf("config is required")
	}
	cfg := app.config

	logger := newLogger(cfg, app.stdout)

	db, err := storage.Open(cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	defer db.Close()

	dir, err := templates.NewDir(cfg.Templates.Dir)
	if err != nil {
		return fmt.Errorf("init templates: %w", err)
	}
	written, err := dir.WriteDefaults()
	if err != nil {
		return fmt.Errorf("write default templates: %w", err)
	}
	res, err := templates.Sync(ctx, db, dir, logger)
	if err != nil {
		return fmt.Errorf("sync templates: %w", err)
	}
	logger.Info("Templates seeded",
		slog.Int("written", len(written)),
		slog.Int("upserted", res.Upserted),
		slog.Int("removed", res.Removed),
		slog.Int("failed", res.Failed))
	return nil
}

func newLogger(cfg *Config, w io.Writer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
}
