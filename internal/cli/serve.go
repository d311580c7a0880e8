package cli

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

	"github.com/spf13/cobra"

	"github.com/Hoarfrost42/Agent-Round/internal/api"
	"github.com/Hoarfrost42/Agent-Round/internal/config"
	"github.com/Hoarfrost42/Agent-Round/internal/provider"
	"github.com/Hoarfrost42/Agent-Round/internal/retry"
	"github.com/Hoarfrost42/Agent-Round/internal/round"
	"github.com/Hoarfrost42/Agent-Round/internal/secret"
	"github.com/Hoarfrost42/Agent-Round/internal/store"
	"github.com/Hoarfrost42/Agent-Round/internal/template"
)

const shutdownGrace = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func runServe() error {
	logger := newLogger()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	var crypto *secret.Crypto
	if key := config.EncryptionKey(); key != "" {
		crypto, err = secret.New(key)
		if err != nil {
			return fmt.Errorf("init secret key: %w", err)
		}
	} else {
		logger.Warn("no encryption key set, provider API keys are stored in plaintext",
			"env", config.EncryptionKeyEnv)
	}

	registry := provider.NewRegistry(cfg.Providers.File, provider.RegistryOptions{
		Crypto:         crypto,
		Logger:         logger,
		RequestTimeout: cfg.RequestTimeout(),
	})
	if err := registry.Load(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := registry.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("provider config watcher stopped", "error", err)
		}
	}()

	orchestrator := round.NewOrchestrator(st, registry, round.Options{
		Retry: retry.Config{
			Attempts:    cfg.Retry.Attempts,
			BackoffBase: cfg.RetryBackoffBase(),
			MaxDelay:    cfg.RetryMaxDelay(),
		},
		ChunkSize:      cfg.Round.ChunkSize,
		TokenDelay:     cfg.TokenDelay(),
		ThoughtFilter:  cfg.ThoughtFilter(),
		TitleMaxLength: cfg.Round.TitleMaxLength,
		ParallelCalls:  cfg.Round.ParallelModelCalls,
	}, logger)

	templates := template.NewStore(cfg.Templates.File)

	server := api.NewServer(st, registry, orchestrator, templates, logger)
	httpServer := &http.Server{
		Addr:    cfg.Server.Listen,
		Handler: server.Routes(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", cfg.Server.Listen)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

func openStore(cfg *config.Config) (store.Store, error) {
	switch cfg.Storage.Backend {
	case "sqlite":
		return store.OpenSQLite(cfg.Storage.Path)
	case "memory":
		return store.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}
