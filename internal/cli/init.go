// Package cli provides common initialization shared by the myfinance
// server, the sheets worker and the command line tool.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"myfinance/internal/backend"
	"myfinance/internal/config"
	"myfinance/internal/core"
	"myfinance/internal/ledger"
	applog "myfinance/internal/log"
	"myfinance/internal/rates"
	"myfinance/internal/storage"
)

// SetupLogger initializes structured logging at the given level and sets
// it as the default logger.
func SetupLogger(level string) *slog.Logger {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: applog.ParseLevel(level),
	}))
	slog.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *slog.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

// OpenStorage opens the configured key-value backend. The caller must run
// the returned Cleanup.
func OpenStorage(ctx context.Context, logger *slog.Logger, cfg *config.Config) (*backend.BackendResult, error) {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	return backend.NewFactory(logger).CreateBackend(ctx, bcfg)
}

// SeedCategories returns the categories a fresh ledger is seeded with:
// the configured YAML file when set, the built-in list otherwise.
func SeedCategories(cfg *config.Config) ([]core.Category, error) {
	if cfg.CategoriesSeedFile == "" {
		return ledger.DefaultCategories(), nil
	}
	cats, err := ledger.LoadCategorySeed(cfg.CategoriesSeedFile)
	if err != nil {
		return nil, fmt.Errorf("load category seed: %w", err)
	}
	return cats, nil
}

// NewRefresher wires the rate provider and the persisted rate cache.
func NewRefresher(cfg *config.Config, kv storage.KV, logger *slog.Logger) *rates.Refresher {
	return rates.NewRefresher(
		rates.NewKVStore(kv, logger),
		rates.NewHTTPFetcher(cfg.RatesURL, cfg.RatesFetchTimeout, logger),
		rates.Config{
			Interval: cfg.RatesRefreshInterval,
			FreshFor: cfg.RatesFreshFor,
			Logger:   logger,
		},
	)
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(logger *slog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}
