// Package cmd provides the myfinance-cli commands.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"myfinance/internal/backend"
	"myfinance/internal/cli"
	"myfinance/internal/config"
	"myfinance/internal/core"
	applog "myfinance/internal/log"
	"myfinance/internal/rates"
)

var (
	envFile string
	debug   bool
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "myfinance-cli",
	Short: "Currency conversion and ledger reports from the command line",
	Long: `myfinance-cli works on the same storage as the myfinance server.

Example:
  myfinance-cli convert 100 USD UAH
  myfinance-cli rates --refresh
  myfinance-cli format 1234.5 EUR
  myfinance-cli stats --period month --date 2026-10-01`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelWarn
		if debug {
			level = slog.LevelDebug
		}
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})).
			With(applog.FieldComponent, applog.ComponentCLI)
		slog.SetDefault(logger)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env", "", "env file to load (default is .env)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(convertCmd)
	rootCmd.AddCommand(ratesCmd)
	rootCmd.AddCommand(formatCmd)
	rootCmd.AddCommand(statsCmd)
}

// environment is the storage and configuration a command runs against.
type environment struct {
	cfg    *config.Config
	store  *backend.BackendResult
	logger *slog.Logger
}

func openEnvironment(ctx context.Context) (*environment, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("load env file: %w", err)
		}
	} else {
		cli.LoadEnvFile()
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := slog.Default()
	store, err := cli.OpenStorage(ctx, logger, cfg)
	if err != nil {
		return nil, err
	}
	return &environment{cfg: cfg, store: store, logger: logger}, nil
}

func (e *environment) Close() {
	if err := e.store.Cleanup(); err != nil {
		e.logger.Error("Failed to close storage", "error", err)
	}
}

// rateTable returns the persisted table, fetching one when nothing is
// cached or refresh is set.
func (e *environment) rateTable(ctx context.Context, refresh bool) (rateInfo, error) {
	if !refresh {
		if entry, ok := rates.NewKVStore(e.store.KV, e.logger).Load(ctx); ok {
			return rateInfo{Rates: entry.Rates, Outcome: rates.OutcomeCached, UpdatedAt: entry.Timestamp}, nil
		}
	}
	r := cli.NewRefresher(e.cfg, e.store.KV, e.logger)
	outcome := r.Refresh(ctx)
	snap := r.Snapshot()
	if !snap.Warm() {
		return rateInfo{Outcome: outcome}, fmt.Errorf("no exchange rates available")
	}
	return rateInfo{Rates: snap.Rates, Outcome: outcome, UpdatedAt: snap.LastUpdated}, nil
}

type rateInfo struct {
	Rates     core.RateTable
	Outcome   rates.Outcome
	UpdatedAt time.Time
}
