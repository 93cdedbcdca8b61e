package main

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"myfinance/internal/amqp"
	"myfinance/internal/cli"
	"myfinance/internal/config"
	"myfinance/internal/sheets"
	gsheet "myfinance/internal/sheets/google"
	mem "myfinance/internal/sheets/memory"
	"myfinance/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	logger.Info("Starting myfinance-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if !cfg.AMQPEnabled() {
		logger.Error("AMQP_URL is required for the sheets worker")
		os.Exit(1)
	}

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	store, err := cli.OpenStorage(ctx, logger, cfg)
	if err != nil {
		logger.Error("Failed to open storage", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer store.Cleanup()

	writer, err := newWriter(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", "error", err)
		os.Exit(1)
	}

	mirror, err := worker.NewSheetsMirror(ctx, writer, store.KV, logger)
	if err != nil {
		logger.Error("Failed to load mirror state", "error", err)
		os.Exit(1)
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer client.Close()

	if err := client.ConsumeTransactionEvents(ctx, mirror.HandleEvent); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", "error", err)
		os.Exit(1)
	}
	logger.Info("Worker stopped gracefully", "mirrored", mirror.Synced())
}

// newWriter returns the Google Sheets client, or an in-memory sheet when no
// spreadsheet is configured.
func newWriter(ctx context.Context, cfg *config.Config, logger *slog.Logger) (sheets.TransactionWriter, error) {
	if !cfg.SheetsEnabled() {
		logger.Info("Google Sheets disabled - mirroring into memory")
		return mem.New(), nil
	}
	client, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		SheetName:       cfg.GoogleSheetName,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
		Logger:          logger,
	})
	if err != nil {
		return nil, err
	}
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	return client, nil
}
