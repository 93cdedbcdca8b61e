package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"myfinance/internal/amqp"
	"myfinance/internal/cli"
	apphttp "myfinance/internal/http"
	"myfinance/internal/ledger"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	store, err := cli.OpenStorage(ctx, logger, cfg)
	if err != nil {
		logger.Error("Failed to open storage", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer func() {
		if err := store.Cleanup(); err != nil {
			logger.Error("Failed to close storage", "error", err)
		}
	}()

	seed, err := cli.SeedCategories(cfg)
	if err != nil {
		logger.Error("Failed to load category seed", "error", err)
		os.Exit(1)
	}

	refresher := cli.NewRefresher(cfg, store.KV, logger)

	opts := ledger.Options{
		Rates:          refresher,
		SeedCategories: seed,
		Logger:         logger,
	}
	if cfg.AMQPEnabled() {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			// The ledger works without events; the sheets mirror just falls behind.
			logger.Warn("AMQP unavailable, ledger events will not be published", "error", err)
		} else {
			defer client.Close()
			opts.Publisher = client
			logger.Info("Publishing ledger events", "exchange", cfg.AMQPExchange)
		}
	}

	l, err := ledger.New(ctx, store.KV, opts)
	if err != nil {
		logger.Error("Failed to load ledger", "error", err)
		os.Exit(1)
	}

	srv := apphttp.NewServer(apphttp.Options{
		Addr:           ":" + cfg.Port,
		Ledger:         l,
		Rates:          refresher,
		Logger:         logger,
		StatsCacheSize: cfg.StatsCacheSize,
	})

	if err := refresher.Start(ctx); err != nil {
		logger.Error("Failed to start rates refresher", "error", err)
		os.Exit(1)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting myfinance server", "port", cfg.Port, "backend", cfg.DataBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		return refresher.Stop(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
