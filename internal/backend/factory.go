package backend

import (
	"context"
	"fmt"
	"log/slog"

	applog "myfinance/internal/log"
	"myfinance/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger.With(applog.FieldComponent, applog.ComponentBackend),
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLiteBackend:
		kv, err := storage.NewSQLiteKV(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite storage: %w", err)
		}
		f.logger.InfoContext(ctx, "Initialized SQLite backend", "db_path", config.SQLiteDBPath)
		return &BackendResult{KV: kv, Cleanup: kv.Close}, nil

	case BoltBackend:
		kv, err := storage.NewBoltKV(config.BoltDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize bolt storage: %w", err)
		}
		f.logger.InfoContext(ctx, "Initialized bolt backend", "db_path", config.BoltDBPath)
		return &BackendResult{KV: kv, Cleanup: kv.Close}, nil

	case MemoryBackend:
		kv := storage.NewMemoryKV()
		f.logger.InfoContext(ctx, "Initialized memory backend")
		return &BackendResult{KV: kv, Cleanup: kv.Close}, nil

	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}
