package storage

import (
	"context"
	"errors"
)

// Slot keys shared by every backend.
const (
	KeyExchangeRates   = "my-finance-exchange-rates"
	KeyTransactions    = "my-finance-transactions"
	KeyPrimaryCurrency = "my-finance-primary-currency"
	KeyCategories      = "my-finance-categories"

	// KeySheetsMirror holds the worker's transaction id to sheet row map.
	KeySheetsMirror = "my-finance-sheets-mirror"
)

var ErrClosed = errors.New("storage closed")

// KV is a string-keyed slot store. Each key holds one serialized value
// that is overwritten as a whole on every Set.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}
