package sheets

import (
	"context"
	"errors"

	"myfinance/internal/core"
)

// Row status values written to the status column.
const (
	StatusActive  = "active"
	StatusDeleted = "deleted"
)

// ErrRowNotFound is returned when no row carries the transaction id.
var ErrRowNotFound = errors.New("sheet row not found")

// Ports for outbound adapters.
type (
	// TransactionWriter mirrors ledger mutations into a spreadsheet. Rows
	// are never removed; deletions flip the status column.
	TransactionWriter interface {
		AppendTransaction(ctx context.Context, tx core.Transaction, categoryName string) (rowRef string, err error)
		MarkDeleted(ctx context.Context, tx core.Transaction) error
		UpdateType(ctx context.Context, tx core.Transaction) error
	}
)
