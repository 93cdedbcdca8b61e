package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"myfinance/internal/core"
	applog "myfinance/internal/log"
	"myfinance/internal/sheets"
	"myfinance/internal/storage"
)

// SheetsMirror applies ledger events to a spreadsheet. It remembers which
// transactions it has already appended so redelivered events stay idempotent.
type SheetsMirror struct {
	sheets sheets.TransactionWriter
	kv     storage.KV
	logger *slog.Logger

	mu     sync.Mutex
	synced map[string]string // transaction id -> row reference
}

// NewSheetsMirror loads the sync state from kv. A corrupt state slot starts
// the mirror empty.
func NewSheetsMirror(ctx context.Context, writer sheets.TransactionWriter, kv storage.KV, logger *slog.Logger) (*SheetsMirror, error) {
	if logger == nil {
		logger = slog.Default()
	}
	m := &SheetsMirror{
		sheets: writer,
		kv:     kv,
		logger: logger.With(applog.FieldComponent, applog.ComponentWorker),
		synced: map[string]string{},
	}

	raw, ok, err := kv.Get(ctx, storage.KeySheetsMirror)
	if err != nil {
		return nil, fmt.Errorf("load mirror state: %w", err)
	}
	if ok {
		if err := json.Unmarshal(raw, &m.synced); err != nil || m.synced == nil {
			m.logger.WarnContext(ctx, "Mirror state is corrupt, starting empty", "error", err)
			m.synced = map[string]string{}
		}
	}
	return m, nil
}

// HandleEvent processes a single ledger event. A returned error asks the
// broker to redeliver.
func (m *SheetsMirror) HandleEvent(ctx context.Context, event core.TransactionEvent) error {
	tx := event.Transaction
	m.logger.InfoContext(ctx, "Processing ledger event", "op", event.Op, applog.FieldTransactionID, tx.ID)

	switch event.Op {
	case core.OpCreated:
		return m.appendOnce(ctx, tx, event.CategoryName)

	case core.OpRetyped:
		if !m.isSynced(tx.ID) {
			// The create was never mirrored; the row goes in with its current type.
			return m.appendOnce(ctx, tx, event.CategoryName)
		}
		if err := m.sheets.UpdateType(ctx, tx); err != nil {
			return fmt.Errorf("update type in sheets: %w", err)
		}
		return nil

	case core.OpDeleted:
		if err := m.sheets.MarkDeleted(ctx, tx); err != nil {
			if errors.Is(err, sheets.ErrRowNotFound) {
				m.logger.WarnContext(ctx, "Deleted transaction has no sheet row, skipping",
					applog.FieldTransactionID, tx.ID)
				return nil
			}
			return fmt.Errorf("mark deleted in sheets: %w", err)
		}
		return nil

	default:
		m.logger.WarnContext(ctx, "Ignoring unknown ledger event", "op", event.Op)
		return nil
	}
}

func (m *SheetsMirror) appendOnce(ctx context.Context, tx core.Transaction, categoryName string) error {
	if ref, ok := m.rowRef(tx.ID); ok {
		m.logger.DebugContext(ctx, "Transaction already mirrored",
			applog.FieldTransactionID, tx.ID, applog.FieldSheetsRef, ref)
		return nil
	}

	ref, err := m.sheets.AppendTransaction(ctx, tx, categoryName)
	if err != nil {
		return fmt.Errorf("append to sheets: %w", err)
	}

	// The row exists from here on; a failed state write only risks a duplicate.
	if err := m.markSynced(ctx, tx.ID, ref); err != nil {
		m.logger.ErrorContext(ctx, "Failed to record synced transaction",
			applog.FieldTransactionID, tx.ID, "error", err)
	}

	m.logger.InfoContext(ctx, "Successfully mirrored transaction",
		applog.NewFields().
			WithTransaction(tx.ID, string(tx.Type), tx.Amount, string(tx.Currency), tx.CategoryID).
			ToSlice()...)
	return nil
}

func (m *SheetsMirror) isSynced(id string) bool {
	_, ok := m.rowRef(id)
	return ok
}

func (m *SheetsMirror) rowRef(id string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ref, ok := m.synced[id]
	return ref, ok
}

func (m *SheetsMirror) markSynced(ctx context.Context, id, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.synced[id] = ref
	raw, err := json.Marshal(m.synced)
	if err != nil {
		return err
	}
	return m.kv.Set(ctx, storage.KeySheetsMirror, raw)
}

// Synced returns the number of transactions mirrored so far.
func (m *SheetsMirror) Synced() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.synced)
}
