package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"myfinance/internal/core"
	"myfinance/internal/sheets"
	"myfinance/internal/sheets/memory"
	"myfinance/internal/storage"
)

func event(op core.TransactionEventOp, id string, t core.TransactionType) core.TransactionEvent {
	return core.TransactionEvent{
		Op: op,
		Transaction: core.Transaction{
			ID:       id,
			Type:     t,
			Amount:   10,
			Currency: core.USD,
			Date:     core.NewDate(2024, 5, 1),
		},
		CategoryName: "Food",
	}
}

type failingWriter struct {
	*memory.Store
	err error
}

func (f failingWriter) AppendTransaction(ctx context.Context, tx core.Transaction, name string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.Store.AppendTransaction(ctx, tx, name)
}

func TestSheetsMirrorAppliesEvents(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	m, err := NewSheetsMirror(ctx, store, storage.NewMemoryKV(), nil)
	require.NoError(t, err)

	require.NoError(t, m.HandleEvent(ctx, event(core.OpCreated, "tx-1", core.Expense)))
	require.NoError(t, m.HandleEvent(ctx, event(core.OpCreated, "tx-1", core.Expense)), "redelivery")
	require.NoError(t, m.HandleEvent(ctx, event(core.OpRetyped, "tx-1", core.Income)))
	require.NoError(t, m.HandleEvent(ctx, event(core.OpCreated, "tx-2", core.Expense)))
	require.NoError(t, m.HandleEvent(ctx, event(core.OpDeleted, "tx-2", core.Expense)))

	rows := store.Rows()
	require.Len(t, rows, 2)
	assert.Equal(t, core.Income, rows[0].Transaction.Type)
	assert.Equal(t, "Food", rows[0].CategoryName)
	assert.Equal(t, sheets.StatusDeleted, rows[1].Status)
	assert.Equal(t, 2, m.Synced())
}

func TestSheetsMirrorRetypeWithoutRowAppends(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	m, err := NewSheetsMirror(ctx, store, storage.NewMemoryKV(), nil)
	require.NoError(t, err)

	require.NoError(t, m.HandleEvent(ctx, event(core.OpRetyped, "tx-9", core.Income)))
	require.Len(t, store.Rows(), 1)
	assert.Equal(t, core.Income, store.Rows()[0].Transaction.Type)
}

func TestSheetsMirrorDeleteWithoutRowIsAcked(t *testing.T) {
	ctx := context.Background()
	m, err := NewSheetsMirror(ctx, memory.New(), storage.NewMemoryKV(), nil)
	require.NoError(t, err)
	assert.NoError(t, m.HandleEvent(ctx, event(core.OpDeleted, "tx-404", core.Expense)))
}

func TestSheetsMirrorAppendFailureRequeues(t *testing.T) {
	ctx := context.Background()
	writer := failingWriter{Store: memory.New(), err: errors.New("quota exceeded")}
	m, err := NewSheetsMirror(ctx, writer, storage.NewMemoryKV(), nil)
	require.NoError(t, err)

	err = m.HandleEvent(ctx, event(core.OpCreated, "tx-1", core.Expense))
	assert.ErrorContains(t, err, "quota exceeded")
	assert.Equal(t, 0, m.Synced())
}

func TestSheetsMirrorStateSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryKV()
	store := memory.New()

	m, err := NewSheetsMirror(ctx, store, kv, nil)
	require.NoError(t, err)
	require.NoError(t, m.HandleEvent(ctx, event(core.OpCreated, "tx-1", core.Expense)))

	restarted, err := NewSheetsMirror(ctx, store, kv, nil)
	require.NoError(t, err)
	require.NoError(t, restarted.HandleEvent(ctx, event(core.OpCreated, "tx-1", core.Expense)))
	assert.Len(t, store.Rows(), 1)
}

func TestSheetsMirrorCorruptState(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryKV()
	require.NoError(t, kv.Set(ctx, storage.KeySheetsMirror, []byte("{")))

	m, err := NewSheetsMirror(ctx, memory.New(), kv, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, m.Synced())
}
