package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"myfinance/internal/core"
	"myfinance/internal/reports"
	"myfinance/internal/storage"
)

type staticRates struct{ table core.RateTable }

func (s staticRates) CurrentRates() core.RateTable { return s.table.Clone() }

type recordingPublisher struct {
	mu     sync.Mutex
	events []core.TransactionEvent
	err    error
}

func (p *recordingPublisher) PublishTransactionEvent(_ context.Context, e core.TransactionEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

var testNow = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

func newService(t *testing.T, kv storage.KV, opts Options) *Service {
	t.Helper()
	if opts.Now == nil {
		opts.Now = func() time.Time { return testNow }
	}
	s, err := New(context.Background(), kv, opts)
	require.NoError(t, err)
	return s
}

func TestNewSeedsDefaultCategories(t *testing.T) {
	kv := storage.NewMemoryKV()
	s := newService(t, kv, Options{})

	assert.Len(t, s.Categories(), 12)
	assert.Equal(t, core.UAH, s.PrimaryCurrency())
	assert.Equal(t, core.USD, s.SecondaryCurrency())
	assert.Empty(t, s.Transactions())

	raw, ok, err := kv.Get(context.Background(), storage.KeyCategories)
	require.NoError(t, err)
	require.True(t, ok, "seeded categories are persisted")
	assert.Contains(t, string(raw), `"id":"salary"`)
}

func TestNewUsesSeedCategories(t *testing.T) {
	seed := []core.Category{{ID: "books", Name: "Books", Color: "#000000", Icon: "📚"}}
	s := newService(t, storage.NewMemoryKV(), Options{SeedCategories: seed})
	assert.Equal(t, seed, s.Categories())
}

func TestNewToleratesCorruptSlots(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryKV()
	require.NoError(t, kv.Set(ctx, storage.KeyTransactions, []byte(`not json`)))
	require.NoError(t, kv.Set(ctx, storage.KeyCategories, []byte(`{"oops":true}`)))
	require.NoError(t, kv.Set(ctx, storage.KeyPrimaryCurrency, []byte(`GBP`)))

	s := newService(t, kv, Options{})
	assert.Empty(t, s.Transactions())
	assert.Empty(t, s.Categories())
	assert.Equal(t, core.UAH, s.PrimaryCurrency())
}

func TestNewSkipsUnreadableTransactions(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryKV()
	require.NoError(t, kv.Set(ctx, storage.KeyTransactions, []byte(`[
		{"id":"tx-1","type":"income","amount":10,"currency":"USD","categoryId":"salary","date":"2024-01-02","usdValueAtEntry":10,"exchangeRatesAtEntry":{"USD":1}},
		{"id":"tx-2","type":"expense","amount":5,"currency":"USD","date":"yesterday"}
	]`)))

	s := newService(t, kv, Options{})
	txs := s.Transactions()
	require.Len(t, txs, 1)
	assert.Equal(t, "tx-1", txs[0].ID)
}

func TestAddTransactionStampsSnapshot(t *testing.T) {
	ctx := context.Background()
	rates := core.RateTable{core.USD: 1, core.EUR: 0.9, core.UAH: 40}
	pub := &recordingPublisher{}
	s := newService(t, storage.NewMemoryKV(), Options{Rates: staticRates{rates}, Publisher: pub})

	tx, err := s.AddTransaction(ctx, NewTransaction{
		Type:       core.Expense,
		Amount:     400,
		Currency:   core.UAH,
		Note:       "  groceries ",
		CategoryID: "food",
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(tx.ID, "tx-"))
	assert.Equal(t, "groceries", tx.Note)
	assert.Equal(t, "2024-03-15", tx.Date.String(), "date defaults to today")
	assert.InDelta(t, 10, tx.USDValueAtEntry, 1e-9)
	assert.Equal(t, rates, tx.ExchangeRatesAtEntry)

	require.Len(t, pub.events, 1)
	assert.Equal(t, core.OpCreated, pub.events[0].Op)
	assert.Equal(t, "Food", pub.events[0].CategoryName)
}

func TestAddTransactionWithoutRatesUsesIdentity(t *testing.T) {
	s := newService(t, storage.NewMemoryKV(), Options{Rates: staticRates{}})

	tx, err := s.AddTransaction(context.Background(), NewTransaction{
		Type: core.Income, Amount: 250, Currency: core.EUR, CategoryID: "salary",
	})
	require.NoError(t, err)
	assert.Equal(t, 250.0, tx.USDValueAtEntry)
	assert.Equal(t, core.IdentityRates(), tx.ExchangeRatesAtEntry)
}

func TestAddTransactionValidation(t *testing.T) {
	s := newService(t, storage.NewMemoryKV(), Options{})
	cases := []struct {
		name string
		in   NewTransaction
		want error
	}{
		{"zero amount", NewTransaction{Type: core.Expense, Amount: 0, Currency: core.USD}, core.ErrInvalidAmount},
		{"negative amount", NewTransaction{Type: core.Expense, Amount: -1, Currency: core.USD}, core.ErrInvalidAmount},
		{"bad currency", NewTransaction{Type: core.Expense, Amount: 1, Currency: "GBP"}, core.ErrUnknownCurrency},
		{"bad type", NewTransaction{Type: "gift", Amount: 1, Currency: core.USD}, core.ErrInvalidType},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.AddTransaction(context.Background(), tc.in)
			assert.ErrorIs(t, err, tc.want)
		})
	}
	assert.Empty(t, s.Transactions())
}

func TestAddTransactionRejectsOverflowingUSDValue(t *testing.T) {
	kv := storage.NewMemoryKV()
	s := newService(t, kv, Options{Rates: staticRates{table: core.FallbackRates()}})

	_, err := s.AddTransaction(context.Background(), NewTransaction{
		Type: core.Expense, Amount: 1.7e308, Currency: core.EUR, CategoryID: "food",
	})
	assert.ErrorIs(t, err, core.ErrInvalidAmount)
	assert.Empty(t, s.Transactions())

	_, ok, err := kv.Get(context.Background(), storage.KeyTransactions)
	require.NoError(t, err)
	assert.False(t, ok, "nothing is persisted")
}

func TestTransactionsPrependedAndSortedByDate(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryKV()
	s := newService(t, kv, Options{})

	add := func(date core.Date, note string) {
		_, err := s.AddTransaction(ctx, NewTransaction{Type: core.Expense, Amount: 1, Currency: core.USD, Date: date, Note: note})
		require.NoError(t, err)
	}
	add(core.NewDate(2024, 1, 10), "old")
	add(core.NewDate(2024, 2, 1), "new")
	add(core.NewDate(2024, 1, 10), "old-later")

	var stored []core.Transaction
	raw, _, _ := kv.Get(ctx, storage.KeyTransactions)
	require.NoError(t, json.Unmarshal(raw, &stored))
	assert.Equal(t, "old-later", stored[0].Note, "new entries are prepended")

	notes := []string{}
	for _, tx := range s.Transactions() {
		notes = append(notes, tx.Note)
	}
	assert.Equal(t, []string{"new", "old-later", "old"}, notes)
}

func TestSetTransactionTypeKeepsSnapshot(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{}
	s := newService(t, storage.NewMemoryKV(), Options{
		Rates:     staticRates{core.RateTable{core.USD: 1, core.EUR: 0.9, core.UAH: 40}},
		Publisher: pub,
	})
	tx, err := s.AddTransaction(ctx, NewTransaction{Type: core.Expense, Amount: 90, Currency: core.EUR})
	require.NoError(t, err)

	updated, err := s.SetTransactionType(ctx, tx.ID, core.Income)
	require.NoError(t, err)
	assert.Equal(t, core.Income, updated.Type)
	assert.Equal(t, tx.USDValueAtEntry, updated.USDValueAtEntry)
	assert.Equal(t, tx.ExchangeRatesAtEntry, updated.ExchangeRatesAtEntry)

	rev := s.Revision()
	_, err = s.SetTransactionType(ctx, tx.ID, core.Income)
	require.NoError(t, err)
	assert.Equal(t, rev, s.Revision(), "same type is a no-op")

	_, err = s.SetTransactionType(ctx, "tx-missing", core.Income)
	assert.ErrorIs(t, err, core.ErrNotFound)

	require.Len(t, pub.events, 2)
	assert.Equal(t, core.OpRetyped, pub.events[1].Op)
}

func TestDeleteTransaction(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{err: errors.New("broker down")}
	s := newService(t, storage.NewMemoryKV(), Options{Publisher: pub})
	tx, err := s.AddTransaction(ctx, NewTransaction{Type: core.Expense, Amount: 1, Currency: core.USD})
	require.NoError(t, err, "publish failures do not fail the mutation")

	require.NoError(t, s.DeleteTransaction(ctx, tx.ID))
	_, err = s.Transaction(tx.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.ErrorIs(t, s.DeleteTransaction(ctx, tx.ID), core.ErrNotFound)
	assert.Equal(t, core.OpDeleted, pub.events[len(pub.events)-1].Op)
}

func TestCategoryLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newService(t, storage.NewMemoryKV(), Options{})

	c, err := s.AddCategory(ctx, CategoryInput{Name: " Books "})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(c.ID, "cat-"))
	assert.Equal(t, "Books", c.Name)
	assert.Equal(t, core.DefaultCategoryColor, c.Color)
	assert.Equal(t, core.DefaultCategoryIcon, c.Icon)
	assert.Equal(t, c, s.Categories()[0], "new categories are prepended")

	_, err = s.AddCategory(ctx, CategoryInput{Name: "   "})
	assert.ErrorIs(t, err, core.ErrEmptyName)

	updated, err := s.UpdateCategory(ctx, c.ID, CategoryInput{Name: "Reading", Icon: "📚"})
	require.NoError(t, err)
	assert.Equal(t, "Reading", updated.Name)
	assert.Equal(t, "📚", updated.Icon)
	assert.Equal(t, core.DefaultCategoryColor, updated.Color)

	_, err = s.UpdateCategory(ctx, "cat-missing", CategoryInput{Name: "x"})
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestDeleteCategoryDoesNotCascade(t *testing.T) {
	ctx := context.Background()
	s := newService(t, storage.NewMemoryKV(), Options{})
	tx, err := s.AddTransaction(ctx, NewTransaction{Type: core.Expense, Amount: 5, Currency: core.USD, CategoryID: "food"})
	require.NoError(t, err)

	require.NoError(t, s.DeleteCategory(ctx, "food"))
	assert.ErrorIs(t, s.DeleteCategory(ctx, "food"), core.ErrNotFound)

	got, err := s.Transaction(tx.ID)
	require.NoError(t, err)
	assert.Equal(t, "food", got.CategoryID)
	assert.Equal(t, core.UncategorizedName, s.CategoryName("food"))
}

func TestPrimaryCurrencyPersists(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryKV()
	s := newService(t, kv, Options{})

	require.NoError(t, s.SetPrimaryCurrency(ctx, core.EUR))
	assert.ErrorIs(t, s.SetPrimaryCurrency(ctx, "GBP"), core.ErrUnknownCurrency)
	assert.Equal(t, core.UAH, s.SecondaryCurrency())

	reloaded := newService(t, kv, Options{})
	assert.Equal(t, core.EUR, reloaded.PrimaryCurrency())
}

func TestLedgerSurvivesReload(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryKV()
	s := newService(t, kv, Options{Rates: staticRates{core.FallbackRates()}})
	tx, err := s.AddTransaction(ctx, NewTransaction{Type: core.Income, Amount: 371, Currency: core.UAH, CategoryID: "salary"})
	require.NoError(t, err)

	reloaded := newService(t, kv, Options{})
	got, err := reloaded.Transaction(tx.ID)
	require.NoError(t, err)
	assert.Equal(t, tx, got)
}

func TestTransactionsByCategoryAndReportInput(t *testing.T) {
	ctx := context.Background()
	s := newService(t, storage.NewMemoryKV(), Options{Rates: staticRates{core.FallbackRates()}})
	for _, in := range []NewTransaction{
		{Type: core.Expense, Amount: 10, Currency: core.USD, CategoryID: "food", Date: core.NewDate(2024, 3, 2)},
		{Type: core.Expense, Amount: 20, Currency: core.USD, CategoryID: "food", Date: core.NewDate(2024, 3, 9)},
		{Type: core.Expense, Amount: 30, Currency: core.USD, CategoryID: "food", Date: core.NewDate(2024, 2, 9)},
		{Type: core.Income, Amount: 40, Currency: core.USD, CategoryID: "food", Date: core.NewDate(2024, 3, 3)},
	} {
		_, err := s.AddTransaction(ctx, in)
		require.NoError(t, err)
	}

	got := s.TransactionsByCategory("food", core.Expense, reports.Month, testNow)
	require.Len(t, got, 2)
	assert.Equal(t, 20.0, got[0].Amount)
	assert.Equal(t, 10.0, got[1].Amount)

	in := s.ReportInput()
	assert.Len(t, in.Transactions, 4)
	assert.Len(t, in.Categories, 12)
	assert.Equal(t, core.UAH, in.Primary)
	assert.Equal(t, core.FallbackRates(), in.Live)
}
