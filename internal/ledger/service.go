// Package ledger manages the local transaction ledger, the category list
// and the display currency. Every mutation rewrites the affected storage
// slot as a whole.
package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"myfinance/internal/core"
	applog "myfinance/internal/log"
	"myfinance/internal/reports"
	"myfinance/internal/storage"
)

// RateSource provides the live rate table, or nil while none is known.
type RateSource interface {
	CurrentRates() core.RateTable
}

// Publisher receives ledger mutations. Delivery failures are logged and
// never undo the mutation.
type Publisher interface {
	PublishTransactionEvent(ctx context.Context, event core.TransactionEvent) error
}

type NewTransaction struct {
	Type       core.TransactionType
	Amount     float64
	Currency   core.Currency
	Note       string
	CategoryID string
	// Date defaults to today when zero.
	Date core.Date
}

type CategoryInput struct {
	Name  string
	Color string
	Icon  string
}

type Options struct {
	Rates          RateSource
	Publisher      Publisher
	SeedCategories []core.Category
	Logger         *slog.Logger
	Now            func() time.Time
}

type Service struct {
	kv        storage.KV
	rates     RateSource
	publisher Publisher
	logger    *applog.Logger
	now       func() time.Time

	mu           sync.RWMutex
	transactions []core.Transaction
	categories   []core.Category
	primary      core.Currency
	revision     uint64
}

// New loads the ledger from kv. Missing or corrupt slots start empty;
// a missing category slot is seeded and persisted.
func New(ctx context.Context, kv storage.KV, opts Options) (*Service, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	s := &Service{
		kv:        kv,
		rates:     opts.Rates,
		publisher: opts.Publisher,
		logger:    applog.New(applog.Config{Handler: logger.Handler(), Component: applog.ComponentLedger}),
		now:       now,
		primary:   core.UAH,
	}

	txs, err := s.loadTransactions(ctx)
	if err != nil {
		return nil, err
	}
	s.transactions = txs

	cats, found, err := s.loadCategories(ctx)
	if err != nil {
		return nil, err
	}
	if !found {
		seed := opts.SeedCategories
		if len(seed) == 0 {
			seed = DefaultCategories()
		}
		cats = cloneCategories(seed)
		if err := s.persist(ctx, storage.KeyCategories, cats); err != nil {
			return nil, fmt.Errorf("seed categories: %w", err)
		}
		s.logger.InfoContext(ctx, "Seeded default categories", "count", len(cats))
	}
	s.categories = cats

	raw, ok, err := kv.Get(ctx, storage.KeyPrimaryCurrency)
	if err != nil {
		return nil, fmt.Errorf("load primary currency: %w", err)
	}
	if ok {
		s.primary = core.CurrencyOrDefault(string(raw))
	}

	return s, nil
}

func (s *Service) loadTransactions(ctx context.Context) ([]core.Transaction, error) {
	raw, ok, err := s.kv.Get(ctx, storage.KeyTransactions)
	if err != nil {
		return nil, fmt.Errorf("load transactions: %w", err)
	}
	if !ok {
		return []core.Transaction{}, nil
	}

	var records []json.RawMessage
	if err := json.Unmarshal(raw, &records); err != nil {
		s.logger.WarnContext(ctx, "Transactions slot is corrupt, starting empty", "error", err)
		return []core.Transaction{}, nil
	}
	out := make([]core.Transaction, 0, len(records))
	for i, rec := range records {
		var tx core.Transaction
		if err := json.Unmarshal(rec, &tx); err != nil {
			s.logger.WarnContext(ctx, "Skipping unreadable transaction", "index", i, "error", err)
			continue
		}
		out = append(out, tx)
	}
	return out, nil
}

func (s *Service) loadCategories(ctx context.Context) ([]core.Category, bool, error) {
	raw, ok, err := s.kv.Get(ctx, storage.KeyCategories)
	if err != nil {
		return nil, false, fmt.Errorf("load categories: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	var cats []core.Category
	if err := json.Unmarshal(raw, &cats); err != nil || cats == nil {
		s.logger.WarnContext(ctx, "Categories slot is corrupt, starting empty", "error", err)
		return []core.Category{}, true, nil
	}
	return cats, true, nil
}

func (s *Service) persist(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.kv.Set(ctx, key, raw); err != nil {
		return fmt.Errorf("persist %s: %w", key, err)
	}
	return nil
}

func (s *Service) activeRates() core.RateTable {
	if s.rates != nil {
		if table := s.rates.CurrentRates(); table != nil {
			return table
		}
	}
	return core.IdentityRates()
}

// AddTransaction stamps the entry with the active rate table and its USD
// value, then prepends it to the ledger.
func (s *Service) AddTransaction(ctx context.Context, in NewTransaction) (core.Transaction, error) {
	date := in.Date
	if date.IsZero() {
		date = core.DateOf(s.now())
	}
	active := s.activeRates()
	tx := core.Transaction{
		ID:                   "tx-" + uuid.NewString(),
		Type:                 in.Type,
		Amount:               in.Amount,
		Currency:             in.Currency,
		Note:                 strings.TrimSpace(in.Note),
		CategoryID:           in.CategoryID,
		Date:                 date,
		USDValueAtEntry:      core.Convert(in.Amount, in.Currency, core.USD, active),
		ExchangeRatesAtEntry: active,
	}
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}

	s.mu.Lock()
	next := make([]core.Transaction, 0, len(s.transactions)+1)
	next = append(next, tx)
	next = append(next, s.transactions...)
	if err := s.persist(ctx, storage.KeyTransactions, next); err != nil {
		s.mu.Unlock()
		return core.Transaction{}, err
	}
	s.transactions = next
	s.revision++
	categoryName := s.categoryNameLocked(tx.CategoryID)
	s.mu.Unlock()

	applog.NewStructuredLogger(s.logger).
		LogTransactionCreated(ctx, tx.ID, string(tx.Type), tx.Amount, string(tx.Currency), tx.CategoryID)
	s.publish(ctx, core.OpCreated, tx, categoryName)
	return tx, nil
}

// SetTransactionType switches an entry between income and expense. The
// snapshot fields are left untouched.
func (s *Service) SetTransactionType(ctx context.Context, id string, t core.TransactionType) (core.Transaction, error) {
	if !t.Valid() {
		return core.Transaction{}, core.ErrInvalidType
	}

	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
	}
	if s.transactions[idx].Type == t {
		tx := s.transactions[idx]
		s.mu.Unlock()
		return tx, nil
	}

	next := append([]core.Transaction(nil), s.transactions...)
	next[idx].Type = t
	if err := s.persist(ctx, storage.KeyTransactions, next); err != nil {
		s.mu.Unlock()
		return core.Transaction{}, err
	}
	s.transactions = next
	s.revision++
	tx := next[idx]
	categoryName := s.categoryNameLocked(tx.CategoryID)
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "Transaction type changed", applog.FieldTransactionID, id, applog.FieldTxType, t)
	s.publish(ctx, core.OpRetyped, tx, categoryName)
	return tx, nil
}

func (s *Service) DeleteTransaction(ctx context.Context, id string) error {
	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
	}
	removed := s.transactions[idx]
	next := make([]core.Transaction, 0, len(s.transactions)-1)
	next = append(next, s.transactions[:idx]...)
	next = append(next, s.transactions[idx+1:]...)
	if err := s.persist(ctx, storage.KeyTransactions, next); err != nil {
		s.mu.Unlock()
		return err
	}
	s.transactions = next
	s.revision++
	categoryName := s.categoryNameLocked(removed.CategoryID)
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "Transaction deleted", applog.FieldTransactionID, id)
	s.publish(ctx, core.OpDeleted, removed, categoryName)
	return nil
}

func (s *Service) Transaction(id string) (core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := s.indexLocked(id)
	if idx < 0 {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
	}
	return s.transactions[idx], nil
}

// Transactions returns every entry, newest date first. Entries sharing a
// date keep their ledger order.
func (s *Service) Transactions() []core.Transaction {
	s.mu.RLock()
	out := append([]core.Transaction(nil), s.transactions...)
	s.mu.RUnlock()
	core.SortByDateDesc(out)
	return out
}

// TransactionsByCategory lists the entries of one category and type dated
// inside the period containing date, newest first.
func (s *Service) TransactionsByCategory(categoryID string, t core.TransactionType, p reports.Period, date time.Time) []core.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return reports.CategoryTransactions(s.transactions, categoryID, t, p, date)
}

// ReportInput captures the state the overview and statistics are built from.
func (s *Service) ReportInput() reports.Input {
	live := s.LiveRates()
	s.mu.RLock()
	defer s.mu.RUnlock()
	return reports.Input{
		Transactions: append([]core.Transaction(nil), s.transactions...),
		Categories:   cloneCategories(s.categories),
		Primary:      s.primary,
		Live:         live,
	}
}

func (s *Service) indexLocked(id string) int {
	for i := range s.transactions {
		if s.transactions[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Service) publish(ctx context.Context, op core.TransactionEventOp, tx core.Transaction, categoryName string) {
	if s.publisher == nil {
		return
	}
	event := core.TransactionEvent{
		Op:           op,
		Transaction:  tx,
		CategoryName: categoryName,
		OccurredAt:   s.now().UTC(),
	}
	if err := s.publisher.PublishTransactionEvent(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish ledger event",
			"op", op, applog.FieldTransactionID, tx.ID, "error", err)
	}
}

func (s *Service) Categories() []core.Category {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneCategories(s.categories)
}

func (s *Service) Category(id string) (core.Category, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.categories {
		if c.ID == id {
			return c, true
		}
	}
	return core.Category{}, false
}

// CategoryName resolves id to a name, or "Uncategorized" when it no longer exists.
func (s *Service) CategoryName(id string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.categoryNameLocked(id)
}

func (s *Service) categoryNameLocked(id string) string {
	for _, c := range s.categories {
		if c.ID == id {
			return c.Name
		}
	}
	return core.UncategorizedName
}

func (s *Service) AddCategory(ctx context.Context, in CategoryInput) (core.Category, error) {
	c := core.Category{
		ID:    "cat-" + uuid.NewString(),
		Name:  strings.TrimSpace(in.Name),
		Color: strings.TrimSpace(in.Color),
		Icon:  strings.TrimSpace(in.Icon),
	}.WithDefaults()
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	next := make([]core.Category, 0, len(s.categories)+1)
	next = append(next, c)
	next = append(next, s.categories...)
	if err := s.persist(ctx, storage.KeyCategories, next); err != nil {
		return core.Category{}, err
	}
	s.categories = next
	s.revision++
	s.logger.InfoContext(ctx, "Category created", applog.FieldCategoryID, c.ID, "name", c.Name)
	return c, nil
}

// UpdateCategory replaces the name and, when given, the color and icon.
func (s *Service) UpdateCategory(ctx context.Context, id string, in CategoryInput) (core.Category, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return core.Category{}, core.ErrEmptyName
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	idx := -1
	for i := range s.categories {
		if s.categories[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return core.Category{}, fmt.Errorf("category %s: %w", id, core.ErrNotFound)
	}

	next := cloneCategories(s.categories)
	next[idx].Name = name
	if color := strings.TrimSpace(in.Color); color != "" {
		next[idx].Color = color
	}
	if icon := strings.TrimSpace(in.Icon); icon != "" {
		next[idx].Icon = icon
	}
	if err := s.persist(ctx, storage.KeyCategories, next); err != nil {
		return core.Category{}, err
	}
	s.categories = next
	s.revision++
	return next[idx], nil
}

// DeleteCategory removes the category only; transactions keep the dangling id.
func (s *Service) DeleteCategory(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := make([]core.Category, 0, len(s.categories))
	for _, c := range s.categories {
		if c.ID != id {
			next = append(next, c)
		}
	}
	if len(next) == len(s.categories) {
		return fmt.Errorf("category %s: %w", id, core.ErrNotFound)
	}
	if err := s.persist(ctx, storage.KeyCategories, next); err != nil {
		return err
	}
	s.categories = next
	s.revision++
	s.logger.InfoContext(ctx, "Category deleted", applog.FieldCategoryID, id)
	return nil
}

func (s *Service) PrimaryCurrency() core.Currency {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.primary
}

func (s *Service) SecondaryCurrency() core.Currency {
	return core.SecondaryCurrency(s.PrimaryCurrency())
}

func (s *Service) SetPrimaryCurrency(ctx context.Context, c core.Currency) error {
	if !c.Valid() {
		return core.ErrUnknownCurrency
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.kv.Set(ctx, storage.KeyPrimaryCurrency, []byte(c)); err != nil {
		return fmt.Errorf("persist primary currency: %w", err)
	}
	s.primary = c
	s.revision++
	return nil
}

// Revision increases on every successful mutation.
func (s *Service) Revision() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revision
}

// LiveRates exposes the rate source used for stamping, nil while cold.
func (s *Service) LiveRates() core.RateTable {
	if s.rates == nil {
		return nil
	}
	return s.rates.CurrentRates()
}

func cloneCategories(in []core.Category) []core.Category {
	return append([]core.Category{}, in...)
}
