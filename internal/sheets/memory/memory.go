package memory

import (
	"context"
	"fmt"
	"sync"

	"myfinance/internal/core"
	ports "myfinance/internal/sheets"
)

// Row is one mirrored transaction as the store holds it.
type Row struct {
	Transaction  core.Transaction
	CategoryName string
	Status       string
}

// Store is an in-process TransactionWriter used when no spreadsheet is
// configured and in tests.
type Store struct {
	mu   sync.Mutex
	rows []Row
}

var _ ports.TransactionWriter = (*Store)(nil)

func New() *Store {
	return &Store{}
}

// AppendTransaction stores the row and returns a synthetic row reference.
func (s *Store) AppendTransaction(_ context.Context, tx core.Transaction, categoryName string) (string, error) {
	if err := tx.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, Row{Transaction: tx, CategoryName: categoryName, Status: ports.StatusActive})
	return fmt.Sprintf("mem:%d", len(s.rows)), nil
}

func (s *Store) MarkDeleted(_ context.Context, tx core.Transaction) error {
	return s.update(tx.ID, func(r *Row) { r.Status = ports.StatusDeleted })
}

func (s *Store) UpdateType(_ context.Context, tx core.Transaction) error {
	return s.update(tx.ID, func(r *Row) { r.Transaction.Type = tx.Type })
}

func (s *Store) update(id string, fn func(*Row)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.rows {
		if s.rows[i].Transaction.ID == id {
			fn(&s.rows[i])
			return nil
		}
	}
	return fmt.Errorf("%s: %w", id, ports.ErrRowNotFound)
}

// Rows returns a copy of the stored rows in append order.
func (s *Store) Rows() []Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Row(nil), s.rows...)
}
