package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

// DateLayout is the calendar date format used for transaction dates.
const DateLayout = "2006-01-02"

// UncategorizedName is shown for transactions whose category no longer exists.
const UncategorizedName = "Uncategorized"

const (
	DefaultCategoryColor = "#7c3aed"
	DefaultCategoryIcon  = "🏷️"
)

type (
	TransactionType string

	// Date is a calendar day in UTC, serialized as "YYYY-MM-DD".
	Date struct {
		time.Time
	}

	Transaction struct {
		ID                   string          `json:"id"`
		Type                 TransactionType `json:"type"`
		Amount               float64         `json:"amount"`
		Currency             Currency        `json:"currency"`
		Note                 string          `json:"note"`
		CategoryID           string          `json:"categoryId"`
		Date                 Date            `json:"date"`
		USDValueAtEntry      float64         `json:"usdValueAtEntry"`
		ExchangeRatesAtEntry RateTable       `json:"exchangeRatesAtEntry"`
	}

	Category struct {
		ID    string `json:"id" yaml:"id"`
		Name  string `json:"name" yaml:"name"`
		Color string `json:"color" yaml:"color"`
		Icon  string `json:"icon" yaml:"icon"`
	}
)

var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrUnknownCurrency = errors.New("unknown currency")
	ErrInvalidType     = errors.New("invalid transaction type")
	ErrInvalidDate     = errors.New("invalid date")
	ErrEmptyName       = errors.New("empty category name")
	ErrNotFound        = errors.New("not found")
)

func (t TransactionType) Valid() bool {
	return t == Income || t == Expense
}

// ParseTransactionType accepts "income" or "expense" in any case.
func ParseTransactionType(s string) (TransactionType, error) {
	t := TransactionType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", ErrInvalidType
	}
	return t, nil
}

// Sign returns +1 for income and -1 for expenses.
func (t TransactionType) Sign() float64 {
	if t == Expense {
		return -1
	}
	return 1
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// ParseDate parses "YYYY-MM-DD". Full RFC 3339 timestamps are accepted and
// truncated to their day.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(DateLayout, s); err == nil {
		return DateOf(t), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return DateOf(t), nil
	}
	return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidDate, b)
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (tx Transaction) Validate() error {
	if !tx.Type.Valid() {
		return ErrInvalidType
	}
	if !ValidAmount(tx.Amount) || !Finite(tx.USDValueAtEntry) {
		return ErrInvalidAmount
	}
	if !tx.Currency.Valid() {
		return ErrUnknownCurrency
	}
	if tx.Date.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// SortByDateDesc orders transactions newest first, stable for equal dates.
func SortByDateDesc(txs []Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		return txs[i].Date.After(txs[j].Date.Time)
	})
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	return nil
}

// WithDefaults fills an empty color or icon with the default look.
func (c Category) WithDefaults() Category {
	if strings.TrimSpace(c.Color) == "" {
		c.Color = DefaultCategoryColor
	}
	if strings.TrimSpace(c.Icon) == "" {
		c.Icon = DefaultCategoryIcon
	}
	return c
}

// TransactionEventOp names a ledger mutation published to subscribers.
type TransactionEventOp string

const (
	OpCreated TransactionEventOp = "created"
	OpDeleted TransactionEventOp = "deleted"
	OpRetyped TransactionEventOp = "retyped"
)

// TransactionEvent describes one ledger mutation.
type TransactionEvent struct {
	Op           TransactionEventOp `json:"op"`
	Transaction  Transaction        `json:"transaction"`
	CategoryName string             `json:"category_name"`
	OccurredAt   time.Time          `json:"occurred_at"`
}
