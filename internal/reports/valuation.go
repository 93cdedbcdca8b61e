// Package reports derives the overview and statistics views from a
// ledger snapshot. Everything here is pure: callers pass in the data and
// the live rate table.
package reports

import (
	"sort"

	"myfinance/internal/core"
)

// Input is the ledger state a report is computed from.
type Input struct {
	Transactions []core.Transaction
	Categories   []core.Category
	Primary      core.Currency
	// Live is the current rate table, nil while none is known.
	Live core.RateTable
}

// ValueIn expresses the USD value recorded at entry in display currency d.
// The rate snapshot taken at entry is used when it covers d; otherwise
// the live table, and the amount passes through unchanged when neither is
// available.
func ValueIn(tx core.Transaction, d core.Currency, live core.RateTable) float64 {
	if snap := tx.ExchangeRatesAtEntry; snap[d] > 0 {
		return core.Convert(tx.USDValueAtEntry, core.USD, d, snap)
	}
	return core.Convert(tx.USDValueAtEntry, core.USD, d, live)
}

// CategoryTotal is the amount attributed to one category.
type CategoryTotal struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Icon       string  `json:"icon"`
	Color      string  `json:"color"`
	Total      float64 `json:"total"`
	Percentage float64 `json:"percentage"`
}

// categoryTotals sums transactions of type t by category. Transactions
// pointing at a missing category are grouped under "Uncategorized".
// Zero totals are dropped and the rest sorted largest first.
func categoryTotals(txs []core.Transaction, cats []core.Category, t core.TransactionType, d core.Currency, live core.RateTable) []CategoryTotal {
	byID := make(map[string]core.Category, len(cats))
	for _, c := range cats {
		byID[c.ID] = c
	}

	sums := make(map[string]float64)
	var order []string
	var grand float64
	for _, tx := range txs {
		if tx.Type != t {
			continue
		}
		key := tx.CategoryID
		if _, ok := byID[key]; !ok {
			key = ""
		}
		if _, seen := sums[key]; !seen {
			order = append(order, key)
		}
		v := ValueIn(tx, d, live)
		sums[key] += v
		grand += v
	}

	out := make([]CategoryTotal, 0, len(order))
	for _, key := range order {
		total := sums[key]
		if total <= 0 {
			continue
		}
		ct := CategoryTotal{ID: key, Name: core.UncategorizedName, Icon: core.DefaultCategoryIcon, Color: core.DefaultCategoryColor, Total: total}
		if c, ok := byID[key]; ok {
			ct.Name, ct.Icon, ct.Color = c.Name, c.Icon, c.Color
		}
		if grand > 0 {
			ct.Percentage = total / grand * 100
		}
		out = append(out, ct)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Total > out[j].Total })
	return out
}

func sortedByDateDesc(txs []core.Transaction) []core.Transaction {
	out := append([]core.Transaction(nil), txs...)
	core.SortByDateDesc(out)
	return out
}
