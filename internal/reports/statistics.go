package reports

import (
	"time"

	"myfinance/internal/core"
)

type Query struct {
	Period     Period
	Date       time.Time
	Comparison Comparison
	// Today bounds forward navigation; defaults to Date.
	Today time.Time
}

type PeriodComparison struct {
	IncomeChange  float64 `json:"incomeChange"`
	ExpenseChange float64 `json:"expenseChange"`
	BalanceChange float64 `json:"balanceChange"`
	Label         string  `json:"label"`
	Range         Range   `json:"range"`
}

type Statistics struct {
	Period           Period           `json:"period"`
	Range            Range            `json:"range"`
	Currency         core.Currency    `json:"currency"`
	TotalIncome      float64          `json:"totalIncome"`
	TotalExpenses    float64          `json:"totalExpenses"`
	Balance          float64          `json:"balance"`
	CategoryIncome   []CategoryTotal  `json:"categoryIncome"`
	CategoryExpenses []CategoryTotal  `json:"categoryExpenses"`
	Comparison       PeriodComparison `json:"comparison"`
	// HasNext is false when the following period starts after Today.
	HasNext bool `json:"hasNext"`
	// PrevDate and NextDate navigate to the neighbouring periods; NextDate
	// is empty when HasNext is false.
	PrevDate core.Date `json:"prevDate"`
	NextDate core.Date `json:"nextDate"`
}

func BuildStatistics(in Input, q Query) Statistics {
	if q.Date.IsZero() {
		q.Date = time.Now().UTC()
	}
	if q.Today.IsZero() {
		q.Today = q.Date
	}
	primary := in.Primary
	if !primary.Valid() {
		primary = core.UAH
	}

	current := PeriodRange(q.Period, q.Date)
	inPeriod := FilterRange(in.Transactions, current)
	income, expenses := totals(inPeriod, primary, in.Live)

	prevRange, label := ComparisonRange(q.Period, q.Comparison, q.Date)
	prevIncome, prevExpenses := totals(FilterRange(in.Transactions, prevRange), primary, in.Live)

	balance := income - expenses
	cmp := PeriodComparison{
		BalanceChange: balance - (prevIncome - prevExpenses),
		Label:         label,
		Range:         prevRange,
	}
	if prevIncome > 0 {
		cmp.IncomeChange = (income - prevIncome) / prevIncome * 100
	}
	if prevExpenses > 0 {
		cmp.ExpenseChange = (expenses - prevExpenses) / prevExpenses * 100
	}

	stats := Statistics{
		Period:           q.Period,
		Range:            current,
		Currency:         primary,
		TotalIncome:      income,
		TotalExpenses:    expenses,
		Balance:          balance,
		CategoryIncome:   categoryTotals(inPeriod, in.Categories, core.Income, primary, in.Live),
		CategoryExpenses: categoryTotals(inPeriod, in.Categories, core.Expense, primary, in.Live),
		Comparison:       cmp,
		HasNext:          !current.End.After(PeriodRange(Day, q.Today).Start),
		PrevDate:         core.DateOf(Shift(q.Period, q.Date, -1)),
	}
	if stats.HasNext {
		stats.NextDate = core.DateOf(Shift(q.Period, q.Date, 1))
	}
	return stats
}

func totals(txs []core.Transaction, d core.Currency, live core.RateTable) (income, expenses float64) {
	for _, tx := range txs {
		v := ValueIn(tx, d, live)
		switch tx.Type {
		case core.Income:
			income += v
		case core.Expense:
			expenses += v
		}
	}
	return income, expenses
}

// FilterRange keeps transactions dated inside r.
func FilterRange(txs []core.Transaction, r Range) []core.Transaction {
	var out []core.Transaction
	for _, tx := range txs {
		if r.Contains(tx.Date.Time) {
			out = append(out, tx)
		}
	}
	return out
}

// CategoryTransactions lists the transactions of one category and type
// inside the period containing date, newest first.
func CategoryTransactions(txs []core.Transaction, categoryID string, t core.TransactionType, p Period, date time.Time) []core.Transaction {
	r := PeriodRange(p, date)
	out := []core.Transaction{}
	for _, tx := range txs {
		if tx.CategoryID == categoryID && tx.Type == t && r.Contains(tx.Date.Time) {
			out = append(out, tx)
		}
	}
	core.SortByDateDesc(out)
	return out
}
