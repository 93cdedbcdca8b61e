package reports

import "myfinance/internal/core"

const (
	featuredCategories = 3
	recentTransactions = 5
)

// Overview is the home screen summary.
type Overview struct {
	PrimaryCurrency    core.Currency      `json:"primaryCurrency"`
	SecondaryCurrency  core.Currency      `json:"secondaryCurrency"`
	BalancePrimary     float64            `json:"balancePrimary"`
	BalanceSecondary   float64            `json:"balanceSecondary"`
	USDToUAH           float64            `json:"usdToUah"`
	EURToUAH           float64            `json:"eurToUah"`
	TotalExpenses      float64            `json:"totalExpenses"`
	TopExpenses        []CategoryTotal    `json:"topExpenses"`
	RecentTransactions []core.Transaction `json:"recentTransactions"`
}

func BuildOverview(in Input) Overview {
	primary := in.Primary
	if !primary.Valid() {
		primary = core.UAH
	}
	secondary := core.SecondaryCurrency(primary)

	quotes := in.Live
	if quotes == nil {
		quotes = core.IdentityRates()
	}

	ov := Overview{
		PrimaryCurrency:   primary,
		SecondaryCurrency: secondary,
		USDToUAH:          core.Convert(1, core.USD, core.UAH, quotes),
		EURToUAH:          core.Convert(1, core.EUR, core.UAH, quotes),
	}
	for _, tx := range in.Transactions {
		sign := tx.Type.Sign()
		ov.BalancePrimary += sign * ValueIn(tx, primary, in.Live)
		ov.BalanceSecondary += sign * ValueIn(tx, secondary, in.Live)
		if tx.Type == core.Expense {
			ov.TotalExpenses += ValueIn(tx, primary, in.Live)
		}
	}

	top := categoryTotals(in.Transactions, in.Categories, core.Expense, primary, in.Live)
	if len(top) > featuredCategories {
		top = top[:featuredCategories]
	}
	ov.TopExpenses = top

	recent := sortedByDateDesc(in.Transactions)
	if len(recent) > recentTransactions {
		recent = recent[:recentTransactions]
	}
	ov.RecentTransactions = recent
	return ov
}
