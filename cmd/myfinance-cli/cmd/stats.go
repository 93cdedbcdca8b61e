package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"myfinance/internal/core"
	"myfinance/internal/ledger"
	"myfinance/internal/reports"
)

var (
	statsPeriod     string
	statsDate       string
	statsComparison string
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print income and expense statistics for a period",
	Long: `Print totals, the per-category breakdown and the comparison with
another period, valued in the primary currency.

Example:
  myfinance-cli stats --period year
  myfinance-cli stats --period month --date 2026-09-01 --comparison sameLastYear`,
	Args: cobra.NoArgs,
	RunE: runStats,
}

func init() {
	statsCmd.Flags().StringVar(&statsPeriod, "period", "month", "day, month or year")
	statsCmd.Flags().StringVar(&statsDate, "date", "", "any date inside the period (default today)")
	statsCmd.Flags().StringVar(&statsComparison, "comparison", "previous", "previous or sameLastYear")
}

// staticRates serves one fixed table to the ledger.
type staticRates core.RateTable

func (s staticRates) CurrentRates() core.RateTable {
	return core.RateTable(s).Clone()
}

func runStats(cmd *cobra.Command, args []string) error {
	period, err := reports.ParsePeriod(statsPeriod)
	if err != nil {
		return err
	}
	cmp, err := reports.ParseComparison(statsComparison)
	if err != nil {
		return err
	}
	today := time.Now()
	date := core.DateOf(today)
	if statsDate != "" {
		if date, err = core.ParseDate(statsDate); err != nil {
			return err
		}
	}

	env, err := openEnvironment(cmd.Context())
	if err != nil {
		return err
	}
	defer env.Close()

	info, err := env.rateTable(cmd.Context(), false)
	if err != nil {
		return err
	}
	l, err := ledger.New(cmd.Context(), env.store.KV, ledger.Options{
		Rates:  staticRates(info.Rates),
		Logger: env.logger,
	})
	if err != nil {
		return err
	}

	stats := reports.BuildStatistics(l.ReportInput(), reports.Query{
		Period:     period,
		Date:       date.Time,
		Comparison: cmp,
		Today:      today,
	})
	return printStatistics(cmd.OutOrStdout(), stats)
}

func printStatistics(out io.Writer, s reports.Statistics) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "PERIOD\t%s %s .. %s\n", s.Period,
		s.Range.Start.Format(core.DateLayout), s.Range.End.AddDate(0, 0, -1).Format(core.DateLayout))
	fmt.Fprintf(w, "INCOME\t%s\t%s\n", core.Format(s.TotalIncome, s.Currency), percent(s.Comparison.IncomeChange))
	fmt.Fprintf(w, "EXPENSES\t%s\t%s\n", core.Format(s.TotalExpenses, s.Currency), percent(s.Comparison.ExpenseChange))
	fmt.Fprintf(w, "BALANCE\t%s\t%s\n", core.Format(s.Balance, s.Currency), signedAmount(s.Comparison.BalanceChange, s.Currency))
	fmt.Fprintf(w, "COMPARED\t%s\n", s.Comparison.Label)

	printCategories(w, "INCOME BY CATEGORY", s.CategoryIncome, s.Currency)
	printCategories(w, "EXPENSES BY CATEGORY", s.CategoryExpenses, s.Currency)
	return w.Flush()
}

func printCategories(w io.Writer, title string, totals []reports.CategoryTotal, c core.Currency) {
	if len(totals) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%s\n", title)
	for _, t := range totals {
		fmt.Fprintf(w, "  %s\t%s\t%s%%\n", t.Name, core.Format(t.Total, c), core.FormatCount(t.Percentage))
	}
}

func percent(v float64) string {
	d := decimal.NewFromFloat(v).Round(1)
	if d.IsPositive() {
		return "+" + d.String() + "%"
	}
	return d.String() + "%"
}

func signedAmount(v float64, c core.Currency) string {
	if core.Round2(v) > 0 {
		return "+" + core.Format(v, c)
	}
	return core.Format(v, c)
}

// decimalString prints v without float noise, e.g. 0.93 instead of 0.9300000000000001.
func decimalString(v float64) string {
	return decimal.NewFromFloat(v).String()
}
