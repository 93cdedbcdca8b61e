package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"myfinance/internal/core"
)

var ratesRefresh bool

var ratesCmd = &cobra.Command{
	Use:   "rates",
	Short: "Show the exchange rates per one USD",
	Args:  cobra.NoArgs,
	RunE:  runRates,
}

func init() {
	ratesCmd.Flags().BoolVar(&ratesRefresh, "refresh", false, "fetch and persist fresh rates")
}

func runRates(cmd *cobra.Command, args []string) error {
	env, err := openEnvironment(cmd.Context())
	if err != nil {
		return err
	}
	defer env.Close()

	info, err := env.rateTable(cmd.Context(), ratesRefresh)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "SOURCE\t%s\n", info.Outcome)
	if !info.UpdatedAt.IsZero() {
		fmt.Fprintf(w, "UPDATED\t%s\n", humanize.Time(info.UpdatedAt))
	}
	for _, c := range core.CurrencyOrder {
		fmt.Fprintf(w, "%s\t%s\n", c, decimalString(info.Rates[c]))
	}
	return w.Flush()
}
