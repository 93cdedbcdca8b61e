package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"myfinance/internal/core"
)

var convertRefresh bool

var convertCmd = &cobra.Command{
	Use:   "convert <amount> <from> <to>",
	Short: "Convert an amount between UAH, USD and EUR",
	Long: `Convert an amount with the cached exchange rates. Rates are fetched
when nothing is cached or --refresh is given.

Example:
  myfinance-cli convert 1,250.00 usd uah`,
	Args: cobra.ExactArgs(3),
	RunE: runConvert,
}

func init() {
	convertCmd.Flags().BoolVar(&convertRefresh, "refresh", false, "fetch fresh rates before converting")
}

func runConvert(cmd *cobra.Command, args []string) error {
	amount, err := core.ParseAmount(args[0])
	if err != nil {
		return fmt.Errorf("amount %q: %w", args[0], err)
	}
	from, err := core.ParseCurrency(args[1])
	if err != nil {
		return fmt.Errorf("currency %q: %w", args[1], err)
	}
	to, err := core.ParseCurrency(args[2])
	if err != nil {
		return fmt.Errorf("currency %q: %w", args[2], err)
	}

	env, err := openEnvironment(cmd.Context())
	if err != nil {
		return err
	}
	defer env.Close()

	info, err := env.rateTable(cmd.Context(), convertRefresh)
	if err != nil {
		return err
	}

	result := core.Convert(amount, from, to, info.Rates)
	fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", core.Format(amount, from), core.Format(result, to))
	return nil
}
