package cmd

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"myfinance/internal/core"
)

var formatCmd = &cobra.Command{
	Use:   "format <amount> <currency>",
	Short: "Render an amount the way the app displays it",
	Example: `  myfinance-cli format 1234.5 EUR
  myfinance-cli format -- -20 USD`,
	Args: cobra.ExactArgs(2),
	RunE: runFormat,
}

func runFormat(cmd *cobra.Command, args []string) error {
	d, err := decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(args[0]), ",", ""))
	if err != nil {
		return fmt.Errorf("amount %q: %w", args[0], core.ErrInvalidAmount)
	}
	c, err := core.ParseCurrency(args[1])
	if err != nil {
		return fmt.Errorf("currency %q: %w", args[1], err)
	}
	amount, _ := d.Float64()
	fmt.Fprintln(cmd.OutOrStdout(), core.Format(amount, c))
	return nil
}
