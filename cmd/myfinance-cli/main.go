// Package main is the entry point for the myfinance command line tool.
package main

import (
	"os"

	"myfinance/cmd/myfinance-cli/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
