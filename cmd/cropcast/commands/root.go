package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "cropcast",
	Short: "Cropcast - daily commodity price forecasting",
	Long: `Cropcast CLI

Seven-day recursive price forecasts for market commodities, with delayed
reconciliation against settled actual prices.

Usage:
  go run ./cmd/cropcast [command]

Examples:
  go run ./cmd/cropcast predict
  go run ./cmd/cropcast predict --from 2026-08-01 --to 2026-08-07
  go run ./cmd/cropcast reconcile
  go run ./cmd/cropcast api`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
