package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "pairsd",
	Short: "Per-strategy order execution daemon for pair strategies",
	Long: `Pairsd runs the order-execution core for pair strategies.

It provides tools for:
  - Running the execution daemon against a simulated broker
  - Per-strategy risk-checked order placement and recovery
  - Querying the order-event and fill ledger
  - Kill-switch management across restarts`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}
