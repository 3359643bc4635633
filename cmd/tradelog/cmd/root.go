package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "tradelog",
	Short: "Futures execution logging and trade validation enforcement",
	Long: `Tradelog ingests trade executions, tags each fill as entry or exit
against a running position ledger, exports the enriched rows to rotating
session-dated CSV files, and enforces a validate-before-you-trade-again
policy on positions that closed with a loss.

The live platform adapter is an external collaborator; the run command
replays a recorded execution feed through the same pipeline.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}
