/*
Copyright © 2026 Michael Putera Wardana <michaelputeraw@gmail.com>
*/
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/krobus00/futures-feed-service/internal/bootstrap"
)

// addSymbolsCmd represents the addSymbols command
var addSymbolsCmd = &cobra.Command{
	Use:   "add-symbols",
	Short: "Queue symbols for subscription on running collectors",
	Long: `Marks symbols active in the database and pushes subscription requests
onto the control queue. Running collectors pick them up on their next
reconciliation pass.`,
	Run: bootstrap.StartAddSymbols,
}

func init() {
	rootCmd.AddCommand(addSymbolsCmd)
	addSymbolsCmd.Flags().String("symbols", "", "comma-separated SYMBOL or SYMBOL:EXCHANGE tokens")
}
