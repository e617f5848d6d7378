/*
Copyright © 2026 Michael Putera Wardana <michaelputeraw@gmail.com>
*/
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/krobus00/futures-feed-service/internal/bootstrap"
)

// binaryCollectorCmd represents the binaryCollector command
var binaryCollectorCmd = &cobra.Command{
	Use:   "binary-collector",
	Short: "Collect market data from the binary ticker-plant feed",
	Long: `Connects to the terminal's binary ticker-plant port, subscribes the
configured symbols and persists trades and depth updates to PostgreSQL.`,
	Run: bootstrap.StartBinaryCollector,
}

func init() {
	rootCmd.AddCommand(binaryCollectorCmd)
}
