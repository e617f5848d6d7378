/*
Copyright © 2026 Michael Putera Wardana <michaelputeraw@gmail.com>
*/
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/krobus00/futures-feed-service/internal/bootstrap"
)

// pluginCollectorCmd represents the pluginCollector command
var pluginCollectorCmd = &cobra.Command{
	Use:   "plugin-collector",
	Short: "Collect market data from the JSON plugin feed",
	Long: `Connects to the terminal's plugin API port, which speaks newline
delimited JSON, subscribes the configured symbols and persists trades and
depth updates to PostgreSQL. Set collector.transport to "ws" to reach the
plugin over a websocket endpoint instead of plain TCP.`,
	Run: bootstrap.StartPluginCollector,
}

func init() {
	rootCmd.AddCommand(pluginCollectorCmd)
}
