// Package cli implements the mcpgate command line interface.
package cli

import (
	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags.
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "mcpgate",
	Short: "Session-token gateway demo server",
	Long: `Mcpgate runs a two-part demo server: an HTTP login API that exchanges
credentials for session tokens, and a WebSocket gateway where clients
authenticate channels with those tokens and issue commands.`,
}

func init() {
	rootCmd.Version = Version
	rootCmd.SetVersionTemplate("mcpgate version {{.Version}}\n")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
