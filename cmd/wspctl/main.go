// Command wspctl runs a bulk WhatsApp campaign from the terminal, without the dashboard.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := buildRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// buildRootCmd is separate from main so tests can run the command tree.
func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "wspctl",
		Short:         "Send WhatsApp template campaigns from a CSV file",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(
		buildSendCmd(),
		buildParseCmd(),
		buildSampleCmd(),
	)
	return rootCmd
}
