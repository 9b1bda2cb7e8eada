// Package commands implements the steerctl CLI commands.
package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cococorp/steerd/internal/debugapi"
)

var (
	// client is the debug-endpoint HTTP client, initialized in PersistentPreRunE.
	client *debugapi.Client

	// outputFormat controls the output format for all commands (table or json).
	outputFormat string

	// serverAddr is the steerd debug endpoint address (host:port).
	serverAddr string
)

// rootCmd is the top-level cobra command for steerctl.
var rootCmd = &cobra.Command{
	Use:   "steerctl",
	Short: "CLI client for the steerd daemon",
	Long:  "steerctl communicates with the steerd daemon's debug endpoint to inspect BSSes and their steering clients.",
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		client = debugapi.NewClient("http://" + serverAddr)
		return nil
	},
	// Silence cobra's built-in usage/error printing so we control it.
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverAddr, "addr", "localhost:9106",
		"steerd debug endpoint address (host:port)")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", "table",
		"output format: table, json")

	rootCmd.AddCommand(bssCmd())
	rootCmd.AddCommand(watchCmd())
	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(shellCmd())
}

// Execute runs the root command and exits with code 1 on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
