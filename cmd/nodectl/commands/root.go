// Package commands implements the nodectl CLI commands.
package commands

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	// httpClient is the status API client, initialized in PersistentPreRunE.
	httpClient *statusClient

	// outputFormat controls the output format for all commands (table or json).
	outputFormat string

	// serverAddr is the daemon's status API address (host:port).
	serverAddr string
)

// rootCmd is the top-level cobra command for nodectl.
var rootCmd = &cobra.Command{
	Use:   "nodectl",
	Short: "CLI client for the noded overlay daemon",
	Long:  "nodectl queries the noded daemon's status API to inspect service registrations and live tunnels.",
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		httpClient = newStatusClient("http://"+serverAddr, &http.Client{Timeout: 5 * time.Second})
		return nil
	},
	// Silence cobra's built-in usage/error printing so we control it.
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverAddr, "addr", "localhost:8080",
		"noded status API address (host:port)")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", "table",
		"output format: table, json")

	rootCmd.AddCommand(servicesCmd())
	rootCmd.AddCommand(tunnelsCmd())
	rootCmd.AddCommand(healthzCmd())
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
