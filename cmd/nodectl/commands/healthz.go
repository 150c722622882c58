package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func healthzCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "healthz",
		Short: "Check the daemon's liveness",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, err := httpClient.healthz(cmd.Context())
			if err != nil {
				return fmt.Errorf("fetch healthz: %w", err)
			}

			out, err := formatHealthz(v, outputFormat)
			if err != nil {
				return err
			}
			fmt.Print(out)
			return nil
		},
	}
}
