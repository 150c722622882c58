package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func servicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "services",
		Short: "List the daemon's configured TCP and HTTP services",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, err := httpClient.services(cmd.Context())
			if err != nil {
				return fmt.Errorf("fetch services: %w", err)
			}

			out, err := formatServices(v, outputFormat)
			if err != nil {
				return err
			}
			fmt.Print(out)
			return nil
		},
	}
}
