package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func tunnelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tunnels",
		Short: "List the daemon's live TCP tunnels",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, err := httpClient.tunnels(cmd.Context())
			if err != nil {
				return fmt.Errorf("fetch tunnels: %w", err)
			}

			out, err := formatTunnels(v, outputFormat)
			if err != nil {
				return err
			}
			fmt.Print(out)
			return nil
		},
	}
}
