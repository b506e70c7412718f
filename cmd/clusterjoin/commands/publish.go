package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/clusterjoin/cmd/clusterjoin/handlers"
)

// Publish returns the command that only publishes join material.
func Publish(opts *handlers.Options) *cobra.Command {
	var endpoint string

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish the join secret and endpoint without waiting for participants",
		Long: `Publish the join material of an already running control service.

Reads the secret from the k3s token file and writes it, together with the
join endpoint, to the shared parameter store. Publishing the same material
again leaves the store unchanged.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Publish(cmd.Context(), *opts, endpoint)
		},
	}

	cmd.Flags().StringVar(&endpoint, "endpoint", "", "Join endpoint to publish (default: derived from the instance address)")

	return cmd
}
