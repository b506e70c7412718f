package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/clusterjoin/cmd/clusterjoin/handlers"
)

// Participant returns the command that joins a worker node.
func Participant(opts *handlers.Options) *cobra.Command {
	var noFallback bool

	cmd := &cobra.Command{
		Use:   "participant",
		Short: "Wait for join material, verify the endpoint and join the cluster",
		Long: `Join this node to a cluster bootstrapped by a coordinator.

The participant polls the shared parameter store for the join endpoint and
secret, probes the endpoint's health and joins once both are available. If
no healthy endpoint appears in time it looks up coordinator instances through
the cloud API instead.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Participant(cmd.Context(), *opts, handlers.ParticipantOptions{
				DisableFallback: noFallback,
			})
		},
	}

	cmd.Flags().BoolVar(&noFallback, "no-fallback", false, "Disable fallback discovery through the cloud API")

	return cmd
}
