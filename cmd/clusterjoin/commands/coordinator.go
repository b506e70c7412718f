package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/clusterjoin/cmd/clusterjoin/handlers"
)

// Coordinator returns the command that bootstraps the control node.
//
// Optional flags:
//
//	--expected-nodes: Ready node count to wait for (participants + 1)
//	--advertise-address: IP to publish instead of the instance's private IP
func Coordinator(opts *handlers.Options) *cobra.Command {
	var expected int
	var advertise string

	cmd := &cobra.Command{
		Use:   "coordinator",
		Short: "Start the control service, publish join material and wait for participants",
		Long: `Bootstrap the coordinator node of a cluster.

The coordinator:
  1. Starts the k3s control service and waits for it to become healthy
  2. Reads the join secret from the k3s token file
  3. Publishes the join secret and endpoint to the shared parameter store
  4. Waits until exactly the expected number of nodes report ready
  5. Installs the configured application chart, if any

Exits non-zero if any step fails. Nothing is rolled back.

Examples:
  # Three-node cluster (two participants)
  clusterjoin coordinator --config /etc/clusterjoin.yaml --expected-nodes 3`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Coordinator(cmd.Context(), *opts, handlers.CoordinatorOptions{
				ExpectedNodes:    expected,
				AdvertiseAddress: advertise,
			})
		},
	}

	cmd.Flags().IntVar(&expected, "expected-nodes", 0, "Ready node count to wait for (participants + 1)")
	cmd.Flags().StringVar(&advertise, "advertise-address", "", "IP address to publish in the join endpoint")

	return cmd
}
