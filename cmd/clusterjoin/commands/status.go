package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/imamik/clusterjoin/cmd/clusterjoin/handlers"
)

// Status returns the command that shows the handshake state.
func Status(opts *handlers.Options) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show published join material and cluster membership",
		PreRunE: func(_ *cobra.Command, _ []string) error {
			switch output {
			case "", "json", "yaml":
				return nil
			default:
				return fmt.Errorf("unsupported output format %q (want json or yaml)", output)
			}
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Status(cmd.Context(), *opts, output)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output format: json or yaml")

	return cmd
}
