// Package commands defines the CLI command structure and flag bindings.
//
// This package contains cobra command definitions that handle argument parsing,
// flag binding, and validation. Command execution is delegated to handler
// functions in the handlers package.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/clusterjoin/cmd/clusterjoin/handlers"
)

// Root returns the root command for the clusterjoin CLI.
func Root() *cobra.Command {
	var opts handlers.Options

	cmd := &cobra.Command{
		Use:           "clusterjoin",
		Short:         "Join k3s nodes through a shared parameter store",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.ConfigPath, "config", "c", "", "Path to configuration file")
	flags.StringVar(&opts.Cluster, "cluster", "", "Cluster name (overrides config)")
	flags.BoolVar(&opts.Debug, "debug", false, "Enable debug logging")
	flags.StringVar(&opts.MetricsTextfile, "metrics-textfile", "", "Write Prometheus metrics to this node-exporter textfile")

	cmd.AddCommand(Coordinator(&opts))
	cmd.AddCommand(Participant(&opts))
	cmd.AddCommand(Publish(&opts))
	cmd.AddCommand(Status(&opts))
	cmd.AddCommand(Version())

	return cmd
}
