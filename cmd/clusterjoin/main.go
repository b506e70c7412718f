// Package main is the entry point for the clusterjoin CLI.
//
// clusterjoin bootstraps k3s clusters on cloud instances. The coordinator
// node publishes the join secret and endpoint to a shared parameter store
// and waits for the cluster to reach its expected size; participant nodes
// pick the material up, verify the endpoint and join.
//
// Commands: coordinator, participant, publish, status, version.
//
// For detailed usage information, run:
//
//	clusterjoin --help
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/imamik/clusterjoin/cmd/clusterjoin/commands"
)

// Version information set by goreleaser at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	commands.SetVersionInfo(version, commit, date)
	err := commands.Root().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
